package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/jrsteele09/go-pos-console/internal/app"
	"github.com/jrsteele09/go-pos-console/internal/config"
	"github.com/jrsteele09/go-pos-console/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the console web front end against the configured backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serveForever(cmd.Context())
		},
	}
}

// serveForever restarts the console after a recovered panic.
func serveForever(ctx context.Context, opts ...app.Option) error {
	for {
		err := run(ctx, opts...)
		if err == nil {
			break
		}
		if !errors.Is(err, errPanicRecovered) {
			return err
		}
		log.Error().Err(err).Msg("Error running server")
		time.Sleep(1 * time.Second)
	}
	log.Info().Msg("Server stopped")
	return nil
}

var errPanicRecovered = errors.New("panic recovered")

func run(ctx context.Context, opts ...app.Option) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("Recovered from panic")
			returnError = errPanicRecovered
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	a, err := app.New(c, opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	// Screens answer with the wait page until restoration finishes.
	go func() {
		if err := a.Session.Initialize(ctx); err != nil {
			log.Warn().Err(err).Msg("Session restore failed")
		}
	}()

	handler, err := server.New(c, a)
	if err != nil {
		return err
	}
	srv := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	lis, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("net.Listen %w", err)
	}
	go listenAndServe(srv, lis)
	waitForStopSignal(ctx)
	return shutdown(srv)
}

func listenAndServe(server *http.Server, lis net.Listener) {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.Serve(lis); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server.Serve")
	}
}

func waitForStopSignal(ctx context.Context) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)
	select {
	case <-stop:
	case <-ctx.Done():
	}
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
