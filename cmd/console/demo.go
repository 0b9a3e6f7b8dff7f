package main

import (
	"fmt"
	"net/http/httptest"

	"github.com/jrsteele09/go-pos-console/backend/backendfake"
	"github.com/jrsteele09/go-pos-console/internal/app"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func demoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Serve the console against an in-process backend with demo data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fake := backendfake.New()
			if err := backendfake.Seed(fake); err != nil {
				return err
			}
			api := httptest.NewServer(fake)
			defer api.Close()

			log.Info().Str("api", api.URL).Msg("Demo backend running")
			for _, u := range backendfake.DemoUsers {
				fmt.Printf("  %-10s password %-14s PIN %s (%s)\n", u.Username, u.Password, u.PIN, u.Role)
			}
			return serveForever(cmd.Context(), app.WithAPIBaseURL(api.URL))
		},
	}
}
