package main

import (
	"fmt"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-pos-console/internal/app"
	"github.com/jrsteele09/go-pos-console/internal/config"
	"github.com/jrsteele09/go-pos-console/internal/logging"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:          "console",
		Short:        "POS console: sign in, gate screens and authorize sensitive actions",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			c := config.New(files...)
			logging.Setup(c.GetEnv(), c.GetLogLevel())
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load settings from this .env file")

	cmd.AddCommand(
		serveCommand(),
		demoCommand(),
		loginCommand(),
		pinLoginCommand(),
		whoamiCommand(),
		logoutCommand(),
		voidCommand(),
	)
	return cmd
}

// openApp builds the app and restores any persisted session.
func openApp(cmd *cobra.Command, opts ...app.Option) (*app.App, error) {
	a, err := app.New(config.New(), opts...)
	if err != nil {
		return nil, err
	}
	if err := a.Session.Initialize(cmd.Context()); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
