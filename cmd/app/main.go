package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/taxport/internal"
	pkgconfig "github.com/starford/taxport/pkg/config"
)

type runFunc func(ctx context.Context, opts ...internal.Option) error

// action loads the configuration and hands it to one of the run modes.
// A missing config file leaves the defaults in place.
func action(fn runFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		configPath := cmd.String("config")

		cfg := internal.NewDefaultConfig()
		if err := pkgconfig.LoadWithDefaults(configPath, "", cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
		}

		if err := fn(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}

		return nil
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "taxport",
		Usage:  "Flatten YAML category trees into a vendor taxonomy import document",
		Action: action(internal.RunTransform),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "transform",
				Usage:  "Generate the export and status files once",
				Action: action(internal.RunTransform),
			},
			{
				Name:   "watch",
				Usage:  "Regenerate the export whenever a source file changes",
				Action: action(internal.RunWatch),
			},
			{
				Name:   "serve",
				Usage:  "Serve the latest export, run history and events over HTTP",
				Action: action(internal.RunServe),
			},
			{
				Name:   "mcp",
				Usage:  "Expose taxonomy tools over MCP stdio",
				Action: action(internal.RunMCP),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
