package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"anisong/internal/amqsync"
	"anisong/internal/config"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "amqsync"})

	config.LoadDotenv()

	app := &cli.Command{
		Name:  "amqsync",
		Usage: "Delta-sync the AMQ master list into the catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "api",
				Usage: "Catalog API base URL",
				Value: "http://localhost:8001",
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Admin bearer token for the import route",
				Sources: cli.EnvVars("CATALOG_API_TOKEN"),
			},
			&cli.StringFlag{
				Name:  "state",
				Usage: "Path to the sync state file",
				Value: ".sync_state.json",
			},
			&cli.StringFlag{
				Name:  "master-url",
				Usage: "AMQ master list URL",
				Value: amqsync.DefaultMasterURL,
			},
			&cli.FloatFlag{
				Name:  "target-rps",
				Usage: "Total import requests per second",
				Value: 0.5,
			},
			&cli.BoolFlag{
				Name:  "jitter",
				Usage: "Add 0-20% random jitter between requests",
				Value: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s := &amqsync.Syncer{
				API:       cmd.String("api"),
				Token:     cmd.String("token"),
				MasterURL: cmd.String("master-url"),
				StatePath: cmd.String("state"),
				TargetRPS: cmd.Float("target-rps"),
				Jitter:    cmd.Bool("jitter"),
				Log:       logger,
			}
			return s.Run(ctx)
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatal("sync failed", "err", err)
	}
}
