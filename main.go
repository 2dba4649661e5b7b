package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tempiro/tempiro-integration/cmd"
)

func main() {
	commonFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			EnvVars: []string{"LOG_LEVEL"},
			Value:   "INFO",
		},
		&cli.StringFlag{
			Name:    "migrations-folder",
			EnvVars: []string{"MIGRATIONS_FOLDER"},
			Value:   "",
		},
	}

	app := &cli.App{
		Name:   "tempiro-integration",
		Usage:  "caches Tempiro energy data and spot prices, serves aggregated views",
		Action: cmd.RunCommand,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "listen-addr",
				EnvVars: []string{"LISTEN_ADDR"},
				Value:   "",
			},
			&cli.DurationFlag{
				Name:    "sync-interval",
				EnvVars: []string{"SYNC_INTERVAL"},
				Value:   0,
			},
		}, commonFlags...),
		Commands: []*cli.Command{
			{
				Name:   "backfill",
				Usage:  "fetch historical energy data and spot prices in chunks",
				Action: cmd.BackfillCommand,
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  "days",
						Usage: "number of days to backfill",
						Value: 90,
					},
					&cli.IntFlag{
						Name:  "chunk-days",
						Usage: "days per API request (smaller = more reliable but slower)",
						Value: 7,
					},
					&cli.BoolFlag{
						Name:  "prices-only",
						Usage: "only fetch spot prices",
					},
					&cli.BoolFlag{
						Name:  "energy-only",
						Usage: "only fetch energy data",
					},
				}, commonFlags...),
			},
			{
				Name:   "sync",
				Usage:  "sync recent data once and exit",
				Action: cmd.SyncCommand,
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  "hours",
						Value: 24,
					},
				}, commonFlags...),
			},
			{
				Name:   "status",
				Usage:  "show cache statistics",
				Action: cmd.StatusCommand,
				Flags:  commonFlags,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
