package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

func tidyCmd() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "Tidy up the database",
		Description: `Tidy up the database by removing entries that are old.

		Removes entries first seen longer ago than the retention window
		(365 days by default) from every feed. Refreshes already do this
		per feed; tidy sweeps the whole database at once.`,
		Flags: append(configFlags(),
			&cli.IntFlag{
				Name:    "retention-days",
				Usage:   "Entries first seen longer ago than this are pruned",
				EnvVars: []string{"TIDINGS_RETENTION_DAYS"},
			},
		),
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			ids, err := store.FeedIDs(ctx.Context)
			if err != nil {
				return err
			}

			now := time.Now()
			var total int64
			for _, feedID := range ids {
				pruned, err := store.PruneExpired(ctx.Context, feedID, now, cfg.Retention())
				if err != nil {
					return err
				}
				total += pruned
			}

			fmt.Printf("Pruned %d expired entries across %d feeds\n", total, len(ids))
			return nil
		},
	}
}
