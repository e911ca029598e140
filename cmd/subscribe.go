package cmd

import (
	"errors"
	"fmt"
	"tidings/db"
	"tidings/fetch"
	"tidings/models"

	"github.com/urfave/cli/v2"
)

func subscribeCmd() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to a feed by URL",
		ArgsUsage: "URL",
		Description: `Subscribes to the given feed URL and performs an initial
		refresh. A bare host is assumed to be https. If the first fetch fails
		the subscription is kept and the failure recorded on the feed, so a
		later refresh can pick it up.`,
		Flags: append(configFlags(),
			&cli.StringFlag{
				Name:    "title",
				Aliases: []string{"t"},
				Usage:   "Display title for the feed (defaults to the feed's own title)",
				EnvVars: []string{"TIDINGS_TITLE"},
			},
		),
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return errors.New("expected exactly one feed url")
			}

			url, err := fetch.NormalizeURL(ctx.Args().First())
			if err != nil {
				return err
			}

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			feedID, err := store.Subscribe(ctx.Context, url, ctx.String("title"))
			if err != nil {
				var dbErr *db.Error
				if errors.As(err, &dbErr) && dbErr.Kind == models.ErrorKindDuplicateFeed {
					return fmt.Errorf("already subscribed to %s", url)
				}
				return err
			}

			fmt.Printf("Subscribed to %s as feed %d\n", url, feedID)

			coordinator := newCoordinator(cfg, store)
			outcomes := coordinator.Refresh(ctx.Context, []int64{feedID})
			fmt.Printf("Initial refresh: %s\n", outcomes[feedID])
			return nil
		},
	}
}
