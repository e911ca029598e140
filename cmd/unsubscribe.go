package cmd

import (
	"errors"
	"fmt"

	"github.com/cqroot/prompt"
	"github.com/urfave/cli/v2"
)

func unsubscribeCmd() *cli.Command {
	return &cli.Command{
		Name:      "unsubscribe",
		Usage:     "Delete a feed and all of its entries",
		ArgsUsage: "FEED_ID",
		Description: `Deletes a feed from the database. All entries belonging
		to the feed are deleted with it. Asks for confirmation unless --yes
		is given.`,
		Flags: append(configFlags(),
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Skip the confirmation prompt",
				EnvVars: []string{"TIDINGS_YES"},
			},
		),
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return errors.New("expected exactly one feed id")
			}
			feedID, err := parseID(ctx.Args().First(), "feed")
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

			feed, err := store.GetFeed(ctx.Context, feedID)
			if err != nil {
				return err
			}

			if !ctx.Bool("yes") {
				answer, err := prompt.New().
					Ask(fmt.Sprintf("Delete %q and all of its entries?", feed.Title)).
					Choose([]string{"no", "yes"})
				if err != nil {
					return err
				}
				if answer != "yes" {
					fmt.Println("Aborted")
					return nil
				}
			}

			if err := store.Delete(ctx.Context, feedID); err != nil {
				return err
			}
			fmt.Printf("Unsubscribed from %s\n", feed.URL)
			return nil
		},
	}
}
