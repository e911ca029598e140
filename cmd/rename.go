package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
)

func renameCmd() *cli.Command {
	return &cli.Command{
		Name:      "rename",
		Usage:     "Set the display title of a feed",
		ArgsUsage: "FEED_ID TITLE",
		Description: `Sets the user-facing title of a feed. A renamed feed
		keeps its title across refreshes, regardless of what the feed
		document calls itself.`,
		Flags: configFlags(),
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 2 {
				return errors.New("expected a feed id and a new title")
			}
			feedID, err := parseID(ctx.Args().Get(0), "feed")
			if err != nil {
				return err
			}
			title := ctx.Args().Get(1)
			if title == "" {
				return errors.New("title cannot be empty")
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

			if err := store.Rename(ctx.Context, feedID, title); err != nil {
				return err
			}
			fmt.Printf("Renamed feed %d to %q\n", feedID, title)
			return nil
		},
	}
}
