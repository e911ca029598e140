package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
)

func readCmd() *cli.Command {
	return &cli.Command{
		Name:      "read",
		Usage:     "Mark entries read or unread",
		ArgsUsage: "[ENTRY_ID...]",
		Description: `Marks the given entries read. --undo marks them unread
		instead, --toggle flips each entry, and --feed marks every entry of
		a whole feed read at once.`,
		Flags: append(configFlags(),
			&cli.BoolFlag{
				Name:    "undo",
				Aliases: []string{"u"},
				Usage:   "Mark unread instead of read",
				EnvVars: []string{"TIDINGS_UNDO"},
			},
			&cli.BoolFlag{
				Name:    "toggle",
				Aliases: []string{"t"},
				Usage:   "Flip the read flag of each entry",
				EnvVars: []string{"TIDINGS_TOGGLE"},
			},
			&cli.Int64Flag{
				Name:    "feed",
				Aliases: []string{"f"},
				Usage:   "Mark all entries of this feed read",
				EnvVars: []string{"TIDINGS_FEED"},
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

			if feedID := ctx.Int64("feed"); feedID != 0 {
				if err := store.MarkFeedRead(ctx.Context, feedID); err != nil {
					return err
				}
				fmt.Printf("Marked feed %d read\n", feedID)
				return nil
			}

			if ctx.NArg() == 0 {
				return errors.New("expected entry ids or --feed")
			}

			for _, arg := range ctx.Args().Slice() {
				entryID, err := parseID(arg, "entry")
				if err != nil {
					return err
				}
				switch {
				case ctx.Bool("toggle"):
					err = store.ToggleRead(ctx.Context, entryID)
				default:
					err = store.SetRead(ctx.Context, entryID, !ctx.Bool("undo"))
				}
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
}
