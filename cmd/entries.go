package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func entriesCmd() *cli.Command {
	return &cli.Command{
		Name:  "entries",
		Usage: "List entries, newest first",
		Description: `Lists entries for one feed, or for all feeds combined,
		ordered by published date with undated entries last.`,
		Flags: append(configFlags(),
			&cli.Int64Flag{
				Name:    "feed",
				Aliases: []string{"f"},
				Usage:   "Only entries of this feed (0 means all feeds)",
				EnvVars: []string{"TIDINGS_FEED"},
			},
			&cli.BoolFlag{
				Name:    "unread",
				Aliases: []string{"u"},
				Usage:   "Only unread entries",
				EnvVars: []string{"TIDINGS_UNREAD"},
			},
			&cli.BoolFlag{
				Name:    "json",
				Usage:   "Print one JSON object per entry",
				EnvVars: []string{"TIDINGS_JSON"},
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

			entries, err := store.ListEntries(ctx.Context, ctx.Int64("feed"), ctx.Bool("unread"))
			if err != nil {
				return err
			}

			if ctx.Bool("json") {
				encoder := json.NewEncoder(os.Stdout)
				for _, entry := range entries {
					if err := encoder.Encode(entry); err != nil {
						return err
					}
				}
				return nil
			}

			for _, entry := range entries {
				marker := "●"
				if entry.Read {
					marker = " "
				}
				date := "          "
				if entry.PublishedAt != nil {
					date = entry.PublishedAt.Format("2006-01-02")
				}
				fmt.Printf("%s %5d  %s  [%s] %s\n", marker, entry.ID, date, entry.FeedTitle, entry.Title)
			}
			return nil
		},
	}
}
