package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func feedsCmd() *cli.Command {
	return &cli.Command{
		Name:  "feeds",
		Usage: "List subscribed feeds with unread counts",
		Flags: append(configFlags(),
			&cli.BoolFlag{
				Name:    "json",
				Usage:   "Print one JSON object per feed",
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

			feeds, err := store.ListFeeds(ctx.Context)
			if err != nil {
				return err
			}

			if ctx.Bool("json") {
				encoder := json.NewEncoder(os.Stdout)
				for _, feed := range feeds {
					if err := encoder.Encode(feed); err != nil {
						return err
					}
				}
				return nil
			}

			for _, feed := range feeds {
				marker := " "
				if feed.Feed.LastError != "" {
					marker = "!"
				}
				fmt.Printf("%s %4d  (%d unread)  %s\n", marker, feed.Feed.ID, feed.Unread, feed.Feed.Title)
				if feed.Feed.LastError != "" {
					fmt.Printf("        last error: %s\n", feed.Feed.LastError)
				}
			}
			return nil
		},
	}
}
