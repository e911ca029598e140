package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
)

func activityCmd() *cli.Command {
	return &cli.Command{
		Name:      "activity",
		Usage:     "Show how many entries a feed published per day",
		ArgsUsage: "FEED_ID",
		Flags: append(configFlags(),
			&cli.IntFlag{
				Name:  "days",
				Usage: "Number of days to look back",
				Value: 30,
			},
		),
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return fmt.Errorf("expected exactly one feed id argument")
			}
			feedID, err := parseID(ctx.Args().First(), "feed")
			if err != nil {
				return err
			}
			days := ctx.Int("days")
			if days < 1 {
				days = 1
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
			buckets, err := store.FeedActivity(ctx.Context, feedID, days)
			if err != nil {
				return err
			}

			var max int64
			for _, bucket := range buckets {
				if bucket.Count > max {
					max = bucket.Count
				}
			}

			fmt.Printf("%s, last %d days\n", feed.Title, days)
			for _, bucket := range buckets {
				bar := ""
				if max > 0 {
					bar = strings.Repeat("#", int(bucket.Count*40/max))
				}
				fmt.Printf("%s %4d %s\n", bucket.Day.Format("2006-01-02"), bucket.Count, bar)
			}
			return nil
		},
	}
}
