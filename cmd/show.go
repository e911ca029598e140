package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
)

func showCmd() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print a single entry with its body",
		ArgsUsage: "ENTRY_ID",
		Flags: append(configFlags(),
			&cli.BoolFlag{
				Name:    "mark-read",
				Aliases: []string{"r"},
				Usage:   "Mark the entry read after printing it",
				EnvVars: []string{"TIDINGS_MARK_READ"},
			},
		),
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return errors.New("expected exactly one entry id")
			}
			entryID, err := parseID(ctx.Args().First(), "entry")
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

			entry, err := store.GetEntry(ctx.Context, entryID)
			if err != nil {
				return err
			}

			fmt.Printf("%s\n", entry.Title)
			fmt.Printf("feed: %s\n", entry.FeedTitle)
			if entry.PublishedAt != nil {
				fmt.Printf("published: %s\n", entry.PublishedAt.Format("2006-01-02 15:04"))
			}
			if entry.Link != "" {
				fmt.Printf("link: %s\n", entry.Link)
			}
			fmt.Printf("\n%s\n", entry.Body)

			if ctx.Bool("mark-read") {
				return store.SetRead(ctx.Context, entryID, true)
			}
			return nil
		},
	}
}
