package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"tidings/models"

	"github.com/urfave/cli/v2"
)

// Subscriptions are exchanged as plain (title, url) pairs, one tab
// separated line each, so the format survives a round trip through grep
// and a text editor.

func exportCmd() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export all subscriptions as title/url pairs",
		Flags: append(configFlags(),
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to a file instead of stdout",
				EnvVars: []string{"TIDINGS_OUTPUT"},
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

			subs, err := store.ExportAll(ctx.Context)
			if err != nil {
				return err
			}

			out := os.Stdout
			if path := ctx.String("output"); path != "" {
				file, err := os.Create(path)
				if err != nil {
					return err
				}
				defer file.Close()
				out = file
			}

			for _, sub := range subs {
				fmt.Fprintf(out, "%s\t%s\n", sub.Title, sub.URL)
			}
			return nil
		},
	}
}

func importCmd() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import subscriptions from title/url pairs",
		ArgsUsage: "FILE",
		Description: `Reads one subscription per line, either "title<TAB>url"
		or a bare url. Duplicates and invalid urls are skipped and counted,
		never fatal for the batch.`,
		Flags: configFlags(),
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return errors.New("expected exactly one file to import")
			}

			file, err := os.Open(ctx.Args().First())
			if err != nil {
				return err
			}
			defer file.Close()

			var subs []models.Subscription
			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				title, url, found := strings.Cut(line, "\t")
				if !found {
					url = title
					title = ""
				}
				subs = append(subs, models.Subscription{Title: title, URL: strings.TrimSpace(url)})
			}
			if err := scanner.Err(); err != nil {
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

			stats, err := store.Import(ctx.Context, subs)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d feeds, skipped %d\n", stats.Added, stats.Skipped)
			return nil
		},
	}
}
