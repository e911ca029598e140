package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "tidings",
		Usage: "A local-first RSS/Atom feed reader engine",
		Description: `Tidings keeps your feed subscriptions in a local SQLite
		database. It fetches RSS and Atom feeds concurrently, deduplicates
		entries across refreshes, tracks per-entry read state and prunes
		entries older than the retention window.

		Flags can generally be set via environment variables, e.g.:

		--database => TIDINGS_DATABASE=tidings.db
		--timeout => TIDINGS_TIMEOUT=30s
		`,
		Commands: []*cli.Command{
			subscribeCmd(),
			unsubscribeCmd(),
			renameCmd(),
			refreshCmd(),
			feedsCmd(),
			entriesCmd(),
			showCmd(),
			readCmd(),
			exportCmd(),
			importCmd(),
			migrateCmd(),
			tidyCmd(),
			activityCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
