package cmd

import (
	"fmt"
	"strconv"
	"tidings/config"
	"tidings/db"
	"tidings/fetch"
	"tidings/syncer"

	"github.com/urfave/cli/v2"
)

func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   "tidings.toml",
			Usage:   "Path to the TOML configuration file",
			EnvVars: []string{"TIDINGS_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "database",
			Aliases: []string{"d"},
			Usage:   "SQLite database file location",
			EnvVars: []string{"TIDINGS_DATABASE"},
		},
	}
}

// loadConfig resolves settings with flag > environment > file > default
// precedence. Flags not defined on the current command simply never report
// as set.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return nil, err
	}

	if ctx.IsSet("database") {
		cfg.Database = ctx.String("database")
	}
	if ctx.IsSet("timeout") {
		cfg.Timeout = config.Duration(ctx.Duration("timeout"))
	}
	if ctx.IsSet("max-bytes") {
		cfg.MaxBodyBytes = ctx.Int64("max-bytes")
	}
	if ctx.IsSet("concurrency") {
		cfg.Concurrency = ctx.Int("concurrency")
	}
	if ctx.IsSet("retention-days") {
		cfg.RetentionDays = ctx.Int("retention-days")
	}

	return cfg, nil
}

func openStore(cfg *config.Config) (*db.Store, error) {
	return db.Open(cfg.Database)
}

func newCoordinator(cfg *config.Config, store *db.Store) *syncer.Coordinator {
	fetcher := fetch.New(cfg.Timeout.Std(), cfg.MaxBodyBytes, cfg.UserAgent)
	return syncer.New(store, fetcher, syncer.Options{
		Concurrency: cfg.Concurrency,
		Retention:   cfg.Retention(),
	})
}

func parseID(arg string, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%q is not a valid %s id", arg, what)
	}
	return id, nil
}
