package cmd

import (
	"fmt"
	"os/signal"
	"sort"
	"syscall"
	"time"
	"tidings/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func refreshCmd() *cli.Command {
	return &cli.Command{
		Name:      "refresh",
		Usage:     "Refresh one, several or all feeds",
		ArgsUsage: "[FEED_ID...]",
		Description: `Fetches, parses and merges the given feeds concurrently.
		With no arguments all feeds are refreshed. Each feed gets its own
		outcome; one broken feed never affects the others. Interrupting with
		Ctrl-C aborts outstanding fetches without leaving partial merges.

		The engine never retries on its own. --retries re-runs failed feeds
		from here, with exponential backoff between rounds.`,
		Flags: append(configFlags(),
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "Hard upper bound per HTTP request",
				EnvVars: []string{"TIDINGS_TIMEOUT"},
			},
			&cli.Int64Flag{
				Name:    "max-bytes",
				Usage:   "Maximum feed body size in bytes",
				EnvVars: []string{"TIDINGS_MAX_BYTES"},
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Usage:   "Number of feeds refreshed in parallel",
				EnvVars: []string{"TIDINGS_CONCURRENCY"},
			},
			&cli.IntFlag{
				Name:    "retention-days",
				Usage:   "Entries first seen longer ago than this are pruned",
				EnvVars: []string{"TIDINGS_RETENTION_DAYS"},
			},
			&cli.IntFlag{
				Name:    "retries",
				Usage:   "Extra refresh rounds for feeds that failed",
				EnvVars: []string{"TIDINGS_RETRIES"},
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

			// Ctrl-C cancels outstanding fetches promptly; merged feeds stay
			// merged, unstarted feeds are skipped.
			runCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			coordinator := newCoordinator(cfg, store)

			var outcomes map[int64]models.RefreshOutcome
			if ctx.NArg() == 0 {
				outcomes, err = coordinator.RefreshAll(runCtx)
				if err != nil {
					return err
				}
			} else {
				ids := make([]int64, 0, ctx.NArg())
				for _, arg := range ctx.Args().Slice() {
					id, err := parseID(arg, "feed")
					if err != nil {
						return err
					}
					ids = append(ids, id)
				}
				outcomes = coordinator.Refresh(runCtx, ids)
			}

			// Exponential backoff between retry rounds, capped so a stubborn
			// feed cannot stall the command for long.
			wait := backoff.NewExponentialBackOff()
			wait.InitialInterval = 500 * time.Millisecond
			wait.MaxInterval = 30 * time.Second

			for attempt := 0; attempt < ctx.Int("retries"); attempt++ {
				failed := failedFeeds(outcomes)
				if len(failed) == 0 || runCtx.Err() != nil {
					break
				}

				delay := wait.NextBackOff()
				log.WithFields(log.Fields{
					"feeds": len(failed),
					"delay": delay,
				}).Info("Retrying failed feeds")

				select {
				case <-runCtx.Done():
				case <-time.After(delay):
				}

				for id, outcome := range coordinator.Refresh(runCtx, failed) {
					outcomes[id] = outcome
				}
			}

			printOutcomes(outcomes)
			return nil
		},
	}
}

func failedFeeds(outcomes map[int64]models.RefreshOutcome) []int64 {
	failed := lo.OmitBy(outcomes, func(_ int64, o models.RefreshOutcome) bool {
		return o.State != models.StateFailed
	})
	return lo.Keys(failed)
}

func printOutcomes(outcomes map[int64]models.RefreshOutcome) {
	ids := lo.Keys(outcomes)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var updated, unchanged, failed int
	for _, id := range ids {
		outcome := outcomes[id]
		fmt.Printf("feed %d: %s\n", id, outcome)
		switch outcome.State {
		case models.StateUpdated:
			updated++
		case models.StateUnchanged:
			unchanged++
		case models.StateFailed:
			failed++
		}
	}
	fmt.Printf("%d updated, %d unchanged, %d failed\n", updated, unchanged, failed)
}
