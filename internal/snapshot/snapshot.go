// Package snapshot runs the daily start-of-day valuation job.
//
// Once per trading day, near market open in the configured market
// timezone, every account's total value is recomputed and persisted as
// its start-of-day baseline for daily P&L. The job re-checks a
// persisted last-run-date marker before doing any work, so restarts and
// overlapping triggers within the same calendar day are no-ops rather
// than relying on a bare time-window check.
package snapshot

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/timbro-mach/stock-simulator-backend/internal/ledger"
	"github.com/timbro-mach/stock-simulator-backend/internal/metrics"
	"github.com/timbro-mach/stock-simulator-backend/internal/store"
)

// Job computes and persists start-of-day values for all accounts.
type Job struct {
	store  store.Store
	ledger *ledger.Service
	loc    *time.Location
	cron   *cron.Cron
}

// New creates a snapshot job for the given market timezone.
func New(st store.Store, svc *ledger.Service, loc *time.Location) *Job {
	return &Job{store: st, ledger: svc, loc: loc}
}

// Start schedules the job with a cron spec (e.g. "30 9 * * 1-5" for
// 09:30 Monday-Friday) evaluated in the market timezone. Weekends are
// excluded by the schedule itself; the date marker guards against
// double fires within a day.
func (j *Job) Start(spec string) error {
	j.cron = cron.New(cron.WithLocation(j.loc))
	_, err := j.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := j.Run(ctx); err != nil {
			slog.Error("daily snapshot run failed", "err", err)
		}
	})
	if err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop halts the schedule, waiting for a running invocation to finish.
func (j *Job) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

// Run executes one snapshot pass if it has not already run today.
// Accounts are committed one at a time; a crash mid-run leaves earlier
// accounts snapshotted and later ones on yesterday's baseline, which is
// acceptable for a best-effort daily baseline.
func (j *Job) Run(ctx context.Context) error {
	today := time.Now().In(j.loc).Format("2006-01-02")

	last, err := j.store.GetSnapshotDate(ctx)
	if err != nil {
		return err
	}
	if last == today {
		slog.Info("daily snapshot already recorded", "date", today)
		return nil
	}

	accounts, err := j.store.ListAccounts(ctx)
	if err != nil {
		return err
	}

	var updated int
	for _, a := range accounts {
		v, err := j.ledger.Value(ctx, a.ID)
		if err != nil {
			slog.Warn("snapshot valuation failed", "account", a.ID, "err", err)
			continue
		}
		if err := j.store.SetStartOfDayValue(ctx, a.ID, v.Total, today); err != nil {
			slog.Warn("snapshot write failed", "account", a.ID, "err", err)
			continue
		}
		updated++
		metrics.SnapshotAccounts.Inc()
	}

	if err := j.store.SetSnapshotDate(ctx, today); err != nil {
		return err
	}

	metrics.SnapshotRuns.Inc()
	slog.Info("daily snapshot complete", "date", today, "accounts", updated)
	return nil
}
