/*
scheduler.go - Nightly report digest

PURPOSE:
  Computes each unit's daily report on a cron schedule and persists it as a
  ReportSnapshot to every configured sink (the primary store and, when
  configured, the MongoDB archive). Live reports never read snapshots; they
  are a history for dashboards and exports.

DESIGN:
  - One cron entry, standard 5-field expression (DIGEST_CRON, default "0 23 * * *")
  - Each run gets a 2 minute deadline
  - A failing unit or sink is logged and does not stop the others
  - RunOnce is exported so the digest can be triggered and tested directly

SEE ALSO:
  - report/report.go: Engine.BuildReport
  - archive/mongodb/mongodb.go: Archive sink
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/warp/sbu-ledger/ledger"
	"github.com/warp/sbu-ledger/report"
)

const digestTimeout = 2 * time.Minute

// UnitLister is the registry surface the digest needs.
type UnitLister interface {
	ListUnits(ctx context.Context) ([]ledger.BusinessUnit, error)
}

// Digest snapshots daily reports on a schedule.
type Digest struct {
	units   UnitLister
	reports *report.Engine
	sinks   []ledger.SnapshotStore
	logger  *zap.Logger

	cron  *cron.Cron
	today func() ledger.Date
	now   func() time.Time
}

// NewDigest creates a digest writing to sinks. Nil sinks are skipped.
func NewDigest(units UnitLister, reports *report.Engine, logger *zap.Logger, sinks ...ledger.SnapshotStore) *Digest {
	if logger == nil {
		logger = zap.NewNop()
	}

	var live []ledger.SnapshotStore
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}

	return &Digest{
		units:   units,
		reports: reports,
		sinks:   live,
		logger:  logger,
		cron:    cron.New(),
		today:   ledger.Today,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start schedules the digest with a standard cron expression.
func (d *Digest) Start(schedule string) error {
	if _, err := d.cron.AddFunc(schedule, d.run); err != nil {
		return fmt.Errorf("schedule digest %q: %w", schedule, err)
	}
	d.cron.Start()
	d.logger.Info("digest scheduled", zap.String("schedule", schedule), zap.Int("sinks", len(d.sinks)))
	return nil
}

// Stop halts the schedule and waits for a running digest to finish.
func (d *Digest) Stop() {
	<-d.cron.Stop().Done()
	d.logger.Info("digest stopped")
}

func (d *Digest) run() {
	ctx, cancel := context.WithTimeout(context.Background(), digestTimeout)
	defer cancel()

	date := d.today()
	if n, err := d.RunOnce(ctx, date); err != nil {
		d.logger.Error("digest completed with errors", zap.String("date", date.String()), zap.Int("snapshots", n), zap.Error(err))
	} else {
		d.logger.Info("digest completed", zap.String("date", date.String()), zap.Int("snapshots", n))
	}
}

// RunOnce snapshots every unit's daily report for date. It returns how many
// reports were built and all errors joined.
func (d *Digest) RunOnce(ctx context.Context, date ledger.Date) (int, error) {
	units, err := d.units.ListUnits(ctx)
	if err != nil {
		return 0, fmt.Errorf("list units: %w", err)
	}

	var errs []error
	built := 0
	for _, u := range units {
		rep, err := d.reports.BuildReport(ctx, u.ID, ledger.PeriodDaily, date)
		if err != nil {
			d.logger.Warn("digest: report failed", zap.String("unit_id", string(u.ID)), zap.Error(err))
			errs = append(errs, fmt.Errorf("unit %s: %w", u.ID, err))
			continue
		}
		built++

		snap := toSnapshot(rep, d.now())
		for _, sink := range d.sinks {
			if err := sink.SaveSnapshot(ctx, snap); err != nil {
				d.logger.Warn("digest: save failed", zap.String("unit_id", string(u.ID)), zap.Error(err))
				errs = append(errs, fmt.Errorf("unit %s: %w", u.ID, err))
			}
		}
	}
	return built, errors.Join(errs...)
}

func toSnapshot(rep *report.Report, at time.Time) ledger.ReportSnapshot {
	return ledger.ReportSnapshot{
		UnitID:             rep.UnitID,
		Date:               rep.Range.End,
		TotalSales:         rep.TotalSales,
		TotalExpenses:      rep.TotalExpenses,
		NetProfit:          rep.NetProfit,
		PerformancePercent: rep.PerformancePercent,
		PerformanceStatus:  string(rep.PerformanceStatus),
		CreatedAt:          at,
	}
}
