package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/ftahirops/xraid/collector"
	"github.com/ftahirops/xraid/config"
	"github.com/ftahirops/xraid/model"
	"github.com/ftahirops/xraid/tools"
)

// Teardown phases, in execution order.
const (
	PhaseUnmount = "unmount"
	PhaseZFS     = "zfs"
	PhaseBtrfs   = "btrfs"
	PhaseMD      = "md"
	PhaseLVM     = "lvm"
	PhaseWipe    = "wipe"
)

// Step is one destructive action of a teardown.
type Step struct {
	Phase string
	Name  string
	Run   func(ctx context.Context) error
	// Fallback is the more forceful variant, tried once when Run fails.
	Fallback func(ctx context.Context) error
	// IgnoreFailure marks failures that are expected, such as exporting a pool
	// that is already exported.
	IgnoreFailure bool
	// Manual marks steps whose persistent failure needs operator follow-up.
	Manual bool
}

// Teardown clears every storage role from a disk, in dependency order.
type Teardown struct {
	Tools  *tools.Set
	Mounts collector.MountTable
	Wipe   config.WipeConfig
	// Sleep waits out the settle delay; time.Sleep when nil.
	Sleep func(d time.Duration)
	Log   *logrus.Entry
}

// NewTeardown returns a Teardown over ts.
func NewTeardown(ts *tools.Set, mounts collector.MountTable, wipe config.WipeConfig, log *logrus.Entry) *Teardown {
	if log == nil {
		log = logrus.WithField("component", "teardown")
	}
	return &Teardown{Tools: ts, Mounts: mounts, Wipe: wipe, Log: log}
}

// Run tears disk down according to state. Every step runs even when earlier
// ones fail; the report records what happened. The returned error combines
// failed and manual steps.
func (t *Teardown) Run(ctx context.Context, disk model.Disk, state model.DiskResidualState) (*model.Report, error) {
	report := Execute(ctx, disk.Name, t.Plan(disk, state), t.Log.WithField("disk", disk.Name))
	return report, report.Err()
}

// RunAll tears disks down one after another. states[i] must describe disks[i].
func (t *Teardown) RunAll(ctx context.Context, disks []model.Disk, states []model.DiskResidualState) (*model.Report, error) {
	report := &model.Report{}
	if len(states) != len(disks) {
		return report, fmt.Errorf("%w: %d disks but %d residual states", ErrPrecondition, len(disks), len(states))
	}
	var errs error
	for i, d := range disks {
		r, err := t.Run(ctx, d, states[i])
		report.Merge(r)
		errs = multierr.Append(errs, err)
	}
	return report, errs
}

// Execute runs steps strictly in order and records one outcome per step.
// Cancellation of ctx does not interrupt a sequence once started.
func Execute(ctx context.Context, disk string, steps []Step, log *logrus.Entry) *model.Report {
	ctx = context.WithoutCancel(ctx)
	report := &model.Report{}
	for _, s := range steps {
		start := time.Now()
		o := model.Outcome{Disk: disk, Phase: s.Phase, Step: s.Name}
		slog := log.WithFields(logrus.Fields{"phase": s.Phase, "step": s.Name})

		err := s.Run(ctx)
		switch {
		case err == nil:
			o.Status = model.OutcomeOK
		case tools.IsAbsent(err):
			o.Status = model.OutcomeSkipped
			o.Error = err.Error()
			slog.Debugf("skipped: %v", err)
		case s.IgnoreFailure:
			o.Status = model.OutcomeIgnored
			o.Error = err.Error()
			slog.Debugf("ignored failure: %v", err)
		case s.Fallback != nil:
			slog.Warnf("failed, retrying forcefully: %v", err)
			if ferr := s.Fallback(ctx); ferr != nil {
				o.Status = model.OutcomeFailed
				if s.Manual {
					o.Status = model.OutcomeManual
				}
				o.Error = multierr.Combine(err, ferr).Error()
				slog.Errorf("forceful retry failed: %v", ferr)
			} else {
				o.Status = model.OutcomeRecovered
			}
		default:
			o.Status = model.OutcomeFailed
			if s.Manual {
				o.Status = model.OutcomeManual
			}
			o.Error = err.Error()
			slog.Errorf("failed: %v", err)
		}
		o.Duration = time.Since(start)
		if o.Status == model.OutcomeOK || o.Status == model.OutcomeRecovered {
			slog.Info(string(o.Status))
		}
		report.Add(o)
	}
	return report
}

func (t *Teardown) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if t.Sleep != nil {
		t.Sleep(d)
		return
	}
	time.Sleep(d)
}
