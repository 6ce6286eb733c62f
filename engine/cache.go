package engine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/ftahirops/xraid/collector"
	"github.com/ftahirops/xraid/config"
	"github.com/ftahirops/xraid/model"
	"github.com/ftahirops/xraid/tools"
	"github.com/ftahirops/xraid/util"
)

const (
	mib = uint64(1) << 20

	// GPT type for ZFS partitions.
	zfsPartitionType = "BF01"

	PhaseCache = "cache"
)

// CacheRequest asks for a cache layout over named devices.
type CacheRequest struct {
	Mode    model.CacheMode `json:"mode"`
	Role    model.CacheRole `json:"role,omitempty"` // single mode only
	Devices []string        `json:"devices"`
}

// CachePlanner classifies cache candidates, lays them out and attaches them.
type CachePlanner struct {
	Tools   *tools.Set
	Media   collector.MediaInfo
	Config  config.CacheConfig
	Confirm Confirmer
	// NodeExists reports whether a device node is present; os.Stat when nil.
	NodeExists func(path string) bool
	Log        *logrus.Entry
}

// NewCachePlanner returns a planner over ts.
func NewCachePlanner(ts *tools.Set, media collector.MediaInfo, cfg config.CacheConfig, confirm Confirmer, log *logrus.Entry) *CachePlanner {
	if log == nil {
		log = logrus.WithField("component", "cache")
	}
	return &CachePlanner{Tools: ts, Media: media, Config: cfg, Confirm: confirm, Log: log}
}

// Candidates returns disks that may serve as cache: never a system disk and
// never a member of the pool being built.
func Candidates(all []model.Disk, members []string) []model.Disk {
	taken := make(map[string]bool, len(members))
	for _, m := range members {
		taken[model.KernelName(m)] = true
	}
	var out []model.Disk
	for _, d := range all {
		if d.IsSystem || taken[d.Name] {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Classify assigns a media class to each candidate. Rotational devices stay in
// the list; callers warn about them.
func (c *CachePlanner) Classify(candidates []model.Disk) []model.CacheCandidate {
	out := make([]model.CacheCandidate, 0, len(candidates))
	for _, d := range candidates {
		out = append(out, model.CacheCandidate{Disk: d, Class: c.class(d)})
	}
	return out
}

func (c *CachePlanner) class(d model.Disk) model.CacheClass {
	if strings.HasPrefix(d.Name, "nvme") || (c.Media != nil && c.Media.NVMe(d.Name)) {
		return model.CacheClassNVMe
	}
	if d.Rotational != nil {
		if *d.Rotational {
			return model.CacheClassRotational
		}
		return model.CacheClassSSD
	}
	if c.Media != nil {
		if rot, known := c.Media.Rotational(d.Name); known && !rot {
			return model.CacheClassSSD
		}
	}
	// unknown media is treated as mechanical
	return model.CacheClassRotational
}

// Plan validates req against the available disks and computes the layout.
// Nothing is written.
func (c *CachePlanner) Plan(req CacheRequest, available []model.Disk) (model.CachePlan, error) {
	plan := model.CachePlan{Mode: req.Mode}
	devices, err := c.resolve(req, available)
	if err != nil {
		return plan, err
	}

	switch req.Mode {
	case model.CacheModeSingle:
		role := req.Role
		if role == "" {
			role = model.CacheRoleRead
		}
		if role != model.CacheRoleRead && role != model.CacheRoleWriteLog {
			return plan, fmt.Errorf("%w: single mode role must be %q or %q, got %q",
				ErrPrecondition, model.CacheRoleRead, model.CacheRoleWriteLog, role)
		}
		plan.Devices = []model.CacheDevice{{Disk: devices[0].Disk, Class: devices[0].Class, Role: role}}
	case model.CacheModeDual:
		plan.Devices = []model.CacheDevice{
			{Disk: devices[0].Disk, Class: devices[0].Class, Role: model.CacheRoleWriteLog},
			{Disk: devices[1].Disk, Class: devices[1].Class, Role: model.CacheRoleRead},
		}
	case model.CacheModePartitioned:
		d := devices[0]
		if d.Disk.SizeBytes < c.Config.MinPartitionedBytes {
			return plan, fmt.Errorf("%w: %s is %s, partitioned mode needs at least %s", ErrDeviceTooSmall,
				d.Disk.Name, util.FormatBytes(d.Disk.SizeBytes), util.FormatBytes(c.Config.MinPartitionedBytes))
		}
		plan.Devices = []model.CacheDevice{{Disk: d.Disk, Class: d.Class, Role: model.CacheRolePartitioned}}
		plan.Partitions = PartitionLayout(d.Disk, c.Config)
	}

	for _, d := range plan.Devices {
		if !d.Class.Recommended() {
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("%s is a rotational disk and will not speed up the pool", d.Disk.Name))
		}
	}
	return plan, nil
}

func (c *CachePlanner) resolve(req CacheRequest, available []model.Disk) ([]model.CacheCandidate, error) {
	want := 1
	switch req.Mode {
	case model.CacheModeSingle, model.CacheModePartitioned:
	case model.CacheModeDual:
		want = 2
	default:
		return nil, fmt.Errorf("%w: unknown cache mode %q", ErrPrecondition, req.Mode)
	}
	if len(req.Devices) != want {
		return nil, fmt.Errorf("%w: %s mode takes %d device(s), got %d", ErrPrecondition, req.Mode, want, len(req.Devices))
	}

	seen := map[string]bool{}
	var out []model.CacheCandidate
	for _, name := range req.Devices {
		name = model.KernelName(name)
		if seen[name] {
			return nil, fmt.Errorf("%w: %s listed twice", ErrPrecondition, name)
		}
		seen[name] = true
		d, ok := collector.Find(available, name)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an available cache candidate", ErrPrecondition, name)
		}
		if d.IsSystem {
			return nil, fmt.Errorf("%w: %s is a system disk (%s)", ErrPrecondition, name, d.SystemReason)
		}
		if d.SizeBytes < c.Config.MinDeviceBytes {
			return nil, fmt.Errorf("%w: %s is %s", ErrDeviceTooSmall, name, util.FormatBytes(d.SizeBytes))
		}
		out = append(out, model.CacheCandidate{Disk: d, Class: c.class(d)})
	}
	return out, nil
}

// PartitionLayout splits disk into a write log and a read cache. The log is
// min(size*LogFraction, LogCapBytes); the cache takes the rest. Both are
// MiB-aligned with 1 MiB reserved at each end of the disk.
func PartitionLayout(disk model.Disk, cfg config.CacheConfig) []model.CachePartition {
	logSize := uint64(float64(disk.SizeBytes) * cfg.LogFraction)
	if cfg.LogCapBytes > 0 && logSize > cfg.LogCapBytes {
		logSize = cfg.LogCapBytes
	}
	logSize = util.AlignDown(logSize, mib)

	cacheStart := mib + logSize
	var cacheSize uint64
	if disk.SizeBytes > cacheStart+mib {
		cacheSize = util.AlignDown(disk.SizeBytes-cacheStart-mib, mib)
	}
	return []model.CachePartition{
		{Number: 1, Name: model.PartitionName(disk.Name, 1), Role: model.CacheRoleWriteLog, StartBytes: mib, SizeBytes: logSize},
		{Number: 2, Name: model.PartitionName(disk.Name, 2), Role: model.CacheRoleRead, StartBytes: cacheStart, SizeBytes: cacheSize},
	}
}

// Apply attaches plan to pool. Partitioned plans first wipe and repartition
// the device, which needs confirmation. Either every target is attached in
// one zpool add or none is.
func (c *CachePlanner) Apply(ctx context.Context, pool string, plan model.CachePlan) (*model.Report, error) {
	report := &model.Report{}
	if len(plan.Devices) == 0 {
		return report, fmt.Errorf("%w: empty cache plan", ErrPrecondition)
	}
	if plan.Mode == model.CacheModePartitioned {
		if err := c.partition(ctx, plan, report); err != nil {
			return report, err
		}
	}

	targets := plan.Targets()
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, string(t.Role)+" "+t.Device)
	}
	start := time.Now()
	err := c.Tools.ZFS.Add(ctx, pool, targets)
	c.record(report, plan.Devices[0].Disk.Name, "attach "+strings.Join(names, ", ")+" to "+pool, err, start)
	if err != nil {
		return report, fmt.Errorf("attach cache to %s: %w", pool, err)
	}
	return report, nil
}

func (c *CachePlanner) partition(ctx context.Context, plan model.CachePlan, report *model.Report) error {
	disk := plan.Devices[0].Disk
	dev := disk.DevicePath()
	log := c.Log.WithField("disk", disk.Name)

	details := []string{fmt.Sprintf("%s (%s %s) will be wiped and repartitioned", dev, disk.Model, util.FormatBytes(disk.SizeBytes))}
	for _, p := range plan.Partitions {
		details = append(details, fmt.Sprintf("%s: %s %s", p.Name, p.Role, util.FormatBytes(p.SizeBytes)))
	}
	ok, err := c.confirmer().Confirm("Repartition cache device "+disk.Name+"?", details)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAborted
	}

	prep := Execute(ctx, disk.Name, []Step{
		{Phase: PhaseCache, Name: "clear zfs labels " + dev, IgnoreFailure: true,
			Run: func(ctx context.Context) error { return c.Tools.ZFS.LabelClear(ctx, dev) }},
		{Phase: PhaseCache, Name: "wipe signatures " + dev,
			Run: func(ctx context.Context) error { return c.Tools.Disk.WipeSignatures(ctx, dev) }},
		{Phase: PhaseCache, Name: "clear partition table",
			Run: func(ctx context.Context) error { return c.Tools.Disk.ClearPartitionTable(ctx, dev) }},
	}, log)
	report.Merge(prep)
	if err := prep.Err(); err != nil {
		return fmt.Errorf("prepare %s: %w", dev, err)
	}

	specs := make([]tools.PartitionSpec, 0, len(plan.Partitions))
	for _, p := range plan.Partitions {
		specs = append(specs, tools.PartitionSpec{
			Number:  p.Number,
			SizeMiB: p.SizeBytes / mib,
			TypeHex: zfsPartitionType,
			Label:   "zfs-" + string(p.Role),
		})
	}
	start := time.Now()
	err = c.Tools.Disk.CreatePartitions(ctx, dev, specs)
	c.record(report, disk.Name, "create partitions", err, start)
	if err != nil {
		return err
	}

	report.Merge(Execute(ctx, disk.Name, []Step{
		{Phase: PhaseCache, Name: "reread partition table",
			Run: func(ctx context.Context) error { return c.Tools.Disk.RereadPartitions(ctx, dev) }},
		{Phase: PhaseCache, Name: "udev settle",
			Run: func(ctx context.Context) error { return c.Tools.Disk.Settle(ctx) }},
	}, log))

	start = time.Now()
	err = c.waitForNodes(ctx, plan.Partitions)
	c.record(report, disk.Name, "wait for partition nodes", err, start)
	return err
}

func (c *CachePlanner) waitForNodes(ctx context.Context, parts []model.CachePartition) error {
	exists := c.NodeExists
	if exists == nil {
		exists = func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		}
	}
	var missing []string
	err := wait.PollUntilContextTimeout(ctx, c.Config.PollInterval(), c.Config.NodeTimeout(), true,
		func(context.Context) (bool, error) {
			missing = missing[:0]
			for _, p := range parts {
				if !exists(model.DevicePath(p.Name)) {
					missing = append(missing, p.Name)
				}
			}
			return len(missing) == 0, nil
		})
	if err != nil {
		return fmt.Errorf("%w after %s: %s", ErrPartitionTimeout, c.Config.NodeTimeout(), strings.Join(missing, ", "))
	}
	return nil
}

func (c *CachePlanner) record(report *model.Report, disk, step string, err error, start time.Time) {
	o := model.Outcome{Disk: disk, Phase: PhaseCache, Step: step, Status: model.OutcomeOK, Duration: time.Since(start)}
	slog := c.Log.WithFields(logrus.Fields{"disk": disk, "phase": PhaseCache, "step": step})
	if err != nil {
		o.Status = model.OutcomeFailed
		o.Error = err.Error()
		slog.Errorf("failed: %v", err)
	} else {
		slog.Info("ok")
	}
	report.Add(o)
}

func (c *CachePlanner) confirmer() Confirmer {
	if c.Confirm == nil {
		return Decline
	}
	return c.Confirm
}
