package engine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ftahirops/xraid/collector"
	"github.com/ftahirops/xraid/config"
	"github.com/ftahirops/xraid/model"
	"github.com/ftahirops/xraid/tools"
	"github.com/ftahirops/xraid/util"
)

const PhaseCreate = "create"

// DiskScanner enumerates block devices with their protection flags.
type DiskScanner interface {
	Scan(ctx context.Context) ([]model.Disk, error)
}

// DiskAnalyzer reports the storage roles a disk still carries.
type DiskAnalyzer interface {
	Analyze(ctx context.Context, disk model.Disk) (model.DiskResidualState, error)
}

// CreateRequest describes a pool to build.
type CreateRequest struct {
	Name       string         `json:"name"`
	Topology   model.Topology `json:"topology"`
	Disks      []string       `json:"disks"`
	MountPoint string         `json:"mount_point,omitempty"`
	// Ashift overrides config and the sector-size derivation when non-zero.
	Ashift int           `json:"ashift,omitempty"`
	Cache  *CacheRequest `json:"cache,omitempty"`
}

// AssemblyResult is everything Create did.
type AssemblyResult struct {
	Capacity  model.CapacityReport      `json:"capacity"`
	States    []model.DiskResidualState `json:"states"`
	Report    *model.Report             `json:"report"`
	CachePlan *model.CachePlan          `json:"cache_plan,omitempty"`
}

// Assembler turns a set of disks into a new pool.
type Assembler struct {
	Scanner  DiskScanner
	Analyzer DiskAnalyzer
	Teardown *Teardown
	Tools    *tools.Set
	Cache    *CachePlanner
	Confirm  Confirmer
	Config   config.Config
	// MkdirAll creates the btrfs mount point; os.MkdirAll when nil.
	MkdirAll func(path string, perm os.FileMode) error
	Log      *logrus.Entry
}

// Create validates req, tears members down and builds the pool. Nothing is
// written before validation, capacity and confirmation all pass.
func (a *Assembler) Create(ctx context.Context, req CreateRequest) (*AssemblyResult, error) {
	log := a.log().WithFields(logrus.Fields{"pool": req.Name, "topology": req.Topology})
	res := &AssemblyResult{Report: &model.Report{}}

	inventory, err := a.Scanner.Scan(ctx)
	if err != nil {
		return res, fmt.Errorf("scan disks: %w", err)
	}
	members, err := a.validate(req, inventory)
	if err != nil {
		return res, err
	}

	res.Capacity, err = Compute(req.Topology, members)
	if err != nil {
		return res, err
	}

	if req.Cache != nil {
		if req.Topology.Filesystem() != model.FilesystemZFS {
			return res, fmt.Errorf("%w: cache devices need a zfs pool", ErrPrecondition)
		}
		plan, err := a.Cache.Plan(*req.Cache, Candidates(inventory, req.Disks))
		if err != nil {
			return res, err
		}
		res.CachePlan = &plan
	}

	for _, d := range members {
		state, err := a.Analyzer.Analyze(ctx, d)
		if err != nil {
			return res, fmt.Errorf("analyze %s: %w", d.Name, err)
		}
		res.States = append(res.States, state)
	}

	ok, err := a.confirmer().Confirm(
		fmt.Sprintf("Create %s pool %q on %d disks? All data on them will be destroyed.", req.Topology, req.Name, len(members)),
		a.details(res))
	if err != nil {
		return res, err
	}
	if !ok {
		return res, ErrAborted
	}

	for i, d := range members {
		// the wipe phase runs on clean disks too; leftover labels the probes
		// cannot name still confuse zpool create and mkfs
		r, terr := a.Teardown.Run(ctx, d, res.States[i])
		res.Report.Merge(r)
		if terr != nil {
			log.WithField("disk", d.Name).Warnf("teardown incomplete: %v", terr)
		}
	}

	start := time.Now()
	if req.Topology.Filesystem() == model.FilesystemZFS {
		err = a.createZFS(ctx, req, members)
	} else {
		err = a.createBtrfs(ctx, req, members)
	}
	o := model.Outcome{Disk: req.Name, Phase: PhaseCreate, Step: "create " + string(req.Topology) + " " + req.Name,
		Status: model.OutcomeOK, Duration: time.Since(start)}
	if err != nil {
		o.Status = model.OutcomeFailed
		o.Error = err.Error()
		res.Report.Add(o)
		return res, fmt.Errorf("create %s: %w", req.Name, err)
	}
	res.Report.Add(o)
	log.WithField("usable", util.FormatBytes(res.Capacity.UsableBytes)).Info("pool created")

	if res.CachePlan != nil {
		r, err := a.Cache.Apply(ctx, req.Name, *res.CachePlan)
		res.Report.Merge(r)
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

func (a *Assembler) validate(req CreateRequest, inventory []model.Disk) ([]model.Disk, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: pool name is empty", ErrPrecondition)
	}
	if !req.Topology.Valid() {
		return nil, fmt.Errorf("%w: unknown topology %q", ErrPrecondition, req.Topology)
	}
	seen := map[string]bool{}
	members := make([]model.Disk, 0, len(req.Disks))
	for _, name := range req.Disks {
		name = model.KernelName(name)
		if seen[name] {
			return nil, fmt.Errorf("%w: %s listed twice", ErrPrecondition, name)
		}
		seen[name] = true
		d, ok := collector.Find(inventory, name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown disk %s", ErrPrecondition, name)
		}
		if d.IsSystem {
			return nil, fmt.Errorf("%w: %s is a system disk (%s)", ErrPrecondition, name, d.SystemReason)
		}
		if a.Config.MinMemberBytes > 0 && d.SizeBytes < a.Config.MinMemberBytes {
			return nil, fmt.Errorf("%w: %s is %s", ErrDeviceTooSmall, name, util.FormatBytes(d.SizeBytes))
		}
		members = append(members, d)
	}
	if req.Cache != nil {
		for _, c := range req.Cache.Devices {
			if seen[model.KernelName(c)] {
				return nil, fmt.Errorf("%w: %s cannot be both pool member and cache", ErrPrecondition, c)
			}
		}
	}
	return members, nil
}

func (a *Assembler) details(res *AssemblyResult) []string {
	c := res.Capacity
	out := []string{
		fmt.Sprintf("usable %s of %s raw (%.1f%%)", util.FormatBytes(c.UsableBytes), util.FormatBytes(c.TotalRawBytes), util.Round1(c.EfficiencyPercent)),
		"tolerates: " + c.ToleranceDescription,
	}
	out = append(out, c.Warnings...)
	for _, s := range res.States {
		if s.HasData {
			out = append(out, fmt.Sprintf("%s: %s will be torn down", s.Disk, strings.Join(s.Roles(), ", ")))
		} else {
			out = append(out, s.Disk+": clean, signatures will be wiped")
		}
	}
	if res.CachePlan != nil {
		for _, d := range res.CachePlan.Devices {
			out = append(out, fmt.Sprintf("cache: %s as %s", d.Disk.Name, d.Role))
		}
		out = append(out, res.CachePlan.Warnings...)
	}
	return out
}

// PoolSpec returns the zpool create spec for req over members.
func (a *Assembler) PoolSpec(req CreateRequest, members []model.Disk) tools.PoolSpec {
	ashift := req.Ashift
	if ashift == 0 {
		ashift = a.Config.ZFS.Ashift
	}
	if ashift == 0 {
		sectors := make([]uint32, 0, len(members))
		for _, d := range members {
			sectors = append(sectors, d.SectorSize)
		}
		ashift = tools.Ashift(sectors...)
	}
	var props []string
	if a.Config.ZFS.Compression != "" {
		props = append(props, "compression="+a.Config.ZFS.Compression)
	}
	if a.Config.ZFS.Atime != "" {
		props = append(props, "atime="+a.Config.ZFS.Atime)
	}
	return tools.PoolSpec{
		Name:       req.Name,
		Ashift:     ashift,
		Properties: props,
		MountPoint: req.MountPoint,
		VDevs:      VDevs(req.Topology, members),
	}
}

// VDevs groups members into top-level vdevs. Mirrors are built in pairs and
// an odd disk joins the last pair.
func VDevs(topology model.Topology, members []model.Disk) []tools.VDev {
	paths := make([]string, len(members))
	for i, d := range members {
		paths[i] = d.DevicePath()
	}
	switch {
	case topology.IsStripe():
		vdevs := make([]tools.VDev, 0, len(paths))
		for _, p := range paths {
			vdevs = append(vdevs, tools.VDev{Devices: []string{p}})
		}
		return vdevs
	case topology.IsMirror():
		var vdevs []tools.VDev
		for i := 0; i+1 < len(paths); i += 2 {
			vdevs = append(vdevs, tools.VDev{Type: "mirror", Devices: []string{paths[i], paths[i+1]}})
		}
		if len(paths)%2 == 1 && len(vdevs) > 0 {
			last := &vdevs[len(vdevs)-1]
			last.Devices = append(last.Devices, paths[len(paths)-1])
		}
		return vdevs
	}
	return []tools.VDev{{Type: string(topology), Devices: paths}}
}

func (a *Assembler) createZFS(ctx context.Context, req CreateRequest, members []model.Disk) error {
	return a.Tools.ZFS.Create(ctx, a.PoolSpec(req, members))
}

func (a *Assembler) createBtrfs(ctx context.Context, req CreateRequest, members []model.Disk) error {
	spec := tools.MkfsSpec{
		Label:       req.Name,
		DataProfile: req.Topology.BtrfsProfile(),
		MetaProfile: req.Topology.BtrfsMetadataProfile(),
	}
	for _, d := range members {
		spec.Devices = append(spec.Devices, d.DevicePath())
	}
	if err := a.Tools.Btrfs.Mkfs(ctx, spec); err != nil {
		return err
	}
	if req.MountPoint == "" {
		return nil
	}
	mkdir := a.MkdirAll
	if mkdir == nil {
		mkdir = os.MkdirAll
	}
	if err := mkdir(req.MountPoint, 0o755); err != nil {
		return fmt.Errorf("mount point: %w", err)
	}
	opts := ""
	if a.Config.Btrfs.Compression != "" {
		opts = "compress=" + a.Config.Btrfs.Compression
	}
	return a.Tools.Disk.Mount(ctx, spec.Devices[0], req.MountPoint, "btrfs", opts)
}

func (a *Assembler) confirmer() Confirmer {
	if a.Confirm == nil {
		return Decline
	}
	return a.Confirm
}

func (a *Assembler) log() *logrus.Entry {
	if a.Log == nil {
		return logrus.WithField("component", "assembly")
	}
	return a.Log
}
