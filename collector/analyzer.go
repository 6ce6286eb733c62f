package collector

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ftahirops/xraid/model"
	"github.com/ftahirops/xraid/tools"
)

// Analyzer inspects a disk for every storage role it still holds.
type Analyzer struct {
	registry *Registry
	log      *logrus.Entry
}

// NewAnalyzer registers the partition, pool, btrfs, md and LVM probes.
func NewAnalyzer(ts *tools.Set, mounts MountTable, log *logrus.Entry) *Analyzer {
	if log == nil {
		log = logrus.WithField("component", "analyzer")
	}
	return &Analyzer{
		registry: NewRegistry(
			&PartitionProbe{Lister: ts.Lsblk, Mounts: mounts},
			&ZFSProbe{ZFS: ts.ZFS, Log: log},
			&BtrfsProbe{Btrfs: ts.Btrfs, Log: log},
			&MDProbe{MD: ts.MD},
			&LVMProbe{LVM: ts.LVM},
		),
		log: log,
	}
}

// NewAnalyzerWith builds an analyzer over custom probes.
func NewAnalyzerWith(log *logrus.Entry, probes ...Probe) *Analyzer {
	if log == nil {
		log = logrus.WithField("component", "analyzer")
	}
	return &Analyzer{registry: NewRegistry(probes...), log: log}
}

// Analyze runs all probes against disk. It is read-only and repeatable.
// Probe failures are recorded in the state, not returned.
func (a *Analyzer) Analyze(ctx context.Context, disk model.Disk) (model.DiskResidualState, error) {
	state := model.DiskResidualState{Disk: disk.Name}
	if disk.Name == "" {
		return state, fmt.Errorf("analyze: empty disk name")
	}
	log := a.log.WithField("disk", disk.Name)
	log.WithField("probes", a.registry.Names()).Debug("analyzing")

	for _, perr := range a.registry.ProbeAll(ctx, disk, &state) {
		if state.ProbeErrors == nil {
			state.ProbeErrors = map[string]string{}
		}
		state.ProbeErrors[perr.Probe] = perr.Err.Error()
		if tools.IsAbsent(perr.Err) {
			log.WithField("probe", perr.Probe).Debugf("feature unavailable: %v", perr.Err)
			continue
		}
		log.WithField("probe", perr.Probe).Warnf("probe failed: %v", perr.Err)
	}
	state.Refresh()
	log.WithField("has_data", state.HasData).Debugf("analysis done: %v", state.Roles())
	return state, nil
}

// PartitionProbe records child devices and their mounts.
type PartitionProbe struct {
	Lister BlockLister
	Mounts MountTable
}

func (p *PartitionProbe) Name() string { return "partitions" }

func (p *PartitionProbe) Probe(ctx context.Context, disk model.Disk, state *model.DiskResidualState) error {
	devs, err := p.Lister.List(ctx, disk.DevicePath())
	if err != nil {
		return err
	}
	seen := map[string]bool{}
	addMount := func(part, mp string) {
		if mp == "" || seen[mp] {
			return
		}
		seen[mp] = true
		state.MountedPartitions = append(state.MountedPartitions, model.MountedPartition{Partition: part, MountPoint: mp})
	}

	for _, dev := range devs {
		if dev.Name != disk.Name {
			continue
		}
		addMount(dev.Name, dev.MountPoint)
		// a whole-disk md, zfs or filesystem superblock with no partition table
		state.Signature = dev.FSType
		for _, child := range dev.Children {
			state.Partitions = append(state.Partitions, child.Name)
		}
		dev.Walk(func(child tools.BlockDevice) {
			addMount(child.Name, child.MountPoint)
		})
	}

	// the block tree shows one mount point per device; bind and extra mounts
	// come from the mount table
	if p.Mounts != nil {
		mounts, err := p.Mounts.Mounts()
		if err != nil {
			return err
		}
		for _, m := range MountsOnDisk(mounts, disk.Name) {
			addMount(m.Device(), m.MountPoint)
		}
	}
	return nil
}

// ZFSProbe finds pools with a vdev on the disk.
type ZFSProbe struct {
	ZFS tools.ZFS
	Log *logrus.Entry
}

func (p *ZFSProbe) Name() string { return "zfs" }

func (p *ZFSProbe) Probe(ctx context.Context, disk model.Disk, state *model.DiskResidualState) error {
	pools, skipped, err := p.ZFS.Status(ctx)
	if err != nil {
		return err
	}
	logSkipped(p.Log, "zpool status", skipped)
	for _, pool := range pools {
		for _, dev := range pool.Devices() {
			if model.BelongsTo(dev, disk.Name) {
				state.ZFSPools = appendUnique(state.ZFSPools, pool.Name)
				break
			}
		}
	}
	return nil
}

// BtrfsProbe finds multi-device filesystems with a member on the disk.
type BtrfsProbe struct {
	Btrfs tools.Btrfs
	Log   *logrus.Entry
}

func (p *BtrfsProbe) Name() string { return "btrfs" }

func (p *BtrfsProbe) Probe(ctx context.Context, disk model.Disk, state *model.DiskResidualState) error {
	fss, skipped, err := p.Btrfs.Show(ctx)
	if err != nil {
		return err
	}
	logSkipped(p.Log, "btrfs filesystem show", skipped)
	for _, fs := range fss {
		for _, path := range fs.DevicePaths() {
			if !model.BelongsTo(path, disk.Name) {
				continue
			}
			state.BtrfsFilesystems = appendUnique(state.BtrfsFilesystems, fs.UUID)
			if state.BtrfsDevices == nil {
				state.BtrfsDevices = map[string][]string{}
			}
			state.BtrfsDevices[fs.UUID] = fs.DevicePaths()
			break
		}
	}
	return nil
}

// MDProbe finds arrays in the running table that use the disk.
type MDProbe struct {
	MD tools.MD
}

func (p *MDProbe) Name() string { return "md" }

func (p *MDProbe) Probe(_ context.Context, disk model.Disk, state *model.DiskResidualState) error {
	arrays, err := p.MD.Arrays()
	if err != nil {
		return err
	}
	for _, a := range arrays {
		for _, dev := range a.Devices {
			if model.BelongsTo(dev, disk.Name) {
				state.MDArrays = appendUnique(state.MDArrays, a.Name)
				break
			}
		}
	}
	return nil
}

// LVMProbe finds volume groups with a physical volume on the disk.
type LVMProbe struct {
	LVM tools.LVM
}

func (p *LVMProbe) Name() string { return "lvm" }

func (p *LVMProbe) Probe(ctx context.Context, disk model.Disk, state *model.DiskResidualState) error {
	pvs, err := p.LVM.PhysicalVolumes(ctx)
	if err != nil {
		return err
	}
	for _, pv := range pvs {
		if pv.VGName == "" || !model.BelongsTo(pv.Name, disk.Name) {
			continue
		}
		state.LVMVolumeGroups = appendUnique(state.LVMVolumeGroups, pv.VGName)
		if state.LVMPhysicalVolumes == nil {
			state.LVMPhysicalVolumes = map[string][]string{}
		}
		state.LVMPhysicalVolumes[pv.VGName] = append(state.LVMPhysicalVolumes[pv.VGName], pv.Name)
	}
	return nil
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func logSkipped(log *logrus.Entry, source string, lines []string) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	for _, l := range lines {
		log.WithField("source", source).Debugf("skipping unparseable line: %q", l)
	}
}
