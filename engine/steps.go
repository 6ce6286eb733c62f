package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"

	"github.com/ftahirops/xraid/collector"
	"github.com/ftahirops/xraid/model"
)

// Plan returns the ordered teardown steps for disk without running them.
// Order: unmount, zfs, btrfs, md, lvm, wipe.
func (t *Teardown) Plan(disk model.Disk, state model.DiskResidualState) []Step {
	var steps []Step
	steps = append(steps, t.unmountSteps(state)...)
	for _, pool := range state.ZFSPools {
		steps = append(steps, t.zfsSteps(pool)...)
	}
	for _, uuid := range state.BtrfsFilesystems {
		steps = append(steps, t.btrfsStep(disk, uuid, state.BtrfsDevices[uuid]))
	}
	for _, array := range state.MDArrays {
		steps = append(steps, Step{
			Phase: PhaseMD,
			Name:  "stop " + array,
			Run:   func(ctx context.Context) error { return t.Tools.MD.Stop(ctx, array) },
		})
	}
	for _, vg := range state.LVMVolumeGroups {
		steps = append(steps, t.lvmSteps(disk, vg, state.LVMPhysicalVolumes[vg])...)
	}
	return append(steps, t.wipeSteps(disk, state.Partitions)...)
}

func (t *Teardown) unmountSteps(state model.DiskResidualState) []Step {
	mounted := append([]model.MountedPartition(nil), state.MountedPartitions...)
	// nested mount points first
	sort.SliceStable(mounted, func(i, j int) bool {
		return strings.Count(mounted[i].MountPoint, "/") > strings.Count(mounted[j].MountPoint, "/")
	})
	var steps []Step
	for _, m := range mounted {
		mp := m.MountPoint
		steps = append(steps, Step{
			Phase:    PhaseUnmount,
			Name:     fmt.Sprintf("unmount %s (%s)", mp, m.Partition),
			Run:      func(ctx context.Context) error { return t.Tools.Disk.Unmount(ctx, mp, false) },
			Fallback: func(ctx context.Context) error { return t.Tools.Disk.Unmount(ctx, mp, true) },
		})
	}
	return steps
}

func (t *Teardown) zfsSteps(pool string) []Step {
	z := t.Tools.ZFS
	return []Step{
		{
			Phase:         PhaseZFS,
			Name:          "export " + pool,
			Run:           func(ctx context.Context) error { return z.Export(ctx, pool) },
			IgnoreFailure: true,
		},
		{
			// an exported pool cannot be destroyed; bring it back without mounting
			Phase:         PhaseZFS,
			Name:          "import " + pool,
			Run:           func(ctx context.Context) error { return z.Import(ctx, pool) },
			IgnoreFailure: true,
		},
		{
			Phase: PhaseZFS,
			Name:  "destroy " + pool,
			Run:   func(ctx context.Context) error { return z.Destroy(ctx, pool) },
			Fallback: func(ctx context.Context) error {
				mps, err := z.Mountpoints(ctx, pool)
				if err != nil {
					t.Log.WithField("pool", pool).Debugf("cannot list dataset mountpoints: %v", err)
				}
				// deepest datasets first
				sort.Sort(sort.Reverse(sort.StringSlice(mps)))
				for _, mp := range mps {
					if uerr := t.Tools.Disk.Unmount(ctx, mp, true); uerr != nil {
						t.Log.WithField("pool", pool).Debugf("forced unmount %s: %v", mp, uerr)
					}
				}
				return z.Destroy(ctx, pool)
			},
			Manual: true,
		},
	}
}

func (t *Teardown) btrfsStep(disk model.Disk, uuid string, devices []string) Step {
	live := func() ([]collector.Mount, error) {
		if t.Mounts == nil {
			return nil, nil
		}
		mounts, err := t.Mounts.Mounts()
		if err != nil {
			return nil, err
		}
		found := collector.MountsFrom(mounts, devices)
		for _, m := range collector.MountsOnDisk(mounts, disk.Name) {
			if m.FSType == "btrfs" && !containsMount(found, m) {
				found = append(found, m)
			}
		}
		return found, nil
	}
	unmountAll := func(ctx context.Context, forced bool) error {
		mounts, err := live()
		if err != nil {
			return err
		}
		var errs error
		for _, m := range mounts {
			errs = multierr.Append(errs, t.Tools.Disk.Unmount(ctx, m.MountPoint, forced))
		}
		return errs
	}
	return Step{
		Phase:    PhaseBtrfs,
		Name:     "unmount btrfs " + uuid,
		Run:      func(ctx context.Context) error { return unmountAll(ctx, false) },
		Fallback: func(ctx context.Context) error { return unmountAll(ctx, true) },
	}
}

func containsMount(list []collector.Mount, m collector.Mount) bool {
	for _, x := range list {
		if x.MountPoint == m.MountPoint {
			return true
		}
	}
	return false
}

func (t *Teardown) lvmSteps(disk model.Disk, vg string, pvs []string) []Step {
	l := t.Tools.LVM
	steps := []Step{{
		Phase: PhaseLVM,
		Name:  "deactivate " + vg,
		Run:   func(ctx context.Context) error { return l.Deactivate(ctx, vg) },
	}}
	for _, pv := range pvs {
		steps = append(steps,
			Step{
				Phase: PhaseLVM,
				Name:  fmt.Sprintf("remove %s from %s", pv, vg),
				Run:   func(ctx context.Context) error { return l.Reduce(ctx, vg, pv) },
				// the last PV cannot leave its VG; the VG goes only when no other disk backs it
				Fallback: func(ctx context.Context) error {
					others, err := t.otherPVs(ctx, vg, disk.Name)
					if err != nil {
						return fmt.Errorf("list physical volumes of %s: %w", vg, err)
					}
					if len(others) > 0 {
						return fmt.Errorf("%s is still backed by %s, not removing it", vg, strings.Join(others, ", "))
					}
					return l.RemoveGroup(ctx, vg)
				},
				Manual: true,
			},
			Step{
				Phase: PhaseLVM,
				Name:  "remove pv label " + pv,
				Run:   func(ctx context.Context) error { return l.RemovePV(ctx, pv) },
			},
		)
	}
	return steps
}

// otherPVs lists the physical volumes of vg that live outside disk.
func (t *Teardown) otherPVs(ctx context.Context, vg, disk string) ([]string, error) {
	pvs, err := t.Tools.LVM.GroupMembers(ctx, vg)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, pv := range pvs {
		if !model.BelongsTo(pv, disk) {
			out = append(out, pv)
		}
	}
	return out, nil
}

func (t *Teardown) wipeSteps(disk model.Disk, partitions []string) []Step {
	dev := disk.DevicePath()
	targets := make([]string, 0, len(partitions)+1)
	for _, p := range partitions {
		targets = append(targets, model.DevicePath(p))
	}
	targets = append(targets, dev)

	var steps []Step
	for _, target := range targets {
		steps = append(steps, Step{
			Phase:         PhaseWipe,
			Name:          "clear zfs labels " + target,
			Run:           func(ctx context.Context) error { return t.Tools.ZFS.LabelClear(ctx, target) },
			IgnoreFailure: true,
		})
	}
	for _, target := range targets {
		steps = append(steps, Step{
			Phase:         PhaseWipe,
			Name:          "zero md superblock " + target,
			Run:           func(ctx context.Context) error { return t.Tools.MD.ZeroSuperblock(ctx, target) },
			IgnoreFailure: true,
		})
	}
	for _, target := range targets {
		steps = append(steps, Step{
			Phase: PhaseWipe,
			Name:  "wipe signatures " + target,
			Run:   func(ctx context.Context) error { return t.Tools.Disk.WipeSignatures(ctx, target) },
		})
	}

	// GPT keeps a backup header in the last sectors, so the tail is addressed
	// in bytes from the real end of the device
	edge := t.Wipe.EdgeZeroMiB << 20
	size := disk.SizeBytes
	if edge > 0 {
		head := edge
		if size > 0 && head > size {
			head = size
		}
		steps = append(steps, Step{
			Phase: PhaseWipe,
			Name:  fmt.Sprintf("zero first %d bytes", head),
			Run:   func(ctx context.Context) error { return t.Tools.Disk.ZeroRange(ctx, dev, 0, head) },
		})
		if size > head {
			steps = append(steps, Step{
				Phase: PhaseWipe,
				Name:  fmt.Sprintf("zero last %d bytes", edge),
				Run:   func(ctx context.Context) error { return t.Tools.Disk.ZeroRange(ctx, dev, size-edge, edge) },
			})
		}
	}

	steps = append(steps,
		Step{
			Phase: PhaseWipe,
			Name:  "clear partition table",
			Run:   func(ctx context.Context) error { return t.Tools.Disk.ClearPartitionTable(ctx, dev) },
		},
		Step{
			Phase: PhaseWipe,
			Name:  "reread partition table",
			Run:   func(ctx context.Context) error { return t.Tools.Disk.RereadPartitions(ctx, dev) },
		},
		Step{
			Phase: PhaseWipe,
			Name:  "udev settle",
			Run:   func(ctx context.Context) error { return t.Tools.Disk.Settle(ctx) },
		},
		Step{
			Phase: PhaseWipe,
			Name:  fmt.Sprintf("wait %s for device nodes", t.Wipe.SettleDelay()),
			Run: func(context.Context) error {
				t.sleep(t.Wipe.SettleDelay())
				return nil
			},
		},
	)
	return steps
}
