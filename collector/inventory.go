package collector

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ftahirops/xraid/model"
	"github.com/ftahirops/xraid/tools"
)

// BlockLister enumerates the block device tree.
type BlockLister interface {
	List(ctx context.Context, devices ...string) ([]tools.BlockDevice, error)
}

// PoolStatuser reports the vdev tree of ZFS pools.
type PoolStatuser interface {
	Status(ctx context.Context, pools ...string) ([]model.PoolStatus, []string, error)
}

// Inventory builds the canonical disk list and marks protected disks.
type Inventory struct {
	Lister BlockLister
	Mounts MountTable
	Policy ProtectionPolicy
	// Pools resolves the members of a ZFS pool holding a critical mount.
	Pools PoolStatuser
	Log   *logrus.Entry
}

// Scan enumerates whole disks. It never writes anything.
func (inv *Inventory) Scan(ctx context.Context) ([]model.Disk, error) {
	devs, err := inv.Lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate block devices: %w", err)
	}

	mounts, mountErr := inv.Mounts.Mounts()
	if mountErr != nil {
		inv.log().WithError(mountErr).Warn("mount enumeration failed, protecting the static device list only")
	}
	prot := inv.Policy.Resolve(mounts, mountErr)
	if err := inv.protectPools(ctx, prot); err != nil {
		return nil, err
	}

	var disks []model.Disk
	for _, dev := range devs {
		if dev.Type != "disk" {
			continue
		}
		disk := inv.toDisk(dev, prot)
		if !disk.IsSystem && inv.Policy.Excluded(disk.Name) {
			inv.log().WithField("disk", disk.Name).Debug("excluded by pattern")
			continue
		}
		if disk.IsSystem {
			inv.log().WithField("disk", disk.Name).Debugf("protected: %s", disk.SystemReason)
		}
		disks = append(disks, disk)
	}
	return disks, nil
}

// protectPools adds the member disks of ZFS pools that back critical mounts.
// A pool whose members cannot be listed fails the scan: none of its disks
// could be told apart from free ones.
func (inv *Inventory) protectPools(ctx context.Context, prot *Protection) error {
	for _, pool := range prot.Pools() {
		if inv.Pools == nil {
			return fmt.Errorf("zfs pool %s backs a system mount but pool members cannot be listed", pool)
		}
		status, _, err := inv.Pools.Status(ctx, pool)
		if err != nil {
			return fmt.Errorf("list members of system pool %s: %w", pool, err)
		}
		found := false
		for _, ps := range status {
			if ps.Name != pool {
				continue
			}
			found = true
			prot.AddPoolMembers(pool, ps.Devices())
		}
		if !found {
			return fmt.Errorf("system pool %s missing from zpool status", pool)
		}
		inv.log().WithField("pool", pool).Debug("protected root pool members")
	}
	return nil
}

func (inv *Inventory) toDisk(dev tools.BlockDevice, prot *Protection) model.Disk {
	disk := model.Disk{
		Name:           dev.Name,
		SizeBytes:      uint64(dev.Size),
		SectorSize:     uint32(dev.PhySec),
		Model:          dev.Model,
		Serial:         dev.Serial,
		Transport:      dev.Tran,
		Rotational:     dev.Rota.Ptr(),
		FilesystemType: dev.FSType,
	}
	if dev.MountPoint != "" {
		disk.MountPoints = append(disk.MountPoints, dev.MountPoint)
		if inv.Policy.Critical(dev.MountPoint) {
			disk.IsSystem = true
			disk.SystemReason = "mounted at " + dev.MountPoint
		}
	}
	dev.Walk(func(child tools.BlockDevice) {
		if child.Type == "part" {
			disk.HasPartitions = true
		}
		if child.MountPoint == "" {
			return
		}
		disk.MountPoints = append(disk.MountPoints, child.MountPoint)
		if !disk.IsSystem && inv.Policy.Critical(child.MountPoint) {
			disk.IsSystem = true
			disk.SystemReason = child.Name + " mounted at " + child.MountPoint
		}
	})
	if prot.Contains(dev.Name) {
		disk.IsSystem = true
		disk.SystemReason = prot.Reason(dev.Name)
	}
	return disk
}

func (inv *Inventory) log() *logrus.Entry {
	if inv.Log == nil {
		return logrus.WithField("component", "inventory")
	}
	return inv.Log
}

// Selectable filters disks down to those usable as pool members or cache.
func Selectable(disks []model.Disk) []model.Disk {
	var out []model.Disk
	for _, d := range disks {
		if !d.IsSystem {
			out = append(out, d)
		}
	}
	return out
}

// Find returns the disk named name (kernel name or /dev path).
func Find(disks []model.Disk, name string) (model.Disk, bool) {
	name = model.KernelName(name)
	for _, d := range disks {
		if d.Name == name {
			return d, true
		}
	}
	return model.Disk{}, false
}
