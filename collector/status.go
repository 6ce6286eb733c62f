package collector

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ftahirops/xraid/model"
	"github.com/ftahirops/xraid/tools"
)

// Status gathers every existing storage configuration on the host. Each
// source is queried independently; a failing source is listed in
// Unavailable and the rest are still reported.
type Status struct {
	Tools  *tools.Set
	Mounts MountTable
	Log    *logrus.Entry
}

// Collect runs every status query.
func (s *Status) Collect(ctx context.Context) model.StorageStatus {
	var st model.StorageStatus
	log := s.Log
	if log == nil {
		log = logrus.WithField("component", "status")
	}
	unavailable := func(source string, err error) {
		st.Unavailable = append(st.Unavailable, source+": "+err.Error())
		if tools.IsAbsent(err) {
			log.WithField("source", source).Debugf("feature unavailable: %v", err)
			return
		}
		log.WithField("source", source).Warnf("query failed: %v", err)
	}

	pools, skipped, err := s.Tools.ZFS.List(ctx)
	logSkipped(log, "zpool list", skipped)
	if err != nil {
		unavailable("zfs", err)
	} else {
		st.Pools = pools
		if len(pools) > 0 {
			status, skipped, err := s.Tools.ZFS.Status(ctx)
			logSkipped(log, "zpool status", skipped)
			if err != nil {
				unavailable("zpool status", err)
			}
			st.PoolStatus = status

			ds, skipped, err := s.Tools.ZFS.Datasets(ctx)
			logSkipped(log, "zfs list", skipped)
			if err != nil {
				unavailable("zfs list", err)
			}
			st.Datasets = ds
		}
	}

	fss, skipped, err := s.Tools.Btrfs.Show(ctx)
	logSkipped(log, "btrfs filesystem show", skipped)
	if err != nil {
		unavailable("btrfs", err)
	}
	var mounts []Mount
	if len(fss) > 0 && s.Mounts != nil {
		if mounts, err = s.Mounts.Mounts(); err != nil {
			log.Debugf("mount table unavailable: %v", err)
		}
	}
	for i := range fss {
		mm := MountsFrom(mounts, fss[i].DevicePaths())
		if len(mm) == 0 {
			continue
		}
		fss[i].MountPoint = mm[0].MountPoint
		total, used, err := s.Tools.Btrfs.Usage(ctx, fss[i].MountPoint)
		if err != nil {
			log.WithField("uuid", fss[i].UUID).Debugf("usage unavailable: %v", err)
			continue
		}
		fss[i].TotalBytes, fss[i].UsedBytes = total, used
	}
	st.Btrfs = fss

	arrays, err := s.Tools.MD.Arrays()
	if err != nil {
		unavailable("md", err)
	}
	s.Tools.MD.FillLevels(ctx, arrays)
	st.MDArrays = arrays

	vgs, err := s.Tools.LVM.VolumeGroups(ctx)
	if err != nil {
		unavailable("lvm", err)
	}
	st.VolumeGroups = vgs
	return st
}
