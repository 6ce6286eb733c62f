package model

import "strconv"

// MountedPartition pairs a partition (or the disk itself) with its mount point.
type MountedPartition struct {
	Partition  string `json:"partition"`
	MountPoint string `json:"mount_point"`
}

// DiskResidualState lists every storage role a disk still holds.
type DiskResidualState struct {
	Disk              string             `json:"disk"`
	Signature         string             `json:"signature,omitempty"`
	Partitions        []string           `json:"partitions,omitempty"`
	MountedPartitions []MountedPartition `json:"mounted_partitions,omitempty"`
	ZFSPools          []string           `json:"zfs_pools,omitempty"`
	BtrfsFilesystems  []string           `json:"btrfs_filesystems,omitempty"`
	MDArrays          []string           `json:"md_arrays,omitempty"`
	LVMVolumeGroups   []string           `json:"lvm_volume_groups,omitempty"`
	HasData           bool               `json:"has_data"`

	// BtrfsDevices maps a filesystem UUID to all of its member device paths.
	BtrfsDevices map[string][]string `json:"btrfs_devices,omitempty"`
	// LVMPhysicalVolumes maps a VG to the PVs of this disk that belong to it.
	LVMPhysicalVolumes map[string][]string `json:"lvm_physical_volumes,omitempty"`
	// ProbeErrors records probes that could not run, keyed by probe name.
	ProbeErrors map[string]string `json:"probe_errors,omitempty"`
}

// Refresh recomputes HasData from the collected memberships.
func (s *DiskResidualState) Refresh() {
	s.HasData = s.Signature != "" ||
		len(s.Partitions) > 0 ||
		len(s.MountedPartitions) > 0 ||
		len(s.ZFSPools) > 0 ||
		len(s.BtrfsFilesystems) > 0 ||
		len(s.MDArrays) > 0 ||
		len(s.LVMVolumeGroups) > 0
}

// Roles returns a short human summary of what was found, one entry per role.
func (s DiskResidualState) Roles() []string {
	var out []string
	add := func(kind string, names []string) {
		for _, n := range names {
			out = append(out, kind+" "+n)
		}
	}
	for _, m := range s.MountedPartitions {
		out = append(out, "mounted "+m.Partition+" at "+m.MountPoint)
	}
	add("zfs pool", s.ZFSPools)
	add("btrfs", s.BtrfsFilesystems)
	add("md array", s.MDArrays)
	add("volume group", s.LVMVolumeGroups)
	if len(out) == 0 && len(s.Partitions) > 0 {
		out = append(out, "partition table with "+strconv.Itoa(len(s.Partitions))+" partition(s)")
	}
	if len(out) == 0 && s.Signature != "" {
		out = append(out, "signature "+s.Signature)
	}
	return out
}
