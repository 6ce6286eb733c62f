package model

import "strings"

// PoolSummary is one line of zpool list.
type PoolSummary struct {
	Name       string  `json:"name"`
	Health     string  `json:"health"`
	SizeBytes  uint64  `json:"size_bytes"`
	AllocBytes uint64  `json:"alloc_bytes"`
	FreeBytes  uint64  `json:"free_bytes"`
	CapacityPc float64 `json:"capacity_pct"`
	Dedup      string  `json:"dedup,omitempty"`
}

// Dataset is one ZFS filesystem as listed by zfs list.
type Dataset struct {
	Name       string `json:"name"`
	UsedBytes  uint64 `json:"used_bytes"`
	AvailBytes uint64 `json:"avail_bytes"`
	MountPoint string `json:"mount_point,omitempty"`
}

// Pool returns the pool a dataset lives in.
func (d Dataset) Pool() string {
	pool, _, _ := strings.Cut(d.Name, "/")
	return pool
}

// VDevStatus is one row of the config block in zpool status.
type VDevStatus struct {
	Name     string `json:"name"`
	State    string `json:"state"`
	Read     uint64 `json:"read"`
	Write    uint64 `json:"write"`
	Checksum uint64 `json:"checksum"`
	Depth    int    `json:"depth"`
}

// PoolStatus is the parsed output of zpool status for one pool.
type PoolStatus struct {
	Name  string       `json:"name"`
	State string       `json:"state"`
	Scan  string       `json:"scan,omitempty"`
	VDevs []VDevStatus `json:"vdevs"`
}

// Devices returns the leaf device names of the pool (rows that look like block devices).
func (p PoolStatus) Devices() []string {
	var out []string
	for _, v := range p.VDevs {
		if v.Depth == 0 || !looksLikeDevice(v.Name) {
			continue
		}
		out = append(out, v.Name)
	}
	return out
}

func looksLikeDevice(name string) bool {
	switch {
	case name == "logs", name == "cache", name == "spares", name == "special", name == "dedup":
		return false
	}
	for _, prefix := range []string{"mirror-", "raidz1-", "raidz2-", "raidz3-", "raidz-", "draid", "replacing-", "spare-"} {
		if strings.HasPrefix(name, prefix) {
			return false
		}
	}
	return true
}

// BtrfsFilesystem is one filesystem block of btrfs filesystem show.
type BtrfsFilesystem struct {
	Label      string        `json:"label,omitempty"`
	UUID       string        `json:"uuid"`
	Devices    []BtrfsDevice `json:"devices"`
	TotalBytes uint64        `json:"total_bytes,omitempty"`
	UsedBytes  uint64        `json:"used_bytes,omitempty"`
	MountPoint string        `json:"mount_point,omitempty"`
}

// BtrfsDevice is one devid line.
type BtrfsDevice struct {
	ID        int    `json:"id"`
	Path      string `json:"path"`
	SizeBytes uint64 `json:"size_bytes"`
	UsedBytes uint64 `json:"used_bytes"`
}

// DevicePaths returns the member device paths.
func (f BtrfsFilesystem) DevicePaths() []string {
	out := make([]string, 0, len(f.Devices))
	for _, d := range f.Devices {
		out = append(out, d.Path)
	}
	return out
}

// MDArray is one array of the running md table.
type MDArray struct {
	Name        string   `json:"name"`
	Level       string   `json:"level,omitempty"`
	State       string   `json:"state"`
	Devices     []string `json:"devices"`
	SyncPercent float64  `json:"sync_percent"`
}

// VolumeGroup is one LVM volume group with its members.
type VolumeGroup struct {
	Name            string           `json:"name"`
	SizeBytes       uint64           `json:"size_bytes"`
	FreeBytes       uint64           `json:"free_bytes"`
	PhysicalVolumes []PhysicalVolume `json:"physical_volumes,omitempty"`
	LogicalVolumes  []LogicalVolume  `json:"logical_volumes,omitempty"`
}

// PhysicalVolume is one LVM PV.
type PhysicalVolume struct {
	Name      string `json:"name"`
	VGName    string `json:"vg_name"`
	SizeBytes uint64 `json:"size_bytes"`
}

// LogicalVolume is one LVM LV.
type LogicalVolume struct {
	Name      string `json:"name"`
	VGName    string `json:"vg_name"`
	SizeBytes uint64 `json:"size_bytes"`
}

// StorageStatus aggregates every existing storage configuration on the host.
type StorageStatus struct {
	Pools        []PoolSummary     `json:"pools,omitempty"`
	PoolStatus   []PoolStatus      `json:"pool_status,omitempty"`
	Datasets     []Dataset         `json:"datasets,omitempty"`
	Btrfs        []BtrfsFilesystem `json:"btrfs,omitempty"`
	MDArrays     []MDArray         `json:"md_arrays,omitempty"`
	VolumeGroups []VolumeGroup     `json:"volume_groups,omitempty"`
	Unavailable  []string          `json:"unavailable,omitempty"`
}
