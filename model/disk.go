package model

import (
	"strconv"
	"strings"
)

// Disk is one whole block device as seen by an inventory scan.
// Disks are rebuilt on every scan and never persisted.
type Disk struct {
	Name           string   `json:"name"`
	SizeBytes      uint64   `json:"size_bytes"`
	SectorSize     uint32   `json:"sector_size"`
	Model          string   `json:"model,omitempty"`
	Serial         string   `json:"serial,omitempty"`
	Transport      string   `json:"transport,omitempty"`
	Rotational     *bool    `json:"rotational,omitempty"`
	IsSystem       bool     `json:"is_system"`
	SystemReason   string   `json:"system_reason,omitempty"`
	HasPartitions  bool     `json:"has_partitions"`
	FilesystemType string   `json:"filesystem_type,omitempty"`
	MountPoints    []string `json:"mount_points,omitempty"`
}

// wholeDiskNumbered lists device families whose whole-disk names end in digits.
var wholeDiskNumbered = []string{"nvme", "mmcblk", "loop", "md", "dm-", "zd", "nbd", "ram", "zram"}

// DevicePath returns the /dev node of the disk.
func (d Disk) DevicePath() string {
	return DevicePath(d.Name)
}

// DevicePath turns a kernel name into its /dev path. Paths are returned unchanged.
func DevicePath(name string) string {
	if strings.HasPrefix(name, "/") {
		return name
	}
	return "/dev/" + name
}

// KernelName strips a /dev/ prefix.
func KernelName(path string) string {
	return strings.TrimPrefix(path, "/dev/")
}

// PartitionName returns the kernel name of partition n on disk.
// Names ending in a digit (nvme0n1, mmcblk0, loop0) take a "p" separator.
func PartitionName(disk string, n int) string {
	sep := ""
	if disk != "" {
		last := disk[len(disk)-1]
		if last >= '0' && last <= '9' {
			sep = "p"
		}
	}
	return disk + sep + strconv.Itoa(n)
}

// ParentDisk strips the partition suffix from a kernel device name:
// sda1 -> sda, nvme0n1p2 -> nvme0n1, mmcblk0p1 -> mmcblk0.
// Names without a partition suffix are returned unchanged.
func ParentDisk(name string) string {
	name = KernelName(name)
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	if i == len(name) || i == 0 {
		return name
	}
	// nvme0n1p2 / mmcblk0p1: digits preceded by 'p' which follows a digit
	if name[i-1] == 'p' && i >= 2 && name[i-2] >= '0' && name[i-2] <= '9' {
		return name[:i-1]
	}
	// nvme0n1 / mmcblk0 without a partition: the trailing digits belong to the disk
	for _, prefix := range wholeDiskNumbered {
		if strings.HasPrefix(name, prefix) {
			return name
		}
	}
	return name[:i]
}

// BelongsTo reports whether device (a kernel name or /dev path) is disk
// itself or one of its numbered partitions.
func BelongsTo(device, disk string) bool {
	device = KernelName(device)
	disk = KernelName(disk)
	if disk == "" {
		return false
	}
	if device == disk {
		return true
	}
	if !strings.HasPrefix(device, disk) {
		return false
	}
	rest := device[len(disk):]
	last := disk[len(disk)-1]
	if last >= '0' && last <= '9' {
		if !strings.HasPrefix(rest, "p") {
			return false
		}
		rest = rest[1:]
	}
	if rest == "" {
		return false
	}
	for _, c := range rest {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
