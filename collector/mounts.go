package collector

import (
	"path/filepath"
	"strings"

	"github.com/moby/sys/mountinfo"

	"github.com/ftahirops/xraid/model"
)

// pseudoFS lists filesystem types that are never backed by a block device.
var pseudoFS = map[string]bool{
	"sysfs": true, "proc": true, "devtmpfs": true, "tmpfs": true,
	"cgroup": true, "cgroup2": true, "debugfs": true, "tracefs": true,
	"securityfs": true, "hugetlbfs": true, "mqueue": true, "fusectl": true,
	"configfs": true, "pstore": true, "bpf": true, "ramfs": true,
	"rpc_pipefs": true, "nsfs": true, "autofs": true, "efivarfs": true,
	"devpts": true, "overlay": true,
}

// Mount is one mounted block-backed filesystem.
type Mount struct {
	Source     string
	MountPoint string
	FSType     string
}

// Device returns the kernel name of the mount source, following symlinks
// such as /dev/disk/by-uuid/* and /dev/mapper/*.
func (m Mount) Device() string {
	src := m.Source
	if resolved, err := filepath.EvalSymlinks(src); err == nil {
		src = resolved
	}
	return model.KernelName(src)
}

// MountTable lists the mounted filesystems of the host.
type MountTable interface {
	Mounts() ([]Mount, error)
}

// MountInfo reads /proc/self/mountinfo.
type MountInfo struct{}

func (MountInfo) Mounts() ([]Mount, error) {
	infos, err := mountinfo.GetMounts(func(info *mountinfo.Info) (skip, stop bool) {
		return pseudoFS[info.FSType] || !strings.HasPrefix(info.Source, "/dev/"), false
	})
	if err != nil {
		return nil, err
	}
	mounts := make([]Mount, 0, len(infos))
	for _, info := range infos {
		mounts = append(mounts, Mount{
			Source:     info.Source,
			MountPoint: info.Mountpoint,
			FSType:     info.FSType,
		})
	}
	return mounts, nil
}

// StaticMounts is a fixed MountTable.
type StaticMounts struct {
	List []Mount
	Err  error
}

func (s StaticMounts) Mounts() ([]Mount, error) { return s.List, s.Err }

// MountsOnDisk returns the mounts whose source is disk or one of its partitions.
func MountsOnDisk(mounts []Mount, disk string) []Mount {
	var out []Mount
	for _, m := range mounts {
		if model.BelongsTo(m.Device(), disk) {
			out = append(out, m)
		}
	}
	return out
}

// MountsFrom returns the mounts whose source is one of devices.
func MountsFrom(mounts []Mount, devices []string) []Mount {
	want := make(map[string]bool, len(devices))
	for _, d := range devices {
		want[model.KernelName(d)] = true
	}
	var out []Mount
	for _, m := range mounts {
		if want[m.Device()] {
			out = append(out, m)
		}
	}
	return out
}
