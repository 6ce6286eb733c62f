package collector

import (
	"sync"

	"github.com/jaypipes/ghw"
	"github.com/jaypipes/ghw/pkg/block"
	"github.com/jaypipes/ghw/pkg/option"
)

// MediaInfo answers media questions the block tree may leave open.
type MediaInfo interface {
	// Rotational reports whether disk is mechanical; known is false when the
	// hardware inventory has no answer.
	Rotational(disk string) (rotational, known bool)
	// NVMe reports whether disk sits on an NVMe controller.
	NVMe(disk string) bool
}

// HardwareMedia reads media details from sysfs through ghw, once.
type HardwareMedia struct {
	// Chroot points ghw at an alternate root, "/" when empty.
	Chroot string

	once  sync.Once
	disks map[string]*block.Disk
	err   error
}

func (h *HardwareMedia) load() {
	h.once.Do(func() {
		opts := []*option.Option{option.WithDisableTools()}
		if h.Chroot != "" {
			opts = append(opts, option.WithChroot(h.Chroot))
		}
		info, err := ghw.Block(opts...)
		if err != nil {
			h.err = err
			return
		}
		h.disks = make(map[string]*block.Disk, len(info.Disks))
		for _, d := range info.Disks {
			h.disks[d.Name] = d
		}
	})
}

// Err returns the inventory load error, if any.
func (h *HardwareMedia) Err() error {
	h.load()
	return h.err
}

func (h *HardwareMedia) Rotational(disk string) (bool, bool) {
	h.load()
	d, ok := h.disks[disk]
	if !ok {
		return false, false
	}
	switch d.DriveType {
	case block.DRIVE_TYPE_HDD, block.DRIVE_TYPE_FDD, block.DRIVE_TYPE_ODD:
		return true, true
	case block.DRIVE_TYPE_SSD:
		return false, true
	}
	return false, false
}

func (h *HardwareMedia) NVMe(disk string) bool {
	h.load()
	d, ok := h.disks[disk]
	return ok && d.StorageController == block.STORAGE_CONTROLLER_NVME
}
