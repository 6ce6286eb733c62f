package tools

import (
	"context"
	"errors"
	"io/fs"

	"github.com/prometheus/procfs"

	"github.com/ftahirops/xraid/model"
	"github.com/ftahirops/xraid/util"
)

// MD reads the running software RAID table and drives mdadm.
type MD struct {
	Runner Runner
	// ProcRoot is the procfs mount point, /proc when empty.
	ProcRoot string
}

// Arrays returns every array in the running table. A host without the md
// driver has no table and yields no arrays.
func (m MD) Arrays() ([]model.MDArray, error) {
	root := m.ProcRoot
	if root == "" {
		root = procfs.DefaultMountPoint
	}
	pfs, err := procfs.NewFS(root)
	if err != nil {
		return nil, err
	}
	stats, err := pfs.MDStat()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	arrays := make([]model.MDArray, 0, len(stats))
	for _, s := range stats {
		a := model.MDArray{
			Name:    s.Name,
			State:   s.ActivityState,
			Devices: append([]string(nil), s.Devices...),
		}
		if s.BlocksTotal > 0 {
			a.SyncPercent = util.Round1(util.Percent(uint64(s.BlocksSynced), uint64(s.BlocksTotal)))
		}
		arrays = append(arrays, a)
	}
	return arrays, nil
}

// FillLevels asks mdadm for the RAID level of each array. Arrays mdadm
// cannot describe keep an empty level.
func (m MD) FillLevels(ctx context.Context, arrays []model.MDArray) {
	for i := range arrays {
		arrays[i].Level = m.level(ctx, arrays[i].Name)
	}
}

func (m MD) level(ctx context.Context, name string) string {
	out, err := m.Runner.Run(ctx, "mdadm", "--detail", "--export", model.DevicePath(name))
	if err != nil {
		return ""
	}
	return ParseMDExport(out)["MD_LEVEL"]
}

// ParseMDExport parses mdadm --detail --export KEY=VALUE output.
func ParseMDExport(out []byte) map[string]string {
	return util.ParseKeyValueLines(util.Lines(out))
}

// Stop stops an array.
func (m MD) Stop(ctx context.Context, array string) error {
	_, err := m.Runner.Run(ctx, "mdadm", "--stop", model.DevicePath(array))
	return err
}

// ZeroSuperblock erases the md superblock of a member device.
func (m MD) ZeroSuperblock(ctx context.Context, device string) error {
	_, err := m.Runner.Run(ctx, "mdadm", "--zero-superblock", device)
	return err
}
