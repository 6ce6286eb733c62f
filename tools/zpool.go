package tools

import (
	"context"
	"strconv"
	"strings"

	"github.com/ftahirops/xraid/model"
	"github.com/ftahirops/xraid/util"
)

// ZFS drives the zpool and zfs utilities.
type ZFS struct {
	Runner Runner
}

// VDev is one top-level vdev of a pool to create. Type is empty for a
// single-disk (striped) vdev.
type VDev struct {
	Type    string
	Devices []string
}

// PoolSpec describes a zpool create invocation.
type PoolSpec struct {
	Name       string
	Ashift     int
	Properties []string // -O key=value pairs, in order
	MountPoint string
	VDevs      []VDev
}

// Args returns the zpool arguments for spec.
func (s PoolSpec) Args() []string {
	args := []string{"create", "-f"}
	if s.Ashift > 0 {
		args = append(args, "-o", "ashift="+strconv.Itoa(s.Ashift))
	}
	for _, p := range s.Properties {
		args = append(args, "-O", p)
	}
	if s.MountPoint != "" {
		args = append(args, "-m", s.MountPoint)
	}
	args = append(args, s.Name)
	for _, v := range s.VDevs {
		if v.Type != "" {
			args = append(args, v.Type)
		}
		args = append(args, v.Devices...)
	}
	return args
}

// Create runs zpool create.
func (z ZFS) Create(ctx context.Context, spec PoolSpec) error {
	_, err := z.Runner.Run(ctx, "zpool", spec.Args()...)
	return err
}

// List returns the imported pools.
func (z ZFS) List(ctx context.Context) ([]model.PoolSummary, []string, error) {
	out, err := z.Runner.Run(ctx, "zpool", "list", "-H", "-p", "-o", "name,health,size,allocated,free,capacity,dedupratio")
	if err != nil {
		return nil, nil, err
	}
	pools, skipped := ParseZpoolList(out)
	return pools, skipped, nil
}

// Status returns the vdev tree of the given pools, or of all imported pools.
// Device names are full, symlink-resolved paths.
func (z ZFS) Status(ctx context.Context, pools ...string) ([]model.PoolStatus, []string, error) {
	args := append([]string{"status", "-P", "-L"}, pools...)
	out, err := z.Runner.Run(ctx, "zpool", args...)
	if err != nil {
		return nil, nil, err
	}
	status, skipped := ParseZpoolStatus(out)
	return status, skipped, nil
}

// Export exports a pool, forcing unmount of its datasets.
func (z ZFS) Export(ctx context.Context, pool string) error {
	_, err := z.Runner.Run(ctx, "zpool", "export", "-f", pool)
	return err
}

// Import imports a pool without mounting any dataset.
func (z ZFS) Import(ctx context.Context, pool string) error {
	_, err := z.Runner.Run(ctx, "zpool", "import", "-f", "-N", pool)
	return err
}

// Destroy force-destroys a pool.
func (z ZFS) Destroy(ctx context.Context, pool string) error {
	_, err := z.Runner.Run(ctx, "zpool", "destroy", "-f", pool)
	return err
}

// LabelClear removes ZFS labels from a device.
func (z ZFS) LabelClear(ctx context.Context, device string) error {
	_, err := z.Runner.Run(ctx, "zpool", "labelclear", "-f", device)
	return err
}

// Add attaches auxiliary vdevs (log, cache) to a pool in one call.
func (z ZFS) Add(ctx context.Context, pool string, targets []model.CacheTarget) error {
	args := []string{"add", "-f", pool}
	last := model.CacheRole("")
	for _, t := range targets {
		if t.Role != last {
			args = append(args, t.Role.ZpoolKeyword())
			last = t.Role
		}
		args = append(args, t.Device)
	}
	_, err := z.Runner.Run(ctx, "zpool", args...)
	return err
}

// Mountpoints lists the mounted dataset paths of a pool.
func (z ZFS) Mountpoints(ctx context.Context, pool string) ([]string, error) {
	out, err := z.Runner.Run(ctx, "zfs", "list", "-H", "-o", "mountpoint", "-r", pool)
	if err != nil {
		return nil, err
	}
	var mps []string
	for _, line := range util.Lines(out) {
		mp := strings.TrimSpace(line)
		if !strings.HasPrefix(mp, "/") {
			continue // none, legacy, -
		}
		mps = append(mps, mp)
	}
	return mps, nil
}

// Datasets lists the ZFS filesystems of every imported pool.
func (z ZFS) Datasets(ctx context.Context) ([]model.Dataset, []string, error) {
	out, err := z.Runner.Run(ctx, "zfs", "list", "-H", "-p", "-t", "filesystem", "-o", "name,used,avail,mountpoint")
	if err != nil {
		return nil, nil, err
	}
	ds, skipped := ParseZfsList(out)
	return ds, skipped, nil
}

// CreateDataset runs zfs create. Parents must already exist.
func (z ZFS) CreateDataset(ctx context.Context, name string, props []string) error {
	args := []string{"create"}
	for _, p := range props {
		args = append(args, "-o", p)
	}
	args = append(args, name)
	_, err := z.Runner.Run(ctx, "zfs", args...)
	return err
}

// ParseZfsList parses tab-separated zfs list -H -p output with the columns
// name, used, avail, mountpoint.
func ParseZfsList(out []byte) ([]model.Dataset, []string) {
	var ds []model.Dataset
	var skipped []string
	for _, line := range util.Lines(out) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		f := strings.Split(line, "\t")
		if len(f) < 4 {
			skipped = append(skipped, line)
			continue
		}
		used, err1 := util.ParseSize(f[1])
		avail, err2 := util.ParseSize(f[2])
		if err1 != nil || err2 != nil {
			skipped = append(skipped, line)
			continue
		}
		d := model.Dataset{Name: f[0], UsedBytes: used, AvailBytes: avail}
		if f[3] != "-" {
			d.MountPoint = f[3]
		}
		ds = append(ds, d)
	}
	return ds, skipped
}

// ParseZpoolList parses tab-separated zpool list -H -p output.
func ParseZpoolList(out []byte) ([]model.PoolSummary, []string) {
	var pools []model.PoolSummary
	var skipped []string
	for _, line := range util.Lines(out) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		f := strings.Split(line, "\t")
		if len(f) < 7 {
			skipped = append(skipped, line)
			continue
		}
		size, err1 := util.ParseSize(f[2])
		alloc, err2 := util.ParseSize(f[3])
		free, err3 := util.ParseSize(f[4])
		if err1 != nil || err2 != nil || err3 != nil {
			skipped = append(skipped, line)
			continue
		}
		pools = append(pools, model.PoolSummary{
			Name:       f[0],
			Health:     f[1],
			SizeBytes:  size,
			AllocBytes: alloc,
			FreeBytes:  free,
			CapacityPc: util.ParseFloat64(f[5]),
			Dedup:      f[6],
		})
	}
	return pools, skipped
}

// ParseZpoolStatus parses the human output of zpool status, which may hold
// several pools. Rows of the config block that cannot be read are skipped
// and returned.
func ParseZpoolStatus(out []byte) ([]model.PoolStatus, []string) {
	var pools []model.PoolStatus
	var skipped []string
	var cur *model.PoolStatus
	inConfig := false

	flush := func() {
		if cur != nil {
			pools = append(pools, *cur)
		}
		cur = nil
		inConfig = false
	}

	for _, line := range util.Lines(out) {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "pool:"):
			flush()
			cur = &model.PoolStatus{Name: strings.TrimSpace(strings.TrimPrefix(trimmed, "pool:"))}
			continue
		case cur == nil:
			continue
		case strings.HasPrefix(trimmed, "state:") && !inConfig:
			cur.State = strings.TrimSpace(strings.TrimPrefix(trimmed, "state:"))
			continue
		case strings.HasPrefix(trimmed, "scan:") && !inConfig:
			cur.Scan = strings.TrimSpace(strings.TrimPrefix(trimmed, "scan:"))
			continue
		case strings.HasPrefix(trimmed, "config:"):
			inConfig = true
			continue
		case strings.HasPrefix(trimmed, "errors:"):
			inConfig = false
			continue
		}
		if !inConfig || trimmed == "" {
			continue
		}
		fields := strings.Fields(trimmed)
		if fields[0] == "NAME" {
			continue
		}
		v := model.VDevStatus{Name: fields[0], Depth: vdevDepth(line)}
		if len(fields) >= 2 {
			v.State = fields[1]
		}
		if len(fields) >= 5 {
			var ok bool
			if v.Read, ok = parseCounter(fields[2]); !ok {
				skipped = append(skipped, line)
				continue
			}
			if v.Write, ok = parseCounter(fields[3]); !ok {
				skipped = append(skipped, line)
				continue
			}
			if v.Checksum, ok = parseCounter(fields[4]); !ok {
				skipped = append(skipped, line)
				continue
			}
		} else if len(fields) > 2 {
			skipped = append(skipped, line)
			continue
		}
		cur.VDevs = append(cur.VDevs, v)
	}
	flush()
	return pools, skipped
}

// vdevDepth derives tree depth from indentation: zpool prints a tab, then two
// spaces per level.
func vdevDepth(line string) int {
	line = strings.TrimPrefix(line, "\t")
	n := len(line) - len(strings.TrimLeft(line, " "))
	return n / 2
}

func parseCounter(s string) (uint64, bool) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, true
	}
	v, err := util.ParseSize(s)
	return v, err == nil
}

// Ashift picks the pool ashift for the largest physical sector among disks.
func Ashift(sectorSizes ...uint32) int {
	var largest uint32
	for _, s := range sectorSizes {
		if s > largest {
			largest = s
		}
	}
	switch {
	case largest <= 4096:
		return 12
	case largest <= 8192:
		return 13
	default:
		return 14
	}
}
