package tools

import (
	"context"
	"strconv"
	"strings"

	"github.com/ftahirops/xraid/model"
	"github.com/ftahirops/xraid/util"
)

// Btrfs drives btrfs-progs.
type Btrfs struct {
	Runner Runner
}

// Show lists every btrfs filesystem known to the kernel or on disk.
func (b Btrfs) Show(ctx context.Context) ([]model.BtrfsFilesystem, []string, error) {
	out, err := b.Runner.Run(ctx, "btrfs", "filesystem", "show", "--raw")
	if err != nil {
		return nil, nil, err
	}
	fs, skipped := ParseBtrfsShow(out)
	return fs, skipped, nil
}

// Usage fills total and used bytes of the filesystem mounted at mountPoint.
func (b Btrfs) Usage(ctx context.Context, mountPoint string) (total, used uint64, err error) {
	out, err := b.Runner.Run(ctx, "btrfs", "filesystem", "usage", "-b", mountPoint)
	if err != nil {
		return 0, 0, err
	}
	total, used = ParseBtrfsUsage(out)
	return total, used, nil
}

// MkfsSpec describes a mkfs.btrfs invocation.
type MkfsSpec struct {
	Label       string
	DataProfile string
	MetaProfile string
	Devices     []string
}

// Args returns the mkfs.btrfs arguments for spec.
func (s MkfsSpec) Args() []string {
	args := []string{"-f"}
	if s.Label != "" {
		args = append(args, "-L", s.Label)
	}
	args = append(args, "-d", s.DataProfile, "-m", s.MetaProfile)
	return append(args, s.Devices...)
}

// Mkfs creates a multi-device filesystem.
func (b Btrfs) Mkfs(ctx context.Context, spec MkfsSpec) error {
	_, err := b.Runner.Run(ctx, "mkfs.btrfs", spec.Args()...)
	return err
}

// ParseBtrfsShow parses btrfs filesystem show output into one entry per
// filesystem block.
func ParseBtrfsShow(out []byte) ([]model.BtrfsFilesystem, []string) {
	var result []model.BtrfsFilesystem
	var skipped []string
	var cur *model.BtrfsFilesystem

	for _, line := range util.Lines(out) {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "Label:"):
			if cur != nil {
				result = append(result, *cur)
			}
			cur = &model.BtrfsFilesystem{}
			label, uuid, ok := strings.Cut(strings.TrimPrefix(trimmed, "Label:"), "uuid:")
			if !ok {
				skipped = append(skipped, line)
				cur = nil
				continue
			}
			label = strings.TrimSpace(label)
			if label != "none" {
				cur.Label = strings.Trim(label, "'")
			}
			cur.UUID = strings.TrimSpace(uuid)
		case strings.HasPrefix(trimmed, "devid"):
			if cur == nil {
				skipped = append(skipped, line)
				continue
			}
			dev, ok := parseDevidLine(trimmed)
			if !ok {
				skipped = append(skipped, line)
				continue
			}
			cur.Devices = append(cur.Devices, dev)
		case strings.HasPrefix(trimmed, "Total devices"), strings.HasPrefix(trimmed, "***"),
			strings.HasPrefix(trimmed, "btrfs-progs"):
			continue
		default:
			skipped = append(skipped, line)
		}
	}
	if cur != nil {
		result = append(result, *cur)
	}
	return result, skipped
}

// parseDevidLine reads "devid 1 size 1.82TiB used 2.01GiB path /dev/sdb".
func parseDevidLine(line string) (model.BtrfsDevice, bool) {
	f := strings.Fields(line)
	var dev model.BtrfsDevice
	if len(f) < 2 {
		return dev, false
	}
	id, err := strconv.Atoi(f[1])
	if err != nil {
		return dev, false
	}
	dev.ID = id
	for i := 2; i+1 < len(f); i += 2 {
		switch f[i] {
		case "size":
			dev.SizeBytes, _ = util.ParseSize(f[i+1])
		case "used":
			dev.UsedBytes, _ = util.ParseSize(f[i+1])
		case "path":
			dev.Path = f[i+1]
		}
	}
	return dev, dev.Path != ""
}

// ParseBtrfsUsage reads the overall device size and used bytes.
func ParseBtrfsUsage(out []byte) (total, used uint64) {
	kv := util.ParseKeyValueLines(util.Lines(out))
	total, _ = util.ParseSize(kv["Device size"])
	used, _ = util.ParseSize(kv["Used"])
	return total, used
}
