package tools

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ftahirops/xraid/model"
)

// Disk drives the generic block device utilities.
type Disk struct {
	Runner Runner
	// Rescan re-reads a partition table without external tools.
	// Defaults to the BLKRRPART ioctl.
	Rescan func(device string) error
}

// Unmount unmounts target. Forced also detaches it lazily.
func (d Disk) Unmount(ctx context.Context, target string, forced bool) error {
	args := []string{target}
	if forced {
		args = []string{"-f", "-l", target}
	}
	_, err := d.Runner.Run(ctx, "umount", args...)
	return err
}

// Mount mounts device at target with options.
func (d Disk) Mount(ctx context.Context, device, target, fstype, options string) error {
	args := []string{}
	if fstype != "" {
		args = append(args, "-t", fstype)
	}
	if options != "" {
		args = append(args, "-o", options)
	}
	args = append(args, device, target)
	_, err := d.Runner.Run(ctx, "mount", args...)
	return err
}

// WipeSignatures erases every filesystem, RAID and partition-table signature.
func (d Disk) WipeSignatures(ctx context.Context, device string) error {
	_, err := d.Runner.Run(ctx, "wipefs", "-a", "-f", device)
	return err
}

// ZeroRange writes count zero bytes starting at byte offset. Offsets and
// counts need not be block aligned.
func (d Disk) ZeroRange(ctx context.Context, device string, offset, count uint64) error {
	args := []string{
		"if=/dev/zero",
		"of=" + device,
		"bs=1M",
		"count=" + strconv.FormatUint(count, 10),
		"iflag=count_bytes",
		"conv=fsync",
		"status=none",
	}
	if offset > 0 {
		args = append(args, "seek="+strconv.FormatUint(offset, 10), "oflag=seek_bytes")
	}
	_, err := d.Runner.Run(ctx, "dd", args...)
	return err
}

// ClearPartitionTable destroys GPT and MBR structures. Without sgdisk only the
// MBR sector is zeroed.
func (d Disk) ClearPartitionTable(ctx context.Context, device string) error {
	if d.Runner.Available("sgdisk") {
		_, err := d.Runner.Run(ctx, "sgdisk", "--zap-all", device)
		return err
	}
	_, err := d.Runner.Run(ctx, "dd", "if=/dev/zero", "of="+device, "bs=512", "count=1", "conv=fsync", "status=none")
	return err
}

// RereadPartitions asks the kernel to rescan the partition table, trying
// partprobe, then blockdev, then the ioctl.
func (d Disk) RereadPartitions(ctx context.Context, device string) error {
	if d.Runner.Available("partprobe") {
		_, err := d.Runner.Run(ctx, "partprobe", device)
		return err
	}
	if d.Runner.Available("blockdev") {
		_, err := d.Runner.Run(ctx, "blockdev", "--rereadpt", device)
		return err
	}
	rescan := d.Rescan
	if rescan == nil {
		rescan = rereadPartitionTable
	}
	return rescan(device)
}

// Settle waits for udev to finish processing events.
func (d Disk) Settle(ctx context.Context) error {
	_, err := d.Runner.Run(ctx, "udevadm", "settle")
	return err
}

// PartitionSpec is one partition to create with sgdisk. SizeMiB 0 takes the
// remaining space.
type PartitionSpec struct {
	Number  int
	SizeMiB uint64
	TypeHex string
	Label   string
}

// CreatePartitions writes a fresh GPT holding parts.
func (d Disk) CreatePartitions(ctx context.Context, device string, parts []PartitionSpec) error {
	args := []string{"--clear"}
	for _, p := range parts {
		end := "0"
		if p.SizeMiB > 0 {
			end = "+" + strconv.FormatUint(p.SizeMiB, 10) + "M"
		}
		n := strconv.Itoa(p.Number)
		args = append(args, "-n", n+":0:"+end)
		if p.TypeHex != "" {
			args = append(args, "-t", n+":"+p.TypeHex)
		}
		if p.Label != "" {
			args = append(args, "-c", n+":"+p.Label)
		}
	}
	args = append(args, device)
	if _, err := d.Runner.Run(ctx, "sgdisk", args...); err != nil {
		return fmt.Errorf("partition %s: %w", model.KernelName(device), err)
	}
	return nil
}
