//go:build linux

package tools

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// rereadPartitionTable issues BLKRRPART on device.
func rereadPartitionTable(device string) error {
	f, err := os.OpenFile(device, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := unix.IoctlSetInt(int(f.Fd()), unix.BLKRRPART, 0); err != nil {
		return fmt.Errorf("BLKRRPART %s: %w", device, err)
	}
	return nil
}
