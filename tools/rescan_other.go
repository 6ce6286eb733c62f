//go:build !linux

package tools

import "fmt"

func rereadPartitionTable(device string) error {
	return fmt.Errorf("reread partition table of %s: unsupported platform", device)
}
