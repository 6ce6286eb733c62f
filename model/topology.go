package model

import (
	"fmt"
	"strings"
)

// Filesystem is the storage stack a pool is built with.
type Filesystem string

const (
	FilesystemZFS   Filesystem = "zfs"
	FilesystemBtrfs Filesystem = "btrfs"
)

// Topology is the redundancy scheme applied across member disks.
type Topology string

const (
	TopologyStripe      Topology = "stripe"
	TopologyMirror      Topology = "mirror"
	TopologyRaidZ1      Topology = "raidz1"
	TopologyRaidZ2      Topology = "raidz2"
	TopologyRaidZ3      Topology = "raidz3"
	TopologyBtrfsRaid0  Topology = "btrfs-raid0"
	TopologyBtrfsRaid1  Topology = "btrfs-raid1"
	TopologyBtrfsRaid10 Topology = "btrfs-raid10"
	TopologyBtrfsRaid5  Topology = "btrfs-raid5"
	TopologyBtrfsRaid6  Topology = "btrfs-raid6"
)

// Topologies lists every supported topology in display order.
var Topologies = []Topology{
	TopologyStripe, TopologyMirror, TopologyRaidZ1, TopologyRaidZ2, TopologyRaidZ3,
	TopologyBtrfsRaid0, TopologyBtrfsRaid1, TopologyBtrfsRaid10, TopologyBtrfsRaid5, TopologyBtrfsRaid6,
}

// ParseTopology accepts a topology name, case-insensitively. "raidz" is an alias
// for raidz1 and "raid10" for btrfs-raid10.
func ParseTopology(s string) (Topology, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "raidz":
		return TopologyRaidZ1, nil
	case "raid10":
		return TopologyBtrfsRaid10, nil
	}
	for _, t := range Topologies {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown topology %q", s)
}

// Valid reports whether t is a known topology.
func (t Topology) Valid() bool {
	for _, v := range Topologies {
		if v == t {
			return true
		}
	}
	return false
}

// Filesystem returns the stack that implements t.
func (t Topology) Filesystem() Filesystem {
	if strings.HasPrefix(string(t), "btrfs-") {
		return FilesystemBtrfs
	}
	return FilesystemZFS
}

// Parity returns the number of parity disks for parity layouts, 0 otherwise.
func (t Topology) Parity() int {
	switch t {
	case TopologyRaidZ1, TopologyBtrfsRaid5:
		return 1
	case TopologyRaidZ2, TopologyBtrfsRaid6:
		return 2
	case TopologyRaidZ3:
		return 3
	}
	return 0
}

// IsMirror is true for layouts that keep full copies in pairs.
func (t Topology) IsMirror() bool {
	return t == TopologyMirror || t == TopologyBtrfsRaid1
}

// IsStripe is true for layouts without redundancy.
func (t Topology) IsStripe() bool {
	return t == TopologyStripe || t == TopologyBtrfsRaid0
}

// MinDisks returns the smallest member count the layout accepts.
func (t Topology) MinDisks() int {
	switch t {
	case TopologyStripe:
		return 1
	case TopologyMirror, TopologyBtrfsRaid0, TopologyBtrfsRaid1:
		return 2
	case TopologyBtrfsRaid10:
		return 4
	}
	if k := t.Parity(); k > 0 {
		return k + 2
	}
	return 0
}

// ToleratedFailures returns how many disks of an n-member layout may fail
// without data loss.
func (t Topology) ToleratedFailures(n int) int {
	switch {
	case t.IsStripe():
		return 0
	case t.IsMirror():
		return n / 2
	case t == TopologyBtrfsRaid10:
		return 1
	}
	return t.Parity()
}

// BtrfsProfile returns the mkfs.btrfs data profile name.
func (t Topology) BtrfsProfile() string {
	return strings.TrimPrefix(string(t), "btrfs-")
}

// BtrfsMetadataProfile picks the metadata profile paired with the data profile.
func (t Topology) BtrfsMetadataProfile() string {
	switch t {
	case TopologyBtrfsRaid0, TopologyBtrfsRaid5:
		return "raid1"
	case TopologyBtrfsRaid6:
		return "raid1c3"
	}
	return t.BtrfsProfile()
}
