package tools

// Set bundles every collaborator over one Runner.
type Set struct {
	Runner Runner
	Lsblk  Lsblk
	ZFS    ZFS
	Btrfs  Btrfs
	MD     MD
	LVM    LVM
	Disk   Disk
}

// NewSet wires all tools to r. procRoot may be empty for /proc.
func NewSet(r Runner, procRoot string) *Set {
	return &Set{
		Runner: r,
		Lsblk:  Lsblk{Runner: r},
		ZFS:    ZFS{Runner: r},
		Btrfs:  Btrfs{Runner: r},
		MD:     MD{Runner: r, ProcRoot: procRoot},
		LVM:    LVM{Runner: r},
		Disk:   Disk{Runner: r},
	}
}
