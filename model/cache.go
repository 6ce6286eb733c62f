package model

// CacheClass is the media class of a cache candidate.
type CacheClass string

const (
	CacheClassNVMe       CacheClass = "nvme"
	CacheClassSSD        CacheClass = "ssd"
	CacheClassRotational CacheClass = "rotational"
)

// Recommended reports whether the class is fast enough to serve as cache.
func (c CacheClass) Recommended() bool {
	return c != CacheClassRotational
}

// CacheRole is what a cache device or partition does for the pool.
type CacheRole string

const (
	CacheRoleRead        CacheRole = "cache"
	CacheRoleWriteLog    CacheRole = "log"
	CacheRolePartitioned CacheRole = "both-partitioned"
)

// ZpoolKeyword returns the vdev class keyword used by zpool add.
func (r CacheRole) ZpoolKeyword() string {
	return string(r)
}

// CacheMode is the cache layout chosen for a pool.
type CacheMode string

const (
	CacheModeSingle      CacheMode = "single"
	CacheModeDual        CacheMode = "dual"
	CacheModePartitioned CacheMode = "partitioned"
)

// CacheCandidate is a disk with its media classification.
type CacheCandidate struct {
	Disk  Disk       `json:"disk"`
	Class CacheClass `json:"class"`
}

// CacheDevice assigns a role to a non-member disk.
type CacheDevice struct {
	Disk  Disk       `json:"disk"`
	Class CacheClass `json:"class"`
	Role  CacheRole  `json:"role"`
}

// CachePartition is one byte range of a partitioned cache device.
type CachePartition struct {
	Number     int       `json:"number"`
	Name       string    `json:"name"`
	Role       CacheRole `json:"role"`
	StartBytes uint64    `json:"start_bytes"`
	SizeBytes  uint64    `json:"size_bytes"`
}

// End returns the first byte after the partition.
func (p CachePartition) End() uint64 {
	return p.StartBytes + p.SizeBytes
}

// CachePlan is the computed layout before anything is written.
type CachePlan struct {
	Mode       CacheMode        `json:"mode"`
	Devices    []CacheDevice    `json:"devices"`
	Partitions []CachePartition `json:"partitions,omitempty"`
	Warnings   []string         `json:"warnings,omitempty"`
}

// Targets returns role -> device path pairs to attach, in attach order.
func (p CachePlan) Targets() []CacheTarget {
	var out []CacheTarget
	if p.Mode == CacheModePartitioned {
		for _, part := range p.Partitions {
			out = append(out, CacheTarget{Role: part.Role, Device: DevicePath(part.Name)})
		}
		return out
	}
	// log vdevs first, matching zpool's own ordering in status output
	for _, want := range []CacheRole{CacheRoleWriteLog, CacheRoleRead} {
		for _, d := range p.Devices {
			if d.Role == want {
				out = append(out, CacheTarget{Role: d.Role, Device: d.Disk.DevicePath()})
			}
		}
	}
	return out
}

// CacheTarget is one device attached to a pool under a role.
type CacheTarget struct {
	Role   CacheRole `json:"role"`
	Device string    `json:"device"`
}
