package collector

import (
	"path/filepath"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ftahirops/xraid/config"
	"github.com/ftahirops/xraid/model"
)

// ProtectionPolicy decides which block devices must never be touched.
type ProtectionPolicy struct {
	ExcludePatterns  []string
	BootMediaPattern string
	CriticalMounts   []string
	StaticDevices    []string
}

// PolicyFromConfig builds the policy from configuration.
func PolicyFromConfig(c config.ProtectionConfig) ProtectionPolicy {
	return ProtectionPolicy{
		ExcludePatterns:  c.ExcludePatterns,
		BootMediaPattern: c.BootMediaPattern,
		CriticalMounts:   c.CriticalMounts,
		StaticDevices:    c.StaticDevices,
	}
}

// Excluded reports whether name is left out of the inventory.
func (p ProtectionPolicy) Excluded(name string) bool {
	patterns := p.ExcludePatterns
	if p.BootMediaPattern != "" {
		patterns = append(append([]string(nil), patterns...), p.BootMediaPattern)
	}
	for _, pat := range patterns {
		if ok, _ := filepath.Match(pat, name); ok {
			return true
		}
	}
	return false
}

// Critical reports whether mountPoint is a system mount point.
func (p ProtectionPolicy) Critical(mountPoint string) bool {
	for _, c := range p.CriticalMounts {
		if c == mountPoint {
			return true
		}
	}
	return false
}

// Protection is the set of protected disks with the reason for each.
type Protection struct {
	disks   mapset.Set[string]
	reasons map[string]string
	// pools maps a ZFS pool backing a critical mount to that mount point.
	pools map[string]string
}

func newProtection() *Protection {
	return &Protection{disks: mapset.NewThreadUnsafeSet[string](), reasons: map[string]string{}, pools: map[string]string{}}
}

// Pools returns the ZFS pools backing critical mounts, sorted. Their member
// disks are not known until AddPoolMembers is called.
func (p *Protection) Pools() []string {
	out := make([]string, 0, len(p.pools))
	for pool := range p.pools {
		out = append(out, pool)
	}
	sort.Strings(out)
	return out
}

// AddPoolMembers protects the disks under the given vdev devices of pool.
func (p *Protection) AddPoolMembers(pool string, devices []string) {
	for _, dev := range devices {
		p.add(model.ParentDisk(model.KernelName(dev)), "zfs pool "+pool+" backs "+p.pools[pool])
	}
}

func (p *Protection) add(disk, reason string) {
	if p.disks.Add(disk) {
		p.reasons[disk] = reason
	}
}

// Contains reports whether disk is protected.
func (p *Protection) Contains(disk string) bool {
	return p.disks.Contains(disk)
}

// Reason explains why disk is protected.
func (p *Protection) Reason(disk string) string {
	return p.reasons[disk]
}

// Disks returns the protected disk names, sorted.
func (p *Protection) Disks() []string {
	out := p.disks.ToSlice()
	sort.Strings(out)
	return out
}

// Resolve computes the protected set. When mountErr is set the mount table
// is ignored and only the static list applies.
func (p ProtectionPolicy) Resolve(mounts []Mount, mountErr error) *Protection {
	prot := newProtection()
	for _, d := range p.StaticDevices {
		prot.add(d, "static protection list")
	}
	if mountErr != nil {
		return prot
	}
	for _, m := range mounts {
		if !p.Critical(m.MountPoint) {
			continue
		}
		// a ZFS source is a dataset name, not a device
		if m.FSType == "zfs" {
			pool, _, _ := strings.Cut(m.Source, "/")
			if _, ok := prot.pools[pool]; !ok {
				prot.pools[pool] = m.MountPoint
			}
			continue
		}
		prot.add(model.ParentDisk(m.Device()), "backs "+m.MountPoint)
	}
	return prot
}
