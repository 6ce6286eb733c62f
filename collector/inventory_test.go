package collector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftahirops/xraid/config"
	"github.com/ftahirops/xraid/model"
	"github.com/ftahirops/xraid/tools"
	"github.com/ftahirops/xraid/tools/toolstest"
)

const hostLsblk = `{"blockdevices":[
 {"name":"loop0","size":"65536","type":"loop"},
 {"name":"sda","size":500107862016,"model":"SSD","phy-sec":512,"type":"disk","rota":false,"tran":"sata",
  "children":[
   {"name":"sda1","size":536870912,"type":"part"},
   {"name":"sda2","size":499570991104,"type":"part"}
  ]},
 {"name":"sdb","size":2000398934016,"phy-sec":4096,"type":"disk","rota":true,"tran":"sata"},
 {"name":"sr0","size":1073741312,"type":"rom"},
 {"name":"mmcblk0","size":31268536320,"type":"disk","children":[{"name":"mmcblk0p1","size":1000,"type":"part"}]},
 {"name":"mmcblk0boot0","size":4194304,"type":"disk"},
 {"name":"nvme1n1","size":1000204886016,"phy-sec":512,"type":"disk","rota":false,"tran":"nvme",
  "children":[
   {"name":"nvme1n1p1","size":1073741824,"type":"part","mountpoint":"/boot/efi"},
   {"name":"nvme1n1p2","size":999131078656,"type":"part",
    "children":[{"name":"vg0-root","size":999131078656,"type":"lvm","mountpoint":"/srv"}]}
  ]}
]}`

func newInventory(mounts MountTable, policy ProtectionPolicy) *Inventory {
	runner := toolstest.New().Stdout("lsblk", hostLsblk)
	return &Inventory{
		Lister: tools.Lsblk{Runner: runner},
		Mounts: mounts,
		Policy: policy,
	}
}

func disksByName(disks []model.Disk) map[string]model.Disk {
	m := map[string]model.Disk{}
	for _, d := range disks {
		m[d.Name] = d
	}
	return m
}

func TestScanMarksRootDisk(t *testing.T) {
	mounts := StaticMounts{List: []Mount{
		{Source: "/dev/sda2", MountPoint: "/", FSType: "ext4"},
		{Source: "/dev/sdb1", MountPoint: "/mnt/scratch", FSType: "xfs"},
	}}
	policy := PolicyFromConfig(config.Default().Protection)

	disks, err := newInventory(mounts, policy).Scan(context.Background())
	require.NoError(t, err)
	byName := disksByName(disks)

	require.Contains(t, byName, "sda")
	assert.True(t, byName["sda"].IsSystem)
	assert.Equal(t, "backs /", byName["sda"].SystemReason)
	assert.True(t, byName["sda"].HasPartitions)
	assert.Equal(t, uint32(512), byName["sda"].SectorSize)

	assert.False(t, byName["sdb"].IsSystem)
	assert.True(t, *byName["sdb"].Rotational)

	assert.NotContains(t, byName, "loop0")
	assert.NotContains(t, byName, "sr0")
}

func TestScanRootDiskIgnoresExclusionPatterns(t *testing.T) {
	mounts := StaticMounts{List: []Mount{{Source: "/dev/sda2", MountPoint: "/"}}}
	for _, patterns := range [][]string{nil, {"sd*"}, {"*"}} {
		policy := ProtectionPolicy{ExcludePatterns: patterns, CriticalMounts: []string{"/"}}
		disks, err := newInventory(mounts, policy).Scan(context.Background())
		require.NoError(t, err)
		sda, ok := Find(disks, "sda")
		require.True(t, ok, "patterns %v", patterns)
		assert.True(t, sda.IsSystem, "patterns %v", patterns)
	}
}

func TestScanFallsBackToStaticListWhenMountsFail(t *testing.T) {
	mounts := StaticMounts{Err: errors.New("mountinfo unreadable")}
	policy := PolicyFromConfig(config.Default().Protection)

	disks, err := newInventory(mounts, policy).Scan(context.Background())
	require.NoError(t, err)
	byName := disksByName(disks)

	for _, name := range []string{"mmcblk0", "mmcblk0boot0"} {
		require.Contains(t, byName, name)
		assert.True(t, byName[name].IsSystem, name)
		assert.Equal(t, "static protection list", byName[name].SystemReason)
	}
	assert.False(t, byName["sdb"].IsSystem)
}

func TestScanProtectsNestedCriticalMount(t *testing.T) {
	policy := ProtectionPolicy{CriticalMounts: []string{"/boot/efi"}}
	disks, err := newInventory(StaticMounts{}, policy).Scan(context.Background())
	require.NoError(t, err)

	nvme, ok := Find(disks, "/dev/nvme1n1")
	require.True(t, ok)
	assert.True(t, nvme.IsSystem)
	assert.Equal(t, "nvme1n1p1 mounted at /boot/efi", nvme.SystemReason)
	assert.Equal(t, []string{"/boot/efi", "/srv"}, nvme.MountPoints)
}

func TestScanLsblkFailure(t *testing.T) {
	inv := &Inventory{
		Lister: tools.Lsblk{Runner: toolstest.New().Absent("lsblk")},
		Mounts: StaticMounts{},
	}
	_, err := inv.Scan(context.Background())
	assert.True(t, tools.IsAbsent(err))
}

func TestSelectable(t *testing.T) {
	disks := []model.Disk{{Name: "sda", IsSystem: true}, {Name: "sdb"}}
	assert.Equal(t, []model.Disk{{Name: "sdb"}}, Selectable(disks))
}

func TestPolicyExcluded(t *testing.T) {
	p := ProtectionPolicy{ExcludePatterns: []string{"loop*", "ram*"}, BootMediaPattern: "mmcblk0*"}
	cases := []struct {
		name string
		want bool
	}{
		{"loop7", true},
		{"ram0", true},
		{"mmcblk0boot1", true},
		{"mmcblk1", false},
		{"sda", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := p.Excluded(c.name); got != c.want {
				t.Fatalf("Excluded(%s) = %v, want %v", c.name, got, c.want)
			}
		})
	}
}

const rootPoolStatus = `  pool: rpool
 state: ONLINE
config:

	NAME           STATE     READ WRITE CKSUM
	rpool          ONLINE       0     0     0
	  mirror-0     ONLINE       0     0     0
	    /dev/sda2  ONLINE       0     0     0
	    /dev/sdb3  ONLINE       0     0     0

errors: No known data errors
`

func TestScanProtectsZFSRootPool(t *testing.T) {
	mounts := StaticMounts{List: []Mount{
		{Source: "rpool/ROOT/ubuntu", MountPoint: "/", FSType: "zfs"},
		{Source: "rpool/home", MountPoint: "/home", FSType: "zfs"},
	}}
	pools := toolstest.New().Stdout("zpool status -P -L rpool", rootPoolStatus)
	inv := newInventory(mounts, PolicyFromConfig(config.Default().Protection))
	inv.Pools = tools.ZFS{Runner: pools}

	disks, err := inv.Scan(context.Background())
	require.NoError(t, err)
	byName := disksByName(disks)

	assert.True(t, byName["sda"].IsSystem)
	assert.True(t, byName["sdb"].IsSystem)
	assert.Equal(t, "zfs pool rpool backs /", byName["sdb"].SystemReason)
	assert.Equal(t, 1, len(pools.Calls()), "each root pool is resolved once")
}

func TestScanFailsWhenRootPoolUnresolved(t *testing.T) {
	mounts := StaticMounts{List: []Mount{{Source: "rpool/ROOT/ubuntu", MountPoint: "/", FSType: "zfs"}}}
	inv := newInventory(mounts, PolicyFromConfig(config.Default().Protection))
	inv.Pools = tools.ZFS{Runner: toolstest.New().Fail("zpool status", "no such pool")}

	_, err := inv.Scan(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpool")

	inv.Pools = nil
	_, err = inv.Scan(context.Background())
	assert.Error(t, err)
}
