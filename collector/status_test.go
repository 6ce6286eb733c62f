package collector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftahirops/xraid/tools"
	"github.com/ftahirops/xraid/tools/toolstest"
)

const statusZpoolList = "tank\tONLINE\t7998580686848\t1234\t7998580685614\t0\t1.00x\n"

const statusZpoolStatus = `  pool: tank
 state: ONLINE
config:

	NAME          STATE     READ WRITE CKSUM
	tank          ONLINE       0     0     0
	  mirror-0    ONLINE       0     0     0
	    /dev/sdb  ONLINE       0     0     0
	    /dev/sdc  ONLINE       0     0     0

errors: No known data errors
`

const statusZfsList = "tank\t1234\t7998580685614\t/tank\ntank/media\t0\t7998580685614\t/tank/media\n"

const statusVGs = `{"report":[{"vg":[{"vg_name":"vg0","vg_size":"1000204886016B","vg_free":"0B"}]}]}`
const statusPVs = `{"report":[{"pv":[{"pv_name":"/dev/sdd","vg_name":"vg0","pv_size":"1000204886016B"}]}]}`
const statusLVs = `{"report":[{"lv":[{"lv_name":"root","vg_name":"vg0","lv_size":"1000204886016B"}]}]}`

func TestStatusCollect(t *testing.T) {
	f := toolstest.New().
		Stdout("zpool list", statusZpoolList).
		Stdout("zpool status", statusZpoolStatus).
		Stdout("zfs list", statusZfsList).
		Absent("btrfs").
		Stdout("vgs", statusVGs).
		Stdout("pvs", statusPVs).
		Stdout("lvs", statusLVs)
	s := &Status{Tools: tools.NewSet(f, writeMdstat(t, oneArrayMdstat)), Mounts: StaticMounts{}}

	st := s.Collect(context.Background())
	require.Len(t, st.Pools, 1)
	assert.Equal(t, "tank", st.Pools[0].Name)
	require.Len(t, st.PoolStatus, 1)
	assert.Equal(t, []string{"/dev/sdb", "/dev/sdc"}, st.PoolStatus[0].Devices())
	require.Len(t, st.Datasets, 2)
	assert.Equal(t, "/tank/media", st.Datasets[1].MountPoint)

	require.Len(t, st.MDArrays, 1)
	assert.Equal(t, "md127", st.MDArrays[0].Name)

	require.Len(t, st.VolumeGroups, 1)
	assert.Equal(t, "root", st.VolumeGroups[0].LogicalVolumes[0].Name)
	assert.Equal(t, "/dev/sdd", st.VolumeGroups[0].PhysicalVolumes[0].Name)

	require.Len(t, st.Unavailable, 1)
	assert.Contains(t, st.Unavailable[0], "btrfs")
}

func TestStatusBtrfsUsage(t *testing.T) {
	show := "Label: 'data'  uuid: 6f1c3b0e-7c55-4b8e-a1f1-2f3a4b5c6d7e\n" +
		"\tTotal devices 2 FS bytes used 229376\n" +
		"\tdevid    1 size 2000398934016 used 0 path /dev/sdb\n" +
		"\tdevid    2 size 2000398934016 used 0 path /dev/sdc\n"
	usage := "Overall:\n    Device size:\t\t      4000797868032\n    Used:\t\t\t             229376\n"
	f := toolstest.New().
		Absent("zpool").
		Absent("vgs").
		Stdout("btrfs filesystem show", show).
		Stdout("btrfs filesystem usage", usage)
	mounts := StaticMounts{List: []Mount{{Source: "/dev/sdc", MountPoint: "/srv/data", FSType: "btrfs"}}}
	s := &Status{Tools: tools.NewSet(f, t.TempDir()), Mounts: mounts}

	st := s.Collect(context.Background())
	require.Len(t, st.Btrfs, 1)
	assert.Equal(t, "/srv/data", st.Btrfs[0].MountPoint)
	assert.Equal(t, uint64(4000797868032), st.Btrfs[0].TotalBytes)
	assert.Equal(t, uint64(229376), st.Btrfs[0].UsedBytes)
	assert.True(t, f.Called("btrfs filesystem usage -b /srv/data"))
	assert.Empty(t, st.MDArrays)
}
