package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftahirops/xraid/collector"
	"github.com/ftahirops/xraid/config"
	"github.com/ftahirops/xraid/model"
	"github.com/ftahirops/xraid/tools"
	"github.com/ftahirops/xraid/tools/toolstest"
)

func quietLog() *logrus.Entry {
	l, _ := test.NewNullLogger()
	return logrus.NewEntry(l)
}

func newTeardown(f *toolstest.FakeRunner, mounts collector.MountTable) (*Teardown, *[]time.Duration) {
	var slept []time.Duration
	td := NewTeardown(tools.NewSet(f, ""), mounts, config.Default().Wipe, quietLog())
	td.Sleep = func(d time.Duration) { slept = append(slept, d) }
	return td, &slept
}

func busyState() model.DiskResidualState {
	s := model.DiskResidualState{
		Disk:       "sdb",
		Partitions: []string{"sdb1", "sdb2"},
		MountedPartitions: []model.MountedPartition{
			{Partition: "sdb1", MountPoint: "/data"},
			{Partition: "sdb2", MountPoint: "/data/archive"},
		},
		ZFSPools:           []string{"tank"},
		MDArrays:           []string{"md127"},
		LVMVolumeGroups:    []string{"vg0"},
		LVMPhysicalVolumes: map[string][]string{"vg0": {"/dev/sdb2"}},
	}
	s.Refresh()
	return s
}

func TestTeardownUnmountsBeforeDestroy(t *testing.T) {
	f := toolstest.New()
	td, slept := newTeardown(f, nil)
	disk := model.Disk{Name: "sdb", SizeBytes: 2 * tb}

	report, err := td.Run(context.Background(), disk, busyState())
	require.NoError(t, err)
	assert.True(t, report.Clean())

	firstDestructive := len(f.Calls())
	for _, prefix := range []string{"zpool destroy", "zpool export", "wipefs", "mdadm --stop", "vgchange", "dd ", "sgdisk"} {
		if i := f.Index(prefix); i >= 0 && i < firstDestructive {
			firstDestructive = i
		}
	}
	lastUnmount := -1
	for i, c := range f.Calls() {
		if strings.HasPrefix(c, "umount") {
			lastUnmount = i
		}
	}
	if lastUnmount < 0 || lastUnmount > firstDestructive {
		t.Fatalf("unmount must precede destructive steps: %v", f.Calls())
	}
	// nested mount point first
	assert.Equal(t, "umount /data/archive", f.Calls()[0])
	assert.Equal(t, "umount /data", f.Calls()[1])
	assert.Equal(t, []time.Duration{3 * time.Second}, *slept)
}

func TestTeardownPhaseOrder(t *testing.T) {
	f := toolstest.New()
	td, _ := newTeardown(f, nil)
	_, err := td.Run(context.Background(), model.Disk{Name: "sdb", SizeBytes: 2 * tb}, busyState())
	require.NoError(t, err)

	order := []string{
		"zpool export -f tank",
		"zpool import -f -N tank",
		"zpool destroy -f tank",
		"mdadm --stop /dev/md127",
		"vgchange -an vg0",
		"pvremove -ff -y /dev/sdb2",
		"wipefs -a -f /dev/sdb1",
		"wipefs -a -f /dev/sdb",
		"sgdisk --zap-all /dev/sdb",
		"partprobe /dev/sdb",
		"udevadm settle",
	}
	last := -1
	for _, c := range order {
		i := f.Index(c)
		if i < 0 {
			t.Fatalf("missing %q in %v", c, f.Calls())
		}
		if i < last {
			t.Fatalf("%q out of order in %v", c, f.Calls())
		}
		last = i
	}
}

func TestTeardownEdgeZeroing(t *testing.T) {
	const head = "dd if=/dev/zero of=/dev/sdb bs=1M count=%d iflag=count_bytes conv=fsync status=none"
	const tail = head + " seek=%d oflag=seek_bytes"
	edge := uint64(100 << 20)
	cases := []struct {
		name  string
		size  uint64
		calls []string
		// tail zeroing must not be issued
		noTail bool
	}{
		{name: "1GiB", size: 1 << 30, calls: []string{
			fmt.Sprintf(head, edge), fmt.Sprintf(tail, edge, (1<<30)-edge)}},
		{name: "unaligned end", size: 1<<30 + 512, calls: []string{
			fmt.Sprintf(head, edge), fmt.Sprintf(tail, edge, (1<<30)+512-edge)}},
		{name: "smaller than both edges", size: 150 << 20, calls: []string{
			fmt.Sprintf(head, edge), fmt.Sprintf(tail, edge, (150<<20)-edge)}},
		{name: "smaller than one edge", size: 64 << 20, calls: []string{
			fmt.Sprintf(head, 64<<20)}, noTail: true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := toolstest.New()
			td, _ := newTeardown(f, nil)
			_, err := td.Run(context.Background(), model.Disk{Name: "sdb", SizeBytes: c.size}, model.DiskResidualState{Disk: "sdb"})
			require.NoError(t, err)
			for _, want := range c.calls {
				assert.True(t, f.Called(want), "missing %q in %v", want, f.Calls())
			}
			if c.noTail {
				assert.False(t, f.Called("dd if=/dev/zero of=/dev/sdb bs=1M count="+fmt.Sprint(edge)))
				for _, call := range f.Calls() {
					assert.NotContains(t, call, "seek_bytes")
				}
			}
		})
	}
}

func TestTeardownOutcomes(t *testing.T) {
	f := toolstest.New().
		Fail("zpool export", "cannot export 'tank': no such pool").
		Fail("zpool destroy", "pool is busy").
		Fail("umount /data", "target is busy").
		Absent("mdadm")
	f.On("umount -f -l /data", toolstest.Response{})
	td, _ := newTeardown(f, nil)

	state := model.DiskResidualState{
		Disk:              "sdb",
		MountedPartitions: []model.MountedPartition{{Partition: "sdb1", MountPoint: "/data"}},
		ZFSPools:          []string{"tank"},
		MDArrays:          []string{"md127"},
	}
	state.Refresh()
	report, err := td.Run(context.Background(), model.Disk{Name: "sdb", SizeBytes: 1 << 40}, state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "destroy tank")

	status := map[string]model.OutcomeStatus{}
	for _, o := range report.Outcomes {
		status[o.Step] = o.Status
	}
	assert.Equal(t, model.OutcomeRecovered, status["unmount /data (sdb1)"])
	assert.Equal(t, model.OutcomeIgnored, status["export tank"])
	assert.Equal(t, model.OutcomeManual, status["destroy tank"])
	assert.Equal(t, model.OutcomeSkipped, status["stop md127"])
	assert.Equal(t, model.OutcomeOK, status["wipe signatures /dev/sdb"])
	// later independent steps still ran
	assert.True(t, f.Called("wipefs -a -f /dev/sdb"))
}

func TestTeardownBtrfsUsesLiveMounts(t *testing.T) {
	f := toolstest.New()
	mounts := collector.StaticMounts{List: []collector.Mount{
		{Source: "/dev/sdc", MountPoint: "/pool", FSType: "btrfs"},
		{Source: "/dev/sda2", MountPoint: "/", FSType: "ext4"},
	}}
	td, _ := newTeardown(f, mounts)
	state := model.DiskResidualState{
		Disk:             "sdb",
		BtrfsFilesystems: []string{"uuid-1"},
		BtrfsDevices:     map[string][]string{"uuid-1": {"/dev/sdb", "/dev/sdc"}},
	}
	state.Refresh()
	_, err := td.Run(context.Background(), model.Disk{Name: "sdb", SizeBytes: 1 << 40}, state)
	require.NoError(t, err)
	assert.True(t, f.Called("umount /pool"))
	assert.NotContains(t, f.Calls(), "umount /")
}

func TestExecuteIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := 0
	steps := []Step{
		{Phase: PhaseWipe, Name: "a", Run: func(ctx context.Context) error { ran++; return ctx.Err() }},
		{Phase: PhaseWipe, Name: "b", Run: func(ctx context.Context) error { ran++; return ctx.Err() }},
	}
	report := Execute(ctx, "sdb", steps, quietLog())
	if ran != 2 {
		t.Fatalf("got %d steps run, want 2", ran)
	}
	if !report.Clean() {
		t.Fatalf("expected clean report, got %+v", report.Outcomes)
	}
}

func TestRunAllSequential(t *testing.T) {
	f := toolstest.New()
	td, _ := newTeardown(f, nil)
	disks := []model.Disk{{Name: "sdb", SizeBytes: 1 << 30}, {Name: "sdc", SizeBytes: 1 << 30}}
	states := []model.DiskResidualState{{Disk: "sdb"}, {Disk: "sdc"}}
	report, err := td.RunAll(context.Background(), disks, states)
	require.NoError(t, err)
	assert.Less(t, f.Index("udevadm settle"), f.Index("wipefs -a -f /dev/sdc"))
	assert.Equal(t, len(report.Outcomes), report.Count(model.OutcomeOK))
}

func TestRunAllRejectsMismatchedStates(t *testing.T) {
	f := toolstest.New()
	td, _ := newTeardown(f, nil)
	disks := []model.Disk{{Name: "sdb", SizeBytes: 1 << 30}, {Name: "sdc", SizeBytes: 1 << 30}}
	report, err := td.RunAll(context.Background(), disks, []model.DiskResidualState{{Disk: "sdb"}})
	require.ErrorIs(t, err, ErrPrecondition)
	assert.Empty(t, report.Outcomes)
	assert.Empty(t, f.Calls())
}

func lvmState(pvs ...string) model.DiskResidualState {
	s := model.DiskResidualState{
		Disk:               "sdb",
		LVMVolumeGroups:    []string{"vg0"},
		LVMPhysicalVolumes: map[string][]string{"vg0": pvs},
	}
	s.Refresh()
	return s
}

func TestTeardownSharedGroupSurvivesFailedReduce(t *testing.T) {
	f := toolstest.New().
		Fail("vgreduce vg0 /dev/sdb1", "physical volume still in use").
		Stdout("pvs --noheadings", "  /dev/sdb1\n  /dev/sdc1\n")
	td, _ := newTeardown(f, nil)

	report, err := td.Run(context.Background(), model.Disk{Name: "sdb", SizeBytes: 1 << 40}, lvmState("/dev/sdb1"))
	require.Error(t, err)
	assert.False(t, f.Called("vgremove"), "vg0 still spans sdc: %v", f.Calls())

	var reduce model.Outcome
	for _, o := range report.Outcomes {
		if o.Step == "remove /dev/sdb1 from vg0" {
			reduce = o
		}
	}
	assert.Equal(t, model.OutcomeManual, reduce.Status)
	assert.Contains(t, reduce.Error, "/dev/sdc1")
}

func TestTeardownRemovesGroupOnLastDisk(t *testing.T) {
	f := toolstest.New().
		Fail("vgreduce vg0 /dev/sdb2", "cannot remove final physical volume").
		Stdout("pvs --noheadings", "  /dev/sdb1\n  /dev/sdb2\n")
	td, _ := newTeardown(f, nil)

	report, err := td.Run(context.Background(), model.Disk{Name: "sdb", SizeBytes: 1 << 40}, lvmState("/dev/sdb1", "/dev/sdb2"))
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.True(t, f.Called("vgremove -ff -y vg0"))
	assert.Less(t, f.Index("vgremove"), f.Index("pvremove -ff -y /dev/sdb2"))
}

func TestTeardownGroupListingFails(t *testing.T) {
	f := toolstest.New().
		Fail("vgreduce vg0 /dev/sdb1", "physical volume still in use").
		Fail("pvs --noheadings", "locking failed")
	td, _ := newTeardown(f, nil)

	_, err := td.Run(context.Background(), model.Disk{Name: "sdb", SizeBytes: 1 << 40}, lvmState("/dev/sdb1"))
	require.Error(t, err)
	assert.False(t, f.Called("vgremove"))
}
