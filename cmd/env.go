package cmd

import (
	"github.com/sirupsen/logrus"

	"github.com/ftahirops/xraid/collector"
	"github.com/ftahirops/xraid/engine"
	"github.com/ftahirops/xraid/tools"
)

// env wires the engine components for one command invocation.
type env struct {
	tools     *tools.Set
	mounts    collector.MountTable
	media     collector.MediaInfo
	inventory *collector.Inventory
	analyzer  *collector.Analyzer
	teardown  *engine.Teardown
	cache     *engine.CachePlanner
	assembler *engine.Assembler
	status    *collector.Status
}

func (o *options) env() *env {
	log := func(component string) *logrus.Entry { return logrus.WithField("component", component) }

	ts := tools.NewSet(o.newRunner(o.cfg, log("runner")), o.procRoot)
	var mounts collector.MountTable = collector.MountInfo{}
	if o.mounts != nil {
		mounts = o.mounts
	}
	var media collector.MediaInfo = &collector.HardwareMedia{}
	if o.media != nil {
		media = o.media
	}
	confirm := o.confirmer()

	e := &env{
		tools:  ts,
		mounts: mounts,
		media:  media,
		inventory: &collector.Inventory{
			Lister: ts.Lsblk,
			Mounts: mounts,
			Policy: collector.PolicyFromConfig(o.cfg.Protection),
			Pools:  ts.ZFS,
			Log:    log("inventory"),
		},
		analyzer: collector.NewAnalyzer(ts, mounts, log("analyzer")),
		teardown: engine.NewTeardown(ts, mounts, o.cfg.Wipe, log("teardown")),
		cache:    engine.NewCachePlanner(ts, media, o.cfg.Cache, confirm, log("cache")),
		status:   &collector.Status{Tools: ts, Mounts: mounts, Log: log("status")},
	}
	e.assembler = &engine.Assembler{
		Scanner:  e.inventory,
		Analyzer: e.analyzer,
		Teardown: e.teardown,
		Tools:    ts,
		Cache:    e.cache,
		Confirm:  confirm,
		Config:   o.cfg,
		Log:      log("assembly"),
	}
	return e
}
