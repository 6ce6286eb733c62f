package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	utilexec "k8s.io/utils/exec"
	"sigs.k8s.io/yaml"

	"github.com/ftahirops/xraid/collector"
	"github.com/ftahirops/xraid/config"
	"github.com/ftahirops/xraid/engine"
	"github.com/ftahirops/xraid/tools"
	"github.com/ftahirops/xraid/ui"
)

// Version is set at build time via ldflags.
var Version = "0.1.0"

// Output formats.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// options holds the persistent flags and the collaborators built from them.
type options struct {
	configPath string
	logLevel   string
	logFormat  string
	output     string
	yes        bool

	cfg config.Config
	out io.Writer
	in  io.Reader

	// newRunner builds the command runner; tests replace it.
	newRunner func(cfg config.Config, log *logrus.Entry) tools.Runner
	// procRoot overrides /proc for the md table.
	procRoot string
	mounts   collector.MountTable
	media    collector.MediaInfo
	// stdinTTY reports whether prompts can be shown.
	stdinTTY func() bool
	// confirm overrides the prompt; tests replace it.
	confirm engine.Confirmer
}

func defaultOptions() *options {
	return &options{
		out: os.Stdout,
		in:  os.Stdin,
		newRunner: func(cfg config.Config, log *logrus.Entry) tools.Runner {
			return tools.NewRunner(utilexec.New(), cfg.Tool, log)
		},
		stdinTTY: func() bool {
			return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
		},
	}
}

// NewRootCommand returns the xraid command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultOptions())
}

func newRootCommand(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "xraid",
		Short: "Provision ZFS and btrfs RAID pools from raw disks",
		Long: `xraid inventories block devices, protects system disks, tears down whatever
storage a disk still carries and assembles new ZFS or btrfs pools, with optional
ZFS read cache and write log devices.

Every destructive command asks for confirmation; pass --yes to skip it.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.setup(cmd)
		},
	}
	root.SetOut(o.out)
	root.SetIn(o.in)

	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "config file (default "+config.Path()+")")
	pf.StringVar(&o.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	pf.StringVar(&o.logFormat, "log-format", "text", "log format: text or json")
	pf.StringVarP(&o.output, "output", "o", outputTable, "output format: table, json or yaml")
	pf.BoolVarP(&o.yes, "yes", "y", false, "assume yes for every confirmation")

	root.AddCommand(
		newScanCommand(o),
		newAnalyzeCommand(o),
		newWipeCommand(o),
		newCapacityCommand(o),
		newCreateCommand(o),
		newCacheCommand(o),
		newDatasetCommand(o),
		newStatusCommand(o),
		newVersionCommand(o),
	)
	return root
}

func (o *options) setup(cmd *cobra.Command) error {
	logrus.SetOutput(cmd.ErrOrStderr())
	if o.logFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}

	if o.configPath != "" {
		cfg, err := config.LoadFrom(o.configPath)
		if err != nil {
			return err
		}
		o.cfg = cfg
	} else {
		o.cfg = config.Load()
	}
	if err := o.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level := o.logLevel
	if level == "" {
		level = o.cfg.LogLevel
	}
	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return err
		}
		logrus.SetLevel(lvl)
	}

	switch o.output {
	case outputTable, outputJSON, outputYAML:
	default:
		return fmt.Errorf("unknown output format %q", o.output)
	}
	return nil
}

// confirmer picks how destructive actions are approved: --yes, an injected
// confirmer, or a terminal prompt. Without a terminal and without --yes every
// destructive action is refused.
func (o *options) confirmer() engine.Confirmer {
	switch {
	case o.yes:
		return engine.AutoConfirm
	case o.confirm != nil:
		return o.confirm
	case o.stdinTTY != nil && o.stdinTTY():
		return ui.Prompt{In: o.in, Out: os.Stderr}
	}
	return engine.ConfirmFunc(func(title string, _ []string) (bool, error) {
		return false, fmt.Errorf("%q needs confirmation: no terminal, pass --yes", title)
	})
}

// print writes v in the selected format; render produces the table form.
func (o *options) print(v interface{}, render func() string) error {
	switch o.output {
	case outputJSON:
		enc := json.NewEncoder(o.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = o.out.Write(data)
		return err
	}
	_, err := io.WriteString(o.out, render())
	return err
}

func newVersionCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return o.print(map[string]string{"version": Version}, func() string {
				return "xraid v" + Version + "\n"
			})
		},
	}
}

// Run executes the command line. An interrupt cancels scans and waits but
// never a teardown sequence already in progress.
func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}
