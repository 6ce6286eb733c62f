// Package tools wraps the external storage utilities the engine drives.
// Every tool has its own file with a typed parser for its output.
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	utilexec "k8s.io/utils/exec"
)

var (
	// ErrToolAbsent is returned when the binary is not installed.
	ErrToolAbsent = errors.New("tool not installed")
)

// CommandError is a failed invocation with its captured stderr.
type CommandError struct {
	Name   string
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Name, strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExitStatus returns the exit code of the command, or -1 when it did not run.
func (e *CommandError) ExitStatus() int {
	var exitErr utilexec.ExitError
	if errors.As(e.Err, &exitErr) {
		return exitErr.ExitStatus()
	}
	return -1
}

// Runner executes external commands.
type Runner interface {
	// Run executes name with args and returns stdout.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	// Available reports whether name can be found.
	Available(name string) bool
}

// ExecRunner is the Runner backed by k8s.io/utils/exec.
type ExecRunner struct {
	exec utilexec.Interface
	// resolve maps a logical tool name to the binary to invoke.
	resolve func(string) string
	log     *logrus.Entry
}

// NewRunner returns a Runner over exec. resolve may be nil.
func NewRunner(exec utilexec.Interface, resolve func(string) string, log *logrus.Entry) *ExecRunner {
	if resolve == nil {
		resolve = func(s string) string { return s }
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ExecRunner{exec: exec, resolve: resolve, log: log}
}

func (r *ExecRunner) Available(name string) bool {
	_, err := r.exec.LookPath(r.resolve(name))
	return err == nil
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	bin := r.resolve(name)
	path, err := r.exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, ErrToolAbsent)
	}

	var stdout, stderr bytes.Buffer
	cmd := r.exec.CommandContext(ctx, path, args...)
	cmd.SetStdout(&stdout)
	cmd.SetStderr(&stderr)

	r.log.WithField("cmd", name).Debugf("exec %s %s", name, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		cerr := &CommandError{
			Name:   name,
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
		r.log.WithFields(logrus.Fields{"cmd": name, "exit_status": cerr.ExitStatus()}).Debugf("exec failed: %s", cerr.Stderr)
		return stdout.Bytes(), cerr
	}
	return stdout.Bytes(), nil
}

// IsAbsent reports whether err means the tool is not installed.
func IsAbsent(err error) bool {
	return errors.Is(err, ErrToolAbsent)
}
