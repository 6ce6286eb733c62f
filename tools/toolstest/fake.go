// Package toolstest provides a recording Runner for tests.
package toolstest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ftahirops/xraid/tools"
)

// Response is the scripted result of a command.
type Response struct {
	Stdout string
	Err    error
}

// FakeRunner records every invocation and answers from a script keyed by
// command line prefix. Unscripted commands succeed with empty output.
type FakeRunner struct {
	mu        sync.Mutex
	calls     []string
	responses map[string][]Response
	absent    map[string]bool
}

// New returns an empty FakeRunner.
func New() *FakeRunner {
	return &FakeRunner{
		responses: map[string][]Response{},
		absent:    map[string]bool{},
	}
}

// On scripts the responses for commands starting with prefix ("zpool destroy").
// Multiple responses are consumed in order; the last one repeats.
func (f *FakeRunner) On(prefix string, responses ...Response) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[prefix] = append(f.responses[prefix], responses...)
	return f
}

// Stdout is shorthand for a single successful response.
func (f *FakeRunner) Stdout(prefix, out string) *FakeRunner {
	return f.On(prefix, Response{Stdout: out})
}

// Fail is shorthand for a single failing response.
func (f *FakeRunner) Fail(prefix, stderr string) *FakeRunner {
	name, args, _ := strings.Cut(prefix, " ")
	return f.On(prefix, Response{Err: &tools.CommandError{
		Name:   name,
		Args:   strings.Fields(args),
		Stderr: stderr,
		Err:    fmt.Errorf("exit status 1"),
	}})
}

// Absent marks tool as not installed.
func (f *FakeRunner) Absent(tool string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.absent[tool] = true
	return f
}

func (f *FakeRunner) Available(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.absent[name]
}

func (f *FakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.absent[name] {
		return nil, fmt.Errorf("%s: %w", name, tools.ErrToolAbsent)
	}
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	f.calls = append(f.calls, line)

	best := ""
	for prefix := range f.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return nil, nil
	}
	queue := f.responses[best]
	resp := queue[0]
	if len(queue) > 1 {
		f.responses[best] = queue[1:]
	}
	return []byte(resp.Stdout), resp.Err
}

// Calls returns every command line executed so far.
func (f *FakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Index returns the position of the first call starting with prefix, or -1.
func (f *FakeRunner) Index(prefix string) int {
	for i, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			return i
		}
	}
	return -1
}

// Called reports whether any call starts with prefix.
func (f *FakeRunner) Called(prefix string) bool {
	return f.Index(prefix) >= 0
}
