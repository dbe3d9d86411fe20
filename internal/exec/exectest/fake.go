// Package exectest provides stand-ins for exec.Executor and tools.Locator
// so stage runners can be tested without the real tools installed.
package exectest

import (
	"context"
	"fmt"
	"sync"

	"github.com/vulnsight/vulnsight/internal/exec"
)

type Call struct {
	Name string
	Args []string
	Opts *exec.Options
}

// Fake returns canned results keyed by executable path. Unknown paths fail
// the way a spawn failure does.
type Fake struct {
	Results map[string]*exec.Result
	// OnRun runs before the result is returned, e.g. to write an output file.
	OnRun func(name string, args []string)

	mu    sync.Mutex
	calls []Call
}

func (f *Fake) Run(_ context.Context, name string, args []string, opts *exec.Options) *exec.Result {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Name: name, Args: append([]string(nil), args...), Opts: opts})
	f.mu.Unlock()

	if f.OnRun != nil {
		f.OnRun(name, args)
	}
	if r, ok := f.Results[name]; ok {
		return r
	}
	return &exec.Result{ExitCode: -1, Error: fmt.Errorf("exec: %q: executable file not found in $PATH", name)}
}

func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Locator maps tool names to paths; a missing key means not installed.
type Locator map[string]string

func (l Locator) Find(name string) (string, bool) {
	p, ok := l[name]
	return p, ok
}
