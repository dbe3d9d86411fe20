package exec

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/vulnsight/vulnsight/internal/debug"
)

// DefaultTimeout bounds a tool run when the caller does not set one.
const DefaultTimeout = 30 * time.Minute

// MaxLineSize is the longest line ReadLines keeps. nuclei JSONL records
// carry full request/response dumps; anything past this is skipped.
const MaxLineSize = 16 * 1024 * 1024

// running tracks child processes so an interrupted scan leaves nothing behind
var (
	running   = make(map[int]*exec.Cmd)
	runningMu sync.Mutex
)

func track(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	runningMu.Lock()
	running[cmd.Process.Pid] = cmd
	runningMu.Unlock()
}

func untrack(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	runningMu.Lock()
	delete(running, cmd.Process.Pid)
	runningMu.Unlock()
}

// KillAllProcesses terminates every tracked tool and its process group.
func KillAllProcesses() {
	runningMu.Lock()
	defer runningMu.Unlock()

	for pid, cmd := range running {
		if cmd.Process != nil {
			// negative pid targets the whole group (nmap and nuclei fork helpers)
			syscall.Kill(-pid, syscall.SIGKILL)
			cmd.Process.Kill()
		}
	}
	running = make(map[int]*exec.Cmd)
}

// Running reports how many tracked tools are still alive.
func Running() int {
	runningMu.Lock()
	defer runningMu.Unlock()
	return len(running)
}

type Result struct {
	Stdout, Stderr string
	ExitCode       int
	Duration       time.Duration
	Error          error
}

// Failed reports whether the tool could not be started or exited non-zero.
func (r *Result) Failed() bool {
	return r == nil || r.Error != nil
}

type Options struct {
	Timeout time.Duration
	Dir     string
	Env     []string
}

// Executor runs one external command to completion. Stage runners depend on
// it instead of os/exec so their parsing can be tested with canned output.
type Executor interface {
	Run(ctx context.Context, name string, args []string, opts *Options) *Result
}

// System is the Executor backed by real processes.
type System struct{}

func (System) Run(ctx context.Context, name string, args []string, opts *Options) *Result {
	return RunWithContext(ctx, name, args, opts)
}

// RunWithContext runs name with args, capturing stdout and stderr. It never
// returns nil; spawn and exit failures are reported through Result.Error.
func RunWithContext(ctx context.Context, name string, args []string, opts *Options) *Result {
	if opts == nil {
		opts = &Options{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if ctx == nil {
		ctx = context.Background()
	}

	start := debug.LogStart(name, args)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Start()
	if err == nil {
		track(cmd)
		err = cmd.Wait()
		untrack(cmd)
	}

	r := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err != nil {
		r.Error = err
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			r.ExitCode = exitErr.ExitCode()
		}
		if ctx.Err() == context.DeadlineExceeded {
			r.Error = errors.New("timed out after " + timeout.String())
		}
	}

	debug.LogEnd(name, args, start, r.Error, len(Lines(r.Stdout)))
	return r
}

// ReadLines returns the trimmed, non-empty lines of the file at path.
// Lines longer than MaxLineSize are dropped without affecting their
// neighbours. On a read error the lines collected so far are returned too.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		lines []string
		buf   []byte
		skip  bool
	)
	r := bufio.NewReaderSize(f, 64*1024)
	for {
		chunk, err := r.ReadSlice('\n')
		if !skip {
			if len(buf)+len(chunk) > MaxLineSize {
				skip = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		if !skip {
			if l := strings.TrimSpace(string(buf)); l != "" {
				lines = append(lines, l)
			}
		}
		buf, skip = buf[:0], false

		switch {
		case errors.Is(err, io.EOF):
			return lines, nil
		case err != nil:
			return lines, err
		}
	}
}

// Lines splits tool output on newlines, dropping blank lines and keeping order.
func Lines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
