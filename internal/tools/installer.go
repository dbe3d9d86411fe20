package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vulnsight/vulnsight/internal/exec"
	"github.com/vulnsight/vulnsight/internal/status"
)

// InstallTimeout bounds a single install command.
const InstallTimeout = 15 * time.Minute

// Installer installs missing scan tools with `go install` or the system
// package manager.
type Installer struct {
	c        *Checker
	platform *Platform
	run      exec.Executor
}

func NewInstaller(c *Checker, p *Platform, run exec.Executor) *Installer {
	return &Installer{c: c, platform: p, run: run}
}

// Command returns the command line that installs t on this platform.
func (i *Installer) Command(t Tool) (string, []string, error) {
	if t.GoModule != "" {
		if !i.c.IsInstalled("go") {
			return "", nil, fmt.Errorf("go toolchain not found; install Go or run: %s", t.InstallHint())
		}
		return "go", []string{"install", "-v", t.GoModule}, nil
	}
	return i.platform.PackageCommand(t.Package)
}

// Install installs t unless it is already present.
func (i *Installer) Install(ctx context.Context, t Tool) error {
	if i.c.IsInstalled(t.Name) {
		return nil
	}
	name, args, err := i.Command(t)
	if err != nil {
		return err
	}

	status.Infof("Installing %s: %s %s", t.Name, name, strings.Join(args, " "))
	r := i.run.Run(ctx, name, args, &exec.Options{Timeout: InstallTimeout})
	if r.Failed() {
		if msg := strings.TrimSpace(r.Stderr); msg != "" {
			return fmt.Errorf("%s: %s", t.Name, lastLines(msg, 5))
		}
		return fmt.Errorf("%s: %w", t.Name, r.Error)
	}
	return nil
}

// InstallMissing installs every scan tool that cannot be found and returns
// the failures by tool name.
func (i *Installer) InstallMissing(ctx context.Context) map[string]error {
	failed := map[string]error{}
	for _, name := range i.c.GetMissing() {
		t, _ := Lookup(name)
		if err := i.Install(ctx, t); err != nil {
			failed[name] = err
		}
	}
	return failed
}

// UpdateNucleiTemplates refreshes the template set nuclei scans with.
func (i *Installer) UpdateNucleiTemplates(ctx context.Context) error {
	path, ok := i.c.Find(Nuclei)
	if !ok {
		return fmt.Errorf("nuclei is not installed")
	}
	r := i.run.Run(ctx, path, []string{"-update-templates", "-silent"}, &exec.Options{Timeout: InstallTimeout})
	if r.Failed() {
		return fmt.Errorf("update nuclei templates: %w", r.Error)
	}
	return nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
