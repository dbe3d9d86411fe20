package subdomain

import (
	"context"
	"time"

	"github.com/vulnsight/vulnsight/internal/config"
	"github.com/vulnsight/vulnsight/internal/exec"
	"github.com/vulnsight/vulnsight/internal/status"
	"github.com/vulnsight/vulnsight/internal/tools"
)

type Enumerator struct {
	loc     tools.Locator
	run     exec.Executor
	timeout time.Duration
}

func NewEnumerator(cfg *config.Config, loc tools.Locator, run exec.Executor) *Enumerator {
	return &Enumerator{loc: loc, run: run, timeout: cfg.ToolTimeout(tools.Subfinder)}
}

// Args is the subfinder invocation for target.
func Args(target string) []string {
	return []string{"-d", target, "-silent"}
}

// Enumerate returns the subdomains subfinder reports for target, in the
// order it reports them. Duplicates are passed through. A missing tool or
// failed run yields an empty slice, never nil.
func (e *Enumerator) Enumerate(ctx context.Context, target string) []string {
	bin, ok := e.loc.Find(tools.Subfinder)
	if !ok {
		return []string{}
	}

	status.Infof("Enumerating subdomains for '%s'...", target)
	r := e.run.Run(ctx, bin, Args(target), &exec.Options{Timeout: e.timeout})
	if r.Failed() {
		status.Errorf("subfinder failed: %v", r.Error)
		return []string{}
	}

	subs := exec.Lines(r.Stdout)
	if subs == nil {
		subs = []string{}
	}
	status.Infof("Found %d subdomains", len(subs))
	return subs
}
