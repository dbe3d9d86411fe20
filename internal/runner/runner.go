package runner

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vulnsight/vulnsight/internal/aiguided"
	"github.com/vulnsight/vulnsight/internal/config"
	"github.com/vulnsight/vulnsight/internal/debug"
	"github.com/vulnsight/vulnsight/internal/exec"
	"github.com/vulnsight/vulnsight/internal/output"
	"github.com/vulnsight/vulnsight/internal/portscan"
	"github.com/vulnsight/vulnsight/internal/status"
	"github.com/vulnsight/vulnsight/internal/storage"
	"github.com/vulnsight/vulnsight/internal/subdomain"
	"github.com/vulnsight/vulnsight/internal/techdetect"
	"github.com/vulnsight/vulnsight/internal/tools"
	"github.com/vulnsight/vulnsight/internal/vulnscan"
)

// StageCount is the number of stages in a full scan.
const StageCount = 5

// Saver persists a finished record.
type Saver interface {
	Save(ctx context.Context, rec *output.Record) (*storage.HistoryEntry, error)
}

// Suggester turns fingerprint entries into CVE suggestions. It always
// returns text, a diagnostic when it cannot help.
type Suggester interface {
	Suggest(ctx context.Context, entries []techdetect.Entry) string
}

// ProgressUpdate reports the stage a running scan has reached.
type ProgressUpdate struct {
	Stage   int    `json:"stage"`
	Total   int    `json:"total"`
	Name    string `json:"name"`
	Message string `json:"message,omitempty"`
}

// Runner executes the five scan stages in order and saves the result.
type Runner struct {
	store    Saver
	subs     *subdomain.Enumerator
	ports    *portscan.Scanner
	tech     *techdetect.Detector
	ai       Suggester
	vulns    *vulnscan.Scanner
	runID    func() string
	progress func(ProgressUpdate)
}

type options struct {
	loc      tools.Locator
	run      exec.Executor
	ai       Suggester
	runID    func() string
	progress func(ProgressUpdate)
}

// Option configures a Runner built by New.
type Option func(*options)

// WithLocator replaces the PATH lookup for tools.
func WithLocator(l tools.Locator) Option { return func(o *options) { o.loc = l } }

// WithExecutor replaces real process execution.
func WithExecutor(e exec.Executor) Option { return func(o *options) { o.run = e } }

// WithSuggester replaces the Gemini client.
func WithSuggester(s Suggester) Option { return func(o *options) { o.ai = s } }

// WithRunID sets the generator for per-run IDs used in temp file names.
func WithRunID(fn func() string) Option { return func(o *options) { o.runID = fn } }

// WithProgress registers a callback invoked as each stage starts.
func WithProgress(fn func(ProgressUpdate)) Option { return func(o *options) { o.progress = fn } }

// New wires the stages from cfg. store may be nil to skip persistence.
func New(cfg *config.Config, store Saver, opts ...Option) *Runner {
	o := options{
		run:   exec.System{},
		runID: func() string { return uuid.NewString()[:8] },
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.loc == nil {
		o.loc = tools.NewChecker(cfg.Tools)
	}
	if o.ai == nil {
		o.ai = aiguided.NewFromConfig(cfg)
	}

	return &Runner{
		store:    store,
		subs:     subdomain.NewEnumerator(cfg, o.loc, o.run),
		ports:    portscan.NewScanner(cfg, o.loc, o.run),
		tech:     techdetect.NewDetector(cfg, o.loc, o.run),
		ai:       o.ai,
		vulns:    vulnscan.NewScanner(cfg, o.loc, o.run),
		runID:    o.runID,
		progress: o.progress,
	}
}

// RunFullScan runs every stage against target, saves the record and
// returns it. It has no error path: failed stages leave their documented
// defaults in the record.
func (r *Runner) RunFullScan(ctx context.Context, target string) *output.Record {
	rec, _ := r.Scan(ctx, target)
	return rec
}

// Scan is RunFullScan that also returns the history entry of the saved
// record, or nil when it was not saved.
func (r *Runner) Scan(ctx context.Context, target string) (*output.Record, *storage.HistoryEntry) {
	start := time.Now()
	runID := r.runID()
	rec := output.NewRecord(target)
	var prog Progress

	status.Infof("Starting full scan for '%s'...", target)

	r.stage(&prog, 1, "Subdomain Enumeration", func() (string, bool) {
		rec.Subdomains = r.subs.Enumerate(ctx, target)
		return fmt.Sprintf("%d subdomains", len(rec.Subdomains)), false
	})
	r.stage(&prog, 2, "Port Scan", func() (string, bool) {
		rec.PortScan = r.ports.Scan(ctx, target)
		if rec.PortScan.Failed() {
			return rec.PortScan.Reason(), true
		}
		return fmt.Sprintf("%d lines of output", len(exec.Lines(rec.PortScan.Output()))), false
	})
	var tech techdetect.Result
	r.stage(&prog, 3, "Technology Detection", func() (string, bool) {
		tech = r.tech.Detect(ctx, target)
		rec.Technologies = tech.Findings
		return fmt.Sprintf("%d technologies", len(tech.Findings)), false
	})
	r.stage(&prog, 4, "AI Suggestions", func() (string, bool) {
		rec.AISuggestions = r.ai.Suggest(ctx, tech.Raw)
		if aiguided.IsDiagnostic(rec.AISuggestions) {
			return firstLine(rec.AISuggestions), true
		}
		return "suggestions received", false
	})
	r.stage(&prog, 5, "Vulnerability Scan", func() (string, bool) {
		rec.Vulnerabilities = r.vulns.Scan(ctx, target, runID)
		return fmt.Sprintf("%d findings", len(rec.Vulnerabilities)), false
	})
	rec.Normalize()

	// an interrupted scan is never persisted
	if ctx.Err() != nil {
		status.Errorf("Scan of '%s' interrupted; nothing was saved.", target)
		return rec, nil
	}

	var entry *storage.HistoryEntry
	if r.store != nil {
		e, err := r.store.Save(ctx, rec)
		if err != nil {
			status.Errorf("Could not save scan: %v", err)
		} else {
			entry = e
			status.Infof("Scan saved with ID %s.", e.ID)
		}
	}

	var id string
	if entry != nil {
		id = entry.ID
	}
	elapsed := time.Since(start)
	status.Block(func(w io.Writer) { prog.PrintSummary(w, target, elapsed, id) })
	return rec, entry
}

func (r *Runner) stage(prog *Progress, n int, name string, fn func() (detail string, degraded bool)) {
	status.Stage(n, StageCount, name)
	if r.progress != nil {
		r.progress(ProgressUpdate{Stage: n, Total: StageCount, Name: name})
	}
	t := debug.LogStageStart(name)
	detail, degraded := fn()
	debug.LogStageEnd(name, t)
	prog.add(StageResult{Name: name, Degraded: degraded, Duration: time.Since(t), Detail: detail})
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return truncate(line, 60)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
