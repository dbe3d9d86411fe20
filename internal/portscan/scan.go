package portscan

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/vulnsight/vulnsight/internal/config"
	"github.com/vulnsight/vulnsight/internal/exec"
	"github.com/vulnsight/vulnsight/internal/status"
	"github.com/vulnsight/vulnsight/internal/tools"
)

// ErrorPrefix marks a failed scan in the text form of an Outcome. Report
// and JSON consumers treat any output starting with "Error:" as no data.
const ErrorPrefix = "Error: "

// Outcome is either nmap's raw output or the reason the scan produced none.
type Outcome struct {
	text   string
	failed bool
}

func Success(output string) Outcome { return Outcome{text: output} }

func Failure(reason string) Outcome { return Outcome{text: reason, failed: true} }

func (o Outcome) Failed() bool { return o.failed }

// Output returns the scan text, or "" for a failure.
func (o Outcome) Output() string {
	if o.failed {
		return ""
	}
	return o.text
}

// Reason returns the failure description, or "" for a success.
func (o Outcome) Reason() string {
	if !o.failed {
		return ""
	}
	return o.text
}

// String renders the legacy text form: raw output, or "Error: <reason>".
func (o Outcome) String() string {
	if o.failed {
		return ErrorPrefix + o.text
	}
	return o.text
}

// ParseOutcome is the inverse of String.
func ParseOutcome(s string) Outcome {
	if rest, ok := strings.CutPrefix(s, "Error:"); ok {
		return Failure(strings.TrimSpace(rest))
	}
	return Success(s)
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = ParseOutcome(s)
	return nil
}

type Scanner struct {
	loc     tools.Locator
	run     exec.Executor
	timeout time.Duration
}

func NewScanner(cfg *config.Config, loc tools.Locator, run exec.Executor) *Scanner {
	return &Scanner{loc: loc, run: run, timeout: cfg.ToolTimeout(tools.Nmap)}
}

// Args is the nmap invocation for target: top 100 ports with service detection.
func Args(target string) []string {
	return []string{"-F", "-sV", target}
}

// Scan runs nmap against target and returns its stdout untouched.
func (s *Scanner) Scan(ctx context.Context, target string) Outcome {
	bin, ok := s.loc.Find(tools.Nmap)
	if !ok {
		return Failure("nmap not found")
	}

	status.Infof("Starting Nmap scan on '%s'...", target)
	r := s.run.Run(ctx, bin, Args(target), &exec.Options{Timeout: s.timeout})
	if r.Failed() {
		reason := "nmap failed"
		if r != nil && r.Error != nil {
			reason = r.Error.Error()
		}
		status.Errorf("nmap failed: %s", reason)
		return Failure(reason)
	}
	return Success(r.Stdout)
}
