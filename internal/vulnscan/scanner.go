package vulnscan

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/vulnsight/vulnsight/internal/config"
	"github.com/vulnsight/vulnsight/internal/exec"
	"github.com/vulnsight/vulnsight/internal/status"
	"github.com/vulnsight/vulnsight/internal/tools"
)

type Finding struct {
	Severity    Severity `json:"severity"`
	Name        string   `json:"name"`
	MatchedAt   string   `json:"matched_at"`
	Description string   `json:"description,omitempty"`
	TemplateID  string   `json:"template_id,omitempty"`
	Host        string   `json:"host,omitempty"`
}

// nucleiLine is one -jsonl record; only the fields we keep are decoded.
type nucleiLine struct {
	Host       string `json:"host"`
	MatchedAt  string `json:"matched-at"`
	TemplateID string `json:"template-id"`
	Info       struct {
		Name        string `json:"name"`
		Severity    string `json:"severity"`
		Description string `json:"description"`
	} `json:"info"`
}

type Scanner struct {
	loc     tools.Locator
	run     exec.Executor
	timeout time.Duration
	tempDir string
}

func NewScanner(cfg *config.Config, loc tools.Locator, run exec.Executor) *Scanner {
	return &Scanner{
		loc:     loc,
		run:     run,
		timeout: cfg.ToolTimeout(tools.Nuclei),
		tempDir: os.TempDir(),
	}
}

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// OutputPath is the ephemeral JSONL file for one run against target. The
// run ID keeps concurrent scans of the same target apart.
func (s *Scanner) OutputPath(target, runID string) string {
	name := unsafePathChars.ReplaceAllString(target, "_")
	return filepath.Join(s.tempDir, name+"_"+runID+"_nuclei.jsonl")
}

// Args is the nuclei invocation writing JSONL results to path.
func Args(target, path string) []string {
	return []string{"-u", target, "-jsonl", "-o", path}
}

// Scan runs nuclei against target and returns what it matched. nuclei's
// exit status is ignored: the output file existing is what counts.
func (s *Scanner) Scan(ctx context.Context, target, runID string) []Finding {
	bin, ok := s.loc.Find(tools.Nuclei)
	if !ok {
		return []Finding{}
	}
	if runID == "" {
		runID = uuid.NewString()[:8]
	}
	path := s.OutputPath(target, runID)

	status.Infof("Starting Nuclei vulnerability scan on '%s'...", target)
	r := s.run.Run(ctx, bin, Args(target, path), &exec.Options{Timeout: s.timeout})

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		// ExitCode is only set once the process actually ran
		if r.Failed() && r.ExitCode == 0 {
			status.Errorf("nuclei failed: %v", r.Error)
			return []Finding{}
		}
		status.Infof("Nuclei scan complete, no vulnerabilities found.")
		return []Finding{}
	}

	findings, err := ReadFindings(path)
	if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		status.Errorf("could not remove %s: %v", path, rmErr)
	}
	if err != nil {
		status.Errorf("reading nuclei output: %v", err)
	}

	status.Infof("Nuclei scan complete, %d potential findings.", len(findings))
	return findings
}

// ReadFindings parses a nuclei JSONL file, skipping lines that do not decode.
// Findings read before an I/O error are returned alongside it.
func ReadFindings(path string) ([]Finding, error) {
	lines, err := exec.ReadLines(path)
	return ParseLines(lines), err
}

func ParseLines(lines []string) []Finding {
	out := []Finding{}
	for _, line := range lines {
		if f, ok := parseLine(line); ok {
			out = append(out, f)
		}
	}
	return out
}

func parseLine(line string) (Finding, bool) {
	// null leaves n nil; other non-object values fail to decode
	var n *nucleiLine
	if err := json.Unmarshal([]byte(line), &n); err != nil || n == nil {
		return Finding{}, false
	}
	return Finding{
		Severity:    ParseSeverity(n.Info.Severity),
		Name:        n.Info.Name,
		MatchedAt:   n.MatchedAt,
		Description: n.Info.Description,
		TemplateID:  n.TemplateID,
		Host:        n.Host,
	}, true
}
