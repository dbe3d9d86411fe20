package runner

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
)

// StageResult is how one stage of a scan ended.
type StageResult struct {
	Name     string
	Degraded bool // the stage fell back to its empty/error default
	Duration time.Duration
	Detail   string
}

// Progress collects stage results for the end-of-scan summary.
type Progress struct {
	stages []StageResult
}

func (p *Progress) add(r StageResult) {
	p.stages = append(p.stages, r)
}

// PrintSummary writes the stage table shown after a scan. scanID is empty
// when the record was not saved.
func (p *Progress) PrintSummary(w io.Writer, target string, total time.Duration, scanID string) {
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.Faint)

	degraded := 0
	for _, s := range p.stages {
		if s.Degraded {
			degraded++
		}
	}

	line := strings.Repeat("═", 56)
	fmt.Fprintln(w)
	cyan.Fprintln(w, line)
	cyan.Fprintf(w, "  Scan summary: %s\n", target)
	cyan.Fprintln(w, line)
	for _, s := range p.stages {
		if s.Degraded {
			yellow.Fprint(w, "  ✗ ")
		} else {
			green.Fprint(w, "  ✓ ")
		}
		fmt.Fprintf(w, "%-24s %8s  ", s.Name, formatDuration(s.Duration))
		dim.Fprintln(w, s.Detail)
	}
	fmt.Fprintln(w, strings.Repeat("─", 56))
	fmt.Fprintf(w, "  Stages: %d ok", len(p.stages)-degraded)
	if degraded > 0 {
		yellow.Fprintf(w, ", %d degraded", degraded)
	}
	fmt.Fprintf(w, "  Time: %s\n", formatDuration(total))
	if scanID != "" {
		fmt.Fprintf(w, "  Saved as: %s\n", scanID)
	}
	cyan.Fprintln(w, line)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	if seconds == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}
