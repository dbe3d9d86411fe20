package debug

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	enabled bool
	out     io.Writer = os.Stdout
	mu      sync.Mutex
	logs    []LogEntry
)

type LogEntry struct {
	Timestamp time.Time     `json:"timestamp"`
	Tool      string        `json:"tool"`
	Args      string        `json:"args"`
	Duration  time.Duration `json:"duration"`
	Status    string        `json:"status"`
}

// Enable turns on tool tracing.
func Enable() {
	mu.Lock()
	enabled = true
	mu.Unlock()
}

// Disable turns tracing off and forgets recorded entries.
func Disable() {
	mu.Lock()
	enabled = false
	logs = nil
	mu.Unlock()
}

func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// SetOutput redirects trace lines, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	out = w
	mu.Unlock()
}

func writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return out
}

// LogStart traces the start of a tool run and returns its start time.
func LogStart(tool string, args []string) time.Time {
	start := time.Now()
	if !IsEnabled() {
		return start
	}
	w := writer()
	color.New(color.FgHiBlack).Fprintf(w, "    [DEBUG %s] START: %s %s\n", start.Format("15:04:05.000"), tool, strings.Join(args, " "))
	return start
}

// LogEnd traces the completion of a tool run and records it for Summary.
func LogEnd(tool string, args []string, start time.Time, err error, outputLines int) {
	if !IsEnabled() {
		return
	}
	duration := time.Since(start)
	end := time.Now()

	status := "OK"
	statusColor := color.New(color.FgGreen)
	if err != nil {
		status = fmt.Sprintf("ERROR: %v", err)
		statusColor = color.New(color.FgRed)
	}

	w := writer()
	gray := color.New(color.FgHiBlack)
	gray.Fprintf(w, "    [DEBUG %s] END:   %s ", end.Format("15:04:05.000"), tool)
	statusColor.Fprintf(w, "%s", status)
	gray.Fprintf(w, " (duration: %s, output: %d lines)\n", duration.Round(time.Millisecond), outputLines)

	mu.Lock()
	logs = append(logs, LogEntry{
		Timestamp: end,
		Tool:      tool,
		Args:      strings.Join(args, " "),
		Duration:  duration,
		Status:    status,
	})
	mu.Unlock()
}

// LogStageStart traces the start of a scan stage.
func LogStageStart(stage string) time.Time {
	start := time.Now()
	if !IsEnabled() {
		return start
	}
	color.New(color.FgCyan, color.Bold).Fprintf(writer(), "    [DEBUG %s] STAGE START: %s\n", start.Format("15:04:05.000"), stage)
	return start
}

// LogStageEnd traces the end of a scan stage.
func LogStageEnd(stage string, start time.Time) {
	if !IsEnabled() {
		return
	}
	color.New(color.FgCyan, color.Bold).Fprintf(writer(), "    [DEBUG %s] STAGE END:   %s (total: %s)\n",
		time.Now().Format("15:04:05.000"), stage, time.Since(start).Round(time.Millisecond))
}

// Summary prints one line per traced tool run.
func Summary() {
	entries := GetLogs()
	if !IsEnabled() || len(entries) == 0 {
		return
	}

	w := writer()
	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Fprintln(w)
	cyan.Fprintln(w, "═══════════════════════════════════════════════════════")
	cyan.Fprintln(w, "                    DEBUG SUMMARY")
	cyan.Fprintln(w, "═══════════════════════════════════════════════════════")

	var total time.Duration
	for _, l := range entries {
		mark := "✓"
		if strings.HasPrefix(l.Status, "ERROR") {
			mark = "✗"
		}
		fmt.Fprintf(w, "  %s %-20s %10s\n", mark, l.Tool, l.Duration.Round(time.Millisecond))
		total += l.Duration
	}

	fmt.Fprintln(w, "───────────────────────────────────────────────────────")
	fmt.Fprintf(w, "  Total tool execution time: %s\n", total.Round(time.Millisecond))
	fmt.Fprintf(w, "  Tools executed: %d\n", len(entries))
	cyan.Fprintln(w, "═══════════════════════════════════════════════════════")
}

func GetLogs() []LogEntry {
	mu.Lock()
	defer mu.Unlock()
	return append([]LogEntry{}, logs...)
}
