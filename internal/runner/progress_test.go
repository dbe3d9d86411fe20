package runner

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestPrintSummary(t *testing.T) {
	color.NoColor = true
	var p Progress
	p.add(StageResult{Name: "Subdomain Enumeration", Duration: 1500 * time.Millisecond, Detail: "3 subdomains"})
	p.add(StageResult{Name: "Port Scan", Degraded: true, Detail: "nmap not found"})

	var buf bytes.Buffer
	p.PrintSummary(&buf, "example.com", 95*time.Second, "abcd1234")
	out := buf.String()

	assert.Contains(t, out, "Scan summary: example.com")
	assert.Contains(t, out, "✓ Subdomain Enumeration")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "✗ Port Scan")
	assert.Contains(t, out, "nmap not found")
	assert.Contains(t, out, "Stages: 1 ok, 1 degraded")
	assert.Contains(t, out, "Time: 1m35s")
	assert.Contains(t, out, "Saved as: abcd1234")

	buf.Reset()
	p.PrintSummary(&buf, "example.com", time.Second, "")
	assert.NotContains(t, buf.String(), "Saved as")
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		250 * time.Millisecond:   "250ms",
		12300 * time.Millisecond: "12.3s",
		2 * time.Minute:          "2m",
		125 * time.Second:        "2m5s",
	}
	for d, want := range tests {
		assert.Equal(t, want, formatDuration(d))
	}
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "AI API Error: 401 - denied", firstLine("AI API Error: 401 - denied\nmore"))
}
