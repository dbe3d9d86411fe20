package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulnsight/vulnsight/internal/output"
	"github.com/vulnsight/vulnsight/internal/portscan"
	"github.com/vulnsight/vulnsight/internal/techdetect"
	"github.com/vulnsight/vulnsight/internal/vulnscan"
)

func sample() *output.Record {
	rec := output.NewRecord("example.com")
	rec.Subdomains = []string{"a.example.com", "<b>.example.com"}
	rec.PortScan = portscan.Success("80/tcp open http nginx 1.18.0\n")
	rec.Technologies = []techdetect.Finding{
		{Name: "nginx", Versions: []string{"1.18"}},
		{Name: "WordPress", Versions: []string{}},
	}
	rec.Vulnerabilities = []vulnscan.Finding{
		{Severity: vulnscan.Low, Name: "Low thing", MatchedAt: "https://example.com/low"},
		{Severity: vulnscan.Critical, Name: "Critical thing", MatchedAt: "https://example.com/crit", TemplateID: "CVE-2021-41773"},
	}
	rec.AISuggestions = "CVE-2021-23017: nginx resolver off-by-one (High)"
	return rec
}

func TestRenderHTML(t *testing.T) {
	rec := sample()
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, rec, Meta{ID: "abcd1234", Timestamp: "2024-05-01 10:00:00"}))
	html := buf.String()

	assert.Contains(t, html, "<title>VulnSight Scan Report - example.com</title>")
	assert.Contains(t, html, "Scan abcd1234")
	assert.Contains(t, html, "2024-05-01 10:00:00")
	assert.Contains(t, html, "&lt;b&gt;.example.com", "subdomains are escaped")
	assert.Contains(t, html, "<strong>nginx</strong>: 1.18")
	assert.Contains(t, html, "CVE-2021-23017")
	assert.Contains(t, html, "Critical: 1")

	crit := strings.Index(html, "Critical thing")
	low := strings.Index(html, "Low thing")
	require.True(t, crit > 0 && low > 0)
	assert.Less(t, crit, low, "critical findings come first")

	// rendering does not reorder the record
	assert.Equal(t, "Low thing", rec.Vulnerabilities[0].Name)
}

func TestRenderHTML_Empty(t *testing.T) {
	rec := output.NewRecord("example.com")
	rec.PortScan = portscan.Failure("nmap not found")
	rec.AISuggestions = "No technologies detected for AI analysis."

	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, rec, Meta{}))
	html := buf.String()

	assert.Contains(t, html, "No vulnerabilities confirmed by Nuclei.")
	assert.Contains(t, html, "No subdomains found.")
	assert.Contains(t, html, "No technologies detected.")
	assert.Contains(t, html, `<pre class="error">Error: nmap not found</pre>`)
}

func TestRenderPDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderPDF(&buf, sample(), Meta{ID: "abcd1234"}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	buf.Reset()
	require.NoError(t, RenderPDF(&buf, output.NewRecord("empty.example.com"), Meta{}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	htmlPath := filepath.Join(dir, "scan.html")
	pdfPath := filepath.Join(dir, "scan.pdf")

	require.NoError(t, WriteHTML(htmlPath, sample(), Meta{}))
	require.NoError(t, WritePDF(pdfPath, sample(), Meta{}))

	for _, p := range []string{htmlPath, pdfPath} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}
