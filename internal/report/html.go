package report

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vulnsight/vulnsight/internal/output"
	"github.com/vulnsight/vulnsight/internal/techdetect"
	"github.com/vulnsight/vulnsight/internal/version"
	"github.com/vulnsight/vulnsight/internal/vulnscan"
)

//go:embed report.html.tmpl
var htmlTemplate string

// Meta identifies a saved scan in a report header. Both fields are optional.
type Meta struct {
	ID        string
	Timestamp string
}

type SeverityCount struct {
	Level string
	Count int
}

// Data is the view of a record that the HTML and PDF renderers share.
type Data struct {
	ID              string
	Target          string
	Date            string
	Version         string
	Subdomains      []string
	PortScan        string
	PortScanFailed  bool
	Technologies    []techdetect.Finding
	Vulnerabilities []vulnscan.Finding
	Counts          []SeverityCount
	AISuggestions   string
}

// NewData prepares rec for rendering. Findings are ordered critical first;
// rec itself is not modified.
func NewData(rec *output.Record, meta Meta) Data {
	vulns := append([]vulnscan.Finding(nil), rec.Vulnerabilities...)
	vulnscan.SortBySeverity(vulns)

	counts := rec.SeverityCounts()
	sc := make([]SeverityCount, 0, len(vulnscan.Severities))
	for _, s := range vulnscan.Severities {
		sc = append(sc, SeverityCount{Level: string(s), Count: counts[s]})
	}

	date := meta.Timestamp
	if date == "" {
		date = time.Now().Format("2006-01-02 15:04:05")
	}
	return Data{
		ID:              meta.ID,
		Target:          rec.Target,
		Date:            date,
		Version:         version.Version,
		Subdomains:      rec.Subdomains,
		PortScan:        rec.PortScan.String(),
		PortScanFailed:  rec.PortScan.Failed(),
		Technologies:    rec.Technologies,
		Vulnerabilities: vulns,
		Counts:          sc,
		AISuggestions:   rec.AISuggestions,
	}
}

var tmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	// a Caser is not safe for concurrent use
	"title": func(s string) string { return cases.Title(language.English).String(s) },
	"join":  strings.Join,
}).Parse(htmlTemplate))

// RenderHTML writes a self-contained HTML report for rec.
func RenderHTML(w io.Writer, rec *output.Record, meta Meta) error {
	return tmpl.Execute(w, NewData(rec, meta))
}

// WriteHTML renders rec to path, creating parent directories.
func WriteHTML(path string, rec *output.Record, meta Meta) error {
	return writeFile(path, func(w io.Writer) error { return RenderHTML(w, rec, meta) })
}

func writeFile(path string, render func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
