package report

import (
	"fmt"
	"io"
	"strings"

	gofpdf "github.com/go-pdf/fpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vulnsight/vulnsight/internal/output"
)

var pdfSeverityColors = map[string][]int{
	"critical": {217, 83, 79},
	"high":     {240, 173, 78},
	"medium":   {91, 192, 222},
	"low":      {92, 184, 92},
	"info":     {128, 128, 128},
}

// RenderPDF writes a PDF report for rec with the same sections as the HTML one.
func RenderPDF(w io.Writer, rec *output.Record, meta Meta) error {
	d := NewData(rec, meta)
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	title := cases.Title(language.English)

	pdf.SetTitle("VulnSight Scan Report - "+d.Target, true)
	pdf.SetCreator("vulnsight "+d.Version, true)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(150, 150, 150)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(217, 83, 79)
	pdf.CellFormat(0, 12, "VulnSight Scan Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 7, tr("Target: "+d.Target), "", 1, "C", false, 0, "")
	sub := d.Date
	if d.ID != "" {
		sub = "Scan " + d.ID + "  |  " + sub
	}
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, tr(sub), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	section := func(name string) {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "B", 13)
		pdf.SetTextColor(74, 144, 226)
		pdf.CellFormat(0, 8, name, "B", 1, "L", false, 0, "")
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(60, 60, 60)
	}

	section("Confirmed Vulnerabilities (Nuclei)")
	counts := make([]string, 0, len(d.Counts))
	for _, c := range d.Counts {
		counts = append(counts, fmt.Sprintf("%s: %d", title.String(c.Level), c.Count))
	}
	pdf.MultiCell(0, 5, strings.Join(counts, "   "), "", "L", false)
	pdf.Ln(2)
	if len(d.Vulnerabilities) == 0 {
		pdf.MultiCell(0, 5, "No vulnerabilities confirmed by Nuclei.", "", "L", false)
	} else {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(0, 152, 121)
		pdf.SetTextColor(255, 255, 255)
		pdf.CellFormat(25, 7, "Severity", "1", 0, "L", true, 0, "")
		pdf.CellFormat(75, 7, "Name", "1", 0, "L", true, 0, "")
		pdf.CellFormat(90, 7, "Matched At", "1", 1, "L", true, 0, "")

		pdf.SetFont("Helvetica", "", 8)
		for _, v := range d.Vulnerabilities {
			sev := string(v.Severity)
			c, ok := pdfSeverityColors[sev]
			if !ok {
				c = pdfSeverityColors["info"]
			}
			pdf.SetTextColor(c[0], c[1], c[2])
			pdf.CellFormat(25, 6, title.String(sev), "1", 0, "L", false, 0, "")
			pdf.SetTextColor(60, 60, 60)
			pdf.CellFormat(75, 6, tr(fit(pdf, v.Name, 73)), "1", 0, "L", false, 0, "")
			pdf.CellFormat(90, 6, tr(fit(pdf, v.MatchedAt, 88)), "1", 1, "L", false, 0, "")
		}
	}

	section("AI-Powered CVE Suggestions")
	pdf.MultiCell(0, 5, tr(d.AISuggestions), "", "L", false)

	section("Subdomain Enumeration")
	if len(d.Subdomains) == 0 {
		pdf.MultiCell(0, 5, "No subdomains found.", "", "L", false)
	}
	for _, s := range d.Subdomains {
		pdf.CellFormat(0, 5, tr("- "+s), "", 1, "L", false, 0, "")
	}

	section("Nmap Port Scan Results")
	pdf.SetFont("Courier", "", 8)
	if d.PortScanFailed {
		pdf.SetTextColor(169, 68, 66)
	}
	pdf.MultiCell(0, 4, tr(d.PortScan), "", "L", false)

	section("Technology Stack")
	if len(d.Technologies) == 0 {
		pdf.MultiCell(0, 5, "No technologies detected.", "", "L", false)
	}
	for _, t := range d.Technologies {
		pdf.CellFormat(0, 5, tr("- "+t.Display()), "", 1, "L", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

// WritePDF renders rec to path, creating parent directories.
func WritePDF(path string, rec *output.Record, meta Meta) error {
	return writeFile(path, func(w io.Writer) error { return RenderPDF(w, rec, meta) })
}

// fit shortens s with "..." until it is at most width mm in the current font.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
