package output

import (
	"encoding/json"

	"github.com/vulnsight/vulnsight/internal/portscan"
	"github.com/vulnsight/vulnsight/internal/techdetect"
	"github.com/vulnsight/vulnsight/internal/vulnscan"
)

// Record is the complete result of one scan. Every field is always
// serialized; slices are empty, never null.
type Record struct {
	Target          string               `json:"target"`
	Subdomains      []string             `json:"subdomains"`
	PortScan        portscan.Outcome     `json:"port_scan_output"`
	Technologies    []techdetect.Finding `json:"technology_findings"`
	Vulnerabilities []vulnscan.Finding   `json:"vulnerability_findings"`
	AISuggestions   string               `json:"ai_suggestions"`
}

func NewRecord(target string) *Record {
	r := &Record{Target: target}
	r.Normalize()
	return r
}

// Normalize replaces nil slices with empty ones.
func (r *Record) Normalize() {
	if r.Subdomains == nil {
		r.Subdomains = []string{}
	}
	if r.Technologies == nil {
		r.Technologies = []techdetect.Finding{}
	}
	for i := range r.Technologies {
		if r.Technologies[i].Versions == nil {
			r.Technologies[i].Versions = []string{}
		}
	}
	if r.Vulnerabilities == nil {
		r.Vulnerabilities = []vulnscan.Finding{}
	}
}

func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	r.Normalize()
	return json.Marshal(plain(r))
}

func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Record(p)
	r.Normalize()
	return nil
}

// Severity counts for the record's findings, keyed by level.
func (r *Record) SeverityCounts() map[vulnscan.Severity]int {
	return vulnscan.CountBySeverity(r.Vulnerabilities)
}
