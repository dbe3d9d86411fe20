package vulnscan

import (
	"encoding/json"
	"sort"
	"strings"
)

type Severity string

const (
	Critical Severity = "critical"
	High     Severity = "high"
	Medium   Severity = "medium"
	Low      Severity = "low"
	Info     Severity = "info"
)

// Severities lists every level, most severe first.
var Severities = []Severity{Critical, High, Medium, Low, Info}

// ParseSeverity is case-insensitive; empty or unknown input is Info.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case Critical:
		return Critical
	case High:
		return High
	case Medium:
		return Medium
	case Low:
		return Low
	default:
		return Info
	}
}

// Score orders severities: critical=4 down to info=0.
func (s Severity) Score() int {
	switch s {
	case Critical:
		return 4
	case High:
		return 3
	case Medium:
		return 2
	case Low:
		return 1
	}
	return 0
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseSeverity(raw)
	return nil
}

// SortBySeverity orders findings critical first, keeping scan order within a level.
func SortBySeverity(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity.Score() > findings[j].Severity.Score()
	})
}

// CountBySeverity tallies findings per level; every level is present.
func CountBySeverity(findings []Finding) map[Severity]int {
	counts := make(map[Severity]int, len(Severities))
	for _, s := range Severities {
		counts[s] = 0
	}
	for _, f := range findings {
		counts[ParseSeverity(string(f.Severity))]++
	}
	return counts
}
