package vulnscan

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
	}{
		{"critical", Critical},
		{"HIGH", High},
		{" Medium ", Medium},
		{"low", Low},
		{"info", Info},
		{"", Info},
		{"unknown", Info},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseSeverity(tt.in), tt.in)
	}
}

func TestSeverity_UnmarshalNormalizes(t *testing.T) {
	var f Finding
	require.NoError(t, json.Unmarshal([]byte(`{"severity":"HIGH","name":"x","matched_at":"y"}`), &f))
	assert.Equal(t, High, f.Severity)
}

func TestSortBySeverity(t *testing.T) {
	findings := []Finding{
		{Name: "a", Severity: Info},
		{Name: "b", Severity: Critical},
		{Name: "c", Severity: Medium},
		{Name: "d", Severity: Critical},
	}
	SortBySeverity(findings)

	var names []string
	for _, f := range findings {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"b", "d", "c", "a"}, names)
}

func TestCountBySeverity(t *testing.T) {
	counts := CountBySeverity([]Finding{{Severity: High}, {Severity: High}, {Severity: Low}})
	assert.Equal(t, 2, counts[High])
	assert.Equal(t, 1, counts[Low])
	assert.Equal(t, 0, counts[Critical])
	assert.Len(t, counts, 5)
}
