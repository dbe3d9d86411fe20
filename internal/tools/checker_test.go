package tools

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulnsight/vulnsight/internal/status"
)

func fakeChecker(installed map[string]string, banners map[string]string, overrides map[string]string) *Checker {
	return &Checker{
		overrides: overrides,
		lookPath: func(name string) (string, error) {
			if p, ok := installed[name]; ok {
				return p, nil
			}
			return "", errors.New("executable file not found in $PATH")
		},
		runVersion: func(bin string, _ []string) string {
			return banners[bin]
		},
	}
}

func TestFind(t *testing.T) {
	color.NoColor = true
	var errOut bytes.Buffer
	status.SetOutput(nil, &errOut)
	t.Cleanup(func() { status.SetOutput(nil, os.Stderr) })

	c := fakeChecker(map[string]string{"nmap": "/usr/bin/nmap"}, nil, nil)

	path, ok := c.Find(Nmap)
	assert.True(t, ok)
	assert.Equal(t, "/usr/bin/nmap", path)
	assert.Empty(t, errOut.String())

	path, ok = c.Find(Nuclei)
	assert.False(t, ok)
	assert.Empty(t, path)
	assert.Contains(t, errOut.String(), "Tool 'nuclei' not found")
}

func TestFind_Override(t *testing.T) {
	c := fakeChecker(map[string]string{"/opt/nmap/bin/nmap": "/opt/nmap/bin/nmap"}, nil,
		map[string]string{Nmap: "/opt/nmap/bin/nmap"})

	path, ok := c.Find(Nmap)
	require.True(t, ok)
	assert.Equal(t, "/opt/nmap/bin/nmap", path)
	assert.True(t, c.IsInstalled(Nmap))
}

func TestCheckAll(t *testing.T) {
	c := fakeChecker(
		map[string]string{
			"subfinder": "/go/bin/subfinder",
			"nmap":      "/usr/bin/nmap",
			"nuclei":    "/go/bin/nuclei",
		},
		map[string]string{
			"/go/bin/subfinder": "Current Version: v2.6.6",
			"/usr/bin/nmap":     "Nmap version 7.94 ( https://nmap.org )",
			"/go/bin/nuclei":    "Nuclei Engine Version: v2.9.15",
		},
		nil,
	)

	got := c.CheckAll()
	require.Len(t, got, 4)

	assert.Equal(t, Subfinder, got[0].Name)
	assert.True(t, got[0].Installed)
	assert.Equal(t, "2.6.6", got[0].Version)
	assert.False(t, got[0].Outdated)

	assert.Equal(t, "7.94", got[1].Version)
	assert.False(t, got[1].Outdated)

	assert.False(t, got[2].Installed)

	assert.Equal(t, "2.9.15", got[3].Version)
	assert.True(t, got[3].Outdated, "nuclei v2 lacks -jsonl")

	assert.Equal(t, []string{WhatWeb}, c.GetMissing())
}

func TestExtractVersion(t *testing.T) {
	tests := map[string]string{
		"WhatWeb version 0.5.5 ( https://morningstarsecurity.com/research/whatweb/ )": "0.5.5",
		"Nuclei Engine Version: v3.3.7": "3.3.7",
		"no version here":               "",
	}
	for banner, want := range tests {
		assert.Equal(t, want, ExtractVersion(banner), banner)
	}
}

func TestSatisfies(t *testing.T) {
	assert.True(t, Satisfies("3.1.0", ">= 3.0.0"))
	assert.False(t, Satisfies("2.9.15", ">= 3.0.0"))
	assert.True(t, Satisfies("garbage", ">= 3.0.0"))
}
