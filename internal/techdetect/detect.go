package techdetect

import (
	"bytes"
	"context"
	"encoding/json"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/vulnsight/vulnsight/internal/config"
	"github.com/vulnsight/vulnsight/internal/exec"
	"github.com/vulnsight/vulnsight/internal/status"
	"github.com/vulnsight/vulnsight/internal/tools"
)

// Entry is one whatweb --log-json record.
type Entry struct {
	Target     string            `json:"target,omitempty"`
	HTTPStatus int               `json:"http_status,omitempty"`
	Plugins    map[string]Plugin `json:"plugins"`
}

type Plugin struct {
	Version Strings `json:"version,omitempty"`
	String  Strings `json:"string,omitempty"`
}

// UnmarshalJSON keeps a plugin whose body has an unexpected shape as a bare
// name, so one odd plugin never costs its siblings.
func (p *Plugin) UnmarshalJSON(data []byte) error {
	type plain Plugin
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		*p = Plugin{}
		return nil
	}
	*p = Plugin(v)
	return nil
}

// Strings accepts whatweb's mixed arrays, where a version is occasionally
// emitted as a number, as well as a lone string or number. Other shapes
// decode to an empty list.
type Strings []string

func (s *Strings) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		*s = Strings{}
		return nil
	}

	out := []string{}
	switch t := raw.(type) {
	case []any:
		for _, v := range t {
			if str, ok := scalar(v); ok {
				out = append(out, str)
			}
		}
	default:
		if str, ok := scalar(t); ok {
			out = append(out, str)
		}
	}
	*s = out
	return nil
}

func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

type Finding struct {
	Name     string   `json:"name"`
	Versions []string `json:"versions"`
}

// Display renders the finding as "name v1, v2", or the bare name.
func (f Finding) Display() string {
	if len(f.Versions) == 0 {
		return f.Name
	}
	return f.Name + " " + strings.Join(f.Versions, ", ")
}

type Result struct {
	Raw      []Entry
	Findings []Finding
}

func emptyResult() Result {
	return Result{Raw: []Entry{}, Findings: []Finding{}}
}

type Detector struct {
	loc     tools.Locator
	run     exec.Executor
	timeout time.Duration
}

func NewDetector(cfg *config.Config, loc tools.Locator, run exec.Executor) *Detector {
	return &Detector{loc: loc, run: run, timeout: cfg.ToolTimeout(tools.WhatWeb)}
}

// Args is the whatweb invocation for target, logging JSON to stdout.
func Args(target string) []string {
	return []string{target, "--log-json=-"}
}

// Detect fingerprints target with whatweb. A missing tool or failed run
// yields an empty Result.
func (d *Detector) Detect(ctx context.Context, target string) Result {
	bin, ok := d.loc.Find(tools.WhatWeb)
	if !ok {
		return emptyResult()
	}

	status.Infof("Checking technology stack of '%s'...", target)
	r := d.run.Run(ctx, bin, Args(target), &exec.Options{Timeout: d.timeout})
	if r.Failed() {
		status.Errorf("whatweb failed: %v", r.Error)
		return emptyResult()
	}

	res := Parse(r.Stdout)
	status.Infof("Detected %d technologies", len(res.Findings))
	return res
}

// Parse decodes whatweb output line by line. Lines that are not a JSON
// object are dropped without affecting the others.
func Parse(stdout string) Result {
	res := emptyResult()
	for _, line := range exec.Lines(stdout) {
		if e, ok := parseLine(line); ok {
			res.Raw = append(res.Raw, e)
		}
	}
	res.Findings = Normalize(res.Raw)
	return res
}

func parseLine(line string) (Entry, bool) {
	// whatweb wraps records in a JSON array, one record per line
	line = strings.Trim(line, "[],")
	if line == "" {
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal([]byte(line), &e); err != nil {
		return Entry{}, false
	}
	return e, true
}

// Normalize flattens entries into one finding per plugin, in entry order
// and then plugin name order.
func Normalize(entries []Entry) []Finding {
	out := []Finding{}
	for _, e := range entries {
		for _, name := range slices.Sorted(maps.Keys(e.Plugins)) {
			versions := []string(e.Plugins[name].Version)
			if versions == nil {
				versions = []string{}
			}
			out = append(out, Finding{Name: name, Versions: versions})
		}
	}
	return out
}
