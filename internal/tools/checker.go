package tools

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/vulnsight/vulnsight/internal/status"
)

// Locator resolves a tool name to an executable path.
type Locator interface {
	Find(name string) (string, bool)
}

type Checker struct {
	overrides  map[string]string
	lookPath   func(string) (string, error)
	runVersion func(bin string, args []string) string
}

// NewChecker returns a Checker that searches PATH. overrides maps a tool
// name to the binary or path to use instead of the bare name.
func NewChecker(overrides map[string]string) *Checker {
	return &Checker{
		overrides:  overrides,
		lookPath:   exec.LookPath,
		runVersion: versionOutput,
	}
}

func (c *Checker) binary(name string) string {
	if b, ok := c.overrides[name]; ok && strings.TrimSpace(b) != "" {
		return b
	}
	return name
}

// Find returns the executable path for name. A missing tool is not an
// error: it is reported on the console and ok is false.
func (c *Checker) Find(name string) (string, bool) {
	path, err := c.lookPath(c.binary(name))
	if err != nil {
		status.Errorf("Tool '%s' not found in PATH.", name)
		return "", false
	}
	return path, true
}

// IsInstalled is Find without the console report.
func (c *Checker) IsInstalled(name string) bool {
	_, err := c.lookPath(c.binary(name))
	return err == nil
}

// CheckAll inspects every scan tool in parallel, in ScanTools order.
func (c *Checker) CheckAll() []ToolStatus {
	all := ScanTools()
	out := make([]ToolStatus, len(all))

	var wg sync.WaitGroup
	for i, t := range all {
		wg.Add(1)
		go func(idx int, tool Tool) {
			defer wg.Done()
			out[idx] = c.check(tool)
		}(i, t)
	}
	wg.Wait()
	return out
}

// GetMissing returns the names of scan tools that cannot be found.
func (c *Checker) GetMissing() []string {
	var missing []string
	for _, t := range ScanTools() {
		if !c.IsInstalled(t.Name) {
			missing = append(missing, t.Name)
		}
	}
	return missing
}

func (c *Checker) check(t Tool) ToolStatus {
	s := ToolStatus{Name: t.Name, Binary: c.binary(t.Name), Want: t.MinVersion}
	path, err := c.lookPath(s.Binary)
	if err != nil {
		return s
	}
	s.Installed = true
	s.Path = path
	raw := c.runVersion(path, t.VersionArgs)
	s.Version = ExtractVersion(raw)
	if s.Version != "" && t.MinVersion != "" {
		s.Outdated = !Satisfies(s.Version, t.MinVersion)
	}
	return s
}

var versionPattern = regexp.MustCompile(`v?(\d+\.\d+(?:\.\d+)?)`)

// ExtractVersion pulls the first dotted version number out of a tool's
// version banner, e.g. "Nmap version 7.94 ( https://nmap.org )" -> "7.94".
func ExtractVersion(banner string) string {
	m := versionPattern.FindStringSubmatch(banner)
	if m == nil {
		return ""
	}
	return m[1]
}

// Satisfies reports whether version meets constraint. Unparseable input
// is treated as satisfying so an odd banner never blocks a scan.
func Satisfies(version, constraint string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return true
	}
	cons, err := semver.NewConstraint(constraint)
	if err != nil {
		return true
	}
	return cons.Check(v)
}

// versionOutput runs the tool's version flag with a short timeout. Several
// projectdiscovery tools print their banner on stderr.
func versionOutput(bin string, args []string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	out, _ := exec.CommandContext(ctx, bin, args...).CombinedOutput()
	for _, line := range strings.Split(string(out), "\n") {
		if ExtractVersion(line) != "" {
			return strings.TrimSpace(line)
		}
	}
	return ""
}
