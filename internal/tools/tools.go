package tools

// Binary names of the tools a full scan drives.
const (
	Subfinder = "subfinder"
	Nmap      = "nmap"
	WhatWeb   = "whatweb"
	Nuclei    = "nuclei"
)

type Tool struct {
	Name string
	// GoModule is the `go install` path for tools shipped as Go modules;
	// the rest come from the system package manager as Package.
	GoModule    string
	Package     string
	VersionArgs []string
	// MinVersion is a semver constraint the installed version must satisfy;
	// empty means any version works.
	MinVersion string
}

// InstallHint is the manual install command shown when a tool is missing.
func (t Tool) InstallHint() string {
	if t.GoModule != "" {
		return "go install " + t.GoModule
	}
	return "apt install " + t.Package + " | brew install " + t.Package
}

type ToolStatus struct {
	Name, Binary, Path, Version string
	Installed                   bool
	// Outdated is set when the detected version fails MinVersion.
	Outdated bool
	Want     string
}

// ScanTools lists the tools in the order a full scan runs them.
func ScanTools() []Tool {
	return []Tool{
		{Name: Subfinder, GoModule: "github.com/projectdiscovery/subfinder/v2/cmd/subfinder@latest", VersionArgs: []string{"-version"}, MinVersion: ">= 2.0.0"},
		{Name: Nmap, Package: "nmap", VersionArgs: []string{"--version"}},
		{Name: WhatWeb, Package: "whatweb", VersionArgs: []string{"--version"}},
		// -jsonl replaced -json in nuclei v3
		{Name: Nuclei, GoModule: "github.com/projectdiscovery/nuclei/v3/cmd/nuclei@latest", VersionArgs: []string{"-version"}, MinVersion: ">= 3.0.0"},
	}
}

// Lookup returns the inventory entry for name.
func Lookup(name string) (Tool, bool) {
	for _, t := range ScanTools() {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}
