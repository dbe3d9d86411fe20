package tools

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulnsight/vulnsight/internal/exec"
	"github.com/vulnsight/vulnsight/internal/exec/exectest"
	"github.com/vulnsight/vulnsight/internal/status"
)

func TestPackageCommand(t *testing.T) {
	tests := []struct {
		platform Platform
		wantName string
		wantArgs []string
		wantErr  bool
	}{
		{Platform{PkgMgr: "apt", HasSudo: true}, "sudo", []string{"apt", "install", "-y", "nmap"}, false},
		{Platform{PkgMgr: "apt"}, "apt", []string{"install", "-y", "nmap"}, false},
		{Platform{PkgMgr: "pacman", HasSudo: true}, "sudo", []string{"pacman", "-S", "--noconfirm", "nmap"}, false},
		{Platform{PkgMgr: "apk"}, "apk", []string{"add", "nmap"}, false},
		{Platform{PkgMgr: "brew", HasSudo: true}, "brew", []string{"install", "nmap"}, false},
		{Platform{PkgMgr: ""}, "", nil, true},
		{Platform{PkgMgr: "portage"}, "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.platform.PkgMgr, func(t *testing.T) {
			name, args, err := tt.platform.PackageCommand("nmap")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestDetectPackageManager(t *testing.T) {
	look := func(have ...string) func(string) (string, error) {
		return func(name string) (string, error) {
			for _, h := range have {
				if h == name {
					return "/usr/bin/" + name, nil
				}
			}
			return "", errors.New("not found")
		}
	}
	assert.Equal(t, "apt", detectPackageManager("linux", look("dnf", "apt")))
	assert.Equal(t, "dnf", detectPackageManager("linux", look("dnf")))
	assert.Equal(t, "brew", detectPackageManager("darwin", look("brew", "apt")))
	assert.Equal(t, "", detectPackageManager("plan9", look("apt")))
}

func TestInstaller_Command(t *testing.T) {
	withGo := NewInstaller(fakeChecker(map[string]string{"go": "/usr/local/go/bin/go"}, nil, nil), &Platform{PkgMgr: "brew"}, &exectest.Fake{})

	sub, _ := Lookup(Subfinder)
	name, args, err := withGo.Command(sub)
	require.NoError(t, err)
	assert.Equal(t, "go", name)
	assert.Equal(t, []string{"install", "-v", "github.com/projectdiscovery/subfinder/v2/cmd/subfinder@latest"}, args)

	ww, _ := Lookup(WhatWeb)
	name, args, err = withGo.Command(ww)
	require.NoError(t, err)
	assert.Equal(t, "brew", name)
	assert.Equal(t, []string{"install", "whatweb"}, args)

	noGo := NewInstaller(fakeChecker(nil, nil, nil), &Platform{PkgMgr: "brew"}, &exectest.Fake{})
	_, _, err = noGo.Command(sub)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "go install github.com/projectdiscovery/subfinder")
}

func TestInstaller_InstallMissing(t *testing.T) {
	status.SetOutput(io.Discard, io.Discard)
	t.Cleanup(func() { status.SetOutput(os.Stdout, os.Stderr) })

	installed := map[string]string{
		"go":   "/usr/local/go/bin/go",
		"nmap": "/usr/bin/nmap",
	}
	fake := &exectest.Fake{Results: map[string]*exec.Result{
		"go":   {},
		"sudo": {ExitCode: 100, Stderr: "E: Unable to locate package whatweb", Error: errors.New("exit status 100")},
	}}
	inst := NewInstaller(fakeChecker(installed, nil, nil), &Platform{PkgMgr: "apt", HasSudo: true}, fake)

	failed := inst.InstallMissing(context.Background())

	require.Len(t, failed, 1)
	require.Contains(t, failed, WhatWeb)
	assert.Contains(t, failed[WhatWeb].Error(), "Unable to locate package whatweb")

	var names []string
	for _, c := range fake.Calls() {
		names = append(names, c.Name)
		assert.Equal(t, InstallTimeout, c.Opts.Timeout)
	}
	// nmap is present; subfinder and nuclei go through go install
	assert.Equal(t, []string{"go", "sudo", "go"}, names)
}

func TestInstaller_UpdateNucleiTemplates(t *testing.T) {
	status.SetOutput(io.Discard, io.Discard)
	t.Cleanup(func() { status.SetOutput(os.Stdout, os.Stderr) })

	fake := &exectest.Fake{Results: map[string]*exec.Result{"/go/bin/nuclei": {}}}
	inst := NewInstaller(fakeChecker(map[string]string{"nuclei": "/go/bin/nuclei"}, nil, nil), &Platform{}, fake)
	require.NoError(t, inst.UpdateNucleiTemplates(context.Background()))
	assert.Equal(t, []string{"-update-templates", "-silent"}, fake.Calls()[0].Args)

	missing := NewInstaller(fakeChecker(nil, nil, nil), &Platform{}, fake)
	assert.Error(t, missing.UpdateNucleiTemplates(context.Background()))
}
