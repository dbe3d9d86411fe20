package tools

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Platform holds what the installer needs to know about the current system
type Platform struct {
	OS      string // linux, darwin, windows
	PkgMgr  string // apt, brew, dnf, yum, pacman, apk, choco, ""
	HasSudo bool
}

// DetectPlatform returns information about the current system
func DetectPlatform() *Platform {
	_, err := exec.LookPath("sudo")
	return &Platform{
		OS:      runtime.GOOS,
		PkgMgr:  detectPackageManager(runtime.GOOS, exec.LookPath),
		HasSudo: err == nil,
	}
}

func detectPackageManager(goos string, lookPath func(string) (string, error)) string {
	var candidates []string
	switch goos {
	case "darwin":
		candidates = []string{"brew"}
	case "linux":
		// in order of preference
		candidates = []string{"apt", "apt-get", "dnf", "yum", "pacman", "apk", "zypper"}
	case "windows":
		candidates = []string{"choco", "winget", "scoop"}
	}
	for _, pm := range candidates {
		if _, err := lookPath(pm); err == nil {
			return pm
		}
	}
	return ""
}

// PackageCommand returns the command line that installs pkg with the
// system package manager.
func (p *Platform) PackageCommand(pkg string) (string, []string, error) {
	var args []string
	switch p.PkgMgr {
	case "apt", "apt-get", "dnf", "yum", "zypper":
		args = []string{p.PkgMgr, "install", "-y", pkg}
	case "pacman":
		args = []string{"pacman", "-S", "--noconfirm", pkg}
	case "apk":
		args = []string{"apk", "add", pkg}
	case "brew":
		return "brew", []string{"install", pkg}, nil
	case "choco":
		return "choco", []string{"install", "-y", pkg}, nil
	case "winget":
		return "winget", []string{"install", "-e", "--id", pkg}, nil
	case "scoop":
		return "scoop", []string{"install", pkg}, nil
	case "":
		return "", nil, fmt.Errorf("no package manager found")
	default:
		return "", nil, fmt.Errorf("unsupported package manager: %s", p.PkgMgr)
	}
	if p.HasSudo {
		return "sudo", args, nil
	}
	return args[0], args[1:], nil
}
