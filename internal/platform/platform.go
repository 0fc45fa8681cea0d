// Package platform detects the host OS flavour and filesystem quirks that
// change how files are watched and how text reaches the clipboard.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// Platform is the detected host.
type Platform string

const (
	MacOS   Platform = "macos"
	Linux   Platform = "linux"
	WSL1    Platform = "wsl1"
	WSL2    Platform = "wsl2"
	Windows Platform = "windows"
	Unknown Platform = "unknown"
)

var (
	detectOnce sync.Once
	detected   Platform
)

// Detect returns the current platform. The result is cached.
func Detect() Platform {
	detectOnce.Do(func() { detected = detect(runtime.GOOS, readProcVersion) })
	return detected
}

func readProcVersion() string {
	b, err := os.ReadFile("/proc/version")
	if err != nil {
		return ""
	}
	return string(b)
}

func detect(goos string, procVersion func() string) Platform {
	switch goos {
	case "darwin":
		return MacOS
	case "windows":
		return Windows
	case "linux":
	default:
		return Unknown
	}

	version := procVersion()
	if os.Getenv("WSL_DISTRO_NAME") == "" && !strings.Contains(strings.ToLower(version), "microsoft") {
		return Linux
	}
	// WSL2 kernels report "microsoft-standard"; WSL1 reports "Microsoft".
	if strings.Contains(version, "microsoft-standard") {
		return WSL2
	}
	if _, err := os.Stat("/run/WSL"); err == nil {
		return WSL2
	}
	return WSL1
}

// IsWSL reports any WSL flavour.
func IsWSL() bool {
	p := Detect()
	return p == WSL1 || p == WSL2
}

func (p Platform) String() string {
	switch p {
	case MacOS:
		return "macOS"
	case Linux:
		return "Linux"
	case WSL1:
		return "WSL1"
	case WSL2:
		return "WSL2"
	case Windows:
		return "Windows"
	}
	return "Unknown"
}

// CheckWatchSupport returns a warning when path lives on a filesystem where
// inotify events are missing or unreliable, or "" when watching should work.
func CheckWatchSupport(path string) string {
	if runtime.GOOS != "linux" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	mounts, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return ""
	}
	return watchWarning(fsTypeFor(string(mounts), abs))
}

// fsTypeFor finds the filesystem type of the longest mount point that
// contains path, given /proc/mounts content.
func fsTypeFor(mounts, path string) string {
	var best, fsType string
	for _, line := range strings.Split(mounts, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		mp := fields[1]
		if !withinMount(path, mp) || len(mp) <= len(best) {
			continue
		}
		best, fsType = mp, fields[2]
	}
	return fsType
}

func withinMount(path, mountPoint string) bool {
	if mountPoint == "/" || path == mountPoint {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(mountPoint, "/")+"/")
}

func watchWarning(fsType string) string {
	switch {
	case fsType == "9p":
		return "sessions dir is on a 9p mount (WSL Windows drive): new sessions will not be picked up live"
	case fsType == "nfs" || fsType == "nfs4":
		return "sessions dir is on NFS: live pickup of new sessions may be unreliable"
	case fsType == "cifs" || fsType == "smbfs":
		return "sessions dir is on CIFS/SMB: live pickup of new sessions may be unreliable"
	case strings.HasPrefix(fsType, "fuse.sshfs"):
		return "sessions dir is on SSHFS: new sessions will not be picked up live"
	}
	return ""
}
