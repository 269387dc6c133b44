package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents the execution mode of the daemon.
type ExecMode string

const (
	// ExecModeUser keeps data under the invoking user's home.
	ExecModeUser ExecMode = "user"
	// ExecModeSystem keeps data under /var/lib (running as root).
	ExecModeSystem ExecMode = "system"
)

const (
	logFileName     = "applock.log"
	runtimeFileName = "applock.runtime.json"
)

// Paths holds the on-disk locations used by the daemon and CLI.
type Paths struct {
	Mode        ExecMode
	DataDir     string // encrypted database and key file
	LogPath     string
	RuntimePath string // pid and listen address of the running daemon
}

// DetectPaths returns paths for the current effective UID.
func DetectPaths() Paths {
	if os.Geteuid() == 0 {
		return PathsFor(ExecModeSystem, "/var/lib/applock")
	}
	return PathsFor(ExecModeUser, filepath.Join(GetRealUserHome(), ".applock"))
}

// PathsFor derives every path from dataDir.
func PathsFor(mode ExecMode, dataDir string) Paths {
	return Paths{
		Mode:        mode,
		DataDir:     dataDir,
		LogPath:     filepath.Join(dataDir, logFileName),
		RuntimePath: filepath.Join(dataDir, runtimeFileName),
	}
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
