// Package infra implements OS and persistence adapters (processes, foreground
// window, encrypted storage, runtime file).
package infra

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

var windowsSystemProcesses = map[string]bool{
	"system": true, "registry": true, "smss.exe": true, "csrss.exe": true, "wininit.exe": true,
	"winlogon.exe": true, "services.exe": true, "lsass.exe": true, "svchost.exe": true, "conhost.exe": true,
}

// ProcessInspectorImpl implements domain.ProcessInspector using gopsutil.
type ProcessInspectorImpl struct {
	goos   string
	suffix string
}

// NewProcessInspector creates a process inspector. suffix is stripped from
// displayed names (".exe" on windows).
func NewProcessInspector(suffix string) *ProcessInspectorImpl {
	return &ProcessInspectorImpl{goos: runtime.GOOS, suffix: suffix}
}

// NameByPID returns the executable name of pid.
func (pi *ProcessInspectorImpl) NameByPID(ctx context.Context, pid int) (string, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return "", fmt.Errorf("failed to open process %d: %w", pid, err)
	}
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read name of process %d: %w", pid, err)
	}
	return name, nil
}

// RunningApps lists user-visible process names, de-duplicated
// case-insensitively and sorted.
func (pi *ProcessInspectorImpl) RunningApps(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	names := make([]string, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue // Process may have exited
		}
		names = append(names, name)
	}
	return filterApps(pi.goos, pi.suffix, names), nil
}

// IsRunning checks if a PID exists.
func (pi *ProcessInspectorImpl) IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}

func filterApps(goos, suffix string, names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if len(name) < 2 || isSystemProcess(goos, name) {
			continue
		}
		display := name
		if suffix != "" && strings.HasSuffix(strings.ToLower(display), strings.ToLower(suffix)) {
			display = display[:len(display)-len(suffix)]
		}
		key := domain.NormalizeAppName(display)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, display)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}

func isSystemProcess(goos, name string) bool {
	switch goos {
	case "windows":
		return windowsSystemProcesses[strings.ToLower(name)]
	case "darwin":
		return strings.HasPrefix(name, "com.apple.") ||
			strings.HasPrefix(name, "kernel") ||
			strings.Contains(name, "mdns") ||
			strings.Contains(name, "coreaudio")
	default:
		return strings.HasPrefix(name, "kthreadd") ||
			strings.HasPrefix(name, "[") ||
			strings.Contains(name, "systemd")
	}
}

var _ domain.ProcessInspector = (*ProcessInspectorImpl)(nil)
