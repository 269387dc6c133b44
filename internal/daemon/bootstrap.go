package daemon

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

// RunCommand is the hidden subcommand a detached daemon is started with.
const RunCommand = "run"

// StartDaemon spawns "<executable> run <args...>" detached from the parent
// process and returns its PID.
func StartDaemon(executable string, args ...string) (int, error) {
	if executable == "" {
		self, err := os.Executable()
		if err != nil {
			return 0, fmt.Errorf("failed to get executable path: %w", err)
		}
		executable = self
	}

	cmd := exec.Command(executable, append([]string{RunCommand}, args...)...)

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session (detach from terminal)
	}

	// No stdin/stdout/stderr - fully detached
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}

// WaitForRuntime polls reg until a daemon with pid registers, or ctx ends.
// pid 0 accepts any registration.
func WaitForRuntime(ctx context.Context, reg domain.RuntimeRegistry, pid int, interval time.Duration) (*domain.RuntimeInfo, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		info, err := reg.Get()
		if err == nil && info != nil && (pid == 0 || info.PID == pid) {
			return info, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("daemon did not register in %s: %w", reg.Path(), ctx.Err())
		case <-ticker.C:
		}
	}
}
