package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

// PIDChecker reports whether a PID is alive.
type PIDChecker interface {
	IsRunning(pid int) bool
}

// RuntimeFile implements domain.RuntimeRegistry with a JSON file that the
// daemon writes on startup and removes on shutdown.
type RuntimeFile struct {
	path  string
	procs PIDChecker
}

// NewRuntimeFile creates a runtime registry at path. procs may be nil, in
// which case Live never treats an entry as stale.
func NewRuntimeFile(path string, procs PIDChecker) *RuntimeFile {
	return &RuntimeFile{path: path, procs: procs}
}

// Path returns the runtime file path.
func (r *RuntimeFile) Path() string {
	return r.path
}

// Register atomically replaces the runtime file with info.
func (r *RuntimeFile) Register(info domain.RuntimeInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode runtime info: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("failed to create runtime directory: %w", err)
	}

	pf, err := renameio.NewPendingFile(r.path, renameio.WithPermissions(0600))
	if err != nil {
		return fmt.Errorf("failed to create runtime file: %w", err)
	}
	defer pf.Cleanup()

	if _, err := pf.Write(data); err != nil {
		return fmt.Errorf("failed to write runtime file: %w", err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("failed to replace runtime file: %w", err)
	}
	return nil
}

// Get returns the registered daemon, or nil when the file is absent.
func (r *RuntimeFile) Get() (*domain.RuntimeInfo, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read runtime file: %w", err)
	}

	var info domain.RuntimeInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to decode runtime file: %w", err)
	}
	return &info, nil
}

// Live returns the registered daemon only if its PID is still running.
// A stale file is removed.
func (r *RuntimeFile) Live() (*domain.RuntimeInfo, error) {
	info, err := r.Get()
	if err != nil || info == nil {
		return nil, err
	}
	if r.procs != nil && !r.procs.IsRunning(info.PID) {
		_ = r.Clear()
		return nil, nil
	}
	return info, nil
}

// Clear removes the runtime file.
func (r *RuntimeFile) Clear() error {
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove runtime file: %w", err)
	}
	return nil
}

var _ domain.RuntimeRegistry = (*RuntimeFile)(nil)
