package infra

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/google/renameio/v2"
)

// UnitName is the systemd unit that starts the daemon at login (user mode)
// or boot (system mode).
const UnitName = "applock.service"

const unitTemplate = `[Unit]
Description=applock app and website lock
{{- if .User}}
After=graphical-session.target
PartOf=graphical-session.target
{{- else}}
After=network.target
{{- end}}

[Service]
Type=simple
ExecStart={{.ExecutablePath}} run --data-dir {{.DataDir}}
Restart=on-failure
RestartSec=10

[Install]
WantedBy={{if .User}}graphical-session.target{{else}}multi-user.target{{end}}
`

type unitConfig struct {
	User           bool
	ExecutablePath string
	DataDir        string
}

// CommandRunner runs an external command.
type CommandRunner func(name string, args ...string) error

func runCommand(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w: %s", name, args, err, bytes.TrimSpace(out))
	}
	return nil
}

// AutostartManager installs the daemon as a systemd unit.
type AutostartManager struct {
	mode     ExecMode
	unitDir  string
	unitPath string
	dataDir  string
	run      CommandRunner
}

// NewAutostartManager creates a manager for paths.Mode: a user unit under
// ~/.config/systemd/user, or a system unit under /etc/systemd/system.
func NewAutostartManager(paths Paths) *AutostartManager {
	dir := "/etc/systemd/system"
	if paths.Mode == ExecModeUser {
		dir = filepath.Join(GetRealUserHome(), ".config", "systemd", "user")
	}
	return NewAutostartManagerWithDir(paths, dir, runCommand)
}

// NewAutostartManagerWithDir creates a manager with a custom unit directory
// and command runner (for testing).
func NewAutostartManagerWithDir(paths Paths, unitDir string, run CommandRunner) *AutostartManager {
	return &AutostartManager{
		mode:     paths.Mode,
		unitDir:  unitDir,
		unitPath: filepath.Join(unitDir, UnitName),
		dataDir:  paths.DataDir,
		run:      run,
	}
}

// generateUnit renders the unit file for execPath.
func (m *AutostartManager) generateUnit(execPath string) ([]byte, error) {
	tmpl, err := template.New("unit").Parse(unitTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse unit template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, unitConfig{
		User:           m.mode == ExecModeUser,
		ExecutablePath: execPath,
		DataDir:        m.dataDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute unit template: %w", err)
	}
	return buf.Bytes(), nil
}

// Install writes the unit and enables it.
func (m *AutostartManager) Install(execPath string) error {
	if err := os.MkdirAll(m.unitDir, 0755); err != nil {
		return fmt.Errorf("failed to create unit directory: %w", err)
	}
	content, err := m.generateUnit(execPath)
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(m.unitPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write unit: %w", err)
	}
	if err := m.systemctl("daemon-reload"); err != nil {
		return err
	}
	return m.systemctl("enable", UnitName)
}

// Uninstall disables and removes the unit. A missing unit is not an error.
func (m *AutostartManager) Uninstall() error {
	if !m.IsInstalled() {
		return nil
	}
	// Disable first (ignore errors if not enabled)
	_ = m.systemctl("disable", UnitName)
	if err := os.Remove(m.unitPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove unit: %w", err)
	}
	return m.systemctl("daemon-reload")
}

// IsInstalled checks if the unit file exists.
func (m *AutostartManager) IsInstalled() bool {
	_, err := os.Stat(m.unitPath)
	return err == nil
}

// NeedsUpdate reports whether an installed unit differs from the one Install would write.
func (m *AutostartManager) NeedsUpdate(execPath string) bool {
	if !m.IsInstalled() {
		return false // Doesn't exist, needs install not update
	}
	current, err := os.ReadFile(m.unitPath)
	if err != nil {
		return true
	}
	expected, err := m.generateUnit(execPath)
	if err != nil {
		return true
	}
	return !bytes.Equal(current, expected)
}

// Path returns the unit file path.
func (m *AutostartManager) Path() string {
	return m.unitPath
}

func (m *AutostartManager) systemctl(args ...string) error {
	if m.mode == ExecModeUser {
		args = append([]string{"--user"}, args...)
	}
	return m.run("systemctl", args...)
}
