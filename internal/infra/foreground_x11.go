package infra

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

var x11Atoms = []string{"_NET_ACTIVE_WINDOW", "_NET_WM_PID", "WM_CLASS"}

// X11Foreground implements domain.ForegroundProvider on X11 using the EWMH
// _NET_ACTIVE_WINDOW and _NET_WM_PID properties. The connection is opened
// lazily and reopened after an error.
type X11Foreground struct {
	procs  domain.ProcessInspector
	clock  domain.Clock
	logger *zap.Logger

	mu    sync.Mutex
	conn  *xgb.Conn
	root  xproto.Window
	atoms map[string]xproto.Atom
}

// NewX11Foreground creates an X11 foreground provider. procs resolves PIDs to names.
func NewX11Foreground(procs domain.ProcessInspector, clock domain.Clock, logger *zap.Logger) *X11Foreground {
	return &X11Foreground{procs: procs, clock: clock, logger: logger}
}

// Foreground returns the process owning the active window, or nil when no
// window has focus. Windows without _NET_WM_PID are reported by WM_CLASS with PID 0.
func (f *X11Foreground) Foreground(ctx context.Context) (*domain.ForegroundProcess, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	win, pid, class, err := f.query()
	if err != nil {
		f.closeLocked()
	}
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if win == 0 {
		return nil, nil
	}

	name := class
	if pid != 0 {
		n, err := f.procs.NameByPID(ctx, pid)
		if err != nil {
			f.logger.Debug("falling back to WM_CLASS", zap.Int("pid", pid), zap.Error(err))
		} else {
			name = n
		}
	}
	if name == "" {
		return nil, nil
	}
	return &domain.ForegroundProcess{Name: name, PID: pid, ObservedAt: f.clock.Now()}, nil
}

// Close releases the X connection.
func (f *X11Foreground) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeLocked()
}

func (f *X11Foreground) closeLocked() {
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
}

func (f *X11Foreground) connectLocked() error {
	if f.conn != nil {
		return nil
	}
	conn, err := xgb.NewConn()
	if err != nil {
		return fmt.Errorf("failed to connect to X server: %w", err)
	}

	atoms := make(map[string]xproto.Atom, len(x11Atoms))
	for _, name := range x11Atoms {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return fmt.Errorf("failed to intern atom %s: %w", name, err)
		}
		atoms[name] = reply.Atom
	}

	f.conn = conn
	f.root = xproto.Setup(conn).DefaultScreen(conn).Root
	f.atoms = atoms
	return nil
}

func (f *X11Foreground) query() (xproto.Window, int, string, error) {
	if err := f.connectLocked(); err != nil {
		return 0, 0, "", err
	}

	data, err := f.property(f.root, f.atoms["_NET_ACTIVE_WINDOW"], xproto.AtomWindow, 1)
	if err != nil {
		return 0, 0, "", fmt.Errorf("failed to read active window: %w", err)
	}
	win := xproto.Window(decodeCardinal(data))
	if win == 0 {
		return 0, 0, "", nil
	}

	// Both properties are optional; a window that vanished in between reads as empty.
	pidData, _ := f.property(win, f.atoms["_NET_WM_PID"], xproto.AtomCardinal, 1)
	classData, _ := f.property(win, f.atoms["WM_CLASS"], xproto.AtomString, 256)
	_, class := parseWMClass(classData)
	return win, int(decodeCardinal(pidData)), class, nil
}

func (f *X11Foreground) property(win xproto.Window, atom, typ xproto.Atom, length uint32) ([]byte, error) {
	reply, err := xproto.GetProperty(f.conn, false, win, atom, typ, 0, length).Reply()
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}

func decodeCardinal(data []byte) uint32 {
	if len(data) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(data)
}

// parseWMClass splits the NUL-separated WM_CLASS value into instance and class.
// A missing class falls back to the instance.
func parseWMClass(data []byte) (instance, class string) {
	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	if len(parts) >= 1 {
		instance = parts[0]
	}
	class = instance
	if len(parts) >= 2 && parts[1] != "" {
		class = parts[1]
	}
	return instance, class
}

var _ domain.ForegroundProvider = (*X11Foreground)(nil)
