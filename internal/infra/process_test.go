package infra

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterApps(t *testing.T) {
	tests := []struct {
		name   string
		goos   string
		suffix string
		in     []string
		want   []string
	}{
		{
			name: "linux drops kernel threads and systemd",
			goos: "linux",
			in:   []string{"firefox", "[kworker/0:1]", "systemd-journald", "kthreadd", "steam", "x"},
			want: []string{"firefox", "steam"},
		},
		{
			name: "darwin drops apple daemons",
			goos: "darwin",
			in:   []string{"com.apple.WebKit", "Safari", "mDNSResponder", "coreaudiod", "kernel_task"},
			want: []string{"mDNSResponder", "Safari"},
		},
		{
			name:   "windows strips suffix and drops critical processes",
			goos:   "windows",
			suffix: ".exe",
			in:     []string{"svchost.exe", "Notepad.exe", "notepad.exe", "steam.exe", "System"},
			want:   []string{"Notepad", "steam"},
		},
		{
			name: "case-insensitive dedupe keeps first spelling, sorted",
			goos: "linux",
			in:   []string{"Steam", "steam", "Discord"},
			want: []string{"Discord", "Steam"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, filterApps(tt.goos, tt.suffix, tt.in))
		})
	}
}

func TestProcessInspector_Self(t *testing.T) {
	pi := NewProcessInspector("")

	assert.True(t, pi.IsRunning(os.Getpid()))
	assert.False(t, pi.IsRunning(0))
	assert.False(t, pi.IsRunning(-1))

	name, err := pi.NameByPID(context.Background(), os.Getpid())
	require.NoError(t, err)
	assert.NotEmpty(t, name)

	apps, err := pi.RunningApps(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, apps)
}
