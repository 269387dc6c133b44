package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

// mockPIDChecker implements PIDChecker for testing
type mockPIDChecker struct {
	running map[int]bool
}

func (m *mockPIDChecker) IsRunning(pid int) bool { return m.running[pid] }

func TestRuntimeFile(t *testing.T) {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		testFn func(t *testing.T, r *RuntimeFile, pids *mockPIDChecker)
	}{
		{
			name: "get without file returns nil",
			testFn: func(t *testing.T, r *RuntimeFile, pids *mockPIDChecker) {
				info, err := r.Get()
				require.NoError(t, err)
				assert.Nil(t, info)
			},
		},
		{
			name: "register then get",
			testFn: func(t *testing.T, r *RuntimeFile, pids *mockPIDChecker) {
				want := domain.RuntimeInfo{PID: 4321, Addr: "127.0.0.1:4242", StartedAt: started, AppVersion: "1.0.0"}
				require.NoError(t, r.Register(want))

				info, err := r.Get()
				require.NoError(t, err)
				require.NotNil(t, info)
				assert.Equal(t, want.PID, info.PID)
				assert.Equal(t, want.Addr, info.Addr)
				assert.True(t, want.StartedAt.Equal(info.StartedAt))

				st, err := os.Stat(r.Path())
				require.NoError(t, err)
				assert.Equal(t, os.FileMode(0600), st.Mode().Perm())
			},
		},
		{
			name: "register overwrites",
			testFn: func(t *testing.T, r *RuntimeFile, pids *mockPIDChecker) {
				require.NoError(t, r.Register(domain.RuntimeInfo{PID: 1}))
				require.NoError(t, r.Register(domain.RuntimeInfo{PID: 2}))
				info, err := r.Get()
				require.NoError(t, err)
				assert.Equal(t, 2, info.PID)
			},
		},
		{
			name: "live drops stale entry",
			testFn: func(t *testing.T, r *RuntimeFile, pids *mockPIDChecker) {
				require.NoError(t, r.Register(domain.RuntimeInfo{PID: 99}))
				info, err := r.Live()
				require.NoError(t, err)
				assert.Nil(t, info)
				_, err = os.Stat(r.Path())
				assert.True(t, os.IsNotExist(err))
			},
		},
		{
			name: "live keeps running entry",
			testFn: func(t *testing.T, r *RuntimeFile, pids *mockPIDChecker) {
				pids.running[77] = true
				require.NoError(t, r.Register(domain.RuntimeInfo{PID: 77}))
				info, err := r.Live()
				require.NoError(t, err)
				require.NotNil(t, info)
				assert.Equal(t, 77, info.PID)
			},
		},
		{
			name: "clear is idempotent",
			testFn: func(t *testing.T, r *RuntimeFile, pids *mockPIDChecker) {
				require.NoError(t, r.Register(domain.RuntimeInfo{PID: 1}))
				require.NoError(t, r.Clear())
				require.NoError(t, r.Clear())
			},
		},
		{
			name: "corrupt file is an error",
			testFn: func(t *testing.T, r *RuntimeFile, pids *mockPIDChecker) {
				require.NoError(t, os.WriteFile(r.Path(), []byte("{"), 0600))
				_, err := r.Get()
				assert.Error(t, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pids := &mockPIDChecker{running: map[int]bool{}}
			r := NewRuntimeFile(filepath.Join(t.TempDir(), runtimeFileName), pids)
			tt.testFn(t, r, pids)
		})
	}
}
