package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

func TestRegistry_Defaults(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, []string{"dota2", "steam"}, r.List())

	p, err := r.Get("steam")
	require.NoError(t, err)
	assert.Equal(t, "Steam", p.Name())
	assert.Contains(t, p.ProcessPatterns(), "steam")
	assert.Contains(t, p.ProcessPatterns(), "steamwebhelper")

	_, err = r.Get("minecraft")
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	tests := []struct {
		name     string
		existing []domain.AppRef
		want     []string
	}{
		{
			name: "empty list gets every process",
			want: []string{"dota2", "dota_osx64", "dota2_launcher"},
		},
		{
			name:     "already locked names are skipped case-insensitively",
			existing: []domain.AppRef{{Name: "Dota2"}, {Name: "firefox"}},
			want:     []string{"Dota2", "firefox", "dota_osx64", "dota2_launcher"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(tt.existing, NewDota2Policy())
			names := make([]string, 0, len(got))
			for _, a := range got {
				names = append(names, a.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	existing := make([]domain.AppRef, 1, 8)
	existing[0] = domain.AppRef{Name: "firefox"}

	_ = Apply(existing, NewSteamPolicy())
	assert.Len(t, existing, 1)
	assert.Equal(t, domain.AppRef{}, existing[:2][1], "backing array untouched")
}
