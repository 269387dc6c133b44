// Package policy holds built-in lock policies: named bundles of process
// names for well-known distracting apps that can be locked in one step.
package policy

import (
	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

// AppPolicy describes the processes that make up one application.
type AppPolicy interface {
	// ID returns unique identifier (e.g., "steam", "dota2").
	ID() string

	// Name returns human-readable name for display.
	Name() string

	// ProcessPatterns returns the process names to lock.
	// Names are compared case-insensitively by the monitor.
	ProcessPatterns() []string
}

// ToAppRefs converts a policy to locked-app entries.
func ToAppRefs(ap AppPolicy) []domain.AppRef {
	patterns := ap.ProcessPatterns()
	refs := make([]domain.AppRef, 0, len(patterns))
	for _, p := range patterns {
		refs = append(refs, domain.AppRef{Name: p})
	}
	return refs
}

// Apply appends the policy's processes to apps, skipping names already locked.
func Apply(apps []domain.AppRef, ap AppPolicy) []domain.AppRef {
	seen := make(map[string]bool, len(apps))
	for _, a := range apps {
		seen[domain.NormalizeAppName(a.Name)] = true
	}
	out := append([]domain.AppRef(nil), apps...)
	for _, ref := range ToAppRefs(ap) {
		key := domain.NormalizeAppName(ref.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ref)
	}
	return out
}
