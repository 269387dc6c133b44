package monitor

import "time"

// TargetInfo describes the tracked locked target.
type TargetInfo struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	PID  int    `json:"pid,omitempty"`
	Key  string `json:"processKey"`
}

// UnlockInfo describes one temporary unlock.
type UnlockInfo struct {
	Key         string    `json:"key"`
	Expiry      time.Time `json:"expiry"`
	RemainingMs int64     `json:"remainingMs"`
	Active      bool      `json:"active"`
}

// DebugInfo is the snapshot returned by getDebugInfo.
type DebugInfo struct {
	IsMonitoring         bool         `json:"isMonitoring"`
	SessionID            uint64       `json:"sessionId"`
	CurrentLockedTarget  *TargetInfo  `json:"currentLockedTarget"`
	HasBlockPresentation bool         `json:"hasBlockPresentation"`
	LastForeground       *string      `json:"lastForeground,omitempty"`
	TemporaryUnlocks     []UnlockInfo `json:"temporaryUnlocks"`
	Tasks                []string     `json:"tasks"`
}

// DebugInfo returns a snapshot of the monitoring state.
func (s *Service) DebugInfo() DebugInfo {
	s.mu.Lock()
	info := DebugInfo{
		IsMonitoring:         s.running,
		SessionID:            s.session,
		HasBlockPresentation: s.blockShown,
		Tasks:                []string{},
	}
	if s.current != nil {
		info.CurrentLockedTarget = &TargetInfo{
			Kind: string(s.current.Kind),
			Name: s.current.Name,
			PID:  s.current.PID,
			Key:  s.current.Key(),
		}
	}
	if s.lastSeen != nil {
		name := s.lastSeen.Name
		info.LastForeground = &name
	}
	if s.tasks != nil {
		info.Tasks = s.tasks.Names()
	}
	s.mu.Unlock()

	now := s.clock.Now()
	info.TemporaryUnlocks = []UnlockInfo{}
	for _, u := range s.unlocks.Snapshot() {
		left := u.Expiry.Sub(now)
		if left < 0 {
			left = 0
		}
		info.TemporaryUnlocks = append(info.TemporaryUnlocks, UnlockInfo{
			Key:         u.Key,
			Expiry:      u.Expiry,
			RemainingMs: left.Milliseconds(),
			Active:      s.unlocks.IsActive(u.Key),
		})
	}
	return info
}
