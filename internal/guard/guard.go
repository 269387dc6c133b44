// Package guard implements PIN verification and the security lockdown state machine.
package guard

import (
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/metrics"
	"github.com/eliteGoblin/focusd/app_lock/internal/settings"
)

const (
	// MaxAttempts is the number of consecutive wrong PINs that triggers lockdown.
	MaxAttempts = 10

	// MasterVerificationTTL bounds how long a master password check authorizes Recover.
	MasterVerificationTTL = 5 * time.Minute
)

// VerifyResult is the outcome of a PIN check that reached the comparison.
type VerifyResult struct {
	Success           bool `json:"success"`
	Remaining         int  `json:"remaining"`
	LockdownTriggered bool `json:"lockdownTriggered"`
}

// Guard owns the failed-attempt counter and the lockdown flag. The desktop
// and website flows share one Guard and therefore one counter.
type Guard struct {
	mu               sync.Mutex
	store            *settings.Store
	clock            domain.Clock
	events           domain.EventLog
	logger           *zap.Logger
	masterVerifiedAt time.Time
	onLockdown       []func()
	onRecover        []func()
}

// New creates a Guard. events may be nil.
func New(store *settings.Store, clock domain.Clock, events domain.EventLog, logger *zap.Logger) *Guard {
	return &Guard{
		store:  store,
		clock:  clock,
		events: events,
		logger: logger,
	}
}

// OnLockdown registers fn to run, outside the guard lock, when lockdown begins.
func (g *Guard) OnLockdown(fn func()) {
	g.mu.Lock()
	g.onLockdown = append(g.onLockdown, fn)
	g.mu.Unlock()
}

// OnRecover registers fn to run, outside the guard lock, after a successful recovery.
func (g *Guard) OnRecover(fn func()) {
	g.mu.Lock()
	g.onRecover = append(g.onRecover, fn)
	g.mu.Unlock()
}

// Verify checks pin. It returns domain.ErrLockdown while locked down and
// domain.ErrPINNotConfigured when no PIN exists; neither counts as an attempt.
func (g *Guard) Verify(pin string) (VerifyResult, error) {
	g.mu.Lock()
	res, hooks, err := g.verifyLocked(pin)
	g.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return res, err
}

func (g *Guard) verifyLocked(pin string) (VerifyResult, []func(), error) {
	st, err := g.store.SecurityState()
	if err != nil {
		return VerifyResult{}, nil, fmt.Errorf("failed to load security state: %w", err)
	}
	if st.IsInLockdown {
		metrics.PINAttempts.WithLabelValues("lockdown").Inc()
		return VerifyResult{}, nil, domain.ErrLockdown
	}
	configured, err := g.store.PIN()
	if err != nil {
		metrics.PINAttempts.WithLabelValues("not_configured").Inc()
		return VerifyResult{}, nil, err
	}

	if subtle.ConstantTimeCompare([]byte(pin), []byte(configured)) == 1 {
		if st.PinAttempts != 0 {
			st.PinAttempts = 0
			if err := g.store.SaveSecurityState(st); err != nil {
				return VerifyResult{}, nil, fmt.Errorf("failed to reset pin attempts: %w", err)
			}
		}
		metrics.PINAttempts.WithLabelValues("success").Inc()
		return VerifyResult{Success: true}, nil, nil
	}

	metrics.PINAttempts.WithLabelValues("failure").Inc()
	st.PinAttempts++
	if st.PinAttempts < MaxAttempts {
		if err := g.store.SaveSecurityState(st); err != nil {
			return VerifyResult{}, nil, fmt.Errorf("failed to save pin attempts: %w", err)
		}
		g.logger.Warn("incorrect PIN", zap.Int("attempts", st.PinAttempts))
		g.record(domain.EventPINFailed, fmt.Sprintf("attempt %d/%d", st.PinAttempts, MaxAttempts))
		return VerifyResult{Remaining: MaxAttempts - st.PinAttempts}, nil, nil
	}

	now := g.clock.Now()
	st.PinAttempts = MaxAttempts
	st.IsInLockdown = true
	st.LastLockdownTime = &now
	if err := g.store.SaveSecurityState(st); err != nil {
		return VerifyResult{}, nil, fmt.Errorf("failed to activate lockdown: %w", err)
	}
	g.masterVerifiedAt = time.Time{}
	metrics.LockdownsTotal.Inc()
	g.logger.Warn("security lockdown activated", zap.Time("at", now))
	g.record(domain.EventLockdownActivated, "too many failed PIN attempts")
	return VerifyResult{LockdownTriggered: true}, append([]func(){}, g.onLockdown...), nil
}

// VerifyMaster checks the master password. A match authorizes Recover for
// MasterVerificationTTL; it does not leave lockdown by itself.
func (g *Guard) VerifyMaster(password string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	master, err := g.store.MasterPassword()
	if err != nil {
		return false, err
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(master)) != 1 {
		g.logger.Warn("incorrect master password")
		g.record(domain.EventMasterFailed, "")
		return false, nil
	}
	g.masterVerifiedAt = g.clock.Now()
	g.logger.Info("master password verified")
	return true, nil
}

// Recover leaves lockdown, resets the attempt counter and, when newPIN is
// non-empty, replaces the PIN. It requires a recent successful VerifyMaster.
func (g *Guard) Recover(newPIN string) error {
	g.mu.Lock()
	hooks, err := g.recoverLocked(newPIN)
	g.mu.Unlock()
	if err != nil {
		return err
	}
	for _, fn := range hooks {
		fn()
	}
	return nil
}

func (g *Guard) recoverLocked(newPIN string) ([]func(), error) {
	st, err := g.store.SecurityState()
	if err != nil {
		return nil, fmt.Errorf("failed to load security state: %w", err)
	}
	if !st.IsInLockdown {
		return nil, domain.ErrNotInLockdown
	}
	if g.masterVerifiedAt.IsZero() || g.clock.Now().Sub(g.masterVerifiedAt) > MasterVerificationTTL {
		return nil, domain.ErrMasterNotVerified
	}
	if newPIN != "" {
		if err := g.store.SetPIN(newPIN); err != nil {
			return nil, err
		}
	}
	st.PinAttempts = 0
	st.IsInLockdown = false
	if err := g.store.SaveSecurityState(st); err != nil {
		return nil, fmt.Errorf("failed to clear lockdown: %w", err)
	}
	g.masterVerifiedAt = time.Time{}
	g.logger.Info("security lockdown deactivated", zap.Bool("pin_changed", newPIN != ""))
	g.record(domain.EventLockdownRecovered, "")
	return append([]func(){}, g.onRecover...), nil
}

// Status returns the persisted security state.
func (g *Guard) Status() (domain.SecurityState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.store.SecurityState()
}

// InLockdown reports whether lockdown is active, failing closed on read errors.
func (g *Guard) InLockdown() bool {
	return g.store.InLockdown()
}

func (g *Guard) record(t domain.SecurityEventType, detail string) {
	if g.events == nil {
		return
	}
	if err := g.events.Append(domain.SecurityEvent{Type: t, Detail: detail, CreatedAt: g.clock.Now()}); err != nil {
		g.logger.Warn("failed to record security event", zap.String("type", string(t)), zap.Error(err))
	}
}
