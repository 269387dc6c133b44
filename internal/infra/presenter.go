package infra

import (
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

// ChallengePresenter implements domain.Presenter by recording the requested
// presentation for an external UI to poll. It draws nothing itself.
type ChallengePresenter struct {
	clock  domain.Clock
	logger *zap.Logger

	mu    sync.Mutex
	state domain.ChallengeState
}

// NewChallengePresenter creates a presenter with nothing shown.
func NewChallengePresenter(clock domain.Clock, logger *zap.Logger) *ChallengePresenter {
	return &ChallengePresenter{
		clock:  clock,
		logger: logger,
		state:  domain.ChallengeState{Kind: domain.ChallengeNone, Since: clock.Now()},
	}
}

// ShowBlock requests the PIN challenge for target. It is ignored while the
// lockdown screen is up.
func (p *ChallengePresenter) ShowBlock(target domain.LockTarget) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Kind == domain.ChallengeLockdown {
		return
	}
	p.state = domain.ChallengeState{
		Kind:       domain.ChallengeBlock,
		TargetKind: target.Kind,
		Name:       target.Name,
		Key:        target.Key(),
		Since:      p.clock.Now(),
	}
	p.logger.Info("block challenge shown", zap.String("target", target.Key()))
}

// HideBlock clears a block challenge.
func (p *ChallengePresenter) HideBlock() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Kind != domain.ChallengeBlock {
		return
	}
	p.clearLocked()
	p.logger.Debug("block challenge hidden")
}

// ShowLockdown replaces any challenge with the recovery screen.
func (p *ChallengePresenter) ShowLockdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Kind == domain.ChallengeLockdown {
		return
	}
	p.state = domain.ChallengeState{Kind: domain.ChallengeLockdown, Since: p.clock.Now()}
	p.logger.Warn("lockdown screen shown")
}

// HideLockdown clears the recovery screen.
func (p *ChallengePresenter) HideLockdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Kind != domain.ChallengeLockdown {
		return
	}
	p.clearLocked()
	p.logger.Info("lockdown screen hidden")
}

// Challenge returns the current presentation state.
func (p *ChallengePresenter) Challenge() domain.ChallengeState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *ChallengePresenter) clearLocked() {
	p.state = domain.ChallengeState{Kind: domain.ChallengeNone, Since: p.clock.Now()}
}

var _ domain.Presenter = (*ChallengePresenter)(nil)
