package usecase

import (
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/guard"
	"github.com/eliteGoblin/focusd/app_lock/internal/metrics"
)

// BlockReason explains a website block decision.
type BlockReason string

const (
	ReasonMonitoringDisabled  BlockReason = "monitoring_disabled"
	ReasonTemporarilyUnlocked BlockReason = "temporarily_unlocked"
	ReasonBlocked             BlockReason = "blocked"
)

// BlockDecision is the answer to shouldBlock.
type BlockDecision struct {
	Site   string      `json:"site"`
	Block  bool        `json:"block"`
	Reason BlockReason `json:"reason"`
}

// Blocklist returns the blocked hostnames.
func (c *Controller) Blocklist() ([]string, error) {
	sites, err := c.store.BlockedWebsites()
	if err != nil {
		return nil, err
	}
	if sites == nil {
		sites = []string{}
	}
	return sites, nil
}

// ShouldBlock decides whether the extension must block site. Websites are
// never blocked while monitoring is stopped. Whether the site is listed is
// the caller's concern.
func (c *Controller) ShouldBlock(site, source string) (BlockDecision, error) {
	host := domain.NormalizeSite(site)
	if host == "" {
		return BlockDecision{}, domain.ErrInvalidSite
	}
	d := BlockDecision{Site: host}
	switch {
	case !c.monitor.IsRunning():
		d.Reason = ReasonMonitoringDisabled
	case c.unlocks.IsActive(domain.WebsiteKey(host)):
		d.Reason = ReasonTemporarilyUnlocked
	default:
		d.Block = true
		d.Reason = ReasonBlocked
		c.countBlock(domain.KindWebsite)
		c.record(domain.EventBlockShown, domain.WebsiteKey(host), source)
		c.logger.Info("website blocked", zap.String("site", host), zap.String("source", source))
	}
	return d, nil
}

// VerifyWebsitePIN checks pin against the same guard and counter as the desktop flow.
func (c *Controller) VerifyWebsitePIN(pin, site, source string) (guard.VerifyResult, error) {
	res, err := c.guard.Verify(pin)
	if err == nil && !res.Success {
		c.logger.Warn("incorrect website PIN",
			zap.String("site", domain.NormalizeSite(site)), zap.String("source", source),
			zap.Int("remaining", res.Remaining))
	}
	return res, err
}

// UnlockWebsite grants website:<site> for the configured unlock duration.
func (c *Controller) UnlockWebsite(site, source string) (domain.TemporaryUnlock, time.Duration, error) {
	host := domain.NormalizeSite(site)
	if host == "" {
		return domain.TemporaryUnlock{}, 0, domain.ErrInvalidSite
	}
	d, err := c.store.UnlockDuration()
	if err != nil {
		return domain.TemporaryUnlock{}, 0, err
	}
	t := domain.WebsiteTarget(host)
	u := c.unlocks.Grant(t.Key(), d, map[string]string{"kind": string(domain.KindWebsite), "source": source})
	metrics.UnlocksGranted.WithLabelValues(string(domain.KindWebsite)).Inc()
	c.record(domain.EventUnlockGranted, t.Key(), d.String())
	c.logger.Info("website temporarily unlocked", zap.String("site", host), zap.Duration("duration", d))
	return u, d, nil
}
