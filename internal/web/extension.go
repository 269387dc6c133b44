package web

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/guard"
	"github.com/eliteGoblin/focusd/app_lock/internal/usecase"
)

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Status     string `json:"status"`
	Monitoring bool   `json:"monitoring"`
	Version    string `json:"version"`
	Timestamp  int64  `json:"timestamp"`
}

// BlocklistResponse is returned by GET /blocklist.
type BlocklistResponse struct {
	Sites []string `json:"sites"`
	Count int      `json:"count"`
}

type sitesRequest struct {
	Sites []string `json:"sites"`
}

type sitesResponse struct {
	Success bool     `json:"success"`
	Sites   []string `json:"sites"`
}

type blockRequest struct {
	Site   string `json:"site"`
	Source string `json:"source"`
	TabID  int    `json:"tabId,omitempty"`
}

// BlockResponse is returned by POST /block.
type BlockResponse struct {
	Success         bool                `json:"success"`
	Message         string              `json:"message"`
	Monitoring      bool                `json:"monitoring"`
	TemporaryUnlock bool                `json:"temporaryUnlock,omitempty"`
	Block           bool                `json:"block"`
	Reason          usecase.BlockReason `json:"reason"`
}

type websitePINRequest struct {
	PIN    string `json:"pin"`
	Site   string `json:"site"`
	Source string `json:"source"`
}

// VerifyResponse is returned by the PIN endpoints.
type VerifyResponse struct {
	Success           bool   `json:"success"`
	Error             string `json:"error,omitempty"`
	RemainingAttempts int    `json:"remainingAttempts,omitempty"`
	Lockdown          bool   `json:"lockdown,omitempty"`
}

type unlockWebsiteRequest struct {
	Site   string `json:"site"`
	Source string `json:"source"`
}

// UnlockWebsiteResponse is returned by POST /unlock-website. Duration and
// expiry are in milliseconds.
type UnlockWebsiteResponse struct {
	Success        bool  `json:"success"`
	UnlockDuration int64 `json:"unlockDuration"`
	UnlockExpiry   int64 `json:"unlockExpiry"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:     "running",
		Monitoring: s.ctrl.IsMonitoring(),
		Version:    s.cfg.Version,
		Timestamp:  s.clock.Now().UnixMilli(),
	})
}

func (s *Server) handleGetBlocklist(w http.ResponseWriter, r *http.Request) {
	sites, err := s.ctrl.Blocklist()
	if err != nil {
		s.logger.Error("failed to load blocklist", zap.Error(err))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BlocklistResponse{Sites: sites, Count: len(sites)})
}

func (s *Server) handleSetBlocklist(w http.ResponseWriter, r *http.Request) {
	var req sitesRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sites, err := s.ctrl.SetBlockedWebsites(req.Sites)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if sites == nil {
		sites = []string{}
	}
	writeJSON(w, http.StatusOK, sitesResponse{Success: true, Sites: sites})
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	d, err := s.ctrl.ShouldBlock(req.Site, req.Source)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := BlockResponse{
		Success:    true,
		Monitoring: d.Reason != usecase.ReasonMonitoringDisabled,
		Block:      d.Block,
		Reason:     d.Reason,
	}
	switch d.Reason {
	case usecase.ReasonMonitoringDisabled:
		resp.Message = "Monitoring is disabled"
	case usecase.ReasonTemporarilyUnlocked:
		resp.TemporaryUnlock = true
		resp.Message = "Website is temporarily unlocked"
	default:
		resp.Message = fmt.Sprintf("Website %s is blocked", d.Site)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVerifyWebsitePIN(w http.ResponseWriter, r *http.Request) {
	var req websitePINRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := s.ctrl.VerifyWebsitePIN(req.PIN, req.Site, req.Source)
	writeVerifyResult(w, res, err)
}

func (s *Server) handleUnlockWebsite(w http.ResponseWriter, r *http.Request) {
	var req unlockWebsiteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, d, err := s.ctrl.UnlockWebsite(req.Site, req.Source)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UnlockWebsiteResponse{
		Success:        true,
		UnlockDuration: d.Milliseconds(),
		UnlockExpiry:   u.Expiry.UnixMilli(),
	})
}

// writeVerifyResult renders a PIN check: 200 on success, 401 with the
// remaining attempts on a mismatch and 423 once lockdown is active.
func writeVerifyResult(w http.ResponseWriter, res guard.VerifyResult, err error) {
	switch {
	case err != nil:
		writeDomainError(w, err)
	case res.Success:
		writeJSON(w, http.StatusOK, VerifyResponse{Success: true})
	case res.LockdownTriggered:
		writeJSON(w, http.StatusLocked, VerifyResponse{Error: msgLockdownTriggered, Lockdown: true})
	default:
		writeJSON(w, http.StatusUnauthorized, VerifyResponse{
			Error:             fmt.Sprintf(msgIncorrectPIN, res.Remaining),
			RemainingAttempts: res.Remaining,
		})
	}
}
