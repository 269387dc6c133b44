package web

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/settings"
)

const defaultEventLimit = 50

type pinRequest struct {
	PIN string `json:"pin"`
}

type masterRequest struct {
	Password string `json:"password"`
}

type recoverRequest struct {
	NewPIN string `json:"newPin,omitempty"`
}

type unlockTargetRequest struct {
	Name string `json:"name"`
}

// SuccessResponse acknowledges control operations without a payload.
type SuccessResponse struct {
	Success    bool `json:"success"`
	Monitoring bool `json:"monitoring"`
}

// UnlockResponse is returned by POST /control/unlock. Expiry is in milliseconds.
type UnlockResponse struct {
	Success bool   `json:"success"`
	Key     string `json:"key"`
	Expiry  int64  `json:"expiry"`
}

// ActiveWindowResponse is returned by GET /control/active-window.
type ActiveWindowResponse struct {
	Active bool   `json:"active"`
	Name   string `json:"name,omitempty"`
	PID    int    `json:"pid,omitempty"`
}

// AppsResponse carries the locked or running application lists.
type AppsResponse struct {
	Success bool            `json:"success"`
	Apps    []domain.AppRef `json:"apps"`
}

type appsRequest struct {
	Apps []domain.AppRef `json:"apps"`
}

// RunningAppsResponse is returned by GET /control/running-apps.
type RunningAppsResponse struct {
	Apps []string `json:"apps"`
}

// EventsResponse is returned by GET /control/events.
type EventsResponse struct {
	Events []domain.SecurityEvent `json:"events"`
}

func (s *Server) handleStartMonitoring(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.StartMonitoring(); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Monitoring: true})
}

func (s *Server) handleStopMonitoring(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := s.ctrl.StopMonitoring(req.PIN)
	writeVerifyResult(w, res, err)
}

func (s *Server) handleVerifyPIN(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := s.ctrl.VerifyPIN(req.PIN)
	writeVerifyResult(w, res, err)
}

func (s *Server) handleVerifyMaster(w http.ResponseWriter, r *http.Request) {
	var req masterRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ok, err := s.ctrl.VerifyMasterPassword(req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "Incorrect master password")
		return
	}
	writeJSON(w, http.StatusOK, VerifyResponse{Success: true})
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	var req recoverRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.ctrl.Recover(req.NewPIN); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Monitoring: s.ctrl.IsMonitoring()})
}

func (s *Server) handleUnlockTarget(w http.ResponseWriter, r *http.Request) {
	var req unlockTargetRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := s.ctrl.UnlockCurrentTarget(req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UnlockResponse{Success: true, Key: u.Key, Expiry: u.Expiry.UnixMilli()})
}

func (s *Server) handleCloseBlock(w http.ResponseWriter, r *http.Request) {
	s.ctrl.CloseBlock()
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Monitoring: s.ctrl.IsMonitoring()})
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.DebugInfo())
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	st, err := s.ctrl.ScheduleStatus()
	if err != nil {
		s.logger.Error("failed to load schedule status", zap.Error(err))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSecurity(w http.ResponseWriter, r *http.Request) {
	st, err := s.ctrl.SecurityStatus()
	if err != nil {
		s.logger.Error("failed to load security status", zap.Error(err))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	st := domain.ChallengeState{Kind: domain.ChallengeNone}
	if s.challenge != nil {
		st = s.challenge.Challenge()
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleActiveWindow(w http.ResponseWriter, r *http.Request) {
	fp, err := s.ctrl.ActiveWindow(r.Context())
	if err != nil {
		s.logger.Debug("active window query failed", zap.Error(err))
		writeJSON(w, http.StatusOK, ActiveWindowResponse{})
		return
	}
	if fp == nil {
		writeJSON(w, http.StatusOK, ActiveWindowResponse{})
		return
	}
	writeJSON(w, http.StatusOK, ActiveWindowResponse{Active: true, Name: fp.Name, PID: fp.PID})
}

func (s *Server) handleRunningApps(w http.ResponseWriter, r *http.Request) {
	apps, err := s.ctrl.RunningApps(r.Context())
	if err != nil {
		s.logger.Warn("failed to list running apps", zap.Error(err))
		writeDomainError(w, err)
		return
	}
	if apps == nil {
		apps = []string{}
	}
	writeJSON(w, http.StatusOK, RunningAppsResponse{Apps: apps})
}

func (s *Server) handleSetApps(w http.ResponseWriter, r *http.Request) {
	var req appsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	apps, err := s.ctrl.SetLockedApps(req.Apps)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if apps == nil {
		apps = []domain.AppRef{}
	}
	writeJSON(w, http.StatusOK, AppsResponse{Success: true, Apps: apps})
}

func (s *Server) handleSetWebsites(w http.ResponseWriter, r *http.Request) {
	s.handleSetBlocklist(w, r)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	v, err := s.ctrl.Settings()
	if err != nil {
		s.logger.Error("failed to load settings", zap.Error(err))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	var p settings.Patch
	if err := decode(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	v, err := s.ctrl.UpdateSettings(p)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	events, err := s.ctrl.Events(limit)
	if err != nil {
		s.logger.Error("failed to load security events", zap.Error(err))
		writeDomainError(w, err)
		return
	}
	if events == nil {
		events = []domain.SecurityEvent{}
	}
	writeJSON(w, http.StatusOK, EventsResponse{Events: events})
}
