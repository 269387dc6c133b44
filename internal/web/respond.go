package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

const maxBodyBytes = 1 << 20

// Error messages shown to the user by the extension and the UI.
const (
	msgLockdown          = "System is in security lockdown. Use master password to recover."
	msgLockdownTriggered = "Too many failed attempts. System is now in security lockdown."
	msgPINNotConfigured  = "PIN not configured. Please complete onboarding."
	msgIncorrectPIN      = "Incorrect PIN. %d attempts remaining before security lockdown."
)

type errorResponse struct {
	Success  bool   `json:"success"`
	Error    string `json:"error"`
	Lockdown bool   `json:"lockdown,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Lockdown: status == http.StatusLocked})
}

// writeDomainError maps a domain error to its status code and message.
func writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch {
	case errors.Is(err, domain.ErrLockdown):
		msg = msgLockdown
	case errors.Is(err, domain.ErrPINNotConfigured):
		msg = msgPINNotConfigured
	case status == http.StatusInternalServerError:
		msg = "internal error"
	}
	writeError(w, status, msg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrLockdown):
		return http.StatusLocked
	case errors.Is(err, domain.ErrPINNotConfigured),
		errors.Is(err, domain.ErrMasterNotConfigured),
		errors.Is(err, domain.ErrUnlockDurationNotConfigured):
		return http.StatusPreconditionFailed
	case errors.Is(err, domain.ErrIncorrectPIN), errors.Is(err, domain.ErrIncorrectMaster):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrMasterNotVerified):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotInLockdown):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoLockedTarget):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidPIN),
		errors.Is(err, domain.ErrInvalidMasterPassword),
		errors.Is(err, domain.ErrInvalidDuration),
		errors.Is(err, domain.ErrInvalidSchedule),
		errors.Is(err, domain.ErrInvalidSite):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
