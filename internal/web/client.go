package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
	"github.com/eliteGoblin/focusd/app_lock/internal/monitor"
	"github.com/eliteGoblin/focusd/app_lock/internal/schedule"
	"github.com/eliteGoblin/focusd/app_lock/internal/usecase"
)

// APIError is a non-2xx answer from the daemon.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
}

// Client talks to a running daemon over its local HTTP endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for addr (host:port).
func NewClient(addr string) *Client {
	return &Client{
		baseURL: "http://" + addr,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Status calls GET /status.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var out StatusResponse
	err := c.do(ctx, http.MethodGet, "/status", nil, &out)
	return out, err
}

// StartMonitoring calls POST /control/monitoring/start.
func (c *Client) StartMonitoring(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/control/monitoring/start", nil, nil)
}

// StopMonitoring calls POST /control/monitoring/stop.
func (c *Client) StopMonitoring(ctx context.Context, pin string) error {
	return c.do(ctx, http.MethodPost, "/control/monitoring/stop", pinRequest{PIN: pin}, nil)
}

// VerifyPIN calls POST /control/verify-pin.
func (c *Client) VerifyPIN(ctx context.Context, pin string) error {
	return c.do(ctx, http.MethodPost, "/control/verify-pin", pinRequest{PIN: pin}, nil)
}

// VerifyMaster calls POST /control/master.
func (c *Client) VerifyMaster(ctx context.Context, password string) error {
	return c.do(ctx, http.MethodPost, "/control/master", masterRequest{Password: password}, nil)
}

// Recover calls POST /control/recover.
func (c *Client) Recover(ctx context.Context, newPIN string) error {
	return c.do(ctx, http.MethodPost, "/control/recover", recoverRequest{NewPIN: newPIN}, nil)
}

// Unlock calls POST /control/unlock.
func (c *Client) Unlock(ctx context.Context, name string) (UnlockResponse, error) {
	var out UnlockResponse
	err := c.do(ctx, http.MethodPost, "/control/unlock", unlockTargetRequest{Name: name}, &out)
	return out, err
}

// CloseBlock calls POST /control/close-block.
func (c *Client) CloseBlock(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/control/close-block", nil, nil)
}

// Debug calls GET /control/debug.
func (c *Client) Debug(ctx context.Context) (monitor.DebugInfo, error) {
	var out monitor.DebugInfo
	err := c.do(ctx, http.MethodGet, "/control/debug", nil, &out)
	return out, err
}

// Security calls GET /control/security.
func (c *Client) Security(ctx context.Context) (usecase.SecurityStatus, error) {
	var out usecase.SecurityStatus
	err := c.do(ctx, http.MethodGet, "/control/security", nil, &out)
	return out, err
}

// Schedule calls GET /control/schedule.
func (c *Client) Schedule(ctx context.Context) (schedule.Status, error) {
	var out schedule.Status
	err := c.do(ctx, http.MethodGet, "/control/schedule", nil, &out)
	return out, err
}

// Challenge calls GET /control/challenge.
func (c *Client) Challenge(ctx context.Context) (domain.ChallengeState, error) {
	var out domain.ChallengeState
	err := c.do(ctx, http.MethodGet, "/control/challenge", nil, &out)
	return out, err
}

// ActiveWindow calls GET /control/active-window.
func (c *Client) ActiveWindow(ctx context.Context) (ActiveWindowResponse, error) {
	var out ActiveWindowResponse
	err := c.do(ctx, http.MethodGet, "/control/active-window", nil, &out)
	return out, err
}

// RunningApps calls GET /control/running-apps.
func (c *Client) RunningApps(ctx context.Context) ([]string, error) {
	var out RunningAppsResponse
	err := c.do(ctx, http.MethodGet, "/control/running-apps", nil, &out)
	return out.Apps, err
}

// Events calls GET /control/events.
func (c *Client) Events(ctx context.Context, limit int) ([]domain.SecurityEvent, error) {
	var out EventsResponse
	err := c.do(ctx, http.MethodGet, "/control/events?limit="+strconv.Itoa(limit), nil, &out)
	return out.Events, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach daemon: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
