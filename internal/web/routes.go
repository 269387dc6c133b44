package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// extensionRoutes are the paths the browser extension calls cross-origin.
var extensionRoutes = []string{"/status", "/blocklist", "/block", "/verify-pin", "/unlock-website"}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestMetrics)

	secrets := RateLimit(RateLimitConfig{
		RequestLimit: s.cfg.PINRateLimit,
		WindowSize:   s.cfg.PINRateWindow,
	})

	// browser extension
	r.Group(func(r chi.Router) {
		r.Use(cors(s.cfg.AllowedOrigins))
		for _, path := range extensionRoutes {
			r.Options(path, func(w http.ResponseWriter, r *http.Request) {})
		}
		r.Get("/status", s.handleStatus)
		r.Get("/blocklist", s.handleGetBlocklist)
		r.Post("/blocklist", s.handleSetBlocklist)
		r.Post("/block", s.handleBlock)
		r.With(secrets).Post("/verify-pin", s.handleVerifyWebsitePIN)
		r.Post("/unlock-website", s.handleUnlockWebsite)
	})

	r.Route("/control", func(r chi.Router) {
		r.Use(localOnly)
		r.Post("/monitoring/start", s.handleStartMonitoring)
		r.With(secrets).Post("/monitoring/stop", s.handleStopMonitoring)
		r.With(secrets).Post("/verify-pin", s.handleVerifyPIN)
		r.With(secrets).Post("/master", s.handleVerifyMaster)
		r.Post("/recover", s.handleRecover)
		r.Post("/unlock", s.handleUnlockTarget)
		r.Post("/close-block", s.handleCloseBlock)
		r.Get("/debug", s.handleDebug)
		r.Get("/schedule", s.handleSchedule)
		r.Get("/security", s.handleSecurity)
		r.Get("/challenge", s.handleChallenge)
		r.Get("/active-window", s.handleActiveWindow)
		r.Get("/running-apps", s.handleRunningApps)
		r.Put("/apps", s.handleSetApps)
		r.Put("/websites", s.handleSetWebsites)
		r.Get("/settings", s.handleGetSettings)
		r.Patch("/settings", s.handlePatchSettings)
		r.Get("/events", s.handleEvents)
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}
