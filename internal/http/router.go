package http

import (
	"log/slog"
	"net/http"
)

type RouterConfig struct {
	Auth     *AuthHandler
	Users    *UserHandler
	Rooms    *RoomHandler
	Meetings *MeetingHandler
	Checkin  *CheckinHandler

	// SessionValidator guards every route except login, /checkin, /healthz and /metrics.
	SessionValidator SessionValidator
	// RateLimiter throttles POST /checkin. Nil disables throttling.
	RateLimiter   RateLimiter
	OnRateLimited func()

	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// Instrument wraps the mux directly so the matched pattern is visible to it.
	Instrument func(http.Handler) http.Handler
	Middleware []func(http.Handler) http.Handler
	Logger     *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	logger := defaultLogger(cfg.Logger)

	authed := func(h http.HandlerFunc) http.Handler {
		if cfg.SessionValidator == nil {
			return h
		}
		return RequireSession(cfg.SessionValidator, logger)(h)
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		newResponder(logger).writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	if cfg.Auth != nil {
		mux.HandleFunc("POST /auth/login", cfg.Auth.Login)
		mux.HandleFunc("POST /auth/logout", cfg.Auth.Logout)
		mux.HandleFunc("POST /auth/refresh", cfg.Auth.Refresh)
	}

	if cfg.Users != nil {
		mux.Handle("GET /users", authed(cfg.Users.List))
		mux.Handle("POST /users", authed(cfg.Users.Create))
		mux.Handle("PUT /users/{id}", authed(cfg.Users.Update))
		mux.Handle("DELETE /users/{id}", authed(cfg.Users.Delete))
	}

	if cfg.Rooms != nil {
		mux.Handle("GET /rooms", authed(cfg.Rooms.List))
		mux.Handle("POST /rooms", authed(cfg.Rooms.Create))
		mux.Handle("GET /rooms/{id}", authed(cfg.Rooms.Get))
		mux.Handle("PUT /rooms/{id}", authed(cfg.Rooms.Update))
		mux.Handle("DELETE /rooms/{id}", authed(cfg.Rooms.Delete))
	}

	if cfg.Meetings != nil {
		mux.Handle("GET /rooms/{id}/meetings", authed(cfg.Meetings.RoomDay))
		mux.Handle("POST /meetings", authed(cfg.Meetings.Create))
		mux.Handle("GET /meetings/{id}", authed(cfg.Meetings.Get))
		mux.Handle("PUT /meetings/{id}", authed(cfg.Meetings.Update))
		mux.Handle("DELETE /meetings/{id}", authed(cfg.Meetings.Delete))
		mux.Handle("POST /meetings/{id}/schedule", authed(cfg.Meetings.Schedule))
		mux.Handle("POST /meetings/{id}/start", authed(cfg.Meetings.Start))
		mux.Handle("POST /meetings/{id}/complete", authed(cfg.Meetings.Complete))
		mux.Handle("POST /meetings/{id}/cancel", authed(cfg.Meetings.Cancel))
		mux.Handle("PUT /meetings/{id}/status", authed(cfg.Meetings.UpdateStatus))
		mux.Handle("GET /meetings/{id}/attendance", authed(cfg.Meetings.Attendance))
	}

	if cfg.Checkin != nil {
		mux.Handle("POST /meetings/{id}/checkin-token", authed(cfg.Checkin.GenerateToken))
		mux.Handle("GET /meetings/{id}/checkin-token", authed(cfg.Checkin.TokenStatus))
		mux.Handle("DELETE /meetings/{id}/checkin-token", authed(cfg.Checkin.InvalidateToken))

		limited := RateLimit(cfg.RateLimiter, logger, cfg.OnRateLimited)
		mux.Handle("POST /checkin", limited(http.HandlerFunc(cfg.Checkin.CheckIn)))
	}

	var handler http.Handler = mux
	if cfg.Instrument != nil {
		handler = cfg.Instrument(handler)
	}
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}
