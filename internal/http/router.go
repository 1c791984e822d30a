package http

import (
	"context"
	"net/http"
)

type RouterConfig struct {
	Calendar *CalendarHandler
	Public   *PublicHandler
	// Auth guards every /api route.
	Auth func(http.Handler) http.Handler
	// Health reports readiness for /healthz.
	Health     func(ctx context.Context) error
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		responder := newResponder(nil)
		if cfg.Health != nil {
			if err := cfg.Health(r.Context()); err != nil {
				responder.writeError(r.Context(), w, http.StatusServiceUnavailable, err)
				return
			}
		}
		responder.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Public != nil {
		mux.HandleFunc("GET /public/events", cfg.Public.Events)
		mux.HandleFunc("GET /public/calendar.ics", cfg.Public.Calendar)
	}

	if cfg.Calendar != nil {
		guard := cfg.Auth
		if guard == nil {
			guard = func(next http.Handler) http.Handler { return next }
		}
		route := func(pattern string, handler http.HandlerFunc) {
			mux.Handle(pattern, guard(handler))
		}

		route("POST /api/views", cfg.Calendar.Mount)
		route("GET /api/views/{view}", cfg.Calendar.Show)
		route("DELETE /api/views/{view}", cfg.Calendar.Unmount)
		route("POST /api/views/{view}/reload", cfg.Calendar.Reload)
		route("GET /api/views/{view}/notices", cfg.Calendar.Notices)
		route("POST /api/views/{view}/selections", cfg.Calendar.Select)
		route("POST /api/views/{view}/events/{key}/activate", cfg.Calendar.Activate)
		route("PUT /api/views/{view}/events/{key}", cfg.Calendar.Edit)
		route("DELETE /api/views/{view}/events/{key}", cfg.Calendar.Delete)
		route("POST /api/views/{view}/events/{key}/change", cfg.Calendar.Change)
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}
