package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/church-agenda/internal/application"
)

type publicProjection interface {
	Events(ctx context.Context, window application.Window) ([]application.MergedEvent, error)
	ICS(ctx context.Context, window application.Window) (string, error)
}

// PublicHandler serves the unauthenticated projection of public local events.
type PublicHandler struct {
	projection publicProjection
	logger     *slog.Logger
	responder  responder
}

func NewPublicHandler(projection publicProjection, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{projection: projection, logger: logger, responder: newResponder(logger)}
}

func (h *PublicHandler) Events(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.projection == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	window, ok := parseWindow(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidWindow)
		return
	}

	events, err := h.projection.Events(r.Context(), window)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]eventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, toPublicEventDTO(event))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, publicEventsResponse{Events: out})
}

func (h *PublicHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.projection == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	window, ok := parseWindow(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidWindow)
		return
	}

	body, err := h.projection.ICS(r.Context(), window)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		handlerLogger(r.Context(), h.logger, "PublicHandler", "Calendar").
			ErrorContext(r.Context(), "failed to write calendar", "error", err)
	}
}

type publicEventsResponse struct {
	Events []eventDTO `json:"events"`
}
