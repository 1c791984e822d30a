package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/church-agenda/internal/application"
	"github.com/example/church-agenda/internal/surface"
)

type viewManager interface {
	Mount(ctx context.Context, actor application.Principal, window application.Window) (*surface.View, error)
	Get(id string) (*surface.View, error)
	Unmount(ctx context.Context, id string) error
}

// CalendarHandler serves the privileged calendar surface. Every request must
// carry a principal; views are only visible to the actor that mounted them.
type CalendarHandler struct {
	views     viewManager
	logger    *slog.Logger
	responder responder
}

func NewCalendarHandler(views viewManager, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{views: views, logger: logger, responder: newResponder(logger)}
}

func (h *CalendarHandler) Mount(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.views == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req mountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	window, ok := parseWindow(req.Start, req.End)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidWindow)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	view, err := h.views.Mount(r.Context(), principal, window)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "CalendarHandler", "Mount", "view_id", view.ID()).
		DebugContext(r.Context(), "view mounted")
	h.renderView(r.Context(), w, view, view.Events(), http.StatusCreated)
}

func (h *CalendarHandler) Show(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	h.renderView(r.Context(), w, view, view.Events(), http.StatusOK)
}

func (h *CalendarHandler) Unmount(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	if err := h.views.Unmount(r.Context(), view.ID()); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *CalendarHandler) Reload(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	events, err := view.Reload(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.renderView(r.Context(), w, view, events, http.StatusOK)
}

func (h *CalendarHandler) Notices(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	notices := toNoticeDTOs(view.Notices())
	if notices == nil {
		notices = []noticeDTO{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, noticesResponse{Notices: notices})
}

func (h *CalendarHandler) Select(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}

	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	created, err := view.SelectRange(r.Context(),
		surface.Selection{Start: parseTime(req.Start), End: parseTime(req.End)},
		surface.EventDetails{
			Title:       req.Title,
			Description: req.Description,
			Visibility:  application.Visibility(strings.TrimSpace(req.Visibility)),
			Category:    req.Category,
		})
	if err != nil {
		h.writeGestureError(r.Context(), w, view, nil, err)
		return
	}
	h.renderEvent(r.Context(), w, view, created, http.StatusCreated)
}

func (h *CalendarHandler) Activate(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}

	activation, err := view.Activate(r.Context(), r.PathValue("key"))
	if err != nil {
		h.writeGestureError(r.Context(), w, view, nil, err)
		return
	}

	var response activationResponse
	if activation.Form != nil {
		form := toFormDTO(*activation.Form)
		response.Form = &form
	}
	if activation.Notice != nil {
		notice := toNoticeDTO(*activation.Notice)
		response.Notice = &notice
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, response)
}

func (h *CalendarHandler) Edit(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}

	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	key := r.PathValue("key")
	updated, err := view.SubmitEdit(r.Context(), key, req.toForm(key))
	if err != nil {
		h.writeGestureError(r.Context(), w, view, nil, err)
		return
	}
	h.renderEvent(r.Context(), w, view, updated, http.StatusOK)
}

func (h *CalendarHandler) Delete(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	if err := view.Delete(r.Context(), r.PathValue("key")); err != nil {
		h.writeGestureError(r.Context(), w, view, nil, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *CalendarHandler) Change(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}

	var req changeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	changed, err := view.Change(r.Context(), r.PathValue("key"), parseTime(req.Start), parseTime(req.End), req.AllDay)
	if err != nil {
		var original *eventDTO
		if changed.Key != "" {
			dto := toEventDTO(changed)
			original = &dto
		}
		h.writeGestureError(r.Context(), w, view, original, err)
		return
	}
	h.renderEvent(r.Context(), w, view, changed, http.StatusOK)
}

// view resolves the path's view for the calling actor. Views of other actors
// are reported as missing.
func (h *CalendarHandler) view(w http.ResponseWriter, r *http.Request) (*surface.View, bool) {
	if h == nil || h.views == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, false
	}

	view, err := h.views.Get(r.PathValue("view"))
	if err == nil {
		principal, _ := PrincipalFromContext(r.Context())
		if view.Actor().UserID != principal.UserID {
			err = surface.ErrViewNotFound
		}
	}
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return nil, false
	}
	return view, true
}

func (h *CalendarHandler) writeGestureError(ctx context.Context, w http.ResponseWriter, view *surface.View, original *eventDTO, err error) {
	status, payload := serviceError(err)
	payload.Event = original
	if errors.Is(err, application.ErrReadOnlySource) {
		handlerLogger(ctx, h.logger, "CalendarHandler", "gesture", "view_id", view.ID()).
			ErrorContext(ctx, "write gesture reached a read-only event", "error", err)
	}
	h.responder.writeServiceError(ctx, w, status, payload, err)
}

func (h *CalendarHandler) renderView(ctx context.Context, w http.ResponseWriter, view *surface.View, events []surface.RenderedEvent, status int) {
	h.responder.writeJSON(ctx, w, status, viewResponse{
		ID:      view.ID(),
		Window:  toWindowDTO(view.Window()),
		Events:  toEventDTOs(events),
		Notices: toNoticeDTOs(view.Notices()),
	})
}

func (h *CalendarHandler) renderEvent(ctx context.Context, w http.ResponseWriter, view *surface.View, event surface.RenderedEvent, status int) {
	h.responder.writeJSON(ctx, w, status, eventResponse{
		Event:   toEventDTO(event),
		Notices: toNoticeDTOs(view.Notices()),
	})
}

type mountRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type selectionRequest struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Visibility  string `json:"visibility"`
	Category    string `json:"category"`
}

type editRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Start       string `json:"start"`
	End         string `json:"end"`
	AllDay      bool   `json:"all_day"`
	Visibility  string `json:"visibility"`
	Category    string `json:"category"`
}

func (r editRequest) toForm(key string) surface.EditForm {
	return surface.EditForm{
		Key:         key,
		Title:       r.Title,
		Description: r.Description,
		Start:       parseTime(r.Start),
		End:         parseTime(r.End),
		AllDay:      r.AllDay,
		Visibility:  application.Visibility(strings.TrimSpace(r.Visibility)),
		Category:    r.Category,
	}
}

type changeRequest struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	AllDay bool   `json:"all_day"`
}

type viewResponse struct {
	ID      string      `json:"id"`
	Window  windowDTO   `json:"window"`
	Events  []eventDTO  `json:"events"`
	Notices []noticeDTO `json:"notices,omitempty"`
}

type eventResponse struct {
	Event   eventDTO    `json:"event"`
	Notices []noticeDTO `json:"notices,omitempty"`
}

type activationResponse struct {
	Form   *formDTO   `json:"form,omitempty"`
	Notice *noticeDTO `json:"notice,omitempty"`
}

type noticesResponse struct {
	Notices []noticeDTO `json:"notices"`
}
