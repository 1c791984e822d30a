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

var (
	errBadRequestBody = errors.New("無効なリクエスト形式です。")
	errInvalidWindow  = errors.New("表示期間の指定が正しくありません。")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	status, payload := serviceError(err)
	r.writeServiceError(ctx, w, status, payload, err)
}

func (r responder) writeServiceError(ctx context.Context, w http.ResponseWriter, status int, payload errorResponse, err error) {
	logger := r.loggerFor(ctx)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", "status", status, "error", err, "error_kind", application.ErrorKind(err))
	} else {
		logger.InfoContext(ctx, "request rejected", "status", status, "error", err, "error_kind", application.ErrorKind(err))
	}
	r.writeJSON(ctx, w, status, payload)
}

// serviceError maps application and surface errors to a status and body.
func serviceError(err error) (int, errorResponse) {
	if err == nil {
		return http.StatusInternalServerError, errorResponse{Message: localizedStatusMessage(http.StatusInternalServerError)}
	}

	var vErr *application.ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "入力内容に誤りがあります。",
			Errors:    localizeValidationErrors(vErr),
		}
	case errors.Is(err, application.ErrReadOnlySource):
		return http.StatusConflict, errorResponse{
			ErrorCode: "READ_ONLY_SOURCE",
			Message:   "外部カレンダーの予定は変更できません。",
		}
	case errors.Is(err, surface.ErrNotDraggable):
		return http.StatusConflict, errorResponse{
			ErrorCode: "NOT_DRAGGABLE",
			Message:   "この予定は移動できません。",
		}
	case errors.Is(err, application.ErrMutationInFlight):
		return http.StatusConflict, errorResponse{
			ErrorCode: "MUTATION_IN_FLIGHT",
			Message:   "この予定は現在保存中です。",
		}
	case errors.Is(err, application.ErrViewInvalidated):
		return http.StatusGone, errorResponse{
			ErrorCode: "VIEW_INVALIDATED",
			Message:   "カレンダー画面は既に閉じられています。",
		}
	case errors.Is(err, surface.ErrViewNotFound):
		return http.StatusNotFound, errorResponse{
			ErrorCode: "VIEW_NOT_FOUND",
			Message:   "指定されたカレンダー画面が見つかりません。",
		}
	case errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound, errorResponse{Message: "指定されたリソースが見つかりません。"}
	case errors.Is(err, application.ErrPersistence):
		return http.StatusBadGateway, errorResponse{
			ErrorCode: "PERSISTENCE_FAILED",
			Message:   "予定の保存に失敗しました。変更は取り消されました。",
		}
	default:
		return http.StatusInternalServerError, errorResponse{Message: localizedStatusMessage(http.StatusInternalServerError)}
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusGone:
		return "リソースは既に破棄されています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	case http.StatusBadGateway:
		return "保存先との通信に失敗しました。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "title is required":
		return "タイトルは必須です。"
	case "title is too long":
		return "タイトルが長すぎます。"
	case "start is required":
		return "開始日時は必須です。"
	case "end is required":
		return "終了日時は必須です。"
	case "end must not be before start":
		return "終了日時は開始日時以降である必要があります。"
	case "visibility must be public or private":
		return "公開範囲は public または private で指定してください。"
	default:
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	// Event carries the restored state of a rejected drag so the grid can
	// snap the element back.
	Event *eventDTO `json:"event,omitempty"`
}
