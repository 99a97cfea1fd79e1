package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sngm3741/form-intake/api/internal/intake/application"
	"github.com/sngm3741/form-intake/api/internal/interfaces/http/common"
)

type submissionResponse struct {
	Key    string            `json:"key"`
	Fields map[string]string `json:"fields"`
}

// submissionDetailHandler は保存済みの送信レコードを 1 件返す。
func (h *Handler) submissionDetailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := url.PathUnescape(chi.URLParam(r, "key"))
		if err != nil || strings.TrimSpace(key) == "" {
			common.WriteJSON(h.logger, w, http.StatusBadRequest, map[string]string{"error": "invalid submission key"})
			return
		}

		record, err := h.submissions.Lookup(r.Context(), key)
		if errors.Is(err, application.ErrSubmissionNotFound) {
			common.WriteJSON(h.logger, w, http.StatusNotFound, map[string]string{"error": "submission not found"})
			return
		}
		if err != nil {
			h.logger.Error("submission lookup failed", slog.String("key", key), slog.Any("error", err))
			common.WriteJSON(h.logger, w, http.StatusInternalServerError, map[string]string{"error": "submission lookup failed"})
			return
		}

		if user, ok := common.UserFromContext(r.Context()); ok {
			h.logger.Info("submission viewed", slog.String("key", key), slog.String("user", user.ID))
		}
		common.WriteJSON(h.logger, w, http.StatusOK, submissionResponse{Key: key, Fields: record})
	}
}
