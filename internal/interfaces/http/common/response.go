package common

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// MessageResponse is the uniform body of every intake response.
type MessageResponse struct {
	Message string `json:"message"`
}

// WriteJSON serializes payload to JSON with status and logs on failure.
func WriteJSON(logger *slog.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Error("JSON エンコードに失敗", slog.Any("error", err))
	}
}

// WriteMessage writes {"message": message} with CORS headers.
func WriteMessage(logger *slog.Logger, w http.ResponseWriter, status int, message string) {
	SetCORSHeaders(w.Header())
	WriteJSON(logger, w, status, MessageResponse{Message: message})
}

// SetCORSHeaders allows cross-origin POSTs from any site.
func SetCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", corsAllowOrigin)
	h.Set("Access-Control-Allow-Methods", corsAllowMethods)
	h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
}
