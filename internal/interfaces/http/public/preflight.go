package public

import (
	"net/http"

	"github.com/sngm3741/form-intake/api/internal/interfaces/http/common"
)

const allowedMethods = "POST, OPTIONS"

// preflightHandler answers CORS preflights; a bare OPTIONS only lists the
// allowed methods.
func (h *Handler) preflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Origin") != "" &&
			r.Header.Get("Access-Control-Request-Method") != "" &&
			r.Header.Get("Access-Control-Request-Headers") != "" {
			common.SetCORSHeaders(w.Header())
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Allow", allowedMethods)
		w.WriteHeader(http.StatusOK)
	}
}
