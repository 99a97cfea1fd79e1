package public

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sngm3741/form-intake/api/internal/intake/application"
	"github.com/sngm3741/form-intake/api/internal/interfaces/http/common"
	"github.com/sngm3741/form-intake/api/pkg/logger"
)

// Handler wires the public intake endpoint to the submission service.
type Handler struct {
	logger       *slog.Logger
	submissions  application.SubmissionService
	stagingHost  string
	tokenField   string
	maxBodyBytes int64
	now          func() time.Time
}

// Config defines dependencies required by Handler.
type Config struct {
	Logger      *slog.Logger
	Submissions application.SubmissionService
	// StagingHost is refused with 404 when it matches the request host.
	StagingHost string
	// TokenField names the form field carrying the challenge token.
	TokenField   string
	MaxBodyBytes int64
	Now          func() time.Time
}

// NewHandler constructs the public HTTP handler set.
func NewHandler(cfg Config) *Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = common.DefaultMaxFormBody
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		logger:       log,
		submissions:  cfg.Submissions,
		stagingHost:  strings.ToLower(strings.TrimSpace(cfg.StagingHost)),
		tokenField:   cfg.TokenField,
		maxBodyBytes: maxBody,
		now:          now,
	}
}

// Register mounts the intake routes onto the router.
func (h *Handler) Register(r chi.Router) {
	r.Options("/", h.preflightHandler())
	r.Post("/", h.submitHandler())
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", allowedMethods)
		common.WriteMessage(h.logger, w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		common.WriteMessage(h.logger, w, http.StatusNotFound, "Not Found")
	})
}
