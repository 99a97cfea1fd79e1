package admin

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/sngm3741/form-intake/api/internal/intake/application"
	"github.com/sngm3741/form-intake/api/pkg/logger"
)

// Handler wires admin HTTP endpoints to application services.
type Handler struct {
	logger      *slog.Logger
	submissions application.SubmissionService
}

// Config provides dependencies for Handler.
type Config struct {
	Logger      *slog.Logger
	Submissions application.SubmissionService
}

// NewHandler constructs an admin HTTP handler set.
func NewHandler(cfg Config) *Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		logger:      log,
		submissions: cfg.Submissions,
	}
}

// Register mounts admin routes onto router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/submissions/{key}", h.submissionDetailHandler())
}
