package public

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sngm3741/form-intake/api/internal/intake/application"
	"github.com/sngm3741/form-intake/api/internal/intake/domain"
	"github.com/sngm3741/form-intake/api/internal/interfaces/http/common"
)

const (
	contentTypeURLEncoded = "application/x-www-form-urlencoded"
	contentTypeMultipart  = "multipart/form-data"
)

func (h *Handler) submitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		log := h.logger.With(slog.String("request_id", requestID))

		if h.stagingHost != "" && strings.EqualFold(r.Host, h.stagingHost) {
			log.Info("staging host rejected", slog.String("host", r.Host))
			common.WriteMessage(h.logger, w, http.StatusNotFound, "Not Found")
			return
		}

		log.Info("form submission")
		receivedAt := h.now()

		form, err := h.parseForm(w, r)
		if err != nil {
			h.fail(w, log, &application.StageError{Stage: application.StageParse, Message: "There was a problem getting form data", Cause: err})
			return
		}

		token, _ := form.Lookup(h.tokenField)
		if h.tokenField != "" {
			form = form.Without(h.tokenField)
		}
		_, hasThreatScore := r.Header[http.CanonicalHeaderKey(common.HeaderThreatScore)]

		result, err := h.submissions.Submit(r.Context(), application.SubmitRequest{
			Form: form,
			Origin: domain.Origin{
				IP:             r.Header.Get(common.HeaderConnectingIP),
				Country:        r.Header.Get(common.HeaderIPCountry),
				ThreatScore:    r.Header.Get(common.HeaderThreatScore),
				HasThreatScore: hasThreatScore,
			},
			ChallengeToken: token,
			ReceivedAt:     receivedAt,
			RequestID:      requestID,
		})
		if err != nil {
			h.fail(w, log, err)
			return
		}

		log.Info("form submission OK", slog.String("key", result.Key))
		common.WriteMessage(h.logger, w, http.StatusOK, "Form submission OK")
	}
}

// parseForm reads a url-encoded or multipart body. Only the first value of a
// repeated field is kept; uploaded files are ignored.
func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) (domain.Submission, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("invalid content type: %w", err)
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var values map[string][]string
	switch mediaType {
	case contentTypeURLEncoded:
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		values = r.PostForm
	case contentTypeMultipart:
		if err := r.ParseMultipartForm(h.maxBodyBytes); err != nil {
			return nil, err
		}
		values = r.MultipartForm.Value
	default:
		return nil, fmt.Errorf("unsupported content type %q", mediaType)
	}

	form := make(domain.Submission, len(values))
	for key, vs := range values {
		if len(vs) > 0 {
			form[key] = vs[0]
		}
	}
	return form, nil
}

func (h *Handler) fail(w http.ResponseWriter, log *slog.Logger, err error) {
	status, message := failureResponse(err)
	if status >= http.StatusInternalServerError {
		log.Error("form submission failed", slog.Int("status", status), slog.Any("error", err))
	} else {
		log.Info("form submission rejected", slog.Int("status", status), slog.Any("error", err))
	}
	common.WriteMessage(h.logger, w, status, message)
}

// failureResponse maps a pipeline failure to a status and client message.
// Rejections carry only the stage message; the cause stays in the logs.
func failureResponse(err error) (int, string) {
	var stageErr *application.StageError
	if !errors.As(err, &stageErr) {
		return http.StatusInternalServerError, err.Error()
	}
	if stageErr.Stage.Rejection() {
		return http.StatusBadRequest, stageErr.Message
	}
	return http.StatusInternalServerError, stageErr.Error()
}
