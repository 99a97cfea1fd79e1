package application

import (
	"context"
	"errors"
	"time"

	"github.com/sngm3741/form-intake/api/internal/intake/domain"
)

var (
	// ErrConfigNotFound is returned when no configuration record exists under the requested name.
	ErrConfigNotFound = errors.New("form configuration not found")
	// ErrSubmissionNotFound is returned when no submission is stored under a key.
	ErrSubmissionNotFound = errors.New("submission not found")
)

// ConfigRepository loads named form configurations.
// ConfigRepository はフォーム設定を名前で取得するポート。
type ConfigRepository interface {
	Load(ctx context.Context, name string) (domain.FormConfig, error)
}

// SubmissionRepository persists raw submissions under time-ordered keys.
type SubmissionRepository interface {
	Save(ctx context.Context, key string, record domain.Submission) error
	Find(ctx context.Context, key string) (domain.Submission, error)
}

// BotVerifier checks a challenge token with the verification provider.
type BotVerifier interface {
	Verify(ctx context.Context, secret, token, remoteIP string) (domain.Challenge, error)
}

// Mailer hands one envelope to the email provider.
type Mailer interface {
	Send(ctx context.Context, creds domain.MailCredentials, envelope domain.Envelope) error
}

// SubmitRequest captures one intake request after form parsing.
type SubmitRequest struct {
	Form           domain.Submission
	Origin         domain.Origin
	ChallengeToken string
	ReceivedAt     time.Time
	RequestID      string
}

// SubmitResult reports where the submission was stored.
type SubmitResult struct {
	Key string
}

// SubmissionService is the intake use-case: bot check, config load,
// validation, persistence and both notifications.
// SubmissionService はフォーム受付のユースケースを提供する。
type SubmissionService interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
	Lookup(ctx context.Context, key string) (domain.Submission, error)
}
