package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sngm3741/form-intake/api/internal/intake/domain"
	"github.com/sngm3741/form-intake/api/pkg/logger"
)

// ServiceConfig defines dependencies required by the submission service.
type ServiceConfig struct {
	Logger      *slog.Logger
	Configs     ConfigRepository
	Submissions SubmissionRepository
	Verifier    BotVerifier
	Mailer      Mailer
	// ConfigName is the configuration record loaded for every request.
	ConfigName string
	// ChallengeSecret enables the bot check when non-empty.
	ChallengeSecret string
	Now             func() time.Time
}

// NewSubmissionService wires the intake pipeline.
func NewSubmissionService(cfg ServiceConfig) SubmissionService {
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &submissionService{
		logger:          log,
		configs:         cfg.Configs,
		submissions:     cfg.Submissions,
		verifier:        cfg.Verifier,
		mailer:          cfg.Mailer,
		configName:      cfg.ConfigName,
		challengeSecret: cfg.ChallengeSecret,
		now:             now,
	}
}

type submissionService struct {
	logger          *slog.Logger
	configs         ConfigRepository
	submissions     SubmissionRepository
	verifier        BotVerifier
	mailer          Mailer
	configName      string
	challengeSecret string
	now             func() time.Time
}

// Submit runs the pipeline strictly in order and stops at the first failing
// stage. The record is stored before any email is sent, so it survives a
// later delivery failure; the admin email is only attempted after the user
// email succeeded.
func (s *submissionService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	log := s.logger.With(slog.String("request_id", req.RequestID))

	if err := s.checkChallenge(ctx, log, req); err != nil {
		return nil, err
	}

	cfg, err := s.configs.Load(ctx, s.configName)
	if err != nil {
		return nil, stageError(StageLoadConfig, fmt.Sprintf("There was a problem getting config (%q)", s.configName), err)
	}

	if result := domain.Validate(cfg, req.Origin.Country, req.Form); !result.Valid {
		log.Info("submission rejected",
			slog.String("gate", string(result.Gate)),
			slog.String("field", result.Field),
			slog.String("rule", result.Rule),
			slog.String("reason", result.Reason),
		)
		return nil, stageError(StageValidate, "Data validation failed", nil)
	}

	receivedAt := req.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}
	key := domain.StorageKey(cfg.Prefix, receivedAt)
	if err := s.submissions.Save(ctx, key, req.Form.Augment(req.Origin)); err != nil {
		return nil, stageError(StagePersist, "There was a problem saving the form data", err)
	}
	log.Info("submission stored", slog.String("key", key))

	creds := cfg.Credentials()
	for _, audience := range []domain.Audience{domain.AudienceUser, domain.AudienceAdmin} {
		if err := s.mailer.Send(ctx, creds, domain.BuildEnvelope(cfg, req.Form, audience)); err != nil {
			log.Error("notification failed",
				slog.String("audience", audience.String()),
				slog.String("key", key),
				slog.Any("error", err),
			)
			return nil, stageError(notifyStage(audience), fmt.Sprintf("There was a problem sending %s email", audience), err)
		}
	}

	return &SubmitResult{Key: key}, nil
}

func notifyStage(audience domain.Audience) Stage {
	if audience == domain.AudienceAdmin {
		return StageNotifyAdmin
	}
	return StageNotifyUser
}

func (s *submissionService) checkChallenge(ctx context.Context, log *slog.Logger, req SubmitRequest) error {
	if s.challengeSecret == "" {
		return nil
	}
	outcome, err := s.verifier.Verify(ctx, s.challengeSecret, req.ChallengeToken, req.Origin.IP)
	if err != nil {
		return stageError(StageBotCheck, "There was a problem verifying the challenge", err)
	}
	if !outcome.Success {
		log.Warn("challenge verification failed", slog.Any("error_codes", outcome.ErrorCodes))
		return stageError(StageBotCheck, "Challenge verification failed", nil)
	}
	return nil
}

func (s *submissionService) Lookup(ctx context.Context, key string) (domain.Submission, error) {
	return s.submissions.Find(ctx, key)
}
