package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sngm3741/form-intake/api/internal/intake/application"
	"github.com/sngm3741/form-intake/api/internal/intake/domain"
)

// SubmissionRepository stores submissions as flat JSON string maps.
type SubmissionRepository struct {
	store Store
}

func NewSubmissionRepository(store Store) *SubmissionRepository {
	return &SubmissionRepository{store: store}
}

func (r *SubmissionRepository) Save(ctx context.Context, key string, record domain.Submission) error {
	payload, err := json.Marshal(map[string]string(record))
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	if err := r.store.Put(ctx, key, payload); err != nil {
		return fmt.Errorf("put submission %s: %w", key, err)
	}
	return nil
}

func (r *SubmissionRepository) Find(ctx context.Context, key string) (domain.Submission, error) {
	raw, err := r.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", application.ErrSubmissionNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("get submission %s: %w", key, err)
	}
	var record map[string]string
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("unmarshal submission %s: %w", key, err)
	}
	return domain.Submission(record), nil
}
