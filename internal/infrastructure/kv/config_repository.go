package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sngm3741/form-intake/api/internal/intake/application"
	"github.com/sngm3741/form-intake/api/internal/intake/domain"
)

// ConfigRepository reads JSON form configurations from a Store. Nothing is
// cached: every Load hits the store.
type ConfigRepository struct {
	store Store
}

func NewConfigRepository(store Store) *ConfigRepository {
	return &ConfigRepository{store: store}
}

// Load fetches and normalizes the configuration stored under name.
func (r *ConfigRepository) Load(ctx context.Context, name string) (domain.FormConfig, error) {
	if strings.TrimSpace(name) == "" {
		return domain.FormConfig{}, fmt.Errorf("%w: configuration name is empty", application.ErrConfigNotFound)
	}
	raw, err := r.store.Get(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return domain.FormConfig{}, fmt.Errorf("%w: %s", application.ErrConfigNotFound, name)
	}
	if err != nil {
		return domain.FormConfig{}, fmt.Errorf("get config %s: %w", name, err)
	}
	// A JSON null record is treated as an absent configuration.
	if string(bytes.TrimSpace(raw)) == "null" {
		return domain.FormConfig{}, fmt.Errorf("%w: %s is null", application.ErrConfigNotFound, name)
	}
	return domain.ParseFormConfig(raw)
}

// Save validates raw as a form configuration and stores it unchanged under name.
func (r *ConfigRepository) Save(ctx context.Context, name string, raw []byte) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("configuration name is required")
	}
	if _, err := domain.ParseFormConfig(raw); err != nil {
		return err
	}
	if err := r.store.Put(ctx, name, raw); err != nil {
		return fmt.Errorf("put config %s: %w", name, err)
	}
	return nil
}
