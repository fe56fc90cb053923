package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	radiator "statusboard/internal/radiator/domain"
)

// DocumentKey is the store key of the layout document.
const DocumentKey = "radiator"

// ErrNotConfigured is returned when no layout has been stored yet.
var ErrNotConfigured = errors.New("radiator: not configured")

// DocumentStore persists raw JSON documents by key.
type DocumentStore interface {
	GetDocument(ctx context.Context, key string) ([]byte, bool, error)
	PutDocument(ctx context.Context, key string, doc []byte) error
}

// Service reads and writes the dashboard layout.
type Service struct {
	store  DocumentStore
	logger logrus.FieldLogger
}

// NewService constructs a layout service.
func NewService(store DocumentStore, logger logrus.FieldLogger) (*Service, error) {
	if store == nil {
		return nil, errors.New("radiator service: nil store")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{store: store, logger: logger}, nil
}

// GetConfiguration returns the stored layout.
func (s *Service) GetConfiguration(ctx context.Context) (radiator.Configuration, error) {
	raw, ok, err := s.store.GetDocument(ctx, DocumentKey)
	if err != nil {
		return radiator.Configuration{}, fmt.Errorf("radiator service: load: %w", err)
	}
	if !ok {
		return radiator.Configuration{}, ErrNotConfigured
	}
	var cfg radiator.Configuration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return radiator.Configuration{}, fmt.Errorf("radiator service: decode: %w", err)
	}
	return cfg, nil
}

// SetConfiguration validates and replaces the stored layout.
func (s *Service) SetConfiguration(ctx context.Context, cfg radiator.Configuration) error {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("radiator service: encode: %w", err)
	}
	if err := s.store.PutDocument(ctx, DocumentKey, raw); err != nil {
		return fmt.Errorf("radiator service: save: %w", err)
	}
	return nil
}

// EnsureDefault stores fallback unless a layout already exists.
// It reports whether fallback was written.
func (s *Service) EnsureDefault(ctx context.Context, fallback radiator.Configuration) (bool, error) {
	_, err := s.GetConfiguration(ctx)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, ErrNotConfigured):
		return false, err
	}
	if err := s.SetConfiguration(ctx, fallback); err != nil {
		return false, err
	}
	s.logger.WithField("pages", len(fallback.Pages)).Info("radiator: stored default configuration")
	return true, nil
}
