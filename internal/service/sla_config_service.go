package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/repository"
	apperrors "github.com/spec-kit/sla-escalation-service/pkg/util/errorutil"
)

// SLAConfigService manages per-priority deadline configuration.
type SLAConfigService struct {
	configs repository.SLAConfigRepository
	logger  *zap.Logger
}

// NewSLAConfigService creates the service.
func NewSLAConfigService(configs repository.SLAConfigRepository, logger *zap.Logger) *SLAConfigService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLAConfigService{configs: configs, logger: logger.Named("sla_config")}
}

// Get returns the configuration stored for exactly priority.
func (s *SLAConfigService) Get(ctx context.Context, priority domain.TicketPriority) (*domain.SLAConfig, error) {
	if !priority.Valid() {
		return nil, invalidPriority(priority)
	}
	cfg, err := s.configs.Get(ctx, priority)
	if err != nil {
		return nil, mapRepoError(err, "sla config", map[string]any{"priority": priority})
	}
	return cfg, nil
}

// Resolve returns the configuration deadline math should use for priority:
// the exact row, else the medium row.
func (s *SLAConfigService) Resolve(ctx context.Context, priority domain.TicketPriority) (*domain.SLAConfig, error) {
	if !priority.Valid() {
		return nil, invalidPriority(priority)
	}
	cfg, err := s.configs.Get(ctx, priority)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.MapError(err)
	}
	if priority != domain.FallbackPriority {
		cfg, err = s.configs.Get(ctx, domain.FallbackPriority)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.MapError(err)
		}
	}
	return nil, apperrors.NewNotFound("sla config", map[string]any{
		"priority": priority,
		"fallback": domain.FallbackPriority,
	})
}

// List returns all configuration rows.
func (s *SLAConfigService) List(ctx context.Context) ([]domain.SLAConfig, error) {
	configs, err := s.configs.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return configs, nil
}

// Upsert creates or replaces the row for priority. Tickets in flight pick the
// new deadlines up on the next scan.
func (s *SLAConfigService) Upsert(ctx context.Context, priority domain.TicketPriority, firstResponseMinutes, resolutionMinutes int) (*domain.SLAConfig, error) {
	cfg := &domain.SLAConfig{
		Priority:             priority,
		FirstResponseMinutes: firstResponseMinutes,
		ResolutionMinutes:    resolutionMinutes,
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), map[string]any{"priority": priority})
	}
	if err := s.configs.Upsert(ctx, cfg); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("sla config saved",
		zap.String("priority", string(priority)),
		zap.Int("first_response_minutes", firstResponseMinutes),
		zap.Int("resolution_minutes", resolutionMinutes),
	)
	return cfg, nil
}

// Delete removes the row for priority.
func (s *SLAConfigService) Delete(ctx context.Context, priority domain.TicketPriority) error {
	if !priority.Valid() {
		return invalidPriority(priority)
	}
	if err := s.configs.Delete(ctx, priority); err != nil {
		return mapRepoError(err, "sla config", map[string]any{"priority": priority})
	}
	s.logger.Info("sla config deleted", zap.String("priority", string(priority)))
	return nil
}

func invalidPriority(priority domain.TicketPriority) error {
	return apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
}
