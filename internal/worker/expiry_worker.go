package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-escalation-service/internal/config"
	"github.com/spec-kit/sla-escalation-service/internal/service"
)

// NewExpiryWorker schedules the sweep that expires overdue pending
// escalations. The conditional update makes concurrent sweeps harmless, so no
// lease is taken.
func NewExpiryWorker(cfg config.EscalationConfig, escalations *service.EscalationService, logger *zap.Logger) *Periodic {
	log := logger
	if log == nil {
		log = zap.NewNop()
	}
	return NewPeriodic(Job{
		Name:     "expiry_worker",
		Interval: cfg.ExpirySweep(),
		Run: func(ctx context.Context) error {
			expired, err := escalations.ExpireDue(ctx)
			if err != nil {
				return err
			}
			if len(expired) > 0 {
				log.Info("expired pending escalations", zap.Int("count", len(expired)))
			}
			return nil
		},
	}, nil, "", log)
}
