package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-escalation-service/internal/config"
	"github.com/spec-kit/sla-escalation-service/internal/observability"
	"github.com/spec-kit/sla-escalation-service/internal/service"
)

// SLAScanLockKey is the lease key shared by scanner replicas.
const SLAScanLockKey = "sla:scanner:lock"

// NewSLAWorker schedules scanner passes.
func NewSLAWorker(cfg config.SLAConfig, scanner *service.SLAScanner, locker Locker, owner string, metrics *observability.Metrics, logger *zap.Logger) *Periodic {
	return NewPeriodic(Job{
		Name:     "sla_worker",
		Interval: cfg.ScanInterval(),
		LockKey:  SLAScanLockKey,
		LockTTL:  cfg.LockTTL(),
		OnSkip:   metrics.RecordScanSkipped,
		Run: func(ctx context.Context) error {
			_, err := scanner.Scan(ctx)
			return err
		},
	}, locker, owner, logger)
}
