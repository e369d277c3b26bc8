package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/events"
	"github.com/spec-kit/sla-escalation-service/internal/observability"
	"github.com/spec-kit/sla-escalation-service/internal/repository"
)

// ScanSummary reports one scanner pass. ViolationsFound counts rows written
// by this pass.
type ScanSummary struct {
	TicketsChecked  int           `json:"tickets_checked"`
	ViolationsFound int           `json:"violations_found"`
	TicketsStamped  int           `json:"tickets_stamped"`
	TicketsSkipped  int           `json:"tickets_skipped"`
	Errors          int           `json:"errors"`
	ScannedAt       time.Time     `json:"scanned_at"`
	Duration        time.Duration `json:"duration"`
}

// SLAScanner detects deadline breaches on active tickets.
type SLAScanner struct {
	tickets    repository.TicketRepository
	violations repository.SLAViolationRepository
	configs    repository.SLAConfigRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time

	mu   sync.Mutex
	last *ScanSummary
}

// SLAScannerDependencies bundles scanner collaborators.
type SLAScannerDependencies struct {
	TicketRepo    repository.TicketRepository
	ViolationRepo repository.SLAViolationRepository
	ConfigRepo    repository.SLAConfigRepository
	Dispatcher    events.Dispatcher
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	Now           func() time.Time
}

// NewSLAScanner creates the scanner.
func NewSLAScanner(deps SLAScannerDependencies) *SLAScanner {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLAScanner{
		tickets:    deps.TicketRepo,
		violations: deps.ViolationRepo,
		configs:    deps.ConfigRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger.Named("sla_scanner"),
		now:        defaultClock(deps.Now),
	}
}

// Scan runs one pass. The reference time is taken before tickets are
// selected, so every selected ticket was still active at that instant. A
// failure on one ticket is counted and logged; the pass moves on. An error is
// returned only when the pass could not start or was cancelled.
func (s *SLAScanner) Scan(ctx context.Context) (ScanSummary, error) {
	started := time.Now()
	summary := ScanSummary{ScannedAt: s.now()}
	err := s.scan(ctx, summary.ScannedAt, &summary)
	summary.Duration = time.Since(started)
	s.metrics.ObserveScan(summary.Duration, summary.TicketsChecked, summary.Errors, err)
	if err == nil {
		s.mu.Lock()
		s.last = &summary
		s.mu.Unlock()
	}

	fields := []zap.Field{
		zap.Int("tickets_checked", summary.TicketsChecked),
		zap.Int("violations_found", summary.ViolationsFound),
		zap.Int("tickets_stamped", summary.TicketsStamped),
		zap.Int("tickets_skipped", summary.TicketsSkipped),
		zap.Int("errors", summary.Errors),
		zap.Duration("duration", summary.Duration),
	}
	if err != nil {
		s.logger.Error("sla scan failed", append(fields, zap.Error(err))...)
		return summary, err
	}
	if summary.ViolationsFound > 0 || summary.Errors > 0 {
		s.logger.Info("sla scan completed", fields...)
	} else {
		s.logger.Debug("sla scan completed", fields...)
	}
	return summary, nil
}

// LastScan returns the summary of the most recent completed pass in this
// process. Passes skipped because another replica held the lease are not seen here.
func (s *SLAScanner) LastScan() (ScanSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return ScanSummary{}, false
	}
	return *s.last, true
}

func (s *SLAScanner) scan(ctx context.Context, now time.Time, summary *ScanSummary) error {
	rows, err := s.configs.List(ctx)
	if err != nil {
		return fmt.Errorf("load sla configs: %w", err)
	}
	configs := domain.NewSLAConfigSet(rows)

	tickets, err := s.tickets.ListUnviolatedActive(ctx)
	if err != nil {
		return fmt.Errorf("select tickets: %w", err)
	}

	for i := range tickets {
		if err := ctx.Err(); err != nil {
			return err
		}
		summary.TicketsChecked++
		s.checkTicket(ctx, configs, &tickets[i], now, summary)
	}
	return nil
}

func (s *SLAScanner) checkTicket(ctx context.Context, configs domain.SLAConfigSet, ticket *domain.Ticket, now time.Time, summary *ScanSummary) {
	cfg, ok := configs.Resolve(ticket.Priority)
	if !ok {
		summary.TicketsSkipped++
		s.logger.Warn("no sla config resolves for ticket priority; skipping",
			zap.String("ticket_id", ticket.ID),
			zap.String("priority", string(ticket.Priority)),
		)
		return
	}

	fired := false
	failed := false
	check := func(violationType domain.ViolationType, expected time.Time) {
		if !now.After(expected) {
			return
		}
		fired = true
		if err := s.record(ctx, ticket, violationType, expected, now, summary); err != nil {
			failed = true
			summary.Errors++
			s.logger.Error("failed to record sla violation",
				zap.String("ticket_id", ticket.ID),
				zap.String("violation_type", string(violationType)),
				zap.Error(err),
			)
		}
	}

	if ticket.FirstResponseAt == nil {
		check(domain.ViolationFirstResponse, cfg.FirstResponseDeadline(ticket.CreatedAt))
	}
	check(domain.ViolationResolution, cfg.ResolutionDeadline(ticket.CreatedAt))

	// A ticket whose violation rows are incomplete stays unstamped so the
	// next pass retries; inserts are idempotent per type.
	if !fired || failed {
		return
	}
	stamped, err := s.tickets.StampViolation(ctx, ticket.ID, now)
	if err != nil {
		summary.Errors++
		s.logger.Error("failed to stamp sla violation", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return
	}
	if stamped {
		summary.TicketsStamped++
		return
	}
	s.logger.Info("ticket left the active set during scan; stamp skipped", zap.String("ticket_id", ticket.ID))
}

func (s *SLAScanner) record(ctx context.Context, ticket *domain.Ticket, violationType domain.ViolationType, expected, now time.Time, summary *ScanSummary) error {
	violation := &domain.SLAViolation{
		TicketID:      ticket.ID,
		ViolationType: violationType,
		ExpectedAt:    expected,
		ViolatedAt:    now,
	}
	created, err := s.violations.Create(ctx, violation)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	summary.ViolationsFound++
	s.metrics.RecordViolation(string(violationType))
	s.logger.Info("sla violation recorded",
		zap.String("ticket_id", ticket.ID),
		zap.String("conversation_id", ticket.ConversationID),
		zap.String("violation_type", string(violationType)),
		zap.Time("expected_at", expected),
	)
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.New(events.EventViolationRecorded, ticket.ConversationID, ticket.ID, events.SystemActor, now, events.ViolationRecordedPayload{
			ViolationID:   violation.ID,
			ViolationType: violationType,
			ExpectedAt:    expected,
			ViolatedAt:    now,
		}))
	}
	return nil
}
