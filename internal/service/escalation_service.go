package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/events"
	"github.com/spec-kit/sla-escalation-service/internal/observability"
	"github.com/spec-kit/sla-escalation-service/internal/repository"
	apperrors "github.com/spec-kit/sla-escalation-service/pkg/util/errorutil"
)

// EscalationService operates the human-agent queue. Every transition is one
// conditional write; a failed write is re-read only to explain the failure.
type EscalationService struct {
	escalations repository.EscalationRepository
	assignments repository.ConversationAssignmentRepository
	staff       repository.StaffRepository
	notifier    Notifier
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         func() time.Time
	defaultTTL  time.Duration
	// onDutyPage is the staff page size used when fanning out new items.
	onDutyPage int
}

const defaultOnDutyPage = 500

// EscalationDependencies bundles collaborators.
type EscalationDependencies struct {
	EscalationRepo repository.EscalationRepository
	AssignmentRepo repository.ConversationAssignmentRepository
	StaffRepo      repository.StaffRepository
	Notifier       Notifier
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	Now            func() time.Time
	// DefaultTTL bounds how long an item may stay pending when the caller
	// gives no expiry. Zero disables the default.
	DefaultTTL time.Duration
}

// EnqueueInput describes a conversation handed to the queue.
type EnqueueInput struct {
	ConversationID string
	Priority       int
	Reason         string
	SectorID       *string
	ExpiresAt      *time.Time
	TTL            time.Duration
	Metadata       map[string]any
}

// EscalationListFilter selects queue items.
type EscalationListFilter struct {
	Statuses   []domain.EscalationStatus
	SectorID   *string
	AssignedTo *string
	Limit      int
	Offset     int
}

// NewEscalationService creates the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EscalationService{
		escalations: deps.EscalationRepo,
		assignments: deps.AssignmentRepo,
		staff:       deps.StaffRepo,
		notifier:    deps.Notifier,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      logger.Named("escalations"),
		now:         defaultClock(deps.Now),
		defaultTTL:  deps.DefaultTTL,
		onDutyPage:  defaultOnDutyPage,
	}
}

// Enqueue adds a pending item and notifies the sector's on-duty agents.
func (s *EscalationService) Enqueue(ctx context.Context, actor events.Actor, input EnqueueInput) (*domain.EscalationQueueItem, error) {
	if strings.TrimSpace(input.ConversationID) == "" {
		return nil, apperrors.NewValidationError("conversation_id is required", nil)
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, apperrors.NewValidationError("reason is required", nil)
	}
	if input.TTL < 0 {
		return nil, apperrors.NewValidationError("ttl must not be negative", nil)
	}

	now := s.now()
	expiresAt := input.ExpiresAt
	switch {
	case expiresAt != nil:
		if !expiresAt.After(now) {
			return nil, apperrors.NewValidationError("expires_at must be in the future", nil)
		}
	case input.TTL > 0:
		at := now.Add(input.TTL)
		expiresAt = &at
	case s.defaultTTL > 0:
		at := now.Add(s.defaultTTL)
		expiresAt = &at
	}

	if existing, err := s.escalations.GetActiveByConversation(ctx, input.ConversationID); err == nil {
		return nil, activeEscalationConflict(input.ConversationID, existing.ID)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.MapError(err)
	}

	item := &domain.EscalationQueueItem{
		ConversationID: input.ConversationID,
		SectorID:       input.SectorID,
		Priority:       input.Priority,
		Reason:         input.Reason,
		Status:         domain.EscalationStatusPending,
		Metadata:       input.Metadata,
		ExpiresAt:      expiresAt,
	}
	if err := s.escalations.Create(ctx, item); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, activeEscalationConflict(input.ConversationID, "")
		}
		return nil, apperrors.MapError(err)
	}

	s.metrics.RecordEscalationTransition(string(domain.EscalationStatusPending))
	s.logger.Info("escalation enqueued",
		zap.String("escalation_id", item.ID),
		zap.String("conversation_id", item.ConversationID),
		zap.Int("priority", item.Priority),
	)
	s.publish(ctx, events.EventEscalationEnqueued, item, actor, nil)
	s.notifyOnDuty(ctx, item)
	return item, nil
}

// Accept assigns a pending item to userID. Exactly one of any number of
// concurrent callers wins; the others get ALREADY_ASSIGNED.
func (s *EscalationService) Accept(ctx context.Context, itemID, userID string) (*domain.EscalationQueueItem, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.NewValidationError("user id is required", nil)
	}
	item, err := s.escalations.Accept(ctx, itemID, userID, s.now())
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.MapError(err)
		}
		current, loadErr := s.load(ctx, itemID)
		if loadErr != nil {
			return nil, loadErr
		}
		s.metrics.RecordAcceptConflict()
		return nil, apperrors.NewAlreadyAssigned(map[string]any{
			"escalation_id": itemID,
			"status":        current.Status,
		})
	}

	s.metrics.RecordEscalationTransition(string(domain.EscalationStatusAssigned))
	s.logger.Info("escalation accepted",
		zap.String("escalation_id", item.ID),
		zap.String("conversation_id", item.ConversationID),
		zap.String("user_id", userID),
	)
	s.propagateAssignment(ctx, item, item.AssignedTo)
	s.publish(ctx, events.EventEscalationAssigned, item, staffActor(userID), nil)
	return item, nil
}

// Transfer hands an assigned item from fromUserID to toUserID and notifies
// the new holder.
func (s *EscalationService) Transfer(ctx context.Context, actor events.Actor, itemID, fromUserID, toUserID string) (*domain.EscalationQueueItem, error) {
	if strings.TrimSpace(toUserID) == "" {
		return nil, apperrors.NewValidationError("to_user_id is required", nil)
	}
	if fromUserID == toUserID {
		return nil, apperrors.NewValidationError("escalation is already held by that user", map[string]any{"user_id": toUserID})
	}
	target, err := s.staff.GetByID(ctx, toUserID)
	if err != nil {
		return nil, mapRepoError(err, "staff", map[string]any{"staff_id": toUserID})
	}
	if !target.Active {
		return nil, apperrors.NewValidationError("target staff is inactive", map[string]any{"staff_id": toUserID})
	}

	item, err := s.escalations.Transfer(ctx, itemID, fromUserID, toUserID, s.now())
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.MapError(err)
		}
		current, loadErr := s.load(ctx, itemID)
		if loadErr != nil {
			return nil, loadErr
		}
		if current.Status != domain.EscalationStatusAssigned {
			return nil, invalidTransition(current, "transfer")
		}
		return nil, apperrors.NewInvalidState("escalation is held by another user", map[string]any{
			"escalation_id": itemID,
			"from_user_id":  fromUserID,
		})
	}

	s.metrics.RecordEscalationTransition("transferred")
	s.logger.Info("escalation transferred",
		zap.String("escalation_id", item.ID),
		zap.String("from_user_id", fromUserID),
		zap.String("to_user_id", toUserID),
	)
	s.propagateAssignment(ctx, item, item.AssignedTo)
	s.publish(ctx, events.EventEscalationTransferred, item, actor, &fromUserID)
	s.notify(ctx, item.ID, toUserID, domain.NotificationReassignment)
	return item, nil
}

// Resolve closes an item from any state except resolved or abandoned.
func (s *EscalationService) Resolve(ctx context.Context, actor events.Actor, itemID string, notes *string) (*domain.EscalationQueueItem, error) {
	item, err := s.escalations.Resolve(ctx, itemID, notes, s.now())
	if err != nil {
		return nil, s.explainFailure(ctx, err, itemID, "resolve")
	}
	s.finish(ctx, item, events.EventEscalationResolved, actor)
	return item, nil
}

// Abandon drops a pending item whose requester disengaged.
func (s *EscalationService) Abandon(ctx context.Context, actor events.Actor, itemID string) (*domain.EscalationQueueItem, error) {
	item, err := s.escalations.Abandon(ctx, itemID, s.now())
	if err != nil {
		return nil, s.explainFailure(ctx, err, itemID, "abandon")
	}
	s.finish(ctx, item, events.EventEscalationAbandoned, actor)
	return item, nil
}

// Expire moves a pending item past its expiry to expired.
func (s *EscalationService) Expire(ctx context.Context, actor events.Actor, itemID string) (*domain.EscalationQueueItem, error) {
	item, err := s.escalations.Expire(ctx, itemID, s.now())
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.MapError(err)
		}
		current, loadErr := s.load(ctx, itemID)
		if loadErr != nil {
			return nil, loadErr
		}
		if current.Status == domain.EscalationStatusPending {
			return nil, apperrors.NewInvalidState("escalation has not expired", map[string]any{
				"escalation_id": itemID,
				"expires_at":    current.ExpiresAt,
			})
		}
		return nil, invalidTransition(current, "expire")
	}
	s.finish(ctx, item, events.EventEscalationExpired, actor)
	return item, nil
}

// ExpireDue expires every overdue pending item and returns them.
func (s *EscalationService) ExpireDue(ctx context.Context) ([]domain.EscalationQueueItem, error) {
	items, err := s.escalations.ExpireDue(ctx, s.now())
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.metrics.RecordExpired(len(items))
	for i := range items {
		s.finish(ctx, &items[i], events.EventEscalationExpired, events.SystemActor)
	}
	return items, nil
}

// Get returns one item.
func (s *EscalationService) Get(ctx context.Context, itemID string) (*domain.EscalationQueueItem, error) {
	return s.load(ctx, itemID)
}

// List returns items in queue order: priority descending, oldest first.
func (s *EscalationService) List(ctx context.Context, filter EscalationListFilter) ([]domain.EscalationQueueItem, error) {
	items, err := s.escalations.List(ctx, repository.EscalationFilter{
		Statuses:   filter.Statuses,
		SectorID:   filter.SectorID,
		AssignedTo: filter.AssignedTo,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

func (s *EscalationService) finish(ctx context.Context, item *domain.EscalationQueueItem, eventType events.EventType, actor events.Actor) {
	s.metrics.RecordEscalationTransition(string(item.Status))
	s.logger.Info("escalation closed",
		zap.String("escalation_id", item.ID),
		zap.String("conversation_id", item.ConversationID),
		zap.String("status", string(item.Status)),
	)
	s.propagateAssignment(ctx, item, nil)
	s.publish(ctx, eventType, item, actor, item.ResolvedBy)
}

func (s *EscalationService) explainFailure(ctx context.Context, err error, itemID, action string) error {
	if !errors.Is(err, repository.ErrNotFound) {
		return apperrors.MapError(err)
	}
	current, loadErr := s.load(ctx, itemID)
	if loadErr != nil {
		return loadErr
	}
	return invalidTransition(current, action)
}

// propagateAssignment updates the conversation's owner. The queue item is
// authoritative; a failed projection write is logged.
func (s *EscalationService) propagateAssignment(ctx context.Context, item *domain.EscalationQueueItem, agentID *string) {
	if s.assignments == nil {
		return
	}
	assignment := &domain.ConversationAssignment{
		ConversationID: item.ConversationID,
		AgentID:        agentID,
		UpdatedAt:      s.now(),
	}
	if agentID != nil {
		assignment.EscalationID = &item.ID
	}
	if err := s.assignments.Set(ctx, assignment); err != nil {
		s.logger.Error("failed to propagate conversation assignment",
			zap.String("escalation_id", item.ID),
			zap.String("conversation_id", item.ConversationID),
			zap.Error(err),
		)
	}
}

func (s *EscalationService) notifyOnDuty(ctx context.Context, item *domain.EscalationQueueItem) {
	if s.staff == nil {
		return
	}
	filter := repository.StaffFilter{
		SectorID: item.SectorID,
		OnDuty:   ptrBool(true),
		Active:   ptrBool(true),
		Limit:    s.onDutyPage,
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultOnDutyPage
	}
	notified := 0
	for {
		agents, err := s.staff.List(ctx, filter)
		if err != nil {
			s.logger.Error("failed to load on-duty agents",
				zap.String("escalation_id", item.ID),
				zap.Int("notified", notified),
				zap.Error(err),
			)
			return
		}
		for _, agent := range agents {
			s.notify(ctx, item.ID, agent.ID, domain.NotificationNewEscalation)
		}
		notified += len(agents)
		if len(agents) < filter.Limit {
			break
		}
		filter.Offset += filter.Limit
	}
	s.logger.Debug("on-duty agents notified", zap.String("escalation_id", item.ID), zap.Int("agents", notified))
}

func (s *EscalationService) notify(ctx context.Context, escalationID, userID string, notificationType domain.NotificationType) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, escalationID, userID, notificationType); err != nil {
		s.logger.Warn("notification not delivered",
			zap.String("escalation_id", escalationID),
			zap.String("user_id", userID),
			zap.String("type", string(notificationType)),
			zap.Error(err),
		)
	}
}

func (s *EscalationService) publish(ctx context.Context, eventType events.EventType, item *domain.EscalationQueueItem, actor events.Actor, previousHolder *string) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.New(eventType, item.ConversationID, item.ID, actor, s.now(), events.EscalationPayload{
		Status:         item.Status,
		Priority:       item.Priority,
		SectorID:       item.SectorID,
		AssignedTo:     item.AssignedTo,
		PreviousHolder: previousHolder,
	}))
}

func (s *EscalationService) load(ctx context.Context, itemID string) (*domain.EscalationQueueItem, error) {
	item, err := s.escalations.GetByID(ctx, itemID)
	if err != nil {
		return nil, mapRepoError(err, "escalation", map[string]any{"escalation_id": itemID})
	}
	return item, nil
}

func invalidTransition(item *domain.EscalationQueueItem, action string) error {
	return apperrors.NewInvalidState("escalation cannot "+action+" from its current status", map[string]any{
		"escalation_id": item.ID,
		"status":        item.Status,
	})
}

func activeEscalationConflict(conversationID, existingID string) error {
	details := map[string]any{"conversation_id": conversationID}
	if existingID != "" {
		details["active_escalation_id"] = existingID
	}
	return apperrors.NewConflict("conversation already has an active escalation", details)
}

func staffActor(staffID string) events.Actor {
	return events.Actor{Type: domain.SubjectTypeStaff, StaffID: &staffID}
}
