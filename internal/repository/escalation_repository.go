package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
)

// EscalationFilter captures queue listing parameters.
type EscalationFilter struct {
	Statuses   []domain.EscalationStatus
	SectorID   *string
	AssignedTo *string
	Limit      int
	Offset     int
}

// EscalationRepository persists queue items. Transitions are single
// conditional updates; ErrNotFound means the row is missing or the
// predicate no longer held, and callers re-read to tell which.
type EscalationRepository interface {
	// Create inserts a pending item. Returns ErrDuplicate when the conversation
	// already holds an active queue slot.
	Create(ctx context.Context, item *domain.EscalationQueueItem) error
	GetByID(ctx context.Context, id string) (*domain.EscalationQueueItem, error)
	GetActiveByConversation(ctx context.Context, conversationID string) (*domain.EscalationQueueItem, error)
	// List returns items ordered by priority DESC, created_at ASC.
	List(ctx context.Context, filter EscalationFilter) ([]domain.EscalationQueueItem, error)
	Accept(ctx context.Context, id, userID string, at time.Time) (*domain.EscalationQueueItem, error)
	Transfer(ctx context.Context, id, fromUserID, toUserID string, at time.Time) (*domain.EscalationQueueItem, error)
	Resolve(ctx context.Context, id string, notes *string, at time.Time) (*domain.EscalationQueueItem, error)
	Abandon(ctx context.Context, id string, at time.Time) (*domain.EscalationQueueItem, error)
	Expire(ctx context.Context, id string, at time.Time) (*domain.EscalationQueueItem, error)
	// ExpireDue moves every pending item whose expires_at has passed to expired.
	ExpireDue(ctx context.Context, at time.Time) ([]domain.EscalationQueueItem, error)
}

type escalationRepository struct {
	pool *pgxpool.Pool
}

// NewEscalationRepository instantiates the repository.
func NewEscalationRepository(pool *pgxpool.Pool) EscalationRepository {
	return &escalationRepository{pool: pool}
}

const escalationColumns = `id, conversation_id, sector_id, priority, reason, status, assigned_to,
               assigned_at, resolved_at, resolved_by, resolution_notes, metadata,
               created_at, updated_at, expires_at`

func (r *escalationRepository) Create(ctx context.Context, item *domain.EscalationQueueItem) error {
	const query = `
        INSERT INTO escalation_queue (conversation_id, sector_id, priority, reason, status, metadata, expires_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		item.ConversationID,
		item.SectorID,
		item.Priority,
		item.Reason,
		item.Status,
		item.Metadata,
		item.ExpiresAt,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	return translateError(err)
}

func (r *escalationRepository) GetByID(ctx context.Context, id string) (*domain.EscalationQueueItem, error) {
	query := `SELECT ` + escalationColumns + ` FROM escalation_queue WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *escalationRepository) GetActiveByConversation(ctx context.Context, conversationID string) (*domain.EscalationQueueItem, error) {
	query := `SELECT ` + escalationColumns + ` FROM escalation_queue
        WHERE conversation_id=$1 AND status IN ('pending', 'assigned')`
	return r.fetchSingle(ctx, query, conversationID)
}

func (r *escalationRepository) List(ctx context.Context, filter EscalationFilter) ([]domain.EscalationQueueItem, error) {
	base := `SELECT ` + escalationColumns + ` FROM escalation_queue`
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SectorID != nil {
		args = append(args, *filter.SectorID)
		clauses = append(clauses, fmt.Sprintf("sector_id=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY priority DESC, created_at ASC, id ASC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, listError(err)
	}
	defer rows.Close()
	return scanEscalations(rows)
}

func (r *escalationRepository) Accept(ctx context.Context, id, userID string, at time.Time) (*domain.EscalationQueueItem, error) {
	query := `
        UPDATE escalation_queue SET status='assigned', assigned_to=$2, assigned_at=$3, updated_at=$3
        WHERE id=$1 AND status='pending'
        RETURNING ` + escalationColumns
	return r.fetchSingle(ctx, query, id, userID, at)
}

func (r *escalationRepository) Transfer(ctx context.Context, id, fromUserID, toUserID string, at time.Time) (*domain.EscalationQueueItem, error) {
	query := `
        UPDATE escalation_queue SET assigned_to=$3, assigned_at=$4, updated_at=$4
        WHERE id=$1 AND status='assigned' AND assigned_to=$2
        RETURNING ` + escalationColumns
	return r.fetchSingle(ctx, query, id, fromUserID, toUserID, at)
}

func (r *escalationRepository) Resolve(ctx context.Context, id string, notes *string, at time.Time) (*domain.EscalationQueueItem, error) {
	query := `
        UPDATE escalation_queue
        SET status='resolved', resolved_at=$3, resolution_notes=$2,
            resolved_by=assigned_to, assigned_to=NULL, updated_at=$3
        WHERE id=$1 AND status NOT IN ('resolved', 'abandoned')
        RETURNING ` + escalationColumns
	return r.fetchSingle(ctx, query, id, notes, at)
}

func (r *escalationRepository) Abandon(ctx context.Context, id string, at time.Time) (*domain.EscalationQueueItem, error) {
	query := `
        UPDATE escalation_queue SET status='abandoned', resolved_at=$2, updated_at=$2
        WHERE id=$1 AND status='pending'
        RETURNING ` + escalationColumns
	return r.fetchSingle(ctx, query, id, at)
}

func (r *escalationRepository) Expire(ctx context.Context, id string, at time.Time) (*domain.EscalationQueueItem, error) {
	query := `
        UPDATE escalation_queue SET status='expired', resolved_at=$2, updated_at=$2
        WHERE id=$1 AND status='pending' AND expires_at IS NOT NULL AND expires_at <= $2
        RETURNING ` + escalationColumns
	return r.fetchSingle(ctx, query, id, at)
}

func (r *escalationRepository) ExpireDue(ctx context.Context, at time.Time) ([]domain.EscalationQueueItem, error) {
	query := `
        UPDATE escalation_queue SET status='expired', resolved_at=$1, updated_at=$1
        WHERE status='pending' AND expires_at IS NOT NULL AND expires_at <= $1
        RETURNING ` + escalationColumns
	rows, err := r.pool.Query(ctx, query, at)
	if err != nil {
		return nil, listError(err)
	}
	defer rows.Close()
	return scanEscalations(rows)
}

func (r *escalationRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.EscalationQueueItem, error) {
	item, err := scanEscalation(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, translateError(err)
	}
	return item, nil
}

func scanEscalation(row pgx.Row) (*domain.EscalationQueueItem, error) {
	var item domain.EscalationQueueItem
	if err := row.Scan(
		&item.ID,
		&item.ConversationID,
		&item.SectorID,
		&item.Priority,
		&item.Reason,
		&item.Status,
		&item.AssignedTo,
		&item.AssignedAt,
		&item.ResolvedAt,
		&item.ResolvedBy,
		&item.ResolutionNotes,
		&item.Metadata,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.ExpiresAt,
	); err != nil {
		return nil, err
	}
	return &item, nil
}

func scanEscalations(rows pgx.Rows) ([]domain.EscalationQueueItem, error) {
	var result []domain.EscalationQueueItem
	for rows.Next() {
		item, err := scanEscalation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *item)
	}
	return result, rows.Err()
}
