package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
)

// NotificationFilter captures recipient listing parameters.
type NotificationFilter struct {
	IncludeRead      bool
	IncludeDismissed bool
	Limit            int
	Offset           int
}

// NotificationRepository stores escalation notifications. Only the
// recipient-side timestamps change after insert.
type NotificationRepository interface {
	// Upsert writes the (escalation, user, type) row; an existing row is
	// re-armed so the recipient sees it again.
	Upsert(ctx context.Context, n *domain.EscalationNotification) error
	ListByUser(ctx context.Context, userID string, filter NotificationFilter) ([]domain.EscalationNotification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string, at time.Time) error
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error)
	Dismiss(ctx context.Context, userID, id string, at time.Time) error
	DismissAll(ctx context.Context, userID string, at time.Time) (int64, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository instantiates the repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Upsert(ctx context.Context, n *domain.EscalationNotification) error {
	const query = `
        INSERT INTO escalation_notifications (escalation_id, user_id, notification_type)
        VALUES ($1,$2,$3)
        ON CONFLICT (escalation_id, user_id, notification_type) DO UPDATE
            SET read_at=NULL, dismissed_at=NULL, created_at=NOW()
        RETURNING id, read_at, dismissed_at, created_at`
	err := r.pool.QueryRow(ctx, query,
		n.EscalationID,
		n.UserID,
		n.NotificationType,
	).Scan(&n.ID, &n.ReadAt, &n.DismissedAt, &n.CreatedAt)
	return translateError(err)
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, filter NotificationFilter) ([]domain.EscalationNotification, error) {
	clauses := []string{"user_id=$1"}
	if !filter.IncludeRead {
		clauses = append(clauses, "read_at IS NULL")
	}
	if !filter.IncludeDismissed {
		clauses = append(clauses, "dismissed_at IS NULL")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`
        SELECT id, escalation_id, user_id, notification_type, read_at, dismissed_at, created_at
        FROM escalation_notifications WHERE %s
        ORDER BY created_at DESC LIMIT %d OFFSET %d`, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, listError(err)
	}
	defer rows.Close()

	var result []domain.EscalationNotification
	for rows.Next() {
		var n domain.EscalationNotification
		if err := rows.Scan(&n.ID, &n.EscalationID, &n.UserID, &n.NotificationType, &n.ReadAt, &n.DismissedAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM escalation_notifications
        WHERE user_id=$1 AND read_at IS NULL AND dismissed_at IS NULL`
	var count int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, translateError(err)
	}
	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, id string, at time.Time) error {
	const query = `
        UPDATE escalation_notifications SET read_at=COALESCE(read_at, $3)
        WHERE id=$1 AND user_id=$2`
	return r.execOne(ctx, query, id, userID, at)
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	const query = `
        UPDATE escalation_notifications SET read_at=$2
        WHERE user_id=$1 AND read_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, userID, at)
	if err != nil {
		return 0, translateError(err)
	}
	return cmd.RowsAffected(), nil
}

func (r *notificationRepository) Dismiss(ctx context.Context, userID, id string, at time.Time) error {
	const query = `
        UPDATE escalation_notifications SET dismissed_at=COALESCE(dismissed_at, $3)
        WHERE id=$1 AND user_id=$2`
	return r.execOne(ctx, query, id, userID, at)
}

func (r *notificationRepository) DismissAll(ctx context.Context, userID string, at time.Time) (int64, error) {
	const query = `
        UPDATE escalation_notifications SET dismissed_at=$2
        WHERE user_id=$1 AND dismissed_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, userID, at)
	if err != nil {
		return 0, translateError(err)
	}
	return cmd.RowsAffected(), nil
}

func (r *notificationRepository) execOne(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return translateError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
