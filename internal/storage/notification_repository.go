package storage

import (
	"context"
	"fmt"

	"tokentra/internal/models"
)

// NotificationRepository stores in-app notifications.
type NotificationRepository struct {
	db *DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Insert stores a notification and fills in its ID.
func (r *NotificationRepository) Insert(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (organization_id, type, title, message, priority, data)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.conn.QueryRowxContext(ctx, query,
		n.OrganizationID, n.Type, n.Title, n.Message, n.Priority, n.Data,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListUnread returns an organization's unread notifications, newest
// first.
func (r *NotificationRepository) ListUnread(ctx context.Context, orgID string, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	query := `
		SELECT id, organization_id, type, title, message, priority, data, read_at, created_at
		FROM notifications
		WHERE organization_id = $1 AND read_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2`

	if err := r.db.conn.SelectContext(ctx, &notifications, query, orgID, limit); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead marks a notification as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, orgID, id string) error {
	query := `
		UPDATE notifications SET read_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND read_at IS NULL`

	result, err := r.db.conn.ExecContext(ctx, query, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrEntityNotFound
	}
	return nil
}
