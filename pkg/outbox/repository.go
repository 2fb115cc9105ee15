package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stmary/giftshop-backend/pkg/db/models"
	"github.com/stmary/giftshop-backend/pkg/enums"
)

// Repository is the relay's view of outbox_events. A row is pending while
// published_at is NULL; dead-lettered rows are closed by setting it too.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Insert writes event through the caller's transaction.
func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errNoTransaction
	}
	return tx.Create(&event).Error
}

func (r *Repository) row(ctx context.Context, id uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.OutboxEvent{}).Where("id = ?", id)
}

// FetchUnpublished returns up to limit pending rows in creation order,
// skipping those that already failed maxAttempts times.
func (r *Repository) FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	q := r.db.WithContext(ctx).Where("published_at IS NULL")
	if maxAttempts > 0 {
		q = q.Where("attempt_count < ?", maxAttempts)
	}
	var rows []models.OutboxEvent
	if err := q.Order("created_at, id").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	return r.row(ctx, id).UpdateColumn("published_at", r.now()).Error
}

// MarkFailed counts one more failed attempt and keeps the latest cause.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	update := map[string]any{"attempt_count": gorm.Expr("attempt_count + 1")}
	if cause != nil {
		update["last_error"] = clipError(cause.Error())
	}
	return r.row(ctx, id).UpdateColumns(update).Error
}

// DeadLetter copies event into outbox_dlq and closes the original row in
// the same transaction.
func (r *Repository) DeadLetter(ctx context.Context, event models.OutboxEvent, reason enums.OutboxDLQReason, cause error) error {
	at := r.now()
	entry := deadLetterFor(event, reason, cause, at)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := NewDLQRepository(tx).InsertTx(tx, entry); err != nil {
			return err
		}
		closed := map[string]any{"published_at": at}
		if entry.ErrorMessage != nil {
			closed["last_error"] = *entry.ErrorMessage
		}
		return tx.Model(&models.OutboxEvent{}).Where("id = ?", event.ID).UpdateColumns(closed).Error
	})
}

// DeletePublishedBefore purges closed rows older than cutoff.
func (r *Repository) DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("published_at IS NOT NULL").
		Where("published_at < ?", cutoff).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}
