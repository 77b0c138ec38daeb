package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"planpact/internal/model"
)

// NotificationRepository persists notifications and reminder suppression logs.
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListForUser returns the newest notifications first.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]model.Notification, error) {
	q := r.db.WithContext(ctx).Where("recipient_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var items []model.Notification
	if err := q.Order("created_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

// MarkRead flips the read flag of the user's notification. It returns
// gorm.ErrRecordNotFound when the notification is not the user's.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID uint) error {
	res := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ? AND recipient_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return fmt.Errorf("mark notification read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ClaimDeadlineReminder records the (member, task, day) reminder and
// reports whether this caller is the first to do so.
func (r *NotificationRepository) ClaimDeadlineReminder(ctx context.Context, memberID, taskID uint, day string) (bool, error) {
	entry := model.DeadlineReminderLog{MemberID: memberID, TaskID: taskID, Day: day}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
	if res.Error != nil {
		return false, fmt.Errorf("claim deadline reminder: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
