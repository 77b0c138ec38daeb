package model

import "time"

// NotificationKind classifies notifications for clients and sinks.
type NotificationKind string

const (
	NotifyCheckInReminder  NotificationKind = "checkin_reminder"
	NotifyDeadlineReminder NotificationKind = "deadline_reminder"
	NotifyEncouragement    NotificationKind = "encouragement"
	NotifyRemoved          NotificationKind = "member_removed"
	NotifyReaction         NotificationKind = "reaction"
	NotifyComment          NotificationKind = "comment"
)

// Notification is append-only; only IsRead changes after creation.
type Notification struct {
	ID          uint             `gorm:"primaryKey"`
	RecipientID uint             `gorm:"not null;index:idx_notification_recipient,priority:1"`
	Kind        NotificationKind `gorm:"size:32;not null"`
	Message     string           `gorm:"type:text;not null"`
	Link        string
	IsRead      bool      `gorm:"not null;default:false;index:idx_notification_recipient,priority:2"`
	CreatedAt   time.Time `gorm:"index"`
}

// DeadlineReminderLog suppresses repeat deadline reminders for the same
// (member, task, day).
type DeadlineReminderLog struct {
	ID        uint   `gorm:"primaryKey"`
	MemberID  uint   `gorm:"not null;uniqueIndex:idx_deadline_reminder,priority:1"`
	TaskID    uint   `gorm:"not null;uniqueIndex:idx_deadline_reminder,priority:2"`
	Day       string `gorm:"size:10;not null;uniqueIndex:idx_deadline_reminder,priority:3"`
	CreatedAt time.Time
}
