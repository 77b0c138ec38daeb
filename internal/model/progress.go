package model

import (
	"time"

	"gorm.io/datatypes"
)

// DailyProgress summarises one member's progress on one plan day.
type DailyProgress struct {
	ID        uint   `gorm:"primaryKey"`
	PlanID    uint   `gorm:"not null;index:idx_progress_plan_day,priority:1"`
	MemberID  uint   `gorm:"not null;uniqueIndex:idx_progress_member_day,priority:1"`
	Day       string `gorm:"size:10;not null;uniqueIndex:idx_progress_member_day,priority:2;index:idx_progress_plan_day,priority:2"`
	Completed bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (DailyProgress) TableName() string {
	return "daily_progress"
}

// CheckInEvent is an immutable progress submission.
type CheckInEvent struct {
	ID          uint   `gorm:"primaryKey"`
	PlanID      uint   `gorm:"not null;index"`
	MemberID    uint   `gorm:"not null;index:idx_checkin_member_created,priority:1"`
	ProgressID  uint   `gorm:"not null;index"`
	Notes       string `gorm:"type:text"`
	Links       datatypes.JSONSlice[string]
	CreatedAt   time.Time           `gorm:"not null;index:idx_checkin_member_created,priority:2"`
	Attachments []CheckInAttachment `gorm:"foreignKey:CheckInID"`
	Tasks       []CheckInTask       `gorm:"foreignKey:CheckInID"`
}

func (CheckInEvent) TableName() string {
	return "check_in_events"
}

// CheckInAttachment references an uploaded file. Storage itself lives
// in the upload service.
type CheckInAttachment struct {
	ID          uint   `gorm:"primaryKey"`
	CheckInID   uint   `gorm:"not null;index"`
	URL         string `gorm:"not null"`
	ContentType string
}

// CheckInTask records a task completed by a check-in. TaskID becomes nil
// when the task is deleted; TaskTitle keeps the last known title.
type CheckInTask struct {
	ID        uint  `gorm:"primaryKey"`
	CheckInID uint  `gorm:"not null;index"`
	TaskID    *uint `gorm:"index"`
	TaskTitle string
}

func (CheckInTask) TableName() string {
	return "check_in_tasks"
}

// Label returns the task title, or a placeholder for deleted tasks.
func (t CheckInTask) Label() string {
	if t.TaskID == nil {
		return "task unknown"
	}
	return t.TaskTitle
}
