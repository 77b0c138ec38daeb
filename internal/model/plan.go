package model

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// PlanStatus is the lifecycle state of a plan.
type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "ACTIVE"
	PlanStatusCompleted PlanStatus = "COMPLETED"
	PlanStatusArchived  PlanStatus = "ARCHIVED"
)

// MemberRole is a member's role within a plan.
type MemberRole string

const (
	RoleOwner  MemberRole = "OWNER"
	RoleMember MemberRole = "MEMBER"
)

// Plan is a shared, fixed-duration accountability commitment.
type Plan struct {
	ID           uint       `gorm:"primaryKey"`
	Title        string     `gorm:"not null"`
	StartDate    string     `gorm:"size:10;not null;index:idx_plan_window,priority:2"`
	EndDate      string     `gorm:"size:10;not null;index:idx_plan_window,priority:3"`
	DurationDays int        `gorm:"not null"`
	Status       PlanStatus `gorm:"size:16;not null;default:'ACTIVE';index:idx_plan_window,priority:1"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Tasks        []Task       `gorm:"foreignKey:PlanID"`
	Members      []PlanMember `gorm:"foreignKey:PlanID"`
}

// BeforeSave keeps EndDate in sync with StartDate and DurationDays.
func (p *Plan) BeforeSave(tx *gorm.DB) error {
	if p.DurationDays <= 0 {
		return errors.New("plan duration must be positive")
	}
	end, err := AddDays(p.StartDate, p.DurationDays-1)
	if err != nil {
		return err
	}
	p.EndDate = end
	return nil
}

// Covers reports whether day falls inside the plan window.
func (p Plan) Covers(day string) bool {
	return p.StartDate <= day && day <= p.EndDate
}

// PlanMember links a user to a plan.
type PlanMember struct {
	ID       uint       `gorm:"primaryKey"`
	PlanID   uint       `gorm:"not null;uniqueIndex:idx_plan_user"`
	UserID   uint       `gorm:"not null;uniqueIndex:idx_plan_user;index"`
	Role     MemberRole `gorm:"size:16;not null;default:'MEMBER'"`
	JoinedAt time.Time  `gorm:"not null"`
	User     User       `gorm:"foreignKey:UserID"`
}

// IsOwner reports whether the member owns the plan.
func (m PlanMember) IsOwner() bool {
	return m.Role == RoleOwner
}

// Task is a daily item of a plan. DeadlineTime, when set, is an HH:MM
// time of day that recurs on every day of the plan window.
type Task struct {
	ID           uint    `gorm:"primaryKey"`
	PlanID       uint    `gorm:"not null;index"`
	Position     int     `gorm:"not null;default:0"`
	Title        string  `gorm:"not null"`
	DeadlineTime *string `gorm:"size:5"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
