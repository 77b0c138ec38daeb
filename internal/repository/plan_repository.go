package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"planpact/internal/model"
)

// PlanRepository handles plans, their tasks and memberships.
type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// Create stores a plan with its tasks and registers ownerID as its only OWNER.
func (r *PlanRepository) Create(ctx context.Context, plan *model.Plan, ownerID uint, joinedAt time.Time) error {
	if plan.DurationDays <= 0 {
		return errors.New("plan duration must be positive")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(plan).Error; err != nil {
			return fmt.Errorf("create plan: %w", err)
		}
		owner := model.PlanMember{
			PlanID:   plan.ID,
			UserID:   ownerID,
			Role:     model.RoleOwner,
			JoinedAt: joinedAt.UTC(),
		}
		if err := tx.Create(&owner).Error; err != nil {
			return fmt.Errorf("create owner membership: %w", err)
		}
		return nil
	})
}

// AddMember adds a MEMBER to the plan. The (plan, user) pair is unique.
func (r *PlanRepository) AddMember(ctx context.Context, planID, userID uint, joinedAt time.Time) (*model.PlanMember, error) {
	member := model.PlanMember{
		PlanID:   planID,
		UserID:   userID,
		Role:     model.RoleMember,
		JoinedAt: joinedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&member).Error; err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	return &member, nil
}

// GetWithTasks loads a plan and its tasks ordered by position.
func (r *PlanRepository) GetWithTasks(ctx context.Context, id uint) (*model.Plan, error) {
	var plan model.Plan
	if err := r.db.WithContext(ctx).Preload("Tasks", orderTasks).First(&plan, id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListActiveCovering returns ACTIVE plans whose window contains day.
func (r *PlanRepository) ListActiveCovering(ctx context.Context, day string) ([]model.Plan, error) {
	var plans []model.Plan
	if err := r.db.WithContext(ctx).
		Where("status = ? AND start_date <= ? AND end_date >= ?", model.PlanStatusActive, day, day).
		Preload("Tasks", orderTasks).
		Order("id ASC").
		Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("list active plans on %s: %w", day, err)
	}
	return plans, nil
}

func (r *PlanRepository) ListByStatus(ctx context.Context, status model.PlanStatus) ([]model.Plan, error) {
	var plans []model.Plan
	if err := r.db.WithContext(ctx).Where("status = ?", status).Order("id ASC").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("list %s plans: %w", status, err)
	}
	return plans, nil
}

// ListForUser returns the plans userID belongs to.
func (r *PlanRepository) ListForUser(ctx context.Context, userID uint) ([]model.Plan, error) {
	var plans []model.Plan
	if err := r.db.WithContext(ctx).
		Joins("JOIN plan_members ON plan_members.plan_id = plans.id").
		Where("plan_members.user_id = ?", userID).
		Order("plans.id ASC").
		Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("list plans for user %d: %w", userID, err)
	}
	return plans, nil
}

// ListMembers returns the plan members with their users preloaded. A
// member whose user record is gone has a zero User.
func (r *PlanRepository) ListMembers(ctx context.Context, planID uint) ([]model.PlanMember, error) {
	var members []model.PlanMember
	if err := r.db.WithContext(ctx).
		Where("plan_id = ?", planID).
		Preload("User").
		Order("id ASC").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("list members of plan %d: %w", planID, err)
	}
	return members, nil
}

func (r *PlanRepository) FindMember(ctx context.Context, planID, userID uint) (*model.PlanMember, error) {
	var member model.PlanMember
	if err := r.db.WithContext(ctx).
		Where("plan_id = ? AND user_id = ?", planID, userID).
		Preload("User").
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *PlanRepository) GetMember(ctx context.Context, memberID uint) (*model.PlanMember, error) {
	var member model.PlanMember
	if err := r.db.WithContext(ctx).Preload("User").First(&member, memberID).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// ErrMemberActive is returned by DeleteInactiveMember when the member
// checked in after the cutoff.
var ErrMemberActive = errors.New("member checked in after the cutoff")

// DeleteMember removes a membership together with the member's progress,
// check-ins and the reactions and comments left on them. It never
// removes an OWNER.
func (r *PlanRepository) DeleteMember(ctx context.Context, memberID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		member, err := lockMember(tx, memberID)
		if err != nil {
			return err
		}
		return deleteMember(tx, member)
	})
}

// DeleteInactiveMember is DeleteMember guarded by a check-in count taken
// under the member row lock. It returns ErrMemberActive and deletes
// nothing when the member checked in after since.
func (r *PlanRepository) DeleteInactiveMember(ctx context.Context, memberID uint, since time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		member, err := lockMember(tx, memberID)
		if err != nil {
			return err
		}
		var recent int64
		if err := tx.Model(&model.CheckInEvent{}).
			Where("member_id = ? AND created_at > ?", memberID, since.UTC()).
			Count(&recent).Error; err != nil {
			return fmt.Errorf("count recent check-ins: %w", err)
		}
		if recent > 0 {
			return ErrMemberActive
		}
		return deleteMember(tx, member)
	})
}

// lockMember loads the member row FOR UPDATE. SQLite ignores the clause
// and serialises writers on the database instead.
func lockMember(tx *gorm.DB, memberID uint) (*model.PlanMember, error) {
	var member model.PlanMember
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&member, memberID).Error; err != nil {
		return nil, err
	}
	if member.IsOwner() {
		return nil, fmt.Errorf("member %d owns plan %d and cannot be removed", member.ID, member.PlanID)
	}
	return &member, nil
}

func deleteMember(tx *gorm.DB, member *model.PlanMember) error {
	checkIns := tx.Model(&model.CheckInEvent{}).Select("id").Where("member_id = ?", member.ID)
	days := tx.Model(&model.DailyProgress{}).Select("id").Where("member_id = ?", member.ID)
	onTargets := func(q *gorm.DB) *gorm.DB {
		return q.Where("(target_type = ? AND target_id IN (?)) OR (target_type = ? AND target_id IN (?))",
			model.TargetCheckIn, checkIns, model.TargetProgress, days)
	}

	if err := onTargets(tx).Delete(&model.Reaction{}).Error; err != nil {
		return fmt.Errorf("delete reactions: %w", err)
	}
	if err := onTargets(tx).Delete(&model.Comment{}).Error; err != nil {
		return fmt.Errorf("delete comments: %w", err)
	}
	if err := tx.Where("check_in_id IN (?)", checkIns).Delete(&model.CheckInTask{}).Error; err != nil {
		return fmt.Errorf("delete check-in tasks: %w", err)
	}
	if err := tx.Where("check_in_id IN (?)", checkIns).Delete(&model.CheckInAttachment{}).Error; err != nil {
		return fmt.Errorf("delete check-in attachments: %w", err)
	}
	if err := tx.Where("member_id = ?", member.ID).Delete(&model.CheckInEvent{}).Error; err != nil {
		return fmt.Errorf("delete check-ins: %w", err)
	}
	if err := tx.Where("member_id = ?", member.ID).Delete(&model.DailyProgress{}).Error; err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	if err := tx.Where("member_id = ?", member.ID).Delete(&model.DeadlineReminderLog{}).Error; err != nil {
		return fmt.Errorf("delete reminder logs: %w", err)
	}
	if err := tx.Delete(member).Error; err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}

// DeleteTask removes a task. Check-ins that completed it keep their
// reference row with a nil TaskID.
func (r *PlanRepository) DeleteTask(ctx context.Context, taskID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.CheckInTask{}).Where("task_id = ?", taskID).Update("task_id", nil).Error; err != nil {
			return fmt.Errorf("detach check-in tasks: %w", err)
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&model.DeadlineReminderLog{}).Error; err != nil {
			return fmt.Errorf("delete reminder logs: %w", err)
		}
		res := tx.Delete(&model.Task{}, taskID)
		if res.Error != nil {
			return fmt.Errorf("delete task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func orderTasks(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC, id ASC")
}
