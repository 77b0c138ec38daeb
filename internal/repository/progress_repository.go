package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"planpact/internal/model"
)

// ProgressRepository stores daily progress and check-in events.
type ProgressRepository struct {
	db *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// RecordCheckIn stores event for the member's day, creating the day row
// when missing. It returns gorm.ErrRecordNotFound when the membership is
// gone. When complete is set the day is marked completed; a
// completed day never reverts.
func (r *ProgressRepository) RecordCheckIn(ctx context.Context, planID, memberID uint, day string, event *model.CheckInEvent, complete bool) (*model.DailyProgress, error) {
	var progress model.DailyProgress
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member model.PlanMember
		if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Select("id").
			Where("id = ? AND plan_id = ?", memberID, planID).
			First(&member).Error; err != nil {
			return err
		}

		seed := model.DailyProgress{PlanID: planID, MemberID: memberID, Day: day}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "member_id"}, {Name: "day"}},
			DoNothing: true,
		}).Create(&seed).Error; err != nil {
			return fmt.Errorf("ensure progress day: %w", err)
		}
		if err := tx.Where("member_id = ? AND day = ?", memberID, day).First(&progress).Error; err != nil {
			return fmt.Errorf("load progress day: %w", err)
		}
		if complete && !progress.Completed {
			if err := tx.Model(&progress).Update("completed", true).Error; err != nil {
				return fmt.Errorf("complete progress day: %w", err)
			}
			progress.Completed = true
		}

		event.PlanID = planID
		event.MemberID = memberID
		event.ProgressID = progress.ID
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("create check-in: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// ListForPlanInRange returns day rows of a plan with from <= day <= to.
func (r *ProgressRepository) ListForPlanInRange(ctx context.Context, planID uint, from, to string) ([]model.DailyProgress, error) {
	var rows []model.DailyProgress
	if err := r.db.WithContext(ctx).
		Where("plan_id = ? AND day >= ? AND day <= ?", planID, from, to).
		Order("day ASC, member_id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list progress for plan %d: %w", planID, err)
	}
	return rows, nil
}

// MembersWithProgressOn returns the ids of members that have a day row.
func (r *ProgressRepository) MembersWithProgressOn(ctx context.Context, planID uint, day string) (map[uint]bool, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&model.DailyProgress{}).
		Where("plan_id = ? AND day = ?", planID, day).
		Pluck("member_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("members with progress on %s: %w", day, err)
	}
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// CompletedTasksOn maps member id to the set of task ids checked off on day.
func (r *ProgressRepository) CompletedTasksOn(ctx context.Context, planID uint, day string) (map[uint]map[uint]bool, error) {
	var rows []struct {
		MemberID uint
		TaskID   uint
	}
	if err := r.db.WithContext(ctx).
		Table("check_in_tasks").
		Select("check_in_events.member_id AS member_id, check_in_tasks.task_id AS task_id").
		Joins("JOIN check_in_events ON check_in_events.id = check_in_tasks.check_in_id").
		Joins("JOIN daily_progress ON daily_progress.id = check_in_events.progress_id").
		Where("daily_progress.plan_id = ? AND daily_progress.day = ? AND check_in_tasks.task_id IS NOT NULL", planID, day).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("completed tasks on %s: %w", day, err)
	}
	done := make(map[uint]map[uint]bool)
	for _, row := range rows {
		if done[row.MemberID] == nil {
			done[row.MemberID] = make(map[uint]bool)
		}
		done[row.MemberID][row.TaskID] = true
	}
	return done, nil
}

// HasCheckInSince reports whether the member checked in strictly after since.
func (r *ProgressRepository) HasCheckInSince(ctx context.Context, memberID uint, since time.Time) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.CheckInEvent{}).
		Where("member_id = ? AND created_at > ?", memberID, since.UTC()).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("count check-ins of member %d: %w", memberID, err)
	}
	return count > 0, nil
}

func (r *ProgressRepository) GetCheckIn(ctx context.Context, id uint) (*model.CheckInEvent, error) {
	var event model.CheckInEvent
	if err := r.db.WithContext(ctx).
		Preload("Attachments").
		Preload("Tasks").
		First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *ProgressRepository) GetProgress(ctx context.Context, id uint) (*model.DailyProgress, error) {
	var progress model.DailyProgress
	if err := r.db.WithContext(ctx).First(&progress, id).Error; err != nil {
		return nil, err
	}
	return &progress, nil
}

// ListCheckIns returns a member's check-ins for a day, oldest first.
func (r *ProgressRepository) ListCheckIns(ctx context.Context, progressID uint) ([]model.CheckInEvent, error) {
	var events []model.CheckInEvent
	if err := r.db.WithContext(ctx).
		Where("progress_id = ?", progressID).
		Preload("Attachments").
		Preload("Tasks").
		Order("created_at ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list check-ins of progress %d: %w", progressID, err)
	}
	return events, nil
}
