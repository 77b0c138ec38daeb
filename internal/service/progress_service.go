package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"planpact/internal/model"
	"planpact/internal/push"
	"planpact/internal/repository"
)

// AttachmentInput references an already uploaded file.
type AttachmentInput struct {
	URL         string `json:"url" validate:"required,url"`
	ContentType string `json:"contentType" validate:"max=100"`
}

// CheckInInput is a member's progress submission for one day.
type CheckInInput struct {
	PlanID       uint              `json:"-" validate:"required"`
	Day          string            `json:"day" validate:"omitempty,datetime=2006-01-02"`
	Notes        string            `json:"notes" validate:"max=4000"`
	TaskIDs      []uint            `json:"taskIds" validate:"max=100,dive,required"`
	Links        []string          `json:"links" validate:"max=10,dive,url"`
	Attachments  []AttachmentInput `json:"attachments" validate:"max=10,dive"`
	MarkComplete bool              `json:"markComplete"`
}

// ProgressService records check-ins.
type ProgressService struct {
	plans    *repository.PlanRepository
	progress *repository.ProgressRepository
	push     push.Broadcaster
	loc      *time.Location
	now      func() time.Time
	log      *logrus.Entry
}

func NewProgressService(
	plans *repository.PlanRepository,
	progress *repository.ProgressRepository,
	broadcaster push.Broadcaster,
	loc *time.Location,
	log *logrus.Logger,
) *ProgressService {
	return &ProgressService{
		plans:    plans,
		progress: progress,
		push:     broadcaster,
		loc:      loc,
		now:      time.Now,
		log:      log.WithField("component", "progress"),
	}
}

// CheckIn records a check-in of userID. The day defaults to today. The
// day is completed when requested or once every plan task has been
// checked off on it.
func (s *ProgressService) CheckIn(ctx context.Context, userID uint, in CheckInInput) (*model.CheckInEvent, *model.DailyProgress, error) {
	in.Notes = strings.TrimSpace(in.Notes)
	if err := validateStruct(in); err != nil {
		return nil, nil, err
	}

	plan, err := s.plans.GetWithTasks(ctx, in.PlanID)
	if err != nil {
		return nil, nil, notFound(err, "plan")
	}
	member, err := s.plans.FindMember(ctx, plan.ID, userID)
	if err != nil {
		return nil, nil, denied(err, plan.ID, userID)
	}
	if plan.Status != model.PlanStatusActive {
		return nil, nil, invalid("plan %d is %s", plan.ID, plan.Status)
	}

	today := model.DayOf(s.now(), s.loc)
	day := in.Day
	if day == "" {
		day = today
	}
	if !plan.Covers(day) {
		return nil, nil, invalid("day %s is outside the plan window %s..%s", day, plan.StartDate, plan.EndDate)
	}
	if day > today {
		return nil, nil, invalid("day %s is in the future", day)
	}

	tasks := make(map[uint]model.Task, len(plan.Tasks))
	for _, t := range plan.Tasks {
		tasks[t.ID] = t
	}
	event := model.CheckInEvent{
		Notes: in.Notes,
		Links: in.Links,
	}
	seen := make(map[uint]bool, len(in.TaskIDs))
	for _, id := range in.TaskIDs {
		task, ok := tasks[id]
		if !ok {
			return nil, nil, invalid("task %d does not belong to plan %d", id, plan.ID)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		taskID := task.ID
		event.Tasks = append(event.Tasks, model.CheckInTask{TaskID: &taskID, TaskTitle: task.Title})
	}
	for _, a := range in.Attachments {
		event.Attachments = append(event.Attachments, model.CheckInAttachment{URL: a.URL, ContentType: a.ContentType})
	}

	complete := in.MarkComplete
	if !complete && len(plan.Tasks) > 0 {
		done, err := s.progress.CompletedTasksOn(ctx, plan.ID, day)
		if err != nil {
			return nil, nil, err
		}
		complete = true
		for _, t := range plan.Tasks {
			if !seen[t.ID] && !done[member.ID][t.ID] {
				complete = false
				break
			}
		}
	}

	progress, err := s.progress.RecordCheckIn(ctx, plan.ID, member.ID, day, &event, complete)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, denied(err, plan.ID, userID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("record check-in: %w", err)
	}

	msg := push.NewMessage(push.TypeProgressUpdated, plan.ID, userID, map[string]interface{}{
		"memberId":   member.ID,
		"day":        day,
		"completed":  progress.Completed,
		"checkInId":  event.ID,
		"progressId": progress.ID,
	})
	if err := s.push.Publish(ctx, push.PlanChannel(plan.ID), msg); err != nil {
		s.log.WithError(err).WithField("plan_id", plan.ID).Warn("Push failed")
	}

	s.log.WithFields(logrus.Fields{
		"plan_id":   plan.ID,
		"member_id": member.ID,
		"day":       day,
		"completed": progress.Completed,
	}).Info("Check-in recorded")
	return &event, progress, nil
}
