package service

import (
	"context"
	"fmt"

	"planpact/internal/model"
	"planpact/internal/repository"
)

// DayStatus is one cell of a member's day map. Days without a progress
// row are present with Logged false.
type DayStatus struct {
	Day        string `json:"day"`
	Logged     bool   `json:"logged"`
	Completed  bool   `json:"completed"`
	ProgressID uint   `json:"progressId,omitempty"`
}

// MemberDashboard is one member's progress over the whole plan window.
type MemberDashboard struct {
	MemberID             uint             `json:"memberId"`
	UserID               uint             `json:"userId"`
	DisplayName          string           `json:"displayName"`
	Role                 model.MemberRole `json:"role"`
	CompletedDays        int              `json:"completedDays"`
	CompletionPercentage float64          `json:"completionPercentage"`
	Days                 []DayStatus      `json:"days"`
}

// CompletedThrough counts completed days up to and including day.
func (m MemberDashboard) CompletedThrough(day string) int {
	n := 0
	for _, d := range m.Days {
		if d.Day > day {
			break
		}
		if d.Completed {
			n++
		}
	}
	return n
}

// PlanDashboard is the per-member progress view of a plan.
type PlanDashboard struct {
	PlanID       uint              `json:"planId"`
	Title        string            `json:"title"`
	Status       model.PlanStatus  `json:"status"`
	StartDate    string            `json:"startDate"`
	EndDate      string            `json:"endDate"`
	DurationDays int               `json:"durationDays"`
	Members      []MemberDashboard `json:"members"`
}

// Member returns the dashboard entry of memberID.
func (d *PlanDashboard) Member(memberID uint) (MemberDashboard, bool) {
	for _, m := range d.Members {
		if m.MemberID == memberID {
			return m, true
		}
	}
	return MemberDashboard{}, false
}

// BuildDashboard computes the dashboard from already loaded rows. Rows
// outside the plan window or belonging to other members are ignored.
func BuildDashboard(plan model.Plan, members []model.PlanMember, progress []model.DailyProgress) (*PlanDashboard, error) {
	if plan.DurationDays <= 0 {
		return nil, fmt.Errorf("plan %d has non-positive duration %d", plan.ID, plan.DurationDays)
	}

	days := make([]string, plan.DurationDays)
	for i := range days {
		day, err := model.AddDays(plan.StartDate, i)
		if err != nil {
			return nil, err
		}
		days[i] = day
	}
	end := days[len(days)-1]

	rows := make(map[uint]map[string]model.DailyProgress, len(members))
	for _, p := range progress {
		if p.Day < plan.StartDate || p.Day > end {
			continue
		}
		if rows[p.MemberID] == nil {
			rows[p.MemberID] = make(map[string]model.DailyProgress)
		}
		rows[p.MemberID][p.Day] = p
	}

	dash := &PlanDashboard{
		PlanID:       plan.ID,
		Title:        plan.Title,
		Status:       plan.Status,
		StartDate:    plan.StartDate,
		EndDate:      end,
		DurationDays: plan.DurationDays,
		Members:      make([]MemberDashboard, 0, len(members)),
	}

	for _, m := range members {
		name := unknownMember
		if m.User.ID != 0 {
			name = m.User.DisplayName()
		}
		entry := MemberDashboard{
			MemberID:    m.ID,
			UserID:      m.UserID,
			DisplayName: name,
			Role:        m.Role,
			Days:        make([]DayStatus, len(days)),
		}
		for i, day := range days {
			status := DayStatus{Day: day}
			if row, ok := rows[m.ID][day]; ok {
				status.Logged = true
				status.Completed = row.Completed
				status.ProgressID = row.ID
				if row.Completed {
					entry.CompletedDays++
				}
			}
			entry.Days[i] = status
		}
		entry.CompletionPercentage = float64(entry.CompletedDays) / float64(plan.DurationDays) * 100
		dash.Members = append(dash.Members, entry)
	}
	return dash, nil
}

// DashboardService loads plan dashboards.
type DashboardService struct {
	plans    *repository.PlanRepository
	progress *repository.ProgressRepository
}

func NewDashboardService(plans *repository.PlanRepository, progress *repository.ProgressRepository) *DashboardService {
	return &DashboardService{plans: plans, progress: progress}
}

// Dashboard returns the plan dashboard for a viewer who is a member.
func (s *DashboardService) Dashboard(ctx context.Context, planID, viewerID uint) (*PlanDashboard, error) {
	plan, err := s.plans.GetWithTasks(ctx, planID)
	if err != nil {
		return nil, notFound(err, "plan")
	}
	if _, err := s.plans.FindMember(ctx, planID, viewerID); err != nil {
		return nil, denied(err, planID, viewerID)
	}
	return s.ForPlan(ctx, *plan)
}

// ForPlan builds the dashboard without a viewer check.
func (s *DashboardService) ForPlan(ctx context.Context, plan model.Plan) (*PlanDashboard, error) {
	members, err := s.plans.ListMembers(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	progress, err := s.progress.ListForPlanInRange(ctx, plan.ID, plan.StartDate, plan.EndDate)
	if err != nil {
		return nil, err
	}
	return BuildDashboard(plan, members, progress)
}

// ForUser returns dashboards of every plan the user belongs to.
func (s *DashboardService) ForUser(ctx context.Context, userID uint) ([]*PlanDashboard, error) {
	plans, err := s.plans.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*PlanDashboard, 0, len(plans))
	for _, plan := range plans {
		dash, err := s.ForPlan(ctx, plan)
		if err != nil {
			return nil, err
		}
		out = append(out, dash)
	}
	return out, nil
}
