package service

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"planpact/internal/model"
)

// RunEncouragement finds members falling behind on plans running for at
// least the configured number of days and asks every other member to
// encourage them.
func (e *Engine) RunEncouragement(ctx context.Context) (JobReport, error) {
	report := JobReport{Job: "encouragement"}
	today := e.today()
	log := e.log.WithFields(logrus.Fields{"job": report.Job, "day": today})

	plans, err := e.plans.ListActiveCovering(ctx, today)
	if err != nil {
		return report, err
	}

	for _, plan := range plans {
		if ctx.Err() != nil {
			return e.finish(report), ctx.Err()
		}
		report.Plans++
		planLog := log.WithField("plan_id", plan.ID)

		elapsed, err := model.DaysBetween(plan.StartDate, today)
		if err != nil {
			e.fail(&report, planLog, "plan_window", err)
			continue
		}
		elapsed++
		if elapsed <= 0 || elapsed < e.cfg.EncouragementMinDays {
			continue
		}

		dash, err := e.dashboards.ForPlan(ctx, plan)
		if err != nil {
			e.fail(&report, planLog, "dashboard", err)
			continue
		}
		members, err := e.plans.ListMembers(ctx, plan.ID)
		if err != nil {
			e.fail(&report, planLog, "list_members", err)
			continue
		}
		if len(members) < 2 {
			continue
		}

		for _, behind := range FallingBehind(dash, today, elapsed, e.cfg.CompletionThresholdRatio) {
			behindMember, ok := memberByID(members, behind.MemberID)
			if !ok || behindMember.User.ID == 0 {
				report.Skipped++
				continue
			}
			msg := encouragementText(plan, behindMember.User.DisplayName())
			for _, other := range members {
				if other.ID == behindMember.ID {
					continue
				}
				if other.User.ID == 0 {
					report.Skipped++
					continue
				}
				e.notify(ctx, &report, planLog.WithFields(logrus.Fields{
					"member_id": other.ID,
					"behind_id": behindMember.ID,
				}), other.User, model.NotifyEncouragement, msg, planLink(plan.ID))
			}
		}
	}
	return e.finish(report), nil
}

// FallingBehind returns the members whose completion rate after elapsed
// days is below ratio times the time-proportional expected rate.
func FallingBehind(dash *PlanDashboard, today string, elapsed int, ratio float64) []MemberDashboard {
	if elapsed <= 0 || dash.DurationDays <= 0 {
		return nil
	}
	expected := math.Min(1, float64(elapsed)/float64(dash.DurationDays))
	var out []MemberDashboard
	for _, m := range dash.Members {
		actual := float64(m.CompletedThrough(today)) / float64(elapsed)
		if actual < expected*ratio {
			out = append(out, m)
		}
	}
	return out
}

func memberByID(members []model.PlanMember, id uint) (model.PlanMember, bool) {
	for _, m := range members {
		if m.ID == id {
			return m, true
		}
	}
	return model.PlanMember{}, false
}

func encouragementText(plan model.Plan, name string) string {
	return fmt.Sprintf("💪 %s is falling behind on \"%s\". A few kind words could help them get back on track!", name, plan.Title)
}
