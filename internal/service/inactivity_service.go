package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"planpact/internal/model"
	"planpact/internal/push"
	"planpact/internal/repository"
)

// RunInactivityPruning removes non-owner members of active plans who have
// not checked in within the configured number of days. The removed member
// is notified first, then the plan channel, then the membership is
// deleted. The delete re-checks for check-ins under the member row lock;
// a member who checked in meanwhile is kept and counted as skipped.
func (e *Engine) RunInactivityPruning(ctx context.Context) (JobReport, error) {
	report := JobReport{Job: "inactivity_pruning"}
	now := e.now()
	cutoff := now.Add(-time.Duration(e.cfg.InactivityDays) * 24 * time.Hour)
	log := e.log.WithFields(logrus.Fields{"job": report.Job, "cutoff": cutoff.UTC().Format(time.RFC3339)})

	plans, err := e.plans.ListByStatus(ctx, model.PlanStatusActive)
	if err != nil {
		return report, err
	}

	for _, plan := range plans {
		if ctx.Err() != nil {
			return e.finish(report), ctx.Err()
		}
		report.Plans++
		planLog := log.WithField("plan_id", plan.ID)

		members, err := e.plans.ListMembers(ctx, plan.ID)
		if err != nil {
			e.fail(&report, planLog, "list_members", err)
			continue
		}

		for _, m := range members {
			if m.IsOwner() {
				continue
			}
			memberLog := planLog.WithField("member_id", m.ID)
			// Narrower than "no check-in since cutoff": a member who joined
			// after the cutoff has had no chance to check in yet.
			if m.JoinedAt.After(cutoff) {
				report.Skipped++
				memberLog.WithField("reason", "joined_after_cutoff").Debug("Skipping new member")
				continue
			}

			active, err := e.progress.HasCheckInSince(ctx, m.ID, cutoff)
			if err != nil {
				e.fail(&report, memberLog, "load_checkins", err)
				continue
			}
			if active {
				continue
			}

			if m.User.ID != 0 {
				e.notify(ctx, &report, memberLog, m.User, model.NotifyRemoved, removalText(plan, e.cfg.InactivityDays), "/plans")
			}

			msg := push.NewMessage(push.TypeMemberRemoved, plan.ID, m.UserID, map[string]interface{}{
				"memberId": m.ID,
				"reason":   "inactivity",
			})
			if err := e.push.Publish(ctx, push.PlanChannel(plan.ID), msg); err != nil {
				memberLog.WithError(err).Warn("Push failed")
			}

			err = e.plans.DeleteInactiveMember(ctx, m.ID, cutoff)
			if errors.Is(err, repository.ErrMemberActive) {
				report.Skipped++
				memberLog.Info("Member checked in during pruning, kept")
				continue
			}
			if err != nil {
				e.fail(&report, memberLog, "remove_member", err)
				continue
			}
			report.Removed++
			memberLog.Info("Removed inactive member")
		}
	}
	return e.finish(report), nil
}

func removalText(plan model.Plan, days int) string {
	return fmt.Sprintf("👋 You were removed from \"%s\" after %d days without a check-in. You're welcome to join again any time.", plan.Title, days)
}
