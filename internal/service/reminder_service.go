package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"planpact/internal/model"
)

// RunCheckInReminders reminds every member of a plan active yesterday
// who logged no progress for yesterday. Owners are reminded too.
func (e *Engine) RunCheckInReminders(ctx context.Context) (JobReport, error) {
	report := JobReport{Job: "checkin_reminder"}
	yesterday, err := model.AddDays(e.today(), -1)
	if err != nil {
		return report, err
	}
	log := e.log.WithFields(logrus.Fields{"job": report.Job, "day": yesterday})

	plans, err := e.plans.ListActiveCovering(ctx, yesterday)
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
		logged, err := e.progress.MembersWithProgressOn(ctx, plan.ID, yesterday)
		if err != nil {
			e.fail(&report, planLog, "load_progress", err)
			continue
		}

		for _, m := range members {
			if logged[m.ID] {
				continue
			}
			if m.User.ID == 0 {
				report.Skipped++
				continue
			}
			msg := checkInReminderText(plan, yesterday)
			e.notify(ctx, &report, planLog.WithField("member_id", m.ID), m.User, model.NotifyCheckInReminder, msg, planLink(plan.ID))
		}
	}
	return e.finish(report), nil
}

// RunDeadlineReminders reminds members about tasks whose deadline today
// falls strictly inside (now, now+lookahead) and that they have not
// completed yet today. With dedupe enabled a (member, task, day) is
// reminded at most once.
func (e *Engine) RunDeadlineReminders(ctx context.Context) (JobReport, error) {
	report := JobReport{Job: "deadline_reminder"}
	now := e.now().In(e.cfg.Location)
	today := model.DayOf(now, e.cfg.Location)
	until := now.Add(e.cfg.DeadlineLookahead)
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

		var due []dueTask
		for _, task := range plan.Tasks {
			deadline, ok, err := deadlineOn(task, now)
			if err != nil {
				e.fail(&report, planLog.WithField("task_id", task.ID), "parse_deadline", err)
				continue
			}
			if ok && deadline.After(now) && deadline.Before(until) {
				due = append(due, dueTask{task: task, at: deadline})
			}
		}
		if len(due) == 0 {
			continue
		}

		members, err := e.plans.ListMembers(ctx, plan.ID)
		if err != nil {
			e.fail(&report, planLog, "list_members", err)
			continue
		}
		done, err := e.progress.CompletedTasksOn(ctx, plan.ID, today)
		if err != nil {
			e.fail(&report, planLog, "load_progress", err)
			continue
		}

		for _, d := range due {
			for _, m := range members {
				if done[m.ID][d.task.ID] {
					continue
				}
				if m.User.ID == 0 {
					report.Skipped++
					continue
				}
				itemLog := planLog.WithFields(logrus.Fields{"member_id": m.ID, "task_id": d.task.ID})
				if e.cfg.DeadlineDedupe {
					first, err := e.notifications.ClaimDeadlineReminder(ctx, m.ID, d.task.ID, today)
					if err != nil {
						e.fail(&report, itemLog, "claim_reminder", err)
						continue
					}
					if !first {
						report.Skipped++
						continue
					}
				}
				msg := deadlineReminderText(plan, d.task, d.at)
				e.notify(ctx, &report, itemLog, m.User, model.NotifyDeadlineReminder, msg, planLink(plan.ID))
			}
		}
	}
	return e.finish(report), nil
}

type dueTask struct {
	task model.Task
	at   time.Time
}

// deadlineOn returns the task's deadline on the calendar day of now, in
// now's location. ok is false for tasks without a deadline. Deadlines are
// never rolled to the next day, so a 00:xx deadline is not reminded from
// the 23:xx run before it.
func deadlineOn(task model.Task, now time.Time) (time.Time, bool, error) {
	if task.DeadlineTime == nil || strings.TrimSpace(*task.DeadlineTime) == "" {
		return time.Time{}, false, nil
	}
	hm, err := time.Parse("15:04", strings.TrimSpace(*task.DeadlineTime))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("task %d deadline %q: %w", task.ID, *task.DeadlineTime, err)
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, hm.Hour(), hm.Minute(), 0, 0, now.Location()), true, nil
}

func checkInReminderText(plan model.Plan, day string) string {
	return fmt.Sprintf("📝 You didn't check in on %s for \"%s\". Log your progress to keep the streak going!", day, plan.Title)
}

func deadlineReminderText(plan model.Plan, task model.Task, at time.Time) string {
	return fmt.Sprintf("⏰ \"%s\" in \"%s\" is due at %s today.", task.Title, plan.Title, at.Format("15:04"))
}
