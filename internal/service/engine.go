package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"planpact/internal/logging"
	"planpact/internal/model"
	"planpact/internal/push"
	"planpact/internal/repository"
)

// EngineConfig holds the thresholds of the scheduled jobs.
type EngineConfig struct {
	// Location is the single zone "today" and "yesterday" are computed in.
	Location *time.Location
	// DeadlineLookahead is the window after now that deadline reminders cover.
	DeadlineLookahead time.Duration
	// DeadlineDedupe limits deadline reminders to one per member, task and day.
	DeadlineDedupe bool
	// EncouragementMinDays is the plan age, in days, before anyone is flagged.
	EncouragementMinDays int
	// CompletionThresholdRatio scales the expected ratio into the flag threshold.
	CompletionThresholdRatio float64
	// InactivityDays is how long a member may go without checking in.
	InactivityDays int
}

// DefaultEngineConfig returns the stock thresholds in UTC.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Location:                 time.UTC,
		DeadlineLookahead:        time.Hour,
		DeadlineDedupe:           true,
		EncouragementMinDays:     3,
		CompletionThresholdRatio: 0.7,
		InactivityDays:           3,
	}
}

// JobReport summarises one job run.
type JobReport struct {
	Job      string `json:"job"`
	Plans    int    `json:"plans"`
	Notified int    `json:"notified"`
	Removed  int    `json:"removed"`
	Skipped  int    `json:"skipped"`
	Failures int    `json:"failures"`
}

func (r JobReport) fields() logrus.Fields {
	return logrus.Fields{
		"job":      r.Job,
		"plans":    r.Plans,
		"notified": r.Notified,
		"removed":  r.Removed,
		"skipped":  r.Skipped,
		"failures": r.Failures,
	}
}

// Engine runs the reminder, encouragement and inactivity jobs. Failures
// on a single plan or member are logged and reported; the scan goes on.
type Engine struct {
	plans         *repository.PlanRepository
	progress      *repository.ProgressRepository
	notifications *repository.NotificationRepository
	dashboards    *DashboardService
	notifier      Notifier
	push          push.Broadcaster
	cfg           EngineConfig
	now           func() time.Time
	log           *logrus.Entry
}

func NewEngine(
	plans *repository.PlanRepository,
	progress *repository.ProgressRepository,
	notifications *repository.NotificationRepository,
	dashboards *DashboardService,
	notifier Notifier,
	broadcaster push.Broadcaster,
	cfg EngineConfig,
	log *logrus.Logger,
) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Engine{
		plans:         plans,
		progress:      progress,
		notifications: notifications,
		dashboards:    dashboards,
		notifier:      notifier,
		push:          broadcaster,
		cfg:           cfg,
		now:           time.Now,
		log:           log.WithField("component", "engine"),
	}
}

// SetClock replaces the engine's time source.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

func (e *Engine) today() string {
	return model.DayOf(e.now(), e.cfg.Location)
}

func (e *Engine) fail(report *JobReport, entry *logrus.Entry, errorType string, err error) {
	report.Failures++
	logging.ReportError(entry, errorType, err)
}

func (e *Engine) notify(ctx context.Context, report *JobReport, entry *logrus.Entry, user model.User, kind model.NotificationKind, message, link string) bool {
	if _, err := e.notifier.Notify(ctx, user, kind, message, link); err != nil {
		e.fail(report, entry.WithField("user_id", user.ID), "notify", err)
		return false
	}
	report.Notified++
	return true
}

func (e *Engine) finish(report JobReport) JobReport {
	e.log.WithFields(report.fields()).Info("Job finished")
	return report
}

func planLink(planID uint) string {
	return fmt.Sprintf("/plans/%d", planID)
}
