package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"planpact/internal/logging"
)

// SchedulerService wraps cron-based jobs. All schedules use one location
// and a job never overlaps a still running instance of itself.
type SchedulerService struct {
	cron *cron.Cron
	log  *logrus.Entry
}

func NewSchedulerService(loc *time.Location, log *logrus.Logger) *SchedulerService {
	entry := log.WithField("component", "scheduler")
	logger := cronLogger{entry: entry}
	return &SchedulerService{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		log: entry,
	}
}

// ScheduleDaily registers a daily job at the given HH:MM time string.
func (s *SchedulerService) ScheduleDaily(timeStr string, job func()) (cron.EntryID, error) {
	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, job)
}

// ScheduleInterval registers a periodic job every given duration.
func (s *SchedulerService) ScheduleInterval(interval time.Duration, job func()) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return s.cron.AddFunc(fmt.Sprintf("@every %ds", seconds), job)
}

// Next returns the next activation time of a registered job.
func (s *SchedulerService) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs to finish.
func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// JobSchedule tells when each engine job fires.
type JobSchedule struct {
	CheckInReminderTime string
	DeadlineInterval    time.Duration
	EncouragementTime   string
	InactivityTime      string
	Timeout             time.Duration
}

// RegisterEngineJobs schedules the four engine jobs.
func (s *SchedulerService) RegisterEngineJobs(e *Engine, sched JobSchedule) error {
	if sched.Timeout <= 0 {
		sched.Timeout = 10 * time.Minute
	}
	wrap := func(name string, run func(context.Context) (JobReport, error)) func() {
		return func() {
			ctx, cancel := context.WithTimeout(context.Background(), sched.Timeout)
			defer cancel()
			if _, err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.ReportError(s.log.WithField("job", name), "job_run", err)
			}
		}
	}

	if _, err := s.ScheduleDaily(sched.CheckInReminderTime, wrap("checkin_reminder", e.RunCheckInReminders)); err != nil {
		return fmt.Errorf("schedule check-in reminder: %w", err)
	}
	if _, err := s.ScheduleInterval(sched.DeadlineInterval, wrap("deadline_reminder", e.RunDeadlineReminders)); err != nil {
		return fmt.Errorf("schedule deadline reminder: %w", err)
	}
	if _, err := s.ScheduleDaily(sched.EncouragementTime, wrap("encouragement", e.RunEncouragement)); err != nil {
		return fmt.Errorf("schedule encouragement: %w", err)
	}
	if _, err := s.ScheduleDaily(sched.InactivityTime, wrap("inactivity_pruning", e.RunInactivityPruning)); err != nil {
		return fmt.Errorf("schedule inactivity pruning: %w", err)
	}
	return nil
}

func buildDailySpec(timeStr string) (string, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	// cron format: second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}

// cronLogger routes cron's logs to logrus.
type cronLogger struct {
	entry *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(kvFields(keysAndValues)).WithError(err).Error(msg)
}

func kvFields(kv []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
