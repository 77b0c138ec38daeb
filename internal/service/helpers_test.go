package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"planpact/internal/model"
	"planpact/internal/push"
	"planpact/internal/repository"
)

type sentMessage struct {
	channel string
	msg     push.Message
}

type recordingBroadcaster struct {
	mu        sync.Mutex
	sent      []sentMessage
	onPublish func(channel string, msg push.Message)
}

func (b *recordingBroadcaster) Publish(_ context.Context, channel string, msg push.Message) error {
	if b.onPublish != nil {
		b.onPublish(channel, msg)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sentMessage{channel: channel, msg: msg})
	return nil
}

func (b *recordingBroadcaster) ofType(t push.MessageType) []sentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []sentMessage
	for _, s := range b.sent {
		if s.msg.Type == t {
			out = append(out, s)
		}
	}
	return out
}

// failingNotifier fails for one user and delegates everything else.
type failingNotifier struct {
	next   Notifier
	failID uint
}

func (f failingNotifier) Notify(ctx context.Context, recipient model.User, kind model.NotificationKind, message, link string) (*model.Notification, error) {
	if recipient.ID == f.failID {
		return nil, errors.New("sink unavailable")
	}
	return f.next.Notify(ctx, recipient, kind, message, link)
}

type testEnv struct {
	t             *testing.T
	log           *logrus.Logger
	users         *repository.UserRepository
	plans         *repository.PlanRepository
	progress      *repository.ProgressRepository
	social        *repository.SocialRepository
	notifications *repository.NotificationRepository
	push          *recordingBroadcaster
	notifier      *NotificationService
	dashboards    *DashboardService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "planpact.db"), log)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	env := &testEnv{
		t:             t,
		log:           log,
		users:         repository.NewUserRepository(db),
		plans:         repository.NewPlanRepository(db),
		progress:      repository.NewProgressRepository(db),
		social:        repository.NewSocialRepository(db),
		notifications: repository.NewNotificationRepository(db),
		push:          &recordingBroadcaster{},
	}
	env.notifier = NewNotificationService(env.notifications, env.push, log)
	env.dashboards = NewDashboardService(env.plans, env.progress)
	return env
}

func (e *testEnv) user(name string) model.User {
	e.t.Helper()
	u := model.User{Email: fmt.Sprintf("%s@example.com", name), Name: name}
	if err := e.users.Create(context.Background(), &u); err != nil {
		e.t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func (e *testEnv) plan(owner model.User, start string, duration int, joined time.Time, tasks ...model.Task) *model.Plan {
	e.t.Helper()
	p := model.Plan{
		Title:        "Plan " + start,
		StartDate:    start,
		DurationDays: duration,
		Status:       model.PlanStatusActive,
		Tasks:        tasks,
	}
	if err := e.plans.Create(context.Background(), &p, owner.ID, joined); err != nil {
		e.t.Fatalf("create plan: %v", err)
	}
	return &p
}

func (e *testEnv) member(planID, userID uint) *model.PlanMember {
	e.t.Helper()
	m, err := e.plans.FindMember(context.Background(), planID, userID)
	if err != nil {
		e.t.Fatalf("find member of plan %d user %d: %v", planID, userID, err)
	}
	return m
}

func (e *testEnv) join(planID uint, u model.User, joined time.Time) *model.PlanMember {
	e.t.Helper()
	m, err := e.plans.AddMember(context.Background(), planID, u.ID, joined)
	if err != nil {
		e.t.Fatalf("join plan %d: %v", planID, err)
	}
	return m
}

// checkIn records a check-in created at the given time.
func (e *testEnv) checkIn(planID, memberID uint, day string, complete bool, at time.Time, taskIDs ...uint) *model.CheckInEvent {
	e.t.Helper()
	event := model.CheckInEvent{CreatedAt: at.UTC()}
	for _, id := range taskIDs {
		id := id
		event.Tasks = append(event.Tasks, model.CheckInTask{TaskID: &id, TaskTitle: fmt.Sprintf("task %d", id)})
	}
	if _, err := e.progress.RecordCheckIn(context.Background(), planID, memberID, day, &event, complete); err != nil {
		e.t.Fatalf("record check-in: %v", err)
	}
	return &event
}

func (e *testEnv) inbox(u model.User) []model.Notification {
	e.t.Helper()
	items, err := e.notifications.ListForUser(context.Background(), u.ID, false, 0)
	if err != nil {
		e.t.Fatalf("list notifications: %v", err)
	}
	return items
}

func (e *testEnv) inboxOf(u model.User, kind model.NotificationKind) []model.Notification {
	var out []model.Notification
	for _, n := range e.inbox(u) {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func (e *testEnv) engine(cfg EngineConfig, now time.Time) *Engine {
	eng := NewEngine(e.plans, e.progress, e.notifications, e.dashboards, e.notifier, e.push, cfg, e.log)
	eng.SetClock(func() time.Time { return now })
	return eng
}

func at(day, clock string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", day+" "+clock, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func strPtr(s string) *string { return &s }
