package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"planpact/internal/model"
	"planpact/internal/push"
)

type recordingSink struct {
	mu   sync.Mutex
	got  []model.Notification
	fail bool
}

func (s *recordingSink) Deliver(_ context.Context, _ model.User, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	if s.fail {
		return errors.New("telegram down")
	}
	return nil
}

func TestNotifyPersistsAndDispatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user("alice")

	broken := &recordingSink{fail: true}
	sink := &recordingSink{}
	env.notifier.AddSink(broken)
	env.notifier.AddSink(sink)

	n, err := env.notifier.Notify(ctx, alice, model.NotifyCheckInReminder, "check in", "/plans/1")
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	env.notifier.Wait()

	if got := env.inbox(alice); len(got) != 1 || got[0].ID != n.ID || got[0].IsRead {
		t.Fatalf("unexpected inbox %+v", got)
	}
	pushed := env.push.ofType(push.TypeNotification)
	if len(pushed) != 1 || pushed[0].channel != push.UserChannel(alice.ID) {
		t.Fatalf("expected a push on the user channel, got %+v", pushed)
	}
	if len(broken.got) != 1 || len(sink.got) != 1 {
		t.Fatal("every sink should be tried even when one fails")
	}

	if _, err := env.notifier.Notify(ctx, model.User{}, model.NotifyComment, "x", ""); err == nil {
		t.Fatal("expected an error for an unresolved recipient")
	}
}

func TestMarkRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user("alice")
	bob := env.user("bob")

	n, err := env.notifier.Notify(ctx, alice, model.NotifyComment, "hello", "")
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if err := env.notifier.MarkRead(ctx, bob.ID, n.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for another user's notification, got %v", err)
	}
	if err := env.notifier.MarkRead(ctx, alice.ID, n.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	unread, err := env.notifier.List(ctx, alice.ID, true, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(unread) != 0 {
		t.Fatalf("expected no unread notifications, got %d", len(unread))
	}
}
