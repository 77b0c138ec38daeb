package bot

import (
	"context"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"planpact/internal/model"
	"planpact/internal/push"
	"planpact/internal/repository"
	"planpact/internal/service"
)

type fakeAPI struct {
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatal("nothing was sent")
	}
	return f.sent[len(f.sent)-1]
}

type fixture struct {
	api      *fakeAPI
	bot      *Bot
	users    *repository.UserRepository
	notifier *service.NotificationService
	linked   model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "bot.db"), log)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	users := repository.NewUserRepository(db)
	plans := repository.NewPlanRepository(db)
	progress := repository.NewProgressRepository(db)
	notifier := service.NewNotificationService(repository.NewNotificationRepository(db), push.NewHub(log), log)
	api := &fakeAPI{}

	chat := int64(4242)
	linked := model.User{Email: "alice@example.com", Name: "Alice", TelegramID: &chat}
	if err := users.Create(context.Background(), &linked); err != nil {
		t.Fatalf("create user: %v", err)
	}
	plan := model.Plan{Title: "Read daily", StartDate: "2025-01-01", DurationDays: 4, Status: model.PlanStatusActive}
	if err := plans.Create(context.Background(), &plan, linked.ID, time.Now()); err != nil {
		t.Fatalf("create plan: %v", err)
	}

	return &fixture{
		api:      api,
		bot:      newBot(api, users, service.NewDashboardService(plans, progress), notifier, log),
		users:    users,
		notifier: notifier,
		linked:   linked,
	}
}

func command(from int64, text string) *tgbotapi.Message {
	name := strings.Fields(text)[0]
	return &tgbotapi.Message{
		From:     &tgbotapi.User{ID: from},
		Chat:     &tgbotapi.Chat{ID: from, Type: "private"},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}
}

func TestDeliver(t *testing.T) {
	f := newFixture(t)
	n := model.Notification{ID: 7, Kind: model.NotifyComment, Message: "bob commented: <b>hi</b>"}

	if err := f.bot.Deliver(context.Background(), model.User{ID: 99}, n); err != nil {
		t.Fatalf("Deliver to unlinked user: %v", err)
	}
	if len(f.api.sent) != 0 {
		t.Fatal("unlinked users must be skipped")
	}

	if err := f.bot.Deliver(context.Background(), f.linked, n); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	msg := f.api.last(t)
	if msg.ChatID != *f.linked.TelegramID || msg.ParseMode != tgbotapi.ModeHTML {
		t.Fatalf("unexpected message %+v", msg)
	}
	if !strings.Contains(msg.Text, "&lt;b&gt;hi&lt;/b&gt;") || !strings.HasPrefix(msg.Text, "💬") {
		t.Fatalf("message not escaped or missing icon: %q", msg.Text)
	}
}

func TestStartCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.bot.handleMessage(ctx, command(1, "/start")); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}
	if !strings.Contains(f.api.last(t).Text, "<code>1</code>") {
		t.Fatalf("unlinked chat should see its id: %q", f.api.last(t).Text)
	}

	if err := f.bot.handleMessage(ctx, command(*f.linked.TelegramID, "/start")); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}
	if !strings.Contains(f.api.last(t).Text, "Alice") {
		t.Fatalf("linked chat should be greeted by name: %q", f.api.last(t).Text)
	}
}

func TestPlansAndNotificationsCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := *f.linked.TelegramID

	if err := f.bot.handleMessage(ctx, command(chat, "/plans")); err != nil {
		t.Fatalf("/plans: %v", err)
	}
	if text := f.api.last(t).Text; !strings.Contains(text, "Read daily") || !strings.Contains(text, "0/4 days") {
		t.Fatalf("unexpected /plans reply %q", text)
	}

	if _, err := f.notifier.Notify(ctx, f.linked, model.NotifyEncouragement, "💪 keep going", ""); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if err := f.bot.handleMessage(ctx, command(chat, "/notifications")); err != nil {
		t.Fatalf("/notifications: %v", err)
	}
	if text := f.api.last(t).Text; !strings.Contains(text, "keep going") {
		t.Fatalf("unexpected inbox %q", text)
	}

	if err := f.bot.handleMessage(ctx, command(chat, "/read all")); err != nil {
		t.Fatalf("/read all: %v", err)
	}
	if text := f.api.last(t).Text; !strings.Contains(text, "Marked 1") {
		t.Fatalf("unexpected reply %q", text)
	}
	if err := f.bot.handleMessage(ctx, command(chat, "/read 999")); err != nil {
		t.Fatalf("/read 999: %v", err)
	}
	if text := f.api.last(t).Text; text != "Notification not found." {
		t.Fatalf("unexpected reply %q", text)
	}

	unread, err := f.notifier.List(ctx, f.linked.ID, true, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(unread) != 0 {
		t.Fatalf("expected everything read, got %d unread", len(unread))
	}
}

func TestReadCallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.notifier.Notify(ctx, f.linked, model.NotifyReaction, "🎉 bob reacted", "")
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	cb := &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: *f.linked.TelegramID},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: *f.linked.TelegramID}},
		Data:    cbReadPrefix + strconv.FormatUint(uint64(n.ID), 10),
	}
	if err := f.bot.handleCallback(ctx, cb); err != nil {
		t.Fatalf("handleCallback: %v", err)
	}
	if len(f.api.requests) != 1 {
		t.Fatal("callback should be acknowledged")
	}
	unread, err := f.notifier.List(ctx, f.linked.ID, true, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(unread) != 0 {
		t.Fatal("callback should mark the notification read")
	}
}

func TestFormatPlansHighlightsViewer(t *testing.T) {
	dash := &service.PlanDashboard{
		Title: "Gym", StartDate: "2025-01-01", EndDate: "2025-01-10", DurationDays: 10, Status: model.PlanStatusActive,
		Members: []service.MemberDashboard{
			{UserID: 1, DisplayName: "Alice", CompletedDays: 5, CompletionPercentage: 50},
			{UserID: 2, DisplayName: "Bob & Co", CompletedDays: 1, CompletionPercentage: 10},
		},
	}
	text := formatPlans([]*service.PlanDashboard{dash}, 2)
	if !strings.Contains(text, "▶ Bob &amp; Co: 1/10 days (10%)") {
		t.Fatalf("viewer line missing: %q", text)
	}
	if !strings.Contains(text, "• Alice: 5/10 days (50%)") {
		t.Fatalf("member line missing: %q", text)
	}
	if formatPlans(nil, 1) != "You're not part of any plan yet." {
		t.Fatal("unexpected empty text")
	}
}

func TestHelpCommand(t *testing.T) {
	f := newFixture(t)

	if err := f.bot.handleMessage(context.Background(), command(1, "/help")); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}
	text := f.api.last(t).Text
	for _, want := range []string{"• /plans - ", "• /notifications - ", "• /read all - "} {
		if !strings.Contains(text, want) {
			t.Errorf("help text missing %q: %q", want, text)
		}
	}
	if strings.Contains(text, "—") {
		t.Errorf("help text should use plain hyphens: %q", text)
	}
}
