// Package bot delivers notifications over Telegram and answers a few
// read-only commands for linked accounts.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"planpact/internal/model"
	"planpact/internal/repository"
	"planpact/internal/service"
)

const (
	cbReadPrefix     = "read:"
	notificationPage = 10
)

// sender is the part of the Telegram API the bot uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api           sender
	poller        *tgbotapi.BotAPI
	users         *repository.UserRepository
	dashboards    *service.DashboardService
	notifications *service.NotificationService
	log           *logrus.Entry
}

func New(token string, users *repository.UserRepository, dashboards *service.DashboardService, notifications *service.NotificationService, log *logrus.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	b := newBot(api, users, dashboards, notifications, log)
	b.poller = api
	b.log.WithField("account", api.Self.UserName).Info("Bot authorized")
	return b, nil
}

func newBot(api sender, users *repository.UserRepository, dashboards *service.DashboardService, notifications *service.NotificationService, log *logrus.Logger) *Bot {
	return &Bot{
		api:           api,
		users:         users,
		dashboards:    dashboards,
		notifications: notifications,
		log:           log.WithField("component", "bot"),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b.poller == nil {
		return errors.New("bot has no polling client")
	}
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.poller.GetUpdatesChan(updateConfig)

	b.log.Info("Start polling updates")

	go func() {
		<-ctx.Done()
		b.poller.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}
	return ctx.Err()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			b.log.WithError(err).Warn("Handle callback failed")
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.log.WithError(err).Warn("Handle message failed")
		}
	}
}

// Deliver sends a notification to the recipient's linked chat. Users
// without a linked chat are skipped.
func (b *Bot) Deliver(_ context.Context, recipient model.User, n model.Notification) error {
	if recipient.TelegramID == nil {
		return nil
	}
	msg := tgbotapi.NewMessage(*recipient.TelegramID, formatNotification(n))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Mark as read", cbReadPrefix+strconv.FormatUint(uint64(n.ID), 10)),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send notification %d: %w", n.ID, err)
	}
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	if !msg.IsCommand() {
		return b.sendText(msg.Chat.ID, "I only understand commands. Try /help.")
	}

	b.log.WithFields(logrus.Fields{
		"telegram_id": msg.From.ID,
		"command":     msg.Command(),
	}).Debug("Command received")

	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.sendText(msg.Chat.ID, helpText)
	case "plans":
		return b.handlePlans(ctx, msg)
	case "notifications":
		return b.handleNotifications(ctx, msg)
	case "read":
		return b.handleRead(ctx, msg)
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /plans - your plans and how everyone is doing\n" +
	"• /notifications - unread notifications\n" +
	"• /read &lt;id&gt; - mark a notification as read\n" +
	"• /read all - mark everything as read\n" +
	"• /help - this message"

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.linkedUser(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	if user == nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf(
			"👋 Hi! This chat isn't linked to an account yet.\nAdd your Telegram id <code>%d</code> in your profile settings, then send /start again.",
			msg.From.ID,
		))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf(
		"👋 Hi, %s!\n<b>Reminders and nudges from your plans will arrive here.</b>\n\n%s",
		escape(user.DisplayName()), helpText,
	))
}

func (b *Bot) handlePlans(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.requireLinked(ctx, msg)
	if err != nil || user == nil {
		return err
	}
	dashboards, err := b.dashboards.ForUser(ctx, user.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Couldn't load your plans right now.")
	}
	return b.sendText(msg.Chat.ID, formatPlans(dashboards, user.ID))
}

func (b *Bot) handleNotifications(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.requireLinked(ctx, msg)
	if err != nil || user == nil {
		return err
	}
	items, err := b.notifications.List(ctx, user.ID, true, notificationPage)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Couldn't load notifications right now.")
	}
	return b.sendText(msg.Chat.ID, formatInbox(items))
}

func (b *Bot) handleRead(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.requireLinked(ctx, msg)
	if err != nil || user == nil {
		return err
	}

	args := strings.TrimSpace(msg.CommandArguments())
	if strings.EqualFold(args, "all") {
		n, err := b.markAllRead(ctx, user.ID)
		if err != nil {
			return b.sendText(msg.Chat.ID, "Couldn't update notifications right now.")
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("✅ Marked %d notifications as read.", n))
	}

	id, err := strconv.ParseUint(args, 10, 64)
	if err != nil || id == 0 {
		return b.sendText(msg.Chat.ID, "Tell me which one: /read 12 or /read all")
	}
	if err := b.notifications.MarkRead(ctx, user.ID, uint(id)); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return b.sendText(msg.Chat.ID, "Notification not found.")
		}
		return err
	}
	return b.sendText(msg.Chat.ID, "✅ Marked as read.")
}

func (b *Bot) markAllRead(ctx context.Context, userID uint) (int, error) {
	total := 0
	for {
		items, err := b.notifications.List(ctx, userID, true, 100)
		if err != nil {
			return total, err
		}
		if len(items) == 0 {
			return total, nil
		}
		for _, n := range items {
			if err := b.notifications.MarkRead(ctx, userID, n.ID); err != nil {
				return total, err
			}
			total++
		}
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	answer := ""
	defer func() {
		if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, answer)); err != nil {
			b.log.WithError(err).Debug("Callback ack failed")
		}
	}()

	if !strings.HasPrefix(cb.Data, cbReadPrefix) {
		return nil
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(cb.Data, cbReadPrefix), 10, 64)
	if err != nil {
		return nil
	}
	user, err := b.linkedUser(ctx, cb.From.ID)
	if err != nil || user == nil {
		answer = "This chat isn't linked to an account."
		return err
	}
	if err := b.notifications.MarkRead(ctx, user.ID, uint(id)); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			answer = "Notification not found."
			return nil
		}
		return err
	}
	answer = "Marked as read"
	return nil
}

// linkedUser returns the account linked to the Telegram user, or nil.
func (b *Bot) linkedUser(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := b.users.FindByTelegramID(ctx, telegramID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by telegram id: %w", err)
	}
	return user, nil
}

// requireLinked returns the linked user or tells the chat to link first.
// A nil user with a nil error means the reply was already sent.
func (b *Bot) requireLinked(ctx context.Context, msg *tgbotapi.Message) (*model.User, error) {
	user, err := b.linkedUser(ctx, msg.From.ID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, b.sendText(msg.Chat.ID, "This chat isn't linked to an account yet. Send /start for details.")
	}
	return user, nil
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}
