package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"planpact/internal/model"
	"planpact/internal/push"
	"planpact/internal/repository"
)

// Notifier creates a notification for a user.
type Notifier interface {
	Notify(ctx context.Context, recipient model.User, kind model.NotificationKind, message, link string) (*model.Notification, error)
}

// Sink delivers a stored notification over an external channel.
type Sink interface {
	Deliver(ctx context.Context, recipient model.User, n model.Notification) error
}

// NotificationService persists notifications and hands them to the push
// channel and external sinks. Delivery is best-effort: once the row is
// stored, delivery failures are only logged.
type NotificationService struct {
	repo  *repository.NotificationRepository
	push  push.Broadcaster
	log   *logrus.Entry
	mu    sync.RWMutex
	sinks []Sink
	wg    sync.WaitGroup
}

func NewNotificationService(repo *repository.NotificationRepository, broadcaster push.Broadcaster, log *logrus.Logger) *NotificationService {
	return &NotificationService{
		repo: repo,
		push: broadcaster,
		log:  log.WithField("component", "notifier"),
	}
}

// AddSink registers an external delivery channel.
func (s *NotificationService) AddSink(sink Sink) {
	s.mu.Lock()
	s.sinks = append(s.sinks, sink)
	s.mu.Unlock()
}

func (s *NotificationService) Notify(ctx context.Context, recipient model.User, kind model.NotificationKind, message, link string) (*model.Notification, error) {
	if recipient.ID == 0 {
		return nil, fmt.Errorf("notify: recipient is unresolved")
	}
	n := model.Notification{
		RecipientID: recipient.ID,
		Kind:        kind,
		Message:     message,
		Link:        link,
	}
	if err := s.repo.Create(ctx, &n); err != nil {
		return nil, err
	}

	msg := push.NewMessage(push.TypeNotification, 0, recipient.ID, map[string]interface{}{
		"notificationId": n.ID,
		"kind":           n.Kind,
		"message":        n.Message,
		"link":           n.Link,
	})
	if err := s.push.Publish(ctx, push.UserChannel(recipient.ID), msg); err != nil {
		s.log.WithError(err).WithField("user_id", recipient.ID).Warn("Push delivery failed")
	}

	s.mu.RLock()
	sinks := append([]Sink(nil), s.sinks...)
	s.mu.RUnlock()
	if len(sinks) > 0 {
		dctx := context.WithoutCancel(ctx)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for _, sink := range sinks {
				if err := sink.Deliver(dctx, recipient, n); err != nil {
					s.log.WithError(err).WithFields(logrus.Fields{
						"user_id":         recipient.ID,
						"notification_id": n.ID,
					}).Warn("Sink delivery failed")
				}
			}
		}()
	}
	return &n, nil
}

// Wait blocks until pending sink deliveries finish.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]model.Notification, error) {
	return s.repo.ListForUser(ctx, userID, unreadOnly, limit)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uint) error {
	if err := s.repo.MarkRead(ctx, notificationID, userID); err != nil {
		return notFound(err, "notification")
	}
	return nil
}
