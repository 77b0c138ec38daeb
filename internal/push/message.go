// Package push delivers live-update messages to per-plan and per-user
// channels.
package push

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType tells clients how to refresh.
type MessageType string

const (
	TypeMemberRemoved   MessageType = "MEMBER_REMOVED"
	TypeProgressUpdated MessageType = "PROGRESS_UPDATED"
	TypeNotification    MessageType = "NOTIFICATION"
	TypeReactionUpdated MessageType = "REACTION_UPDATED"
	TypeCommentAdded    MessageType = "COMMENT_ADDED"
)

// Message is the typed payload sent on a channel.
type Message struct {
	ID      string                 `json:"id"`
	Type    MessageType            `json:"type"`
	PlanID  uint                   `json:"planId,omitempty"`
	UserID  uint                   `json:"userId,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	SentAt  time.Time              `json:"sentAt"`
}

// NewMessage stamps a message with a fresh id and the current time.
func NewMessage(t MessageType, planID, userID uint, payload map[string]interface{}) Message {
	return Message{
		ID:      uuid.NewString(),
		Type:    t,
		PlanID:  planID,
		UserID:  userID,
		Payload: payload,
		SentAt:  time.Now().UTC(),
	}
}

// Broadcaster publishes messages to logical channels.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, msg Message) error
}

// PlanChannel is the channel every member of a plan listens on.
func PlanChannel(planID uint) string {
	return fmt.Sprintf("plan:%d", planID)
}

// UserChannel is a user's private channel.
func UserChannel(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}
