package httpapi

import (
	"context"

	"github.com/gofiber/websocket/v2"

	"planpact/internal/push"
)

// stream subscribes the connection to the user's channel and to every
// plan the user belongs to. Plans joined later need a reconnect.
func (h *handlers) stream(c *websocket.Conn) {
	userID, _ := c.Locals(localUserID).(uint)
	channels := []string{push.UserChannel(userID)}

	plans, err := h.Plans.ListForUser(context.Background(), userID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("Failed to load plans for stream")
		_ = c.Close()
		return
	}
	for _, p := range plans {
		channels = append(channels, push.PlanChannel(p.ID))
	}

	client := h.Hub.Register(c, channels...)
	defer h.Hub.Unregister(client)

	// Drain reads until the peer goes away.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
