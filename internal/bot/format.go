package bot

import (
	"fmt"
	"html"
	"strings"

	"planpact/internal/model"
	"planpact/internal/service"
)

func escape(s string) string {
	return html.EscapeString(s)
}

func kindIcon(kind model.NotificationKind) string {
	switch kind {
	case model.NotifyCheckInReminder:
		return "📝"
	case model.NotifyDeadlineReminder:
		return "⏰"
	case model.NotifyEncouragement:
		return "💪"
	case model.NotifyRemoved:
		return "👋"
	case model.NotifyReaction:
		return "🎉"
	case model.NotifyComment:
		return "💬"
	}
	return "🔔"
}

// formatNotification renders a pushed notification. Messages usually
// carry their own emoji; the icon is added only when they don't.
func formatNotification(n model.Notification) string {
	text := escape(strings.TrimSpace(n.Message))
	icon := kindIcon(n.Kind)
	if strings.HasPrefix(text, icon) {
		return text
	}
	return icon + " " + text
}

func formatInbox(items []model.Notification) string {
	if len(items) == 0 {
		return "📭 No unread notifications."
	}
	var sb strings.Builder
	sb.WriteString("🔔 <b>Unread notifications</b>\n")
	for _, n := range items {
		sb.WriteString(fmt.Sprintf("\n<code>#%d</code> %s", n.ID, formatNotification(n)))
	}
	sb.WriteString("\n\nMark one with /read &lt;id&gt; or everything with /read all.")
	return sb.String()
}

func formatPlans(dashboards []*service.PlanDashboard, userID uint) string {
	if len(dashboards) == 0 {
		return "You're not part of any plan yet."
	}
	var sb strings.Builder
	sb.WriteString("📋 <b>Your plans</b>\n")
	for _, d := range dashboards {
		sb.WriteString(fmt.Sprintf("\n<b>%s</b> <i>(%s → %s, %s)</i>\n",
			escape(strings.TrimSpace(d.Title)), d.StartDate, d.EndDate, strings.ToLower(string(d.Status))))
		for _, m := range d.Members {
			marker := "•"
			if m.UserID == userID {
				marker = "▶"
			}
			sb.WriteString(fmt.Sprintf("%s %s: %d/%d days (%.0f%%)\n",
				marker, escape(m.DisplayName), m.CompletedDays, d.DurationDays, m.CompletionPercentage))
		}
	}
	return strings.TrimSpace(sb.String())
}
