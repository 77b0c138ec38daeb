package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"planpact/internal/model"
	"planpact/internal/service"
)

const maxNotifications = 100

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid "+name)
	}
	return uint(id), nil
}

func target(c *fiber.Ctx) (service.Target, error) {
	kind, err := service.ParseTargetType(c.Params("kind"))
	if err != nil {
		return service.Target{}, err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return service.Target{}, err
	}
	return service.Target{Type: kind, ID: id}, nil
}

func (h *handlers) dashboard(c *fiber.Ctx) error {
	planID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	dash, err := h.Dashboards.Dashboard(c.UserContext(), planID, currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(dash)
}

type checkInTaskView struct {
	TaskID *uint  `json:"taskId"`
	Label  string `json:"label"`
}

type attachmentView struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType,omitempty"`
}

type checkInView struct {
	ID          uint              `json:"id"`
	PlanID      uint              `json:"planId"`
	MemberID    uint              `json:"memberId"`
	ProgressID  uint              `json:"progressId"`
	Day         string            `json:"day"`
	DayComplete bool              `json:"dayCompleted"`
	Notes       string            `json:"notes,omitempty"`
	Links       []string          `json:"links"`
	Tasks       []checkInTaskView `json:"tasks"`
	Attachments []attachmentView  `json:"attachments"`
	CreatedAt   time.Time         `json:"createdAt"`
}

func newCheckInView(event *model.CheckInEvent, day *model.DailyProgress) checkInView {
	v := checkInView{
		ID:          event.ID,
		PlanID:      event.PlanID,
		MemberID:    event.MemberID,
		ProgressID:  event.ProgressID,
		Day:         day.Day,
		DayComplete: day.Completed,
		Notes:       event.Notes,
		Links:       append([]string{}, event.Links...),
		Tasks:       make([]checkInTaskView, 0, len(event.Tasks)),
		Attachments: make([]attachmentView, 0, len(event.Attachments)),
		CreatedAt:   event.CreatedAt,
	}
	for _, t := range event.Tasks {
		v.Tasks = append(v.Tasks, checkInTaskView{TaskID: t.TaskID, Label: t.Label()})
	}
	for _, a := range event.Attachments {
		v.Attachments = append(v.Attachments, attachmentView{URL: a.URL, ContentType: a.ContentType})
	}
	return v
}

func (h *handlers) checkIn(c *fiber.Ctx) error {
	planID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in service.CheckInInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	in.PlanID = planID

	event, day, err := h.Progress.CheckIn(c.UserContext(), currentUser(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(newCheckInView(event, day))
}

func (h *handlers) overlay(c *fiber.Ctx) error {
	t, err := target(c)
	if err != nil {
		return err
	}
	viewer := currentUser(c)
	overlay, err := h.Social.Overlay(c.UserContext(), t, &viewer)
	if err != nil {
		return err
	}
	return c.JSON(overlay)
}

func (h *handlers) react(c *fiber.Ctx) error {
	t, err := target(c)
	if err != nil {
		return err
	}
	var body struct {
		Type model.ReactionType `json:"type"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	summary, err := h.Social.React(c.UserContext(), currentUser(c), t, body.Type)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"reactions": summary})
}

func (h *handlers) unreact(c *fiber.Ctx) error {
	t, err := target(c)
	if err != nil {
		return err
	}
	summary, err := h.Social.Unreact(c.UserContext(), currentUser(c), t)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"reactions": summary})
}

type commentBody struct {
	Content string `json:"content"`
}

func (h *handlers) addComment(c *fiber.Ctx) error {
	t, err := target(c)
	if err != nil {
		return err
	}
	var body commentBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	comment, err := h.Social.AddComment(c.UserContext(), currentUser(c), t, body.Content)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

func (h *handlers) editComment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var body commentBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	comment, err := h.Social.EditComment(c.UserContext(), currentUser(c), id, body.Content)
	if err != nil {
		return err
	}
	return c.JSON(comment)
}

type notificationView struct {
	ID        uint                   `json:"id"`
	Kind      model.NotificationKind `json:"kind"`
	Message   string                 `json:"message"`
	Link      string                 `json:"link,omitempty"`
	IsRead    bool                   `json:"isRead"`
	CreatedAt time.Time              `json:"createdAt"`
}

func (h *handlers) listNotifications(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > maxNotifications {
		limit = maxNotifications
	}
	items, err := h.Notifications.List(c.UserContext(), currentUser(c), c.QueryBool("unread"), limit)
	if err != nil {
		return err
	}
	out := make([]notificationView, 0, len(items))
	for _, n := range items {
		out = append(out, notificationView{
			ID:        n.ID,
			Kind:      n.Kind,
			Message:   n.Message,
			Link:      n.Link,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"notifications": out})
}

func (h *handlers) markRead(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Notifications.MarkRead(c.UserContext(), currentUser(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
