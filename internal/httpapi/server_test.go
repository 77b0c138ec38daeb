package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"planpact/internal/model"
	"planpact/internal/push"
	"planpact/internal/repository"
	"planpact/internal/service"
)

const testSecret = "test-secret"

type fixture struct {
	app     *fiber.App
	alice   model.User
	bob     model.User
	mallory model.User
	plan    *model.Plan
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "api.db"), log)
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
	social := repository.NewSocialRepository(db)
	notifications := repository.NewNotificationRepository(db)
	hub := push.NewHub(log)
	notifier := service.NewNotificationService(notifications, hub, log)

	f := &fixture{}
	ctx := context.Background()
	for name, u := range map[string]*model.User{"alice": &f.alice, "bob": &f.bob, "mallory": &f.mallory} {
		*u = model.User{Email: name + "@example.com", Name: name}
		if err := users.Create(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}

	joined := time.Now().Add(-48 * time.Hour)
	f.plan = &model.Plan{
		Title:        "Morning routine",
		StartDate:    model.DayOf(time.Now().Add(-24*time.Hour), time.UTC),
		DurationDays: 5,
		Status:       model.PlanStatusActive,
		Tasks:        []model.Task{{Title: "Run", Position: 1}},
	}
	if err := plans.Create(ctx, f.plan, f.alice.ID, joined); err != nil {
		t.Fatalf("create plan: %v", err)
	}
	if _, err := plans.AddMember(ctx, f.plan.ID, f.bob.ID, joined); err != nil {
		t.Fatalf("add member: %v", err)
	}

	f.app = NewApp(Deps{
		Dashboards:    service.NewDashboardService(plans, progress),
		Progress:      service.NewProgressService(plans, progress, hub, time.UTC, log),
		Social:        service.NewSocialService(plans, progress, social, users, notifier, hub, log),
		Notifications: notifier,
		Plans:         plans,
		Hub:           hub,
	}, testSecret, log)
	return f
}

func token(t *testing.T, userID uint, secret string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func (f *fixture) do(t *testing.T, method, path string, userID uint, body interface{}) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+token(t, userID, testSecret))
	}
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, out
}

func decode(t *testing.T, raw []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	if status, _ := f.do(t, http.MethodGet, "/health", 0, nil); status != http.StatusOK {
		t.Fatalf("health: got %d", status)
	}
}

func TestAuthentication(t *testing.T) {
	f := newFixture(t)
	path := "/plans/" + strconv.Itoa(int(f.plan.ID)) + "/dashboard"

	if status, _ := f.do(t, http.MethodGet, path, 0, nil); status != http.StatusUnauthorized {
		t.Fatalf("missing token: got %d", status)
	}

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token(t, f.alice.ID, "other-secret"))
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("foreign signature: got %d", resp.StatusCode)
	}

	if _, err := ParseToken(token(t, f.alice.ID, testSecret), []byte(testSecret)); err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
}

func TestDashboardStatuses(t *testing.T) {
	f := newFixture(t)
	path := "/plans/" + strconv.Itoa(int(f.plan.ID)) + "/dashboard"

	status, body := f.do(t, http.MethodGet, path, f.alice.ID, nil)
	if status != http.StatusOK {
		t.Fatalf("member: got %d %s", status, body)
	}
	var dash service.PlanDashboard
	decode(t, body, &dash)
	if len(dash.Members) != 2 || len(dash.Members[0].Days) != 5 {
		t.Fatalf("unexpected dashboard %+v", dash)
	}

	if status, _ := f.do(t, http.MethodGet, path, f.mallory.ID, nil); status != http.StatusForbidden {
		t.Fatalf("outsider: got %d", status)
	}
	if status, _ := f.do(t, http.MethodGet, "/plans/9999/dashboard", f.alice.ID, nil); status != http.StatusNotFound {
		t.Fatalf("missing plan: got %d", status)
	}
	if status, _ := f.do(t, http.MethodGet, "/plans/abc/dashboard", f.alice.ID, nil); status != http.StatusBadRequest {
		t.Fatalf("bad id: got %d", status)
	}
}

func TestCheckInReactCommentFlow(t *testing.T) {
	f := newFixture(t)
	planPath := "/plans/" + strconv.Itoa(int(f.plan.ID))

	status, body := f.do(t, http.MethodPost, planPath+"/checkins", f.bob.ID, map[string]interface{}{
		"notes":   "5k done",
		"taskIds": []uint{f.plan.Tasks[0].ID},
		"links":   []string{"https://example.com/run"},
	})
	if status != http.StatusCreated {
		t.Fatalf("check-in: got %d %s", status, body)
	}
	var created checkInView
	decode(t, body, &created)
	if !created.DayComplete || len(created.Tasks) != 1 || created.Tasks[0].Label != "Run" {
		t.Fatalf("unexpected check-in %+v", created)
	}

	target := "/progress/checkin/" + strconv.Itoa(int(created.ID))
	if status, _ := f.do(t, http.MethodPut, target+"/reactions", f.alice.ID, map[string]string{"type": "MEH"}); status != http.StatusBadRequest {
		t.Fatalf("invalid reaction: got %d", status)
	}
	if status, body := f.do(t, http.MethodPut, target+"/reactions", f.alice.ID, map[string]string{"type": "FIRE"}); status != http.StatusOK {
		t.Fatalf("react: got %d %s", status, body)
	}
	if status, body := f.do(t, http.MethodPost, target+"/comments", f.alice.ID, map[string]string{"content": "Strong!"}); status != http.StatusCreated {
		t.Fatalf("comment: got %d %s", status, body)
	}
	if status, _ := f.do(t, http.MethodPost, target+"/comments", f.mallory.ID, map[string]string{"content": "hi"}); status != http.StatusForbidden {
		t.Fatalf("outsider comment: got %d", status)
	}

	status, body = f.do(t, http.MethodGet, target+"/overlay", f.bob.ID, nil)
	if status != http.StatusOK {
		t.Fatalf("overlay: got %d %s", status, body)
	}
	var overlay service.Overlay
	decode(t, body, &overlay)
	if len(overlay.Comments) != 1 || overlay.Comments[0].AuthorName != "alice" {
		t.Fatalf("unexpected comments %+v", overlay.Comments)
	}
	if len(overlay.Reactions) != 1 || overlay.Reactions[0].Count != 1 || overlay.Reactions[0].ReactedByViewer {
		t.Fatalf("unexpected reactions %+v", overlay.Reactions)
	}

	if status, _ := f.do(t, http.MethodGet, "/progress/plan/1/overlay", f.bob.ID, nil); status != http.StatusBadRequest {
		t.Fatalf("bad kind: got %d", status)
	}

	var inbox struct {
		Notifications []notificationView `json:"notifications"`
	}
	_, body = f.do(t, http.MethodGet, "/notifications", f.bob.ID, nil)
	decode(t, body, &inbox)
	if len(inbox.Notifications) != 2 {
		t.Fatalf("bob should have two notifications, got %+v", inbox.Notifications)
	}

	readPath := "/notifications/" + strconv.Itoa(int(inbox.Notifications[0].ID)) + "/read"
	if status, _ := f.do(t, http.MethodPost, readPath, f.alice.ID, nil); status != http.StatusNotFound {
		t.Fatalf("foreign read: got %d", status)
	}
	if status, _ := f.do(t, http.MethodPost, readPath, f.bob.ID, nil); status != http.StatusNoContent {
		t.Fatalf("read: got %d", status)
	}
	_, body = f.do(t, http.MethodGet, "/notifications?unread=true", f.bob.ID, nil)
	decode(t, body, &inbox)
	if len(inbox.Notifications) != 1 {
		t.Fatalf("expected one unread notification, got %d", len(inbox.Notifications))
	}
}
