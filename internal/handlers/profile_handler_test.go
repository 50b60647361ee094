package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/makroxyz/simplechat/internal/models"
	"github.com/makroxyz/simplechat/internal/repository"
)

type stubProfileService struct {
	profile     *models.UserProfile
	profileErr  error
	contacts    []models.Identity
	contactsErr error
	lastUserID  int64
	lastInput   repository.UpdateUserProfileInput
}

func (s *stubProfileService) GetProfile(_ context.Context, userID int64) (*models.UserProfile, error) {
	s.lastUserID = userID
	return s.profile, s.profileErr
}

func (s *stubProfileService) UpdateProfile(_ context.Context, userID int64, input repository.UpdateUserProfileInput) (*models.UserProfile, error) {
	s.lastUserID = userID
	s.lastInput = input
	return s.profile, s.profileErr
}

func (s *stubProfileService) ListContacts(_ context.Context, userID int64) ([]models.Identity, error) {
	s.lastUserID = userID
	return s.contacts, s.contactsErr
}

func newProfileTestApp(service profileApplicationService) *fiber.App {
	handler := NewProfileHandler(service)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", "42")
		return c.Next()
	})
	app.Get("/api/v1/contacts", handler.ListContacts)
	app.Get("/api/v1/profile", handler.GetProfile)
	app.Put("/api/v1/profile", handler.UpdateProfile)
	return app
}

func TestListContactsReturnsDirectory(t *testing.T) {
	service := &stubProfileService{
		contacts: []models.Identity{
			{UserID: 7, DisplayName: "Bob", Exists: true},
			{UserID: 9, DisplayName: "Carol", Exists: true},
		},
	}
	app := newProfileTestApp(service)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contacts", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastUserID != 42 {
		t.Fatalf("expected caller 42, got %d", service.lastUserID)
	}

	var body struct {
		Contacts []models.Identity `json:"contacts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.Contacts) != 2 || body.Contacts[0].DisplayName != "Bob" {
		t.Fatalf("unexpected contacts: %+v", body.Contacts)
	}
}

func TestUpdateProfilePassesPartialInput(t *testing.T) {
	name := "Alice"
	service := &stubProfileService{
		profile: &models.UserProfile{UserID: 42, DisplayName: &name},
	}
	app := newProfileTestApp(service)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/profile", strings.NewReader(`{"display_name":"Alice"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastInput.DisplayName == nil || *service.lastInput.DisplayName != "Alice" {
		t.Fatalf("expected display name forwarded, got %+v", service.lastInput)
	}
	if service.lastInput.AvatarURL != nil {
		t.Fatalf("avatar must stay unset, got %v", *service.lastInput.AvatarURL)
	}
}
