package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-escalation-service/internal/api/http/handlers"
	"github.com/spec-kit/sla-escalation-service/internal/auth"
	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/events"
	"github.com/spec-kit/sla-escalation-service/internal/repository/memstore"
	"github.com/spec-kit/sla-escalation-service/internal/service"
)

const testServiceKey = "integration-key"

type testServer struct {
	app    *fiber.App
	repos  memstore.Repositories
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repos := memstore.New(memstore.WithDefaultSLAConfigs()).Repositories()
	dispatcher := events.NewInMemoryDispatcher(nil)
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	notifications := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: repos.Notifications,
		EscalationRepo:   repos.Escalations,
		Dispatcher:       dispatcher,
	})
	escalations := service.NewEscalationService(service.EscalationDependencies{
		EscalationRepo: repos.Escalations,
		AssignmentRepo: repos.Assignments,
		StaffRepo:      repos.Staff,
		Notifier:       notifications,
		Dispatcher:     dispatcher,
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:    repos.Tickets,
		EventRepo:     repos.TicketEvents,
		ViolationRepo: repos.Violations,
		Dispatcher:    dispatcher,
	})

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	RegisterMiddlewares(app, zap.NewNop(), nil, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("sla-escalation-service", "test", nil, nil, nil),
		Staff:          handlers.NewStaffHandler(nil, nil),
		SLA:            handlers.NewSLAHandler(nil, nil),
		Tickets:        handlers.NewTicketsHandler(tickets),
		Escalations:    handlers.NewEscalationsHandler(escalations),
		Notifications:  handlers.NewNotificationsHandler(notifications),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, repos.Staff, testServiceKey),
	})
	return &testServer{app: app, repos: repos, tokens: tokens}
}

func (s *testServer) staffToken(t *testing.T, name string, role domain.StaffRole) (string, string) {
	t.Helper()
	member := &domain.StaffMember{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		Role:         role,
		Active:       true,
		OnDuty:       true,
	}
	if err := s.repos.Staff.Create(context.Background(), member); err != nil {
		t.Fatalf("create staff: %v", err)
	}
	token, _, err := s.tokens.GenerateToken(member.ID, domain.SubjectTypeStaff, &member.Role)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return member.ID, token
}

func (s *testServer) do(t *testing.T, method, path, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode %s %s response %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, decoded
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestSecondAcceptGetsAlreadyAssigned(t *testing.T) {
	srv := newTestServer(t)
	status, body := srv.do(t, "POST", "/escalations",
		`{"conversation_id":"conv-1","priority":2,"reason":"customer asked for a human"}`,
		map[string]string{"X-Service-Key": testServiceKey})
	if status != fiber.StatusCreated {
		t.Fatalf("enqueue status = %d body = %v", status, body)
	}
	data, _ := body["data"].(map[string]any)
	itemID, _ := data["id"].(string)
	if itemID == "" {
		t.Fatalf("missing escalation id in %v", body)
	}

	winnerID, winnerToken := srv.staffToken(t, "ana", domain.StaffRoleAgent)
	_, loserToken := srv.staffToken(t, "bo", domain.StaffRoleAgent)
	acceptPath := fmt.Sprintf("/escalations/%s/accept", itemID)

	status, body = srv.do(t, "POST", acceptPath, "", bearer(winnerToken))
	if status != fiber.StatusOK {
		t.Fatalf("first accept status = %d body = %v", status, body)
	}
	data, _ = body["data"].(map[string]any)
	if data["assigned_to"] != winnerID {
		t.Fatalf("assigned_to = %v, want %s", data["assigned_to"], winnerID)
	}

	status, body = srv.do(t, "POST", acceptPath, "", bearer(loserToken))
	if status != fiber.StatusConflict {
		t.Fatalf("second accept status = %d body = %v", status, body)
	}
	if code := errorCode(body); code != "ALREADY_ASSIGNED" {
		t.Fatalf("error code = %q, want ALREADY_ASSIGNED", code)
	}
}

func TestServiceCallerCannotAccept(t *testing.T) {
	srv := newTestServer(t)
	status, body := srv.do(t, "POST", "/escalations",
		`{"conversation_id":"conv-1","priority":1,"reason":"help"}`,
		map[string]string{"X-Service-Key": testServiceKey})
	if status != fiber.StatusCreated {
		t.Fatalf("enqueue status = %d body = %v", status, body)
	}
	data, _ := body["data"].(map[string]any)

	status, body = srv.do(t, "POST", fmt.Sprintf("/escalations/%v/accept", data["id"]), "",
		map[string]string{"X-Service-Key": testServiceKey})
	if status != fiber.StatusForbidden || errorCode(body) != "FORBIDDEN" {
		t.Fatalf("status = %d body = %v", status, body)
	}
}

func TestAgentCannotEnqueue(t *testing.T) {
	srv := newTestServer(t)
	_, token := srv.staffToken(t, "ana", domain.StaffRoleAgent)
	status, body := srv.do(t, "POST", "/escalations",
		`{"conversation_id":"conv-1","priority":1,"reason":"help"}`, bearer(token))
	if status != fiber.StatusForbidden {
		t.Fatalf("status = %d body = %v", status, body)
	}
}

func TestAuthenticationErrors(t *testing.T) {
	srv := newTestServer(t)
	cases := []struct {
		name    string
		headers map[string]string
	}{
		{"missing header", nil},
		{"wrong service key", map[string]string{"X-Service-Key": "nope"}},
		{"malformed bearer", map[string]string{"Authorization": "Token abc"}},
		{"invalid token", bearer("not-a-jwt")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := srv.do(t, "GET", "/escalations", "", tc.headers)
			if status != fiber.StatusUnauthorized || errorCode(body) != "UNAUTHORIZED" {
				t.Fatalf("status = %d body = %v", status, body)
			}
		})
	}
}

func TestUnknownRouteReturnsJSONError(t *testing.T) {
	srv := newTestServer(t)
	status, body := srv.do(t, "GET", "/does-not-exist", "", nil)
	if status != fiber.StatusNotFound || errorCode(body) != "NOT_FOUND" {
		t.Fatalf("status = %d body = %v", status, body)
	}
}

func TestInboundMessageCreatesThenReuses(t *testing.T) {
	srv := newTestServer(t)
	key := map[string]string{"X-Service-Key": testServiceKey}

	status, body := srv.do(t, "POST", "/conversations/conv-9/inbound", `{}`, key)
	if status != fiber.StatusCreated {
		t.Fatalf("first inbound status = %d body = %v", status, body)
	}
	status, body = srv.do(t, "POST", "/conversations/conv-9/inbound", `{}`, key)
	if status != fiber.StatusOK {
		t.Fatalf("second inbound status = %d body = %v", status, body)
	}
}

func TestReadyWithoutExternalStores(t *testing.T) {
	srv := newTestServer(t)
	status, body := srv.do(t, "GET", "/health/ready", "", nil)
	if status != fiber.StatusOK || body["status"] != "ready" {
		t.Fatalf("status = %d body = %v", status, body)
	}
	deps, _ := body["dependencies"].(map[string]any)
	if deps["postgres"] != "disabled" || deps["redis"] != "disabled" {
		t.Fatalf("dependencies = %v", deps)
	}
}
