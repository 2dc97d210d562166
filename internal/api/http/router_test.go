package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/maintenance-service/internal/api/http"
	"github.com/spec-kit/maintenance-service/internal/api/http/handlers"
	"github.com/spec-kit/maintenance-service/internal/auth"
	"github.com/spec-kit/maintenance-service/internal/config"
	"github.com/spec-kit/maintenance-service/internal/events"
	"github.com/spec-kit/maintenance-service/internal/observability"
	"github.com/spec-kit/maintenance-service/internal/persistence"
	"github.com/spec-kit/maintenance-service/internal/repository/memory"
	"github.com/spec-kit/maintenance-service/internal/service"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type apiClient struct {
	t   *testing.T
	app *fiber.App
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics("maintenance-test")
	operators := memory.NewOperators()
	redis := &persistence.Redis{}

	deps := service.Dependencies{
		Store:      memory.NewStore(time.Second),
		Numbers:    persistence.NewTicketNumberer(redis, "", logger),
		Operators:  operators,
		AlertCache: persistence.NewAlertCache(redis, time.Minute),
		Dispatcher: events.NewInMemoryDispatcher(logger),
		Logger:     logger,
		Metrics:    metrics,
		Retry:      service.DefaultRetryPolicy(),
	}
	authService := service.NewAuthService(config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 60, BcryptCost: 4}, operators, nil, logger)
	if err := authService.SeedAdmin(context.Background(), "admin@example.com", "admin-password"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, 0)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler("maintenance-service", "test", map[string]handlers.Pinger{"postgres": &persistence.Postgres{}, "redis": redis}),
		Auth:           handlers.NewAuthHandler(authService, operators),
		Tickets:        handlers.NewTicketsHandler(service.NewTicketService(deps)),
		Materials:      handlers.NewMaterialsHandler(service.NewInventoryService(deps)),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), operators),
		Metrics:        metrics,
	})
	return &apiClient{t: t, app: app}
}

func (a *apiClient) do(method, path, token string, body any) (int, envelope) {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			a.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.app.Test(req, -1)
	if err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &env)
	}
	return resp.StatusCode, env
}

func (a *apiClient) login(email, password string) (string, string) {
	a.t.Helper()
	status, env := a.do("POST", "/auth/login", "", map[string]string{"email": email, "password": password})
	if status != fiber.StatusOK {
		a.t.Fatalf("login %s: status %d", email, status)
	}
	var out struct {
		AccessToken string `json:"access_token"`
		Operator    struct {
			ID string `json:"id"`
		} `json:"operator"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		a.t.Fatalf("decode login: %v", err)
	}
	return out.AccessToken, out.Operator.ID
}

func decodeID(t *testing.T, env envelope) string {
	t.Helper()
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil || out.ID == "" {
		t.Fatalf("decode id from %s: %v", env.Data, err)
	}
	return out.ID
}

func TestHealthReportsDisabledDependencies(t *testing.T) {
	api := newAPI(t)
	if status, _ := api.do("GET", "/health/live", "", nil); status != fiber.StatusOK {
		t.Fatalf("live: %d", status)
	}
	if status, _ := api.do("GET", "/health/ready", "", nil); status != fiber.StatusOK {
		t.Fatalf("ready with disabled deps: %d", status)
	}
}

func TestRoutesRequireAuthentication(t *testing.T) {
	api := newAPI(t)
	status, env := api.do("GET", "/api/v1/tickets", "", nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("got %d want 401", status)
	}
	if env.Error == nil || env.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("unexpected error body %+v", env.Error)
	}
	if status, _ := api.do("POST", "/auth/login", "", map[string]string{"email": "admin@example.com", "password": "wrong-password"}); status != fiber.StatusUnauthorized {
		t.Fatalf("bad password: got %d", status)
	}
}

func TestCatalogWritesNeedCapability(t *testing.T) {
	api := newAPI(t)
	admin, _ := api.login("admin@example.com", "admin-password")

	status, _ := api.do("POST", "/api/v1/operators", admin, map[string]string{
		"name": "Tess Tech", "email": "tech@example.com", "password": "tech-password", "role": "TECHNICIAN",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("create operator: %d", status)
	}
	tech, _ := api.login("tech@example.com", "tech-password")

	material := map[string]any{"code": "FLT-10", "name": "Oil filter", "unit": "pcs", "unit_price": "7.25", "min_stock_level": "1"}
	if status, env := api.do("POST", "/api/v1/materials", tech, material); status != fiber.StatusForbidden || env.Error == nil || env.Error.Code != "FORBIDDEN" {
		t.Fatalf("technician create material: %d", status)
	}
	if status, _ := api.do("POST", "/api/v1/operators", tech, map[string]string{"name": "x", "email": "x@example.com", "password": "12345678", "role": "ADMIN"}); status != fiber.StatusForbidden {
		t.Fatalf("technician create operator: %d", status)
	}
	if status, _ := api.do("POST", "/api/v1/materials", admin, material); status != fiber.StatusCreated {
		t.Fatalf("admin create material: %d", status)
	}
}

func TestTicketConsumesStockOverHTTP(t *testing.T) {
	api := newAPI(t)
	admin, adminID := api.login("admin@example.com", "admin-password")

	status, env := api.do("POST", "/api/v1/materials", admin, map[string]any{
		"code": "BRG-1", "name": "Bearing", "unit": "pcs", "unit_price": "4", "min_stock_level": "2", "opening_stock": "10",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("create material: %d %+v", status, env.Error)
	}
	materialID := decodeID(t, env)

	status, env = api.do("POST", "/api/v1/tickets", admin, map[string]any{
		"kind": "REPAIR", "equipment_id": "pump-7", "title": "Replace bearing", "assignee_id": adminID,
	})
	if status != fiber.StatusCreated {
		t.Fatalf("create ticket: %d %+v", status, env.Error)
	}
	ticketID := decodeID(t, env)

	if status, env := api.do("POST", "/api/v1/tickets/"+ticketID+"/materials", admin, map[string]any{"material_id": materialID, "quantity": "1"}); status != fiber.StatusConflict || env.Error == nil || env.Error.Code != "INVALID_TRANSITION" {
		t.Fatalf("issue before start: %d", status)
	}
	for _, step := range []string{"approve", "start"} {
		if status, env := api.do("POST", "/api/v1/tickets/"+ticketID+"/"+step, admin, nil); status != fiber.StatusOK {
			t.Fatalf("%s: %d %+v", step, status, env.Error)
		}
	}

	if status, env := api.do("POST", "/api/v1/tickets/"+ticketID+"/materials", admin, map[string]any{"material_id": materialID, "quantity": "4"}); status != fiber.StatusCreated {
		t.Fatalf("issue: %d %+v", status, env.Error)
	}
	status, env = api.do("POST", "/api/v1/tickets/"+ticketID+"/materials", admin, map[string]any{"material_id": materialID, "quantity": "100"})
	if status != fiber.StatusConflict || env.Error == nil || env.Error.Code != "INSUFFICIENT_STOCK" {
		t.Fatalf("over-issue: %d", status)
	}

	status, env = api.do("GET", "/api/v1/tickets/"+ticketID+"/cost", admin, nil)
	if status != fiber.StatusOK {
		t.Fatalf("cost: %d", status)
	}
	var report struct {
		Cost struct {
			MaterialCost string `json:"material_cost"`
		} `json:"cost"`
		Consistent bool `json:"consistent"`
	}
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatalf("decode cost: %v", err)
	}
	if report.Cost.MaterialCost != "16" || !report.Consistent {
		t.Fatalf("unexpected cost report %+v", report)
	}

	status, env = api.do("GET", "/api/v1/materials/"+materialID+"/reconciliation", admin, nil)
	if status != fiber.StatusOK {
		t.Fatalf("reconcile: %d", status)
	}
	var rec struct {
		Cached     string `json:"cached"`
		Consistent bool   `json:"consistent"`
	}
	if err := json.Unmarshal(env.Data, &rec); err != nil {
		t.Fatalf("decode reconciliation: %v", err)
	}
	if rec.Cached != "6" || !rec.Consistent {
		t.Fatalf("unexpected reconciliation %+v", rec)
	}

	if status, _ := api.do("GET", "/api/v1/tickets/does-not-exist", admin, nil); status != fiber.StatusNotFound {
		t.Fatalf("missing ticket: %d", status)
	}
}
