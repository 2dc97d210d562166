package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/repository/memory"
	apperrors "github.com/spec-kit/maintenance-service/pkg/util"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	token, exp, err := tm.GenerateToken("op-1", domain.OperatorRoleSupervisor)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if time.Until(exp) > time.Minute {
		t.Fatalf("unexpected expiry %s", exp)
	}
	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "op-1" || claims.Role != domain.OperatorRoleSupervisor {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokenRejectsWrongSecretAndExpiry(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	token, _, err := tm.GenerateToken("op-1", domain.OperatorRoleTechnician)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewTokenManager("other", time.Minute).ParseToken(token); err == nil {
		t.Fatal("expected signature failure")
	}
	tm.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := tm.ParseToken(token); err == nil {
		t.Fatal("expected expiry failure")
	}
}

func TestCapabilitiesFor(t *testing.T) {
	if len(CapabilitiesFor(domain.OperatorRoleTechnician)) != 0 {
		t.Fatal("technicians hold no capabilities")
	}
	store := ActorFor(&domain.Operator{ID: "s", Role: domain.OperatorRoleStorekeeper})
	if !store.Can(domain.CapabilityManageStock) || store.Can(domain.CapabilityApproveTickets) {
		t.Fatalf("unexpected storekeeper capabilities %v", store.Capabilities)
	}
	sup := ActorFor(&domain.Operator{ID: "p", Role: domain.OperatorRoleSupervisor})
	if !sup.Can(domain.CapabilityApproveTickets) || sup.Can(domain.CapabilityManageCatalog) {
		t.Fatalf("unexpected supervisor capabilities %v", sup.Capabilities)
	}
	if ValidRole("JANITOR") {
		t.Fatal("unknown role accepted")
	}
}

func TestMiddlewareResolvesActor(t *testing.T) {
	operators := memory.NewOperators()
	_ = operators.Create(context.Background(), &domain.Operator{ID: "op-1", Email: "a@b.c", Role: domain.OperatorRoleStorekeeper, Active: true})
	_ = operators.Create(context.Background(), &domain.Operator{ID: "op-2", Email: "x@b.c", Role: domain.OperatorRoleManager})
	tm := NewTokenManager("secret", time.Minute)
	mw := NewAuthMiddleware(tm, operators)

	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
	}})
	app.Get("/stock", mw.Handle, RequireCapability(domain.CapabilityManageStock), func(c *fiber.Ctx) error {
		actor, _ := ActorFromContext(c)
		return c.SendString(actor.ID)
	})
	app.Get("/approve", mw.Handle, RequireCapability(domain.CapabilityApproveTickets), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	active, _, _ := tm.GenerateToken("op-1", domain.OperatorRoleStorekeeper)
	inactive, _, _ := tm.GenerateToken("op-2", domain.OperatorRoleManager)
	cases := []struct {
		path   string
		token  string
		status int
	}{
		{"/stock", active, fiber.StatusOK},
		{"/approve", active, fiber.StatusForbidden},
		{"/stock", "", fiber.StatusUnauthorized},
		{"/stock", inactive, fiber.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("GET", tc.path, nil)
		if tc.token != "" {
			req.Header.Set("Authorization", "Bearer "+tc.token)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request %s: %v", tc.path, err)
		}
		if resp.StatusCode != tc.status {
			t.Fatalf("%s: got %d want %d", tc.path, resp.StatusCode, tc.status)
		}
	}
}
