package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nanolink/nanolink/internal/config"
	"github.com/nanolink/nanolink/internal/logging"
)

func devConfig() config.Config {
	return config.Config{
		AppName:            "NanoLink",
		AppEnv:             "development",
		JWTSecret:          "test-secret",
		TokenTTL:           time.Hour,
		DemoOTP:            "1234",
		OTPTTL:             time.Minute,
		OTPRateLimitPerMin: 5,
		AdminPhone:         "+254700000000",
		SettlementDelay:    time.Second,
		RecoverySchedule:   "@every 1m",
		RecoveryStaleAfter: time.Minute,
		IdempotencyTTL:     time.Hour,
	}
}

type client struct {
	t     *testing.T
	app   *fiber.App
	token string
}

func (c *client) do(method, path, body string) (int, map[string]any) {
	c.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if c.token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	}
	resp, err := c.app.Test(req, -1)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (c *client) login(phone, extra string) {
	c.t.Helper()
	if status, body := c.do(fiber.MethodPost, "/api/auth/send-otp", `{"phone":"`+phone+`"}`); status != fiber.StatusOK || body["otp"] != "1234" {
		c.t.Fatalf("send-otp: %d %v", status, body)
	}
	status, body := c.do(fiber.MethodPost, "/api/auth/verify-otp", `{"phone":"`+phone+`","otp":"1234"`+extra+`}`)
	if status != fiber.StatusOK {
		c.t.Fatalf("verify-otp: %d %v", status, body)
	}
	c.token, _ = body["token"].(string)
	if c.token == "" {
		c.t.Fatalf("missing token in %v", body)
	}
}

func TestDevServerFlow(t *testing.T) {
	srv, err := New(devConfig(), nil, nil, nil, logging.Discard())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	c := &client{t: t, app: srv.App()}

	if status, _ := c.do(fiber.MethodGet, "/healthz", ""); status != fiber.StatusOK {
		t.Fatalf("healthz: %d", status)
	}
	if status, body := c.do(fiber.MethodGet, "/api/transactions/rates", ""); status != fiber.StatusOK || body["rates"] == nil {
		t.Fatalf("rates: %d %v", status, body)
	}
	if status, body := c.do(fiber.MethodGet, "/api/wallets", ""); status != fiber.StatusUnauthorized || body["error"] == nil {
		t.Fatalf("expected 401 with error body, got %d %v", status, body)
	}
	if status, _ := c.do(fiber.MethodPost, "/api/auth/verify-otp", `{"phone":"+254711111111","otp":"0000"}`); status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for unrequested otp, got %d", status)
	}

	c.login("+254711111111", `,"firstName":"Amina","lastName":"Otieno","country":"kenya"`)

	status, body := c.do(fiber.MethodGet, "/api/wallets", "")
	if status != fiber.StatusOK {
		t.Fatalf("wallets: %d", status)
	}
	if wallets, _ := body["wallets"].([]any); len(wallets) != 3 {
		t.Fatalf("expected three default wallets, got %v", body["wallets"])
	}

	status, body = c.do(fiber.MethodPost, "/api/transactions/off-ramp",
		`{"fromAmount":10,"fromCurrency":"USDT","toCurrency":"KES","paymentMethod":"mpesa","recipientPhone":"+254711111111"}`)
	if status != fiber.StatusBadRequest || body["error"] != "Insufficient balance" {
		t.Fatalf("expected insufficient balance, got %d %v", status, body)
	}

	status, body = c.do(fiber.MethodPost, "/api/transactions/on-ramp",
		`{"fromAmount":1000,"fromCurrency":"KES","toCurrency":"USDT","paymentMethod":"mpesa","mobileMoneyPhone":"+254711111111"}`)
	if status != fiber.StatusOK {
		t.Fatalf("on-ramp: %d %v", status, body)
	}

	if status, _ := c.do(fiber.MethodGet, "/api/admin/stats", ""); status != fiber.StatusForbidden {
		t.Fatalf("expected 403 for customer on admin route, got %d", status)
	}

	operator := &client{t: t, app: srv.App()}
	operator.login("+254700000000", `,"firstName":"Ops","lastName":"Desk","country":"kenya"`)
	status, body = operator.do(fiber.MethodGet, "/api/admin/stats", "")
	if status != fiber.StatusOK {
		t.Fatalf("admin stats: %d %v", status, body)
	}
	txStats, _ := body["transactions"].(map[string]any)
	if txStats["total"] != float64(1) {
		t.Fatalf("expected one transaction in stats, got %v", body)
	}
}

func TestStartAndShutdown(t *testing.T) {
	srv, err := New(devConfig(), nil, nil, nil, logging.Discard())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestProductionRequiresBackends(t *testing.T) {
	cfg := devConfig()
	cfg.AppEnv = "production"
	if _, err := New(cfg, nil, nil, nil, logging.Discard()); err == nil {
		t.Fatal("expected an error without postgres and redis")
	}
}
