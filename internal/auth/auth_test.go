package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/nanolink/nanolink/internal/identity"
	"github.com/nanolink/nanolink/internal/ledger"
	"github.com/nanolink/nanolink/internal/logging"
	"github.com/nanolink/nanolink/internal/middleware"
	"github.com/nanolink/nanolink/internal/wallet"
)

func newTestService(store OTPStore) *Service {
	ids := identity.NewService(identity.NewMemoryRepository(), "+254700000000")
	wallets := wallet.NewService(wallet.NewMemoryRepository(), ledger.NewInMemory())
	return NewService(ids, wallets, NewOTPIssuer(store, "1234", time.Minute), NewTokenManager("test-secret", 7*24*time.Hour), logging.Discard())
}

func TestTokenRoundTripAndExpiry(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	token, exp, err := m.Issue(identity.User{ID: "u1", Phone: "+1", Role: identity.RoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if exp.Sub(time.Now()) < 59*time.Minute {
		t.Fatalf("unexpected expiry %v", exp)
	}
	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "u1" || claims.Role != identity.RoleAdmin || claims.Phone != "+1" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := NewTokenManager("other", time.Hour).Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid signature, got %v", err)
	}

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := m.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token, got %v", err)
	}
}

func TestOTPIssuerWithRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	issuer := NewOTPIssuer(NewRedisOTPStore(cache), "1234", time.Minute)
	ctx := context.Background()

	if err := issuer.Verify(ctx, "+254711111111", "1234"); !errors.Is(err, ErrOTPNotRequested) {
		t.Fatalf("expected not requested, got %v", err)
	}
	if _, err := issuer.Issue(ctx, "+254711111111"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := issuer.Verify(ctx, "+254711111111", "0000"); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected invalid otp, got %v", err)
	}
	if err := issuer.Verify(ctx, "+254711111111", "1234"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := issuer.Verify(ctx, "+254711111111", "1234"); !errors.Is(err, ErrOTPNotRequested) {
		t.Fatalf("expected code to be consumed, got %v", err)
	}

	issuer.Issue(ctx, "+254711111111")
	mr.FastForward(2 * time.Minute)
	if err := issuer.Verify(ctx, "+254711111111", "1234"); !errors.Is(err, ErrOTPNotRequested) {
		t.Fatalf("expected expired code, got %v", err)
	}
}

func TestVerifyOTPRegistersThenLogsIn(t *testing.T) {
	svc := newTestService(NewMemoryOTPStore())
	ctx := context.Background()

	svc.SendOTP(ctx, "+254711111111", "")
	if _, err := svc.VerifyOTP(ctx, VerifyInput{Phone: "+254711111111", OTP: "1234"}); !errors.Is(err, identity.ErrMissingProfile) {
		t.Fatalf("expected missing profile, got %v", err)
	}
	if _, err := svc.VerifyOTP(ctx, VerifyInput{Phone: "+254711111111", OTP: "1234", FirstName: "Amina", LastName: "Otieno", Country: "france"}); !errors.Is(err, identity.ErrInvalidCountry) {
		t.Fatalf("expected invalid country, got %v", err)
	}

	// The code survives failed registrations and is spent by the successful one.
	first, err := svc.VerifyOTP(ctx, VerifyInput{Phone: "+254711111111", OTP: "1234", FirstName: "Amina", LastName: "Otieno", Country: "uganda"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !first.Created || len(first.Wallets) != 3 {
		t.Fatalf("expected new user with 3 wallets, got %+v", first)
	}
	if _, err := svc.VerifyOTP(ctx, VerifyInput{Phone: "+254711111111", OTP: "1234"}); !errors.Is(err, ErrOTPNotRequested) {
		t.Fatalf("expected spent code, got %v", err)
	}

	svc.SendOTP(ctx, "+254711111111", "")
	second, err := svc.VerifyOTP(ctx, VerifyInput{Phone: "+254711111111", OTP: "1234"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if second.Created || second.User.ID != first.User.ID {
		t.Fatalf("expected existing user login, got %+v", second.User)
	}

	session, err := svc.Resolve(ctx, second.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if session.UserID != first.User.ID || session.Role != identity.RoleUser {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestHandlers(t *testing.T) {
	svc := newTestService(NewMemoryOTPStore())
	h := NewHandler(svc, true, logging.Discard())
	app := fiber.New()
	app.Post("/auth/send-otp", h.SendOTP)
	app.Post("/auth/verify-otp", h.VerifyOTP)
	app.Get("/auth/me", middleware.JWTAuth(svc), h.Me)

	post := func(path, body string) (int, map[string]any) {
		req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		var out map[string]any
		json.NewDecoder(resp.Body).Decode(&out)
		return resp.StatusCode, out
	}

	if code, _ := post("/auth/send-otp", `{}`); code != fiber.StatusBadRequest {
		t.Fatalf("expected 400 without contact, got %d", code)
	}
	code, body := post("/auth/send-otp", `{"phone":"+254700000000"}`)
	if code != fiber.StatusOK || body["otp"] != "1234" {
		t.Fatalf("unexpected send-otp response %d %v", code, body)
	}
	if code, _ := post("/auth/verify-otp", `{"phone":"+254700000000","otp":"9999"}`); code != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for wrong otp, got %d", code)
	}
	code, body = post("/auth/verify-otp", `{"phone":"+254700000000","otp":"1234","firstName":"Ops","lastName":"Desk","country":"kenya"}`)
	if code != fiber.StatusOK {
		t.Fatalf("verify-otp: %d %v", code, body)
	}
	user := body["user"].(map[string]any)
	if user["role"] != identity.RoleAdmin || user["kycStatus"] != identity.KYCPending {
		t.Fatalf("unexpected user %v", user)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/auth/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+body["token"].(string))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 from /auth/me, got %d", resp.StatusCode)
	}
	var me struct {
		Wallets []map[string]any `json:"wallets"`
	}
	json.NewDecoder(resp.Body).Decode(&me)
	if len(me.Wallets) != 3 {
		t.Fatalf("expected 3 wallets, got %d", len(me.Wallets))
	}
}
