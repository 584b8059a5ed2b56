package mobilemoney

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/nanolink/nanolink/internal/logging"
)

func fixedOptions(f float64) Options {
	at := time.UnixMilli(1700000000000)
	return Options{
		Logger:            logging.Discard(),
		Now:               func() time.Time { return at },
		Float64:           func() float64 { return f },
		DisableConfirmLog: true,
	}
}

func TestProvidersShareOneInterface(t *testing.T) {
	reg := DefaultRegistry(fixedOptions(0.5))
	ctx := context.Background()
	req := Request{Phone: "+254711111111", Amount: decimal.NewFromInt(1000), Reference: "NL_tx"}

	cases := []struct {
		name, currency, initiateID, payoutID string
	}{
		{"mpesa", "KES", "ws_CO_1700000000000", "MP1700000000000"},
		{"MTN", "UGX", "MTN_1700000000000", "MTN_OUT_1700000000000"},
		{"vodacom", "TZS", "VDC_1700000000000", "VDC_OUT_1700000000000"},
		{"evc", "SOS", "EVC_1700000000000", "EVC_OUT_1700000000000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := reg.Lookup(tc.name)
			if err != nil {
				t.Fatalf("lookup: %v", err)
			}
			if p.Currency() != tc.currency {
				t.Fatalf("expected %s got %s", tc.currency, p.Currency())
			}
			in, err := p.InitiatePayment(ctx, req)
			if err != nil || !in.Success || in.Reference != "NL_tx" {
				t.Fatalf("initiate: %+v %v", in, err)
			}
			if got := in.TransactionID + in.CheckoutRequestID + in.SessionID; got != tc.initiateID {
				t.Fatalf("expected id %s got %s", tc.initiateID, got)
			}
			out, err := p.SendPayout(ctx, req)
			if err != nil || out.Status != StatusCompleted || out.TransactionID != tc.payoutID {
				t.Fatalf("payout: %+v %v", out, err)
			}
			if out.ProviderReference() != "NL_tx" {
				t.Fatalf("unexpected provider reference %s", out.ProviderReference())
			}
		})
	}

	if _, err := reg.Lookup("paypal"); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected unsupported provider, got %v", err)
	}
}

func TestCheckStatusThreshold(t *testing.T) {
	ctx := context.Background()
	done, _ := NewMTN(fixedOptions(0.9)).CheckStatus(ctx, "ref")
	if done.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	waiting, _ := NewMTN(fixedOptions(0.2)).CheckStatus(ctx, "ref")
	if waiting.Status != StatusPending {
		t.Fatalf("expected pending, got %s", waiting.Status)
	}
}

func TestHandler(t *testing.T) {
	h := NewHandler(DefaultRegistry(fixedOptions(0.9)), logging.Discard())
	app := fiber.New()
	app.Post("/initiate-payment", h.InitiatePayment)
	app.Post("/send-payout", h.SendPayout)
	app.Get("/status/:reference", h.Status)

	post := func(path, body string) int {
		req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		return resp.StatusCode
	}

	if code := post("/initiate-payment", `{"provider":"mpesa","phone":"+254711111111","amount":100}`); code != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for missing reference, got %d", code)
	}
	if code := post("/send-payout", `{"provider":"paypal","phone":"1","amount":100,"reference":"r"}`); code != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for unknown provider, got %d", code)
	}
	if code := post("/initiate-payment", `{"provider":"EVC","phone":"1","amount":"100","reference":"r"}`); code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/status/NL_abc", nil))
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var st StatusResult
	json.NewDecoder(resp.Body).Decode(&st)
	if st.Reference != "NL_abc" || st.Status != StatusCompleted {
		t.Fatalf("unexpected status %+v", st)
	}
}
