package mobilemoney

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnsupportedProvider is returned for provider names outside the registry.
var ErrUnsupportedProvider = errors.New("unsupported payment provider")

// Payment statuses reported by providers.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Request is a collection or payout instruction.
type Request struct {
	Phone     string
	Amount    decimal.Decimal
	Reference string
}

// Result is the provider's acknowledgement. Each network names its own
// identifier, so only one of the id fields is set.
type Result struct {
	Success             bool   `json:"success"`
	Message             string `json:"message"`
	Reference           string `json:"reference"`
	CheckoutRequestID   string `json:"checkoutRequestId,omitempty"`
	SessionID           string `json:"sessionId,omitempty"`
	TransactionID       string `json:"transactionId,omitempty"`
	ResponseCode        string `json:"responseCode,omitempty"`
	ResponseDescription string `json:"responseDescription,omitempty"`
	Status              string `json:"status,omitempty"`
}

// ProviderReference returns the reference to store on the transaction.
func (r Result) ProviderReference() string {
	if r.Reference != "" {
		return r.Reference
	}
	for _, id := range []string{r.TransactionID, r.CheckoutRequestID, r.SessionID} {
		if id != "" {
			return id
		}
	}
	return ""
}

// StatusResult is a payment status lookup.
type StatusResult struct {
	Reference string    `json:"reference"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Provider is a mobile-money network able to collect and pay out funds.
type Provider interface {
	Name() string
	Currency() string
	InitiatePayment(ctx context.Context, req Request) (Result, error)
	SendPayout(ctx context.Context, req Request) (Result, error)
	CheckStatus(ctx context.Context, reference string) (StatusResult, error)
}

type idField int

const (
	idTransaction idField = iota
	idCheckout
	idSession
)

// networkProfile describes how one simulated network answers.
type networkProfile struct {
	name            string
	label           string
	currency        string
	initiateMessage string
	initiateStatus  string
	initiatePrefix  string
	initiateID      idField
	payoutMessage   string
	payoutPrefix    string
	confirmAfter    time.Duration
}

// Options tune the simulated providers.
type Options struct {
	Logger *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
	// Float64 returns a value in [0, 1) and drives status lookups. Defaults to math/rand.
	Float64 func() float64
	// DisableConfirmLog suppresses the delayed "payment completed" log line.
	DisableConfirmLog bool
}

// StubProvider simulates a mobile-money network: every call succeeds with a
// synthetic reference and nothing leaves the process.
type StubProvider struct {
	profile networkProfile
	opts    Options
}

func newStub(profile networkProfile, opts Options) *StubProvider {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Float64 == nil {
		opts.Float64 = rand.Float64
	}
	opts.Logger = opts.Logger.With(slog.String("provider", profile.name))
	return &StubProvider{profile: profile, opts: opts}
}

// NewMPesa simulates Safaricom M-Pesa STK push in KES.
func NewMPesa(opts Options) *StubProvider {
	return newStub(networkProfile{
		name:            "mpesa",
		label:           "M-Pesa",
		currency:        "KES",
		initiateMessage: "STK push sent successfully",
		initiatePrefix:  "ws_CO_",
		initiateID:      idCheckout,
		payoutMessage:   "Payout sent successfully",
		payoutPrefix:    "MP",
		confirmAfter:    5 * time.Second,
	}, opts)
}

// NewMTN simulates MTN Mobile Money in UGX.
func NewMTN(opts Options) *StubProvider {
	return newStub(networkProfile{
		name:            "mtn",
		label:           "MTN",
		currency:        "UGX",
		initiateMessage: "Payment request sent",
		initiateStatus:  StatusPending,
		initiatePrefix:  "MTN_",
		payoutMessage:   "Payout sent successfully",
		payoutPrefix:    "MTN_OUT_",
		confirmAfter:    7 * time.Second,
	}, opts)
}

// NewVodacom simulates Vodacom M-Pesa in TZS.
func NewVodacom(opts Options) *StubProvider {
	return newStub(networkProfile{
		name:            "vodacom",
		label:           "Vodacom",
		currency:        "TZS",
		initiateMessage: "Payment initiated",
		initiateStatus:  StatusPending,
		initiatePrefix:  "VDC_",
		initiateID:      idSession,
		payoutMessage:   "Payout processed",
		payoutPrefix:    "VDC_OUT_",
		confirmAfter:    6 * time.Second,
	}, opts)
}

// NewEVC simulates Hormuud EVC Plus in SOS.
func NewEVC(opts Options) *StubProvider {
	return newStub(networkProfile{
		name:            "evc",
		label:           "EVC",
		currency:        "SOS",
		initiateMessage: "EVC payment request sent",
		initiateStatus:  StatusPending,
		initiatePrefix:  "EVC_",
		payoutMessage:   "EVC payout sent",
		payoutPrefix:    "EVC_OUT_",
		confirmAfter:    8 * time.Second,
	}, opts)
}

func (p *StubProvider) Name() string     { return p.profile.name }
func (p *StubProvider) Currency() string { return p.profile.currency }

// InitiatePayment acknowledges a collection request. A log line announcing
// completion follows after the network's confirmation delay; it has no effect
// on any transaction.
func (p *StubProvider) InitiatePayment(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	p.opts.Logger.Info(fmt.Sprintf("initiating %s payment", p.profile.label),
		slog.String("phone", req.Phone),
		slog.String("amount", req.Amount.String()),
		slog.String("currency", p.profile.currency),
		slog.String("reference", req.Reference),
	)

	id := p.syntheticID(p.profile.initiatePrefix)
	res := Result{
		Success:   true,
		Message:   p.profile.initiateMessage,
		Reference: req.Reference,
		Status:    p.profile.initiateStatus,
	}
	switch p.profile.initiateID {
	case idCheckout:
		res.CheckoutRequestID = id
		res.ResponseCode = "0"
		res.ResponseDescription = "Success. Request accepted for processing"
	case idSession:
		res.SessionID = id
	default:
		res.TransactionID = id
	}

	if !p.opts.DisableConfirmLog && p.profile.confirmAfter > 0 {
		logger, reference, label := p.opts.Logger, req.Reference, p.profile.label
		time.AfterFunc(p.profile.confirmAfter, func() {
			logger.Info(fmt.Sprintf("%s payment completed", label), slog.String("reference", reference))
		})
	}
	return res, nil
}

// SendPayout acknowledges a disbursement as completed.
func (p *StubProvider) SendPayout(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	p.opts.Logger.Info(fmt.Sprintf("sending %s payout", p.profile.label),
		slog.String("phone", req.Phone),
		slog.String("amount", req.Amount.String()),
		slog.String("currency", p.profile.currency),
		slog.String("reference", req.Reference),
	)
	return Result{
		Success:       true,
		Message:       p.profile.payoutMessage,
		Reference:     req.Reference,
		TransactionID: p.syntheticID(p.profile.payoutPrefix),
		Status:        StatusCompleted,
	}, nil
}

// CheckStatus reports completed four times out of five and pending otherwise.
func (p *StubProvider) CheckStatus(ctx context.Context, reference string) (StatusResult, error) {
	if err := ctx.Err(); err != nil {
		return StatusResult{}, err
	}
	status := StatusPending
	if p.opts.Float64() > 0.2 {
		status = StatusCompleted
	}
	return StatusResult{Reference: reference, Status: status, Timestamp: p.opts.Now().UTC()}, nil
}

func (p *StubProvider) syntheticID(prefix string) string {
	return prefix + fmt.Sprint(p.opts.Now().UnixMilli())
}

// Registry resolves providers by case-insensitive name.
type Registry struct {
	providers map[string]Provider
	order     []string
}

// NewRegistry indexes the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		name := strings.ToLower(p.Name())
		if _, exists := r.providers[name]; !exists {
			r.order = append(r.order, name)
		}
		r.providers[name] = p
	}
	return r
}

// DefaultRegistry holds the four supported networks.
func DefaultRegistry(opts Options) *Registry {
	return NewRegistry(NewMPesa(opts), NewMTN(opts), NewVodacom(opts), NewEVC(opts))
}

// Lookup returns the provider registered under name.
func (r *Registry) Lookup(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, name)
	}
	return p, nil
}

// Names lists registered provider names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}
