package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nanolink/nanolink/internal/admin"
	"github.com/nanolink/nanolink/internal/auth"
	"github.com/nanolink/nanolink/internal/config"
	"github.com/nanolink/nanolink/internal/identity"
	"github.com/nanolink/nanolink/internal/ledger"
	"github.com/nanolink/nanolink/internal/logging"
	"github.com/nanolink/nanolink/internal/middleware"
	"github.com/nanolink/nanolink/internal/mobilemoney"
	"github.com/nanolink/nanolink/internal/notification"
	"github.com/nanolink/nanolink/internal/rates"
	"github.com/nanolink/nanolink/internal/settlement"
	"github.com/nanolink/nanolink/internal/transaction"
	"github.com/nanolink/nanolink/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Notifier notification.Notifier
	Logger   *slog.Logger
}

// Runtime holds the background processes that drive settlement.
type Runtime struct {
	Worker   *settlement.Worker
	Recovery *settlement.Recovery
}

// Setup registers every route on app and returns the settlement runtime. In
// development a missing database or cache falls back to in-memory stores.
func Setup(app *fiber.App, d Deps) (*Runtime, error) {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	var (
		ledgerBackend ledger.Ledger
		identityRepo  identity.Repository
		walletRepo    wallet.Repository
		txRepo        transaction.Repository
		queue         settlement.Queue
		otpStore      auth.OTPStore
	)
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
		identityRepo = identity.NewPostgresRepository(d.DB)
		walletRepo = wallet.NewPostgresRepository(d.DB)
		txRepo = transaction.NewPostgresRepository(d.DB)
	} else {
		d.Logger.Warn("no database configured, using in-memory stores")
		ledgerBackend = ledger.NewInMemory()
		identityRepo = identity.NewMemoryRepository()
		walletRepo = wallet.NewMemoryRepository()
		txRepo = transaction.NewMemoryRepository()
	}
	if d.Cache != nil {
		queue = settlement.NewRedisQueue(d.Cache, "settlement")
		otpStore = auth.NewRedisOTPStore(d.Cache)
	} else {
		d.Logger.Warn("no redis configured, settlement queue and OTPs are in-memory")
		queue = settlement.NewMemoryQueue()
		otpStore = auth.NewMemoryOTPStore()
	}
	notifier := d.Notifier
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(logging.Component(d.Logger, "notification"))
	}

	identitySvc := identity.NewService(identityRepo, d.Cfg.AdminPhone)
	walletSvc := wallet.NewService(walletRepo, ledgerBackend)
	providers := mobilemoney.DefaultRegistry(mobilemoney.Options{Logger: logging.Component(d.Logger, "mobilemoney")})
	txSvc := transaction.NewService(txRepo, walletSvc, rates.NewStaticTable(), providers, queue, transaction.Options{
		SettlementDelay: d.Cfg.SettlementDelay,
		Notifier:        notifier,
		Logger:          logging.Component(d.Logger, "transaction"),
	})
	authSvc := auth.NewService(identitySvc, walletSvc,
		auth.NewOTPIssuer(otpStore, d.Cfg.DemoOTP, d.Cfg.OTPTTL),
		auth.NewTokenManager(d.Cfg.JWTSecret, d.Cfg.TokenTTL),
		logging.Component(d.Logger, "auth"))
	adminSvc := admin.NewService(identitySvc, walletSvc, txSvc, notifier, logging.Component(d.Logger, "admin"))

	settlementLogger := logging.Component(d.Logger, "settlement")
	runtime := &Runtime{
		Worker: settlement.NewWorker(queue, txSvc, settlement.WorkerOptions{
			PollInterval: d.Cfg.SettlementPollInterval,
			Visibility:   d.Cfg.SettlementVisibility,
		}, settlementLogger),
		Recovery: settlement.NewRecovery(txSvc, d.Cfg.RecoverySchedule, d.Cfg.RecoveryStaleAfter, settlementLogger),
	}

	RegisterHealthRoutes(app, d)

	api := app.Group("/api")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID := middleware.RequestIDFrom(c)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	jwt := middleware.JWTAuth(authSvc)
	idempotent := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)

	RegisterAuthRoutes(api, auth.NewHandler(authSvc, !d.Cfg.IsProduction(), d.Logger), jwt,
		middleware.OTPRateLimit(d.Cache, d.Cfg.OTPRateLimitPerMin))
	RegisterMobileMoneyRoutes(api, mobilemoney.NewHandler(providers, d.Logger))
	RegisterTransactionRoutes(api, transaction.NewHandler(txSvc, d.Logger), jwt, idempotent)
	RegisterWalletRoutes(api, wallet.NewHandler(walletSvc, d.Logger), jwt, idempotent)
	RegisterAdminRoutes(api, admin.NewHandler(adminSvc, d.Logger), jwt)

	return runtime, nil
}
