package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kobopay/kobopay/internal/apikey"
	"github.com/kobopay/kobopay/internal/config"
	"github.com/kobopay/kobopay/internal/funding"
	"github.com/kobopay/kobopay/internal/identity"
	"github.com/kobopay/kobopay/internal/ledger"
	"github.com/kobopay/kobopay/internal/middleware"
	"github.com/kobopay/kobopay/internal/notification"
	"github.com/kobopay/kobopay/internal/payments"
	"github.com/kobopay/kobopay/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !isDev(d.Cfg.AppEnv) {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	// Services and handlers
	var ledgerBackend ledger.Ledger
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
	}

	var walletRepo wallet.Repository
	if d.DB != nil {
		walletRepo = wallet.NewPostgresRepository(d.DB)
	} else {
		walletRepo = wallet.NewMemoryRepository()
	}
	walletSvc := wallet.NewService(walletRepo, ledgerBackend)

	var identityRepo identity.Repository
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
	}
	identitySvc := identity.NewService(identityRepo, walletSvc)

	var keyRepo apikey.Repository
	if d.DB != nil {
		keyRepo = apikey.NewPostgresRepository(d.DB)
	} else {
		keyRepo = apikey.NewMemoryRepository()
	}
	keySvc := apikey.NewService(keyRepo)

	var provider funding.Provider
	if d.Cfg.PaystackSecretKey != "" {
		provider = funding.NewPaystackProvider(d.Cfg.PaystackBaseURL, d.Cfg.PaystackSecretKey)
	} else {
		provider = funding.StaticProvider{}
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	fundingSvc := funding.NewService(ledgerBackend, walletSvc, provider, d.Cfg.WebhookSecrets(), notifier, d.Logger)
	paymentSvc := payments.NewService(ledgerBackend, walletSvc, notifier, d.Logger)

	validate := validator.New()
	walletHandler := wallet.NewHandler(walletSvc)
	fundingHandler := funding.NewHandler(fundingSvc, validate)
	paymentHandler := payments.NewHandler(paymentSvc, validate)
	keyHandler := apikey.NewHandler(keySvc, validate)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// The provider webhook authenticates with its own signature, not a bearer
	// token, and must stay outside the Idempotency-Key requirement: provider
	// redeliveries are deduplicated by transaction reference in the ledger.
	api.Post("/webhooks/paystack", fundingHandler.Webhook)

	// Protected routes
	protected := api.Group("", middleware.Authenticate([]byte(d.Cfg.JWTSecret), identitySvc, keySvc))
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterWalletRoutes(protected, walletHandler)
	RegisterFundingRoutes(protected, fundingHandler, middleware.DepositRateLimit(d.Cache, d.Cfg.DepositsPerMinute))
	RegisterPaymentRoutes(protected, paymentHandler)
	RegisterKeyRoutes(protected, keyHandler)

	return nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
