package routes

import (
	"log"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"billing-app/config"
	"billing-app/internal/alerts"
	adminapi "billing-app/internal/api/admin"
	billingapi "billing-app/internal/api/billing"
	"billing-app/internal/api/paymentwebhook"
	plansapi "billing-app/internal/api/plans"
	"billing-app/internal/app/http/middleware"
	"billing-app/internal/expiry"
	"billing-app/internal/ledger"
	"billing-app/internal/lifecycle"

	"github.com/gin-gonic/gin"
)

// App bundles the wired services the routes dispatch to.
type App struct {
	DB          *gorm.DB
	Log         *zap.Logger
	Engine      *lifecycle.Engine
	Ledger      *ledger.Ledger
	Expiry      *expiry.Service
	Emitter     *alerts.Emitter
	Broadcaster *alerts.Broadcaster
}

// NewApp wires the service graph on top of the shared DB handle.
func NewApp(db *gorm.DB, logger *zap.Logger) *App {
	broadcaster := alerts.NewBroadcaster(16)
	emitter := alerts.NewEmitter(db, logger, broadcaster)
	engine := lifecycle.NewEngine(db, logger)
	return &App{
		DB:          db,
		Log:         logger,
		Engine:      engine,
		Ledger:      ledger.New(db, engine, logger),
		Expiry:      expiry.NewService(db, logger, emitter),
		Emitter:     emitter,
		Broadcaster: broadcaster,
	}
}

func RegisterRoutes(r *gin.Engine, app *App) {
	allowlist, err := paymentwebhook.ParseAllowlist(config.WEBHOOK_ALLOWED_IPS)
	if err != nil {
		log.Fatalf("Bad WEBHOOK_ALLOWED_IPS: %v", err)
	}

	webhook := &paymentwebhook.Handler{
		Processor: &paymentwebhook.Processor{
			DB:      app.DB,
			Ledger:  app.Ledger,
			Engine:  app.Engine,
			Emitter: app.Emitter,
			Log:     app.Log,
		},
		Failures:    alerts.NewFailureWindow(app.Emitter, 10*time.Minute, 0.5, 10),
		AllowedCIDR: allowlist,
		Log:         app.Log,
	}
	billingHandler := &billingapi.Handler{DB: app.DB, Engine: app.Engine, Log: app.Log}
	checkoutHandler := &billingapi.CheckoutHandler{DB: app.DB, Ledger: app.Ledger, Log: app.Log}
	adminHandler := &adminapi.Handler{DB: app.DB, Expiry: app.Expiry, Emitter: app.Emitter, Log: app.Log}

	r.POST("/webhooks/payments", webhook.Receive)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/plans", plansapi.ListPlans)

	// Authenticated tutor routes
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(), middleware.SanitizeAndCleanInputMiddleware())
	auth.GET("/billing/subscriptions", billingHandler.ListSubscriptions)
	auth.GET("/billing/subscriptions/:id", billingHandler.GetSubscription)
	auth.POST("/billing/subscriptions/:id/cancel", billingHandler.CancelSubscription)
	auth.GET("/billing/payments", billingHandler.ListPayments)
	auth.POST("/billing/subscriptions", checkoutHandler.Subscribe)
	auth.POST("/billing/enrollments", checkoutHandler.Enroll)

	// Tutors must still have access to open the next period's checkout.
	subscribed := auth.Group("/")
	subscribed.Use(middleware.RequireActiveSubscription())
	subscribed.POST("/billing/subscriptions/:id/monthly-checkout", checkoutHandler.MonthlyCheckout)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.RequireRole("admin"))
	admin.GET("/subscriptions", adminHandler.ListSubscriptions)
	admin.GET("/metrics", adminHandler.GetMetrics)
	admin.GET("/alerts", adminHandler.ListAlerts)
	admin.POST("/expirations/run", adminHandler.RunExpiration)
}
