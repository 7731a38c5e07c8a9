package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"

	"ticketer/config"
	"ticketer/internal/handlers"
	"ticketer/internal/imagestore"
	"ticketer/internal/services"
	"ticketer/internal/services/payment"
	"ticketer/internal/services/payment/vnpay"
	_ "ticketer/migrations"
	"ticketer/models"
	"ticketer/monitoring"
	"ticketer/security"
	"ticketer/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize PubNub (optional; purchase updates degrade to polling)
	var pn *pubnub.PubNub
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey
		pn = pubnub.NewPubNub(pnConfig)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Payment gateways: VNPay when configured, a local mock otherwise
	// (development only; production refuses to start without a provider).
	gateways := payment.NewRegistry()
	if cfg.VNPay.TmnCode != "" && cfg.VNPay.HashSecret != "" {
		vnpayGateway, err := payment.NewVNPayAdapter(&vnpay.Config{
			PayURL:     cfg.VNPay.PayURL,
			QueryURL:   cfg.VNPay.QueryURL,
			TmnCode:    cfg.VNPay.TmnCode,
			HashSecret: cfg.VNPay.HashSecret,
			ReturnURL:  cfg.VNPay.ReturnURL,
		})
		if err != nil {
			return err
		}
		gateways.Register(vnpayGateway)
	} else if cfg.Environment == "development" {
		slog.Warn("vnpay not configured, using mock payment gateway")
		gateways.Register(payment.NewMockGateway(cfg.PublicURL, ""))
	} else {
		log.Fatal("no payment provider configured")
	}
	defer gateways.Close(ctx)

	// Image store
	images, err := imagestore.NewDiskStore(cfg.UploadDir, cfg.UploadBaseURL, cfg.MaxImageWidth)
	if err != nil {
		return err
	}

	// Monitoring
	var monitor *monitoring.Monitor
	if cfg.EnableMetrics {
		monitor = monitoring.NewMonitor(redisClient)
	}

	// Initialize services
	finalizer := services.NewRecordFinalizer(app)
	purchaseService := services.NewPurchaseService(redisClient, pn, cfg, gateways, monitor, finalizer)

	// Initialize handlers
	catalogHandler := handlers.NewCatalogHandler(app)
	purchaseHandler := handlers.NewPurchaseHandler(app, catalogHandler, purchaseService)
	eventHandler := handlers.NewEventHandler(app, catalogHandler, images, cfg.MaxUploadBytes)
	boothHandler := handlers.NewBoothHandler(app, monitor)

	// Rate limiting on the public purchase surface
	rateLimiter := security.NewRateLimiter(redisClient, cfg.RateLimitPerMinute)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Catalog endpoints (public)
		e.Router.GET("/api/v1/events", catalogHandler.ListEvents)
		e.Router.GET("/api/v1/events/{eventId}", catalogHandler.GetEvent)
		e.Router.GET("/api/v1/events/{eventId}/tickets", catalogHandler.ListEventTickets)
		e.Router.GET("/api/v1/venues", catalogHandler.ListVenues)
		e.Router.GET("/api/v1/users/staff", catalogHandler.ListStaff)

		// Purchase hand-off endpoints (public, rate limited)
		purchase := e.Router.Group("/api/v1/purchase")
		purchase.BindFunc(rateLimiter.Middleware())
		purchase.POST("/start", purchaseHandler.StartPurchase)
		purchase.POST("/{purchaseId}/attendee", purchaseHandler.RegisterAttendee)
		purchase.POST("/{purchaseId}/checkout", purchaseHandler.Checkout)
		purchase.GET("/{purchaseId}", purchaseHandler.GetPurchase)
		purchase.POST("/{purchaseId}/cancel", purchaseHandler.CancelPurchase)

		// Provider callback
		e.Router.GET("/api/v1/payment/vnpay/ipn", purchaseHandler.VNPayIPN)

		// Organizer endpoints
		e.Router.POST("/api/v1/uploads/images", eventHandler.UploadImage)
		e.Router.POST("/api/v1/events", eventHandler.CreateEvent)
		e.Router.PUT("/api/v1/events/{eventId}", eventHandler.UpdateEvent)
		e.Router.GET("/api/v1/organizers/{organizerId}/events", eventHandler.ListOrganizerEvents)

		// Booth endpoints
		e.Router.GET("/api/v1/events/{eventId}/booth-requests", boothHandler.ListBoothRequests)
		e.Router.PUT("/api/v1/booth-requests/{requestId}/status", boothHandler.DecideBoothRequest)
		e.Router.POST("/api/v1/booth-requests", boothHandler.CreateBoothRequest)

		// Test endpoint for payment simulation
		if cfg.Environment == "development" {
			e.Router.POST("/api/v1/test/simulate-payment", purchaseHandler.SimulatePayment)
		}

		// Uploaded images
		e.Router.GET("/uploads/{path...}", apis.Static(os.DirFS(cfg.UploadDir), false))

		// Metrics
		if cfg.EnableMetrics {
			e.Router.GET("/metrics", func(e *core.RequestEvent) error {
				promhttp.Handler().ServeHTTP(e.Response, e.Request)
				return nil
			})
		}

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  "redis unavailable",
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		setupEventHooks(app)

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// setupEventHooks keeps event records consistent no matter which surface
// wrote them: status is always server-derived and the schedule rule applies
// even to writes through the PocketBase record API.
func setupEventHooks(app *pocketbase.PocketBase) {
	app.OnRecordCreateRequest("events").BindFunc(func(e *core.RecordRequestEvent) error {
		normalizeEventRecord(e.Record)
		return e.Next()
	})

	app.OnRecordUpdateRequest("events").BindFunc(func(e *core.RecordRequestEvent) error {
		normalizeEventRecord(e.Record)
		return e.Next()
	})
}

func normalizeEventRecord(record *core.Record) {
	start := record.GetDateTime("start_date").Time()
	end := record.GetDateTime("end_date").Time()
	start, end = models.NormalizeSchedule(start, end)
	record.Set("start_date", start)
	record.Set("end_date", end)

	current := models.EventStatus(record.GetString("status"))
	record.Set("status", string(models.DeriveStatus(current, start, end, time.Now())))
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
