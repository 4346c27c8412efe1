package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"venuly/internal/analytics"
	analytics_api "venuly/internal/analytics/api"
	"venuly/internal/auth"
	"venuly/internal/config"
	"venuly/internal/database"
	"venuly/internal/database/migrations"
	"venuly/internal/email"
	eventdb "venuly/internal/events/db"
	"venuly/internal/events/event_api"
	events "venuly/internal/events/service"
	"venuly/internal/kafka"
	"venuly/internal/logger"
	messagingdb "venuly/internal/messaging/db"
	"venuly/internal/messaging/messaging_api"
	messaging "venuly/internal/messaging/service"
	"venuly/internal/metrics"
	"venuly/internal/models"
	notificationdb "venuly/internal/notifications/db"
	"venuly/internal/notifications/notification_api"
	notifications "venuly/internal/notifications/service"
	"venuly/internal/notify"
	organizerdb "venuly/internal/organizers/db"
	"venuly/internal/organizers/organizer_api"
	organizers "venuly/internal/organizers/service"
	paymentdb "venuly/internal/payments/db"
	"venuly/internal/payments/lock"
	"venuly/internal/payments/payment_api"
	payments "venuly/internal/payments/service"
	proposaldb "venuly/internal/proposals/db"
	"venuly/internal/proposals/proposal_api"
	proposals "venuly/internal/proposals/service"
	"venuly/internal/qr"
	reviewdb "venuly/internal/reviews/db"
	"venuly/internal/reviews/review_api"
	reviews "venuly/internal/reviews/service"
	"venuly/internal/sse"
	"venuly/internal/upload"
	userdb "venuly/internal/users/db"
	"venuly/internal/users/user_api"
	users "venuly/internal/users/service"
	"venuly/internal/utils"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}

	if cfg.Database.Driver == "postgres" && cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, log)
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
		runner.Close()
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("REDIS", err.Error())
	}
	return bunDB, redisClient
}

// eventSink publishes to Kafka when it is enabled. Otherwise events are
// dispatched in-process and the notifier binary is not needed.
func eventSink(cfg *config.Config, dispatcher *notify.Dispatcher, log *logger.Logger) (notify.Sink, func()) {
	if !cfg.Kafka.Enabled {
		log.Info("KAFKA", "Kafka disabled, dispatching notifications in-process")
		return dispatcher, func() {}
	}

	topic := kafka.NotificationsTopic(cfg.Kafka.TopicPrefix)
	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{topic}, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}
	producer := kafka.NewProducer(cfg.Kafka.Brokers, topic, log)
	log.Info("KAFKA", fmt.Sprintf("Publishing domain events to %s", topic))

	// the notifier stores the rows; this instance only relays them to open streams
	ctx, cancel := context.WithCancel(context.Background())
	tail := kafka.NewTailConsumer(cfg.Kafka.Brokers, topic, cfg.Kafka.GroupID+"-live-"+uuid.NewString(), log)
	go func() {
		err := tail.Start(ctx, func(_ context.Context, event models.DomainEvent) error {
			if dispatcher.Live != nil {
				dispatcher.Live.Emit(*notify.NotificationFor(event))
			}
			return nil
		})
		if err != nil {
			log.Error("KAFKA", fmt.Sprintf("Live relay stopped: %v", err))
		}
	}()

	return producer, func() {
		cancel()
		if err := tail.Close(); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Live relay close: %v", err))
		}
		if err := producer.Close(); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Producer close: %v", err))
		}
	}
}

func main() {
	log := logger.NewLogger("venuly")
	defer log.Close()

	log.Info("APP", "Starting Venuly API")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	ctx := context.Background()
	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	userStore := &userdb.DB{Bun: bunDB}
	eventStore := &eventdb.DB{Bun: bunDB}
	proposalStore := &proposaldb.DB{Bun: bunDB}
	notificationStore := &notificationdb.DB{Bun: bunDB}

	mailer := email.NewClient(cfg.Email, log)
	if !mailer.Configured() {
		log.Warn("EMAIL", "EMAIL_API_KEY not set, emails will be skipped")
	}

	live := sse.NewBroker()
	dispatcher := &notify.Dispatcher{
		Store:   notificationStore,
		Users:   userStore,
		Mailer:  mailer,
		BaseURL: cfg.Server.PublicBaseURL,
		Live:    live,
		Logger:  log,
	}
	sink, closeSink := eventSink(cfg, dispatcher, log)
	defer closeSink()
	publisher := notify.NewPublisher(sink, log)

	qrSecret := cfg.QR.Secret
	if qrSecret == "" {
		log.Warn("CONFIG", "QR_SECRET_KEY not set, deriving booking pass key from JWT_SECRET")
		qrSecret = cfg.Auth.JWTSecret
	}
	qrGen := qr.NewQRGenerator(qrSecret)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	authenticator := &auth.Authenticator{
		Tokens:     tokens,
		Users:      userStore,
		CookieName: cfg.Auth.CookieName,
		Logger:     log,
	}
	if cfg.Auth.OIDCIssuer != "" {
		verifier, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer)
		if err != nil {
			log.Error("AUTH", fmt.Sprintf("OIDC discovery failed, SSO disabled: %v", err))
		} else {
			authenticator.Verifier = verifier
			log.Info("AUTH", fmt.Sprintf("Accepting ID tokens from %s", cfg.Auth.OIDCIssuer))
		}
	}

	userService := users.NewUserService(userStore, tokens, auth.NewResetTokenStore(redisClient, cfg.Auth.ResetTTL), mailer, cfg.Server.PublicBaseURL, log)
	eventService := events.NewEventService(eventStore, publisher, qrGen, cfg.Server.PublicBaseURL, log)
	proposalService := proposals.NewProposalService(proposalStore, eventStore, publisher, qrGen, log)
	reviewService := reviews.NewReviewService(&reviewdb.DB{Bun: bunDB}, eventStore, publisher, log)
	organizerService := organizers.NewOrganizerService(&organizerdb.DB{Bun: bunDB}, log)
	notificationService := notifications.NewNotificationService(notificationStore, log)
	messagingService := messaging.NewMessagingService(&messagingdb.DB{Bun: bunDB}, userStore, eventStore, publisher, log)

	var gateway payments.Gateway
	if stripeGateway, err := payments.NewStripeGateway(cfg.Stripe, log); err == nil {
		gateway = stripeGateway
	}
	paymentService := payments.NewPaymentService(&paymentdb.DB{Bun: bunDB}, proposalStore, gateway,
		lock.NewLocker(redisClient, lock.DefaultTTL), publisher, cfg.Payments.PlatformFeePercent, log)

	var imageStore upload.Store
	if store, err := upload.NewCloudinaryStore(cfg.Cloudinary); err != nil {
		log.Warn("UPLOAD", fmt.Sprintf("Uploads disabled: %v", err))
	} else {
		imageStore = store
	}

	userHandler := &user_api.Handler{UserService: userService, Logger: log, CookieName: cfg.Auth.CookieName, CookieSecure: cfg.Auth.CookieSecure}
	limiter := auth.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
	stopCleanup := make(chan struct{})
	limiter.StartCleanup(time.Minute, stopCleanup)
	defer close(stopCleanup)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(metrics.InstrumentHandler)
	r.Use(log.RequestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := bunDB.PingContext(r.Context()); err != nil {
			utils.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "database unavailable"})
			return
		}
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(authenticator.Middleware)

		r.Mount("/auth", userHandler.Routes(limiter))
		r.Mount("/admin/users", userHandler.AdminRoutes())
		r.Mount("/events", (&event_api.Handler{EventService: eventService, Logger: log}).Routes())
		r.Mount("/proposals", (&proposal_api.Handler{ProposalService: proposalService, Logger: log}).Routes())
		r.Mount("/reviews", (&review_api.Handler{ReviewService: reviewService, Logger: log}).Routes())
		r.Mount("/organizers", (&organizer_api.Handler{OrganizerService: organizerService, Logger: log}).Routes())
		r.Mount("/notifications", (&notification_api.Handler{NotificationService: notificationService, Live: live, Logger: log}).Routes())
		r.Mount("/conversations", (&messaging_api.Handler{MessagingService: messagingService, Logger: log}).Routes())
		r.Mount("/payments", (&payment_api.Handler{PaymentService: paymentService, Logger: log}).Router())
		r.Mount("/analytics", analytics_api.NewHandler(analytics.NewService(&analytics.DB{Bun: bunDB}, log), log).Routes())
		r.Post("/upload", (&upload.Handler{Store: imageStore, Logger: log}).Upload)
	})
	log.Info("ROUTER", "API routes registered under /api")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Venuly API running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "Venuly API shutdown complete")
	}
}
