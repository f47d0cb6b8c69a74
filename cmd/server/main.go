package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gatewise/gatewise/internal/config"
	"github.com/gatewise/gatewise/internal/handlers"
	"github.com/gatewise/gatewise/internal/identity"
	"github.com/gatewise/gatewise/internal/middleware"
	"github.com/gatewise/gatewise/internal/otp"
	"github.com/gatewise/gatewise/internal/repository"
	"github.com/gatewise/gatewise/internal/service"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database pool")
	}
	defer pool.Close()

	// Outbound clients for the external collaborators.
	identityClient := identity.NewClient(&cfg.Identity, logger)
	otpClient := otp.NewClient(&cfg.Verify, logger)

	// Repositories
	participantRepo := repository.NewParticipantRepository(pool, logger)
	feedbackRepo := repository.NewFeedbackRepository(pool, logger)
	attemptStore := initAttemptStore(cfg, logger)
	attemptLog := initAttemptLog(ctx, cfg, logger)

	// Services
	otpService := service.NewOTPService(otpClient, logger)
	inviteService := service.NewInviteService(participantRepo, logger)
	loginGate := service.NewLoginGate(identityClient, attemptStore, cfg.Lockout.Duration, logger)
	onboardingService := service.NewOnboardingService(
		identityClient, otpService, inviteService, participantRepo,
		cfg.Verify.DefaultDestination, logger,
	)
	resetService := service.NewResetService(
		identityClient, otpService, participantRepo,
		cfg.Verify.DefaultDestination, logger,
	)

	authHandlers := handlers.NewAuthHandlers(
		loginGate, onboardingService, resetService, otpService, attemptLog, logger,
	)
	feedbackHandlers := handlers.NewFeedbackHandlers(identityClient, feedbackRepo, logger)
	authMiddleware := middleware.NewAuthMiddleware(cfg.Identity.JWTSecret, logger)

	router := setupRouter(cfg, authHandlers, feedbackHandlers, authMiddleware, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

// initAttemptStore prefers Redis so lockouts survive restarts and are
// shared across replicas, falling back to process memory when no Redis
// endpoint is configured.
func initAttemptStore(cfg *config.Config, logger *logrus.Logger) repository.AttemptStore {
	if cfg.Redis.Endpoint == "" {
		logger.Info("No Redis endpoint configured; using in-memory attempt store")
		return repository.NewMemoryAttemptStore(cfg.Lockout.MaxAttempts, cfg.Lockout.Duration)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Endpoint,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	logger.Info("Redis attempt store initialized")
	return repository.NewRedisAttemptStore(client, cfg.Lockout.MaxAttempts, cfg.Lockout.Duration, logger)
}

// initAttemptLog sets up the DynamoDB audit trail, or returns nil when
// no table is configured. The audit trail is best-effort either way.
func initAttemptLog(ctx context.Context, cfg *config.Config, logger *logrus.Logger) *repository.AttemptLogRepository {
	if cfg.DynamoDB.TableName == "" {
		logger.Info("No DynamoDB table configured; login attempt audit trail disabled")
		return nil
	}

	var awsCfg aws.Config
	var err error

	if cfg.DynamoDB.Endpoint != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.DynamoDB.Region),
			awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
				func(service, region string, options ...interface{}) (aws.Endpoint, error) {
					return aws.Endpoint{
						URL:           cfg.DynamoDB.Endpoint,
						SigningRegion: cfg.DynamoDB.Region,
					}, nil
				})),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.DynamoDB.Region))
	}

	if err != nil {
		logger.WithError(err).Fatal("Failed to load AWS config")
	}

	client := dynamodb.NewFromConfig(awsCfg)
	logger.Info("DynamoDB attempt log initialized")
	return repository.NewAttemptLogRepository(client, cfg.DynamoDB.TableName, logger)
}

func setupRouter(
	cfg *config.Config,
	authHandlers *handlers.AuthHandlers,
	feedbackHandlers *handlers.FeedbackHandlers,
	authMiddleware *middleware.AuthMiddleware,
	logger *logrus.Logger,
) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(middleware.Logging(logger))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "OPTIONS")

	router.HandleFunc("/login", authHandlers.Login).Methods("POST", "OPTIONS")
	router.HandleFunc("/create_account", authHandlers.CreateAccount).Methods("POST", "OPTIONS")
	router.HandleFunc("/verify_otp", authHandlers.VerifyOTP).Methods("POST", "OPTIONS")
	router.HandleFunc("/create_password", authHandlers.CreatePassword).Methods("POST", "OPTIONS")
	router.HandleFunc("/forgot_password", authHandlers.ForgotPassword).Methods("POST", "OPTIONS")
	router.HandleFunc("/renew_password", authHandlers.RenewPassword).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/feedback_query", feedbackHandlers.Submit).Methods("POST", "OPTIONS")

	protected := router.PathPrefix("/").Subrouter()
	protected.Use(authMiddleware.RequireAuth)
	protected.HandleFunc("/login_history", authHandlers.LoginHistory).Methods("GET")
	protected.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		email, _ := r.Context().Value("email").(string)
		userID, _ := r.Context().Value("user_id").(string)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(fmt.Sprintf(`{"email":%q,"user_id":%q}`, email, userID)))
	}).Methods("GET")

	return router
}
