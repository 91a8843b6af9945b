package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/avelasqz/chatd/archive"
	"github.com/avelasqz/chatd/engine"
	"github.com/avelasqz/chatd/gateway"
	"github.com/avelasqz/chatd/model"
	"github.com/avelasqz/chatd/pkg/config"
	"github.com/avelasqz/chatd/pkg/logx"
	"github.com/avelasqz/chatd/session"
	"github.com/avelasqz/chatd/session/sessioninfra"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		logx.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	initLogger(cfg)

	logx.Info("🚀 Starting chatd session engine...")
	logx.Infof("Environment: %s", cfg.Server.Environment)

	// 3. Initialize Core Dependencies

	// --- A. Session Store ---
	store, err := initStore(cfg)
	if err != nil {
		logx.Fatalf("❌ Failed to initialize session store: %v", err)
	}
	logx.Infof("✅ Session store ready (backend: %s)", cfg.Storage.Backend)

	// --- B. Model Invoker (OpenAI) ---
	if cfg.Model.APIKey == "" {
		logx.Warn("⚠️ OPENAI_API_KEY not set. Model calls may fail.")
	}
	invoker := model.NewOpenAIInvoker(
		cfg.Model.APIKey,
		cfg.Model.BaseURL,
		model.WithTimeout(cfg.Model.Timeout),
		model.WithMaxRetries(cfg.Model.MaxRetries),
	)
	logx.Infof("✅ Model invoker ready (deployment: %s)", cfg.Model.Deployment)

	// --- C. Engine ---
	eng := engine.New(engine.Config{
		Store:           store,
		Invoker:         invoker,
		Model:           cfg.Model.Deployment,
		ConflictRetries: cfg.Engine.ConflictRetries,
	})

	// --- D. Transcript Archiver (Optional) ---
	archiver, err := initArchiver(cfg)
	if err != nil {
		logx.Warnf("⚠️ Archiver not available: %v", err)
		archiver = nil
	}

	// --- E. Auth ---
	auth := gateway.NewAuth(cfg.Auth.FunctionKeyHash, cfg.Auth.JWTSecret)
	if auth.Enabled() {
		logx.Info("✅ Request auth enabled")
	} else {
		logx.Info("ℹ️ Request auth disabled (no key hash or JWT secret configured)")
	}

	// 4. Create Fiber App
	app := fiber.New(fiber.Config{
		AppName:               "chatd",
		DisableStartupMessage: true,
		ErrorHandler:          gateway.ErrorHandler(),
		BodyLimit:             1 * 1024 * 1024,
		IdleTimeout:           120 * time.Second,
	})

	// 5. Middleware
	setupMiddleware(app, cfg)

	// 6. Routes
	gw := gateway.New(gateway.Config{
		Engine:   eng,
		Invoker:  invoker,
		Archiver: archiver,
		Model:    cfg.Model.Deployment,
		Auth:     auth,
	})
	gw.Register(app)

	// 7. Start Server
	startServer(app, cfg)
}

// ============================================================================
// Store Initialization
// ============================================================================

func initStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Storage.Backend {
	case "postgres":
		db, err := initDatabase()
		if err != nil {
			return nil, err
		}
		store := sessioninfra.NewPostgresStore(db)
		if err := store.EnsureSchema(context.Background()); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return store, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return sessioninfra.NewRedisStore(client), nil

	default:
		logx.Info("ℹ️ Using in-memory session store (no persistence across restarts)")
		return sessioninfra.NewMemoryStore(), nil
	}
}

func initDatabase() (*sqlx.DB, error) {
	host := os.Getenv("DB_HOST")
	if host == "" {
		return nil, fmt.Errorf("DB_HOST environment variable not set")
	}

	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}

	user := os.Getenv("DB_USER")
	if user == "" {
		return nil, fmt.Errorf("DB_USER environment variable not set")
	}

	password := os.Getenv("DB_PASSWORD")
	if password == "" {
		return nil, fmt.Errorf("DB_PASSWORD environment variable not set")
	}

	dbname := os.Getenv("DB_NAME")
	if dbname == "" {
		return nil, fmt.Errorf("DB_NAME environment variable not set")
	}

	sslMode := os.Getenv("DB_SSL_MODE")
	if sslMode == "" {
		sslMode = "disable"
	}

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslMode,
	)

	logx.WithFields(logx.Fields{
		"host": host,
		"port": port,
		"user": user,
		"db":   dbname,
	}).Debug("Connecting to database")

	db, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logx.Info("✅ Database connected successfully")
	return db, nil
}

// ============================================================================
// Archiver Initialization
// ============================================================================

func initArchiver(cfg *config.Config) (*archive.Archiver, error) {
	if cfg.Archive.Bucket == "" {
		logx.Info("ℹ️ Transcript archiving disabled (ARCHIVE_BUCKET not set)")
		return nil, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return archive.New(client, cfg.Archive.Bucket, cfg.Archive.Prefix), nil
}

// ============================================================================
// Setup & Configuration
// ============================================================================

func initLogger(cfg *config.Config) {
	switch cfg.Server.LogLevel {
	case "debug":
		logx.SetLevel(logx.LevelDebug)
	case "trace":
		logx.SetLevel(logx.LevelTrace)
	case "warn":
		logx.SetLevel(logx.LevelWarn)
	case "error":
		logx.SetLevel(logx.LevelError)
	default:
		logx.SetLevel(logx.LevelInfo)
	}

	if !cfg.IsDevelopment() {
		logx.UseJSON()
	}

	logx.WithField("level", cfg.Server.LogLevel).Info("Logger initialized")
}

func setupMiddleware(app *fiber.App, cfg *config.Config) {
	// Recover from panics
	app.Use(recover.New(recover.Config{
		EnableStackTrace: cfg.IsDevelopment(),
	}))

	// Request ID
	app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
	}))

	// CORS
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, " + gateway.FunctionKeyHeader,
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Request logging
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
}

func startServer(app *fiber.App, cfg *config.Config) {
	port := fmt.Sprintf("%d", cfg.Server.Port)

	go func() {
		logx.Infof("🚀 Server listening on port %s", port)
		logx.Infof("📡 Health check: http://localhost:%s/health", port)
		if err := app.Listen(":" + port); err != nil {
			logx.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logx.Info("🛑 Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logx.Errorf("Server forced to shutdown: %v", err)
	}

	logx.Info("✅ Server exited gracefully")
}
