package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"                 // Loads .env files for local runs
	"github.com/labstack/echo/v4"              // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/field-operations/internal/config" // Internal config loader
	"github.com/iliyamo/field-operations/internal/database"
	"github.com/iliyamo/field-operations/internal/handler"
	"github.com/iliyamo/field-operations/internal/logger"
	"github.com/iliyamo/field-operations/internal/middleware"
	"github.com/iliyamo/field-operations/internal/notify"
	"github.com/iliyamo/field-operations/internal/queue"
	"github.com/iliyamo/field-operations/internal/repository"
	"github.com/iliyamo/field-operations/internal/router" // Internal router setup
	"github.com/iliyamo/field-operations/internal/service"
	"github.com/iliyamo/field-operations/internal/storage"
	"github.com/iliyamo/field-operations/internal/store"
	"github.com/iliyamo/field-operations/internal/store/memory"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	cfg := config.Load() // Load environment config

	closeLog, err := logger.Init(cfg.Env, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		logrus.Fatalf("logger: %v", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore := openStore(ctx, cfg)
	defer closeStore()

	var n notify.Notifier = notify.Nop{}
	if cfg.RabbitURL != "" {
		n = notify.NewPublisher(cfg.RabbitURL, cfg.NotifyQueue)
		if cfg.NotifyConsumer {
			c := &queue.Consumer{URL: cfg.RabbitURL, Queue: cfg.NotifyQueue, Deliver: queue.FileDelivery("logs/notifications.log")}
			go func() {
				if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logrus.Warnf("notification consumer stopped: %v", err)
				}
			}()
		}
	} else {
		logrus.Info("RABBITMQ_URL not set; notifications are disabled")
	}

	var files storage.FileStore
	if cfg.S3.Bucket != "" {
		s3, err := storage.NewS3(ctx, cfg.S3)
		if err != nil {
			logrus.Fatalf("s3: %v", err)
		}
		files = s3
	} else {
		logrus.Warn("S3_BUCKET not set; uploads are kept in memory")
		files = storage.NewMemory()
	}

	svc := service.New(st, files, n, service.Options{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
	})
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		seeded, err := svc.SeedAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			logrus.Fatalf("seed admin: %v", err)
		}
		if seeded {
			logrus.WithField("email", cfg.AdminEmail).Info("seeded admin account")
		}
	}

	// Redis backs the login rate limiter; without it the limiter passes.
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(middleware.RequestLogger())

	h := handler.New(svc, cfg.RequestTimeout)
	router.RegisterRoutes(e, st) // Register application routes
	router.RegisterAuth(e, h, limiter)
	router.RegisterAPI(e, h, svc)

	addr := ":" + cfg.Port // Address string with port
	go func() {
		logrus.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "store": cfg.StoreBackend}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.Warnf("shutdown: %v", err)
	}
}

// openStore returns the configured backend and its close func.
func openStore(ctx context.Context, cfg config.Config) (store.Store, func()) {
	if cfg.StoreBackend == config.BackendMemory {
		logrus.Warn("using the in-memory store; data is lost on exit")
		return memory.New(), func() {}
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logrus.Fatalf("database: %v", err)
	}
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logrus.Fatalf("migrate: %v", err)
		}
		logrus.Info("schema migrated")
	}
	return repository.NewStore(db), func() { _ = db.Close() }
}
