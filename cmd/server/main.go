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
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"marketplace/internal/auth"
	"marketplace/internal/config"
	apphttp "marketplace/internal/http"
	"marketplace/internal/readiness"
	"marketplace/internal/repository"
	"marketplace/internal/repository/memory"
	"marketplace/internal/repository/postgres"
	"marketplace/internal/repository/redis"
	"marketplace/internal/repository/sqlite"
	"marketplace/internal/service"
	"marketplace/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	passwords, err := service.PasswordPolicyByName(cfg.Auth.PasswordPolicy)
	if err != nil {
		logger.Fatalf("password policy: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, closeKV, err := buildKeyValue(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}
	defer closeKV()

	if err := kv.Init(ctx); err != nil {
		logger.Fatalf("init %s storage: %v", cfg.Storage.Driver, err)
	}

	// The controller subscribes before the store exists and initializes
	// itself once the store has restored its state.
	ready := readiness.New[*service.Store]()
	handler := apphttp.NewHandler(ready, apphttp.Options{
		Tokens: auth.NewBrowserTokens(
			cfg.Auth.BrowserSecret,
			cfg.Auth.BrowserIssuer,
			time.Duration(cfg.Auth.BrowserTTLHours)*time.Hour,
		),
		Logger:        logger,
		SecureCookies: cfg.Auth.SecureCookies,
		NoticeTTL:     time.Duration(cfg.Auth.NoticeTTLSeconds) * time.Second,
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	service.NewStore(ctx, service.StoreConfig{
		Storage:   kv,
		Passwords: passwords,
		Logger:    logger,
		Ready:     ready,
	})

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

// buildKeyValue opens the backend selected by storage.driver. The returned
// func releases its connections.
func buildKeyValue(ctx context.Context, cfg config.Config, logger *logrus.Logger) (repository.KeyValue, func(), error) {
	noop := func() {}

	switch cfg.Storage.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, noop, fmt.Errorf("open database: %w", err)
		}
		logger.Infof("using sqlite database %s", cfg.SQLite.Path)
		return sqlite.NewKVRepository(db), func() { _ = db.Close() }, nil

	case "redis":
		rdb := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		logger.Infof("using redis at %s (db %d)", cfg.Redis.Addr, cfg.Redis.DB)
		return redis.NewKVRepository(rdb, cfg.Redis.KeyPrefix), func() { _ = rdb.Close() }, nil

	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("using postgres")
		return postgres.NewKVRepository(pool), pool.Close, nil

	case "s3":
		client, err := buildS3Client(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		logger.Infof("using s3 bucket %s (region %s)", cfg.S3.Bucket, cfg.S3.Region)
		return storage.NewS3KVRepository(client, storage.Options{
			Bucket:    cfg.S3.Bucket,
			KeyPrefix: cfg.S3.KeyPrefix,
		}), noop, nil

	case "memory":
		logger.Warn("using in-memory storage, state is lost on restart")
		return memory.NewKVRepository(), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func buildS3Client(ctx context.Context, cfg config.Config) (*s3.Client, error) {
	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.S3.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
