package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/mvoss/imgpress/internal/api"
	"github.com/mvoss/imgpress/internal/config"
	"github.com/mvoss/imgpress/internal/pack"
	"github.com/mvoss/imgpress/internal/pipeline"
	"github.com/mvoss/imgpress/internal/plan"
	"github.com/mvoss/imgpress/internal/ratelimit"
	"github.com/mvoss/imgpress/internal/storage"
	"github.com/mvoss/imgpress/internal/store"
	"github.com/mvoss/imgpress/internal/telemetry"
	"github.com/mvoss/imgpress/internal/tenant"
	"github.com/mvoss/imgpress/internal/webhook"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(os.Stdout, "[imgpress] ", log.LstdFlags|log.Lmsgprefix)

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	resolver, err := buildResolver(cfg.Auth)
	if err != nil {
		logger.Fatalf("tenant registry: %v", err)
	}

	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "imgpress",
		Exporter:     cfg.Trace.Exporter,
		OTLPEndpoint: cfg.Trace.OTLPEndpoint,
		OTLPInsecure: cfg.Trace.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Printf("tracing shutdown error: %v", err)
		}
	}()

	if err := pipeline.Startup(); err != nil {
		logger.Fatalf("image runtime startup failed: %v", err)
	}
	defer pipeline.Shutdown()

	codec, err := pipeline.NewCodec()
	if err != nil {
		logger.Fatalf("image codec init failed: %v", err)
	}

	converter, err := pipeline.NewConverter(
		codec,
		plan.Profiles{
			Portrait:  plan.Profile{MaxWidth: cfg.Convert.PortraitMaxWidth, MaxHeight: cfg.Convert.PortraitMaxHeight},
			Landscape: plan.Profile{MaxWidth: cfg.Convert.LandscapeMaxWidth, MaxHeight: cfg.Convert.LandscapeMaxHeight},
		},
		[]pipeline.Target{
			{Format: pipeline.FormatWebP, Quality: cfg.Convert.WebpQuality, Effort: cfg.Convert.WebpEffort},
			{Format: pipeline.FormatAVIF, Quality: cfg.Convert.AvifQuality, Effort: cfg.Convert.AvifEffort},
		},
		cfg.Convert.MaxActiveConversions,
	)
	if err != nil {
		logger.Fatalf("converter init failed: %v", err)
	}

	deps := api.Deps{
		Resolver:       resolver,
		Converter:      converter,
		Mode:           cfg.Output.Mode,
		MaxUploadBytes: cfg.Convert.MaxUploadBytes,
	}

	if cfg.Output.Mode == pack.ModeJSON {
		switch cfg.Output.Backend {
		case "s3":
			s3Store, err := storage.NewS3(storage.S3Config{
				Endpoint: cfg.Storage.Endpoint,
				Access:   cfg.Storage.AccessKey,
				Secret:   cfg.Storage.SecretKey,
				Bucket:   cfg.Storage.Bucket,
				UseSSL:   cfg.Storage.UseSSL,
			})
			if err != nil {
				logger.Fatalf("s3 backend init failed: %v", err)
			}
			if err := s3Store.EnsureBucket(ctx); err != nil {
				logger.Fatalf("s3 bucket check failed: %v", err)
			}
			deps.Publisher = &pack.Publisher{
				Store:   s3Store,
				BaseURL: cfg.Output.PublicBaseURL,
			}
			deps.Lister = s3Store
		default:
			disk, err := storage.NewDisk(cfg.Output.Root)
			if err != nil {
				logger.Fatalf("disk backend init failed: %v", err)
			}
			deps.Publisher = &pack.Publisher{
				Store:      disk,
				BaseURL:    cfg.Output.PublicBaseURL,
				PathPrefix: "/files",
			}
			deps.Lister = disk
			deps.Files = disk
		}
	}

	if cfg.Database.DSN != "" {
		uploadLog, err := store.NewPostgresUploadLog(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Fatalf("upload log init failed: %v", err)
		}
		defer func() {
			if err := uploadLog.Close(); err != nil {
				logger.Printf("upload log close error: %v", err)
			}
		}()
		deps.UploadLog = uploadLog
	} else {
		deps.UploadLog = store.NewMemoryUploadLog()
	}

	if cfg.RateLimit.Capacity > 0 {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Printf("redis close error: %v", err)
			}
		}()

		limiter, err := ratelimit.NewRedisTokenBucket(redisClient, cfg.RateLimit.Capacity, cfg.RateLimit.Window, "")
		if err != nil {
			logger.Fatalf("rate limiter init failed: %v", err)
		}
		deps.RateLimiter = limiter
		logger.Printf("rate limiting enabled capacity=%d window=%s", cfg.RateLimit.Capacity, cfg.RateLimit.Window)
	}

	if cfg.Webhook.URL != "" {
		deps.WebhookClient = webhook.NewClient(webhook.Config{
			SigningSecret: cfg.Webhook.Secret,
			MaxAttempts:   3,
		})
		deps.WebhookURL = cfg.Webhook.URL
	}

	app := api.NewServer(logger, deps)

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s mode=%s backend=%s", cfg.API.Addr, cfg.Output.Mode, cfg.Output.Backend)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

// buildResolver reads the tenant registry and refuses to start when no
// credential of any kind is configured; a keyless deployment would accept
// nobody and reject everybody, which is always a misconfiguration.
func buildResolver(cfg config.AuthConfig) (*tenant.Resolver, error) {
	blob := []byte(cfg.RegistryJSON)
	if cfg.RegistryFile != "" {
		fileBlob, err := os.ReadFile(cfg.RegistryFile)
		if err != nil {
			return nil, err
		}
		blob = fileBlob
	}

	registry, err := tenant.ParseRegistry(blob)
	if err != nil {
		return nil, err
	}
	if registry.Len() == 0 && cfg.AdminToken == "" {
		return nil, errors.New("no tenant API keys and no admin token configured")
	}

	return tenant.NewResolver(registry, cfg.AdminToken), nil
}
