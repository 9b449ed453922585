package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/refdata-io/lookupd"
	"github.com/refdata-io/lookupd/internal/config"
)

// app holds the wired dependency graph shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  lookupd.Logger
	metrics *lookupd.PrometheusMetrics

	backend lookupd.Backend
	store   *lookupd.PrimaryStore
	redis   *redis.Client
	index   lookupd.SearchIndex
	events  lookupd.EventPublisher

	coordinator *lookupd.DualWriteCoordinator
	reader      *lookupd.ReadRouter
	services    []*lookupd.LookupService
	health      *lookupd.HealthChecker
	reindexer   *lookupd.Reindexer
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var logger lookupd.Logger
	var err error
	if cfg.Dev {
		logger, err = lookupd.NewDevelopmentZapLogger()
	} else {
		logger, err = lookupd.NewProductionZapLogger(cfg.LogLevel)
	}
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	metrics := lookupd.NewPrometheusMetrics(nil)

	backend, err := buildBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := lookupd.NewPrimaryStore(backend, logger, metrics)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	index := lookupd.NewRedisSearchIndex(rdb, logger, metrics)

	var events lookupd.EventPublisher = &lookupd.NoOpEventPublisher{}
	if cfg.AMQPURL != "" {
		events, err = lookupd.NewAMQPPublisher(lookupd.AMQPConfig{
			URL:        cfg.AMQPURL,
			Exchange:   cfg.AMQPExchange,
			Originator: cfg.Originator,
		}, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("connect event bus: %w", err)
		}
	}

	coordinator := lookupd.NewDualWriteCoordinator(store, index, events, logger, metrics)
	reader := lookupd.NewReadRouter(store, index, logger, metrics)

	services := make([]*lookupd.LookupService, 0, len(lookupd.Descriptors()))
	for _, desc := range lookupd.Descriptors() {
		services = append(services, lookupd.NewLookupService(desc, store, coordinator, reader, logger))
	}

	return &app{
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
		backend:     backend,
		store:       store,
		redis:       rdb,
		index:       index,
		events:      events,
		coordinator: coordinator,
		reader:      reader,
		services:    services,
		health:      lookupd.NewHealthChecker(store, index, logger),
		reindexer: lookupd.NewReindexer(store, index, logger, metrics).
			WithLock(lookupd.NewDistributedLock(rdb, "lookupd")),
	}, nil
}

func buildBackend(ctx context.Context, cfg *config.Config) (lookupd.Backend, error) {
	switch cfg.Storage.Type {
	case "filesystem":
		return lookupd.NewFilesystemBackend(cfg.Storage.Bucket), nil
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Storage.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return lookupd.NewS3Backend(s3.NewFromConfig(awsCfg), cfg.Storage.Bucket), nil
	case "minio":
		return lookupd.NewMinIOBackend(lookupd.MinIOConfig{
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.StorageAccessKey,
			SecretAccessKey: cfg.StorageSecretKey,
			Bucket:          cfg.Storage.Bucket,
		})
	case "gcs":
		return lookupd.NewGCSBackend(ctx, lookupd.GCSConfig{
			Bucket:          cfg.Storage.Bucket,
			CredentialsFile: cfg.StorageCredentials,
		})
	case "postgres":
		return lookupd.NewPostgresBackend(ctx, cfg.Storage.DSN, "")
	default:
		return nil, lookupd.WithMessage(lookupd.ErrInvalidConfig, "unknown storage type: %s", cfg.Storage.Type)
	}
}

func (a *app) close() {
	if a.events != nil {
		a.events.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.backend != nil {
		a.backend.Close()
	}
	if z, ok := a.logger.(*lookupd.ZapLogger); ok {
		z.Sync()
	}
}
