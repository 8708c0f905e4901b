// Package bootstrap provides dependency initialization for the generation API.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maauso/genspace-api/internal/config"
	"github.com/maauso/genspace-api/internal/credential"
	"github.com/maauso/genspace-api/internal/generator"
	"github.com/maauso/genspace-api/internal/history"
	"github.com/maauso/genspace-api/internal/job"
	"github.com/maauso/genspace-api/internal/media"
	"github.com/maauso/genspace-api/internal/metrics"
	"github.com/maauso/genspace-api/internal/storage"
	"github.com/maauso/genspace-api/internal/vertex"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Jobs     *job.Service
	History  history.Repository
	Images   media.Processor
	Metrics  *metrics.Prometheus
	MediaDir string
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	prom, err := metrics.New()
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	dispatcher, err := NewDispatcher(ctx, cfg, logger, prom)
	if err != nil {
		return nil, err
	}

	images, err := media.NewImageProcessor(cfg.ReferenceImageMaxDim, media.WithMaxPixels(cfg.ReferenceImageMaxPix))
	if err != nil {
		return nil, fmt.Errorf("create image processor: %w", err)
	}

	hist := history.NewMemoryRepository()
	svc := job.NewService(
		job.NewMemoryRepository(),
		dispatcher,
		job.WithHistory(hist),
		job.WithDefaults(defaults(cfg)),
		job.WithLogger(logger),
	)

	deps := &Dependencies{
		Jobs:    svc,
		History: hist,
		Images:  images,
		Metrics: prom,
	}
	if cfg.LocalMediaEnabled() {
		deps.MediaDir = cfg.LocalMediaDir
	}
	return deps, nil
}

// NewDispatcher builds the generation dispatcher: credential pool, token
// broker, provider client, relay storage and poller. An empty credential
// pool is not an error here; every dispatch then fails fast with
// generator.ErrConfiguration.
func NewDispatcher(ctx context.Context, cfg *config.Config, logger *slog.Logger, observer generator.Observer) (*generator.Dispatcher, error) {
	pool, err := credential.Load(cfg.CredentialSecrets(logger), logger)
	switch {
	case errors.Is(err, credential.ErrNoCredentials):
		logger.Error("no usable service account keys configured, generations will fail")
		pool = credential.NewPool(nil)
	case err != nil:
		return nil, fmt.Errorf("load credentials: %w", err)
	default:
		logger.Info("credential pool loaded", slog.Int("credentials", pool.Len()))
	}

	var clientOpts []vertex.ClientOption
	if cfg.VertexBaseURL != "" {
		clientOpts = append(clientOpts, vertex.WithBaseURL(cfg.VertexBaseURL))
	}
	client, err := vertex.NewClient(cfg.VertexLocation, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create Vertex client: %w", err)
	}

	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	normalizer := generator.NewNormalizer(store, logger,
		generator.WithKeyPrefix(cfg.StorageKeyPrefix),
		generator.WithHistoryMaxURLLength(cfg.HistoryMaxURLLength),
	)

	return generator.NewDispatcher(pool, credential.NewGoogleBroker(), client,
		generator.WithPolicy(generator.Policy{
			Retry:                   generator.RetryPolicy(strings.ToLower(cfg.RetryPolicy)),
			RotateOnMalformed:       cfg.RotateOnMalformed,
			RestartFailedOperations: cfg.RestartFailedOperations,
		}),
		generator.WithPoller(generator.NewPoller(cfg.PollInterval, cfg.PollMaxAttempts)),
		generator.WithPayloadBuilder(generator.NewPayloadBuilder(cfg.VideoResolution)),
		generator.WithNormalizer(normalizer),
		generator.WithDefaults(defaults(cfg)),
		generator.WithObserver(observer),
		generator.WithLogger(logger),
	), nil
}

func defaults(cfg *config.Config) generator.Defaults {
	return generator.Defaults{
		ImageModel: cfg.DefaultImageModel,
		VideoModel: cfg.DefaultVideoModel,
	}
}

// initStorage creates the relay backend based on configuration: S3, then
// local disk, otherwise relaying is disabled and results fall back to data
// URLs.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(ctx, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	if cfg.LocalMediaEnabled() {
		baseURL := strings.TrimRight(cfg.PublicBaseURL, "/") + "/media"
		localStore, err := storage.NewLocalStorage(cfg.LocalMediaDir, baseURL)
		if err != nil {
			return nil, fmt.Errorf("create local storage: %w", err)
		}
		logger.Info("local media storage configured",
			slog.String("dir", localStore.Root()),
			slog.String("base_url", baseURL),
		)
		return localStore, nil
	}

	logger.Info("durable storage not configured, results use data URLs")
	return storage.Disabled{}, nil
}
