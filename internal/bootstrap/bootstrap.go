// Package bootstrap provides dependency initialization for the Logo Animator API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/logo-animator-api/internal/config"
	"github.com/maauso/logo-animator-api/internal/credential"
	"github.com/maauso/logo-animator-api/internal/gemini"
	"github.com/maauso/logo-animator-api/internal/job"
	"github.com/maauso/logo-animator-api/internal/media"
	"github.com/maauso/logo-animator-api/internal/session"
	"github.com/maauso/logo-animator-api/internal/storage"
	"github.com/maauso/logo-animator-api/internal/studio"
)

// apiKeyEnv is the variable the env credential mode reads on every call.
const apiKeyEnv = "GEMINI_API_KEY"

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Sessions *session.Manager
	Jobs     job.Repository
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize credential host
	var (
		keys     credential.Provider
		selector credential.Selector
		opts     = []session.Option{session.WithLogger(logger)}
	)
	if cfg.HostKeySelection() {
		hostStore := credential.NewMemoryStore(logger)
		keys, selector = hostStore, hostStore
		opts = append(opts, session.WithKeySetter(hostStore))
		logger.Info("API key is selected per host store")
	} else {
		keys, selector = credential.NewEnvProvider(apiKeyEnv), credential.AlwaysReady{}
		logger.Info("API key is read from the environment", slog.String("variable", apiKeyEnv))
	}

	// Initialize Gemini client factory and result downloader
	var clientOpts []gemini.ClientOption
	if cfg.GeminiBaseURL != "" {
		clientOpts = append(clientOpts, gemini.WithBaseURL(cfg.GeminiBaseURL))
	}

	st := studio.New(
		gemini.NewFactory(clientOpts...),
		gemini.NewDownloader(),
		keys,
		studio.WithLogger(logger),
		studio.WithImageModel(cfg.ImageModel),
		studio.WithVideoModel(cfg.VideoModel),
		studio.WithResolution(cfg.VideoResolution),
		studio.WithDefaultPolling(
			studio.WithInterval(cfg.PollInterval),
			studio.WithTimeout(cfg.PollTimeout),
			studio.WithMaxAttempts(cfg.PollMaxAttempts),
		),
	)

	// Poster frames are optional
	if cfg.PosterFrames {
		opts = append(opts, session.WithPosterFrames(media.NewFFmpegProcessor(cfg.FFmpegPath)))
		logger.Info("poster frames enabled", slog.String("ffmpeg_path", cfg.FFmpegPath))
	}

	// Initialize job repository
	repo := job.NewMemoryRepository()

	return &Dependencies{
		Sessions: session.NewManager(st, selector, store, repo, opts...),
		Jobs:     repo,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			KeyPrefix:       cfg.S3KeyPrefix,
		}
		s3Store, err := storage.NewS3Storage(ctx, cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", localStore.TempDir()),
	)
	return localStore, nil
}
