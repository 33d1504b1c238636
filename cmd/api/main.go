package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/panjf2000/ants/v2"

	"autovideo/internal/archive"
	"autovideo/internal/audio"
	"autovideo/internal/domain"
	"autovideo/internal/http/handlers"
	httpapi "autovideo/internal/http/httpapi"
	"autovideo/internal/infra"
	"autovideo/internal/infra/credentials"
	"autovideo/internal/infra/geoip"
	"autovideo/internal/jobstore"
	"autovideo/internal/pipeline"
	"autovideo/internal/providers/anthropic"
	"autovideo/internal/providers/elevenlabs"
	"autovideo/internal/providers/export"
	"autovideo/internal/providers/ffmpeg"
	"autovideo/internal/providers/pexels"
	"autovideo/internal/providers/script"
	"autovideo/internal/storage"
	"autovideo/internal/voices"
)

const (
	shutdownTimeout = 30 * time.Second
	poolDrain       = 10 * time.Second
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	baseLogger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)
	logger := &baseLogger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres is optional: it backs stored provider keys and the job archive.
	var (
		dbpool *pgxpool.Pool
		arch   *archive.Archive
	)
	if cfg.DatabaseURL != "" {
		dbpool, err = infra.NewDBPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()

		runner := infra.NewSQLRunner(dbpool, logger)
		if err := resolveKeys(ctx, cfg, credentials.NewStore(runner)); err != nil {
			logger.Warn().Err(err).Msg("stored provider keys unavailable")
		}
		arch = archive.New(runner, 0, logger)
		if err := arch.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare job archive")
		}
		go arch.Run(context.Background())
	}
	if missing := cfg.MissingProviderKeys(); len(missing) > 0 {
		logger.Warn().Strs("missing", missing).Msg("provider keys not configured")
	}

	tempFiles, err := storage.NewFileStore(cfg.TempDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare temp dir")
	}
	outputFiles, err := storage.NewFileStore(cfg.OutputDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare output dir")
	}

	stages, voiceClient, err := buildStages(cfg, tempFiles, outputFiles, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build pipeline stages")
	}

	pool, err := ants.NewPool(cfg.WorkerPool, ants.WithPanicHandler(func(p any) {
		logger.Error().Interface("panic", p).Msg("worker pool task panicked")
	}))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create worker pool")
	}

	var storeOpts []jobstore.Option
	if arch != nil {
		storeOpts = append(storeOpts, jobstore.WithObserver(arch.Observe))
	}
	store := jobstore.New(storeOpts...)

	stageCtx, cancelStages := context.WithCancel(context.Background())
	defer cancelStages()
	orchestrator := pipeline.New(store, stages, pool, pipeline.Options{
		StageTimeout: cfg.StageTimeout,
		Prober:       pipeline.AudioProberFunc(audio.Probe),
		Ready:        readyCheck(cfg),
		BaseContext:  stageCtx,
		Logger:       logger,
	})

	fallback, err := voices.LoadFile(cfg.VoicesFile)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.VoicesFile).Msg("voices file unreadable, using defaults")
		fallback = voices.Defaults
	}
	var lister voices.Lister
	if voiceClient.Configured() {
		lister = voiceClient
	}
	catalog := voices.NewCatalog(lister, fallback, voices.WithLogger(logger))

	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip database unavailable")
	}
	defer resolver.Close()

	app := handlers.NewApp(orchestrator, catalog, outputFiles, logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CountryLookup:   resolver.Lookup(),
		Logger:          logger,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Int("workers", cfg.WorkerPool).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	cancelStages()
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), poolDrain)
	defer cancelDrain()
	if err := orchestrator.Drain(drainCtx); err != nil {
		logger.Warn().Err(err).Msg("pipeline phases did not finish")
	}
	if err := pool.ReleaseTimeout(poolDrain); err != nil {
		logger.Warn().Err(err).Msg("worker pool did not drain")
	}
	if arch != nil {
		if err := arch.Close(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("job archive did not flush")
		}
	}
	logger.Info().Msg("server stopped")
}

func buildStages(cfg *infra.Config, temp, output *storage.FileStore, logger *infra.Logger) (pipeline.Stages, *elevenlabs.Client, error) {
	model, err := anthropic.NewClient(anthropic.Options{
		APIKey:  cfg.AnthropicAPIKey,
		BaseURL: cfg.AnthropicBaseURL,
		Model:   cfg.AnthropicModel,
		Logger:  logger,
	})
	if err != nil {
		return pipeline.Stages{}, nil, fmt.Errorf("anthropic: %w", err)
	}
	voice, err := elevenlabs.NewClient(elevenlabs.Options{
		APIKey:  cfg.ElevenLabsAPIKey,
		BaseURL: cfg.ElevenLabsURL,
		Model:   cfg.ElevenLabsModel,
		Files:   temp,
		Logger:  logger,
	})
	if err != nil {
		return pipeline.Stages{}, nil, err
	}
	footage, err := pexels.NewClient(pexels.Options{
		APIKey:  cfg.PexelsAPIKey,
		BaseURL: cfg.PexelsBaseURL,
		Files:   temp,
		Logger:  logger,
	})
	if err != nil {
		return pipeline.Stages{}, nil, err
	}
	assembler, err := ffmpeg.NewAssembler(ffmpeg.Options{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		Files:       temp,
		Logger:      logger,
	})
	if err != nil {
		return pipeline.Stages{}, nil, err
	}

	var publisher export.Publisher
	if cfg.S3Bucket != "" {
		s3pub, err := storage.NewS3Publisher(storage.S3Config{Bucket: cfg.S3Bucket, Region: cfg.S3Region, Prefix: cfg.S3Prefix})
		if err != nil {
			return pipeline.Stages{}, nil, fmt.Errorf("s3: %w", err)
		}
		publisher = s3pub
	}
	exporter, err := export.NewExporter(export.Options{Files: output, Publisher: publisher, Logger: logger})
	if err != nil {
		return pipeline.Stages{}, nil, err
	}

	writer := script.NewGenerator(model)
	return pipeline.Stages{
		Analyzer:  writer,
		Writer:    writer,
		Editor:    writer,
		Voice:     voice,
		Footage:   footage,
		Blueprint: script.NewPlanner(model, logger),
		Assembler: assembler,
		Exporter:  exporter,
	}, voice, nil
}

// resolveKeys fills provider keys missing from the environment from the
// integration_tokens table.
func resolveKeys(ctx context.Context, cfg *infra.Config, store *credentials.Store) error {
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	targets := []struct {
		provider string
		key      *string
	}{
		{credentials.ProviderAnthropic, &cfg.AnthropicAPIKey},
		{credentials.ProviderPexels, &cfg.PexelsAPIKey},
		{credentials.ProviderElevenLabs, &cfg.ElevenLabsAPIKey},
	}
	for _, t := range targets {
		key, err := store.Resolve(ctx, t.provider, *t.key)
		if err != nil {
			return err
		}
		*t.key = key
	}
	return nil
}

// readyCheck rejects new jobs while the providers needed for the first
// phase are missing. ElevenLabs is checked when the voice stage runs.
func readyCheck(cfg *infra.Config) func(context.Context) error {
	return func(context.Context) error {
		var missing []string
		for _, key := range cfg.MissingProviderKeys() {
			if key != "ELEVENLABS_API_KEY" {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("%s: %w", strings.Join(missing, ", "), domain.ErrNotConfigured)
		}
		return nil
	}
}
