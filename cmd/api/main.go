package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/geoip"
	"server/internal/orchestrator"
	"server/internal/providers/assets"
	"server/internal/providers/image"
	"server/internal/providers/prompt"
	"server/internal/providers/straighten"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	jobs := repo.NewJobRepository(dbpool)
	if err := jobs.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure schema")
	}

	uploader, err := buildUploader(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure asset storage")
	}

	corrector, err := straighten.NewClient(straighten.ClientOptions{
		APIKey:     cfg.ShiftnAPIKey,
		URL:        cfg.ShiftnURL,
		WebhookURL: cfg.CorrectionWebhookURL(),
		Timeout:    cfg.ShiftnTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure correction client")
	}

	editor, err := image.NewGeminiEditor(image.GeminiOptions{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiEditModel,
		Timeout: cfg.EditTimeout,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure edit client")
	}

	enhancer := buildEnhancer(cfg, logger)

	broker, err := orchestrator.New(orchestrator.Options{
		Jobs:      jobs,
		Uploads:   uploader,
		Corrector: corrector,
		Editor:    editor,
		Enhancer:  enhancer,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to wire orchestrator")
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}

	app := handlers.NewApp(cfg, logger, jobs, broker)
	router := httpapi.NewRouter(app, resolver)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("API listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	broker.Wait()
	logger.Info().Msg("server stopped")
}

func buildUploader(cfg *infra.Config) (assets.Uploader, error) {
	if cfg.CloudinaryConfigured() {
		return assets.NewCloudinary(assets.CloudinaryOptions{
			CloudName:  cfg.CloudinaryCloudName,
			APIKey:     cfg.CloudinaryAPIKey,
			APISecret:  cfg.CloudinaryAPISecret,
			BaseURL:    cfg.CloudinaryBaseURL,
			HTTPClient: &http.Client{Timeout: cfg.UploadTimeout},
		})
	}
	return assets.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
}

// buildEnhancer selects the prompt enhancement provider. A nil return
// disables enhancement: the orchestrator then edits with the user's prompt
// verbatim, which is also what happens when a configured provider fails at
// request time. The static enhancer is only used when explicitly selected.
func buildEnhancer(cfg *infra.Config, logger infra.Logger) prompt.Enhancer {
	switch cfg.PromptProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			logger.Warn().Msg("openai prompt provider selected without api key, enhancement disabled")
			return nil
		}
		enhancer, err := prompt.NewOpenAIEnhancer(prompt.OpenAIOptions{
			APIKey:       cfg.OpenAIAPIKey,
			Model:        cfg.OpenAIModel,
			BaseURL:      cfg.OpenAIBaseURL,
			Organization: cfg.OpenAIOrg,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("openai enhancer unavailable, enhancement disabled")
			return nil
		}
		return enhancer
	case "static":
		return prompt.NewStaticEnhancer()
	default:
		if cfg.GeminiAPIKey == "" {
			logger.Warn().Msg("gemini prompt provider selected without api key, enhancement disabled")
			return nil
		}
		enhancer, err := prompt.NewGeminiEnhancer(prompt.GeminiOptions{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("gemini enhancer unavailable, enhancement disabled")
			return nil
		}
		return enhancer
	}
}
