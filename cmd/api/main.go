package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"flyerproxy/internal/http/handlers"
	httpapi "flyerproxy/internal/http/httpapi"
	"flyerproxy/internal/infra"
	"flyerproxy/internal/metrics"
	"flyerproxy/internal/orchestrator"
	"flyerproxy/internal/providers/genai"
	"flyerproxy/internal/providers/replicate"
	"flyerproxy/internal/resilient"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	if cfg.IsDevelopment() {
		logger.Debug().Msg("development mode: console logging enabled")
	}
	if cfg.HTTPWriteTimeout < cfg.MinWriteTimeout() {
		logger.Warn().Dur("write_timeout", cfg.HTTPWriteTimeout).Dur("batch_worst_case", cfg.MinWriteTimeout()).Msg("write timeout shorter than the batch path; slow batches will be cut off")
	}
	m := metrics.New()

	fetcher := &resilient.Fetcher{
		Client:  &http.Client{Timeout: cfg.UpstreamTimeout},
		Sleeper: resilient.RealSleeper{},
		Logger:  &logger,
		Metrics: m,
	}
	gemini := genai.NewClient(genai.Options{
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiImageModel,
		Fetcher: fetcher,
		Logger:  &logger,
	})
	enhancer := replicate.NewClient(replicate.Options{
		BaseURL: cfg.ReplicateBaseURL,
		Fetcher: fetcher,
		Logger:  &logger,
	})

	batch := orchestrator.NewBatch(orchestrator.BatchOptions{
		Generator:   gemini,
		Logger:      &logger,
		Metrics:     m,
		Concurrency: cfg.FallbackConcurrency,
	})
	edit := orchestrator.NewEdit(orchestrator.EditOptions{
		Generator: gemini,
		Logger:    &logger,
		Metrics:   m,
	})
	upscale := orchestrator.NewUpscale(orchestrator.UpscaleOptions{
		Enhancer: enhancer,
		Version:  cfg.ReplicateUpscaleVersion,
		Logger:   &logger,
		Metrics:  m,
	})

	app := handlers.NewApp(cfg, batch, edit, upscale, &logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ExposeStackTraces:  cfg.ExposeStackTraces,
		TrustProxyHeaders:  cfg.TrustProxyHeaders,
		RateLimitPerMin:    cfg.RateLimitPerMin,
		Logger:             logger,
		Metrics:            m,
	})

	server := infra.NewHTTPServer(cfg, router)
	ops := infra.NewOpsServer(cfg, httpapi.NewOpsRouter(app, m))

	go func() {
		logger.Info().Str("addr", server.Addr()).Str("model", gemini.Model()).Msg("flyer proxy listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()
	if ops != nil {
		go func() {
			logger.Info().Str("addr", ops.Addr()).Msg("ops listener started")
			if err := ops.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("ops server failed")
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := ops.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown ops server")
	}
	logger.Info().Msg("server stopped")
}
