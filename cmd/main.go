package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tagextract/internal/api"
	"tagextract/internal/config"
	"tagextract/internal/extract"
	fileutil "tagextract/internal/file"
	"tagextract/internal/task"
)

func main() {

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// .env is optional; real deployments set GEMINI_API_KEY directly.
	_ = godotenv.Load()

	cfg, err := config.Load("config.yml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Fatal().Msg("GEMINI_API_KEY is not set")
	}

	if err := fileutil.EnsureDir(cfg.TempDir); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.TempDir).Msg("ensure temp dir")
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())

	extractor, err := extract.NewGeminiExtractor(baseCtx, apiKey)
	if err != nil {
		baseCancel()
		log.Fatal().Err(err).Msg("failed to create gemini client")
	}
	defer extractor.Close()

	taskManager := task.NewManager(extractor, task.Options{
		TempDir:            cfg.TempDir,
		MaxConcurrentTasks: cfg.MaxConcurrentTasks,
		MaxUploadBytes:     int64(cfg.MaxUploadMB) << 20,
	})
	taskManager.SetBaseContext(baseCtx)

	router := setupRouter()
	apiHandler := api.NewAPI(taskManager, cfg.DefaultModel, cfg.DefaultDPI, true)
	apiHandler.RegisterRoutes(router)

	const (
		readHeaderTimeout = 5 * time.Second
		shutdownTimeout   = 15 * time.Second
	)

	srv := newHTTPServer(cfg.Port, router, readHeaderTimeout)

	go func() {
		log.Info().Int("port", cfg.Port).Msg("starting http server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdownSignal()

	gracefulShutdown(srv, baseCancel, taskManager, shutdownTimeout)
}

func setupRouter() *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(api.RequestLogger())
	r.Use(cors.Default())
	return r
}

func newHTTPServer(port int, handler http.Handler, readHeaderTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func waitForShutdownSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")
}

func gracefulShutdown(srv *http.Server, cancelBase context.CancelFunc, tm *task.Manager, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown warning")
	}

	cancelBase()
	done := tm.WaitAll(ctx)
	if !done {
		log.Warn().Msg("background workers did not finish before timeout")
	}
	log.Info().Msg("server exited cleanly")
}
