package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"stocksage/internal/api"
	"stocksage/internal/config"
	"stocksage/internal/logging"
	"stocksage/pkg/stocksage"
)

func main() {
	var host string
	var port int
	var webDir string

	flag.StringVar(&host, "host", "", "Host to bind the server to (overrides STOCKSAGE_HOST)")
	flag.IntVar(&port, "port", 0, "Port to run the server on (overrides STOCKSAGE_PORT)")
	flag.StringVar(&webDir, "web-dir", "", "Directory for the exported frontend build (optional)")
	flag.Parse()

	// A missing .env is fine; credentials may come from the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	if host != "" {
		cfg.Host = host
	}
	if port > 0 {
		cfg.Port = port
	}
	if webDir != "" {
		cfg.WebDir = webDir
	}

	logger, writer, err := logging.NewLogger(cfg.LogDir, slog.LevelInfo)
	if err != nil {
		slog.Error("failed to initialize logger", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Error("failed to close log writer", "err", err)
		}
	}()

	core, err := stocksage.New(stocksage.Options{
		Logger:              logger,
		LLMAPIKey:           cfg.LLMAPIKey,
		LLMBaseURL:          cfg.LLMBaseURL,
		FastAnalysisModel:   cfg.FastAnalysisModel,
		StructuredModel:     cfg.StructuredModel,
		CleanupModel:        cfg.CleanupModel,
		MarketDataToken:     cfg.MarketDataToken,
		MarketDataBaseURL:   cfg.MarketDataBaseURL,
		FundamentalsAPIKey:  cfg.FundamentalsAPIKey,
		FundamentalsBaseURL: cfg.FundamentalsBaseURL,
	})
	if err != nil {
		logger.Error("failed to initialize core", "err", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	handler := api.NewRouter(core)
	if resolved := resolveWebDir(cfg.WebDir); resolved != "" {
		logger.Info("serving frontend", "web_dir", resolved)
		handler = api.WithSPA(handler, resolved)
	}
	handler = middleware.Compress(5)(handler)

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Model invocation chains can take a while.
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server starting", "addr", addr)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	logger.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "err", err)
	}
}

func resolveWebDir(input string) string {
	if input != "" {
		if dirExists(input) {
			return input
		}
		return ""
	}

	candidates := []string{"static", "../static"}
	for _, candidate := range candidates {
		if dirExists(candidate) {
			return candidate
		}
	}
	if exe, err := os.Executable(); err == nil {
		base := filepath.Dir(exe)
		for _, candidate := range candidates {
			path := filepath.Join(base, candidate)
			if dirExists(path) {
				return path
			}
		}
	}
	return ""
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
