package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmynk/billparty/internal/auth"
	"github.com/mmynk/billparty/internal/config"
	"github.com/mmynk/billparty/internal/receipt"
	"github.com/mmynk/billparty/internal/server"
	"github.com/mmynk/billparty/internal/storage/sqlite"
	"github.com/mmynk/billparty/pkg/logging"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogJSON)
	logger := slog.Default()

	ctx := context.Background()

	store, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("storage initialized", "database", cfg.DBPath)

	keys := auth.NewKeyCache(nil, cfg.JWKSCacheTTL)
	validator := auth.NewTokenValidator(cfg.Issuer, cfg.ClientID, keys, logger)
	sessions := auth.NewSessionResolver(validator, store, logger)

	objects, err := receipt.NewS3Storage(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize object storage", "error", err)
		os.Exit(1)
	}
	analyzer := receipt.NewHTTPAnalyzer(cfg.OCREndpoint, cfg.OCRAPIKey, nil)
	receipts := receipt.NewService(objects, analyzer, store, cfg.ReceiptKeyPrefix, logger)

	api := server.New(store, sessions, receipts, logger)

	routes := api.Routes()
	mux := http.NewServeMux()
	mux.Handle("/api/", routes)
	mux.Handle("/metrics", routes)

	// Serve the dashboard from the static directory, with SPA fallback.
	staticDir, err := filepath.Abs(cfg.StaticDir)
	if err != nil {
		logger.Error("failed to resolve static path", "error", err)
		os.Exit(1)
	}
	logger.Info("serving static files", "path", staticDir)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		urlPath := r.URL.Path
		if urlPath == "/" {
			urlPath = "/index.html"
		}

		filePath := filepath.Join(staticDir, filepath.Clean(urlPath))
		if !strings.HasPrefix(filePath, staticDir) {
			http.NotFound(w, r)
			return
		}
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
			return
		}
		http.ServeFile(w, r, filePath)
	})

	logger.Info("server starting", "address", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
