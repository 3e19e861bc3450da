// Command redactd serves the redaction HTTP API. Clients upload documents,
// submit annotations, apply redactions and download the cleaned result.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wudi/redactkit/httpapi"
	"github.com/wudi/redactkit/observability"
	"github.com/wudi/redactkit/pdf"
	fitzrender "github.com/wudi/redactkit/render/fitz"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	port := getEnvOrDefault("REDACTD_PORT", "8080")
	level := observability.ParseLevel(getEnvOrDefault("REDACTD_LOG_LEVEL", "info"))
	logger := observability.NewStdLogger(level)

	var opts httpapi.Options
	if v := os.Getenv("REDACTD_UPLOAD_LIMIT"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			log.Fatalf("bad REDACTD_UPLOAD_LIMIT %q: want a positive byte count", v)
		}
		opts.UploadLimit = n
	}
	if v := os.Getenv("REDACTD_CORS_ORIGINS"); v != "" {
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				opts.AllowedOrigins = append(opts.AllowedOrigins, origin)
			}
		}
	}

	api := httpapi.NewServer(pdf.NewSource(), fitzrender.NewSource(), logger, opts)
	defer api.Close()

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", observability.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", observability.Error("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown", observability.Error("error", err))
	}
	logger.Info("server exited")
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
