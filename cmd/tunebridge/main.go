package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"tunebridge/api"
	"tunebridge/handlers"
	"tunebridge/internal/database"
	"tunebridge/services/extract"
	"tunebridge/services/resolve"
	"tunebridge/services/search"
	"tunebridge/utils"
)

func main() {
	var (
		addr      = flag.String("addr", envOr("TUNEBRIDGE_ADDR", ":8087"), "listen address")
		dbPath    = flag.String("db", envOr("TUNEBRIDGE_DB", "data/tunebridge.db"), "sqlite database path")
		searchURL = flag.String("search-url", envOr("TUNEBRIDGE_SEARCH_URL", "https://invidious.snopyta.org"), "video search API base URL")
		ytdlpBin  = flag.String("ytdlp", envOr("TUNEBRIDGE_YTDLP", "yt-dlp"), "yt-dlp binary path")
		logDir    = flag.String("log-dir", os.Getenv("TUNEBRIDGE_LOG_DIR"), "directory for rotated log files (empty logs to stderr)")
	)
	flag.Parse()

	if *logDir != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   filepath.Join(*logDir, "tunebridge.log"),
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		})
	}

	db, err := database.NewDB(database.Config{DatabasePath: *dbPath})
	if err != nil {
		log.Fatalf("[main] failed to open database: %v", err)
	}
	defer db.Close()

	searchClient := search.NewClient(*searchURL)
	extractor := extract.NewExtractor(extract.WithBinary(*ytdlpBin))
	resolver := resolve.NewService(db.Mappings, searchClient, extractor, resolve.Options{})

	resolveHandler := handlers.NewResolveHandler(resolver)
	sessionHandler := handlers.NewSessionHandler(resolver)

	limiter := api.NewIPRateLimiter(rate.Limit(2), 10)

	r := utils.NewRouter()
	r.HandleFunc("/resolve/video/{catalogId}", limiter.Limit(resolveHandler.ResolveVideo)).Methods(http.MethodGet)
	r.HandleFunc("/resolve/stream/{videoId}", limiter.Limit(resolveHandler.ResolveStream)).Methods(http.MethodGet)
	r.HandleFunc("/resolve/batch", limiter.Limit(resolveHandler.ResolveBatch)).Methods(http.MethodPost)
	r.HandleFunc("/session", sessionHandler.Create).Methods(http.MethodPost)
	r.HandleFunc("/session/{sessionId}/candidates", sessionHandler.Candidates).Methods(http.MethodPost)
	r.HandleFunc("/session/{sessionId}/play/{catalogId}", limiter.Limit(sessionHandler.Play)).Methods(http.MethodGet)
	r.HandleFunc("/session/{sessionId}", sessionHandler.Delete).Methods(http.MethodDelete)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("[main] listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("[main] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] shutdown error: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
