package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/davidmr/geotrack/internal/config"
	httpHandler "github.com/davidmr/geotrack/internal/delivery/http"
	"github.com/davidmr/geotrack/internal/delivery/ws"
	"github.com/davidmr/geotrack/internal/domain"
	"github.com/davidmr/geotrack/internal/middleware"
	"github.com/davidmr/geotrack/internal/storage"
)

func main() {
	// Load .env file (ignore error if not exists, e.g. in production)
	_ = godotenv.Load()

	// Reload config after loading .env
	config.AppConfig = config.LoadFromEnv()
	cfg := config.AppConfig

	// Configuring Logging
	if cfg.LogLevel == "silent" || cfg.LogLevel == "off" {
		log.SetOutput(io.Discard)
	}

	// Apply configured rate limits
	middleware.ConfigureLimiters(cfg.RateLimitAPI, cfg.RateLimitWS, cfg.RateLimitStrict)

	// Initialize dependencies
	store, err := storage.Open(cfg.DBFile)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	locationWriter := storage.NewLocationWriter(store, domain.LocationQueueSize)

	hub := ws.NewHub()
	engine := ws.NewEngine(hub, store, locationWriter, cfg.DefaultRoom)
	engine.SetMaxMessageSize(cfg.MaxMessageSize)
	handler := httpHandler.NewHandler(store, engine)

	// Setup routes
	mux := http.NewServeMux()

	// Serve static files (map page and assets)
	fs := http.FileServer(http.Dir("./static"))
	mux.Handle("/static/", http.StripPrefix("/static/", fs))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, "./static/index.html")
	})

	// WebSocket route with rate limiting
	mux.HandleFunc("/ws", middleware.RateLimitFunc(middleware.WebSocketLimiter, handler.HandleWebSocket))

	// API routes with rate limiting
	mux.HandleFunc("/register", middleware.RateLimitFunc(middleware.StrictLimiter, handler.HandleRegister))
	mux.HandleFunc("/history", middleware.RateLimitFunc(middleware.APILimiter, handler.HandleHistory))
	mux.HandleFunc("/health", handler.HandleHealth)

	// Apply security headers middleware to all requests
	securedHandler := middleware.SecurityHeaders(mux)

	// Create server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      securedHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("geotrack running at http://localhost:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Connections are gone; flush pending location appends before closing
	// the database
	locationWriter.Close()

	log.Println("Server exited gracefully")
}
