package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"bubblestream/internal/bubble"
	"bubblestream/internal/config"
	"bubblestream/internal/demo"
	"bubblestream/internal/httpapi"
	"bubblestream/internal/middleware"
	"bubblestream/internal/runtime"
	"bubblestream/internal/seed"
	"bubblestream/internal/stream"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
	)

	store := bubble.NewSessionStore()
	index := bubble.NewConversationIndex()

	if err := seed.LoadFile(cfg.SeedFile, index); err != nil {
		log.Fatalf("Failed to load seed file: %v", err)
	}

	handlers := runtime.NewHandlerRegistry()
	greeter := demo.NewGreeter("")
	handlers.OnNewChat(greeter.OnNewChat)
	handlers.OnMessage(demo.OnMessage)

	registry := stream.NewCancelRegistry()
	controller := stream.NewController(stream.Config{
		Heartbeat:           cfg.HeartbeatInterval,
		IdleTimeout:         cfg.IdleTimeout,
		FirstEventTimeout:   cfg.FirstEventTimeout,
		StreamQueueCapacity: cfg.StreamQueueCapacity,
	}, logger, registry)

	api := httpapi.NewHandler(store, index, handlers, controller, logger)

	mux := http.NewServeMux()
	api.Register(mux)

	var h http.Handler = mux
	h = middleware.Recovery(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // disabled: NDJSON streams can run indefinitely
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server starting", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
