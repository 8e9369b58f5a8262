package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/duochat/duochat/internal/auth"
	"github.com/duochat/duochat/internal/config"
	httpHandler "github.com/duochat/duochat/internal/delivery/http"
	"github.com/duochat/duochat/internal/delivery/ws"
	"github.com/duochat/duochat/internal/middleware"
	"github.com/duochat/duochat/internal/store"
	"github.com/duochat/duochat/internal/usecase"
)

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg.Build()
}

func main() {
	// Load .env file (ignore error if not exists, e.g. in production)
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	var st store.Store
	if cfg.MongoURI != "" {
		st, err = store.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			cancel()
			logger.Fatal("connect to mongo", zap.Error(err))
		}
		logger.Info("using mongo store", zap.String("database", cfg.MongoDatabase))
	} else {
		st = store.NewMemoryStore()
		logger.Warn("MONGO_URI not set, using in-memory store")
	}
	cancel()

	// Realtime core
	verifier := auth.NewJWTVerifier(cfg.JWTSecret)
	registry := ws.NewSessionRegistry()
	router := ws.NewRoomRouter(logger)
	chat := usecase.NewChatService(st, router, logger)
	gateway := ws.NewGateway(registry, router, chat, verifier, logger)
	gateway.SetPresence(usecase.NewPresenceTracker(st, gateway, logger))

	handler := httpHandler.NewHandler(st, chat, gateway, cfg.AllowedOrigins, logger)

	apiLimiter := middleware.NewIPRateLimiter(cfg.RateLimitAPI, int(cfg.RateLimitAPI)*2)
	wsLimiter := middleware.NewIPRateLimiter(cfg.RateLimitWS, int(cfg.RateLimitWS)*2)

	authed := func(next http.Handler) http.Handler {
		return middleware.RateLimit(apiLimiter)(
			middleware.RequireAuth(verifier, logger)(next))
	}

	mux := http.NewServeMux()
	handler.Register(mux, authed)
	mux.HandleFunc("GET /ws", middleware.RateLimitFunc(wsLimiter, handler.HandleWebSocket))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      middleware.SecurityHeaders(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	if err := st.Close(shutdownCtx); err != nil {
		logger.Error("close store", zap.Error(err))
	}

	logger.Info("server exited")
}
