// cmd/gateway/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"telemetry-gateway/internal/api"
	"telemetry-gateway/internal/broadcast"
	"telemetry-gateway/internal/config"
	"telemetry-gateway/internal/forward"
	"telemetry-gateway/internal/ingest"
	"telemetry-gateway/internal/storage"
)

func main() {
	configPath := flag.String("config", ".", "Path to the configuration file directory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("starting telemetry gateway", "broker", cfg.MQTT.Broker, "topic", cfg.MQTT.Topic, "port", cfg.Server.Port)

	// --- Storage ---
	var (
		store   api.ReadingStore
		pgStore *storage.PostgresStore
	)
	if cfg.Storage.PostgresURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pgStore, err = storage.NewPostgresStore(ctx, cfg.Storage.PostgresURL, cfg.Storage.RedisAddr)
		cancel()
		if err != nil {
			logger.Error("failed to connect storage", "error", err)
			os.Exit(1)
		}
		defer pgStore.Close()
		store = pgStore
		logger.Info("using postgres storage", "redis", cfg.Storage.RedisAddr)
	} else {
		store = storage.NewMemoryStore()
		logger.Warn("no postgres url configured, readings are held in memory only")
	}

	// --- Pipeline ---
	hub := broadcast.NewHub(logger, cfg.Broadcast.SubscriberBuffer)
	forwarder := forward.New(store, hub, logger)

	// --- MQTT ingestion ---
	var listener *ingest.Listener
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTT.Broker).
		SetClientID(cfg.MQTT.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOnConnectHandler(func(mqtt.Client) {
			// Runs on every (re)connect, so the subscription survives
			// broker drops.
			logger.Info("connected to MQTT broker", "broker", cfg.MQTT.Broker)
			if err := listener.Start(); err != nil {
				logger.Error("subscribe failed", "error", err)
			}
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("MQTT connection lost", "error", err)
		})

	client := mqtt.NewClient(opts)
	listener = ingest.NewListener(client, cfg.MQTT.Topic, forwarder, logger)

	if token := client.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		// Non-fatal: the client keeps retrying in the background.
		logger.Warn("initial MQTT connect failed, retrying in background", "error", token.Error())
	}
	defer client.Disconnect(250)

	// --- HTTP server ---
	handler := api.NewHandler(store, forwarder, hub, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(handler),
	}

	go func() {
		logger.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	listener.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}

	logger.Info("gateway stopped")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
