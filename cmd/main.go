package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/telecare-platform/signaling-service/config"
	"github.com/telecare-platform/signaling-service/internal/records"
	"github.com/telecare-platform/signaling-service/internal/registry"
	"github.com/telecare-platform/signaling-service/internal/service"
	httpx "github.com/telecare-platform/signaling-service/internal/transport/http"
	"github.com/telecare-platform/signaling-service/internal/transport/ws"
	"github.com/telecare-platform/signaling-service/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting signaling-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- room registry ---
	reg := registry.New(cfg.Rooms.MaxParticipants)

	// --- admin event stream ---
	events := httpx.NewSSEManager()

	// --- records hand-off (optional) ---
	var recordsSink service.RecordsSink
	if cfg.Records.BaseURL != "" {
		recordsSink = records.NewClient(cfg.Records.BaseURL, cfg.RecordsTimeout())
		slog.Info("records hand-off enabled", "baseURL", cfg.Records.BaseURL)
	}

	// --- hub & services ---
	hub := ws.NewHub()
	memberSvc := service.NewMemberService(reg, hub, events)
	signalSvc := service.NewSignalService(reg, hub)
	apptSvc := service.NewAppointmentService(reg, hub, events, recordsSink)

	// --- WS gateway ---
	wsServer := ws.NewServer(hub, memberSvc, signalSvc, apptSvc)
	wsServer.SetPingInterval(cfg.WSPingInterval())
	wsServer.SetMaxMessageBytes(cfg.WS.MaxMessageBytes)

	// --- HTTP ---
	handler := httpx.NewHandler(reg, memberSvc)
	router := httpx.NewRouter(handler, events, wsServer, cfg.HTTP.AllowedOrigins)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}
