package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/lmoraleda/memoria-server/internal/config"
	"github.com/lmoraleda/memoria-server/internal/engine"
	"github.com/lmoraleda/memoria-server/internal/gateway"
	"github.com/lmoraleda/memoria-server/internal/msgcat"
	"github.com/lmoraleda/memoria-server/internal/obslog"
	"github.com/lmoraleda/memoria-server/internal/registry"
)

const janitorInterval = time.Minute

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	msgs, err := msgcat.New(cfg.MsgTemplateDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	store := registry.NewMemoryStore()
	if cfg.RedisURL != "" {
		store, err = registry.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis store error: %v", err)
		}
		obslog.L().Info("room codes shared via redis")
	}

	// The registry broadcasts through the gateway; the gateway routes frames
	// into the registry's rooms. Wire the cycle through a late-bound func.
	var gw *gateway.Gateway
	reg := registry.New(
		registry.Config{
			RevealDelay: cfg.RevealDelay,
			RoomTTL:     cfg.RoomTTL,
			CodeLen:     cfg.RoomCodeLen,
		},
		store,
		engine.BroadcastFunc(func(roomID string, ev engine.Event) { gw.Broadcast(roomID, ev) }),
	)
	gw = gateway.New(reg, msgs, cfg.AllowedOrigins)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		obslog.L().Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obslog.L().Fatal("serve", zap.Error(err))
		}
	}()

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	go func() {
		t := time.NewTicker(janitorInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				reg.CleanupExpired(janitorCtx)
			case <-janitorCtx.Done():
				return
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	obslog.L().Info("shutting down")

	stopJanitor()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	reg.Close(shutdownCtx)
	_ = store.Close()
	_ = obslog.L().Sync()
}
