package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zeldris273/watchparty/internal/controller"
	"github.com/zeldris273/watchparty/internal/repository/connection/inmemory"
	"github.com/zeldris273/watchparty/internal/repository/room/redis"
	"github.com/zeldris273/watchparty/internal/service/room"
	"github.com/zeldris273/watchparty/pkg/ctxlogger"
	"github.com/zeldris273/watchparty/pkg/redisclient"
)

type AppConfig struct {
	Host              string `json:"host"`
	Port              int    `json:"port"`
	LogLevel          string `json:"log_level"`
	ViewersLimit      int    `json:"viewers_limit"`
	RoomTTLHours      int    `json:"room_ttl_hours"`
	AutoStartInterval int    `json:"auto_start_interval_seconds"`
	RedisHost         string `json:"redis_host"`
	RedisPort         int    `json:"redis_port"`
	RedisPassword     string `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.ViewersLimit < 1 {
		return fmt.Errorf("viewers limit must be greater than 0")
	}
	if cfg.RoomTTLHours < 1 {
		return fmt.Errorf("room ttl must be greater than 0")
	}
	if cfg.AutoStartInterval < 1 {
		return fmt.Errorf("auto-start interval must be greater than 0")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}
	logger := slog.New(h)

	rc, err := redisclient.New(ctx, redisclient.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	roomRepo := redis.NewRepo(rc, time.Duration(cfg.RoomTTLHours)*time.Hour)
	connRepo := inmemory.NewRepo()
	roomService := room.NewService(roomRepo, connRepo, cfg.ViewersLimit, logger)
	ctrl := controller.NewController(roomService, logger)
	defer ctrl.Close()

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: ctrl.GetMux(),
	}

	serverCtx, serverStopCtx := context.WithCancel(ctx)
	defer serverStopCtx()

	go ctrl.RunAutoStartLoop(serverCtx, time.Duration(cfg.AutoStartInterval)*time.Second)

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
