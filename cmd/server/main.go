package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/s-uryansh/convoo/internal/config"
	"github.com/s-uryansh/convoo/internal/database"
	"github.com/s-uryansh/convoo/internal/domain"
	"github.com/s-uryansh/convoo/internal/handler"
	"github.com/s-uryansh/convoo/internal/hub"
	"github.com/s-uryansh/convoo/internal/log"
	"github.com/s-uryansh/convoo/internal/reaper"
	"github.com/s-uryansh/convoo/internal/repository"
	"github.com/s-uryansh/convoo/internal/service"
	"github.com/s-uryansh/convoo/internal/throttle"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.L().Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	log.Init(log.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Level == "debug",
		ServiceName: "convoo",
	})
	logger := log.L()

	// Connect to database using GORM
	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.AutoMigrate(db, &domain.MessageModel{}, &domain.RoomModel{}); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	// Initialize repositories
	messageRepo := repository.NewGormMessageRepository(db)
	roomRepo := repository.NewGormRoomRepository(db)

	// Initialize reconnection throttle
	var throttleStore throttle.Store
	if cfg.Redis.Enabled {
		throttleStore, err = throttle.NewRedisStore(cfg.Redis, cfg.Room.ReconnectCooldown)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis throttle connected")
	} else {
		throttleStore = throttle.NewMemoryStore(cfg.Room.ReconnectCooldown)
	}

	// Initialize empty-room reaper
	roomReaper := reaper.New(cfg.Room.EmptyTTL, messageRepo.DeleteRoom)

	// Initialize hub and room service
	wsHub := hub.NewHub(cfg.Room.Capacity)
	roomSvc := service.NewRoomService(wsHub, messageRepo, throttleStore, roomReaper, cfg.Room.HistoryLimit)
	defer roomSvc.Close()

	// Initialize handlers
	wsHandler := handler.NewWSHandler(wsHub, roomSvc, cfg.WebSocket)
	httpHandler := handler.NewHTTPHandler(roomRepo)

	// Setup Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(log.GinMiddleware(*logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	wsHandler.RegisterRoutes(r)
	httpHandler.RegisterRoutes(r)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("addr", server.Addr).
			Int("capacity", cfg.Room.Capacity).
			Int("history_limit", cfg.Room.HistoryLimit).
			Dur("empty_ttl", cfg.Room.EmptyTTL).
			Msg("convoo coordinator starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("convoo coordinator stopped")
}
