package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finboard-backend/internal/config"
	"finboard-backend/internal/handler"
	"finboard-backend/internal/marketdata"
	"finboard-backend/internal/middleware"
	"finboard-backend/internal/service"
	"finboard-backend/internal/storage"
	"finboard-backend/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	store := newStorage(cfg)
	if err := store.Init(); err != nil {
		logger.Errorf("Failed to initialize storage, falling back to memory: %v", err)
		store = storage.NewMemoryStorage()
		store.Init()
	}

	marketClient := marketdata.NewHTTPClient(cfg.Market.BaseURL, cfg.Market.APIKey, cfg.Market.Timeout)
	aggregator := service.NewContextAggregator(marketClient, cfg.Aggregator)

	conversations := service.NewConversationStore(store, cfg.Chat.HistoryWindow)
	assistant := service.NewAssistantClient(cfg.Assistant)
	controller := service.NewChatController(conversations, assistant, aggregator)

	chatHandler := handler.NewChatHandler(conversations, controller)

	// Background refresh of the global context snapshot.
	runCtx, stopBackground := context.WithCancel(context.Background())
	go aggregator.Run(runCtx)
	go conversations.RunCleanup(runCtx, cfg.Session.TTL, cfg.Session.CleanupInterval)

	router := setupRouter(cfg, chatHandler)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Infof("server listening on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	stopBackground()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown failed: %v", err)
	}
	store.Close()
	logger.Info("server stopped")
}

func newStorage(cfg *config.Config) storage.Storage {
	if cfg.Storage.Type == "disk" {
		return storage.NewDiskStorage(cfg.Storage.DataDir)
	}
	return storage.NewMemoryStorage()
}

func setupRouter(cfg *config.Config, chatHandler *handler.ChatHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RateLimit(cfg.RateLimit))

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	api := router.Group("/api")
	{
		chat := api.Group("/chat")
		{
			chat.POST("/stream", chatHandler.StreamChat)
			chat.POST("/message/:message_id/cancel", chatHandler.Cancel)
			chat.POST("/message/:message_id/regenerate", chatHandler.Regenerate)
			chat.PUT("/message/:message_id/feedback", chatHandler.Feedback)

			chat.POST("/conversation", chatHandler.CreateConversation)
			chat.GET("/conversation/list", chatHandler.ListConversations)
			chat.GET("/conversation/:conversation_id", chatHandler.GetConversation)
			chat.GET("/messages/:conversation_id", chatHandler.GetMessages)
			chat.DELETE("/conversation/:conversation_id", chatHandler.DeleteConversation)
		}

		ctx := api.Group("/context")
		{
			ctx.GET("", chatHandler.CurrentContext)
			ctx.PUT("/page", chatHandler.SetPageContext)
		}
	}

	return router
}
