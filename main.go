package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"messenger-service/internal/auth"
	"messenger-service/internal/config"
	"messenger-service/internal/db"
	"messenger-service/internal/handlers"
	"messenger-service/internal/middleware"
	"messenger-service/internal/observability"
	"messenger-service/internal/rabbitmq"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	shutdownOTel, err := observability.SetupOTel(context.Background(),
		cfg.OTel.Enabled, cfg.OTel.Endpoint, cfg.OTel.Insecure)
	if err != nil {
		logger.Fatal("failed to set up tracing", zap.Error(err))
	}
	defer shutdownOTel(context.Background())

	database, err := db.Connect(cfg.DB.DSN, logger)
	if err != nil {
		logger.Fatal("failed to connect to db", zap.Error(err))
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
	defer publisher.Close()
	audit := telemetry.NewAuditEmitter(publisher, "ws_events.messenger", "messenger-service", logger)

	verifier := auth.NewJWTVerifier(cfg.JWT.Secret)

	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	userRepo := repositories.NewUserRepo(database)

	hub := ws.NewHub(logger)
	gateway := ws.NewGateway(hub, verifier, chatRepo, messageRepo, userRepo, audit, logger)

	chatHandler := handlers.NewChatHandler(chatRepo, userRepo, hub, logger)
	messageHandler := handlers.NewMessageHandler(messageRepo, chatRepo, hub, audit, logger)

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("messenger-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.GET("/chats", authMiddleware, chatHandler.ListChats)
	router.GET("/chats/:chat_id", authMiddleware, chatHandler.GetChat)
	router.POST("/chats/dm", authMiddleware, chatHandler.StartDM)
	router.POST("/chats/groups", authMiddleware, chatHandler.CreateGroup)
	router.PATCH("/chats/groups/:chat_id", authMiddleware, chatHandler.UpdateGroup)
	router.POST("/chats/join", authMiddleware, chatHandler.JoinGroup)
	router.DELETE("/chats/:chat_id/leave", authMiddleware, chatHandler.LeaveChat)
	router.DELETE("/chats/:chat_id", authMiddleware, chatHandler.HideChat)
	router.POST("/chats/:chat_id/unhide", authMiddleware, chatHandler.UnhideChat)

	router.GET("/messages/:chat_id", authMiddleware, messageHandler.ListMessages)
	router.POST("/messages/:chat_id/read", authMiddleware, messageHandler.MarkChatRead)
	router.DELETE("/messages/:message_id", authMiddleware, messageHandler.DeleteMessage)

	router.GET("/ws", gateway.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	logger.Info("starting server", zap.String("port", cfg.Server.Port))
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
