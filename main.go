package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"messaging-service/internal/auth"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	grpcserver "messaging-service/internal/grpc"
	"messaging-service/internal/handlers"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/ratelimit"
	"messaging-service/internal/repositories"
	"messaging-service/internal/services"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.ServiceName, cfg.Environment, cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}

	database, err := db.Connect(cfg.DBDriver, cfg.DSN(), logger)
	if err != nil {
		logger.Fatal("failed to connect to db", zap.Error(err))
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AuditExchange, logger)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment, logger)

	store := repositories.NewSQLStore(database)
	guard := services.NewAccessGuard(store, logger)
	userService := services.NewUserService(store, auth.NewBcryptHasher(0), auth.NewJWTService(cfg.SecretKey), guard, cfg.AccessTokenTTL, logger)
	chatService := services.NewChatService(store, logger)
	messageService := services.NewMessageService(store, logger)

	var loginLimiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer redisClient.Close()
		loginLimiter = ratelimit.NewRedisLimiter(redisClient, "login:", cfg.LoginRateLimit, cfg.LoginRateWindow, logger)
		logger.Info("login rate limiting enabled", zap.String("redis_addr", cfg.RedisAddr), zap.Int("limit", cfg.LoginRateLimit))
	}

	hub := ws.NewHub(logger)

	userHandler := handlers.NewUserHandler(userService, guard, audit, logger)
	chatHandler := handlers.NewChatHandler(chatService, hub, audit, logger)
	messageHandler := handlers.NewMessageHandler(messageService, hub, logger)
	healthHandler := handlers.NewHealthHandler(store, version, logger)
	chatWS := ws.NewChatWebSocketHandler(hub, userService, guard, chatService, logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logger.Fatal("invalid trusted proxies", zap.Error(err))
	}

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(middleware.RequestContextMiddleware())
	router.Use(middleware.IPGuard(userService, guard, audit, logger))

	authMiddleware := middleware.AuthMiddleware(userService, logger)

	router.GET("/", healthHandler.Root)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/db", healthHandler.Database)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/users", userHandler.Register)
	router.POST("/users/token", ratelimit.Middleware(loginLimiter, logger), userHandler.Login)
	router.GET("/users", authMiddleware, userHandler.List)
	router.GET("/users/me", authMiddleware, userHandler.Me)
	router.PUT("/users/me", authMiddleware, userHandler.UpdateMe)
	router.DELETE("/users/me", authMiddleware, userHandler.DeactivateMe)
	router.GET("/users/me/ips", authMiddleware, userHandler.ListIPs)
	router.POST("/users/me/ips", authMiddleware, userHandler.AddIP)
	router.DELETE("/users/me/ips/:ip_address", authMiddleware, userHandler.RemoveIP)
	router.GET("/users/:user_id", authMiddleware, userHandler.Get)

	router.POST("/chats", authMiddleware, chatHandler.CreateChat)
	router.GET("/chats", authMiddleware, chatHandler.ListChats)
	router.GET("/chats/:chat_id", authMiddleware, chatHandler.GetChat)
	router.PUT("/chats/:chat_id", authMiddleware, chatHandler.UpdateChat)
	router.POST("/chats/:chat_id/users", authMiddleware, chatHandler.AddUsers)
	router.DELETE("/chats/:chat_id/users/:user_id", authMiddleware, chatHandler.RemoveUser)

	router.POST("/messages", authMiddleware, messageHandler.CreateMessage)
	router.GET("/messages/unread", authMiddleware, messageHandler.UnreadCounts)
	router.GET("/messages/chat/:chat_id", authMiddleware, messageHandler.ListChatMessages)
	router.PUT("/messages/:message_id", authMiddleware, messageHandler.UpdateMessage)
	router.DELETE("/messages/:message_id", authMiddleware, messageHandler.DeleteMessage)
	router.PUT("/messages/:message_id/read", authMiddleware, messageHandler.MarkRead)

	router.GET("/ws/chats/:chat_id", chatWS.Handle)

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	if cfg.GRPCHealthAddr != "" {
		healthServer := grpcserver.NewHealthServer(store, cfg.ServiceName, logger)
		lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
		if err != nil {
			logger.Fatal("failed to listen for grpc health", zap.String("addr", cfg.GRPCHealthAddr), zap.Error(err))
		}
		go healthServer.Watch(ctx, 15*time.Second)
		go func() {
			logger.Info("grpc health server listening", zap.String("addr", cfg.GRPCHealthAddr))
			if err := healthServer.Serve(lis); err != nil {
				logger.Error("grpc health server stopped", zap.Error(err))
			}
		}()
		defer healthServer.Stop()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http server listening",
			zap.String("addr", srv.Addr),
			zap.String("db_driver", cfg.DBDriver),
			zap.String("audit_publisher", rabbitmq.PublisherMode(publisher)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown failed", zap.Error(err))
	}
}
