package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/damoang/angple-messenger/internal/config"
	"github.com/damoang/angple-messenger/internal/handler"
	"github.com/damoang/angple-messenger/internal/invalidate"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/migration"
	"github.com/damoang/angple-messenger/internal/presence"
	"github.com/damoang/angple-messenger/internal/realtime"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/internal/routes"
	"github.com/damoang/angple-messenger/internal/service"
	pkgcache "github.com/damoang/angple-messenger/pkg/cache"
	"github.com/damoang/angple-messenger/pkg/jwt"
	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
	pkgredis "github.com/damoang/angple-messenger/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// getConfigPath returns config file path based on APP_ENV environment variable
func getConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

func main() {
	dotenvFiles := config.LoadDotEnv()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.InitStructured(env)
	pkglogger.Info("APP_ENV=%s, loaded env files: %v", env, dotenvFiles)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	pkglogger.SetLevel(cfg.Server.LogLevel)
	config.LogResolved(cfg)

	// MySQL is required: every operation reads or writes it
	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := migration.Run(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	pkglogger.Info("Connected to MySQL")

	// Redis is optional: without it the hub stays local and the inbox cache is off
	redisClient, err := pkgredis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
	)
	if err != nil {
		pkglogger.Warn("Failed to connect to Redis: %v (running single instance)", err)
		redisClient = nil
	} else {
		pkglogger.Info("Connected to Redis")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub(redisClient, cfg.Presence.BufferSize)
	go hub.Run()
	defer hub.Stop()

	notifier := service.NewNotifier(invalidate.NewVersions(), hub)
	go notifier.Listen(ctx)

	// Repositories
	convRepo := repository.NewConversationRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	actorRepo := repository.NewActorRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	blockRepo := repository.NewBlockRepository(db)
	reportRepo := repository.NewReportRepository(db)

	// Services
	blockService := service.NewBlockService(blockRepo, actorRepo)
	convService := service.NewConversationService(convRepo, memberRepo, actorRepo, notifier)
	msgService := service.NewMessageService(msgRepo, convRepo, memberRepo, blockService, service.SenderOnly, notifier, cfg.Messaging)
	readService := service.NewReadStateService(msgRepo, convRepo, memberRepo, notifier)
	inboxService := service.NewInboxService(convRepo, memberRepo, msgRepo, actorRepo, settingRepo, readService, pkgcache.NewService(redisClient), notifier)
	reportSink := service.NewGormReportSink(reportRepo, 256)
	defer reportSink.Close()

	presenceChannel := presence.NewChannel(hub, cfg.Presence.StaleAfter, cfg.Presence.BufferSize)
	gate := service.NewGate(convRepo, memberRepo)

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.CORS.AllowOrigins)))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes.Setup(router, routes.Handlers{
		Conversation: handler.NewConversationHandler(convService, actorRepo),
		Message:      handler.NewMessageHandler(msgService),
		Read:         handler.NewReadHandler(readService),
		Inbox:        handler.NewInboxHandler(inboxService, time.Duration(cfg.Messaging.ChangesTimeout)*time.Second),
		Block:        handler.NewBlockHandler(blockService),
		Report:       handler.NewReportHandler(reportSink),
		WS:           handler.NewWSHandler(hub, gate, presenceChannel, cfg.CORS.AllowOrigins),
		Health:       handler.NewHealthHandler(db, redisClient),
	}, routes.Options{
		JWT:               jwt.NewManager(cfg.JWT.Secret, cfg.JWT.ExpiresIn, cfg.JWT.RefreshIn),
		Actors:            actorRepo,
		Redis:             redisClient,
		SendRatePerMinute: cfg.Messaging.SendRatePerMinute,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		pkglogger.Info("Starting messenger on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	pkglogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		pkglogger.Error("Graceful shutdown failed: %v", err)
	}
	closeRedis(redisClient)
}

func corsConfig(allowOrigins string) cors.Config {
	origins := []string{"http://localhost:3000"}
	if allowOrigins != "" {
		origins = origins[:0]
		for _, o := range strings.Split(allowOrigins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}
	return cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", middleware.ActingAsHeader},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:           86400,
	}
}

func closeRedis(c *redis.Client) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		pkglogger.Warn("redis close: %v", err)
	}
}

// initDB MySQL 연결 초기화. 시각은 UTC 마이크로초로 저장한다.
func initDB(cfg *config.Config) (*gorm.DB, error) {
	mysqlCfg, err := mysqldriver.ParseDSN(cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("DSN 파싱 실패: %w", err)
	}
	if mysqlCfg.Params == nil {
		mysqlCfg.Params = map[string]string{}
	}
	mysqlCfg.Params["time_zone"] = "'+00:00'"

	logLevel := gormlogger.Warn
	if cfg.IsDevelopment() {
		logLevel = gormlogger.Info
	}
	db, err := gorm.Open(mysql.Open(mysqlCfg.FormatDSN()), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(logLevel),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	return db, nil
}
