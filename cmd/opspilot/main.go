package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	copilotapp "github.com/prams2104/opspilot/internal/copilot/application"
	"github.com/prams2104/opspilot/internal/copilot/infrastructure/anthropic"
	copilothttp "github.com/prams2104/opspilot/internal/copilot/interfaces/http"
	"github.com/prams2104/opspilot/internal/reconciliation/application"
	"github.com/prams2104/opspilot/internal/reconciliation/domain"
	"github.com/prams2104/opspilot/internal/reconciliation/infrastructure/messaging"
	"github.com/prams2104/opspilot/internal/reconciliation/infrastructure/persistence"
	reconhttp "github.com/prams2104/opspilot/internal/reconciliation/interfaces/http"
	"github.com/prams2104/opspilot/pkg/cache"
	"github.com/prams2104/opspilot/pkg/config"
	"github.com/prams2104/opspilot/pkg/db"
	"github.com/prams2104/opspilot/pkg/logger"
	"github.com/prams2104/opspilot/pkg/metrics"
	"github.com/prams2104/opspilot/pkg/middleware"
)

var configPath = flag.String("config", "configs/config.toml", "config file path")

func main() {
	flag.Parse()
	ctx := context.Background()

	// 1. 初始化配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. 初始化日志
	if err := logger.Init(cfg.Logger); err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// 3. 初始化指标
	m := metrics.New(cfg.ServiceName)
	if err := m.Register(); err != nil {
		logger.Fatal(ctx, "Failed to register metrics", "error", err)
	}
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				logger.Error(ctx, "Metrics server exited", "error", err)
			}
		}()
	}

	// 4. 初始化数据库
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to connect database", "error", err)
	}
	defer database.Close()

	if err := database.AutoMigrate(
		&domain.Trade{},
		&domain.LedgerEntry{},
		&domain.ReconciliationIssue{},
		&domain.ReconciliationRun{},
	); err != nil {
		logger.Fatal(ctx, "Failed to migrate database", "error", err)
	}

	// 5. 初始化仓储与可选基础设施
	repo := persistence.NewRepository(database.DB)

	var publisher application.IssuePublisher
	if cfg.Kafka.Enabled {
		kafkaPublisher := messaging.NewKafkaIssuePublisher(messaging.Config{
			Brokers:      cfg.Kafka.Brokers,
			IssueTopic:   cfg.Kafka.IssueTopic,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	var statusCache copilotapp.StatusCache
	if cfg.Redis.Enabled {
		redisCache, err := cache.New(cache.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxPoolSize:  cfg.Redis.MaxPoolSize,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			logger.Error(ctx, "Failed to init redis, continuing without status cache", "error", err)
		} else {
			defer redisCache.Close()
			statusCache = redisCache
		}
	}

	// 6. 初始化应用服务
	scorer := domain.NewMeanMultipleScorer(cfg.Reconciliation.AnomalyMultiple)
	engine := application.NewEngine(repo, scorer, publisher, m)

	var explainer copilotapp.Explainer
	backend := cfg.Copilot.Backend
	if backend == "" {
		backend = "template"
	}
	if backend == "claude" {
		explainer = anthropic.NewClient(anthropic.Config{
			APIKey:  cfg.Copilot.APIKey,
			Model:   cfg.Copilot.Model,
			BaseURL: cfg.Copilot.BaseURL,
			Timeout: time.Duration(cfg.Copilot.Timeout) * time.Second,
		})
	} else {
		explainer = copilotapp.NewTemplateExplainer()
	}
	copilotSvc := copilotapp.NewService(repo, explainer, backend, statusCache,
		time.Duration(cfg.Copilot.StatusCacheTTL)*time.Second, m)

	// 7. 初始化接口层
	gin.SetMode(gin.ReleaseMode)
	if cfg.Environment == "dev" {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(),
		middleware.Metrics(m),
	)
	if cfg.HTTP.RateLimit > 0 {
		router.Use(middleware.RateLimit(cfg.HTTP.RateLimit, int(cfg.HTTP.RateLimit)))
	}

	reconhttp.NewHandler(engine, repo).RegisterRoutes(router)
	copilothttp.NewHandler(copilotSvc).RegisterRoutes(router)

	// 8. 启动服务
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info(ctx, "HTTP server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// 9. 优雅关闭
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			logger.Info(ctx, "Shutting down server...")
		case <-gctx.Done():
			logger.Info(ctx, "Context cancelled, shutting down...")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "Server exited with error", "error", err)
	}
}
