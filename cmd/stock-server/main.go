package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/stock_ledger/internal/api"
	"github.com/MorseWayne/stock_ledger/internal/cache"
	"github.com/MorseWayne/stock_ledger/internal/config"
	"github.com/MorseWayne/stock_ledger/internal/database"
	"github.com/MorseWayne/stock_ledger/internal/limiter"
	"github.com/MorseWayne/stock_ledger/internal/logger"
	"github.com/MorseWayne/stock_ledger/internal/mq"
	"github.com/MorseWayne/stock_ledger/internal/repo"
	"github.com/MorseWayne/stock_ledger/internal/router"
	"github.com/MorseWayne/stock_ledger/internal/service"
)

// mqComponents 聚合消息队列相关组件，便于统一关闭
type mqComponents struct {
	connManager *mq.ConnectionManager
	publisher   *mq.StockPublisher
	consumer    *mq.ReorderAlertConsumer
}

// initConfigAndLogger 初始化配置和日志器
func initConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %v", err)
	}

	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, cfg.App.Name, cfg.App.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %v", err)
	}

	return cfg, lg, nil
}

// initDatabase 初始化数据库连接并执行迁移
func initDatabase(cfg *config.Config, lg *zap.Logger) (*database.DB, error) {
	db, err := database.New(cfg, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// 在HTTP服务器启动前执行迁移，保证处理请求时表结构已就绪
	migrationsDir := cfg.Migrations.Dir
	lg.Sugar().Infow("using migrations directory", "path", migrationsDir)

	if err := db.RunMigrations(migrationsDir); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %v", err)
	}

	return db, nil
}

// initCache 初始化缓存实例
func initCache(cfg *config.Config, lg *zap.Logger) cache.Cache {
	if !cfg.Cache.Enabled {
		lg.Sugar().Infow("cache disabled")
		return cache.NewNullCache()
	}

	switch cfg.Cache.Type {
	case "redis":
		redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		redisCache, err := cache.NewRedisCache(redisAddr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			lg.Sugar().Warnw("failed to connect to Redis, falling back to memory cache", "error", err)
			lg.Sugar().Infow("cache enabled", "type", "memory (fallback)", "ttl", cfg.Cache.TTL)
			return cache.NewMemoryCache()
		}
		lg.Sugar().Infow("cache enabled", "type", "redis", "addr", redisAddr, "ttl", cfg.Cache.TTL)
		return redisCache
	case "memory":
		lg.Sugar().Infow("cache enabled", "type", "memory", "ttl", cfg.Cache.TTL)
		return cache.NewMemoryCache()
	default:
		lg.Sugar().Warnw("unknown cache type, using memory cache", "type", cfg.Cache.Type)
		return cache.NewMemoryCache()
	}
}

// initMQ 初始化消息队列：连接、拓扑、发布者和补货告警消费者。
// MQ未启用或连接失败时返回nil，库存事件降级为只记日志。
func initMQ(ctx context.Context, cfg *config.Config, uow repo.TxRunner, lg *zap.Logger) *mqComponents {
	if !cfg.MQ.Enabled {
		lg.Sugar().Infow("message queue disabled")
		return nil
	}

	mqCfg := mq.DefaultConfig()
	mqCfg.Host = cfg.MQ.Host
	mqCfg.Port = cfg.MQ.Port
	mqCfg.Username = cfg.MQ.Username
	mqCfg.Password = cfg.MQ.Password
	mqCfg.VHost = cfg.MQ.VHost

	cm := mq.NewConnectionManager(mqCfg, lg)
	if err := cm.Connect(ctx); err != nil {
		lg.Sugar().Warnw("failed to connect to message queue, stock events disabled", "error", err)
		return nil
	}

	queueManager := mq.NewStockQueueManager(cm, lg)
	if err := queueManager.SetupQueues(ctx); err != nil {
		lg.Sugar().Warnw("failed to setup message queue topology, stock events disabled", "error", err)
		_ = cm.Close()
		return nil
	}

	publisher := mq.NewStockPublisher(cm, mqCfg.Producer, cfg.App.Name, lg)

	consumer := mq.NewReorderAlertConsumer(cm, mqCfg.Consumer, uow, lg)
	if err := consumer.Start(ctx); err != nil {
		lg.Sugar().Warnw("failed to start reorder alert consumer", "error", err)
		consumer = nil
	}

	lg.Sugar().Infow("message queue connected", "host", cfg.MQ.Host, "port", cfg.MQ.Port)
	return &mqComponents{
		connManager: cm,
		publisher:   publisher,
		consumer:    consumer,
	}
}

// initLimiters 初始化限流器，只在启用限流且缓存为Redis时生效。
// 写路径用令牌桶做按用户的精细限流，全局用固定窗口做粗粒度IP保护。
func initLimiters(cfg *config.Config, cacheInstance cache.Cache, lg *zap.Logger) (write, global limiter.Limiter) {
	if !cfg.RateLimit.Enabled {
		return nil, nil
	}

	redisCache, ok := cacheInstance.(*cache.RedisCache)
	if !ok {
		lg.Sugar().Warnw("rate limiting requires redis cache, limiter disabled")
		return nil, nil
	}

	write = limiter.NewTokenBucketLimiter(redisCache.Client(), &limiter.Config{
		Rate:   cfg.RateLimit.Rate,
		Window: cfg.RateLimit.Window,
		Burst:  cfg.RateLimit.Burst,
	})

	// 全局上限放宽到写限流的10倍，只挡住明显的异常流量
	global = limiter.NewFixedWindowLimiter(redisCache.Client(), &limiter.Config{
		Rate:   cfg.RateLimit.Rate * 10,
		Window: cfg.RateLimit.Window,
	})

	return write, global
}

// initDependencies 初始化应用依赖（仓储、服务、处理器）
func initDependencies(cfg *config.Config, db *database.DB, cacheInstance cache.Cache,
	publisher service.StockEventPublisher, lg *zap.Logger) *router.Dependencies {
	uow := repo.NewUnitOfWork(db.DB)

	// 可选的库存行读缓存装饰器
	if cfg.Cache.Enabled {
		uow.WithStockLevelDecorator(func(base repo.StockLevelRepository) repo.StockLevelRepository {
			return repo.NewCachedStockLevelRepository(base, cacheInstance, cfg.Cache.TTL)
		})
	}

	userRepo := repo.NewUserRepository(db)
	userService := service.NewUserService(userRepo, lg)
	jwtService := service.NewJWTService(cfg, lg)
	userHandler := api.NewUserHandler(userService, jwtService, lg)

	stockService := service.NewStockService(uow, publisher, lg)
	adjustmentService := service.NewAdjustmentService(uow, stockService, lg)

	stockHandler := api.NewStockHandler(stockService, lg)
	adjustmentHandler := api.NewAdjustmentHandler(adjustmentService, lg)

	writeLimiter, globalLimiter := initLimiters(cfg, cacheInstance, lg)

	return &router.Dependencies{
		UserHandler:       userHandler,
		StockHandler:      stockHandler,
		AdjustmentHandler: adjustmentHandler,
		JWTService:        jwtService,
		WriteLimiter:      writeLimiter,
		GlobalLimiter:     globalLimiter,
		Cache:             cacheInstance,
	}
}

// startServer 启动服务器并处理优雅关闭
func startServer(cfg *config.Config, handler http.Handler, lg *zap.Logger) {
	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	lg.Sugar().Infow("server starting", "addr", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	select {
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			lg.Sugar().Fatalw("server error", "err", err)
		}
	case <-quit:
		lg.Sugar().Infow("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Sugar().Errorw("server shutdown error", "err", err)
	}
	lg.Sugar().Infow("server exited")
}

// main 为应用入口，协调各个组件的初始化和启动
func main() {
	// 1) 加载配置和初始化日志
	cfg, lg, err := initConfigAndLogger()
	if err != nil {
		log.Fatalf("failed to initialize config and logger: %v", err)
	}

	// 2) 初始化数据库连接并执行迁移
	db, err := initDatabase(cfg, lg)
	if err != nil {
		lg.Sugar().Fatalw("failed to initialize database", "err", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			lg.Sugar().Errorw("failed to close database connection", "err", err)
		}
	}()

	// 3) 初始化缓存
	cacheInstance := initCache(cfg, lg)

	// 4) 初始化消息队列（发布者在依赖注入时接入库存服务）
	uowForConsumer := repo.NewUnitOfWork(db.DB)
	mqComps := initMQ(context.Background(), cfg, uowForConsumer, lg)

	var publisher service.StockEventPublisher
	if mqComps != nil {
		publisher = mqComps.publisher
	}

	// 5) 初始化应用依赖（仓储、服务、处理器）
	deps := initDependencies(cfg, db, cacheInstance, publisher, lg)

	// 6) 设置路由和中间件
	handler := router.New().Setup(cfg, deps, lg)

	// 7) 启动 HTTP 服务器
	startServer(cfg, handler, lg)

	// 8) 停止后台组件
	if mqComps != nil {
		if mqComps.consumer != nil {
			mqComps.consumer.Stop()
		}
		if mqComps.publisher != nil {
			_ = mqComps.publisher.Close()
		}
		_ = mqComps.connManager.Close()
	}
}
