// Package router 提供 HTTP 路由设置和中间件配置功能
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/stock_ledger/internal/api"
	"github.com/MorseWayne/stock_ledger/internal/cache"
	"github.com/MorseWayne/stock_ledger/internal/config"
	"github.com/MorseWayne/stock_ledger/internal/limiter"
	"github.com/MorseWayne/stock_ledger/internal/middleware"
	"github.com/MorseWayne/stock_ledger/internal/service"
)

// Dependencies 包含路由设置所需的所有依赖
type Dependencies struct {
	UserHandler       *api.UserHandler
	StockHandler      *api.StockHandler
	AdjustmentHandler *api.AdjustmentHandler
	JWTService        service.JWTService

	// WriteLimiter 为空时不启用写接口限流
	WriteLimiter limiter.Limiter
	// GlobalLimiter 为空时不启用全局IP限流
	GlobalLimiter limiter.Limiter
	// Cache 为空时不启用幂等键拦截
	Cache cache.Cache
}

// Router 路由器接口
type Router interface {
	Setup(cfg *config.Config, deps *Dependencies, lg *zap.Logger) http.Handler
}

// GinRouter Gin路由器实现
type GinRouter struct {
	engine *gin.Engine
	deps   *Dependencies
	logger *zap.Logger
}

// New 创建新的路由器实例
func New() Router {
	return &GinRouter{}
}

// Setup 设置路由和中间件
func (r *GinRouter) Setup(cfg *config.Config, deps *Dependencies, lg *zap.Logger) http.Handler {
	// 根据环境设置 Gin 模式
	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	r.engine = gin.New()
	r.deps = deps
	r.logger = lg

	r.setupMiddleware(cfg)
	r.setupRoutes(cfg)

	return r.engine
}

// setupMiddleware 设置全局中间件链
func (r *GinRouter) setupMiddleware(cfg *config.Config) {
	r.engine.Use(wrapMiddleware(middleware.RequestID))
	r.engine.Use(wrapMiddleware(middleware.Recovery(r.logger)))
	r.engine.Use(wrapMiddleware(middleware.AccessLog(r.logger)))
	r.engine.Use(wrapMiddleware(middleware.Timeout(cfg.HTTP.RequestTimeout)))
	r.engine.Use(r.corsMiddleware())

	if cfg.RateLimit.Enabled && r.deps.GlobalLimiter != nil {
		r.engine.Use(limiter.GlobalRateLimitMiddleware(r.deps.GlobalLimiter))
	}
}

// setupRoutes 设置所有路由
func (r *GinRouter) setupRoutes(cfg *config.Config) {
	// 健康检查
	r.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": cfg.App.Version,
		})
	})

	auth := wrapMiddleware(middleware.AuthMiddleware(r.deps.JWTService, r.logger))
	orgAdmin := wrapMiddleware(middleware.RequireOrgAdmin(r.logger))

	v1 := r.engine.Group("/api/v1")
	{
		// 认证路由（无需认证）
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", gin.WrapF(r.deps.UserHandler.Register))
			authGroup.POST("/login", gin.WrapF(r.deps.UserHandler.Login))
			authGroup.POST("/refresh", gin.WrapF(r.deps.UserHandler.RefreshToken))
		}

		// 用户路由（需要认证）
		users := v1.Group("/users")
		users.Use(auth)
		{
			users.GET("/profile", gin.WrapF(r.deps.UserHandler.GetProfile))
		}

		// 库存路由（需要认证）
		stock := v1.Group("/stock")
		stock.Use(auth)
		{
			stock.GET("/level", gin.WrapF(r.deps.StockHandler.GetStockLevel))
			stock.GET("/levels", gin.WrapF(r.deps.StockHandler.ListStockLevels))
			stock.GET("/reorder-check", gin.WrapF(r.deps.StockHandler.CheckReorderPoints))
			stock.GET("/movements", gin.WrapF(r.deps.StockHandler.ListMovements))
			stock.GET("/transactions", gin.WrapF(r.deps.StockHandler.ListTransactions))

			// 写接口：限流 + 幂等键拦截
			write := stock.Group("")
			if cfg.RateLimit.Enabled && r.deps.WriteLimiter != nil {
				write.Use(limiter.StockWriteRateLimitMiddleware(r.deps.WriteLimiter))
			}
			if r.deps.Cache != nil {
				write.Use(middleware.Idempotency(r.deps.Cache, middleware.DefaultIdempotencyConfig()))
			}
			{
				write.POST("/update", gin.WrapF(r.deps.StockHandler.UpdateStock))
				write.POST("/reserve", gin.WrapF(r.deps.StockHandler.ReserveStock))
				write.POST("/release", gin.WrapF(r.deps.StockHandler.ReleaseReservation))
			}
		}

		// 调整单路由（需要认证）
		adjustments := v1.Group("/adjustments")
		adjustments.Use(auth)
		{
			adjustments.POST("", gin.WrapF(r.deps.AdjustmentHandler.CreateAdjustment))
			adjustments.GET("/summary", gin.WrapF(r.deps.AdjustmentHandler.GetAdjustmentSummary))
			adjustments.GET("/:id", gin.WrapF(r.deps.AdjustmentHandler.GetAdjustment))

			// 审批与删除需要组织管理员权限
			manage := adjustments.Group("")
			manage.Use(orgAdmin)
			{
				manage.POST("/:id/approve", gin.WrapF(r.deps.AdjustmentHandler.ApproveAdjustment))
				manage.DELETE("/:id", gin.WrapF(r.deps.AdjustmentHandler.DeleteAdjustment))
			}
		}

		// 批次路由（需要认证）
		batches := v1.Group("/batches")
		batches.Use(auth)
		{
			batches.GET("", gin.WrapF(r.deps.AdjustmentHandler.ListBatches))
		}
	}
}

// wrapMiddleware 将标准库风格的中间件适配为 gin.HandlerFunc。
// 中间件没有调用 next 时（例如认证失败已写响应），终止后续处理。
func wrapMiddleware(mw func(http.Handler) http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false
		mw(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			passed = true
			// 中间件可能注入了新的请求上下文
			c.Request = req
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}

// corsMiddleware CORS 中间件
func (r *GinRouter) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Idempotency-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
