package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"timetable/backend/config"
	"timetable/backend/internal/api/handler"
	"timetable/backend/internal/api/middleware"
	"timetable/backend/pkg/jwt"
	"timetable/backend/pkg/redis"
)

// 请求体上限与登录限流参数
const (
	maxBodyBytes   = 1 << 20 // 1 MiB
	loginRateLimit = 10
	loginRateWin   = time.Minute
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", middleware.RateLimit(rdb, loginRateLimit, loginRateWin), h.Auth.Login)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb))
		{
			// 认证模块（需要认证）
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.Me)
			authorized.PUT("/auth/password", h.Auth.ChangePassword)

			// 用户管理模块（管理员）
			users := authorized.Group("/users", middleware.RoleAuth("admin"))
			{
				users.POST("", h.User.Create)
				users.GET("", h.User.List)
				users.GET("/:id", h.User.Get)
				users.PUT("/:id", h.User.Update)
				users.DELETE("/:id", h.User.Delete)
			}

			// 课表模板模块
			timetables := authorized.Group("/timetables")
			{
				timetables.POST("", h.Timetable.Create)
				timetables.GET("", h.Timetable.List)
				timetables.GET("/:id", h.Timetable.Get)
				timetables.PUT("/:id", h.Timetable.Update)
				timetables.DELETE("/:id", middleware.RoleAuth("admin"), h.Timetable.Delete)
				timetables.POST("/:id/slots", h.Timetable.CreateSlot)

				// 周实例生成与维护
				timetables.POST("/:id/instances/current", h.Instance.EnsureCurrentWeek)
				timetables.POST("/:id/instances/next", h.Instance.EnsureNextWeek)
				timetables.GET("/:id/instances", h.Instance.List)
				timetables.POST("/:id/instances/repair", middleware.RoleAuth("admin"), h.Instance.RepairDuplicates)
				timetables.POST("/:id/sync", h.Instance.SelectiveSync)
			}

			// 模板时段模块
			slots := authorized.Group("/slots")
			{
				slots.PUT("/:id", h.Timetable.UpdateSlot)
				slots.DELETE("/:id", h.Timetable.DeleteSlot)
			}

			// 周实例模块
			instances := authorized.Group("/instances")
			{
				instances.GET("/:id", h.Instance.Get)
				instances.PUT("/:id/current", h.Instance.SetCurrent)
				instances.GET("/:id/occurrences", h.Instance.ListOccurrences)
				instances.POST("/:id/occurrences", h.Instance.AddManualOccurrence)
				instances.POST("/:id/sync", h.Instance.FullSync)
				instances.POST("/:id/dedupe", h.Instance.Dedupe)
				instances.GET("/:id/export", h.Instance.Export)
			}

			// 实例课程模块
			occurrences := authorized.Group("/occurrences")
			{
				occurrences.POST("/swap", h.Instance.SwapOccurrences)
				occurrences.PUT("/:id", h.Instance.UpdateOccurrence)
				occurrences.DELETE("/:id", h.Instance.DeleteOccurrence)
				occurrences.POST("/:id/leave", h.Instance.RequestLeave)
				occurrences.DELETE("/:id/leave", h.Instance.CancelLeave)
				occurrences.POST("/:id/cancel", h.Instance.CancelOccurrence)
				occurrences.POST("/:id/restore", h.Instance.RestoreOccurrence)
			}
		}
	}

	return r
}
