package app

import (
	"quiz_portal_backend/docs"
	"quiz_portal_backend/internal/config"
	"quiz_portal_backend/internal/middleware"
	"quiz_portal_backend/internal/model"

	"quiz_portal_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		authGroup.GET("/profile", c.auth.GetProfile)

		// 答题进度自动保存
		progress := authGroup.Group("/progress")
		{
			progress.POST("", c.progress.Save)
			progress.GET("", c.progress.Read)
			progress.PATCH("", c.progress.Patch)
			progress.DELETE("", c.progress.Delete)
		}

		// 切屏违规处理
		violations := authGroup.Group("/violations")
		{
			violations.POST("/notify-teacher", c.violation.NotifyTeacher)
			violations.POST("/submit-query", c.violation.SubmitQuery)
			violations.POST("/evidence", c.violation.UploadEvidence)

			// 教师端接口
			teacher := violations.Group("")
			teacher.Use(middleware.RoleMiddleware(model.Teacher))
			{
				teacher.POST("/teacher-action", c.violation.TeacherAction)
				teacher.GET("/by-teacher", c.violation.ListByTeacher)
			}
		}
	}
}
