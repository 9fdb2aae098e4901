package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/kotobalab/kotoba-backend/internal/http/handlers"
	httpMW "github.com/kotobalab/kotoba-backend/internal/http/middleware"
	"github.com/kotobalab/kotoba-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	JobHandler     *httpH.JobHandler
	ResolveHandler *httpH.ResolveHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.CORS())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Jobs
		if cfg.JobHandler != nil {
			api.POST("/jobs", cfg.JobHandler.StartJob)
			api.GET("/jobs", cfg.JobHandler.ListJobs)
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
			api.POST("/jobs/:id/cancel", cfg.JobHandler.CancelJob)
		}

		// Resolution preview
		if cfg.ResolveHandler != nil {
			api.POST("/resolve", cfg.ResolveHandler.Resolve)
		}
	}

	return r
}
