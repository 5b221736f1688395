package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mkowalik/ankiconv/internal/config"
	"github.com/mkowalik/ankiconv/internal/logger"
	"github.com/mkowalik/ankiconv/internal/worker"
)

// NewRouter wires the conversion endpoints onto a gin engine.
func NewRouter(cfg *config.Config, m *worker.Manager, log *logger.Logger, version string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	health := NewHealthController(version)
	convert := NewConvertController(m, cfg.Limits.InteractiveBytes, log)

	router.GET("/health", health.Status)

	api := router.Group("/api")
	{
		api.POST("/convert", convert.Convert)
	}

	return router
}
