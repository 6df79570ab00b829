package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// ProgressHandler is satisfied by progress.WebSocketHub; kept as a narrow
// interface here so httpapi does not need to import the websocket library.
type ProgressHandler interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

type RouterConfig struct {
	Pipeline *PipelineHandler
	Progress ProgressHandler
	// AllowOrigins configures CORS; an empty slice falls back to localhost
	// development origins, matching the teacher's router defaults.
	AllowOrigins []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(AttachCorrelationID())

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Correlation-Id"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/pipelines", cfg.Pipeline.Submit)
		api.GET("/pipelines/:id", cfg.Pipeline.GetStatus)
		api.POST("/pipelines/:id/cancel", cfg.Pipeline.Cancel)
	}

	if cfg.Progress != nil {
		router.GET("/ws/progress", func(c *gin.Context) {
			cfg.Progress.ServeHTTP(c.Writer, c.Request)
		})
	}

	return router
}
