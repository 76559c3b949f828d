package app

import (
	"github.com/imyme/imyme-ai/internal/controllers"
	"github.com/imyme/imyme-ai/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupMappings(app *Application) {
	health := controllers.NewHealthController(app.Config.ServiceName)
	app.Engine.GET("/", health.Root)
	app.Engine.GET("/health", health.Handle)
	app.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := app.Engine.Group(app.Config.APIPrefix)
	{
		solo := v1.Group("/solo")
		solo.POST("/submissions", middleware.RateLimitSubmissions(app.RateLimiter, app.Config), controllers.NewSubmitAnalysisController(app.Analysis).Handle)
		solo.GET("/submissions/:taskId", controllers.NewGetAnalysisController(app.Tasks).Handle)

		v1.POST("/transcriptions", controllers.NewTranscriptionController(app.Speech).Handle)
		v1.POST("/gpu/warmup", controllers.NewWarmupController(app.Speech).Handle)
	}
}
