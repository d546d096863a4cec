package routes

import (
	"example.com/raceday/services/registration/api/handlers"
	"example.com/raceday/services/registration/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SetupRoutes sets up all the routes for the server
func SetupRoutes(r *gin.Engine, svc service.Service, log *logrus.Logger) {
	// Health check
	r.GET("/health", handlers.HealthCheck)

	// API routes
	api := r.Group("/api/v1")

	eventHandler := handlers.NewEventHandler(svc, log)
	runnerHandler := handlers.NewRunnerHandler(svc, log)
	reportHandler := handlers.NewReportHandler(svc, log)

	// Event routes
	events := api.Group("/events")
	{
		events.POST("", eventHandler.CreateEvent)
		events.GET("", eventHandler.ListEvents)
		events.GET("/:id", eventHandler.GetEvent)
		events.PUT("/:id", eventHandler.UpdateEvent)
		events.DELETE("/:id", eventHandler.DeleteEvent)
		events.GET("/:id/stats", eventHandler.GetEventStats)

		// Runner routes, scoped to their event
		events.POST("/:id/runners", runnerHandler.CreateRunner)
		events.GET("/:id/runners", runnerHandler.ListRunners)
		events.GET("/:id/runners/:runnerId", runnerHandler.GetRunner)
		events.PUT("/:id/runners/:runnerId", runnerHandler.UpdateRunner)
		events.DELETE("/:id/runners/:runnerId", runnerHandler.DeleteRunner)

		// Live timing fast path
		events.POST("/:id/finish", runnerHandler.RecordFinish)

		// Reports and archive export
		events.GET("/:id/reports/starters", reportHandler.StarterList)
		events.GET("/:id/reports/finished", reportHandler.FinishedReport)
		events.GET("/:id/export", reportHandler.ExportArchive)
	}

	// Archive import creates a new event
	api.POST("/imports", reportHandler.ImportArchive)
}
