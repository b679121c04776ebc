package main

import (
	"github.com/MutualAidNYC/twilio-server/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, sigMW gin.HandlerFunc) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider webhooks, signature-validated outside local/dev.
	api := r.Group("/api")
	api.Use(sigMW)
	{
		api.POST("/call-assignment", h.CallAssignment)
		api.POST("/agent-connected", h.AgentConnected)
		api.POST("/agent-gather", h.AgentGather)
		api.POST("/worker-bridge-disconnect", h.WorkerBridgeDisconnect)
		api.POST("/vm-recording-ended", h.VmRecordingEnded)
		api.POST("/new-transcription", h.NewTranscription)
		api.POST("/sms-incoming", h.SmsIncoming)

		api.GET("/schedule", h.GetSchedule)
	}
}
