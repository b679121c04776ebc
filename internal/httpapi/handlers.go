// Package httpapi exposes the webhook endpoints the routing platform
// calls. Handlers are thin: parse the form payload into a typed event,
// delegate to the dispatcher, write TwiML or an empty acknowledgment.
package httpapi

import (
	"context"
	"net/http"

	"github.com/MutualAidNYC/twilio-server/internal/dispatch"
	"github.com/MutualAidNYC/twilio-server/internal/taskrouter"
	"github.com/MutualAidNYC/twilio-server/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Dispatcher is the orchestrator surface the webhook layer needs.
type Dispatcher interface {
	HandleCallAssignment(ctx context.Context, ev dispatch.AssignmentEvent) error
	HandleAgentConnected(ctx context.Context, ev dispatch.AgentConnectedEvent) (string, error)
	HandleAgentGather(ctx context.Context, ev dispatch.AgentGatherEvent) (string, error)
	HandleWorkerDisconnect(ctx context.Context, ev dispatch.DisconnectEvent) error
	HandleVmRecordingEnded(ctx context.Context, ev dispatch.RecordingEvent) (string, error)
	HandleNewTranscription(ctx context.Context, ev dispatch.TranscriptionEvent) error
	HandleIncomingSms(ctx context.Context, ev dispatch.SmsEvent) (string, error)
}

// ScheduleSource serves the cached hours of operation.
type ScheduleSource interface {
	Get(ctx context.Context) ([]map[string]any, error)
}

type Handlers struct {
	Dispatch Dispatcher
	Schedule ScheduleSource
}

func (h Handlers) CallAssignment(c *gin.Context) {
	log := logger.FromGin(c)

	workerAttrs, err := taskrouter.ParseWorkerAttributes(c.PostForm("WorkerAttributes"))
	if err != nil {
		log.Warn("assignment worker attributes rejected", "err", err)
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	taskAttrs, err := taskrouter.ParseTaskAttributes(c.PostForm("TaskAttributes"))
	if err != nil {
		log.Warn("assignment task attributes rejected", "err", err)
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	ev := dispatch.AssignmentEvent{
		ReservationSID:   c.PostForm("ReservationSid"),
		TaskSID:          c.PostForm("TaskSid"),
		WorkerSID:        c.PostForm("WorkerSid"),
		WorkerAttributes: workerAttrs,
		TaskAttributes:   taskAttrs,
	}
	if err := h.Dispatch.HandleCallAssignment(c.Request.Context(), ev); err != nil {
		log.Error("call assignment failed", "task_sid", ev.TaskSID, "err", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusOK)
}

func (h Handlers) AgentConnected(c *gin.Context) {
	ev := dispatch.AgentConnectedEvent{
		CallSID:    c.PostForm("CallSid"),
		Called:     c.PostForm("Called"),
		AnsweredBy: taskrouter.AnsweredBy(c.PostForm("AnsweredBy")),
	}
	markup, err := h.Dispatch.HandleAgentConnected(c.Request.Context(), ev)
	if err != nil {
		logger.FromGin(c).Error("agent connected failed", "call_sid", ev.CallSID, "err", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	respondTwiML(c, markup)
}

func (h Handlers) AgentGather(c *gin.Context) {
	ev := dispatch.AgentGatherEvent{
		CallSID: c.PostForm("CallSid"),
		Called:  c.PostForm("Called"),
		Digits:  c.PostForm("Digits"),
	}
	markup, err := h.Dispatch.HandleAgentGather(c.Request.Context(), ev)
	if err != nil {
		logger.FromGin(c).Error("agent gather failed", "call_sid", ev.CallSID, "err", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	respondTwiML(c, markup)
}

func (h Handlers) WorkerBridgeDisconnect(c *gin.Context) {
	ev := dispatch.DisconnectEvent{
		Called:     c.PostForm("Called"),
		CallStatus: taskrouter.CallStatus(c.PostForm("CallStatus")),
	}
	if err := h.Dispatch.HandleWorkerDisconnect(c.Request.Context(), ev); err != nil {
		logger.FromGin(c).Error("worker disconnect failed", "called", ev.Called, "err", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusOK)
}

func (h Handlers) VmRecordingEnded(c *gin.Context) {
	ev := dispatch.RecordingEvent{
		CallSID:      c.PostForm("CallSid"),
		CallStatus:   taskrouter.CallStatus(c.PostForm("CallStatus")),
		From:         c.PostForm("From"),
		RecordingSID: c.PostForm("RecordingSid"),
		RecordingURL: c.PostForm("RecordingUrl"),
	}
	markup, err := h.Dispatch.HandleVmRecordingEnded(c.Request.Context(), ev)
	if err != nil {
		logger.FromGin(c).Error("recording ended failed", "call_sid", ev.CallSID, "err", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	respondTwiML(c, markup)
}

func (h Handlers) NewTranscription(c *gin.Context) {
	ev := dispatch.TranscriptionEvent{
		CallSID:           c.PostForm("CallSid"),
		RecordingSID:      c.PostForm("RecordingSid"),
		TranscriptionSID:  c.PostForm("TranscriptionSid"),
		TranscriptionText: c.PostForm("TranscriptionText"),
	}
	if err := h.Dispatch.HandleNewTranscription(c.Request.Context(), ev); err != nil {
		logger.FromGin(c).Error("transcription failed", "call_sid", ev.CallSID, "err", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusOK)
}

func (h Handlers) SmsIncoming(c *gin.Context) {
	ev := dispatch.SmsEvent{
		From: c.PostForm("From"),
		Body: c.PostForm("Body"),
	}
	markup, err := h.Dispatch.HandleIncomingSms(c.Request.Context(), ev)
	if err != nil {
		logger.FromGin(c).Error("sms handling failed", "err", err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	respondTwiML(c, markup)
}

func (h Handlers) GetSchedule(c *gin.Context) {
	rows, err := h.Schedule.Get(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("schedule lookup failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "schedule unavailable"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func respondTwiML(c *gin.Context, markup string) {
	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, markup)
}
