package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/database/repository"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/services"
)

type StreamHandler struct {
	hub        *services.SSEHub
	executions *repository.ExecutionRepository
	authEvents *repository.AuthEventRepository
}

func NewStreamHandler(
	hub *services.SSEHub,
	executions *repository.ExecutionRepository,
	authEvents *repository.AuthEventRepository,
) *StreamHandler {
	return &StreamHandler{hub: hub, executions: executions, authEvents: authEvents}
}

// StreamSSE streams events for one entity over Server-Sent Events. Persisted
// history is replayed first so clients connecting mid-run see the full
// picture, then live events follow until the client disconnects.
func (h *StreamHandler) StreamSSE(c *gin.Context) {
	entityType := c.Param("entity_type")
	entityID := c.Param("entity_id")

	switch entityType {
	case services.EntityRun, services.EntityCampaign, services.EntityAccount:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown entity type: " + entityType})
		return
	}

	// Set headers for SSE
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // Disable buffering for nginx

	clientChan := h.hub.RegisterClient(entityType, entityID)
	defer h.hub.UnregisterClient(entityType, entityID, clientChan)

	c.SSEvent("connected", gin.H{
		"entity_type": entityType,
		"entity_id":   entityID,
	})
	c.Writer.Flush()

	if !h.replayHistory(c, entityType, entityID) {
		return
	}

	for {
		select {
		case <-c.Request.Context().Done():
			logrus.Infof("SSE client disconnected: %s/%s", entityType, entityID)
			return
		case message, ok := <-clientChan:
			if !ok {
				return
			}
			if _, err := c.Writer.Write(message); err != nil {
				logrus.Errorf("Failed to write SSE message: %v", err)
				return
			}
			c.Writer.Flush()
		}
	}
}

// replayHistory writes the entity's persisted events to the client. Campaign
// events are stream-only; their durable state lives on the progress cursors.
// Returns false when the client went away mid-replay.
func (h *StreamHandler) replayHistory(c *gin.Context, entityType, entityID string) bool {
	switch entityType {
	case services.EntityRun:
		logs, err := h.executions.GetLogsByRun(entityID, 200, 0)
		if err != nil {
			return true
		}
		for _, entry := range logs {
			if !h.writeEvent(c, "log", entry) {
				return false
			}
		}
	case services.EntityAccount:
		events, err := h.authEvents.GetByAccount(entityID, 50)
		if err != nil {
			return true
		}
		// Newest first in storage; replay oldest first.
		for i := len(events) - 1; i >= 0; i-- {
			if !h.writeEvent(c, "auth", events[i]) {
				return false
			}
		}
	}
	return true
}

func (h *StreamHandler) writeEvent(c *gin.Context, event string, payload interface{}) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		return true
	}
	message := fmt.Sprintf("event: %s\ndata: %s\n\n", event, string(body))
	if _, err := c.Writer.Write([]byte(message)); err != nil {
		return false
	}
	c.Writer.Flush()
	return true
}
