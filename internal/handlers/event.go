package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/session-event-api/internal/models"
)

// EventStore is the object-store adapter the handlers delegate to.
type EventStore interface {
	CreateEvent(ctx context.Context, sessionID string, payload map[string]any) (models.Event, error)
	ListSessions(ctx context.Context) ([]string, error)
	ListSessionEvents(ctx context.Context, sessionID string) ([]models.Event, error)
}

// RegisterEventRoutes registers the ingestion-path endpoint.
//
// POST /events
// - Body {session_id, payload}; rejected with 422 before any store call if malformed
// - Returns the stored payload including the injected id and timestamp
func RegisterEventRoutes(r gin.IRoutes, st EventStore) {
	r.POST("/events", func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Detail: "unreadable request body"})
			return
		}

		req, err := decodeEventRequest(body)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Detail: err.Error()})
			return
		}

		event, err := st.CreateEvent(c.Request.Context(), req.SessionID, req.Payload)
		if err != nil {
			internalError(c, err)
			return
		}

		c.JSON(http.StatusOK, event)
	})
}

// internalError flattens any store failure into a 500 carrying the error text.
func internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{Detail: err.Error()})
}
