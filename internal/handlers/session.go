package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSessionRoutes registers the read-path endpoints.
//
// GET /sessions                     - ids of sessions with at least one event
// GET /sessions/:session_id/events  - a session's events oldest first; unknown ids give []
func RegisterSessionRoutes(r gin.IRoutes, st EventStore) {
	r.GET("/sessions", func(c *gin.Context) {
		sessions, err := st.ListSessions(c.Request.Context())
		if err != nil {
			internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, sessions)
	})

	r.GET("/sessions/:session_id/events", func(c *gin.Context) {
		events, err := st.ListSessionEvents(c.Request.Context(), c.Param("session_id"))
		if err != nil {
			internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, events)
	})
}
