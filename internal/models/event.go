package models

// Keys the service injects into every stored event unless the caller already set them.
const (
	FieldID        = "id"
	FieldTimestamp = "timestamp"
)

// EventIngestRequest is the POST /events payload.
type EventIngestRequest struct {
	SessionID string         `json:"session_id"`
	Payload   map[string]any `json:"payload"`
}

// Event is an arbitrary JSON object. Once enriched it carries id (UUID string) and
// timestamp (milliseconds since epoch).
type Event map[string]any

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
