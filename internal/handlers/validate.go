package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/PratikDhanave/session-event-api/internal/models"
)

// eventRequestSchema only describes the envelope; payload contents are free-form.
const eventRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["session_id", "payload"],
  "properties": {
    "session_id": {"type": "string", "minLength": 1},
    "payload": {"type": "object"}
  }
}`

var (
	errInvalidJSON = errors.New("invalid JSON payload")
	schemaLoader   = gojsonschema.NewStringLoader(eventRequestSchema)
)

// decodeEventRequest validates body against eventRequestSchema and decodes it. The body must
// hold exactly one JSON value. Numbers in the payload stay json.Number so they are stored
// exactly as sent.
func decodeEventRequest(body []byte) (models.EventIngestRequest, error) {
	var req models.EventIngestRequest

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return req, errInvalidJSON
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return req, fmt.Errorf("invalid request: %s", strings.Join(msgs, "; "))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return req, errInvalidJSON
	}
	// Only whitespace may follow the request object.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return req, errInvalidJSON
	}
	return req, nil
}
