package requestid

import (
	"strings"

	"github.com/gin-gonic/gin"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Header carries the request id in both directions.
const Header = "X-Request-ID"

// requestIDCtxKey is the Gin context key used to store the request id.
const requestIDCtxKey = "request_id"

const maxLen = 128

// Middleware reuses a caller-supplied X-Request-ID or mints one, stores it on the
// context and echoes it in the response.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(Header))
		if id == "" || len(id) > maxLen {
			id = newID()
		}
		c.Set(requestIDCtxKey, id)
		c.Header(Header, id)
		c.Next()
	}
}

// FromContext returns the request id stored by Middleware, or "".
func FromContext(c *gin.Context) string {
	v, _ := c.Get(requestIDCtxKey)
	s, _ := v.(string)
	return s
}

func newID() string {
	id, err := gonanoid.New()
	if err != nil {
		// crypto/rand failure; an empty id only loses log correlation
		return ""
	}
	return id
}
