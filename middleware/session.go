package middleware

import "github.com/gin-gonic/gin"

// SessionIDHeader carries the client's conversation identity. Clients that
// never send it share the default session.
const SessionIDHeader = "X-Session-ID"

const defaultSessionID = "default"

// SessionID resolves the request's session identity.
func SessionID(c *gin.Context) string {
	if id := c.GetHeader(SessionIDHeader); id != "" {
		return id
	}
	return defaultSessionID
}
