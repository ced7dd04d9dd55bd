package routes

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"veritas-backend/internal/rag"
	"veritas-backend/middleware"
	"veritas-backend/models"
)

// SetupChatRoutes registers the chat endpoint. With "stream": true the answer
// arrives as server-sent events: one metadata event carrying the routing
// result, content events with word-sized deltas, then a done event.
func SetupChatRoutes(router *gin.Engine, orchestrator *rag.Orchestrator) {
	router.POST("/api/chat", handleChat(orchestrator))
}

// chatAnswer is the wire shape of an answer: the pipeline response tagged
// with the assistant role.
type chatAnswer struct {
	Role string `json:"role"`
	*rag.Response
}

func handleChat(orchestrator *rag.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error_code": "invalid_request",
				"message":    "message is required",
			})
			return
		}

		sessionID := middleware.SessionID(c)

		if !req.Stream {
			resp := orchestrator.Answer(c.Request.Context(), sessionID, req.Message, req.WantsWebSearch())
			c.JSON(http.StatusOK, chatAnswer{Role: rag.RoleAssistant, Response: resp})
			return
		}

		resp, stream := orchestrator.AnswerStream(c.Request.Context(), sessionID, req.Message, req.WantsWebSearch())

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		c.SSEvent("metadata", chatAnswer{Role: rag.RoleAssistant, Response: resp})
		c.Writer.Flush()

		c.Stream(func(w io.Writer) bool {
			fragment, ok := <-stream
			if !ok {
				c.SSEvent("done", gin.H{})
				return false
			}
			c.SSEvent("content", gin.H{"delta": fragment})
			return true
		})
	}
}
