package routes

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"veritas-backend/internal/logger"
	"veritas-backend/internal/rag"
	"veritas-backend/middleware"
	"veritas-backend/models"
	"veritas-backend/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SetupExportRoutes registers the transcript download endpoint.
func SetupExportRoutes(router *gin.Engine, sessions rag.SessionStore, repo *models.DocumentRepo) {
	router.GET("/api/chat/export", handleExport(sessions, repo))
}

func handleExport(sessions rag.SessionStore, repo *models.DocumentRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := middleware.SessionID(c)
		sess := sessions.Get(sessionID)

		sess.Lock()
		documentName := ""
		if sess.DocumentID != "" {
			if doc, err := repo.FindByID(c.Request.Context(), sess.DocumentID); err == nil {
				documentName = doc.Filename
			}
		} else if doc, err := repo.FindLatestBySession(c.Request.Context(), sessionID); err == nil && doc != nil {
			// The in-memory session can lose its document after a restart
			// without Redis; the upload record still knows it.
			documentName = doc.Filename
		}
		workbook, err := services.BuildTranscriptWorkbook(sess, documentName)
		sess.Unlock()

		if err != nil {
			logger.Error("Transcript export failed", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error_code": "export_failed",
				"message":    "Failed to build transcript",
			})
			return
		}
		defer workbook.Close()

		filename := fmt.Sprintf("transcript-%s.xlsx", time.Now().Format("2006-01-02"))
		c.Header("Content-Type", xlsxContentType)
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))

		if err := workbook.Write(c.Writer); err != nil {
			logger.Error("Transcript write failed", "session_id", sessionID, "error", err)
		}
	}
}
