package routes

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"veritas-backend/internal/config"
	"veritas-backend/internal/logger"
	"veritas-backend/internal/queue"
	"veritas-backend/middleware"
	"veritas-backend/models"
	"veritas-backend/services"
)

// SetupUploadRoutes registers the PDF upload endpoint. Files above the sync
// processing limit are handed to the background worker; smaller ones are
// processed inside the request.
func SetupUploadRoutes(router *gin.Engine, cfg *config.Config, docs *services.DocumentService, repo *models.DocumentRepo, queueClient *asynq.Client) {
	router.POST("/api/upload", handleUpload(cfg, docs, repo, queueClient))
}

func handleUpload(cfg *config.Config, docs *services.DocumentService, repo *models.DocumentRepo, queueClient *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := middleware.SessionID(c)

		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error_code": "file_too_large",
				"message":    "File size exceeds maximum limit",
			})
			return
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error_code": "no_file",
				"message":    "No PDF file provided",
			})
			return
		}
		defer file.Close()

		ct := header.Header.Get("Content-Type")
		if !strings.Contains(ct, "pdf") && !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
			c.JSON(http.StatusBadRequest, gin.H{
				"error_code": "invalid_file_type",
				"message":    "Only PDF files are allowed",
			})
			return
		}
		if header.Size > cfg.MaxFileSize {
			c.JSON(http.StatusBadRequest, gin.H{
				"error_code": "file_too_large",
				"message":    "File size exceeds maximum limit",
			})
			return
		}

		headerBuf := make([]byte, 5)
		if _, err := io.ReadFull(file, headerBuf); err != nil || string(headerBuf[:4]) != "%PDF" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error_code": "invalid_pdf",
				"message":    "File does not appear to be a valid PDF",
			})
			return
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error_code": "read_failed",
				"message":    "Failed to read uploaded file",
			})
			return
		}

		ctx := c.Request.Context()
		doc, err := docs.SaveUpload(ctx, file, header.Filename, sessionID, header.Size)
		if err != nil {
			logger.Error("Upload save failed", "error", err, "session_id", sessionID)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error_code": "save_failed",
				"message":    "Failed to store uploaded file",
			})
			return
		}

		if header.Size > cfg.SyncProcessingLimit && queueClient != nil {
			task, err := queue.NewIngestTask(doc.ID, sessionID)
			if err == nil {
				_, err = queueClient.EnqueueContext(ctx, task)
			}
			if err != nil {
				logger.Error("Failed to enqueue ingest task", "document_id", doc.ID, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error_code": "enqueue_failed",
					"message":    "Failed to schedule document processing",
				})
				return
			}

			c.JSON(http.StatusAccepted, models.UploadResponse{
				ID:       doc.ID,
				Filename: doc.Filename,
				Status:   models.StatusProcessing,
				Message:  "Document queued for processing",
			})
			return
		}

		if err := docs.Process(ctx, doc); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error_code": "processing_failed",
				"message":    "Failed to process document: " + err.Error(),
			})
			return
		}

		processed, err := repo.FindByID(ctx, doc.ID)
		if err != nil {
			processed = doc
		}
		c.JSON(http.StatusOK, models.UploadResponse{
			ID:         processed.ID,
			Filename:   processed.Filename,
			Status:     processed.Status,
			Pages:      processed.Pages,
			ChunkCount: processed.ChunkCount,
			Message:    fmt.Sprintf("Successfully processed '%s'. Stored %d chunks.", processed.Filename, processed.ChunkCount),
		})
	}
}
