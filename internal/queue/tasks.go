package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"veritas-backend/internal/logger"
	"veritas-backend/models"
	"veritas-backend/services"
)

const TaskIngestDocument = "document:ingest"

type IngestPayload struct {
	DocumentID string `json:"document_id"`
	SessionID  string `json:"session_id"`
}

// NewIngestTask builds the background ingestion task for an upload too large
// to process inside the request.
func NewIngestTask(documentID, sessionID string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestPayload{
		DocumentID: documentID,
		SessionID:  sessionID,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// IngestProcessor handles ingestion tasks on the worker side.
type IngestProcessor struct {
	docs *services.DocumentService
	repo *models.DocumentRepo
}

func NewIngestProcessor(docs *services.DocumentService, repo *models.DocumentRepo) *IngestProcessor {
	return &IngestProcessor{docs: docs, repo: repo}
}

func (p *IngestProcessor) ProcessIngest(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Processing ingest task", "document_id", payload.DocumentID, "session_id", payload.SessionID)

	doc, err := p.repo.FindByID(ctx, payload.DocumentID)
	if err != nil {
		// The janitor may have swept the record; retrying will not help.
		logger.Warn("Ingest task document missing", "document_id", payload.DocumentID, "error", err)
		return asynq.SkipRetry
	}

	return p.docs.Process(ctx, doc)
}
