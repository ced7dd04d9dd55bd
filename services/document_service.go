package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"veritas-backend/internal/config"
	"veritas-backend/internal/logger"
	"veritas-backend/internal/rag"
	"veritas-backend/models"
	"veritas-backend/utils"
)

// DocumentService owns the upload-to-index pipeline: persisting the file,
// extracting and chunking text, rendering page images, replacing the vector
// index contents, and rebinding the session to the new document.
type DocumentService struct {
	cfg        *config.Config
	repo       *models.DocumentRepo
	store      *rag.DocumentStore
	sessions   rag.SessionStore
	cache      *ChunkCache
	chunker    *Chunker
	pageImages *PageImageStore
}

func NewDocumentService(
	cfg *config.Config,
	repo *models.DocumentRepo,
	store *rag.DocumentStore,
	sessions rag.SessionStore,
	cache *ChunkCache,
	pageImages *PageImageStore,
) *DocumentService {
	return &DocumentService{
		cfg:        cfg,
		repo:       repo,
		store:      store,
		sessions:   sessions,
		cache:      cache,
		chunker:    NewChunker(cfg.MaxChunkSize, cfg.ChunkOverlap, cfg.MinChunkSize),
		pageImages: pageImages,
	}
}

// SaveUpload persists the uploaded file to disk and records the pending
// document in Mongo.
func (s *DocumentService) SaveUpload(ctx context.Context, file multipart.File, filename, sessionID string, size int64) (*models.Document, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}

	documentID := uuid.NewString()
	filePath := filepath.Join(s.cfg.UploadDir, documentID+".pdf")

	dst, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(filePath)
		return nil, fmt.Errorf("failed to write upload file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(filePath)
		return nil, fmt.Errorf("failed to close upload file: %w", err)
	}

	fileHash, err := utils.FileHash(filePath)
	if err != nil {
		os.Remove(filePath)
		return nil, err
	}

	doc := &models.Document{
		ID:         documentID,
		Filename:   filename,
		FilePath:   filePath,
		FileHash:   fileHash,
		Size:       size,
		Status:     models.StatusPending,
		SessionID:  sessionID,
		UploadedAt: time.Now(),
	}
	if err := s.repo.Insert(ctx, doc); err != nil {
		os.Remove(filePath)
		return nil, fmt.Errorf("failed to record upload: %w", err)
	}
	return doc, nil
}

// Process runs the full ingestion pipeline for a saved upload. On success
// the session is rebound to the new document with a cleared history; on
// failure the document is marked failed and the previous index contents are
// already gone, leaving the session documentless.
func (s *DocumentService) Process(ctx context.Context, doc *models.Document) error {
	if err := s.repo.UpdateStatus(ctx, doc.ID, models.StatusProcessing, ""); err != nil {
		logger.Warn("Failed to mark document processing", "document_id", doc.ID, "error", err)
	}

	chunks, cached := s.cache.Get(ctx, doc.FileHash)
	if cached {
		logger.Info("Chunk cache hit", "document_id", doc.ID, "file_hash", doc.FileHash, "chunks", len(chunks))
		// Cached chunks belong to the original upload; retag them.
		for i := range chunks {
			chunks[i].FileID = doc.ID
		}
	} else {
		pages, err := ExtractPages(ctx, doc.FilePath)
		if err != nil {
			return s.fail(ctx, doc, fmt.Errorf("extraction failed: %w", err))
		}
		chunks = s.chunker.ChunkPages(pages, doc.ID)
		if len(chunks) == 0 {
			return s.fail(ctx, doc, fmt.Errorf("no extractable text in document"))
		}
		s.cache.Set(ctx, doc.FileHash, chunks)
	}

	images, err := RenderPageImages(ctx, doc.FilePath, s.cfg.PageImageDir, doc.ID)
	if err != nil {
		logger.Warn("Page image rendering failed", "document_id", doc.ID, "error", err)
		images = map[int]string{}
	}

	// One active document at a time: the index is cleared before the new
	// chunks go in.
	if err := s.store.Reset(ctx); err != nil {
		return s.fail(ctx, doc, fmt.Errorf("failed to clear index: %w", err))
	}
	s.store.Ingest(ctx, chunks, doc.ID)
	s.pageImages.Replace(doc.ID, images)
	s.sessions.Reset(doc.SessionID, doc.ID)

	pages, hasImages := chunkStats(chunks)
	if err := s.repo.MarkProcessed(ctx, doc.ID, pages, len(chunks), hasImages); err != nil {
		logger.Warn("Failed to mark document processed", "document_id", doc.ID, "error", err)
	}

	logger.Info("Document processed",
		"document_id", doc.ID,
		"pages", pages,
		"chunks", len(chunks),
		"has_images", hasImages,
	)
	return nil
}

func (s *DocumentService) fail(ctx context.Context, doc *models.Document, cause error) error {
	logger.Error("Document processing failed", "document_id", doc.ID, "error", cause)
	if err := s.repo.UpdateStatus(ctx, doc.ID, models.StatusFailed, cause.Error()); err != nil {
		logger.Warn("Failed to mark document failed", "document_id", doc.ID, "error", err)
	}
	return cause
}

func chunkStats(chunks []rag.Chunk) (pages int, hasImages bool) {
	for _, chunk := range chunks {
		if chunk.PageNumber > pages {
			pages = chunk.PageNumber
		}
		if chunk.HasImages {
			hasImages = true
		}
	}
	return pages, hasImages
}
