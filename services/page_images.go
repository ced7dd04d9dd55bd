package services

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"veritas-backend/internal/logger"
)

const pageImagesKey = "page_images"

// PageImageStore tracks the rendered page images of the active document.
// When Redis is available the mapping is shared through it, so images
// rendered by the background worker are visible to the API process; the
// in-memory copy doubles as a fallback when Redis is down.
type PageImageStore struct {
	rdb *redis.Client

	mu         sync.RWMutex
	documentID string
	images     map[int]string
}

func NewPageImageStore(rdb *redis.Client) *PageImageStore {
	return &PageImageStore{rdb: rdb, images: make(map[int]string)}
}

type pageImageSnapshot struct {
	DocumentID string            `json:"document_id"`
	Images     map[string]string `json:"images"`
}

// PageImage returns the rendered image path for a page of the active
// document. Vision lookups are rare, so the Redis read per call is cheap
// compared to a stale answer.
func (s *PageImageStore) PageImage(page int) (string, bool) {
	if s.rdb != nil {
		s.refreshFromRedis()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	path, ok := s.images[page]
	return path, ok
}

// Replace swaps in the image set of a newly processed document and publishes
// it for the other process.
func (s *PageImageStore) Replace(documentID string, images map[int]string) {
	if images == nil {
		images = make(map[int]string)
	}

	s.mu.Lock()
	s.documentID = documentID
	s.images = images
	s.mu.Unlock()

	if s.rdb == nil {
		return
	}
	snapshot := pageImageSnapshot{DocumentID: documentID, Images: make(map[string]string, len(images))}
	for page, path := range images {
		snapshot.Images[strconv.Itoa(page)] = path
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.rdb.Set(ctx, pageImagesKey, data, 0).Err(); err != nil {
		logger.Warn("Failed to publish page images", "error", err)
	}
}

// refreshFromRedis reloads the shared mapping when another process has
// replaced the active document.
func (s *PageImageStore) refreshFromRedis() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	raw, err := s.rdb.Get(ctx, pageImagesKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("Failed to read shared page images", "error", err)
		}
		return
	}

	var snapshot pageImageSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return
	}

	s.mu.RLock()
	current := s.documentID
	s.mu.RUnlock()
	if snapshot.DocumentID == current {
		return
	}

	images := make(map[int]string, len(snapshot.Images))
	for pageStr, path := range snapshot.Images {
		page, err := strconv.Atoi(pageStr)
		if err != nil {
			continue
		}
		images[page] = path
	}

	s.mu.Lock()
	s.documentID = snapshot.DocumentID
	s.images = images
	s.mu.Unlock()
}
