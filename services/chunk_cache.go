package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"veritas-backend/internal/logger"
	"veritas-backend/internal/rag"
	"veritas-backend/utils"
)

// ChunkCache stores extracted chunks in Redis keyed by file hash, so
// re-uploading the same PDF skips extraction and chunking entirely.
// All failures degrade to a cache miss.
type ChunkCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewChunkCache(rdb *redis.Client, ttl time.Duration) *ChunkCache {
	return &ChunkCache{rdb: rdb, ttl: ttl}
}

type cachedChunks struct {
	Compressed bool   `json:"compressed"`
	Payload    []byte `json:"payload"`
}

func chunkCacheKey(fileHash string) string { return "chunks:" + fileHash }

func (c *ChunkCache) Get(ctx context.Context, fileHash string) ([]rag.Chunk, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}

	raw, err := c.rdb.Get(ctx, chunkCacheKey(fileHash)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("Chunk cache read failed", "error", err)
		}
		return nil, false
	}

	var envelope cachedChunks
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, false
	}
	text, err := utils.DecompressText(envelope.Payload, envelope.Compressed)
	if err != nil {
		logger.Warn("Chunk cache decompress failed", "error", err)
		return nil, false
	}

	var chunks []rag.Chunk
	if err := json.Unmarshal([]byte(text), &chunks); err != nil {
		return nil, false
	}
	return chunks, true
}

func (c *ChunkCache) Set(ctx context.Context, fileHash string, chunks []rag.Chunk) {
	if c == nil || c.rdb == nil || len(chunks) == 0 {
		return
	}

	data, err := json.Marshal(chunks)
	if err != nil {
		return
	}
	payload, compressed, err := utils.CompressText(string(data))
	if err != nil {
		logger.Warn("Chunk cache compress failed", "error", err)
		return
	}

	raw, err := json.Marshal(cachedChunks{Compressed: compressed, Payload: payload})
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, chunkCacheKey(fileHash), raw, c.ttl).Err(); err != nil {
		logger.Warn("Chunk cache write failed", "error", err)
	}
}
