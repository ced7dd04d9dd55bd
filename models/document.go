package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Document processing status constants.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Document is the upload bookkeeping record for one ingested PDF.
type Document struct {
	ID           string     `bson:"_id" json:"id"`
	Filename     string     `bson:"filename" json:"filename"`
	FilePath     string     `bson:"file_path" json:"-"`
	FileHash     string     `bson:"file_hash" json:"file_hash"`
	Size         int64      `bson:"size" json:"size"`
	Pages        int        `bson:"pages" json:"pages"`
	ChunkCount   int        `bson:"chunk_count" json:"chunk_count"`
	HasImages    bool       `bson:"has_images" json:"has_images"`
	Status       string     `bson:"status" json:"status"`
	ErrorMessage string     `bson:"error_message,omitempty" json:"error_message,omitempty"`
	SessionID    string     `bson:"session_id" json:"session_id"`
	UploadedAt   time.Time  `bson:"uploaded_at" json:"uploaded_at"`
	ProcessedAt  *time.Time `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// DocumentRepo wraps the documents collection.
type DocumentRepo struct {
	col *mongo.Collection
}

func NewDocumentRepo(db *mongo.Database) *DocumentRepo {
	return &DocumentRepo{col: db.Collection("documents")}
}

func (r *DocumentRepo) Insert(ctx context.Context, doc *Document) error {
	_, err := r.col.InsertOne(ctx, doc)
	return err
}

// UpdateStatus transitions a document's processing status. An empty errMsg
// clears any previous error.
func (r *DocumentRepo) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	update := bson.M{
		"status":        status,
		"error_message": errMsg,
	}
	if status == StatusCompleted {
		now := time.Now()
		update["processed_at"] = now
	}
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update})
	return err
}

// MarkProcessed records the final extraction stats alongside the completed
// status.
func (r *DocumentRepo) MarkProcessed(ctx context.Context, id string, pages, chunkCount int, hasImages bool) error {
	now := time.Now()
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":        StatusCompleted,
		"error_message": "",
		"pages":         pages,
		"chunk_count":   chunkCount,
		"has_images":    hasImages,
		"processed_at":  now,
	}})
	return err
}

func (r *DocumentRepo) FindByID(ctx context.Context, id string) (*Document, error) {
	var doc Document
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindLatestBySession returns the most recent upload for a session, or nil
// when the session has none.
func (r *DocumentRepo) FindLatestBySession(ctx context.Context, sessionID string) (*Document, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "uploaded_at", Value: -1}})
	var doc Document
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID}, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteOlderThan removes bookkeeping records whose uploads predate the
// cutoff and returns their file paths so the janitor can unlink them.
func (r *DocumentRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	filter := bson.M{"uploaded_at": bson.M{"$lt": cutoff}}

	cursor, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var paths []string
	for cursor.Next(ctx) {
		var doc Document
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		if doc.FilePath != "" {
			paths = append(paths, doc.FilePath)
		}
	}

	if _, err := r.col.DeleteMany(ctx, filter); err != nil {
		return paths, err
	}
	return paths, nil
}
