package services

import (
	"context"
	"os"
	"time"

	"github.com/go-co-op/gocron"

	"veritas-backend/internal/logger"
	"veritas-backend/internal/rag"
	"veritas-backend/models"
)

// Janitor periodically drops idle sessions and removes upload files whose
// bookkeeping records have aged out.
type Janitor struct {
	scheduler  *gocron.Scheduler
	sessions   rag.SessionStore
	repo       *models.DocumentRepo
	sessionTTL time.Duration
	uploadTTL  time.Duration
}

func NewJanitor(sessions rag.SessionStore, repo *models.DocumentRepo, sessionTTL, uploadTTL time.Duration) *Janitor {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &Janitor{
		scheduler:  s,
		sessions:   sessions,
		repo:       repo,
		sessionTTL: sessionTTL,
		uploadTTL:  uploadTTL,
	}
}

func (j *Janitor) Start(interval time.Duration) error {
	if _, err := j.scheduler.Every(interval).Tag("janitor-sweep").Do(j.sweep); err != nil {
		return err
	}
	j.scheduler.StartAsync()
	logger.Info("Janitor started", "interval", interval.String())
	return nil
}

func (j *Janitor) Stop() {
	j.scheduler.Stop()
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	removed := j.sessions.SweepIdle(j.sessionTTL)

	var deletedFiles int
	paths, err := j.repo.DeleteOlderThan(ctx, time.Now().Add(-j.uploadTTL))
	if err != nil {
		logger.Warn("Janitor document sweep failed", "error", err)
	}
	for _, path := range paths {
		if err := os.Remove(path); err == nil {
			deletedFiles++
		}
	}

	if removed > 0 || deletedFiles > 0 {
		logger.Info("Janitor sweep complete", "sessions_removed", removed, "files_deleted", deletedFiles)
	}
}
