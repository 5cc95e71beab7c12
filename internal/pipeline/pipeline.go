// Package pipeline implements the asynchronous photo enhancement flow:
// dedup-checked submissions fan out to a worker pool that classifies,
// enhances, and persists each photo while keeping the per-user credit
// ledger honest.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/majicagent/photo-pipeline/internal/models"
)

// ErrAttemptGated is returned when a begin-attempt loses the conditional
// update: another attempt is in flight or the minimum interval since the
// last one has not elapsed.
var ErrAttemptGated = errors.New("enhancement attempt already in progress or attempted too recently")

// Job identifies one photo to run through the enhancement state machine.
type Job struct {
	PhotoID uuid.UUID
	UserID  uuid.UUID
}

// PhotoStore is the durable state machine for photo records. All status
// mutations are conditional updates against the latest persisted state so
// concurrent workers cannot clobber each other.
type PhotoStore interface {
	GetPhotoByID(photoID uuid.UUID) (*models.Photo, error)
	GetPhoto(photoID, userID uuid.UUID) (*models.Photo, error)
	BeginAttempt(photoID uuid.UUID, minInterval time.Duration, fromStatuses []string) (bool, error)
	SetClassification(photoID uuid.UUID, classification string) error
	IncrementAttempt(photoID uuid.UUID) (int, error)
	MarkDone(photoID uuid.UUID, enhancedPath string) error
	FailAttempt(photoID uuid.UUID, maxAttempts int, fallbackStatus string) (string, int, error)
	ListRetryable(minInterval time.Duration, maxAttempts, limit int) ([]models.Photo, error)
	RecoverStalled(staleAfter time.Duration, maxAttempts int) (int64, error)
}

// CreditStore tracks the per-user enhancement quota.
type CreditStore interface {
	Ledger(userID uuid.UUID) (*models.CreditLedger, error)
	Authorize(userID uuid.UUID, count int) (*models.CreditDecision, error)
	Consume(userID uuid.UUID, count int) error
}

// BlobStore reads and writes image bytes at opaque hierarchical keys.
type BlobStore interface {
	Upload(storagePath string, data []byte, contentType string) error
	Download(storagePath string) ([]byte, error)
}

// Classifier labels an image. Classification is free and must never block
// the pipeline: callers fall back to exterior on any error.
type Classifier interface {
	Classify(ctx context.Context, imageData []byte) (string, error)
}

// Enhancer performs the paid image generation call.
type Enhancer interface {
	Enhance(ctx context.Context, imageData []byte, classification, roomHint, customPrompt string) ([]byte, error)
}

// EventPublisher pushes photo lifecycle events to subscribed clients.
type EventPublisher interface {
	PublishPhotoEvent(userID, photoID uuid.UUID, event string, payload map[string]interface{}) error
}

// Policy carries the tunable pipeline constants.
type Policy struct {
	// MinAttemptInterval gates how often a single photo may begin an
	// enhancement attempt.
	MinAttemptInterval time.Duration
	// MaxAttempts is the shared cap across automatic retries and manual
	// reprocess attempts.
	MaxAttempts int
}
