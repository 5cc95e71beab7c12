package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/majicagent/photo-pipeline/internal/models"
	"github.com/majicagent/photo-pipeline/internal/realtime"
	"github.com/majicagent/photo-pipeline/internal/storage"
	"github.com/majicagent/photo-pipeline/internal/store"
	"github.com/rs/zerolog/log"
)

// Source choices for reprocessing.
const (
	SourceOriginal = "original"
	SourceEnhanced = "enhanced"
)

// Reprocess re-runs the enhancement step on an existing done record with a
// caller-supplied prompt, skipping classification. Unlike the upload path
// it executes synchronously so the caller sees the immediate result.
// Reprocess shares the photo's attempt budget and credit accounting with
// the automatic pipeline; on failure under the cap the record returns to
// done so the last good artifact stays available.
func (r *Runner) Reprocess(ctx context.Context, userID, photoID uuid.UUID, customPrompt, sourceChoice string) (*models.Photo, error) {
	photo, err := r.photos.GetPhoto(photoID, userID)
	if err != nil {
		return nil, err
	}

	// Credit check happens before any paid call.
	decision, err := r.credits.Authorize(userID, 1)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, fmt.Errorf("%w: %d/%d used", store.ErrInsufficientCredit, decision.Consumed, decision.Allowance)
	}

	// The same gate the automatic pipeline uses, so a manual reprocess
	// cannot race a retry of the same record.
	began, err := r.photos.BeginAttempt(photo.ID, r.policy.MinAttemptInterval, []string{models.StatusDone})
	if err != nil {
		return nil, err
	}
	if !began {
		return nil, ErrAttemptGated
	}

	sourcePath := photo.OriginalPath
	if sourceChoice != SourceOriginal && photo.EnhancedPath.Valid {
		sourcePath = photo.EnhancedPath.String
	}

	sourceData, err := r.blobs.Download(sourcePath)
	if err != nil {
		r.failAttempt(photo.ID, photo.UserID, models.StatusDone, err)
		return nil, fmt.Errorf("failed to fetch source image: %w", err)
	}

	attempt, err := r.photos.IncrementAttempt(photo.ID)
	if err != nil {
		r.failAttempt(photo.ID, photo.UserID, models.StatusDone, err)
		return nil, err
	}

	log.Info().
		Str("photo_id", photo.ID.String()).
		Str("source", sourcePath).
		Int("attempt", attempt).
		Msg("Starting reprocess attempt")

	enhancedData, err := r.enhancer.Enhance(ctx, sourceData, photo.Classification.String, photo.RoomName.String, customPrompt)
	if err != nil {
		// The attempt increment and the status rollback both persist; the
		// caller gets the error, the record never stays in processing.
		r.failAttempt(photo.ID, photo.UserID, models.StatusDone, err)
		return nil, fmt.Errorf("reprocessing failed: %w", err)
	}

	enhancedKey := storage.ReprocessedKey(photo.UserID, photo.OrganizationID, photo.OriginalPath)
	if err := r.blobs.Upload(enhancedKey, enhancedData, "image/png"); err != nil {
		r.failAttempt(photo.ID, photo.UserID, models.StatusDone, err)
		return nil, fmt.Errorf("failed to store reprocessed image: %w", err)
	}

	if err := r.photos.MarkDone(photo.ID, enhancedKey); err != nil {
		// Every error exit rolls the status back; the caller must never
		// get control with the record still in processing.
		r.failAttempt(photo.ID, photo.UserID, models.StatusDone, err)
		return nil, err
	}

	if err := r.credits.Consume(photo.UserID, 1); err != nil {
		log.Error().Err(err).Str("user_id", photo.UserID.String()).Msg("Credit consume failed after successful reprocess")
	}

	r.events.PublishPhotoEvent(photo.UserID, photo.ID, "photo_done", realtime.DonePayload(enhancedKey))
	log.Info().Str("photo_id", photo.ID.String()).Int("attempts", attempt).Msg("Photo reprocessed successfully")

	return r.photos.GetPhoto(photoID, userID)
}
