package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/majicagent/photo-pipeline/internal/models"
	"github.com/majicagent/photo-pipeline/internal/realtime"
	"github.com/majicagent/photo-pipeline/internal/storage"
	"github.com/majicagent/photo-pipeline/internal/store"
	"github.com/majicagent/photo-pipeline/internal/vision"
	"github.com/rs/zerolog/log"
)

// Process runs one photo through the begin/classify/enhance sequence.
// Errors never escape: expected enhancement failures are converted into
// the attempt-count-based pending/error decision inline, and anything
// unexpected hits the safety net at the job boundary.
func (r *Runner) Process(ctx context.Context, job Job) {
	if err := r.process(ctx, job); err != nil {
		r.recoverFailedJob(job, err)
	}
}

func (r *Runner) process(ctx context.Context, job Job) error {
	photo, err := r.photos.GetPhotoByID(job.PhotoID)
	if errors.Is(err, store.ErrNotFound) {
		log.Error().Str("photo_id", job.PhotoID.String()).Msg("Photo missing, dropping job")
		return nil
	}
	if err != nil {
		return err
	}

	// A done record is only ever re-run by an explicit reprocess, and a
	// record at the attempt cap is terminal for the automatic pipeline.
	if photo.Status == models.StatusDone || photo.Status == models.StatusError {
		log.Debug().Str("photo_id", photo.ID.String()).Str("status", photo.Status).Msg("Photo not eligible for processing, skipping")
		return nil
	}

	began, err := r.photos.BeginAttempt(photo.ID, r.policy.MinAttemptInterval, []string{models.StatusPending})
	if err != nil {
		return err
	}
	if !began {
		// Another trigger won the transition or the rate limit has not
		// elapsed. No state change, no attempt counted.
		log.Debug().Str("photo_id", photo.ID.String()).Msg("Attempt gated, skipping")
		return nil
	}

	originalData, err := r.blobs.Download(photo.OriginalPath)
	if err != nil {
		return fmt.Errorf("failed to fetch original: %w", err)
	}

	// Classification is free and must never block enhancement. The
	// fallback to exterior is an explicit branch, not a swallowed error.
	classification, err := r.classifier.Classify(ctx, originalData)
	if err != nil {
		log.Warn().Err(err).Str("photo_id", photo.ID.String()).Msg("Classification failed, defaulting to exterior")
		classification = models.ClassificationExterior
	}
	if err := r.photos.SetClassification(photo.ID, classification); err != nil {
		return err
	}

	// Count the attempt before the paid call so a crash mid-call still
	// burns retry budget rather than free-looping against the API.
	attempt, err := r.photos.IncrementAttempt(photo.ID)
	if err != nil {
		return err
	}

	r.events.PublishPhotoEvent(photo.UserID, photo.ID, "photo_processing", realtime.ProcessingPayload(attempt))
	log.Info().
		Str("photo_id", photo.ID.String()).
		Str("classification", classification).
		Int("attempt", attempt).
		Msg("Starting enhancement attempt")

	enhancedData, err := r.enhancer.Enhance(ctx, originalData, classification, photo.RoomName.String, "")
	if err != nil {
		r.failAttempt(photo.ID, photo.UserID, models.StatusPending, err)
		return nil
	}

	enhancedKey := storage.EnhancedKey(photo.UserID, photo.OrganizationID, photo.OriginalPath)
	if err := r.blobs.Upload(enhancedKey, enhancedData, "image/png"); err != nil {
		// The paid call succeeded but the artifact is lost; the attempt
		// still counts and the photo stays retryable.
		return fmt.Errorf("failed to store enhanced image: %w", err)
	}

	if err := r.photos.MarkDone(photo.ID, enhancedKey); err != nil {
		return err
	}

	if err := r.credits.Consume(photo.UserID, 1); err != nil {
		// Authorization happened at submission; failing here means a
		// concurrent consumer raced us past the allowance.
		log.Error().Err(err).Str("user_id", photo.UserID.String()).Msg("Credit consume failed after successful enhancement")
	}

	r.events.PublishPhotoEvent(photo.UserID, photo.ID, "photo_done", realtime.DonePayload(enhancedKey))
	log.Info().Str("photo_id", photo.ID.String()).Int("attempts", attempt).Msg("Photo enhanced successfully")
	return nil
}

// failAttempt applies the shared retry-cap policy after a failed paid
// call. The enhanced path is never touched on failure: a broken attempt
// must not surface the unmodified original as if it were enhanced.
func (r *Runner) failAttempt(photoID, userID uuid.UUID, fallbackStatus string, cause error) {
	event := log.Error()
	if errors.Is(cause, vision.ErrQuotaExhausted) {
		event = log.Error().Bool("quota_exhausted", true)
	}
	event.Err(cause).Str("photo_id", photoID.String()).Msg("Enhancement attempt failed")

	status, attempts, err := r.photos.FailAttempt(photoID, r.policy.MaxAttempts, fallbackStatus)
	if err != nil {
		log.Error().Err(err).Str("photo_id", photoID.String()).Msg("Failed to record attempt failure")
		return
	}

	r.events.PublishPhotoEvent(userID, photoID, "photo_failed", realtime.FailedPayload(status, attempts, cause.Error()))
	if status == models.StatusError {
		log.Warn().Str("photo_id", photoID.String()).Int("attempts", attempts).Msg("Photo marked as error after exhausting attempts")
	} else {
		log.Info().Str("photo_id", photoID.String()).Int("attempts", attempts).Str("status", status).Msg("Photo eligible for retry")
	}
}

// recoverFailedJob is the job-boundary safety net: re-read the record and
// apply the same attempt-count-based decision as the primary failure path.
// Only a photo left in processing needs repair; anything else already
// reached a consistent state.
func (r *Runner) recoverFailedJob(job Job, cause error) {
	log.Error().Err(cause).Str("photo_id", job.PhotoID.String()).Msg("Enhancement job failed")

	photo, err := r.photos.GetPhotoByID(job.PhotoID)
	if err != nil {
		log.Error().Err(err).Str("photo_id", job.PhotoID.String()).Msg("Failed to re-read photo after job failure")
		return
	}
	if photo.Status != models.StatusProcessing {
		return
	}
	r.failAttempt(photo.ID, photo.UserID, models.StatusPending, cause)
}
