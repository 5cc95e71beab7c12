package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/majicagent/photo-pipeline/internal/models"
)

const photoColumns = `id, user_id, organization_id, original_path, enhanced_path, classification,
	status, image_hash, file_size, original_name, attempt_count, last_attempt_at,
	duplicate_hits, property_address, room_name, tags, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPhoto(row rowScanner) (*models.Photo, error) {
	var photo models.Photo
	err := row.Scan(
		&photo.ID, &photo.UserID, &photo.OrganizationID, &photo.OriginalPath,
		&photo.EnhancedPath, &photo.Classification, &photo.Status, &photo.ImageHash,
		&photo.FileSize, &photo.OriginalName, &photo.AttemptCount, &photo.LastAttemptAt,
		&photo.DuplicateHits, &photo.PropertyAddress, &photo.RoomName, &photo.Tags,
		&photo.CreatedAt, &photo.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &photo, nil
}

func (c *Client) CreatePhoto(photo *models.Photo) error {
	err := c.db.QueryRow(`
		INSERT INTO photos (user_id, organization_id, original_path, status, image_hash,
			file_size, original_name, property_address, room_name, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, attempt_count, duplicate_hits, created_at, updated_at
	`, photo.UserID, photo.OrganizationID, photo.OriginalPath, photo.Status,
		photo.ImageHash, photo.FileSize, photo.OriginalName, photo.PropertyAddress,
		photo.RoomName, photo.Tags,
	).Scan(&photo.ID, &photo.AttemptCount, &photo.DuplicateHits, &photo.CreatedAt, &photo.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create photo: %w", err)
	}
	return nil
}

func (c *Client) GetPhoto(photoID, userID uuid.UUID) (*models.Photo, error) {
	photo, err := scanPhoto(c.db.QueryRow(`
		SELECT `+photoColumns+`
		FROM photos
		WHERE id = $1 AND user_id = $2
	`, photoID, userID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}
	return photo, nil
}

func (c *Client) GetPhotoByID(photoID uuid.UUID) (*models.Photo, error) {
	photo, err := scanPhoto(c.db.QueryRow(`
		SELECT `+photoColumns+`
		FROM photos
		WHERE id = $1
	`, photoID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}
	return photo, nil
}

// FindDuplicate looks up an existing record for the same owner with equal
// content hash and equal byte size. The size check guards against hash
// collisions. Returns (nil, nil) when no duplicate exists.
func (c *Client) FindDuplicate(userID uuid.UUID, imageHash string, fileSize int64) (*models.Photo, error) {
	photo, err := scanPhoto(c.db.QueryRow(`
		SELECT `+photoColumns+`
		FROM photos
		WHERE user_id = $1 AND image_hash = $2 AND file_size = $3
	`, userID, imageHash, fileSize))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicate: %w", err)
	}
	return photo, nil
}

func (c *Client) RecordDuplicateHit(photoID uuid.UUID) error {
	_, err := c.db.Exec(`
		UPDATE photos
		SET duplicate_hits = duplicate_hits + 1, updated_at = NOW()
		WHERE id = $1
	`, photoID)
	return err
}

func (c *Client) ListPhotos(userID uuid.UUID) ([]models.Photo, error) {
	rows, err := c.db.Query(`
		SELECT `+photoColumns+`
		FROM photos
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, *photo)
	}
	return photos, rows.Err()
}

// BeginAttempt transitions a photo to processing and stamps the attempt
// time, but only if its current status is one of fromStatuses and the
// minimum interval since the previous attempt has elapsed. The conditional
// update makes the gate hold across multiple server processes: at most one
// caller wins the transition, everyone else gets false with no state change
// and no attempt counted.
func (c *Client) BeginAttempt(photoID uuid.UUID, minInterval time.Duration, fromStatuses []string) (bool, error) {
	result, err := c.db.Exec(`
		UPDATE photos
		SET status = $1, last_attempt_at = NOW(), updated_at = NOW()
		WHERE id = $2
		  AND status = ANY($3)
		  AND (last_attempt_at IS NULL OR last_attempt_at <= NOW() - ($4 * interval '1 second'))
	`, models.StatusProcessing, photoID, pq.Array(fromStatuses), minInterval.Seconds())
	if err != nil {
		return false, fmt.Errorf("failed to begin attempt: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to begin attempt: %w", err)
	}
	return affected == 1, nil
}

func (c *Client) SetClassification(photoID uuid.UUID, classification string) error {
	_, err := c.db.Exec(`
		UPDATE photos
		SET classification = $1, updated_at = NOW()
		WHERE id = $2
	`, classification, photoID)
	if err != nil {
		return fmt.Errorf("failed to set classification: %w", err)
	}
	return nil
}

// IncrementAttempt bumps the paid-call counter and returns the new value.
// Called before the enhancement call so a crash mid-call still counts
// against the retry budget.
func (c *Client) IncrementAttempt(photoID uuid.UUID) (int, error) {
	var count int
	err := c.db.QueryRow(`
		UPDATE photos
		SET attempt_count = attempt_count + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING attempt_count
	`, photoID).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment attempt count: %w", err)
	}
	return count, nil
}

func (c *Client) MarkDone(photoID uuid.UUID, enhancedPath string) error {
	_, err := c.db.Exec(`
		UPDATE photos
		SET status = $1, enhanced_path = $2, updated_at = NOW()
		WHERE id = $3
	`, models.StatusDone, enhancedPath, photoID)
	if err != nil {
		return fmt.Errorf("failed to mark photo done: %w", err)
	}
	return nil
}

// FailAttempt applies the shared retry-cap policy against the latest
// persisted state: terminal error at or beyond maxAttempts, otherwise
// fallbackStatus (pending for the automatic pipeline, done for reprocess
// so the last good artifact stays visible). The enhanced path is left
// untouched. Returns the resulting status and attempt count.
func (c *Client) FailAttempt(photoID uuid.UUID, maxAttempts int, fallbackStatus string) (string, int, error) {
	var status string
	var attempts int
	err := c.db.QueryRow(`
		UPDATE photos
		SET status = CASE WHEN attempt_count >= $1 THEN $2 ELSE $3 END, updated_at = NOW()
		WHERE id = $4
		RETURNING status, attempt_count
	`, maxAttempts, models.StatusError, fallbackStatus, photoID).Scan(&status, &attempts)
	if err == sql.ErrNoRows {
		return "", 0, ErrNotFound
	}
	if err != nil {
		return "", 0, fmt.Errorf("failed to record attempt failure: %w", err)
	}
	return status, attempts, nil
}

// ListRetryable returns pending photos under the attempt cap whose last
// attempt (or creation, for photos that never got one) is past the
// rate-limit interval. The retry sweeper feeds these back into the job
// queue; it also recovers submissions dropped by a full queue.
func (c *Client) ListRetryable(minInterval time.Duration, maxAttempts, limit int) ([]models.Photo, error) {
	rows, err := c.db.Query(`
		SELECT `+photoColumns+`
		FROM photos
		WHERE status = $1
		  AND attempt_count < $2
		  AND COALESCE(last_attempt_at, created_at) <= NOW() - ($3 * interval '1 second')
		ORDER BY COALESCE(last_attempt_at, created_at) ASC
		LIMIT $4
	`, models.StatusPending, maxAttempts, minInterval.Seconds(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list retryable photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, *photo)
	}
	return photos, rows.Err()
}

// RecoverStalled repairs photos abandoned in processing by a crashed
// worker process. Anything still marked processing long past its attempt
// stamp gets the usual attempt-cap decision: error at or beyond the cap,
// otherwise back to pending where the retry sweep can pick it up.
func (c *Client) RecoverStalled(staleAfter time.Duration, maxAttempts int) (int64, error) {
	result, err := c.db.Exec(`
		UPDATE photos
		SET status = CASE WHEN attempt_count >= $1 THEN $2 ELSE $3 END, updated_at = NOW()
		WHERE status = $4
		  AND last_attempt_at <= NOW() - ($5 * interval '1 second')
	`, maxAttempts, models.StatusError, models.StatusPending, models.StatusProcessing, staleAfter.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to recover stalled photos: %w", err)
	}
	return result.RowsAffected()
}

func (c *Client) UpdateTags(userID uuid.UUID, photoIDs []uuid.UUID, propertyAddress, roomName sql.NullString, tags []string) (int64, error) {
	result, err := c.db.Exec(`
		UPDATE photos
		SET property_address = $1, room_name = $2, tags = $3, updated_at = NOW()
		WHERE id = ANY($4) AND user_id = $5
	`, propertyAddress, roomName, pq.Array(tags), pq.Array(photoIDs), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to update tags: %w", err)
	}
	return result.RowsAffected()
}

func (c *Client) Addresses(userID uuid.UUID) ([]string, error) {
	rows, err := c.db.Query(`
		SELECT DISTINCT property_address
		FROM photos
		WHERE user_id = $1 AND property_address IS NOT NULL AND property_address <> ''
		ORDER BY property_address
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	var addresses []string
	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addresses = append(addresses, address)
	}
	return addresses, rows.Err()
}

func (c *Client) Rooms(userID uuid.UUID, propertyAddress string) ([]string, error) {
	query := `
		SELECT DISTINCT room_name
		FROM photos
		WHERE user_id = $1 AND room_name IS NOT NULL AND room_name <> ''
	`
	args := []interface{}{userID}
	if propertyAddress != "" {
		query += ` AND property_address = $2`
		args = append(args, propertyAddress)
	}
	query += ` ORDER BY room_name`

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []string
	for rows.Next() {
		var room string
		if err := rows.Scan(&room); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (c *Client) Stats(userID uuid.UUID) (*models.StatsResponse, error) {
	var stats models.StatsResponse
	err := c.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(attempt_count), 0),
			COUNT(*) FILTER (WHERE status = 'done'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'error'),
			COALESCE(SUM(duplicate_hits), 0)
		FROM photos
		WHERE user_id = $1
	`, userID).Scan(
		&stats.TotalPhotos, &stats.TotalAttempts, &stats.CompletedPhotos,
		&stats.ProcessingPhotos, &stats.PendingPhotos, &stats.ErrorPhotos,
		&stats.DuplicatesAvoided,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &stats, nil
}
