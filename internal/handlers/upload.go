package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/majicagent/photo-pipeline/internal/config"
	"github.com/majicagent/photo-pipeline/internal/fingerprint"
	"github.com/majicagent/photo-pipeline/internal/models"
	"github.com/majicagent/photo-pipeline/internal/pipeline"
	"github.com/majicagent/photo-pipeline/internal/realtime"
	"github.com/majicagent/photo-pipeline/internal/storage"
	"github.com/rs/zerolog/log"
)

const maxFilesPerUpload = 10

var allowedMimeTypes = []string{"image/jpeg", "image/png", "image/webp"}

type PhotosHandler struct {
	store    PhotoStore
	credits  CreditStore
	blobs    BlobStore
	pipeline Pipeline
	events   pipeline.EventPublisher
	cfg      *config.Config
}

func NewPhotosHandler(store PhotoStore, credits CreditStore, blobs BlobStore, pipe Pipeline, events pipeline.EventPublisher, cfg *config.Config) *PhotosHandler {
	return &PhotosHandler{
		store:    store,
		credits:  credits,
		blobs:    blobs,
		pipeline: pipe,
		events:   events,
		cfg:      cfg,
	}
}

// incomingFile is one multipart file after validation and fingerprinting.
type incomingFile struct {
	header      *multipart.FileHeader
	data        []byte
	contentType string
	fp          fingerprint.Fingerprint
	duplicateOf *models.Photo
}

// Upload accepts a batch of images for asynchronous enhancement. Records
// are created (or deduplicated) and the response returns immediately; the
// enhancement itself runs on the worker pool. Mounted at both
// /photos/upload and /photos/process.
func (h *PhotosHandler) Upload(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	orgID := currentOrganization(c)

	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "failed to parse multipart form",
			Message: err.Error(),
		})
		return
	}

	form := c.Request.MultipartForm
	if form == nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to parse multipart form"})
		return
	}

	var files []*multipart.FileHeader
	for _, fieldName := range []string{"photos", "photo", "images", "image", "files", "file"} {
		if f := form.File[fieldName]; len(f) > 0 {
			files = f
			break
		}
	}
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "no files uploaded"})
		return
	}
	if len(files) > maxFilesPerUpload {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "too many files",
			Message: fmt.Sprintf("at most %d files per upload", maxFilesPerUpload),
		})
		return
	}

	propertyAddress := strings.TrimSpace(c.PostForm("propertyAddress"))
	roomName := strings.TrimSpace(c.PostForm("roomName"))

	// Phase one: read, validate, fingerprint, and dedup-check everything
	// before any storage write or credit decision.
	var (
		incoming []incomingFile
		skipped  []models.SkippedFile
		newCount int
	)
	seenInBatch := make(map[string]bool)
	for _, header := range files {
		file, err := h.readIncoming(header, userID)
		if err != nil {
			skipped = append(skipped, models.SkippedFile{Filename: header.Filename, Reason: err.Error()})
			continue
		}

		batchKey := fmt.Sprintf("%s:%d", file.fp.Hash, file.fp.Size)
		if seenInBatch[batchKey] {
			skipped = append(skipped, models.SkippedFile{Filename: header.Filename, Reason: "duplicate of another file in this upload"})
			continue
		}
		seenInBatch[batchKey] = true

		if file.duplicateOf == nil {
			newCount++
		}
		incoming = append(incoming, *file)
	}

	if len(incoming) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "no processable files",
			Message: fmt.Sprintf("all %d files were skipped", len(files)),
		})
		return
	}

	// Authorize the whole batch of new files before starting any paid
	// work; duplicates ride along for free.
	if newCount > 0 {
		decision, err := h.credits.Authorize(userID, newCount)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to check credits", Message: err.Error()})
			return
		}
		if !decision.Allowed {
			c.JSON(http.StatusForbidden, models.CreditDeniedResponse{
				Error:      "insufficient credits",
				Message:    fmt.Sprintf("you can only process %d more photos, this upload needs %d", decision.Remaining, newCount),
				Allowance:  decision.Allowance,
				Consumed:   decision.Consumed,
				Remaining:  decision.Remaining,
				Requested:  decision.Requested,
				Affordable: decision.Affordable,
			})
			return
		}
	}

	tags := buildTags(propertyAddress, roomName)

	// Phase two: persist originals, create records, enqueue jobs.
	var (
		photos     []models.PhotoResponse
		accepted   int
		duplicates int
	)
	for _, file := range incoming {
		if existing := file.duplicateOf; existing != nil {
			duplicates++
			if err := h.store.RecordDuplicateHit(existing.ID); err != nil {
				log.Warn().Err(err).Str("photo_id", existing.ID.String()).Msg("Failed to record duplicate hit")
			}
			log.Info().
				Str("filename", file.header.Filename).
				Str("photo_id", existing.ID.String()).
				Msg("Duplicate image detected, returning existing photo")
			photos = append(photos, toPhotoResponse(existing, "", ""))
			continue
		}

		originalKey := storage.OriginalKey(userID, orgID, file.header.Filename)
		if err := h.blobs.Upload(originalKey, file.data, file.contentType); err != nil {
			log.Error().Err(err).Str("filename", file.header.Filename).Msg("Failed to store original")
			skipped = append(skipped, models.SkippedFile{Filename: file.header.Filename, Reason: "failed to store original"})
			continue
		}

		photo := &models.Photo{
			UserID:          userID,
			OrganizationID:  orgID,
			OriginalPath:    originalKey,
			Status:          models.StatusPending,
			ImageHash:       file.fp.Hash,
			FileSize:        file.fp.Size,
			OriginalName:    file.header.Filename,
			PropertyAddress: nullString(propertyAddress),
			RoomName:        nullString(roomName),
			Tags:            pq.StringArray(tags),
		}
		if err := h.store.CreatePhoto(photo); err != nil {
			log.Error().Err(err).Str("filename", file.header.Filename).Msg("Failed to create photo record")
			skipped = append(skipped, models.SkippedFile{Filename: file.header.Filename, Reason: "failed to save photo record"})
			continue
		}

		accepted++
		h.pipeline.Enqueue(pipeline.Job{PhotoID: photo.ID, UserID: userID})
		photos = append(photos, toPhotoResponse(photo, "", ""))
	}

	if accepted > 0 || duplicates > 0 {
		h.events.PublishPhotoEvent(userID, uuid.Nil, "photos_submitted", realtime.SubmittedPayload(accepted, duplicates))
	}

	c.JSON(http.StatusOK, models.UploadResponse{
		Message:    fmt.Sprintf("Successfully submitted %d photo(s) for AI enhancement", accepted+duplicates),
		Accepted:   accepted,
		Duplicates: duplicates,
		Skipped:    skipped,
		Photos:     photos,
	})
}

// readIncoming validates and fingerprints one multipart file.
func (h *PhotosHandler) readIncoming(header *multipart.FileHeader, userID uuid.UUID) (*incomingFile, error) {
	contentType := header.Header.Get("Content-Type")
	if !slices.Contains(allowedMimeTypes, contentType) {
		return nil, fmt.Errorf("unsupported file type %q", contentType)
	}
	if header.Size > h.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("file exceeds %d byte limit", h.cfg.MaxUploadBytes)
	}

	src, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	fp := fingerprint.Compute(data)
	existing, err := h.store.FindDuplicate(userID, fp.Hash, fp.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicate: %w", err)
	}

	return &incomingFile{
		header:      header,
		data:        data,
		contentType: contentType,
		fp:          fp,
		duplicateOf: existing,
	}, nil
}
