package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/majicagent/photo-pipeline/internal/middleware"
	"github.com/majicagent/photo-pipeline/internal/models"
	"github.com/majicagent/photo-pipeline/internal/pipeline"
)

// PhotoStore covers the record operations the HTTP surface needs.
type PhotoStore interface {
	CreatePhoto(photo *models.Photo) error
	GetPhoto(photoID, userID uuid.UUID) (*models.Photo, error)
	FindDuplicate(userID uuid.UUID, imageHash string, fileSize int64) (*models.Photo, error)
	RecordDuplicateHit(photoID uuid.UUID) error
	ListPhotos(userID uuid.UUID) ([]models.Photo, error)
	Stats(userID uuid.UUID) (*models.StatsResponse, error)
	UpdateTags(userID uuid.UUID, photoIDs []uuid.UUID, propertyAddress, roomName sql.NullString, tags []string) (int64, error)
	Addresses(userID uuid.UUID) ([]string, error)
	Rooms(userID uuid.UUID, propertyAddress string) ([]string, error)
}

// CreditStore reads and authorizes against the per-user ledger.
type CreditStore interface {
	Ledger(userID uuid.UUID) (*models.CreditLedger, error)
	Authorize(userID uuid.UUID, count int) (*models.CreditDecision, error)
}

// BlobStore uploads originals and signs download URLs.
type BlobStore interface {
	Upload(storagePath string, data []byte, contentType string) error
	SignedURL(storagePath string, ttl time.Duration) (string, error)
}

// Pipeline is the async job runner plus the synchronous reprocess entry.
type Pipeline interface {
	Enqueue(job pipeline.Job) bool
	Reprocess(ctx context.Context, userID, photoID uuid.UUID, customPrompt, sourceChoice string) (*models.Photo, error)
}

// currentUser pulls the authenticated user id out of the gin context.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid user id"})
		return uuid.Nil, false
	}
	return userID, true
}

// currentOrganization pulls the optional organization id from the context.
func currentOrganization(c *gin.Context) uuid.NullUUID {
	orgStr, exists := c.Get(middleware.OrganizationIDKey)
	if !exists {
		return uuid.NullUUID{}
	}
	orgID, err := uuid.Parse(orgStr.(string))
	if err != nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: orgID, Valid: true}
}

func toPhotoResponse(photo *models.Photo, originalURL, enhancedURL string) models.PhotoResponse {
	return models.PhotoResponse{
		ID:              photo.ID.String(),
		Status:          photo.Status,
		Classification:  photo.Classification.String,
		OriginalName:    photo.OriginalName,
		OriginalURL:     originalURL,
		EnhancedURL:     enhancedURL,
		FileSize:        photo.FileSize,
		AttemptCount:    photo.AttemptCount,
		PropertyAddress: photo.PropertyAddress.String,
		RoomName:        photo.RoomName.String,
		Tags:            photo.Tags,
		CreatedAt:       photo.CreatedAt,
		UpdatedAt:       photo.UpdatedAt,
	}
}
