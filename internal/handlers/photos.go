package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/majicagent/photo-pipeline/internal/models"
	"github.com/rs/zerolog/log"
)

// List returns the caller's photos, each annotated with time-limited
// download URLs for the stored original and enhanced images.
func (h *PhotosHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	photos, err := h.store.ListPhotos(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list photos", Message: err.Error()})
		return
	}

	responses := make([]models.PhotoResponse, 0, len(photos))
	for i := range photos {
		photo := &photos[i]

		originalURL, err := h.blobs.SignedURL(photo.OriginalPath, h.cfg.SignedURLTTL)
		if err != nil {
			log.Warn().Err(err).Str("photo_id", photo.ID.String()).Msg("Failed to sign original URL")
		}

		var enhancedURL string
		if photo.EnhancedPath.Valid {
			enhancedURL, err = h.blobs.SignedURL(photo.EnhancedPath.String, h.cfg.SignedURLTTL)
			if err != nil {
				log.Warn().Err(err).Str("photo_id", photo.ID.String()).Msg("Failed to sign enhanced URL")
			}
		}

		responses = append(responses, toPhotoResponse(photo, originalURL, enhancedURL))
	}

	c.JSON(http.StatusOK, models.PhotoListResponse{Photos: responses})
}

// Stats returns aggregate processing counts for the caller: totals by
// status, total paid attempts, and duplicates avoided.
func (h *PhotosHandler) Stats(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	stats, err := h.store.Stats(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to get stats", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Addresses lists the distinct property addresses on the caller's photos.
func (h *PhotosHandler) Addresses(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	addresses, err := h.store.Addresses(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list addresses", Message: err.Error()})
		return
	}
	if addresses == nil {
		addresses = []string{}
	}

	c.JSON(http.StatusOK, addresses)
}

// Rooms lists the distinct room names on the caller's photos, optionally
// filtered by property address.
func (h *PhotosHandler) Rooms(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	rooms, err := h.store.Rooms(userID, c.Query("address"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list rooms", Message: err.Error()})
		return
	}
	if rooms == nil {
		rooms = []string{}
	}

	c.JSON(http.StatusOK, rooms)
}

// Credits reports the caller's enhancement quota figures.
func (h *PhotosHandler) Credits(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	ledger, err := h.credits.Ledger(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to get credits", Message: err.Error()})
		return
	}

	remaining := ledger.Remaining()
	if remaining < 0 {
		remaining = 0
	}
	c.JSON(http.StatusOK, models.CreditsResponse{
		Allowance: ledger.Allowance,
		Consumed:  ledger.Consumed,
		Remaining: remaining,
		Unlimited: ledger.Unlimited,
	})
}
