package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/majicagent/photo-pipeline/internal/models"
	"github.com/majicagent/photo-pipeline/internal/pipeline"
	"github.com/majicagent/photo-pipeline/internal/store"
	"github.com/rs/zerolog/log"
)

// Reprocess re-runs enhancement on a completed photo with a caller-supplied
// prompt, synchronously. The photo must be done and outside the attempt
// rate window, and the caller must have credit for one more enhancement.
func (h *PhotosHandler) Reprocess(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	photoID, err := uuid.Parse(c.Param("photo_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid photo id"})
		return
	}

	var req models.ReprocessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}
	customPrompt := strings.TrimSpace(req.CustomPrompt)
	if customPrompt == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "custom_prompt is required"})
		return
	}

	photo, err := h.pipeline.Reprocess(c.Request.Context(), userID, photoID, customPrompt, req.SourceImage)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "photo not found"})
		case errors.Is(err, store.ErrInsufficientCredit):
			h.reprocessDenied(c, userID)
		case errors.Is(err, pipeline.ErrAttemptGated):
			c.JSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error:   "photo is not ready for reprocessing",
				Message: "the photo is still processing or was attempted too recently, try again shortly",
			})
		default:
			log.Error().Err(err).Str("photo_id", photoID.String()).Msg("Reprocess failed")
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to reprocess photo", Message: err.Error()})
		}
		return
	}

	var enhancedURL string
	if photo.EnhancedPath.Valid {
		enhancedURL, err = h.blobs.SignedURL(photo.EnhancedPath.String, h.cfg.SignedURLTTL)
		if err != nil {
			log.Warn().Err(err).Str("photo_id", photo.ID.String()).Msg("Failed to sign enhanced URL")
		}
	}
	originalURL, err := h.blobs.SignedURL(photo.OriginalPath, h.cfg.SignedURLTTL)
	if err != nil {
		log.Warn().Err(err).Str("photo_id", photo.ID.String()).Msg("Failed to sign original URL")
	}

	c.JSON(http.StatusOK, models.ReprocessResponse{
		Message: "Photo reprocessed successfully",
		Photo:   toPhotoResponse(photo, originalURL, enhancedURL),
	})
}

// reprocessDenied reports a credit denial with the caller's ledger figures.
func (h *PhotosHandler) reprocessDenied(c *gin.Context, userID uuid.UUID) {
	ledger, err := h.credits.Ledger(userID)
	if err != nil {
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "insufficient credits"})
		return
	}
	remaining := ledger.Remaining()
	if remaining < 0 {
		remaining = 0
	}
	c.JSON(http.StatusForbidden, models.CreditDeniedResponse{
		Error:      "insufficient credits",
		Message:    "reprocessing costs one credit and you have none remaining",
		Allowance:  ledger.Allowance,
		Consumed:   ledger.Consumed,
		Remaining:  remaining,
		Requested:  1,
		Affordable: remaining,
	})
}
