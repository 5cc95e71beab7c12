package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/majicagent/photo-pipeline/internal/models"
)

// UpdateTags sets the property address and room name on a batch of the
// caller's photos and rebuilds their tag list.
func (h *PhotosHandler) UpdateTags(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.TagsUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}
	if len(req.PhotoIDs) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "photo_ids is required"})
		return
	}

	photoIDs := make([]uuid.UUID, 0, len(req.PhotoIDs))
	for _, raw := range req.PhotoIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid photo id",
				Message: fmt.Sprintf("%q is not a valid UUID", raw),
			})
			return
		}
		photoIDs = append(photoIDs, id)
	}

	propertyAddress := strings.TrimSpace(req.PropertyAddress)
	roomName := strings.TrimSpace(req.RoomName)
	tags := buildTags(propertyAddress, roomName)

	updated, err := h.store.UpdateTags(userID, photoIDs, nullString(propertyAddress), nullString(roomName), tags)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to update tags", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.TagsUpdateResponse{
		Message:      fmt.Sprintf("Updated tags on %d photo(s)", updated),
		UpdatedCount: int(updated),
	})
}

// buildTags derives the searchable tag list from the address and room
// fields, skipping blanks. Never nil: the tags column is non-null.
func buildTags(propertyAddress, roomName string) []string {
	tags := []string{}
	if propertyAddress != "" {
		tags = append(tags, propertyAddress)
	}
	if roomName != "" {
		tags = append(tags, roomName)
	}
	return tags
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
