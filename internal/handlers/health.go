package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/majicagent/photo-pipeline/internal/models"
)

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{Status: "ok"})
}
