package handlers

import (
	"net/http"

	"risk-governance/internal/database"
	"risk-governance/internal/models"

	"github.com/gin-gonic/gin"
)

func ListAuditLogs(c *gin.Context) {
	var logs []models.AuditLog
	database.DB.
		Preload("User").
		Order("created_at desc").
		Limit(200).
		Find(&logs)

	c.JSON(http.StatusOK, logs)
}
