package handlers

import (
	"errors"
	"net/http"

	"risk-governance/internal/apperr"
	"risk-governance/internal/models"
	"risk-governance/internal/tolerance"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// currentActor достаёт вызывающего из сессии. Ядро само роли не
// вычисляет — сюда приходит уже разрешённый контекст.
func currentActor(c *gin.Context) tolerance.Actor {
	sess := sessions.Default(c)
	actor := tolerance.Actor{}
	if uid, ok := sess.Get("user_id").(uint); ok {
		actor.UserID = uid
	}
	if roleStr, ok := sess.Get("role").(string); ok {
		actor.Role = models.UserRole(roleStr)
	}
	return actor
}

// respondError переводит ошибки ядра в HTTP-коды.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrInvariant):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка"})
	}
}
