package handlers

import (
	"net/http"
	"strconv"
	"time"

	"risk-governance/internal/assurance"
	"risk-governance/internal/database"
	"risk-governance/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type evidenceRequestForm struct {
	AttestationID *uint  `json:"attestation_id"` // nil — запрос к контролю целиком
	Description   string `json:"description"`
	DueAt         string `json:"due_at"` // 2006-01-02
}

// Запрос на доказательство по контролю или конкретному пункту.
func CreateEvidenceRequest(c *gin.Context) {
	instanceID, err := strconv.Atoi(c.Param("id"))
	if err != nil || instanceID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID контроля"})
		return
	}

	var instance models.ControlInstance
	if err := database.DB.First(&instance, instanceID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Контроль не найден"})
		return
	}

	var form evidenceRequestForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные"})
		return
	}

	due, err := time.Parse("2006-01-02", form.DueAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный срок исполнения"})
		return
	}

	// пункт, если указан, должен принадлежать этому контролю
	if form.AttestationID != nil {
		var att models.SubControlAttestation
		if err := database.DB.First(&att, *form.AttestationID).Error; err != nil ||
			att.ControlInstanceID != instance.ID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Пункт не относится к этому контролю"})
			return
		}
	}

	actor := currentActor(c)

	req := models.EvidenceRequest{
		ControlInstanceID: instance.ID,
		AttestationID:     form.AttestationID,
		Description:       form.Description,
		Status:            models.EvidenceOpen,
		DueAt:             due,
		RequestedByID:     actor.UserID,
	}
	if err := database.DB.Create(&req).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка сохранения запроса"})
		return
	}

	// новый открытый запрос меняет картину доверия
	if _, err := assurance.NewService(database.DB).ComputeConfidence(instance.ID); err != nil {
		respondError(c, err)
		return
	}

	database.CreateAuditLog(actor.UserID, "evidence_request", req.ID, "create",
		"Запрошено доказательство: "+req.Description)

	c.JSON(http.StatusCreated, req)
}

func ListEvidenceRequests(c *gin.Context) {
	instanceID, err := strconv.Atoi(c.Param("id"))
	if err != nil || instanceID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID контроля"})
		return
	}

	var reqs []models.EvidenceRequest
	database.DB.
		Where("control_instance_id = ?", instanceID).
		Order("due_at asc").
		Find(&reqs)
	c.JSON(http.StatusOK, reqs)
}

type evidenceUpdateForm struct {
	Status string `json:"status"`
	DueAt  string `json:"due_at"`
}

// Смена статуса или срока запроса. Любое изменение пересчитывает
// доверие владеющего контроля.
func UpdateEvidenceRequest(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID запроса"})
		return
	}

	var req models.EvidenceRequest
	if err := database.DB.First(&req, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Запрос не найден"})
		return
	}

	var form evidenceUpdateForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные"})
		return
	}

	changed := false

	if form.Status != "" {
		status := models.EvidenceRequestStatus(form.Status)
		switch status {
		case models.EvidenceOpen, models.EvidenceFulfilled, models.EvidenceCancelled, models.EvidenceExpired:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный статус запроса"})
			return
		}
		if req.Status != status {
			req.Status = status
			changed = true
		}
	}

	if form.DueAt != "" {
		due, err := time.Parse("2006-01-02", form.DueAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный срок исполнения"})
			return
		}
		if !req.DueAt.Equal(due) {
			req.DueAt = due
			changed = true
		}
	}

	if !changed {
		c.JSON(http.StatusOK, req)
		return
	}

	svc := assurance.NewService(database.DB)
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&req).Error; err != nil {
			return err
		}
		return svc.RecomputeConfidenceTx(tx, req.ControlInstanceID)
	})
	if err != nil {
		respondError(c, err)
		return
	}

	actor := currentActor(c)
	database.CreateAuditLog(actor.UserID, "evidence_request", req.ID, "update",
		"Запрос на доказательство обновлён: "+string(req.Status))

	c.JSON(http.StatusOK, req)
}
