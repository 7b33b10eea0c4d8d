package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"risk-governance/internal/assurance"
	"risk-governance/internal/database"
	"risk-governance/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Каталог шаблонов контролей. Только чтение: каталог неизменяем.
func ListControlTemplates(c *gin.Context) {
	var templates []models.ControlTemplate
	database.DB.Preload("SubControls", func(db *gorm.DB) *gorm.DB {
		return db.Order("position asc")
	}).Order("code asc").Find(&templates)
	c.JSON(http.StatusOK, templates)
}

type controlInstanceForm struct {
	ControlTemplateID uint   `json:"control_template_id"`
	Scope             string `json:"scope"`
	Method            string `json:"method"`
	Frequency         string `json:"frequency"`
	OwnerRole         string `json:"owner_role"`
}

// Создание экземпляра контроля для риска. Версия шаблона фиксируется,
// на каждый пункт чек-листа заводится незаполненная аттестация —
// всё в одной транзакции.
func CreateControlInstance(c *gin.Context) {
	riskID, err := strconv.Atoi(c.Param("id"))
	if err != nil || riskID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID риска"})
		return
	}

	var risk models.Risk
	if err := database.DB.First(&risk, riskID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Риск не найден"})
		return
	}

	var form controlInstanceForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные"})
		return
	}

	var template models.ControlTemplate
	if err := database.DB.Preload("SubControls").First(&template, form.ControlTemplateID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Шаблон контроля не найден"})
		return
	}

	// один контроль на пару (риск, шаблон)
	var count int64
	database.DB.Model(&models.ControlInstance{}).
		Where("risk_id = ? AND control_template_id = ?", risk.ID, template.ID).
		Count(&count)
	if count > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Этот контроль уже привязан к риску"})
		return
	}

	instance := models.ControlInstance{
		RiskID:            risk.ID,
		ControlTemplateID: template.ID,
		TemplateVersion:   template.Version,
		Scope:             form.Scope,
		Method:            form.Method,
		Frequency:         form.Frequency,
		OwnerRole:         models.UserRole(form.OwnerRole),
		Status:            models.InstanceDraft,
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&instance).Error; err != nil {
			return err
		}
		for _, sub := range template.SubControls {
			att := models.SubControlAttestation{
				ControlInstanceID:    instance.ID,
				SubControlTemplateID: sub.ID,
				Status:               models.AttestationUnanswered,
			}
			if err := tx.Create(&att).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка создания контроля"})
		return
	}

	actor := currentActor(c)
	database.CreateAuditLog(actor.UserID, "control", instance.ID, "create",
		"Создан контроль "+template.Code+" для риска: "+risk.Title)

	c.JSON(http.StatusCreated, instance)
}

func ShowControlInstance(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID контроля"})
		return
	}

	var instance models.ControlInstance
	if err := database.DB.
		Preload("ControlTemplate").
		Preload("Attestations", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Attestations.SubControlTemplate").
		First(&instance, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Контроль не найден"})
		return
	}

	out := gin.H{"instance": instance}

	var dime models.DerivedDimeScore
	if err := database.DB.Preload("Trace").
		Where("control_instance_id = ?", instance.ID).First(&dime).Error; err == nil {
		out["dime"] = dime
	}

	var confidence models.ConfidenceScore
	if err := database.DB.Preload("Drivers").
		Where("control_instance_id = ?", instance.ID).First(&confidence).Error; err == nil {
		out["confidence"] = confidence
	}

	c.JSON(http.StatusOK, out)
}

type instanceStatusForm struct {
	Status string `json:"status"`
}

func ChangeControlStatus(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID контроля"})
		return
	}

	var instance models.ControlInstance
	if err := database.DB.First(&instance, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Контроль не найден"})
		return
	}

	var form instanceStatusForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные"})
		return
	}

	newStatus := models.InstanceStatus(form.Status)
	switch newStatus {
	case models.InstanceDraft, models.InstanceActive, models.InstanceRetired:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный статус"})
		return
	}

	instance.Status = newStatus
	if err := database.DB.Save(&instance).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка обновления статуса"})
		return
	}

	actor := currentActor(c)
	database.CreateAuditLog(actor.UserID, "control", instance.ID, "status_change",
		"Статус контроля: "+string(newStatus))

	c.JSON(http.StatusOK, instance)
}

type attestationForm struct {
	Status         string `json:"status"`
	EvidenceExists *bool  `json:"evidence_exists"`
	NARationale    string `json:"na_rationale"`
	Notes          string `json:"notes"`
}

// Запись аттестации. Валидация до пересчёта; пересчёт DIME и доверия
// выполняется синхронно в той же транзакции, правка одних заметок
// пересчёт не запускает.
func UpsertAttestation(c *gin.Context) {
	instanceID, err1 := strconv.Atoi(c.Param("id"))
	subID, err2 := strconv.Atoi(c.Param("sub_id"))
	if err1 != nil || err2 != nil || instanceID <= 0 || subID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные параметры"})
		return
	}

	var form attestationForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные"})
		return
	}

	status := models.AttestationStatus(form.Status)
	switch status {
	case models.AttestationYes, models.AttestationPartial, models.AttestationNo,
		models.AttestationNotApplicable, models.AttestationUnanswered:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный статус аттестации"})
		return
	}

	// not_applicable требует обоснования — отказ до любой записи
	if status == models.AttestationNotApplicable && strings.TrimSpace(form.NARationale) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Для not_applicable требуется обоснование"})
		return
	}

	// для содержательного ответа признак наличия доказательства обязателен
	answered := status == models.AttestationYes || status == models.AttestationPartial || status == models.AttestationNo
	if answered && form.EvidenceExists == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Укажите признак наличия доказательства"})
		return
	}

	var att models.SubControlAttestation
	if err := database.DB.
		Where("control_instance_id = ? AND sub_control_template_id = ?", instanceID, subID).
		First(&att).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Аттестация не найдена"})
		return
	}

	actor := currentActor(c)
	now := time.Now()

	evidence := att.EvidenceExists
	if form.EvidenceExists != nil {
		evidence = *form.EvidenceExists
	}

	// правка одних заметок не трогает оценки
	materialChange := att.Status != status || att.EvidenceExists != evidence

	att.Status = status
	att.EvidenceExists = evidence
	att.NARationale = form.NARationale
	att.Notes = form.Notes
	if materialChange {
		att.AttestedByID = actor.UserID
		att.AttestedAt = &now
	}

	svc := assurance.NewService(database.DB)
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&att).Error; err != nil {
			return err
		}
		if materialChange {
			return svc.RecomputeTx(tx, att.ControlInstanceID)
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if materialChange {
		database.CreateAuditLog(actor.UserID, "attestation", att.ID, "attest",
			"Аттестация пункта: "+string(status))
	}

	c.JSON(http.StatusOK, att)
}

// Пересчёт по запросу: всегда отражает текущее состояние аттестаций.
func ShowDime(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID контроля"})
		return
	}

	score, err := assurance.NewService(database.DB).ComputeDime(uint(id))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, score)
}

func ShowConfidence(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID контроля"})
		return
	}

	score, err := assurance.NewService(database.DB).ComputeConfidence(uint(id))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, score)
}
