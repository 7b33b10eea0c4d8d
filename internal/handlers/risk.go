package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"risk-governance/internal/activation"
	"risk-governance/internal/database"
	"risk-governance/internal/models"

	"github.com/gin-gonic/gin"
)

type organizationForm struct {
	Name     string `json:"name"`
	OrgType  string `json:"org_type"`
	Industry string `json:"industry"`
	Notes    string `json:"notes"`
}

func CreateOrganization(c *gin.Context) {
	var form organizationForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные"})
		return
	}

	form.Name = strings.TrimSpace(form.Name)
	if len(form.Name) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Название организации должно быть не короче 3 символов"})
		return
	}

	org := models.Organization{
		Name:     form.Name,
		OrgType:  form.OrgType,
		Industry: form.Industry,
		Notes:    form.Notes,
	}
	if err := database.DB.Create(&org).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка сохранения организации"})
		return
	}

	c.JSON(http.StatusCreated, org)
}

func ListOrganizations(c *gin.Context) {
	var orgs []models.Organization
	database.DB.Order("name asc").Find(&orgs)
	c.JSON(http.StatusOK, orgs)
}

type riskForm struct {
	OrganizationID uint   `json:"organization_id"`
	Title          string `json:"title"`
	Category       string `json:"category"`
	Description    string `json:"description"`
}

func CreateRisk(c *gin.Context) {
	var form riskForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные"})
		return
	}

	form.Title = strings.TrimSpace(form.Title)
	if len(form.Title) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Название риска должно быть не короче 3 символов"})
		return
	}

	var org models.Organization
	if err := database.DB.First(&org, form.OrganizationID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Организация не найдена"})
		return
	}

	actor := currentActor(c)

	risk := models.Risk{
		OrganizationID: org.ID,
		Title:          form.Title,
		Category:       form.Category,
		Description:    form.Description,
		Status:         models.RiskDraft,
		OwnerID:        actor.UserID,
	}
	if err := database.DB.Create(&risk).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка сохранения риска"})
		return
	}

	database.CreateAuditLog(actor.UserID, "risk", risk.ID, "create", "Создан риск: "+risk.Title)

	c.JSON(http.StatusCreated, risk)
}

// Список рисков + фильтры
func ListRisks(c *gin.Context) {
	orgIDStr := c.Query("organization_id")
	statusStr := c.Query("status")

	dbq := database.DB.Preload("Organization").Order("created_at desc")

	if orgIDStr != "" {
		if oid, err := strconv.Atoi(orgIDStr); err == nil && oid > 0 {
			dbq = dbq.Where("organization_id = ?", oid)
		}
	}
	if statusStr != "" {
		dbq = dbq.Where("status = ?", statusStr)
	}

	var risks []models.Risk
	if err := dbq.Find(&risks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка загрузки рисков"})
		return
	}

	c.JSON(http.StatusOK, risks)
}

func ShowRisk(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID риска"})
		return
	}

	var risk models.Risk
	if err := database.DB.Preload("Organization").First(&risk, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Риск не найден"})
		return
	}

	var response models.RiskResponse
	hasResponse := database.DB.Where("risk_id = ?", risk.ID).First(&response).Error == nil

	var controls []models.ControlInstance
	database.DB.Where("risk_id = ?", risk.ID).Order("id asc").Find(&controls)

	out := gin.H{"risk": risk, "controls": controls}
	if hasResponse {
		out["response"] = response
	}
	c.JSON(http.StatusOK, out)
}

type riskResponseForm struct {
	Response  string `json:"response"`
	Rationale string `json:"rationale"`
}

// Решение по обработке риска: одно на риск, перезаписывается владельцем.
func SetRiskResponse(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID риска"})
		return
	}

	var risk models.Risk
	if err := database.DB.First(&risk, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Риск не найден"})
		return
	}

	var form riskResponseForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные"})
		return
	}

	rt := models.ResponseType(form.Response)
	switch rt {
	case models.ResponseAvoid,
		models.ResponseReduceLikelihood,
		models.ResponseReduceImpact,
		models.ResponseTransfer,
		models.ResponseAccept:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный тип решения"})
		return
	}

	actor := currentActor(c)

	var response models.RiskResponse
	err = database.DB.Where("risk_id = ?", risk.ID).First(&response).Error
	if err == nil {
		response.Response = rt
		response.Rationale = form.Rationale
		response.DecidedByID = actor.UserID
		err = database.DB.Save(&response).Error
	} else {
		response = models.RiskResponse{
			RiskID:      risk.ID,
			Response:    rt,
			Rationale:   form.Rationale,
			DecidedByID: actor.UserID,
		}
		err = database.DB.Create(&response).Error
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка сохранения решения"})
		return
	}

	database.CreateAuditLog(actor.UserID, "risk", risk.ID, "response",
		"Решение по риску: "+string(rt))

	c.JSON(http.StatusOK, response)
}

// Диагностика шлюза активации без побочных эффектов.
func ShowActivation(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID риска"})
		return
	}

	decision, err := activation.CanActivate(database.DB, uint(id))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

// Перевод риска в active — только через шлюз.
func ActivateRisk(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID риска"})
		return
	}

	var risk models.Risk
	if err := database.DB.First(&risk, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Риск не найден"})
		return
	}

	if risk.Status == models.RiskActive {
		c.JSON(http.StatusOK, risk)
		return
	}

	decision, err := activation.CanActivate(database.DB, risk.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !decision.Allowed {
		c.JSON(http.StatusConflict, gin.H{"error": decision.Reason, "decision": decision})
		return
	}

	risk.Status = models.RiskActive
	if err := database.DB.Save(&risk).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка обновления статуса"})
		return
	}

	actor := currentActor(c)
	database.CreateAuditLog(actor.UserID, "risk", risk.ID, "status_change",
		"Риск активирован")

	c.JSON(http.StatusOK, risk)
}
