package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"risk-governance/internal/database"
	"risk-governance/internal/models"
	"risk-governance/internal/tolerance"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"
)

type appetiteCategoryForm struct {
	Name      string `json:"name"`
	Statement string `json:"statement"`
}

func CreateAppetiteCategory(c *gin.Context) {
	var form appetiteCategoryForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные"})
		return
	}
	if len(strings.TrimSpace(form.Name)) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Название категории должно быть не короче 3 символов"})
		return
	}

	category := models.AppetiteCategory{Name: form.Name, Statement: form.Statement}
	if err := database.DB.Create(&category).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка сохранения категории"})
		return
	}
	c.JSON(http.StatusCreated, category)
}

type seriesForm struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Unit string `json:"unit"`
}

func CreateMeasurementSeries(c *gin.Context) {
	var form seriesForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные"})
		return
	}
	if strings.TrimSpace(form.Code) == "" || len(strings.TrimSpace(form.Name)) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Укажите код и название серии"})
		return
	}

	series := models.MeasurementSeries{Code: form.Code, Name: form.Name, Unit: form.Unit}
	if err := database.DB.Create(&series).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ошибка сохранения серии (код занят?)"})
		return
	}
	c.JSON(http.StatusCreated, series)
}

type metricForm struct {
	AppetiteCategoryID  uint   `json:"appetite_category_id"`
	MeasurementSeriesID uint   `json:"measurement_series_id"`
	Name                string `json:"name"`
	Type                string `json:"type"`
	Unit                string `json:"unit"`
	Materiality         string `json:"materiality"`
	EffectiveFrom       string `json:"effective_from"` // 2006-01-02
	EffectiveTo         string `json:"effective_to"`
	Active              bool   `json:"active"`

	AmberAt *float64 `json:"amber_at"`
	RedAt   *float64 `json:"red_at"`

	AmberLow  *float64 `json:"amber_low"`
	AmberHigh *float64 `json:"amber_high"`
	RedLow    *float64 `json:"red_low"`
	RedHigh   *float64 `json:"red_high"`

	TrendWindowDays int      `json:"trend_window_days"`
	TrendDirection  string   `json:"trend_direction"`
	TrendAmberPct   *float64 `json:"trend_amber_pct"`
	TrendRedPct     *float64 `json:"trend_red_pct"`
}

// Метрика толерантности: границы утверждаются правлением, поэтому
// создание доступно только governance-уровню (см. роутер).
func CreateToleranceMetric(c *gin.Context) {
	var form metricForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные"})
		return
	}

	if len(strings.TrimSpace(form.Name)) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Название метрики должно быть не короче 3 символов"})
		return
	}

	var category models.AppetiteCategory
	if err := database.DB.First(&category, form.AppetiteCategoryID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Категория аппетита не найдена"})
		return
	}

	var series models.MeasurementSeries
	if err := database.DB.First(&series, form.MeasurementSeriesID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Серия измерений не найдена"})
		return
	}

	effectiveFrom, err := time.Parse("2006-01-02", form.EffectiveFrom)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверная дата начала действия"})
		return
	}
	var effectiveTo *time.Time
	if form.EffectiveTo != "" {
		t, err := time.Parse("2006-01-02", form.EffectiveTo)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверная дата окончания действия"})
			return
		}
		effectiveTo = &t
	}

	materiality := models.Materiality(form.Materiality)
	switch materiality {
	case models.MaterialityInternal, models.MaterialityExternal, models.MaterialityDual:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректная материальность"})
		return
	}

	metric := models.ToleranceMetric{
		AppetiteCategoryID:  category.ID,
		MeasurementSeriesID: series.ID,
		Name:                form.Name,
		Type:                models.MetricType(form.Type),
		Unit:                form.Unit,
		Materiality:         materiality,
		EffectiveFrom:       effectiveFrom,
		EffectiveTo:         effectiveTo,
		Active:              form.Active,
		AmberAt:             form.AmberAt,
		RedAt:               form.RedAt,
		AmberLow:            form.AmberLow,
		AmberHigh:           form.AmberHigh,
		RedLow:              form.RedLow,
		RedHigh:             form.RedHigh,
		TrendWindowDays:     form.TrendWindowDays,
		TrendDirection:      models.TrendDirection(form.TrendDirection),
		TrendAmberPct:       form.TrendAmberPct,
		TrendRedPct:         form.TrendRedPct,
	}

	if err := tolerance.ValidateMetric(metric); err != nil {
		respondError(c, err)
		return
	}

	if err := database.DB.Create(&metric).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка сохранения метрики"})
		return
	}

	actor := currentActor(c)
	database.CreateAuditLog(actor.UserID, "metric", metric.ID, "create",
		"Создана метрика толерантности: "+metric.Name)

	c.JSON(http.StatusCreated, metric)
}

func ListToleranceMetrics(c *gin.Context) {
	var metrics []models.ToleranceMetric
	database.DB.Preload("MeasurementSeries").Preload("AppetiteCategory").
		Order("created_at desc").Find(&metrics)
	c.JSON(http.StatusOK, metrics)
}

type measurementForm struct {
	AsOf  string  `json:"as_of"` // 2006-01-02
	Value float64 `json:"value"`
}

// Приём измерения. Точка уникальна по (серия, дата): повторная
// доставка возвращает существующую строку. После записи точка
// прогоняется через детектор по всем активным метрикам серии.
func IngestMeasurement(c *gin.Context) {
	seriesID, err := strconv.Atoi(c.Param("id"))
	if err != nil || seriesID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID серии"})
		return
	}

	var series models.MeasurementSeries
	if err := database.DB.First(&series, seriesID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Серия не найдена"})
		return
	}

	var form measurementForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные"})
		return
	}

	asOf, err := time.Parse("2006-01-02", form.AsOf)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверная дата измерения"})
		return
	}

	measurement := models.Measurement{
		MeasurementSeriesID: series.ID,
		AsOf:                asOf,
		Value:               form.Value,
	}
	res := database.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "measurement_series_id"}, {Name: "as_of"}},
		DoNothing: true,
	}).Create(&measurement)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка сохранения измерения"})
		return
	}
	if res.RowsAffected == 0 {
		if err := database.DB.
			Where("measurement_series_id = ? AND as_of = ?", series.ID, asOf).
			First(&measurement).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка чтения измерения"})
			return
		}
	}

	// прогон через детектор по всем активным метрикам серии
	var metrics []models.ToleranceMetric
	database.DB.Where("measurement_series_id = ? AND active = ?", series.ID, true).Find(&metrics)

	detector := tolerance.NewDetector(database.DB)
	var breaches []models.BreachEvent
	for _, m := range metrics {
		breach, err := detector.DetectBreach(m.ID, measurement.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		if breach != nil {
			breaches = append(breaches, *breach)
		}
	}

	c.JSON(http.StatusCreated, gin.H{"measurement": measurement, "breaches": breaches})
}

// Явная проверка одной пары (метрика, измерение). Безопасна при
// повторных вызовах: возвращает существующее событие, если оно есть.
func DetectBreach(c *gin.Context) {
	metricID, err1 := strconv.Atoi(c.Param("id"))
	measurementID, err2 := strconv.Atoi(c.Param("measurement_id"))
	if err1 != nil || err2 != nil || metricID <= 0 || measurementID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные параметры"})
		return
	}

	breach, err := tolerance.NewDetector(database.DB).DetectBreach(uint(metricID), uint(measurementID))
	if err != nil {
		respondError(c, err)
		return
	}
	if breach == nil {
		c.JSON(http.StatusOK, gin.H{"breach": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"breach": breach})
}

func ListBreaches(c *gin.Context) {
	metricID, err := strconv.Atoi(c.Param("id"))
	if err != nil || metricID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID метрики"})
		return
	}

	var breaches []models.BreachEvent
	database.DB.
		Preload("Measurement").
		Where("tolerance_metric_id = ?", metricID).
		Order("detected_at desc").
		Find(&breaches)
	c.JSON(http.StatusOK, breaches)
}

type breachTransitionForm struct {
	Status    string `json:"status"`
	Rationale string `json:"rationale"`
}

// Переход статуса нарушения через машину состояний. Приёмка правлением
// требует governance-роли и обоснования.
func TransitionBreach(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID нарушения"})
		return
	}

	var form breachTransitionForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные"})
		return
	}

	actor := currentActor(c)
	lifecycle := tolerance.NewLifecycle(database.DB)

	breach, err := lifecycle.Transition(uint(id), models.BreachStatus(form.Status), actor,
		tolerance.TransitionMeta{Rationale: form.Rationale})
	if err != nil {
		respondError(c, err)
		return
	}

	database.CreateAuditLog(actor.UserID, "breach", breach.ID, "status_change",
		"Статус нарушения: "+string(breach.Status))

	c.JSON(http.StatusOK, breach)
}

type remediationForm struct {
	Plan    string `json:"plan"`
	OwnerID uint   `json:"owner_id"`
	DueAt   string `json:"due_at"`
}

func SetBreachRemediation(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID нарушения"})
		return
	}

	var form remediationForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные"})
		return
	}

	var dueAt *time.Time
	if form.DueAt != "" {
		t, err := time.Parse("2006-01-02", form.DueAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный срок устранения"})
			return
		}
		dueAt = &t
	}

	actor := currentActor(c)
	lifecycle := tolerance.NewLifecycle(database.DB)

	breach, err := lifecycle.SetRemediation(uint(id), actor, form.Plan, form.OwnerID, dueAt)
	if err != nil {
		respondError(c, err)
		return
	}

	database.CreateAuditLog(actor.UserID, "breach", breach.ID, "remediation",
		"Обновлён план устранения")

	c.JSON(http.StatusOK, breach)
}
