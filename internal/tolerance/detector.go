package tolerance

import (
	"errors"
	"fmt"
	"time"

	"risk-governance/internal/apperr"
	"risk-governance/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Detector сверяет новые измерения с активными метриками толерантности
// и идемпотентно заводит события нарушений.
type Detector struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDetector(db *gorm.DB) *Detector {
	return &Detector{db: db, now: time.Now}
}

// WithClock подменяет часы в тестах.
func (d *Detector) WithClock(now func() time.Time) *Detector {
	d.now = now
	return d
}

// DetectBreach классифицирует измерение против метрики и при попадании
// в янтарную или красную зону создаёт событие нарушения. Повторный
// вызов с той же парой (метрика, измерение) возвращает существующее
// событие: гонку вставки закрывает уникальный индекс, а не проверка
// перед вставкой.
func (d *Detector) DetectBreach(metricID, measurementID uint) (*models.BreachEvent, error) {
	var metric models.ToleranceMetric
	if err := d.db.First(&metric, metricID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: tolerance metric %d", apperr.ErrNotFound, metricID)
		}
		return nil, err
	}

	var measurement models.Measurement
	if err := d.db.First(&measurement, measurementID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: measurement %d", apperr.ErrNotFound, measurementID)
		}
		return nil, err
	}

	if measurement.MeasurementSeriesID != metric.MeasurementSeriesID {
		return nil, fmt.Errorf("%w: measurement %d does not belong to metric %d series",
			apperr.ErrValidation, measurementID, metricID)
	}

	// неактивная метрика или точка вне окна действия — нарушений нет
	if !metric.Active {
		return nil, nil
	}
	if measurement.AsOf.Before(metric.EffectiveFrom) {
		return nil, nil
	}
	if metric.EffectiveTo != nil && measurement.AsOf.After(*metric.EffectiveTo) {
		return nil, nil
	}

	prior, err := d.priorValues(metric, measurement)
	if err != nil {
		return nil, err
	}

	cls, err := Classify(metric, measurement.Value, prior)
	if err != nil {
		return nil, err
	}
	if cls.Tier == "" {
		return nil, nil
	}

	event := models.BreachEvent{
		Reference:         uuid.NewString(),
		ToleranceMetricID: metric.ID,
		MeasurementID:     measurement.ID,
		Tier:              cls.Tier,
		Value:             measurement.Value,
		Threshold:         cls.Threshold,
		DetectedAt:        d.now(),
		Status:            models.BreachOpen,
	}

	// эскалация: открытое янтарное нарушение по той же метрике
	// на более ранней точке переходит в красное новым событием
	if cls.Tier == models.TierRed {
		var priorBreach models.BreachEvent
		err := d.db.
			Joins("JOIN measurements ON measurements.id = breach_events.measurement_id").
			Where("breach_events.tolerance_metric_id = ?", metric.ID).
			Where("breach_events.tier = ?", models.TierAmber).
			Where("breach_events.status IN ?", []models.BreachStatus{models.BreachOpen, models.BreachInProgress}).
			Where("measurements.as_of < ?", measurement.AsOf).
			Order("measurements.as_of desc").
			First(&priorBreach).Error
		if err == nil {
			event.PriorBreachID = &priorBreach.ID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	res := d.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tolerance_metric_id"}, {Name: "measurement_id"}},
		DoNothing: true,
	}).Create(&event)
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		// дубликат доставки: возвращаем уже существующее событие
		var existing models.BreachEvent
		if err := d.db.
			Where("tolerance_metric_id = ? AND measurement_id = ?", metric.ID, measurement.ID).
			First(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}

	return &event, nil
}

// priorValues — значения более ранних точек серии внутри скользящего
// окна directional-метрики. Для остальных типов предыстория не нужна.
func (d *Detector) priorValues(metric models.ToleranceMetric, m models.Measurement) ([]float64, error) {
	if metric.Type != models.MetricDirectional {
		return nil, nil
	}

	windowStart := m.AsOf.AddDate(0, 0, -metric.TrendWindowDays)

	var points []models.Measurement
	if err := d.db.
		Where("measurement_series_id = ?", metric.MeasurementSeriesID).
		Where("as_of >= ? AND as_of < ?", windowStart, m.AsOf).
		Order("as_of asc").
		Find(&points).Error; err != nil {
		return nil, err
	}

	values := make([]float64, 0, len(points))
	for _, p := range points {
		values = append(values, p.Value)
	}
	return values, nil
}
