package models

import (
	"time"

	"gorm.io/gorm"
)

// Категория риск-аппетита, утверждённая правлением.
type AppetiteCategory struct {
	gorm.Model
	Name      string `gorm:"size:255;not null"`
	Statement string `gorm:"type:text"` // формулировка аппетита
}

type MeasurementSeries struct {
	gorm.Model
	Code string `gorm:"size:32;uniqueIndex;not null"`
	Name string `gorm:"size:255;not null"`
	Unit string `gorm:"size:50"`
}

type MetricType string

const (
	MetricMaximum     MetricType = "maximum"
	MetricMinimum     MetricType = "minimum"
	MetricRange       MetricType = "range"
	MetricDirectional MetricType = "directional"
)

type Materiality string

const (
	MaterialityInternal Materiality = "internal"
	MaterialityExternal Materiality = "external"
	MaterialityDual     Materiality = "dual"
)

type TrendDirection string

const (
	TrendUp   TrendDirection = "up"   // неблагоприятен рост
	TrendDown TrendDirection = "down" // неблагоприятно снижение
)

// Метрика толерантности: зелёная/янтарная/красная зоны по одному
// измеримому показателю. Версионируется через effective_from/to.
type ToleranceMetric struct {
	gorm.Model
	AppetiteCategoryID uint
	AppetiteCategory   AppetiteCategory

	MeasurementSeriesID uint
	MeasurementSeries   MeasurementSeries

	Name        string      `gorm:"size:255;not null"`
	Type        MetricType  `gorm:"type:varchar(20);not null"`
	Unit        string      `gorm:"size:50"`
	Materiality Materiality `gorm:"type:varchar(20);not null"`

	EffectiveFrom time.Time `gorm:"not null"`
	EffectiveTo   *time.Time
	Active        bool `gorm:"not null"`

	// границы для maximum / minimum
	AmberAt *float64
	RedAt   *float64

	// границы для range
	AmberLow  *float64
	AmberHigh *float64
	RedLow    *float64
	RedHigh   *float64

	// конфигурация тренда для directional
	TrendWindowDays int            `gorm:"default:0"`
	TrendDirection  TrendDirection `gorm:"type:varchar(10)"`
	TrendAmberPct   *float64
	TrendRedPct     *float64
}

// Точка временного ряда. Одна на пару (серия, дата).
type Measurement struct {
	gorm.Model
	MeasurementSeriesID uint      `gorm:"not null;uniqueIndex:idx_measurement_series_date"`
	AsOf                time.Time `gorm:"not null;uniqueIndex:idx_measurement_series_date"`
	Value               float64   `gorm:"not null"`
}

type BreachTier string

const (
	TierAmber BreachTier = "amber"
	TierRed   BreachTier = "red"
)

type BreachStatus string

const (
	BreachOpen          BreachStatus = "open"
	BreachInProgress    BreachStatus = "in_progress"
	BreachResolved      BreachStatus = "resolved"
	BreachClosed        BreachStatus = "closed"
	BreachBoardAccepted BreachStatus = "board_accepted"
)

// Событие нарушения толерантности. Не более одного на пару
// (метрика, измерение) — уникальный индекс закрывает гонку вставки.
type BreachEvent struct {
	gorm.Model
	Reference string `gorm:"size:36;uniqueIndex;not null"` // внешний код для отчётности

	ToleranceMetricID uint `gorm:"not null;uniqueIndex:idx_breach_metric_measurement"`
	ToleranceMetric   ToleranceMetric

	MeasurementID uint `gorm:"not null;uniqueIndex:idx_breach_metric_measurement"`
	Measurement   Measurement

	Tier       BreachTier `gorm:"type:varchar(10);not null"`
	Value      float64
	Threshold  float64 // пересечённая граница
	DetectedAt time.Time

	PriorBreachID *uint // цепочка эскалации amber → red

	RemediationPlan    string `gorm:"type:text"`
	RemediationOwnerID *uint
	RemediationDueAt   *time.Time

	Status BreachStatus `gorm:"type:varchar(20);not null"`

	// заполняются только при переходе в board_accepted
	AcceptedByID      *uint
	AcceptedAt        *time.Time
	AcceptedRationale string `gorm:"type:text"`
}

// Терминальные статусы не допускают дальнейших изменений.
func (b BreachEvent) Terminal() bool {
	return b.Status == BreachClosed || b.Status == BreachBoardAccepted
}
