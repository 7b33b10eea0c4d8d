package models

import (
	"time"

	"gorm.io/gorm"
)

// Расчётная оценка эффективности по DIME — одна строка на экземпляр
// контроля, перезаписывается при каждом пересчёте.
type DerivedDimeScore struct {
	gorm.Model
	ControlInstanceID uint `gorm:"not null;uniqueIndex"`

	Design         float64
	Implementation float64
	Monitoring     float64
	Evaluation     float64

	RawEffectiveness   float64 // E до ограничений
	FinalEffectiveness float64 // min(E после капа, D, I, M)
	CapApplied         bool

	ComputedAt time.Time

	Trace []DimeTraceEntry `gorm:"constraint:OnDelete:CASCADE"`
}

// Одна строка трассировки на учтённый пункт чек-листа.
type DimeTraceEntry struct {
	ID                 uint `gorm:"primaryKey"`
	DerivedDimeScoreID uint `gorm:"not null;index"`

	Position             int
	SubControlTemplateID uint
	Dimension            Dimension `gorm:"type:varchar(20)"`
	Value                float64
	Weight               float64
	Capped               bool
	Note                 string `gorm:"size:255"`
}

type ConfidenceLabel string

const (
	ConfidenceLow    ConfidenceLabel = "low"
	ConfidenceMedium ConfidenceLabel = "medium"
	ConfidenceHigh   ConfidenceLabel = "high"
)

// Оценка доверия к доказательной базе контроля, 0–100.
type ConfidenceScore struct {
	gorm.Model
	ControlInstanceID uint `gorm:"not null;uniqueIndex"`

	Score int             `gorm:"not null"`
	Label ConfidenceLabel `gorm:"type:varchar(10);not null"`

	ComputedAt time.Time

	Drivers []ConfidenceDriver `gorm:"constraint:OnDelete:CASCADE"`
}

// Составляющая итогового балла доверия, в порядке вычисления.
type ConfidenceDriver struct {
	ID                uint `gorm:"primaryKey"`
	ConfidenceScoreID uint `gorm:"not null;index"`

	Position    int
	Component   string `gorm:"size:50"` // critical_status, recency и т.п.
	Points      float64
	Explanation string `gorm:"size:255"`
}
