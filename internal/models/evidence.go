package models

import (
	"time"

	"gorm.io/gorm"
)

type EvidenceRequestStatus string

const (
	EvidenceOpen      EvidenceRequestStatus = "open"
	EvidenceFulfilled EvidenceRequestStatus = "fulfilled"
	EvidenceCancelled EvidenceRequestStatus = "cancelled"
	EvidenceExpired   EvidenceRequestStatus = "expired"
)

// Запрос на доказательство. Привязан к экземпляру контроля целиком
// либо к конкретному пункту чек-листа (AttestationID != nil).
type EvidenceRequest struct {
	gorm.Model
	ControlInstanceID uint `gorm:"not null;index"`
	ControlInstance   ControlInstance

	AttestationID *uint
	Attestation   *SubControlAttestation `gorm:"foreignKey:AttestationID"`

	Description string                `gorm:"type:text"`
	Status      EvidenceRequestStatus `gorm:"type:varchar(20);not null"`
	DueAt       time.Time             `gorm:"not null"`

	RequestedByID uint
}

// Просрочен ли запрос на момент now.
func (r EvidenceRequest) OverdueAt(now time.Time) bool {
	return r.Status == EvidenceOpen && r.DueAt.Before(now)
}
