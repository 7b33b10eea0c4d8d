package models

import "gorm.io/gorm"

type Organization struct {
	gorm.Model
	Name     string `gorm:"size:255;not null"` // Название организации
	OrgType  string `gorm:"size:100"`          // Тип: банк, госорган, КИИ и т.п.
	Industry string `gorm:"size:100"`          // Отрасль
	Notes    string `gorm:"type:text"`

	Risks []Risk
}

type RiskStatus string

const (
	RiskDraft   RiskStatus = "draft"
	RiskActive  RiskStatus = "active"
	RiskRetired RiskStatus = "retired"
)

type Risk struct {
	gorm.Model
	OrganizationID uint
	Organization   Organization

	Title       string     `gorm:"size:255;not null"`
	Category    string     `gorm:"size:100"` // операционный, комплаенс, ИБ и т.п.
	Description string     `gorm:"type:text"`
	Status      RiskStatus `gorm:"type:varchar(20);not null"`

	OwnerID uint // User.ID роли risk_owner
}

type ResponseType string

const (
	ResponseAvoid            ResponseType = "avoid"
	ResponseReduceLikelihood ResponseType = "reduce_likelihood"
	ResponseReduceImpact     ResponseType = "reduce_impact"
	ResponseTransfer         ResponseType = "transfer"
	ResponseAccept           ResponseType = "accept"
)

// Решение по обработке риска — одно на риск, обязательно до активации.
type RiskResponse struct {
	gorm.Model
	RiskID uint `gorm:"uniqueIndex"`
	Risk   Risk

	Response  ResponseType `gorm:"type:varchar(30);not null"`
	Rationale string       `gorm:"type:text"`

	DecidedByID uint
}
