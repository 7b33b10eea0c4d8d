package models

import (
	"time"

	"gorm.io/gorm"
)

type ControlObjective string

const (
	ObjectiveLikelihood ControlObjective = "likelihood"
	ObjectiveImpact     ControlObjective = "impact"
	ObjectiveBoth       ControlObjective = "both"
)

type Dimension string

const (
	DimensionDesign         Dimension = "design"
	DimensionImplementation Dimension = "implementation"
	DimensionMonitoring     Dimension = "monitoring"
	DimensionEvaluation     Dimension = "evaluation"
)

type Criticality string

const (
	CriticalityCritical  Criticality = "critical"
	CriticalityImportant Criticality = "important"
	CriticalityOptional  Criticality = "optional"
)

// Каталог архетипов контролей. Неизменяемый после публикации,
// версия переносится в экземпляр при создании.
type ControlTemplate struct {
	gorm.Model
	Code    string `gorm:"size:32;not null;uniqueIndex:idx_template_code_version"`
	Version string `gorm:"size:16;not null;uniqueIndex:idx_template_code_version"`

	Name      string           `gorm:"size:255;not null"`
	Category  string           `gorm:"size:100"` // доступ, резервирование, мониторинг и т.п.
	Objective ControlObjective `gorm:"type:varchar(20);not null"`

	SubControls []SubControlTemplate
}

type SubControlTemplate struct {
	gorm.Model
	ControlTemplateID uint

	Position    int         `gorm:"not null"`
	Dimension   Dimension   `gorm:"type:varchar(20);not null"`
	Criticality Criticality `gorm:"type:varchar(20);not null"`
	Prompt      string      `gorm:"type:text;not null"`
}

type InstanceStatus string

const (
	InstanceDraft   InstanceStatus = "draft"
	InstanceActive  InstanceStatus = "active"
	InstanceRetired InstanceStatus = "retired"
)

// Контроль, привязанный к конкретному риску. Один на пару (риск, шаблон).
type ControlInstance struct {
	gorm.Model
	RiskID uint `gorm:"not null;uniqueIndex:idx_instance_risk_template"`
	Risk   Risk

	ControlTemplateID uint `gorm:"not null;uniqueIndex:idx_instance_risk_template"`
	ControlTemplate   ControlTemplate

	TemplateVersion string `gorm:"size:16;not null"` // версия шаблона на момент создания

	Scope     string   `gorm:"size:255"`
	Method    string   `gorm:"size:255"`
	Frequency string   `gorm:"size:100"` // ежедневно, ежеквартально и т.п.
	OwnerRole UserRole `gorm:"type:varchar(20)"`

	Status InstanceStatus `gorm:"type:varchar(20);not null"`

	Attestations []SubControlAttestation
}

type AttestationStatus string

const (
	AttestationYes           AttestationStatus = "yes"
	AttestationPartial       AttestationStatus = "partial"
	AttestationNo            AttestationStatus = "no"
	AttestationNotApplicable AttestationStatus = "not_applicable"
	AttestationUnanswered    AttestationStatus = "unanswered"
)

// Ответ на один пункт чек-листа контроля. Одна строка на пару
// (экземпляр, пункт шаблона), перезаписывается на месте.
type SubControlAttestation struct {
	gorm.Model
	ControlInstanceID uint `gorm:"not null;uniqueIndex:idx_attestation_instance_sub"`

	SubControlTemplateID uint `gorm:"not null;uniqueIndex:idx_attestation_instance_sub"`
	SubControlTemplate   SubControlTemplate

	Status         AttestationStatus `gorm:"type:varchar(20);not null"`
	EvidenceExists bool
	NARationale    string `gorm:"type:text"` // обязательно при status = not_applicable
	Notes          string `gorm:"type:text"`

	AttestedByID uint
	AttestedAt   *time.Time
}
