package assurance

import (
	"errors"
	"fmt"
	"time"

	"risk-governance/internal/apperr"
	"risk-governance/internal/models"

	"gorm.io/gorm"
)

// Service пересчитывает и сохраняет расчётные оценки экземпляра
// контроля. Пересчёт синхронный: вызывается из транзакции записи
// аттестации, чтобы оценки никогда не читались устаревшими.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// WithClock подменяет часы в тестах.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) loadInputs(tx *gorm.DB, instanceID uint) ([]AttestationInput, error) {
	var instance models.ControlInstance
	if err := tx.First(&instance, instanceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: control instance %d", apperr.ErrNotFound, instanceID)
		}
		return nil, err
	}

	var atts []models.SubControlAttestation
	if err := tx.
		Preload("SubControlTemplate").
		Where("control_instance_id = ?", instanceID).
		Order("id asc").
		Find(&atts).Error; err != nil {
		return nil, err
	}

	inputs := make([]AttestationInput, 0, len(atts))
	for _, a := range atts {
		inputs = append(inputs, AttestationInput{
			SubControlID:   a.SubControlTemplateID,
			Position:       a.SubControlTemplate.Position,
			Dimension:      a.SubControlTemplate.Dimension,
			Criticality:    a.SubControlTemplate.Criticality,
			Status:         a.Status,
			EvidenceExists: a.EvidenceExists,
			AttestedAt:     a.AttestedAt,
		})
	}
	return inputs, nil
}

// ComputeDime пересчитывает DIME-оценку и перезаписывает её строку.
// Идемпотентен: без изменения аттестаций повторный вызов даёт тот же
// результат.
func (s *Service) ComputeDime(instanceID uint) (*models.DerivedDimeScore, error) {
	var saved *models.DerivedDimeScore
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		saved, err = s.computeDimeTx(tx, instanceID)
		return err
	})
	return saved, err
}

func (s *Service) computeDimeTx(tx *gorm.DB, instanceID uint) (*models.DerivedDimeScore, error) {
	inputs, err := s.loadInputs(tx, instanceID)
	if err != nil {
		return nil, err
	}

	res := ComputeDime(inputs)

	row := models.DerivedDimeScore{
		ControlInstanceID:  instanceID,
		Design:             res.Design,
		Implementation:     res.Implementation,
		Monitoring:         res.Monitoring,
		Evaluation:         res.Evaluation,
		RawEffectiveness:   res.RawEffectiveness,
		FinalEffectiveness: res.FinalEffectiveness,
		CapApplied:         res.CapApplied,
		ComputedAt:         s.now(),
	}

	// одна строка на экземпляр: старую перезаписываем вместе с трассой
	var existing models.DerivedDimeScore
	err = tx.Where("control_instance_id = ?", instanceID).First(&existing).Error
	switch {
	case err == nil:
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
		if err := tx.Where("derived_dime_score_id = ?", existing.ID).
			Delete(&models.DimeTraceEntry{}).Error; err != nil {
			return nil, err
		}
		if err := tx.Save(&row).Error; err != nil {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := tx.Create(&row).Error; err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	for i, t := range res.Trace {
		entry := models.DimeTraceEntry{
			DerivedDimeScoreID:   row.ID,
			Position:             i + 1,
			SubControlTemplateID: t.SubControlID,
			Dimension:            t.Dimension,
			Value:                t.Value,
			Weight:               t.Weight,
			Capped:               t.Capped,
			Note:                 t.Note,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return nil, err
		}
		row.Trace = append(row.Trace, entry)
	}

	return &row, nil
}

// ComputeConfidence пересчитывает балл доверия и перезаписывает его
// строку вместе со списком составляющих.
func (s *Service) ComputeConfidence(instanceID uint) (*models.ConfidenceScore, error) {
	var saved *models.ConfidenceScore
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		saved, err = s.computeConfidenceTx(tx, instanceID)
		return err
	})
	return saved, err
}

func (s *Service) computeConfidenceTx(tx *gorm.DB, instanceID uint) (*models.ConfidenceScore, error) {
	inputs, err := s.loadInputs(tx, instanceID)
	if err != nil {
		return nil, err
	}

	requests, err := s.loadOpenRequests(tx, instanceID)
	if err != nil {
		return nil, err
	}

	res := ComputeConfidence(ConfidenceInput{
		Attestations: inputs,
		OpenRequests: requests,
		Now:          s.now(),
	})

	row := models.ConfidenceScore{
		ControlInstanceID: instanceID,
		Score:             res.Score,
		Label:             res.Label,
		ComputedAt:        s.now(),
	}

	var existing models.ConfidenceScore
	err = tx.Where("control_instance_id = ?", instanceID).First(&existing).Error
	switch {
	case err == nil:
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
		if err := tx.Where("confidence_score_id = ?", existing.ID).
			Delete(&models.ConfidenceDriver{}).Error; err != nil {
			return nil, err
		}
		if err := tx.Save(&row).Error; err != nil {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := tx.Create(&row).Error; err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	for i, d := range res.Drivers {
		driver := models.ConfidenceDriver{
			ConfidenceScoreID: row.ID,
			Position:          i + 1,
			Component:         d.Component,
			Points:            d.Points,
			Explanation:       d.Explanation,
		}
		if err := tx.Create(&driver).Error; err != nil {
			return nil, err
		}
		row.Drivers = append(row.Drivers, driver)
	}

	return &row, nil
}

func (s *Service) loadOpenRequests(tx *gorm.DB, instanceID uint) ([]EvidenceRequestInput, error) {
	var reqs []models.EvidenceRequest
	if err := tx.
		Preload("Attestation.SubControlTemplate").
		Where("control_instance_id = ? AND status = ?", instanceID, models.EvidenceOpen).
		Find(&reqs).Error; err != nil {
		return nil, err
	}

	inputs := make([]EvidenceRequestInput, 0, len(reqs))
	for _, r := range reqs {
		critical := false
		if r.Attestation != nil &&
			r.Attestation.SubControlTemplate.Criticality == models.CriticalityCritical {
			critical = true
		}
		inputs = append(inputs, EvidenceRequestInput{
			DueAt:         r.DueAt,
			CriticalScope: critical,
		})
	}
	return inputs, nil
}

// RecomputeConfidenceTx пересчитывает только доверие внутри уже
// открытой транзакции (триггер — изменение запроса на доказательство).
func (s *Service) RecomputeConfidenceTx(tx *gorm.DB, instanceID uint) error {
	_, err := s.computeConfidenceTx(tx, instanceID)
	return err
}

// RecomputeTx пересчитывает обе оценки внутри уже открытой транзакции
// записи. Запись аттестации не считается завершённой, пока оценки не
// согласованы.
func (s *Service) RecomputeTx(tx *gorm.DB, instanceID uint) error {
	if _, err := s.computeDimeTx(tx, instanceID); err != nil {
		return err
	}
	if _, err := s.computeConfidenceTx(tx, instanceID); err != nil {
		return err
	}
	return nil
}
