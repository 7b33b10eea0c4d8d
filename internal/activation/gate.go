package activation

import (
	"errors"
	"fmt"

	"risk-governance/internal/apperr"
	"risk-governance/internal/models"

	"gorm.io/gorm"
)

// Decision — ответ шлюза активации с диагностикой для вызывающего.
type Decision struct {
	Allowed      bool                `json:"allowed"`
	Reason       string              `json:"reason"`
	HasResponse  bool                `json:"has_response"`
	ResponseType models.ResponseType `json:"response_type,omitempty"`
	ControlCount int64               `json:"control_count"`
}

// CanActivate решает, можно ли перевести риск в статус active.
// Только чтение, без побочных эффектов. Без решения по обработке
// риска активация закрыта; при response = accept контроли не
// требуются; иначе нужен хотя бы один неснятый контроль.
func CanActivate(db *gorm.DB, riskID uint) (Decision, error) {
	var risk models.Risk
	if err := db.First(&risk, riskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Decision{}, fmt.Errorf("%w: risk %d", apperr.ErrNotFound, riskID)
		}
		return Decision{}, err
	}

	var count int64
	if err := db.Model(&models.ControlInstance{}).
		Where("risk_id = ? AND status <> ?", riskID, models.InstanceRetired).
		Count(&count).Error; err != nil {
		return Decision{}, err
	}

	d := Decision{ControlCount: count}

	var response models.RiskResponse
	err := db.Where("risk_id = ?", riskID).First(&response).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		d.Reason = "Не выбрано решение по обработке риска"
		return d, nil
	case err != nil:
		return Decision{}, err
	}

	d.HasResponse = true
	d.ResponseType = response.Response

	if response.Response == models.ResponseAccept {
		d.Allowed = true
		d.Reason = "Риск принят: контроли для активации не требуются"
		return d, nil
	}

	if count == 0 {
		d.Reason = "Для выбранного решения требуется хотя бы один неснятый контроль"
		return d, nil
	}

	d.Allowed = true
	d.Reason = "Условия активации выполнены"
	return d, nil
}
