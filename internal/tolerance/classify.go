package tolerance

import (
	"fmt"

	"risk-governance/internal/apperr"
	"risk-governance/internal/models"
)

// Classification — результат сверки значения с зонами метрики.
// Tier == "" означает зелёную зону (событие не создаётся).
type Classification struct {
	Tier      models.BreachTier
	Threshold float64 // пересечённая граница
}

// Classify сверяет значение измерения с зонами метрики. Для
// directional-метрик prior — значения более ранних точек внутри
// скользящего окна; при нехватке данных нарушение не фиксируется.
func Classify(m models.ToleranceMetric, value float64, prior []float64) (Classification, error) {
	switch m.Type {
	case models.MetricMaximum:
		if m.RedAt != nil && value > *m.RedAt {
			return Classification{Tier: models.TierRed, Threshold: *m.RedAt}, nil
		}
		if m.AmberAt != nil && value > *m.AmberAt {
			return Classification{Tier: models.TierAmber, Threshold: *m.AmberAt}, nil
		}
		return Classification{}, nil

	case models.MetricMinimum:
		if m.RedAt != nil && value < *m.RedAt {
			return Classification{Tier: models.TierRed, Threshold: *m.RedAt}, nil
		}
		if m.AmberAt != nil && value < *m.AmberAt {
			return Classification{Tier: models.TierAmber, Threshold: *m.AmberAt}, nil
		}
		return Classification{}, nil

	case models.MetricRange:
		if m.RedLow != nil && value < *m.RedLow {
			return Classification{Tier: models.TierRed, Threshold: *m.RedLow}, nil
		}
		if m.RedHigh != nil && value > *m.RedHigh {
			return Classification{Tier: models.TierRed, Threshold: *m.RedHigh}, nil
		}
		if m.AmberLow != nil && value < *m.AmberLow {
			return Classification{Tier: models.TierAmber, Threshold: *m.AmberLow}, nil
		}
		if m.AmberHigh != nil && value > *m.AmberHigh {
			return Classification{Tier: models.TierAmber, Threshold: *m.AmberHigh}, nil
		}
		return Classification{}, nil

	case models.MetricDirectional:
		return classifyDirectional(m, value, prior)

	default:
		return Classification{}, fmt.Errorf("%w: unknown metric type %q", apperr.ErrValidation, m.Type)
	}
}

func classifyDirectional(m models.ToleranceMetric, value float64, prior []float64) (Classification, error) {
	if m.TrendWindowDays <= 0 || m.TrendAmberPct == nil || m.TrendRedPct == nil {
		return Classification{}, fmt.Errorf("%w: directional metric %d without trend config", apperr.ErrInvariant, m.ID)
	}

	// без предыстории тренд не оценивается — деградация в "нет нарушения"
	if len(prior) == 0 {
		return Classification{}, nil
	}

	var sum float64
	for _, v := range prior {
		sum += v
	}
	mean := sum / float64(len(prior))
	if mean == 0 {
		return Classification{}, nil
	}

	pct := (value - mean) / mean * 100
	adverse := pct
	if m.TrendDirection == models.TrendDown {
		adverse = -pct
	}

	if adverse >= *m.TrendRedPct {
		return Classification{Tier: models.TierRed, Threshold: *m.TrendRedPct}, nil
	}
	if adverse >= *m.TrendAmberPct {
		return Classification{Tier: models.TierAmber, Threshold: *m.TrendAmberPct}, nil
	}
	return Classification{}, nil
}

// ValidateMetric проверяет инварианты метрики перед сохранением или
// активацией.
func ValidateMetric(m models.ToleranceMetric) error {
	if m.Active && m.MeasurementSeriesID == 0 {
		return fmt.Errorf("%w: active metric must reference a measurement series", apperr.ErrInvariant)
	}
	switch m.Type {
	case models.MetricMaximum, models.MetricMinimum:
		if m.AmberAt == nil && m.RedAt == nil {
			return fmt.Errorf("%w: metric without bands", apperr.ErrValidation)
		}
	case models.MetricRange:
		if m.AmberLow == nil && m.AmberHigh == nil && m.RedLow == nil && m.RedHigh == nil {
			return fmt.Errorf("%w: range metric without bands", apperr.ErrValidation)
		}
	case models.MetricDirectional:
		if m.TrendWindowDays <= 0 || m.TrendAmberPct == nil || m.TrendRedPct == nil {
			return fmt.Errorf("%w: directional metric requires trend config", apperr.ErrInvariant)
		}
		if m.TrendDirection != models.TrendUp && m.TrendDirection != models.TrendDown {
			return fmt.Errorf("%w: directional metric requires trend direction", apperr.ErrInvariant)
		}
	default:
		return fmt.Errorf("%w: unknown metric type %q", apperr.ErrValidation, m.Type)
	}
	return nil
}
