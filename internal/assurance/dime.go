package assurance

import (
	"math"
	"time"

	"risk-governance/internal/models"
)

// Вход расчёта — срез аттестаций экземпляра контроля вместе с
// атрибутами их пунктов шаблона.
type AttestationInput struct {
	SubControlID uint
	Position     int
	Dimension    models.Dimension
	Criticality  models.Criticality

	Status         models.AttestationStatus
	EvidenceExists bool
	AttestedAt     *time.Time
}

type TraceEntry struct {
	SubControlID uint
	Position     int
	Dimension    models.Dimension
	Value        float64
	Weight       float64
	Capped       bool
	Note         string
}

type DimeResult struct {
	Design         float64
	Implementation float64
	Monitoring     float64
	Evaluation     float64

	RawEffectiveness   float64
	FinalEffectiveness float64
	CapApplied         bool

	Trace []TraceEntry
}

// границы зоны жёсткого капа: критичный "нет" режет измерение до 1.0
const criticalNoCap = 1.0

func statusValue(s models.AttestationStatus) (float64, bool) {
	switch s {
	case models.AttestationYes:
		return 1.0, true
	case models.AttestationPartial:
		return 0.5, true
	case models.AttestationNo:
		return 0.0, true
	default:
		// unanswered и not_applicable в весах не участвуют
		return 0, false
	}
}

func criticalityWeight(c models.Criticality) float64 {
	switch c {
	case models.CriticalityCritical:
		return 3
	case models.CriticalityImportant:
		return 2
	default:
		return 1
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ComputeDime считает оценки по четырём измерениям (Design /
// Implementation / Monitoring / Evaluation), сырую и итоговую
// эффективность. Чистая функция, идемпотентна.
func ComputeDime(atts []AttestationInput) DimeResult {
	type acc struct {
		weighted   float64
		weight     float64
		criticalNo bool
	}
	byDim := map[models.Dimension]*acc{
		models.DimensionDesign:         {},
		models.DimensionImplementation: {},
		models.DimensionMonitoring:     {},
		models.DimensionEvaluation:     {},
	}

	var trace []TraceEntry

	for _, a := range atts {
		v, counted := statusValue(a.Status)
		if !counted {
			continue
		}

		d, ok := byDim[a.Dimension]
		if !ok {
			continue
		}

		w := criticalityWeight(a.Criticality)
		d.weighted += v * w
		d.weight += w

		capped := false
		note := ""
		if a.Criticality == models.CriticalityCritical && a.Status == models.AttestationNo {
			d.criticalNo = true
			capped = true
			note = "критичный пункт со статусом «нет»: измерение ограничено 1.0"
		}

		trace = append(trace, TraceEntry{
			SubControlID: a.SubControlID,
			Position:     a.Position,
			Dimension:    a.Dimension,
			Value:        v,
			Weight:       w,
			Capped:       capped,
			Note:         note,
		})
	}

	score := func(dim models.Dimension) (float64, bool) {
		d := byDim[dim]
		if d.weight == 0 {
			return 0, false
		}
		s := round2(3 * d.weighted / d.weight)
		if d.criticalNo && s > criticalNoCap {
			return criticalNoCap, true
		}
		return s, false
	}

	res := DimeResult{Trace: trace}

	var cappedD, cappedI, cappedM, cappedE bool
	res.Design, cappedD = score(models.DimensionDesign)
	res.Implementation, cappedI = score(models.DimensionImplementation)
	res.Monitoring, cappedM = score(models.DimensionMonitoring)

	// сырая эффективность — взвешенная оценка E до капа
	eAcc := byDim[models.DimensionEvaluation]
	if eAcc.weight > 0 {
		res.RawEffectiveness = round2(3 * eAcc.weighted / eAcc.weight)
	}
	res.Evaluation, cappedE = score(models.DimensionEvaluation)

	// итоговая эффективность не может превышать слабейшее из D/I/M
	res.FinalEffectiveness = res.Evaluation
	for _, v := range []float64{res.Design, res.Implementation, res.Monitoring} {
		if v < res.FinalEffectiveness {
			res.FinalEffectiveness = v
		}
	}

	res.CapApplied = cappedD || cappedI || cappedM || cappedE

	return res
}
