package assurance

import (
	"fmt"
	"math"
	"time"

	"risk-governance/internal/models"
)

// Открытый запрос на доказательство, видимый расчёту доверия.
type EvidenceRequestInput struct {
	DueAt         time.Time
	CriticalScope bool // запрос адресован критичному пункту чек-листа
}

type ConfidenceInput struct {
	Attestations []AttestationInput
	OpenRequests []EvidenceRequestInput
	Now          time.Time
}

type ConfidenceDriver struct {
	Component   string
	Points      float64
	Explanation string
}

type ConfidenceResult struct {
	Score   int
	Label   models.ConfidenceLabel
	Drivers []ConfidenceDriver
}

const (
	ComponentCriticalStatus   = "critical_status"
	ComponentCriticalEvidence = "critical_evidence"
	ComponentOverallEvidence  = "overall_evidence"
	ComponentRecency          = "recency"
	ComponentOverduePenalty   = "overdue_penalty"
	ComponentFloor            = "critical_floor"
)

// Ниже этого значения критичной составляющей итог не может выйти из "low".
const (
	criticalFloorThreshold = 10.0
	criticalFloorCap       = 39
	overduePenaltyFloor    = -30.0
)

func answered(s models.AttestationStatus) bool {
	return s == models.AttestationYes || s == models.AttestationPartial || s == models.AttestationNo
}

// ComputeConfidence считает балл доверия 0–100 к доказательной базе
// контроля. Чистая функция: время передаётся во входе.
func ComputeConfidence(in ConfidenceInput) ConfidenceResult {
	var (
		criticalSum      float64
		criticalAnswered int
		criticalEvidence int
		allAnswered      int
		allEvidence      int
		lastAttested     *time.Time
	)

	for _, a := range in.Attestations {
		if a.AttestedAt != nil && (lastAttested == nil || a.AttestedAt.After(*lastAttested)) {
			t := *a.AttestedAt
			lastAttested = &t
		}
		if !answered(a.Status) {
			continue
		}
		allAnswered++
		if a.EvidenceExists {
			allEvidence++
		}
		if a.Criticality == models.CriticalityCritical {
			criticalAnswered++
			v, _ := statusValue(a.Status)
			criticalSum += v
			if a.EvidenceExists {
				criticalEvidence++
			}
		}
	}

	var drivers []ConfidenceDriver
	total := 0.0

	// 1. Статусы критичных пунктов, 0–40
	criticalStatus := 0.0
	if criticalAnswered > 0 {
		criticalStatus = 40 * criticalSum / float64(criticalAnswered)
	}
	total += criticalStatus
	drivers = append(drivers, ConfidenceDriver{
		Component:   ComponentCriticalStatus,
		Points:      round2(criticalStatus),
		Explanation: fmt.Sprintf("Критичные пункты: %.1f из 40", criticalStatus),
	})

	// 2. Доказательства по критичным пунктам, 0–20
	criticalCoverage := 0.0
	if criticalAnswered > 0 {
		criticalCoverage = 20 * float64(criticalEvidence) / float64(criticalAnswered)
	}
	total += criticalCoverage
	drivers = append(drivers, ConfidenceDriver{
		Component:   ComponentCriticalEvidence,
		Points:      round2(criticalCoverage),
		Explanation: fmt.Sprintf("Доказательства по критичным пунктам: %.1f из 20", criticalCoverage),
	})

	// 3. Доказательства по всем пунктам, 0–10
	overallCoverage := 0.0
	if allAnswered > 0 {
		overallCoverage = 10 * float64(allEvidence) / float64(allAnswered)
	}
	total += overallCoverage
	drivers = append(drivers, ConfidenceDriver{
		Component:   ComponentOverallEvidence,
		Points:      round2(overallCoverage),
		Explanation: fmt.Sprintf("Доказательства по всем пунктам: %.1f из 10", overallCoverage),
	})

	// 4. Давность последней аттестации, 0–20
	recency := 0.0
	if lastAttested != nil {
		days := int(in.Now.Sub(*lastAttested).Hours() / 24)
		switch {
		case days <= 30:
			recency = 20
		case days <= 60:
			recency = 15
		case days <= 90:
			recency = 10
		case days <= 180:
			recency = 5
		}
	}
	total += recency
	drivers = append(drivers, ConfidenceDriver{
		Component:   ComponentRecency,
		Points:      recency,
		Explanation: fmt.Sprintf("Давность аттестации: %.0f из 20", recency),
	})

	// 5. Штраф за просроченные открытые запросы, до −30 суммарно
	penalty := 0.0
	overdueCount := 0
	for _, r := range in.OpenRequests {
		if !r.DueAt.Before(in.Now) {
			continue
		}
		overdueCount++
		days := int(in.Now.Sub(r.DueAt).Hours() / 24)
		var p float64
		switch {
		case days <= 7:
			p = 5
		case days <= 30:
			p = 10
		default:
			p = 15
		}
		if r.CriticalScope {
			p *= 1.5
		}
		penalty -= p
	}
	if penalty < overduePenaltyFloor {
		penalty = overduePenaltyFloor
	}
	total += penalty
	drivers = append(drivers, ConfidenceDriver{
		Component:   ComponentOverduePenalty,
		Points:      penalty,
		Explanation: fmt.Sprintf("Просроченные запросы на доказательства (%d): %.1f", overdueCount, penalty),
	})

	score := int(math.Round(total))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	// Нижний потолок: при провале критичных пунктов итог не выше 39.
	if criticalStatus < criticalFloorThreshold && score > criticalFloorCap {
		score = criticalFloorCap
		drivers = append(drivers, ConfidenceDriver{
			Component:   ComponentFloor,
			Points:      0,
			Explanation: "Критичные пункты существенно не закрыты: итог ограничен 39",
		})
	}

	res := ConfidenceResult{Score: score, Drivers: drivers}
	switch {
	case score >= 75:
		res.Label = models.ConfidenceHigh
	case score >= 40:
		res.Label = models.ConfidenceMedium
	default:
		res.Label = models.ConfidenceLow
	}
	return res
}
