package assurance

import (
	"testing"

	"risk-governance/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func att(dim models.Dimension, crit models.Criticality, status models.AttestationStatus) AttestationInput {
	return AttestationInput{Dimension: dim, Criticality: crit, Status: status}
}

// полный чек-лист: по паре критичных пунктов в каждом измерении
func fullChecklist(status models.AttestationStatus) []AttestationInput {
	var atts []AttestationInput
	for _, d := range []models.Dimension{
		models.DimensionDesign,
		models.DimensionImplementation,
		models.DimensionMonitoring,
		models.DimensionEvaluation,
	} {
		atts = append(atts,
			att(d, models.CriticalityCritical, status),
			att(d, models.CriticalityCritical, status),
		)
	}
	return atts
}

func TestComputeDimeAllYes(t *testing.T) {
	res := ComputeDime(fullChecklist(models.AttestationYes))

	assert.Equal(t, 3.0, res.Design)
	assert.Equal(t, 3.0, res.Implementation)
	assert.Equal(t, 3.0, res.Monitoring)
	assert.Equal(t, 3.0, res.Evaluation)
	assert.Equal(t, 3.0, res.RawEffectiveness)
	assert.Equal(t, 3.0, res.FinalEffectiveness)
	assert.False(t, res.CapApplied)
	assert.Len(t, res.Trace, 8)
}

func TestComputeDimeCriticalNoCapsDimension(t *testing.T) {
	atts := fullChecklist(models.AttestationYes)
	// один критичный "нет" в Design
	atts[0].Status = models.AttestationNo

	res := ComputeDime(atts)

	assert.LessOrEqual(t, res.Design, 1.0)
	assert.True(t, res.CapApplied)

	// E_raw остаётся высоким, но итог зажат слабейшим измерением
	assert.Equal(t, 3.0, res.RawEffectiveness)
	assert.LessOrEqual(t, res.FinalEffectiveness, 1.0)
}

func TestComputeDimeFinalNeverExceedsWeakest(t *testing.T) {
	atts := []AttestationInput{
		att(models.DimensionDesign, models.CriticalityImportant, models.AttestationYes),
		att(models.DimensionImplementation, models.CriticalityImportant, models.AttestationPartial),
		att(models.DimensionMonitoring, models.CriticalityImportant, models.AttestationYes),
		att(models.DimensionEvaluation, models.CriticalityImportant, models.AttestationYes),
	}

	res := ComputeDime(atts)

	require.Equal(t, 1.5, res.Implementation)
	assert.Equal(t, 3.0, res.Evaluation)
	assert.Equal(t, 1.5, res.FinalEffectiveness)
	assert.LessOrEqual(t, res.FinalEffectiveness, res.RawEffectiveness)
}

func TestComputeDimeExcludesUnansweredAndNA(t *testing.T) {
	atts := []AttestationInput{
		att(models.DimensionDesign, models.CriticalityCritical, models.AttestationYes),
		att(models.DimensionDesign, models.CriticalityCritical, models.AttestationUnanswered),
		att(models.DimensionDesign, models.CriticalityCritical, models.AttestationNotApplicable),
	}

	res := ComputeDime(atts)

	// незаполненные и NA не считаются нулями
	assert.Equal(t, 3.0, res.Design)
	assert.Len(t, res.Trace, 1)
}

func TestComputeDimeEmptyDimensionScoresZero(t *testing.T) {
	atts := []AttestationInput{
		att(models.DimensionDesign, models.CriticalityImportant, models.AttestationYes),
	}

	res := ComputeDime(atts)

	assert.Equal(t, 3.0, res.Design)
	assert.Equal(t, 0.0, res.Monitoring)
	assert.Equal(t, 0.0, res.Evaluation)
	assert.Equal(t, 0.0, res.FinalEffectiveness)
}

func TestComputeDimeWeighting(t *testing.T) {
	atts := []AttestationInput{
		att(models.DimensionMonitoring, models.CriticalityCritical, models.AttestationYes),     // 3 * 1.0
		att(models.DimensionMonitoring, models.CriticalityImportant, models.AttestationNo),     // 2 * 0.0
		att(models.DimensionMonitoring, models.CriticalityOptional, models.AttestationPartial), // 1 * 0.5
	}

	res := ComputeDime(atts)

	// 3*(3.5/6) = 1.75
	assert.Equal(t, 1.75, res.Monitoring)
}

func TestComputeDimeCapNotFlaggedWhenBelowCap(t *testing.T) {
	// критичный "нет" при и так низкой оценке: значение не режется
	atts := []AttestationInput{
		att(models.DimensionDesign, models.CriticalityCritical, models.AttestationNo),
	}

	res := ComputeDime(atts)

	assert.Equal(t, 0.0, res.Design)
	assert.False(t, res.CapApplied)
}

func TestComputeDimeIdempotent(t *testing.T) {
	atts := fullChecklist(models.AttestationPartial)
	first := ComputeDime(atts)
	second := ComputeDime(atts)
	assert.Equal(t, first, second)
}

func TestComputeDimeRangeInvariant(t *testing.T) {
	cases := [][]AttestationInput{
		fullChecklist(models.AttestationYes),
		fullChecklist(models.AttestationPartial),
		fullChecklist(models.AttestationNo),
		{
			att(models.DimensionDesign, models.CriticalityCritical, models.AttestationNo),
			att(models.DimensionImplementation, models.CriticalityOptional, models.AttestationYes),
			att(models.DimensionEvaluation, models.CriticalityCritical, models.AttestationPartial),
		},
	}

	for _, atts := range cases {
		res := ComputeDime(atts)
		for _, v := range []float64{res.Design, res.Implementation, res.Monitoring, res.Evaluation, res.FinalEffectiveness} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 3.0)
		}
		assert.LessOrEqual(t, res.FinalEffectiveness, res.RawEffectiveness)
		for _, v := range []float64{res.Design, res.Implementation, res.Monitoring} {
			assert.LessOrEqual(t, res.FinalEffectiveness, v)
		}
	}
}
