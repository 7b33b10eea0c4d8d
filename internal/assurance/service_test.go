package assurance

import (
	"testing"
	"time"

	"risk-governance/internal/database"
	"risk-governance/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

// риск + контроль с заданными аттестациями
func seedInstance(t *testing.T, db *gorm.DB, statuses []models.AttestationStatus) models.ControlInstance {
	t.Helper()

	org := models.Organization{Name: "Тестбанк"}
	require.NoError(t, db.Create(&org).Error)

	risk := models.Risk{OrganizationID: org.ID, Title: "Утечка данных", Status: models.RiskDraft}
	require.NoError(t, db.Create(&risk).Error)

	template := models.ControlTemplate{
		Code: "AC-01", Version: "1.0", Name: "Управление доступом",
		Objective: models.ObjectiveLikelihood,
	}
	dims := []models.Dimension{
		models.DimensionDesign,
		models.DimensionImplementation,
		models.DimensionMonitoring,
		models.DimensionEvaluation,
	}
	for i := range statuses {
		template.SubControls = append(template.SubControls, models.SubControlTemplate{
			Position:    i + 1,
			Dimension:   dims[i%len(dims)],
			Criticality: models.CriticalityCritical,
			Prompt:      "пункт",
		})
	}
	require.NoError(t, db.Create(&template).Error)

	instance := models.ControlInstance{
		RiskID:            risk.ID,
		ControlTemplateID: template.ID,
		TemplateVersion:   template.Version,
		Status:            models.InstanceDraft,
	}
	require.NoError(t, db.Create(&instance).Error)

	now := time.Now()
	for i, sub := range template.SubControls {
		att := models.SubControlAttestation{
			ControlInstanceID:    instance.ID,
			SubControlTemplateID: sub.ID,
			Status:               statuses[i],
		}
		if statuses[i] != models.AttestationUnanswered {
			att.EvidenceExists = true
			att.AttestedAt = &now
		}
		require.NoError(t, db.Create(&att).Error)
	}

	return instance
}

func allYes(n int) []models.AttestationStatus {
	statuses := make([]models.AttestationStatus, n)
	for i := range statuses {
		statuses[i] = models.AttestationYes
	}
	return statuses
}

func TestServiceComputeDimeUpsertsSingleRow(t *testing.T) {
	db := newTestDB(t)
	instance := seedInstance(t, db, allYes(8))
	svc := NewService(db)

	first, err := svc.ComputeDime(instance.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, first.FinalEffectiveness)
	assert.Len(t, first.Trace, 8)

	second, err := svc.ComputeDime(instance.ID)
	require.NoError(t, err)

	// перезапись, не добавление
	assert.Equal(t, first.ID, second.ID)

	var count int64
	db.Model(&models.DerivedDimeScore{}).Count(&count)
	assert.Equal(t, int64(1), count)

	var traceCount int64
	db.Model(&models.DimeTraceEntry{}).Count(&traceCount)
	assert.Equal(t, int64(8), traceCount)
}

func TestServiceComputeDimeIdempotent(t *testing.T) {
	db := newTestDB(t)
	instance := seedInstance(t, db, []models.AttestationStatus{
		models.AttestationYes, models.AttestationPartial,
		models.AttestationNo, models.AttestationYes,
	})
	svc := NewService(db)

	first, err := svc.ComputeDime(instance.ID)
	require.NoError(t, err)
	second, err := svc.ComputeDime(instance.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Design, second.Design)
	assert.Equal(t, first.FinalEffectiveness, second.FinalEffectiveness)
	assert.Equal(t, first.CapApplied, second.CapApplied)
}

func TestServiceComputeDimeNotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := NewService(db).ComputeDime(999)
	assert.Error(t, err)
}

func TestServiceComputeConfidenceWithOverdueRequest(t *testing.T) {
	db := newTestDB(t)
	instance := seedInstance(t, db, allYes(4))

	now := time.Now()
	svc := NewService(db).WithClock(func() time.Time { return now })

	base, err := svc.ComputeConfidence(instance.ID)
	require.NoError(t, err)
	assert.Equal(t, 90, base.Score)
	assert.Equal(t, models.ConfidenceHigh, base.Label)

	// критично просроченный запрос к первому пункту
	var att models.SubControlAttestation
	require.NoError(t, db.Where("control_instance_id = ?", instance.ID).First(&att).Error)

	req := models.EvidenceRequest{
		ControlInstanceID: instance.ID,
		AttestationID:     &att.ID,
		Status:            models.EvidenceOpen,
		DueAt:             now.AddDate(0, 0, -60),
	}
	require.NoError(t, db.Create(&req).Error)

	withPenalty, err := svc.ComputeConfidence(instance.ID)
	require.NoError(t, err)

	// -15 * 1.5 за критичную область
	assert.Equal(t, base.Score-22, withPenalty.Score) // 22.5 с округлением итога
	assert.Equal(t, base.ID, withPenalty.ID)

	var driverCount int64
	db.Model(&models.ConfidenceDriver{}).Count(&driverCount)
	assert.Equal(t, int64(5), driverCount)
}

func TestServiceRecomputeTxSynchronous(t *testing.T) {
	db := newTestDB(t)
	instance := seedInstance(t, db, allYes(4))
	svc := NewService(db)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.RecomputeTx(tx, instance.ID)
	})
	require.NoError(t, err)

	var dime models.DerivedDimeScore
	require.NoError(t, db.Where("control_instance_id = ?", instance.ID).First(&dime).Error)
	var confidence models.ConfidenceScore
	require.NoError(t, db.Where("control_instance_id = ?", instance.ID).First(&confidence).Error)

	assert.Equal(t, 3.0, dime.FinalEffectiveness)
	assert.Equal(t, models.ConfidenceHigh, confidence.Label)
}
