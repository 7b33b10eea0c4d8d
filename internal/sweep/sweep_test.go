package sweep

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

func seedRequest(t *testing.T, db *gorm.DB, dueAt time.Time, status models.EvidenceRequestStatus) models.EvidenceRequest {
	t.Helper()

	org := models.Organization{Name: "Тестбанк"}
	require.NoError(t, db.Create(&org).Error)
	risk := models.Risk{OrganizationID: org.ID, Title: "Риск", Status: models.RiskDraft}
	require.NoError(t, db.Create(&risk).Error)
	template := models.ControlTemplate{Code: "AC-01", Version: "1.0", Name: "Доступ", Objective: models.ObjectiveBoth}
	require.NoError(t, db.Create(&template).Error)
	instance := models.ControlInstance{
		RiskID:            risk.ID,
		ControlTemplateID: template.ID,
		TemplateVersion:   template.Version,
		Status:            models.InstanceActive,
	}
	require.NoError(t, db.Create(&instance).Error)

	req := models.EvidenceRequest{
		ControlInstanceID: instance.ID,
		Status:            status,
		DueAt:             dueAt,
	}
	require.NoError(t, db.Create(&req).Error)
	return req
}

func TestSweepExpiresStaleRequests(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	req := seedRequest(t, db, now.AddDate(0, 0, -120), models.EvidenceOpen)
	sweeper := NewSweeper(db).WithClock(func() time.Time { return now })

	n, err := sweeper.SweepOnce()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var reloaded models.EvidenceRequest
	require.NoError(t, db.First(&reloaded, req.ID).Error)
	assert.Equal(t, models.EvidenceExpired, reloaded.Status)

	// доверие владеющего контроля пересчитано
	var score models.ConfidenceScore
	require.NoError(t, db.Where("control_instance_id = ?", req.ControlInstanceID).First(&score).Error)
}

func TestSweepIdempotent(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	seedRequest(t, db, now.AddDate(0, 0, -120), models.EvidenceOpen)
	sweeper := NewSweeper(db).WithClock(func() time.Time { return now })

	first, err := sweeper.SweepOnce()
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := sweeper.SweepOnce()
	require.NoError(t, err)
	assert.Equal(t, 0, second)
}

func TestSweepLeavesRecentAndClosedAlone(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	// просрочен, но младше порога
	recent := seedRequest(t, db, now.AddDate(0, 0, -10), models.EvidenceOpen)
	sweeper := NewSweeper(db).WithClock(func() time.Time { return now })

	n, err := sweeper.SweepOnce()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	var reloaded models.EvidenceRequest
	require.NoError(t, db.First(&reloaded, recent.ID).Error)
	assert.Equal(t, models.EvidenceOpen, reloaded.Status)
}
