package activation

import (
	"testing"

	"risk-governance/internal/apperr"
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

func seedRisk(t *testing.T, db *gorm.DB) models.Risk {
	t.Helper()
	org := models.Organization{Name: "Тестбанк"}
	require.NoError(t, db.Create(&org).Error)
	risk := models.Risk{OrganizationID: org.ID, Title: "Сбой процессинга", Status: models.RiskDraft}
	require.NoError(t, db.Create(&risk).Error)
	return risk
}

func addResponse(t *testing.T, db *gorm.DB, riskID uint, rt models.ResponseType) {
	t.Helper()
	require.NoError(t, db.Create(&models.RiskResponse{
		RiskID:   riskID,
		Response: rt,
	}).Error)
}

func addControl(t *testing.T, db *gorm.DB, riskID uint, status models.InstanceStatus) {
	t.Helper()
	template := models.ControlTemplate{Code: "AC-01", Version: "1.0", Name: "Доступ", Objective: models.ObjectiveBoth}
	require.NoError(t, db.Create(&template).Error)
	require.NoError(t, db.Create(&models.ControlInstance{
		RiskID:            riskID,
		ControlTemplateID: template.ID,
		TemplateVersion:   template.Version,
		Status:            status,
	}).Error)
}

func TestCanActivateNoResponseFailsClosed(t *testing.T) {
	db := newTestDB(t)
	risk := seedRisk(t, db)

	d, err := CanActivate(db, risk.ID)
	require.NoError(t, err)

	assert.False(t, d.Allowed)
	assert.False(t, d.HasResponse)
	assert.NotEmpty(t, d.Reason)
}

func TestCanActivateAcceptAlwaysAllowed(t *testing.T) {
	db := newTestDB(t)
	risk := seedRisk(t, db)
	addResponse(t, db, risk.ID, models.ResponseAccept)

	d, err := CanActivate(db, risk.ID)
	require.NoError(t, err)

	assert.True(t, d.Allowed)
	assert.True(t, d.HasResponse)
	assert.Equal(t, models.ResponseAccept, d.ResponseType)
	assert.Equal(t, int64(0), d.ControlCount)
}

func TestCanActivateRequiresControlForOtherResponses(t *testing.T) {
	db := newTestDB(t)
	risk := seedRisk(t, db)
	addResponse(t, db, risk.ID, models.ResponseReduceLikelihood)

	d, err := CanActivate(db, risk.ID)
	require.NoError(t, err)

	assert.False(t, d.Allowed)
	assert.Equal(t, int64(0), d.ControlCount)
	assert.Contains(t, d.Reason, "контроль")
}

func TestCanActivateWithControl(t *testing.T) {
	db := newTestDB(t)
	risk := seedRisk(t, db)
	addResponse(t, db, risk.ID, models.ResponseReduceImpact)
	addControl(t, db, risk.ID, models.InstanceDraft)

	d, err := CanActivate(db, risk.ID)
	require.NoError(t, err)

	assert.True(t, d.Allowed)
	assert.Equal(t, int64(1), d.ControlCount)
}

func TestCanActivateRetiredControlDoesNotCount(t *testing.T) {
	db := newTestDB(t)
	risk := seedRisk(t, db)
	addResponse(t, db, risk.ID, models.ResponseTransfer)
	addControl(t, db, risk.ID, models.InstanceRetired)

	d, err := CanActivate(db, risk.ID)
	require.NoError(t, err)

	assert.False(t, d.Allowed)
	assert.Equal(t, int64(0), d.ControlCount)
}

func TestCanActivateUnknownRisk(t *testing.T) {
	db := newTestDB(t)
	_, err := CanActivate(db, 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCanActivateReadOnly(t *testing.T) {
	db := newTestDB(t)
	risk := seedRisk(t, db)

	_, err := CanActivate(db, risk.ID)
	require.NoError(t, err)

	// шлюз ничего не меняет
	var reloaded models.Risk
	require.NoError(t, db.First(&reloaded, risk.ID).Error)
	assert.Equal(t, models.RiskDraft, reloaded.Status)
}
