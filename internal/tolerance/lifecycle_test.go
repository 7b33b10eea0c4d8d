package tolerance

import (
	"testing"
	"time"

	"risk-governance/internal/apperr"
	"risk-governance/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedBreach(t *testing.T, db *gorm.DB, status models.BreachStatus) models.BreachEvent {
	t.Helper()

	metric, series := seedMetric(t, db, maximumMetric(10, 20))
	m := addMeasurement(t, db, series.ID, 1, 25)

	breach := models.BreachEvent{
		Reference:         "test-" + string(status),
		ToleranceMetricID: metric.ID,
		MeasurementID:     m.ID,
		Tier:              models.TierRed,
		Value:             25,
		Threshold:         20,
		DetectedAt:        time.Now(),
		Status:            status,
	}
	require.NoError(t, db.Create(&breach).Error)
	return breach
}

var (
	governanceActor = Actor{UserID: 1, Role: models.RoleGovernance}
	ownerActor      = Actor{UserID: 2, Role: models.RoleRiskOwner}
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from models.BreachStatus
		to   models.BreachStatus
		ok   bool
	}{
		{models.BreachOpen, models.BreachInProgress, true},
		{models.BreachOpen, models.BreachResolved, true},
		{models.BreachOpen, models.BreachBoardAccepted, true},
		{models.BreachOpen, models.BreachClosed, false},
		{models.BreachInProgress, models.BreachResolved, true},
		{models.BreachInProgress, models.BreachBoardAccepted, true},
		{models.BreachInProgress, models.BreachClosed, false},
		{models.BreachResolved, models.BreachClosed, true},
		{models.BreachResolved, models.BreachBoardAccepted, false},
		{models.BreachResolved, models.BreachInProgress, false},
	}

	for _, tc := range cases {
		db := newTestDB(t)
		breach := seedBreach(t, db, tc.from)

		_, err := NewLifecycle(db).Transition(breach.ID, tc.to, governanceActor,
			TransitionMeta{Rationale: "обоснование"})
		if tc.ok {
			assert.NoError(t, err, "%s -> %s", tc.from, tc.to)
		} else {
			assert.ErrorIs(t, err, apperr.ErrInvariant, "%s -> %s", tc.from, tc.to)
		}
	}
}

func TestTransitionTerminalStatesAreFinal(t *testing.T) {
	for _, terminal := range []models.BreachStatus{models.BreachClosed, models.BreachBoardAccepted} {
		db := newTestDB(t)
		breach := seedBreach(t, db, terminal)

		for _, next := range []models.BreachStatus{
			models.BreachOpen, models.BreachInProgress,
			models.BreachResolved, models.BreachClosed, models.BreachBoardAccepted,
		} {
			_, err := NewLifecycle(db).Transition(breach.ID, next, governanceActor,
				TransitionMeta{Rationale: "попытка"})
			assert.ErrorIs(t, err, apperr.ErrInvariant, "%s -> %s", terminal, next)
		}
	}
}

func TestBoardAcceptRecordsMetadataAtomically(t *testing.T) {
	db := newTestDB(t)
	breach := seedBreach(t, db, models.BreachOpen)

	accepted := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	lifecycle := NewLifecycle(db).WithClock(func() time.Time { return accepted })

	updated, err := lifecycle.Transition(breach.ID, models.BreachBoardAccepted, governanceActor,
		TransitionMeta{Rationale: "временное отклонение одобрено правлением"})
	require.NoError(t, err)

	assert.Equal(t, models.BreachBoardAccepted, updated.Status)
	require.NotNil(t, updated.AcceptedByID)
	assert.Equal(t, governanceActor.UserID, *updated.AcceptedByID)
	require.NotNil(t, updated.AcceptedAt)
	assert.True(t, updated.AcceptedAt.Equal(accepted))
	assert.NotEmpty(t, updated.AcceptedRationale)
}

func TestBoardAcceptRequiresRationale(t *testing.T) {
	db := newTestDB(t)
	breach := seedBreach(t, db, models.BreachOpen)

	_, err := NewLifecycle(db).Transition(breach.ID, models.BreachBoardAccepted, governanceActor,
		TransitionMeta{Rationale: "   "})
	assert.ErrorIs(t, err, apperr.ErrInvariant)

	// статус не изменился, метаданные не заполнены частично
	var reloaded models.BreachEvent
	require.NoError(t, db.First(&reloaded, breach.ID).Error)
	assert.Equal(t, models.BreachOpen, reloaded.Status)
	assert.Nil(t, reloaded.AcceptedByID)
	assert.Nil(t, reloaded.AcceptedAt)
}

func TestBoardAcceptRequiresGovernanceTier(t *testing.T) {
	db := newTestDB(t)
	breach := seedBreach(t, db, models.BreachOpen)

	_, err := NewLifecycle(db).Transition(breach.ID, models.BreachBoardAccepted, ownerActor,
		TransitionMeta{Rationale: "обоснование"})
	assert.ErrorIs(t, err, apperr.ErrInvariant)
}

func TestTransitionUnknownBreach(t *testing.T) {
	db := newTestDB(t)
	_, err := NewLifecycle(db).Transition(999, models.BreachInProgress, governanceActor, TransitionMeta{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSetRemediation(t *testing.T) {
	db := newTestDB(t)
	breach := seedBreach(t, db, models.BreachOpen)

	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	updated, err := NewLifecycle(db).SetRemediation(breach.ID, governanceActor,
		"усилить контроль доступа", ownerActor.UserID, &due)
	require.NoError(t, err)

	assert.Equal(t, "усилить контроль доступа", updated.RemediationPlan)
	require.NotNil(t, updated.RemediationOwnerID)
	assert.Equal(t, ownerActor.UserID, *updated.RemediationOwnerID)

	// назначенный владелец может править план сам
	_, err = NewLifecycle(db).SetRemediation(breach.ID, ownerActor, "уточнённый план", 0, &due)
	assert.NoError(t, err)

	// посторонний — нет
	stranger := Actor{UserID: 42, Role: models.RoleAttestor}
	_, err = NewLifecycle(db).SetRemediation(breach.ID, stranger, "чужой план", 0, nil)
	assert.ErrorIs(t, err, apperr.ErrInvariant)
}

func TestSetRemediationBlockedInTerminalStatus(t *testing.T) {
	db := newTestDB(t)
	breach := seedBreach(t, db, models.BreachClosed)

	_, err := NewLifecycle(db).SetRemediation(breach.ID, governanceActor, "план", 0, nil)
	assert.ErrorIs(t, err, apperr.ErrInvariant)
}
