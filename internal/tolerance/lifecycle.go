package tolerance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"risk-governance/internal/apperr"
	"risk-governance/internal/models"

	"gorm.io/gorm"
)

// Actor — вызывающая сторона, разрешённая сессией. Ядро ролей не
// вычисляет, только проверяет.
type Actor struct {
	UserID uint
	Role   models.UserRole
}

func (a Actor) governanceTier() bool {
	return a.Role == models.RoleAdmin || a.Role == models.RoleGovernance
}

// TransitionMeta — сопровождение перехода. Для board_accepted
// обоснование обязательно.
type TransitionMeta struct {
	Rationale string
}

// допустимые переходы машины состояний нарушения
var allowedTransitions = map[models.BreachStatus][]models.BreachStatus{
	models.BreachOpen:       {models.BreachInProgress, models.BreachResolved, models.BreachBoardAccepted},
	models.BreachInProgress: {models.BreachResolved, models.BreachBoardAccepted},
	models.BreachResolved:   {models.BreachClosed},
}

func transitionAllowed(from, to models.BreachStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Lifecycle управляет машиной состояний событий нарушений.
type Lifecycle struct {
	db  *gorm.DB
	now func() time.Time
}

func NewLifecycle(db *gorm.DB) *Lifecycle {
	return &Lifecycle{db: db, now: time.Now}
}

// WithClock подменяет часы в тестах.
func (l *Lifecycle) WithClock(now func() time.Time) *Lifecycle {
	l.now = now
	return l
}

// Transition валидирует и выполняет переход статуса. Переход в
// board_accepted атомарно фиксирует утверждающего, время и
// обоснование; терминальные статусы не покидаются никем.
func (l *Lifecycle) Transition(breachID uint, newStatus models.BreachStatus, actor Actor, meta TransitionMeta) (*models.BreachEvent, error) {
	var breach models.BreachEvent

	err := l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&breach, breachID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: breach event %d", apperr.ErrNotFound, breachID)
			}
			return err
		}

		if breach.Terminal() {
			return fmt.Errorf("%w: breach %d is in terminal status %s",
				apperr.ErrInvariant, breachID, breach.Status)
		}

		switch newStatus {
		case models.BreachInProgress, models.BreachResolved, models.BreachClosed, models.BreachBoardAccepted:
		default:
			return fmt.Errorf("%w: unknown breach status %q", apperr.ErrValidation, newStatus)
		}

		if !transitionAllowed(breach.Status, newStatus) {
			return fmt.Errorf("%w: transition %s -> %s is not permitted",
				apperr.ErrInvariant, breach.Status, newStatus)
		}

		if newStatus == models.BreachBoardAccepted {
			if !actor.governanceTier() {
				return fmt.Errorf("%w: board acceptance requires a governance-tier actor",
					apperr.ErrInvariant)
			}
			if actor.UserID == 0 || strings.TrimSpace(meta.Rationale) == "" {
				return fmt.Errorf("%w: board acceptance requires approver and rationale",
					apperr.ErrInvariant)
			}
			now := l.now()
			breach.AcceptedByID = &actor.UserID
			breach.AcceptedAt = &now
			breach.AcceptedRationale = meta.Rationale
		}

		breach.Status = newStatus
		return tx.Save(&breach).Error
	})
	if err != nil {
		return nil, err
	}
	return &breach, nil
}

// SetRemediation задаёт план устранения. Допустимо, пока нарушение
// открыто или в работе; право есть у назначенного владельца и у
// governance-уровня.
func (l *Lifecycle) SetRemediation(breachID uint, actor Actor, plan string, ownerID uint, dueAt *time.Time) (*models.BreachEvent, error) {
	var breach models.BreachEvent

	err := l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&breach, breachID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: breach event %d", apperr.ErrNotFound, breachID)
			}
			return err
		}

		if breach.Status != models.BreachOpen && breach.Status != models.BreachInProgress {
			return fmt.Errorf("%w: remediation is only editable while open or in progress",
				apperr.ErrInvariant)
		}

		assigned := breach.RemediationOwnerID != nil && *breach.RemediationOwnerID == actor.UserID
		if !assigned && !actor.governanceTier() {
			return fmt.Errorf("%w: remediation requires the assigned owner or a governance-tier actor",
				apperr.ErrInvariant)
		}

		breach.RemediationPlan = plan
		if ownerID != 0 {
			breach.RemediationOwnerID = &ownerID
		}
		breach.RemediationDueAt = dueAt
		return tx.Save(&breach).Error
	})
	if err != nil {
		return nil, err
	}
	return &breach, nil
}
