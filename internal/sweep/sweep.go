package sweep

import (
	"log"
	"time"

	"risk-governance/internal/assurance"
	"risk-governance/internal/models"

	"gorm.io/gorm"
)

// Срок, после которого открытый просроченный запрос считается
// истёкшим и закрывается автоматически.
const expireAfterDays = 90

// Sweeper — фоновый проход по запросам на доказательства.
// Консультативный и идемпотентный: повторный запуск по тем же данным
// ничего не меняет.
type Sweeper struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSweeper(db *gorm.DB) *Sweeper {
	return &Sweeper{db: db, now: time.Now}
}

// WithClock подменяет часы в тестах.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run запускает цикл с заданным интервалом до закрытия stop.
func (s *Sweeper) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("evidence sweep started (interval %s)", interval)
	for {
		select {
		case <-ticker.C:
			if n, err := s.SweepOnce(); err != nil {
				log.Printf("evidence sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("evidence sweep expired %d requests", n)
			}
		case <-stop:
			log.Println("evidence sweep stopped")
			return
		}
	}
}

// SweepOnce закрывает открытые запросы, просроченные дольше порога,
// и пересчитывает доверие затронутых контролей.
func (s *Sweeper) SweepOnce() (int, error) {
	cutoff := s.now().AddDate(0, 0, -expireAfterDays)

	var stale []models.EvidenceRequest
	if err := s.db.
		Where("status = ? AND due_at < ?", models.EvidenceOpen, cutoff).
		Find(&stale).Error; err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	svc := assurance.NewService(s.db)
	expired := 0

	for _, req := range stale {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.EvidenceRequest{}).
				Where("id = ? AND status = ?", req.ID, models.EvidenceOpen).
				Update("status", models.EvidenceExpired)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// кто-то успел закрыть запрос — не наша работа
				return nil
			}
			expired++
			return svc.RecomputeConfidenceTx(tx, req.ControlInstanceID)
		})
		if err != nil {
			return expired, err
		}
	}

	return expired, nil
}
