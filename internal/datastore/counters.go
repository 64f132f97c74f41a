package datastore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/cropguard/internal/detection"
	"github.com/tphakala/cropguard/internal/observability/metrics"
)

// CounterStore maps (Outcome, Category) to a count.
//
// Increment is a single UPDATE ... SET col = col + 1 statement, so concurrent
// callers never lose updates and no read-modify-write happens in process.
type CounterStore interface {
	// Increment adds one to the (outcome, category) cell.
	Increment(ctx context.Context, outcome detection.Outcome, category detection.Category) error
	// Row returns the counts of one outcome for every category.
	Row(ctx context.Context, outcome detection.Outcome) (map[detection.Category]int64, error)
	// Snapshot returns all four rows.
	Snapshot(ctx context.Context) (detection.Snapshot, error)
}

// IncrementObserver is notified after each successful increment.
type IncrementObserver func(outcome detection.Outcome, category detection.Category)

// GormCounterStore implements CounterStore on the stats table.
type GormCounterStore struct {
	db        *gorm.DB
	observers []IncrementObserver
	rec       metrics.Recorder
}

// NewCounterStore wraps db. The schema must already be initialized.
func NewCounterStore(db *gorm.DB, observers ...IncrementObserver) *GormCounterStore {
	return &GormCounterStore{db: db, observers: observers, rec: metrics.NoOpRecorder{}}
}

// WithRecorder reports operation counts and latency to rec.
func (s *GormCounterStore) WithRecorder(rec metrics.Recorder) *GormCounterStore {
	if rec != nil {
		s.rec = rec
	}
	return s
}

// Increment adds one to the (outcome, category) cell.
func (s *GormCounterStore) Increment(ctx context.Context, outcome detection.Outcome, category detection.Category) (err error) {
	start := time.Now()
	defer func() { record(s.rec, "increment", start, err) }()

	if !category.Valid() {
		return unknownCategoryError(category)
	}
	if _, ok := detection.ParseOutcome(string(outcome)); !ok {
		return dbError(fmt.Errorf("unknown outcome %q", outcome), "increment")
	}

	col := columnName(category)
	result := s.db.WithContext(ctx).
		Model(&Stat{}).
		Where("name = ?", string(outcome)).
		UpdateColumn(col, gorm.Expr(col+" + ?", 1))
	if result.Error != nil {
		return dbError(result.Error, "increment",
			"outcome", string(outcome),
			"category", string(category))
	}
	// Zero rows means the seed row vanished; the count would be silently lost.
	if result.RowsAffected == 0 {
		return dbError(fmt.Errorf("stats row %q not found", outcome), "increment",
			"outcome", string(outcome),
			"category", string(category))
	}

	for _, observe := range s.observers {
		observe(outcome, category)
	}
	return nil
}

// Row returns the counts of one outcome for every category.
func (s *GormCounterStore) Row(ctx context.Context, outcome detection.Outcome) (_ map[detection.Category]int64, err error) {
	start := time.Now()
	defer func() { record(s.rec, "read_row", start, err) }()

	var row Stat
	if err = s.db.WithContext(ctx).Where("name = ?", string(outcome)).First(&row).Error; err != nil {
		return nil, dbError(err, "read_row", "outcome", string(outcome))
	}
	return row.Counts(), nil
}

// Snapshot returns all four rows.
func (s *GormCounterStore) Snapshot(ctx context.Context) (_ detection.Snapshot, err error) {
	start := time.Now()
	defer func() { record(s.rec, "snapshot", start, err) }()

	var rows []Stat
	if err = s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, dbError(err, "snapshot")
	}

	snap := make(detection.Snapshot, len(rows))
	for i := range rows {
		outcome, ok := detection.ParseOutcome(rows[i].Name)
		if !ok {
			continue
		}
		snap[outcome] = rows[i].Counts()
	}
	return snap, nil
}
