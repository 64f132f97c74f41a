package datastore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/cropguard/internal/observability/metrics"
)

// RecipientRepository is the recipient directory.
type RecipientRepository interface {
	// Active returns a fresh snapshot of the recipients that receive requests.
	Active(ctx context.Context) ([]Recipient, error)
	// List returns every recipient ordered by chat ID.
	List(ctx context.Context) ([]Recipient, error)
	// Get returns one recipient or ErrRecipientNotFound.
	Get(ctx context.Context, chatID int64) (*Recipient, error)
	// Enroll creates the recipient, or reactivates it when it exists.
	// created reports whether a new row was inserted.
	Enroll(ctx context.Context, chatID int64, name string) (created bool, err error)
	// SetActive toggles delivery without deleting the recipient.
	SetActive(ctx context.Context, chatID int64, active bool) error
	// SetRole changes the recipient role.
	SetRole(ctx context.Context, chatID int64, role Role) error
}

// GormRecipientRepository implements RecipientRepository on the recipients table.
type GormRecipientRepository struct {
	db  *gorm.DB
	rec metrics.Recorder
}

// NewRecipientRepository wraps db. The schema must already be initialized.
func NewRecipientRepository(db *gorm.DB) *GormRecipientRepository {
	return &GormRecipientRepository{db: db, rec: metrics.NoOpRecorder{}}
}

// WithRecorder reports operation counts and latency to rec.
func (r *GormRecipientRepository) WithRecorder(rec metrics.Recorder) *GormRecipientRepository {
	if rec != nil {
		r.rec = rec
	}
	return r
}

func (r *GormRecipientRepository) Active(ctx context.Context) (_ []Recipient, err error) {
	start := time.Now()
	defer func() { record(r.rec, "list_active_recipients", start, err) }()

	var out []Recipient
	if err = r.db.WithContext(ctx).Where("active = ?", true).Order("chat_id").Find(&out).Error; err != nil {
		return nil, dbError(err, "list_active_recipients")
	}
	return out, nil
}

func (r *GormRecipientRepository) List(ctx context.Context) ([]Recipient, error) {
	var out []Recipient
	if err := r.db.WithContext(ctx).Order("chat_id").Find(&out).Error; err != nil {
		return nil, dbError(err, "list_recipients")
	}
	return out, nil
}

func (r *GormRecipientRepository) Get(ctx context.Context, chatID int64) (*Recipient, error) {
	var rec Recipient
	err := r.db.WithContext(ctx).First(&rec, "chat_id = ?", chatID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecipientNotFound
	}
	if err != nil {
		return nil, dbError(err, "get_recipient", "chat_id", chatID)
	}
	return &rec, nil
}

func (r *GormRecipientRepository) Enroll(ctx context.Context, chatID int64, name string) (_ bool, err error) {
	start := time.Now()
	defer func() { record(r.rec, "enroll_recipient", start, err) }()

	rec := Recipient{ChatID: chatID, Name: name, Active: true, Role: RoleUser}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if result.Error != nil {
		return false, dbError(result.Error, "enroll_recipient", "chat_id", chatID)
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	updates := map[string]any{"active": true}
	if name != "" {
		updates["name"] = name
	}
	if err = r.db.WithContext(ctx).Model(&Recipient{}).Where("chat_id = ?", chatID).Updates(updates).Error; err != nil {
		return false, dbError(err, "reactivate_recipient", "chat_id", chatID)
	}
	return false, nil
}

func (r *GormRecipientRepository) SetActive(ctx context.Context, chatID int64, active bool) error {
	return r.updateColumn(ctx, chatID, "active", active)
}

func (r *GormRecipientRepository) SetRole(ctx context.Context, chatID int64, role Role) error {
	if _, ok := ParseRole(string(role)); !ok {
		return dbError(errors.New("invalid role "+string(role)), "set_role", "chat_id", chatID)
	}
	return r.updateColumn(ctx, chatID, "role", role)
}

func (r *GormRecipientRepository) updateColumn(ctx context.Context, chatID int64, column string, value any) error {
	result := r.db.WithContext(ctx).Model(&Recipient{}).Where("chat_id = ?", chatID).Update(column, value)
	if result.Error != nil {
		return dbError(result.Error, "update_recipient", "chat_id", chatID, "column", column)
	}
	if result.RowsAffected == 0 {
		// MySQL reports zero affected rows when the value is unchanged.
		if _, err := r.Get(ctx, chatID); err != nil {
			return err
		}
	}
	return nil
}
