package datastore

import (
	"strings"
	"time"

	"github.com/tphakala/cropguard/internal/detection"
)

// Stat is one counter row. Name is a detection.Outcome; every category has
// its own column so a single UPDATE touches exactly one cell.
type Stat struct {
	Name     string `gorm:"primaryKey;size:16"`
	Bull     int64  `gorm:"not null;default:0"`
	Nilgai   int64  `gorm:"not null;default:0"`
	Pig      int64  `gorm:"not null;default:0"`
	Peacock  int64  `gorm:"not null;default:0"`
	Squirrel int64  `gorm:"not null;default:0"`
	Jackal   int64  `gorm:"not null;default:0"`
	Cat      int64  `gorm:"not null;default:0"`
	Dog      int64  `gorm:"not null;default:0"`
	Goat     int64  `gorm:"not null;default:0"`
	Mouse    int64  `gorm:"not null;default:0"`
	Insect   int64  `gorm:"not null;default:0"`
	Person   int64  `gorm:"not null;default:0"`
	Elephant int64  `gorm:"not null;default:0"`
	Monkey   int64  `gorm:"not null;default:0"`
	Bird     int64  `gorm:"not null;default:0"`
	Unknown  int64  `gorm:"not null;default:0"`
}

// TableName keeps the table name used by earlier deployments.
func (Stat) TableName() string { return "stats" }

// Counts returns the row as a category map.
func (s *Stat) Counts() map[detection.Category]int64 {
	return map[detection.Category]int64{
		detection.Bull:     s.Bull,
		detection.Nilgai:   s.Nilgai,
		detection.Pig:      s.Pig,
		detection.Peacock:  s.Peacock,
		detection.Squirrel: s.Squirrel,
		detection.Jackal:   s.Jackal,
		detection.Cat:      s.Cat,
		detection.Dog:      s.Dog,
		detection.Goat:     s.Goat,
		detection.Mouse:    s.Mouse,
		detection.Insect:   s.Insect,
		detection.Person:   s.Person,
		detection.Elephant: s.Elephant,
		detection.Monkey:   s.Monkey,
		detection.Bird:     s.Bird,
		detection.Unknown:  s.Unknown,
	}
}

// columnName maps a category to its counter column. Only valid categories may
// reach SQL; callers check Valid first.
func columnName(c detection.Category) string {
	return strings.ToLower(string(c))
}

// Role controls access to admin bot commands.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole accepts "user" or "admin".
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// Recipient is a chat that receives detection requests while Active.
type Recipient struct {
	ChatID    int64  `gorm:"primaryKey;autoIncrement:false"`
	Name      string `gorm:"size:128"`
	Active    bool   `gorm:"index;not null;default:true"`
	Role      Role   `gorm:"size:16;not null;default:user"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAdmin reports whether the recipient may use admin commands.
func (r *Recipient) IsAdmin() bool {
	return r.Role == RoleAdmin
}
