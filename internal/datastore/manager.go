// Package datastore persists outcome counters and the recipient directory.
//
// Counters live in the stats table: one row per detection.Outcome and one
// integer column per detection.Category. Recipients live in the recipients
// table. SQLite is the default backend, MySQL is supported for installations
// that share a database server.
package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/cropguard/internal/conf"
	"github.com/tphakala/cropguard/internal/detection"
	"github.com/tphakala/cropguard/internal/logger"
)

// slowQueryThreshold marks statements logged as slow by the gorm adapter
const slowQueryThreshold = 200 * time.Millisecond

// Manager owns a database connection and its schema.
type Manager interface {
	// Initialize creates the schema, seeds the counter rows and validates columns.
	Initialize() error
	// DB returns the underlying GORM database.
	DB() *gorm.DB
	// Path returns the database location (file path for SQLite, host:port/database for MySQL).
	Path() string
	// Close closes the database connection.
	Close() error
	// IsMySQL returns true if this is a MySQL manager.
	IsMySQL() bool
}

// Config holds SQLite configuration.
type Config struct {
	// Path is the database file. Parent directories are created.
	Path string
}

// SQLiteManager handles the SQLite database.
type SQLiteManager struct {
	db     *gorm.DB
	dbPath string
}

// NewSQLiteManager opens (creating if needed) the SQLite database at cfg.Path.
func NewSQLiteManager(cfg Config) (*SQLiteManager, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path must not be empty")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, dbError(err, "create_data_dir", "path", dir)
		}
	}

	// WAL lets the bot send the file for /stats_db while counters are updated.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", cfg.Path)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger(),
	})
	if err != nil {
		return nil, dbError(err, "open_sqlite", "path", cfg.Path)
	}

	return &SQLiteManager{db: db, dbPath: cfg.Path}, nil
}

// Initialize creates the schema and seeds the counter rows.
func (m *SQLiteManager) Initialize() error {
	return initializeSchema(m.db)
}

// DB returns the underlying GORM database.
func (m *SQLiteManager) DB() *gorm.DB {
	return m.db
}

// Path returns the database file path.
func (m *SQLiteManager) Path() string {
	return m.dbPath
}

// Close closes the database connection.
func (m *SQLiteManager) Close() error {
	return closeDB(m.db)
}

// IsMySQL returns false for SQLite manager.
func (m *SQLiteManager) IsMySQL() bool {
	return false
}

// Checkpoint folds the WAL into the main file so that a copy of the file is complete.
func (m *SQLiteManager) Checkpoint() error {
	if err := m.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error; err != nil {
		return dbError(err, "wal_checkpoint")
	}
	return nil
}

// NewManager opens the backend selected in settings. The schema is not touched;
// call Initialize before use.
func NewManager(settings *conf.Settings) (Manager, error) {
	switch {
	case settings.Output.MySQL.Enabled:
		my := settings.Output.MySQL
		return NewMySQLManager(&MySQLConfig{
			Host:     my.Host,
			Port:     my.Port,
			Username: my.Username,
			Password: my.Password,
			Database: my.Database,
		})
	case settings.Output.SQLite.Enabled:
		return NewSQLiteManager(Config{Path: settings.Output.SQLite.Path})
	default:
		return nil, fmt.Errorf("no database backend enabled")
	}
}

// initializeSchema is shared by both backends.
func initializeSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(&Stat{}, &Recipient{}); err != nil {
		return dbError(err, "auto_migrate")
	}

	// Seed the four counter rows; FirstOrCreate keeps restarts idempotent.
	for _, outcome := range detection.Outcomes() {
		row := Stat{Name: string(outcome)}
		if err := db.Where("name = ?", row.Name).FirstOrCreate(&row).Error; err != nil {
			return dbError(err, "seed_stats", "outcome", row.Name)
		}
	}

	return ValidateSchema(db)
}

// ValidateSchema verifies that every category has a counter column.
// A missing column means the table was created by an older release.
func ValidateSchema(db *gorm.DB) error {
	migrator := db.Migrator()
	var missing []string
	for _, c := range detection.Categories() {
		if !migrator.HasColumn(&Stat{}, columnName(c)) {
			missing = append(missing, columnName(c))
		}
	}
	if len(missing) > 0 {
		return dbError(fmt.Errorf("stats table is missing columns %v", missing), "validate_schema")
	}
	return nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// gormLogger sends statements to the datastore module at trace level.
func gormLogger() *logger.GormLoggerAdapter {
	return logger.NewGormLoggerAdapter(GetLogger(), slowQueryThreshold)
}
