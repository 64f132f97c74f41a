package datastore

import (
	"net"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const (
	mysqlMaxOpenConns    = 10
	mysqlMaxIdleConns    = 4
	mysqlConnMaxLifetime = 30 * time.Minute
)

// MySQLConfig holds MySQL connection settings.
type MySQLConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// DSN renders the go-sql-driver connection string. Timestamps are read in
// local time to match the SQLite backend.
func (c *MySQLConfig) DSN() string {
	dc := mysqldriver.NewConfig()
	dc.User = c.Username
	dc.Passwd = c.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(c.Host, c.Port)
	dc.DBName = c.Database
	dc.ParseTime = true
	dc.Loc = time.Local
	dc.Params = map[string]string{"charset": "utf8mb4"}
	return dc.FormatDSN()
}

// MySQLManager is a Manager for a shared MySQL server. Counter updates are
// tiny so the pool stays small.
type MySQLManager struct {
	db       *gorm.DB
	location string
}

func NewMySQLManager(cfg *MySQLConfig) (*MySQLManager, error) {
	location := net.JoinHostPort(cfg.Host, cfg.Port) + "/" + cfg.Database

	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{Logger: gormLogger()})
	if err != nil {
		return nil, dbError(err, "open_mysql", "location", location)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, dbError(err, "open_mysql", "location", location)
	}
	sqlDB.SetMaxOpenConns(mysqlMaxOpenConns)
	sqlDB.SetMaxIdleConns(mysqlMaxIdleConns)
	sqlDB.SetConnMaxLifetime(mysqlConnMaxLifetime)

	return &MySQLManager{db: db, location: location}, nil
}

func (m *MySQLManager) Initialize() error { return initializeSchema(m.db) }

func (m *MySQLManager) DB() *gorm.DB { return m.db }

// Path returns host:port/database.
func (m *MySQLManager) Path() string { return m.location }

func (m *MySQLManager) Close() error { return closeDB(m.db) }

func (m *MySQLManager) IsMySQL() bool { return true }
