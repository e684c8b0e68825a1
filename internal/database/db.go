package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

type DB struct {
	*sql.DB
	lockTimeout time.Duration
}

type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	DBName             string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	ConnMaxIdleTimeMin int
	// LockTimeoutMs bounds how long a reservation waits for an event row lock. 0 disables.
	LockTimeoutMs int
}

// DSN renders the lib/pq connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

func Connect(cfg Config) (*DB, error) {
	db, err := Open(cfg.DSN())
	if err != nil {
		return nil, err
	}

	// Configure connection pool with configurable settings
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMin) * time.Minute)
	db.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMin) * time.Minute)
	db.lockTimeout = time.Duration(cfg.LockTimeoutMs) * time.Millisecond

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Connected to database",
		"host", cfg.Host, "port", cfg.Port, "dbname", cfg.DBName,
		"max_open_conns", cfg.MaxOpenConns, "max_idle_conns", cfg.MaxIdleConns,
		"lock_timeout_ms", cfg.LockTimeoutMs)

	return db, nil
}

// Open wraps sql.Open without pinging. Tests use it with TEST_DATABASE_URL.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &DB{DB: db}, nil
}

// LockTimeout is applied with SET LOCAL at the start of reservation transactions.
func (db *DB) LockTimeout() time.Duration {
	return db.lockTimeout
}

// SetLockTimeout overrides the configured lock timeout.
func (db *DB) SetLockTimeout(d time.Duration) {
	db.lockTimeout = d
}

func (db *DB) Close() error {
	return db.DB.Close()
}

func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}
