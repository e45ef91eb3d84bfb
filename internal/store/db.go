// Package store persists clients, conversations and messages with GORM.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/techsolutions/agency-chat/pkg/logger"
)

var (
	// ErrNotFound is returned when a targeted row does not exist or is inactive.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a write collides with a uniqueness constraint.
	ErrConflict = errors.New("store: conflict")
)

// Config holds database connection configuration.
type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
	Logger       *logger.Logger
}

// Store is the single source of truth for chat state.
type Store struct {
	db  *gorm.DB
	now func() time.Time

	// findActive looks up the pair's active conversation inside a transaction.
	findActive func(tx *gorm.DB, clientID, agencyID int64) (*ConversationRecord, error)
}

// New wraps an already opened database.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: utcNow, findActive: findActiveConversation}
}

// Open connects to the configured database and migrates the schema.
func Open(cfg Config) (*Store, error) {
	dialector, err := openDialector(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{
		TranslateError: true,
		NowFunc:        utcNow,
		Logger:         newGormLogger(cfg.Logger),
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}

	if isSQLite(cfg.Driver) {
		// SQLite allows a single writer; serialize through one connection.
		sqlDB.SetMaxOpenConns(1)
		db.Exec("PRAGMA journal_mode=WAL")
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if cfg.AutoMigrate {
		if err := Migrate(db); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}

	return New(db), nil
}

// Migrate creates or updates the chat schema.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&UserRecord{},
		&ClientRecord{},
		&ConversationRecord{},
		&MessageRecord{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// At most one active conversation per (client, agency) pair.
	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_active_pair
		ON conversations (client_id, agency_id) WHERE is_active`).Error
	if err != nil {
		return fmt.Errorf("failed to create conversation pair index: %w", err)
	}

	return nil
}

// DB returns the underlying GORM handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func openDialector(driver, dsn string) (gorm.Dialector, error) {
	if dsn == "" {
		return nil, errors.New("database DSN is required")
	}
	switch strings.ToLower(driver) {
	case "", "postgres", "postgresql":
		return postgres.Open(dsn), nil
	case "sqlite", "sqlite3":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func isSQLite(driver string) bool {
	d := strings.ToLower(driver)
	return d == "sqlite" || d == "sqlite3"
}

func newGormLogger(log *logger.Logger) gormlogger.Interface {
	if log == nil {
		return gormlogger.Default.LogMode(gormlogger.Silent)
	}
	return gormlogger.New(zap.NewStdLog(log.Logger), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

func utcNow() time.Time {
	return time.Now().UTC()
}
