package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/liamashdown/launchwatch/internal/config"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// State keys used in app_state
const (
	StateLastProcessedDay = "last_processed_day"
)

// DB wraps the GORM database connection
type DB struct {
	conn *gorm.DB
	log  *logrus.Logger
}

// New creates a new database connection with GORM
func New(cfg *config.Config, log *logrus.Logger) (*DB, error) {
	gormLogger := logger.New(
		&gormLogAdapter{log: log},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	conn, err := gorm.Open(mysql.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.DatabaseMaxConns)
	sqlDB.SetMaxIdleConns(cfg.DatabaseMaxConns / 2)
	sqlDB.SetConnMaxIdleTime(cfg.DatabaseMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("Database connection established")

	return &DB{conn: conn, log: log}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the connection is alive
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// AutoMigrate creates or updates the schema
func (db *DB) AutoMigrate() error {
	return db.conn.AutoMigrate(
		&AppState{},
		&AlertedToken{},
		&AlertLog{},
		&HeldCandidate{},
	)
}

// GetState retrieves a state value by key
func (db *DB) GetState(ctx context.Context, key string) (string, error) {
	var state AppState
	result := db.conn.WithContext(ctx).Where("state_key = ?", key).First(&state)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if result.Error != nil {
		return "", result.Error
	}
	return state.StateValue, nil
}

// SetState sets a state value
func (db *DB) SetState(ctx context.Context, key, value string) error {
	state := AppState{
		StateKey:   key,
		StateValue: value,
		UpdatedTS:  time.Now().Unix(),
	}
	return db.conn.WithContext(ctx).Save(&state).Error
}

// InsertAlertedToken records a token as alerted. Inserting the same
// day/token twice is a no-op.
func (db *DB) InsertAlertedToken(ctx context.Context, rec *AlertedToken) error {
	return db.conn.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec).Error
}

// ListAlertedTokens returns every token alerted on day, oldest first
func (db *DB) ListAlertedTokens(ctx context.Context, day string) ([]AlertedToken, error) {
	var recs []AlertedToken
	result := db.conn.WithContext(ctx).
		Where("day = ?", day).
		Order("sent_ts ASC").
		Find(&recs)
	return recs, result.Error
}

// PruneAlertedTokens deletes records of days before the given day
func (db *DB) PruneAlertedTokens(ctx context.Context, beforeDay string) (int64, error) {
	result := db.conn.WithContext(ctx).
		Where("day < ?", beforeDay).
		Delete(&AlertedToken{})
	return result.RowsAffected, result.Error
}

// InsertAlertLog appends to the delivery history, assigning an ID if unset
func (db *DB) InsertAlertLog(ctx context.Context, entry *AlertLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return db.conn.WithContext(ctx).Create(entry).Error
}

// ReplaceHeldCandidates atomically swaps the persisted candidates for items
func (db *DB) ReplaceHeldCandidates(ctx context.Context, items []HeldCandidate) error {
	return db.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&HeldCandidate{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		return tx.CreateInBatches(items, 100).Error
	})
}

// LoadHeldCandidates returns the persisted candidates in insertion order
func (db *DB) LoadHeldCandidates(ctx context.Context) ([]HeldCandidate, error) {
	var items []HeldCandidate
	result := db.conn.WithContext(ctx).Order("id ASC").Find(&items)
	return items, result.Error
}

// gormLogAdapter adapts logrus to GORM's logger interface
type gormLogAdapter struct {
	log *logrus.Logger
}

func (l *gormLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}
