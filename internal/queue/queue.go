// Package queue implements a durable local queue of inbound webhook
// payloads with unique-body dedup and atomic claim-next semantics.
package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lucsky/cuid"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Status is the lifecycle state of a queue row.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// Row is one queue table row. gorm names the table "rows", which ClaimNext's
// raw SQL addresses directly.
type Row struct {
	ID        string `gorm:"primaryKey;type:varchar(255)"`
	Payload   string `gorm:"uniqueIndex;not null;type:text"`
	Status    Status `gorm:"index;not null;type:varchar(20);default:pending"`
	LastError *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Row) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = cuid.New()
	}
	return nil
}

// Store is the gorm-backed queue. ClaimNext drops to a raw SQL transaction
// in BEGIN IMMEDIATE mode, since SQLite's writer-serialization guarantee
// for claim_next's atomicity requirement is not expressible through gorm's
// query builder alone.
type Store struct {
	db *gorm.DB
}

// Open connects to a SQLite-backed queue store at dsn and migrates the
// schema. Swap sqlite.Open for postgres.Open with a different DSN to run
// the same schema against Postgres.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("opening queue store: %w", err)
	}
	if err := db.AutoMigrate(&Row{}); err != nil {
		return nil, fmt.Errorf("migrating queue schema: %w", err)
	}
	log.Info().Str("dsn", dsn).Msg("queue store ready")
	return &Store{db: db}, nil
}

// Enqueue inserts payload, suppressing exact-duplicate bodies via
// ON CONFLICT (payload) DO NOTHING on the unique index. Returns true iff a
// new row was inserted.
func (s *Store) Enqueue(payload string) (bool, error) {
	row := &Row{Payload: payload, Status: StatusPending}
	res := s.db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "payload"}}, DoNothing: true}).Create(row)
	if res.Error != nil {
		return false, fmt.Errorf("enqueue: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ClaimedJob is one claimed row ready for processing.
type ClaimedJob struct {
	RowID   string
	Payload string
}

// ClaimNext atomically selects the oldest pending row and transitions it to
// processing, using BEGIN IMMEDIATE so two workers racing against the same
// SQLite file never claim the same row.
func (s *Store) ClaimNext() (*ClaimedJob, error) {
	sqlDB, err := s.db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	conn, err := sqlDB.Conn(context.Background())
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Close()

	// BEGIN IMMEDIATE (rather than a plain deferred BEGIN) takes SQLite's
	// write lock up front, so two workers racing ClaimNext serialize
	// instead of both succeeding at a deferred read and then conflicting
	// at commit time.
	if _, err := conn.ExecContext(context.Background(), "BEGIN IMMEDIATE"); err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	var id, payload string
	err = conn.QueryRowContext(context.Background(),
		`SELECT id, payload FROM rows WHERE status = ? ORDER BY created_at ASC LIMIT 1`,
		StatusPending,
	).Scan(&id, &payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selecting next pending row: %w", err)
	}

	if _, err := conn.ExecContext(context.Background(),
		`UPDATE rows SET status = ?, last_error = NULL, updated_at = ? WHERE id = ?`,
		StatusProcessing, time.Now().UTC(), id,
	); err != nil {
		return nil, fmt.Errorf("claiming row %s: %w", id, err)
	}

	if _, err := conn.ExecContext(context.Background(), "COMMIT"); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}
	committed = true

	return &ClaimedJob{RowID: id, Payload: payload}, nil
}

// MarkDone transitions a row to done.
func (s *Store) MarkDone(rowID string) error {
	return s.db.Model(&Row{}).Where("id = ?", rowID).Updates(map[string]any{
		"status": StatusDone,
	}).Error
}

// MarkError transitions a row to error and records msg. Error rows are not
// retried automatically; recovery is operator-driven.
func (s *Store) MarkError(rowID string, msg string) error {
	return s.db.Model(&Row{}).Where("id = ?", rowID).Updates(map[string]any{
		"status":     StatusError,
		"last_error": msg,
	}).Error
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
