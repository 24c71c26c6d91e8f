// Package mysqlstore persists the chat collections in MariaDB/MySQL.
package mysqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"

	"batepapo/internal/model"
	"batepapo/internal/store"
)

// errDuplicateEntry is ER_DUP_ENTRY.
const errDuplicateEntry = 1062

// Config holds the MariaDB connection settings.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// DSN builds the driver data source name.
// clientFoundRows makes UPDATE report matched rows, so touching a participant
// with an unchanged timestamp still counts as found.
func (c Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&clientFoundRows=true",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// Store implements store.Store on database/sql.
type Store struct {
	db *sql.DB

	// keeps AUTO_INCREMENT order equal to commit order for readers
	appendMu sync.Mutex
}

var _ store.Store = (*Store)(nil)

// Open connects and pings the database.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return New(db), nil
}

// New wraps an already opened connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// participants.name uses a binary collation: names are case-sensitive.
const schema = `
CREATE TABLE IF NOT EXISTS participants (
	name VARCHAR(255) NOT NULL PRIMARY KEY,
	last_status BIGINT NOT NULL,
	INDEX idx_participants_last_status (last_status)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin;

CREATE TABLE IF NOT EXISTS messages (
	seq BIGINT AUTO_INCREMENT PRIMARY KEY,
	id VARCHAR(64) NOT NULL,
	from_name VARCHAR(255) NOT NULL,
	to_name VARCHAR(255) NOT NULL,
	text TEXT NOT NULL,
	type VARCHAR(32) NOT NULL,
	time CHAR(8) NOT NULL,
	created_at DATETIME(6) NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;
`

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Store) InsertParticipantIfAbsent(ctx context.Context, p model.Participant) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO participants (name, last_status) VALUES (?, ?)",
		p.Name, p.LastSeen.UnixMilli())
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry {
		return store.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetParticipant(ctx context.Context, name string) (model.Participant, error) {
	var lastStatus int64
	err := s.db.QueryRowContext(ctx,
		"SELECT last_status FROM participants WHERE name = ?", name).Scan(&lastStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Participant{}, store.ErrNotFound
	}
	if err != nil {
		return model.Participant{}, err
	}
	return model.Participant{Name: name, LastSeen: time.UnixMilli(lastStatus)}, nil
}

func (s *Store) TouchParticipant(ctx context.Context, name string, seen time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE participants SET last_status = ? WHERE name = ?", seen.UnixMilli(), name)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListParticipants(ctx context.Context) ([]model.Participant, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, last_status FROM participants")
	if err != nil {
		return nil, err
	}
	return scanParticipants(rows)
}

// DeleteParticipantsSeenBefore locks the stale rows, then deletes exactly
// those rows. A heartbeat racing the sweep blocks on the row lock and finds
// the participant gone afterwards.
func (s *Store) DeleteParticipantsSeenBefore(ctx context.Context, cutoff time.Time) ([]model.Participant, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		"SELECT name, last_status FROM participants WHERE last_status < ? FOR UPDATE", cutoff.UnixMilli())
	if err != nil {
		return nil, err
	}
	evicted, err := scanParticipants(rows)
	if err != nil {
		return nil, err
	}
	if len(evicted) == 0 {
		return nil, tx.Commit()
	}

	args := make([]any, 0, len(evicted)+1)
	args = append(args, cutoff.UnixMilli())
	for _, p := range evicted {
		args = append(args, p.Name)
	}
	query := "DELETE FROM participants WHERE last_status < ? AND name IN (" + placeholders(len(evicted)) + ")"
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return evicted, nil
}

func scanParticipants(rows *sql.Rows) ([]model.Participant, error) {
	defer rows.Close()

	var participants []model.Participant
	for rows.Next() {
		var (
			name       string
			lastStatus int64
		)
		if err := rows.Scan(&name, &lastStatus); err != nil {
			return nil, err
		}
		participants = append(participants, model.Participant{Name: name, LastSeen: time.UnixMilli(lastStatus)})
	}
	return participants, rows.Err()
}

func (s *Store) InsertMessages(ctx context.Context, msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	args := make([]any, 0, len(msgs)*7)
	values := make([]string, 0, len(msgs))
	for _, m := range msgs {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, m.ID, m.From, m.To, m.Text, string(m.Type), m.Time, m.CreatedAt)
	}
	// 複数行INSERTは1文なので読み手からは一括で見える
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (id, from_name, to_name, text, type, time, created_at) VALUES "+strings.Join(values, ", "),
		args...)
	return err
}

func (s *Store) ListMessages(ctx context.Context) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, from_name, to_name, text, type, time, created_at FROM messages ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var (
			m    model.Message
			kind string
		)
		if err := rows.Scan(&m.ID, &m.From, &m.To, &m.Text, &kind, &m.Time, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = model.Kind(kind)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
