// Package store keeps session payloads and ranking submissions in Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var ErrNotFound = errors.New("not found")

type Session struct {
	ID        string
	Payload   json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

type RankingSubmission struct {
	ID          string
	SessionID   string
	SubmittedBy string
	Ranking     []string
	CreatedAt   time.Time
}

// Open connects with the pgx driver through database/sql.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(10)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveSession inserts or replaces the payload of a session.
func (s *PostgresStore) SaveSession(ctx context.Context, id string, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, payload)
		VALUES ($1, $2::jsonb)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()
	`, id, string(payload))
	if err != nil {
		return fmt.Errorf("save session %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (Session, error) {
	var session Session
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, payload::text, created_at, updated_at FROM sessions WHERE id = $1
	`, id).Scan(&session.ID, &payload, &session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session %s: %w", id, err)
	}
	session.Payload = json.RawMessage(payload)
	return session, nil
}

// ListSessionIDs returns session ids, most recently updated first.
func (s *PostgresStore) ListSessionIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertRankingSubmission stores a ranking and fills in its id and timestamp.
func (s *PostgresStore) InsertRankingSubmission(ctx context.Context, sub *RankingSubmission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	ranking, err := json.Marshal(sub.Ranking)
	if err != nil {
		return fmt.Errorf("marshal ranking: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO ranking_submissions (id, session_id, submitted_by, ranking)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING created_at
	`, sub.ID, sub.SessionID, sub.SubmittedBy, string(ranking)).Scan(&sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ranking submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRankingSubmissions(ctx context.Context, sessionID string) ([]RankingSubmission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, submitted_by, ranking::text, created_at
		FROM ranking_submissions
		WHERE session_id = $1
		ORDER BY created_at, id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list ranking submissions: %w", err)
	}
	defer rows.Close()

	out := []RankingSubmission{}
	for rows.Next() {
		var sub RankingSubmission
		var ranking string
		if err := rows.Scan(&sub.ID, &sub.SessionID, &sub.SubmittedBy, &ranking, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ranking submission: %w", err)
		}
		if err := json.Unmarshal([]byte(ranking), &sub.Ranking); err != nil {
			return nil, fmt.Errorf("decode ranking %s: %w", sub.ID, err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}
