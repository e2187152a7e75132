// Package db provides the durable store.Store adapters: PostgreSQL through pgx and
// SQLite or PostgreSQL through gorm.
package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/interview-orchestrator/internal/store"
	"github.com/jonathan/interview-orchestrator/internal/types"
)

//go:embed schema.sql
var schemaSQL string

// DB wraps a PostgreSQL connection pool and implements store.Store
type DB struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*DB)(nil)

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Migrate creates the tables and indexes if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (db *DB) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}

// ReplaceQuestions swaps the role's question list in one transaction
func (db *DB) ReplaceQuestions(ctx context.Context, roleID string, questions []types.Question) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to clear questions: %w", err)
	}

	if len(questions) > 0 {
		batch := &pgx.Batch{}
		for _, q := range questions {
			batch.Queue(
				`INSERT INTO questions (role_id, question_id, order_index, question_text)
				 VALUES ($1, $2, $3, $4)`,
				roleID, q.QuestionID, q.OrderIndex, q.Text,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert questions: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit questions: %w", err)
	}
	return nil
}

// ListQuestions returns the role's questions ordered by order_index
func (db *DB) ListQuestions(ctx context.Context, roleID string) ([]types.Question, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT role_id, question_id, order_index, question_text
		 FROM questions WHERE role_id = $1 ORDER BY order_index`,
		roleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	questions := []types.Question{}
	for rows.Next() {
		var q types.Question
		if err := rows.Scan(&q.RoleID, &q.QuestionID, &q.OrderIndex, &q.Text); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// CreateSession inserts a new session; an existing id yields store.ErrSessionExists
func (db *DB) CreateSession(ctx context.Context, rec types.SessionRecord) error {
	pinned, err := json.Marshal(rec.Pinned)
	if err != nil {
		return fmt.Errorf("failed to marshal pinned context: %w", err)
	}

	s := rec.Session
	tag, err := db.pool.Exec(ctx,
		`INSERT INTO sessions (session_id, role_id, status, current_index, active_question_id,
		                       pinned_context, rubric, created_at, updated_at, completed_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)
		 ON CONFLICT (session_id) DO NOTHING`,
		s.SessionID, s.RoleID, string(s.Status), s.CurrentIndex, s.ActiveQuestionID,
		pinned, rec.Rubric, s.CreatedAt, s.UpdatedAt, s.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrSessionExists, s.SessionID)
	}
	return nil
}

// GetSession loads a session record
func (db *DB) GetSession(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	var rec types.SessionRecord
	var status string
	var pinned []byte
	err := db.pool.QueryRow(ctx,
		`SELECT session_id, role_id, status, current_index, COALESCE(active_question_id, ''),
		        pinned_context, rubric, created_at, updated_at, completed_at
		 FROM sessions WHERE session_id = $1`,
		sessionID,
	).Scan(
		&rec.Session.SessionID, &rec.Session.RoleID, &status, &rec.Session.CurrentIndex,
		&rec.Session.ActiveQuestionID, &pinned, &rec.Rubric,
		&rec.Session.CreatedAt, &rec.Session.UpdatedAt, &rec.Session.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	rec.Session.Status = types.SessionState(status)
	if err := json.Unmarshal(pinned, &rec.Pinned); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pinned context: %w", err)
	}
	return &rec, nil
}

// SaveSession overwrites the mutable session columns
func (db *DB) SaveSession(ctx context.Context, session types.Session) error {
	return saveSession(ctx, db.pool, session)
}

// execer is satisfied by both the pool and a transaction
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func saveSession(ctx context.Context, q execer, s types.Session) error {
	tag, err := q.Exec(ctx,
		`UPDATE sessions
		 SET status = $2, current_index = $3, active_question_id = NULLIF($4, ''),
		     updated_at = $5, completed_at = $6
		 WHERE session_id = $1`,
		s.SessionID, string(s.Status), s.CurrentIndex, s.ActiveQuestionID, s.UpdatedAt, s.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AppendTurn adds a live turn unless the question's transcript is already archived.
// The session row is share-locked so the append cannot interleave with a Resolve
// of the same session running in another process.
func (db *DB) AppendTurn(ctx context.Context, sessionID, questionID string, turn types.Turn) error {
	if err := store.ValidateKey(sessionID, questionID); err != nil {
		return err
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockSession(ctx, tx, sessionID, "FOR SHARE"); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO live_turns (session_id, question_id, sender, text, ts)
		 SELECT $1, $2, $3, $4, $5
		 WHERE NOT EXISTS (
		     SELECT 1 FROM archived_transcripts WHERE session_id = $1 AND question_id = $2
		 )`,
		sessionID, questionID, string(turn.Sender), turn.Text, turn.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrAlreadyArchived
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit turn: %w", err)
	}
	return nil
}

// lockSession takes a row lock on the session; strength is "FOR SHARE" or "FOR UPDATE"
func lockSession(ctx context.Context, tx pgx.Tx, sessionID, strength string) error {
	var locked string
	err := tx.QueryRow(ctx,
		`SELECT session_id FROM sessions WHERE session_id = $1 `+strength, sessionID,
	).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock session: %w", err)
	}
	return nil
}

// LiveTurns returns the live turns of a question in append order
func (db *DB) LiveTurns(ctx context.Context, sessionID, questionID string) ([]types.Turn, error) {
	return liveTurns(ctx, db.pool, sessionID, questionID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func liveTurns(ctx context.Context, q querier, sessionID, questionID string) ([]types.Turn, error) {
	rows, err := q.Query(ctx,
		`SELECT sender, text, ts FROM live_turns
		 WHERE session_id = $1 AND question_id = $2 ORDER BY id`,
		sessionID, questionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list live turns: %w", err)
	}
	defer rows.Close()

	turns := []types.Turn{}
	for rows.Next() {
		var t types.Turn
		var sender string
		if err := rows.Scan(&sender, &t.Text, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Sender = types.Sender(sender)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// ArchivedTurns returns the archived transcript of a question
func (db *DB) ArchivedTurns(ctx context.Context, sessionID, questionID string) ([]types.Turn, error) {
	var raw []byte
	err := db.pool.QueryRow(ctx,
		`SELECT turns FROM archived_transcripts WHERE session_id = $1 AND question_id = $2`,
		sessionID, questionID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get archived transcript: %w", err)
	}

	turns := []types.Turn{}
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal archived transcript: %w", err)
	}
	return turns, nil
}

// ListSummaries returns the session's summaries in resolution order
func (db *DB) ListSummaries(ctx context.Context, sessionID string) ([]types.QuestionSummary, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT summary FROM question_summaries WHERE session_id = $1 ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	defer rows.Close()

	summaries := []types.QuestionSummary{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		var summary types.QuestionSummary
		if err := json.Unmarshal(raw, &summary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// Resolve archives the live turns, appends the summary and saves the session in one transaction.
// The session row is locked first so concurrent resolutions of one session serialize.
func (db *DB) Resolve(ctx context.Context, res store.Resolution) (int, error) {
	sessionID := res.Session.SessionID
	if err := store.ValidateKey(sessionID, res.QuestionID); err != nil {
		return 0, err
	}
	summary, err := json.Marshal(res.Summary)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal summary: %w", err)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockSession(ctx, tx, sessionID, "FOR UPDATE"); err != nil {
		return 0, err
	}

	var archived bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM archived_transcripts WHERE session_id = $1 AND question_id = $2)`,
		sessionID, res.QuestionID,
	).Scan(&archived)
	if err != nil {
		return 0, fmt.Errorf("failed to check archive: %w", err)
	}
	if archived {
		return 0, store.ErrAlreadyArchived
	}

	turns, err := liveTurns(ctx, tx, sessionID, res.QuestionID)
	if err != nil {
		return 0, err
	}
	turns = append(turns, res.FinalTurns...)
	turnsJSON, err := json.Marshal(turns)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal transcript: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO archived_transcripts (session_id, question_id, turns) VALUES ($1, $2, $3)`,
		sessionID, res.QuestionID, turnsJSON,
	); err != nil {
		return 0, fmt.Errorf("failed to archive transcript: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM live_turns WHERE session_id = $1 AND question_id = $2`,
		sessionID, res.QuestionID,
	); err != nil {
		return 0, fmt.Errorf("failed to clear live turns: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO question_summaries (session_id, seq, question_id, outcome, summary)
		 SELECT $1, COALESCE(MAX(seq), -1) + 1, $2, $3, $4
		 FROM question_summaries WHERE session_id = $1`,
		sessionID, res.Summary.QuestionID, string(res.Summary.Outcome), summary,
	); err != nil {
		return 0, fmt.Errorf("failed to insert summary: %w", err)
	}

	if err := saveSession(ctx, tx, res.Session); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit resolution: %w", err)
	}
	return len(turns), nil
}
