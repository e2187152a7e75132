package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqliteDriver "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/jonathan/interview-orchestrator/internal/store"
	"github.com/jonathan/interview-orchestrator/internal/types"
)

// Supported gorm drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultSQLitePath is used when the sqlite driver is selected without a DSN
const DefaultSQLitePath = "interviews.db"

// OpenGorm opens a gorm connection for the given driver, defaulting to sqlite.
func OpenGorm(driver, dsn string) (*gorm.DB, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		driver = DriverSQLite
	}
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		if driver != DriverSQLite {
			return nil, fmt.Errorf("dsn is required for driver %q", driver)
		}
		dsn = DefaultSQLitePath
	}

	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	switch driver {
	case DriverSQLite:
		if err := ensureSQLiteDirectory(dsn); err != nil {
			return nil, err
		}
		gdb, err := gorm.Open(sqliteDriver.Open(dsn), cfg)
		if err != nil {
			return nil, err
		}
		// sqlite allows one writer; a single connection avoids SQLITE_BUSY under load
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return gdb, nil
	case DriverPostgres:
		return gorm.Open(postgres.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

func ensureSQLiteDirectory(dsn string) error {
	path, ok := sqliteFilePath(dsn)
	if !ok {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sqlite db dir: %w", err)
	}
	return nil
}

// sqliteFilePath extracts the on-disk path of a sqlite DSN; in-memory DSNs report false.
func sqliteFilePath(dsn string) (string, bool) {
	raw := strings.TrimSpace(dsn)
	lower := strings.ToLower(raw)
	if raw == "" || lower == ":memory:" || strings.HasPrefix(lower, "file::memory:") {
		return "", false
	}
	if !strings.HasPrefix(lower, "file:") {
		return stripQuery(raw), true
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return stripQuery(strings.TrimPrefix(raw, "file:")), true
	}
	if strings.EqualFold(parsed.Query().Get("mode"), "memory") {
		return "", false
	}
	if parsed.Path != "" {
		return parsed.Path, true
	}
	if parsed.Opaque != "" {
		return stripQuery(parsed.Opaque), true
	}
	return "", false
}

func stripQuery(v string) string {
	if i := strings.Index(v, "?"); i >= 0 {
		return v[:i]
	}
	return v
}

// GormStore implements store.Store on top of gorm
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ store.Store = (*GormStore)(nil)

// NewGormStore opens the database and migrates the schema
func NewGormStore(driver, dsn string) (*GormStore, error) {
	gormDB, err := OpenGorm(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open gorm store: %w", err)
	}

	s := &GormStore{db: gormDB, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate gorm store: %w", err)
	}
	return s, nil
}

func (s *GormStore) migrate() error {
	return s.db.AutoMigrate(&questionRow{}, &sessionRow{}, &turnRow{}, &archiveRow{}, &summaryRow{})
}

// Close releases the underlying connection pool
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) ReplaceQuestions(ctx context.Context, roleID string, questions []types.Question) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", roleID).Delete(&questionRow{}).Error; err != nil {
			return fmt.Errorf("clear questions: %w", err)
		}
		if len(questions) == 0 {
			return nil
		}
		rows := make([]questionRow, 0, len(questions))
		for _, q := range questions {
			rows = append(rows, questionRow{RoleID: roleID, QuestionID: q.QuestionID, OrderIndex: q.OrderIndex, Text: q.Text})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}
		return nil
	})
}

func (s *GormStore) ListQuestions(ctx context.Context, roleID string) ([]types.Question, error) {
	var rows []questionRow
	if err := s.db.WithContext(ctx).Where("role_id = ?", roleID).Order("order_index").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	out := make([]types.Question, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.Question{RoleID: r.RoleID, QuestionID: r.QuestionID, OrderIndex: r.OrderIndex, Text: r.Text})
	}
	return out, nil
}

func (s *GormStore) CreateSession(ctx context.Context, rec types.SessionRecord) error {
	row, err := sessionRowFromRecord(rec)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		return fmt.Errorf("create session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", store.ErrSessionExists, rec.Session.SessionID)
	}
	return nil
}

func (s *GormStore) GetSession(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return row.toRecord()
}

func (s *GormStore) SaveSession(ctx context.Context, session types.Session) error {
	return saveSessionRow(s.db.WithContext(ctx), session)
}

func saveSessionRow(tx *gorm.DB, session types.Session) error {
	result := tx.Model(&sessionRow{}).
		Where("session_id = ?", session.SessionID).
		Updates(sessionUpdates(session))
	if result.Error != nil {
		return fmt.Errorf("save session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *GormStore) AppendTurn(ctx context.Context, sessionID, questionID string, turn types.Turn) error {
	if err := store.ValidateKey(sessionID, questionID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == DriverPostgres {
			var current sessionRow
			err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
				Where("session_id = ?", sessionID).Take(&current).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return store.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("lock session: %w", err)
			}
		}
		archived, err := isArchived(tx, sessionID, questionID)
		if err != nil {
			return err
		}
		if archived {
			return store.ErrAlreadyArchived
		}
		row := turnRow{
			SessionID:  sessionID,
			QuestionID: questionID,
			Sender:     string(turn.Sender),
			Text:       turn.Text,
			Timestamp:  turn.Timestamp,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("append turn: %w", err)
		}
		return nil
	})
}

func (s *GormStore) LiveTurns(ctx context.Context, sessionID, questionID string) ([]types.Turn, error) {
	return liveTurnRows(s.db.WithContext(ctx), sessionID, questionID)
}

func liveTurnRows(tx *gorm.DB, sessionID, questionID string) ([]types.Turn, error) {
	var rows []turnRow
	err := tx.Where("session_id = ? AND question_id = ?", sessionID, questionID).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list live turns: %w", err)
	}
	turns := make([]types.Turn, 0, len(rows))
	for _, r := range rows {
		turns = append(turns, r.toTurn())
	}
	return turns, nil
}

func (s *GormStore) ArchivedTurns(ctx context.Context, sessionID, questionID string) ([]types.Turn, error) {
	var row archiveRow
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND question_id = ?", sessionID, questionID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get archived transcript: %w", err)
	}
	turns := []types.Turn{}
	if err := json.Unmarshal([]byte(row.TurnsJSON), &turns); err != nil {
		return nil, fmt.Errorf("unmarshal archived transcript: %w", err)
	}
	return turns, nil
}

func (s *GormStore) ListSummaries(ctx context.Context, sessionID string) ([]types.QuestionSummary, error) {
	var rows []summaryRow
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	out := make([]types.QuestionSummary, 0, len(rows))
	for _, r := range rows {
		var summary types.QuestionSummary
		if err := json.Unmarshal([]byte(r.SummaryJSON), &summary); err != nil {
			return nil, fmt.Errorf("unmarshal summary: %w", err)
		}
		out = append(out, summary)
	}
	return out, nil
}

// Resolve performs the archive, summary append and session save in one transaction.
func (s *GormStore) Resolve(ctx context.Context, res store.Resolution) (int, error) {
	sessionID := res.Session.SessionID
	if err := store.ValidateKey(sessionID, res.QuestionID); err != nil {
		return 0, err
	}
	summaryJSON, err := json.Marshal(res.Summary)
	if err != nil {
		return 0, fmt.Errorf("marshal summary: %w", err)
	}

	var moved int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lookup := tx.Where("session_id = ?", sessionID)
		if tx.Dialector.Name() == DriverPostgres {
			lookup = lookup.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var current sessionRow
		if err := lookup.Take(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return store.ErrNotFound
			}
			return fmt.Errorf("lock session: %w", err)
		}

		archived, err := isArchived(tx, sessionID, res.QuestionID)
		if err != nil {
			return err
		}
		if archived {
			return store.ErrAlreadyArchived
		}

		turns, err := liveTurnRows(tx, sessionID, res.QuestionID)
		if err != nil {
			return err
		}
		turns = append(turns, res.FinalTurns...)
		turnsJSON, err := json.Marshal(turns)
		if err != nil {
			return fmt.Errorf("marshal transcript: %w", err)
		}

		archive := archiveRow{
			SessionID:  sessionID,
			QuestionID: res.QuestionID,
			TurnsJSON:  string(turnsJSON),
			ArchivedAt: s.now(),
		}
		if err := tx.Create(&archive).Error; err != nil {
			return fmt.Errorf("archive transcript: %w", err)
		}
		if err := tx.Where("session_id = ? AND question_id = ?", sessionID, res.QuestionID).
			Delete(&turnRow{}).Error; err != nil {
			return fmt.Errorf("clear live turns: %w", err)
		}

		var maxSeq int
		if err := tx.Model(&summaryRow{}).
			Where("session_id = ?", sessionID).
			Select("COALESCE(MAX(seq), -1)").
			Scan(&maxSeq).Error; err != nil {
			return fmt.Errorf("summary sequence lookup: %w", err)
		}
		summary := summaryRow{
			SessionID:   sessionID,
			Seq:         maxSeq + 1,
			QuestionID:  res.Summary.QuestionID,
			Outcome:     string(res.Summary.Outcome),
			SummaryJSON: string(summaryJSON),
		}
		if err := tx.Create(&summary).Error; err != nil {
			return fmt.Errorf("insert summary: %w", err)
		}

		if err := saveSessionRow(tx, res.Session); err != nil {
			return err
		}
		moved = len(turns)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

func isArchived(tx *gorm.DB, sessionID, questionID string) (bool, error) {
	var count int64
	err := tx.Model(&archiveRow{}).
		Where("session_id = ? AND question_id = ?", sessionID, questionID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check archive: %w", err)
	}
	return count > 0, nil
}
