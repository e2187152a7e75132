package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonathan/interview-orchestrator/internal/types"
)

type questionRow struct {
	RoleID     string `gorm:"primaryKey;size:191"`
	QuestionID string `gorm:"primaryKey;size:191"`
	OrderIndex int    `gorm:"not null;index:idx_questions_role_order"`
	Text       string `gorm:"column:question_text;not null"`
}

func (questionRow) TableName() string {
	return "questions"
}

type sessionRow struct {
	SessionID        string  `gorm:"primaryKey;size:191"`
	RoleID           string  `gorm:"size:191;not null"`
	Status           string  `gorm:"size:32;not null"`
	CurrentIndex     int     `gorm:"not null"`
	ActiveQuestionID *string `gorm:"size:191"`
	PinnedContext    string  `gorm:"not null"`
	Rubric           string
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
	CompletedAt      *time.Time
}

func (sessionRow) TableName() string {
	return "sessions"
}

type turnRow struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	SessionID  string    `gorm:"size:191;not null;index:idx_live_turns_key"`
	QuestionID string    `gorm:"size:191;not null;index:idx_live_turns_key"`
	Sender     string    `gorm:"size:32;not null"`
	Text       string    `gorm:"not null"`
	Timestamp  time.Time `gorm:"column:ts;not null"`
}

func (turnRow) TableName() string {
	return "live_turns"
}

type archiveRow struct {
	SessionID  string    `gorm:"primaryKey;size:191"`
	QuestionID string    `gorm:"primaryKey;size:191"`
	TurnsJSON  string    `gorm:"column:turns;not null"`
	ArchivedAt time.Time `gorm:"not null"`
}

func (archiveRow) TableName() string {
	return "archived_transcripts"
}

type summaryRow struct {
	SessionID   string `gorm:"primaryKey;size:191;uniqueIndex:idx_summary_question"`
	Seq         int    `gorm:"primaryKey;autoIncrement:false"`
	QuestionID  string `gorm:"size:191;not null;uniqueIndex:idx_summary_question"`
	Outcome     string `gorm:"size:32;not null"`
	SummaryJSON string `gorm:"column:summary;not null"`
}

func (summaryRow) TableName() string {
	return "question_summaries"
}

func sessionRowFromRecord(rec types.SessionRecord) (sessionRow, error) {
	pinned, err := json.Marshal(rec.Pinned)
	if err != nil {
		return sessionRow{}, fmt.Errorf("marshal pinned context: %w", err)
	}
	s := rec.Session
	return sessionRow{
		SessionID:        s.SessionID,
		RoleID:           s.RoleID,
		Status:           string(s.Status),
		CurrentIndex:     s.CurrentIndex,
		ActiveQuestionID: nullableString(s.ActiveQuestionID),
		PinnedContext:    string(pinned),
		Rubric:           rec.Rubric,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
		CompletedAt:      s.CompletedAt,
	}, nil
}

func (r sessionRow) toRecord() (*types.SessionRecord, error) {
	rec := &types.SessionRecord{
		Session: types.Session{
			SessionID:    r.SessionID,
			RoleID:       r.RoleID,
			Status:       types.SessionState(r.Status),
			CurrentIndex: r.CurrentIndex,
			CreatedAt:    r.CreatedAt,
			UpdatedAt:    r.UpdatedAt,
			CompletedAt:  r.CompletedAt,
		},
		Rubric: r.Rubric,
	}
	if r.ActiveQuestionID != nil {
		rec.Session.ActiveQuestionID = *r.ActiveQuestionID
	}
	if err := json.Unmarshal([]byte(r.PinnedContext), &rec.Pinned); err != nil {
		return nil, fmt.Errorf("unmarshal pinned context: %w", err)
	}
	return rec, nil
}

// sessionUpdates lists the columns SaveSession may change
func sessionUpdates(s types.Session) map[string]any {
	return map[string]any{
		"status":             string(s.Status),
		"current_index":      s.CurrentIndex,
		"active_question_id": nullableString(s.ActiveQuestionID),
		"updated_at":         s.UpdatedAt,
		"completed_at":       s.CompletedAt,
	}
}

func (r turnRow) toTurn() types.Turn {
	return types.Turn{Sender: types.Sender(r.Sender), Text: r.Text, Timestamp: r.Timestamp}
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
