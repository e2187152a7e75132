// Package interview is the session orchestrator: it sequences canonical questions,
// bounds the context sent to the interviewer model, resolves questions into
// summaries, archives their transcripts and packages completed sessions for scoring.
package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/interview-orchestrator/internal/llm"
	"github.com/jonathan/interview-orchestrator/internal/logger"
	"github.com/jonathan/interview-orchestrator/internal/prompts"
	"github.com/jonathan/interview-orchestrator/internal/questions"
	"github.com/jonathan/interview-orchestrator/internal/store"
	"github.com/jonathan/interview-orchestrator/internal/types"
)

const (
	// DefaultGenerationTimeout bounds one call to the generator
	DefaultGenerationTimeout = 30 * time.Second

	// ClosingLine is the interviewer text when the interview ends without a model reply
	ClosingLine = "Interview completed. Thank you."
)

// Options configures a Service. Zero values select the defaults.
type Options struct {
	SystemPrompt      string
	WindowTurns       int
	GenerationTimeout time.Duration
	Policy            ResolutionPolicy
	Summarizer        Summarizer
	Logger            *zap.Logger
	Provider          string
	Now               func() time.Time
	NewID             func() string
}

// Service exposes the orchestrator operations. Each session's mutations are
// serialized; different sessions proceed in parallel.
type Service struct {
	store     store.Store
	bank      *questions.Bank
	generator llm.Generator
	archiver  *Archiver
	packager  *Packager
	locks     *lockTable

	systemPrompt string
	toolPrompt   string
	windowTurns  int
	timeout      time.Duration
	policy       ResolutionPolicy
	summarizer   Summarizer
	logger       *zap.Logger
	now          func() time.Time
	newID        func() string
}

// StartRequest holds the data fixed at session start.
type StartRequest struct {
	RoleID string
	Pinned types.PinnedContext
	Rubric string
}

// StartResult identifies the new session and its first question.
type StartResult struct {
	SessionID     string
	FirstQuestion *string
}

// MessageResult is the outcome of one candidate message.
// Summary and NextQuestion are set only when the message resolved a question.
type MessageResult struct {
	AssistantText string
	NextQuestion  *string
	Summary       *types.QuestionSummary
	Status        types.SessionStatus
}

// NewService wires the orchestrator over a store and a generator.
func NewService(st store.Store, gen llm.Generator, opts Options) *Service {
	log := logger.OrNop(opts.Logger)
	if gen != nil {
		log = logger.WithModel(log, opts.Provider, gen.Model())
	}

	s := &Service{
		store:        st,
		bank:         questions.NewBank(st),
		generator:    gen,
		locks:        newLockTable(),
		systemPrompt: opts.SystemPrompt,
		windowTurns:  opts.WindowTurns,
		timeout:      opts.GenerationTimeout,
		policy:       opts.Policy,
		summarizer:   opts.Summarizer,
		logger:       log,
		now:          opts.Now,
		newID:        opts.NewID,
	}
	if s.systemPrompt == "" {
		s.systemPrompt = prompts.MustGet(prompts.Interviewer, prompts.KeySystem)
	}
	if s.windowTurns <= 0 {
		s.windowTurns = DefaultWindowTurns
	}
	if s.timeout <= 0 {
		s.timeout = DefaultGenerationTimeout
	}
	if s.policy == nil {
		s.policy = NewHeuristicPolicy(0, nil)
	}
	if len(s.policy.Tools()) > 0 {
		s.toolPrompt = prompts.MustGet(prompts.Interviewer, prompts.KeyToolInstructions)
	}
	if s.summarizer == nil {
		s.summarizer = HeuristicSummarizer{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	s.archiver = NewArchiver(st, log)
	s.packager = NewPackager(st, s.bank)
	s.packager.now = s.now
	return s
}

// Bank returns the question bank the service reads from
func (s *Service) Bank() *questions.Bank {
	return s.bank
}

// ImportQuestions replaces the role's canonical questions and returns the stored count.
// Sessions already running for the role read the new list from then on.
func (s *Service) ImportQuestions(ctx context.Context, roleID string, texts []string) (int, error) {
	n, err := s.bank.ImportQuestions(ctx, roleID, texts)
	if err != nil {
		return 0, err
	}
	s.logger.Info("questions imported", zap.String(logger.FieldRoleID, roleID), zap.Int("count", n))
	return n, nil
}

// StartSession creates an active session positioned on the role's first question.
func (s *Service) StartSession(ctx context.Context, req StartRequest) (*StartResult, error) {
	roleID := strings.TrimSpace(req.RoleID)
	if roleID == "" {
		return nil, &ValidationError{Field: "role_id", Message: "role id is required"}
	}

	qs, err := s.bank.GetQuestions(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, &NoQuestionsForRoleError{RoleID: roleID}
	}

	now := s.now().UTC()
	first := qs[0]
	session := types.Session{
		SessionID:        s.newID(),
		RoleID:           roleID,
		Status:           types.StatusActive,
		CurrentIndex:     -1,
		ActiveQuestionID: first.QuestionID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	rec := types.SessionRecord{Session: session, Pinned: req.Pinned, Rubric: req.Rubric}
	if err := s.store.CreateSession(ctx, rec); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("session started", logger.SessionFields(session.SessionID, roleID, first.QuestionID)...)
	text := first.Text
	return &StartResult{SessionID: session.SessionID, FirstQuestion: &text}, nil
}

// GetStatus returns the session's status snapshot.
func (s *Service) GetStatus(ctx context.Context, sessionID string) (types.SessionStatus, error) {
	rec, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return types.SessionStatus{}, err
	}
	return s.status(ctx, rec.Session)
}

// Score packages a completed session for the scoring models.
func (s *Service) Score(ctx context.Context, sessionID string) (*types.ScoringPayload, error) {
	payload, err := s.packager.Package(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("session packaged for scoring",
		zap.String(logger.FieldSessionID, sessionID),
		zap.Int("summaries", len(payload.QuestionSummaries)))
	return payload, nil
}

// CandidateMessage records one candidate message, asks the generator for the
// interviewer's reply and applies the resolution policy.
//
// A generation failure leaves the session as it was apart from the candidate
// turn; retrying with the same text reuses that turn instead of appending it again.
func (s *Service) CandidateMessage(ctx context.Context, sessionID, text string) (*MessageResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{Field: "text", Message: "message text is required"}
	}

	release, err := s.locks.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session := rec.Session
	if !session.IsActive() {
		return nil, &SessionNotActiveError{SessionID: sessionID}
	}

	question, session, err := s.activeQuestion(ctx, session)
	if err != nil {
		return nil, err
	}
	log := logger.WithFields(s.logger, logger.SessionFields(sessionID, session.RoleID, question.QuestionID)...)

	turns, err := s.store.LiveTurns(ctx, sessionID, question.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("load live turns: %w", err)
	}
	if isPendingRetry(turns, text) {
		log.Debug("reusing candidate turn from failed attempt")
	} else {
		turn := types.Turn{Sender: types.SenderCandidate, Text: text, Timestamp: s.now().UTC()}
		if err := s.store.AppendTurn(ctx, sessionID, question.QuestionID, turn); err != nil {
			return nil, fmt.Errorf("append candidate turn: %w", err)
		}
		turns = append(turns, turn)
	}

	summaries, err := s.store.ListSummaries(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}

	window := BuildWindow(WindowInput{
		SystemPrompt:     s.systemPrompt,
		ToolInstructions: s.toolPrompt,
		RoleID:           session.RoleID,
		Pinned:           rec.Pinned,
		Summaries:        summaries,
		Question:         *question,
		Turns:            turns,
		MaxTurns:         s.windowTurns,
	})

	reply, err := s.generate(ctx, window)
	if err != nil {
		log.Warn("generation failed", zap.Error(err))
		return nil, &GenerationError{SessionID: sessionID, Cause: err}
	}

	decision := s.policy.Decide(PolicyInput{
		QuestionID:     question.QuestionID,
		CandidateText:  text,
		CandidateTurns: types.CandidateTurns(turns),
		ToolCalls:      reply.ToolCalls,
	})

	assistantText := strings.TrimSpace(reply.Text)
	if assistantText == "" && !decision.Resolve {
		log.Warn("generator returned no interviewer text")
		return nil, &GenerationError{SessionID: sessionID, Cause: errors.New("no interviewer text returned")}
	}
	var replyTurns []types.Turn
	if assistantText != "" {
		replyTurns = append(replyTurns, types.Turn{Sender: types.SenderInterviewer, Text: assistantText, Timestamp: s.now().UTC()})
	}

	result := &MessageResult{AssistantText: assistantText}
	if decision.Resolve {
		// the reply is archived by the resolution itself, so a failed commit
		// leaves the candidate turn last and a retry reuses it
		session, err = s.resolve(ctx, log, session, *question, turns, replyTurns, decision.Outcome, result)
		if err != nil {
			return nil, err
		}
		if assistantText == "" && session.Status == types.StatusCompleted {
			result.AssistantText = ClosingLine
		}
	} else {
		for _, turn := range replyTurns {
			if err := s.store.AppendTurn(ctx, sessionID, question.QuestionID, turn); err != nil {
				return nil, fmt.Errorf("append interviewer turn: %w", err)
			}
		}
	}

	result.Status, err = s.status(ctx, session)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// activeQuestion returns the session's active question, pulling the next one
// when none is set or the set one is no longer in the role's list.
func (s *Service) activeQuestion(ctx context.Context, session types.Session) (*types.Question, types.Session, error) {
	if session.ActiveQuestionID != "" {
		q, err := s.bank.Active(ctx, session)
		if err != nil {
			return nil, session, err
		}
		if q != nil {
			return q, session, nil
		}
		// the role was re-imported without this question; continue from the new list
		s.logger.Warn("active question left the question list",
			append(logger.SessionFields(session.SessionID, session.RoleID, session.ActiveQuestionID),
				zap.Int("current_index", session.CurrentIndex))...)
		session.ActiveQuestionID = ""
	}

	next, err := s.bank.GetNext(ctx, session)
	if err != nil {
		return nil, session, err
	}
	if next == nil {
		return nil, session, &NoQuestionsRemainError{SessionID: session.SessionID}
	}
	session.ActiveQuestionID = next.QuestionID
	session.UpdatedAt = s.now().UTC()
	if err := s.store.SaveSession(ctx, session); err != nil {
		return nil, session, fmt.Errorf("save session: %w", err)
	}
	return next, session, nil
}

func (s *Service) generate(ctx context.Context, window []llm.Message) (*llm.Result, error) {
	if s.generator == nil {
		return nil, errors.New("no generator configured")
	}
	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, err := s.generator.Generate(genCtx, window, s.policy.Tools())
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, errors.New("generator returned no result")
	}
	return reply, nil
}

// resolve summarizes the question, then commits archive, summary and the
// advanced session together.
func (s *Service) resolve(ctx context.Context, log *zap.Logger, session types.Session, question types.Question, turns, reply []types.Turn, outcome types.Outcome, result *MessageResult) (types.Session, error) {
	now := s.now().UTC()

	sumCtx, cancel := context.WithTimeout(ctx, s.timeout)
	summary, err := s.summarizer.Summarize(sumCtx, SummaryInput{
		Question: question,
		Turns:    append(append([]types.Turn(nil), turns...), reply...),
		Outcome:  outcome,
		At:       now,
	})
	cancel()
	if err != nil {
		return session, fmt.Errorf("summarize question %s: %w", question.QuestionID, err)
	}

	advanced := session
	advanced.CurrentIndex++
	advanced.ActiveQuestionID = ""
	advanced.UpdatedAt = now

	next, err := s.bank.GetNext(ctx, advanced)
	if err != nil {
		return session, err
	}
	if next != nil {
		advanced.ActiveQuestionID = next.QuestionID
		text := next.Text
		result.NextQuestion = &text
	} else {
		advanced.Status = types.StatusCompleted
		advanced.CompletedAt = &now
	}

	if _, err := s.archiver.Resolve(ctx, store.Resolution{
		Session:    advanced,
		QuestionID: question.QuestionID,
		Summary:    summary,
		FinalTurns: reply,
	}); err != nil {
		return session, err
	}

	result.Summary = &summary
	log.Info("question resolved",
		zap.String("outcome", string(outcome)),
		zap.Float64("confidence", summary.Confidence),
		zap.Int("current_index", advanced.CurrentIndex))
	if advanced.Status == types.StatusCompleted {
		log.Info("session completed")
	}
	return advanced, nil
}

func (s *Service) loadSession(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	rec, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &SessionNotFoundError{SessionID: sessionID}
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return rec, nil
}

func (s *Service) status(ctx context.Context, session types.Session) (types.SessionStatus, error) {
	summaries, err := s.store.ListSummaries(ctx, session.SessionID)
	if err != nil {
		return types.SessionStatus{}, fmt.Errorf("list summaries: %w", err)
	}
	return session.Snapshot(len(summaries)), nil
}

// isPendingRetry reports whether the newest live turn is an unanswered
// candidate turn with the same text.
func isPendingRetry(turns []types.Turn, text string) bool {
	if len(turns) == 0 {
		return false
	}
	last := turns[len(turns)-1]
	return last.Sender == types.SenderCandidate && last.Text == text
}
