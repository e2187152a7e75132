package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/jonathan/interview-orchestrator/internal/llm"
	"github.com/jonathan/interview-orchestrator/internal/logger"
	"github.com/jonathan/interview-orchestrator/internal/prompts"
	"github.com/jonathan/interview-orchestrator/internal/schemas"
	"github.com/jonathan/interview-orchestrator/internal/types"
)

const (
	// SkippedConfidence is the confidence of every skipped summary, below the answered band
	SkippedConfidence = 0.2
	// Answered summaries carry a confidence within [MinAnsweredConfidence, MaxAnsweredConfidence]
	MinAnsweredConfidence = 0.5
	MaxAnsweredConfidence = 0.9

	maxEvidenceSnippets = 2
	maxEvidenceWords    = 30
	maxBulletWords      = 25
	notStated           = "not stated"
)

// SummaryInput is a resolved question with its live turns.
type SummaryInput struct {
	Question types.Question
	Turns    []types.Turn
	Outcome  types.Outcome
	At       time.Time
}

// Summarizer converts a resolved question's turns into a QuestionSummary.
type Summarizer interface {
	Summarize(ctx context.Context, in SummaryInput) (types.QuestionSummary, error)
}

// facet is one aspect an answered summary reports on
type facet struct {
	label    string
	keywords []string
	digits   bool
}

var answerFacets = []facet{
	{label: "Scope", keywords: []string{"team", "led", "owned", "my role", "engineers", "people", "week", "month", "quarter", "year", "timeline"}},
	{label: "Tools", keywords: []string{"using", "used", "built with", "go", "golang", "python", "java", "kubernetes", "docker", "postgres", "sql", "redis", "kafka", "aws", "gcp", "azure", "terraform", "react", "spark"}},
	{label: "Metrics/outcome", keywords: []string{"%", "percent", "reduced", "increased", "improved", "cut", "saved", "latency", "revenue", "cost", "outcome", "result"}, digits: true},
	{label: "Trade-offs", keywords: []string{"trade-off", "tradeoff", "trade off", "instead", "however", "downside", "lesson", "learned", "differently", "in hindsight"}},
}

// HeuristicSummarizer builds summaries from candidate turns without calling a model.
type HeuristicSummarizer struct{}

// Summarize implements Summarizer
func (HeuristicSummarizer) Summarize(_ context.Context, in SummaryInput) (types.QuestionSummary, error) {
	summary := types.QuestionSummary{
		QuestionID:       in.Question.QuestionID,
		Outcome:          in.Outcome,
		EvidenceSnippets: []string{},
		Timestamp:        in.At,
	}

	if in.Outcome == types.OutcomeSkipped {
		summary.Bullets = []string{
			"Candidate chose to skip this question.",
			"No example or supporting detail was provided.",
			"Topic may be revisited in a follow-up conversation.",
		}
		summary.Confidence = SkippedConfidence
		return summary, nil
	}

	answers := candidateTexts(in.Turns)
	sentences := splitSentences(strings.Join(answers, "\n"))

	example := notStated
	if len(sentences) > 0 {
		example = clipWords(sentences[0], maxBulletWords)
	}
	summary.Bullets = append(summary.Bullets, "Example: "+example)

	found := 0
	for _, f := range answerFacets {
		value := notStated
		if s := f.match(sentences); s != "" {
			value = clipWords(s, maxBulletWords)
			found++
		}
		summary.Bullets = append(summary.Bullets, f.label+": "+value)
	}
	if example != notStated {
		found++
	}

	summary.EvidenceSnippets = evidenceSnippets(answers)
	summary.Confidence = answeredConfidence(float64(found) / float64(len(answerFacets)+1))
	return summary, nil
}

func (f facet) match(sentences []string) string {
	for _, s := range sentences {
		lower := " " + strings.ToLower(s) + " "
		if f.digits && strings.IndexFunc(s, unicode.IsDigit) >= 0 {
			return s
		}
		for _, kw := range f.keywords {
			if containsWord(lower, kw) {
				return s
			}
		}
	}
	return ""
}

// containsWord matches kw at word boundaries; symbolic keywords match anywhere.
func containsWord(lower, kw string) bool {
	if !unicode.IsLetter(rune(kw[0])) {
		return strings.Contains(lower, kw)
	}
	for idx := 0; ; {
		i := strings.Index(lower[idx:], kw)
		if i < 0 {
			return false
		}
		start, end := idx+i, idx+i+len(kw)
		if !isWordByte(lower[start-1]) && (end >= len(lower) || !isWordByte(lower[end])) {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b == '-' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// answeredConfidence maps a coverage ratio in [0,1] into the answered band.
func answeredConfidence(ratio float64) float64 {
	ratio = math.Max(0, math.Min(1, ratio))
	c := MinAnsweredConfidence + ratio*(MaxAnsweredConfidence-MinAnsweredConfidence)
	return math.Round(c*100) / 100
}

func clampAnswered(c float64) float64 {
	return math.Max(MinAnsweredConfidence, math.Min(MaxAnsweredConfidence, c))
}

func candidateTexts(turns []types.Turn) []string {
	var out []string
	for _, t := range turns {
		if t.Sender != types.SenderCandidate {
			continue
		}
		if text := strings.TrimSpace(t.Text); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	}) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clipWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + "..."
}

// wordPrefix returns the verbatim prefix of s holding at most n words.
func wordPrefix(s string, n int) string {
	s = strings.TrimSpace(s)
	words, inWord := 0, false
	for i, r := range s {
		if unicode.IsSpace(r) {
			if inWord && words == n {
				return s[:i]
			}
			inWord = false
			continue
		}
		if !inWord {
			words++
			inWord = true
		}
	}
	return s
}

func evidenceSnippets(answers []string) []string {
	out := make([]string, 0, maxEvidenceSnippets)
	for _, a := range answers {
		if len(out) == maxEvidenceSnippets {
			break
		}
		out = append(out, wordPrefix(a, maxEvidenceWords))
	}
	return out
}

// ModelSummarizer asks the generator for a JSON summary of answered questions
// and falls back to the heuristic whenever the output is unusable.
type ModelSummarizer struct {
	Generator llm.Generator
	Fallback  Summarizer
	Logger    *zap.Logger
}

// NewModelSummarizer creates a model-backed summarizer with a heuristic fallback
func NewModelSummarizer(gen llm.Generator, log *zap.Logger) *ModelSummarizer {
	return &ModelSummarizer{Generator: gen, Fallback: HeuristicSummarizer{}, Logger: logger.OrNop(log)}
}

type summaryDraft struct {
	Bullets          []string `json:"bullet_summary"`
	EvidenceSnippets []string `json:"evidence_snippets"`
	Confidence       float64  `json:"confidence"`
}

// Summarize implements Summarizer. Skipped questions never call the model.
func (s *ModelSummarizer) Summarize(ctx context.Context, in SummaryInput) (types.QuestionSummary, error) {
	if in.Outcome == types.OutcomeSkipped || s.Generator == nil {
		return s.Fallback.Summarize(ctx, in)
	}

	summary, err := s.fromModel(ctx, in)
	if err != nil {
		logger.OrNop(s.Logger).Warn("model summary rejected, using heuristic",
			zap.String(logger.FieldQuestionID, in.Question.QuestionID),
			zap.String(logger.FieldModel, s.Generator.Model()),
			zap.Error(err))
		return s.Fallback.Summarize(ctx, in)
	}
	return summary, nil
}

func (s *ModelSummarizer) fromModel(ctx context.Context, in SummaryInput) (types.QuestionSummary, error) {
	prompt, err := prompts.Get(prompts.Interviewer, prompts.KeySummarize)
	if err != nil {
		return types.QuestionSummary{}, err
	}
	prompt = prompts.Format(prompt, map[string]string{
		"Question":   in.Question.Text,
		"Outcome":    string(in.Outcome),
		"Transcript": formatTranscript(in.Turns),
	})

	res, err := s.Generator.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, nil)
	if err != nil {
		return types.QuestionSummary{}, fmt.Errorf("generate summary: %w", err)
	}

	raw := llm.CleanJSONBlock(res.Text)
	if err := schemas.Validate(schemas.QuestionSummary, []byte(raw)); err != nil {
		return types.QuestionSummary{}, err
	}
	var draft summaryDraft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return types.QuestionSummary{}, fmt.Errorf("decode summary: %w", err)
	}

	return types.QuestionSummary{
		QuestionID:       in.Question.QuestionID,
		Outcome:          in.Outcome,
		Bullets:          draft.Bullets,
		EvidenceSnippets: verbatimSnippets(draft.EvidenceSnippets, candidateTexts(in.Turns)),
		Confidence:       clampAnswered(draft.Confidence),
		Timestamp:        in.At,
	}, nil
}

// verbatimSnippets keeps snippets that appear in a candidate answer and fit the word limit.
func verbatimSnippets(snippets, answers []string) []string {
	out := make([]string, 0, maxEvidenceSnippets)
	for _, snippet := range snippets {
		snippet = strings.TrimSpace(snippet)
		if snippet == "" || len(strings.Fields(snippet)) > maxEvidenceWords {
			continue
		}
		for _, a := range answers {
			if strings.Contains(a, snippet) {
				out = append(out, snippet)
				break
			}
		}
		if len(out) == maxEvidenceSnippets {
			break
		}
	}
	return out
}

func formatTranscript(turns []types.Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString(string(t.Sender))
		sb.WriteString(": ")
		sb.WriteString(strings.TrimSpace(t.Text))
		sb.WriteString("\n")
	}
	return sb.String()
}
