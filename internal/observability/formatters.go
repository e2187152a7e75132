// Package observability provides formatted terminal output for the interactive chat.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/interview-orchestrator/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// maxEvidenceToShow caps evidence snippets per summary
	maxEvidenceToShow = 2
)

// Printer writes interview progress and results for a human reader
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content, wrapping long lines
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	inner := boxWidth - 4
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(title, inner))
	fmt.Fprintf(p.out, "├%s┤\n", border)
	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		for _, part := range wrap(line, inner) {
			fmt.Fprintf(p.out, "│ %s │\n", pad(part, inner))
		}
	}
	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintQuestion announces a canonical question
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintQuestion(index int, text string) {
	fmt.Fprintf(p.out, "\n── Question %d ──\n%s\n", index+1, text)
}

// PrintInterviewer prints one interviewer reply
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintInterviewer(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	fmt.Fprintf(p.out, "Interviewer: %s\n", text)
}

// PrintSummary prints the summary of a resolved question
func (p *Printer) PrintSummary(question string, s *types.QuestionSummary) {
	if s == nil {
		return
	}
	var sb strings.Builder
	if question != "" {
		sb.WriteString(question + "\n\n")
	}
	fmt.Fprintf(&sb, "Outcome:    %s\n", s.Outcome)
	fmt.Fprintf(&sb, "Confidence: %.2f\n", s.Confidence)
	for _, b := range s.Bullets {
		fmt.Fprintf(&sb, "  • %s\n", b)
	}
	if len(s.EvidenceSnippets) > 0 {
		sb.WriteString("Evidence:\n")
		for i, e := range s.EvidenceSnippets {
			if i == maxEvidenceToShow {
				break
			}
			fmt.Fprintf(&sb, "  \"%s\"\n", e)
		}
	}
	p.printBox("QUESTION SUMMARY", sb.String())
}

// PrintStatus prints a session status snapshot
func (p *Printer) PrintStatus(st types.SessionStatus) {
	active := "none"
	if st.ActiveQuestionID != nil {
		active = *st.ActiveQuestionID
	}
	content := fmt.Sprintf("Session:   %s\nRole:      %s\nStatus:    %s\nActive:    %s\nResolved:  %d",
		st.SessionID, st.RoleID, st.Status, active, st.SummariesCount)
	p.printBox("SESSION STATUS", content)
}

// PrintPayloadOverview prints the summaries of a packaged session in question order
func (p *Printer) PrintPayloadOverview(payload *types.ScoringPayload) {
	if payload == nil {
		return
	}
	texts := make(map[string]string, len(payload.CanonicalQuestions))
	for _, q := range payload.CanonicalQuestions {
		texts[q.QuestionID] = q.Text
	}
	turns := make(map[string]int, len(payload.FullTranscripts))
	for _, tr := range payload.FullTranscripts {
		turns[tr.QuestionID] = len(tr.Turns)
	}

	var sb strings.Builder
	answered := 0
	for i, s := range payload.QuestionSummaries {
		if s.Outcome == types.OutcomeAnswered {
			answered++
		}
		fmt.Fprintf(&sb, "%d. [%s %.2f] %s (%d turns)\n", i+1, s.Outcome, s.Confidence, texts[s.QuestionID], turns[s.QuestionID])
	}
	fmt.Fprintf(&sb, "\nAnswered %d of %d questions", answered, len(payload.QuestionSummaries))
	p.printBox("INTERVIEW RESULTS", sb.String())
}

func pad(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

// wrap splits a line on word boundaries so no part exceeds width runes
func wrap(line string, width int) []string {
	if len([]rune(line)) <= width {
		return []string{line}
	}
	var (
		parts   []string
		current []rune
	)
	for _, word := range strings.Fields(line) {
		w := []rune(word)
		for len(w) > width {
			if len(current) > 0 {
				parts = append(parts, string(current))
				current = nil
			}
			parts = append(parts, string(w[:width]))
			w = w[width:]
		}
		switch {
		case len(current) == 0:
			current = w
		case len(current)+1+len(w) <= width:
			current = append(append(current, ' '), w...)
		default:
			parts = append(parts, string(current))
			current = w
		}
	}
	if len(current) > 0 {
		parts = append(parts, string(current))
	}
	return parts
}
