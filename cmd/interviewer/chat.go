package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/jonathan/interview-orchestrator/internal/interview"
	"github.com/jonathan/interview-orchestrator/internal/observability"
	"github.com/jonathan/interview-orchestrator/internal/types"
)

const (
	commandQuit   = "/quit"
	commandStatus = "/status"
)

var (
	chatRole          string
	chatFile          string
	chatJDFile        string
	chatCandidateFile string
	chatNotes         string
	chatRubric        string
	chatScore         bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run an interview in the terminal",
	Long: "Start a session for a role and answer questions interactively. " +
		"Type /status to show progress or /quit to stop.",
	RunE: runChatCmd,
}

func init() {
	chatCmd.Flags().StringVarP(&chatRole, "role", "r", "", "Role to interview for (required)")
	chatCmd.Flags().StringVarP(&chatFile, "file", "f", "", "Question bank YAML to import before starting")
	chatCmd.Flags().StringVar(&chatJDFile, "jd", "", "File holding the job description digest")
	chatCmd.Flags().StringVar(&chatCandidateFile, "candidate", "", "File holding the candidate digest")
	chatCmd.Flags().StringVar(&chatNotes, "notes", "", "Extra notes pinned to the session")
	chatCmd.Flags().StringVar(&chatRubric, "rubric", "", "Rubric carried into the scoring payload")
	chatCmd.Flags().BoolVar(&chatScore, "score", false, "Print the scoring payload as JSON once the interview completes")
	_ = chatCmd.MarkFlagRequired("role")
	rootCmd.AddCommand(chatCmd)
}

// lineReader reads one line of candidate input
type lineReader interface {
	ReadLine(label string) (string, error)
}

type promptReader struct{}

func (promptReader) ReadLine(label string) (string, error) {
	p := promptui.Prompt{Label: label}
	line, err := p.Run()
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return "", io.EOF
	}
	return line, err
}

func runChatCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	if chatFile != "" {
		if err := importBankFile(cmd.Context(), a.service, chatFile, out); err != nil {
			return err
		}
	}

	pinned, err := pinnedFromFiles(chatJDFile, chatCandidateFile, chatNotes)
	if err != nil {
		return err
	}
	req := interview.StartRequest{RoleID: chatRole, Pinned: pinned, Rubric: chatRubric}
	return runChat(cmd.Context(), a.service, req, promptReader{}, out, chatScore)
}

func pinnedFromFiles(jdPath, candidatePath, notes string) (types.PinnedContext, error) {
	pinned := types.PinnedContext{ExtraNotes: notes}
	for _, f := range []struct {
		path string
		dst  *string
	}{{jdPath, &pinned.JDDigest}, {candidatePath, &pinned.CandidateDigest}} {
		if f.path == "" {
			continue
		}
		data, err := os.ReadFile(f.path)
		if err != nil {
			return pinned, fmt.Errorf("failed to read %s: %w", f.path, err)
		}
		*f.dst = strings.TrimSpace(string(data))
	}
	return pinned, nil
}

// runChat drives one session until it completes or the reader stops
func runChat(ctx context.Context, svc *interview.Service, req interview.StartRequest, in lineReader, out io.Writer, score bool) error {
	printer := observability.NewPrinter(out)

	started, err := svc.StartSession(ctx, req)
	if err != nil {
		return err
	}
	index := 0
	question := ""
	if started.FirstQuestion != nil {
		question = *started.FirstQuestion
		printer.PrintQuestion(index, question)
	}

	completed := false
	for !completed {
		line, err := in.ReadLine("you")
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		switch text := strings.TrimSpace(line); text {
		case "":
			continue
		case commandQuit:
			fmt.Fprintf(out, "Session %s left active.\n", started.SessionID)
			return nil
		case commandStatus:
			st, err := svc.GetStatus(ctx, started.SessionID)
			if err != nil {
				return err
			}
			printer.PrintStatus(st)
			continue
		default:
			res, err := svc.CandidateMessage(ctx, started.SessionID, text)
			if interview.Kind(err) == interview.KindGenerationFailure {
				fmt.Fprintf(out, "The interviewer could not reply (%v). Send the same message again to retry.\n", err)
				continue
			}
			if err != nil {
				return err
			}

			printer.PrintInterviewer(res.AssistantText)
			if res.Summary != nil {
				printer.PrintSummary(question, res.Summary)
			}
			if res.NextQuestion != nil {
				index++
				question = *res.NextQuestion
				printer.PrintQuestion(index, question)
			}
			completed = res.Status.Status == types.StatusCompleted
		}
	}

	if !completed {
		fmt.Fprintf(out, "Session %s left active.\n", started.SessionID)
		return nil
	}

	payload, err := svc.Score(ctx, started.SessionID)
	if err != nil {
		return err
	}
	printer.PrintPayloadOverview(payload)
	if score {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(payload); err != nil {
			return fmt.Errorf("failed to encode scoring payload: %w", err)
		}
	}
	return nil
}
