package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jonathan/interview-orchestrator/internal/interview"
	"github.com/jonathan/interview-orchestrator/internal/questions"
)

var importFile string

var importCmd = &cobra.Command{
	Use:   "import-questions",
	Short: "Import a YAML question bank into the configured store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()
		return importBankFile(cmd.Context(), a.service, importFile, cmd.OutOrStdout())
	},
}

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "Path to the question bank YAML (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}

// importBankFile loads a bank file and replaces each role's questions
func importBankFile(ctx context.Context, svc *interview.Service, path string, out io.Writer) error {
	f, err := questions.LoadFile(path)
	if err != nil {
		return err
	}
	counts, err := svc.Bank().ImportFile(ctx, f)
	if err != nil {
		return err
	}

	roles := make([]string, 0, len(counts))
	for role := range counts {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		fmt.Fprintf(out, "imported %d questions for role %s\n", counts[role], role)
	}
	return nil
}
