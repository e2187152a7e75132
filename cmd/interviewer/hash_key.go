package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/interview-orchestrator/internal/config"
)

var hashCost int

var hashKeyCmd = &cobra.Command{
	Use:   "hash-admin-key KEY",
	Short: "Print the bcrypt hash to store in auth.admin_key_hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := config.HashAdminKey(args[0], hashCost)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	hashKeyCmd.Flags().IntVar(&hashCost, "cost", config.DefaultBcryptCost, "bcrypt cost")
	rootCmd.AddCommand(hashKeyCmd)
}
