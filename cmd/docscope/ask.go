package main

import (
	"encoding/json"
	"fmt"

	"github.com/barekit/docscope/pkg/retrieval"
	"github.com/spf13/cobra"
)

var (
	askUser string
	askK    int
	askJSON bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Rank the user's selected documents against a question",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askUser, "user", "u", "", "user whose selection is searched")
	askCmd.Flags().IntVarP(&askK, "k", "k", retrieval.DefaultK, "maximum number of documents")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output results as JSON")
	_ = askCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(askCmd)
}

type askResult struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Distance float64 `json:"distance"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.shutdown(ctx)

	results, err := e.kb.Ask(ctx, askUser, args[0], askK)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		out := make([]askResult, len(results))
		for i, r := range results {
			out[i] = askResult{ID: r.Document.ID, Title: r.Document.Title, Distance: r.Distance}
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No results found.")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "  [%d] %s (%.4f)\n", i+1, r.Document.Title, r.Distance)
	}
	return nil
}
