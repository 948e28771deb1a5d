package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	selectUser  string
	selectClear bool
)

var selectCmd = &cobra.Command{
	Use:   "select [title...]",
	Short: "Replace a user's selection",
	Long: `Replaces the user's selection with every document whose title matches
one of the given titles. Without titles the current selection is printed;
with --clear it is emptied.`,
	RunE: runSelect,
}

func init() {
	selectCmd.Flags().StringVarP(&selectUser, "user", "u", "", "user whose selection changes")
	selectCmd.Flags().BoolVar(&selectClear, "clear", false, "clear the selection")
	_ = selectCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(selectCmd)
}

func runSelect(cmd *cobra.Command, args []string) error {
	if selectClear && len(args) > 0 {
		return fmt.Errorf("--clear takes no titles")
	}

	ctx := cmd.Context()
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.shutdown(ctx)

	switch {
	case selectClear:
		if err := e.kb.ClearSelection(ctx, selectUser); err != nil {
			return fmt.Errorf("clear failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Selection cleared.")
		return nil
	case len(args) == 0:
		docs, err := e.kb.Selection(ctx, selectUser)
		if err != nil {
			return fmt.Errorf("failed to load selection: %w", err)
		}
		if len(docs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No documents selected.")
		}
		for _, d := range docs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", d.ID, d.Title)
		}
		return nil
	default:
		docs, err := e.kb.Select(ctx, selectUser, args)
		if err != nil {
			return fmt.Errorf("select failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Selected %d document(s).\n", len(docs))
		return nil
	}
}
