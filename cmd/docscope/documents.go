package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	ingestTitle string
	ingestFile  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Store a document and its embedding",
	Args:  cobra.NoArgs,
	RunE:  runIngest,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a document and drop it from every selection",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestTitle, "title", "t", "", "document title")
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "file holding the document content")
	_ = ingestCmd.MarkFlagRequired("title")
	_ = ingestCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(ingestCmd, deleteCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	content, err := os.ReadFile(ingestFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", ingestFile, err)
	}

	ctx := cmd.Context()
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.shutdown(ctx)

	doc, err := e.kb.Ingest(ctx, ingestTitle, string(content))
	if err != nil && doc.ID == "" {
		return fmt.Errorf("ingest failed: %w", err)
	}
	if err != nil {
		e.logger.Warn("document stored with errors", zap.String("id", doc.ID), zap.Error(err))
	}
	fmt.Fprintln(cmd.OutOrStdout(), doc.ID)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.shutdown(ctx)

	if err := e.kb.Delete(ctx, args[0]); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Document deleted.")
	return nil
}
