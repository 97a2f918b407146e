package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/log"
)

func newDocsCmd(logger log.Logger) *cobra.Command {
	docsCmd := &cobra.Command{
		Use:   "docs",
		Short: "Manage ingested documents",
	}

	docsCmd.AddCommand(newDocsListCmd(logger))
	docsCmd.AddCommand(newDocsDeleteCmd(logger))
	return docsCmd
}

func newDocsListCmd(logger log.Logger) *cobra.Command {
	var botID string

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List a bot's documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, logger)
			if err != nil {
				return err
			}
			defer a.close()

			docs, err := a.store.ListByBot(ctx, botID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(docs) == 0 {
				fmt.Fprintln(out, "No documents.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tCHUNKS\tSIZE\tCREATED")
			for _, d := range docs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
					d.ID, d.Name, d.Source, d.ChunkCount, d.SizeBytes,
					d.CreatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	listCmd.Flags().StringVar(&botID, "bot", "", "bot whose documents to list (required)")
	_ = listCmd.MarkFlagRequired("bot")
	return listCmd
}

func newDocsDeleteCmd(logger log.Logger) *cobra.Command {
	var userID string

	deleteCmd := &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a document you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid document ID: %s", args[0])
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, logger)
			if err != nil {
				return err
			}
			defer a.close()

			deleted, err := a.pipeline.Delete(ctx, docID, userID)
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("document %s not found for user %s", docID, userID)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Document %s deleted\n", docID)
			return nil
		},
	}

	deleteCmd.Flags().StringVar(&userID, "user", "", "owner of the document (required)")
	_ = deleteCmd.MarkFlagRequired("user")
	return deleteCmd
}
