package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/ingest"
	"github.com/ragline/ragline/internal/log"
)

func newIngestCmd(logger log.Logger) *cobra.Command {
	var botID, userID, name string

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a document into a bot's knowledge base",
	}
	ingestCmd.PersistentFlags().StringVar(&botID, "bot", "", "bot the document belongs to (required)")
	ingestCmd.PersistentFlags().StringVar(&userID, "user", "", "user uploading the document (required)")
	ingestCmd.PersistentFlags().StringVar(&name, "name", "", "display name (defaults to file name or page title)")
	_ = ingestCmd.MarkPersistentFlagRequired("bot")
	_ = ingestCmd.MarkPersistentFlagRequired("user")

	pdfCmd := &cobra.Command{
		Use:   "pdf <file>",
		Short: "Ingest a local PDF file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			if name == "" {
				name = filepath.Base(args[0])
			}
			return runIngest(cmd.Context(), cmd, logger, ingest.Request{
				BotID:  botID,
				UserID: userID,
				Name:   name,
				Data:   data,
			}, false)
		},
	}

	urlCmd := &cobra.Command{
		Use:   "url <url>",
		Short: "Ingest a web page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), cmd, logger, ingest.Request{
				BotID:  botID,
				UserID: userID,
				Name:   name,
				URL:    args[0],
			}, true)
		},
	}

	ingestCmd.AddCommand(pdfCmd)
	ingestCmd.AddCommand(urlCmd)
	return ingestCmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, logger log.Logger, req ingest.Request, fromURL bool) error {
	a, err := newApp(ctx, logger)
	if err != nil {
		return err
	}
	defer a.close()

	var rec *ingest.Receipt
	if fromURL {
		rec, err = a.pipeline.IngestURL(ctx, req)
	} else {
		rec, err = a.pipeline.IngestPDF(ctx, req)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Document %s ingested with %d chunks", rec.DocumentID, rec.ChunkCount)
	if rec.Dropped > 0 {
		fmt.Fprintf(out, " (%d near-duplicates dropped)", rec.Dropped)
	}
	fmt.Fprintln(out)
	if rec.Truncated {
		fmt.Fprintln(out, "Warning: document exceeded the chunking limit, tail content was skipped")
	}
	if rec.Degraded {
		if a.provider.QuotaExceeded() {
			fmt.Fprintf(out, "Warning: embedding quota exhausted, similarity search quality is degraded (retry in %ds)\n",
				a.provider.QuotaResetSeconds())
		} else {
			fmt.Fprintln(out, "Warning: some chunks received placeholder vectors, similarity search quality is degraded")
		}
	}
	return nil
}
