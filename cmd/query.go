package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/log"
	"github.com/ragline/ragline/internal/retrieval"
)

func newQueryCmd(logger log.Logger) *cobra.Command {
	var botID string
	var topK int

	queryCmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Search a bot's knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, logger)
			if err != nil {
				return err
			}
			defer a.close()

			if topK <= 0 {
				topK = a.cfg.TopK
			}

			query := strings.Join(args, " ")
			matches, err := a.retriever.Retrieve(ctx, botID, query, retrieval.WithTopK(topK))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(matches) == 0 {
				fmt.Fprintln(out, "No matches found.")
				return nil
			}

			for i, m := range matches {
				fmt.Fprintf(out, "%d. [%.3f] %s (%s, chunk %d)\n",
					i+1, m.Score, m.DocumentName, m.Source, m.ChunkIndex)
				fmt.Fprintln(out, indent(snippet(m.Text, 300), "   "))
			}
			return nil
		},
	}

	queryCmd.Flags().StringVar(&botID, "bot", "", "bot whose documents to search (required)")
	queryCmd.Flags().IntVar(&topK, "top-k", 0, "number of matches to return (default from config)")
	_ = queryCmd.MarkFlagRequired("bot")
	return queryCmd
}

// snippet truncates s to at most n runes, appending an ellipsis.
func snippet(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
