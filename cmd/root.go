// Package cmd wires the ragline CLI. Following the pattern used by
// kubectl, hugo, and other standard Go CLI tools, all application
// logic lives here, leaving main.go as a minimal entry point.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "ragline",
	Short: "ragline - document ingestion and retrieval for RAG bots",
	Long: `ragline ingests PDF files and web pages into a per-bot knowledge
base: content is extracted, split into overlapping chunks, embedded,
and stored in PostgreSQL with pgvector for similarity search.

Use "ragline ingest" to add documents, "ragline query" to search them,
and "ragline docs" to manage what a bot knows.`,
	SilenceUsage: true,
}

// Execute is the main entry point for the ragline CLI.
func Execute() error {
	logger := initLogger()

	rootCmd.AddCommand(newIngestCmd(logger))
	rootCmd.AddCommand(newQueryCmd(logger))
	rootCmd.AddCommand(newDocsCmd(logger))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd.Execute()
}

// initLogger initializes the structured logger.
//
// Log level is controlled by the DEBUG environment variable:
//   - DEBUG set (any value): debug level logging
//   - DEBUG not set: info level logging
//
// Logs go to stderr; stdout is reserved for command output.
func initLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	return log.New(cfg)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ragline v%s\nBuild: %s\nCommit: %s\n",
				AppVersion, BuildTime, GitCommit)
		},
	}
}
