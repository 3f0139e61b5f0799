// Package commands defines all Cobra CLI commands for the recall binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/opsrecall/recall-go/internal/audit"
	"github.com/opsrecall/recall-go/internal/config"
	"github.com/opsrecall/recall-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "recall",
		Short: "Recall is an incident history retrieval and analysis service",
		Long: `Recall indexes your operational incident history in a vector store and
answers questions about it with an LLM.

Ingested incidents are chunked, embedded, and stored in Qdrant. The analyze
commands retrieve the most similar historical incidents and ask the model to
identify a likely root cause or recurring patterns, grounded in that history.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.recall/config.yaml).
See 'recall --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.recall/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewAnalyzeCmd(),
		NewSearchCmd(),
		NewStatsCmd(),
		NewVersionCmd(),
	)

	return root
}
