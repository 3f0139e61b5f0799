package commands

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/callbacks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/opsrecall/recall-go/internal/analyzer"
	"github.com/opsrecall/recall-go/internal/logging"
	"github.com/opsrecall/recall-go/internal/provider"
	"github.com/opsrecall/recall-go/internal/tracing"
)

// NewAnalyzeCmd constructs the `recall analyze` command group with its
// root-cause and patterns subcommands.
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze incident history with an LLM",
		Long: `Ask the model a question grounded in your ingested incident history.

The query is embedded, the most similar historical incidents are retrieved
from the vector store, and the model answers using only that context.`,
	}

	cmd.AddCommand(
		newAnalyzeSubCmd(
			"root-cause [description]",
			"Identify the likely root cause of a described issue",
			`Retrieve incidents similar to the described issue and ask the model to
identify the most likely root cause, grounded in how those incidents were
actually resolved.

Examples:
  recall analyze root-cause "API latency spiked after the 14:00 deploy"
  recall analyze root-cause -k 10 "database connections exhausted"`,
			func(a *analyzer.Analyzer) analyzeFunc { return a.AnalyzeRootCause },
		),
		newAnalyzeSubCmd(
			"patterns [topic]",
			"Identify recurring patterns across incidents",
			`Retrieve incidents related to the topic and ask the model to identify
recurring themes, common failure modes, and trends.

Examples:
  recall analyze patterns "deployment failures"
  recall analyze patterns -k 10 "network incidents in eu-west-1"`,
			func(a *analyzer.Analyzer) analyzeFunc { return a.AnalyzePatterns },
		),
	)

	return cmd
}

// analyzeFunc is the shape shared by both analysis operations.
type analyzeFunc func(ctx context.Context, query string, k int) (*analyzer.Analysis, error)

// newAnalyzeSubCmd builds one analysis subcommand. Both subcommands differ
// only in which analyzer operation they invoke.
func newAnalyzeSubCmd(use, short, long string, pick func(*analyzer.Analyzer) analyzeFunc) *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
			}

			reg := prometheus.NewRegistry()
			stack, err := buildRetrievalStack(ctx, log, reg)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}
			defer stack.Close()

			searcher, err := buildSearcher(stack)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("analyze: failed to initialise model provider: %w", err)
			}

			history, closeHistory := openHistory(log)
			defer closeHistory()

			cfg := &analyzer.Config{
				ChatModel: chatModel,
				Retriever: searcher,
				TopK:      getEnvInt("RETRIEVAL_TOP_K", 0),
			}
			if history != nil {
				cfg.History = history
			}
			a, err := analyzer.New(cfg)
			if err != nil {
				return fmt.Errorf("analyze: failed to initialise analyzer: %w", err)
			}

			result, err := pick(a)(ctx, args[0], k)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}

			fmt.Println(result.Answer)
			if result.Sources > 0 {
				fmt.Printf("\n(based on %d similar incident chunks)\n", result.Sources)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "top-k", "k", 0, "Number of similar incidents to retrieve (default from config)")

	return cmd
}
