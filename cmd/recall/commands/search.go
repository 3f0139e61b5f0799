package commands

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/opsrecall/recall-go/internal/logging"
	"github.com/opsrecall/recall-go/internal/rag"
)

// NewSearchCmd constructs the `recall search` command, which runs a
// similarity search against the vector store without involving the model.
func NewSearchCmd() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Find incidents similar to a query",
		Long: `Embed the query and return the most similar incident chunks from the
vector store. Only chunks within the configured distance threshold are shown,
so fewer than k results, including none, is a normal outcome.

Examples:
  recall search "timeouts talking to the payments service"
  recall search -k 10 "disk full"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			reg := prometheus.NewRegistry()
			stack, err := buildRetrievalStack(ctx, log, reg)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer stack.Close()

			searcher, err := buildSearcher(stack)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			docs, err := searcher.Search(ctx, args[0], k)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if len(docs) == 0 {
				fmt.Println("no similar incidents found")
				return nil
			}

			for i, d := range docs {
				fmt.Printf("--- %d. %s (distance %.3f) ---\n",
					i+1, d.Metadata[rag.MetaIncidentID], d.Score)
				fmt.Println(d.Content)
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "top-k", "k", 0, "Number of results to return (default from config)")

	return cmd
}
