package commands

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/opsrecall/recall-go/internal/logging"
	"github.com/opsrecall/recall-go/internal/store"
)

// NewStatsCmd constructs the `recall stats` command, which reports the
// vector store size and analysis history counts.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show vector store and analysis history statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			reg := prometheus.NewRegistry()
			stack, err := buildRetrievalStack(ctx, log, reg)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer stack.Close()

			count, err := stack.Store.Count(ctx)
			if err != nil {
				return fmt.Errorf("stats: failed to count documents: %w", err)
			}
			fmt.Printf("indexed chunks: %d\n", count)

			history, closeHistory := openHistory(log)
			defer closeHistory()
			if history == nil {
				return nil
			}

			counts, err := history.CountByOperation(ctx)
			if err != nil {
				return fmt.Errorf("stats: failed to count analyses: %w", err)
			}
			for _, op := range []store.Operation{store.OpRootCause, store.OpPatterns} {
				fmt.Printf("%s analyses: %d\n", op, counts[op])
			}
			return nil
		},
	}
}
