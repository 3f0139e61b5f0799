package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/opsrecall/recall-go/internal/incident"
	"github.com/opsrecall/recall-go/internal/ingest"
	"github.com/opsrecall/recall-go/internal/logging"
)

// NewIngestCmd constructs the `recall ingest` command, which loads incident
// records from a JSON file into the vector store.
func NewIngestCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest [file.json]",
		Short: "Ingest incident records into the vector store",
		Long: `Load incident records from a JSON file, chunk and embed them, and
store them in the Qdrant vector store.

The file must contain a JSON array of incident objects. Each object needs at
least an incident_id; description, root_cause, resolution, and the other
fields are optional. Malformed records are reported individually and do not
stop the rest of the batch.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: recall-incidents)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  EMBEDDING_PROVIDER   Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  recall ingest incidents.json
  recall ingest --file incidents.json --config ./recall.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if file == "" && len(args) > 0 {
				file = args[0]
			}
			if file == "" {
				return fmt.Errorf("ingest: an incidents file is required")
			}

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("ingest: failed to read %s: %w", file, err)
			}
			var incidents []incident.Incident
			if err := json.Unmarshal(data, &incidents); err != nil {
				return fmt.Errorf("ingest: %s is not a JSON array of incidents: %w", file, err)
			}
			if len(incidents) == 0 {
				return fmt.Errorf("ingest: %s contains no incidents", file)
			}

			reg := prometheus.NewRegistry()
			stack, err := buildRetrievalStack(ctx, log, reg)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer stack.Close()

			pipeline, err := ingest.NewPipeline(stack.Embedder, stack.Store, stack.Monitor, &ingest.Config{
				ChunkSize:          getEnvInt("RETRIEVAL_CHUNK_SIZE", 0),
				ChunkOverlap:       getEnvInt("RETRIEVAL_CHUNK_OVERLAP", 0),
				WindowSize:         getEnvInt("INGEST_WINDOW_SIZE", 0),
				RenderPlaceholders: getEnvBool("INGEST_RENDER_PLACEHOLDERS", false),
			}, ingest.NewMetrics(reg))
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			log.Info("starting ingestion",
				slog.String("file", file),
				slog.Int("incidents", len(incidents)),
			)

			result := pipeline.IngestBatch(ctx, incidents)

			for _, f := range result.Failures {
				log.Warn("incident rejected",
					slog.Int("index", f.Index),
					slog.String("incident_id", f.IncidentID),
					slog.Any("error", f.Err),
				)
			}
			log.Info("ingestion complete",
				slog.Int("total", result.Total),
				slog.Int("succeeded", result.Succeeded),
				slog.Int("failed", len(result.Failures)),
			)

			fmt.Printf("ingested %d/%d incidents\n", result.Succeeded, result.Total)
			if len(result.Failures) > 0 {
				return fmt.Errorf("ingest: %d of %d incidents failed", len(result.Failures), result.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to a JSON file containing an array of incidents")

	return cmd
}
