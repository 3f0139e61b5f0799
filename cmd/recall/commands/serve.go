package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/opsrecall/recall-go/internal/analyzer"
	"github.com/opsrecall/recall-go/internal/ingest"
	"github.com/opsrecall/recall-go/internal/logging"
	"github.com/opsrecall/recall-go/internal/provider"
	"github.com/opsrecall/recall-go/internal/querycache"
	"github.com/opsrecall/recall-go/internal/server"
	"github.com/opsrecall/recall-go/internal/tracing"
)

// NewServeCmd constructs the `recall serve` command, which starts the HTTP
// server exposing ingestion, search, and analysis endpoints.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the recall HTTP server",
		Long: `Start the recall HTTP server on localhost.

The server exposes a REST API for incident ingestion, similarity search,
root-cause and pattern analysis, plus health, readiness, and Prometheus
metrics endpoints.

Examples:
  recall serve
  recall serve --port 9090
  MODEL_PROVIDER=openai recall serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Flags win over env, env wins over YAML (applied by config.Load).
			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("SERVER_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("SERVER_PORT", port)
			}

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Langfuse tracing is opt-in, a no-op when keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			reg := prometheus.NewRegistry()

			stack, err := buildRetrievalStack(ctx, log, reg)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer stack.Close()

			searcher, err := buildSearcher(stack)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pipeline, err := ingest.NewPipeline(stack.Embedder, stack.Store, stack.Monitor, &ingest.Config{
				ChunkSize:          getEnvInt("RETRIEVAL_CHUNK_SIZE", 0),
				ChunkOverlap:       getEnvInt("RETRIEVAL_CHUNK_OVERLAP", 0),
				WindowSize:         getEnvInt("INGEST_WINDOW_SIZE", 0),
				RenderPlaceholders: getEnvBool("INGEST_RENDER_PLACEHOLDERS", false),
			}, ingest.NewMetrics(reg))
			if err != nil {
				return fmt.Errorf("serve: failed to create ingest pipeline: %w", err)
			}

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", getEnvOrDefault("MODEL_PROVIDER", "ollama")))

			// Result cache. Pressure-only: routine post-window cleanup
			// hints must not wipe cached analysis answers.
			qc := querycache.New(getEnvInt("QUERY_CACHE_MAX", 0), querycache.NewMetrics(reg))
			stack.Monitor.RegisterPressureOnly("query", qc)

			history, closeHistory := openHistory(log)
			defer closeHistory()

			analyzerCfg := &analyzer.Config{
				ChatModel: chatModel,
				Retriever: searcher,
				Cache:     qc,
				TopK:      getEnvInt("RETRIEVAL_TOP_K", 0),
			}
			if history != nil {
				analyzerCfg.History = history
			}
			a, err := analyzer.New(analyzerCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise analyzer: %w", err)
			}

			var pingers []server.Pinger
			if p, ok := stack.Model.(server.Pinger); ok {
				pingers = append(pingers, p)
			}
			pingers = append(pingers, server.NewQdrantPinger(stack.Store.Client()))

			deps := server.Deps{
				Ingester:   pipeline,
				Analyzer:   a,
				Searcher:   searcher,
				Documents:  stack.Store,
				QueryCache: qc,
			}
			if history != nil {
				deps.History = history
			}

			srv, err := server.New(deps, &server.Config{
				Host:     host,
				Port:     port,
				Logger:   log,
				Pingers:  pingers,
				APIKey:   os.Getenv("RECALL_API_KEY"),
				Registry: reg,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
