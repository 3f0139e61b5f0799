package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opsrecall/recall-go/internal/embedcache"
	"github.com/opsrecall/recall-go/internal/embedder"
	"github.com/opsrecall/recall-go/internal/rag"
	"github.com/opsrecall/recall-go/internal/resource"
	"github.com/opsrecall/recall-go/internal/store"
)

// retrievalStack bundles the embedding and vector store components shared by
// the ingest, analyze, search, and serve commands.
type retrievalStack struct {
	// Embedder is the cached embedding layer satisfying rag.Embedder.
	Embedder *embedcache.Cache
	// Store is the Qdrant-backed vector store.
	Store *rag.QdrantStore
	// Monitor watches process memory and trims registered caches.
	Monitor *resource.Monitor
	// Model is the raw embedding backend, for readiness probes.
	Model embedder.Model
}

// Close releases the stack's resources in dependency order.
func (r *retrievalStack) Close() {
	if r.Embedder != nil {
		r.Embedder.Close()
	}
	if r.Store != nil {
		_ = r.Store.Close()
	}
}

// buildRetrievalStack wires the embedder, embedding cache, memory monitor,
// and Qdrant store from environment variables. The embedding cache is
// registered with the monitor so it is trimmed under memory pressure.
func buildRetrievalStack(ctx context.Context, log *slog.Logger, reg *prometheus.Registry) (*retrievalStack, error) {
	model, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	monitor, err := resource.NewMonitor(
		getEnvFloat("MEMORY_PRESSURE_PCT", 0),
		resource.NewMetrics(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise memory monitor: %w", err)
	}

	cache, err := embedcache.New(model, embedcache.Config{
		MaxEntries:    getEnvInt("EMBED_CACHE_MAX", 0),
		AccelBatchMin: getEnvInt("EMBED_ACCEL_BATCH_MIN", 0),
		Pressure:      monitor.UnderPressure,
		Metrics:       embedcache.NewMetrics(reg),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedding cache: %w", err)
	}
	monitor.Register("embed", cache)

	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")
	qdrantHost := getEnvOrDefault("QDRANT_HOST", "localhost")
	qdrantPort := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", "recall-incidents")

	qstore, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       qdrantHost,
		Port:       qdrantPort,
		Collection: collection,
		VectorSize: uint64(embedder.DefaultDimensions(embBackend)), //nolint:gosec // dimensions are bounded
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		cache.Close()
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", qdrantHost, qdrantPort, err)
	}
	log.Info("qdrant store ready",
		slog.String("host", qdrantHost),
		slog.Int("port", qdrantPort),
		slog.String("collection", collection),
	)

	return &retrievalStack{
		Embedder: cache,
		Store:    qstore,
		Monitor:  monitor,
		Model:    model,
	}, nil
}

// buildSearcher constructs the similarity searcher over the given stack,
// applying the configured distance threshold and default result count.
func buildSearcher(stack *retrievalStack) (*rag.Searcher, error) {
	return rag.NewSearcher( //nolint:wrapcheck // callers add command context
		stack.Embedder,
		stack.Store,
		getEnvFloat32("RETRIEVAL_SCORE_THRESHOLD", 0),
		getEnvInt("RETRIEVAL_TOP_K", 0),
	)
}

// openHistory opens the analysis history store. RECALL_HISTORY_DB overrides
// the default path (~/.recall/history.db); "disabled" turns persistence off.
// Failures are non-fatal: the service runs without history.
func openHistory(log *slog.Logger) (*store.SQLiteStore, func()) {
	dbPath := os.Getenv("RECALL_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via RECALL_HISTORY_DB=disabled")
		return nil, func() {}
	}
	if dbPath == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil, func() {}
		}
		dbPath = p
	}
	hs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil, func() {}
	}
	log.Info("history: store opened", slog.String("path", dbPath))
	return hs, func() { _ = hs.Close() }
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the named environment variable parsed as an int, or
// fallback if it is unset or unparsable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvFloat returns the named environment variable parsed as a float64, or
// fallback if it is unset or unparsable.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvFloat32 is getEnvFloat narrowed to float32.
func getEnvFloat32(key string, fallback float32) float32 {
	return float32(getEnvFloat(key, float64(fallback)))
}

// getEnvBool returns the named environment variable parsed as a bool, or
// fallback if it is unset or unparsable.
func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
