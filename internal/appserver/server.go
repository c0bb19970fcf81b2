// Package appserver is the public entry point for initializing the
// capsule-match service: it wires configuration, the vector store
// adapter, classifier, embedder, subject-matter gate, qualification
// store, audit sink, and alerter into one Pipeline and HTTP router.
package appserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/westonopentrain/capsule-match/internal/alert"
	"github.com/westonopentrain/capsule-match/internal/api"
	"github.com/westonopentrain/capsule-match/internal/audit"
	"github.com/westonopentrain/capsule-match/internal/classify"
	"github.com/westonopentrain/capsule-match/internal/config"
	"github.com/westonopentrain/capsule-match/internal/embed"
	"github.com/westonopentrain/capsule-match/internal/gate"
	"github.com/westonopentrain/capsule-match/internal/matchpipeline"
	"github.com/westonopentrain/capsule-match/internal/qualstore"
	"github.com/westonopentrain/capsule-match/internal/telemetry"
	"github.com/westonopentrain/capsule-match/internal/vectorstore"
)

// Server holds the initialized capsule-match process.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Pipeline is exposed for tests and for the admin endpoints.
	Pipeline *matchpipeline.Pipeline

	Store vectorstore.Store
	Qual  qualstore.Store

	Config *config.Config
	Port   int

	pgPool          *pgxpool.Pool
	retentionCancel context.CancelFunc
	shutdownFunc    func(context.Context) error
}

// New initializes every component from environment configuration and
// returns a ready Server.
func New(ctx context.Context) (*Server, error) {
	cfg := config.Load()
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig initializes the service with an explicit configuration,
// for tests that want to override defaults.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	store, err := buildVectorStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	log.Info().Str("driver", store.Kind()).Msg("vector store adapter initialized")

	registry := vectorstore.NewRegistry()
	registry.Register(store.Kind(), store)

	embedder := buildEmbedder(cfg)
	log.Info().Int("dimensions", embedder.Dimensions()).Msg("embedder initialized")

	classifier := buildClassifier(cfg)
	log.Info().Msg("classifier initialized (LLM with heuristic fallback)")

	gateCache := gate.NewCache(embedder)

	qual, pgPool, retentionCancel, err := buildQualStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init qualification store: %w", err)
	}

	auditSink, err := buildAuditSink(ctx, cfg, pgPool)
	if err != nil {
		return nil, fmt.Errorf("init audit sink: %w", err)
	}
	auditSink.Start(ctx)

	alerter := buildAlerter(cfg)

	pipeline := matchpipeline.New(store, classifier, embedder, gateCache, qual, auditSink, alerter, matchpipeline.Namespaces{
		Users: cfg.Pinecone.UsersNamespace,
		Jobs:  cfg.Pinecone.JobsNamespace,
	}, cfg.VectorDimension)

	h := api.NewHandlers(pipeline, qual, store, registry, gateCache, cfg.Version)
	router := api.NewRouter(h, cfg.ServiceAPIKey, cfg.Version)

	return &Server{
		Handler:         router,
		Pipeline:        pipeline,
		Store:           store,
		Qual:            qual,
		Config:          cfg,
		Port:            cfg.Port,
		pgPool:          pgPool,
		retentionCancel: retentionCancel,
		shutdownFunc:    shutdown,
	}, nil
}

// buildVectorStore selects the Pinecone driver when fully configured,
// falling back to the in-memory driver otherwise (dev/test use).
func buildVectorStore(cfg *config.Config) (vectorstore.Store, error) {
	host := cfg.Pinecone.Host
	if cfg.Pinecone.APIKey != "" && host != "" {
		return vectorstore.NewPineconeStore(cfg.Pinecone.APIKey, host, cfg.VectorDimension), nil
	}
	log.Warn().Msg("PINECONE_API_KEY/PINECONE_HOST not set — using in-memory vector store")
	return vectorstore.NewMemoryStore(), nil
}

// buildEmbedder selects the OpenAI embedder when OPENAI_API_KEY is set,
// falling back to a deterministic mock otherwise.
func buildEmbedder(cfg *config.Config) embed.Embedder {
	if cfg.OpenAI.APIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY not set — using mock embedder")
		return embed.NewMock(cfg.VectorDimension)
	}
	return embed.NewOpenAIEmbedder(cfg.OpenAI.APIKey, cfg.OpenAI.EmbedModel, embed.WithDimensions(cfg.VectorDimension))
}

// buildClassifier wraps the LLM classifier with the deterministic
// heuristic fallback (§4.2): a classifier failure never blocks the
// pipeline.
func buildClassifier(cfg *config.Config) classify.Classifier {
	fallback := classify.NewHeuristic()
	if cfg.OpenAI.APIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY not set — classifier runs heuristic-only")
		return fallback
	}
	llm := classify.NewLLM(cfg.OpenAI.APIKey, cfg.OpenAI.CapsuleModel)
	return classify.NewWithFallback(llm, fallback)
}

// buildQualStore selects Postgres when DATABASE_URL is set, starting its
// retention janitor, or an in-memory twin otherwise.
func buildQualStore(ctx context.Context, cfg *config.Config) (qualstore.Store, *pgxpool.Pool, context.CancelFunc, error) {
	if cfg.Database.URL == "" {
		log.Warn().Msg("DATABASE_URL not set — using in-memory qualification store")
		return qualstore.NewMemory(), nil, nil, nil
	}

	pg, err := qualstore.NewPostgres(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, nil, err
	}

	janitor := qualstore.NewJanitor(pg, pg, qualstore.DefaultRetentionInterval)
	retCtx, cancel := context.WithCancel(context.Background())
	go janitor.Start(retCtx)

	return pg, pg.Pool(), cancel, nil
}

// buildAuditSink writes to Postgres when a pool is available, otherwise
// discards events — the sink is fire-and-forget either way (§4.11).
func buildAuditSink(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (*audit.Sink, error) {
	if pool == nil {
		log.Info().Msg("audit sink running with a no-op writer (no DATABASE_URL)")
		return audit.NewSink(audit.NoopWriter{}), nil
	}
	writer, err := audit.NewPostgresWriter(ctx, pool)
	if err != nil {
		return nil, err
	}
	return audit.NewSink(writer), nil
}

// buildAlerter selects the Slack driver when SLACK_WEBHOOK_URL is set,
// otherwise alerts are suppressed entirely (§6).
func buildAlerter(cfg *config.Config) alert.Alerter {
	if cfg.Slack.WebhookURL == "" {
		log.Info().Msg("SLACK_WEBHOOK_URL not set — alerting disabled")
		return alert.Noop{}
	}
	return alert.NewSlack(cfg.Slack.WebhookURL, "")
}

// Shutdown stops background goroutines and flushes telemetry.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.retentionCancel != nil {
		s.retentionCancel()
	}
	if s.pgPool != nil {
		s.pgPool.Close()
	}
	if s.shutdownFunc != nil {
		return s.shutdownFunc(ctx)
	}
	return nil
}
