// Package bootstrap wires configuration, infrastructure, and use cases into
// a ready-to-serve application.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fandbgo/travel-concierge/internal/config"
	"github.com/fandbgo/travel-concierge/internal/core/ports"
	"github.com/fandbgo/travel-concierge/internal/core/usecase"
	"github.com/fandbgo/travel-concierge/internal/infrastructure/llm/ollama"
	"github.com/fandbgo/travel-concierge/internal/infrastructure/queue/nats"
	"github.com/fandbgo/travel-concierge/internal/infrastructure/repository/postgres"
	"github.com/fandbgo/travel-concierge/internal/infrastructure/resilience"
	"github.com/fandbgo/travel-concierge/internal/infrastructure/session"
	"github.com/fandbgo/travel-concierge/internal/infrastructure/vector/pgvector"
	"github.com/fandbgo/travel-concierge/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Queue    *nats.Queue
	Store    ports.EstablishmentStore
	Index    ports.EstablishmentIndex
	Embedder ports.Embedder

	QueryUC ports.QueryService
	ConvUC  ports.ConversationService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewEstablishmentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel)
	embedder := ollama.NewEmbedder(ollamaClient, executor)

	var completer ports.PromptCompleter
	if cfg.SlotFillingEnabled {
		completer = ollama.NewCompleter(ollamaClient, executor)
	}

	index, indexClose, err := newIndex(ctx, cfg)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, err
	}

	agent := usecase.NewAgent(embedder, index, repo, queue, usecase.AgentOptions{
		RelaxFilters:        cfg.RelaxFilters,
		MaxResults:          cfg.MaxResults,
		SimilarityThreshold: cfg.SimilarityThreshold,
	}, log)

	conv := usecase.NewConversation(agent, session.NewStore(), completer, usecase.ConversationOptions{
		SessionTimeout: time.Duration(cfg.SessionTimeoutSeconds) * time.Second,
		MaxHistory:     cfg.SessionMaxHistory,
	}, log)

	return &App{
		Config:   cfg,
		Queue:    queue,
		Store:    repo,
		Index:    index,
		Embedder: embedder,

		QueryUC: agent,
		ConvUC:  conv,

		closeFn: func() {
			queue.Close()
			if indexClose != nil {
				indexClose()
			}
			_ = db.Close()
		},
	}, nil
}

func newIndex(ctx context.Context, cfg config.Config) (ports.EstablishmentIndex, func(), error) {
	switch cfg.VectorBackend {
	case "pgvector":
		idx, err := pgvector.New(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open pgvector: %w", err)
		}
		if err := idx.EnsureSchema(ctx, cfg.VectorDimensions); err != nil {
			idx.Close()
			return nil, nil, fmt.Errorf("ensure vector schema: %w", err)
		}
		return idx, func() { idx.Close() }, nil
	case "qdrant", "":
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
