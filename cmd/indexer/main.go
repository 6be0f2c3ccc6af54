package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fandbgo/travel-concierge/internal/bootstrap"
	"github.com/fandbgo/travel-concierge/internal/config"
	"github.com/fandbgo/travel-concierge/internal/observability/logging"
	"github.com/fandbgo/travel-concierge/internal/observability/metrics"
)

const serviceName = "travel-concierge-indexer"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	indexerMetrics := metrics.NewIndexerMetrics(serviceName)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", indexerMetrics.Handler())
		if err := http.ListenAndServe(":"+cfg.IndexerMetricsPort, mux); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	logger.Info("indexer subscribed", "subject", cfg.NATSSubject, "vector_backend", cfg.VectorBackend)
	err = app.Queue.SubscribeEstablishmentChanged(ctx, func(handlerCtx context.Context, establishmentID, op string) error {
		eventCtx, cancel := context.WithTimeout(handlerCtx, 2*time.Minute)
		defer cancel()

		indexerMetrics.StartEvent()
		start := time.Now()
		err := handleEvent(eventCtx, app, establishmentID, op)
		indexerMetrics.FinishEvent(serviceName, op, time.Since(start), err)
		if err != nil {
			logger.Error("event handling failed", "establishment_id", establishmentID, "op", op, "error", err)
		}
		return err
	})
	if err != nil {
		log.Fatalf("indexer subscribe error: %v", err)
	}
}

func handleEvent(ctx context.Context, app *bootstrap.App, establishmentID, op string) error {
	switch op {
	case "delete":
		return app.Index.Delete(ctx, establishmentID)
	case "upsert":
		est, err := app.Store.GetByID(ctx, establishmentID)
		if err != nil {
			return fmt.Errorf("load establishment: %w", err)
		}
		doc := est.ToIndexDocument()
		vector, err := app.Embedder.EmbedQuery(ctx, doc.Content)
		if err != nil {
			return fmt.Errorf("embed establishment: %w", err)
		}
		return app.Index.Upsert(ctx, doc, vector)
	default:
		return fmt.Errorf("unknown op %q", op)
	}
}
