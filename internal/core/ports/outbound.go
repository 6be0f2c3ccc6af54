package ports

import (
	"context"
	"time"

	"github.com/fandbgo/travel-concierge/internal/core/domain"
)

// Embedder turns free text into a query vector. A failed embedding is
// reported as an error; callers treat it as "cannot retrieve" and return
// empty results rather than propagating.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// PromptCompleter produces a structured JSON object for a slot-filling
// prompt. Consumers parse the returned string themselves.
type PromptCompleter interface {
	CompleteJSON(ctx context.Context, prompt string) (string, error)
}

// EstablishmentIndex is the vector similarity backend. Scores follow the
// cosine convention: higher is better.
type EstablishmentIndex interface {
	Upsert(ctx context.Context, doc domain.IndexDocument, vector []float32) error
	Delete(ctx context.Context, establishmentID string) error
	Search(ctx context.Context, vector []float32, limit int, filter domain.SearchFilter) ([]domain.ScoredPoint, error)
	Fetch(ctx context.Context, establishmentID string) (*domain.ScoredPoint, error)
	Count(ctx context.Context) (int, error)
}

// EstablishmentStore owns master data in the relational store. It sits on
// the write path only, never on the retrieval hot path.
type EstablishmentStore interface {
	Upsert(ctx context.Context, est domain.Establishment) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Establishment, error)
	ListIDs(ctx context.Context) ([]string, error)
}

// ChangePublisher emits establishment change events for the async indexer.
type ChangePublisher interface {
	PublishEstablishmentChanged(ctx context.Context, establishmentID, op string) error
}

// ChangeSubscriber consumes establishment change events.
type ChangeSubscriber interface {
	SubscribeEstablishmentChanged(ctx context.Context, handler func(ctx context.Context, establishmentID, op string) error) error
}

// SessionStore owns the session table. Checkout returns the context for a
// session id with its per-session lock held; the caller must invoke release
// exactly once. Mutations between Checkout and release are never observed
// by the expiry sweep or by concurrent requests for the same session.
type SessionStore interface {
	Checkout(sessionID string, create func() *domain.ConversationContext) (sess *domain.ConversationContext, release func())
	Peek(sessionID string) (*domain.ConversationContext, bool)
	Update(sessionID string, apply func(*domain.ConversationContext)) bool
	End(sessionID string) bool
	SweepExpired(olderThan time.Duration) []string
	Stats() domain.SessionStats
}
