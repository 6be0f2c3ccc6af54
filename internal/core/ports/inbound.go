package ports

import (
	"context"

	"github.com/fandbgo/travel-concierge/internal/core/domain"
)

// QueryService is the single-turn retrieval pipeline: analyze, pick a
// strategy, retrieve, compose. It never returns an error; failures come
// back as AgentResponse{Success: false}.
type QueryService interface {
	ProcessQuery(ctx context.Context, query string, reqCtx *domain.RequestContext, override domain.Strategy) domain.AgentResponse
	RefineSearch(ctx context.Context, query string, feedback domain.RefineFeedback, reqCtx *domain.RequestContext) domain.AgentResponse
	AddEstablishment(ctx context.Context, est domain.Establishment) bool
	RemoveEstablishment(ctx context.Context, establishmentID string) bool
	EstablishmentDetails(ctx context.Context, establishmentID string) (map[string]any, bool)
	Stats(ctx context.Context) domain.IndexStats
}

// ConversationService is the session-scoped wrapper around QueryService.
type ConversationService interface {
	ProcessMessage(ctx context.Context, message, sessionID string, profile *domain.UserProfile, reqCtx *domain.RequestContext) domain.AgentResponse
	ConversationState(sessionID string) (*domain.ConversationContext, bool)
	UpdateUserProfile(sessionID string, updates domain.ProfileUpdate) bool
	EndConversation(sessionID string) bool
	SessionStats() domain.SessionStats
}
