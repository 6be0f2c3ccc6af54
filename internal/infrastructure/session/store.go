// Package session provides the in-memory session table backing the
// conversation orchestrator.
package session

import (
	"sync"
	"time"

	"github.com/fandbgo/travel-concierge/internal/core/domain"
	"github.com/fandbgo/travel-concierge/internal/core/ports"
)

const shardCount = 16

// Store is a sharded in-memory session table with per-session locking.
// Checkout pins a session for the duration of a turn; the expiry sweep
// skips pinned sessions instead of blocking on them.
type Store struct {
	shards [shardCount]shard
}

type shard struct {
	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	sess *domain.ConversationContext
	gone bool
}

func NewStore() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i].sessions = make(map[string]*entry)
	}
	return s
}

var _ ports.SessionStore = (*Store)(nil)

func (s *Store) shardFor(sessionID string) *shard {
	return &s.shards[fnv32(sessionID)%shardCount]
}

func fnv32(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// Checkout returns the session for id with its lock held, creating it via
// create when absent. The caller must invoke release exactly once. An entry
// evicted between lookup and lock acquisition is retried.
func (s *Store) Checkout(sessionID string, create func() *domain.ConversationContext) (*domain.ConversationContext, func()) {
	sh := s.shardFor(sessionID)
	for {
		sh.mu.Lock()
		e, ok := sh.sessions[sessionID]
		if !ok {
			e = &entry{sess: create()}
			if e.sess.LastActivity.IsZero() {
				e.sess.LastActivity = time.Now()
			}
			sh.sessions[sessionID] = e
		}
		sh.mu.Unlock()

		e.mu.Lock()
		if e.gone {
			e.mu.Unlock()
			continue
		}
		return e.sess, e.mu.Unlock
	}
}

// Peek returns a deep copy of the session without pinning it.
func (s *Store) Peek(sessionID string) (*domain.ConversationContext, bool) {
	e, ok := s.lookup(sessionID)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return nil, false
	}
	return cloneContext(e.sess), true
}

// Update applies a mutation under the session lock.
func (s *Store) Update(sessionID string, apply func(*domain.ConversationContext)) bool {
	e, ok := s.lookup(sessionID)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return false
	}
	apply(e.sess)
	return true
}

// End removes the session. In-flight Checkout holders finish their turn on
// the detached entry.
func (s *Store) End(sessionID string) bool {
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	e, ok := sh.sessions[sessionID]
	if ok {
		delete(sh.sessions, sessionID)
	}
	sh.mu.Unlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	e.gone = true
	e.mu.Unlock()
	return true
}

// SweepExpired evicts sessions idle longer than olderThan and returns their
// ids. Sessions currently checked out are left alone.
func (s *Store) SweepExpired(olderThan time.Duration) []string {
	cutoff := time.Now().Add(-olderThan)
	var swept []string
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for id, e := range sh.sessions {
			if !e.mu.TryLock() {
				continue
			}
			if !e.gone && e.sess.LastActivity.Before(cutoff) {
				e.gone = true
				delete(sh.sessions, id)
				swept = append(swept, id)
			}
			e.mu.Unlock()
		}
		sh.mu.Unlock()
	}
	return swept
}

// Stats reports the live session count and per-session states. Sessions
// checked out mid-turn count as active but report no state.
func (s *Store) Stats() domain.SessionStats {
	count := 0
	states := make(map[string]domain.ConversationState)
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for id, e := range sh.sessions {
			if !e.mu.TryLock() {
				count++
				continue
			}
			if !e.gone {
				count++
				states[id] = e.sess.State
			}
			e.mu.Unlock()
		}
		sh.mu.Unlock()
	}
	return domain.SessionStats{
		ActiveSessions: count,
		States:         states,
	}
}

func (s *Store) lookup(sessionID string) (*entry, bool) {
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	e, ok := sh.sessions[sessionID]
	sh.mu.Unlock()
	return e, ok
}

func cloneContext(c *domain.ConversationContext) *domain.ConversationContext {
	out := *c
	if c.SearchHistory != nil {
		out.SearchHistory = append([]domain.HistoryEntry(nil), c.SearchHistory...)
	}
	if c.UserProfile != nil {
		p := *c.UserProfile
		if c.UserProfile.Preferences != nil {
			p.Preferences = make(map[string]any, len(c.UserProfile.Preferences))
			for k, v := range c.UserProfile.Preferences {
				p.Preferences[k] = v
			}
		}
		p.History = append([]string(nil), c.UserProfile.History...)
		p.PreferredCities = append([]string(nil), c.UserProfile.PreferredCities...)
		p.PreferredAmenities = append([]string(nil), c.UserProfile.PreferredAmenities...)
		out.UserProfile = &p
	}
	return &out
}
