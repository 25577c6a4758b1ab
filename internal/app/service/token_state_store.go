package service

import (
	"sort"
	"strings"
	"sync"

	"buybot/internal/domain/entity"
)

// TokenStateStore holds detector baselines keyed by lowercased token address.
// Values are copied in and out; a Put replaces the whole state.
type TokenStateStore struct {
	mu     sync.RWMutex
	states map[string]entity.TokenMonitorState
}

// NewTokenStateStore creates an empty store.
func NewTokenStateStore() *TokenStateStore {
	return &TokenStateStore{states: make(map[string]entity.TokenMonitorState)}
}

// State returns the baseline for tokenAddress, if one was seeded.
func (s *TokenStateStore) State(tokenAddress string) (entity.TokenMonitorState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[strings.ToLower(tokenAddress)]
	return st, ok
}

// Put replaces the baseline for st.TokenAddress.
func (s *TokenStateStore) Put(st entity.TokenMonitorState) {
	st.TokenAddress = strings.ToLower(st.TokenAddress)
	s.mu.Lock()
	s.states[st.TokenAddress] = st
	s.mu.Unlock()
}

// Delete removes a baseline; the next observation of the token seeds again.
func (s *TokenStateStore) Delete(tokenAddress string) {
	s.mu.Lock()
	delete(s.states, strings.ToLower(tokenAddress))
	s.mu.Unlock()
}

// States returns all baselines ordered by token address.
func (s *TokenStateStore) States() []entity.TokenMonitorState {
	s.mu.RLock()
	out := make([]entity.TokenMonitorState, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].TokenAddress < out[j].TokenAddress })
	return out
}

func (s *TokenStateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// Reset drops every baseline.
func (s *TokenStateStore) Reset() {
	s.mu.Lock()
	s.states = make(map[string]entity.TokenMonitorState)
	s.mu.Unlock()
}
