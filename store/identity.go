package store

import (
	"sync"

	"github.com/google/uuid"
)

// Token is a stable per-instance identity for a tracked object. Tokens are
// generated at first tracking and are the only keys the unit of work uses in
// its state maps; raw pointers never cross store boundaries as keys.
type Token string

// TokenMap assigns identity tokens to live object instances. The same
// instance always yields the same token within one map's lifetime.
type TokenMap struct {
	tokens map[any]Token
	mu     sync.RWMutex
}

// NewTokenMap creates an empty token map
func NewTokenMap() *TokenMap {
	return &TokenMap{
		tokens: make(map[any]Token),
	}
}

// TokenFor returns the token for obj, generating one at first sight.
func (tm *TokenMap) TokenFor(obj any) Token {
	tm.mu.RLock()
	tok, ok := tm.tokens[obj]
	tm.mu.RUnlock()
	if ok {
		return tok
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tok, ok := tm.tokens[obj]; ok {
		return tok
	}
	tok = Token(uuid.NewString())
	tm.tokens[obj] = tok
	return tok
}

// Lookup returns the token for obj without assigning one.
func (tm *TokenMap) Lookup(obj any) (Token, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	tok, ok := tm.tokens[obj]
	return tok, ok
}

// Reset forgets all assignments.
func (tm *TokenMap) Reset() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.tokens = make(map[any]Token)
}

// Len returns the number of tracked instances.
func (tm *TokenMap) Len() int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return len(tm.tokens)
}
