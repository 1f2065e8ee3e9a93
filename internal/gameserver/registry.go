package gameserver

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Registry tracks all accepted connections and issued session tokens.
// Thread-safe: the acceptor adds, the dispatcher removes, the reaper
// iterates.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client // key: client id

	issuedTokens map[string]struct{}

	nextClientID     int
	totalConnections int
}

// NewRegistry creates an empty client registry.
func NewRegistry() *Registry {
	return &Registry{
		clients:      make(map[string]*Client),
		issuedTokens: make(map[string]struct{}),
	}
}

// NextClientID mints a process-unique client id.
func (rg *Registry) NextClientID() string {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	rg.nextClientID++
	rg.totalConnections++
	return fmt.Sprintf("client_%d_%d", rg.nextClientID, time.Now().Unix())
}

// Add registers a client.
func (rg *Registry) Add(c *Client) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	rg.clients[c.ID()] = c
}

// Remove drops a client. Returns false if it was already gone, which lets
// the dispatcher collapse duplicate disconnect events into one.
func (rg *Registry) Remove(id string) bool {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	if _, ok := rg.clients[id]; !ok {
		return false
	}
	delete(rg.clients, id)
	return true
}

// Get returns the client for an id, or nil.
func (rg *Registry) Get(id string) *Client {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	return rg.clients[id]
}

// Count returns the number of live connections.
func (rg *Registry) Count() int {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	return len(rg.clients)
}

// TotalConnections returns the number of connections ever accepted.
func (rg *Registry) TotalConnections() int {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	return rg.totalConnections
}

// ForEach iterates over a snapshot of the live clients. Taking a snapshot
// keeps the lock short and lets fn call back into the registry.
func (rg *Registry) ForEach(fn func(*Client) bool) {
	rg.mu.RLock()
	snapshot := make([]*Client, 0, len(rg.clients))
	for _, c := range rg.clients {
		snapshot = append(snapshot, c)
	}
	rg.mu.RUnlock()

	for _, c := range snapshot {
		if !fn(c) {
			return
		}
	}
}

// MintToken issues a fresh 128-bit session token, unique for the process
// lifetime.
func (rg *Registry) MintToken() (string, error) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	for {
		var raw [16]byte
		if _, err := rand.Read(raw[:]); err != nil {
			return "", fmt.Errorf("minting session token: %w", err)
		}
		token := hex.EncodeToString(raw[:])
		if _, dup := rg.issuedTokens[token]; dup {
			continue
		}
		rg.issuedTokens[token] = struct{}{}
		return token, nil
	}
}

// AdoptToken records a client-supplied token so it cannot be re-minted.
func (rg *Registry) AdoptToken(token string) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	rg.issuedTokens[token] = struct{}{}
}
