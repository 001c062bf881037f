package ws

import (
	"encoding/json"
	"sync"

	"github.com/Jacobgokul/Pinge/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Registry is the process-wide map from user id to that user's live
// connections. One user may hold several entries at once (multi-device).
// Delivery is best-effort: a connection that cannot accept an event is
// dropped and logged, never surfaced to the caller.
type Registry struct {
	mu    sync.RWMutex
	users map[string]map[*Client]struct{}
}

func NewRegistry() *Registry {
	return &Registry{users: make(map[string]map[*Client]struct{})}
}

func (r *Registry) Register(userID string, c *Client) {
	r.mu.Lock()
	bucket := r.users[userID]
	if bucket == nil {
		bucket = make(map[*Client]struct{})
		r.users[userID] = bucket
	}
	bucket[c] = struct{}{}
	r.mu.Unlock()
	metrics.WsConnections.Inc()
	log.Info().Str("user_id", userID).Msg("ws connected")
}

// Unregister removes one connection and drops the bucket entirely once
// it is empty. Safe to call more than once for the same client.
func (r *Registry) Unregister(userID string, c *Client) {
	r.mu.Lock()
	bucket, ok := r.users[userID]
	if ok {
		if _, member := bucket[c]; member {
			delete(bucket, c)
			metrics.WsConnections.Dec()
		}
		if len(bucket) == 0 {
			delete(r.users, userID)
		}
	}
	r.mu.Unlock()
	c.shutdown()
	log.Info().Str("user_id", userID).Msg("ws disconnected")
}

// Online reports the number of live connections for one user.
func (r *Registry) Online(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID])
}

func (r *Registry) snapshot(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bucket := r.users[userID]
	if len(bucket) == 0 {
		return nil
	}
	clients := make([]*Client, 0, len(bucket))
	for c := range bucket {
		clients = append(clients, c)
	}
	return clients
}

// SendToUser fans the event out to every live connection of one user.
// A connection with a full or closed buffer is evicted so a stuck device
// cannot block delivery to the user's other devices.
func (r *Registry) SendToUser(userID string, event any) {
	b, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("ws marshal event")
		return
	}
	for _, c := range r.snapshot(userID) {
		r.deliver(userID, c, b)
	}
}

// Broadcast fans the event out to every connected user except the
// excluded one. Same best-effort semantics as SendToUser.
func (r *Registry) Broadcast(event any, excludeUserID string) {
	b, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("ws marshal broadcast")
		return
	}
	r.mu.RLock()
	targets := make(map[string][]*Client, len(r.users))
	for uid, bucket := range r.users {
		if uid == excludeUserID {
			continue
		}
		clients := make([]*Client, 0, len(bucket))
		for c := range bucket {
			clients = append(clients, c)
		}
		targets[uid] = clients
	}
	r.mu.RUnlock()
	for uid, clients := range targets {
		for _, c := range clients {
			r.deliver(uid, c, b)
		}
	}
}

func (r *Registry) deliver(userID string, c *Client, b []byte) {
	if c.enqueue(b) {
		metrics.EventsDelivered.Inc()
		return
	}
	metrics.EventsDropped.Inc()
	log.Warn().Str("user_id", userID).Msg("ws send buffer full, dropping connection")
	r.Unregister(userID, c)
}
