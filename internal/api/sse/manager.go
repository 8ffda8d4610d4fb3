// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package sse pushes per-user change events to connected clients.
package sse

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmaxmax/go-sse"
)

const (
	EventAuthors     = "authors"
	EventLibrary     = "library"
	EventReleases    = "releases"
	EventNewReleases = "new-releases"

	streamEventHeartbeat = "heartbeat"
	streamEventError     = "stream-error"

	replayCount       = 16
	heartbeatInterval = 15 * time.Second
)

var ErrMissingUser = errors.New("missing user id")

type ctxKey string

const userIDContextKey ctxKey = "imbiber.sse.userID"

// StreamPayload is the message envelope sent to clients.
type StreamPayload struct {
	Type string      `json:"type"`
	Data any         `json:"data,omitempty"`
	Meta *StreamMeta `json:"meta,omitempty"`
	Err  string      `json:"error,omitempty"`
}

// StreamMeta describes which record changed.
type StreamMeta struct {
	UserID    string    `json:"userId"`
	Change    string    `json:"change,omitempty"`
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StreamManager owns the SSE server. Each user is a topic; every open
// connection for that user receives the same events.
type StreamManager struct {
	server *sse.Server

	closing atomic.Bool
	mu      sync.Mutex
	users   map[string]int

	published atomic.Uint64

	ctx    context.Context //nolint:containedctx // lifecycle root context used only for coordinated shutdown
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

func NewStreamManager() *StreamManager {
	replayer, err := sse.NewFiniteReplayer(replayCount, true)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create SSE replayer; reconnecting clients may miss events")
		replayer = nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &StreamManager{
		server: &sse.Server{
			Provider: &sse.Joe{Replayer: replayer},
		},
		users:  make(map[string]int),
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
	}
	m.server.OnSession = m.onSession

	m.wg.Add(1)
	go m.heartbeatLoop()

	return m
}

// Serve streams events for userID until the client disconnects.
func (m *StreamManager) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	if m.closing.Load() {
		http.Error(w, "stream shutting down", http.StatusServiceUnavailable)
		return
	}
	if userID == "" {
		http.Error(w, ErrMissingUser.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.users[userID]++
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.users[userID]--; m.users[userID] <= 0 {
			delete(m.users, userID)
		}
		m.mu.Unlock()
	}()

	req := r.WithContext(context.WithValue(r.Context(), userIDContextKey, userID))

	// SSE connections are long-lived; disable the write deadline inherited from
	// the main HTTP server so streams aren't terminated by global WriteTimeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	log.Debug().Str("userID", userID).Msg("SSE client connected")

	// ServeHTTP blocks until the client disconnects.
	m.server.ServeHTTP(w, req)

	log.Debug().Str("userID", userID).Msg("SSE client disconnected")
}

func (m *StreamManager) onSession(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	if m.closing.Load() {
		http.Error(w, "stream shutting down", http.StatusServiceUnavailable)
		return nil, false
	}

	userID, _ := r.Context().Value(userIDContextKey).(string)
	if userID == "" {
		http.Error(w, ErrMissingUser.Error(), http.StatusBadRequest)
		return nil, false
	}

	return []string{topic(userID)}, true
}

// Publish sends one event to every connection of userID. It is a no-op
// once the manager is shutting down.
func (m *StreamManager) Publish(userID, eventType string, data any, meta *StreamMeta) {
	if m == nil || m.closing.Load() || userID == "" {
		return
	}

	if meta == nil {
		meta = &StreamMeta{}
	}
	meta.UserID = userID
	if meta.Timestamp.IsZero() {
		meta.Timestamp = m.now()
	}

	m.publish(userID, &StreamPayload{Type: eventType, Data: data, Meta: meta})
}

func (m *StreamManager) publish(userID string, payload *StreamPayload) {
	message := &sse.Message{Type: sse.Type(payload.Type)}

	encoded, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Str("type", payload.Type).Msg("Failed to marshal SSE payload")

		errorPayload := &StreamPayload{
			Type: streamEventError,
			Meta: payload.Meta,
			Err:  "Internal error: failed to serialize update",
		}
		if errorBytes, marshalErr := json.Marshal(errorPayload); marshalErr == nil {
			errMsg := &sse.Message{Type: sse.Type(streamEventError)}
			errMsg.AppendData(string(errorBytes))
			if pubErr := m.server.Publish(errMsg, topic(userID)); pubErr != nil && !errors.Is(pubErr, sse.ErrProviderClosed) {
				log.Error().Err(pubErr).Str("userID", userID).Msg("Failed to publish error event after marshal failure")
			}
		}
		return
	}

	message.AppendData(string(encoded))

	if err := m.server.Publish(message, topic(userID)); err != nil {
		if !errors.Is(err, sse.ErrProviderClosed) {
			log.Error().Err(err).Str("userID", userID).Msg("Failed to publish SSE message")
		}
		return
	}
	m.published.Add(1)
}

// ActiveUsers returns how many users have at least one open stream.
func (m *StreamManager) ActiveUsers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func (m *StreamManager) Published() uint64 {
	return m.published.Load()
}

func (m *StreamManager) connectedUsers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.users))
	for id := range m.users {
		out = append(out, id)
	}
	return out
}

func (m *StreamManager) heartbeatLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.publishHeartbeats()
		}
	}
}

func (m *StreamManager) publishHeartbeats() {
	for _, userID := range m.connectedUsers() {
		m.Publish(userID, streamEventHeartbeat, nil, nil)
	}
}

// Pump forwards values from ch to the stream until ch closes or the
// manager shuts down. convert returns false to skip a value.
func Pump[T any](m *StreamManager, ch <-chan T, convert func(T) (userID, eventType string, data any, meta *StreamMeta, ok bool)) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-m.ctx.Done():
				return
			case v, open := <-ch:
				if !open {
					return
				}
				userID, eventType, data, meta, ok := convert(v)
				if !ok {
					continue
				}
				m.Publish(userID, eventType, data, meta)
			}
		}
	}()
}

func (m *StreamManager) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}

	if !m.closing.CompareAndSwap(false, true) {
		return nil
	}

	m.cancel()
	m.wg.Wait()

	if ctx == nil {
		ctx = context.Background()
	}

	if err := m.server.Shutdown(ctx); err != nil &&
		!errors.Is(err, sse.ErrProviderClosed) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return nil
}

func topic(userID string) string {
	return "user:" + userID
}
