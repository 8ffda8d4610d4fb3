// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
)

// EventStream serves a per-user server-sent event stream.
type EventStream interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string)
}

type EventsHandler struct {
	stream EventStream
}

func NewEventsHandler(stream EventStream) *EventsHandler {
	return &EventsHandler{stream: stream}
}

// Stream handles GET /users/{userID}/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(w, r)
	if !ok {
		return
	}

	h.stream.Serve(w, r, userID)
}
