// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bookimbiber/imbiber/internal/api/ctxkeys"
)

const maxUserIDLength = 128

// UserContext validates the {userID} path parameter and stores it under
// ctxkeys.UserID.
func UserContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(chi.URLParam(r, "userID"))
		if !validUserID(userID) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Invalid user ID"}`))
			return
		}

		ctx := context.WithValue(r.Context(), ctxkeys.UserID, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validUserID(id string) bool {
	if id == "" || len(id) > maxUserIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == '@':
		default:
			return false
		}
	}
	return true
}
