// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/bookimbiber/imbiber/internal/services/releases"
)

const (
	defaultNotificationPageSize = 50
	maxNotificationPageSize     = releases.MaxHistory
)

// ReleaseService is the release engine surface exposed over HTTP.
type ReleaseService interface {
	CheckUser(ctx context.Context, userID string, force bool) ([]releases.ReleaseBatch, error)
	NewReleases(ctx context.Context, userID string) []releases.ReleaseBatch
	ListNotifications(ctx context.Context, userID string) []releases.Notification
	MarkNotificationRead(ctx context.Context, userID, id string) error
	DeleteNotification(ctx context.Context, userID, id string) error
	UnreadCount(ctx context.Context, userID string) int
	ClearUnreadCount(ctx context.Context, userID string) error
}

type ReleasesHandler struct {
	releases ReleaseService
}

func NewReleasesHandler(releases ReleaseService) *ReleasesHandler {
	return &ReleasesHandler{releases: releases}
}

type CheckResponse struct {
	Found    []releases.ReleaseBatch `json:"found"`
	Releases []releases.ReleaseBatch `json:"releases"`
}

type CooldownResponse struct {
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retryAfterSeconds"`
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}

// List handles GET /users/{userID}/releases
func (h *ReleasesHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(w, r)
	if !ok {
		return
	}

	RespondJSON(w, http.StatusOK, h.releases.NewReleases(r.Context(), userID))
}

// Check handles POST /users/{userID}/releases/check?force=
func (h *ReleasesHandler) Check(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(w, r)
	if !ok {
		return
	}
	force := ParseQueryBool(r, "force")

	found, err := h.releases.CheckUser(r.Context(), userID, force)
	if err != nil {
		var cooldown *releases.CooldownError
		if errors.As(err, &cooldown) {
			seconds := int(math.Ceil(cooldown.Remaining.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			RespondJSON(w, http.StatusTooManyRequests, CooldownResponse{
				Error:             err.Error(),
				RetryAfterSeconds: seconds,
			})
			return
		}
		log.Error().Err(err).Str("user", userID).Bool("force", force).Msg("Release check failed")
		RespondError(w, http.StatusInternalServerError, "Release check failed")
		return
	}

	RespondJSON(w, http.StatusOK, CheckResponse{
		Found:    found,
		Releases: h.releases.NewReleases(r.Context(), userID),
	})
}

// ListNotifications handles GET /users/{userID}/notifications?limit=&offset=
func (h *ReleasesHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(w, r)
	if !ok {
		return
	}

	list := h.releases.ListNotifications(r.Context(), userID)
	RespondJSON(w, http.StatusOK, paginate(list, ParsePagination(r, defaultNotificationPageSize, maxNotificationPageSize)))
}

func (h *ReleasesHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(w, r)
	if !ok {
		return
	}
	id, ok := ParseStringParam(w, r, "id", "Notification ID")
	if !ok {
		return
	}

	if err := h.releases.MarkNotificationRead(r.Context(), userID, id); err != nil {
		h.respondNotificationError(w, err, userID, id, "Failed to mark notification as read")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ReleasesHandler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(w, r)
	if !ok {
		return
	}
	id, ok := ParseStringParam(w, r, "id", "Notification ID")
	if !ok {
		return
	}

	if err := h.releases.DeleteNotification(r.Context(), userID, id); err != nil {
		h.respondNotificationError(w, err, userID, id, "Failed to delete notification")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ReleasesHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(w, r)
	if !ok {
		return
	}

	RespondJSON(w, http.StatusOK, UnreadCountResponse{Count: h.releases.UnreadCount(r.Context(), userID)})
}

func (h *ReleasesHandler) ClearUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(w, r)
	if !ok {
		return
	}

	if err := h.releases.ClearUnreadCount(r.Context(), userID); err != nil {
		log.Error().Err(err).Str("user", userID).Msg("Failed to clear unread count")
		RespondError(w, http.StatusInternalServerError, "Failed to clear unread count")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ReleasesHandler) respondNotificationError(w http.ResponseWriter, err error, userID, id, message string) {
	if errors.Is(err, releases.ErrNotificationNotFound) {
		RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	if errors.Is(err, releases.ErrStorageUnavailable) {
		log.Warn().Err(err).Str("user", userID).Str("notificationId", id).Msg(message)
		RespondError(w, http.StatusServiceUnavailable, message)
		return
	}
	log.Error().Err(err).Str("user", userID).Str("notificationId", id).Msg(message)
	RespondError(w, http.StatusInternalServerError, message)
}
