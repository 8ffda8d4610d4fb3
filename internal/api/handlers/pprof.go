// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"runtime"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// PprofController toggles block and mutex profiling at runtime.
type PprofController struct {
	mu            sync.Mutex
	blockRate     int
	mutexFraction int
}

type ProfilingStatus struct {
	BlockProfileRate     int `json:"blockProfileRate"`
	MutexProfileFraction int `json:"mutexProfileFraction"`
}

func NewPprofController() *PprofController {
	return &PprofController{}
}

func (pc *PprofController) Routes(r chi.Router) {
	r.Post("/block/enable", pc.EnableBlockProfile)
	r.Post("/block/disable", pc.DisableBlockProfile)
	r.Post("/mutex/enable", pc.EnableMutexProfile)
	r.Post("/mutex/disable", pc.DisableMutexProfile)
	r.Get("/status", pc.Status)
}

// EnableBlockProfile handles POST /block/enable?rate=
func (pc *PprofController) EnableBlockProfile(w http.ResponseWriter, r *http.Request) {
	rate := queryPositiveInt(r, "rate", 1)

	pc.mu.Lock()
	runtime.SetBlockProfileRate(rate)
	pc.blockRate = rate
	pc.mu.Unlock()

	log.Info().Int("rate", rate).Msg("Block profiling enabled via API")
	pc.Status(w, r)
}

func (pc *PprofController) DisableBlockProfile(w http.ResponseWriter, r *http.Request) {
	pc.mu.Lock()
	runtime.SetBlockProfileRate(0)
	pc.blockRate = 0
	pc.mu.Unlock()

	log.Info().Msg("Block profiling disabled via API")
	pc.Status(w, r)
}

// EnableMutexProfile handles POST /mutex/enable?fraction=
func (pc *PprofController) EnableMutexProfile(w http.ResponseWriter, r *http.Request) {
	fraction := queryPositiveInt(r, "fraction", 1)

	pc.mu.Lock()
	runtime.SetMutexProfileFraction(fraction)
	pc.mutexFraction = fraction
	pc.mu.Unlock()

	log.Info().Int("fraction", fraction).Msg("Mutex profiling enabled via API")
	pc.Status(w, r)
}

func (pc *PprofController) DisableMutexProfile(w http.ResponseWriter, r *http.Request) {
	pc.mu.Lock()
	runtime.SetMutexProfileFraction(0)
	pc.mutexFraction = 0
	pc.mu.Unlock()

	log.Info().Msg("Mutex profiling disabled via API")
	pc.Status(w, r)
}

func (pc *PprofController) Status(w http.ResponseWriter, r *http.Request) {
	pc.mu.Lock()
	status := ProfilingStatus{BlockProfileRate: pc.blockRate, MutexProfileFraction: pc.mutexFraction}
	pc.mu.Unlock()

	RespondJSON(w, http.StatusOK, status)
}

func queryPositiveInt(r *http.Request, name string, fallback int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(name)); err == nil && v > 0 {
		return v
	}
	return fallback
}
