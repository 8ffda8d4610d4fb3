// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"crypto/subtle"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/bookimbiber/imbiber/internal/domain"
)

const APIKeyHeader = "X-API-Key"

// RequireAuth checks the X-API-Key header against the configured key. When
// auth is disabled it instead limits clients to authDisabledAllowedCIDRs.
// cfg is read per request so reloaded keys apply immediately.
func RequireAuth(cfg func() *domain.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := cfg()
			if c == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if c.IsAuthDisabled() {
				if allowedByCIDR(c, r) {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			key := r.Header.Get(APIKeyHeader)
			if key == "" || c.APIKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(c.APIKey)) != 1 {
				if key != "" {
					log.Warn().Str("remote_addr", r.RemoteAddr).Msg("Invalid API key")
				}
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func allowedByCIDR(c *domain.Config, r *http.Request) bool {
	prefixes, err := c.ParseAuthDisabledAllowedCIDRs()
	if err != nil || len(prefixes) == 0 {
		log.Error().Err(err).Msg("auth-disabled mode is misconfigured: authDisabledAllowedCIDRs is invalid or empty")
		return false
	}

	addr, err := parseRemoteAddrIP(r.RemoteAddr)
	if err != nil {
		log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Failed to parse remote address for auth-disabled allowlist")
		return false
	}

	for _, prefix := range prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}

	log.Warn().
		Str("remote_addr", r.RemoteAddr).
		Str("ip", addr.String()).
		Msg("Blocked request in auth-disabled mode: client IP not in authDisabledAllowedCIDRs")
	return false
}

func parseRemoteAddrIP(remoteAddr string) (netip.Addr, error) {
	trimmed := strings.TrimSpace(remoteAddr)
	if addr, err := netip.ParseAddr(strings.Trim(trimmed, "[]")); err == nil {
		return addr.Unmap(), nil
	}

	host, _, err := net.SplitHostPort(trimmed)
	if err != nil {
		return netip.Addr{}, err
	}

	addr, err := netip.ParseAddr(strings.Trim(host, "[]"))
	if err != nil {
		return netip.Addr{}, err
	}

	return addr.Unmap(), nil
}
