// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"net/url"
	"strings"
)

const RedactedStr = "<redacted>"

// RedactString hides a secret for logs and API output.
func RedactString(s string) string {
	if s == "" {
		return ""
	}
	return RedactedStr
}

// RedactURL keeps the scheme and host of a notification URL and hides
// credentials, path and query, which carry tokens for most services.
func RedactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return RedactedStr
	}
	out := u.Scheme + "://"
	if u.User != nil {
		out += RedactedStr + "@"
	}
	out += u.Host
	if u.Path != "" || u.RawQuery != "" {
		out += "/" + RedactedStr
	}
	return out
}

// RedactQueryParams returns the request URI of u with the values of the named
// query params replaced. Param names match case-insensitively.
func RedactQueryParams(u *url.URL, params ...string) string {
	if u == nil {
		return ""
	}
	if u.RawQuery == "" || len(params) == 0 {
		return u.RequestURI()
	}

	q := u.Query()
	changed := false
	for key := range q {
		for _, p := range params {
			if strings.EqualFold(key, p) {
				for i := range q[key] {
					q[key][i] = RedactedStr
				}
				changed = true
			}
		}
	}
	if !changed {
		return u.RequestURI()
	}

	cp := *u
	cp.RawQuery = q.Encode()
	return cp.RequestURI()
}
