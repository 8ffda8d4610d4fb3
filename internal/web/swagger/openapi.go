// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package swagger embeds the OpenAPI description of the HTTP API.
package swagger

import (
	_ "embed"
	"errors"
)

//go:embed openapi.yaml
var openapiYAML []byte

func GetOpenAPISpec() ([]byte, error) {
	if len(openapiYAML) == 0 {
		return nil, errors.New("openapi spec not embedded")
	}
	return openapiYAML, nil
}
