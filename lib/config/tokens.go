// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"

	"github.com/arbor-works/arbor/lib/credential"
)

// TokenSource builds the credential source the config describes.
// TokenFile takes precedence over TokenEnv.
func (c *Config) TokenSource() credential.TokenSource {
	if c.Credentials.TokenFile != "" {
		return credential.FromFile(c.Credentials.TokenFile)
	}
	return credential.FromEnv(c.Credentials.TokenEnv)
}

// LogLevel maps the configured level string to a slog.Level. Unknown
// values fall back to info; Validate rejects them earlier.
func (c *Config) LogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
