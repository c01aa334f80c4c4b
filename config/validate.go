// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "strings"

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if cfg.ScanInterval <= 0 {
		return ErrInvalidScanInterval
	}

	if cfg.MaxRetries < 0 {
		return ErrInvalidRetries
	}

	if cfg.RateLimit < 0 {
		return ErrInvalidRateLimit
	}

	if cfg.Concurrency < 1 {
		return ErrInvalidConcurrency
	}

	return nil
}
