// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrInvalidScanInterval indicates a non-positive watchdog scan interval.
	ErrInvalidScanInterval = errors.New("config: scan interval must be positive")

	// ErrInvalidConcurrency indicates fewer than one payout worker.
	ErrInvalidConcurrency = errors.New("config: concurrency must be at least 1")

	// ErrInvalidRateLimit indicates a negative instruction rate.
	ErrInvalidRateLimit = errors.New("config: rate limit must not be negative")

	// ErrInvalidRetries indicates a negative retry count.
	ErrInvalidRetries = errors.New("config: max retries must not be negative")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigLine indicates a line in the config file is malformed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration line")
)
