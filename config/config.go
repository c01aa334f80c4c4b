// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads and saves the deadman daemon configuration.
//
// The file is a flat list of "key = value" lines. Blank lines and lines
// starting with '#' are skipped, and unknown keys are ignored so older
// binaries can read newer files.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// configFileName is the name of the config file inside the data directory.
const configFileName = "config"

// Config holds the daemon settings.
type Config struct {
	DataDir  string
	LogLevel string
	LogFile  string // empty logs to stderr

	// Watchdog.
	ScanInterval time.Duration
	MaxRetries   int
	RateLimit    float64 // instructions per second, 0 = unlimited
	Concurrency  int

	// Ledger rent.
	RentPerByte  uint64
	RentOverhead uint64
}

// DefaultDataDir returns ~/.deadswitch, or .deadswitch if the home
// directory cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".deadswitch"
	}
	return filepath.Join(home, ".deadswitch")
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		DataDir:      DefaultDataDir(),
		LogLevel:     "info",
		ScanInterval: time.Minute,
		MaxRetries:   3,
		RateLimit:    10,
		Concurrency:  4,
		RentPerByte:  6960,
		RentOverhead: 128,
	}
}

// ConfigPath returns the config file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// LoadConfig reads path on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := parseKeyValue(line)
		if !ok {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		if err := cfg.set(key, value); err != nil {
			return cfg, fmt.Errorf("%w: line %d: %w", ErrInvalidConfigLine, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// parseKeyValue splits on the first '='.
func parseKeyValue(line string) (string, string, bool) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return strings.ToLower(key), strings.TrimSpace(value), true
}

func (c *Config) set(key, value string) error {
	var err error
	switch key {
	case "datadir":
		c.DataDir = value
	case "loglevel":
		c.LogLevel = value
	case "logfile":
		c.LogFile = value
	case "scaninterval":
		c.ScanInterval, err = time.ParseDuration(value)
	case "maxretries":
		c.MaxRetries, err = strconv.Atoi(value)
	case "ratelimit":
		c.RateLimit, err = strconv.ParseFloat(value, 64)
	case "concurrency":
		c.Concurrency, err = strconv.Atoi(value)
	case "rentperbyte":
		c.RentPerByte, err = strconv.ParseUint(value, 10, 64)
	case "rentoverhead":
		c.RentOverhead, err = strconv.ParseUint(value, 10, 64)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// SaveConfig writes cfg to path, creating the parent directory if needed.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# DeadSwitch Configuration\n\n")
	fmt.Fprintf(&b, "datadir = %s\n", cfg.DataDir)
	fmt.Fprintf(&b, "loglevel = %s\n", cfg.LogLevel)
	fmt.Fprintf(&b, "logfile = %s\n", cfg.LogFile)
	b.WriteString("\n# Watchdog\n")
	fmt.Fprintf(&b, "scaninterval = %s\n", cfg.ScanInterval)
	fmt.Fprintf(&b, "maxretries = %d\n", cfg.MaxRetries)
	fmt.Fprintf(&b, "ratelimit = %s\n", strconv.FormatFloat(cfg.RateLimit, 'g', -1, 64))
	fmt.Fprintf(&b, "concurrency = %d\n", cfg.Concurrency)
	b.WriteString("\n# Ledger rent\n")
	fmt.Fprintf(&b, "rentperbyte = %d\n", cfg.RentPerByte)
	fmt.Fprintf(&b, "rentoverhead = %d\n", cfg.RentOverhead)

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
