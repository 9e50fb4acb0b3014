/*************************************************************************
 * Copyright 2026 ClassicMiniDIY. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package hostcfg holds host-tunable knobs for the core: worker-pool
// sizing, per-file guards, the computed-channel library location, and
// the user channel-name override table. None of these are exposed as
// a command line or a config file by the core itself — the host
// embeds this module and constructs a Config directly — but the
// fields, defaults, and validation follow the teacher's config
// package idiom (sentinel errors, a Validate method, byte-size fields
// parsed with github.com/inhies/go-bytesize).
package hostcfg

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/inhies/go-bytesize"
)

var (
	ErrInvalidWorkerCount   = errors.New("invalid worker pool size")
	ErrInvalidBudget        = errors.New("invalid downsample budget")
	ErrInvalidMaxFileSize   = errors.New("invalid max file size")
	ErrInvalidDataDir       = errors.New("invalid data directory")
	ErrInvalidThrottleBurst = errors.New("invalid load-admission burst")
)

const (
	DefaultWorkerCount     = 4
	DefaultDownsampleBudget = 2000
	DefaultMaxConcurrentLoads = 2
	defaultMaxFileSizeStr  = "512MB"
	appDirName             = "ultralog"
	libraryFileName        = "computed_channels.json"
)

// Config bundles the host-tunable knobs. Zero value is invalid; use
// Default() and override fields as needed, then call Validate.
type Config struct {
	// WorkerCount bounds the number of background parser goroutines
	// the ingestion orchestrator may run concurrently.
	WorkerCount int

	// MaxConcurrentLoads sets the orchestrator's load-admission rate
	// limiter: parse starts are admitted at up to MaxConcurrentLoads
	// per second, with a burst of MaxConcurrentLoads. It limits how
	// fast parses start, not how many run at once (WorkerCount bounds
	// that).
	MaxConcurrentLoads int

	// DownsampleBudget is the default point budget passed to the
	// downsampler when the host does not specify one explicitly.
	DownsampleBudget int

	// MaxFileSize caps the size of a file the orchestrator will
	// attempt to parse, expressed as a byte count (parsed from a
	// human string such as "512MB" via WithMaxFileSize).
	MaxFileSize int64

	// DataDir is the platform-appropriate per-user data directory
	// root under which the computed-channel library document lives.
	// Empty means "compute it from the OS default."
	DataDir string

	// UserOverrides is the raw-name -> canonical-name table supplied
	// by the host, consulted first by the name normalizer.
	UserOverrides map[string]string
}

// Default returns a Config with the reference defaults.
func Default() Config {
	sz, _ := bytesize.Parse(defaultMaxFileSizeStr)
	return Config{
		WorkerCount:        DefaultWorkerCount,
		MaxConcurrentLoads: DefaultMaxConcurrentLoads,
		DownsampleBudget:   DefaultDownsampleBudget,
		MaxFileSize:        int64(sz),
		UserOverrides:      map[string]string{},
	}
}

// WithMaxFileSize parses a human byte-size string (e.g. "256MB") and
// sets MaxFileSize, mirroring the teacher's parseDataSize helper.
func (c *Config) WithMaxFileSize(s string) error {
	bs, err := bytesize.Parse(s)
	if err != nil {
		return ErrInvalidMaxFileSize
	}
	c.MaxFileSize = int64(bs)
	return nil
}

// Validate checks the configuration for internally-consistent values.
func (c Config) Validate() error {
	if c.WorkerCount <= 0 {
		return ErrInvalidWorkerCount
	}
	if c.MaxConcurrentLoads <= 0 {
		return ErrInvalidThrottleBurst
	}
	if c.DownsampleBudget < 3 {
		// LTTB needs at least first, one interior bucket, and last.
		return ErrInvalidBudget
	}
	if c.MaxFileSize <= 0 {
		return ErrInvalidMaxFileSize
	}
	return nil
}

// LibraryPath resolves the on-disk path of the computed-channel
// library document, following the platform-standard per-user data
// directory layout called out in spec.md §6.
func (c Config) LibraryPath() (string, error) {
	dir := c.DataDir
	if dir == "" {
		var err error
		if dir, err = defaultDataDir(); err != nil {
			return "", err
		}
	}
	dir = filepath.Clean(dir)
	if dir == "." || dir == "" {
		return "", ErrInvalidDataDir
	}
	return filepath.Join(dir, libraryFileName), nil
}

func defaultDataDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			return "", ErrInvalidDataDir
		}
		return filepath.Join(base, appDirName), nil
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", appDirName), nil
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, appDirName), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", appDirName), nil
	}
}

// ResolveOverride performs a case-insensitive lookup in UserOverrides,
// returning the canonical name and whether a match was found.
func (c Config) ResolveOverride(rawName string) (string, bool) {
	if len(c.UserOverrides) == 0 {
		return "", false
	}
	target := strings.ToLower(strings.TrimSpace(rawName))
	for k, v := range c.UserOverrides {
		if strings.ToLower(strings.TrimSpace(k)) == target {
			return v, true
		}
	}
	return "", false
}
