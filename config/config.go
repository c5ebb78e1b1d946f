package config

import (
	"fmt"
	"time"
)

// Config holds scraper configuration.
type Config struct {
	Query     string
	MaxPlaces int

	// Document interaction.
	WaitTimeout  time.Duration // per wait operation on the rendered document
	StallLimit   int           // consecutive no-growth scrolls before giving up
	MaxScanDepth int           // gallery re-scan rounds per place
	ScrollSettle time.Duration // pause after each feed/gallery scroll
	Headless     bool
	UserAgent    string

	// Downloads.
	Concurrency         int // run-global parallel fetches
	DownloadTimeout     time.Duration
	MaxRetries          int // retries after the first attempt
	RetryBackoff        time.Duration
	RetryBackoffMax     time.Duration
	Delay               time.Duration
	RandomDelay         time.Duration
	RespectRobotsTxt    bool
	SkipDuplicateAssets bool // reuse files for assets already fetched this run

	// Output.
	OutputDir  string
	RecordFile string

	// Debugging and observability.
	DebugEnabled bool
	DebugDir     string
	MetricsAddr  string
	Verbose      bool
}

// DefaultConfig returns conservative defaults for Google Maps.
func DefaultConfig() *Config {
	return &Config{
		Query:               "",
		MaxPlaces:           3,
		WaitTimeout:         20 * time.Second,
		StallLimit:          3,
		MaxScanDepth:        2,
		ScrollSettle:        750 * time.Millisecond,
		Headless:            true,
		UserAgent:           "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		Concurrency:         5,
		DownloadTimeout:     30 * time.Second,
		MaxRetries:          2,
		RetryBackoff:        200 * time.Millisecond,
		RetryBackoffMax:     2 * time.Second,
		Delay:               0,
		RandomDelay:         0,
		RespectRobotsTxt:    false,
		SkipDuplicateAssets: true,
		OutputDir:           "downloaded_maps_images",
		RecordFile:          "maps_extracted_data.json",
		DebugEnabled:        false,
		DebugDir:            "debug_output",
		MetricsAddr:         "",
		Verbose:             false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.MaxPlaces <= 0 {
		return fmt.Errorf("max places must be positive")
	}
	if c.WaitTimeout <= 0 {
		return fmt.Errorf("wait timeout must be positive")
	}
	if c.StallLimit <= 0 {
		return fmt.Errorf("stall limit must be positive")
	}
	if c.MaxScanDepth < 0 {
		return fmt.Errorf("scan depth cannot be negative")
	}
	if c.ScrollSettle < 0 {
		return fmt.Errorf("scroll settle cannot be negative")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.DownloadTimeout <= 0 {
		return fmt.Errorf("download timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if c.RecordFile == "" {
		return fmt.Errorf("record file cannot be empty")
	}
	if c.DebugEnabled && c.DebugDir == "" {
		return fmt.Errorf("debug directory cannot be empty when debugging is enabled")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	return nil
}
