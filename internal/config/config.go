package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds configuration for the AV1 transcoding daemon.
type Config struct {
	FFmpegURL        string   `json:"ffmpeg_url"`
	FFmpegInstallDir string   `json:"ffmpeg_install_dir"`
	LibraryRoots     []string `json:"library_roots"`
	MinBytes         int64    `json:"min_bytes"`         // e.g. 2 GiB
	MaxSizeRatio     float64  `json:"max_size_ratio"`    // e.g. 0.90
	JobStateDir      string   `json:"job_state_dir"`
	ScanIntervalSec  int      `json:"scan_interval_secs"` // e.g. 60
	ForceReencode    bool     `json:"force_reencode"`    // disable the "already modern" short-circuit
	PreferredEncoder string   `json:"preferred_encoder"` // override encoder preference order; empty = auto
	TestClipEnabled  bool     `json:"test_clip_enabled"` // gate the Remux test-clip workflow
	Verbose          bool     `json:"verbose"`
	EncoderBin       string   `json:"encoder_bin"` // override path to the ffmpeg binary; empty = managed install
	ProbeBin         string   `json:"probe_bin"`   // override path to the ffprobe binary; empty = derived from EncoderBin
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home dir can't be determined
		homeDir = "."
	}

	dataDir := filepath.Join(homeDir, ".local", "share", "av1d")
	ffmpegDir := filepath.Join(dataDir, "ffmpeg")
	jobsDir := filepath.Join(dataDir, "jobs")

	return Config{
		FFmpegURL:        "https://github.com/BtbN/FFmpeg-Builds/releases/download/latest/ffmpeg-n8.0-latest-linux64-gpl-8.0.tar.xz",
		FFmpegInstallDir: ffmpegDir,
		LibraryRoots:     []string{}, // Empty by default, to be configured
		MinBytes:         2 * 1024 * 1024 * 1024, // 2 GiB
		MaxSizeRatio:     0.90,
		JobStateDir:      jobsDir,
		ScanIntervalSec:  60,
		ForceReencode:    false,
		PreferredEncoder: "",
		TestClipEnabled:  true,
		Verbose:          false,
	}
}

// LoadConfig loads configuration from a JSON file path, filling any field
// absent from the file with its DefaultConfig value. If the file doesn't
// exist, the defaults are returned as-is.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, err
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate rejects configurations that would make the daemon loop nonsensical.
func (c Config) Validate() error {
	if c.MaxSizeRatio <= 0 || c.MaxSizeRatio > 1 {
		return fmt.Errorf("max_size_ratio must be in (0, 1], got %f", c.MaxSizeRatio)
	}
	if c.MinBytes < 0 {
		return fmt.Errorf("min_bytes must be non-negative, got %d", c.MinBytes)
	}
	if c.ScanIntervalSec <= 0 {
		return fmt.Errorf("scan_interval_secs must be positive, got %d", c.ScanIntervalSec)
	}
	return nil
}
