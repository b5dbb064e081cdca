// Package config handles client configuration loading and management.
package config

import "time"

// Config holds all client settings.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Viewer  ViewerConfig  `yaml:"viewer"`
	Upload  UploadConfig  `yaml:"upload"`
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds backend connection settings.
type ServerConfig struct {
	BaseURL string        `yaml:"base_url"`
	UserID  string        `yaml:"user_id"` // Sent as X-User on every request
	Timeout time.Duration `yaml:"timeout"`
}

// ViewerConfig holds window and 3D viewport settings.
type ViewerConfig struct {
	Width           int     `yaml:"width"`
	Height          int     `yaml:"height"`
	VSync           bool    `yaml:"vsync"`
	FPSLimit        int     `yaml:"fps_limit"`
	FOV             float32 `yaml:"fov"` // Vertical, degrees
	Near            float32 `yaml:"near"`
	Far             float32 `yaml:"far"`
	InitialDistance float32 `yaml:"initial_distance"`
	Damping         float32 `yaml:"damping"`
	FitMargin       float32 `yaml:"fit_margin"`
}

// UploadConfig holds client-side upload checks.
type UploadConfig struct {
	MaxFileMB    int64 `yaml:"max_file_mb"`
	MaxArchiveMB int64 `yaml:"max_archive_mb"`
	MinSlices    int   `yaml:"min_slices"` // Recommended range only
	MaxSlices    int   `yaml:"max_slices"`
}

// ExportConfig holds model export settings.
type ExportConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"` // stl or ply
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Quiet   bool   `yaml:"quiet"` // No console output
	LogFile string `yaml:"log_file"`
	// Rotation of LogFile
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 120 * time.Second,
		},
		Viewer: ViewerConfig{
			Width:           1280,
			Height:          720,
			VSync:           true,
			FPSLimit:        60,
			FOV:             75,
			Near:            0.1,
			Far:             1000,
			InitialDistance: 100,
			Damping:         0.05,
			FitMargin:       1.5,
		},
		Upload: UploadConfig{
			MaxFileMB:    50,
			MaxArchiveMB: 500,
			MinSlices:    20,
			MaxSlices:    100,
		},
		Export: ExportConfig{
			Dir:    ".",
			Format: "stl",
		},
		Logging: LoggingConfig{
			Level:      "info",
			LogFile:    "",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
	}
}
