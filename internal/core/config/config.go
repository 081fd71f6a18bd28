package config

import (
	"time"

	"github.com/docrelay/docrelay/internal/infra/redis"
	"github.com/docrelay/docrelay/internal/infra/storage/postgres"
	"github.com/docrelay/docrelay/internal/notify"
	"github.com/docrelay/docrelay/internal/pipeline"
	"github.com/docrelay/docrelay/internal/transfer"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server      ServerConfig        `yaml:"server"`
	Source      transfer.FTPSConfig `yaml:"source"`
	Destination transfer.SFTPConfig `yaml:"destination"`
	Pipeline    pipeline.Config     `yaml:"pipeline"`
	Schedule    ScheduleConfig      `yaml:"schedule"`
	Storage     StorageConfig       `yaml:"storage"`
	Retention   RetentionConfig     `yaml:"retention"`
	Extraction  ExtractionConfig    `yaml:"extraction"`
	Email       notify.Config       `yaml:"email"`
	Redis       redis.Config        `yaml:"redis"`
	Database    postgres.Config     `yaml:"database"`
	Logging     LoggingConfig       `yaml:"logging"`
	Workers     int                 `yaml:"workers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ScheduleConfig selects when cycles run. Exactly one of interval or cron
// must be set.
type ScheduleConfig struct {
	Interval     time.Duration `yaml:"interval"`
	Cron         string        `yaml:"cron"`
	Timezone     string        `yaml:"timezone"`
	RunAtStartup bool          `yaml:"run_at_startup"`
}

// StorageConfig holds the local directory layout.
type StorageConfig struct {
	WorkDir      string `yaml:"work_dir"`
	BackupDir    string `yaml:"backup_dir"`
	ArtifactDir  string `yaml:"artifact_dir"`
	ErrorDir     string `yaml:"error_dir"`
	UseYesterday bool   `yaml:"use_yesterday"`
}

// RetentionConfig controls cleanup of aged local state. Zero disables the
// corresponding cleanup.
type RetentionConfig struct {
	ArtifactDays    int `yaml:"artifact_days"`
	ErrorRecordDays int `yaml:"error_record_days"`
	CycleDays       int `yaml:"cycle_days"`
}

// ExtractionConfig tunes document parsing.
type ExtractionConfig struct {
	MergedMarker string `yaml:"merged_marker"`
	MinFileSize  int64  `yaml:"min_file_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
