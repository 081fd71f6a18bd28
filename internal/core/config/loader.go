package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file. Environment variable references
// in the file are expanded before parsing, so credentials can stay out of
// the file itself.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.Schedule.Interval == 0 && c.Schedule.Cron == "" {
		c.Schedule.Interval = time.Hour
	}
	if len(c.Pipeline.Extensions) == 0 {
		c.Pipeline.Extensions = []string{".doc", ".docx"}
	}
	for i, ext := range c.Pipeline.Extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Pipeline.Extensions[i] = ext
	}
	if c.Storage.WorkDir == "" {
		c.Storage.WorkDir = "data/work"
	}
	if c.Storage.BackupDir == "" {
		c.Storage.BackupDir = "data/backup"
	}
	if c.Storage.ArtifactDir == "" {
		c.Storage.ArtifactDir = "data/artifacts"
	}
	if c.Storage.ErrorDir == "" {
		c.Storage.ErrorDir = "data/errors"
	}
	if c.Extraction.MergedMarker == "" {
		c.Extraction.MergedMarker = "MERGED"
	}
	if c.Extraction.MinFileSize == 0 {
		c.Extraction.MinFileSize = 1024
	}
}

// Validate fails fast on settings the service cannot run with. A service
// started with a broken config must refuse to start rather than fail on its
// first cycle hours later.
func (c *AppConfig) Validate() error {
	var problems []string

	if c.Source.Host == "" {
		problems = append(problems, "source.host is required")
	}
	if c.Source.Username == "" {
		problems = append(problems, "source.username is required")
	}
	if c.Destination.Host == "" {
		problems = append(problems, "destination.host is required")
	}
	if c.Destination.Username == "" {
		problems = append(problems, "destination.username is required")
	}
	if len(c.Pipeline.Folders) == 0 {
		problems = append(problems, "pipeline.folders must name at least one folder")
	}
	if c.Schedule.Interval < 0 {
		problems = append(problems, "schedule.interval must be positive")
	}
	if c.Schedule.Interval > 0 && c.Schedule.Cron != "" {
		problems = append(problems, "schedule.interval and schedule.cron are mutually exclusive")
	}
	if c.Email.Enabled() && c.Email.From == "" {
		problems = append(problems, "email.from is required when email is configured")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
