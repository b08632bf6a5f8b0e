// Package config loads the engine's YAML configuration via viper, the way
// the teacher's internal/infra/config does: defaults via v.SetDefault,
// environment override via a prefix, mapstructure/yaml dual tags on every
// field, and a validate() pass before the caller gets a usable Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full engine configuration surface from spec.md §6.
type Config struct {
	Port     string         `mapstructure:"port" yaml:"port"`
	Servers  []ServerConfig `mapstructure:"servers" yaml:"servers"`
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Tools    ToolsConfig    `mapstructure:"tools" yaml:"tools"`

	Processing  ProcessingConfig  `mapstructure:"processing" yaml:"processing"`
	Persistence PersistenceConfig `mapstructure:"persistence" yaml:"persistence"`
	Automation  AutomationConfig  `mapstructure:"automation" yaml:"automation"`
	Notify      NotifyConfig      `mapstructure:"notifications" yaml:"notifications"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

// ServerConfig describes one NNTP backend.
type ServerConfig struct {
	ID            string `mapstructure:"id" yaml:"id"`
	Host          string `mapstructure:"host" yaml:"host"`
	Port          int    `mapstructure:"port" yaml:"port"`
	TLS           bool   `mapstructure:"tls" yaml:"tls"`
	Username      string `mapstructure:"username" yaml:"username"`
	Password      string `mapstructure:"password" yaml:"password"`
	Connections   int    `mapstructure:"connections" yaml:"connections"`
	Priority      int    `mapstructure:"priority" yaml:"priority"`
	PipelineDepth int    `mapstructure:"pipeline_depth" yaml:"pipeline_depth"`
}

// DownloadConfig covers where files land and the gates that govern an
// in-flight download's health.
type DownloadConfig struct {
	DownloadDir            string  `mapstructure:"download_dir" yaml:"download_dir"`
	TempDir                string  `mapstructure:"temp_dir" yaml:"temp_dir"`
	MaxConcurrentDownloads int     `mapstructure:"max_concurrent_downloads" yaml:"max_concurrent_downloads"`
	SpeedLimitBps          uint64  `mapstructure:"speed_limit_bps" yaml:"speed_limit_bps"`
	DefaultPostProcess     string  `mapstructure:"default_post_process" yaml:"default_post_process"`
	DeleteSamples          bool    `mapstructure:"delete_samples" yaml:"delete_samples"`
	FileCollision          string  `mapstructure:"file_collision" yaml:"file_collision"` // Rename|Overwrite|Skip
	MaxFailureRatio        float64 `mapstructure:"max_failure_ratio" yaml:"max_failure_ratio"`
	FastFailThreshold      float64 `mapstructure:"fast_fail_threshold" yaml:"fast_fail_threshold"`
	FastFailSampleSize     int     `mapstructure:"fast_fail_sample_size" yaml:"fast_fail_sample_size"`
}

// ToolsConfig names the external binaries/search path consulted by
// internal/extract and internal/parity.
type ToolsConfig struct {
	PasswordFile string `mapstructure:"password_file" yaml:"password_file"`
	TryEmptyPw   bool   `mapstructure:"try_empty_password" yaml:"try_empty_password"`
	UnrarPath    string `mapstructure:"unrar_path" yaml:"unrar_path"`
	SevenZipPath string `mapstructure:"sevenzip_path" yaml:"sevenzip_path"`
	Par2Path     string `mapstructure:"par2_path" yaml:"par2_path"`
	SearchPath   bool   `mapstructure:"search_path" yaml:"search_path"`
}

// RetryConfig drives the article pipeline's backoff.
type RetryConfig struct {
	MaxAttempts       int     `mapstructure:"max_attempts" yaml:"max_attempts"`
	InitialDelayMs    int     `mapstructure:"initial_delay_ms" yaml:"initial_delay_ms"`
	MaxDelayMs        int     `mapstructure:"max_delay_ms" yaml:"max_delay_ms"`
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier" yaml:"backoff_multiplier"`
	Jitter            bool    `mapstructure:"jitter" yaml:"jitter"`
}

// ExtractionConfig mirrors internal/extract.Config.
type ExtractionConfig struct {
	MaxRecursionDepth int      `mapstructure:"max_recursion_depth" yaml:"max_recursion_depth"`
	ArchiveExtensions []string `mapstructure:"archive_extensions" yaml:"archive_extensions"`
}

// DuplicateConfig mirrors internal/duplicate.Config.
type DuplicateConfig struct {
	Enabled bool     `mapstructure:"enabled" yaml:"enabled"`
	Action  string   `mapstructure:"action" yaml:"action"`
	Methods []string `mapstructure:"methods" yaml:"methods"`
}

// DiskSpaceConfig mirrors internal/diskspace.Config.
type DiskSpaceConfig struct {
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
	MinFreeSpace   int64   `mapstructure:"min_free_space" yaml:"min_free_space"`
	SizeMultiplier float64 `mapstructure:"size_multiplier" yaml:"size_multiplier"`
}

// CleanupConfig feeds internal/orchestrator's cleanup stage.
type CleanupConfig struct {
	Enabled           bool     `mapstructure:"enabled" yaml:"enabled"`
	TargetExtensions  []string `mapstructure:"target_extensions" yaml:"target_extensions"`
	ArchiveExtensions []string `mapstructure:"archive_extensions" yaml:"archive_extensions"`
	DeleteSamples     bool     `mapstructure:"delete_samples" yaml:"delete_samples"`
	SampleFolderNames []string `mapstructure:"sample_folder_names" yaml:"sample_folder_names"`
}

// DirectUnpackConfig feeds internal/directunpack.Coordinator.
type DirectUnpackConfig struct {
	Enabled         bool `mapstructure:"enabled" yaml:"enabled"`
	DirectRename    bool `mapstructure:"direct_rename" yaml:"direct_rename"`
	PollIntervalMs  int  `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
}

// ProcessingConfig groups the post-admission pipeline knobs.
type ProcessingConfig struct {
	Retry        RetryConfig        `mapstructure:"retry" yaml:"retry"`
	Extraction   ExtractionConfig   `mapstructure:"extraction" yaml:"extraction"`
	Duplicate    DuplicateConfig    `mapstructure:"duplicate" yaml:"duplicate"`
	DiskSpace    DiskSpaceConfig    `mapstructure:"disk_space" yaml:"disk_space"`
	Cleanup      CleanupConfig      `mapstructure:"cleanup" yaml:"cleanup"`
	DirectUnpack DirectUnpackConfig `mapstructure:"direct_unpack" yaml:"direct_unpack"`
}

// CategoryConfig is one entry of Persistence.Categories.
type CategoryConfig struct {
	Destination string   `mapstructure:"destination" yaml:"destination"`
	PostProcess string   `mapstructure:"post_process" yaml:"post_process"`
	Scripts     []string `mapstructure:"scripts" yaml:"scripts"`
}

// ScheduleRuleConfig mirrors domain.ScheduleRule's wire form.
type ScheduleRuleConfig struct {
	Name      string   `mapstructure:"name" yaml:"name"`
	Weekdays  []string `mapstructure:"weekdays" yaml:"weekdays"` // empty == all days
	StartTime string   `mapstructure:"start_time" yaml:"start_time"`
	EndTime   string   `mapstructure:"end_time" yaml:"end_time"`
	Action    string   `mapstructure:"action" yaml:"action"`
	LimitBps  uint64   `mapstructure:"limit_bps" yaml:"limit_bps"`
	Enabled   bool     `mapstructure:"enabled" yaml:"enabled"`
}

// PersistenceConfig groups the store location and the rule sets loaded
// into it at startup.
type PersistenceConfig struct {
	DatabasePath  string                    `mapstructure:"database_path" yaml:"database_path"`
	ScheduleRules []ScheduleRuleConfig      `mapstructure:"schedule_rules" yaml:"schedule_rules"`
	Categories    map[string]CategoryConfig `mapstructure:"categories" yaml:"categories"`
}

// WatchFolderConfig is one entry of Automation.WatchFolders.
type WatchFolderConfig struct {
	Path           string `mapstructure:"path" yaml:"path"`
	Category       string `mapstructure:"category" yaml:"category"`
	PollIntervalMs int    `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
}

// DeobfuscationConfig gates internal/deobfuscate.
type DeobfuscationConfig struct {
	Enabled   bool `mapstructure:"enabled" yaml:"enabled"`
	MinLength int  `mapstructure:"min_length" yaml:"min_length"`
}

// AutomationConfig groups the watch/RSS/deobfuscation surface.
type AutomationConfig struct {
	RssFeeds      []string            `mapstructure:"rss_feeds" yaml:"rss_feeds"`
	WatchFolders  []WatchFolderConfig `mapstructure:"watch_folders" yaml:"watch_folders"`
	Deobfuscation DeobfuscationConfig `mapstructure:"deobfuscation" yaml:"deobfuscation"`
}

// WebhookConfig is one outbound webhook sink.
type WebhookConfig struct {
	Name       string            `mapstructure:"name" yaml:"name"`
	URL        string            `mapstructure:"url" yaml:"url"`
	Events     []string          `mapstructure:"events" yaml:"events"`
	Headers    map[string]string `mapstructure:"headers" yaml:"headers"`
	TimeoutMs  int               `mapstructure:"timeout_ms" yaml:"timeout_ms"`
}

// ScriptConfig is one script-dispatch sink.
type ScriptConfig struct {
	Name      string   `mapstructure:"name" yaml:"name"`
	Command   string   `mapstructure:"command" yaml:"command"`
	Args      []string `mapstructure:"args" yaml:"args"`
	Events    []string `mapstructure:"events" yaml:"events"`
	TimeoutMs int      `mapstructure:"timeout_ms" yaml:"timeout_ms"`
}

// NotifyConfig groups webhook/script dispatch targets.
type NotifyConfig struct {
	Webhooks []WebhookConfig `mapstructure:"webhooks" yaml:"webhooks"`
	Scripts  []ScriptConfig  `mapstructure:"scripts" yaml:"scripts"`
}

// LogConfig matches the teacher's logger knobs.
type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

// Load reads and validates the config file at path, applying defaults and
// the USENETDL_ environment prefix the way the teacher's GONZB_ prefix
// does.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if path != "config.yaml" {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		if _, errEx := os.Stat("/config/config.yaml"); errEx == nil {
			path = "/config/config.yaml"
		} else {
			return nil, fmt.Errorf("configuration file 'config.yaml' not found\n\n" +
				"To fix this, copy config.yaml.example to config.yaml and edit it with your Usenet credentials.")
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	v.SetEnvPrefix("USENETDL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("download.download_dir", "./downloads")
	v.SetDefault("download.temp_dir", "./downloads/.tmp")
	v.SetDefault("download.max_concurrent_downloads", 1)
	v.SetDefault("download.default_post_process", "unpack_and_cleanup")
	v.SetDefault("download.file_collision", "rename")
	v.SetDefault("download.max_failure_ratio", 0.5)
	v.SetDefault("download.fast_fail_threshold", 0.8)
	v.SetDefault("download.fast_fail_sample_size", 10)
	v.SetDefault("tools.try_empty_password", true)
	v.SetDefault("processing.retry.max_attempts", 3)
	v.SetDefault("processing.retry.initial_delay_ms", 1000)
	v.SetDefault("processing.retry.max_delay_ms", 30000)
	v.SetDefault("processing.retry.backoff_multiplier", 2.0)
	v.SetDefault("processing.extraction.max_recursion_depth", 3)
	v.SetDefault("processing.extraction.archive_extensions", []string{"rar", "zip", "7z"})
	v.SetDefault("processing.duplicate.enabled", true)
	v.SetDefault("processing.duplicate.action", "block")
	v.SetDefault("processing.duplicate.methods", []string{"NzbHash", "JobName"})
	v.SetDefault("processing.disk_space.enabled", true)
	v.SetDefault("processing.disk_space.size_multiplier", 1.0)
	v.SetDefault("processing.cleanup.enabled", true)
	v.SetDefault("processing.cleanup.target_extensions", []string{"nzb", "par2", "sfv", "srr", "nfo"})
	v.SetDefault("processing.cleanup.sample_folder_names", []string{"sample", "samples"})
	v.SetDefault("processing.direct_unpack.poll_interval_ms", 2000)
	v.SetDefault("persistence.database_path", "./usenetdl.db")
	v.SetDefault("automation.deobfuscation.min_length", 5)
	v.SetDefault("log.path", "usenetdl.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)
}

func (c *Config) validate() error {
	if len(c.Servers) == 0 {
		return errors.New("at least one server must be configured")
	}
	for i, s := range c.Servers {
		if s.ID == "" {
			return fmt.Errorf("server[%d] requires a unique ID", i)
		}
		if s.Host == "" {
			return fmt.Errorf("server %s: host is required", s.ID)
		}
		if s.Port == 0 {
			return fmt.Errorf("server %s: port is required", s.ID)
		}
		if s.Connections <= 0 {
			c.Servers[i].Connections = 10
		}
		if s.Priority == 0 {
			c.Servers[i].Priority = 1
		}
	}

	for _, r := range c.Persistence.ScheduleRules {
		if r.Enabled {
			if _, err := parseHHMM(r.StartTime); err != nil {
				return fmt.Errorf("schedule %q: %w", r.Name, err)
			}
			if _, err := parseHHMM(r.EndTime); err != nil {
				return fmt.Errorf("schedule %q: %w", r.Name, err)
			}
		}
	}

	if c.Download.DownloadDir == "" {
		c.Download.DownloadDir = "./downloads"
	}
	if c.Download.TempDir == "" {
		c.Download.TempDir = "./downloads/.tmp"
	}
	return nil
}

func parseHHMM(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid HH:MM time %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid HH:MM time %q", s)
	}
	return h*60 + m, nil
}
