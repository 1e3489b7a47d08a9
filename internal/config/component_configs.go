package config

// LogConfig defines logging behavior.
type LogConfig struct {
	LogLevel      string `json:"log_level,omitempty" yaml:"log_level,omitempty" validate:"omitempty,loglevel"`
	LogFormat     string `json:"log_format,omitempty" yaml:"log_format,omitempty" validate:"omitempty,logformat"`
	LogFile       string `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	MaxLogSizeMB  int    `json:"max_log_size_mb,omitempty" yaml:"max_log_size_mb,omitempty" validate:"omitempty,min=1"`
	MaxLogBackups int    `json:"max_log_backups,omitempty" yaml:"max_log_backups,omitempty" validate:"omitempty,min=0"`
}

// NewDefaultLogConfig creates default log configuration.
func NewDefaultLogConfig() LogConfig {
	return LogConfig{
		LogLevel:      "info",
		LogFormat:     "console",
		MaxLogSizeMB:  100,
		MaxLogBackups: 3,
	}
}

// ExtractorConfig configures bounty entity extraction.
type ExtractorConfig struct {
	// IssueURLPatterns are regexes locating canonical cross-reference links
	// (issue/task URLs) during pattern-based extraction. The first capture
	// group must yield the stable reference used for entity identity.
	IssueURLPatterns []string `json:"issue_url_patterns,omitempty" yaml:"issue_url_patterns,omitempty"`
	// CanonicalAPIBase, when set for a resource via template, enables the
	// direct upstream API strategy ({owner} and {repo} are substituted).
	CanonicalAPIBase   string `json:"canonical_api_base,omitempty" yaml:"canonical_api_base,omitempty" validate:"omitempty,url"`
	APITimeoutSeconds  int    `json:"api_timeout_seconds,omitempty" yaml:"api_timeout_seconds,omitempty" validate:"omitempty,min=1"`
	ScanInlineScripts  bool   `json:"scan_inline_scripts" yaml:"scan_inline_scripts"`
	MaxEntitiesPerPage int    `json:"max_entities_per_page,omitempty" yaml:"max_entities_per_page,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultExtractorConfig creates default extractor configuration.
func NewDefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		IssueURLPatterns: []string{
			`https?://github\.com/([\w.-]+/[\w.-]+)/issues/(\d+)`,
			`https?://gitlab\.com/([\w.-]+/[\w.-]+)/-/issues/(\d+)`,
		},
		CanonicalAPIBase:   "https://api.github.com",
		APITimeoutSeconds:  20,
		ScanInlineScripts:  true,
		MaxEntitiesPerPage: 500,
	}
}

// DiffConfig configures change detection.
type DiffConfig struct {
	// MarkerSubstrings are counted to build the cheap-mode signature.
	MarkerSubstrings []string `json:"marker_substrings,omitempty" yaml:"marker_substrings,omitempty"`
	// MaxDiffContentBytes caps the content size fed to the text differ.
	MaxDiffContentBytes int  `json:"max_diff_content_bytes,omitempty" yaml:"max_diff_content_bytes,omitempty" validate:"omitempty,min=1"`
	EmitTextDiff        bool `json:"emit_text_diff" yaml:"emit_text_diff"`
}

// NewDefaultDiffConfig creates default diff configuration.
func NewDefaultDiffConfig() DiffConfig {
	return DiffConfig{
		MarkerSubstrings:    []string{"/issues/", "bounty", "$"},
		MaxDiffContentBytes: 2 * 1024 * 1024,
		EmitTextDiff:        true,
	}
}

// CoalescerConfig configures the change-signal debounce window.
type CoalescerConfig struct {
	QuietWindowSeconds int `json:"quiet_window_seconds,omitempty" yaml:"quiet_window_seconds,omitempty" validate:"omitempty,min=1"`
	MaxWindowSeconds   int `json:"max_window_seconds,omitempty" yaml:"max_window_seconds,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultCoalescerConfig creates default coalescer configuration.
func NewDefaultCoalescerConfig() CoalescerConfig {
	return CoalescerConfig{
		QuietWindowSeconds: 120,
		MaxWindowSeconds:   600,
	}
}

// SchedulerConfig configures scan-kind selection and history.
type SchedulerConfig struct {
	// FullScanIntervalDays forces a full scan this often regardless of
	// targeted results.
	FullScanIntervalDays int    `json:"full_scan_interval_days,omitempty" yaml:"full_scan_interval_days,omitempty" validate:"omitempty,min=1"`
	SQLitePath           string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
}

// NewDefaultSchedulerConfig creates default scheduler configuration.
func NewDefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		FullScanIntervalDays: 7,
		SQLitePath:           "data/scheduler.db",
	}
}

// ProberConfig configures the httpx cheap poll pass.
type ProberConfig struct {
	Enabled        bool `json:"enabled" yaml:"enabled"`
	Threads        int  `json:"threads,omitempty" yaml:"threads,omitempty" validate:"omitempty,min=1,max=50"`
	TimeoutSeconds int  `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty" validate:"omitempty,min=1"`
	Retries        int  `json:"retries,omitempty" yaml:"retries,omitempty" validate:"omitempty,min=0,max=5"`
}

// NewDefaultProberConfig creates default prober configuration.
func NewDefaultProberConfig() ProberConfig {
	return ProberConfig{
		Enabled:        true,
		Threads:        10,
		TimeoutSeconds: 10,
		Retries:        1,
	}
}

// StorageConfig configures durable state locations.
type StorageConfig struct {
	FingerprintDBPath string `json:"fingerprint_db_path,omitempty" yaml:"fingerprint_db_path,omitempty"`
	SnapshotDir       string `json:"snapshot_dir,omitempty" yaml:"snapshot_dir,omitempty"`
	CompressionCodec  string `json:"compression_codec,omitempty" yaml:"compression_codec,omitempty" validate:"omitempty,oneof=zstd gzip snappy none"`
	// ChangesDir receives one JSON change-set document per run for the
	// downstream archival stage.
	ChangesDir string `json:"changes_dir,omitempty" yaml:"changes_dir,omitempty"`
}

// NewDefaultStorageConfig creates default storage configuration.
func NewDefaultStorageConfig() StorageConfig {
	return StorageConfig{
		FingerprintDBPath: "data/fingerprints.db",
		SnapshotDir:       "data/snapshots",
		CompressionCodec:  "zstd",
		ChangesDir:        "data/changes",
	}
}

// NotificationConfig configures downstream batch dispatch.
type NotificationConfig struct {
	JobRunnerWebhookURL string `json:"job_runner_webhook_url,omitempty" yaml:"job_runner_webhook_url,omitempty" validate:"omitempty,url"`
	RetryAttempts       int    `json:"retry_attempts,omitempty" yaml:"retry_attempts,omitempty" validate:"omitempty,min=0,max=5"`
	RetryDelaySeconds   int    `json:"retry_delay_seconds,omitempty" yaml:"retry_delay_seconds,omitempty" validate:"omitempty,min=1"`
	TimeoutSeconds      int    `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultNotificationConfig creates default notification configuration.
func NewDefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		RetryAttempts:     2,
		RetryDelaySeconds: 5,
		TimeoutSeconds:    20,
	}
}

// SignalConfig configures the push-signal HTTP listener.
type SignalConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
}

// NewDefaultSignalConfig creates default signal listener configuration.
func NewDefaultSignalConfig() SignalConfig {
	return SignalConfig{
		Enabled:    false,
		ListenAddr: ":8687",
	}
}

// LimiterConfig configures the system resource guard.
type LimiterConfig struct {
	Enabled              bool    `json:"enabled" yaml:"enabled"`
	MaxMemoryMB          int     `json:"max_memory_mb,omitempty" yaml:"max_memory_mb,omitempty" validate:"omitempty,min=64"`
	MaxSystemMemPercent  float64 `json:"max_system_mem_percent,omitempty" yaml:"max_system_mem_percent,omitempty" validate:"omitempty,min=1,max=100"`
	CheckIntervalSeconds int     `json:"check_interval_seconds,omitempty" yaml:"check_interval_seconds,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultLimiterConfig creates default limiter configuration.
func NewDefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		Enabled:              true,
		MaxMemoryMB:          1024,
		MaxSystemMemPercent:  85,
		CheckIntervalSeconds: 10,
	}
}
