package config

// FetcherConfig groups the per-backend fetch configuration.
type FetcherConfig struct {
	// BackendOrder lists backend names in fallback preference order.
	// Known names: "render", "ai", "http".
	BackendOrder []string        `json:"backend_order,omitempty" yaml:"backend_order,omitempty" validate:"omitempty,dive,oneof=render ai http"`
	HTTP         HTTPBackend     `json:"http,omitempty" yaml:"http,omitempty"`
	Render       RenderBackend   `json:"render,omitempty" yaml:"render,omitempty"`
	AIExtract    AIExtractConfig `json:"ai_extract,omitempty" yaml:"ai_extract,omitempty"`
}

// HTTPBackend configures the lightweight colly-based HTTP fetcher.
type HTTPBackend struct {
	TimeoutSeconds     int    `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty" validate:"omitempty,min=1"`
	MaxContentSize     int    `json:"max_content_size,omitempty" yaml:"max_content_size,omitempty" validate:"omitempty,min=1"`
	UserAgent          string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// RenderBackend configures the go-rod headless rendering fetcher.
type RenderBackend struct {
	Enabled           bool   `json:"enabled" yaml:"enabled"`
	PoolSize          int    `json:"pool_size,omitempty" yaml:"pool_size,omitempty" validate:"omitempty,min=1,max=8"`
	ChromePath        string `json:"chrome_path,omitempty" yaml:"chrome_path,omitempty"`
	UserDataDir       string `json:"user_data_dir,omitempty" yaml:"user_data_dir,omitempty"`
	PageTimeoutSecs   int    `json:"page_timeout_secs,omitempty" yaml:"page_timeout_secs,omitempty" validate:"omitempty,min=1"`
	WaitStableMillis  int    `json:"wait_stable_millis,omitempty" yaml:"wait_stable_millis,omitempty"`
	DisableImages     bool   `json:"disable_images" yaml:"disable_images"`
	CaptureScriptJSON bool   `json:"capture_script_json" yaml:"capture_script_json"`
}

// AIExtractConfig configures the metered external extraction service backend.
type AIExtractConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	EndpointURL    string   `json:"endpoint_url,omitempty" yaml:"endpoint_url,omitempty" validate:"omitempty,url"`
	APIKeys        []string `json:"api_keys,omitempty" yaml:"api_keys,omitempty"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultFetcherConfig creates default fetcher configuration.
func NewDefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		BackendOrder: []string{"render", "ai", "http"},
		HTTP: HTTPBackend{
			TimeoutSeconds:     30,
			MaxContentSize:     4 * 1024 * 1024,
			UserAgent:          "bounty-crawl/1.0",
			InsecureSkipVerify: false,
		},
		Render: RenderBackend{
			Enabled:           true,
			PoolSize:          2,
			PageTimeoutSecs:   45,
			WaitStableMillis:  750,
			DisableImages:     true,
			CaptureScriptJSON: true,
		},
		AIExtract: AIExtractConfig{
			Enabled:        false,
			TimeoutSeconds: 60,
		},
	}
}
