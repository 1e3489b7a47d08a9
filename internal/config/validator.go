package config

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lessuselesss/bounty-crawl/internal/common"
)

// ValidateConfig performs validation on the GlobalConfig structure.
func ValidateConfig(cfg *GlobalConfig) error {
	validate := validator.New()

	_ = validate.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "", "debug", "info", "warn", "error", "fatal":
			return true
		}
		return false
	})

	_ = validate.RegisterValidation("logformat", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "", "console", "text", "json":
			return true
		}
		return false
	})

	_ = validate.RegisterValidation("mode", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "onetime", "automated":
			return true
		}
		return false
	})

	if err := validate.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			first := verrs[0]
			return common.NewValidationError(first.Namespace(), first.Value(), "failed rule '"+first.Tag()+"'")
		}
		return common.WrapError(err, "config validation failed")
	}

	if cfg.CoalescerConfig.MaxWindowSeconds < cfg.CoalescerConfig.QuietWindowSeconds {
		return common.NewValidationError(
			"coalescer_config.max_window_seconds",
			cfg.CoalescerConfig.MaxWindowSeconds,
			"max window must be >= quiet window",
		)
	}

	if cfg.FetcherConfig.AIExtract.Enabled {
		if cfg.FetcherConfig.AIExtract.EndpointURL == "" {
			return common.NewValidationError("fetcher_config.ai_extract.endpoint_url", "", "required when ai_extract is enabled")
		}
		if len(cfg.FetcherConfig.AIExtract.APIKeys) == 0 {
			return common.NewValidationError("fetcher_config.ai_extract.api_keys", nil, "at least one API key required when ai_extract is enabled")
		}
	}

	return nil
}
