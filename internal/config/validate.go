package config

import (
	"fmt"
	"strings"
)

// validate checks the Config for invalid or out-of-range values, returning
// a combined error describing every violation found.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be between 1 and 65535, got %d", cfg.Server.Port))
	}
	if !isValidEnum(cfg.Server.LogLevel, ValidLogLevels) {
		errs = append(errs, fmt.Sprintf("server.log_level must be one of %v, got %q", ValidLogLevels, cfg.Server.LogLevel))
	}
	if cfg.Server.DataDir == "" {
		errs = append(errs, "server.data_dir must not be empty")
	}
	if cfg.Server.ReadTimeout < 0 || cfg.Server.WriteTimeout < 0 || cfg.Server.IdleTimeout < 0 || cfg.Server.RequestTimeout < 0 {
		errs = append(errs, "server timeouts must be non-negative")
	}
	if cfg.Server.GracefulTimeoutSec < 0 {
		errs = append(errs, "server.graceful_timeout_sec must be non-negative")
	}

	if cfg.Device.Device != "" {
		valid := false
		for _, d := range ValidDevices {
			if cfg.Device.Device == d || strings.HasPrefix(cfg.Device.Device, d+":") {
				valid = true
				break
			}
		}
		if !valid {
			errs = append(errs, fmt.Sprintf("device.device must be \"cpu\", \"gpu\", or \"gpu:N\", got %q", cfg.Device.Device))
		}
	}

	if len(cfg.Families.FallbackOrder) == 0 {
		errs = append(errs, "families.fallback_order must not be empty")
	}

	if cfg.Cache.MaxCachedModels < 1 {
		errs = append(errs, fmt.Sprintf("cache.max_cached_models must be at least 1, got %d", cfg.Cache.MaxCachedModels))
	}
	if cfg.Cache.ModelIdleTimeoutSec < 0 {
		errs = append(errs, "cache.model_idle_timeout_sec must be non-negative")
	}
	if cfg.Cache.IdleCheckIntervalSec < 1 {
		errs = append(errs, "cache.idle_check_interval_sec must be at least 1")
	}

	if cfg.Memory.MemoryCriticalPct <= 0 || cfg.Memory.MemoryCriticalPct > 100 {
		errs = append(errs, "memory.memory_critical_pct must be in (0, 100]")
	}
	if cfg.Memory.HysteresisPct < 0 || cfg.Memory.HysteresisPct >= cfg.Memory.MemoryCriticalPct {
		errs = append(errs, "memory.hysteresis_pct must be non-negative and smaller than memory_critical_pct")
	}

	if cfg.Queue.MaxInflightTranslations < 1 {
		errs = append(errs, fmt.Sprintf("queue.max_inflight_translations must be at least 1, got %d", cfg.Queue.MaxInflightTranslations))
	}
	if cfg.Queue.MaxQueueSize < 0 {
		errs = append(errs, "queue.max_queue_size must be non-negative")
	}
	if cfg.Queue.TranslateTimeoutSec < 1 {
		errs = append(errs, "queue.translate_timeout_sec must be at least 1")
	}
	if cfg.Queue.EMAAlpha <= 0 || cfg.Queue.EMAAlpha > 1 {
		errs = append(errs, "queue.ema_alpha must be in (0, 1]")
	}
	if cfg.Queue.RetryAfterMinSec < 0 || cfg.Queue.RetryAfterMaxSec < cfg.Queue.RetryAfterMinSec {
		errs = append(errs, "queue.retry_after_max_sec must be >= retry_after_min_sec >= 0")
	}

	if cfg.Sanitize.InputMinChars < 0 {
		errs = append(errs, "sanitize.input_min_chars must be non-negative")
	}
	if cfg.Sanitize.InputMinAlnumRatio < 0 || cfg.Sanitize.InputMinAlnumRatio > 1 {
		errs = append(errs, "sanitize.input_min_alnum_ratio must be in [0, 1]")
	}

	if cfg.Splitting.MaxSentenceChars < 1 {
		errs = append(errs, "splitting.max_sentence_chars must be at least 1")
	}
	if cfg.Splitting.MaxChunkChars < cfg.Splitting.MaxSentenceChars {
		errs = append(errs, "splitting.max_chunk_chars must be >= max_sentence_chars")
	}
	if cfg.Splitting.AutoChunkMaxChars < cfg.Splitting.MaxChunkChars {
		errs = append(errs, "splitting.auto_chunk_max_chars must be >= max_chunk_chars")
	}

	if cfg.Pivot.PivotLang == "" {
		errs = append(errs, "pivot.pivot_lang must not be empty")
	}

	if cfg.Batch.EasyNMTBatchSize < 1 {
		errs = append(errs, "batch.easynmt_batch_size must be at least 1")
	}
	if cfg.Batch.EasyNMTMaxBeamSize < 1 {
		errs = append(errs, "batch.easynmt_max_beam_size must be at least 1")
	}
	if cfg.Batch.EasyNMTMaxTextLen < 1 {
		errs = append(errs, "batch.easynmt_max_text_len must be at least 1")
	}

	if cfg.Discovery.DiscoveryTTLSec < 0 {
		errs = append(errs, "discovery.discovery_ttl_sec must be non-negative")
	}

	if cfg.Tracing.Enabled {
		validExporters := []string{"stdout", "otlp-grpc", "otlp-http"}
		if !isValidEnum(cfg.Tracing.Exporter, validExporters) {
			errs = append(errs, fmt.Sprintf("tracing.exporter must be one of %v, got %q", validExporters, cfg.Tracing.Exporter))
		}
		if cfg.Tracing.ServiceName == "" {
			errs = append(errs, "tracing.service_name must not be empty when tracing is enabled")
		}
	}
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_rate must be between 0 and 1, got %f", cfg.Tracing.SampleRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func isValidEnum(val string, allowed []string) bool {
	lower := strings.ToLower(val)
	for _, a := range allowed {
		if strings.ToLower(a) == lower {
			return true
		}
	}
	return false
}
