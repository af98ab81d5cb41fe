// Package config loads and hot-reloads the gateway's typed configuration
// from TOML files, environment variables, and built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

var configPtr atomic.Pointer[Config]
var loadedConfigFile atomic.Value

// Get returns the current Config. Safe for concurrent use. If no config has
// been loaded yet it returns (and caches) the default config.
func Get() *Config {
	if c := configPtr.Load(); c != nil {
		return c
	}
	d := DefaultConfig()
	configPtr.Store(d)
	return d
}

func set(cfg *Config) {
	configPtr.Store(cfg)
}

// Config is the top-level gateway configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    toml:"server"`
	Device    DeviceConfig    `mapstructure:"device"    toml:"device"`
	Families  FamiliesConfig  `mapstructure:"families"  toml:"families"`
	Cache     CacheConfig     `mapstructure:"cache"     toml:"cache"`
	Memory    MemoryConfig    `mapstructure:"memory"    toml:"memory"`
	Queue     QueueConfig     `mapstructure:"queue"     toml:"queue"`
	Sanitize  SanitizeConfig  `mapstructure:"sanitize"  toml:"sanitize"`
	Align     AlignConfig     `mapstructure:"align"     toml:"align"`
	Splitting SplittingConfig `mapstructure:"splitting" toml:"splitting"`
	Masking   MaskingConfig   `mapstructure:"masking"   toml:"masking"`
	Pivot     PivotConfig     `mapstructure:"pivot"     toml:"pivot"`
	Batch     BatchConfig     `mapstructure:"batch"     toml:"batch"`
	Discovery DiscoveryConfig `mapstructure:"discovery" toml:"discovery"`
	Inference  InferenceConfig  `mapstructure:"inference"  toml:"inference"`
	Resilience ResilienceConfig `mapstructure:"resilience" toml:"resilience"`
	Tracing    TracingConfig    `mapstructure:"tracing"    toml:"tracing"`
}

// ServerConfig holds core HTTP server settings.
type ServerConfig struct {
	BindAddress        string `mapstructure:"bind_address"        toml:"bind_address"`
	Port               int    `mapstructure:"port"                toml:"port"`
	LogLevel           string `mapstructure:"log_level"           toml:"log_level"`
	LogFormat          string `mapstructure:"log_format"          toml:"log_format"`
	DataDir            string `mapstructure:"data_dir"            toml:"data_dir"`
	ReadTimeout        int    `mapstructure:"read_timeout"        toml:"read_timeout"`
	WriteTimeout       int    `mapstructure:"write_timeout"       toml:"write_timeout"`
	IdleTimeout        int    `mapstructure:"idle_timeout"        toml:"idle_timeout"`
	RequestTimeout     int    `mapstructure:"request_timeout"     toml:"request_timeout"`
	GracefulTimeoutSec int    `mapstructure:"graceful_timeout_sec" toml:"graceful_timeout_sec"`
}

// DeviceConfig controls C2's device resolution.
type DeviceConfig struct {
	Device string `mapstructure:"device" toml:"device"` // "", "cpu", "gpu", "gpu:N"
	UseGPU *bool  `mapstructure:"use_gpu" toml:"use_gpu"`
}

// FamiliesConfig controls model family fallback ordering.
type FamiliesConfig struct {
	FallbackOrder     []string `mapstructure:"fallback_order"      toml:"fallback_order"`
	AutoModelFallback bool     `mapstructure:"auto_model_fallback" toml:"auto_model_fallback"`
	PreferredFamily   string   `mapstructure:"preferred_family"    toml:"preferred_family"`
}

// CacheConfig controls C3's pipeline cache capacity and eviction timers.
type CacheConfig struct {
	MaxCachedModels      int `mapstructure:"max_cached_models"       toml:"max_cached_models"`
	ModelIdleTimeoutSec  int `mapstructure:"model_idle_timeout_sec"  toml:"model_idle_timeout_sec"`
	IdleCheckIntervalSec int `mapstructure:"idle_check_interval_sec" toml:"idle_check_interval_sec"`
}

// MemoryConfig controls pressure-based eviction.
type MemoryConfig struct {
	MemoryCriticalPct         float64 `mapstructure:"memory_critical_pct"          toml:"memory_critical_pct"`
	GPUMemoryCriticalPct      float64 `mapstructure:"gpu_memory_critical_pct"      toml:"gpu_memory_critical_pct"`
	HysteresisPct             float64 `mapstructure:"hysteresis_pct"               toml:"hysteresis_pct"`
	MemoryMonitoringEnabled   bool    `mapstructure:"memory_monitoring_enabled"    toml:"memory_monitoring_enabled"`
	CUDACacheClearIntervalSec int     `mapstructure:"cuda_cache_clear_interval_sec" toml:"cuda_cache_clear_interval_sec"`
}

// QueueConfig controls C6's bounded concurrency gate.
type QueueConfig struct {
	EnableQueue             bool    `mapstructure:"enable_queue"               toml:"enable_queue"`
	MaxInflightTranslations int     `mapstructure:"max_inflight_translations"  toml:"max_inflight_translations"`
	MaxQueueSize            int     `mapstructure:"max_queue_size"             toml:"max_queue_size"`
	TranslateTimeoutSec     int     `mapstructure:"translate_timeout_sec"      toml:"translate_timeout_sec"`
	EMAAlpha                float64 `mapstructure:"ema_alpha"                  toml:"ema_alpha"`
	RetryAfterMinSec        float64 `mapstructure:"retry_after_min_sec"        toml:"retry_after_min_sec"`
	RetryAfterMaxSec        float64 `mapstructure:"retry_after_max_sec"        toml:"retry_after_max_sec"`
}

// SanitizeConfig controls C1's noise-rejection thresholds.
type SanitizeConfig struct {
	InputMinChars       int     `mapstructure:"input_min_chars"       toml:"input_min_chars"`
	InputMinAlnumRatio  float64 `mapstructure:"input_min_alnum_ratio" toml:"input_min_alnum_ratio"`
	SanitizePlaceholder string  `mapstructure:"sanitize_placeholder"  toml:"sanitize_placeholder"`
}

// AlignConfig holds the align_responses setting. The API handler does not
// read it and always requests 1:1 aligned responses.
type AlignConfig struct {
	AlignResponses bool `mapstructure:"align_responses" toml:"align_responses"`
}

// SplittingConfig controls C1's sentence/chunk segmentation.
type SplittingConfig struct {
	MaxSentenceChars                int    `mapstructure:"max_sentence_chars"                  toml:"max_sentence_chars"`
	MaxChunkChars                    int    `mapstructure:"max_chunk_chars"                     toml:"max_chunk_chars"`
	AutoChunkEnabled                 bool   `mapstructure:"auto_chunk_enabled"                  toml:"auto_chunk_enabled"`
	AutoChunkMaxChars                int    `mapstructure:"auto_chunk_max_chars"                toml:"auto_chunk_max_chars"`
	JoinSentencesWith                string `mapstructure:"join_sentences_with"                 toml:"join_sentences_with"`
	PerformSentenceSplittingDefault  bool   `mapstructure:"perform_sentence_splitting_default"  toml:"perform_sentence_splitting_default"`
}

// MaskingConfig controls C1's symbol masking.
type MaskingConfig struct {
	SymbolMasking bool `mapstructure:"symbol_masking" toml:"symbol_masking"`
	MaskDigits    bool `mapstructure:"mask_digits"    toml:"mask_digits"`
	MaskPunct     bool `mapstructure:"mask_punct"     toml:"mask_punct"`
	MaskEmoji     bool `mapstructure:"mask_emoji"     toml:"mask_emoji"`
}

// PivotConfig controls C5's bridging language.
type PivotConfig struct {
	PivotLang string `mapstructure:"pivot_lang" toml:"pivot_lang"`
}

// BatchConfig is reported to the inference runtime collaborator.
type BatchConfig struct {
	EasyNMTBatchSize   int `mapstructure:"easynmt_batch_size"    toml:"easynmt_batch_size"`
	EasyNMTMaxBeamSize int `mapstructure:"easynmt_max_beam_size" toml:"easynmt_max_beam_size"`
	EasyNMTMaxTextLen  int `mapstructure:"easynmt_max_text_len"  toml:"easynmt_max_text_len"`
}

// DiscoveryConfig controls C8's pair-registry refresh.
type DiscoveryConfig struct {
	DiscoveryTTLSec      int    `mapstructure:"discovery_ttl_sec"      toml:"discovery_ttl_sec"`
	DiscoveryRegistryURL string `mapstructure:"discovery_registry_url" toml:"discovery_registry_url"`
	DiscoveryDBPath      string `mapstructure:"discovery_db_path"      toml:"discovery_db_path"`
}

// InferenceConfig points at the sidecar process that actually loads and
// runs models; the gateway itself never imports a tensor runtime.
type InferenceConfig struct {
	RuntimeURL string `mapstructure:"runtime_url" toml:"runtime_url"`
}

// ResilienceConfig controls retry-with-backoff and per-model circuit
// breaking around calls to the inference sidecar.
type ResilienceConfig struct {
	RetryMaxAttempts   int `mapstructure:"retry_max_attempts"    toml:"retry_max_attempts"`
	RetryBaseDelayMs   int `mapstructure:"retry_base_delay_ms"   toml:"retry_base_delay_ms"`
	RetryMaxDelayMs    int `mapstructure:"retry_max_delay_ms"    toml:"retry_max_delay_ms"`
	CBFailureThreshold int `mapstructure:"cb_failure_threshold"  toml:"cb_failure_threshold"`
	CBResetTimeoutSec  int `mapstructure:"cb_reset_timeout_sec"  toml:"cb_reset_timeout_sec"`
	CBHalfOpenMax      int `mapstructure:"cb_half_open_max"      toml:"cb_half_open_max"`
}

// TracingConfig controls OpenTelemetry span export.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"      toml:"enabled"`
	Exporter    string  `mapstructure:"exporter"     toml:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"     toml:"endpoint"`
	ServiceName string  `mapstructure:"service_name" toml:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"  toml:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"     toml:"insecure"`
}

// Load resolves configuration in order: explicitPath if non-empty, then
// ~/.nmtgw/nmtgw.toml, then ./nmtgw.toml, then built-in defaults, with an
// NMTGW_-prefixed environment overlay applied last. The loaded config is
// validated and stored in the global atomic pointer.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	setViperDefaults(v)

	v.SetEnvPrefix("NMTGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".nmtgw"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("nmtgw")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if cf := v.ConfigFileUsed(); cf != "" {
		loadedConfigFile.Store(cf)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.Server.DataDir = expandHome(cfg.Server.DataDir)
	if cfg.Discovery.DiscoveryDBPath == "" {
		cfg.Discovery.DiscoveryDBPath = filepath.Join(cfg.Server.DataDir, "discovery.db")
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	set(cfg)
	return cfg, nil
}

// InitConfig writes the default configuration file to ~/.nmtgw/nmtgw.toml
// if it does not already exist.
func InitConfig() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("determining home directory: %w", err)
	}

	dir := filepath.Join(homeDir, ".nmtgw")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dir, DefaultConfigFilename)
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("config already exists: %s\n", path)
		return nil
	}

	cfg := DefaultConfig()
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("config written to %s\n", path)
	return nil
}

// ImportConfig loads a TOML file at path, validates it, and writes it out
// as the active config at ~/.nmtgw/nmtgw.toml.
func ImportConfig(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("determining home directory: %w", err)
	}
	dir := filepath.Join(homeDir, ".nmtgw")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, DefaultConfigFilename), data, 0o600)
}

// ExportConfig writes the current config to path in TOML format.
func ExportConfig(path string) error {
	cfg := Get()
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// ConfigFilePath returns the path of the config file that was loaded, or
// empty if none was found.
func ConfigFilePath() string {
	if v, ok := loadedConfigFile.Load().(string); ok {
		return v
	}
	return ""
}

func setViperDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("server.bind_address", d.Server.BindAddress)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.log_level", d.Server.LogLevel)
	v.SetDefault("server.log_format", d.Server.LogFormat)
	v.SetDefault("server.data_dir", d.Server.DataDir)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout)
	v.SetDefault("server.graceful_timeout_sec", d.Server.GracefulTimeoutSec)

	v.SetDefault("device.device", d.Device.Device)

	v.SetDefault("families.fallback_order", d.Families.FallbackOrder)
	v.SetDefault("families.auto_model_fallback", d.Families.AutoModelFallback)
	v.SetDefault("families.preferred_family", d.Families.PreferredFamily)

	v.SetDefault("cache.max_cached_models", d.Cache.MaxCachedModels)
	v.SetDefault("cache.model_idle_timeout_sec", d.Cache.ModelIdleTimeoutSec)
	v.SetDefault("cache.idle_check_interval_sec", d.Cache.IdleCheckIntervalSec)

	v.SetDefault("memory.memory_critical_pct", d.Memory.MemoryCriticalPct)
	v.SetDefault("memory.gpu_memory_critical_pct", d.Memory.GPUMemoryCriticalPct)
	v.SetDefault("memory.hysteresis_pct", d.Memory.HysteresisPct)
	v.SetDefault("memory.memory_monitoring_enabled", d.Memory.MemoryMonitoringEnabled)
	v.SetDefault("memory.cuda_cache_clear_interval_sec", d.Memory.CUDACacheClearIntervalSec)

	v.SetDefault("queue.enable_queue", d.Queue.EnableQueue)
	v.SetDefault("queue.max_inflight_translations", d.Queue.MaxInflightTranslations)
	v.SetDefault("queue.max_queue_size", d.Queue.MaxQueueSize)
	v.SetDefault("queue.translate_timeout_sec", d.Queue.TranslateTimeoutSec)
	v.SetDefault("queue.ema_alpha", d.Queue.EMAAlpha)
	v.SetDefault("queue.retry_after_min_sec", d.Queue.RetryAfterMinSec)
	v.SetDefault("queue.retry_after_max_sec", d.Queue.RetryAfterMaxSec)

	v.SetDefault("sanitize.input_min_chars", d.Sanitize.InputMinChars)
	v.SetDefault("sanitize.input_min_alnum_ratio", d.Sanitize.InputMinAlnumRatio)
	v.SetDefault("sanitize.sanitize_placeholder", d.Sanitize.SanitizePlaceholder)

	v.SetDefault("align.align_responses", d.Align.AlignResponses)

	v.SetDefault("splitting.max_sentence_chars", d.Splitting.MaxSentenceChars)
	v.SetDefault("splitting.max_chunk_chars", d.Splitting.MaxChunkChars)
	v.SetDefault("splitting.auto_chunk_enabled", d.Splitting.AutoChunkEnabled)
	v.SetDefault("splitting.auto_chunk_max_chars", d.Splitting.AutoChunkMaxChars)
	v.SetDefault("splitting.join_sentences_with", d.Splitting.JoinSentencesWith)
	v.SetDefault("splitting.perform_sentence_splitting_default", d.Splitting.PerformSentenceSplittingDefault)

	v.SetDefault("masking.symbol_masking", d.Masking.SymbolMasking)
	v.SetDefault("masking.mask_digits", d.Masking.MaskDigits)
	v.SetDefault("masking.mask_punct", d.Masking.MaskPunct)
	v.SetDefault("masking.mask_emoji", d.Masking.MaskEmoji)

	v.SetDefault("pivot.pivot_lang", d.Pivot.PivotLang)

	v.SetDefault("batch.easynmt_batch_size", d.Batch.EasyNMTBatchSize)
	v.SetDefault("batch.easynmt_max_beam_size", d.Batch.EasyNMTMaxBeamSize)
	v.SetDefault("batch.easynmt_max_text_len", d.Batch.EasyNMTMaxTextLen)

	v.SetDefault("discovery.discovery_ttl_sec", d.Discovery.DiscoveryTTLSec)
	v.SetDefault("discovery.discovery_registry_url", d.Discovery.DiscoveryRegistryURL)
	v.SetDefault("discovery.discovery_db_path", d.Discovery.DiscoveryDBPath)

	v.SetDefault("inference.runtime_url", d.Inference.RuntimeURL)

	v.SetDefault("resilience.retry_max_attempts", d.Resilience.RetryMaxAttempts)
	v.SetDefault("resilience.retry_base_delay_ms", d.Resilience.RetryBaseDelayMs)
	v.SetDefault("resilience.retry_max_delay_ms", d.Resilience.RetryMaxDelayMs)
	v.SetDefault("resilience.cb_failure_threshold", d.Resilience.CBFailureThreshold)
	v.SetDefault("resilience.cb_reset_timeout_sec", d.Resilience.CBResetTimeoutSec)
	v.SetDefault("resilience.cb_half_open_max", d.Resilience.CBHalfOpenMax)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.insecure", d.Tracing.Insecure)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
