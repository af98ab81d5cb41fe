package config

// DefaultBindAddress is the default bind address (localhost only).
const DefaultBindAddress = "127.0.0.1"

// DefaultPort is the default HTTP listen port.
const DefaultPort = 24080

// DefaultLogLevel is the default log level.
const DefaultLogLevel = "info"

// DefaultLogFormat is the default log encoding ("console" or "json").
const DefaultLogFormat = "console"

// DefaultDataDir is the default data directory (before tilde expansion).
const DefaultDataDir = "~/.nmtgw"

// DefaultConfigFilename is the name of the config file.
const DefaultConfigFilename = "nmtgw.toml"

// DefaultReadTimeout is the HTTP server read timeout in seconds.
const DefaultReadTimeout = 10

// DefaultWriteTimeout is the HTTP server write timeout in seconds.
const DefaultWriteTimeout = 120

// DefaultIdleTimeout is the HTTP server idle timeout in seconds.
const DefaultIdleTimeout = 120

// DefaultRequestTimeout is the default Server.RequestTimeout, in seconds.
// No component reads this setting, so it does not bound request wall time.
const DefaultRequestTimeout = 90

// DefaultGracefulTimeoutSec bounds graceful shutdown, in seconds.
const DefaultGracefulTimeoutSec = 30

// DefaultMaxCachedModels is the default pipeline cache capacity.
const DefaultMaxCachedModels = 4

// DefaultModelIdleTimeoutSec evicts a pipeline idle this long.
const DefaultModelIdleTimeoutSec = 600

// DefaultIdleCheckIntervalSec is how often the maintainer scans for idle entries.
const DefaultIdleCheckIntervalSec = 30

// DefaultMemoryCriticalPct triggers eviction above this occupancy.
const DefaultMemoryCriticalPct = 90.0

// DefaultGPUMemoryCriticalPct is the default GPU occupancy threshold. The
// maintainer has no GPU-memory pressure source and does not read this
// setting; only RAM occupancy triggers pressure eviction.
const DefaultGPUMemoryCriticalPct = 90.0

// DefaultHysteresisPct is how far below the critical threshold eviction stops.
const DefaultHysteresisPct = 10.0

// DefaultCUDACacheClearIntervalSec is the default periodic GPU cache clear
// interval. No component reads this setting: the gateway never asks the
// runtime to release cached GPU allocator memory.
const DefaultCUDACacheClearIntervalSec = 300

// DefaultEnableQueue turns on the bounded concurrency gate.
const DefaultEnableQueue = true

// DefaultMaxInflightTranslations bounds concurrent inference calls.
const DefaultMaxInflightTranslations = 2

// DefaultMaxQueueSize bounds the FIFO wait list.
const DefaultMaxQueueSize = 64

// DefaultTranslateTimeoutSec bounds how long a job waits at the gate for a
// slot; inference time is not bounded by it.
const DefaultTranslateTimeoutSec = 60

// DefaultEMAAlpha smooths the per-slot service-time estimate.
const DefaultEMAAlpha = 0.2

// DefaultRetryAfterMinSec floors the suggested Retry-After value.
const DefaultRetryAfterMinSec = 1.0

// DefaultRetryAfterMaxSec caps the suggested Retry-After value.
const DefaultRetryAfterMaxSec = 30.0

// DefaultInputMinChars is the minimum length considered for noise rejection.
const DefaultInputMinChars = 2

// DefaultInputMinAlnumRatio is the minimum alphanumeric-rune ratio.
const DefaultInputMinAlnumRatio = 0.15

// DefaultSanitizePlaceholder is the default Sanitize.SanitizePlaceholder.
// The orchestrator does not read this setting; it always substitutes its
// own fixed placeholder text (orchestrator.SanitizePlaceholder).
const DefaultSanitizePlaceholder = ""

// DefaultAlignResponses is the default Align.AlignResponses. The API
// handler does not read this setting; it always requests 1:1 aligned
// responses.
const DefaultAlignResponses = true

// DefaultMaxSentenceChars bounds a single sentence before hard-splitting.
const DefaultMaxSentenceChars = 512

// DefaultMaxChunkChars bounds a packed chunk sent to one inference call.
const DefaultMaxChunkChars = 1024

// DefaultAutoChunkMaxChars is the ceiling for auto-chunking long documents.
const DefaultAutoChunkMaxChars = 8192

// DefaultJoinSentencesWith joins translated sentences back together.
const DefaultJoinSentencesWith = " "

// DefaultPerformSentenceSplitting is whether requests are split unless told otherwise.
const DefaultPerformSentenceSplitting = true

// DefaultPivotLang is the bridging language used when no direct pair exists.
const DefaultPivotLang = "en"

// DefaultEasyNMTBatchSize is the default batch size reported to the runtime.
const DefaultEasyNMTBatchSize = 16

// DefaultEasyNMTMaxBeamSize is the default beam width reported to the runtime.
const DefaultEasyNMTMaxBeamSize = 5

// DefaultEasyNMTMaxTextLen is the default max input length in characters.
const DefaultEasyNMTMaxTextLen = 10000

// DefaultDiscoveryTTLSec is how long a discovered pair set is trusted.
const DefaultDiscoveryTTLSec = 86400

// DefaultDiscoveryRegistryURL is the opus-mt pair registry endpoint.
const DefaultDiscoveryRegistryURL = "https://huggingface.co/api/models?author=Helsinki-NLP"

// DefaultRuntimeURL is the default sidecar inference process address.
const DefaultRuntimeURL = "http://127.0.0.1:8701"

// DefaultRetryMaxAttempts bounds retries against the inference sidecar.
const DefaultRetryMaxAttempts = 3

// DefaultRetryBaseDelayMs is the base exponential backoff delay.
const DefaultRetryBaseDelayMs = 200

// DefaultRetryMaxDelayMs caps the exponential backoff delay.
const DefaultRetryMaxDelayMs = 5000

// DefaultCBFailureThreshold trips a model's circuit after this many
// consecutive failures.
const DefaultCBFailureThreshold = 5

// DefaultCBResetTimeoutSec is how long a tripped circuit stays open
// before allowing a trial request through.
const DefaultCBResetTimeoutSec = 30

// DefaultCBHalfOpenMax is how many consecutive trial successes close a
// half-open circuit.
const DefaultCBHalfOpenMax = 2

// DefaultTracingExporter is the default tracing exporter type.
const DefaultTracingExporter = "stdout"

// DefaultTracingEndpoint is the default OTLP collector endpoint.
const DefaultTracingEndpoint = "localhost:4317"

// DefaultTracingServiceName is the default service name for traces.
const DefaultTracingServiceName = "nmtgw"

// DefaultTracingSampleRate is the default sampling rate (1.0 = 100%).
const DefaultTracingSampleRate = 1.0

// ValidLogLevels lists the allowed log level values.
var ValidLogLevels = []string{"trace", "debug", "info", "warn", "error", "fatal"}

// ValidDevices lists device selector prefixes accepted verbatim or with a
// trailing ":N" GPU index.
var ValidDevices = []string{"cpu", "gpu"}

// DefaultFallbackOrder is the family preference order used when a pair is
// covered by more than one family.
var DefaultFallbackOrder = []string{"opus-mt", "mbart50", "m2m100"}

// DefaultConfig returns a Config populated with every default value.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddress:         DefaultBindAddress,
			Port:                DefaultPort,
			LogLevel:            DefaultLogLevel,
			LogFormat:           DefaultLogFormat,
			DataDir:             DefaultDataDir,
			ReadTimeout:         DefaultReadTimeout,
			WriteTimeout:        DefaultWriteTimeout,
			IdleTimeout:         DefaultIdleTimeout,
			RequestTimeout:      DefaultRequestTimeout,
			GracefulTimeoutSec:  DefaultGracefulTimeoutSec,
		},
		Device: DeviceConfig{
			Device: "",
			UseGPU: nil,
		},
		Families: FamiliesConfig{
			FallbackOrder:     append([]string(nil), DefaultFallbackOrder...),
			AutoModelFallback: true,
			PreferredFamily:   "",
		},
		Cache: CacheConfig{
			MaxCachedModels:      DefaultMaxCachedModels,
			ModelIdleTimeoutSec:  DefaultModelIdleTimeoutSec,
			IdleCheckIntervalSec: DefaultIdleCheckIntervalSec,
		},
		Memory: MemoryConfig{
			MemoryCriticalPct:        DefaultMemoryCriticalPct,
			GPUMemoryCriticalPct:     DefaultGPUMemoryCriticalPct,
			HysteresisPct:            DefaultHysteresisPct,
			MemoryMonitoringEnabled:  true,
			CUDACacheClearIntervalSec: DefaultCUDACacheClearIntervalSec,
		},
		Queue: QueueConfig{
			EnableQueue:             DefaultEnableQueue,
			MaxInflightTranslations: DefaultMaxInflightTranslations,
			MaxQueueSize:            DefaultMaxQueueSize,
			TranslateTimeoutSec:     DefaultTranslateTimeoutSec,
			EMAAlpha:                DefaultEMAAlpha,
			RetryAfterMinSec:        DefaultRetryAfterMinSec,
			RetryAfterMaxSec:        DefaultRetryAfterMaxSec,
		},
		Sanitize: SanitizeConfig{
			InputMinChars:        DefaultInputMinChars,
			InputMinAlnumRatio:   DefaultInputMinAlnumRatio,
			SanitizePlaceholder:  DefaultSanitizePlaceholder,
		},
		Align: AlignConfig{
			AlignResponses: DefaultAlignResponses,
		},
		Splitting: SplittingConfig{
			MaxSentenceChars:                 DefaultMaxSentenceChars,
			MaxChunkChars:                    DefaultMaxChunkChars,
			AutoChunkEnabled:                 true,
			AutoChunkMaxChars:                DefaultAutoChunkMaxChars,
			JoinSentencesWith:                DefaultJoinSentencesWith,
			PerformSentenceSplittingDefault:  DefaultPerformSentenceSplitting,
		},
		Masking: MaskingConfig{
			SymbolMasking: true,
			MaskDigits:    true,
			MaskPunct:     false,
			MaskEmoji:     true,
		},
		Pivot: PivotConfig{
			PivotLang: DefaultPivotLang,
		},
		Batch: BatchConfig{
			EasyNMTBatchSize:   DefaultEasyNMTBatchSize,
			EasyNMTMaxBeamSize: DefaultEasyNMTMaxBeamSize,
			EasyNMTMaxTextLen:  DefaultEasyNMTMaxTextLen,
		},
		Discovery: DiscoveryConfig{
			DiscoveryTTLSec:     DefaultDiscoveryTTLSec,
			DiscoveryRegistryURL: DefaultDiscoveryRegistryURL,
			DiscoveryDBPath:     "", // resolved against DataDir at load time if empty
		},
		Inference: InferenceConfig{
			RuntimeURL: DefaultRuntimeURL,
		},
		Resilience: ResilienceConfig{
			RetryMaxAttempts:   DefaultRetryMaxAttempts,
			RetryBaseDelayMs:   DefaultRetryBaseDelayMs,
			RetryMaxDelayMs:    DefaultRetryMaxDelayMs,
			CBFailureThreshold: DefaultCBFailureThreshold,
			CBResetTimeoutSec:  DefaultCBResetTimeoutSec,
			CBHalfOpenMax:      DefaultCBHalfOpenMax,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    DefaultTracingExporter,
			Endpoint:    DefaultTracingEndpoint,
			ServiceName: DefaultTracingServiceName,
			SampleRate:  DefaultTracingSampleRate,
			Insecure:    false,
		},
	}
}
