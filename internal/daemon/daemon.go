package daemon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gonmt/nmtgw/internal/api"
	"github.com/gonmt/nmtgw/internal/config"
	"github.com/gonmt/nmtgw/internal/device"
	"github.com/gonmt/nmtgw/internal/discovery"
	"github.com/gonmt/nmtgw/internal/families"
	"github.com/gonmt/nmtgw/internal/inference"
	"github.com/gonmt/nmtgw/internal/langdetect"
	"github.com/gonmt/nmtgw/internal/metrics"
	"github.com/gonmt/nmtgw/internal/orchestrator"
	"github.com/gonmt/nmtgw/internal/pipelinecache"
	"github.com/gonmt/nmtgw/internal/pivot"
	"github.com/gonmt/nmtgw/internal/queue"
	"github.com/gonmt/nmtgw/internal/router"
	"github.com/gonmt/nmtgw/internal/store"
	"github.com/gonmt/nmtgw/internal/sysprobe"
	"github.com/gonmt/nmtgw/internal/text"
	"github.com/gonmt/nmtgw/internal/tracing"
	"github.com/gonmt/nmtgw/internal/vault"
	"github.com/gonmt/nmtgw/internal/version"
)

// Run is the main daemon orchestrator. It wires every collaborator
// (C1-C10), starts the API server and the background maintainer, and
// blocks until a shutdown signal is received.
func Run(cfg *config.Config, foreground bool) error {
	dataDir := expandHome(cfg.Server.DataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}

	logLevel := parseLogLevel(cfg.Server.LogLevel)
	zerolog.SetGlobalLevel(logLevel)

	writers := []io.Writer{}

	logPath := filepath.Join(dataDir, "nmtgw.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", logPath, err)
	}
	defer logFile.Close()
	writers = append(writers, logFile)

	if foreground {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
		writers = append(writers, consoleWriter)
	}

	multi := zerolog.MultiLevelWriter(writers...)
	log.Logger = zerolog.New(multi).With().Timestamp().Str("service", "nmtgw").Logger()

	log.Info().
		Str("version", version.Version).
		Str("data_dir", dataDir).
		Bool("foreground", foreground).
		Msg("nmtgw starting")

	if IsRunning(dataDir) {
		return fmt.Errorf("nmtgw is already running (PID file exists at %s)", filepath.Join(dataDir, pidFilename))
	}

	// 1. Open the discovery store (stale-pair fallback persistence, C8).
	dbPath := cfg.Discovery.DiscoveryDBPath
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "nmtgw.db")
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	log.Info().Str("db_path", dbPath).Msg("store opened")

	// 2. Tracing (optional).
	var tracingShutdown func(context.Context) error
	if cfg.Tracing.Enabled {
		shutdown, err := tracing.Init(context.Background(), cfg.Tracing.ServiceName, version.Version,
			cfg.Tracing.Exporter, cfg.Tracing.Endpoint, cfg.Tracing.SampleRate, cfg.Tracing.Insecure)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize tracing; continuing without it")
		} else {
			tracingShutdown = shutdown
			log.Info().Str("exporter", cfg.Tracing.Exporter).Msg("tracing initialized")
		}
	}

	// 3. Resolve the Hugging Face Hub token, if any, for the inference
	// sidecar to pick up (it shares this process's environment when
	// colocated; a remote sidecar is configured with its own token).
	v := vault.New()
	if hfToken, err := v.GetHFToken(); err != nil {
		log.Warn().Err(err).Msg("failed to resolve Hugging Face token from vault")
	} else if hfToken != "" {
		os.Setenv("HUGGING_FACE_HUB_TOKEN", hfToken)
		log.Info().Msg("Hugging Face Hub token resolved")
	}

	// 4. Build the inference runtime and resolve the device (C2). The
	// HTTP sidecar client is wrapped with retry-with-backoff and a
	// per-model circuit breaker so a sidecar hiccup doesn't surface
	// straight to callers.
	httpRuntime := inference.NewHTTPRuntime(cfg.Inference.RuntimeURL)
	var rt inference.Runtime = inference.NewResilientRuntime(
		httpRuntime,
		inference.RetryConfig{
			MaxAttempts: cfg.Resilience.RetryMaxAttempts,
			BaseDelay:   time.Duration(cfg.Resilience.RetryBaseDelayMs) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.Resilience.RetryMaxDelayMs) * time.Millisecond,
		},
		cfg.Resilience.CBFailureThreshold,
		time.Duration(cfg.Resilience.CBResetTimeoutSec)*time.Second,
		cfg.Resilience.CBHalfOpenMax,
	)

	gpuProbeCtx, gpuProbeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	gpuAvailable := httpRuntime.GPUAvailable(gpuProbeCtx)
	gpuProbeCancel()

	dev := device.Resolve(cfg.Device.Device, cfg.Device.UseGPU, device.Probe{GPUAvailable: gpuAvailable})
	maxInflight := cfg.Queue.MaxInflightTranslations
	if maxInflight <= 0 {
		maxInflight = dev.DefaultMaxInflight(goruntime.NumCPU())
	}

	log.Info().Str("device", dev.String()).Int("max_inflight", maxInflight).Msg("device resolved")

	// 5. Model families, pipeline cache (C3), router (C4), pivot planner (C5).
	famReg := families.NewRegistry()

	cache, err := pipelinecache.New(cfg.Cache.MaxCachedModels, rt)
	if err != nil {
		return fmt.Errorf("creating pipeline cache: %w", err)
	}

	fallbackOrder := make([]families.Name, 0, len(cfg.Families.FallbackOrder))
	for _, name := range cfg.Families.FallbackOrder {
		fallbackOrder = append(fallbackOrder, families.Name(name))
	}

	rtr := router.New(famReg, fallbackOrder, families.Name(cfg.Families.PreferredFamily), cfg.Families.AutoModelFallback)
	pivotPlanner := pivot.New(cfg.Pivot.PivotLang)

	// 6. Discovery registry (C8), backed by the store for stale fallback.
	disc := discovery.New(famReg, st, cfg.Discovery.DiscoveryRegistryURL, time.Duration(cfg.Discovery.DiscoveryTTLSec)*time.Second)

	// 7. Bounded concurrency gate (C6).
	gate := queue.New(queue.Options{
		CapacityInflight: maxInflight,
		CapacityWait:     cfg.Queue.MaxQueueSize,
		EnableQueue:      cfg.Queue.EnableQueue,
		EMAAlpha:         cfg.Queue.EMAAlpha,
		RetryAfterMinSec: cfg.Queue.RetryAfterMinSec,
		RetryAfterMaxSec: cfg.Queue.RetryAfterMaxSec,
	})

	// 8. Language detector and metrics collector.
	detector := langdetect.NewHeuristic(cfg.Pivot.PivotLang)
	collector := metrics.NewCollector()

	// 9. Translation Orchestrator (C7).
	orch := orchestrator.New(orchestrator.Config{
		Gate:          gate,
		Cache:         cache,
		Router:        rtr,
		Pivot:         pivotPlanner,
		Discovery:     disc,
		Runtime:       rt,
		Detector:      detector,
		Device:        dev,
		Families:      famReg,
		FallbackOrder: fallbackOrder,
		TextOpts: text.Options{
			InputMinChars:      cfg.Sanitize.InputMinChars,
			InputMinAlnumRatio: cfg.Sanitize.InputMinAlnumRatio,
			MaxSentenceChars:   cfg.Splitting.MaxSentenceChars,
			MaxChunkChars:      cfg.Splitting.MaxChunkChars,
			AutoChunkEnabled:   cfg.Splitting.AutoChunkEnabled,
			AutoChunkMaxChars:  cfg.Splitting.AutoChunkMaxChars,
			JoinSentencesWith:  cfg.Splitting.JoinSentencesWith,
			MaskDigits:         cfg.Masking.MaskDigits,
			MaskPunct:          cfg.Masking.MaskPunct,
			MaskEmoji:          cfg.Masking.MaskEmoji,
		},
		BatchSize:    cfg.Batch.EasyNMTBatchSize,
		MaxBeamSize:  cfg.Batch.EasyNMTMaxBeamSize,
		MaxTextLen:   cfg.Batch.EasyNMTMaxTextLen,
		JoinWith:     cfg.Splitting.JoinSentencesWith,
		QueueTimeout: time.Duration(cfg.Queue.TranslateTimeoutSec) * time.Second,
		Logger:       log.Logger,
	})

	// 10. API Edge (C10).
	handler := api.NewHandler(api.Config{
		Orchestrator:            orch,
		Gate:                    gate,
		Cache:                   cache,
		Router:                  rtr,
		Discovery:               disc,
		Families:                famReg,
		FallbackOrder:           fallbackOrder,
		Detector:                detector,
		Runtime:                 rt,
		Device:                  dev,
		Collector:               collector,
		Logger:                  log.Logger,
		DefaultPerformSplitting: cfg.Splitting.PerformSentenceSplittingDefault,
		DefaultBeamSize:         cfg.Batch.EasyNMTMaxBeamSize,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port)
	readTimeout := time.Duration(cfg.Server.ReadTimeout) * time.Second
	writeTimeout := time.Duration(cfg.Server.WriteTimeout) * time.Second
	idleTimeout := time.Duration(cfg.Server.IdleTimeout) * time.Second
	srv := api.NewServer(handler, addr, readTimeout, writeTimeout, idleTimeout, cfg.Tracing.Enabled)

	// 11. Write PID file.
	if err := WritePID(dataDir); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer func() {
		if err := RemovePID(dataDir); err != nil {
			log.Error().Err(err).Msg("failed to remove PID file")
		}
	}()
	log.Info().Int("pid", os.Getpid()).Msg("PID file written")

	// 12. Config watcher (hot-reload of log level only; structural
	// settings like queue capacity require a restart).
	configFile := config.ConfigFilePath()
	if configFile == "" {
		configFile = filepath.Join(dataDir, config.DefaultConfigFilename)
	}

	var watcher *config.Watcher
	if _, statErr := os.Stat(configFile); statErr == nil {
		w, watchErr := config.Watch(configFile)
		if watchErr != nil {
			log.Warn().Err(watchErr).Msg("failed to start config watcher; continuing without hot-reload")
		} else {
			watcher = w
			defer watcher.Close()
			watcher.OnChange(func(old, newCfg *config.Config) {
				log.Info().Msg("configuration reloaded")
				zerolog.SetGlobalLevel(parseLogLevel(newCfg.Server.LogLevel))
			})
			log.Info().Str("file", configFile).Msg("config watcher started")
		}
	}

	// 13. Background Maintainer (C9): periodic idle + memory-pressure
	// eviction of cached pipelines.
	maintainCtx, maintainCancel := context.WithCancel(context.Background())
	defer maintainCancel()
	maintainerDone := make(chan struct{})
	go func() {
		defer close(maintainerDone)
		runMaintainer(maintainCtx, cache, cfg)
	}()

	// 14. Start the API server.
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("api server starting")
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	log.Info().Int("port", cfg.Server.Port).Msg("nmtgw is ready")
	if foreground {
		fmt.Printf("\n  nmtgw is running!\n")
		fmt.Printf("  API: http://localhost:%d\n\n", cfg.Server.Port)
	}

	// 15. Wait for shutdown signal or fatal error.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("fatal server error")
		return err
	}

	// 16. Graceful shutdown: stop accepting new requests, wait for
	// inflight work within the configured timeout, stop the maintainer,
	// purge the cache, then exit.
	gracefulTimeout := time.Duration(cfg.Server.GracefulTimeoutSec) * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gracefulTimeout)
	defer shutdownCancel()

	log.Info().Msg("shutting down...")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("api server shutdown error")
	}

	maintainCancel()
	<-maintainerDone

	cache.PurgeAll()

	if tracingShutdown != nil {
		if err := tracingShutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("tracing shutdown error")
		}
	}

	if err := RemovePID(dataDir); err != nil {
		log.Error().Err(err).Msg("failed to remove PID file during shutdown")
	}

	log.Info().Msg("nmtgw stopped")
	return nil
}

// Stop reads the PID file and sends SIGTERM to the running daemon.
func Stop() error {
	dataDir := expandHome(config.Get().Server.DataDir)

	pid, err := ReadPID(dataDir)
	if err != nil {
		return fmt.Errorf("nmtgw does not appear to be running: %w", err)
	}

	if !isProcessAlive(pid) {
		if rmErr := RemovePID(dataDir); rmErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to remove stale PID file: %v\n", rmErr)
		}
		return fmt.Errorf("nmtgw is not running (stale PID file removed)")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sending SIGTERM to process %d: %w", pid, err)
	}

	fmt.Printf("Sent SIGTERM to nmtgw (PID %d)\n", pid)

	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if !isProcessAlive(pid) {
			return nil
		}
	}

	return nil
}

// Status checks if the daemon is running and prints a summary.
func Status() error {
	cfg := config.Get()
	dataDir := expandHome(cfg.Server.DataDir)

	if !IsRunning(dataDir) {
		fmt.Println("nmtgw is not running")
		return nil
	}

	pid, _ := ReadPID(dataDir)
	fmt.Printf("nmtgw is running (PID %d)\n", pid)

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s:%d/healthz", cfg.Server.BindAddress, cfg.Server.Port))
	if err != nil {
		fmt.Println("  (api server unreachable)")
		return nil
	}
	defer resp.Body.Close()
	fmt.Printf("  Status: %s\n", resp.Status)

	return nil
}

// runMaintainer periodically scans the pipeline cache for idle entries
// and, when memory monitoring is enabled, for memory pressure, evicting
// as needed. It runs until ctx is cancelled.
func runMaintainer(ctx context.Context, cache *pipelinecache.Cache, cfg *config.Config) {
	interval := time.Duration(cfg.Cache.IdleCheckIntervalSec) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	idleTimeout := time.Duration(cfg.Cache.ModelIdleTimeoutSec) * time.Second

	pressureSources := map[string]pipelinecache.PressureSource{
		"ram": sysprobe.RAMPercent,
	}
	thresholds := map[string]float64{
		"ram": cfg.Memory.MemoryCriticalPct,
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Error().Interface("panic", r).Msg("maintainer: recovered from panic")
					}
				}()

				if idleTimeout > 0 {
					if evicted := cache.EvictIdle(time.Now(), idleTimeout); len(evicted) > 0 {
						log.Info().Int("count", len(evicted)).Msg("evicted idle pipelines")
					}
				}

				if cfg.Memory.MemoryMonitoringEnabled {
					if evicted := cache.EvictUnderPressure(pressureSources, thresholds, cfg.Memory.HysteresisPct); len(evicted) > 0 {
						log.Warn().Int("count", len(evicted)).Msg("evicted pipelines under memory pressure")
					}
				}
			}()
		}
	}
}

// parseLogLevel converts a string log level to a zerolog.Level.
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
