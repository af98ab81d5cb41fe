package config

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Discovery.DiscoveryDBPath = "/tmp/discovery.db"
	if err := validate(cfg); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	if err := validate(cfg); err == nil {
		t.Fatal("expected validation error for port 0")
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.LogLevel = "verbose"
	if err := validate(cfg); err == nil {
		t.Fatal("expected validation error for unknown log level")
	}
}

func TestValidateRejectsBadDevice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Device.Device = "tpu"
	if err := validate(cfg); err == nil {
		t.Fatal("expected validation error for unsupported device")
	}
	cfg.Device.Device = "gpu:0"
	if err := validate(cfg); err != nil {
		t.Fatalf("gpu:0 should be valid: %v", err)
	}
}

func TestValidateRejectsChunkOrdering(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Splitting.MaxChunkChars = cfg.Splitting.MaxSentenceChars - 1
	if err := validate(cfg); err == nil {
		t.Fatal("expected validation error when max_chunk_chars < max_sentence_chars")
	}
}

func TestGetReturnsDefaultWhenUnset(t *testing.T) {
	cfg := Get()
	if cfg == nil {
		t.Fatal("Get() should never return nil")
	}
}
