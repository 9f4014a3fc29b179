package config

import (
	"log/slog"
	"testing"
	"time"
)

func lookupFromMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(lookupFromMap(nil), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, DefaultListenAddr)
	}
	if cfg.Mode != ModeDev {
		t.Errorf("Mode = %q, want %q", cfg.Mode, ModeDev)
	}
	if cfg.LogFormat != LogFormatText {
		t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, LogFormatText)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if cfg.ShutdownTimeout != DefaultShutdown {
		t.Errorf("ShutdownTimeout = %v, want %v", cfg.ShutdownTimeout, DefaultShutdown)
	}
	if cfg.MaxConnections != 0 {
		t.Errorf("MaxConnections = %d, want 0", cfg.MaxConnections)
	}
	if cfg.WSSendQueueSize != DefaultWSSendQueueSize {
		t.Errorf("WSSendQueueSize = %d, want %d", cfg.WSSendQueueSize, DefaultWSSendQueueSize)
	}
	if cfg.MaxMessageBytes != DefaultMaxMessageBytes {
		t.Errorf("MaxMessageBytes = %d, want %d", cfg.MaxMessageBytes, DefaultMaxMessageBytes)
	}
	if len(cfg.AllowedOrigins) != 0 {
		t.Errorf("AllowedOrigins = %v, want empty", cfg.AllowedOrigins)
	}
	if cfg.TURNREST.Enabled() {
		t.Error("TURNREST.Enabled() = true, want false")
	}
	if cfg.ICEConfigError() != nil {
		t.Errorf("ICEConfigError() = %v, want nil", cfg.ICEConfigError())
	}
}

func TestLoadProdModeSwitchesLogDefaults(t *testing.T) {
	cfg, err := load(lookupFromMap(map[string]string{
		"SPARK_MODE": "prod",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogFormat != LogFormatJSON {
		t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, LogFormatJSON)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
}

func TestLoadFlagModeOverridesEnvAndUpdatesLogDefaults(t *testing.T) {
	cfg, err := load(lookupFromMap(map[string]string{
		"SPARK_MODE": "dev",
	}), []string{"--mode", "prod"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeProd {
		t.Errorf("Mode = %q, want %q", cfg.Mode, ModeProd)
	}
	if cfg.LogFormat != LogFormatJSON {
		t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, LogFormatJSON)
	}
}

func TestLoadExplicitLogFormatWinsOverMode(t *testing.T) {
	cfg, err := load(lookupFromMap(map[string]string{
		"SPARK_MODE":       "prod",
		"SPARK_LOG_FORMAT": "text",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogFormat != LogFormatText {
		t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, LogFormatText)
	}
}

func TestLoadFlagOverridesEnv(t *testing.T) {
	cfg, err := load(lookupFromMap(map[string]string{
		"SPARK_LISTEN_ADDR": "127.0.0.1:9999",
	}), []string{"--listen-addr", "0.0.0.0:8000"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != "0.0.0.0:8000" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, "0.0.0.0:8000")
	}
}

func TestLoadAllowedOriginsNormalized(t *testing.T) {
	cfg, err := load(lookupFromMap(map[string]string{
		"ALLOWED_ORIGINS": "HTTPS://Example.COM:443, http://localhost:3000 ,*",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{"https://example.com", "http://localhost:3000", "*"}
	if len(cfg.AllowedOrigins) != len(want) {
		t.Fatalf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins, want)
	}
	for i := range want {
		if cfg.AllowedOrigins[i] != want[i] {
			t.Errorf("AllowedOrigins[%d] = %q, want %q", i, cfg.AllowedOrigins[i], want[i])
		}
	}
}

func TestLoadRejectsInvalidOrigin(t *testing.T) {
	_, err := load(lookupFromMap(map[string]string{
		"ALLOWED_ORIGINS": "example.com/path",
	}), nil)
	if err == nil {
		t.Fatal("expected error for invalid origin")
	}
}

func TestLoadWebSocketKnobs(t *testing.T) {
	cfg, err := load(lookupFromMap(map[string]string{
		"WS_IDLE_TIMEOUT":                   "90s",
		"WS_PING_INTERVAL":                  "30s",
		"MAX_SIGNALING_MESSAGE_BYTES":       "1024",
		"MAX_SIGNALING_MESSAGES_PER_SECOND": "10",
		"MAX_CONNECTIONS":                   "500",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WSIdleTimeout != 90*time.Second {
		t.Errorf("WSIdleTimeout = %v, want 90s", cfg.WSIdleTimeout)
	}
	if cfg.WSPingInterval != 30*time.Second {
		t.Errorf("WSPingInterval = %v, want 30s", cfg.WSPingInterval)
	}
	if cfg.MaxMessageBytes != 1024 {
		t.Errorf("MaxMessageBytes = %d, want 1024", cfg.MaxMessageBytes)
	}
	if cfg.MaxMessagesPerSecond != 10 {
		t.Errorf("MaxMessagesPerSecond = %d, want 10", cfg.MaxMessagesPerSecond)
	}
	if cfg.MaxConnections != 500 {
		t.Errorf("MaxConnections = %d, want 500", cfg.MaxConnections)
	}
}

func TestLoadRejectsPingIntervalAboveIdleTimeout(t *testing.T) {
	_, err := load(lookupFromMap(map[string]string{
		"WS_IDLE_TIMEOUT":  "10s",
		"WS_PING_INTERVAL": "20s",
	}), nil)
	if err == nil {
		t.Fatal("expected error for ping interval >= idle timeout")
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	_, err := load(lookupFromMap(map[string]string{
		"SPARK_SHUTDOWN_TIMEOUT": "banana",
	}), nil)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoadTURNRESTValidation(t *testing.T) {
	cfg, err := load(lookupFromMap(map[string]string{
		"TURN_REST_SHARED_SECRET": "s3cret",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.TURNREST.Enabled() {
		t.Error("TURNREST.Enabled() = false, want true")
	}
	if cfg.TURNREST.TTLSeconds != DefaultTURNRESTTTLSeconds {
		t.Errorf("TTLSeconds = %d, want %d", cfg.TURNREST.TTLSeconds, DefaultTURNRESTTTLSeconds)
	}

	_, err = load(lookupFromMap(map[string]string{
		"TURN_REST_SHARED_SECRET": "s3cret",
		"TURN_REST_TTL_SECONDS":   "0",
	}), nil)
	if err == nil {
		t.Fatal("expected error for zero TTL with secret set")
	}

	_, err = load(lookupFromMap(map[string]string{
		"TURN_REST_SHARED_SECRET":   "s3cret",
		"TURN_REST_USERNAME_PREFIX": "a:b",
	}), nil)
	if err == nil {
		t.Fatal("expected error for prefix containing ':'")
	}
}

func TestLoadICEConfigErrorDoesNotFailLoad(t *testing.T) {
	cfg, err := load(lookupFromMap(map[string]string{
		"SPARK_ICE_SERVERS_JSON": "{not json",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ICEConfigError() == nil {
		t.Fatal("expected ICEConfigError for malformed JSON")
	}
	if len(cfg.ICEServers) != 0 {
		t.Errorf("ICEServers = %v, want empty", cfg.ICEServers)
	}
}

func TestNewLoggerFormats(t *testing.T) {
	for _, format := range []LogFormat{LogFormatText, LogFormatJSON} {
		logger, err := NewLogger(Config{LogFormat: format, LogLevel: slog.LevelInfo})
		if err != nil {
			t.Fatalf("NewLogger(%q): %v", format, err)
		}
		if logger == nil {
			t.Fatalf("NewLogger(%q) returned nil logger", format)
		}
	}

	if _, err := NewLogger(Config{LogFormat: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported log format")
	}
}
