package config

import (
	"os"
	"testing"
	"time"

	"github.com/lifewrapped/lw-engine/internal/model"
)

func TestLoad(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{
		"WHISPER_URL": "http://localhost:8000/v1/audio/transcriptions",
	})
	defer cleanup()

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":8080" {
			t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
		}
		if cfg.AudioDir != "./audio" {
			t.Errorf("AudioDir = %q, want ./audio", cfg.AudioDir)
		}
		if cfg.MQTTTopics != "lifewrapped/sessions/+/recorded" {
			t.Errorf("MQTTTopics = %q", cfg.MQTTTopics)
		}
		if cfg.WhisperTimeout != 300*time.Second {
			t.Errorf("WhisperTimeout = %v, want 300s", cfg.WhisperTimeout)
		}
		if cfg.ExternalTimeout != 60*time.Second {
			t.Errorf("ExternalTimeout = %v, want 60s", cfg.ExternalTimeout)
		}
		if cfg.PrivateOnly {
			t.Error("PrivateOnly = true, want false")
		}
	})

	t.Run("cli_overrides_take_priority", func(t *testing.T) {
		cfg, err := Load(Overrides{
			EnvFile:   "nonexistent.env",
			HTTPAddr:  ":9090",
			LogLevel:  "debug",
			AudioDir:  "/tmp/audio",
			ImportDir: "/tmp/imports",
		})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":9090" {
			t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
		}
		if cfg.AudioDir != "/tmp/audio" {
			t.Errorf("AudioDir = %q, want /tmp/audio", cfg.AudioDir)
		}
		if cfg.ImportDir != "/tmp/imports" {
			t.Errorf("ImportDir = %q, want /tmp/imports", cfg.ImportDir)
		}
	})

	t.Run("env_vars_read", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.WhisperURL != "http://localhost:8000/v1/audio/transcriptions" {
			t.Errorf("WhisperURL = %q, want env value", cfg.WhisperURL)
		}
	})
}

func TestTierOrder(t *testing.T) {
	t.Run("default_preference", func(t *testing.T) {
		cfg := &Config{TierPreference: "external,platform,local,basic"}
		order, err := cfg.TierOrder()
		if err != nil {
			t.Fatalf("TierOrder: %v", err)
		}
		want := []model.EngineTier{model.TierExternal, model.TierPlatform, model.TierLocal, model.TierBasic}
		if len(order) != len(want) {
			t.Fatalf("len = %d, want %d", len(order), len(want))
		}
		for i := range want {
			if order[i] != want[i] {
				t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
			}
		}
	})

	t.Run("basic_appended_when_omitted", func(t *testing.T) {
		cfg := &Config{TierPreference: "local,platform"}
		order, err := cfg.TierOrder()
		if err != nil {
			t.Fatalf("TierOrder: %v", err)
		}
		if order[len(order)-1] != model.TierBasic {
			t.Errorf("last tier = %s, want basic", order[len(order)-1])
		}
	})

	t.Run("duplicates_collapsed", func(t *testing.T) {
		cfg := &Config{TierPreference: "basic,basic,local"}
		order, err := cfg.TierOrder()
		if err != nil {
			t.Fatalf("TierOrder: %v", err)
		}
		if len(order) != 2 {
			t.Errorf("len = %d, want 2 (%v)", len(order), order)
		}
	})

	t.Run("unknown_tier_rejected", func(t *testing.T) {
		cfg := &Config{TierPreference: "basic,quantum"}
		if _, err := cfg.TierOrder(); err == nil {
			t.Error("expected error for unknown tier name")
		}
	})
}

// setEnvs sets environment variables and returns a cleanup function.
func setEnvs(t *testing.T, envs map[string]string) func() {
	t.Helper()
	originals := make(map[string]string)
	unset := make([]string, 0)

	for k, v := range envs {
		if orig, ok := os.LookupEnv(k); ok {
			originals[k] = orig
		} else {
			unset = append(unset, k)
		}
		os.Setenv(k, v)
	}

	return func() {
		for k, v := range originals {
			os.Setenv(k, v)
		}
		for _, k := range unset {
			os.Unsetenv(k)
		}
	}
}
