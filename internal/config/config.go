package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/lifewrapped/lw-engine/internal/model"
)

type Config struct {
	// Optional: when unset the engine runs with a memory-only session cache.
	DatabaseURL string `env:"DATABASE_URL"`

	// Optional MQTT ingest (session-recorded announcements from the app).
	MQTTBrokerURL string `env:"MQTT_BROKER_URL"`
	MQTTTopics    string `env:"MQTT_TOPICS" envDefault:"lifewrapped/sessions/+/recorded"`
	MQTTClientID  string `env:"MQTT_CLIENT_ID" envDefault:"lw-engine"`
	MQTTUsername  string `env:"MQTT_USERNAME"`
	MQTTPassword  string `env:"MQTT_PASSWORD"`

	// Audio storage. ImportDir, when set, is watched for dropped audio files.
	AudioDir  string `env:"AUDIO_DIR" envDefault:"./audio"`
	ImportDir string `env:"IMPORT_DIR"`

	// Recognition backend (Whisper-compatible HTTP endpoint).
	WhisperURL     string        `env:"WHISPER_URL"`
	WhisperModel   string        `env:"WHISPER_MODEL" envDefault:"whisper-1"`
	WhisperAPIKey  string        `env:"WHISPER_API_KEY"`
	WhisperTimeout time.Duration `env:"WHISPER_TIMEOUT" envDefault:"300s"`
	Locale         string        `env:"LOCALE" envDefault:"en"`

	// Summarization tiers.
	TierPreference   string        `env:"TIER_PREFERENCE" envDefault:"external,platform,local,basic"`
	PrivateOnly      bool          `env:"PRIVATE_ONLY" envDefault:"false"`
	FallbackToBasic  bool          `env:"FALLBACK_TO_BASIC" envDefault:"false"`
	LocalModelURL    string        `env:"LOCAL_MODEL_URL"`
	LocalModel       string        `env:"LOCAL_MODEL" envDefault:"llama3.2"`
	LocalTimeout     time.Duration `env:"LOCAL_TIMEOUT" envDefault:"120s"`
	PlatformAPIKey   string        `env:"PLATFORM_API_KEY"`
	PlatformModel    string        `env:"PLATFORM_MODEL" envDefault:"gemini-2.5-flash"`
	ExternalProvider string        `env:"EXTERNAL_PROVIDER"`
	ExternalBaseURL  string        `env:"EXTERNAL_BASE_URL" envDefault:"https://api.openai.com/v1"`
	ExternalAPIKey   string        `env:"EXTERNAL_API_KEY"`
	ExternalModel    string        `env:"EXTERNAL_MODEL" envDefault:"gpt-4o-mini"`
	ExternalTimeout  time.Duration `env:"EXTERNAL_TIMEOUT" envDefault:"60s"`

	// Optional S3 backup for session audio.
	S3 S3Config `envPrefix:"S3_"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"120s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken string `env:"AUTH_TOKEN"`
	// CORSOrigins restricts browser access to the listed app origins.
	// Empty allows any origin, for same-host deployments behind a proxy.
	CORSOrigins []string `env:"CORS_ORIGINS"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
}

// S3Config configures the optional S3 backup tier of the audio store.
type S3Config struct {
	Bucket        string        `env:"BUCKET"`
	Region        string        `env:"REGION" envDefault:"us-east-1"`
	Endpoint      string        `env:"ENDPOINT"`
	AccessKey     string        `env:"ACCESS_KEY"`
	SecretKey     string        `env:"SECRET_KEY"`
	Prefix        string        `env:"PREFIX"`
	LocalCache    bool          `env:"LOCAL_CACHE" envDefault:"true"`
	PresignExpiry time.Duration `env:"PRESIGN_EXPIRY" envDefault:"15m"`
}

// Enabled reports whether S3 storage is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile   string
	HTTPAddr  string
	LogLevel  string
	AudioDir  string
	ImportDir string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.AudioDir != "" {
		cfg.AudioDir = overrides.AudioDir
	}
	if overrides.ImportDir != "" {
		cfg.ImportDir = overrides.ImportDir
	}

	if _, err := cfg.TierOrder(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// TierOrder parses TIER_PREFERENCE into an ordered tier list. Unknown names
// are an error; basic is appended when omitted so the universal fallback is
// always reachable.
func (c *Config) TierOrder() ([]model.EngineTier, error) {
	var order []model.EngineTier
	seen := make(map[model.EngineTier]bool)
	for _, raw := range strings.Split(c.TierPreference, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		tier := model.EngineTier(raw)
		if !tier.Valid() {
			return nil, fmt.Errorf("TIER_PREFERENCE: unknown tier %q", raw)
		}
		if seen[tier] {
			continue
		}
		seen[tier] = true
		order = append(order, tier)
	}
	if !seen[model.TierBasic] {
		order = append(order, model.TierBasic)
	}
	return order, nil
}
