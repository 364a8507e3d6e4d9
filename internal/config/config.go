package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// BucketConfig holds the S3-compatible object store credentials.
type BucketConfig struct {
	Region    string
	KeyID     string
	KeySecret string
	Name      string
	Endpoint  string // optional custom endpoint, empty uses the region default
}

// LoadBucketConfig loads the object store configuration from environment
// variables. Startup must fail fast if any required value is missing.
func LoadBucketConfig() (*BucketConfig, error) {
	cfg := &BucketConfig{
		Region:    os.Getenv("BUCKET_REGION"),
		KeyID:     os.Getenv("BUCKET_KEY_ID"),
		KeySecret: os.Getenv("BUCKET_KEY_SECRET"),
		Name:      os.Getenv("BUCKET_NAME"),
		Endpoint:  os.Getenv("BUCKET_ENDPOINT"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("region", cfg.Region).
		Str("bucket", cfg.Name).
		Msg("object store configuration loaded")
	return cfg, nil
}

func (c *BucketConfig) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("BUCKET_REGION is required")
	}
	if c.KeyID == "" {
		return fmt.Errorf("BUCKET_KEY_ID is required")
	}
	if c.KeySecret == "" {
		return fmt.Errorf("BUCKET_KEY_SECRET is required")
	}
	if c.Name == "" {
		return fmt.Errorf("BUCKET_NAME is required")
	}
	return nil
}

// WorkerConfig holds the ingestion queue worker's polling configuration.
type WorkerConfig struct {
	PollIntervalBusy time.Duration
	PollIntervalIdle time.Duration
	ResponseDelay    time.Duration
	QueueDSN         string
}

func LoadWorkerConfig() *WorkerConfig {
	cfg := &WorkerConfig{
		PollIntervalBusy: getEnvDurationOrDefault("QUEUE_POLL_INTERVAL_BUSY", 200*time.Millisecond),
		PollIntervalIdle: getEnvDurationOrDefault("QUEUE_POLL_INTERVAL_IDLE", 1*time.Second),
		ResponseDelay:    getEnvDurationOrDefault("QUEUE_RESPONSE_DELAY", 1*time.Second),
		QueueDSN:         getEnvOrDefault("QUEUE_DSN", "file:caseflow_queue.db?cache=shared&_journal=WAL"),
	}
	log.Info().
		Dur("poll_busy", cfg.PollIntervalBusy).
		Dur("poll_idle", cfg.PollIntervalIdle).
		Dur("response_delay", cfg.ResponseDelay).
		Msg("worker configuration loaded")
	return cfg
}

// LockConfig holds the per-user object-store lock's timing parameters.
type LockConfig struct {
	Timeout      time.Duration
	PollInterval time.Duration
	TTL          time.Duration
}

func LoadLockConfig() *LockConfig {
	cfg := &LockConfig{
		Timeout:      getEnvDurationOrDefault("LOCK_TIMEOUT", 5*time.Second),
		PollInterval: getEnvDurationOrDefault("LOCK_POLL_INTERVAL", 50*time.Millisecond),
		TTL:          getEnvDurationOrDefault("LOCK_TTL", 30*time.Second),
	}
	log.Info().
		Dur("timeout", cfg.Timeout).
		Dur("poll_interval", cfg.PollInterval).
		Dur("ttl", cfg.TTL).
		Msg("lock configuration loaded")
	return cfg
}

// WhatsAppConfig holds the outbound WhatsApp Cloud API configuration.
type WhatsAppConfig struct {
	APIURL        string
	AccessToken   string
	AppSecret     string
	VerifyToken   string
	OperatorID    string // phone_number_id used as the send-path operator id
	MaxMessageLen int
}

func LoadWhatsAppConfig() (*WhatsAppConfig, error) {
	cfg := &WhatsAppConfig{
		APIURL:        getEnvOrDefault("WHATSAPP_API_URL", "https://graph.facebook.com/v23.0"),
		AccessToken:   os.Getenv("WHATSAPP_ACCESS_TOKEN"),
		AppSecret:     os.Getenv("WHATSAPP_APP_SECRET"),
		VerifyToken:   os.Getenv("WHATSAPP_WEBHOOK_VERIFY_TOKEN"),
		OperatorID:    os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
		MaxMessageLen: getEnvIntOrDefault("WHATSAPP_MAX_MESSAGE_LEN", 4096),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *WhatsAppConfig) Validate() error {
	if c.AccessToken == "" {
		return fmt.Errorf("WHATSAPP_ACCESS_TOKEN is required")
	}
	if c.AppSecret == "" {
		return fmt.Errorf("WHATSAPP_APP_SECRET is required")
	}
	if c.VerifyToken == "" {
		return fmt.Errorf("WHATSAPP_WEBHOOK_VERIFY_TOKEN is required")
	}
	if c.OperatorID == "" {
		return fmt.Errorf("WHATSAPP_PHONE_NUMBER_ID is required")
	}
	return nil
}

// AgentConfig configures which LLM providers the agent can reach.
type AgentConfig struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OpenAIBaseURL   string // overridden for OpenRouter/Mistral-style OpenAI-compatible endpoints
	GoogleAPIKey    string
	ModelAlias      string
	SystemPrompt    string
	MaxTokens       int
}

func LoadAgentConfig() *AgentConfig {
	return &AgentConfig{
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		GoogleAPIKey:    os.Getenv("GOOGLE_API_KEY"),
		ModelAlias:      getEnvOrDefault("AGENT_MODEL", "claude-sonnet"),
		SystemPrompt:    os.Getenv("AGENT_SYSTEM_PROMPT"),
		MaxTokens:       getEnvIntOrDefault("AGENT_MAX_TOKENS", 1024),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Int("default", defaultValue).
			Msg("invalid integer value for environment variable, using default")
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(seconds * float64(time.Second))
		}
		log.Warn().Str("key", key).Str("value", value).Dur("default", defaultValue).
			Msg("invalid duration value for environment variable, using default")
	}
	return defaultValue
}
