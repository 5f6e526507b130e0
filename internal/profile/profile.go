package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the runtime configuration for the bot process. It is constructed
// once in main and passed by reference to every component; nothing reads
// configuration globals after startup.
type Profile struct {
	// LLM configuration (OpenAI-compatible protocol)
	LLMProvider    string  // Provider identifier: openai, deepseek, openrouter, ollama
	LLMAPIKey      string  // API key for the generation backend
	LLMBaseURL     string  // Base URL (optional, has default per provider)
	LLMModel       string  // Model name: gpt-4o, deepseek-chat, etc.
	LLMTimeout     int     // Request timeout in seconds (default: 120)
	LLMMaxTokens   int     // Completion token budget (default: 512)
	LLMTemperature float32 // Sampling temperature (default: 0.7)

	// Generation pipeline
	MaxGeneratedChars int // Reject backend output longer than this (default: 4096)
	GenerationRetries int // Bounded retries for generation/timeout failures (default: 1)

	// SMTP notification transport
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string

	// Telegram notification transport
	TelegramBotToken string

	// Platform credentials
	InstagramAPIKey  string
	InstagramBaseURL string
	TwitterAPIKey    string
	TwitterAPISecret string
	TwitterBaseURL   string

	// Operator identity: preferences and notifications for manually triggered
	// actions resolve against this user.
	OperatorUserID int32
	OperatorEmail  string

	// Realtime change feed. When RealtimeURL is set the websocket transport is
	// used; otherwise the postgres LISTEN/NOTIFY transport (postgres driver only).
	RealtimeURL   string
	RealtimeToken string

	// Other configurations
	Mode    string // prod, dev, demo
	Data    string // data directory (sqlite database location)
	Driver  string // postgres, sqlite
	DSN     string
	Version string
}

// Provider default configurations for the LLM backend.
// Used when SOCIALBOT_LLM_BASE_URL is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"openrouter": {
		BaseURL: "https://openrouter.ai/api/v1",
		Model:   "deepseek/deepseek-chat",
	},
	"ollama": {
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("SOCIALBOT_LLM_PROVIDER", "openai")
	p.LLMAPIKey = getEnvOrDefault("SOCIALBOT_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("SOCIALBOT_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("SOCIALBOT_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("SOCIALBOT_LLM_TIMEOUT_SECONDS", 120)
	p.LLMMaxTokens = getEnvOrDefaultInt("SOCIALBOT_LLM_MAX_TOKENS", 512)
	if v := os.Getenv("SOCIALBOT_LLM_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			p.LLMTemperature = float32(f)
		}
	}
	if p.LLMTemperature == 0 {
		p.LLMTemperature = 0.7
	}

	p.MaxGeneratedChars = getEnvOrDefaultInt("SOCIALBOT_MAX_GENERATED_CHARS", 4096)
	p.GenerationRetries = getEnvOrDefaultInt("SOCIALBOT_GENERATION_RETRIES", 1)

	if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
		// Unknown providers fall through to the generic OpenAI-compatible path,
		// so an explicit base URL is expected in that case.
		if p.LLMBaseURL == "" {
			p.LLMProvider = "openai"
		}
	}
	if defaults, ok := llmProviderDefaults[p.LLMProvider]; ok {
		if p.LLMBaseURL == "" {
			p.LLMBaseURL = defaults.BaseURL
		}
		if p.LLMModel == "" {
			p.LLMModel = defaults.Model
		}
	}

	p.SMTPHost = getEnvOrDefault("SOCIALBOT_SMTP_HOST", "")
	p.SMTPPort = getEnvOrDefaultInt("SOCIALBOT_SMTP_PORT", 587)
	p.SMTPUsername = getEnvOrDefault("SOCIALBOT_SMTP_USERNAME", "")
	p.SMTPPassword = getEnvOrDefault("SOCIALBOT_SMTP_PASSWORD", "")
	p.FromEmail = getEnvOrDefault("SOCIALBOT_FROM_EMAIL", p.SMTPUsername)
	p.FromName = getEnvOrDefault("SOCIALBOT_FROM_NAME", "SocialBot")

	p.TelegramBotToken = getEnvOrDefault("SOCIALBOT_TELEGRAM_BOT_TOKEN", "")

	p.InstagramAPIKey = getEnvOrDefault("SOCIALBOT_INSTAGRAM_API_KEY", "")
	p.InstagramBaseURL = getEnvOrDefault("SOCIALBOT_INSTAGRAM_BASE_URL", "https://graph.instagram.com")
	p.TwitterAPIKey = getEnvOrDefault("SOCIALBOT_TWITTER_API_KEY", "")
	p.TwitterAPISecret = getEnvOrDefault("SOCIALBOT_TWITTER_API_SECRET", "")
	p.TwitterBaseURL = getEnvOrDefault("SOCIALBOT_TWITTER_BASE_URL", "https://api.twitter.com")

	p.OperatorUserID = int32(getEnvOrDefaultInt("SOCIALBOT_OPERATOR_USER_ID", 1))
	p.OperatorEmail = getEnvOrDefault("SOCIALBOT_OPERATOR_EMAIL", "")

	p.RealtimeURL = getEnvOrDefault("SOCIALBOT_REALTIME_URL", "")
	p.RealtimeToken = getEnvOrDefault("SOCIALBOT_REALTIME_TOKEN", "")
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate checks the profile for fatal configuration errors. A failure here
// aborts the process before any side effect occurs.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "postgres" && p.Driver != "sqlite" {
		return errors.Errorf("unsupported database driver %q", p.Driver)
	}

	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for the postgres driver")
	}

	if p.LLMAPIKey == "" && p.LLMProvider != "ollama" {
		return errors.Errorf("LLM API key is required for provider %q", p.LLMProvider)
	}

	if p.Driver == "sqlite" {
		if p.Data == "" {
			p.Data = "."
		}
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			return err
		}
		p.Data = dataDir
		if p.DSN == "" {
			p.DSN = filepath.Join(dataDir, fmt.Sprintf("socialbot_%s.db", p.Mode))
		}
	}

	return nil
}
