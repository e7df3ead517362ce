package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"

	EngineGemini = "gemini"
	EngineOpenAI = "gpt"
)

type Config struct {
	Port    string
	LogMode string

	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIModel   string
	// OpenAIBaseURL points the gpt engine at a compatible endpoint.
	OpenAIBaseURL string
	DefaultEngine string

	// Conversation storage
	StoreBackend    string
	DatabaseURL     string
	RedisAddr       string
	ConversationTTL time.Duration
	// Clear also forgets the last solved question when set.
	ClearSnapshotOnReset bool

	// Answer cache (Postgres only); 0 disables freshness checks.
	AnswerCacheMaxAge time.Duration

	// Acquisition limits
	MaxUploadBytes int64
	FetchTimeout   time.Duration

	PromptsFile string

	TelegramBotToken string
	WebhookURL       string
}

func Load() Config {
	cfg := Config{
		Port:    getEnv("PORT", "8000"),
		LogMode: getEnv("LOG_MODE", "dev"),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		DefaultEngine: strings.ToLower(getEnv("DEFAULT_ENGINE", EngineGemini)),

		StoreBackend:         strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		DatabaseURL:          resolveDSN(),
		RedisAddr:            strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		ConversationTTL:      envDuration("CONVERSATION_TTL", 24*time.Hour),
		ClearSnapshotOnReset: envBool("CLEAR_SNAPSHOT_ON_RESET", false),

		AnswerCacheMaxAge: envDuration("ANSWER_CACHE_MAX_AGE", 7*24*time.Hour),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 16<<20),
		FetchTimeout:   envDuration("FETCH_TIMEOUT", 10*time.Second),

		PromptsFile: os.Getenv("PROMPTS_FILE"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		WebhookURL:       strings.TrimSpace(os.Getenv("WEBHOOK_URL")),
	}

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 16 << 20
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	return cfg
}

// Validate checks what every entry point needs: a usable default engine and a
// consistent store backend.
func (c Config) Validate() error {
	if c.GeminiAPIKey == "" && c.OpenAIAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY or OPENAI_API_KEY is required")
	}
	switch c.DefaultEngine {
	case EngineGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("DEFAULT_ENGINE=gemini needs GEMINI_API_KEY")
		}
	case EngineOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("DEFAULT_ENGINE=gpt needs OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown DEFAULT_ENGINE %q (want gemini|gpt)", c.DefaultEngine)
	}
	switch c.StoreBackend {
	case BackendMemory, BackendPostgres:
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("STORE_BACKEND=redis needs REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want memory|postgres|redis)", c.StoreBackend)
	}
	return nil
}

// ValidateBot adds the Telegram requirements on top of Validate.
func (c Config) ValidateBot() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

// SafeDSNSummary describes DatabaseURL without the password.
func (c Config) SafeDSNSummary() string {
	u, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return "dsn: parse error"
	}
	host, port := u.Host, ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, u.User.Username())
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, u.User.Username())
}

func resolveDSN() string {
	// DATABASE_URL wins
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		return v
	}
	// otherwise build it from POSTGRES_* / PG*
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getEnv("POSTGRES_USER", "jee"), os.Getenv("POSTGRES_PASSWORD")),
		Host:     net.JoinHostPort(getEnv("PGHOST", "db"), getEnv("PGPORT", "5432")),
		Path:     "/" + getEnv("POSTGRES_DB", "jee"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
