package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreMongo     = "mongo"
	StoreFirestore = "firestore"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	Port             string   `mapstructure:"PORT"`
	Environment      string   `mapstructure:"ENV"`
	Host             string   `mapstructure:"HOST"` // Raw HOST env (e.g. https://api.cliniccompass.app)
	AllowedHost      string   `mapstructure:"-"`    // Hostname only for strict host check (production only)
	AllowedOrigins   []string `mapstructure:"-"`    // CORS: from ALLOWED_ORIGINS or FRONTEND_URL
	MongoURI         string   `mapstructure:"MONGODB_URI"`
	PostgresURI      string   `mapstructure:"POSTGRES_URI"`
	RedisURI         string   `mapstructure:"REDIS_URI"`
	EncryptionKey    string   `mapstructure:"ENCRYPTION_KEY"`
	StoreBackend     string   `mapstructure:"STORE_BACKEND"`
	FirestoreProject string   `mapstructure:"FIRESTORE_PROJECT_ID"`
	LogLevel         string   `mapstructure:"LOG_LEVEL"`
	LogFormat        string   `mapstructure:"LOG_FORMAT"`
	TrustProxy       bool     `mapstructure:"TRUST_PROXY"`

	LLMProvider   string        `mapstructure:"LLM_PROVIDER"`
	LLMTimeout    time.Duration `mapstructure:"LLM_TIMEOUT"`
	OpenAIAPIKey  string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL string        `mapstructure:"OPENAI_BASE_URL"`
	OpenAIModel   string        `mapstructure:"OPENAI_MODEL"`
	GeminiAPIKey  string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel   string        `mapstructure:"GEMINI_MODEL"`
	GeminiBaseURL string        `mapstructure:"GEMINI_BASE_URL"`

	GoogleMapsAPIKey string        `mapstructure:"GOOGLE_MAPS_API_KEY"`
	PlacesBaseURL    string        `mapstructure:"PLACES_BASE_URL"`
	PlacesRelayURL   string        `mapstructure:"PLACES_RELAY_URL"`
	NominatimBaseURL string        `mapstructure:"NOMINATIM_BASE_URL"`
	GeocodeCacheTTL  time.Duration `mapstructure:"GEOCODE_CACHE_TTL"`
}

var keys = []string{
	"PORT", "ENV", "HOST", "ALLOWED_ORIGINS", "FRONTEND_URL",
	"MONGODB_URI", "POSTGRES_URI", "REDIS_URI", "ENCRYPTION_KEY",
	"STORE_BACKEND", "FIRESTORE_PROJECT_ID", "LOG_LEVEL", "LOG_FORMAT", "TRUST_PROXY",
	"LLM_PROVIDER", "LLM_TIMEOUT", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
	"GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_BASE_URL",
	"GOOGLE_MAPS_API_KEY", "PLACES_BASE_URL", "PLACES_RELAY_URL", "NOMINATIM_BASE_URL", "GEOCODE_CACHE_TTL",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("HOST", "http://localhost:8080")
	v.SetDefault("FRONTEND_URL", "http://localhost:5173")
	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017/cliniccompass")
	v.SetDefault("POSTGRES_URI", "postgres://localhost:5432/cliniccompass?sslmode=disable")
	v.SetDefault("REDIS_URI", "redis://localhost:6379/0")
	v.SetDefault("STORE_BACKEND", StoreMongo)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LLM_PROVIDER", ProviderOpenAI)
	v.SetDefault("LLM_TIMEOUT", 30*time.Second)
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_MODEL", "gpt-3.5-turbo")
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	v.SetDefault("PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place/textsearch/json")
	v.SetDefault("PLACES_RELAY_URL", "https://api.allorigins.win/raw?url=")
	v.SetDefault("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org")
	v.SetDefault("GEOCODE_CACHE_TTL", 8*time.Hour)

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// A missing .env is fine; environment variables still apply.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	if cfg.IsProduction() {
		cfg.AllowedHost = hostname(cfg.Host)
	}

	cfg.AllowedOrigins = parseOrigins(v.GetString("ALLOWED_ORIGINS"))
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = parseOrigins(v.GetString("FRONTEND_URL"))
	}
	// When HOST is an api subdomain, the apex and www origins are the frontend.
	if h := hostname(cfg.Host); h != "" && h != "localhost" {
		if parts := strings.Split(h, "."); len(parts) >= 2 {
			domain := strings.Join(parts[1:], ".")
			for _, origin := range []string{"https://" + domain, "https://www." + domain} {
				if !containsOrigin(cfg.AllowedOrigins, origin) {
					cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
				}
			}
		}
	}

	return cfg, nil
}

// Validate checks the settings that would otherwise fail late, at first use.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMongo:
	case StoreFirestore:
		if c.FirestoreProject == "" {
			return fmt.Errorf("FIRESTORE_PROJECT_ID is required when STORE_BACKEND is %q", StoreFirestore)
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreMongo, StoreFirestore, c.StoreBackend)
	}

	switch c.LLMProvider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderGemini, c.LLMProvider)
	}

	if c.EncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(c.EncryptionKey)
		if err != nil {
			return fmt.Errorf("ENCRYPTION_KEY must be base64-encoded: %w", err)
		}
		if len(key) != 32 {
			return fmt.Errorf("ENCRYPTION_KEY must decode to exactly 32 bytes, got %d", len(key))
		}
	}
	return nil
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// LLMAPIKey returns the credential of the selected provider.
func (c *Config) LLMAPIKey() string {
	if c.LLMProvider == ProviderGemini {
		return c.GeminiAPIKey
	}
	return c.OpenAIAPIKey
}

func hostname(raw string) string {
	h := strings.TrimSpace(raw)
	for _, prefix := range []string{"https://", "http://"} {
		h = strings.TrimPrefix(h, prefix)
	}
	if idx := strings.Index(h, "/"); idx != -1 {
		h = h[:idx]
	}
	if idx := strings.Index(h, ":"); idx != -1 {
		h = h[:idx]
	}
	return strings.TrimSpace(h)
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func containsOrigin(list []string, o string) bool {
	o = strings.TrimSpace(strings.ToLower(o))
	for _, v := range list {
		if strings.TrimSpace(strings.ToLower(v)) == o {
			return true
		}
	}
	return false
}
