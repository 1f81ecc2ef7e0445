package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	LLM      LLMConfig      `yaml:"llm"`
	Planner  PlannerConfig  `yaml:"planner"`
	POI      POIConfig      `yaml:"poi"`
	Sessions SessionsConfig `yaml:"sessions"`
	Postgres PostgresConfig `yaml:"postgres"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Access   AccessConfig   `yaml:"access"`
	Guide    GuideConfig    `yaml:"guide"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	ShutdownGrace  time.Duration   `yaml:"shutdownGrace"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
	Retry          RetryConfig     `yaml:"retry"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent requests.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// LLMConfig contains the default OpenAI-compatible backend plus optional fallbacks.
type LLMConfig struct {
	APIKey         string             `yaml:"apiKey"`
	BaseURL        string             `yaml:"baseUrl"`
	Model          string             `yaml:"model"`
	EmbeddingModel string             `yaml:"embeddingModel"`
	Temperature    float32            `yaml:"temperature"`
	Timeout        time.Duration      `yaml:"timeout"`
	Fallbacks      []LLMBackendConfig `yaml:"fallbacks"`
}

// LLMBackendConfig is one extra backend tried after the primary fails.
type LLMBackendConfig struct {
	Name    string `yaml:"name"`
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseUrl"`
	Model   string `yaml:"model"`
}

// PlannerConfig tunes the planning and conversation flow.
type PlannerConfig struct {
	Timezone            string `yaml:"timezone"`
	SearchLimit         int    `yaml:"searchLimit"`
	KeepPOIs            int    `yaml:"keepPois"`
	MaxTravelTimePerDay int    `yaml:"maxTravelTimePerDay"`
	DefaultDays         int    `yaml:"defaultDays"`
	SummaryTokenBudget  int    `yaml:"summaryTokenBudget"`
	EditPrompt          string `yaml:"editPrompt"`
	IntentPrompt        string `yaml:"intentPrompt"`
}

// POIConfig selects and tunes the POI suppliers.
type POIConfig struct {
	OverpassURLs []string      `yaml:"overpassUrls"`
	NominatimURL string        `yaml:"nominatimUrl"`
	UserAgent    string        `yaml:"userAgent"`
	Timeout      time.Duration `yaml:"timeout"`
	MinResults   int           `yaml:"minResults"`
	CatalogPath  string        `yaml:"catalogPath"`
	CacheTTL     time.Duration `yaml:"cacheTtl"`
	Valkey       ValkeyConfig  `yaml:"valkey"`
}

// SessionsConfig controls where conversation state lives.
type SessionsConfig struct {
	TTL    time.Duration `yaml:"ttl"`
	Prefix string        `yaml:"prefix"`
	Valkey ValkeyConfig  `yaml:"valkey"`
}

// ValkeyConfig contains connection information for cache storage.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// ArchiveConfig points at an S3-compatible bucket for itinerary snapshots.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"useSsl"`
}

// AccessConfig signs session tokens.
type AccessConfig struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"tokenTtl"`
	Issuer   string        `yaml:"issuer"`
}

// GuideConfig controls grounded explanations.
type GuideConfig struct {
	SeedPath       string  `yaml:"seedPath"`
	TopK           int     `yaml:"topK"`
	ChunkTokens    int     `yaml:"chunkTokens"`
	EmbeddingDim   int     `yaml:"embeddingDim"`
	UseLLMEmbedder bool    `yaml:"useLlmEmbedder"`
	MinScore       float64 `yaml:"minScore"`
	Prompt         string  `yaml:"prompt"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.HTTP.Address, "HTTP_ADDRESS")
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	setDuration(&cfg.HTTP.ShutdownGrace, "HTTP_SHUTDOWN_GRACE")
	setBool(&cfg.HTTP.RateLimit.Enabled, "HTTP_RATE_LIMIT_ENABLED")
	setInt(&cfg.HTTP.RateLimit.RequestsPerMinute, "HTTP_RATE_LIMIT_RPM")
	setInt(&cfg.HTTP.RateLimit.Burst, "HTTP_RATE_LIMIT_BURST")
	setBool(&cfg.HTTP.Retry.Enabled, "HTTP_RETRY_ENABLED")
	setInt(&cfg.HTTP.Retry.MaxAttempts, "HTTP_RETRY_MAX_ATTEMPTS")
	setDuration(&cfg.HTTP.Retry.BaseBackoff, "HTTP_RETRY_BASE_BACKOFF")

	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.EmbeddingModel, "LLM_EMBEDDING_MODEL")
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}
	setDuration(&cfg.LLM.Timeout, "LLM_TIMEOUT")

	setString(&cfg.Planner.Timezone, "PLANNER_TIMEZONE")
	setInt(&cfg.Planner.MaxTravelTimePerDay, "PLANNER_MAX_TRAVEL_PER_DAY")

	if v := os.Getenv("POI_OVERPASS_URLS"); v != "" {
		cfg.POI.OverpassURLs = splitList(v)
	}
	setString(&cfg.POI.NominatimURL, "POI_NOMINATIM_URL")
	setString(&cfg.POI.UserAgent, "POI_USER_AGENT")
	setString(&cfg.POI.CatalogPath, "POI_CATALOG_PATH")
	setDuration(&cfg.POI.CacheTTL, "POI_CACHE_TTL")
	setBool(&cfg.POI.Valkey.Enabled, "POI_VALKEY_ENABLED")
	setString(&cfg.POI.Valkey.Addr, "POI_VALKEY_ADDR")

	setDuration(&cfg.Sessions.TTL, "SESSIONS_TTL")
	setBool(&cfg.Sessions.Valkey.Enabled, "SESSIONS_VALKEY_ENABLED")
	setString(&cfg.Sessions.Valkey.Addr, "SESSIONS_VALKEY_ADDR")

	setString(&cfg.Postgres.DSN, "POSTGRES_DSN")
	if v := os.Getenv("POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.MaxConns = int32(parsed)
		}
	}

	setBool(&cfg.Archive.Enabled, "ARCHIVE_ENABLED")
	setString(&cfg.Archive.Endpoint, "ARCHIVE_ENDPOINT")
	setString(&cfg.Archive.AccessKey, "ARCHIVE_ACCESS_KEY")
	setString(&cfg.Archive.SecretKey, "ARCHIVE_SECRET_KEY")
	setString(&cfg.Archive.Bucket, "ARCHIVE_BUCKET")
	setString(&cfg.Archive.Region, "ARCHIVE_REGION")

	setString(&cfg.Access.Secret, "ACCESS_TOKEN_SECRET")
	setDuration(&cfg.Access.TokenTTL, "ACCESS_TOKEN_TTL")

	setString(&cfg.Guide.SeedPath, "GUIDE_SEED_PATH")
	setBool(&cfg.Guide.UseLLMEmbedder, "GUIDE_USE_LLM_EMBEDDER")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:        ":8080",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			ShutdownGrace:  10 * time.Second,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 3,
				BaseBackoff: 150 * time.Millisecond,
				Exclude: []string{
					"/api/v1/plans",
					"/api/v1/conversations",
				},
			},
		},
		LLM: LLMConfig{
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			Temperature:    0.2,
			Timeout:        30 * time.Second,
		},
		Planner: PlannerConfig{
			Timezone:            "Asia/Kolkata",
			SearchLimit:         50,
			KeepPOIs:            40,
			MaxTravelTimePerDay: 120,
			DefaultDays:         3,
			SummaryTokenBudget:  600,
			EditPrompt:          "You turn a traveller's request into one structured itinerary edit. Respond with minified JSON only, using the keys edit_type (pace|swap|add|remove|replace|reduce_travel|weather), scope (day|block|poi|full), day (number or null), block (morning|afternoon|evening or null), value (string or null), category (string or null), understood (boolean) and clarification_needed (string or null).",
			IntentPrompt:        "Extract trip constraints from the traveller's message. Respond with minified JSON only, using the keys city (string or null), duration (number of days or null), interests (array of strings) and pace (relaxed|moderate|fast or null).",
		},
		POI: POIConfig{
			OverpassURLs: []string{
				"https://overpass-api.de/api/interpreter",
				"https://overpass.kumi.systems/api/interpreter",
				"https://overpass.openstreetmap.ru/api/interpreter",
			},
			NominatimURL: "https://nominatim.openstreetmap.org/search",
			UserAgent:    "trip-planner/1.0",
			Timeout:      25 * time.Second,
			MinResults:   15,
			CatalogPath:  "configs/poi_catalog.yaml",
			CacheTTL:     6 * time.Hour,
		},
		Sessions: SessionsConfig{
			TTL:    24 * time.Hour,
			Prefix: "trip",
		},
		Postgres: PostgresConfig{
			MaxConns: 4,
		},
		Archive: ArchiveConfig{
			Bucket: "itineraries",
			Region: "auto",
			UseSSL: true,
		},
		Access: AccessConfig{
			Secret:   "dev-secret-change-me",
			TokenTTL: 24 * time.Hour,
			Issuer:   "trip-planner",
		},
		Guide: GuideConfig{
			SeedPath:     "configs/guide_seed.yaml",
			TopK:         4,
			ChunkTokens:  200,
			EmbeddingDim: 256,
			MinScore:     0.05,
			Prompt:       "You are a travel guide. Answer based only on the provided information. If the information does not cover the question, say so. Keep the answer under 120 words.",
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model cannot be empty")
	}
	if strings.TrimSpace(c.LLM.EmbeddingModel) == "" {
		return errors.New("llm.embeddingModel cannot be empty")
	}
	for i, fb := range c.LLM.Fallbacks {
		if strings.TrimSpace(fb.Name) == "" || strings.TrimSpace(fb.Model) == "" {
			return fmt.Errorf("llm.fallbacks[%d] requires name and model", i)
		}
	}
	if _, err := time.LoadLocation(c.Planner.Timezone); err != nil {
		return fmt.Errorf("planner.timezone: %w", err)
	}
	if c.Planner.SearchLimit <= 0 || c.Planner.KeepPOIs <= 0 {
		return errors.New("planner.searchLimit and planner.keepPois must be positive")
	}
	if c.Planner.KeepPOIs > c.Planner.SearchLimit {
		return errors.New("planner.keepPois cannot exceed planner.searchLimit")
	}
	if c.Planner.MaxTravelTimePerDay <= 0 {
		return errors.New("planner.maxTravelTimePerDay must be positive")
	}
	if c.POI.MinResults < 0 {
		return errors.New("poi.minResults cannot be negative")
	}
	if c.POI.CacheTTL < 0 {
		return errors.New("poi.cacheTtl cannot be negative")
	}
	if c.POI.Valkey.Enabled && strings.TrimSpace(c.POI.Valkey.Addr) == "" {
		return errors.New("poi.valkey.addr cannot be empty when the poi cache is enabled")
	}
	if c.Sessions.TTL <= 0 {
		return errors.New("sessions.ttl must be positive")
	}
	if c.Sessions.Valkey.Enabled && strings.TrimSpace(c.Sessions.Valkey.Addr) == "" {
		return errors.New("sessions.valkey.addr cannot be empty when valkey sessions are enabled")
	}
	if c.Archive.Enabled {
		if strings.TrimSpace(c.Archive.Endpoint) == "" || strings.TrimSpace(c.Archive.Bucket) == "" {
			return errors.New("archive.endpoint and archive.bucket are required when the archive is enabled")
		}
	}
	if strings.TrimSpace(c.Access.Secret) == "" {
		return errors.New("access.secret cannot be empty")
	}
	if c.Access.TokenTTL <= 0 {
		return errors.New("access.tokenTtl must be positive")
	}
	if c.Guide.TopK <= 0 {
		return errors.New("guide.topK must be positive")
	}
	if c.Guide.ChunkTokens <= 0 {
		return errors.New("guide.chunkTokens must be positive")
	}
	if c.Guide.EmbeddingDim <= 0 {
		return errors.New("guide.embeddingDim must be positive")
	}
	return nil
}
