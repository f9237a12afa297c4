package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	RedisURL    string

	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	FrontendCallbackURL string
	BaseURL             string
	DefaultAvatarURL    string

	GitHub OAuthConfig
	GitLab OAuthConfig
	Google OAuthConfig

	Storage   StorageConfig
	Assistant AssistantConfig

	SyncUsersSchedule string
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type StorageConfig struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UsePathStyle  bool
	PublicBaseURL string
}

func (s StorageConfig) Enabled() bool {
	return s.Bucket != ""
}

type AssistantConfig struct {
	APIKey string
	Model  string
	// Safety maps a harm category name to a block threshold name, e.g.
	// HARM_CATEGORY_HARASSMENT: BLOCK_NONE.
	Safety map[string]string `yaml:"safety"`
}

var defaultSafety = map[string]string{
	"HARM_CATEGORY_HARASSMENT":        "BLOCK_NONE",
	"HARM_CATEGORY_HATE_SPEECH":       "BLOCK_NONE",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT": "BLOCK_NONE",
	"HARM_CATEGORY_DANGEROUS_CONTENT": "BLOCK_NONE",
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	pathStyle, _ := strconv.ParseBool(getEnv("S3_USE_PATH_STYLE", "false"))

	safety, err := loadSafety(getEnv("ASSISTANT_SAFETY_FILE", ""))
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		JWTSecret:        getEnvOrPanic("JWT_SECRET"),
		JWTAccessExpiry:  getDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
		JWTRefreshExpiry: getDuration("JWT_REFRESH_EXPIRY", 7*24*time.Hour),

		FrontendCallbackURL: getEnv("FRONTEND_CALLBACK_URL", "http://localhost:3000/auth/callback"),
		BaseURL:             getEnv("BASE_URL", "http://localhost:8080"),
		DefaultAvatarURL:    getEnv("DEFAULT_AVATAR_URL", ""),

		GitHub: oauthFromEnv("GITHUB"),
		GitLab: oauthFromEnv("GITLAB"),
		Google: oauthFromEnv("GOOGLE"),

		Storage: StorageConfig{
			Bucket:        getEnv("S3_BUCKET", ""),
			Region:        getEnv("S3_REGION", "us-east-1"),
			Endpoint:      getEnv("S3_ENDPOINT", ""),
			AccessKey:     getEnv("S3_ACCESS_KEY", ""),
			SecretKey:     getEnv("S3_SECRET_KEY", ""),
			UsePathStyle:  pathStyle,
			PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", ""),
		},

		Assistant: AssistantConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash-lite"),
			Safety: safety,
		},

		SyncUsersSchedule: getEnv("SYNC_USERS_SCHEDULE", "@every 6h"),
	}, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// loadSafety reads the relay's safety thresholds. Categories missing from the
// file keep their defaults.
func loadSafety(path string) (map[string]string, error) {
	safety := make(map[string]string, len(defaultSafety))
	for k, v := range defaultSafety {
		safety[k] = v
	}
	if path == "" {
		return safety, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read safety file: %w", err)
	}

	var file AssistantConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse safety file: %w", err)
	}
	for k, v := range file.Safety {
		safety[k] = v
	}
	return safety, nil
}

// oauthFromEnv reads <PREFIX>_CLIENT_ID, _CLIENT_SECRET and _REDIRECT_URL.
func oauthFromEnv(prefix string) OAuthConfig {
	return OAuthConfig{
		ClientID:     getEnv(prefix+"_CLIENT_ID", ""),
		ClientSecret: getEnv(prefix+"_CLIENT_SECRET", ""),
		RedirectURL:  getEnv(prefix+"_REDIRECT_URL", ""),
	}
}

// getDuration falls back when the variable is unset or unparsable.
func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvOrPanic(key string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		panic("required environment variable not set: " + key)
	}
	return value
}
