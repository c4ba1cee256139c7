package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server settings
	ServerPort   string        `json:"server_port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	Debug        bool          `json:"debug"`

	// MaxUploadSize caps request bodies and uploaded files, in bytes.
	MaxUploadSize int64 `json:"max_upload_size"`

	// Application paths
	LogDir  string `json:"log_dir"`
	TempDir string `json:"temp_dir"`

	// CORS Configuration
	CORS CORSConfig `json:"cors"`

	// Rate Limiting
	RateLimit RateLimitConfig `json:"rate_limit"`

	// Database settings
	Database DatabaseConfig `json:"database"`

	// Processing backends
	Scripts ScriptsConfig `json:"scripts"`
	FFmpeg  FFmpegConfig  `json:"ffmpeg"`
	Text    TextConfig    `json:"text"`

	// Object storage for processed uploads
	Storage StorageConfig `json:"storage"`

	// Quota enforcement
	Quota QuotaConfig `json:"quota"`

	// Application version
	Version string `json:"version"`

	// Request and shutdown timeouts
	RequestTimeout  time.Duration `json:"request_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Path is the sqlite file backing the files and usage_metrics tables.
	// Empty disables persistence: records and metering become logged no-ops.
	Path               string        `json:"path"`
	MaxConnections     int           `json:"max_connections"`
	MaxIdleConnections int           `json:"max_idle_connections"`
	ConnMaxLifetime    time.Duration `json:"conn_max_lifetime"`
}

type ScriptsConfig struct {
	PythonPath  string        `json:"python_path"`
	ScriptsPath string        `json:"scripts_path"`
	Timeout     time.Duration `json:"timeout"`
	Model       string        `json:"model"`
	Environment []string      `json:"environment"`

	// Extractor politeness limit, requests per second against remote platforms.
	FetchRatePerSecond float64 `json:"fetch_rate_per_second"`
}

type FFmpegConfig struct {
	FFmpegPath  string `json:"ffmpeg_path"`
	FFprobePath string `json:"ffprobe_path"`
}

type TextConfig struct {
	// Provider selects the text-processing backend: "scripts" runs the local
	// seq2seq models, "openai" calls the API.
	Provider         string `json:"provider"`
	OpenAIKey        string `json:"-"`
	OpenAIModel      string `json:"openai_model"`
	SummaryMaxLength int    `json:"summary_max_length"`
	AnswerMaxLength  int    `json:"answer_max_length"`
}

type StorageConfig struct {
	AccessKey string `json:"-"`
	SecretKey string `json:"-"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
}

// Configured reports whether object storage credentials are present. When
// they are not, uploads keep working and only the storage pointer is absent.
func (s StorageConfig) Configured() bool {
	return s.AccessKey != "" && s.SecretKey != "" && s.Bucket != ""
}

type QuotaConfig struct {
	// MonthlyLimitMinutes is the free-tier ceiling of processed minutes.
	MonthlyLimitMinutes float64 `json:"monthly_limit_minutes"`
}

type CORSConfig struct {
	Enabled          bool     `json:"enabled"`
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `json:"enabled"`
	RequestsPerMinute int  `json:"requests_per_minute"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		// Server settings
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		ReadTimeout:  getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getEnvAsDuration("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:  getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
		Debug:        getEnvAsBool("DEBUG", false),

		MaxUploadSize: int64(getEnvAsInt("MAX_UPLOAD_SIZE_MB", 512)) * 1024 * 1024,

		// Application paths
		LogDir:  getEnv("LOG_DIR", "/var/log/media-studio"),
		TempDir: getEnv("TEMP_DIR", "/tmp/media-studio"),

		// Application version
		Version: getEnv("VERSION", "1.0.0"),

		// Request and shutdown timeouts
		RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Minute),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		// CORS Configuration
		CORS: CORSConfig{
			Enabled:        getEnvAsBool("CORS_ENABLED", true),
			AllowedOrigins: getEnvAsStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsStringSlice(
				"CORS_ALLOWED_METHODS",
				[]string{"GET", "POST", "OPTIONS"},
			),
			AllowedHeaders: getEnvAsStringSlice(
				"CORS_ALLOWED_HEADERS",
				[]string{"Content-Type", "Authorization"},
			),
			AllowCredentials: getEnvAsBool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           getEnvAsInt("CORS_MAX_AGE", 86400),
		},

		// Rate Limiting
		RateLimit: RateLimitConfig{
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 60),
		},

		// Database
		Database: DatabaseConfig{
			Path:               getEnv("DB_PATH", "/var/lib/media-studio/data.db"),
			MaxConnections:     getEnvAsInt("DB_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},

		// Processing backends
		Scripts: ScriptsConfig{
			PythonPath:         getEnv("PYTHON_PATH", "python3"),
			ScriptsPath:        getEnv("SCRIPTS_PATH", "./scripts"),
			Timeout:            getEnvAsDuration("SCRIPT_TIMEOUT", 30*time.Minute),
			Model:              getEnv("WHISPER_MODEL", "base"),
			FetchRatePerSecond: getEnvAsFloat("FETCH_RATE_PER_SECOND", 1.0),
		},
		FFmpeg: FFmpegConfig{
			FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
			FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),
		},
		Text: TextConfig{
			Provider:         getEnv("TEXT_PROVIDER", "scripts"),
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			SummaryMaxLength: getEnvAsInt("SUMMARY_MAX_LENGTH", 150),
			AnswerMaxLength:  getEnvAsInt("ANSWER_MAX_LENGTH", 120),
		},

		// Object storage
		Storage: StorageConfig{
			AccessKey: getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey: getEnv("STORAGE_SECRET_KEY", ""),
			Region:    getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:  getEnv("STORAGE_ENDPOINT", ""),
			Bucket:    getEnv("STORAGE_BUCKET", ""),
		},

		// Quota
		Quota: QuotaConfig{
			MonthlyLimitMinutes: getEnvAsFloat("QUOTA_MONTHLY_MINUTES", 10.0),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validatePaths(c); err != nil {
		return err
	}
	if err := validateTimeouts(c); err != nil {
		return err
	}
	if c.Quota.MonthlyLimitMinutes <= 0 {
		return fmt.Errorf("quota limit must be positive")
	}
	if c.Text.Provider == "openai" && c.Text.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when TEXT_PROVIDER=openai")
	}
	return nil
}

func validatePaths(c *Config) error {
	paths := []struct {
		path string
		name string
	}{
		{c.LogDir, "log directory"},
		{c.TempDir, "temp directory"},
	}
	if c.Database.Path != "" {
		paths = append(paths, struct {
			path string
			name string
		}{filepath.Dir(c.Database.Path), "database directory"})
	}

	for _, p := range paths {
		if err := os.MkdirAll(p.path, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", p.name, err)
		}
	}

	return nil
}

func validateTimeouts(c *Config) error {
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	return nil
}

// Helper functions for reading environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
