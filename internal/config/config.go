package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds all runtime configuration for the execution core, loaded from
// environment variables (a .env file is loaded in main via godotenv).
type Config struct {
	Port     string
	BasePath string

	// Remote browser vendor (AdsPower-compatible local API)
	VendorBaseURL  string
	VendorHost     string // hostname the vendor's loopback ws endpoints are rewritten to
	VendorTimeout  time.Duration
	SessionSettle  time.Duration
	StopOnRelease  bool
	NavTimeout     time.Duration
	TwoFAWait      time.Duration
	ReleaseDelay   time.Duration
	WarmupDisabled bool

	// Vision decision engine
	GeminiAPIKey        string
	VisionModel         string
	VisionFallbackModel string
	DecisionCacheTTL    time.Duration

	// Campaign scheduler
	TickInterval        time.Duration
	DueBatchSize        int
	MaxParallelAccounts int

	// Daily action quotas
	DailyVisits   int
	DailyConnects int
	DailyMessages int
	DailyFollows  int

	// Credential encryption key (32 bytes, hex or raw)
	CredentialKey string

	// Control surface auth
	JWTSecret string
}

// Load reads configuration from the environment and validates required keys.
func Load() (*Config, error) {
	cfg := &Config{
		Port:     getEnv("PORT", "8090"),
		BasePath: getEnv("BASE_PATH", ""),

		VendorBaseURL:  getEnv("ADSPOWER_BASE_URL", "http://local.adspower.net:50325"),
		VendorHost:     getEnv("ADSPOWER_HOST", "local.adspower.net"),
		VendorTimeout:  getEnvAsDuration("ADSPOWER_TIMEOUT", 15*time.Second),
		SessionSettle:  getEnvAsDuration("SESSION_SETTLE", 3*time.Second),
		StopOnRelease:  getEnvAsBool("SESSION_STOP_ON_RELEASE", false),
		NavTimeout:     getEnvAsDuration("NAV_TIMEOUT", 30*time.Second),
		TwoFAWait:      getEnvAsDuration("TWOFA_WAIT", 180*time.Second),
		ReleaseDelay:   getEnvAsDuration("RELEASE_DELAY", 2*time.Second),
		WarmupDisabled: getEnvAsBool("SESSION_WARMUP_DISABLED", false),

		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		VisionModel:         getEnv("VISION_MODEL", "gemini-2.0-flash"),
		VisionFallbackModel: getEnv("VISION_FALLBACK_MODEL", "gemini-1.5-flash"),
		DecisionCacheTTL:    getEnvAsDuration("DECISION_CACHE_TTL", 10*time.Minute),

		TickInterval:        getEnvAsDuration("CAMPAIGN_TICK_INTERVAL", 60*time.Second),
		DueBatchSize:        getEnvAsInt("CAMPAIGN_DUE_BATCH_SIZE", 25),
		MaxParallelAccounts: getEnvAsInt("CAMPAIGN_MAX_PARALLEL_ACCOUNTS", 3),

		DailyVisits:   getEnvAsInt("DAILY_VISITS", 100),
		DailyConnects: getEnvAsInt("DAILY_CONNECTS", 25),
		DailyMessages: getEnvAsInt("DAILY_MESSAGES", 50),
		DailyFollows:  getEnvAsInt("DAILY_FOLLOWS", 40),

		CredentialKey: os.Getenv("CREDENTIAL_KEY"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
	}

	if cfg.CredentialKey == "" {
		return nil, fmt.Errorf("CREDENTIAL_KEY is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, fmt.Sprintf("%d", defaultValue))
	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, fmt.Sprintf("%t", defaultValue))
	return valueStr == "true" || valueStr == "1"
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	d, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return d
}
