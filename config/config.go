package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// AutomationConfig controls the browser engine: session fingerprint, retry
// budget, pacing, and the form state machine step cap.
type AutomationConfig struct {
	Headless        bool
	ProfileDir      string
	ProxyURL        string
	UserAgent       string
	MaxSteps        int
	MaxAttempts     int
	BaseDelay       time.Duration
	CooldownMinutes int
	// NavInterval is the minimum spacing between page loads.
	NavInterval time.Duration
	// MinActionDelay/MaxActionDelay bound the randomized human-like pauses
	// between keystrokes and clicks.
	MinActionDelay  time.Duration
	MaxActionDelay  time.Duration
	DebugDir        string
	MaxApplications int
	// LoginWait > 0 selects manual-wait login mode: the run parks this long
	// after opening the session so an operator can sign in by hand.
	LoginWait time.Duration
}

type NotifyConfig struct {
	TelegramToken  string
	TelegramChatID int64
}

type AppConfig struct {
	Port           string
	Database       DatabaseConfig
	Automation     AutomationConfig
	Notify         NotifyConfig
	JWTSecret      string
	Environment    string
	HeuristicsPath string
}

func GetDatabaseConfig() DatabaseConfig {
	port, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	password := getEnv("DB_PASSWORD", "")

	if password == "" {
		fmt.Println("⚠️  Warning: DB_PASSWORD environment variable is not set.")
	}

	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     port,
		User:     getEnv("DB_USER", "postgres"),
		Password: password,
		DBName:   getEnv("DB_NAME", "jobpilot"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

func GetAutomationConfig() AutomationConfig {
	maxSteps := getEnvInt("AUTOMATION_MAX_STEPS", 8)
	if maxSteps > 10 {
		maxSteps = 10
	}
	return AutomationConfig{
		Headless:        getEnvBool("HEADLESS", true),
		ProfileDir:      getEnv("BROWSER_PROFILE_DIR", ""),
		ProxyURL:        getEnv("BROWSER_PROXY_URL", ""),
		UserAgent:       getEnv("BROWSER_USER_AGENT", ""),
		MaxSteps:        maxSteps,
		MaxAttempts:     getEnvInt("AUTOMATION_MAX_ATTEMPTS", 3),
		BaseDelay:       time.Duration(getEnvInt("AUTOMATION_BASE_DELAY_MS", 1500)) * time.Millisecond,
		CooldownMinutes: getEnvInt("RATE_LIMIT_COOLDOWN_MINUTES", 10),
		NavInterval:     time.Duration(getEnvInt("NAVIGATION_INTERVAL_SECONDS", 4)) * time.Second,
		MinActionDelay:  time.Duration(getEnvInt("ACTION_DELAY_MIN_MS", 300)) * time.Millisecond,
		MaxActionDelay:  time.Duration(getEnvInt("ACTION_DELAY_MAX_MS", 1200)) * time.Millisecond,
		DebugDir:        getEnv("DEBUG_ARTIFACT_DIR", "debug_artifacts"),
		MaxApplications: getEnvInt("MAX_APPLICATIONS_PER_RUN", 10),
		LoginWait:       time.Duration(getEnvInt("LOGIN_WAIT_SECONDS", 0)) * time.Second,
	}
}

func GetNotifyConfig() NotifyConfig {
	chatID, _ := strconv.ParseInt(getEnv("TELEGRAM_CHAT_ID", "0"), 10, 64)
	return NotifyConfig{
		TelegramToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID: chatID,
	}
}

func GetAppConfig() AppConfig {
	return AppConfig{
		Port:           getEnv("PORT", "8081"),
		Database:       GetDatabaseConfig(),
		Automation:     GetAutomationConfig(),
		Notify:         GetNotifyConfig(),
		JWTSecret:      getEnv("JWT_SECRET", "your-secret-key"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		HeuristicsPath: getEnv("HEURISTICS_PATH", "configs/heuristics.yaml"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
