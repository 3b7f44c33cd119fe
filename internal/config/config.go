package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	RawMsgDir string
	OutputDir string

	CodeLength  int
	RulesFile   string
	AppHash     string
	AppPackage  string
	AppCertHash string

	SessionWindow time.Duration

	WebhookAddr    string
	WebhookToken   string
	WebhookRateRPS int

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	ListenerProvider     string
	ListenerLabel        string
	ListenerIntervalSec  int
	ListenerFetchMax     int
	ListenerProcessBatch int
	ListenerAutoExport   bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawMsgDir: getEnv("SMS_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		CodeLength:  getEnvInt("OTP_CODE_LENGTH", 4),
		RulesFile:   getEnv("OTP_RULES_FILE", ""),
		AppHash:     getEnv("OTP_APP_HASH", ""),
		AppPackage:  getEnv("OTP_APP_PACKAGE", ""),
		AppCertHash: getEnv("OTP_APP_CERT_HASH", ""),

		SessionWindow: getEnvDuration("OTP_SESSION_WINDOW", 5*time.Minute),

		WebhookAddr:    getEnv("WEBHOOK_ADDR", ":8085"),
		WebhookToken:   getEnv("WEBHOOK_TOKEN", ""),
		WebhookRateRPS: getEnvInt("WEBHOOK_RATE_LIMIT_RPS", 10),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		ListenerProvider:     getEnv("SMS_LISTENER_PROVIDER", "imap"),
		ListenerLabel:        getEnv("SMS_LISTENER_LABEL", "INBOX"),
		ListenerIntervalSec:  getEnvInt("SMS_LISTENER_INTERVAL_SEC", 15),
		ListenerFetchMax:     getEnvInt("SMS_LISTENER_FETCH_MAX", 20),
		ListenerProcessBatch: getEnvInt("SMS_LISTENER_PROCESS_BATCH", 20),
		ListenerAutoExport:   getEnvBool("SMS_LISTENER_AUTO_EXPORT", false),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(getEnv(key, ""))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
