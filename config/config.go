package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store is a key/value view over the process configuration.
type Store interface {
	GetString(key string) string
}

type Config struct {
	Port      string
	APIKey    string
	JWTSecret string

	BaseWebhookURL string
	WebhookSecret  string

	SessionsPath        string
	MaxAttachmentSize   int64
	SetMessagesAsSeen   bool
	WebVersion          string
	WebVersionCacheType string
	RecoverSessions     bool
	ReleaseBrowserLock  bool
	Headless            bool
	DisabledCallbacks   string

	EnableWebhook     bool
	EnableWebsocket   bool
	AutoStartSessions bool

	RateLimitMax    int
	RateLimitWindow time.Duration

	LogLevel  string
	LogPretty bool
}

var defaults = map[string]any{
	"PORT":                   "3000",
	"API_KEY":                "",
	"JWT_SECRET":             "",
	"BASE_WEBHOOK_URL":       "",
	"WEBHOOK_SECRET":         "",
	"SESSIONS_PATH":          "./sessions",
	"MAX_ATTACHMENT_SIZE":    10000000,
	"SET_MESSAGES_AS_SEEN":   false,
	"WEB_VERSION":            "",
	"WEB_VERSION_CACHE_TYPE": "none",
	"RECOVER_SESSIONS":       false,
	"RELEASE_BROWSER_LOCK":   true,
	"HEADLESS":               true,
	"DISABLED_CALLBACKS":     "",
	"ENABLE_WEBHOOK":         true,
	"ENABLE_WEBSOCKET":       true,
	"AUTO_START_SESSIONS":    true,
	"RATE_LIMIT_MAX":         1000,
	"RATE_LIMIT_WINDOW_MS":   1000,
	"LOG_LEVEL":              "info",
	"LOG_PRETTY":             false,
}

// NewViper returns a viper instance reading the process environment, with
// every known key defaulted.
func NewViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return v
}

func Load(v *viper.Viper) *Config {
	if v == nil {
		v = NewViper()
	}
	return &Config{
		Port:                v.GetString("PORT"),
		APIKey:              v.GetString("API_KEY"),
		JWTSecret:           v.GetString("JWT_SECRET"),
		BaseWebhookURL:      v.GetString("BASE_WEBHOOK_URL"),
		WebhookSecret:       v.GetString("WEBHOOK_SECRET"),
		SessionsPath:        v.GetString("SESSIONS_PATH"),
		MaxAttachmentSize:   v.GetInt64("MAX_ATTACHMENT_SIZE"),
		SetMessagesAsSeen:   v.GetBool("SET_MESSAGES_AS_SEEN"),
		WebVersion:          v.GetString("WEB_VERSION"),
		WebVersionCacheType: v.GetString("WEB_VERSION_CACHE_TYPE"),
		RecoverSessions:     v.GetBool("RECOVER_SESSIONS"),
		ReleaseBrowserLock:  v.GetBool("RELEASE_BROWSER_LOCK"),
		Headless:            v.GetBool("HEADLESS"),
		DisabledCallbacks:   v.GetString("DISABLED_CALLBACKS"),
		EnableWebhook:       v.GetBool("ENABLE_WEBHOOK"),
		EnableWebsocket:     v.GetBool("ENABLE_WEBSOCKET"),
		AutoStartSessions:   v.GetBool("AUTO_START_SESSIONS"),
		RateLimitMax:        v.GetInt("RATE_LIMIT_MAX"),
		RateLimitWindow:     time.Duration(v.GetInt("RATE_LIMIT_WINDOW_MS")) * time.Millisecond,
		LogLevel:            v.GetString("LOG_LEVEL"),
		LogPretty:           v.GetBool("LOG_PRETTY"),
	}
}
