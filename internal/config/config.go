package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration required by the portal process.
// All values come from env (or an env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App    AppConfig
	Twilio TwilioConfig
	Redis  RedisConfig
	DB     DBConfig
}

type AppConfig struct {
	Env  string
	Port int

	// StaticDir holds the portal web assets. Optional; the root route
	// falls back to a service document when the directory is absent.
	StaticDir string

	// VoiceURL overrides the call-instruction URL handed to the provider
	// when placing calls. Empty means the local /voice route; deployments
	// behind a public hostname must set it to a provider-reachable URL.
	VoiceURL string
}

// TwilioConfig carries the provider credentials. All six values are
// required at startup; a half-configured process must not bind.
type TwilioConfig struct {
	AccountSID  string
	APIKey      string
	APISecret   string
	TwiMLAppSID string

	// PhoneNumber is the outbound caller ID presented to borrowers.
	PhoneNumber string
	AuthToken   string
}

type RedisConfig struct {
	Host string
	Port int
}

// DBConfig is optional. When Host is set, the call-attempt archive is
// enabled and the remaining fields become required.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

const defaultPort = 3000

func Load() (Config, error) {
	c := Config{}

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	if c.App.Env == "" {
		c.App.Env = "local"
	}
	c.App.Port = optionalInt("PORT", defaultPort)
	c.App.StaticDir = strings.TrimSpace(os.Getenv("STATIC_DIR"))
	if c.App.StaticDir == "" {
		c.App.StaticDir = "public"
	}
	c.App.VoiceURL = strings.TrimSpace(os.Getenv("VOICE_URL"))

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.APIKey = strings.TrimSpace(os.Getenv("TWILIO_API_KEY"))
	c.Twilio.APISecret = os.Getenv("TWILIO_API_SECRET")
	c.Twilio.TwiMLAppSID = strings.TrimSpace(os.Getenv("TWILIO_TWIML_APP_SID"))
	c.Twilio.PhoneNumber = strings.TrimSpace(os.Getenv("TWILIO_PHONE_NUMBER"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port = optionalInt("REDIS_PORT", 6379)

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port = optionalInt("DB_PORT", 5432)
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every missing or malformed value at once so an operator
// can fix the environment in a single pass.
func (c *Config) Validate() error {
	var errs []error

	if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.VoiceURL != "" && !strings.HasPrefix(c.App.VoiceURL, "http://") && !strings.HasPrefix(c.App.VoiceURL, "https://") {
		errs = append(errs, fmt.Errorf("VOICE_URL must be an absolute http(s) URL, got %q", c.App.VoiceURL))
	}

	required := []struct {
		name  string
		value string
	}{
		{"TWILIO_ACCOUNT_SID", c.Twilio.AccountSID},
		{"TWILIO_API_KEY", c.Twilio.APIKey},
		{"TWILIO_API_SECRET", c.Twilio.APISecret},
		{"TWILIO_TWIML_APP_SID", c.Twilio.TwiMLAppSID},
		{"TWILIO_PHONE_NUMBER", c.Twilio.PhoneNumber},
		{"TWILIO_AUTH_TOKEN", c.Twilio.AuthToken},
	}
	for _, rv := range required {
		if rv.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", rv.name))
		}
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.ArchiveEnabled() {
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required when DB_HOST is set"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required when DB_HOST is set"))
		}
		if c.DB.SSLMode == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

// ArchiveEnabled reports whether the Postgres call-attempt archive is on.
func (c Config) ArchiveEnabled() bool {
	return c.DB.Host != ""
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// VoiceWebhookURL is the call-instruction URL given to the provider,
// defaulting to the process's own /voice route.
func (c Config) VoiceWebhookURL() string {
	if c.App.VoiceURL != "" {
		return c.App.VoiceURL
	}
	return fmt.Sprintf("http://localhost:%d/voice", c.App.Port)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func optionalInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
