package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/example/room-booking/internal/scheduler"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "BOOKING"

// Config captures environment driven configuration values for the booking service.
type Config struct {
	HTTPPort     int
	DatabasePath string
	JWTSecret    string
	SessionTTL   time.Duration
	LogLevel     string

	Booking      BookingConfig
	Security     SecurityConfig
	Notification NotificationConfig
	Events       EventsConfig
}

// BookingConfig holds the business hours applied by the conflict engine.
type BookingConfig struct {
	Open  scheduler.TimeOfDay
	Close scheduler.TimeOfDay
}

// SecurityConfig holds lockout thresholds and OTP parameters.
type SecurityConfig struct {
	LoginAttemptLimit   int
	LockoutWindow       time.Duration
	OTPLength           int
	OTPTTL              time.Duration
	OTPMaxAttempts      int
	AllowedEmailDomains []string
}

// NotificationConfig locates the mail queue. An empty URL logs notifications instead.
type NotificationConfig struct {
	AMQPURL string
	Queue   string
}

// EventsConfig enables the Kafka event stream next to the WebSocket hub.
type EventsConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
}

// Scheduler converts the booking settings for the conflict engine.
func (b BookingConfig) Scheduler() scheduler.Config {
	return scheduler.Config{Open: b.Open, Close: b.Close}
}

// Load parses configuration from the process environment after merging the
// optional env files (".env" when none are given). Variables already present
// in the environment win over file entries.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to read env file %s: %w", file, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	p := parser{v: v}
	cfg := Config{
		HTTPPort:     p.positiveInt("http_port"),
		DatabasePath: p.str("sqlite_path"),
		JWTSecret:    p.required("jwt_secret"),
		SessionTTL:   p.duration("session_ttl"),
		LogLevel:     strings.ToLower(p.str("log_level")),
		Booking: BookingConfig{
			Open:  p.timeOfDay("business_open"),
			Close: p.timeOfDay("business_close"),
		},
		Security: SecurityConfig{
			LoginAttemptLimit:   p.positiveInt("login_attempt_limit"),
			LockoutWindow:       time.Duration(p.positiveInt("login_lockout_time")) * time.Second,
			OTPLength:           p.positiveInt("otp_length"),
			OTPTTL:              p.duration("otp_ttl"),
			OTPMaxAttempts:      p.positiveInt("otp_max_attempts"),
			AllowedEmailDomains: p.list("allowed_email_domains"),
		},
		Notification: NotificationConfig{
			AMQPURL: p.str("amqp_url"),
			Queue:   p.str("notification_queue"),
		},
		Events: EventsConfig{
			KafkaBrokers: p.list("kafka_brokers"),
			KafkaTopic:   p.str("kafka_topic"),
		},
	}

	if cfg.Booking.Close <= cfg.Booking.Open {
		p.invalid = append(p.invalid, envName("business_close"))
	}
	if cfg.Security.OTPLength < 4 || cfg.Security.OTPLength > 10 {
		p.invalid = append(p.invalid, envName("otp_length"))
	}

	if len(p.missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(p.missing, ", "))
	}
	if len(p.invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(p.invalid, ", "))
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", 8080)
	v.SetDefault("sqlite_path", "booking.db")
	v.SetDefault("session_ttl", "8h")
	v.SetDefault("log_level", "info")
	v.SetDefault("business_open", "08:00")
	v.SetDefault("business_close", "18:00")
	v.SetDefault("login_attempt_limit", 5)
	v.SetDefault("login_lockout_time", 1800)
	v.SetDefault("otp_length", 6)
	v.SetDefault("otp_ttl", "10m")
	v.SetDefault("otp_max_attempts", 3)
	v.SetDefault("notification_queue", "booking.notifications")
	v.SetDefault("kafka_topic", "booking.events")
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}

type parser struct {
	v       *viper.Viper
	missing []string
	invalid []string
}

func (p *parser) str(key string) string {
	return strings.TrimSpace(p.v.GetString(key))
}

func (p *parser) required(key string) string {
	value := p.str(key)
	if value == "" {
		p.missing = append(p.missing, envName(key))
	}
	return value
}

func (p *parser) positiveInt(key string) int {
	n, err := strconv.Atoi(p.str(key))
	if err != nil || n <= 0 {
		p.invalid = append(p.invalid, envName(key))
		return 0
	}
	return n
}

func (p *parser) duration(key string) time.Duration {
	d, err := time.ParseDuration(p.str(key))
	if err != nil || d <= 0 {
		p.invalid = append(p.invalid, envName(key))
		return 0
	}
	return d
}

func (p *parser) timeOfDay(key string) scheduler.TimeOfDay {
	t, err := scheduler.ParseTimeOfDay(p.str(key))
	if err != nil {
		p.invalid = append(p.invalid, envName(key))
		return 0
	}
	return t
}

func (p *parser) list(key string) []string {
	raw := p.str(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
