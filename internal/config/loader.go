package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config captures configuration values for the meeting service.
type Config struct {
	HTTPPort   int           `yaml:"http_port"`
	SQLitePath string        `yaml:"sqlite_path"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	Timezone   string        `yaml:"timezone"`
	LogLevel   string        `yaml:"log_level"`

	CheckinRejectAmbiguous bool    `yaml:"checkin_reject_ambiguous"`
	CheckinRate            float64 `yaml:"checkin_rate"`
	CheckinBurst           int     `yaml:"checkin_burst"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	AMQPURL   string `yaml:"amqp_url"`
	AMQPQueue string `yaml:"amqp_queue"`

	BootstrapAdminEmail    string `yaml:"bootstrap_admin_email"`
	BootstrapAdminPassword string `yaml:"bootstrap_admin_password"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		HTTPPort:     8080,
		SQLitePath:   "scheduler.db",
		SessionTTL:   24 * time.Hour,
		Timezone:     "Asia/Tokyo",
		LogLevel:     "info",
		CheckinRate:  1,
		CheckinBurst: 5,
		AMQPQueue:    "meeting.status",
	}
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Load parses configuration values from the current process environment on
// top of Defaults.
func Load() (Config, error) {
	return FromEnv(Defaults())
}

// LoadFile reads a YAML file over Defaults and then applies environment
// overrides. Unknown keys are rejected.
func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("設定ファイルを読み込めません: %w", err)
	}
	cfg := Defaults()
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("設定ファイルの形式が不正です (%s): %w", path, err)
	}
	return FromEnv(cfg)
}

// LoadDotEnv imports .env style files without overriding variables that are
// already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf(".env ファイルを読み込めません (%s): %w", path, err)
		}
	}
	return nil
}

// FromEnv overlays SCHEDULER_* variables on base. Invalid values are
// collected and reported together.
func FromEnv(base Config) (Config, error) {
	cfg := base
	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if v, ok := lookup("SCHEDULER_HTTP_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "SCHEDULER_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if v, ok := lookup("SCHEDULER_SQLITE_PATH"); ok {
		cfg.SQLitePath = v
	}

	if v, ok := lookup("SCHEDULER_SESSION_TTL"); ok {
		ttl, err := time.ParseDuration(v)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "SCHEDULER_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if v, ok := lookup("SCHEDULER_TIMEZONE"); ok {
		cfg.Timezone = v
	}
	if _, err := cfg.Location(); err != nil {
		invalid = append(invalid, "SCHEDULER_TIMEZONE")
	}

	if v, ok := lookup("SCHEDULER_LOG_LEVEL"); ok {
		cfg.LogLevel = strings.ToLower(v)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, "SCHEDULER_LOG_LEVEL")
	}

	if v, ok := lookup("SCHEDULER_CHECKIN_REJECT_AMBIGUOUS"); ok {
		flag, err := strconv.ParseBool(v)
		if err != nil {
			invalid = append(invalid, "SCHEDULER_CHECKIN_REJECT_AMBIGUOUS")
		} else {
			cfg.CheckinRejectAmbiguous = flag
		}
	}

	if v, ok := lookup("SCHEDULER_CHECKIN_RATE"); ok {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil || rate <= 0 {
			invalid = append(invalid, "SCHEDULER_CHECKIN_RATE")
		} else {
			cfg.CheckinRate = rate
		}
	}

	if v, ok := lookup("SCHEDULER_CHECKIN_BURST"); ok {
		burst, err := strconv.Atoi(v)
		if err != nil || burst <= 0 {
			invalid = append(invalid, "SCHEDULER_CHECKIN_BURST")
		} else {
			cfg.CheckinBurst = burst
		}
	}

	if v, ok := lookup("SCHEDULER_REDIS_ADDR"); ok {
		cfg.RedisAddr = v
	}
	if v, ok := lookup("SCHEDULER_REDIS_PASSWORD"); ok {
		cfg.RedisPassword = v
	}
	if v, ok := lookup("SCHEDULER_REDIS_DB"); ok {
		db, err := strconv.Atoi(v)
		if err != nil || db < 0 {
			invalid = append(invalid, "SCHEDULER_REDIS_DB")
		} else {
			cfg.RedisDB = db
		}
	}

	if v, ok := lookup("SCHEDULER_AMQP_URL"); ok {
		cfg.AMQPURL = v
	}
	if v, ok := lookup("SCHEDULER_AMQP_QUEUE"); ok {
		cfg.AMQPQueue = v
	}

	if v, ok := lookup("SCHEDULER_BOOTSTRAP_ADMIN_EMAIL"); ok {
		cfg.BootstrapAdminEmail = v
	}
	if v, ok := lookup("SCHEDULER_BOOTSTRAP_ADMIN_PASSWORD"); ok {
		cfg.BootstrapAdminPassword = v
	}
	if cfg.BootstrapAdminEmail != "" && cfg.BootstrapAdminPassword == "" {
		missing = append(missing, "SCHEDULER_BOOTSTRAP_ADMIN_PASSWORD")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}
