package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	cerr "github.com/saeidalz13/battleship-server/internal/error"
)

const (
	StageProd = "prod"
	StageDev  = "dev"
)

type Config struct {
	Stage         string
	GamePort      int
	HTTPPort      int
	DatabaseURL   string
	MigrationDir  string
	PingInterval  time.Duration
	ReadTimeout   time.Duration
	ProbeTimeout  time.Duration
	MaxSessionAge time.Duration
	LogLevel      string
}

func Default() Config {
	return Config{
		Stage:         StageDev,
		GamePort:      27000,
		HTTPPort:      9191,
		MigrationDir:  "file://db/migration",
		PingInterval:  time.Second * 10,
		ReadTimeout:   time.Second * 20,
		ProbeTimeout:  time.Second * 20,
		MaxSessionAge: time.Minute * 30,
		LogLevel:      "info",
	}
}

type fileConfig struct {
	Stage         string `toml:"stage"`
	GamePort      int    `toml:"game_port"`
	HTTPPort      int    `toml:"http_port"`
	DatabaseURL   string `toml:"database_url"`
	MigrationDir  string `toml:"migration_dir"`
	PingInterval  string `toml:"ping_interval"`
	ReadTimeout   string `toml:"read_timeout"`
	ProbeTimeout  string `toml:"probe_timeout"`
	MaxSessionAge string `toml:"max_session_age"`
	LogLevel      string `toml:"log_level"`
}

// Load builds the configuration from defaults, an optional TOML file named by
// CONFIG_FILE and finally the environment. Outside prod a .env file is read
// first when present.
func Load() (Config, error) {
	if os.Getenv("STAGE") != StageProd {
		if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}

	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func applyFile(cfg *Config, path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load server config: %w", err)
	}

	if meta.IsDefined("stage") {
		cfg.Stage = strings.TrimSpace(raw.Stage)
	}
	if meta.IsDefined("game_port") {
		cfg.GamePort = raw.GamePort
	}
	if meta.IsDefined("http_port") {
		cfg.HTTPPort = raw.HTTPPort
	}
	if meta.IsDefined("database_url") {
		cfg.DatabaseURL = strings.TrimSpace(raw.DatabaseURL)
	}
	if meta.IsDefined("migration_dir") {
		cfg.MigrationDir = strings.TrimSpace(raw.MigrationDir)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"ping_interval", raw.PingInterval, &cfg.PingInterval},
		{"read_timeout", raw.ReadTimeout, &cfg.ReadTimeout},
		{"probe_timeout", raw.ProbeTimeout, &cfg.ProbeTimeout},
		{"max_session_age", raw.MaxSessionAge, &cfg.MaxSessionAge},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	if v, ok := lookup("STAGE"); ok {
		cfg.Stage = v
	}
	if v, ok := lookup("DATABASE_URL"); ok {
		cfg.DatabaseURL = v
	}
	if v, ok := lookup("MIGRATION_DIR"); ok {
		cfg.MigrationDir = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}

	ports := []struct {
		key string
		dst *int
	}{
		{"GAME_PORT", &cfg.GamePort},
		{"HTTP_PORT", &cfg.HTTPPort},
	}
	for _, p := range ports {
		v, ok := lookup(p.key)
		if !ok {
			continue
		}
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %s: %w", p.key, err)
		}
		*p.dst = port
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"PING_INTERVAL", &cfg.PingInterval},
		{"READ_TIMEOUT", &cfg.ReadTimeout},
		{"PROBE_TIMEOUT", &cfg.ProbeTimeout},
		{"MAX_SESSION_AGE", &cfg.MaxSessionAge},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

func (c Config) Validate() error {
	if c.Stage != StageProd && c.Stage != StageDev {
		return cerr.ErrInvalidStage(c.Stage)
	}
	if c.GamePort < 0 || c.GamePort > 65535 {
		return fmt.Errorf("game port out of range: %d", c.GamePort)
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http port out of range: %d", c.HTTPPort)
	}
	if c.PingInterval <= 0 || c.ReadTimeout <= 0 || c.ProbeTimeout <= 0 {
		return fmt.Errorf("ping interval, read timeout and probe timeout must be positive")
	}
	return nil
}
