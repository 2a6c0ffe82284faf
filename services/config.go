package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds settings for both the server and the CLI client
type Config struct {
	Port           string
	DBPath         string
	StaticDir      string
	AllowedOrigins []string
	JWTSecret      string
	JWTExpiry      time.Duration
	SMTP           SMTPConfig

	ServerURL        string
	Token            string
	StatePath        string
	ProbeInterval    time.Duration
	RemoteTimeout    time.Duration
	RequeueOnFailure bool

	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
}

// NewViper returns a viper instance with defaults and environment bindings.
// Every key can be set as FLOWBOARD_<KEY>; the server keys also accept the
// bare names PORT, JWT_SECRET and SMTP_*.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("port", "3001")
	v.SetDefault("db_path", "./flowboard.db")
	v.SetDefault("static_dir", "")
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("jwt_secret", "your-default-secret-key-change-in-production")
	v.SetDefault("jwt_expiry", "168h")
	v.SetDefault("server_url", "http://localhost:3001")
	v.SetDefault("state_path", "./flowboard-state.db")
	v.SetDefault("probe_interval", "5s")
	v.SetDefault("remote_timeout", "10s")
	v.SetDefault("requeue_on_failure", false)
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)

	v.SetEnvPrefix("FLOWBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bare names kept for existing deployments
	_ = v.BindEnv("port", "FLOWBOARD_PORT", "PORT")
	_ = v.BindEnv("jwt_secret", "FLOWBOARD_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("smtp.host", "FLOWBOARD_SMTP_HOST", "SMTP_HOST")
	_ = v.BindEnv("smtp.port", "FLOWBOARD_SMTP_PORT", "SMTP_PORT")
	_ = v.BindEnv("smtp.username", "FLOWBOARD_SMTP_USERNAME", "SMTP_USERNAME")
	_ = v.BindEnv("smtp.password", "FLOWBOARD_SMTP_PASSWORD", "SMTP_PASSWORD")
	_ = v.BindEnv("smtp.from", "FLOWBOARD_SMTP_FROM", "SMTP_FROM")
	_ = v.BindEnv("log.file", "FLOWBOARD_LOG_FILE", "LOG_FILE")
	_ = v.BindEnv("log.max_size_mb", "FLOWBOARD_LOG_MAX_SIZE_MB", "LOG_MAX_SIZE_MB")
	_ = v.BindEnv("log.max_backups", "FLOWBOARD_LOG_MAX_BACKUPS", "LOG_MAX_BACKUPS")

	return v
}

// LoadConfig loads .env (if present), then the config file, then resolves
// every key through v. An empty configFile searches for flowboard.yaml in
// the working directory and $HOME/.flowboard; a missing file is not an error
// unless it was named explicitly.
func LoadConfig(v *viper.Viper, configFile string) (*Config, error) {
	// Load environment variables from .env file if it exists
	_ = godotenv.Load()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("flowboard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.flowboard")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		Port:           v.GetString("port"),
		DBPath:         v.GetString("db_path"),
		StaticDir:      v.GetString("static_dir"),
		AllowedOrigins: v.GetStringSlice("allowed_origins"),
		JWTSecret:      v.GetString("jwt_secret"),
		JWTExpiry:      v.GetDuration("jwt_expiry"),
		SMTP: SMTPConfig{
			Host:     v.GetString("smtp.host"),
			Port:     v.GetString("smtp.port"),
			Username: v.GetString("smtp.username"),
			Password: v.GetString("smtp.password"),
			From:     v.GetString("smtp.from"),
		},
		ServerURL:        v.GetString("server_url"),
		Token:            v.GetString("token"),
		StatePath:        v.GetString("state_path"),
		ProbeInterval:    v.GetDuration("probe_interval"),
		RemoteTimeout:    v.GetDuration("remote_timeout"),
		RequeueOnFailure: v.GetBool("requeue_on_failure"),
		LogFile:          v.GetString("log.file"),
		LogMaxSizeMB:     v.GetInt("log.max_size_mb"),
		LogMaxBackups:    v.GetInt("log.max_backups"),
	}

	if cfg.Port == "" {
		return nil, errors.New("port must not be empty")
	}
	return cfg, nil
}

// ValidateServer checks settings only the server uses. The database must not
// sit under the static directory, which is served without authentication.
func (c *Config) ValidateServer() error {
	if c.StaticDir == "" {
		return nil
	}
	static, err := filepath.Abs(c.StaticDir)
	if err != nil {
		return fmt.Errorf("invalid static dir: %w", err)
	}
	db, err := filepath.Abs(c.DBPath)
	if err != nil {
		return fmt.Errorf("invalid db path: %w", err)
	}
	rel, err := filepath.Rel(static, db)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return fmt.Errorf("db path %s is inside static dir %s and would be served publicly", c.DBPath, c.StaticDir)
	}
	return nil
}
