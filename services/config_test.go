package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "JWT_SECRET", "LOG_FILE", "FLOWBOARD_PORT", "FLOWBOARD_SERVER_URL", "FLOWBOARD_TOKEN", "FLOWBOARD_STATIC_DIR"} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig(NewViper(), "")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "3001" || cfg.ServerURL != "http://localhost:3001" {
		t.Errorf("unexpected defaults: port=%q server=%q", cfg.Port, cfg.ServerURL)
	}
	if cfg.ProbeInterval != 5*time.Second || cfg.RemoteTimeout != 10*time.Second || cfg.JWTExpiry != 168*time.Hour {
		t.Errorf("unexpected durations: %+v", cfg)
	}
	if cfg.RequeueOnFailure {
		t.Error("requeue should default off")
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.LogMaxSizeMB != 10 || cfg.LogMaxBackups != 3 {
		t.Errorf("unexpected log rotation defaults: %+v", cfg)
	}
	if cfg.StaticDir != "" {
		t.Errorf("static files should be off by default, got %q", cfg.StaticDir)
	}
	if err := cfg.ValidateServer(); err != nil {
		t.Errorf("defaults rejected: %v", err)
	}
}

func TestValidateServerRejectsPublicDatabase(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name      string
		staticDir string
		dbPath    string
		wantErr   bool
	}{
		{"no static dir", "", filepath.Join(dir, "flowboard.db"), false},
		{"db in static root", dir, filepath.Join(dir, "flowboard.db"), true},
		{"db below static root", dir, filepath.Join(dir, "data", "flowboard.db"), true},
		{"db beside static root", filepath.Join(dir, "public"), filepath.Join(dir, "flowboard.db"), false},
		{"sibling with shared prefix", filepath.Join(dir, "pub"), filepath.Join(dir, "public", "flowboard.db"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{StaticDir: tt.staticDir, DBPath: tt.dbPath}
			if err := cfg.ValidateServer(); (err != nil) != tt.wantErr {
				t.Errorf("ValidateServer() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigEnvironment(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PORT", "4000")
	t.Setenv("FLOWBOARD_TOKEN", "abc")
	t.Setenv("FLOWBOARD_REQUEUE_ON_FAILURE", "true")
	t.Setenv("SMTP_HOST", "smtp.example.com")

	cfg, err := LoadConfig(NewViper(), "")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "4000" || cfg.Token != "abc" || !cfg.RequeueOnFailure || cfg.SMTP.Host != "smtp.example.com" {
		t.Errorf("environment not applied: %+v", cfg)
	}

	// The prefixed name wins over the bare one
	t.Setenv("FLOWBOARD_PORT", "4001")
	cfg, _ = LoadConfig(NewViper(), "")
	if cfg.Port != "4001" {
		t.Errorf("port = %q, want 4001", cfg.Port)
	}
}

func TestLoadConfigFile(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "flowboard.yaml")
	yaml := `port: "5000"
server_url: https://boards.example.com
probe_interval: 2s
allowed_origins:
  - https://boards.example.com
log:
  file: /var/log/flowboard.log
  max_backups: 7
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(NewViper(), path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "5000" || cfg.ServerURL != "https://boards.example.com" || cfg.ProbeInterval != 2*time.Second {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://boards.example.com" {
		t.Errorf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.LogFile != "/var/log/flowboard.log" || cfg.LogMaxBackups != 7 || cfg.LogMaxSizeMB != 10 {
		t.Errorf("unexpected log settings: %+v", cfg)
	}

	// Environment overrides the file
	t.Setenv("FLOWBOARD_PORT", "6000")
	cfg, _ = LoadConfig(NewViper(), path)
	if cfg.Port != "6000" {
		t.Errorf("port = %q, want 6000", cfg.Port)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	clearConfigEnv(t)
	if _, err := LoadConfig(NewViper(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLogWriter(t *testing.T) {
	if w := LogWriter(&Config{}); w != os.Stderr {
		t.Errorf("expected stderr without a log file, got %T", w)
	}

	path := filepath.Join(t.TempDir(), "flowboard.log")
	w := LogWriter(&Config{LogFile: path, LogMaxSizeMB: 1, LogMaxBackups: 1})
	if _, err := w.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "hello\n" {
		t.Errorf("log file = %q, %v", data, err)
	}
}
