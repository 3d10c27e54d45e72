package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-tracker/internal/audit"
	"github.com/nerrad567/gray-logic-tracker/internal/auth"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-tracker/internal/tracker"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// writeConfig writes a config with MQTT and InfluxDB disabled and points
// GRAYTRACKER_CONFIG at it.
func writeConfig(t *testing.T, dbPath string, apiPort string) {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")

	configContent := `
site:
  id: test-site

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: ` + apiPort + `
  timeouts:
    read: 5
    write: 5
    idle: 5

security:
  jwt:
    secret: "` + testSecret + `"
    access_token_ttl: 15

tracker:
  setup_retry_delay: 60

routers:
  - id: office
    host: "127.0.0.1"
    port: 1
    username: admin
    password: secret
    timeout: 1
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("GRAYTRACKER_CONFIG", configPath)
	t.Setenv("GRAYTRACKER_JWT_SECRET", "")
	t.Setenv("GRAYTRACKER_DATABASE_PATH", "")
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("GRAYTRACKER_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, nil, &bytes.Buffer{})
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want config loading error", err)
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is empty.
func TestRun_MissingDatabasePath(t *testing.T) {
	writeConfig(t, "", "19190")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, nil, &bytes.Buffer{}); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestRun_UnwritableDatabase verifies run fails when the database cannot be opened.
func TestRun_UnwritableDatabase(t *testing.T) {
	writeConfig(t, "/nonexistent/dir/test.db", "19191")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, nil, &bytes.Buffer{})
	if err == nil {
		t.Fatal("run() should fail with unwritable database path")
	}
	if !strings.Contains(err.Error(), "opening database") {
		t.Errorf("run() error = %v, want database error", err)
	}
}

func TestRun_BadFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown flag", args: []string{"-nope"}},
		{name: "positional argument", args: []string{"serve"}},
		{name: "token without subject value", args: []string{"-token"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := run(context.Background(), tt.args, &bytes.Buffer{}); err == nil {
				t.Errorf("run(%v) should fail", tt.args)
			}
		})
	}
}

// TestRun_Token verifies -token prints a token signed with the configured secret.
func TestRun_Token(t *testing.T) {
	writeConfig(t, filepath.Join(t.TempDir(), "unused.db"), "19192")

	var out bytes.Buffer
	if err := run(context.Background(), []string{"-token", "alice", "-role", "operator"}, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	claims, err := auth.ParseToken(strings.TrimSpace(out.String()), testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "alice" || claims.Role != auth.RoleOperator {
		t.Errorf("claims = %q/%q, want alice/operator", claims.Subject, claims.Role)
	}
	if ttl := time.Until(claims.ExpiresAt.Time); ttl > 15*time.Minute || ttl < 14*time.Minute {
		t.Errorf("token ttl = %v, want about 15m", ttl)
	}
}

func TestRun_TokenInvalidRole(t *testing.T) {
	writeConfig(t, filepath.Join(t.TempDir(), "unused.db"), "19193")

	var out bytes.Buffer
	if err := run(context.Background(), []string{"-token", "alice", "-role", "root"}, &out); err == nil {
		t.Fatal("run() should fail with an unknown role")
	}
	if out.Len() != 0 {
		t.Errorf("output = %q, want empty", out.String())
	}
}

// TestRun_StartupAndShutdown starts the service against an unreachable
// router and shuts it down when the context ends. The router stays pending.
func TestRun_StartupAndShutdown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	writeConfig(t, dbPath, "19194")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := run(ctx, nil, &bytes.Buffer{}); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("GRAYTRACKER_CONFIG", "")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("GRAYTRACKER_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestHealthCheck_NilDatabase(t *testing.T) {
	if err := healthCheck(context.Background(), nil, nil, nil); err == nil {
		t.Error("healthCheck() should fail without a database")
	}
}

type memAudit struct {
	entries []audit.Entry
}

func (m *memAudit) Create(_ context.Context, e *audit.Entry) error {
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memAudit) List(context.Context, audit.Filter) (*audit.ListResult, error) {
	return &audit.ListResult{Entries: m.entries, Total: len(m.entries)}, nil
}

func TestRecordMQTTCommand(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	repo := &memAudit{}
	ctx := context.Background()

	recordMQTTCommand(ctx, repo, log, "office", "AA:BB:CC:DD:EE:01", false, nil)
	recordMQTTCommand(ctx, repo, log, "office", "AA:BB:CC:DD:EE:01", true, tracker.ErrServiceFailed)
	recordMQTTCommand(ctx, repo, log, "attic", "AA:BB:CC:DD:EE:01", true, tracker.ErrRouterNotFound)

	if len(repo.entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(repo.entries))
	}
	ok, failed := repo.entries[0], repo.entries[1]
	if ok.Source != audit.SourceMQTT || ok.Outcome != audit.OutcomeOK || ok.Details["allow"] != false {
		t.Errorf("ok entry = %+v", ok)
	}
	if failed.Outcome != audit.OutcomeError || failed.Details["error"] == nil {
		t.Errorf("failed entry = %+v", failed)
	}
}
