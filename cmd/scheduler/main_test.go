package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/meeting-checkin/internal/config"
	"github.com/example/meeting-checkin/internal/persistence/sqlite"
	"github.com/example/meeting-checkin/internal/persistence/sqlite/migration"
)

func TestParseFlags(t *testing.T) {
	t.Parallel()

	t.Run("help short circuits", func(t *testing.T) {
		t.Parallel()
		var stderr bytes.Buffer
		opts, err := parseFlags([]string{"--help"}, &stderr)
		if err != nil || !opts.help {
			t.Fatalf("expected help without error, got %+v (err %v)", opts, err)
		}
		if !strings.Contains(stderr.String(), "--migrate-only") {
			t.Fatalf("expected usage output, got %q", stderr.String())
		}
	})

	t.Run("reads every flag", func(t *testing.T) {
		t.Parallel()
		opts, err := parseFlags([]string{"--config", "app.yaml", "--env-file", "prod.env", "--migrate-only"}, io.Discard)
		if err != nil {
			t.Fatalf("parseFlags returned error: %v", err)
		}
		if opts.configPath != "app.yaml" || opts.envFile != "prod.env" || !opts.migrateOnly {
			t.Fatalf("unexpected options: %+v", opts)
		}
	})

	t.Run("rejects unknown flags and stray arguments", func(t *testing.T) {
		t.Parallel()
		if _, err := parseFlags([]string{"--nope"}, io.Discard); err == nil {
			t.Fatal("expected error for unknown flag")
		}
		if _, err := parseFlags([]string{"serve"}, io.Discard); err == nil {
			t.Fatal("expected error for positional argument")
		}
	})
}

func TestRunMigrateOnly(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "scheduler.db")
	t.Setenv("SCHEDULER_SQLITE_PATH", dbPath)
	t.Setenv("SCHEDULER_BOOTSTRAP_ADMIN_EMAIL", "")

	var stdout bytes.Buffer
	args := []string{"--migrate-only", "--env-file", filepath.Join(dir, "missing.env")}
	if err := run(context.Background(), args, &stdout, io.Discard); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected database file: %v", err)
	}
	if !strings.Contains(stdout.String(), "migrations applied, exiting") {
		t.Fatalf("expected exit log, got %s", stdout.String())
	}

	// A second run finds nothing pending.
	if err := run(context.Background(), args, io.Discard, io.Discard); err != nil {
		t.Fatalf("second run returned error: %v", err)
	}
}

func TestRunRejectsInvalidConfiguration(t *testing.T) {
	t.Setenv("SCHEDULER_HTTP_PORT", "not-a-port")

	err := run(context.Background(), []string{"--env-file", ""}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "SCHEDULER_HTTP_PORT") {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func newTestApp(t *testing.T) (*app, config.Config) {
	t.Helper()

	storage, err := sqlite.Open(migration.TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "app.db")))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { _ = storage.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := storage.Migrate(context.Background(), logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Defaults()
	cfg.BootstrapAdminEmail = "admin@example.com"
	cfg.BootstrapAdminPassword = "correct-horse"

	a, err := newApp(cfg, storage, logger)
	if err != nil {
		t.Fatalf("newApp returned error: %v", err)
	}
	t.Cleanup(a.Close)
	return a, cfg
}

func TestAppServesWiredRoutes(t *testing.T) {
	t.Parallel()

	a, cfg := newTestApp(t)
	ctx := context.Background()
	if err := a.bootstrapAdmin(ctx, cfg); err != nil {
		t.Fatalf("bootstrapAdmin returned error: %v", err)
	}
	if err := a.bootstrapAdmin(ctx, cfg); err != nil {
		t.Fatalf("second bootstrapAdmin returned error: %v", err)
	}

	server := httptest.NewServer(a.handler)
	t.Cleanup(server.Close)

	resp, err := http.Post(server.URL+"/auth/login", "application/json",
		strings.NewReader(`{"email":"admin@example.com","password":"correct-horse"}`))
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 from login, got %d", resp.StatusCode)
	}
	var login struct {
		Token string `json:"token"`
		User  struct {
			IsAdmin bool `json:"isAdmin"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.Token == "" || !login.User.IsAdmin {
		t.Fatalf("unexpected login payload: %+v", login)
	}

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/rooms", strings.NewReader(`{"name":"Kaede","location":"3F","capacity":6}`))
	req.Header.Set("Authorization", "Bearer "+login.Token)
	req.Header.Set("Content-Type", "application/json")
	roomResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("create room failed: %v", err)
	}
	roomResp.Body.Close()
	if roomResp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 from room create, got %d", roomResp.StatusCode)
	}

	checkin, err := http.Post(server.URL+"/checkin", "application/json", strings.NewReader(`{"token":"unknown","last4Digits":"1234"}`))
	if err != nil {
		t.Fatalf("checkin request failed: %v", err)
	}
	body, _ := io.ReadAll(checkin.Body)
	checkin.Body.Close()
	if checkin.StatusCode != http.StatusOK || !strings.Contains(string(body), `"outcome":"token_invalid"`) {
		t.Fatalf("unexpected checkin response %d: %s", checkin.StatusCode, body)
	}

	metricsResp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	exposition, _ := io.ReadAll(metricsResp.Body)
	metricsResp.Body.Close()
	for _, want := range []string{
		`meetings_checkins_total{outcome="token_invalid"} 1`,
		`path="POST /rooms"`,
	} {
		if !strings.Contains(string(exposition), want) {
			t.Fatalf("expected %s in metrics output", want)
		}
	}
}
