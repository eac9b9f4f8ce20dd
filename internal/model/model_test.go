package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseTaskKey(t *testing.T) {
	tests := []struct {
		in      string
		want    TaskKey
		wantErr bool
	}{
		{in: "gmail:18c2f", want: TaskKey{Source: SourceTypeGmail, ID: "18c2f"}},
		{in: " DevOps:101 ", want: TaskKey{Source: SourceTypeDevOps, ID: "101"}},
		{in: "outlook:AAMk:x=", want: TaskKey{Source: SourceTypeOutlook, ID: "AAMk:x="}},
		{in: "gmail:", wantErr: true},
		{in: "m1", wantErr: true},
		{in: "jira:X-1", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseTaskKey(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTaskKey(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseTaskKey(%q) = %+v, %v; want %+v", tt.in, got, err, tt.want)
		}
		if err == nil && got.String() != tt.want.String() {
			t.Errorf("round trip mismatch %q", got.String())
		}
	}
}

func TestSnoozedRecordActiveAt(t *testing.T) {
	wake := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	rec := SnoozedRecord{Source: SourceTypeGmail, ID: "m1", WakeAt: wake}

	if !rec.ActiveAt(wake.Add(-time.Second)) {
		t.Fatalf("expected active before wake time")
	}
	if rec.ActiveAt(wake) {
		t.Fatalf("expected inactive at wake time")
	}
}

func TestLoadConfigDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.FetchTimeout() != 30*time.Second || cfg.RefreshInterval() != 2*time.Minute {
		t.Fatalf("unexpected timing defaults %+v", cfg)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Snooze.MorningHour != 9 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Outlook.Top != 100 || cfg.Gmail.Query != "is:starred OR is:important" {
		t.Fatalf("unexpected source defaults %+v", cfg)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
log_level: debug
fetch_timeout_sec: 5
store:
  driver: postgres
  dsn: postgres://localhost/worklist
devops:
  enabled: true
  organization: contoso
  project: web
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("WORKLIST_DEVOPS_PROJECT", "api")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.FetchTimeout() != 5*time.Second {
		t.Fatalf("unexpected values %+v", cfg)
	}
	if cfg.Store.Driver != "postgres" || !cfg.DevOps.Enabled || cfg.DevOps.Organization != "contoso" {
		t.Fatalf("unexpected nested values %+v", cfg)
	}
	if cfg.DevOps.Project != "api" {
		t.Fatalf("expected env override, got %q", cfg.DevOps.Project)
	}
	if cfg.DevOps.ClosedState != "Closed" {
		t.Fatalf("expected default closed state, got %q", cfg.DevOps.ClosedState)
	}
}

func TestLoadConfigRejectsBadMorningHour(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("snooze:\n  morning_hour: 25\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLocationFallsBackToLocal(t *testing.T) {
	cfg := AppConfig{Timezone: "Not/AZone"}
	if cfg.Location() != time.Local {
		t.Fatalf("expected local fallback")
	}
	cfg.Timezone = "UTC"
	if cfg.Location().String() != "UTC" {
		t.Fatalf("expected UTC, got %v", cfg.Location())
	}
}
