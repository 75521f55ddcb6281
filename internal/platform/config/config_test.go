package config

import (
	"errors"
	"os"
	"testing"
	"time"

	apperrors "github.com/lueurxax/feedpulse/internal/core/errors"
)

// Test environment variable keys.
const (
	testEnvPostgresDSN = "POSTGRES_DSN"
	testEnvVaultKeys   = "VAULT_KEYS"
	testEnvTGAPIID     = "TG_API_ID"
	testEnvTGAPIHash   = "TG_API_HASH"
)

// Test values.
const (
	testPostgresDSN = "postgres://localhost/test"
	testVaultKeys   = "1:first,2:second"
	testTGAPIID     = "12345"
	testTGAPIHash   = "abcdef123456"
	testErrLoad     = "Load() error = %v"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()

	t.Setenv(testEnvPostgresDSN, testPostgresDSN)
	t.Setenv(testEnvVaultKeys, testVaultKeys)
	t.Setenv(testEnvTGAPIID, testTGAPIID)
	t.Setenv(testEnvTGAPIHash, testTGAPIHash)
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv(testEnvPostgresDSN)
	os.Unsetenv(testEnvVaultKeys)
	os.Unsetenv(testEnvTGAPIID)
	os.Unsetenv(testEnvTGAPIHash)

	_, err := Load()
	if err == nil {
		t.Error("expected error for missing required env vars")
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf(testErrLoad, err)
	}

	if cfg.PostgresDSN != testPostgresDSN {
		t.Errorf("PostgresDSN = %q, want %q", cfg.PostgresDSN, testPostgresDSN)
	}

	if cfg.TGAPIID != 12345 {
		t.Errorf("TGAPIID = %d, want %d", cfg.TGAPIID, 12345)
	}

	if cfg.VaultKeys != testVaultKeys {
		t.Errorf("VaultKeys = %q, want %q", cfg.VaultKeys, testVaultKeys)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf(testErrLoad, err)
	}

	if cfg.AppEnv != "local" {
		t.Errorf("AppEnv = %q, want local", cfg.AppEnv)
	}

	if cfg.TopicInterval != time.Hour {
		t.Errorf("TopicInterval = %v, want 1h", cfg.TopicInterval)
	}

	if cfg.RankingInterval != 10*time.Minute {
		t.Errorf("RankingInterval = %v, want 10m", cfg.RankingInterval)
	}

	if cfg.SimilarityThreshold != 0.3 {
		t.Errorf("SimilarityThreshold = %v, want 0.3", cfg.SimilarityThreshold)
	}

	if cfg.ClusterLookback != 24*time.Hour {
		t.Errorf("ClusterLookback = %v, want 24h", cfg.ClusterLookback)
	}

	if cfg.FloodWaitMaxAttempts != 0 {
		t.Errorf("FloodWaitMaxAttempts = %d, want 0 (unbounded)", cfg.FloodWaitMaxAttempts)
	}

	if cfg.MediaEnabled() {
		t.Error("MediaEnabled() = true without SUPABASE_URL/SUPABASE_KEY")
	}
}

func TestLoadBase_WithoutTelegramCredentials(t *testing.T) {
	t.Setenv(testEnvPostgresDSN, testPostgresDSN)
	t.Setenv(testEnvVaultKeys, testVaultKeys)
	t.Setenv(testEnvTGAPIID, "")
	t.Setenv(testEnvTGAPIHash, "")

	cfg, err := LoadBase()
	if err != nil {
		t.Fatalf("LoadBase() error = %v", err)
	}

	if cfg.VaultActiveVersion != 1 {
		t.Errorf("VaultActiveVersion = %d, want 1", cfg.VaultActiveVersion)
	}
}

func TestLoad_InvalidThreshold(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("SIMILARITY_THRESHOLD", "1.5")

	_, err := Load()
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Load() error = %v, want ErrInvalidInput", err)
	}
}

func TestLoad_ZeroThresholdRejected(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("SIMILARITY_THRESHOLD", "0")

	_, err := Load()
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Load() error = %v, want ErrInvalidInput", err)
	}
}

func TestLoad_InvalidWindows(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("RANKING_WINDOWS", "24h,weekly")

	_, err := Load()
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Load() error = %v, want ErrInvalidInput", err)
	}
}

func TestParseWindows(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string]time.Duration
		order   []string
		wantErr bool
	}{
		{
			name:  "defaults",
			input: "24h,7d",
			want:  map[string]time.Duration{"24h": 24 * time.Hour, "7d": 7 * 24 * time.Hour},
			order: []string{"24h", "7d"},
		},
		{
			name:  "sorted by span and deduplicated",
			input: "7d, 90m ,7d",
			want:  map[string]time.Duration{"90m": 90 * time.Minute, "7d": 7 * 24 * time.Hour},
			order: []string{"90m", "7d"},
		},
		{name: "empty", input: " , ", wantErr: true},
		{name: "zero days", input: "0d", wantErr: true},
		{name: "negative duration", input: "-1h", wantErr: true},
		{name: "garbage", input: "forever", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWindows(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseWindows(%q) expected error", tt.input)
				}

				return
			}

			if err != nil {
				t.Fatalf("ParseWindows(%q) error = %v", tt.input, err)
			}

			if len(got) != len(tt.order) {
				t.Fatalf("ParseWindows(%q) returned %d windows, want %d", tt.input, len(got), len(tt.order))
			}

			for i, w := range got {
				if w.Name != tt.order[i] {
					t.Errorf("window[%d] = %q, want %q", i, w.Name, tt.order[i])
				}

				if w.Span != tt.want[w.Name] {
					t.Errorf("window %q span = %v, want %v", w.Name, w.Span, tt.want[w.Name])
				}
			}
		})
	}
}
