package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRequireEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "test_value")
	if got := requireEnv("TEST_VAR"); got != "test_value" {
		t.Errorf("requireEnv() = %v, want test_value", got)
	}

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("requireEnv() should have panicked")
		}
		if !strings.Contains(r.(string), "TEST_VAR_MISSING") {
			t.Errorf("panic message should name the variable, got %v", r)
		}
	}()
	requireEnv("TEST_VAR_MISSING")
}

func TestEnvHelpersFallBack(t *testing.T) {
	tests := []struct {
		name  string
		value string
		check func(t *testing.T)
	}{
		{"duration", "5s", func(t *testing.T) {
			if got := mustDuration("TEST_VALUE", time.Second); got != 5*time.Second {
				t.Errorf("mustDuration() = %v, want 5s", got)
			}
		}},
		{"invalid duration", "soon", func(t *testing.T) {
			if got := mustDuration("TEST_VALUE", time.Second); got != time.Second {
				t.Errorf("mustDuration() = %v, want default", got)
			}
		}},
		{"float", "0.75", func(t *testing.T) {
			if got := mustFloat("TEST_VALUE", 0.6); got != 0.75 {
				t.Errorf("mustFloat() = %v, want 0.75", got)
			}
		}},
		{"invalid float", "high", func(t *testing.T) {
			if got := mustFloat("TEST_VALUE", 0.6); got != 0.6 {
				t.Errorf("mustFloat() = %v, want default", got)
			}
		}},
		{"bool", "false", func(t *testing.T) {
			if got := mustBool("TEST_VALUE", true); got {
				t.Error("mustBool() = true, want false")
			}
		}},
		{"invalid bool", "nope", func(t *testing.T) {
			if got := mustBool("TEST_VALUE", true); !got {
				t.Error("mustBool() = false, want default true")
			}
		}},
		{"int", "42", func(t *testing.T) {
			if got := getenvInt("TEST_VALUE", 3); got != 42 {
				t.Errorf("getenvInt() = %v, want 42", got)
			}
		}},
		{"missing", "", func(t *testing.T) {
			if got := getenv("TEST_VALUE", "def"); got != "def" {
				t.Errorf("getenv() = %v, want def", got)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_VALUE", tt.value)
			tt.check(t)
		})
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(` 10.0.0.0/8, "192.168.1.0/24" ,, '127.0.0.1' `)
	want := []string{"10.0.0.0/8", "192.168.1.0/24", "127.0.0.1"}
	if len(got) != len(want) {
		t.Fatalf("splitAndTrim() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitAndTrim()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if splitAndTrim("") != nil {
		t.Error("splitAndTrim(\"\") should be nil")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GUIDE_MANIFEST_FILE", "/etc/guide/sources.yaml")

	cfg := Load()
	if cfg.ManifestFile != "/etc/guide/sources.yaml" {
		t.Errorf("ManifestFile = %q", cfg.ManifestFile)
	}
	if cfg.CacheTTL != 120*time.Minute {
		t.Errorf("CacheTTL = %v, want 120m", cfg.CacheTTL)
	}
	if cfg.MinSimilarity != 0.6 {
		t.Errorf("MinSimilarity = %v, want 0.6", cfg.MinSimilarity)
	}
	if cfg.DurableBackend != BackendNone {
		t.Errorf("DurableBackend = %q, want none", cfg.DurableBackend)
	}
	if cfg.CountryAttr != "tvg-country" {
		t.Errorf("CountryAttr = %q", cfg.CountryAttr)
	}
}

func TestLoadPanicsOnUnknownBackend(t *testing.T) {
	t.Setenv("GUIDE_MANIFEST_FILE", "/etc/guide/sources.yaml")
	t.Setenv("GUIDE_DURABLE_BACKEND", "etcd")

	defer func() {
		if r := recover(); r == nil {
			t.Error("Load() should panic on an unknown backend")
		}
	}()
	Load()
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{DurableBackend: BackendNone, MinSimilarity: 0.6, CacheTTL: time.Hour}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"sqlite", func(c *Config) { c.DurableBackend = BackendSQLite }, ""},
		{"postgres without dsn", func(c *Config) { c.DurableBackend = BackendPostgres }, "GUIDE_POSTGRES_DSN"},
		{"redis password required", func(c *Config) {
			c.DurableBackend = BackendRedis
			c.RedisPasswordRequired = true
		}, "GUIDE_REDIS_PASSWORD"},
		{"similarity out of range", func(c *Config) { c.MinSimilarity = 1.5 }, "GUIDE_MIN_SIMILARITY"},
		{"zero ttl", func(c *Config) { c.CacheTTL = 0 }, "GUIDE_CACHE_TTL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}

	cfg := base()
	cfg.DurableBackend = "etcd"
	if err := cfg.Validate(); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Validate() error = %v, want ErrUnknownBackend", err)
	}
}

func TestRedacted(t *testing.T) {
	cfg := Config{RedisPassword: "hunter2", PostgresDSN: "postgres://u:p@db/guide"}
	r := cfg.Redacted()
	if r.RedisPassword == "hunter2" || r.PostgresDSN == cfg.PostgresDSN {
		t.Errorf("Redacted() leaked secrets: %+v", r)
	}
	if cfg.RedisPassword != "hunter2" {
		t.Error("Redacted() must not modify the receiver")
	}
}
