package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

// chdir keeps a stray ./config.* in the working directory out of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Clock != ClockSystem || cfg.Precision != 6 || cfg.Listen != ":8080" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.RetryBackoff != 500*time.Millisecond || cfg.MaxRetries != 5 {
		t.Fatalf("unexpected retry defaults: %+v", cfg)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "amm.yaml")
	data := []byte("journal: /tmp/from-file.jsonl\nlisten: \":9000\"\nlog-level: warn\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("AMM_LISTEN", ":9100")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	if err := flags.Parse([]string{"--log-level=debug"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Journal != "/tmp/from-file.jsonl" {
		t.Fatalf("journal = %q", cfg.Journal)
	}
	if cfg.Listen != ":9100" {
		t.Fatalf("env should override file, listen = %q", cfg.Listen)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("flag should override file, log-level = %q", cfg.LogLevel)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("AMM_CLOCK", "chain")
	if _, err := Load("", nil); err == nil {
		t.Fatalf("chain clock without rpc should fail")
	}

	t.Setenv("AMM_CLOCK", "sundial")
	if _, err := Load("", nil); err == nil {
		t.Fatalf("unknown clock should fail")
	}

	t.Setenv("AMM_CLOCK", "system")
	t.Setenv("AMM_PRECISION", "19")
	if _, err := Load("", nil); err == nil {
		t.Fatalf("precision 19 should fail")
	}
}
