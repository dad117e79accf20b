package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/arin/pagesum/internal/config"
)

func TestHasModel(t *testing.T) {
	models := []string{"qwen3:8b", "nomic-embed-text:latest"}
	cases := map[string]bool{
		"qwen3:8b":                true,
		"nomic-embed-text":        true,
		"nomic-embed-text:latest": true,
		"qwen3":                   false,
		"llama3":                  false,
	}
	for model, want := range cases {
		if got := hasModel(models, model); got != want {
			t.Errorf("hasModel(%q) = %v, want %v", model, got, want)
		}
	}
}

func TestMaskKey(t *testing.T) {
	if got := maskKey(""); got != "(not set)" {
		t.Errorf("expected '(not set)', got %q", got)
	}
	if got := maskKey("short"); got != "****" {
		t.Errorf("expected short keys fully masked, got %q", got)
	}
	if got := maskKey("sk-abcdefghijklmnop"); got != "sk-a...mnop" {
		t.Errorf("expected 'sk-a...mnop', got %q", got)
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("\n Title: Gophers\nKey points"); got != "Title: Gophers" {
		t.Errorf("expected first line, got %q", got)
	}
	long := ""
	for i := 0; i < 30; i++ {
		long += "word "
	}
	if got := firstLine(long); len([]rune(got)) != 103 {
		t.Errorf("expected 100 runes plus ellipsis, got %d", len([]rune(got)))
	}
}

func TestSetupLogging(t *testing.T) {
	t.Cleanup(func() {
		logrus.SetLevel(logrus.InfoLevel)
		logrus.SetOutput(os.Stderr)
	})

	cfg := config.Default()
	cfg.LogLevel = "debug"

	if err := setupLogging(cfg, "", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logrus.GetLevel() != logrus.WarnLevel {
		t.Errorf("interactive commands should cap at warn, got %s", logrus.GetLevel())
	}

	if err := setupLogging(cfg, "", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logrus.GetLevel() != logrus.DebugLevel {
		t.Errorf("serve should use the configured level, got %s", logrus.GetLevel())
	}

	if err := setupLogging(cfg, "error", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logrus.GetLevel() != logrus.ErrorLevel {
		t.Errorf("flag should win, got %s", logrus.GetLevel())
	}

	if err := setupLogging(cfg, "loud", false); err == nil {
		t.Error("expected an error for an unknown level")
	}

	cfg.LogFile = filepath.Join(t.TempDir(), "pagesum.log")
	if err := setupLogging(cfg, "", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logrus.GetLevel() != logrus.DebugLevel {
		t.Errorf("file logging keeps the configured level, got %s", logrus.GetLevel())
	}
}
