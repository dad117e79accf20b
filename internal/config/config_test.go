package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{envKeyEndpoint, envKeyModel, envKeyProvider, envKeyListen, envKeyOpenAIKey, envKeyOpenAIBaseURL} {
		t.Setenv(k, "")
	}
	return home
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.Model != defaultModel {
		t.Errorf("expected default model %q, got %q", defaultModel, cfg.Model)
	}
	if cfg.Provider != ProviderOllama {
		t.Errorf("expected default provider %q, got %q", ProviderOllama, cfg.Provider)
	}
	if cfg.MaxContentChars != 10000 {
		t.Errorf("expected 10000 max content chars, got %d", cfg.MaxContentChars)
	}
	if !cfg.ShowThinking {
		t.Error("thinking should be shown by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv(envKeyModel, "deepseek-r1:7b")
	t.Setenv(envKeyEndpoint, "http://gpu-box:11434")
	t.Setenv(envKeyProvider, ProviderMock)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.Model != "deepseek-r1:7b" {
		t.Errorf("expected model from env, got: %s", cfg.Model)
	}
	if cfg.Endpoint != "http://gpu-box:11434" {
		t.Errorf("expected endpoint from env, got: %s", cfg.Endpoint)
	}
	if cfg.Provider != ProviderMock {
		t.Errorf("expected provider from env, got: %s", cfg.Provider)
	}
}

func TestLoad_FromFile(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	data := "model: llama3.2\nshow_thinking: false\nmock_delay: 20ms\nlanguage: Japanese\n"
	if err := os.WriteFile(filepath.Join(dir, fileName), []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Model != "llama3.2" {
		t.Errorf("expected model from file, got %q", cfg.Model)
	}
	if cfg.ShowThinking {
		t.Error("expected show_thinking=false from file")
	}
	if cfg.MockDelay != 20*time.Millisecond {
		t.Errorf("expected 20ms mock delay, got %v", cfg.MockDelay)
	}
	if cfg.Language != "Japanese" {
		t.Errorf("expected language from file, got %q", cfg.Language)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Endpoint != defaultEndpoint {
		t.Errorf("expected default endpoint, got %q", cfg.Endpoint)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, dirName)
	os.MkdirAll(dir, 0o700)
	os.WriteFile(filepath.Join(dir, fileName), []byte("model: [unterminated"), 0o600)

	if _, err := Load(); err == nil {
		t.Fatal("expected parse error for malformed config")
	}
}

func TestSet_PersistsAndReloads(t *testing.T) {
	isolate(t)

	if err := SetModel("gemma3"); err != nil {
		t.Fatalf("SetModel failed: %v", err)
	}
	if err := Set("show_thinking", "false"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := Set("max_content_chars", "2500"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Model != "gemma3" || cfg.ShowThinking || cfg.MaxContentChars != 2500 {
		t.Errorf("settings not persisted: %+v", cfg)
	}
}

func TestSet_Rejects(t *testing.T) {
	isolate(t)

	if err := Set("colour", "blue"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("expected ErrUnknownKey, got %v", err)
	}
	if err := Set("max_content_chars", "-3"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
	if err := Set("mock_delay", "soon"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		mut  func(c *Config)
		want error
	}{
		{"ollama ok", func(c *Config) {}, nil},
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }, ErrMissingEndpoint},
		{"bad endpoint", func(c *Config) { c.Endpoint = "localhost:11434" }, ErrInvalidEndpoint},
		{"missing model", func(c *Config) { c.Model = " " }, ErrMissingModel},
		{"openai ok", func(c *Config) { c.Provider = ProviderOpenAI; c.Endpoint = "" }, nil},
		{"openai bad base url", func(c *Config) { c.Provider = ProviderOpenAI; c.OpenAIBaseURL = "ftp://x" }, ErrInvalidEndpoint},
		{"mock ignores endpoint", func(c *Config) { c.Provider = ProviderMock; c.Endpoint = ""; c.Model = "" }, nil},
		{"unknown provider", func(c *Config) { c.Provider = "groq" }, ErrUnknownProvider},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mut(cfg)
			err := cfg.Validate()
			if tc.want == nil {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestEmbedBaseURL(t *testing.T) {
	cfg := Default()
	if cfg.EmbedBaseURL() != cfg.Endpoint {
		t.Errorf("embed endpoint should default to model endpoint")
	}
	cfg.EmbedEndpoint = "http://embedder:11434"
	if cfg.EmbedBaseURL() != "http://embedder:11434" {
		t.Errorf("explicit embed endpoint ignored")
	}
}
