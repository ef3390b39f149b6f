package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTaggerConfig_EmptyProviderDefaultsKeyword(t *testing.T) {
	cfg := TaggerConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty provider should default to keyword: %v", err)
	}
	if cfg.Provider != TaggerKeyword {
		t.Errorf("provider = %q, want %q", cfg.Provider, TaggerKeyword)
	}
}

func TestTaggerConfig_EmbeddingRequiresEndpointAndModel(t *testing.T) {
	cfg := TaggerConfig{Provider: TaggerEmbedding, Endpoint: "http://localhost:11434/v1/embeddings"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("embedding provider without model should fail")
	}

	cfg.Model = "nomic-embed-text"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("embedding provider with endpoint and model should pass: %v", err)
	}
}

func TestTaggerConfig_InvalidProvider(t *testing.T) {
	cfg := TaggerConfig{Provider: "magic"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid provider should fail validation")
	}
}

func TestApplicationConfig_Level(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"error", "ERROR"},
		{"", "INFO"},
	}
	for _, c := range cases {
		cfg := ApplicationConfig{LogLevel: c.in}
		if got := cfg.Level().String(); got != c.want {
			t.Errorf("Level(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestFullConfig_DefaultsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestFullConfig_WatchRootRequired(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Watch.Root = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty watch root should fail validation")
	}
}
