package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_MaxTurns(t *testing.T) {
	for _, n := range []int{0, 201} {
		cfg := Defaults()
		cfg.General.MaxTurns = n
		if err := Validate(cfg); err == nil {
			t.Fatalf("expected error for maxTurns=%d", n)
		}
	}
	for _, n := range []int{1, 200} {
		cfg := Defaults()
		cfg.General.MaxTurns = n
		if err := Validate(cfg); err != nil {
			t.Fatalf("maxTurns=%d should be valid: %v", n, err)
		}
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.Web.Port = -1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative port")
	}

	cfg.Channels.Web.Port = 70000
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for port > 65535")
	}
}

func TestValidate_Provider(t *testing.T) {
	for _, p := range []string{"gemini", "ollama"} {
		cfg := Defaults()
		cfg.Model.Provider = p
		if err := Validate(cfg); err != nil {
			t.Fatalf("provider %q should be valid: %v", p, err)
		}
	}
	cfg := Defaults()
	cfg.Model.Provider = "openai"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestValidate_TelegramNeedsToken(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.Telegram.Enabled = true
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "channels.telegram.token") {
		t.Fatalf("expected telegram token error, got %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.General.LogLevel = "loud"
	cfg.Tools.TimeoutSeconds = 0
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"general.logLevel", "tools.timeoutSeconds"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

// --- Load / Save ---

func TestLoadSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Defaults()
	cfg.General.Workspace = t.TempDir()
	cfg.General.MaxTurns = 7
	cfg.Model.Provider = "ollama"
	cfg.Channels.Telegram.AllowFrom = FlexStringList{"42"}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.General.MaxTurns != 7 || loaded.Model.Provider != "ollama" {
		t.Fatalf("round trip lost values: %+v", loaded.General)
	}
	if len(loaded.Channels.Telegram.AllowFrom) != 1 || loaded.Channels.Telegram.AllowFrom[0] != "42" {
		t.Fatalf("allowFrom = %v", loaded.Channels.Telegram.AllowFrom)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.General.MaxTurns != 20 {
		t.Fatalf("maxTurns = %d, want 20", cfg.General.MaxTurns)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("general: [unclosed"), 0o644)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_ValidatesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("general:\n  maxTurns: 0\n"), 0o644)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "general.maxTurns") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoad_WithEnvVarSubstitution(t *testing.T) {
	t.Setenv("ZENAI_TEST_KEY", "secret-from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("model:\n  apiKey: ${ZENAI_TEST_KEY}\n  name: ${ZENAI_TEST_MODEL:-gemini-2.5-pro}\n"), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.APIKey != "secret-from-env" {
		t.Errorf("apiKey = %q", cfg.Model.APIKey)
	}
	if cfg.Model.Name != "gemini-2.5-pro" {
		t.Errorf("name = %q", cfg.Model.Name)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ZENAI_MODEL_PROVIDER", "ollama")
	t.Setenv("ZENAI_MAX_TURNS", "9")
	t.Setenv("ZENAI_TELEGRAM_ALLOW_FROM", "1,2")
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("model:\n  provider: gemini\n"), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.Provider != "ollama" {
		t.Errorf("provider = %q, want env override", cfg.Model.Provider)
	}
	if cfg.General.MaxTurns != 9 {
		t.Errorf("maxTurns = %d", cfg.General.MaxTurns)
	}
	if len(cfg.Channels.Telegram.AllowFrom) != 2 {
		t.Errorf("allowFrom = %v", cfg.Channels.Telegram.AllowFrom)
	}
}

func TestLoad_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tools.Dir != filepath.Join(home, ".zenai", "tools") {
		t.Errorf("tools.dir = %q", cfg.Tools.Dir)
	}
}

// --- Accessors ---

func TestGetByPath(t *testing.T) {
	cfg := Defaults()
	v, err := GetByPath(cfg, "channels.web.port")
	if err != nil {
		t.Fatalf("GetByPath: %v", err)
	}
	if v != 8080 {
		t.Fatalf("port = %v (%T)", v, v)
	}
	if _, err := GetByPath(cfg, "general.nope"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestSetByPath_Conversions(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "channels.web.enabled", "true"); err != nil {
		t.Fatalf("SetByPath bool: %v", err)
	}
	if err := SetByPath(cfg, "general.maxTurns", "12"); err != nil {
		t.Fatalf("SetByPath int: %v", err)
	}
	if err := SetByPath(cfg, "channels.telegram.allowFrom", "10, 20"); err != nil {
		t.Fatalf("SetByPath list: %v", err)
	}
	if err := SetByPath(cfg, "model.apiKey", "abc"); err != nil {
		t.Fatalf("SetByPath omitted key: %v", err)
	}
	if !cfg.Channels.Web.Enabled || cfg.General.MaxTurns != 12 || cfg.Model.APIKey != "abc" {
		t.Fatalf("values not applied: %+v", cfg)
	}
	if got := cfg.Channels.Telegram.AllowFrom; len(got) != 2 || got[1] != "20" {
		t.Fatalf("allowFrom = %v", got)
	}
}

func TestSetByPath_Rejects(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "general.bogus", "1"); err == nil {
		t.Fatal("expected error for unknown key")
	}
	if err := SetByPath(cfg, "general.maxTurns", "0"); err == nil {
		t.Fatal("expected validation error")
	}
	if cfg.General.MaxTurns != 20 {
		t.Fatalf("failed set modified config: maxTurns = %d", cfg.General.MaxTurns)
	}
}

func TestSanitize_MasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Model.APIKey = "AIzaSyVeryLongSecretKey"
	cfg.Channels.Telegram.Token = "short"

	s := Sanitize(cfg)
	if s.Model.APIKey != "AIza****tKey" {
		t.Errorf("apiKey = %q", s.Model.APIKey)
	}
	if s.Channels.Telegram.Token != "***" {
		t.Errorf("token = %q", s.Channels.Telegram.Token)
	}
	if cfg.Model.APIKey != "AIzaSyVeryLongSecretKey" {
		t.Error("Sanitize modified the original")
	}
}

func TestListPaths_ReturnsAllLeaves(t *testing.T) {
	paths := ListPaths(Defaults())
	for _, want := range []string{"general.workspace", "model.provider", "tools.browser.headless", "audit.dbPath"} {
		if _, ok := paths[want]; !ok {
			t.Errorf("missing path %s", want)
		}
	}
	if _, ok := paths["tools.browser"]; ok {
		t.Error("intermediate node listed as a leaf")
	}
}

// --- FlexStringList ---

func TestFlexStringList_MixedTypes(t *testing.T) {
	var out struct {
		IDs FlexStringList `yaml:"ids"`
	}
	if err := yaml.Unmarshal([]byte("ids: [\"123\", 456, abc]"), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []string{"123", "456", "abc"}
	if len(out.IDs) != len(want) {
		t.Fatalf("got %v", out.IDs)
	}
	for i := range want {
		if out.IDs[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, out.IDs[i], want[i])
		}
	}
}

func TestFlexStringList_Mapping(t *testing.T) {
	var out struct {
		IDs FlexStringList `yaml:"ids"`
	}
	if err := yaml.Unmarshal([]byte("ids: {a: 1}"), &out); err == nil {
		t.Fatal("expected error for mapping")
	}
}

// --- ExpandEnvVars ---

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("ZENAI_A", "alpha")
	t.Setenv("ZENAI_EMPTY", "")
	tests := []struct {
		in, want string
	}{
		{"${ZENAI_A}", "alpha"},
		{"${ZENAI_UNSET:-fallback}", "fallback"},
		{"${ZENAI_A:-fallback}", "alpha"},
		{"${ZENAI_EMPTY:-fallback}", "fallback"},
		{"${ZENAI_UNSET}", "${ZENAI_UNSET}"},
		{"a ${ZENAI_A} b ${ZENAI_A}", "a alpha b alpha"},
		{"$ZENAI_A", "$ZENAI_A"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := ExpandEnvVars(tt.in); got != tt.want {
			t.Errorf("ExpandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
