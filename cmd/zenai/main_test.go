package main

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"zenai/internal/config"
)

func TestSplitTools(t *testing.T) {
	got := splitTools(" dev.echo, ,main.files ")
	want := []string{"dev.echo", "main.files"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitTools() = %v, want %v", got, want)
	}
	if got := splitTools(""); got != nil {
		t.Errorf("empty flag should give nil, got %v", got)
	}
}

func TestNewLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "zenai.log")
	l, closer, err := newLogger(config.GeneralConfig{LogLevel: "debug", LogFile: path})
	if err != nil {
		t.Fatal(err)
	}
	if !l.Enabled(t.Context(), slog.LevelDebug) {
		t.Error("debug level should be enabled")
	}
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestConfigCommands(t *testing.T) {
	configPath = filepath.Join(t.TempDir(), "config.yaml")
	t.Cleanup(func() { configPath = "" })

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		cmd := configCmd()
		cmd.SetOut(&out)
		cmd.SetArgs(args)
		if err := cmd.Execute(); err != nil {
			t.Fatalf("config %v: %v", args, err)
		}
		return out.String()
	}

	run("set", "general.maxTurns", "7")
	if got := strings.TrimSpace(run("get", "general.maxTurns")); got != "7" {
		t.Errorf("get general.maxTurns = %q, want 7", got)
	}
	if !strings.Contains(run("list"), "model.provider = gemini") {
		t.Error("list should include model.provider")
	}
	if got := strings.TrimSpace(run("path")); got != configPath {
		t.Errorf("path = %q", got)
	}
}
