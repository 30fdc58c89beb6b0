package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

func toMap(cfg *Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetByPath retrieves a config value by dot-notation path (e.g. "general.workspace").
func GetByPath(cfg *Config, path string) (any, error) {
	m, err := toMap(cfg)
	if err != nil {
		return nil, err
	}
	var current any = m
	for _, key := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]any:
			val, ok := v[key]
			if !ok {
				return nil, fmt.Errorf("key not found: %s", path)
			}
			current = val
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("invalid list index: %s", key)
			}
			current = v[idx]
		default:
			return nil, fmt.Errorf("cannot traverse into %T at %s", current, key)
		}
	}
	return current, nil
}

// SetByPath sets a config value by dot-notation path. Only existing keys
// can be set; the result is validated.
func SetByPath(cfg *Config, path string, value any) error {
	m, err := toMap(cfg)
	if err != nil {
		return err
	}
	parts := strings.Split(path, ".")
	parent := m
	for _, key := range parts[:len(parts)-1] {
		child, ok := parent[key].(map[string]any)
		if !ok {
			return fmt.Errorf("key not found: %s", path)
		}
		parent = child
	}
	last := parts[len(parts)-1]
	existing, ok := parent[last]
	if !ok && !omittable(path) {
		return fmt.Errorf("key not found: %s", path)
	}
	if _, isList := existing.([]any); isList {
		parent[last] = parseList(value)
	} else {
		parent[last] = parseValue(value)
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	updated := Defaults()
	if err := yaml.Unmarshal(data, updated); err != nil {
		return fmt.Errorf("invalid value for %s: %w", path, err)
	}
	if err := Validate(updated); err != nil {
		return err
	}
	*cfg = *updated
	return nil
}

// omittable lists keys dropped from YAML output while empty.
func omittable(path string) bool {
	switch path {
	case "general.logFile", "model.apiKey", "model.apiBase", "model.instructions",
		"tools.browser.profileDir", "channels.telegram.token":
		return true
	}
	return false
}

// parseValue converts string values to bool or number where they look like one.
func parseValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func parseList(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Sanitize returns a copy of the config with secrets masked.
func Sanitize(cfg *Config) *Config {
	c := *cfg
	c.Channels.Telegram.AllowFrom = append(FlexStringList(nil), cfg.Channels.Telegram.AllowFrom...)
	c.Model.APIKey = maskString(c.Model.APIKey)
	c.Channels.Telegram.Token = maskString(c.Channels.Telegram.Token)
	return &c
}

// maskString shows the first and last 4 chars and masks the rest.
func maskString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// ListPaths returns all settable config paths with their current values.
func ListPaths(cfg *Config) map[string]any {
	m, err := toMap(cfg)
	if err != nil {
		return nil
	}
	result := make(map[string]any)
	flattenMap("", m, result)
	return result
}

func flattenMap(prefix string, m map[string]any, result map[string]any) {
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			flattenMap(path, child, result)
			continue
		}
		result[path] = v
	}
}
