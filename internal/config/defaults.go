package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			Workspace:    "~/.zenai/workspace",
			LogLevel:     "info",
			MaxTurns:     20,
			HistoryLimit: 200,
		},
		Model: ModelConfig{
			Provider:       "gemini",
			TimeoutSeconds: 120,
		},
		Tools: ToolsConfig{
			Dir:            "~/.zenai/tools",
			BackupDir:      "~/.zenai/backups",
			TimeoutSeconds: 30,
			Browser: BrowserConfig{
				Enabled:        false,
				Headless:       true,
				ProfileDir:     "~/.zenai/browser",
				TimeoutSeconds: 30,
			},
		},
		Channels: ChannelsConfig{
			Web: WebConfig{
				Enabled: false,
				Host:    "127.0.0.1",
				Port:    8080,
			},
		},
		Audit: AuditConfig{
			Enabled:       true,
			DBPath:        "~/.zenai/audit.db",
			RetentionDays: 30,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}
