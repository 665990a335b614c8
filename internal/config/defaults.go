package config

// Default returns the baseline configuration applied before any file is read.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: "~/.local/share/murmur",
			LogDir:  "~/.local/share/murmur/logs",
		},
		Inference: Inference{
			BaseURL:        "https://api.murmur.dev/v1",
			Model:          "scribe-1",
			Language:       "en",
			TimeoutSeconds: 30,
		},
		Sync: Sync{
			DrainIntervalSeconds: 30,
			MaxRetries:           3,
			ProbeIntervalSeconds: 15,
		},
		Storage: Storage{
			BudgetBytes:     512 << 20,
			KeepRecentNotes: 20,
			DiagnosticCap:   200,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
