package config

// Build information, set with -ldflags "-X verkeeper/internal/config.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
