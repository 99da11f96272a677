package config

const (
	SchemaVersion = 1

	DefaultRoot         = "~/.verkeeper"
	DefaultVersionsFile = "versions.toml"
	DefaultTimeout      = "20s"
	DefaultRetries      = 3
	DefaultUserAgent    = "verkeeper/1.0"
	DefaultGitHubAPI    = "https://api.github.com/"
	DefaultTokenEnv     = "GITHUB_TOKEN"
	DefaultArchSearch   = "https://archlinux.org/packages/search/json/"
)

// DefaultConfig returns a fully-populated v1 config document.
func DefaultConfig() Config {
	return Config{
		Version: SchemaVersion,
		Storage: StorageConfig{
			Root:         DefaultRoot,
			VersionsFile: DefaultVersionsFile,
		},
		HTTP: HTTPConfig{
			Timeout:   DefaultTimeout,
			Retries:   DefaultRetries,
			UserAgent: DefaultUserAgent,
		},
		GitHub: GitHubConfig{
			APIBase:  DefaultGitHubAPI,
			TokenEnv: DefaultTokenEnv,
		},
		ArchLinux: ArchLinuxConfig{
			SearchURL: DefaultArchSearch,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
