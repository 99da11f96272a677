package config

// Config is the v1 schema of config.toml.
type Config struct {
	Version   int             `toml:"version"`
	Storage   StorageConfig   `toml:"storage"`
	HTTP      HTTPConfig      `toml:"http"`
	GitHub    GitHubConfig    `toml:"github"`
	ArchLinux ArchLinuxConfig `toml:"archlinux"`
	Logging   LoggingConfig   `toml:"logging"`
}

type StorageConfig struct {
	Root         string `toml:"root"`
	VersionsFile string `toml:"versions_file"`
}

type HTTPConfig struct {
	Timeout   string `toml:"timeout"`
	Retries   int    `toml:"retries"`
	UserAgent string `toml:"user_agent"`
}

type GitHubConfig struct {
	APIBase  string `toml:"api_base"`
	TokenEnv string `toml:"token_env,omitempty"`
}

type ArchLinuxConfig struct {
	SearchURL string `toml:"search_url"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}
