package config

func Normalize(cfg Config) Config {
	if cfg.Version == 0 {
		cfg.Version = SchemaVersion
	}
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = DefaultRoot
	}
	if cfg.Storage.VersionsFile == "" {
		cfg.Storage.VersionsFile = DefaultVersionsFile
	}
	if cfg.HTTP.Timeout == "" {
		cfg.HTTP.Timeout = DefaultTimeout
	}
	if cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = DefaultUserAgent
	}
	if cfg.GitHub.APIBase == "" {
		cfg.GitHub.APIBase = DefaultGitHubAPI
	}
	if cfg.ArchLinux.SearchURL == "" {
		cfg.ArchLinux.SearchURL = DefaultArchSearch
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	return cfg
}
