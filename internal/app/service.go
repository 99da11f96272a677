package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"verkeeper/internal/audit"
	"verkeeper/internal/config"
	"verkeeper/internal/doctor"
	"verkeeper/internal/logging"
	"verkeeper/internal/prompt"
	"verkeeper/internal/registry"
	"verkeeper/internal/source"
	storepkg "verkeeper/internal/store"
)

type Options struct {
	ConfigPath string
	// VersionsPath overrides storage.root/versions_file from the config.
	VersionsPath string
	HTTPClient   *http.Client
	In           io.Reader
	Out          io.Writer
	LogWriter    io.Writer
	// Register adds resolver kinds before the registry is built.
	Register map[string]source.Resolver
}

// Service is the per-process context: one config, one source manager and
// one registry shared by every command.
type Service struct {
	ConfigPath   string
	Config       config.Config
	StateRoot    string
	VersionsPath string

	Sources  *source.Manager
	Registry *registry.Registry
	Doctor   *doctor.Service
	Audit    *audit.Logger
	Prompter prompt.Prompter
	Log      zerolog.Logger
}

func New(opts Options) (*Service, error) {
	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	cfg, err := config.Ensure(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Logging, opts.LogWriter)
	if err != nil {
		return nil, err
	}

	stateRoot, err := config.ResolveStorageRoot(cfg)
	if err != nil {
		return nil, err
	}
	versionsPath := opts.VersionsPath
	if versionsPath == "" {
		versionsPath, err = config.ResolveVersionsPath(cfg)
		if err != nil {
			return nil, err
		}
	}

	srcOpts := source.OptionsFromConfig(cfg)
	srcOpts.HTTPClient = opts.HTTPClient
	srcOpts.Logger = &log
	sources := source.NewManager(srcOpts)
	for kind, r := range opts.Register {
		if err := sources.Register(kind, r); err != nil {
			return nil, err
		}
	}

	in, out := opts.In, opts.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	prompter := prompt.NewTerminal(in, out)
	logger := audit.New(storepkg.AuditPath(stateRoot))
	reg, err := registry.New(registry.Options{
		Path:     versionsPath,
		Sources:  sources,
		Prompter: prompter,
		Audit:    logger,
		Logger:   &log,
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Str("config", configPath).Str("versions", versionsPath).Msg("service ready")
	return &Service{
		ConfigPath:   configPath,
		Config:       cfg,
		StateRoot:    stateRoot,
		VersionsPath: versionsPath,
		Sources:      sources,
		Registry:     reg,
		Doctor:       &doctor.Service{ConfigPath: configPath, VersionsPath: versionsPath, Sources: sources},
		Audit:        logger,
		Prompter:     prompter,
		Log:          log,
	}, nil
}

// Add registers name with kind/param. It returns the cached version after
// registration.
func (s *Service) Add(ctx context.Context, name, kind, param string, extra map[string]any) (string, error) {
	if err := s.Registry.Register(ctx, name, kind, param, extra); err != nil {
		return "", err
	}
	v, _ := s.Registry.Get(name)
	return v, nil
}

func (s *Service) Get(name string) (string, error) {
	v, ok := s.Registry.Get(name)
	if !ok {
		return "", fmt.Errorf("REG_GET: %s has no cached version", name)
	}
	return v, nil
}

func (s *Service) Update(ctx context.Context, name string) (string, error) {
	if err := s.Registry.Update(ctx, name); err != nil {
		return "", err
	}
	v, _ := s.Registry.Get(name)
	return v, nil
}

func (s *Service) Check(ctx context.Context, interactive bool) (registry.Report, error) {
	return s.Registry.ReconcileAll(ctx, interactive)
}

func (s *Service) List() []registry.Entry {
	return s.Registry.List()
}

func (s *Service) History(n int) ([]audit.Event, error) {
	return s.Audit.Tail(n)
}
