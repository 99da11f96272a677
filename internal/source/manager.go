package source

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"verkeeper/internal/config"
	"verkeeper/internal/store"
)

type Options struct {
	HTTPClient    *http.Client
	Timeout       time.Duration
	Retries       int
	Backoff       time.Duration
	UserAgent     string
	GitHubAPI     string
	GitHubToken   string
	ArchSearchURL string
	Clock         func() time.Time
	Logger        *zerolog.Logger
}

// OptionsFromConfig maps config.toml onto manager options. The GitHub token
// is read from the environment variable named by github.token_env.
func OptionsFromConfig(cfg config.Config) Options {
	opts := Options{
		Timeout:       cfg.Timeout(),
		Retries:       cfg.HTTP.Retries,
		UserAgent:     cfg.HTTP.UserAgent,
		GitHubAPI:     cfg.GitHub.APIBase,
		ArchSearchURL: cfg.ArchLinux.SearchURL,
	}
	if cfg.GitHub.TokenEnv != "" {
		opts.GitHubToken = strings.TrimSpace(os.Getenv(cfg.GitHub.TokenEnv))
	}
	return opts
}

// Manager maps kind tags to resolvers. Built-ins are registered by
// NewManager; callers add their own with Register before first use.
type Manager struct {
	resolvers map[string]Resolver
	timeout   time.Duration
	log       zerolog.Logger
}

func NewManager(opts Options) *Manager {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.GitHubAPI == "" {
		opts.GitHubAPI = config.DefaultGitHubAPI
	}
	if opts.ArchSearchURL == "" {
		opts.ArchSearchURL = config.DefaultArchSearch
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	getter := &httpGetter{
		client:    opts.HTTPClient,
		retries:   opts.Retries,
		backoff:   opts.Backoff,
		userAgent: opts.UserAgent,
	}
	return &Manager{
		resolvers: map[string]Resolver{
			KindGitHub:    &githubResolver{http: getter, apiBase: opts.GitHubAPI, token: opts.GitHubToken},
			KindArchLinux: &archResolver{http: getter, searchURL: opts.ArchSearchURL},
			KindGitea:     &giteaResolver{http: getter},
			KindDummy:     &dummyResolver{now: opts.Clock},
		},
		timeout: opts.Timeout,
		log:     log,
	}
}

// Register adds or replaces the resolver for kind. Cache field names cannot
// be used as kinds since they share the record's key space.
func (m *Manager) Register(kind string, r Resolver) error {
	kind = strings.TrimSpace(kind)
	if kind == "" || r == nil {
		return fmt.Errorf("SRC_PROVIDER: kind and resolver are required")
	}
	if kind == store.VersionKey || kind == store.VersionDateKey {
		return fmt.Errorf("SRC_PROVIDER: %q is reserved", kind)
	}
	if m.resolvers == nil {
		m.resolvers = map[string]Resolver{}
	}
	m.resolvers[kind] = r
	return nil
}

func (m *Manager) Has(kind string) bool {
	_, ok := m.resolvers[kind]
	return ok
}

func (m *Manager) Kinds() []string {
	out := make([]string, 0, len(m.resolvers))
	for k := range m.resolvers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) provider(kind string) (Resolver, error) {
	r, ok := m.resolvers[kind]
	if !ok {
		return nil, fmt.Errorf("SRC_PROVIDER: %w %q", ErrUnknownKind, kind)
	}
	return r, nil
}

// Resolve runs the resolver for kind under the per-call timeout.
func (m *Manager) Resolve(ctx context.Context, kind, param string) (string, error) {
	r, err := m.provider(kind)
	if err != nil {
		return "", err
	}
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	started := time.Now()
	version, err := r.Resolve(ctx, param)
	ev := m.log.Debug()
	if err != nil {
		ev = m.log.Warn().Err(err)
	}
	ev.Str("kind", kind).Str("param", param).Str("version", version).
		Dur("elapsed", time.Since(started)).Msg("resolve")
	if err != nil {
		return "", err
	}
	return version, nil
}
