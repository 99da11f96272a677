package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"verkeeper/internal/audit"
	"verkeeper/internal/prompt"
	"verkeeper/internal/source"
	"verkeeper/internal/store"
)

type Options struct {
	// Path of the versions document. Required.
	Path     string
	Sources  *source.Manager
	Prompter prompt.Prompter
	Audit    *audit.Logger
	Logger   *zerolog.Logger
	Clock    func() time.Time
}

// Registry is the version registry of one process. Construct it once and
// share the pointer; all mutating operations are serialized.
type Registry struct {
	mu      sync.Mutex
	path    string
	doc     *store.Document
	sources *source.Manager
	prompt  prompt.Prompter
	audit   *audit.Logger
	log     zerolog.Logger
	now     func() time.Time
}

// Entry is a read-only snapshot of one record.
type Entry struct {
	Name        string    `json:"name"`
	Kind        string    `json:"kind,omitempty"`
	Param       string    `json:"param,omitempty"`
	Version     string    `json:"version,omitempty"`
	VersionDate time.Time `json:"versionDate"`
}

// New loads the versions document at opts.Path. A missing or unreadable
// document starts the registry empty.
func New(opts Options) (*Registry, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("REG_CONFIG: versions path is required")
	}
	if opts.Sources == nil {
		return nil, fmt.Errorf("REG_CONFIG: source manager is required")
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Registry{
		path:    opts.Path,
		doc:     store.Load(opts.Path),
		sources: opts.Sources,
		prompt:  opts.Prompter,
		audit:   opts.Audit,
		log:     log.With().Str("component", "registry").Logger(),
		now:     now,
	}, nil
}

func (r *Registry) Path() string { return r.path }

// Register adds name with the given source kind and parameter. Extra fields
// are stored verbatim after the source field. Registering an existing name
// never changes its configuration; it only resolves the record when it has
// no cached version yet.
func (r *Registry) Register(ctx context.Context, name, kind, param string, extra map[string]any) error {
	if name == "" {
		return fmt.Errorf("REG_REGISTER: artifact name is required")
	}
	if !r.sources.Has(kind) {
		return fmt.Errorf("REG_UNSUPPORTED_SOURCE: %w %q for %s", ErrUnsupportedSource, kind, name)
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		if k == store.VersionKey || k == store.VersionDateKey {
			return fmt.Errorf("REG_REGISTER: field %q is managed by the registry", k)
		}
		if r.sources.Has(k) {
			return fmt.Errorf("REG_UNSUPPORTED_SOURCE: %w: %s already uses %q, extra field %q names a second kind", ErrUnsupportedSource, name, kind, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.doc.Record(name); ok {
		if rec.HasCache() {
			return nil
		}
		return r.refresh(ctx, rec, "register")
	}

	rec := store.NewRecord(name)
	rec.Set(kind, param)
	for _, k := range keys {
		rec.Set(k, extra[k])
	}
	if err := r.doc.Add(rec); err != nil {
		return err
	}
	version, err := r.resolveRecord(ctx, rec)
	if err != nil {
		// keep the configuration even though the first lookup failed
		if perr := r.persist(); perr != nil {
			return errors.Join(err, perr)
		}
		r.record("register", name, "error", err, nil)
		return err
	}
	rec.SetCache(version, r.now())
	if err := r.persist(); err != nil {
		r.record("register", name, "error", err, nil)
		return err
	}
	r.record("register", name, "ok", nil, map[string]string{"kind": kind, "version": version})
	return nil
}

// Get returns the cached version of name. It never touches the network.
func (r *Registry) Get(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.doc.Record(name)
	if !ok {
		return "", false
	}
	return rec.Version()
}

// Resolve asks the record's resolver for the current upstream version
// without touching the cache.
func (r *Registry) Resolve(ctx context.Context, name string) (string, error) {
	r.mu.Lock()
	rec, ok := r.doc.Record(name)
	var kind, param string
	var found bool
	if ok {
		kind, param, found = r.activeSource(rec)
	}
	r.mu.Unlock()
	if !ok {
		return "", &ResolutionError{Name: name, Cause: ErrUnknownArtifact}
	}
	if !found {
		return "", &ResolutionError{Name: name, Cause: ErrNoSource}
	}
	return r.dispatch(ctx, name, kind, param)
}

// Update resolves name and overwrites its cached version unconditionally.
func (r *Registry) Update(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.doc.Record(name)
	if !ok {
		err := &ResolutionError{Name: name, Cause: ErrUnknownArtifact}
		r.record("update", name, "error", err, nil)
		return err
	}
	return r.refresh(ctx, rec, "update")
}

// List returns a snapshot of every record in insertion order.
func (r *Registry) List() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, r.doc.Len())
	for _, rec := range r.doc.Records() {
		e := Entry{Name: rec.Name()}
		e.Kind, e.Param, _ = r.activeSource(rec)
		e.Version, _ = rec.Version()
		e.VersionDate, _ = rec.VersionDate()
		out = append(out, e)
	}
	return out
}

// refresh resolves rec, writes the cache and persists. Caller holds mu.
func (r *Registry) refresh(ctx context.Context, rec *store.Record, op string) error {
	version, err := r.resolveRecord(ctx, rec)
	if err != nil {
		r.record(op, rec.Name(), "error", err, nil)
		return err
	}
	previous, _ := rec.Version()
	rec.SetCache(version, r.now())
	if err := r.persist(); err != nil {
		r.record(op, rec.Name(), "error", err, nil)
		return err
	}
	r.record(op, rec.Name(), "ok", nil, map[string]string{"from": previous, "version": version})
	return nil
}

func (r *Registry) resolveRecord(ctx context.Context, rec *store.Record) (string, error) {
	kind, param, ok := r.activeSource(rec)
	if !ok {
		return "", &ResolutionError{Name: rec.Name(), Cause: ErrNoSource}
	}
	return r.dispatch(ctx, rec.Name(), kind, param)
}

func (r *Registry) dispatch(ctx context.Context, name, kind, param string) (string, error) {
	version, err := r.sources.Resolve(ctx, kind, param)
	if err != nil {
		return "", &ResolutionError{Name: name, Cause: err}
	}
	if strings.TrimSpace(version) == "" {
		return "", &ResolutionError{Name: name, Cause: fmt.Errorf("%s resolver returned an empty version", kind)}
	}
	return version, nil
}

// activeSource returns the first field, in document order, whose key is a
// registered kind.
func (r *Registry) activeSource(rec *store.Record) (string, string, bool) {
	for _, f := range rec.Fields() {
		if f.Key == store.VersionKey || f.Key == store.VersionDateKey {
			continue
		}
		if !r.sources.Has(f.Key) {
			continue
		}
		param, ok := f.Value.(string)
		if !ok {
			param = fmt.Sprint(f.Value)
		}
		return f.Key, param, true
	}
	return "", "", false
}

func (r *Registry) persist() error {
	if err := store.Save(r.path, r.doc); err != nil {
		r.log.Error().Err(err).Str("path", r.path).Msg("persist versions")
		return &PersistenceError{Path: r.path, Err: err}
	}
	return nil
}

func (r *Registry) record(op, name, status string, err error, fields map[string]string) {
	ev := audit.Event{Operation: op, Artifact: name, Status: status, Fields: fields}
	if err != nil {
		ev.Code = errorCode(err)
		ev.Message = err.Error()
	}
	if aerr := r.audit.Log(ev); aerr != nil {
		r.log.Warn().Err(aerr).Str("operation", op).Msg("audit log write failed")
	}
}

func errorCode(err error) string {
	var perr *PersistenceError
	if errors.As(err, &perr) {
		return "REG_PERSIST"
	}
	var rerr *ResolutionError
	if errors.As(err, &rerr) {
		return "REG_RESOLVE"
	}
	return "REG_ERROR"
}
