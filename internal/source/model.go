package source

import (
	"context"
	"errors"
)

// Resolver returns the current upstream version for one source parameter.
type Resolver interface {
	Resolve(ctx context.Context, param string) (string, error)
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(ctx context.Context, param string) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context, param string) (string, error) {
	return f(ctx, param)
}

// Built-in kind tags. The tag doubles as the record field name in
// versions.toml.
const (
	KindGitHub    = "github"
	KindArchLinux = "archlinux"
	KindGitea     = "gitea"
	KindDummy     = "dummy"
)

var (
	ErrUnknownKind = errors.New("unsupported source kind")
	ErrNotFound    = errors.New("no matching version")
	ErrAmbiguous   = errors.New("ambiguous match")
	ErrMalformed   = errors.New("malformed response")
)
