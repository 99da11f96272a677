package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedSource is returned by Register when the kind tag has no
	// resolver, or when the extra fields name a second kind.
	ErrUnsupportedSource = errors.New("unsupported source")
	// ErrUnknownArtifact is the cause of a ResolutionError for a name that
	// is not in the store.
	ErrUnknownArtifact = errors.New("unknown artifact")
	// ErrNoSource is the cause of a ResolutionError for a record without a
	// recognized source field.
	ErrNoSource = errors.New("no recognized source field")
)

// ResolutionError reports a failed resolver call for one artifact.
type ResolutionError struct {
	Name  string
	Cause error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("REG_RESOLVE: %s: %v", e.Name, e.Cause)
}

func (e *ResolutionError) Unwrap() error { return e.Cause }

// PersistenceError reports a failed write of the versions document. The
// in-memory registry already holds the change.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("REG_PERSIST: changes to %s may not have been saved: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
