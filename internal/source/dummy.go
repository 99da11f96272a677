package source

import (
	"context"
	"time"
)

// DummyLayout is the format of dummy pseudo-versions.
const DummyLayout = "20060102150405"

// dummyResolver derives a pseudo-version from the local clock. It never
// touches the network and never fails.
type dummyResolver struct {
	now func() time.Time
}

func (d *dummyResolver) Resolve(context.Context, string) (string, error) {
	return d.now().Format(DummyLayout), nil
}
