package store

import (
	"fmt"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Cache fields written by the registry. Every other key in a record is
// either a source field or opaque passthrough.
const (
	VersionKey     = "version"
	VersionDateKey = "version_date"
)

// Field is one key/value pair of a record, kept in document order.
type Field struct {
	Key   string
	Value any
}

// Record is a single artifact table of the versions document.
type Record struct {
	name   string
	fields []Field
}

func NewRecord(name string) *Record {
	return &Record{name: name}
}

func (r *Record) Name() string { return r.name }

// Fields returns a copy of the record's fields in document order.
func (r *Record) Fields() []Field {
	return append([]Field(nil), r.fields...)
}

func (r *Record) Get(key string) (any, bool) {
	for _, f := range r.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

func (r *Record) String(key string) (string, bool) {
	v, ok := r.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Set replaces the value of an existing key in place or appends the key.
func (r *Record) Set(key string, value any) {
	for i := range r.fields {
		if r.fields[i].Key == key {
			r.fields[i].Value = value
			return
		}
	}
	r.fields = append(r.fields, Field{Key: key, Value: value})
}

func (r *Record) Version() (string, bool) {
	return r.String(VersionKey)
}

func (r *Record) VersionDate() (time.Time, bool) {
	v, ok := r.Get(VersionDateKey)
	if !ok {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case toml.LocalDateTime:
		return t.AsTime(time.Local), true
	case toml.LocalDate:
		return t.AsTime(time.Local), true
	case time.Time:
		return t, true
	}
	return time.Time{}, false
}

// HasCache reports whether the record holds a resolved version.
func (r *Record) HasCache() bool {
	_, ok := r.Version()
	return ok
}

// SetCache writes version and version_date together. The date is stored as
// a TOML local date-time truncated to seconds.
func (r *Record) SetCache(version string, at time.Time) {
	r.Set(VersionKey, version)
	r.Set(VersionDateKey, LocalDateTime(at))
}

func LocalDateTime(t time.Time) toml.LocalDateTime {
	return toml.LocalDateTime{
		LocalDate: toml.LocalDate{Year: t.Year(), Month: int(t.Month()), Day: t.Day()},
		LocalTime: toml.LocalTime{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()},
	}
}

// Document is the ordered versions document: root passthrough keys followed
// by one table per artifact, in insertion order.
type Document struct {
	root    []Field
	records []*Record
	index   map[string]*Record
}

func NewDocument() *Document {
	return &Document{index: map[string]*Record{}}
}

func (d *Document) Len() int { return len(d.records) }

func (d *Document) Names() []string {
	out := make([]string, 0, len(d.records))
	for _, r := range d.records {
		out = append(out, r.name)
	}
	return out
}

func (d *Document) Record(name string) (*Record, bool) {
	r, ok := d.index[name]
	return r, ok
}

// Records returns the records in insertion order. The pointers are live.
func (d *Document) Records() []*Record {
	return append([]*Record(nil), d.records...)
}

// Root returns top-level keys that are not artifact tables.
func (d *Document) Root() []Field {
	return append([]Field(nil), d.root...)
}

func (d *Document) Add(r *Record) error {
	if r == nil || r.name == "" {
		return fmt.Errorf("DOC_VERSIONS_SCHEMA: record name is required")
	}
	if _, ok := d.index[r.name]; ok {
		return fmt.Errorf("DOC_VERSIONS_SCHEMA: duplicate record %q", r.name)
	}
	for _, f := range d.root {
		if f.Key == r.name {
			return fmt.Errorf("DOC_VERSIONS_SCHEMA: %q is already a top-level key", r.name)
		}
	}
	d.records = append(d.records, r)
	d.index[r.name] = r
	return nil
}
