package store

import (
	"fmt"
	"os"

	"verkeeper/internal/fsutil"
)

// Load reads the versions document at path. A missing, unreadable or
// unparsable file yields an empty document. Use Inspect to see the error.
func Load(path string) *Document {
	doc, err := Inspect(path)
	if err != nil {
		return NewDocument()
	}
	return doc
}

// Inspect is Load without the fallback. A missing file is still not an error.
func Inspect(path string) (*Document, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDocument(), nil
		}
		return nil, fmt.Errorf("DOC_VERSIONS_READ: %w", err)
	}
	return Parse(blob)
}

func Save(path string, doc *Document) error {
	if doc == nil {
		doc = NewDocument()
	}
	if err := fsutil.AtomicWrite(path, doc.Encode(), 0o644); err != nil {
		return fmt.Errorf("DOC_VERSIONS_WRITE: %w", err)
	}
	return nil
}
