package store

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pelletier/go-toml/v2/unstable"
)

// Parse decodes a versions document. Values come from go-toml; the order of
// top-level keys and of keys inside each artifact table is recovered from the
// expression stream, which plain map decoding loses.
func Parse(blob []byte) (*Document, error) {
	var values map[string]any
	if err := toml.Unmarshal(blob, &values); err != nil {
		return nil, fmt.Errorf("DOC_VERSIONS_PARSE: %w", err)
	}
	lay, err := scanLayout(blob)
	if err != nil {
		return nil, fmt.Errorf("DOC_VERSIONS_PARSE: %w", err)
	}

	doc := NewDocument()
	for _, key := range lay.complete(values) {
		value := values[key]
		// Every top-level table is an artifact, whether it was written as a
		// [header], an inline table or dotted keys.
		table, isMap := value.(map[string]any)
		if !isMap {
			doc.root = append(doc.root, Field{Key: key, Value: value})
			continue
		}
		rec := NewRecord(key)
		for _, fk := range orderedKeys(lay.fields[key], table) {
			rec.fields = append(rec.fields, Field{Key: fk, Value: table[fk]})
		}
		if err := doc.Add(rec); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

type layout struct {
	top    []string
	fields map[string][]string
	seen   map[string]map[string]struct{}
}

func scanLayout(blob []byte) (*layout, error) {
	lay := &layout{
		fields: map[string][]string{},
		seen:   map[string]map[string]struct{}{"": {}},
	}
	p := unstable.Parser{}
	p.Reset(blob)
	current := ""
	inTable := false
	for p.NextExpression() {
		expr := p.Expression()
		switch expr.Kind {
		case unstable.Table, unstable.ArrayTable:
			parts := keyParts(expr.Key())
			if len(parts) == 0 {
				continue
			}
			lay.seeTop(parts[0])
			current = ""
			// [[name]] at top level is an array, not an artifact table.
			if expr.Kind == unstable.Table && len(parts) == 1 {
				current = parts[0]
			}
			if len(parts) > 1 {
				lay.seeField(parts[0], parts[1])
			}
			inTable = true
		case unstable.KeyValue:
			parts := keyParts(expr.Key())
			if len(parts) == 0 {
				continue
			}
			switch {
			case !inTable && len(parts) > 1:
				// tool.github = "..."
				lay.seeTop(parts[0])
				lay.seeField(parts[0], parts[1])
			case !inTable:
				lay.seeTop(parts[0])
				if v := expr.Value(); v != nil && v.Kind == unstable.InlineTable {
					lay.seeInline(parts[0], v)
				}
			case current != "":
				lay.seeField(current, parts[0])
			}
		}
	}
	if err := p.Error(); err != nil {
		return nil, err
	}
	return lay, nil
}

func keyParts(it unstable.Iterator) []string {
	var parts []string
	for it.Next() {
		parts = append(parts, string(it.Node().Data))
	}
	return parts
}

func (l *layout) seeTop(key string) {
	if _, ok := l.seen[""][key]; ok {
		return
	}
	l.seen[""][key] = struct{}{}
	l.top = append(l.top, key)
}

// seeInline records the key order of a top-level inline table.
func (l *layout) seeInline(table string, node *unstable.Node) {
	it := node.Children()
	for it.Next() {
		child := it.Node()
		if child.Kind != unstable.KeyValue {
			continue
		}
		if parts := keyParts(child.Key()); len(parts) > 0 {
			l.seeField(table, parts[0])
		}
	}
}

func (l *layout) seeField(table, key string) {
	set, ok := l.seen[table]
	if !ok {
		set = map[string]struct{}{}
		l.seen[table] = set
	}
	if _, ok := set[key]; ok {
		return
	}
	set[key] = struct{}{}
	l.fields[table] = append(l.fields[table], key)
}

// complete returns the top-level order with any key the scan missed
// appended in sorted order.
func (l *layout) complete(values map[string]any) []string {
	return orderedKeys(l.top, values)
}

func orderedKeys(order []string, values map[string]any) []string {
	out := make([]string, 0, len(values))
	used := map[string]struct{}{}
	for _, k := range order {
		if _, ok := values[k]; !ok {
			continue
		}
		if _, dup := used[k]; dup {
			continue
		}
		used[k] = struct{}{}
		out = append(out, k)
	}
	var rest []string
	for k := range values {
		if _, ok := used[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Encode renders the document. Root passthrough keys come first, then one
// [table] per record separated by a blank line. Nested tables inside a record
// are written inline.
func (d *Document) Encode() []byte {
	var b bytes.Buffer
	for _, f := range d.root {
		writeField(&b, f)
	}
	for i, r := range d.records {
		if i > 0 || len(d.root) > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("[" + encodeKey(r.name) + "]\n")
		for _, f := range r.fields {
			writeField(&b, f)
		}
	}
	return b.Bytes()
}

func writeField(b *bytes.Buffer, f Field) {
	b.WriteString(encodeKey(f.Key))
	b.WriteString(" = ")
	b.WriteString(encodeValue(f.Value))
	b.WriteByte('\n')
}

func encodeKey(k string) string {
	if k == "" {
		return `""`
	}
	for _, r := range k {
		bare := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
		if !bare {
			return quoteString(k)
		}
	}
	return k
}

func encodeValue(v any) string {
	switch x := v.(type) {
	case string:
		return quoteString(x)
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return encodeFloat(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case toml.LocalDateTime:
		return x.String()
	case toml.LocalDate:
		return x.String()
	case toml.LocalTime:
		return x.String()
	case []any:
		items := make([]string, 0, len(x))
		for _, item := range x {
			items = append(items, encodeValue(item))
		}
		return "[" + strings.Join(items, ", ") + "]"
	case map[string]any:
		if len(x) == 0 {
			return "{}"
		}
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]string, 0, len(keys))
		for _, k := range keys {
			items = append(items, encodeKey(k)+" = "+encodeValue(x[k]))
		}
		return "{" + strings.Join(items, ", ") + "}"
	case nil:
		return `""`
	}
	return quoteString(fmt.Sprint(v))
}

func encodeFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\f':
			b.WriteString(`\f`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u%04X`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
