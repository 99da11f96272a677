package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleDoc = `[ripgrep]
github = "BurntSushi/ripgrep"
version = "14.1.0"
version_date = 2024-01-01T00:00:00

[linux]
archlinux = "linux"
pinned = true
notes = ["lts", "kernel"]
version = "6.7.arch1"
version_date = 2024-02-03T04:05:06
`

func TestParseEncodeRoundTripIsByteIdentical(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got := string(doc.Encode()); got != sampleDoc {
		t.Fatalf("round trip mismatch:\n--- got\n%s\n--- want\n%s", got, sampleDoc)
	}
}

func TestParsePreservesRecordAndFieldOrder(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	names := doc.Names()
	if len(names) != 2 || names[0] != "ripgrep" || names[1] != "linux" {
		t.Fatalf("expected insertion order [ripgrep linux], got %v", names)
	}
	rec, ok := doc.Record("linux")
	if !ok {
		t.Fatalf("expected linux record")
	}
	var keys []string
	for _, f := range rec.Fields() {
		keys = append(keys, f.Key)
	}
	if strings.Join(keys, ",") != "archlinux,pinned,notes,version,version_date" {
		t.Fatalf("unexpected field order %v", keys)
	}
}

func TestParseKeepsUnknownFieldsAcrossMutation(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	rec, _ := doc.Record("linux")
	rec.SetCache("6.8.arch1", time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local))
	out := string(doc.Encode())
	for _, want := range []string{"pinned = true", `notes = ["lts", "kernel"]`, `version = "6.8.arch1"`, "version_date = 2024-03-01T12:00:00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if !strings.HasPrefix(out, "[ripgrep]\n") {
		t.Fatalf("expected untouched first record to stay first:\n%s", out)
	}
}

func TestParseRootKeysAndNestedTables(t *testing.T) {
	src := "schema = 2\n\n[tool]\ndummy = \"\"\n\n[tool.meta]\nowner = \"ops\"\n"
	doc, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(doc.Root()) != 1 || doc.Root()[0].Key != "schema" {
		t.Fatalf("expected schema root key, got %+v", doc.Root())
	}
	rec, ok := doc.Record("tool")
	if !ok {
		t.Fatalf("expected tool record")
	}
	meta, ok := rec.Get("meta")
	if !ok {
		t.Fatalf("expected nested meta table to be kept")
	}
	if m, ok := meta.(map[string]any); !ok || m["owner"] != "ops" {
		t.Fatalf("unexpected meta value %#v", meta)
	}
	again, err := Parse(doc.Encode())
	if err != nil {
		t.Fatalf("re-parse failed: %v\n%s", err, doc.Encode())
	}
	rec2, _ := again.Record("tool")
	if _, ok := rec2.Get("meta"); !ok {
		t.Fatalf("nested table lost after re-encode:\n%s", doc.Encode())
	}
}

func TestEncodeQuotesSpecialKeysAndStrings(t *testing.T) {
	doc := NewDocument()
	rec := NewRecord("my tool")
	rec.Set("gitea", "https://example.invalid/api/v1/repos/a/b/releases")
	rec.Set("note", "say \"hi\"\n")
	if err := doc.Add(rec); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	out := string(doc.Encode())
	if !strings.Contains(out, `["my tool"]`) {
		t.Fatalf("expected quoted table key, got:\n%s", out)
	}
	parsed, err := Parse([]byte(out))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	back, ok := parsed.Record("my tool")
	if !ok {
		t.Fatalf("expected record after re-parse")
	}
	if v, _ := back.String("note"); v != "say \"hi\"\n" {
		t.Fatalf("string escaping lost, got %q", v)
	}
}

func TestDocumentAddRejectsDuplicates(t *testing.T) {
	doc := NewDocument()
	if err := doc.Add(NewRecord("a")); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	if err := doc.Add(NewRecord("a")); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if err := doc.Add(NewRecord("")); err == nil {
		t.Fatalf("expected empty name error")
	}
}

func TestSetCacheWritesBothFields(t *testing.T) {
	rec := NewRecord("tool")
	if rec.HasCache() {
		t.Fatalf("new record should have no cache")
	}
	at := time.Date(2025, 5, 6, 7, 8, 9, 500, time.Local)
	rec.SetCache("1.0.0", at)
	v, ok := rec.Version()
	if !ok || v != "1.0.0" {
		t.Fatalf("unexpected version %q %v", v, ok)
	}
	d, ok := rec.VersionDate()
	if !ok || !d.Equal(at.Truncate(time.Second)) {
		t.Fatalf("unexpected version date %v %v", d, ok)
	}
}

func TestLoadMissingFileReturnsEmptyDocument(t *testing.T) {
	doc := Load(filepath.Join(t.TempDir(), "versions.toml"))
	if doc.Len() != 0 {
		t.Fatalf("expected empty document, got %d records", doc.Len())
	}
}

func TestLoadCorruptFileReturnsEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "versions.toml")
	if err := os.WriteFile(path, []byte("[broken\nversion = "), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if doc := Load(path); doc.Len() != 0 {
		t.Fatalf("expected empty document for corrupt file")
	}
	_, err := Inspect(path)
	if err == nil || !strings.Contains(err.Error(), "DOC_VERSIONS_PARSE") {
		t.Fatalf("expected DOC_VERSIONS_PARSE from Inspect, got %v", err)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "versions.toml")
	doc, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if err := Save(path, doc); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(blob) != sampleDoc {
		t.Fatalf("saved content differs:\n%s", blob)
	}
	loaded := Load(path)
	if loaded.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", loaded.Len())
	}
}

func TestSaveErrorsWhenParentIsAFile(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	err := Save(filepath.Join(blocker, "versions.toml"), NewDocument())
	if err == nil || !strings.Contains(err.Error(), "DOC_VERSIONS_WRITE") {
		t.Fatalf("expected DOC_VERSIONS_WRITE error, got %v", err)
	}
}

func TestVersionsPath(t *testing.T) {
	if got := VersionsPath("/srv/vk", ""); got != filepath.Join("/srv/vk", "versions.toml") {
		t.Fatalf("unexpected default path %q", got)
	}
	if got := VersionsPath("/srv/vk", "/etc/versions.toml"); got != "/etc/versions.toml" {
		t.Fatalf("absolute file should win, got %q", got)
	}
}

func TestParseTreatsInlineAndDottedTablesAsRecords(t *testing.T) {
	src := "schema = 2\ntool = { fake = \"tool\", version = \"1.0.0\" }\nrg.github = \"BurntSushi/ripgrep\"\nrg.pinned = true\n"
	doc, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(doc.Root()) != 1 || doc.Root()[0].Key != "schema" {
		t.Fatalf("expected only schema as root key, got %+v", doc.Root())
	}
	if names := doc.Names(); strings.Join(names, ",") != "tool,rg" {
		t.Fatalf("expected records [tool rg], got %v", names)
	}
	for name, want := range map[string]string{"tool": "fake,version", "rg": "github,pinned"} {
		rec, _ := doc.Record(name)
		var keys []string
		for _, f := range rec.Fields() {
			keys = append(keys, f.Key)
		}
		if strings.Join(keys, ",") != want {
			t.Fatalf("%s: expected field order %s, got %v", name, want, keys)
		}
	}
	tool, _ := doc.Record("tool")
	if v, _ := tool.Version(); v != "1.0.0" {
		t.Fatalf("expected inline version 1.0.0, got %q", v)
	}

	out := doc.Encode()
	again, err := Parse(out)
	if err != nil {
		t.Fatalf("re-encoded document must parse: %v\n%s", err, out)
	}
	if again.Len() != 2 || !strings.Contains(string(out), "[tool]\n") {
		t.Fatalf("expected tool rewritten as a table:\n%s", out)
	}
}

func TestDocumentAddRejectsRootKeyName(t *testing.T) {
	doc, err := Parse([]byte("schema = 2\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if err := doc.Add(NewRecord("schema")); err == nil {
		t.Fatalf("expected error for name shadowing a root key")
	}
}

func TestEncodeDropsComments(t *testing.T) {
	src := "# pinned tools\n[tool]\nfake = \"a\" # upstream\n"
	doc, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	out := string(doc.Encode())
	if strings.Contains(out, "#") {
		t.Fatalf("comments are not carried through encode, got:\n%s", out)
	}
	if out != "[tool]\nfake = \"a\"\n" {
		t.Fatalf("unexpected encoding:\n%s", out)
	}
}
