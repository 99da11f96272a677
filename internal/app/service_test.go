package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"verkeeper/internal/config"
	"verkeeper/internal/registry"
	"verkeeper/internal/source"
)

func newTestService(t *testing.T, server *httptest.Server, in string) (*Service, *bytes.Buffer) {
	t.Helper()
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Storage.Root = root
	cfg.Logging.Level = "error"
	if server != nil {
		cfg.GitHub.APIBase = server.URL + "/"
		cfg.ArchLinux.SearchURL = server.URL + "/packages/search/json/"
	}
	cfg.HTTP.Retries = 0
	cfgPath := filepath.Join(root, "config.toml")
	if err := config.Save(cfgPath, cfg); err != nil {
		t.Fatalf("save config failed: %v", err)
	}
	var out bytes.Buffer
	opts := Options{ConfigPath: cfgPath, In: strings.NewReader(in), Out: &out, LogWriter: &bytes.Buffer{}}
	if server != nil {
		opts.HTTPClient = server.Client()
	}
	svc, err := New(opts)
	if err != nil {
		t.Fatalf("new service failed: %v", err)
	}
	return svc, &out
}

func upstream(t *testing.T, tag *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/releases/latest"):
			_ = json.NewEncoder(w).Encode(map[string]string{"tag_name": *tag})
		case r.URL.Path == "/packages/search/json/":
			_ = json.NewEncoder(w).Encode(map[string]any{"results": []map[string]string{{"pkgname": "linux", "pkgver": "6.7"}}})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestServiceEndToEndFlow(t *testing.T) {
	tag := "v1.0.0"
	server := upstream(t, &tag)
	defer server.Close()
	svc, _ := newTestService(t, server, "")
	ctx := context.Background()

	v, err := svc.Add(ctx, "ripgrep", "github", "BurntSushi/ripgrep", nil)
	if err != nil || v != "v1.0.0" {
		t.Fatalf("add github failed: %q %v", v, err)
	}
	if v, err := svc.Add(ctx, "linux", "archlinux", "linux", nil); err != nil || v != "6.7" {
		t.Fatalf("add archlinux failed: %q %v", v, err)
	}

	tag = "v1.1.0"
	report, err := svc.Check(ctx, false)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if report.Count(registry.OutcomeUpdated) != 2 {
		t.Fatalf("expected both records refreshed, got %+v", report)
	}
	if got, _ := svc.Get("ripgrep"); got != "v1.1.0" {
		t.Fatalf("expected v1.1.0 after check, got %q", got)
	}
	if _, err := os.Stat(svc.VersionsPath); err != nil {
		t.Fatalf("versions file should exist: %v", err)
	}

	history, err := svc.History(0)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 audit events (2 register, 2 reconcile), got %d", len(history))
	}
}

func TestServiceInteractiveCheckUsesTerminal(t *testing.T) {
	tag := "v2.0.0"
	server := upstream(t, &tag)
	defer server.Close()
	svc, out := newTestService(t, server, "y\nn\n")
	ctx := context.Background()
	if _, err := svc.Add(ctx, "ripgrep", "github", "BurntSushi/ripgrep", nil); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	tag = "v2.1.0"

	report, err := svc.Check(ctx, true)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if report.Count(registry.OutcomeSkipped) != 1 {
		t.Fatalf("expected declined update, got %+v", report)
	}
	if !strings.Contains(out.String(), "Update ripgrep: v2.0.0 → v2.1.0?") {
		t.Fatalf("expected update prompt, got %q", out.String())
	}
	if got, _ := svc.Get("ripgrep"); got != "v2.0.0" {
		t.Fatalf("declined update must keep v2.0.0, got %q", got)
	}
}

func TestServiceCustomResolverAndOverridePath(t *testing.T) {
	root := t.TempDir()
	t.Setenv("HOME", root)
	cfgPath := filepath.Join(root, "config.toml")
	versions := filepath.Join(root, "elsewhere", "pins.toml")
	svc, err := New(Options{
		ConfigPath:   cfgPath,
		VersionsPath: versions,
		LogWriter:    &bytes.Buffer{},
		Register: map[string]source.Resolver{
			"static": source.ResolverFunc(func(context.Context, string) (string, error) { return "42", nil }),
		},
	})
	if err != nil {
		t.Fatalf("new service failed: %v", err)
	}
	if _, err := os.Stat(cfgPath); err != nil {
		t.Fatalf("config should be created on first run: %v", err)
	}
	if v, err := svc.Add(context.Background(), "answer", "static", "", nil); err != nil || v != "42" {
		t.Fatalf("add failed: %q %v", v, err)
	}
	if svc.VersionsPath != versions {
		t.Fatalf("expected override path, got %q", svc.VersionsPath)
	}
	if _, err := os.Stat(versions); err != nil {
		t.Fatalf("expected versions at override path: %v", err)
	}
	if _, err := svc.Get("unknown"); err == nil {
		t.Fatalf("expected error for unknown artifact")
	}
}
