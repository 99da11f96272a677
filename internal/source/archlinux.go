package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// archResolver queries the Arch Linux package search API. The query must
// match exactly one package; zero or several matches are errors.
type archResolver struct {
	http      *httpGetter
	searchURL string
}

type archSearch struct {
	Results *[]archPackage `json:"results"`
}

type archPackage struct {
	Name    string `json:"pkgname"`
	Version string `json:"pkgver"`
	Repo    string `json:"repo"`
}

func (a *archResolver) Resolve(ctx context.Context, pkg string) (string, error) {
	pkg = strings.TrimSpace(pkg)
	if pkg == "" {
		return "", fmt.Errorf("SRC_ARCHLINUX: package name is required")
	}
	u, err := url.Parse(a.searchURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("SRC_ARCHLINUX: invalid search url %q", a.searchURL)
	}
	q := u.Query()
	q.Set("name", pkg)
	u.RawQuery = q.Encode()

	var payload archSearch
	if _, err := a.http.getJSON(ctx, u.String(), map[string]string{"Accept": "application/json"}, &payload); err != nil {
		return "", fmt.Errorf("SRC_ARCHLINUX: %s: %w", pkg, err)
	}
	if payload.Results == nil {
		return "", fmt.Errorf("SRC_ARCHLINUX: %w: search response has no results field", ErrMalformed)
	}
	results := *payload.Results
	switch len(results) {
	case 0:
		return "", fmt.Errorf("SRC_ARCHLINUX: %w: no package named %q", ErrNotFound, pkg)
	case 1:
	default:
		repos := make([]string, 0, len(results))
		for _, r := range results {
			repos = append(repos, r.Repo+"/"+r.Name)
		}
		return "", fmt.Errorf("SRC_ARCHLINUX: %w: %d packages match %q (%s)", ErrAmbiguous, len(results), pkg, strings.Join(repos, ", "))
	}
	if results[0].Version == "" {
		return "", fmt.Errorf("SRC_ARCHLINUX: %w: package %q has no pkgver", ErrMalformed, pkg)
	}
	return results[0].Version, nil
}
