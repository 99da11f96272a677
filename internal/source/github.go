package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// githubResolver returns the tag of the latest published release of an
// owner/repo slug.
type githubResolver struct {
	http    *httpGetter
	apiBase string
	token   string
}

type githubRelease struct {
	TagName string `json:"tag_name"`
}

func (g *githubResolver) Resolve(ctx context.Context, slug string) (string, error) {
	owner, repo, err := splitSlug(slug)
	if err != nil {
		return "", err
	}
	endpoint, err := buildURL(g.apiBase, "repos", owner, repo, "releases", "latest")
	if err != nil {
		return "", err
	}
	headers := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if g.token != "" {
		headers["Authorization"] = "Bearer " + g.token
	}
	var rel githubRelease
	status, err := g.http.getJSON(ctx, endpoint, headers, &rel)
	if status == http.StatusNotFound {
		return "", fmt.Errorf("SRC_GITHUB: %w: %s has no published release", ErrNotFound, slug)
	}
	if err != nil {
		return "", fmt.Errorf("SRC_GITHUB: %s: %w", slug, err)
	}
	if rel.TagName == "" {
		return "", fmt.Errorf("SRC_GITHUB: %w: latest release of %s has no tag", ErrMalformed, slug)
	}
	return rel.TagName, nil
}

func splitSlug(slug string) (string, string, error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(slug), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("SRC_GITHUB: invalid repository slug %q, want owner/repo", slug)
	}
	return owner, repo, nil
}
