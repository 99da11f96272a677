package source

import (
	"context"
	"fmt"
	"strings"
)

// giteaResolver reads a releases list endpoint (Gitea, Forgejo and anything
// else returning newest-first JSON release objects) and returns the first
// entry's tag.
type giteaResolver struct {
	http *httpGetter
}

func (g *giteaResolver) Resolve(ctx context.Context, releasesURL string) (string, error) {
	releasesURL = strings.TrimSpace(releasesURL)
	if releasesURL == "" {
		return "", fmt.Errorf("SRC_GITEA: releases url is required")
	}
	var releases []githubRelease
	if _, err := g.http.getJSON(ctx, releasesURL, map[string]string{"Accept": "application/json"}, &releases); err != nil {
		return "", fmt.Errorf("SRC_GITEA: %w", err)
	}
	if len(releases) == 0 {
		return "", fmt.Errorf("SRC_GITEA: %w: no releases found at %s", ErrNotFound, releasesURL)
	}
	if releases[0].TagName == "" {
		return "", fmt.Errorf("SRC_GITEA: %w: first release has no tag_name", ErrMalformed)
	}
	return releases[0].TagName, nil
}
