package doctor

import (
	"errors"
	"fmt"
	"os"

	"verkeeper/internal/config"
	"verkeeper/internal/source"
	"verkeeper/internal/store"
)

type Finding struct {
	Code     string `json:"code"`
	Level    string `json:"level"`
	Artifact string `json:"artifact,omitempty"`
	Message  string `json:"message"`
}

type Report struct {
	Healthy  bool      `json:"healthy"`
	Records  int       `json:"records"`
	Findings []Finding `json:"findings"`
}

// Service checks the files the registry silently tolerates: a corrupt
// versions document loads as empty, so this is the place it gets noticed.
type Service struct {
	ConfigPath   string
	VersionsPath string
	Sources      *source.Manager
}

func (s *Service) Run() Report {
	findings := []Finding{}
	if _, err := os.Stat(s.ConfigPath); err != nil {
		findings = append(findings, Finding{Code: "DOC_CONFIG_MISSING", Level: "error", Message: err.Error()})
	} else if _, err := config.Load(s.ConfigPath); err != nil {
		findings = append(findings, Finding{Code: "DOC_CONFIG_INVALID", Level: "error", Message: err.Error()})
	}

	records := 0
	if _, err := os.Stat(s.VersionsPath); errors.Is(err, os.ErrNotExist) {
		findings = append(findings, Finding{Code: "DOC_VERSIONS_MISSING", Level: "warn", Message: s.VersionsPath + " does not exist yet"})
	} else if doc, err := store.Inspect(s.VersionsPath); err != nil {
		findings = append(findings, Finding{
			Code:    "DOC_VERSIONS_INVALID",
			Level:   "error",
			Message: fmt.Sprintf("%v; the registry treats this file as empty and the next write replaces it", err),
		})
	} else {
		records = doc.Len()
		for _, rec := range doc.Records() {
			findings = append(findings, s.checkRecord(rec)...)
		}
	}

	healthy := true
	for _, f := range findings {
		if f.Level == "error" {
			healthy = false
			break
		}
	}
	return Report{Healthy: healthy, Records: records, Findings: findings}
}

func (s *Service) checkRecord(rec *store.Record) []Finding {
	var out []Finding
	var kinds []string
	for _, f := range rec.Fields() {
		if f.Key == store.VersionKey || f.Key == store.VersionDateKey {
			continue
		}
		if s.Sources != nil && s.Sources.Has(f.Key) {
			kinds = append(kinds, f.Key)
		}
	}
	switch {
	case len(kinds) == 0:
		out = append(out, Finding{Code: "REG_NO_SOURCE", Level: "error", Artifact: rec.Name(), Message: rec.Name() + " has no recognized source field"})
	case len(kinds) > 1:
		out = append(out, Finding{
			Code:     "REG_MULTIPLE_SOURCES",
			Level:    "warn",
			Artifact: rec.Name(),
			Message:  fmt.Sprintf("%s has several source fields %v; %q is used", rec.Name(), kinds, kinds[0]),
		})
	}
	_, hasVersion := rec.Get(store.VersionKey)
	_, hasDate := rec.Get(store.VersionDateKey)
	if hasVersion != hasDate {
		out = append(out, Finding{Code: "REG_PARTIAL_CACHE", Level: "warn", Artifact: rec.Name(), Message: rec.Name() + " has only one of version/version_date"})
	}
	if hasVersion {
		if _, ok := rec.Version(); !ok {
			out = append(out, Finding{Code: "REG_BAD_VERSION", Level: "warn", Artifact: rec.Name(), Message: rec.Name() + " version is not a string"})
		}
	}
	return out
}
