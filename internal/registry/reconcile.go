package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

type Outcome string

const (
	OutcomeUpToDate Outcome = "up-to-date"
	OutcomeUpdated  Outcome = "updated"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

type Direction string

const (
	DirectionNew       Direction = "new"
	DirectionUnchanged Direction = "unchanged"
	DirectionUpgrade   Direction = "upgrade"
	DirectionDowngrade Direction = "downgrade"
	DirectionChanged   Direction = "changed"
)

// Item is the reconciliation outcome of one record.
type Item struct {
	Name      string    `json:"name"`
	Cached    string    `json:"cached,omitempty"`
	Latest    string    `json:"latest,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	Direction Direction `json:"direction,omitempty"`
	Error     string    `json:"error,omitempty"`

	err error
}

func (i Item) Err() error { return i.err }

type Report struct {
	Interactive bool   `json:"interactive"`
	Declined    bool   `json:"declined,omitempty"`
	Items       []Item `json:"items"`
}

func (r Report) Count(o Outcome) int {
	n := 0
	for _, it := range r.Items {
		if it.Outcome == o {
			n++
		}
	}
	return n
}

// Err joins the per-record failures, or returns nil when every record was
// resolved.
func (r Report) Err() error {
	var errs []error
	for _, it := range r.Items {
		if it.err != nil {
			errs = append(errs, it.err)
		}
	}
	return errors.Join(errs...)
}

const gateQuestion = "Check configured software versions for updates?"

// ReconcileAll re-resolves every record in insertion order.
//
// Non-interactive runs overwrite every cache without asking. Interactive runs
// ask once whether to proceed at all, skip records whose cache already
// matches, and ask per record before overwriting. Accepted changes are
// persisted before the next record is looked at.
//
// A resolution failure is recorded in the report and the loop moves on. A
// persistence failure, a prompt failure or a cancelled context stops the loop
// and is returned alongside the partial report.
func (r *Registry) ReconcileAll(ctx context.Context, interactive bool) (Report, error) {
	report := Report{Interactive: interactive, Items: []Item{}}
	if interactive && r.prompt == nil {
		return report, fmt.Errorf("REG_PROMPT: interactive reconciliation needs a prompter")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if interactive {
		ok, err := r.prompt.Confirm(gateQuestion, true)
		if err != nil {
			return report, fmt.Errorf("REG_PROMPT: %w", err)
		}
		if !ok {
			report.Declined = true
			return report, nil
		}
	}

	for _, rec := range r.doc.Records() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		item, err := r.reconcileOne(ctx, rec.Name(), interactive)
		report.Items = append(report.Items, item)
		if err != nil {
			return report, err
		}
	}
	r.log.Info().
		Int("updated", report.Count(OutcomeUpdated)).
		Int("skipped", report.Count(OutcomeSkipped)).
		Int("failed", report.Count(OutcomeFailed)).
		Int("upToDate", report.Count(OutcomeUpToDate)).
		Msg("reconcile finished")
	return report, nil
}

// reconcileOne handles a single record. Caller holds mu.
func (r *Registry) reconcileOne(ctx context.Context, name string, interactive bool) (Item, error) {
	rec, _ := r.doc.Record(name)
	cached, hasCache := rec.Version()
	item := Item{Name: name, Cached: cached}

	latest, err := r.resolveRecord(ctx, rec)
	if err != nil {
		item.Outcome = OutcomeFailed
		item.Error = err.Error()
		item.err = err
		if interactive {
			r.prompt.Notify(fmt.Sprintf("! %s could not be checked: %v", name, err))
		}
		r.record("reconcile", name, "error", err, nil)
		return item, nil
	}
	item.Latest = latest
	item.Direction = compareVersions(cached, hasCache, latest)

	if interactive {
		if hasCache && latest == cached {
			item.Outcome = OutcomeUpToDate
			r.prompt.Notify(fmt.Sprintf("✓ %s is up to date (%s)", name, cached))
			return item, nil
		}
		ok, err := r.prompt.Confirm(fmt.Sprintf("Update %s: %s → %s?", name, displayVersion(cached, hasCache), latest), true)
		if err != nil {
			item.Outcome = OutcomeSkipped
			return item, fmt.Errorf("REG_PROMPT: %w", err)
		}
		if !ok {
			item.Outcome = OutcomeSkipped
			r.record("reconcile", name, "skipped", nil, map[string]string{"from": cached, "to": latest})
			return item, nil
		}
	}

	rec.SetCache(latest, r.now())
	if err := r.persist(); err != nil {
		item.Outcome = OutcomeFailed
		item.Error = err.Error()
		item.err = err
		r.record("reconcile", name, "error", err, nil)
		return item, err
	}
	item.Outcome = OutcomeUpdated
	r.record("reconcile", name, "ok", nil, map[string]string{"from": cached, "version": latest})
	return item, nil
}

func displayVersion(v string, ok bool) string {
	if !ok {
		return "(none)"
	}
	return v
}

// compareVersions classifies a cache change. Semver ordering is used when
// both sides parse as semver, with or without a leading "v".
func compareVersions(cached string, hasCache bool, latest string) Direction {
	if !hasCache {
		return DirectionNew
	}
	if cached == latest {
		return DirectionUnchanged
	}
	a, b := normalizeSemver(cached), normalizeSemver(latest)
	if a == "" || b == "" {
		return DirectionChanged
	}
	switch semver.Compare(a, b) {
	case -1:
		return DirectionUpgrade
	case 1:
		return DirectionDowngrade
	}
	return DirectionChanged
}

func normalizeSemver(v string) string {
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}
