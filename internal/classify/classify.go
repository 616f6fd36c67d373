// Package classify reconciles extracted call sites against a backend
// registry and computes the run's summary and verdict.
package classify

import (
	"iter"
	"strings"

	"github.com/phobologic/invokeaudit/internal/model"
)

// DefaultPrefixes identify current-generation operation names.
var DefaultPrefixes = []string{"v2_", "runtime_"}

// Lookup answers registry membership. *registry.Registry implements it.
type Lookup interface {
	HasCurrent(name string) bool
	HasLegacy(name string) bool
}

// Convention is the current-generation naming convention.
type Convention struct {
	Prefixes []string
}

// IsCurrent reports whether name follows the convention.
func (c Convention) IsCurrent(name string) bool {
	for _, p := range c.Prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Of classifies a single name. The naming convention decides which
// registry set is consulted; it is never both.
func Of(name string, reg Lookup, conv Convention) model.Classification {
	if conv.IsCurrent(name) {
		if reg.HasCurrent(name) {
			return model.CurrentOk
		}
		return model.CurrentMissing
	}
	if reg.HasLegacy(name) {
		return model.Legacy
	}
	return model.Unknown
}

// Result holds the bucketed call sites of one run.
type Result struct {
	buckets [4][]model.CallSite
}

// Classify drains sites and places each one in exactly one bucket. Bucket
// order is first-seen order.
func Classify(sites iter.Seq[model.CallSite], reg Lookup, conv Convention) *Result {
	r := &Result{}
	for cs := range sites {
		c := Of(cs.Name, reg, conv)
		r.buckets[c] = append(r.buckets[c], cs)
	}
	return r
}

// Bucket returns the call sites classified as c.
func (r *Result) Bucket(c model.Classification) []model.CallSite {
	if c < 0 || int(c) >= len(r.buckets) {
		return nil
	}
	return r.buckets[c]
}

// Total returns the number of classified call sites.
func (r *Result) Total() int {
	n := 0
	for _, b := range r.buckets {
		n += len(b)
	}
	return n
}

// Passed reports the verdict: true when no call site reaches a legacy
// operation. Missing and unknown names do not gate.
func (r *Result) Passed() bool {
	return len(r.buckets[model.Legacy]) == 0
}

// Summary computes aggregate counts.
func (r *Result) Summary() model.Summary {
	ok := r.buckets[model.CurrentOk]
	missing := r.buckets[model.CurrentMissing]
	legacy := r.buckets[model.Legacy]
	unknown := r.buckets[model.Unknown]

	return model.Summary{
		TotalCallSites:          r.Total(),
		CurrentOkCallSites:      len(ok),
		CurrentMissingCallSites: len(missing),
		LegacyCallSites:         len(legacy),
		UnknownCallSites:        len(unknown),
		UniqueTotal:             distinct(ok, missing, legacy, unknown),
		UniqueCurrentOk:         distinct(ok),
		UniqueCurrentMissing:    distinct(missing),
		UniqueLegacy:            distinct(legacy),
		UniqueUnknown:           distinct(unknown),
	}
}

func distinct(groups ...[]model.CallSite) int {
	names := make(map[string]struct{})
	for _, g := range groups {
		for _, cs := range g {
			names[cs.Name] = struct{}{}
		}
	}
	return len(names)
}
