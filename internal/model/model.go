// Package model defines core data structures for invokeaudit.
package model

import "fmt"

// Classification is the bucket a call site lands in after reconciliation
// against the backend registry.
type Classification int

const (
	CurrentOk Classification = iota
	CurrentMissing
	Legacy
	Unknown
)

// Classifications lists every bucket in report order.
var Classifications = []Classification{CurrentOk, CurrentMissing, Legacy, Unknown}

func (c Classification) String() string {
	switch c {
	case CurrentOk:
		return "v2_ok"
	case CurrentMissing:
		return "missing_v2"
	case Legacy:
		return "legacy"
	case Unknown:
		return "unknown"
	}
	return fmt.Sprintf("Classification(%d)", int(c))
}

// CallSite is a single textual occurrence of an invocation with a literal
// operation name.
type CallSite struct {
	Name     string
	Location string // "<relative-path>:<line>", 1-based
}

// Locate formats a call site location.
func Locate(path string, line int) string {
	return fmt.Sprintf("%s:%d", path, line)
}

// NameCount is one row of a frequency table.
type NameCount struct {
	Name  string
	Count int
}

// Summary holds the aggregate counts for one run.
type Summary struct {
	TotalCallSites          int `json:"total_callsites"`
	CurrentOkCallSites      int `json:"v2_ok_callsites"`
	CurrentMissingCallSites int `json:"missing_v2_callsites"`
	LegacyCallSites         int `json:"legacy_callsites"`
	UnknownCallSites        int `json:"unknown_callsites"`
	UniqueTotal             int `json:"unique_total"`
	UniqueCurrentOk         int `json:"unique_v2_ok"`
	UniqueCurrentMissing    int `json:"unique_missing_v2"`
	UniqueLegacy            int `json:"unique_legacy"`
	UniqueUnknown           int `json:"unique_unknown"`
}
