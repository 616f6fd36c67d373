// Package toon implements TOON (Token-Oriented Object Notation) encoding
// of an audit result, a compact form for agents and scripts that read the
// console instead of the report files.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/invokeaudit/internal/classify"
	"github.com/phobologic/invokeaudit/internal/model"
	"github.com/phobologic/invokeaudit/internal/ranking"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts an audit result into TOON format. top limits the
// frequency tables; top <= 0 keeps every name. Legacy call sites are always
// listed in full since they decide the verdict.
func Encode(res *classify.Result, top int) string {
	var parts []string

	verdict := "pass"
	if !res.Passed() {
		verdict = "fail"
	}
	parts = append(parts, fmt.Sprintf("verdict: %s", verdict))

	s := res.Summary()
	for _, kv := range []struct {
		key string
		val int
	}{
		{"total_callsites", s.TotalCallSites},
		{"v2_ok_callsites", s.CurrentOkCallSites},
		{"missing_v2_callsites", s.CurrentMissingCallSites},
		{"legacy_callsites", s.LegacyCallSites},
		{"unknown_callsites", s.UnknownCallSites},
		{"unique_total", s.UniqueTotal},
		{"unique_v2_ok", s.UniqueCurrentOk},
		{"unique_missing_v2", s.UniqueCurrentMissing},
		{"unique_legacy", s.UniqueLegacy},
		{"unique_unknown", s.UniqueUnknown},
	} {
		parts = append(parts, fmt.Sprintf("%s: %d", kv.key, kv.val))
	}

	parts = append(parts, formatTabular("top_missing_v2", []string{"name", "count"},
		countRows(ranking.TopNames(res.Bucket(model.CurrentMissing), top))))
	parts = append(parts, formatTabular("top_legacy", []string{"name", "count"},
		countRows(ranking.TopNames(res.Bucket(model.Legacy), top))))

	var siteRows [][]string
	for _, cs := range res.Bucket(model.Legacy) {
		siteRows = append(siteRows, []string{cs.Name, cs.Location})
	}
	parts = append(parts, formatTabular("legacy_callsites", []string{"name", "location"}, siteRows))

	return strings.Join(parts, "\n")
}

func countRows(rows []model.NameCount) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{r.Name, strconv.Itoa(r.Count)})
	}
	return out
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
