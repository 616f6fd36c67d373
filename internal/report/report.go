// Package report writes the audit artifacts: a JSON summary, one TSV per
// classification bucket, and the console frequency tables.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/phobologic/invokeaudit/internal/classify"
	"github.com/phobologic/invokeaudit/internal/model"
	"github.com/phobologic/invokeaudit/internal/ranking"
)

// SummaryFile is the name of the JSON summary inside the report directory.
const SummaryFile = "frontend_invoke_summary.json"

// DefaultTop is the number of rows in each console frequency table.
const DefaultTop = 20

// BucketFile returns the TSV file name for a classification.
func BucketFile(c model.Classification) string {
	return fmt.Sprintf("frontend_%s_callsites.tsv", c)
}

// Write creates dir if needed and overwrites the summary and the four
// bucket files.
func Write(dir string, res *classify.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}

	summary, err := SummaryJSON(res.Summary())
	if err != nil {
		return err
	}
	if err := writeFileAtomic(filepath.Join(dir, SummaryFile), summary); err != nil {
		return fmt.Errorf("writing %s: %w", SummaryFile, err)
	}

	for _, c := range model.Classifications {
		name := BucketFile(c)
		if err := writeFileAtomic(filepath.Join(dir, name), TSV(res.Bucket(c))); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}

// SummaryJSON encodes the summary with two-space indentation.
func SummaryJSON(s model.Summary) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding summary: %w", err)
	}
	return data, nil
}

// TSV renders call sites as "name\tlocation" lines.
func TSV(sites []model.CallSite) []byte {
	var b strings.Builder
	for _, cs := range sites {
		b.WriteString(cs.Name)
		b.WriteByte('\t')
		b.WriteString(cs.Location)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// Print writes the summary followed by the top missing and top legacy
// names. top <= 0 prints every name.
func Print(w io.Writer, res *classify.Result, top int) error {
	summary, err := SummaryJSON(res.Summary())
	if err != nil {
		return err
	}

	var b strings.Builder
	b.Write(summary)
	b.WriteByte('\n')
	writeTable(&b, "Top missing_v2 commands:", ranking.TopNames(res.Bucket(model.CurrentMissing), top))
	writeTable(&b, "Top legacy commands:", ranking.TopNames(res.Bucket(model.Legacy), top))

	_, err = io.WriteString(w, b.String())
	return err
}

func writeTable(b *strings.Builder, title string, rows []model.NameCount) {
	fmt.Fprintf(b, "\n%s\n", title)
	for _, r := range rows {
		fmt.Fprintf(b, "%d\t%s\n", r.Count, r.Name)
	}
}
