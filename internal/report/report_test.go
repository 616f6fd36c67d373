package report

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/invokeaudit/internal/classify"
	"github.com/phobologic/invokeaudit/internal/model"
	"github.com/phobologic/invokeaudit/internal/registry"
)

func sampleResult() *classify.Result {
	reg := registry.New([]string{"v2_get_track"}, []string{"play_track", "seek"})
	sites := []model.CallSite{
		{Name: "v2_get_track", Location: "src/lib/player.ts:3"},
		{Name: "play_track", Location: "src/lib/player.ts:7"},
		{Name: "v2_shuffle", Location: "src/lib/queue.ts:1"},
		{Name: "play_track", Location: "src/routes/+page.svelte:12"},
		{Name: "seek", Location: "src/routes/+page.svelte:14"},
		{Name: "mystery", Location: "src/routes/+page.svelte:20"},
	}
	return classify.Classify(slices.Values(sites), reg, classify.Convention{Prefixes: classify.DefaultPrefixes})
}

func TestBucketFile(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "frontend_v2_ok_callsites.tsv", BucketFile(model.CurrentOk))
	assert.Equal(t, "frontend_missing_v2_callsites.tsv", BucketFile(model.CurrentMissing))
	assert.Equal(t, "frontend_legacy_callsites.tsv", BucketFile(model.Legacy))
	assert.Equal(t, "frontend_unknown_callsites.tsv", BucketFile(model.Unknown))
}

func TestWrite(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "tmp")
	require.NoError(t, Write(dir, sampleResult()))

	data, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	require.NoError(t, err)

	var summary map[string]int
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, map[string]int{
		"total_callsites":      6,
		"v2_ok_callsites":      1,
		"missing_v2_callsites": 1,
		"legacy_callsites":     3,
		"unknown_callsites":    1,
		"unique_total":         5,
		"unique_v2_ok":         1,
		"unique_missing_v2":    1,
		"unique_legacy":        2,
		"unique_unknown":       1,
	}, summary)

	legacy, err := os.ReadFile(filepath.Join(dir, BucketFile(model.Legacy)))
	require.NoError(t, err)
	assert.Equal(t,
		"play_track\tsrc/lib/player.ts:7\n"+
			"play_track\tsrc/routes/+page.svelte:12\n"+
			"seek\tsrc/routes/+page.svelte:14\n",
		string(legacy))

	unknown, err := os.ReadFile(filepath.Join(dir, BucketFile(model.Unknown)))
	require.NoError(t, err)
	assert.Equal(t, "mystery\tsrc/routes/+page.svelte:20\n", string(unknown))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 5, "no temp files left behind")
}

func TestWriteOverwrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, Write(dir, sampleResult()))

	empty := classify.Classify(slices.Values([]model.CallSite(nil)), registry.New(nil, nil), classify.Convention{})
	require.NoError(t, Write(dir, empty))

	for _, c := range model.Classifications {
		data, err := os.ReadFile(filepath.Join(dir, BucketFile(c)))
		require.NoError(t, err)
		assert.Empty(t, data, c.String())
	}
}

func TestPrint(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, sampleResult(), DefaultTop))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "{\n  \"total_callsites\": 6,\n"), out)
	assert.Contains(t, out, "\n}\n\nTop missing_v2 commands:\n1\tv2_shuffle\n")
	assert.True(t, strings.HasSuffix(out, "\nTop legacy commands:\n2\tplay_track\n1\tseek\n"), out)
}

func TestPrintTopLimit(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, sampleResult(), 1))
	assert.NotContains(t, buf.String(), "\tseek")
}

func TestWriteSQLite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), SQLiteFile)
	require.NoError(t, WriteSQLite(path, sampleResult()))
	// A second run replaces the file rather than appending.
	require.NoError(t, WriteSQLite(path, sampleResult()))

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM callsites`).Scan(&n))
	assert.Equal(t, 6, n)

	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM callsites WHERE classification = 'legacy'`).Scan(&n))
	assert.Equal(t, 3, n)

	var first string
	require.NoError(t, db.QueryRow(`SELECT name FROM callsites ORDER BY seq LIMIT 1`).Scan(&first))
	assert.Equal(t, "v2_get_track", first)

	require.NoError(t, db.QueryRow(`SELECT value FROM summary WHERE key = 'unique_legacy'`).Scan(&n))
	assert.Equal(t, 2, n)
}
