package report

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	_ "github.com/mattn/go-sqlite3"

	"github.com/phobologic/invokeaudit/internal/classify"
	"github.com/phobologic/invokeaudit/internal/model"
)

// SQLiteFile is the default name of the database export.
const SQLiteFile = "frontend_invoke_audit.db"

const schemaDDL = `
CREATE TABLE callsites (
  seq            INTEGER PRIMARY KEY,
  name           TEXT NOT NULL,
  location       TEXT NOT NULL,
  classification TEXT NOT NULL
);

CREATE INDEX idx_callsites_name ON callsites(name);
CREATE INDEX idx_callsites_classification ON callsites(classification);

CREATE TABLE summary (
  key   TEXT PRIMARY KEY,
  value INTEGER NOT NULL
);
`

// WriteSQLite rebuilds the database at path from res. Any existing file is
// removed first; the export never carries state between runs.
func WriteSQLite(path string, res *classify.Result) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", path, err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := insertCallSites(tx, res); err != nil {
		return err
	}
	if err := insertSummary(tx, res.Summary()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertCallSites(tx *sql.Tx, res *classify.Result) error {
	stmt, err := tx.Prepare(`INSERT INTO callsites (seq, name, location, classification) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare callsites: %w", err)
	}
	defer stmt.Close()

	seq := 0
	for _, c := range model.Classifications {
		for _, cs := range res.Bucket(c) {
			seq++
			if _, err := stmt.Exec(seq, cs.Name, cs.Location, c.String()); err != nil {
				return fmt.Errorf("insert callsite %s: %w", cs.Location, err)
			}
		}
	}
	return nil
}

func insertSummary(tx *sql.Tx, s model.Summary) error {
	// Round-trip through JSON so the keys match the summary file.
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	var counts map[string]int
	if err := json.Unmarshal(data, &counts); err != nil {
		return fmt.Errorf("decoding summary: %w", err)
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, err := tx.Exec(`INSERT INTO summary (key, value) VALUES (?, ?)`, k, counts[k]); err != nil {
			return fmt.Errorf("insert summary %s: %w", k, err)
		}
	}
	return nil
}
