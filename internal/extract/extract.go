// Package extract finds invocation call sites in frontend source text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/phobologic/invokeaudit/internal/model"
)

// DefaultPattern matches invoke("name") and invoke('name'), capturing name.
const DefaultPattern = `invoke\(\s*['"]([^'"]+)['"]`

// ErrNoCapture is returned when an invocation pattern has no capture group.
var ErrNoCapture = errors.New("invocation pattern has no capture group")

// ErrUnreadable is returned by Collect in strict mode when a frontend file
// cannot be read.
var ErrUnreadable = errors.New("frontend file unreadable")

// DefaultMaxFileSize is the largest file read by default, in bytes.
const DefaultMaxFileSize = 1_000_000 // 1 MB

var errTooLarge = errors.New("file exceeds size limit")

// Options controls how files are read.
type Options struct {
	// Strict makes an unreadable file fail Collect instead of being skipped.
	Strict bool

	// MaxFileSize skips files larger than this many bytes. Zero means no
	// limit.
	MaxFileSize int64
}

// Extractor scans files for one invocation pattern. The first capture
// group of the pattern is the operation name. An Extractor is safe for
// concurrent use.
type Extractor struct {
	pattern *regexp.Regexp
	opts    Options
	log     *zap.Logger
}

// New compiles pattern into an Extractor. A nil logger discards warnings.
func New(pattern string, opts Options, log *zap.Logger) (*Extractor, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling invocation pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("%w: %s", ErrNoCapture, pattern)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{pattern: re, opts: opts, log: log}, nil
}

// Sites lazily yields every call site in files, in file order then line
// order. Paths in files are slash-separated and relative to root. Each
// iteration re-reads the filesystem. Files that cannot be read are logged
// and skipped, even in strict mode; use Collect to surface them.
func (e *Extractor) Sites(root string, files []string) iter.Seq[model.CallSite] {
	return func(yield func(model.CallSite) bool) {
		for _, rel := range files {
			sites, err := e.file(root, rel)
			if err != nil {
				e.log.Error("unreadable file", zap.String("path", rel), zap.Error(err))
				continue
			}
			for _, cs := range sites {
				if !yield(cs) {
					return
				}
			}
		}
	}
}

// Text returns the call sites found in one file's contents, labelled with
// rel. Lines are 1-based.
func (e *Extractor) Text(rel, text string) []model.CallSite {
	var sites []model.CallSite
	for idx, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		for _, m := range e.pattern.FindAllStringSubmatch(line, -1) {
			sites = append(sites, model.CallSite{
				Name:     m[1],
				Location: model.Locate(rel, idx+1),
			})
		}
	}
	return sites
}

// Collect extracts all call sites using up to workers goroutines. The
// result is identical to collecting Sites: files are reassembled in their
// original order. workers <= 1 runs sequentially. In strict mode the first
// unreadable file, in file order, is returned as an error.
func (e *Extractor) Collect(ctx context.Context, root string, files []string, workers int) ([]model.CallSite, error) {
	if workers <= 1 || len(files) <= 1 {
		var sites []model.CallSite
		for _, rel := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			found, err := e.file(root, rel)
			if err != nil {
				return nil, err
			}
			sites = append(sites, found...)
		}
		return sites, nil
	}

	type result struct {
		index int
		sites []model.CallSite
		err   error
	}

	if workers > len(files) {
		workers = len(files)
	}

	work := make(chan int, len(files))
	results := make(chan result, len(files))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				if ctx.Err() != nil {
					continue
				}
				sites, err := e.file(root, files[idx])
				results <- result{index: idx, sites: sites, err: err}
			}
		}()
	}

	for i := range files {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results in original order
	indexed := make([]result, len(files))
	for r := range results {
		indexed[r.index] = r
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sites []model.CallSite
	for _, r := range indexed {
		if r.err != nil {
			return nil, r.err
		}
		sites = append(sites, r.sites...)
	}
	return sites, nil
}

// file extracts one file. Oversized files are always skipped; unreadable
// files are skipped unless the extractor is strict.
func (e *Extractor) file(root, rel string) ([]model.CallSite, error) {
	text, err := readText(root, rel, e.opts.MaxFileSize)
	switch {
	case errors.Is(err, errTooLarge):
		e.log.Warn("skipping oversized file", zap.String("path", rel), zap.Int64("max_bytes", e.opts.MaxFileSize))
		return nil, nil
	case err != nil && e.opts.Strict:
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadable, rel, err)
	case err != nil:
		e.log.Warn("skipping unreadable file", zap.String("path", rel), zap.Error(err))
		return nil, nil
	}
	return e.Text(rel, text), nil
}

// readText reads a file and replaces invalid UTF-8 sequences with U+FFFD.
func readText(root, rel string, maxSize int64) (string, error) {
	p := filepath.Join(root, filepath.FromSlash(rel))
	if maxSize > 0 {
		fi, err := os.Stat(p)
		if err != nil {
			return "", err
		}
		if fi.Size() > maxSize {
			return "", errTooLarge
		}
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), "\uFFFD"), nil
}
