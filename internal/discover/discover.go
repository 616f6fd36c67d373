// Package discover finds frontend source files selected by root-relative
// glob patterns.
//
// Patterns use gitignore syntax: "*" stays within a path segment, "**"
// crosses segments, and a leading "!" removes files selected by an earlier
// pattern. Only the static base directory of each positive pattern is
// walked, so a pattern such as "src/lib/**/*.ts" never touches node_modules
// at the repository root.
package discover

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// ErrMissingRoot is returned in strict mode when a pattern's base directory
// does not exist.
var ErrMissingRoot = errors.New("frontend root does not exist")

// Options controls discovery.
type Options struct {
	// Strict turns a missing base directory into an error instead of an
	// empty contribution.
	Strict bool

	// RespectGitignore excludes files matched by <root>/.gitignore.
	RespectGitignore bool
}

// Files returns the files under root selected by globs, as slash-separated
// paths relative to root. The result is sorted and free of duplicates.
func Files(root string, globs []string, opts Options) ([]string, error) {
	if len(globs) == 0 {
		return nil, nil
	}

	matcher := ignore.CompileIgnoreLines(normalize(globs)...)
	var gi *ignore.GitIgnore
	if opts.RespectGitignore {
		gi = loadGitignore(root)
	}

	seen := make(map[string]struct{})
	var results []string

	for _, base := range Bases(globs) {
		dir := filepath.Join(root, filepath.FromSlash(base))
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			if opts.Strict {
				return nil, fmt.Errorf("%w: %s", ErrMissingRoot, dir)
			}
			continue
		}

		err = filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return nil // skip errors
			}

			if d.IsDir() {
				if d.Name() == ".git" {
					return filepath.SkipDir
				}
				return nil
			}

			// Skip symlinks
			if d.Type()&os.ModeSymlink != 0 {
				return nil
			}

			rel, err := filepath.Rel(root, p)
			if err != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if !selected(matcher, rel) {
				return nil
			}
			if gi != nil && gi.MatchesPath(rel) {
				return nil
			}
			if _, dup := seen[rel]; dup {
				return nil
			}
			seen[rel] = struct{}{}
			results = append(results, rel)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(results)
	return results, nil
}

// selected reports whether the file rel is matched by the patterns in its
// own right. Gitignore semantics also match everything below a matching
// directory, so "src/**/*.ts" would otherwise select "src/gen.ts/notes.md".
func selected(matcher *ignore.GitIgnore, rel string) bool {
	if !matcher.MatchesPath(rel) {
		return false
	}
	for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if matcher.MatchesPath(dir) {
			return false
		}
	}
	return true
}

// Bases returns the static directory prefix of every positive pattern,
// slash-separated and relative to the root. Nested bases collapse into
// their ancestor; "." stands for the root itself.
func Bases(globs []string) []string {
	var all []string
	for _, g := range globs {
		g = strings.TrimSpace(g)
		if g == "" || strings.HasPrefix(g, "#") || strings.HasPrefix(g, "!") {
			continue
		}
		all = append(all, staticBase(g))
	}
	sort.Strings(all)

	var bases []string
	for _, b := range all {
		covered := false
		for _, kept := range bases {
			if kept == "." || b == kept || strings.HasPrefix(b, kept+"/") {
				covered = true
				break
			}
		}
		if !covered {
			bases = append(bases, b)
		}
	}
	return bases
}

func staticBase(glob string) string {
	glob = strings.Trim(glob, "/")
	segments := strings.Split(glob, "/")
	if len(segments) == 1 {
		// Unanchored pattern: gitignore matches it at any depth.
		return "."
	}

	var static []string
	for _, seg := range segments {
		if strings.ContainsAny(seg, "*?[") {
			break
		}
		static = append(static, seg)
	}
	if len(static) == len(segments) {
		// A literal file path; walk its directory.
		static = static[:len(static)-1]
	}
	if len(static) == 0 {
		return "."
	}
	return path.Join(static...)
}

// regexMeta lists characters that go-gitignore passes through to its
// generated regexp unescaped. SvelteKit route files ("+page.svelte") make
// "+" common in real patterns.
const regexMeta = `+()|^${}`

// normalize anchors patterns that contain an inner slash to the root, as
// gitignore does, and escapes regexp metacharacters the matcher would
// otherwise interpret. The matcher takes "?" literally, so it is rewritten
// to a class matching one character within a segment.
func normalize(globs []string) []string {
	out := make([]string, 0, len(globs))
	for _, g := range globs {
		g = strings.TrimSpace(g)
		if g == "" || strings.HasPrefix(g, "#") {
			continue
		}
		neg := ""
		if strings.HasPrefix(g, "!") {
			neg, g = "!", g[1:]
		}

		anchor := strings.Contains(strings.TrimSuffix(g, "/"), "/") &&
			!strings.HasPrefix(g, "/") && !strings.HasPrefix(g, "**/")

		var b strings.Builder
		if anchor {
			b.WriteByte('/')
		}
		for _, r := range g {
			switch {
			case r == '?':
				b.WriteString("[^/]")
			case strings.ContainsRune(regexMeta, r):
				b.WriteByte('\\')
				b.WriteRune(r)
			default:
				b.WriteRune(r)
			}
		}
		out = append(out, neg+b.String())
	}
	return out
}

func loadGitignore(root string) *ignore.GitIgnore {
	p := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(p)
	if err != nil {
		return nil
	}
	return gi
}
