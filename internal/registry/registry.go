// Package registry builds the set of operation names a backend actually
// registers, split into current-generation and legacy names.
package registry

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
)

// ErrUnreadable wraps any failure to read the backend aggregation file.
var ErrUnreadable = errors.New("registry source unreadable")

// DefaultCurrentPattern captures current-generation names registered under
// the commands_v2 module.
const DefaultCurrentPattern = `commands_v2::(v2_[A-Za-z0-9_]+|runtime_[A-Za-z0-9_]+)`

// DefaultLegacyPatterns lists the superseded command modules, each
// capturing the unqualified operation name.
var DefaultLegacyPatterns = []string{
	`commands::([A-Za-z0-9_]+)`,
	`library::commands::([A-Za-z0-9_]+)`,
	`cast::commands::([A-Za-z0-9_]+)`,
	`cast::dlna::commands::([A-Za-z0-9_]+)`,
	`offline_cache::commands::([A-Za-z0-9_]+)`,
	`offline::commands::([A-Za-z0-9_]+)`,
	`network::commands::([A-Za-z0-9_]+)`,
	`lyrics::commands::([A-Za-z0-9_]+)`,
	`reco_store::commands::([A-Za-z0-9_]+)`,
}

// Rules holds the compiled registration patterns. The first capture group
// of every pattern is the registered name.
type Rules struct {
	Current *regexp.Regexp
	Legacy  []*regexp.Regexp
}

// CompileRules compiles a current pattern and an ordered list of legacy
// patterns. Every pattern must have at least one capture group.
func CompileRules(current string, legacy []string) (Rules, error) {
	var r Rules
	var err error
	if r.Current, err = compile(current); err != nil {
		return Rules{}, err
	}
	for _, p := range legacy {
		re, err := compile(p)
		if err != nil {
			return Rules{}, err
		}
		r.Legacy = append(r.Legacy, re)
	}
	return r, nil
}

func compile(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling registration pattern %q: %w", pattern, err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("registration pattern %q has no capture group", pattern)
	}
	return re, nil
}

// Registry is the immutable pair of registered name sets.
type Registry struct {
	current map[string]struct{}
	legacy  map[string]struct{}
}

// New builds a Registry directly from name lists. Mostly useful in tests.
func New(current, legacy []string) *Registry {
	r := &Registry{
		current: make(map[string]struct{}, len(current)),
		legacy:  make(map[string]struct{}, len(legacy)),
	}
	for _, n := range current {
		r.current[n] = struct{}{}
	}
	for _, n := range legacy {
		r.legacy[n] = struct{}{}
	}
	return r
}

// Parse applies rules to the text of the backend aggregation file. Legacy
// captures from all namespaces are unioned; which namespace registered a
// name is not retained.
func Parse(text string, rules Rules) *Registry {
	r := New(nil, nil)
	if rules.Current != nil {
		for _, m := range rules.Current.FindAllStringSubmatch(text, -1) {
			r.current[m[1]] = struct{}{}
		}
	}
	for _, re := range rules.Legacy {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			r.legacy[m[1]] = struct{}{}
		}
	}
	return r
}

// Load reads the backend aggregation file at path and parses it. A missing
// or unreadable file is an error: an empty registry would silently turn
// every legacy call site into an unknown one.
func Load(path string, rules Rules) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadable, path, err)
	}
	return Parse(string(data), rules), nil
}

// HasCurrent reports whether name is a registered current-generation name.
func (r *Registry) HasCurrent(name string) bool {
	_, ok := r.current[name]
	return ok
}

// HasLegacy reports whether name is registered in any legacy namespace.
func (r *Registry) HasLegacy(name string) bool {
	_, ok := r.legacy[name]
	return ok
}

// CurrentNames returns the current-generation names, sorted.
func (r *Registry) CurrentNames() []string { return sortedKeys(r.current) }

// LegacyNames returns the legacy names, sorted.
func (r *Registry) LegacyNames() []string { return sortedKeys(r.legacy) }

// Len returns the sizes of the current and legacy sets.
func (r *Registry) Len() (current, legacy int) {
	return len(r.current), len(r.legacy)
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
