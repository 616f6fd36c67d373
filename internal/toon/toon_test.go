package toon

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phobologic/invokeaudit/internal/classify"
	"github.com/phobologic/invokeaudit/internal/model"
	"github.com/phobologic/invokeaudit/internal/registry"
)

func TestEncodeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", `""`},
		{"simple", "play_track", "play_track"},
		{"leading space", " hello", `" hello"`},
		{"trailing space", "hello ", `"hello "`},
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"true keyword", "true", `"true"`},
		{"null keyword", "null", `"null"`},
		{"integer", "42", "42"},
		{"negative integer", "-1", "-1"},
		{"comma", "a,b", `"a,b"`},
		{"location", "src/lib/player.ts:7", `"src/lib/player.ts:7"`},
		{"qualified name", "commands::seek", `"commands::seek"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"dash prefix", "-foo", `"-foo"`},
		{"plus route", "+page", "+page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, encodeValue(tt.in))
		})
	}
}

func TestEncode(t *testing.T) {
	t.Parallel()

	reg := registry.New([]string{"v2_get_track"}, []string{"play_track"})
	sites := []model.CallSite{
		{Name: "v2_get_track", Location: "src/lib/player.ts:3"},
		{Name: "play_track", Location: "src/lib/player.ts:7"},
		{Name: "v2_shuffle", Location: "src/lib/queue.ts:1"},
		{Name: "play_track", Location: "src/lib/queue.ts:9"},
	}
	res := classify.Classify(slices.Values(sites), reg, classify.Convention{Prefixes: classify.DefaultPrefixes})

	lines := strings.Split(Encode(res, 20), "\n")

	assert.Equal(t, "verdict: fail", lines[0])
	assert.Equal(t, "total_callsites: 4", lines[1])
	assert.Equal(t, "unique_unknown: 0", lines[10])
	assert.Equal(t, []string{
		"top_missing_v2[1]{name,count}:",
		"  v2_shuffle,1",
		"top_legacy[1]{name,count}:",
		"  play_track,2",
		"legacy_callsites[2]{name,location}:",
		`  play_track,"src/lib/player.ts:7"`,
		`  play_track,"src/lib/queue.ts:9"`,
	}, lines[11:])
}

func TestEncodeEmpty(t *testing.T) {
	t.Parallel()

	res := classify.Classify(slices.Values([]model.CallSite(nil)), registry.New(nil, nil), classify.Convention{})

	got := Encode(res, 20)
	assert.True(t, strings.HasPrefix(got, "verdict: pass\n"))
	assert.Contains(t, got, "top_missing_v2[0]{name,count}:")
	assert.Contains(t, got, "legacy_callsites[0]{name,location}:")
}
