package discover

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var frontendGlobs = []string{
	"src/lib/**/*.ts",
	"src/lib/**/*.svelte",
	"src/routes/**/*.ts",
	"src/routes/**/*.svelte",
}

func TestFilesMatchesGlobs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "src/lib/player.ts", "")
	writeFile(t, dir, "src/lib/stores/queue.ts", "")
	writeFile(t, dir, "src/lib/components/Track.svelte", "")
	writeFile(t, dir, "src/routes/+page.svelte", "")
	writeFile(t, dir, "src/routes/album/+page.ts", "")
	// Not selected by any pattern
	writeFile(t, dir, "src/lib/readme.md", "")
	writeFile(t, dir, "src/app.ts", "")
	writeFile(t, dir, "node_modules/pkg/index.ts", "")

	files, err := Files(dir, frontendGlobs, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"src/lib/components/Track.svelte",
		"src/lib/player.ts",
		"src/lib/stores/queue.ts",
		"src/routes/+page.svelte",
		"src/routes/album/+page.ts",
	}, files)
}

func TestFilesDirectoryNamedLikeFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "src/lib/a.ts", "")
	writeFile(t, dir, "src/lib/gen.ts/notes.md", "")
	writeFile(t, dir, "src/lib/gen.ts/deep/data.json", "")

	files, err := Files(dir, []string{"src/lib/**/*.ts"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/lib/a.ts"}, files)
}

func TestFilesQuestionMark(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "src/q/x.ts", "")
	writeFile(t, dir, "src/qq/y.ts", "")
	writeFile(t, dir, "src/a1.ts", "")
	writeFile(t, dir, "src/a/1.ts", "")

	files, err := Files(dir, []string{"src/?/*.ts", "src/a?.ts"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a/1.ts", "src/a1.ts", "src/q/x.ts"}, files)
}

func TestFilesMissingRootIsEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	files, err := Files(dir, frontendGlobs, Options{})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFilesMissingRootStrict(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "src/lib/player.ts", "")

	_, err := Files(dir, frontendGlobs, Options{Strict: true})
	require.ErrorIs(t, err, ErrMissingRoot)
	assert.Contains(t, err.Error(), filepath.Join(dir, "src", "routes"))
}

func TestFilesNegation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "src/lib/player.ts", "")
	writeFile(t, dir, "src/lib/player.test.ts", "")

	files, err := Files(dir, []string{"src/lib/**/*.ts", "!src/lib/**/*.test.ts"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/lib/player.ts"}, files)
}

func TestFilesOverlappingGlobsDeduplicated(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "src/lib/a.ts", "")
	writeFile(t, dir, "src/lib/sub/b.ts", "")

	files, err := Files(dir, []string{"src/**/*.ts", "src/lib/**/*.ts"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/lib/a.ts", "src/lib/sub/b.ts"}, files)
}

func TestFilesRespectGitignore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "generated/\n")
	writeFile(t, dir, "src/lib/a.ts", "")
	writeFile(t, dir, "src/lib/generated/b.ts", "")

	files, err := Files(dir, []string{"src/lib/**/*.ts"}, Options{})
	require.NoError(t, err)
	assert.Len(t, files, 2)

	files, err = Files(dir, []string{"src/lib/**/*.ts"}, Options{RespectGitignore: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/lib/a.ts"}, files)
}

func TestFilesSymlinksSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "src/lib/real.ts", "")

	err := os.Symlink(filepath.Join(dir, "src", "lib", "real.ts"), filepath.Join(dir, "src", "lib", "link.ts"))
	if err != nil {
		t.Skip("symlinks not supported")
	}

	files, err := Files(dir, []string{"src/lib/**/*.ts"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/lib/real.ts"}, files)
}

func TestFilesNoGlobs(t *testing.T) {
	t.Parallel()

	files, err := Files(t.TempDir(), nil, Options{Strict: true})
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestBases(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		globs []string
		want  []string
	}{
		{"default frontend", frontendGlobs, []string{"src/lib", "src/routes"}},
		{"nested collapse", []string{"src/lib/**/*.ts", "src/**/*.svelte"}, []string{"src"}},
		{"unanchored", []string{"*.ts", "src/lib/**/*.ts"}, []string{"."}},
		{"double star prefix", []string{"**/*.ts"}, []string{"."}},
		{"literal file", []string{"src/app.ts"}, []string{"src"}},
		{"negation ignored", []string{"!src/lib/x.ts", "web/**/*.ts"}, []string{"web"}},
		{"character class", []string{"src/[ab]*/x.ts"}, []string{"src"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Bases(tc.globs))
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		"/src/lib/**/*.ts",
		"*.svelte",
		"!/src/lib/vendor/**",
		"/src/routes/\\+page.svelte",
		"/src/[^/]/*.ts",
		"[^/].ts",
	}, normalize([]string{
		"src/lib/**/*.ts",
		"*.svelte",
		"!src/lib/vendor/**",
		"src/routes/+page.svelte",
		"src/?/*.ts",
		"?.ts",
		"# comment",
		"",
	}))
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
