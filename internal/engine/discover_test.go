package engine

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/codescope-dev/codescope/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discoverRels(t *testing.T, opts Options) []string {
	t.Helper()
	files, err := Discover(context.Background(), opts, logging.NopLogger{})
	require.NoError(t, err)
	rels := make([]string, 0, len(files))
	for _, f := range files {
		rels = append(rels, f.Rel)
	}
	return rels
}

func TestDiscoverExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.rb", "puts 1\n")
	writeFile(t, dir, "notes.md", "# notes\n")
	writeFile(t, dir, "script.js", "let x = 1\n")

	rels := discoverRels(t, Options{
		BaseDir:     dir,
		IncludeExts: []string{"rb", "js"},
	}.withDefaults("test"))

	assert.ElementsMatch(t, []string{"app.rb", "script.js"}, rels)
}

func TestDiscoverExcludeDirSubstring(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/app.js", "let a = 1\n")
	writeFile(t, dir, "node_modules/react/index.js", "module.exports = {}\n")
	writeFile(t, dir, "deep/node_modules/lodash/index.js", "module.exports = {}\n")

	rels := discoverRels(t, Options{
		BaseDir:     dir,
		ExcludeDirs: []string{"node_modules"},
		IncludeExts: []string{"js"},
	}.withDefaults("test"))

	assert.Equal(t, []string{"src/app.js"}, rels)
}

func TestDiscoverExtensionlessAllowList(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Gemfile", "gem 'rails'\n")
	writeFile(t, dir, "Dockerfile", "FROM ruby\n")
	writeFile(t, dir, "LICENSE", "MIT\n")

	rels := discoverRels(t, Options{
		BaseDir:      dir,
		IncludeNames: []string{"Gemfile", "Dockerfile"},
	}.withDefaults("test"))

	assert.ElementsMatch(t, []string{"Gemfile", "Dockerfile"}, rels)
}

func TestDiscoverSizeCeiling(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "small.bin", "tiny")
	writeFile(t, dir, "big.bin", strings.Repeat("x", 2048))
	// Known-text extensions get the larger ceiling.
	writeFile(t, dir, "big.json", strings.Repeat("x", 2048))

	rels := discoverRels(t, Options{
		BaseDir:         dir,
		IncludeExts:     []string{"bin", "json"},
		MaxFileSize:     1024,
		MaxTextFileSize: 4096,
	}.withDefaults("test"))

	assert.ElementsMatch(t, []string{"small.bin", "big.json"}, rels)
}

func TestDiscoverFollowsSymlinksWithoutCycling(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink semantics differ on windows")
	}

	dir := t.TempDir()
	writeFile(t, dir, "shared/util.rb", "def util; end\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "app"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(dir, "shared"), filepath.Join(dir, "app", "linked")))
	// A cycle back to the root must not hang discovery.
	require.NoError(t, os.Symlink(dir, filepath.Join(dir, "shared", "loop")))

	rels := discoverRels(t, Options{
		BaseDir:     dir,
		IncludeExts: []string{"rb"},
	}.withDefaults("test"))

	// The linked tree is visited exactly once, under whichever path was
	// reached first.
	found := 0
	for _, rel := range rels {
		if strings.HasSuffix(rel, "util.rb") {
			found++
		}
	}
	assert.Equal(t, 1, found)
}

func TestDiscoverMissingBaseDir(t *testing.T) {
	_, err := Discover(context.Background(), Options{
		BaseDir:     filepath.Join(t.TempDir(), "nope"),
		IncludeExts: []string{"rb"},
	}.withDefaults("test"), logging.NopLogger{})

	require.Error(t, err)
}

func TestDiscoverCandidateMetadata(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config/app.yml", "key: value\n")

	files, err := Discover(context.Background(), Options{
		BaseDir:     dir,
		IncludeExts: []string{"yml"},
	}.withDefaults("test"), logging.NopLogger{})
	require.NoError(t, err)
	require.Len(t, files, 1)

	f := files[0]
	assert.Equal(t, "config/app.yml", f.Rel)
	assert.Equal(t, "yml", f.Ext)
	assert.Equal(t, int64(len("key: value\n")), f.Size)
	assert.True(t, filepath.IsAbs(f.Path))
	assert.False(t, f.ModTime.IsZero())
}
