package deps

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope-dev/codescope/internal/engine"
)

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestAnalyzePackageJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "package.json", `{
		"dependencies": {"react": "^17.0.2", "axios": "^0.21.1"},
		"devDependencies": {"jest": "^27.0.0"}
	}`)

	result, err := NewAnalyzer().AnalyzeFile(path)
	require.NoError(t, err)

	require.Len(t, result.JS, 3)
	assert.Equal(t, "js-runtime", result.JS["react"].Kind)
	assert.Equal(t, "^17.0.2", result.JS["react"].Version)
	assert.Equal(t, "js-runtime", result.JS["axios"].Kind)
	assert.Equal(t, "js-development", result.JS["jest"].Kind)
}

func TestAnalyzePackageJSONRuntimeKindWins(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "package.json", `{
		"dependencies": {"typescript": "^4.4.0"},
		"devDependencies": {"typescript": "^4.4.0", "jest": "^27.0.0"}
	}`)

	result, err := NewAnalyzer().AnalyzeFile(path)
	require.NoError(t, err)

	require.Len(t, result.JS, 2)
	assert.Equal(t, "js-runtime", result.JS["typescript"].Kind, "a package in both sections stays runtime")
	assert.Equal(t, "js-development", result.JS["jest"].Kind)
}

func TestAnalyzePackageJSONInvalid(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "package.json", `{not json`)

	_, err := NewAnalyzer().AnalyzeFile(path)
	require.Error(t, err)
}

func TestAnalyzeGemfile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "Gemfile", `source 'https://rubygems.org'

gem 'rails', '~> 6.1.0'
gem 'puma'
gem "sidekiq", "~> 6.2"
`)

	result, err := NewAnalyzer().AnalyzeFile(path)
	require.NoError(t, err)

	require.Len(t, result.Ruby, 3)
	assert.Equal(t, "~> 6.1.0", result.Ruby["rails"].Version)
	assert.Equal(t, "latest", result.Ruby["puma"].Version)
	assert.Equal(t, "~> 6.2", result.Ruby["sidekiq"].Version)
	assert.Equal(t, "ruby", result.Ruby["rails"].Kind)
}

func TestAnalyzeGemspec(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "widget.gemspec", `Gem::Specification.new do |s|
  s.add_dependency 'nokogiri', '~> 1.11'
  s.add_runtime_dependency 'faraday'
  s.add_development_dependency 'rspec', '~> 3.10'
end
`)

	result, err := NewAnalyzer().AnalyzeFile(path)
	require.NoError(t, err)

	require.Len(t, result.Ruby, 3)
	assert.Equal(t, "ruby-runtime", result.Ruby["nokogiri"].Kind)
	assert.Equal(t, "ruby-runtime", result.Ruby["faraday"].Kind)
	assert.Equal(t, "latest", result.Ruby["faraday"].Version)
	assert.Equal(t, "ruby-development", result.Ruby["rspec"].Kind)
}

func TestAnalyzeRequirements(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "requirements.txt", `# web framework
flask==2.0.1
requests>=2.25
numpy
`)

	result, err := NewAnalyzer().AnalyzeFile(path)
	require.NoError(t, err)

	require.Len(t, result.Python, 3)
	assert.Equal(t, "==2.0.1", result.Python["flask"].Version)
	assert.Equal(t, ">=2.25", result.Python["requests"].Version)
	assert.Equal(t, "latest", result.Python["numpy"].Version)
}

func TestAnalyzeCargoTOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "Cargo.toml", `[package]
name = "demo"
version = "0.1.0"

[dependencies]
serde = "1.0"
tokio = { version = "1.17", features = ["full"] }
`)

	result, err := NewAnalyzer().AnalyzeFile(path)
	require.NoError(t, err)

	require.Len(t, result.System, 2)
	assert.Equal(t, "1.0", result.System["serde"].Version)
	assert.Equal(t, "1.17", result.System["tokio"].Version)
	assert.Equal(t, "rust", result.System["serde"].Kind)
}

func TestAnalyzeDockerfile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "Dockerfile", `FROM ruby:3.0
RUN apt-get update && apt-get install -y nodejs postgresql-client
`)

	result, err := NewAnalyzer().AnalyzeFile(path)
	require.NoError(t, err)

	assert.Contains(t, result.System, "nodejs")
	assert.Contains(t, result.System, "postgresql-client")
	assert.NotContains(t, result.System, "-y")
	assert.Equal(t, "system-apt", result.System["nodejs"].Kind)
}

func TestAnalyzeUnknownManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tsconfig.json", `{"compilerOptions": {}}`)

	result, err := NewAnalyzer().AnalyzeFile(path)
	require.NoError(t, err)
	assert.Empty(t, result.JS)
	assert.Empty(t, result.Ruby)
}

func TestMergeUnionsEcosystems(t *testing.T) {
	results := map[string]FileResult{
		"Gemfile": {Ruby: map[string]Dependency{
			"rails": {Name: "rails", Version: "~> 6.1.0", Kind: "ruby"},
		}},
		"package.json": {JS: map[string]Dependency{
			"react": {Name: "react", Version: "^17.0.2", Kind: "js-runtime"},
		}},
	}

	merged := NewAnalyzer().Merge(results)

	assert.Len(t, merged.RubyDependencies, 1)
	assert.Len(t, merged.JSDependencies, 1)
	assert.Equal(t, "Gemfile", merged.RubyDependencies["rails"].SourceFile)
	assert.Equal(t, "package.json", merged.JSDependencies["react"].SourceFile)
	assert.Equal(t, 2, merged.Total())
}

func TestMergeDuplicateTieBreak(t *testing.T) {
	a := map[string]FileResult{
		"a/package.json": {JS: map[string]Dependency{
			"axios": {Name: "axios", Version: "^0.21.1", Kind: "js-runtime"},
		}},
		"b/package.json": {JS: map[string]Dependency{
			"axios": {Name: "axios", Version: "^1.4.0", Kind: "js-runtime"},
		}},
	}

	merged := NewAnalyzer().Merge(a)

	// The lexicographically greatest source file wins regardless of
	// iteration order.
	require.Contains(t, merged.JSDependencies, "axios")
	assert.Equal(t, "b/package.json", merged.JSDependencies["axios"].SourceFile)
	assert.Equal(t, "^1.4.0", merged.JSDependencies["axios"].Version)
}

func TestMergeDependencyGraphHeuristics(t *testing.T) {
	results := map[string]FileResult{
		"Gemfile": {Ruby: map[string]Dependency{
			"rails":         {Name: "rails", Kind: "ruby"},
			"activerecord":  {Name: "activerecord", Kind: "ruby"},
			"actionmailer":  {Name: "actionmailer", Kind: "ruby"},
			"puma":          {Name: "puma", Kind: "ruby"},
		}},
		"package.json": {JS: map[string]Dependency{
			"react":         {Name: "react", Kind: "js-runtime"},
			"react-dom":     {Name: "react-dom", Kind: "js-runtime"},
			"react-router":  {Name: "react-router", Kind: "js-runtime"},
			"axios":         {Name: "axios", Kind: "js-runtime"},
		}},
	}

	graph := NewAnalyzer().Merge(results).DependencyGraph

	assert.Contains(t, graph.Edges, [2]string{"rails", "activerecord"})
	assert.Contains(t, graph.Edges, [2]string{"rails", "actionmailer"})
	assert.Contains(t, graph.Edges, [2]string{"react", "react-dom"})
	assert.Contains(t, graph.Edges, [2]string{"react", "react-router"})
	assert.NotContains(t, graph.Edges, [2]string{"rails", "puma"})
	assert.NotContains(t, graph.Edges, [2]string{"react", "axios"})
	assert.Len(t, graph.Nodes, 8)
	assert.True(t, sortedStrings(graph.Nodes))
}

func sortedStrings(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] > s[i] {
			return false
		}
	}
	return true
}

func TestEndToEndPackageJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{
		"dependencies": {"react": "^17.0.2", "axios": "^0.21.1"},
		"devDependencies": {"jest": "^27.0.0"}
	}`)

	eng := engine.New[FileResult, Result](NewAnalyzer(), DefaultOptions(dir), nil)

	result, err := eng.Analyze(context.Background())
	require.NoError(t, err)

	require.Len(t, result.JSDependencies, 3)
	assert.Equal(t, "js-runtime", result.JSDependencies["react"].Kind)
	assert.Equal(t, "js-runtime", result.JSDependencies["axios"].Kind)
	assert.Equal(t, "js-development", result.JSDependencies["jest"].Kind)
	assert.Equal(t, "package.json", result.JSDependencies["react"].SourceFile)

	// Incremental rerun reproduces the same aggregate from cache.
	again, err := eng.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result, again)

	_, err = os.Stat(filepath.Join(dir, ".deps_cache.json"))
	assert.NoError(t, err, "cache persisted next to the analyzed tree")
}

func TestEndToEndMixedTree(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Gemfile", "gem 'rails', '~> 6.1.0'\ngem 'pg'\n")
	writeFile(t, dir, "frontend/package.json", `{"dependencies": {"vue": "^3.0.0"}}`)
	writeFile(t, dir, "requirements.txt", "flask==2.0.1\n")
	writeFile(t, dir, "node_modules/leftpad/package.json", `{"dependencies": {"noise": "1.0.0"}}`)

	eng := engine.New[FileResult, Result](NewAnalyzer(), DefaultOptions(dir), nil)

	result, err := eng.Analyze(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.RubyDependencies, 2)
	assert.Len(t, result.JSDependencies, 1, "node_modules is excluded")
	assert.Len(t, result.PythonDependencies, 1)
	assert.Equal(t, "frontend/package.json", result.JSDependencies["vue"].SourceFile)
}
