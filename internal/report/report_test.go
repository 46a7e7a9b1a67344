package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/codescope-dev/codescope/internal/analyzers/api"
	"github.com/codescope-dev/codescope/internal/analyzers/deps"
	"github.com/codescope-dev/codescope/internal/analyzers/structure"
	"github.com/codescope-dev/codescope/internal/analyzers/templates"
)

func sampleDeps() deps.Result {
	return deps.Result{
		RubyDependencies: map[string]deps.Dependency{
			"rails": {Name: "rails", Version: "~> 6.1.0", Kind: "ruby", SourceFile: "Gemfile"},
		},
		JSDependencies: map[string]deps.Dependency{
			"react": {Name: "react", Version: "^17.0.2", Kind: "js-runtime", SourceFile: "package.json"},
			"axios": {Name: "axios", Version: "^0.21.1", Kind: "js-runtime", SourceFile: "package.json"},
		},
		PythonDependencies: map[string]deps.Dependency{},
		SystemDependencies: map[string]deps.Dependency{},
		DependencyGraph: deps.Graph{
			Nodes: []string{"axios", "rails", "react"},
		},
	}
}

func TestMarkdownDeps(t *testing.T) {
	md := Markdown("deps", sampleDeps())

	assert.True(t, strings.HasPrefix(md, "# Deps Analysis Report"))
	assert.Contains(t, md, "- **Total Dependencies**: 3")
	assert.Contains(t, md, "## Ruby Dependencies")
	assert.Contains(t, md, "| rails | ~> 6.1.0 | ruby | `Gemfile` |")
	assert.NotContains(t, md, "## Python Dependencies", "empty sections are omitted")

	// Rows are sorted by name.
	axiosIdx := strings.Index(md, "| axios |")
	reactIdx := strings.Index(md, "| react |")
	require.Positive(t, axiosIdx)
	assert.Less(t, axiosIdx, reactIdx)
}

func TestMarkdownAPI(t *testing.T) {
	result := api.Result{
		Endpoints: map[string]api.Endpoint{
			"GET:/api/v1/courses": {
				Path: "/api/v1/courses", Method: "GET", Controller: "courses",
				Action: "index", AuthenticationRequired: true,
			},
		},
		Clients: []api.Client{
			{Endpoint: "/api/v1/courses", Method: "GET", ClientType: "axios", SourceFile: "src/app.js"},
		},
		RoutePatterns: map[string][]string{
			"REST API": {"/api/v1/courses"},
		},
		AuthProtectedRoutes: []string{"/api/v1/courses"},
	}

	md := Markdown("api", result)

	assert.True(t, strings.HasPrefix(md, "# Api Analysis Report"))
	assert.Contains(t, md, "- **Total API Endpoints**: 1")
	assert.Contains(t, md, "| GET | `/api/v1/courses` | courses | index | Yes |")
	assert.Contains(t, md, "### REST API")
}

func TestMarkdownStructure(t *testing.T) {
	result := structure.Result{
		Files: map[string]structure.FileInfo{
			"app/models/course.rb": {Name: "course.rb", Dir: "app/models", Language: "ruby"},
		},
		Directories:    map[string]string{"app/models": "model", "app": "unknown"},
		MostReferenced: []structure.Reference{{Target: "react", Count: 4}},
	}

	md := Markdown("structure", result)

	assert.Contains(t, md, "- **Total Files**: 1")
	assert.Contains(t, md, "| `app/models` | model |")
	assert.Contains(t, md, "| `react` | 4 |")
}

func TestMarkdownTemplates(t *testing.T) {
	result := templates.Result{
		Templates: map[string]templates.Template{
			"app/views/show.erb": {
				Type:     "erb",
				Bindings: []templates.Binding{{Name: "@title", Kind: "erb", Source: "rails"}},
			},
		},
		CountsByType: map[string]int{"erb": 1},
	}

	md := Markdown("templates", result)

	assert.Contains(t, md, "- **Total Templates**: 1")
	assert.Contains(t, md, "| `app/views/show.erb` | erb | 1 | 0 | 0 | 0 |")
}

func TestWriteMarkdown(t *testing.T) {
	dir := t.TempDir()

	path, err := Write(dir, "deps", "markdown", sampleDeps())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "deps_report.md"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# Deps Analysis Report")
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()

	path, err := Write(dir, "deps", "json", sampleDeps())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "deps_report.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded deps.Result
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "rails", decoded.RubyDependencies["rails"].Name)
}

func TestWriteYAML(t *testing.T) {
	dir := t.TempDir()

	path, err := Write(dir, "deps", "yaml", sampleDeps())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "deps_report.yml"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "ruby_dependencies")
}

func TestWriteUnsupportedFormat(t *testing.T) {
	_, err := Write(t.TempDir(), "deps", "pdf", sampleDeps())
	require.Error(t, err)
}

func TestWriteCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")

	path, err := Write(dir, "deps", "json", sampleDeps())
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
