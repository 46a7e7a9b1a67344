// Package report renders analyzer aggregates as markdown, JSON, or YAML
// and writes them under a report directory. Markdown rendering is
// analyzer-aware; JSON and YAML are direct serializations of the
// aggregate.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/codescope-dev/codescope/internal/analyzers/api"
	"github.com/codescope-dev/codescope/internal/analyzers/deps"
	"github.com/codescope-dev/codescope/internal/analyzers/structure"
	"github.com/codescope-dev/codescope/internal/analyzers/templates"
)

var titleCaser = cases.Title(language.English)

// Write renders aggregate in the given format and writes it to
// dir/<name>_report.<ext>, returning the written path.
func Write(dir, name, format string, aggregate any) (string, error) {
	var (
		content []byte
		ext     string
		err     error
	)
	switch format {
	case "markdown":
		content = []byte(Markdown(name, aggregate))
		ext = "md"
	case "json":
		content, err = json.MarshalIndent(aggregate, "", "  ")
		ext = "json"
	case "yaml":
		content, err = marshalYAML(aggregate)
		ext = "yml"
	default:
		return "", fmt.Errorf("unsupported report format %q", format)
	}
	if err != nil {
		return "", fmt.Errorf("rendering %s report: %w", name, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating report dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_report.%s", name, ext))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("writing %s report: %w", name, err)
	}
	return path, nil
}

// marshalYAML serializes through JSON first so the YAML keys match the
// aggregate's json tags.
func marshalYAML(aggregate any) ([]byte, error) {
	raw, err := json.Marshal(aggregate)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return yaml.Marshal(generic)
}

// Markdown renders an analyzer aggregate as a markdown report. Tables are
// sorted so the output is stable across runs.
func Markdown(name string, aggregate any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s Analysis Report\n\n", titleCaser.String(name))
	fmt.Fprintf(&b, "_Generated on: %s_\n\n", time.Now().Format("2006-01-02"))

	switch result := aggregate.(type) {
	case deps.Result:
		depsMarkdown(&b, result)
	case api.Result:
		apiMarkdown(&b, result)
	case structure.Result:
		structureMarkdown(&b, result)
	case templates.Result:
		templatesMarkdown(&b, result)
	default:
		raw, err := json.MarshalIndent(aggregate, "", "  ")
		if err == nil {
			fmt.Fprintf(&b, "```json\n%s\n```\n", raw)
		}
	}
	return b.String()
}

func depsMarkdown(b *strings.Builder, result deps.Result) {
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(b, "- **Total Dependencies**: %d\n", result.Total())
	fmt.Fprintf(b, "- **Ruby**: %d\n", len(result.RubyDependencies))
	fmt.Fprintf(b, "- **JavaScript**: %d\n", len(result.JSDependencies))
	fmt.Fprintf(b, "- **Python**: %d\n", len(result.PythonDependencies))
	fmt.Fprintf(b, "- **System/Rust**: %d\n", len(result.SystemDependencies))

	for _, section := range []struct {
		title string
		deps  map[string]deps.Dependency
	}{
		{"Ruby Dependencies", result.RubyDependencies},
		{"JavaScript Dependencies", result.JSDependencies},
		{"Python Dependencies", result.PythonDependencies},
		{"System Dependencies", result.SystemDependencies},
	} {
		if len(section.deps) == 0 {
			continue
		}
		fmt.Fprintf(b, "\n## %s\n\n", section.title)
		b.WriteString("| Name | Version | Kind | Source |\n")
		b.WriteString("|------|---------|------|--------|\n")
		for _, name := range sortedKeys(section.deps) {
			d := section.deps[name]
			fmt.Fprintf(b, "| %s | %s | %s | `%s` |\n", d.Name, d.Version, d.Kind, d.SourceFile)
		}
	}

	if len(result.DependencyGraph.Edges) > 0 {
		b.WriteString("\n## Dependency Graph\n\n")
		for _, edge := range result.DependencyGraph.Edges {
			fmt.Fprintf(b, "- %s -> %s\n", edge[0], edge[1])
		}
	}
}

func apiMarkdown(b *strings.Builder, result api.Result) {
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(b, "- **Total API Endpoints**: %d\n", len(result.Endpoints))
	fmt.Fprintf(b, "- **Total API Clients**: %d\n", len(result.Clients))
	fmt.Fprintf(b, "- **Auth-Protected Routes**: %d\n", len(result.AuthProtectedRoutes))

	if len(result.Endpoints) > 0 {
		b.WriteString("\n## API Endpoints\n\n")
		b.WriteString("| Method | Path | Controller | Action | Auth | Parameters |\n")
		b.WriteString("|--------|------|------------|--------|------|------------|\n")
		for _, key := range sortedKeys(result.Endpoints) {
			e := result.Endpoints[key]
			auth := "No"
			if e.AuthenticationRequired {
				auth = "Yes"
			}
			fmt.Fprintf(b, "| %s | `%s` | %s | %s | %s | %s |\n",
				e.Method, e.Path, e.Controller, e.Action, auth, strings.Join(e.Parameters, ", "))
		}
	}

	if len(result.Clients) > 0 {
		b.WriteString("\n## API Clients\n\n")
		b.WriteString("| Method | Endpoint | Type | Source |\n")
		b.WriteString("|--------|----------|------|--------|\n")
		for _, c := range result.Clients {
			fmt.Fprintf(b, "| %s | `%s` | %s | `%s` |\n", c.Method, c.Endpoint, c.ClientType, c.SourceFile)
		}
	}

	if len(result.RoutePatterns) > 0 {
		b.WriteString("\n## Route Patterns\n\n")
		for _, pattern := range sortedKeys(result.RoutePatterns) {
			fmt.Fprintf(b, "### %s\n\n", pattern)
			for _, path := range result.RoutePatterns[pattern] {
				fmt.Fprintf(b, "- `%s`\n", path)
			}
			b.WriteString("\n")
		}
	}
}

func structureMarkdown(b *strings.Builder, result structure.Result) {
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(b, "- **Total Files**: %d\n", len(result.Files))
	fmt.Fprintf(b, "- **Total Directories**: %d\n", len(result.Directories))

	if len(result.Directories) > 0 {
		b.WriteString("\n## Directory Purposes\n\n")
		b.WriteString("| Directory | Purpose |\n")
		b.WriteString("|-----------|--------|\n")
		for _, dir := range sortedKeys(result.Directories) {
			fmt.Fprintf(b, "| `%s` | %s |\n", dir, result.Directories[dir])
		}
	}

	if len(result.MostReferenced) > 0 {
		b.WriteString("\n## Most Referenced\n\n")
		b.WriteString("| Target | References |\n")
		b.WriteString("|--------|------------|\n")
		for _, ref := range result.MostReferenced {
			fmt.Fprintf(b, "| `%s` | %d |\n", ref.Target, ref.Count)
		}
	}
}

func templatesMarkdown(b *strings.Builder, result templates.Result) {
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(b, "- **Total Templates**: %d\n", len(result.Templates))
	for _, kind := range sortedKeys(result.CountsByType) {
		fmt.Fprintf(b, "- **%s**: %d\n", kind, result.CountsByType[kind])
	}

	if len(result.Templates) > 0 {
		b.WriteString("\n## Templates\n\n")
		b.WriteString("| Path | Type | Bindings | Partials | Loops | Conditionals |\n")
		b.WriteString("|------|------|----------|----------|-------|--------------|\n")
		for _, path := range result.TemplatePaths() {
			tmpl := result.Templates[path]
			fmt.Fprintf(b, "| `%s` | %s | %d | %d | %d | %d |\n",
				path, tmpl.Type, len(tmpl.Bindings), len(tmpl.Partials), len(tmpl.Loops), len(tmpl.Conditionals))
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
