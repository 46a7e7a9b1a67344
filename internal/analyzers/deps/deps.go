// Package deps analyzes dependency manifests: package.json, Gemfile and
// gemspecs, requirements.txt, Cargo.toml, and Dockerfiles. Each manifest
// is analyzed in isolation; the merged aggregate is the union of all
// declared dependencies per ecosystem plus a heuristic dependency graph.
package deps

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/codescope-dev/codescope/internal/engine"
)

// Dependency describes one declared dependency.
type Dependency struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Kind       string `json:"kind"`
	SourceFile string `json:"source_file"`
}

// FileResult is the per-file result: dependencies keyed by name, split by
// ecosystem.
type FileResult struct {
	Ruby   map[string]Dependency `json:"ruby,omitempty"`
	JS     map[string]Dependency `json:"js,omitempty"`
	Python map[string]Dependency `json:"python,omitempty"`
	System map[string]Dependency `json:"system,omitempty"`
}

// Graph is a coarse dependency graph inferred from naming heuristics.
type Graph struct {
	Nodes []string    `json:"nodes"`
	Edges [][2]string `json:"edges"`
}

// Result is the aggregate over all manifests in the tree.
type Result struct {
	RubyDependencies   map[string]Dependency `json:"ruby_dependencies"`
	JSDependencies     map[string]Dependency `json:"js_dependencies"`
	PythonDependencies map[string]Dependency `json:"python_dependencies"`
	SystemDependencies map[string]Dependency `json:"system_dependencies"`
	DependencyGraph    Graph                 `json:"dependency_graph"`
}

// Total returns the combined dependency count.
func (r Result) Total() int {
	return len(r.RubyDependencies) + len(r.JSDependencies) +
		len(r.PythonDependencies) + len(r.SystemDependencies)
}

// Analyzer implements engine.Analyzer for dependency manifests.
type Analyzer struct{}

// NewAnalyzer returns the dependency analyzer.
func NewAnalyzer() *Analyzer { return &Analyzer{} }

// Name implements engine.Analyzer.
func (a *Analyzer) Name() string { return "deps" }

// DefaultOptions returns engine options tuned for dependency manifests.
func DefaultOptions(baseDir string) engine.Options {
	return engine.Options{
		BaseDir:        baseDir,
		ExcludeDirs:    []string{"node_modules", "target", "dist", "build", ".git"},
		IncludeExts:    []string{"json", "gemspec", "txt", "toml"},
		IncludeNames:   []string{"Gemfile", "Dockerfile"},
		UseIncremental: true,
		Version:        "1",
	}
}

var (
	gemRe     = regexp.MustCompile(`gem\s+['"]([^'"]+)['"](?:,\s*['"]([^'"]+)['"])?`)
	gemspecRe = regexp.MustCompile(`add_(?:runtime_|development_)?dependency\s+['"]([^'"]+)['"](?:,\s*['"]([^'"]+)['"])?`)
	aptRe     = regexp.MustCompile(`apt-get\s+install\s+(.+?)(?:\s*\\|\s*$)`)
)

// AnalyzeFile implements engine.Analyzer. Unknown manifest names yield an
// empty result rather than an error so a broad include set stays cheap.
func (a *Analyzer) AnalyzeFile(path string) (FileResult, error) {
	name := filepath.Base(path)

	content, err := os.ReadFile(path)
	if err != nil {
		return FileResult{}, fmt.Errorf("reading %s: %w", path, err)
	}
	source := name

	switch {
	case name == "package.json":
		return analyzePackageJSON(content, source)
	case name == "Gemfile":
		return analyzeGemfile(string(content), source), nil
	case strings.HasSuffix(name, ".gemspec"):
		return analyzeGemspec(string(content), source), nil
	case name == "requirements.txt":
		return analyzeRequirements(string(content), source), nil
	case name == "Cargo.toml":
		return analyzeCargoTOML(content, source)
	case name == "Dockerfile":
		return analyzeDockerfile(string(content), source), nil
	default:
		return FileResult{}, nil
	}
}

func analyzePackageJSON(content []byte, source string) (FileResult, error) {
	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(content, &manifest); err != nil {
		return FileResult{}, fmt.Errorf("parsing %s: %w", source, err)
	}

	result := FileResult{JS: make(map[string]Dependency)}
	for name, version := range manifest.Dependencies {
		result.JS[name] = Dependency{Name: name, Version: version, Kind: "js-runtime", SourceFile: source}
	}
	for name, version := range manifest.DevDependencies {
		// A package listed in both sections keeps its runtime kind.
		if _, ok := result.JS[name]; ok {
			continue
		}
		result.JS[name] = Dependency{Name: name, Version: version, Kind: "js-development", SourceFile: source}
	}
	return result, nil
}

func analyzeGemfile(content, source string) FileResult {
	result := FileResult{Ruby: make(map[string]Dependency)}
	for _, match := range gemRe.FindAllStringSubmatch(content, -1) {
		version := match[2]
		if version == "" {
			version = "latest"
		}
		result.Ruby[match[1]] = Dependency{Name: match[1], Version: version, Kind: "ruby", SourceFile: source}
	}
	return result
}

func analyzeGemspec(content, source string) FileResult {
	result := FileResult{Ruby: make(map[string]Dependency)}
	for _, line := range strings.Split(content, "\n") {
		match := gemspecRe.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		kind := "ruby-runtime"
		if strings.Contains(line, "add_development_dependency") {
			kind = "ruby-development"
		}
		version := match[2]
		if version == "" {
			version = "latest"
		}
		result.Ruby[match[1]] = Dependency{Name: match[1], Version: version, Kind: kind, SourceFile: source}
	}
	return result
}

func analyzeRequirements(content, source string) FileResult {
	result := FileResult{Python: make(map[string]Dependency)}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name := line
		version := "latest"
		if idx := strings.IndexAny(line, "=<>~!"); idx > 0 {
			name = strings.TrimSpace(line[:idx])
			version = strings.TrimSpace(line[idx:])
		}
		if name == "" {
			continue
		}
		result.Python[name] = Dependency{Name: name, Version: version, Kind: "python", SourceFile: source}
	}
	return result
}

func analyzeCargoTOML(content []byte, source string) (FileResult, error) {
	var manifest struct {
		Dependencies map[string]any `toml:"dependencies"`
	}
	if err := toml.Unmarshal(content, &manifest); err != nil {
		return FileResult{}, fmt.Errorf("parsing %s: %w", source, err)
	}

	result := FileResult{System: make(map[string]Dependency)}
	for name, spec := range manifest.Dependencies {
		// Crates appear either as `serde = "1.0"` or as an inline
		// table like `tokio = { version = "1", features = [...] }`.
		version := "latest"
		switch v := spec.(type) {
		case string:
			version = v
		case map[string]any:
			if s, ok := v["version"].(string); ok {
				version = s
			}
		}
		result.System[name] = Dependency{Name: name, Version: version, Kind: "rust", SourceFile: source}
	}
	return result, nil
}

func analyzeDockerfile(content, source string) FileResult {
	result := FileResult{System: make(map[string]Dependency)}
	for _, match := range aptRe.FindAllStringSubmatch(content, -1) {
		for _, pkg := range strings.Fields(match[1]) {
			if strings.HasPrefix(pkg, "-") {
				continue
			}
			result.System[pkg] = Dependency{Name: pkg, Version: "latest", Kind: "system-apt", SourceFile: source}
		}
	}
	return result
}

// Merge implements engine.Analyzer. Duplicate names across manifests are
// resolved deterministically: the dependency whose source file is
// lexicographically greatest wins, independent of processing order.
func (a *Analyzer) Merge(results map[string]FileResult) Result {
	merged := Result{
		RubyDependencies:   make(map[string]Dependency),
		JSDependencies:     make(map[string]Dependency),
		PythonDependencies: make(map[string]Dependency),
		SystemDependencies: make(map[string]Dependency),
	}

	for rel, fileResult := range results {
		mergeEcosystem(merged.RubyDependencies, fileResult.Ruby, rel)
		mergeEcosystem(merged.JSDependencies, fileResult.JS, rel)
		mergeEcosystem(merged.PythonDependencies, fileResult.Python, rel)
		mergeEcosystem(merged.SystemDependencies, fileResult.System, rel)
	}

	merged.DependencyGraph = buildGraph(merged)
	return merged
}

// mergeEcosystem unions src into dst, qualifying SourceFile with the
// file's relative path and applying the lexicographic tie-break.
func mergeEcosystem(dst, src map[string]Dependency, rel string) {
	for name, dep := range src {
		dep.SourceFile = rel
		if existing, ok := dst[name]; ok && existing.SourceFile > dep.SourceFile {
			continue
		}
		dst[name] = dep
	}
}

// buildGraph derives edges from naming heuristics: a framework implies
// edges to its satellite packages. Nodes and edges are sorted so the graph
// is independent of map iteration order.
func buildGraph(result Result) Graph {
	var nodes []string
	for name := range result.RubyDependencies {
		nodes = append(nodes, name)
	}
	for name := range result.JSDependencies {
		nodes = append(nodes, name)
	}
	for name := range result.PythonDependencies {
		nodes = append(nodes, name)
	}
	for name := range result.SystemDependencies {
		nodes = append(nodes, name)
	}
	sort.Strings(nodes)

	var edges [][2]string
	for name := range result.RubyDependencies {
		if !strings.Contains(name, "rails") {
			continue
		}
		for other := range result.RubyDependencies {
			if strings.Contains(other, "active") || strings.Contains(other, "action") {
				edges = append(edges, [2]string{name, other})
			}
		}
	}
	for name := range result.JSDependencies {
		if name != "react" {
			continue
		}
		for other := range result.JSDependencies {
			if strings.HasPrefix(other, "react-") {
				edges = append(edges, [2]string{name, other})
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})

	return Graph{Nodes: nodes, Edges: edges}
}
