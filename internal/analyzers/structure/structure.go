// Package structure analyzes source tree layout: per-file metadata,
// import relationships between files, directory purposes, and a ranking of
// the most referenced modules.
package structure

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/codescope-dev/codescope/internal/engine"
)

// FileInfo is the per-file result: identity, size, language, and the raw
// import specifiers found in the file.
type FileInfo struct {
	Name     string   `json:"name"`
	Dir      string   `json:"dir"`
	Language string   `json:"language"`
	Size     int64    `json:"size"`
	Imports  []string `json:"imports,omitempty"`
}

// Reference is one entry in the most-referenced ranking.
type Reference struct {
	Target string `json:"target"`
	Count  int    `json:"count"`
}

// Result is the aggregate tree structure.
type Result struct {
	Files           map[string]FileInfo `json:"files"`
	Directories     map[string]string   `json:"directories"`
	DependencyGraph map[string][]string `json:"dependency_graph"`
	MostReferenced  []Reference         `json:"most_referenced"`
}

// Analyzer implements engine.Analyzer for tree structure. It keeps the
// base directory so import specifiers can be resolved to tree-relative
// paths.
type Analyzer struct {
	baseDir string
}

// NewAnalyzer returns a structure analyzer rooted at baseDir. The base
// dir is absolutized so relative roots still yield tree-relative paths
// against the absolute file paths discovery produces.
func NewAnalyzer(baseDir string) *Analyzer {
	if abs, err := filepath.Abs(baseDir); err == nil {
		baseDir = abs
	}
	return &Analyzer{baseDir: baseDir}
}

// Name implements engine.Analyzer.
func (a *Analyzer) Name() string { return "structure" }

// DefaultOptions returns engine options tuned for source files.
func DefaultOptions(baseDir string) engine.Options {
	return engine.Options{
		BaseDir:        baseDir,
		ExcludeDirs:    []string{"node_modules", "target", "dist", "build", ".git"},
		IncludeExts:    []string{"rs", "js", "jsx", "ts", "tsx", "rb", "py", "go"},
		UseIncremental: true,
		Version:        "1",
	}
}

var languageByExt = map[string]string{
	"rs":  "rust",
	"js":  "javascript",
	"jsx": "javascript",
	"ts":  "typescript",
	"tsx": "typescript",
	"rb":  "ruby",
	"py":  "python",
	"go":  "go",
}

var importPatterns = map[string][]*regexp.Regexp{
	"rust": {
		regexp.MustCompile(`(?m)^\s*use\s+([^;]+);`),
		regexp.MustCompile(`(?m)^\s*mod\s+([a-zA-Z_][a-zA-Z0-9_]*)`),
	},
	"javascript": {
		regexp.MustCompile(`import\s+.*?from\s+['"]([^'"]+)['"]`),
		regexp.MustCompile(`require\s*\(['"]([^'"]+)['"]\)`),
	},
	"typescript": {
		regexp.MustCompile(`import\s+.*?from\s+['"]([^'"]+)['"]`),
	},
	"ruby": {
		regexp.MustCompile(`require(?:_relative)?\s+['"]([^'"]+)['"]`),
	},
	"python": {
		regexp.MustCompile(`(?m)^\s*from\s+(\S+)\s+import`),
		regexp.MustCompile(`(?m)^\s*import\s+(\S+)`),
	},
	"go": {
		regexp.MustCompile(`(?m)^import\s+(?:\w+\s+)?"([^"]+)"`),
		regexp.MustCompile(`(?m)^\t(?:\w+\s+)?"([^"]+)"`),
	},
}

// AnalyzeFile implements engine.Analyzer.
func (a *Analyzer) AnalyzeFile(filePath string) (FileInfo, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return FileInfo{}, fmt.Errorf("reading %s: %w", filePath, err)
	}

	rel := a.relPath(filePath)
	ext := strings.TrimPrefix(filepath.Ext(filePath), ".")
	language := languageByExt[ext]

	info := FileInfo{
		Name:     filepath.Base(filePath),
		Dir:      path.Dir(rel),
		Language: language,
		Size:     int64(len(content)),
		Imports:  extractImports(string(content), language),
	}
	if info.Dir == "." {
		info.Dir = ""
	}
	return info, nil
}

func (a *Analyzer) relPath(filePath string) string {
	rel, err := filepath.Rel(a.baseDir, filePath)
	if err != nil {
		return filepath.ToSlash(filePath)
	}
	return filepath.ToSlash(rel)
}

func extractImports(content, language string) []string {
	patterns, ok := importPatterns[language]
	if !ok {
		return nil
	}

	seen := make(map[string]bool)
	var imports []string
	for _, re := range patterns {
		for _, match := range re.FindAllStringSubmatch(content, -1) {
			spec := strings.TrimSpace(match[1])
			if spec == "" || seen[spec] {
				continue
			}
			seen[spec] = true
			imports = append(imports, spec)
		}
	}
	sort.Strings(imports)
	return imports
}

// Merge implements engine.Analyzer. Directory purposes are derived from
// the set of file paths, the dependency graph from resolved imports, and
// the most-referenced ranking from reference counts, all ordered
// deterministically.
func (a *Analyzer) Merge(results map[string]FileInfo) Result {
	merged := Result{
		Files:           make(map[string]FileInfo),
		Directories:     make(map[string]string),
		DependencyGraph: make(map[string][]string),
	}

	for rel, info := range results {
		merged.Files[rel] = info

		for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
			if _, ok := merged.Directories[dir]; !ok {
				merged.Directories[dir] = categorizeDirectory(dir)
			}
		}
	}

	refCounts := make(map[string]int)
	for rel, info := range results {
		if len(info.Imports) == 0 {
			continue
		}
		targets := make([]string, 0, len(info.Imports))
		for _, spec := range info.Imports {
			target := resolveImport(rel, spec)
			targets = append(targets, target)
			refCounts[target]++
		}
		sort.Strings(targets)
		merged.DependencyGraph[rel] = targets
	}

	merged.MostReferenced = rankReferences(refCounts, 10)
	return merged
}

// categorizeDirectory maps a tree-relative directory to its conventional
// purpose in a Rails or SPA layout.
func categorizeDirectory(dir string) string {
	switch path.Base(dir) {
	case "models":
		return "model"
	case "controllers":
		return "controller"
	case "views":
		return "view"
	case "routes":
		return "route"
	case "helpers":
		return "helper"
	case "mailers":
		return "mailer"
	case "jobs":
		return "job"
	case "serializers":
		return "serializer"
	case "migrate", "migrations":
		return "migration"
	case "config":
		return "config"
	case "lib", "libs":
		return "lib"
	case "services":
		return "service"
	case "components":
		return "component"
	case "utils":
		return "util"
	case "styles", "stylesheets":
		return "style"
	case "tests", "test", "spec":
		return "test"
	default:
		return "unknown"
	}
}

// resolveImport turns an import specifier into a graph target: relative
// specifiers resolve against the importing file's directory, everything
// else stays a bare module name.
func resolveImport(rel, spec string) string {
	if strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") {
		return path.Clean(path.Join(path.Dir(rel), spec))
	}
	return spec
}

func rankReferences(counts map[string]int, limit int) []Reference {
	refs := make([]Reference, 0, len(counts))
	for target, count := range counts {
		refs = append(refs, Reference{Target: target, Count: count})
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Count != refs[j].Count {
			return refs[i].Count > refs[j].Count
		}
		return refs[i].Target < refs[j].Target
	})
	if len(refs) > limit {
		refs = refs[:limit]
	}
	return refs
}
