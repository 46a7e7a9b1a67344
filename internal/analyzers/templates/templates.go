// Package templates analyzes view templates: ERB, Handlebars, plain HTML,
// Vue single-file components, and JSX/TSX. Each template yields its data
// bindings, rendered partials, loops, and conditionals.
package templates

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/codescope-dev/codescope/internal/engine"
)

// Binding is one data binding found in a template.
type Binding struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Source string `json:"source"`
}

// Partial is one rendered sub-template or component reference.
type Partial struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Loop is one iteration construct.
type Loop struct {
	Iterator   string `json:"iterator"`
	Collection string `json:"collection"`
}

// Conditional is one branch construct.
type Conditional struct {
	Condition string `json:"condition"`
}

// Template is the per-file result.
type Template struct {
	Type         string        `json:"type"`
	Bindings     []Binding     `json:"bindings,omitempty"`
	Partials     []Partial     `json:"partials,omitempty"`
	Loops        []Loop        `json:"loops,omitempty"`
	Conditionals []Conditional `json:"conditionals,omitempty"`
}

// Result is the aggregate: all templates keyed by relative path plus
// per-type counts.
type Result struct {
	Templates    map[string]Template `json:"templates"`
	CountsByType map[string]int      `json:"counts_by_type"`
}

// Analyzer implements engine.Analyzer for view templates.
type Analyzer struct{}

// NewAnalyzer returns the template analyzer.
func NewAnalyzer() *Analyzer { return &Analyzer{} }

// Name implements engine.Analyzer.
func (a *Analyzer) Name() string { return "templates" }

// DefaultOptions returns engine options tuned for template files.
func DefaultOptions(baseDir string) engine.Options {
	return engine.Options{
		BaseDir:        baseDir,
		ExcludeDirs:    []string{"node_modules", "target", "dist", "build", ".git"},
		IncludeExts:    []string{"erb", "hbs", "html", "vue", "jsx", "tsx"},
		UseIncremental: true,
		Version:        "1",
	}
}

var (
	erbBindingRe     = regexp.MustCompile(`<%=\s*([^%]+?)\s*%>`)
	erbPartialRe     = regexp.MustCompile(`<%=\s*render\s+partial:\s*['"](.*?)['"]\s*%>`)
	erbLoopRe        = regexp.MustCompile(`<%\s*([^%]+?)\.each\s+do\s+\|([^|]+?)\|\s*%>`)
	erbConditionalRe = regexp.MustCompile(`<%\s*if\s+([^%]+?)\s*%>`)

	hbsBindingRe     = regexp.MustCompile(`\{\{\{?([^}]+?)\}?\}\}`)
	hbsPartialRe     = regexp.MustCompile(`\{\{>\s*([^}]+?)\s*\}\}`)
	hbsLoopRe        = regexp.MustCompile(`\{\{#each\s+(\S+)\s+as\s+\|([^|]+?)\|\}\}`)
	hbsConditionalRe = regexp.MustCompile(`\{\{#if\s+([^}]+?)\s*\}\}`)

	componentImportRe = regexp.MustCompile(`import\s+(\w+)\s+from\s+['"]([^'"]+)['"]`)
	jsxComponentRe    = regexp.MustCompile(`<([A-Z]\w+)[^>]*?/?>`)
	vueComponentsRe   = regexp.MustCompile(`components:\s*\{([^}]+)\}`)
	vueDataRe         = regexp.MustCompile(`data\s*\(\s*\)\s*\{\s*return\s*\{([^}]+)\}`)
)

// AnalyzeFile implements engine.Analyzer.
func (a *Analyzer) AnalyzeFile(path string) (Template, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Template{}, fmt.Errorf("reading %s: %w", path, err)
	}

	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	text := string(content)

	tmpl := Template{Type: ext}
	switch ext {
	case "erb":
		analyzeERB(&tmpl, text)
	case "hbs":
		analyzeHBS(&tmpl, text)
	case "html":
		analyzeHTML(&tmpl, text)
	case "vue":
		analyzeHTML(&tmpl, text)
		analyzeVue(&tmpl, text)
	case "jsx", "tsx":
		analyzeJSX(&tmpl, text)
	}
	return tmpl, nil
}

func analyzeERB(tmpl *Template, content string) {
	partialSpans := erbPartialRe.FindAllStringIndex(content, -1)

	for _, match := range erbBindingRe.FindAllStringSubmatchIndex(content, -1) {
		// Render-partial tags are partials, not bindings.
		if insideAny(match[0], partialSpans) {
			continue
		}
		name := strings.TrimSpace(content[match[2]:match[3]])
		tmpl.Bindings = append(tmpl.Bindings, Binding{Name: name, Kind: "erb", Source: "rails"})
	}
	for _, match := range erbPartialRe.FindAllStringSubmatch(content, -1) {
		tmpl.Partials = append(tmpl.Partials, Partial{Name: baseName(match[1]), Path: match[1]})
	}
	for _, match := range erbLoopRe.FindAllStringSubmatch(content, -1) {
		tmpl.Loops = append(tmpl.Loops, Loop{
			Iterator:   strings.TrimSpace(match[2]),
			Collection: strings.TrimSpace(match[1]),
		})
	}
	for _, match := range erbConditionalRe.FindAllStringSubmatch(content, -1) {
		tmpl.Conditionals = append(tmpl.Conditionals, Conditional{Condition: strings.TrimSpace(match[1])})
	}
}

func insideAny(pos int, spans [][]int) bool {
	for _, span := range spans {
		if pos >= span[0] && pos < span[1] {
			return true
		}
	}
	return false
}

func analyzeHBS(tmpl *Template, content string) {
	for _, match := range hbsBindingRe.FindAllStringSubmatch(content, -1) {
		name := strings.TrimSpace(match[1])
		// Block helpers and closers are not bindings.
		if strings.HasPrefix(name, "#") || strings.HasPrefix(name, "/") || strings.HasPrefix(name, ">") {
			continue
		}
		tmpl.Bindings = append(tmpl.Bindings, Binding{Name: name, Kind: "hbs", Source: "ember"})
	}
	for _, match := range hbsPartialRe.FindAllStringSubmatch(content, -1) {
		name := strings.TrimSpace(match[1])
		tmpl.Partials = append(tmpl.Partials, Partial{Name: name, Path: name})
	}
	for _, match := range hbsLoopRe.FindAllStringSubmatch(content, -1) {
		tmpl.Loops = append(tmpl.Loops, Loop{
			Iterator:   strings.TrimSpace(match[2]),
			Collection: strings.TrimSpace(match[1]),
		})
	}
	for _, match := range hbsConditionalRe.FindAllStringSubmatch(content, -1) {
		tmpl.Conditionals = append(tmpl.Conditionals, Conditional{Condition: strings.TrimSpace(match[1])})
	}
}

// analyzeHTML walks the parsed document and records data-* attributes,
// Angular and Vue directive attributes, and include elements.
func analyzeHTML(tmpl *Template, content string) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				switch {
				case strings.HasPrefix(attr.Key, "data-"):
					tmpl.Bindings = append(tmpl.Bindings, Binding{
						Name:   strings.TrimPrefix(attr.Key, "data-") + ": " + attr.Val,
						Kind:   "data-attribute",
						Source: "html",
					})
				case strings.HasPrefix(attr.Key, "ng-"):
					tmpl.Bindings = append(tmpl.Bindings, Binding{
						Name:   attr.Key + ": " + attr.Val,
						Kind:   "framework-binding",
						Source: "angular",
					})
				case strings.HasPrefix(attr.Key, "v-"):
					tmpl.Bindings = append(tmpl.Bindings, Binding{
						Name:   attr.Key + ": " + attr.Val,
						Kind:   "framework-binding",
						Source: "vue",
					})
				}
			}
			if n.Data == "include" {
				for _, attr := range n.Attr {
					if attr.Key == "src" {
						tmpl.Partials = append(tmpl.Partials, Partial{Name: baseName(attr.Val), Path: attr.Val})
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
}

func analyzeVue(tmpl *Template, content string) {
	for _, match := range componentImportRe.FindAllStringSubmatch(content, -1) {
		tmpl.Partials = append(tmpl.Partials, Partial{Name: match[1], Path: match[2]})
	}
	if match := vueComponentsRe.FindStringSubmatch(content); match != nil {
		for _, component := range strings.Split(match[1], ",") {
			component = strings.TrimSpace(component)
			if component == "" {
				continue
			}
			tmpl.Partials = append(tmpl.Partials, Partial{Name: component, Path: "local-component"})
		}
	}
	if match := vueDataRe.FindStringSubmatch(content); match != nil {
		for _, prop := range strings.Split(match[1], ",") {
			name, _, _ := strings.Cut(prop, ":")
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			tmpl.Bindings = append(tmpl.Bindings, Binding{Name: name, Kind: "vue-data", Source: "vue"})
		}
	}
}

func analyzeJSX(tmpl *Template, content string) {
	for _, match := range componentImportRe.FindAllStringSubmatch(content, -1) {
		tmpl.Partials = append(tmpl.Partials, Partial{Name: match[1], Path: match[2]})
	}
	seen := make(map[string]bool)
	for _, match := range jsxComponentRe.FindAllStringSubmatch(content, -1) {
		if seen[match[1]] {
			continue
		}
		seen[match[1]] = true
		tmpl.Partials = append(tmpl.Partials, Partial{Name: match[1], Path: "jsx-component"})
	}
}

func baseName(path string) string {
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// Merge implements engine.Analyzer. Templates are keyed by relative path
// so there are no collisions; the per-type counts summarize the set.
func (a *Analyzer) Merge(results map[string]Template) Result {
	merged := Result{
		Templates:    make(map[string]Template),
		CountsByType: make(map[string]int),
	}
	for rel, tmpl := range results {
		merged.Templates[rel] = tmpl
		merged.CountsByType[tmpl.Type]++
	}
	return merged
}

// TemplatePaths returns the analyzed template paths in sorted order.
func (r Result) TemplatePaths() []string {
	paths := make([]string, 0, len(r.Templates))
	for rel := range r.Templates {
		paths = append(paths, rel)
	}
	sort.Strings(paths)
	return paths
}
