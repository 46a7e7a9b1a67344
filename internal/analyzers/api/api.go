// Package api analyzes HTTP API surfaces: Rails routes files on the server
// side and fetch/axios/jQuery/GraphQL call sites on the client side. The
// aggregate groups endpoints into route-pattern families and lists routes
// behind authentication.
package api

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/codescope-dev/codescope/internal/engine"
)

// Endpoint is one server-side route declaration.
type Endpoint struct {
	Path                   string   `json:"path"`
	Method                 string   `json:"method"`
	Controller             string   `json:"controller,omitempty"`
	Action                 string   `json:"action,omitempty"`
	AuthenticationRequired bool     `json:"authentication_required"`
	Parameters             []string `json:"parameters,omitempty"`
	ResponseFormat         string   `json:"response_format,omitempty"`
	SourceFile             string   `json:"source_file"`
	RateLimited            bool     `json:"rate_limited"`
	RequiredPermissions    []string `json:"required_permissions,omitempty"`
}

// Client is one client-side API call site.
type Client struct {
	Endpoint   string `json:"endpoint"`
	Method     string `json:"method"`
	ClientType string `json:"client_type"`
	SourceFile string `json:"source_file"`
}

// FileResult is the per-file result: endpoints keyed by "METHOD:path" plus
// the call sites found in the file.
type FileResult struct {
	Endpoints map[string]Endpoint `json:"endpoints,omitempty"`
	Clients   []Client            `json:"clients,omitempty"`
}

// Result is the aggregate API surface.
type Result struct {
	Endpoints           map[string]Endpoint `json:"endpoints"`
	Clients             []Client            `json:"clients"`
	RoutePatterns       map[string][]string `json:"route_patterns"`
	AuthProtectedRoutes []string            `json:"auth_protected_routes"`
}

// Analyzer implements engine.Analyzer for API surfaces.
type Analyzer struct{}

// NewAnalyzer returns the API analyzer.
func NewAnalyzer() *Analyzer { return &Analyzer{} }

// Name implements engine.Analyzer.
func (a *Analyzer) Name() string { return "api" }

// DefaultOptions returns engine options tuned for route and client files.
func DefaultOptions(baseDir string) engine.Options {
	return engine.Options{
		BaseDir:        baseDir,
		ExcludeDirs:    []string{"node_modules", "target", "dist", "build", ".git"},
		IncludeExts:    []string{"rb", "js", "ts", "jsx", "tsx"},
		UseIncremental: true,
		Version:        "1",
	}
}

var (
	routeRe      = regexp.MustCompile(`(get|post|put|patch|delete)\s+['"]([^'"]+)['"](?:,\s+to:\s*['"]([^#]+)#([^'"]+)['"])?`)
	pathParamRe  = regexp.MustCompile(`:([a-zA-Z_]+)`)
	permissionRe = regexp.MustCompile(`(?:authorize!?|can\?|permission|role)\s*[(:]?\s*['"](\w+)['"]`)
	fetchRe      = regexp.MustCompile(`fetch\(['"]([^'"]+)['"](?:,\s*\{\s*method:\s*['"]([^'"]+)['"]\s*\})?\s*\)`)
	axiosRe      = regexp.MustCompile(`axios\.(get|post|put|patch|delete)\(['"]([^'"]+)['"]`)
	jqueryRe     = regexp.MustCompile(`\$\.ajax\(\{\s*url:\s*['"]([^'"]+)['"](?:,\s*type:\s*['"]([^'"]+)['"])?`)
	graphqlRe    = regexp.MustCompile(`(query|mutation)\s+(\w+)\s*\{`)
)

// AnalyzeFile implements engine.Analyzer. Ruby files are scanned for
// routes, script files for client call sites; anything else yields an
// empty result.
func (a *Analyzer) AnalyzeFile(path string) (FileResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return FileResult{}, fmt.Errorf("reading %s: %w", path, err)
	}

	name := filepath.Base(path)
	ext := strings.TrimPrefix(filepath.Ext(path), ".")

	switch {
	case name == "routes.rb":
		return analyzeRoutes(string(content), name), nil
	case ext == "js" || ext == "ts" || ext == "jsx" || ext == "tsx":
		return analyzeClients(string(content), name), nil
	default:
		return FileResult{}, nil
	}
}

// analyzeRoutes extracts route declarations from a Rails routes file. Only
// files that declare an api namespace or scope are considered API surface.
func analyzeRoutes(content, source string) FileResult {
	result := FileResult{}
	if !strings.Contains(content, "namespace :api") && !strings.Contains(content, "scope :api") {
		return result
	}

	authRequired := strings.Contains(content, "authenticate_user!") ||
		strings.Contains(content, "before_action :authenticate_user")
	rateLimited := strings.Contains(content, "throttle") ||
		strings.Contains(content, "rate_limit")

	var permissions []string
	for _, match := range permissionRe.FindAllStringSubmatch(content, -1) {
		permissions = append(permissions, match[1])
	}

	result.Endpoints = make(map[string]Endpoint)
	for _, match := range routeRe.FindAllStringSubmatch(content, -1) {
		method := strings.ToUpper(match[1])
		path := match[2]

		var params []string
		for _, p := range pathParamRe.FindAllStringSubmatch(path, -1) {
			params = append(params, p[1])
		}

		endpoint := Endpoint{
			Path:                   path,
			Method:                 method,
			Controller:             strings.TrimSpace(match[3]),
			Action:                 match[4],
			AuthenticationRequired: authRequired,
			Parameters:             params,
			ResponseFormat:         responseFormat(content, path),
			SourceFile:             source,
			RateLimited:            rateLimited,
			RequiredPermissions:    permissions,
		}
		result.Endpoints[method+":"+path] = endpoint
	}
	return result
}

func responseFormat(content, path string) string {
	switch {
	case strings.HasSuffix(path, ".xml"):
		return "XML"
	case strings.Contains(content, "format.xml") && !strings.Contains(content, "format.json"):
		return "XML"
	default:
		return "JSON"
	}
}

// analyzeClients extracts API call sites from a script file.
func analyzeClients(content, source string) FileResult {
	var clients []Client

	for _, match := range fetchRe.FindAllStringSubmatch(content, -1) {
		method := "GET"
		if match[2] != "" {
			method = strings.ToUpper(match[2])
		}
		clients = append(clients, Client{Endpoint: match[1], Method: method, ClientType: "fetch", SourceFile: source})
	}
	for _, match := range axiosRe.FindAllStringSubmatch(content, -1) {
		clients = append(clients, Client{Endpoint: match[2], Method: strings.ToUpper(match[1]), ClientType: "axios", SourceFile: source})
	}
	for _, match := range jqueryRe.FindAllStringSubmatch(content, -1) {
		method := "GET"
		if match[2] != "" {
			method = strings.ToUpper(match[2])
		}
		clients = append(clients, Client{Endpoint: match[1], Method: method, ClientType: "jquery", SourceFile: source})
	}
	for _, match := range graphqlRe.FindAllStringSubmatch(content, -1) {
		method := "GET"
		if match[1] == "mutation" {
			method = "POST"
		}
		clients = append(clients, Client{
			Endpoint:   "/graphql/" + match[2],
			Method:     method,
			ClientType: "graphql",
			SourceFile: source,
		})
	}

	return FileResult{Clients: clients}
}

// Merge implements engine.Analyzer. Endpoint keys colliding across files
// resolve to the lexicographically greatest source file; clients are
// deduplicated by method, endpoint, and client type and sorted so the
// aggregate is independent of processing order.
func (a *Analyzer) Merge(results map[string]FileResult) Result {
	merged := Result{
		Endpoints:     make(map[string]Endpoint),
		Clients:       []Client{},
		RoutePatterns: make(map[string][]string),
	}

	seen := make(map[string]bool)
	for rel, fileResult := range results {
		for key, endpoint := range fileResult.Endpoints {
			endpoint.SourceFile = rel
			if existing, ok := merged.Endpoints[key]; ok && existing.SourceFile > rel {
				continue
			}
			merged.Endpoints[key] = endpoint
		}
		for _, client := range fileResult.Clients {
			client.SourceFile = rel
			key := client.Method + ":" + client.Endpoint + ":" + client.ClientType
			if seen[key] {
				continue
			}
			seen[key] = true
			merged.Clients = append(merged.Clients, client)
		}
	}
	sort.Slice(merged.Clients, func(i, j int) bool {
		a, b := merged.Clients[i], merged.Clients[j]
		if a.Endpoint != b.Endpoint {
			return a.Endpoint < b.Endpoint
		}
		if a.Method != b.Method {
			return a.Method < b.Method
		}
		return a.ClientType < b.ClientType
	})

	merged.RoutePatterns = routePatterns(merged)
	merged.AuthProtectedRoutes = authProtectedRoutes(merged)
	return merged
}

func routePatterns(result Result) map[string][]string {
	patterns := make(map[string][]string)

	var rest, versioned, resource, graphql []string
	for _, endpoint := range result.Endpoints {
		switch endpoint.Action {
		case "index", "show", "create", "update", "destroy":
			rest = append(rest, endpoint.Path)
		}
		if strings.Contains(endpoint.Path, "/api/v") || strings.Contains(endpoint.Path, "/api/version") {
			versioned = append(versioned, endpoint.Path)
		}
		segments := splitPath(endpoint.Path)
		if len(segments) >= 3 && segments[0] == "api" && !strings.HasPrefix(segments[2], ":") {
			resource = append(resource, endpoint.Path)
		}
	}
	for _, client := range result.Clients {
		if client.ClientType == "graphql" {
			graphql = append(graphql, client.Endpoint)
		}
	}

	for name, paths := range map[string][]string{
		"REST API":           rest,
		"Versioned API":      versioned,
		"Resource-based API": resource,
		"GraphQL API":        graphql,
	} {
		if len(paths) > 0 {
			sort.Strings(paths)
			patterns[name] = paths
		}
	}
	return patterns
}

func splitPath(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func authProtectedRoutes(result Result) []string {
	var routes []string
	for _, endpoint := range result.Endpoints {
		if endpoint.AuthenticationRequired {
			routes = append(routes, endpoint.Path)
		}
	}
	sort.Strings(routes)
	return routes
}
