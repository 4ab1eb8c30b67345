// Package mcp provides the MCP (Model Context Protocol) server for appgraph.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dmaclachlan/appgraph/internal/config"
	"github.com/dmaclachlan/appgraph/internal/graph"
	"github.com/dmaclachlan/appgraph/internal/ingestion"
	"github.com/dmaclachlan/appgraph/internal/query"
)

// Server answers MCP requests over stdio against a build session.
type Server struct {
	session  *ingestion.Session
	settings *config.Settings
	server   *mcp.Server
}

// Tool describes one callable tool in the tools/list response.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource describes one readable resource in the resources/list response.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server around a build session.
func NewServer(session *ingestion.Session, settings *config.Settings) *Server {
	s := &Server{
		session:  session,
		settings: settings,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "appgraph",
		Version: "0.1.0",
	}, nil)

	s.registerTools()
	s.registerResources()

	return s
}

// ListTools returns the tool table served by tools/list.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "appgraph_search",
			Description: "Select nodes whose serialized data matches a case-insensitive regular expression. Returns the matching records with their keys.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"pattern": {Type: "string", Description: "Regular expression matched against serialized node data"},
					"edges":   {Type: "boolean", Description: "Also match against outgoing edge data"},
					"ignore": {
						Type:        "array",
						Items:       &jsonschema.Schema{Type: "string"},
						Description: "Node types to exclude from the selection",
					},
					"limit": {Type: "integer", Description: "Maximum number of results"},
				},
				Required: []string{"pattern"},
			},
		},
		{
			Name:        "appgraph_expand",
			Description: "Show a node together with its parents (predecessors) and children (successors), expanded to a traversal depth.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"node":      {Type: "string", Description: "Node key or display name to expand"},
					"direction": {Type: "string", Description: "parents, children, or both"},
					"depth":     {Type: "integer", Description: "Maximum traversal depth"},
					"ignore": {
						Type:        "array",
						Items:       &jsonschema.Schema{Type: "string"},
						Description: "Node types to skip while walking",
					},
				},
				Required: []string{"node"},
			},
		},
		{
			Name:        "appgraph_missing",
			Description: "Report undefined references: keys other records point at that no record defines.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
		{
			Name:        "appgraph_orphans",
			Description: "Report orphaned artifacts: defined records, such as formflows or images, that no other record references.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
		{
			Name:        "appgraph_rebuild",
			Description: "Rescan the application definition and swap in a freshly built graph.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
	}
}

// ListResources returns the resource table served by resources/list.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "appgraph://overview",
			Name:        "Graph Overview",
			Description: "High-level statistics about the application definition graph",
			MimeType:    "text/plain",
		},
		{
			URI:         "appgraph://missing",
			Name:        "Undefined References",
			Description: "Keys referenced by other records but never defined",
			MimeType:    "text/plain",
		},
		{
			URI:         "appgraph://orphans",
			Name:        "Orphaned Artifacts",
			Description: "Defined records no other record references",
			MimeType:    "text/plain",
		},
		{
			URI:         "appgraph://schema",
			Name:        "Graph Schema",
			Description: "Node types and link types the graph is built from",
			MimeType:    "text/plain",
		},
	}
}

// CallTool runs the named tool against the current graph and returns
// its markdown report.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "appgraph_search":
		pattern, _ := args["pattern"].(string)
		edges, _ := args["edges"].(bool)
		limit, _ := args["limit"].(float64)
		if limit == 0 {
			limit = 20
		}
		return handleSearch(s.session.Graph(), pattern, stringList(args["ignore"]), edges, int(limit))
	case "appgraph_expand":
		node, _ := args["node"].(string)
		direction, _ := args["direction"].(string)
		depth, _ := args["depth"].(float64)
		if depth == 0 {
			depth = float64(s.settings.MaxLevel)
		}
		return handleExpand(s.session.Graph(), node, direction, int(depth), stringList(args["ignore"]))
	case "appgraph_missing":
		return missingReport(s.session.Graph()), nil
	case "appgraph_orphans":
		return orphansReport(s.session.Graph()), nil
	case "appgraph_rebuild":
		return handleRebuild(ctx, s.session)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource renders the resource named by uri.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "appgraph://overview":
		return getOverview(s.session), nil
	case "appgraph://missing":
		return missingReport(s.session.Graph()), nil
	case "appgraph://orphans":
		return orphansReport(s.session.Graph()), nil
	case "appgraph://schema":
		return getSchema(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run serves JSON-RPC over the given stdio pair until the input ends
// or ctx is canceled.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	// The protocol requires compact JSON, one message per line, so the
	// encoder must never be given an indent.
	encoder := json.NewEncoder(stdout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		// Unparsable lines are dropped; there is no id to answer with.
		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}

		resp := s.handleRequest(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]any{
				"name":    "appgraph",
				"version": "0.1.0",
			},
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
				"resources": map[string]any{
					"listChanged": false,
				},
			},
		},
	}
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		schema, _ := json.Marshal(tool.InputSchema)
		var schemaMap map[string]any
		json.Unmarshal(schema, &schemaMap)

		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": schemaMap,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"tools": toolList,
		},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": result,
				},
			},
		},
	}
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"resources": resourceList,
		},
	}
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)

	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"contents": []map[string]any{
				{
					"uri":      uri,
					"mimeType": "text/plain",
					"text":     content,
				},
			},
		},
	}
}

// Tool Handlers

func handleSearch(g *graph.Graph, pattern string, ignore []string, edges bool, limit int) (string, error) {
	if pattern == "" {
		return "No pattern provided", nil
	}

	matches, err := query.Select(g, pattern, query.Options{Ignore: ignore, IncludeEdges: edges})
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "No matches found", nil
	}

	total := len(matches)
	if total > limit {
		matches = matches[:limit]
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d matches for '%s'", total, pattern))
	if len(matches) < total {
		sb.WriteString(fmt.Sprintf(" (showing first %d)", len(matches)))
	}
	sb.WriteString(":\n\n")

	for i, m := range matches {
		sb.WriteString(fmt.Sprintf("%d. **%s**\n", i+1, m.Key))
		if line := query.Serialize(m.Data); line != "" {
			sb.WriteString(fmt.Sprintf("   %s\n", line))
		} else {
			sb.WriteString("   undefined reference\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Next: Use `appgraph_expand` on a key to see its parents and children.")

	return sb.String(), nil
}

// resolveKey maps a tool argument onto a graph key. Exact keys win,
// then display names, then the argument is tried as a literal match
// against serialized node data.
func resolveKey(g *graph.Graph, symbol string) (string, error) {
	if g.Node(symbol) != nil {
		return symbol, nil
	}

	if nodes := g.NodesByName(symbol); len(nodes) > 0 {
		return nodes[0].Key, nil
	}

	matches, err := query.Select(g, regexp.QuoteMeta(symbol), query.Options{})
	if err == nil && len(matches) > 0 {
		return matches[0].Key, nil
	}

	return "", fmt.Errorf("node '%s' not found", symbol)
}

func handleExpand(g *graph.Graph, node, direction string, depth int, ignore []string) (string, error) {
	if node == "" {
		return "No node provided", nil
	}

	wantParents := direction == "" || direction == "both" || direction == "parents"
	wantChildren := direction == "" || direction == "both" || direction == "children"
	if !wantParents && !wantChildren {
		return fmt.Sprintf("Unknown direction '%s'. Use parents, children, or both.", direction), nil
	}

	key, err := resolveKey(g, node)
	if err != nil {
		return fmt.Sprintf("Node '%s' not found in the graph", node), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Expansion for: **%s**\n\n", key))
	if data := query.Annotate(g, key); data != nil {
		sb.WriteString(query.Serialize(data) + "\n\n")
	} else {
		sb.WriteString("Undefined reference: no record defines this key.\n\n")
	}

	if wantParents {
		sb.WriteString("## Parents (predecessors)\n\n")
		writeWalk(&sb, g, key, query.Parents, depth, ignore)
		sb.WriteString("\n")
	}

	if wantChildren {
		sb.WriteString("## Children (successors)\n\n")
		writeWalk(&sb, g, key, query.Children, depth, ignore)
		sb.WriteString("\n")
	}

	sb.WriteString("Next: Use `appgraph_search` to select another set of nodes.")

	return sb.String(), nil
}

// writeWalk renders one traversal direction as an indented list, edges
// under the node they lead to.
func writeWalk(sb *strings.Builder, g *graph.Graph, start string, dir query.Direction, depth int, ignore []string) {
	found := false
	query.Walk(g, start, dir, depth, ignore, func(step query.Step) {
		found = true
		indent := strings.Repeat("  ", step.Depth-1)
		switch {
		case step.Undefined:
			sb.WriteString(fmt.Sprintf("%s- %s (undefined reference)\n", indent, step.Key))
		case step.Revisited:
			sb.WriteString(fmt.Sprintf("%s- %s (revisited)\n", indent, query.Serialize(step.Data)))
		default:
			sb.WriteString(fmt.Sprintf("%s- %s\n", indent, query.Serialize(step.Data)))
		}
		for _, edge := range step.Edges {
			sb.WriteString(fmt.Sprintf("%s  via %s\n", indent, query.Serialize(edge.Data())))
		}
	})
	if !found {
		sb.WriteString("(none)\n")
	}
}

func missingReport(g *graph.Graph) string {
	missing := ingestion.MissingData(g)

	var sb strings.Builder
	sb.WriteString("## Undefined References\n\n")

	if len(missing) == 0 {
		sb.WriteString("✅ **Every referenced node has data.**\n\n")
		sb.WriteString(fmt.Sprintf("The graph contains **%d nodes**, all defined.\n", g.NodeCount()))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("⚠️ **Found %d undefined references**\n\n", len(missing)))
	sb.WriteString("These keys are referenced by other records but carry no data of their own. ")
	sb.WriteString("They usually point at artifacts that were deleted, renamed, or never shipped.\n\n")

	for _, m := range missing {
		sb.WriteString(fmt.Sprintf("### %s\n\n", m.Key))
		for _, caller := range m.Callers {
			sb.WriteString(fmt.Sprintf("- from %s\n", query.Serialize(caller.Data)))
			for _, edge := range caller.Edges {
				sb.WriteString(fmt.Sprintf("  via %s\n", query.Serialize(edge)))
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString("**Next:** Fix the referencing records or restore the missing artifacts.")

	return sb.String()
}

func orphansReport(g *graph.Graph) string {
	orphans := ingestion.Orphans(g)

	var sb strings.Builder
	sb.WriteString("## Orphaned Artifacts\n\n")

	if len(orphans) == 0 {
		sb.WriteString("✅ **Every artifact is referenced.**\n\n")
		sb.WriteString("No defined record sits outside the reference graph.\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("⚠️ **Found %d orphaned artifacts**\n\n", len(orphans)))
	sb.WriteString("These records are defined but nothing references them. ")
	sb.WriteString("Entities, modules, tests, and aggregation properties are exempt, as they are ")
	sb.WriteString("entry points rather than reference targets.\n\n")

	for _, o := range orphans {
		sb.WriteString(fmt.Sprintf("- **%s**: %s\n", o.Key, query.Serialize(o.Data)))
	}

	sb.WriteString("\n**Next:** Wire these artifacts up or retire them.")

	return sb.String()
}

// handleRebuild rebuilds in memory only. The on-disk cache is refreshed
// by the file watcher or the next build command.
func handleRebuild(ctx context.Context, session *ingestion.Session) (string, error) {
	result, err := session.Rebuild(ctx, nil, nil)
	if err != nil {
		return fmt.Sprintf("Rebuild failed: %s. The previous graph is still being served.", err), nil
	}

	return fmt.Sprintf("Rebuilt graph: %d files scanned, %d nodes, %d edges in %.2fs",
		result.Files, result.Nodes, result.Edges, result.Duration.Seconds()), nil
}

// Resource Handlers

func getOverview(session *ingestion.Session) string {
	g := session.Graph()

	var sb strings.Builder
	sb.WriteString("# Application Definition Graph\n\n")
	sb.WriteString(fmt.Sprintf("**Nodes:** %d\n", g.NodeCount()))
	sb.WriteString(fmt.Sprintf("**Edges:** %d\n", g.EdgeCount()))
	sb.WriteString(fmt.Sprintf("**Undefined references:** %d\n", len(g.Undefined())))

	kinds := []graph.Kind{
		graph.KindEntity,
		graph.KindProperty,
		graph.KindCommand,
		graph.KindCondition,
		graph.KindFormflow,
		graph.KindTemplate,
		graph.KindTile,
		graph.KindTask,
		graph.KindModule,
		graph.KindImage,
		graph.KindSound,
		graph.KindIndex,
		graph.KindTest,
		graph.KindLink,
	}

	if g.NodeCount() > 0 {
		sb.WriteString("\n## Nodes by Type\n\n")
		for _, kind := range kinds {
			if n := g.CountByKind(kind); n > 0 {
				sb.WriteString(fmt.Sprintf("- %s: %d\n", kind, n))
			}
		}
	}

	if result := session.Result(); result != nil {
		sb.WriteString("\n## Last Build\n\n")
		sb.WriteString(fmt.Sprintf("- Files scanned: %d\n", result.Files))
		sb.WriteString(fmt.Sprintf("- Records skipped: %d\n", result.Skipped))
		sb.WriteString(fmt.Sprintf("- Lookup misses: %d\n", result.Misses))
		sb.WriteString(fmt.Sprintf("- Duration: %.2fs\n", result.Duration.Seconds()))
	}

	return sb.String()
}

func getSchema() string {
	var sb strings.Builder
	sb.WriteString("# Application Definition Graph Schema\n\n")
	sb.WriteString("## Node Types\n\n")
	sb.WriteString("| Type | Description | Key Properties |\n")
	sb.WriteString("|------|-------------|----------------|\n")
	sb.WriteString("| `entity` | Business entity | name, properties |\n")
	sb.WriteString("| `property` | Property rule on an entity | name, entity, rule_type |\n")
	sb.WriteString("| `command` | Command rule a task can run | name, entity, rule_type |\n")
	sb.WriteString("| `condition` | Conditional expression | name, entity, active, expression |\n")
	sb.WriteString("| `formflow` | Form flow definition | name, entity, active, form_factor |\n")
	sb.WriteString("| `task` | Step inside a formflow | task, name, active |\n")
	sb.WriteString("| `template` | Form template | name, entity, active |\n")
	sb.WriteString("| `tile` | Tile on a template | name, description, entity |\n")
	sb.WriteString("| `module` | Navigation module | name, code |\n")
	sb.WriteString("| `index` | Search index | name, entity, field, property |\n")
	sb.WriteString("| `image` | Image asset | name, file, active |\n")
	sb.WriteString("| `sound` | Sound asset | name, file |\n")
	sb.WriteString("| `test` | Business test feature | name |\n")
	sb.WriteString("| `link` | Connector between artifacts | link_type, name |\n")
	sb.WriteString("\n## Link Types\n\n")
	sb.WriteString("Edges carry a `link_type` naming the relationship. Structural links include ")
	sb.WriteString("`formflow entity`, `template entity`, and `entity index`; navigation links include ")
	sb.WriteString("`show form`, `jump to formflow`, and `module`; rule links include `run command`, ")
	sb.WriteString("`calculated property`, `defaulting rule`, `validation rule`, and `lookup rule`; ")
	sb.WriteString("asset links include `formflow icon`, `static image`, `background image`, and `play sound`.\n")
	return sb.String()
}

// Helper functions

func stringList(arg any) []string {
	items, _ := arg.([]any)
	list := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			list = append(list, s)
		}
	}
	return list
}

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}

// registerTools hooks tool dispatch into the sdk server. Dispatch
// itself lives in ListTools and CallTool.
func (s *Server) registerTools() {}

// registerResources hooks resource dispatch into the sdk server.
// Dispatch itself lives in ListResources and ReadResource.
func (s *Server) registerResources() {}
