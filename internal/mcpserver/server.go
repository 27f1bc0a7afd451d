// Package mcpserver exposes the knowledge commands as MCP (Model Context
// Protocol) tools over stdio, for LLM coding agents.
package mcpserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/arpa73/AIKnowSys-sub002/internal/apperr"
	"github.com/arpa73/AIKnowSys-sub002/internal/knowledge"
	"github.com/arpa73/AIKnowSys-sub002/internal/models"
)

// Server wraps the MCP server with the knowledge tools.
type Server struct {
	mcp *server.MCPServer
	svc *knowledge.Service
}

// New creates an MCP server with every command mapped 1:1 to a tool.
func New(svc *knowledge.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"AIKnowSys",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("create_record",
		mcp.WithDescription("Create a session, plan, or pattern record. Writes the markdown file "+
			"and updates the index in one operation. Fields follow the record format contract "+
			"(see the get_record_contract tool)."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Record type: session, plan, or pattern")),
		mcp.WithObject("fields", mcp.Description("Frontmatter fields (id, status, topics, author, ...); unknown fields are preserved")),
	), s.createRecord)

	s.mcp.AddTool(mcp.NewTool("update_record",
		mcp.WithDescription("Merge partial fields into an existing record. Unspecified fields are "+
			"preserved; the markdown body is never touched."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Record type: session, plan, or pattern")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record id")),
		mcp.WithObject("fields", mcp.Required(), mcp.Description("Fields to merge (e.g. {\"status\": \"ACTIVE\"})")),
	), s.updateRecord)

	s.mcp.AddTool(mcp.NewTool("query_records",
		mcp.WithDescription("Query records by status, topic, and creation date range. The index is "+
			"reconciled with the markdown tree first, so manual edits are picked up."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Record type: session, plan, or pattern")),
		mcp.WithString("status", mcp.Description("Exact status match (e.g. ACTIVE)")),
		mcp.WithString("topic", mcp.Description("Topic tag the record must carry")),
		mcp.WithString("since", mcp.Description("Inclusive lower bound on created (RFC 3339 or YYYY-MM-DD)")),
		mcp.WithString("until", mcp.Description("Inclusive upper bound on created (RFC 3339 or YYYY-MM-DD)")),
		mcp.WithBoolean("newest_first", mcp.Description("Sort by created descending")),
	), s.queryRecords)

	s.mcp.AddTool(mcp.NewTool("read_record",
		mcp.WithDescription("Read one record: its metadata and the markdown body."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Record type: session, plan, or pattern")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record id")),
	), s.readRecord)

	s.mcp.AddTool(mcp.NewTool("archive_records",
		mcp.WithDescription("Move records last updated more than N days ago into the archive tree. "+
			"N=0 archives everything up to now."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Record type: session, plan, or pattern")),
		mcp.WithNumber("older_than_days", mcp.Required(), mcp.Description("Age threshold in days; 0 means everything")),
	), s.archiveRecords)

	s.mcp.AddTool(mcp.NewTool("rebuild_index",
		mcp.WithDescription("Force a full index rebuild from the markdown tree. Returns the record count."),
		mcp.WithString("type", mcp.Description("Optional type to report the count for")),
	), s.rebuildIndex)

	s.mcp.AddTool(mcp.NewTool("search_knowledge",
		mcp.WithDescription("Full-text search across record bodies, ids, and topics."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("type", mcp.Description("Optional type filter")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 20)")),
	), s.searchKnowledge)

	s.mcp.AddTool(mcp.NewTool("get_record_contract",
		mcp.WithDescription("Returns the canonical record format contract. Call this before creating "+
			"records to use the right fields and statuses."),
	), s.getRecordContract)

	s.mcp.AddResource(
		mcp.NewResource("aiknowsys://record-format", "Record Format Contract",
			mcp.WithResourceDescription("Canonical markdown record format for sessions, plans, and patterns."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRecordFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// toolError renders err as a structured failure object with a taxonomy
// kind and a human-readable message, never a bare string.
func toolError(err error) *mcp.CallToolResult {
	payload, _ := json.Marshal(map[string]string{
		"kind":    apperr.Kind(err),
		"message": err.Error(),
	})
	return mcp.NewToolResultError(string(payload))
}

func toolJSON(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func requireType(req mcp.CallToolRequest) (models.RecordType, *mcp.CallToolResult) {
	raw, err := req.RequireString("type")
	if err != nil {
		return "", toolError(apperr.Validationf("%v", err))
	}
	t, err := models.ParseType(raw)
	if err != nil {
		return "", toolError(err)
	}
	return t, nil
}

func fieldsArg(req mcp.CallToolRequest) map[string]any {
	if raw, ok := req.GetArguments()["fields"].(map[string]any); ok {
		return raw
	}
	return map[string]any{}
}

func (s *Server) createRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, errRes := requireType(req)
	if errRes != nil {
		return errRes, nil
	}
	rec, err := s.svc.Create(t, fieldsArg(req))
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(rec), nil
}

func (s *Server) updateRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, errRes := requireType(req)
	if errRes != nil {
		return errRes, nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return toolError(apperr.Validationf("%v", err)), nil
	}
	rec, err := s.svc.Update(t, id, fieldsArg(req))
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(rec), nil
}

func (s *Server) queryRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, errRes := requireType(req)
	if errRes != nil {
		return errRes, nil
	}
	newestFirst, _ := req.GetArguments()["newest_first"].(bool)
	f := knowledge.Filter{
		Status:      req.GetString("status", ""),
		NewestFirst: newestFirst,
	}
	if topic := req.GetString("topic", ""); topic != "" {
		f.Topics = []string{topic}
	}
	var err error
	if f.Since, err = parseDateArg(req.GetString("since", "")); err != nil {
		return toolError(err), nil
	}
	if f.Until, err = parseDateArg(req.GetString("until", "")); err != nil {
		return toolError(err), nil
	}
	recs, err := s.svc.Query(t, f)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(recs), nil
}

func (s *Server) readRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, errRes := requireType(req)
	if errRes != nil {
		return errRes, nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return toolError(apperr.Validationf("%v", err)), nil
	}
	rec, body, err := s.svc.Get(t, id)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(map[string]any{
		"record": rec,
		"body":   body,
	}), nil
}

func (s *Server) archiveRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, errRes := requireType(req)
	if errRes != nil {
		return errRes, nil
	}
	// Read the threshold without a default: 0 is a meaningful value
	// ("everything up to now"), so absence must be an error instead of
	// silently coalescing.
	raw, ok := req.GetArguments()["older_than_days"].(float64)
	if !ok {
		return toolError(apperr.Validationf("older_than_days is required")), nil
	}
	moved, err := s.svc.Archive(t, int(raw))
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(map[string]any{
		"archived": len(moved),
		"records":  moved,
	}), nil
}

func (s *Server) rebuildIndex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var t models.RecordType
	if raw := req.GetString("type", ""); raw != "" {
		parsed, err := models.ParseType(raw)
		if err != nil {
			return toolError(err), nil
		}
		t = parsed
	}
	count, err := s.svc.Rebuild(t)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(map[string]int{"records": count}), nil
}

func (s *Server) searchKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return toolError(apperr.Validationf("%v", err)), nil
	}
	typ := req.GetString("type", "")
	if typ != "" {
		if _, err := models.ParseType(typ); err != nil {
			return toolError(err), nil
		}
	}
	limit := 20
	if raw, ok := req.GetArguments()["limit"].(float64); ok {
		limit = int(raw)
	}
	results, err := s.svc.Search(query, typ, limit)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(results), nil
}

func (s *Server) getRecordContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecordFormatContract), nil
}

func (s *Server) readRecordFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "aiknowsys://record-format",
			MIMEType: "text/markdown",
			Text:     RecordFormatContract,
		},
	}, nil
}

func parseDateArg(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperr.Validationf("unparsable date %q (want RFC 3339 or YYYY-MM-DD)", s)
}
