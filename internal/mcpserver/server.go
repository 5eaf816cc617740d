// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes taxonomy tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/taxport/internal/apperr"
	"github.com/starford/taxport/internal/pipeline"
)

const sourceFormatURI = "taxport://source-format"

// Server wraps the MCP server with taxonomy tools.
type Server struct {
	mcp *server.MCPServer
	svc *pipeline.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *pipeline.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Taxport",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("run_transform",
		mcp.WithDescription("Regenerate the taxonomy export from the YAML sources. "+
			"Returns the run status report including limit warnings."),
	), s.runTransform)

	s.mcp.AddTool(mcp.NewTool("get_status",
		mcp.WithDescription("Return the status report of the last transform run."),
	), s.getStatus)

	s.mcp.AddTool(mcp.NewTool("search_concepts",
		mcp.WithDescription("Search concepts of the last successful export by id, label or alternative label."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Substring to search for")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 20)")),
	), s.searchConcepts)

	s.mcp.AddTool(mcp.NewTool("get_concept",
		mcp.WithDescription("Return a single concept of the last successful export."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Concept id")),
	), s.getConcept)

	s.mcp.AddTool(mcp.NewTool("list_sources",
		mcp.WithDescription("List the YAML source files with their checksums."),
	), s.listSources)

	s.mcp.AddTool(mcp.NewTool("get_source_format",
		mcp.WithDescription("Returns the YAML source format contract. "+
			"Call this before editing categories or subcategory files."),
	), s.getSourceFormat)

	s.mcp.AddResource(
		mcp.NewResource(sourceFormatURI, "Source Format Contract",
			mcp.WithResourceDescription("YAML format of the core categories and subcategory files."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSourceFormatResource,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) runTransform(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := s.svc.Run(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(out.Report), nil
}

func (s *Server) getStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.svc.Status()
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError("no run recorded yet"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rep), nil
}

func (s *Server) searchConcepts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	runs := s.svc.Runs()
	if runs == nil {
		return mcp.NewToolResultError("run log disabled"), nil
	}
	hits, err := runs.SearchConcepts(query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText("no concepts found"), nil
	}
	return jsonResult(hits), nil
}

func (s *Server) getConcept(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	runs := s.svc.Runs()
	if runs == nil {
		return mcp.NewToolResultError("run log disabled"), nil
	}
	c, err := runs.GetConcept(id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(c), nil
}

func (s *Server) listSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metas, err := s.svc.Sources()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lines := make([]string, 0, len(metas))
	for _, m := range metas {
		lines = append(lines, m.Path+"\t"+m.Checksum)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getSourceFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(SourceFormatContract), nil
}

func (s *Server) readSourceFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      sourceFormatURI,
			MIMEType: "text/markdown",
			Text:     SourceFormatContract,
		},
	}, nil
}
