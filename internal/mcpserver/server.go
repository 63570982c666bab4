// Package mcpserver exposes the notebook workspace as MCP (Model Context
// Protocol) tools over stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/nbserde/internal/apperr"
	"github.com/starford/nbserde/internal/cellconv"
	"github.com/starford/nbserde/internal/models"
	"github.com/starford/nbserde/internal/nbservice"
	"github.com/starford/nbserde/pkg/json"
)

// Server wraps the MCP server with the notebook tools.
type Server struct {
	mcp     *server.MCPServer
	svc     *nbservice.Service
	fetcher *fetcher
}

// New creates an MCP server with all notebook tools registered.
func New(svc *nbservice.Service, version string) *Server {
	s := &Server{svc: svc, fetcher: newFetcher()}

	s.mcp = server.NewMCPServer(
		"nbserde",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notebooks",
		mcp.WithDescription("List notebooks in the workspace with their language and cell counts."),
		mcp.WithString("language", mcp.Description("Only notebooks whose default language is this editor language id")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries (default 50)")),
	), s.listNotebooks)

	s.mcp.AddTool(mcp.NewTool("read_notebook",
		mcp.WithDescription("Read a notebook. format=model returns the decoded cells and metadata; format=raw returns the stored JSON."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the notebook (e.g. analysis/sales.ipynb)")),
		mcp.WithString("format", mcp.Enum("model", "raw"), mcp.Description("Output format (default model)")),
	), s.readNotebook)

	s.mcp.AddTool(mcp.NewTool("search_notebooks",
		mcp.WithDescription("Full-text search through the sources of all notebook cells."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotebooks)

	s.mcp.AddTool(mcp.NewTool("create_notebook",
		mcp.WithDescription("Create a notebook. Without content a blank notebook with one empty code cell is created. "+
			"Content must be notebook JSON as described by get_notebook_format; it is normalized before saving."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the new notebook (must end with .ipynb)")),
		mcp.WithString("content", mcp.Description("Optional notebook JSON")),
	), s.createNotebook)

	s.mcp.AddTool(mcp.NewTool("append_cell",
		mcp.WithDescription("Append a cell to the end of a notebook."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the notebook")),
		mcp.WithString("kind", mcp.Required(), mcp.Enum("code", "markup"), mcp.Description("Cell kind")),
		mcp.WithString("source", mcp.Required(), mcp.Description("Cell source text")),
		mcp.WithString("language", mcp.Description("Language of a code cell; \"raw\" stores a raw cell")),
		mcp.WithString("if_match", mcp.Description("Checksum the stored notebook must have")),
	), s.appendCell)

	s.mcp.AddTool(mcp.NewTool("attach_image",
		mcp.WithDescription("Download an image (http/https URL or base64 data URI) and append it to a notebook "+
			"as a markdown cell carrying the image as a cell attachment."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the notebook")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Image URL or data URI")),
		mcp.WithString("filename", mcp.Description("Attachment name (derived from the URL when omitted)")),
		mcp.WithString("alt", mcp.Description("Alt text for the image")),
	), s.attachImage)

	s.mcp.AddTool(mcp.NewTool("language_stats",
		mcp.WithDescription("Languages of opened notebooks with open counts and catalog totals."),
	), s.languageStats)

	s.mcp.AddTool(mcp.NewTool("get_notebook_format",
		mcp.WithDescription("Returns the stored notebook format. Read it before creating notebooks from JSON."),
	), s.getNotebookFormat)

	s.mcp.AddResource(
		mcp.NewResource(FormatURI, "Notebook Format",
			mcp.WithResourceDescription("Shape of stored .ipynb notebook documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func toolError(path string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path))
	case errors.Is(err, apperr.ErrAlreadyExists):
		return mcp.NewToolResultError(fmt.Sprintf("notebook already exists: %s", path))
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError(fmt.Sprintf("checksum mismatch: %s", path))
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func (s *Server) listNotebooks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, total, err := s.svc.List(ctx, req.GetInt("limit", 50), 0, req.GetString("language", ""), "path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"notebooks": items, "total": total})
}

func (s *Server) readNotebook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if req.GetString("format", "model") == "raw" {
		data, err := s.svc.Raw(ctx, path)
		if err != nil {
			return toolError(path, err), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
	detail, err := s.svc.Open(ctx, path)
	if err != nil {
		return toolError(path, err), nil
	}
	return jsonResult(detail)
}

func (s *Server) searchNotebooks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) createNotebook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.Create(ctx, path, []byte(req.GetString("content", "")))
	if err != nil {
		return toolError(path, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%d cells, checksum %s)", path, len(detail.Notebook.Cells), detail.Checksum)), nil
}

func (s *Server) appendCell(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kindText, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var kind models.CellKind
	if err := kind.UnmarshalText([]byte(kindText)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cell := models.Cell{Kind: kind, Source: source, Metadata: map[string]any{}}
	if kind == models.CellKindMarkup {
		cell.Language = cellconv.LanguageMarkdown
	} else {
		cell.Language = req.GetString("language", "")
		cell.Outputs = []map[string]any{}
	}

	detail, err := s.svc.AppendCell(ctx, path, cell, req.GetString("if_match", ""))
	if err != nil {
		return toolError(path, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("appended %s cell %d to %s (checksum %s)",
		kind, len(detail.Notebook.Cells)-1, path, detail.Checksum)), nil
}

func (s *Server) languageStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.svc.Languages(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(stats)
}

func (s *Server) getNotebookFormat(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NotebookFormatContract), nil
}

func (s *Server) readFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatURI,
			MIMEType: "text/markdown",
			Text:     NotebookFormatContract,
		},
	}, nil
}
