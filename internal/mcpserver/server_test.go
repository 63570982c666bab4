package mcpserver

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/nbserde/internal/models"
	"github.com/starford/nbserde/internal/storage"
	"github.com/starford/nbserde/internal/testutil"
	"github.com/starford/nbserde/pkg/json"
)

// 1x1 transparent PNG.
const pixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()
	svc, store, _ := testutil.TestService(t)
	return New(svc, "test"), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"list_notebooks":      srv.listNotebooks,
		"read_notebook":       srv.readNotebook,
		"search_notebooks":    srv.searchNotebooks,
		"create_notebook":     srv.createNotebook,
		"append_cell":         srv.appendCell,
		"attach_image":        srv.attachImage,
		"language_stats":      srv.languageStats,
		"get_notebook_format": srv.getNotebookFormat,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func readModel(t *testing.T, srv *Server, path string) *models.Notebook {
	t.Helper()
	r := callTool(t, srv, "read_notebook", map[string]any{"path": path})
	if r.IsError {
		t.Fatalf("read_notebook: %s", resultText(r))
	}
	var detail struct {
		Notebook models.Notebook `json:"notebook"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &detail); err != nil {
		t.Fatalf("decode read result: %v", err)
	}
	return &detail.Notebook
}

func TestCreateAndReadNotebook(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_notebook", map[string]any{
		"path":    "sales.ipynb",
		"content": testutil.SampleNotebook,
	})
	if r.IsError || !strings.HasPrefix(resultText(r), "created: sales.ipynb (2 cells") {
		t.Fatalf("create result = %q", resultText(r))
	}

	nb := readModel(t, srv, "sales.ipynb")
	if len(nb.Cells) != 2 || nb.Cells[0].Kind != models.CellKindMarkup || nb.Cells[1].Language != "python" {
		t.Errorf("cells = %+v", nb.Cells)
	}

	r = callTool(t, srv, "read_notebook", map[string]any{"path": "sales.ipynb", "format": "raw"})
	if !strings.Contains(resultText(r), `"orig_nbformat": 4`) {
		t.Errorf("raw read = %q", resultText(r))
	}
}

func TestCreateBlankNotebook(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_notebook", map[string]any{"path": "blank.ipynb"})
	if r.IsError {
		t.Fatalf("create: %s", resultText(r))
	}
	nb := readModel(t, srv, "blank.ipynb")
	if len(nb.Cells) != 1 || nb.Cells[0].Kind != models.CellKindCode || nb.Cells[0].Source != "" {
		t.Errorf("blank notebook cells = %+v", nb.Cells)
	}
}

func TestCreateNotebookDuplicate(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_notebook", map[string]any{"path": "dup.ipynb"})
	r := callTool(t, srv, "create_notebook", map[string]any{"path": "dup.ipynb"})
	if !r.IsError || !strings.Contains(resultText(r), "already exists") {
		t.Errorf("duplicate create = %q (error=%v)", resultText(r), r.IsError)
	}
}

func TestCreateNotebookMalformed(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_notebook", map[string]any{"path": "bad.ipynb", "content": `{"cells": [`})
	if !r.IsError {
		t.Error("expected error for malformed content")
	}
}

func TestListNotebooks(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_notebook", map[string]any{"path": "a.ipynb", "content": testutil.SampleNotebook})
	_ = callTool(t, srv, "create_notebook", map[string]any{"path": "b.ipynb"})

	r := callTool(t, srv, "list_notebooks", map[string]any{})
	var resp struct {
		Notebooks []map[string]any `json:"notebooks"`
		Total     int              `json:"total"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if resp.Total != 2 || len(resp.Notebooks) != 2 {
		t.Errorf("list = %+v", resp)
	}
}

func TestReadNotebookMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_notebook", map[string]any{"path": "nope.ipynb"})
	if !r.IsError || resultText(r) != "not found: nope.ipynb" {
		t.Errorf("missing read = %q", resultText(r))
	}
}

func TestAppendCell(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_notebook", map[string]any{"path": "grow.ipynb", "content": testutil.SampleNotebook})

	r := callTool(t, srv, "append_cell", map[string]any{
		"path":   "grow.ipynb",
		"kind":   "markup",
		"source": "## Notes",
	})
	if r.IsError {
		t.Fatalf("append: %s", resultText(r))
	}
	r = callTool(t, srv, "append_cell", map[string]any{
		"path":     "grow.ipynb",
		"kind":     "code",
		"source":   "raw text",
		"language": "raw",
	})
	if r.IsError {
		t.Fatalf("append raw: %s", resultText(r))
	}

	nb := readModel(t, srv, "grow.ipynb")
	if len(nb.Cells) != 4 {
		t.Fatalf("len(cells) = %d, want 4", len(nb.Cells))
	}
	if c := nb.Cells[2]; c.Kind != models.CellKindMarkup || c.Source != "## Notes" {
		t.Errorf("cell 2 = %+v", c)
	}
	if c := nb.Cells[3]; c.Language != "raw" {
		t.Errorf("cell 3 language = %q, want raw", c.Language)
	}
}

func TestAppendCellConflict(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_notebook", map[string]any{"path": "lock.ipynb"})
	r := callTool(t, srv, "append_cell", map[string]any{
		"path":     "lock.ipynb",
		"kind":     "code",
		"source":   "x",
		"if_match": "stale",
	})
	if !r.IsError || !strings.Contains(resultText(r), "checksum mismatch") {
		t.Errorf("conflict = %q", resultText(r))
	}
}

func TestAppendCellUnknownKind(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_notebook", map[string]any{"path": "k.ipynb"})
	r := callTool(t, srv, "append_cell", map[string]any{"path": "k.ipynb", "kind": "widget", "source": "x"})
	if !r.IsError {
		t.Error("expected error for unknown kind")
	}
}

func TestSearchNotebooks(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_notebook", map[string]any{"path": "find.ipynb", "content": testutil.SampleNotebook})

	r := callTool(t, srv, "search_notebooks", map[string]any{"query": "Quarterly"})
	if r.IsError || !strings.Contains(resultText(r), "find.ipynb") {
		t.Errorf("search = %q", resultText(r))
	}
}

func TestAttachImage_DataURI(t *testing.T) {
	srv, store := testServer(t)
	_ = callTool(t, srv, "create_notebook", map[string]any{"path": "img.ipynb"})

	r := callTool(t, srv, "attach_image", map[string]any{
		"path":     "img.ipynb",
		"url":      "data:image/png;base64," + pixelPNG,
		"filename": "pixel.png",
		"alt":      "a pixel",
	})
	if r.IsError {
		t.Fatalf("attach: %s", resultText(r))
	}

	raw, err := store.Read("img.ipynb")
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	_ = json.Unmarshal(raw, &doc)
	cells := doc["cells"].([]any)
	last := cells[len(cells)-1].(map[string]any)
	if last["cell_type"] != "markdown" {
		t.Errorf("cell_type = %v", last["cell_type"])
	}
	att := last["attachments"].(map[string]any)["pixel.png"].(map[string]any)
	if att["image/png"] != pixelPNG {
		t.Errorf("attachment data = %v", att["image/png"])
	}
	if src := last["source"].([]any); len(src) != 1 || src[0] != "![a pixel](attachment:pixel.png)" {
		t.Errorf("source = %v", src)
	}
}

func TestAttachImage_HTTP(t *testing.T) {
	png, _ := base64.StdEncoding.DecodeString(pixelPNG)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}))
	defer ts.Close()

	srv, _ := testServer(t)
	srv.fetcher.allowHost = func(string) error { return nil }
	_ = callTool(t, srv, "create_notebook", map[string]any{"path": "web.ipynb"})

	r := callTool(t, srv, "attach_image", map[string]any{"path": "web.ipynb", "url": ts.URL + "/charts/q1.png"})
	if r.IsError {
		t.Fatalf("attach: %s", resultText(r))
	}
	nb := readModel(t, srv, "web.ipynb")
	last := nb.Cells[len(nb.Cells)-1]
	if _, ok := last.Attachments["q1.png"]; !ok {
		t.Errorf("attachments = %v", last.Attachments)
	}
}

func TestAttachImage_LoopbackBlocked(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_notebook", map[string]any{"path": "x.ipynb"})
	r := callTool(t, srv, "attach_image", map[string]any{"path": "x.ipynb", "url": "http://127.0.0.1/a.png"})
	if !r.IsError || !strings.Contains(resultText(r), "loopback") {
		t.Errorf("loopback fetch = %q", resultText(r))
	}
}

func TestAttachImage_RejectsMismatchedContent(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_notebook", map[string]any{"path": "x.ipynb"})
	r := callTool(t, srv, "attach_image", map[string]any{
		"path":     "x.ipynb",
		"url":      "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("not an image")),
		"filename": "fake.png",
	})
	if !r.IsError {
		t.Error("expected magic byte validation error")
	}
}

func TestLanguageStats(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "create_notebook", map[string]any{"path": "a.ipynb", "content": testutil.SampleNotebook})
	r := callTool(t, srv, "language_stats", map[string]any{})
	if r.IsError || !strings.Contains(resultText(r), `"language": "python"`) {
		t.Errorf("stats = %q", resultText(r))
	}
}

func TestGetNotebookFormat(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_notebook_format", nil)
	if !strings.Contains(resultText(r), "orig_nbformat") {
		t.Error("format description missing orig_nbformat")
	}
}
