package notebook

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/starford/nbserde/internal/models"
	"github.com/starford/nbserde/pkg/json"
)

func decodeOutput(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, data)
	}
	return out
}

func TestEncode_Defaults(t *testing.T) {
	data, err := New().Encode(context.Background(), &models.Notebook{})
	if err != nil {
		t.Fatal(err)
	}
	out := decodeOutput(t, data)
	if out["nbformat"] != float64(4) || out["nbformat_minor"] != float64(2) {
		t.Errorf("version = %v.%v, want 4.2", out["nbformat"], out["nbformat_minor"])
	}
	md := out["metadata"].(map[string]any)
	if md["orig_nbformat"] != float64(4) {
		t.Errorf("orig_nbformat = %v, want 4", md["orig_nbformat"])
	}
	if cells := out["cells"].([]any); len(cells) != 0 {
		t.Errorf("len(cells) = %d, want 0", len(cells))
	}
	if !strings.HasPrefix(string(data), "{\n \"cells\"") {
		t.Errorf("expected single-space indent, got %q", data)
	}
	if !strings.HasSuffix(string(data), "}\n") {
		t.Errorf("expected trailing newline")
	}
}

func TestEncode_OrigNBFormatAlwaysFour(t *testing.T) {
	nb := &models.Notebook{Metadata: models.Metadata{
		Custom:   map[string]any{"metadata": map[string]any{"orig_nbformat": 3, "kernelspec": map[string]any{"name": "python3"}}},
		NBFormat: models.Ptr(3),
	}}
	data, err := New().Encode(context.Background(), nb)
	if err != nil {
		t.Fatal(err)
	}
	out := decodeOutput(t, data)
	md := out["metadata"].(map[string]any)
	if md["orig_nbformat"] != float64(4) {
		t.Errorf("orig_nbformat = %v, want 4", md["orig_nbformat"])
	}
	if _, ok := md["kernelspec"]; !ok {
		t.Error("notebook metadata should pass through")
	}
	if out["nbformat"] != float64(3) {
		t.Errorf("nbformat = %v, want 3", out["nbformat"])
	}
}

func TestEncode_MinorVersionLegacyRule(t *testing.T) {
	nb := &models.Notebook{Metadata: models.Metadata{NBFormatMinor: models.Ptr(5)}}
	data, err := New().Encode(context.Background(), nb)
	if err != nil {
		t.Fatal(err)
	}
	out := decodeOutput(t, data)
	if out["nbformat"] != float64(5) {
		t.Errorf("nbformat = %v, want 5 (nbformat_minor copied into nbformat)", out["nbformat"])
	}
	if out["nbformat_minor"] != float64(5) {
		t.Errorf("nbformat_minor = %v, want 5", out["nbformat_minor"])
	}
}

func TestEncode_MinorVersionStrict(t *testing.T) {
	nb := &models.Notebook{Metadata: models.Metadata{NBFormatMinor: models.Ptr(5)}}
	data, err := New(WithStrictSchemaVersion(true)).Encode(context.Background(), nb)
	if err != nil {
		t.Fatal(err)
	}
	out := decodeOutput(t, data)
	if out["nbformat"] != float64(4) || out["nbformat_minor"] != float64(5) {
		t.Errorf("version = %v.%v, want 4.5", out["nbformat"], out["nbformat_minor"])
	}
}

func TestEncode_ExplicitMajorWinsOverMinor(t *testing.T) {
	v := New().SchemaVersion(models.Metadata{NBFormat: models.Ptr(4), NBFormatMinor: models.Ptr(5)})
	if v.Major != 4 || v.Minor != 5 {
		t.Errorf("version = %+v, want 4.5", v)
	}
}

func TestEncode_PrunesCells(t *testing.T) {
	nb := &models.Notebook{Cells: []models.Cell{
		{Kind: models.CellKindMarkup, Language: "markdown", Source: "# Title\nbody"},
		{
			Kind:     models.CellKindCode,
			Language: "python",
			Source:   "print('hi')",
			Outputs: []map[string]any{
				{"output_type": "stream", "name": "stdout", "text": "hi\n"},
				{"output_type": "display_data", "data": map[string]any{"text/plain": "x"}, "transient": map[string]any{"display_id": "d1"}},
			},
			ExecutionCount: models.Ptr(int64(7)),
		},
	}}
	data, err := New().Encode(context.Background(), nb)
	if err != nil {
		t.Fatal(err)
	}
	cells := decodeOutput(t, data)["cells"].([]any)
	if len(cells) != 2 {
		t.Fatalf("len(cells) = %d, want 2", len(cells))
	}

	md := cells[0].(map[string]any)
	if md["cell_type"] != "markdown" {
		t.Errorf("cell 0 type = %v", md["cell_type"])
	}
	if _, ok := md["outputs"]; ok {
		t.Error("markdown cell must not carry outputs")
	}
	if _, ok := md["execution_count"]; ok {
		t.Error("markdown cell must not carry execution_count")
	}
	src := md["source"].([]any)
	if len(src) != 2 || src[0] != "# Title\n" || src[1] != "body" {
		t.Errorf("source lines = %v", src)
	}

	code := cells[1].(map[string]any)
	if code["execution_count"] != float64(7) {
		t.Errorf("execution_count = %v, want 7", code["execution_count"])
	}
	outputs := code["outputs"].([]any)
	stream := outputs[0].(map[string]any)
	if text, ok := stream["text"].([]any); !ok || len(text) != 1 || text[0] != "hi\n" {
		t.Errorf("stream text = %v, want line list", stream["text"])
	}
	if _, ok := outputs[1].(map[string]any)["transient"]; ok {
		t.Error("transient output data must be pruned")
	}
}

func TestEncode_DoesNotEscapeHTML(t *testing.T) {
	nb := &models.Notebook{Cells: []models.Cell{{Kind: models.CellKindMarkup, Source: "<b>a & b</b>"}}}
	data, err := New().Encode(context.Background(), nb)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<b>a & b</b>") {
		t.Errorf("HTML characters were escaped: %s", data)
	}
}

func TestEncode_CellEncoderErrorPropagatesUnchanged(t *testing.T) {
	sentinel := errors.New("cell encoder failed")
	codec := New(WithCellEncoder(func(models.Cell) (models.StoredCell, error) {
		return models.StoredCell{}, sentinel
	}))
	_, err := codec.Encode(context.Background(), &models.Notebook{Cells: []models.Cell{{Kind: models.CellKindCode}}})
	if err != sentinel {
		t.Errorf("err = %v, want the encoder error itself", err)
	}
}

type liveDocument struct {
	cells    []models.Cell
	metadata models.Metadata
	reads    int
}

func (d *liveDocument) CellCount() int { return len(d.cells) }

func (d *liveDocument) CellAt(i int) models.Cell {
	d.reads++
	return d.cells[i]
}

func (d *liveDocument) Metadata() models.Metadata { return d.metadata }

func TestEncodeDocument_MatchesSnapshot(t *testing.T) {
	nb, err := New().Decode(context.Background(), []byte(`{"cells": [{"cell_type":"code","metadata":{},"outputs":[],"execution_count":null,"source":"1+1"},{"cell_type":"markdown","metadata":{},"source":"x"}], "metadata": {}, "nbformat": 4, "nbformat_minor": 5}`))
	if err != nil {
		t.Fatal(err)
	}
	live := &liveDocument{cells: nb.Cells, metadata: nb.Metadata}

	fromLive, err := New().EncodeDocument(context.Background(), live)
	if err != nil {
		t.Fatal(err)
	}
	fromSnapshot, err := New().Encode(context.Background(), nb)
	if err != nil {
		t.Fatal(err)
	}
	if string(fromLive) != string(fromSnapshot) {
		t.Errorf("live and snapshot encodings differ:\n%s\n---\n%s", fromLive, fromSnapshot)
	}
	if live.reads != 2 {
		t.Errorf("CellAt called %d times, want 2", live.reads)
	}
}

func TestRoundTrip_MarkdownScenario(t *testing.T) {
	input := `{"cells": [{"cell_type":"markdown","metadata":{},"source":"# Hi"}], "nbformat":4, "nbformat_minor":2}`
	nb, err := Decode(context.Background(), []byte(input))
	if err != nil {
		t.Fatal(err)
	}
	data, err := Encode(context.Background(), nb)
	if err != nil {
		t.Fatal(err)
	}
	out := decodeOutput(t, data)
	if out["nbformat"] != float64(4) {
		t.Errorf("nbformat = %v, want 4", out["nbformat"])
	}
	if out["metadata"].(map[string]any)["orig_nbformat"] != float64(4) {
		t.Error("orig_nbformat missing")
	}
	cells := out["cells"].([]any)
	if len(cells) != 1 {
		t.Fatalf("len(cells) = %d, want 1", len(cells))
	}
	cell := cells[0].(map[string]any)
	if cell["cell_type"] != "markdown" {
		t.Errorf("cell_type = %v", cell["cell_type"])
	}
	if src := cell["source"].([]any); len(src) != 1 || src[0] != "# Hi" {
		t.Errorf("source = %v", cell["source"])
	}
	if _, ok := cell["outputs"]; ok {
		t.Error("pruned markdown cell must not carry outputs")
	}
}

func TestRoundTrip_PreservesIndentation(t *testing.T) {
	input := "{\n    \"cells\": [\n        {\n            \"cell_type\": \"code\",\n            \"execution_count\": null,\n            \"metadata\": {},\n            \"outputs\": [],\n            \"source\": []\n        }\n    ],\n    \"metadata\": {},\n    \"nbformat\": 4,\n    \"nbformat_minor\": 2\n}\n"
	nb, err := Decode(context.Background(), []byte(input))
	if err != nil {
		t.Fatal(err)
	}
	data, err := Encode(context.Background(), nb)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\n    \"cells\": [\n        {\n            \"cell_type\": \"code\"") {
		t.Errorf("four-space indentation not preserved:\n%s", data)
	}
}

func TestRoundTrip_CompactInputStaysCompact(t *testing.T) {
	input := `{"cells":[{"cell_type":"code","execution_count":null,"metadata":{},"outputs":[],"source":[]}],"metadata":{},"nbformat":4,"nbformat_minor":2}`
	nb, err := Decode(context.Background(), []byte(input))
	if err != nil {
		t.Fatal(err)
	}
	data, err := Encode(context.Background(), nb)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(data), "\n") != 1 {
		t.Errorf("expected compact output with a trailing newline, got:\n%s", data)
	}
}

func TestRoundTrip_PreservesCellsAndValues(t *testing.T) {
	input := `{
 "cells": [
  {"cell_type": "code", "execution_count": 12, "id": "c1", "metadata": {"tags": ["x"]},
   "outputs": [{"output_type": "execute_result", "execution_count": 12, "data": {"text/plain": ["0.50"]}, "metadata": {"scale": 1.50}}],
   "source": ["x = 0.5\n", "x"]},
  {"cell_type": "markdown", "id": "c2", "metadata": {}, "attachments": {"a.png": {"image/png": "AAAA"}}, "source": ["see ![a](attachment:a.png)"]},
  {"cell_type": "raw", "metadata": {"format": "text/x-rst"}, "source": ".. note::"}
 ],
 "metadata": {"kernelspec": {"display_name": "Python 3", "language": "python", "name": "python3"}},
 "nbformat": 4,
 "nbformat_minor": 5,
 "x_extension": {"keep": true}
}`
	nb, err := Decode(context.Background(), []byte(input))
	if err != nil {
		t.Fatal(err)
	}
	data, err := Encode(context.Background(), nb)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(string(data), `"scale": 1.50`) {
		t.Errorf("number literal not preserved:\n%s", data)
	}

	out := decodeOutput(t, data)
	if out["nbformat"] != float64(4) || out["nbformat_minor"] != float64(5) {
		t.Errorf("version = %v.%v, want 4.5", out["nbformat"], out["nbformat_minor"])
	}
	if _, ok := out["x_extension"]; !ok {
		t.Error("unknown top-level field dropped")
	}
	cells := out["cells"].([]any)
	if len(cells) != 3 {
		t.Fatalf("len(cells) = %d, want 3", len(cells))
	}
	code := cells[0].(map[string]any)
	if code["id"] != "c1" || code["execution_count"] != float64(12) {
		t.Errorf("code cell = %v", code)
	}
	if src := code["source"].([]any); len(src) != 2 || src[0] != "x = 0.5\n" || src[1] != "x" {
		t.Errorf("code source = %v", src)
	}
	md := cells[1].(map[string]any)
	if _, ok := md["attachments"]; !ok {
		t.Error("markdown attachments dropped")
	}
	raw := cells[2].(map[string]any)
	if raw["cell_type"] != "raw" {
		t.Errorf("raw cell type = %v", raw["cell_type"])
	}
	if _, ok := raw["outputs"]; ok {
		t.Error("raw cell must not carry outputs")
	}
}

func TestEncode_IntegralFloatVersionRoundTrip(t *testing.T) {
	codec := New()
	nb, err := codec.Decode(context.Background(), []byte(`{"cells": [], "nbformat": 5.0, "nbformat_minor": 2}`))
	if err != nil {
		t.Fatal(err)
	}
	if nb.Metadata.NBFormat == nil || *nb.Metadata.NBFormat != 5 {
		t.Fatalf("NBFormat = %v, want 5", nb.Metadata.NBFormat)
	}
	data, err := codec.Encode(context.Background(), nb)
	if err != nil {
		t.Fatal(err)
	}
	out := decodeOutput(t, data)
	if out["nbformat"] != float64(5) || out["nbformat_minor"] != float64(2) {
		t.Errorf("version = %v.%v, want 5.2", out["nbformat"], out["nbformat_minor"])
	}
}

func TestEncode_NonIntegerVersionPassesThrough(t *testing.T) {
	codec := New()
	nb, err := codec.Decode(context.Background(), []byte(`{"cells": [], "nbformat": "4", "nbformat_minor": 4.5}`))
	if err != nil {
		t.Fatal(err)
	}
	data, err := codec.Encode(context.Background(), nb)
	if err != nil {
		t.Fatal(err)
	}
	out := decodeOutput(t, data)
	if out["nbformat"] != "4" {
		t.Errorf("nbformat = %#v, want \"4\"", out["nbformat"])
	}
	if out["nbformat_minor"] != 4.5 {
		t.Errorf("nbformat_minor = %#v, want 4.5", out["nbformat_minor"])
	}
}
