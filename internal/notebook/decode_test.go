package notebook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/starford/nbserde/internal/apperr"
	"github.com/starford/nbserde/internal/models"
	"github.com/starford/nbserde/internal/telemetry"
)

func TestDecode_EmptyBytes(t *testing.T) {
	nb, err := New().Decode(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	indent, ok := nb.Metadata.IndentUnit()
	if !ok || indent != " " {
		t.Errorf("indent = %q (present=%v), want single space", indent, ok)
	}
	if nb.Metadata.ID == "" {
		t.Error("expected a generated id")
	}
	if nb.Metadata.HasNBFormat() || nb.Metadata.HasNBFormatMinor() {
		t.Error("schema version should be absent for a new document")
	}
	if len(nb.Cells) != 1 || nb.Cells[0].Kind != models.CellKindCode {
		t.Errorf("cells = %+v, want one blank code cell", nb.Cells)
	}
}

func TestDecode_WhitespaceOnlyIsEmpty(t *testing.T) {
	nb, err := New().Decode(context.Background(), []byte("  \n\t\n"))
	if err != nil {
		t.Fatalf("whitespace-only input should not fail: %v", err)
	}
	if indent, _ := nb.Metadata.IndentUnit(); indent != " " {
		t.Errorf("indent = %q, want single space", indent)
	}
}

func TestDecode_EmptyCellsSynthesizesBlankCodeCell(t *testing.T) {
	nb, err := New().Decode(context.Background(), []byte(`{"cells": [], "metadata": {}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nb.Cells) != 1 {
		t.Fatalf("len(cells) = %d, want 1", len(nb.Cells))
	}
	c := nb.Cells[0]
	if c.Kind != models.CellKindCode {
		t.Errorf("kind = %v, want code", c.Kind)
	}
	if c.ExecutionCount != nil {
		t.Errorf("execution count = %v, want nil", *c.ExecutionCount)
	}
	if len(c.Outputs) != 0 || c.Source != "" {
		t.Errorf("cell not blank: %+v", c)
	}
	if c.Language != "python" {
		t.Errorf("language = %q, want default python", c.Language)
	}
}

func TestDecode_MissingCellsYieldsEmptyDocument(t *testing.T) {
	for _, input := range []string{
		`{"metadata": {}, "nbformat": 4}`,
		`[1, 2, 3]`,
		`"just a string"`,
		`null`,
		`{"cells": {"not": "a list"}}`,
	} {
		nb, err := New().Decode(context.Background(), []byte(input))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", input, err)
		}
		if len(nb.Cells) != 0 {
			t.Errorf("%s: len(cells) = %d, want 0", input, len(nb.Cells))
		}
		if nb.Metadata.HasNBFormat() {
			t.Errorf("%s: empty document should carry default metadata", input)
		}
	}
}

func TestDecode_MalformedInput(t *testing.T) {
	_, err := New().Decode(context.Background(), []byte(`{"cells": [`))
	if err == nil {
		t.Fatal("expected error for truncated JSON")
	}
	var mErr *MalformedInputError
	if !errors.As(err, &mErr) {
		t.Fatalf("error type = %T, want *MalformedInputError", err)
	}
	if !errors.Is(err, apperr.ErrMalformedInput) {
		t.Error("error should match apperr.ErrMalformedInput")
	}
}

func TestDecode_TrailingDataIsMalformed(t *testing.T) {
	_, err := New().Decode(context.Background(), []byte(`{"cells": []} {}`))
	if !errors.Is(err, apperr.ErrMalformedInput) {
		t.Errorf("err = %v, want malformed input", err)
	}
}

func TestDecode_MarkdownScenario(t *testing.T) {
	input := `{"cells": [{"cell_type":"markdown","metadata":{},"source":"# Hi"}], "nbformat":4, "nbformat_minor":2}`
	nb, err := New().Decode(context.Background(), []byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nb.Cells) != 1 {
		t.Fatalf("len(cells) = %d, want 1", len(nb.Cells))
	}
	c := nb.Cells[0]
	if c.Kind != models.CellKindMarkup || c.Language != "markdown" || c.Source != "# Hi" {
		t.Errorf("cell = %+v", c)
	}
	if !nb.Metadata.HasNBFormat() || *nb.Metadata.NBFormat != 4 {
		t.Errorf("nbformat = %v, want 4", nb.Metadata.NBFormat)
	}
	if !nb.Metadata.HasNBFormatMinor() || *nb.Metadata.NBFormatMinor != 2 {
		t.Errorf("nbformat_minor = %v, want 2", nb.Metadata.NBFormatMinor)
	}
	if _, ok := nb.Metadata.Custom["nbformat"]; ok {
		t.Error("nbformat should live in the typed field, not in Custom")
	}
}

func TestDecode_DistinctIDs(t *testing.T) {
	codec := New()
	input := []byte(`{"cells": [], "metadata": {}}`)
	seen := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		nb, err := codec.Decode(context.Background(), input)
		if err != nil {
			t.Fatal(err)
		}
		if _, dup := seen[nb.Metadata.ID]; dup {
			t.Fatalf("duplicate id %q at iteration %d", nb.Metadata.ID, i)
		}
		seen[nb.Metadata.ID] = struct{}{}
	}
}

func TestDecode_DetectsIndent(t *testing.T) {
	input := "{\n    \"cells\": [\n        {\n            \"cell_type\": \"code\",\n            \"source\": \"x = 1\"\n        }\n    ]\n}\n"
	nb, err := New().Decode(context.Background(), []byte(input))
	if err != nil {
		t.Fatal(err)
	}
	if indent, _ := nb.Metadata.IndentUnit(); indent != "    " {
		t.Errorf("indent = %q, want four spaces", indent)
	}
}

func TestDecode_PreferredLanguage(t *testing.T) {
	input := `{
 "cells": [
  {"cell_type": "code", "metadata": {}, "outputs": [], "execution_count": 3, "source": ["a = 1\n", "a"]},
  {"cell_type": "code", "metadata": {"vscode": {"languageId": "sql"}}, "outputs": [], "execution_count": null, "source": "select 1"},
  {"cell_type": "raw", "metadata": {}, "source": "raw text"}
 ],
 "metadata": {"kernelspec": {"name": "julia-1.9", "language": "julia"}}
}`
	nb, err := New().Decode(context.Background(), []byte(input))
	if err != nil {
		t.Fatal(err)
	}
	if got := nb.Cells[0].Language; got != "julia" {
		t.Errorf("cell 0 language = %q, want julia", got)
	}
	if got := nb.Cells[0].Source; got != "a = 1\na" {
		t.Errorf("cell 0 source = %q", got)
	}
	if ec := nb.Cells[0].ExecutionCount; ec == nil || *ec != 3 {
		t.Errorf("cell 0 execution count = %v, want 3", ec)
	}
	if got := nb.Cells[1].Language; got != "sql" {
		t.Errorf("cell 1 language = %q, want sql", got)
	}
	if got := nb.Cells[2].Language; got != "raw" {
		t.Errorf("cell 2 language = %q, want raw", got)
	}
}

func TestDecode_ObserverNotified(t *testing.T) {
	got := make(chan map[string]any, 1)
	codec := New(WithObserver(telemetry.ObserverFunc(func(_ context.Context, doc map[string]any) error {
		got <- doc
		return nil
	})))
	_, err := codec.Decode(context.Background(), []byte(`{"cells": [], "metadata": {"kernelspec": {"language": "R"}}}`))
	if err != nil {
		t.Fatal(err)
	}
	select {
	case doc := <-got:
		if u := telemetry.Extract(doc); u.Language != "r" {
			t.Errorf("observed language = %q, want r", u.Language)
		}
	case <-time.After(time.Second):
		t.Fatal("observer was not notified")
	}
}

func TestDecode_ObserverNotNotifiedForEmptyInput(t *testing.T) {
	called := make(chan struct{}, 1)
	codec := New(WithObserver(telemetry.ObserverFunc(func(context.Context, map[string]any) error {
		called <- struct{}{}
		return nil
	})))
	if _, err := codec.Decode(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	select {
	case <-called:
		t.Error("observer should not run without a parsed document")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDecode_ObserverFailureIsolated(t *testing.T) {
	done := make(chan struct{})
	codec := New(WithObserver(telemetry.ObserverFunc(func(context.Context, map[string]any) error {
		defer close(done)
		panic("telemetry exploded")
	})))
	nb, err := codec.Decode(context.Background(), []byte(`{"cells": []}`))
	if err != nil {
		t.Fatalf("observer panic leaked into decode: %v", err)
	}
	if len(nb.Cells) != 1 {
		t.Errorf("len(cells) = %d, want 1", len(nb.Cells))
	}
	<-done
}

func TestDecode_ConverterErrorPropagatesUnchanged(t *testing.T) {
	sentinel := errors.New("converter failed")
	codec := New(WithCellsConverter(func(map[string]any, []models.StoredCell, string, map[string]any) (*models.Notebook, error) {
		return nil, sentinel
	}))
	_, err := codec.Decode(context.Background(), []byte(`{"cells": []}`))
	if err != sentinel {
		t.Errorf("err = %v, want the converter error itself", err)
	}
}

func TestDecode_CancelledContextNotStarted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Decode(ctx, []byte(`{"cells": []}`)); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDecode_InjectedCollaborators(t *testing.T) {
	var gotMetadata map[string]any
	codec := New(
		WithIDGenerator(func() string { return "fixed-id" }),
		WithIndentDetector(func(string) string { return "\t" }),
		WithLanguageResolver(func(md map[string]any) string {
			gotMetadata = md
			return "go"
		}),
	)
	nb, err := codec.Decode(context.Background(), []byte(`{"cells": [], "metadata": {"k": "v"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if nb.Metadata.ID != "fixed-id" {
		t.Errorf("id = %q", nb.Metadata.ID)
	}
	if indent, _ := nb.Metadata.IndentUnit(); indent != "\t" {
		t.Errorf("indent = %q", indent)
	}
	if gotMetadata["k"] != "v" {
		t.Errorf("resolver metadata = %v", gotMetadata)
	}
	if nb.Cells[0].Language != "go" {
		t.Errorf("language = %q, want go", nb.Cells[0].Language)
	}
}

func TestDecode_NilLoggerObserverPanic(t *testing.T) {
	panicking := func(done chan struct{}) Option {
		return WithObserver(telemetry.ObserverFunc(func(context.Context, map[string]any) error {
			defer close(done)
			panic("telemetry exploded")
		}))
	}

	done := make(chan struct{})
	if _, err := New(WithLogger(nil), panicking(done)).Decode(context.Background(), []byte(`{"cells": []}`)); err != nil {
		t.Fatal(err)
	}
	<-done

	done = make(chan struct{})
	codec := New(panicking(done))
	codec.logger = nil
	if _, err := codec.Decode(context.Background(), []byte(`{"cells": []}`)); err != nil {
		t.Fatal(err)
	}
	<-done
}
