package notebook

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/starford/nbserde/internal/models"
	"github.com/starford/nbserde/pkg/json"
)

// Decode converts raw notebook bytes into a document model.
//
// Empty or whitespace-only input yields a new document. Whitespace-only
// input is deliberately not reported as malformed, unlike a plain JSON
// parse; like the legacy version rule that WithStrictSchemaVersion turns
// off, this departs from a strict reading of the format. Input that parses
// to anything but an object with a "cells" list yields a document with no
// cells. The only error produced here is *MalformedInputError; errors from
// the cell converter are returned unchanged. ctx is checked once before
// any work starts.
func (c *Codec) Decode(ctx context.Context, data []byte) (*models.Notebook, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := string(data)
	var (
		doc    map[string]any
		stored []models.StoredCell
	)

	parsed := strings.TrimSpace(text) != ""
	if parsed {
		var v any
		if err := json.DecodeNumbers(data, &v); err != nil {
			return nil, &MalformedInputError{Err: err}
		}
		obj, _ := v.(map[string]any)
		cells, ok := obj["cells"].([]any)
		if !ok {
			return c.emptyDocument(), nil
		}
		doc = obj
		stored = storedCells(cells)
	}

	indentUnit := models.DefaultIndent
	if parsed {
		indentUnit = c.detectIndent(text)
	}

	if parsed {
		c.notify(ctx, doc)
	}

	var nbMetadata map[string]any
	if doc != nil {
		nbMetadata, _ = doc["metadata"].(map[string]any)
	}
	preferred := c.resolveLanguage(nbMetadata)

	if len(stored) == 0 {
		stored = []models.StoredCell{models.BlankCodeCell()}
	}

	stripped := make(map[string]any, len(doc))
	for k, v := range doc {
		if k != "cells" {
			stripped[k] = v
		}
	}

	nb, err := c.toModel(stripped, stored, preferred, doc)
	if err != nil {
		return nil, err
	}

	md := nb.Metadata
	if md.Custom == nil {
		md.Custom = stripped
	}
	md.Custom = maps.Clone(md.Custom)
	md.Indent = &indentUnit
	md.ID = c.newID()
	if v, ok := doc["nbformat"]; ok {
		if n, ok := models.IntValue(v); ok {
			md.NBFormat = &n
			delete(md.Custom, "nbformat")
		}
	}
	if v, ok := doc["nbformat_minor"]; ok {
		if n, ok := models.IntValue(v); ok {
			md.NBFormatMinor = &n
			delete(md.Custom, "nbformat_minor")
		}
	}
	nb.Metadata = md
	return nb, nil
}

func (c *Codec) emptyDocument() *models.Notebook {
	return &models.Notebook{
		Cells:    []models.Cell{},
		Metadata: models.Metadata{ID: c.newID()},
	}
}

// storedCells reads the parsed cell list. Entries that are not objects
// become cells with every field absent, so the cell count is kept.
func storedCells(cells []any) []models.StoredCell {
	out := make([]models.StoredCell, 0, len(cells))
	for _, raw := range cells {
		m, _ := raw.(map[string]any)
		out = append(out, models.StoredCellFromMap(m))
	}
	return out
}

// notify hands a private copy of doc to the observer on its own goroutine.
// Observer errors and panics are logged and never reach the caller.
func (c *Codec) notify(ctx context.Context, doc map[string]any) {
	if c.observer == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	doc, _ = deepCopy(doc).(map[string]any)
	logger := c.logger
	if logger == nil {
		logger = slog.Default()
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Debug("notebook: observer panic", slog.String("panic", fmt.Sprint(r)))
			}
		}()
		if err := c.observer.ObserveNotebook(ctx, doc); err != nil {
			logger.Debug("notebook: observer failed", slog.String("error", err.Error()))
		}
	}()
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = deepCopy(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return v
	}
}
