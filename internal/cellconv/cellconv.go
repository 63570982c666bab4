// Package cellconv maps single notebook cells between their stored JSON
// form and the in-memory document model, and prunes stored cells of fields
// that must not be persisted.
package cellconv

import (
	"maps"

	"github.com/starford/nbserde/internal/models"
)

// Language ids given to cells whose language is implied by their stored type.
const (
	LanguageMarkdown = "markdown"
	LanguageRaw      = "raw"
)

// ToModel converts stored cells into a document model, in order. Code cells
// without their own language tag get preferredLanguage. The stripped
// document (every top-level field except cells) becomes the opaque part of
// the model metadata.
func ToModel(stripped map[string]any, cells []models.StoredCell, preferredLanguage string, _ map[string]any) (*models.Notebook, error) {
	out := &models.Notebook{
		Cells:    make([]models.Cell, 0, len(cells)),
		Metadata: models.Metadata{Custom: stripped},
	}
	for _, sc := range cells {
		out.Cells = append(out.Cells, StoredToCell(sc, preferredLanguage))
	}
	return out, nil
}

// StoredToCell converts one stored cell.
func StoredToCell(sc models.StoredCell, preferredLanguage string) models.Cell {
	c := models.Cell{
		Source:      sc.Source,
		ID:          sc.ID,
		Metadata:    sc.Metadata,
		Attachments: sc.Attachments,
		Extra:       sc.Extra,
	}
	switch sc.CellType {
	case models.CellTypeMarkdown:
		c.Kind = models.CellKindMarkup
		c.Language = LanguageMarkdown
	case models.CellTypeRaw:
		c.Kind = models.CellKindCode
		c.Language = LanguageRaw
	default:
		c.Kind = models.CellKindCode
		c.Language = preferredLanguage
		if lang := cellLanguage(sc.Metadata); lang != "" {
			c.Language = lang
		}
		c.Outputs = sc.Outputs
		if c.Outputs == nil {
			c.Outputs = []map[string]any{}
		}
		c.ExecutionCount = sc.ExecutionCount
	}
	return c
}

// ToStored converts one model cell back into its stored form.
func ToStored(c models.Cell) (models.StoredCell, error) {
	sc := models.StoredCell{
		ID:          c.ID,
		Source:      c.Source,
		Metadata:    c.Metadata,
		Attachments: c.Attachments,
		Extra:       c.Extra,
	}
	switch {
	case c.Kind == models.CellKindMarkup:
		sc.CellType = models.CellTypeMarkdown
	case c.Language == LanguageRaw:
		sc.CellType = models.CellTypeRaw
	default:
		sc.CellType = models.CellTypeCode
		sc.Outputs = c.Outputs
		sc.HasOutputs = true
		sc.ExecutionCount = c.ExecutionCount
		sc.HasExecutionCount = true
	}
	return sc, nil
}

// Prune returns a copy of sc in its persistable shape: source split into
// lines, outputs and execution count removed from non-code cells, always
// present on code cells, and transient output data dropped.
func Prune(sc models.StoredCell) models.StoredCell {
	out := sc
	out.SourceLines = models.SplitLines(sc.Source)
	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}

	if sc.CellType != models.CellTypeCode {
		out.Outputs = nil
		out.HasOutputs = false
		out.ExecutionCount = nil
		out.HasExecutionCount = false
		return out
	}

	out.HasOutputs = true
	out.HasExecutionCount = true
	out.Outputs = make([]map[string]any, 0, len(sc.Outputs))
	for _, o := range sc.Outputs {
		out.Outputs = append(out.Outputs, pruneOutput(o))
	}
	return out
}

func pruneOutput(o map[string]any) map[string]any {
	out := maps.Clone(o)
	delete(out, "transient")
	if out["output_type"] == "stream" {
		if _, isString := out["text"].(string); isString {
			out["text"] = models.SplitLines(models.JoinSource(out["text"]))
		}
	}
	return out
}

// cellLanguage returns the language recorded under metadata.vscode.languageId.
func cellLanguage(metadata map[string]any) string {
	if metadata == nil {
		return ""
	}
	vsc, ok := metadata["vscode"].(map[string]any)
	if !ok {
		return ""
	}
	lang, _ := vsc["languageId"].(string)
	return lang
}
