package index

import (
	"strings"
	"time"

	"github.com/starford/nbserde/internal/checksum"
	"github.com/starford/nbserde/internal/language"
	"github.com/starford/nbserde/internal/models"
)

// Summarize builds the catalog row and the searchable body for a decoded
// notebook. data is the raw file content the checksum is taken over.
func Summarize(path string, data []byte, nb *models.Notebook) (NotebookRow, string) {
	md := nb.Metadata.NotebookMetadata()
	row := NotebookRow{
		Path:          path,
		Language:      language.NewResolver("").Resolve(md),
		NBFormat:      nb.Metadata.NBFormat,
		NBFormatMinor: nb.Metadata.NBFormatMinor,
		CellCount:     len(nb.Cells),
		Checksum:      checksum.Sum(data),
		UpdatedAt:     time.Now().UTC(),
	}
	if spec, ok := md["kernelspec"].(map[string]any); ok {
		row.Kernel, _ = spec["name"].(string)
	}

	var body strings.Builder
	for _, c := range nb.Cells {
		switch c.Kind {
		case models.CellKindMarkup:
			row.MarkupCells++
		case models.CellKindCode:
			row.CodeCells++
		}
		if c.Source == "" {
			continue
		}
		if body.Len() > 0 {
			body.WriteString("\n\n")
		}
		body.WriteString(c.Source)
	}
	return row, body.String()
}
