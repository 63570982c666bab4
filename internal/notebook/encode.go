package notebook

import (
	"context"
	"fmt"
	"maps"

	"github.com/starford/nbserde/internal/models"
	"github.com/starford/nbserde/pkg/json"
)

// SchemaVersion is the nbformat major/minor pair written to a document.
type SchemaVersion struct {
	Major int
	Minor int
}

// Encode serializes a notebook snapshot. A nil snapshot encodes as an
// empty notebook. Errors from the cell encoder are returned unchanged.
func (c *Codec) Encode(ctx context.Context, nb *models.Notebook) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if nb == nil {
		nb = &models.Notebook{}
	}
	cells := make([]map[string]any, 0, len(nb.Cells))
	for i := range nb.Cells {
		stored, err := c.storedCell(nb.Cells[i])
		if err != nil {
			return nil, err
		}
		cells = append(cells, stored)
	}
	return c.serialize(nb.Metadata, cells)
}

// EncodeDocument serializes a live document, reading cells through its accessors.
func (c *Codec) EncodeDocument(ctx context.Context, doc Document) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := doc.CellCount()
	cells := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		stored, err := c.storedCell(doc.CellAt(i))
		if err != nil {
			return nil, err
		}
		cells = append(cells, stored)
	}
	return c.serialize(doc.Metadata(), cells)
}

func (c *Codec) storedCell(cell models.Cell) (map[string]any, error) {
	sc, err := c.toStored(cell)
	if err != nil {
		return nil, err
	}
	return c.prune(sc).Map(), nil
}

// SchemaVersion returns the version written for md.
//
// Absent values default to 4.2. A recorded nbformat_minor is written as the
// minor version. Unless the codec is strict, a recorded nbformat_minor is
// also written as the major version when md records no nbformat; existing
// files depend on this legacy rule. A recorded nbformat always wins.
func (c *Codec) SchemaVersion(md models.Metadata) SchemaVersion {
	v := SchemaVersion{Major: models.DefaultNBFormat, Minor: models.DefaultNBFormatMinor}
	if md.NBFormatMinor != nil {
		v.Minor = *md.NBFormatMinor
		if !c.strictVersion {
			v.Major = *md.NBFormatMinor
		}
	}
	if md.NBFormat != nil {
		v.Major = *md.NBFormat
	}
	return v
}

func (c *Codec) serialize(md models.Metadata, cells []map[string]any) ([]byte, error) {
	version := c.SchemaVersion(md)

	out := make(map[string]any, len(md.Custom)+4)
	for k, v := range md.Custom {
		if k == "nbformat" || k == "nbformat_minor" {
			continue
		}
		out[k] = v
	}

	nbMetadata := maps.Clone(md.NotebookMetadata())
	if nbMetadata == nil {
		nbMetadata = make(map[string]any, 1)
	}
	nbMetadata["orig_nbformat"] = models.OrigNBFormat

	out["cells"] = cells
	out["metadata"] = nbMetadata
	out["nbformat"] = version.Major
	out["nbformat_minor"] = version.Minor
	// Version values that are not integers are written back unchanged.
	if v, ok := md.Custom["nbformat"]; ok && md.NBFormat == nil {
		out["nbformat"] = v
	}
	if v, ok := md.Custom["nbformat_minor"]; ok && md.NBFormatMinor == nil {
		out["nbformat_minor"] = v
	}

	indentUnit := models.DefaultIndent
	if v, ok := md.IndentUnit(); ok {
		indentUnit = v
	}

	data, err := json.EncodeIndent(out, indentUnit)
	if err != nil {
		return nil, fmt.Errorf("notebook: encode: %w", err)
	}
	return data, nil
}
