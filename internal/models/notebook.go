// Package models defines the notebook types shared by the codec, storage and API layers.
package models

import (
	"fmt"
	"maps"
	"strings"
)

// Schema version written when a document carries none.
const (
	DefaultNBFormat      = 4
	DefaultNBFormatMinor = 2
	OrigNBFormat         = 4
)

// DefaultIndent is the indentation unit used for documents with no prior indent signal.
const DefaultIndent = " "

// Stored cell types.
const (
	CellTypeCode     = "code"
	CellTypeMarkdown = "markdown"
	CellTypeRaw      = "raw"
)

// CellKind distinguishes markup cells from executable cells in the document model.
type CellKind int

const (
	CellKindMarkup CellKind = 1
	CellKindCode   CellKind = 2
)

func (k CellKind) String() string {
	switch k {
	case CellKindMarkup:
		return "markup"
	case CellKindCode:
		return "code"
	default:
		return fmt.Sprintf("CellKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k CellKind) MarshalText() ([]byte, error) {
	switch k {
	case CellKindMarkup, CellKindCode:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("models: invalid cell kind %d", int(k))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *CellKind) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "markup", "markdown":
		*k = CellKindMarkup
	case "code":
		*k = CellKindCode
	default:
		return fmt.Errorf("models: unknown cell kind %q", string(b))
	}
	return nil
}

// Cell is one cell of the in-memory document model.
type Cell struct {
	Kind           CellKind         `json:"kind"`
	Language       string           `json:"language"`
	Source         string           `json:"source"`
	Outputs        []map[string]any `json:"outputs,omitempty"`
	ExecutionCount *int64           `json:"execution_count,omitempty"`
	ID             string           `json:"id,omitempty"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
	Attachments    map[string]any   `json:"attachments,omitempty"`
	Extra          map[string]any   `json:"extra,omitempty"` // stored keys with no model field
}

// Metadata is the document-level metadata of a Notebook.
//
// Custom holds the top-level stored fields other than cells and the schema
// version, passed through opaquely. The pointer fields keep "absent" apart
// from "present with a default value".
type Metadata struct {
	Custom        map[string]any `json:"custom,omitempty"`
	NBFormat      *int           `json:"nbformat,omitempty"`
	NBFormatMinor *int           `json:"nbformat_minor,omitempty"`
	Indent        *string        `json:"indentAmount,omitempty"`
	ID            string         `json:"id,omitempty"`
}

// HasNBFormat reports whether a schema major version is recorded.
func (m Metadata) HasNBFormat() bool { return m.NBFormat != nil }

// HasNBFormatMinor reports whether a schema minor version is recorded.
func (m Metadata) HasNBFormatMinor() bool { return m.NBFormatMinor != nil }

// IndentUnit returns the recorded indent unit and whether one is present.
func (m Metadata) IndentUnit() (string, bool) {
	if m.Indent == nil {
		return "", false
	}
	return *m.Indent, true
}

// NotebookMetadata returns the stored notebook-level "metadata" mapping, or nil.
func (m Metadata) NotebookMetadata() map[string]any {
	if m.Custom == nil {
		return nil
	}
	nm, _ := m.Custom["metadata"].(map[string]any)
	return nm
}

// Clone returns a copy whose top-level maps and pointers are not shared with m.
func (m Metadata) Clone() Metadata {
	out := Metadata{ID: m.ID}
	if m.Custom != nil {
		out.Custom = maps.Clone(m.Custom)
	}
	if m.NBFormat != nil {
		v := *m.NBFormat
		out.NBFormat = &v
	}
	if m.NBFormatMinor != nil {
		v := *m.NBFormatMinor
		out.NBFormatMinor = &v
	}
	if m.Indent != nil {
		v := *m.Indent
		out.Indent = &v
	}
	return out
}

// Notebook is a plain snapshot of the in-memory document model.
type Notebook struct {
	Cells    []Cell   `json:"cells"`
	Metadata Metadata `json:"metadata"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
