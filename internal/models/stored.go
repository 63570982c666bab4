package models

import (
	"maps"
	"math"
	"strconv"
	"strings"
)

// StoredCell is one cell of the persisted notebook document.
//
// Source holds the joined cell text; the persisted form may be a string or
// a list of lines. HasOutputs and HasExecutionCount record whether the
// stored object carried those keys, so markup cells stay free of them.
// Unrecognized keys are kept in Extra and written back unchanged.
type StoredCell struct {
	CellType          string
	ID                string
	Source            string
	SourceLines       []string
	Metadata          map[string]any
	Attachments       map[string]any
	Outputs           []map[string]any
	HasOutputs        bool
	ExecutionCount    *int64
	HasExecutionCount bool
	Extra             map[string]any
}

// BlankCodeCell returns the cell substituted for an empty stored cell list.
func BlankCodeCell() StoredCell {
	return StoredCell{
		CellType:          CellTypeCode,
		Metadata:          map[string]any{},
		Outputs:           []map[string]any{},
		HasOutputs:        true,
		HasExecutionCount: true,
	}
}

var storedCellKeys = map[string]struct{}{
	"cell_type":       {},
	"id":              {},
	"source":          {},
	"metadata":        {},
	"attachments":     {},
	"outputs":         {},
	"execution_count": {},
}

// StoredCellFromMap reads a parsed JSON cell object.
// Values of an unexpected type are treated as absent.
func StoredCellFromMap(m map[string]any) StoredCell {
	c := StoredCell{}
	c.CellType, _ = m["cell_type"].(string)
	c.ID, _ = m["id"].(string)
	c.Source = JoinSource(m["source"])
	if lines, ok := m["source"].([]any); ok {
		c.SourceLines = make([]string, 0, len(lines))
		for _, l := range lines {
			if s, ok := l.(string); ok {
				c.SourceLines = append(c.SourceLines, s)
			}
		}
	}
	c.Metadata, _ = m["metadata"].(map[string]any)
	c.Attachments, _ = m["attachments"].(map[string]any)

	if raw, ok := m["outputs"]; ok {
		c.HasOutputs = true
		if list, ok := raw.([]any); ok {
			c.Outputs = make([]map[string]any, 0, len(list))
			for _, o := range list {
				if om, ok := o.(map[string]any); ok {
					c.Outputs = append(c.Outputs, om)
				}
			}
		}
	}
	if raw, ok := m["execution_count"]; ok {
		c.HasExecutionCount = true
		c.ExecutionCount = toInt64(raw)
	}

	for k, v := range m {
		if _, known := storedCellKeys[k]; known {
			continue
		}
		if c.Extra == nil {
			c.Extra = make(map[string]any)
		}
		c.Extra[k] = v
	}
	return c
}

// Map returns the cell as a JSON object. Source is written as a list of
// lines when SourceLines is set, otherwise as a single string.
func (c StoredCell) Map() map[string]any {
	out := make(map[string]any, len(c.Extra)+7)
	maps.Copy(out, c.Extra)

	out["cell_type"] = c.CellType
	if c.ID != "" {
		out["id"] = c.ID
	}
	if c.SourceLines != nil {
		out["source"] = c.SourceLines
	} else {
		out["source"] = c.Source
	}
	if c.Metadata != nil {
		out["metadata"] = c.Metadata
	} else {
		out["metadata"] = map[string]any{}
	}
	if c.Attachments != nil {
		out["attachments"] = c.Attachments
	}
	if c.HasOutputs {
		outputs := c.Outputs
		if outputs == nil {
			outputs = []map[string]any{}
		}
		out["outputs"] = outputs
	}
	if c.HasExecutionCount {
		if c.ExecutionCount != nil {
			out["execution_count"] = *c.ExecutionCount
		} else {
			out["execution_count"] = nil
		}
	}
	return out
}

// JoinSource flattens a stored multiline value (a string or a list of
// strings) into a single string.
func JoinSource(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []any:
		var b strings.Builder
		for _, part := range s {
			if str, ok := part.(string); ok {
				b.WriteString(str)
			}
		}
		return b.String()
	case []string:
		return strings.Join(s, "")
	default:
		return ""
	}
}

// SplitLines splits text into lines that keep their trailing newline, the
// list form used for persisted multiline strings. Empty text yields an
// empty list.
func SplitLines(text string) []string {
	if text == "" {
		return []string{}
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func toInt64(v any) *int64 {
	switch n := v.(type) {
	case nil:
		return nil
	case int:
		i := int64(n)
		return &i
	case int64:
		return &n
	case float64:
		if n != float64(int64(n)) {
			return nil
		}
		i := int64(n)
		return &i
	case interface {
		Int64() (int64, error)
		Float64() (float64, error)
	}:
		if i, err := n.Int64(); err == nil {
			return &i
		}
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) {
			return nil
		}
		i := int64(f)
		return &i
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return nil
		}
		return &i
	default:
		return nil
	}
}

// IntValue converts a decoded JSON number to int, reporting whether it was an integer.
func IntValue(v any) (int, bool) {
	if v == nil {
		return 0, false
	}
	if _, isString := v.(string); isString {
		return 0, false
	}
	p := toInt64(v)
	if p == nil {
		return 0, false
	}
	return int(*p), true
}
