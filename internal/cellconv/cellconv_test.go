package cellconv

import (
	"testing"

	"github.com/starford/nbserde/internal/models"
)

func TestToModel_KindsAndLanguages(t *testing.T) {
	cells := []models.StoredCell{
		models.StoredCellFromMap(map[string]any{"cell_type": "markdown", "source": "# A"}),
		models.StoredCellFromMap(map[string]any{"cell_type": "code", "source": []any{"x\n", "y"}, "outputs": []any{}, "execution_count": nil}),
		models.StoredCellFromMap(map[string]any{"cell_type": "code", "metadata": map[string]any{"vscode": map[string]any{"languageId": "sql"}}, "source": "select 1"}),
		models.StoredCellFromMap(map[string]any{"cell_type": "raw", "source": "raw"}),
	}
	nb, err := ToModel(map[string]any{"metadata": map[string]any{}}, cells, "python", nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		kind models.CellKind
		lang string
		src  string
	}{
		{models.CellKindMarkup, "markdown", "# A"},
		{models.CellKindCode, "python", "x\ny"},
		{models.CellKindCode, "sql", "select 1"},
		{models.CellKindCode, "raw", "raw"},
	}
	for i, w := range want {
		c := nb.Cells[i]
		if c.Kind != w.kind || c.Language != w.lang || c.Source != w.src {
			t.Errorf("cell %d = {%v %q %q}, want {%v %q %q}", i, c.Kind, c.Language, c.Source, w.kind, w.lang, w.src)
		}
	}
	if nb.Cells[1].Outputs == nil {
		t.Error("code cells should carry a non-nil output list")
	}
	if _, ok := nb.Metadata.Custom["metadata"]; !ok {
		t.Error("stripped document should become Custom metadata")
	}
}

func TestToStored_RoundTripsTypes(t *testing.T) {
	cases := []struct {
		cell models.Cell
		want string
	}{
		{models.Cell{Kind: models.CellKindMarkup, Language: "markdown"}, models.CellTypeMarkdown},
		{models.Cell{Kind: models.CellKindCode, Language: "raw"}, models.CellTypeRaw},
		{models.Cell{Kind: models.CellKindCode, Language: "python"}, models.CellTypeCode},
	}
	for _, tc := range cases {
		sc, err := ToStored(tc.cell)
		if err != nil {
			t.Fatal(err)
		}
		if sc.CellType != tc.want {
			t.Errorf("ToStored(%v/%s).CellType = %q, want %q", tc.cell.Kind, tc.cell.Language, sc.CellType, tc.want)
		}
		if (sc.CellType == models.CellTypeCode) != sc.HasOutputs {
			t.Errorf("%s: HasOutputs = %v", sc.CellType, sc.HasOutputs)
		}
	}
}

func TestPrune_NonCodeDropsExecutionFields(t *testing.T) {
	sc := models.StoredCell{
		CellType:          models.CellTypeMarkdown,
		Source:            "a\nb\n",
		Outputs:           []map[string]any{{"output_type": "stream"}},
		HasOutputs:        true,
		HasExecutionCount: true,
	}
	m := Prune(sc).Map()
	if _, ok := m["outputs"]; ok {
		t.Error("outputs should be removed")
	}
	if _, ok := m["execution_count"]; ok {
		t.Error("execution_count should be removed")
	}
	lines := m["source"].([]string)
	if len(lines) != 2 || lines[0] != "a\n" || lines[1] != "b\n" {
		t.Errorf("source = %q", lines)
	}
	if _, ok := m["metadata"].(map[string]any); !ok {
		t.Error("metadata should always be present")
	}
}

func TestPrune_CodeCellNormalized(t *testing.T) {
	original := map[string]any{
		"output_type": "display_data",
		"data":        map[string]any{"text/plain": "1"},
		"transient":   map[string]any{"display_id": "abc"},
	}
	sc := models.StoredCell{CellType: models.CellTypeCode, Outputs: []map[string]any{original}}
	m := Prune(sc).Map()
	if m["execution_count"] != nil {
		t.Errorf("execution_count = %v, want null", m["execution_count"])
	}
	if _, ok := m["execution_count"]; !ok {
		t.Error("execution_count key should be present on code cells")
	}
	outputs := m["outputs"].([]map[string]any)
	if _, ok := outputs[0]["transient"]; ok {
		t.Error("transient should be pruned")
	}
	if _, ok := original["transient"]; !ok {
		t.Error("Prune must not mutate its input")
	}
	if lines := m["source"].([]string); len(lines) != 0 {
		t.Errorf("empty source should be an empty list, got %q", lines)
	}
}

func TestExtraKeysSurviveRoundTrip(t *testing.T) {
	sc := models.StoredCellFromMap(map[string]any{"cell_type": "code", "source": "", "x_custom": 1})
	back, err := ToStored(StoredToCell(sc, "python"))
	if err != nil {
		t.Fatal(err)
	}
	if back.Map()["x_custom"] != 1 {
		t.Errorf("extra key lost: %v", back.Map())
	}
}
