package mcpserver

// FormatURI is the resource URI of the notebook format description.
const FormatURI = "nbserde://notebook-format"

// NotebookFormatContract describes the stored notebook shape that MCP
// clients should produce when creating notebooks from raw JSON.
const NotebookFormatContract = `# Notebook Format

Notebooks are stored as ` + "`" + `.ipynb` + "`" + ` files: one JSON object, UTF-8, trailing newline.

## Top level

` + "```" + `json
{
 "cells": [ ... ],
 "metadata": {
  "kernelspec": {"name": "python3", "language": "python"},
  "language_info": {"name": "python"},
  "orig_nbformat": 4
 },
 "nbformat": 4,
 "nbformat_minor": 2
}
` + "```" + `

- ` + "`" + `cells` + "`" + ` is required. A notebook without it opens with no cells.
- ` + "`" + `metadata.language_info.name` + "`" + ` (or ` + "`" + `kernelspec.language` + "`" + `) picks the default language
  of code cells. Without either, code cells are Python.
- Unknown top-level keys are kept as they are.
- Keys are written in sorted order. The indentation of the file is kept on save.

## Cells

| cell_type  | fields                                                        |
|------------|---------------------------------------------------------------|
| ` + "`" + `code` + "`" + `     | source, metadata, outputs (list), execution_count (int or null) |
| ` + "`" + `markdown` + "`" + ` | source, metadata, attachments (optional)                      |
| ` + "`" + `raw` + "`" + `      | source, metadata                                              |

- ` + "`" + `source` + "`" + ` is a string or a list of lines; it is saved as a list of lines, each
  keeping its trailing newline.
- A code cell may override its language with ` + "`" + `metadata.vscode.languageId` + "`" + `.
- Markdown cells embed images through ` + "`" + `attachments` + "`" + `:
  ` + "`" + `{"chart.png": {"image/png": "<base64>"}}` + "`" + ` referenced as ` + "`" + `![chart](attachment:chart.png)` + "`" + `.
  Use the ` + "`" + `attach_image` + "`" + ` tool instead of building these by hand.
- ` + "`" + `transient` + "`" + ` output data is dropped on save.
`
