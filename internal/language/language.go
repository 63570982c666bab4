// Package language resolves the preferred cell language of a notebook from its metadata.
package language

import "strings"

// DefaultLanguage is used when a notebook names no kernel language.
const DefaultLanguage = "python"

var kernelToEditor = map[string]string{
	"c#":      "csharp",
	"f#":      "fsharp",
	"q#":      "qsharp",
	"c++11":   "c++",
	"c++12":   "c++",
	"c++14":   "c++",
	"c++17":   "c++",
	"c++20":   "c++",
	"bash":    "shellscript",
	"sh":      "shellscript",
	"pwsh":    "powershell",
	"ipython": "python",
	"python3": "python",
}

// Resolver picks the language for cells that carry no language tag.
type Resolver struct {
	fallback string
}

// NewResolver returns a Resolver that falls back to fallback, or
// DefaultLanguage when fallback is empty.
func NewResolver(fallback string) *Resolver {
	if fallback == "" {
		fallback = DefaultLanguage
	}
	return &Resolver{fallback: fallback}
}

// Resolve returns the notebook language from metadata.language_info.name,
// then metadata.kernelspec.language, then the fallback. metadata may be nil.
func (r *Resolver) Resolve(metadata map[string]any) string {
	if lang := FromMetadata(metadata); lang != "" {
		return Translate(lang)
	}
	return Translate(r.fallback)
}

// FromMetadata returns the raw kernel language named by notebook metadata, or "".
func FromMetadata(metadata map[string]any) string {
	if metadata == nil {
		return ""
	}
	if info, ok := metadata["language_info"].(map[string]any); ok {
		if name, ok := info["name"].(string); ok && name != "" {
			return name
		}
	}
	if spec, ok := metadata["kernelspec"].(map[string]any); ok {
		if lang, ok := spec["language"].(string); ok && lang != "" {
			return lang
		}
	}
	return ""
}

// Translate maps a kernel language name to the editor language id.
func Translate(kernelLanguage string) string {
	lang := strings.ToLower(strings.TrimSpace(kernelLanguage))
	if mapped, ok := kernelToEditor[lang]; ok {
		return mapped
	}
	return lang
}
