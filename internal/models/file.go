package models

import "time"

// NotebookExt is the file extension of stored notebooks.
const NotebookExt = ".ipynb"

// FileInfo is the lightweight description of a stored notebook file.
type FileInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}
