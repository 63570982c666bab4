package index

import "context"

// NotebookIndex is the catalog surface used by the service layer.
type NotebookIndex interface {
	UpsertNotebook(n NotebookRow, body string) error
	DeleteNotebook(path string) error
	GetChecksum(path string) (string, error)
	GetNotebook(path string) (*NotebookRow, error)
	ListNotebooks(limit, offset int, language, sort string) ([]NotebookRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	RecordLanguage(ctx context.Context, language, kernel string) error
	LanguageStats() ([]LanguageStat, error)
	Close() error
}

var _ NotebookIndex = (*DB)(nil)
