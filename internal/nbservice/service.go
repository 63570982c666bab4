// Package nbservice coordinates workspace storage, the notebook codec and
// the catalog index.
package nbservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/starford/nbserde/internal/apperr"
	"github.com/starford/nbserde/internal/checksum"
	"github.com/starford/nbserde/internal/index"
	"github.com/starford/nbserde/internal/models"
	"github.com/starford/nbserde/internal/notebook"
	"github.com/starford/nbserde/internal/storage"
)

// NotebookDetail is the full representation of a stored notebook.
type NotebookDetail struct {
	Path      string           `json:"path"`
	Checksum  string           `json:"checksum"`
	Size      int              `json:"size"`
	Notebook  *models.Notebook `json:"notebook"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NotebookListItem is a lightweight item in a list response.
type NotebookListItem struct {
	Path          string    `json:"path"`
	Language      string    `json:"language"`
	Kernel        string    `json:"kernel,omitempty"`
	NBFormat      *int      `json:"nbformat,omitempty"`
	NBFormatMinor *int      `json:"nbformat_minor,omitempty"`
	CellCount     int       `json:"cell_count"`
	CodeCells     int       `json:"code_cells"`
	MarkupCells   int       `json:"markup_cells"`
	Checksum      string    `json:"checksum"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Service coordinates storage, codec and index operations.
type Service struct {
	store   storage.Provider
	db      index.NotebookIndex
	codec   *notebook.Codec
	maxSize int64
}

// Option configures a Service.
type Option func(*Service)

// WithMaxSize rejects notebooks larger than n bytes. Zero disables the limit.
func WithMaxSize(n int64) Option {
	return func(s *Service) { s.maxSize = n }
}

// NewService creates a notebook service.
func NewService(store storage.Provider, db index.NotebookIndex, codec *notebook.Codec, opts ...Option) *Service {
	s := &Service{store: store, db: db, codec: codec}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Codec returns the codec used for decode and encode.
func (s *Service) Codec() *notebook.Codec {
	return s.codec
}

func (s *Service) checkSize(data []byte) error {
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return fmt.Errorf("nbservice: %d bytes exceeds limit of %d: %w", len(data), s.maxSize, apperr.ErrTooLarge)
	}
	return nil
}

func (s *Service) read(path string) ([]byte, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("nbservice: %s: %w", path, apperr.ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

// Raw returns the stored bytes of a notebook.
func (s *Service) Raw(_ context.Context, path string) ([]byte, error) {
	return s.read(path)
}

// Open reads and decodes a notebook. Decoding notifies the codec's observers.
func (s *Service) Open(ctx context.Context, path string) (*NotebookDetail, error) {
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	if err := s.checkSize(data); err != nil {
		return nil, err
	}
	nb, err := s.codec.Decode(ctx, data)
	if err != nil {
		return nil, err
	}
	return detail(path, data, nb), nil
}

// Create stores a new notebook. Empty content creates a blank notebook;
// anything else is normalized through a decode/encode pass before writing.
func (s *Service) Create(ctx context.Context, path string, content []byte) (*NotebookDetail, error) {
	if _, err := s.store.Read(path); err == nil {
		return nil, fmt.Errorf("nbservice: %s: %w", path, apperr.ErrAlreadyExists)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err := s.checkSize(content); err != nil {
		return nil, err
	}
	nb, err := s.codec.Decode(ctx, content)
	if err != nil {
		return nil, err
	}
	return s.write(ctx, path, nb)
}

// Save replaces a notebook with nb. When ifMatch is non-empty it must match
// the checksum of the stored bytes, otherwise apperr.ErrConflict is returned.
func (s *Service) Save(ctx context.Context, path string, nb *models.Notebook, ifMatch string) (*NotebookDetail, error) {
	existing, err := s.read(path)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && !checksum.Matches(existing, ifMatch) {
		return nil, fmt.Errorf("nbservice: %s: %w", path, apperr.ErrConflict)
	}
	return s.write(ctx, path, nb)
}

// AppendCell decodes the stored notebook, appends cell and saves the result.
func (s *Service) AppendCell(ctx context.Context, path string, cell models.Cell, ifMatch string) (*NotebookDetail, error) {
	existing, err := s.read(path)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && !checksum.Matches(existing, ifMatch) {
		return nil, fmt.Errorf("nbservice: %s: %w", path, apperr.ErrConflict)
	}
	nb, err := s.codec.Decode(ctx, existing)
	if err != nil {
		return nil, err
	}
	nb.Cells = append(nb.Cells, cell)
	return s.write(ctx, path, nb)
}

func (s *Service) write(ctx context.Context, path string, nb *models.Notebook) (*NotebookDetail, error) {
	data, err := s.codec.Encode(ctx, nb)
	if err != nil {
		return nil, err
	}
	if err := s.checkSize(data); err != nil {
		return nil, err
	}
	if err := s.store.Write(path, data); err != nil {
		return nil, err
	}
	if err := s.IndexFile(ctx, path, data); err != nil {
		return nil, err
	}
	return detail(path, data, nb), nil
}

// Delete removes a notebook from storage and index.
func (s *Service) Delete(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("nbservice: %s: %w", path, apperr.ErrNotFound)
		}
		return err
	}
	return s.db.DeleteNotebook(path)
}

// List returns paginated catalog entries with an optional language filter.
func (s *Service) List(_ context.Context, limit, offset int, language, sort string) ([]NotebookListItem, int, error) {
	rows, total, err := s.db.ListNotebooks(limit, offset, language, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]NotebookListItem, len(rows))
	for i, r := range rows {
		items[i] = NotebookListItem{
			Path:          r.Path,
			Language:      r.Language,
			Kernel:        r.Kernel,
			NBFormat:      r.NBFormat,
			NBFormatMinor: r.NBFormatMinor,
			CellCount:     r.CellCount,
			CodeCells:     r.CodeCells,
			MarkupCells:   r.MarkupCells,
			Checksum:      r.Checksum,
			UpdatedAt:     r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates cell source search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Languages returns language usage counters.
func (s *Service) Languages(_ context.Context) ([]index.LanguageStat, error) {
	return s.db.LanguageStats()
}

// Normalize decodes data and encodes it again, yielding the canonical
// stored form of the notebook.
func (s *Service) Normalize(ctx context.Context, data []byte) ([]byte, error) {
	if err := s.checkSize(data); err != nil {
		return nil, err
	}
	nb, err := s.codec.Decode(ctx, data)
	if err != nil {
		return nil, err
	}
	return s.codec.Encode(ctx, nb)
}

// Rename moves a notebook to a new path and moves its catalog entry with it.
func (s *Service) Rename(ctx context.Context, from, to string) (*NotebookDetail, error) {
	if err := s.store.Move(from, to); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("nbservice: %s: %w", from, apperr.ErrNotFound)
		}
		return nil, err
	}
	if err := s.db.DeleteNotebook(from); err != nil {
		return nil, fmt.Errorf("nbservice: rename: %w", err)
	}
	data, err := s.read(to)
	if err != nil {
		return nil, err
	}
	nb, err := s.codec.Decode(ctx, data)
	if err != nil {
		return nil, err
	}
	if err := s.IndexFile(ctx, to, data); err != nil {
		return nil, fmt.Errorf("nbservice: rename: %w", err)
	}
	return detail(to, data, nb), nil
}

// IndexFile decodes data and upserts its summary into the index.
func (s *Service) IndexFile(ctx context.Context, path string, data []byte) error {
	return index.IndexFile(ctx, s.db, path, data)
}

func detail(path string, data []byte, nb *models.Notebook) *NotebookDetail {
	return &NotebookDetail{
		Path:      path,
		Checksum:  checksum.Sum(data),
		Size:      len(data),
		Notebook:  nb,
		UpdatedAt: time.Now().UTC(),
	}
}
