// Package notebook converts between persisted .ipynb bytes and the
// in-memory notebook document model.
//
// Decode turns raw bytes into a models.Notebook, absorbing missing fields,
// empty cell lists and unknown indentation. Encode and EncodeDocument turn a
// snapshot or a live document back into bytes, reusing the indentation unit
// and schema version recorded at decode time. Both directions delegate the
// per-cell mapping to injectable converters.
package notebook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/starford/nbserde/internal/apperr"
	"github.com/starford/nbserde/internal/cellconv"
	"github.com/starford/nbserde/internal/indent"
	"github.com/starford/nbserde/internal/language"
	"github.com/starford/nbserde/internal/models"
	"github.com/starford/nbserde/internal/telemetry"
)

// Codec holds the collaborators used by Decode and Encode. A Codec has no
// mutable state and is safe for concurrent use.
type Codec struct {
	detectIndent    IndentDetector
	newID           IDGenerator
	observer        telemetry.Observer
	resolveLanguage LanguageResolver
	toModel         CellsConverter
	toStored        CellEncoder
	prune           Pruner
	logger          *slog.Logger
	strictVersion   bool
}

// New returns a Codec with the default collaborators, modified by opts.
func New(opts ...Option) *Codec {
	c := &Codec{
		detectIndent:    indent.Detect,
		newID:           uuid.NewString,
		resolveLanguage: language.NewResolver("").Resolve,
		toModel:         cellconv.ToModel,
		toStored:        cellconv.ToStored,
		prune:           cellconv.Prune,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Document is a live notebook owned by a host editor.
type Document interface {
	CellCount() int
	CellAt(index int) models.Cell
	Metadata() models.Metadata
}

// MalformedInputError reports non-empty input that is not valid JSON.
type MalformedInputError struct {
	Err error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("notebook: malformed input: %v", e.Err)
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// Is matches apperr.ErrMalformedInput.
func (e *MalformedInputError) Is(target error) bool {
	return target == apperr.ErrMalformedInput
}

var defaultCodec = New()

// Decode converts raw notebook bytes with the default collaborators.
func Decode(ctx context.Context, data []byte) (*models.Notebook, error) {
	return defaultCodec.Decode(ctx, data)
}

// Encode converts a notebook snapshot to bytes with the default collaborators.
func Encode(ctx context.Context, nb *models.Notebook) ([]byte, error) {
	return defaultCodec.Encode(ctx, nb)
}

// EncodeDocument converts a live document to bytes with the default collaborators.
func EncodeDocument(ctx context.Context, doc Document) ([]byte, error) {
	return defaultCodec.EncodeDocument(ctx, doc)
}
