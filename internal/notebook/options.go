package notebook

import (
	"log/slog"

	"github.com/starford/nbserde/internal/models"
	"github.com/starford/nbserde/internal/telemetry"
)

// IndentDetector returns the dominant indentation unit of raw document text.
type IndentDetector func(text string) string

// IDGenerator returns a fresh unique token on every call.
type IDGenerator func() string

// LanguageResolver picks the preferred cell language from notebook-level
// metadata. metadata is nil when the document carries none.
type LanguageResolver func(metadata map[string]any) string

// CellsConverter builds a document model from stored cells. stripped is the
// parsed document without its cells, full is the whole parsed document.
type CellsConverter func(stripped map[string]any, cells []models.StoredCell, preferredLanguage string, full map[string]any) (*models.Notebook, error)

// CellEncoder converts one model cell into its stored form.
type CellEncoder func(cell models.Cell) (models.StoredCell, error)

// Pruner removes fields that must not be persisted from a stored cell.
type Pruner func(cell models.StoredCell) models.StoredCell

// Option configures a Codec.
type Option func(*Codec)

// WithIndentDetector replaces the indentation detector.
func WithIndentDetector(fn IndentDetector) Option {
	return func(c *Codec) {
		c.detectIndent = fn
	}
}

// WithIDGenerator replaces the document identifier generator.
func WithIDGenerator(fn IDGenerator) Option {
	return func(c *Codec) {
		c.newID = fn
	}
}

// WithObserver sets the observer notified with every parsed document.
func WithObserver(o telemetry.Observer) Option {
	return func(c *Codec) {
		c.observer = o
	}
}

// WithLanguageResolver replaces the preferred language lookup.
func WithLanguageResolver(fn LanguageResolver) Option {
	return func(c *Codec) {
		c.resolveLanguage = fn
	}
}

// WithCellsConverter replaces the stored-to-model cell conversion.
func WithCellsConverter(fn CellsConverter) Option {
	return func(c *Codec) {
		c.toModel = fn
	}
}

// WithCellEncoder replaces the model-to-stored cell conversion.
func WithCellEncoder(fn CellEncoder) Option {
	return func(c *Codec) {
		c.toStored = fn
	}
}

// WithPruner replaces the stored cell pruning step.
func WithPruner(fn Pruner) Option {
	return func(c *Codec) {
		c.prune = fn
	}
}

// WithLogger sets the logger used for observer failures. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(c *Codec) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStrictSchemaVersion disables the legacy write rule that copies a
// recorded nbformat_minor into nbformat when no nbformat is recorded.
func WithStrictSchemaVersion(strict bool) Option {
	return func(c *Codec) {
		c.strictVersion = strict
	}
}
