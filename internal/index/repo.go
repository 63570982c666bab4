package index

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/starford/nbserde/internal/apperr"
)

// NotebookRow represents a row in the notebooks table.
type NotebookRow struct {
	Path          string
	Language      string
	Kernel        string
	NBFormat      *int
	NBFormatMinor *int
	CellCount     int
	CodeCells     int
	MarkupCells   int
	Checksum      string
	UpdatedAt     time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path     string `json:"path"`
	Language string `json:"language"`
	Snippet  string `json:"snippet"`
}

// LanguageStat is the usage counter for one language.
type LanguageStat struct {
	Language string    `json:"language"`
	Kernel   string    `json:"kernel,omitempty"`
	Opens    int       `json:"opens"`
	LastSeen time.Time `json:"last_seen"`
	// Notebooks is the number of indexed notebooks using the language.
	Notebooks int `json:"notebooks"`
}

// UpsertNotebook inserts or replaces a notebook row and its FTS entry within a transaction.
func (db *DB) UpsertNotebook(n NotebookRow, body string) error {
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now().UTC()
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO notebooks (path, language, kernel, nbformat, nbformat_minor,
			cell_count, code_cells, markup_cells, checksum, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			language       = excluded.language,
			kernel         = excluded.kernel,
			nbformat       = excluded.nbformat,
			nbformat_minor = excluded.nbformat_minor,
			cell_count     = excluded.cell_count,
			code_cells     = excluded.code_cells,
			markup_cells   = excluded.markup_cells,
			checksum       = excluded.checksum,
			body           = excluded.body,
			updated_at     = excluded.updated_at
	`, n.Path, n.Language, n.Kernel, nullInt(n.NBFormat), nullInt(n.NBFormatMinor),
		n.CellCount, n.CodeCells, n.MarkupCells, n.Checksum, body, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert notebook: %w", err)
	}

	// No-op when the sqlite_fts5 tag is absent.
	if err := ftsUpsert(tx, n.Path, n.Language, body); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteNotebook removes a notebook and its FTS entry.
func (db *DB) DeleteNotebook(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM notebooks WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete notebook: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a notebook, or "" if not indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notebooks WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

const rowColumns = `path, language, kernel, nbformat, nbformat_minor,
	cell_count, code_cells, markup_cells, checksum, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(s rowScanner) (NotebookRow, error) {
	var (
		r            NotebookRow
		major, minor sql.NullInt64
	)
	err := s.Scan(&r.Path, &r.Language, &r.Kernel, &major, &minor,
		&r.CellCount, &r.CodeCells, &r.MarkupCells, &r.Checksum, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	r.NBFormat = intPtr(major)
	r.NBFormatMinor = intPtr(minor)
	return r, nil
}

// GetNotebook returns the catalog row for path or apperr.ErrNotFound.
func (db *DB) GetNotebook(path string) (*NotebookRow, error) {
	r, err := scanRow(db.conn.QueryRow(`SELECT `+rowColumns+` FROM notebooks WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: notebook %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get notebook: %w", err)
	}
	return &r, nil
}

var sortColumns = map[string]string{
	"":         "path ASC",
	"path":     "path ASC",
	"updated":  "updated_at DESC",
	"cells":    "cell_count DESC, path ASC",
	"language": "language ASC, path ASC",
}

// ListNotebooks returns a page of catalog rows and the total row count.
// language filters by editor language id when non-empty. sort is one of
// path, updated, cells or language.
func (db *DB) ListNotebooks(limit, offset int, language, sort string) ([]NotebookRow, int, error) {
	order, ok := sortColumns[sort]
	if !ok {
		return nil, 0, fmt.Errorf("index: unknown sort %q", sort)
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := ""
	args := []any{}
	if language != "" {
		where = " WHERE language = ?"
		args = append(args, language)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notebooks`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notebooks: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+rowColumns+` FROM notebooks`+where+
		` ORDER BY `+order+` LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notebooks: %w", err)
	}
	defer rows.Close()

	out := []NotebookRow{}
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// AllChecksums returns path -> checksum for every indexed notebook.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notebooks`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// RecordLanguage bumps the open counter for language.
func (db *DB) RecordLanguage(ctx context.Context, language, kernel string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO language_usage (language, kernel, opens, last_seen)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(language) DO UPDATE SET
			kernel    = CASE WHEN excluded.kernel = '' THEN language_usage.kernel ELSE excluded.kernel END,
			opens     = language_usage.opens + 1,
			last_seen = excluded.last_seen
	`, language, kernel, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: record language: %w", err)
	}
	return nil
}

// LanguageStats returns usage counters ordered by opens, most used first.
// Languages present in the catalog but never opened are included with zero opens.
func (db *DB) LanguageStats() ([]LanguageStat, error) {
	counts, err := db.languageCounts()
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(`SELECT language, kernel, opens, last_seen FROM language_usage`)
	if err != nil {
		return nil, fmt.Errorf("index: language stats: %w", err)
	}
	defer rows.Close()

	out := []LanguageStat{}
	for rows.Next() {
		var s LanguageStat
		if err := rows.Scan(&s.Language, &s.Kernel, &s.Opens, &s.LastSeen); err != nil {
			return nil, err
		}
		s.Notebooks = counts[s.Language]
		delete(counts, s.Language)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for lang, n := range counts {
		out = append(out, LanguageStat{Language: lang, Notebooks: n})
	}

	slices.SortFunc(out, func(a, b LanguageStat) int {
		if c := cmp.Compare(b.Opens, a.Opens); c != 0 {
			return c
		}
		return strings.Compare(a.Language, b.Language)
	})
	return out, nil
}

func (db *DB) languageCounts() (map[string]int, error) {
	rows, err := db.conn.Query(`SELECT language, count(*) FROM notebooks WHERE language <> '' GROUP BY language`)
	if err != nil {
		return nil, fmt.Errorf("index: language counts: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var (
			lang string
			n    int
		)
		if err := rows.Scan(&lang, &n); err != nil {
			return nil, err
		}
		out[lang] = n
	}
	return out, rows.Err()
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
