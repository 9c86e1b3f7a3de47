package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jjenkins/acervo/internal/apperr"
	"github.com/jjenkins/acervo/internal/listing"
	"github.com/jjenkins/acervo/internal/model"
)

const ementaColumns = `
	id, number, title, type, status, summary, extended_summary,
	publication_date, attached_file, published, confidential,
	created_by, created_at, updated_at`

// Newest publication first, undated records last
const ementaOrder = `ORDER BY publication_date DESC NULLS LAST, created_at DESC, id DESC`

// EmentaStore handles database operations for ementas
type EmentaStore struct {
	db *sql.DB
}

// NewEmentaStore creates a new EmentaStore
func NewEmentaStore(db *sql.DB) *EmentaStore {
	return &EmentaStore{db: db}
}

func scanEmenta(row rowScanner) (*model.Ementa, error) {
	var e model.Ementa
	err := row.Scan(
		&e.ID,
		&e.Number,
		&e.Title,
		&e.Type,
		&e.Status,
		&e.Summary,
		&e.ExtendedSummary,
		&e.PublicationDate,
		&e.AttachedFile,
		&e.Published,
		&e.Confidential,
		&e.CreatedBy,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts e and fills in its ID and timestamps
func (s *EmentaStore) Create(ctx context.Context, e *model.Ementa) error {
	query := `
		INSERT INTO ementas (number, title, type, status, summary, extended_summary,
		                     publication_date, attached_file, published, confidential, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		e.Number,
		e.Title,
		string(e.Type),
		string(e.Status),
		e.Summary,
		e.ExtendedSummary,
		e.PublicationDate,
		e.AttachedFile,
		e.Published,
		e.Confidential,
		e.CreatedBy,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ementa: %w", err)
	}

	return nil
}

// Update rewrites every mutable column of e. CreatedBy and CreatedAt are
// never touched.
func (s *EmentaStore) Update(ctx context.Context, e *model.Ementa) error {
	query := `
		UPDATE ementas SET
			number = $2,
			title = $3,
			type = $4,
			status = $5,
			summary = $6,
			extended_summary = $7,
			publication_date = $8,
			attached_file = $9,
			published = $10,
			confidential = $11,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		e.ID,
		e.Number,
		e.Title,
		string(e.Type),
		string(e.Status),
		e.Summary,
		e.ExtendedSummary,
		e.PublicationDate,
		e.AttachedFile,
		e.Published,
		e.Confidential,
	).Scan(&e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("ementa %d: %w", e.ID, apperr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update ementa %d: %w", e.ID, err)
	}

	return nil
}

// GetByID retrieves an ementa regardless of visibility. Callers apply the
// access policy.
func (s *EmentaStore) GetByID(ctx context.Context, id int64) (*model.Ementa, error) {
	query := `SELECT ` + ementaColumns + ` FROM ementas WHERE id = $1`

	e, err := scanEmenta(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ementa %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ementa %d: %w", id, err)
	}

	return e, nil
}

func ementaWhere(f listing.EmentaFilter) *whereBuilder {
	w := &whereBuilder{}
	if !f.Visibility.IncludeUnpublished {
		w.add("published")
	}
	if !f.Visibility.IncludeConfidential {
		w.add("NOT confidential")
	}
	if f.Type != "" {
		w.add("type = " + w.arg(string(f.Type)))
	}
	if f.Status != "" {
		w.add("status = " + w.arg(string(f.Status)))
	}
	if !f.DateFrom.IsZero() {
		w.add("publication_date >= " + w.arg(f.DateFrom.Format("2006-01-02")) + "::date")
	}
	if !f.DateTo.IsZero() {
		w.add("publication_date <= " + w.arg(f.DateTo.Format("2006-01-02")) + "::date")
	}
	if f.Query != "" {
		p := w.arg(containsPattern(f.Query))
		w.add(fmt.Sprintf("(title ILIKE %[1]s OR number ILIKE %[1]s OR summary ILIKE %[1]s OR extended_summary ILIKE %[1]s)", p))
	}
	return w
}

// Count returns how many ementas match f
func (s *EmentaStore) Count(ctx context.Context, f listing.EmentaFilter) (int, error) {
	w := ementaWhere(f)
	query := `SELECT COUNT(*) FROM ementas ` + w.clause()

	var count int
	if err := s.db.QueryRowContext(ctx, query, w.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count ementas: %w", err)
	}
	return count, nil
}

// Find returns one window of the ementas matching f in listing order
func (s *EmentaStore) Find(ctx context.Context, f listing.EmentaFilter, limit, offset int) ([]model.Ementa, error) {
	w := ementaWhere(f)
	query := fmt.Sprintf(`SELECT %s FROM ementas %s %s LIMIT %s OFFSET %s`,
		ementaColumns, w.clause(), ementaOrder, w.arg(limit), w.arg(offset))

	return s.query(ctx, query, w.args...)
}

// RecentByCreator returns the newest ementas created by accountID
func (s *EmentaStore) RecentByCreator(ctx context.Context, accountID int64, limit int) ([]model.Ementa, error) {
	query := `SELECT ` + ementaColumns + ` FROM ementas
		WHERE created_by = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	return s.query(ctx, query, accountID, limit)
}

// RecentConfidential returns the newest published confidential ementas
func (s *EmentaStore) RecentConfidential(ctx context.Context, limit int) ([]model.Ementa, error) {
	query := `SELECT ` + ementaColumns + ` FROM ementas
		WHERE confidential AND published
		ORDER BY created_at DESC, id DESC
		LIMIT $1`

	return s.query(ctx, query, limit)
}

// CountByType returns the number of ementas of each type visible under f
func (s *EmentaStore) CountByType(ctx context.Context, f listing.EmentaFilter) (map[model.EmentaType]int, error) {
	w := ementaWhere(f)
	query := `SELECT type, COUNT(*) FROM ementas ` + w.clause() + ` GROUP BY type`

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count ementas by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.EmentaType]int)
	for rows.Next() {
		var t model.EmentaType
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("failed to scan type count: %w", err)
		}
		counts[t] = n
	}

	return counts, rows.Err()
}

func (s *EmentaStore) query(ctx context.Context, query string, args ...any) ([]model.Ementa, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get ementas: %w", err)
	}
	defer rows.Close()

	var ementas []model.Ementa
	for rows.Next() {
		e, err := scanEmenta(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ementa: %w", err)
		}
		ementas = append(ementas, *e)
	}

	return ementas, rows.Err()
}
