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

const protocoloColumns = `
	id, number, issued_date, tax_id, person_type, storage_location, notes,
	external_reference, created_by, created_at, updated_at`

// ProtocoloStore handles database operations for protocolos
type ProtocoloStore struct {
	db *sql.DB
}

// NewProtocoloStore creates a new ProtocoloStore
func NewProtocoloStore(db *sql.DB) *ProtocoloStore {
	return &ProtocoloStore{db: db}
}

func scanProtocolo(row rowScanner) (*model.Protocolo, error) {
	var p model.Protocolo
	err := row.Scan(
		&p.ID,
		&p.Number,
		&p.IssuedDate,
		&p.TaxID,
		&p.PersonType,
		&p.StorageLocation,
		&p.Notes,
		&p.ExternalReference,
		&p.CreatedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts p. The issued date defaults to today when zero.
func (s *ProtocoloStore) Create(ctx context.Context, p *model.Protocolo) error {
	query := `
		INSERT INTO protocolos (number, issued_date, tax_id, person_type, storage_location,
		                        notes, external_reference, created_by)
		VALUES ($1, COALESCE($2::date, CURRENT_DATE), $3, $4, $5, $6, $7, $8)
		RETURNING id, issued_date, created_at, updated_at
	`

	var issued sql.NullTime
	if !p.IssuedDate.IsZero() {
		issued = sql.NullTime{Time: p.IssuedDate, Valid: true}
	}

	err := s.db.QueryRowContext(ctx, query,
		p.Number,
		issued,
		p.TaxID,
		string(p.PersonType),
		p.StorageLocation,
		p.Notes,
		p.ExternalReference,
		p.CreatedBy,
	).Scan(&p.ID, &p.IssuedDate, &p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return duplicateError(err)
	}
	if err != nil {
		return fmt.Errorf("failed to create protocolo %s: %w", p.Number, err)
	}

	return nil
}

// Update rewrites the mutable columns. IssuedDate and CreatedBy are fixed at
// creation.
func (s *ProtocoloStore) Update(ctx context.Context, p *model.Protocolo) error {
	query := `
		UPDATE protocolos SET
			number = $2,
			tax_id = $3,
			person_type = $4,
			storage_location = $5,
			notes = $6,
			external_reference = $7,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		p.ID,
		p.Number,
		p.TaxID,
		string(p.PersonType),
		p.StorageLocation,
		p.Notes,
		p.ExternalReference,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("protocolo %d: %w", p.ID, apperr.ErrNotFound)
	}
	if isUniqueViolation(err) {
		return duplicateError(err)
	}
	if err != nil {
		return fmt.Errorf("failed to update protocolo %d: %w", p.ID, err)
	}

	return nil
}

// GetByID retrieves a protocolo by its ID
func (s *ProtocoloStore) GetByID(ctx context.Context, id int64) (*model.Protocolo, error) {
	query := `SELECT ` + protocoloColumns + ` FROM protocolos WHERE id = $1`

	p, err := scanProtocolo(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("protocolo %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get protocolo %d: %w", id, err)
	}

	return p, nil
}

// GetByNumber retrieves a protocolo by its unique number
func (s *ProtocoloStore) GetByNumber(ctx context.Context, number string) (*model.Protocolo, error) {
	query := `SELECT ` + protocoloColumns + ` FROM protocolos WHERE number = $1`

	p, err := scanProtocolo(s.db.QueryRowContext(ctx, query, number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("protocolo %s: %w", number, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get protocolo %s: %w", number, err)
	}

	return p, nil
}

func protocoloWhere(f listing.ProtocoloFilter) *whereBuilder {
	w := &whereBuilder{}
	if f.Query != "" {
		p := w.arg(containsPattern(f.Query))
		w.add(fmt.Sprintf("(number ILIKE %[1]s OR tax_id ILIKE %[1]s OR storage_location ILIKE %[1]s OR notes ILIKE %[1]s)", p))
	}
	return w
}

// Count returns how many protocolos match f
func (s *ProtocoloStore) Count(ctx context.Context, f listing.ProtocoloFilter) (int, error) {
	w := protocoloWhere(f)

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM protocolos `+w.clause(), w.args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count protocolos: %w", err)
	}
	return count, nil
}

// Find returns one window of matching protocolos, newest issue first
func (s *ProtocoloStore) Find(ctx context.Context, f listing.ProtocoloFilter, limit, offset int) ([]model.Protocolo, error) {
	w := protocoloWhere(f)
	query := fmt.Sprintf(`SELECT %s FROM protocolos %s
		ORDER BY issued_date DESC, created_at DESC, id DESC
		LIMIT %s OFFSET %s`,
		protocoloColumns, w.clause(), w.arg(limit), w.arg(offset))

	return s.query(ctx, query, w.args...)
}

// ListMissingExternalReference returns the oldest protocolos not yet
// registered with SITAC
func (s *ProtocoloStore) ListMissingExternalReference(ctx context.Context, limit int) ([]model.Protocolo, error) {
	query := `SELECT ` + protocoloColumns + ` FROM protocolos
		WHERE external_reference IS NULL
		ORDER BY created_at, id
		LIMIT $1`

	return s.query(ctx, query, limit)
}

// SetExternalReference stores the SITAC protocol number of a protocolo
func (s *ProtocoloStore) SetExternalReference(ctx context.Context, id int64, ref string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE protocolos SET external_reference = $2, updated_at = NOW() WHERE id = $1`,
		id, ref)
	if err != nil {
		return fmt.Errorf("failed to set external reference of protocolo %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("protocolo %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (s *ProtocoloStore) query(ctx context.Context, query string, args ...any) ([]model.Protocolo, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get protocolos: %w", err)
	}
	defer rows.Close()

	var protocolos []model.Protocolo
	for rows.Next() {
		p, err := scanProtocolo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan protocolo: %w", err)
		}
		protocolos = append(protocolos, *p)
	}

	return protocolos, rows.Err()
}
