package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/jjenkins/acervo/internal/apperr"
	"github.com/jjenkins/acervo/internal/listing"
	"github.com/jjenkins/acervo/internal/model"
)

// EmentaStore is the in-memory ementa table
type EmentaStore struct {
	db *DB
}

func (s *EmentaStore) Create(_ context.Context, e *model.Ementa) error {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()

	db.nextEmentaID++
	e.ID = db.nextEmentaID
	e.CreatedAt = db.now()
	e.UpdatedAt = e.CreatedAt
	db.ementas[e.ID] = *e
	return nil
}

func (s *EmentaStore) Update(_ context.Context, e *model.Ementa) error {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()

	old, ok := db.ementas[e.ID]
	if !ok {
		return fmt.Errorf("ementa %d: %w", e.ID, apperr.ErrNotFound)
	}
	e.CreatedBy = old.CreatedBy
	e.CreatedAt = old.CreatedAt
	e.UpdatedAt = db.now()
	db.ementas[e.ID] = *e
	return nil
}

func (s *EmentaStore) GetByID(_ context.Context, id int64) (*model.Ementa, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	e, ok := s.db.ementas[id]
	if !ok {
		return nil, fmt.Errorf("ementa %d: %w", id, apperr.ErrNotFound)
	}
	return &e, nil
}

// sortEmentas applies the listing order: newest publication first, undated
// last, then newest creation
func sortEmentas(items []model.Ementa) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.PublicationDate.Valid != b.PublicationDate.Valid {
			return a.PublicationDate.Valid
		}
		if a.PublicationDate.Valid && !a.PublicationDate.Time.Equal(b.PublicationDate.Time) {
			return a.PublicationDate.Time.After(b.PublicationDate.Time)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

func (s *EmentaStore) matching(f listing.EmentaFilter) []model.Ementa {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var out []model.Ementa
	for _, e := range s.db.ementas {
		if f.Matches(&e) {
			out = append(out, e)
		}
	}
	sortEmentas(out)
	return out
}

func (s *EmentaStore) Count(_ context.Context, f listing.EmentaFilter) (int, error) {
	return len(s.matching(f)), nil
}

func (s *EmentaStore) Find(_ context.Context, f listing.EmentaFilter, limit, offset int) ([]model.Ementa, error) {
	return window(s.matching(f), limit, offset), nil
}

func (s *EmentaStore) newest(keep func(*model.Ementa) bool, limit int) []model.Ementa {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var out []model.Ementa
	for _, e := range s.db.ementas {
		if keep(&e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return window(out, limit, 0)
}

func (s *EmentaStore) RecentByCreator(_ context.Context, accountID int64, limit int) ([]model.Ementa, error) {
	return s.newest(func(e *model.Ementa) bool { return e.CreatedByAccount(accountID) }, limit), nil
}

func (s *EmentaStore) RecentConfidential(_ context.Context, limit int) ([]model.Ementa, error) {
	return s.newest(func(e *model.Ementa) bool { return e.Confidential && e.Published }, limit), nil
}

func (s *EmentaStore) CountByType(_ context.Context, f listing.EmentaFilter) (map[model.EmentaType]int, error) {
	counts := make(map[model.EmentaType]int)
	for _, e := range s.matching(f) {
		counts[e.Type]++
	}
	return counts, nil
}

// ProtocoloStore is the in-memory protocolo table
type ProtocoloStore struct {
	db *DB
}

func (db *DB) protocoloNumberTakenLocked(number string, exceptID int64) bool {
	for id, p := range db.protocolos {
		if id != exceptID && p.Number == number {
			return true
		}
	}
	return false
}

func (s *ProtocoloStore) Create(_ context.Context, p *model.Protocolo) error {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.protocoloNumberTakenLocked(p.Number, 0) {
		return fmt.Errorf("number: %w", apperr.ErrDuplicate)
	}
	db.nextProtocoloID++
	p.ID = db.nextProtocoloID
	p.CreatedAt = db.now()
	p.UpdatedAt = p.CreatedAt
	if p.IssuedDate.IsZero() {
		p.IssuedDate = dateOnly(p.CreatedAt)
	}
	db.protocolos[p.ID] = *p
	return nil
}

func (s *ProtocoloStore) Update(_ context.Context, p *model.Protocolo) error {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()

	old, ok := db.protocolos[p.ID]
	if !ok {
		return fmt.Errorf("protocolo %d: %w", p.ID, apperr.ErrNotFound)
	}
	if db.protocoloNumberTakenLocked(p.Number, p.ID) {
		return fmt.Errorf("number: %w", apperr.ErrDuplicate)
	}
	p.IssuedDate = old.IssuedDate
	p.CreatedBy = old.CreatedBy
	p.CreatedAt = old.CreatedAt
	p.UpdatedAt = db.now()
	db.protocolos[p.ID] = *p
	return nil
}

func (s *ProtocoloStore) GetByID(_ context.Context, id int64) (*model.Protocolo, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	p, ok := s.db.protocolos[id]
	if !ok {
		return nil, fmt.Errorf("protocolo %d: %w", id, apperr.ErrNotFound)
	}
	return &p, nil
}

func (s *ProtocoloStore) GetByNumber(_ context.Context, number string) (*model.Protocolo, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, p := range s.db.protocolos {
		if p.Number == number {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("protocolo %s: %w", number, apperr.ErrNotFound)
}

func (s *ProtocoloStore) matching(keep func(*model.Protocolo) bool) []model.Protocolo {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var out []model.Protocolo
	for _, p := range s.db.protocolos {
		if keep(&p) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.IssuedDate.Equal(b.IssuedDate) {
			return a.IssuedDate.After(b.IssuedDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return out
}

func (s *ProtocoloStore) Count(_ context.Context, f listing.ProtocoloFilter) (int, error) {
	return len(s.matching(f.Matches)), nil
}

func (s *ProtocoloStore) Find(_ context.Context, f listing.ProtocoloFilter, limit, offset int) ([]model.Protocolo, error) {
	return window(s.matching(f.Matches), limit, offset), nil
}

func (s *ProtocoloStore) ListMissingExternalReference(_ context.Context, limit int) ([]model.Protocolo, error) {
	out := s.matching(func(p *model.Protocolo) bool { return !p.ExternalReference.Valid })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return window(out, limit, 0), nil
}

func (s *ProtocoloStore) SetExternalReference(_ context.Context, id int64, ref string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	p, ok := s.db.protocolos[id]
	if !ok {
		return fmt.Errorf("protocolo %d: %w", id, apperr.ErrNotFound)
	}
	p.ExternalReference.String, p.ExternalReference.Valid = ref, true
	p.UpdatedAt = s.db.now()
	s.db.protocolos[id] = p
	return nil
}
