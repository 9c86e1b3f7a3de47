package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jjenkins/acervo/internal/apperr"
	"github.com/jjenkins/acervo/internal/listing"
	"github.com/jjenkins/acervo/internal/metrics"
	"github.com/jjenkins/acervo/internal/model"
	"github.com/jjenkins/acervo/internal/policy"
)

// ProtocoloInput carries the editable fields of a protocolo form. PersonType
// is accepted but always replaced by the type derived from the tax ID.
type ProtocoloInput struct {
	Number            string           `form:"number" json:"number"`
	TaxID             string           `form:"tax_id" json:"tax_id"`
	PersonType        model.PersonType `form:"person_type" json:"person_type"`
	StorageLocation   string           `form:"storage_location" json:"storage_location"`
	Notes             string           `form:"notes" json:"notes"`
	ExternalReference string           `form:"external_reference" json:"external_reference"`
}

// ProtocoloInputFrom pre-fills a form with the current values of p
func ProtocoloInputFrom(p *model.Protocolo) ProtocoloInput {
	return ProtocoloInput{
		Number:            p.Number,
		TaxID:             p.FormattedTaxID(),
		PersonType:        p.PersonType,
		StorageLocation:   p.StorageLocation,
		Notes:             p.Notes,
		ExternalReference: p.ExternalReference.String,
	}
}

func (in ProtocoloInput) apply(p *model.Protocolo) {
	p.Number = in.Number
	p.TaxID = in.TaxID
	p.PersonType = in.PersonType
	p.StorageLocation = in.StorageLocation
	p.Notes = sanitizeText(in.Notes)
	ref := strings.TrimSpace(in.ExternalReference)
	p.ExternalReference = sql.NullString{String: ref, Valid: ref != ""}
}

// ProtocoloService manages protocolos for authenticated users
type ProtocoloService struct {
	store   ProtocoloStore
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewProtocoloService creates a new ProtocoloService
func NewProtocoloService(store ProtocoloStore, m *metrics.Metrics, logger *zap.Logger) *ProtocoloService {
	return &ProtocoloService{store: store, metrics: m, logger: logger}
}

func requireProtocoloAccess(v policy.Viewer) error {
	if !policy.CanManageProtocolos(v) {
		return apperr.Unauthorized("log in to manage protocolos")
	}
	return nil
}

// Create records a protocolo. The creator is captured here and never changed.
func (s *ProtocoloService) Create(ctx context.Context, v policy.Viewer, in ProtocoloInput) (*model.Protocolo, error) {
	if err := requireProtocoloAccess(v); err != nil {
		return nil, err
	}

	p := &model.Protocolo{CreatedBy: sql.NullInt64{Int64: v.AccountID, Valid: v.AccountID != 0}}
	in.apply(p)
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}

	s.metrics.ProtocoloWritten("create")
	s.logger.Info("protocolo created",
		zap.Int64("protocolo_id", p.ID),
		zap.String("number", p.Number),
		zap.String("person_type", string(p.PersonType)))
	return p, nil
}

// Update edits a protocolo. IssuedDate and CreatedBy are kept.
func (s *ProtocoloService) Update(ctx context.Context, v policy.Viewer, id int64, in ProtocoloInput) (*model.Protocolo, error) {
	p, err := s.Get(ctx, v, id)
	if err != nil {
		return nil, err
	}

	in.apply(p)
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}

	s.metrics.ProtocoloWritten("update")
	s.logger.Info("protocolo updated", zap.Int64("protocolo_id", p.ID))
	return p, nil
}

// Get returns a protocolo by ID
func (s *ProtocoloService) Get(ctx context.Context, v policy.Viewer, id int64) (*model.Protocolo, error) {
	if err := requireProtocoloAccess(v); err != nil {
		return nil, err
	}
	p, err := s.store.GetByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.NotFound("protocolo")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load protocolo %d: %w", id, err)
	}
	return p, nil
}

// List returns one page of protocolos matching query
func (s *ProtocoloService) List(ctx context.Context, v policy.Viewer, query string, page, size int) (listing.Page[model.Protocolo], error) {
	if err := requireProtocoloAccess(v); err != nil {
		return listing.Page[model.Protocolo]{}, err
	}
	f := listing.ProtocoloFilter{Query: strings.TrimSpace(query)}

	total, err := s.store.Count(ctx, f)
	if err != nil {
		return listing.Page[model.Protocolo]{}, fmt.Errorf("failed to count protocolos: %w", err)
	}
	w := listing.Paginate(page, size, total)
	items, err := s.store.Find(ctx, f, w.Size, w.Offset)
	if err != nil {
		return listing.Page[model.Protocolo]{}, fmt.Errorf("failed to list protocolos: %w", err)
	}
	return listing.NewPage(items, w, total), nil
}

// save normalizes the tax ID and derives the person type before anything is
// persisted. An invalid tax ID leaves the store untouched.
func (s *ProtocoloService) save(ctx context.Context, p *model.Protocolo) error {
	if err := p.Normalize(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}

	var err error
	if p.ID == 0 {
		err = s.store.Create(ctx, p)
	} else {
		err = s.store.Update(ctx, p)
	}
	switch {
	case errors.Is(err, apperr.ErrDuplicate):
		return apperr.Duplicate("number", "a protocolo with this number already exists", err)
	case errors.Is(err, apperr.ErrNotFound):
		return apperr.NotFound("protocolo")
	case err != nil:
		return fmt.Errorf("failed to save protocolo: %w", err)
	}
	return nil
}

// SyncStats tracks SITAC synchronization results
type SyncStats struct {
	Total      int
	Registered int
	Failed     int
}

// Registrar registers a protocolo with SITAC and returns its protocol number
type Registrar interface {
	Register(ctx context.Context, p *model.Protocolo) (string, error)
}

// SyncExternalReferences registers up to limit protocolos that have no SITAC
// reference yet. A failure on one record does not stop the others.
func (s *ProtocoloService) SyncExternalReferences(ctx context.Context, registrar Registrar, limit int) (*SyncStats, error) {
	pending, err := s.store.ListMissingExternalReference(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsynced protocolos: %w", err)
	}

	stats := &SyncStats{Total: len(pending)}
	for idx := range pending {
		p := &pending[idx]
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		ref, err := registrar.Register(ctx, p)
		if err == nil && len(ref) > model.MaxExternalReferenceLength {
			err = fmt.Errorf("SITAC returned an over-long protocol number %q", ref)
		}
		if err == nil {
			err = s.store.SetExternalReference(ctx, p.ID, ref)
		}
		if err != nil {
			s.logger.Error("SITAC registration failed",
				zap.Int64("protocolo_id", p.ID),
				zap.String("number", p.Number),
				zap.Error(err))
			s.metrics.SITACSynced("failed")
			stats.Failed++
			continue
		}

		s.logger.Info("protocolo registered with SITAC",
			zap.Int64("protocolo_id", p.ID),
			zap.String("number", p.Number),
			zap.String("sitac", ref))
		s.metrics.SITACSynced("registered")
		stats.Registered++
	}

	return stats, nil
}
