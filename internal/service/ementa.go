package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"

	"go.uber.org/zap"

	"github.com/jjenkins/acervo/internal/apperr"
	"github.com/jjenkins/acervo/internal/blob"
	"github.com/jjenkins/acervo/internal/listing"
	"github.com/jjenkins/acervo/internal/metrics"
	"github.com/jjenkins/acervo/internal/model"
	"github.com/jjenkins/acervo/internal/policy"
)

// EmentaInput carries the editable fields of an ementa form
type EmentaInput struct {
	Number          string
	Title           string
	Type            model.EmentaType
	Status          model.EmentaStatus
	Summary         string
	ExtendedSummary string
	PublicationDate sql.NullTime
	Published       bool
	Confidential    bool

	// Attachment replaces the current file when set
	Attachment *Upload
	// RemoveAttachment drops the current file
	RemoveAttachment bool
}

// InputFrom pre-fills a form with the current values of e
func InputFrom(e *model.Ementa) EmentaInput {
	return EmentaInput{
		Number:          e.Number,
		Title:           e.Title,
		Type:            e.Type,
		Status:          e.Status,
		Summary:         e.Summary,
		ExtendedSummary: e.ExtendedSummary,
		PublicationDate: e.PublicationDate,
		Published:       e.Published,
		Confidential:    e.Confidential,
	}
}

func (in EmentaInput) apply(e *model.Ementa) {
	e.Number = in.Number
	e.Title = in.Title
	e.Type = in.Type
	e.Status = in.Status
	e.Summary = sanitizeText(in.Summary)
	e.ExtendedSummary = sanitizeText(in.ExtendedSummary)
	e.PublicationDate = in.PublicationDate
	e.Published = in.Published
	e.Confidential = in.Confidential
	if in.RemoveAttachment {
		e.AttachedFile = sql.NullString{}
	}
}

// EmentaService is the ementa catalog: every read goes through the access
// policy and every write through the confidentiality invariant.
type EmentaService struct {
	store   EmentaStore
	blobs   BlobStore
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewEmentaService creates a new EmentaService
func NewEmentaService(store EmentaStore, blobs BlobStore, m *metrics.Metrics, logger *zap.Logger) *EmentaService {
	return &EmentaService{store: store, blobs: blobs, metrics: m, logger: logger}
}

// Get returns the ementa if v may read it. Unpublished records are reported
// as not found; confidential ones as access denied.
func (s *EmentaService) Get(ctx context.Context, v policy.Viewer, id int64) (*model.Ementa, error) {
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	decision := policy.ViewEmenta(v, e)
	s.metrics.AccessDecided(decision.String())
	switch decision {
	case policy.NotFound:
		return nil, apperr.NotFound("ementa")
	case policy.Denied:
		s.logger.Info("confidential ementa withheld",
			zap.Int64("ementa_id", id),
			zap.Int64("account_id", v.AccountID))
		return nil, apperr.AccessDenied("you do not have permission to view confidential ementas")
	}
	return e, nil
}

// List returns one page of the ementas v may see
func (s *EmentaService) List(ctx context.Context, v policy.Viewer, c listing.Criteria) (listing.Page[model.Ementa], error) {
	filter := c.Filter(policy.ListVisibility(v))

	total, err := s.store.Count(ctx, filter)
	if err != nil {
		return listing.Page[model.Ementa]{}, fmt.Errorf("failed to count ementas: %w", err)
	}

	w := listing.Paginate(c.Page, c.PageSize, total)
	items, err := s.store.Find(ctx, filter, w.Size, w.Offset)
	if err != nil {
		return listing.Page[model.Ementa]{}, fmt.Errorf("failed to list ementas: %w", err)
	}

	return listing.NewPage(items, w, total), nil
}

// Create records a new ementa on behalf of v, who needs the publish right
func (s *EmentaService) Create(ctx context.Context, v policy.Viewer, in EmentaInput) (*model.Ementa, error) {
	if !v.Authenticated {
		return nil, apperr.Unauthorized("log in to create ementas")
	}
	if !policy.CanCreateEmenta(v) {
		return nil, apperr.AccessDenied("you do not have permission to create ementas")
	}

	e := model.NewEmenta()
	in.apply(e)
	e.CreatedBy = sql.NullInt64{Int64: v.AccountID, Valid: v.AccountID != 0}

	if err := s.save(ctx, e, in.Attachment, sql.NullString{}); err != nil {
		return nil, err
	}
	s.metrics.EmentaWritten("create")
	s.logger.Info("ementa created",
		zap.Int64("ementa_id", e.ID),
		zap.Int64("account_id", v.AccountID),
		zap.Bool("confidential", e.Confidential))
	return e, nil
}

// Update edits an ementa. Records v cannot see are reported as not found
// before edit rights are considered.
func (s *EmentaService) Update(ctx context.Context, v policy.Viewer, id int64, in EmentaInput) (*model.Ementa, error) {
	if !v.Authenticated {
		return nil, apperr.Unauthorized("log in to edit ementas")
	}
	e, err := s.Editable(ctx, v, id)
	if err != nil {
		return nil, err
	}

	previous := e.AttachedFile
	in.apply(e)
	if err := s.save(ctx, e, in.Attachment, previous); err != nil {
		return nil, err
	}
	s.metrics.EmentaWritten("update")
	s.logger.Info("ementa updated",
		zap.Int64("ementa_id", e.ID),
		zap.Int64("account_id", v.AccountID),
		zap.Bool("confidential", e.Confidential))
	return e, nil
}

// Editable loads an ementa for editing by v
func (s *EmentaService) Editable(ctx context.Context, v policy.Viewer, id int64) (*model.Ementa, error) {
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.Published && !v.Staff && !e.CreatedByAccount(v.AccountID) {
		return nil, apperr.NotFound("ementa")
	}
	if !policy.CanEditEmenta(v, e) {
		return nil, apperr.AccessDenied("you do not have permission to edit this ementa")
	}
	return e, nil
}

// Attachment opens the attached file of an ementa v may read
func (s *EmentaService) Attachment(ctx context.Context, v policy.Viewer, id int64) (io.ReadCloser, string, error) {
	e, err := s.Get(ctx, v, id)
	if err != nil {
		return nil, "", err
	}
	if !e.AttachedFile.Valid {
		return nil, "", apperr.NotFound("attachment")
	}
	rc, err := s.blobs.Open(ctx, e.AttachedFile.String)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, "", apperr.NotFound("attachment")
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to open attachment of ementa %d: %w", id, err)
	}
	return rc, path.Base(e.AttachedFile.String), nil
}

// Import stores a record coming from a bulk source. No viewer is involved,
// but the record goes through the same write path as a form submission.
func (s *EmentaService) Import(ctx context.Context, e *model.Ementa) error {
	e.Summary = sanitizeText(e.Summary)
	e.ExtendedSummary = sanitizeText(e.ExtendedSummary)
	if err := s.save(ctx, e, nil, sql.NullString{}); err != nil {
		return err
	}
	s.metrics.EmentaWritten("import")
	return nil
}

// SetConfidential marks or unmarks ementas as confidential. Each record is
// written individually, so marking scrubs its content and attachment.
func (s *EmentaService) SetConfidential(ctx context.Context, ids []int64, confidential bool) (*BulkResult, error) {
	result := &BulkResult{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		e, err := s.store.GetByID(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			result.Missing = append(result.Missing, strconv.FormatInt(id, 10))
			continue
		}
		if err != nil {
			return result, fmt.Errorf("failed to load ementa %d: %w", id, err)
		}

		previous := e.AttachedFile
		e.Confidential = confidential
		if err := s.save(ctx, e, nil, previous); err != nil {
			return result, fmt.Errorf("ementa %d: %w", id, err)
		}
		result.Updated++
		s.metrics.EmentaWritten("confidential")
	}

	s.logger.Info("confidentiality changed",
		zap.Bool("confidential", confidential),
		zap.Int("updated", result.Updated),
		zap.Strings("missing", result.Missing))
	return result, nil
}

func (s *EmentaService) load(ctx context.Context, id int64) (*model.Ementa, error) {
	e, err := s.store.GetByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.NotFound("ementa")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ementa %d: %w", id, err)
	}
	return e, nil
}

// save is the single write path. It validates, applies the confidentiality
// scrub and title fallback, stores a new attachment, persists, and finally
// removes the attachment the record no longer points at.
func (s *EmentaService) save(ctx context.Context, e *model.Ementa, upload *Upload, previous sql.NullString) error {
	e.Clean()
	if err := e.Validate(); err != nil {
		return err
	}

	var stored string
	if upload != nil && !e.Confidential {
		ref, err := s.blobs.Put(ctx, model.EmentaFilePrefix, upload.Filename, upload.Body, blob.AttachmentExtensions)
		if errors.Is(err, blob.ErrExtensionNotAllowed) {
			return apperr.Validation("attached_file", "only PDF files can be attached")
		}
		if err != nil {
			return fmt.Errorf("failed to store attachment: %w", err)
		}
		stored = ref
		e.AttachedFile = sql.NullString{String: ref, Valid: true}
	}

	var err error
	if e.ID == 0 {
		err = s.store.Create(ctx, e)
	} else {
		err = s.store.Update(ctx, e)
	}
	if err != nil {
		if stored != "" {
			s.deleteBlob(ctx, stored)
		}
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.NotFound("ementa")
		}
		return fmt.Errorf("failed to save ementa: %w", err)
	}

	if previous.Valid && previous.String != e.AttachedFile.String {
		s.deleteBlob(ctx, previous.String)
	}
	return nil
}

func (s *EmentaService) deleteBlob(ctx context.Context, ref string) {
	if err := s.blobs.Delete(ctx, ref); err != nil {
		s.logger.Warn("failed to delete attachment", zap.String("ref", ref), zap.Error(err))
	}
}
