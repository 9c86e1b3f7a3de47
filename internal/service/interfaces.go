package service

import (
	"context"
	"io"
	"time"

	"github.com/jjenkins/acervo/internal/listing"
	"github.com/jjenkins/acervo/internal/model"
)

// EmentaStore is implemented by store.EmentaStore and memstore.EmentaStore
type EmentaStore interface {
	Create(ctx context.Context, e *model.Ementa) error
	Update(ctx context.Context, e *model.Ementa) error
	GetByID(ctx context.Context, id int64) (*model.Ementa, error)
	Count(ctx context.Context, f listing.EmentaFilter) (int, error)
	Find(ctx context.Context, f listing.EmentaFilter, limit, offset int) ([]model.Ementa, error)
	RecentByCreator(ctx context.Context, accountID int64, limit int) ([]model.Ementa, error)
	RecentConfidential(ctx context.Context, limit int) ([]model.Ementa, error)
	CountByType(ctx context.Context, f listing.EmentaFilter) (map[model.EmentaType]int, error)
}

// ProtocoloStore is implemented by store.ProtocoloStore and memstore.ProtocoloStore
type ProtocoloStore interface {
	Create(ctx context.Context, p *model.Protocolo) error
	Update(ctx context.Context, p *model.Protocolo) error
	GetByID(ctx context.Context, id int64) (*model.Protocolo, error)
	GetByNumber(ctx context.Context, number string) (*model.Protocolo, error)
	Count(ctx context.Context, f listing.ProtocoloFilter) (int, error)
	Find(ctx context.Context, f listing.ProtocoloFilter, limit, offset int) ([]model.Protocolo, error)
	ListMissingExternalReference(ctx context.Context, limit int) ([]model.Protocolo, error)
	SetExternalReference(ctx context.Context, id int64, ref string) error
}

// AccountStore is implemented by store.AccountStore and memstore.AccountStore
type AccountStore interface {
	Create(ctx context.Context, a *model.Account, p *model.Profile) error
	GetByID(ctx context.Context, id int64) (*model.Account, error)
	GetByUsername(ctx context.Context, username string) (*model.Account, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

// ProfileStore is implemented by store.ProfileStore and memstore.ProfileStore
type ProfileStore interface {
	Create(ctx context.Context, p *model.Profile) error
	GetByAccountID(ctx context.Context, accountID int64) (*model.Profile, error)
	Update(ctx context.Context, p *model.Profile) error
	CPFTaken(ctx context.Context, cpf string, exceptAccountID int64) (bool, error)
	ListPending(ctx context.Context) ([]model.AccountProfile, error)
	TouchLastAccess(ctx context.Context, accountID int64, at time.Time) error
}

// BlobStore is implemented by blob.Store
type BlobStore interface {
	Put(ctx context.Context, prefix, filename string, r io.Reader, allowed []string) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}

// Upload is a file received from a form
type Upload struct {
	Filename string
	Body     io.Reader
}

// BulkResult reports the outcome of an operation over several records
type BulkResult struct {
	Updated int
	Missing []string
}
