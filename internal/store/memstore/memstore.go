// Package memstore keeps every record in process memory. It backs unit tests
// and local runs without Postgres, and mirrors the sentinel errors and
// ordering of the SQL stores.
package memstore

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jjenkins/acervo/internal/model"
)

// DB holds all tables behind one lock so cross-table writes stay atomic
type DB struct {
	mu sync.RWMutex

	accounts   map[int64]model.Account
	profiles   map[int64]model.Profile
	ementas    map[int64]model.Ementa
	protocolos map[int64]model.Protocolo

	nextAccountID   int64
	nextEmentaID    int64
	nextProtocoloID int64

	now func() time.Time
}

// New returns an empty database
func New() *DB {
	return &DB{
		accounts:   make(map[int64]model.Account),
		profiles:   make(map[int64]model.Profile),
		ementas:    make(map[int64]model.Ementa),
		protocolos: make(map[int64]model.Protocolo),
		now:        time.Now,
	}
}

// WithClock replaces the time source used for timestamps
func (db *DB) WithClock(now func() time.Time) *DB {
	db.now = now
	return db
}

func (db *DB) Accounts() *AccountStore     { return &AccountStore{db: db} }
func (db *DB) Profiles() *ProfileStore     { return &ProfileStore{db: db} }
func (db *DB) Ementas() *EmentaStore       { return &EmentaStore{db: db} }
func (db *DB) Protocolos() *ProtocoloStore { return &ProtocoloStore{db: db} }

// window slices items the way LIMIT/OFFSET would
func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func equalFold(a, b string) bool {
	return strings.EqualFold(a, b)
}
