package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bekovrafik/DreamColor/internal/errs"
	"github.com/bekovrafik/DreamColor/internal/model"
)

// Storage keys. Each key holds one JSON document written as a unit.
const (
	KeyEntitlement = "dreamcolor_entitlement"
	KeyBooks       = "dreamcolor_books"
	KeyProfile     = "dreamcolor_profile"
	KeyCredential  = "dreamcolor_credential"
)

// StateRepository is the load/save port used by the ledger, book store and profile.
// Load methods return errs.ErrNotFound for a missing value and errs.ErrCorrupt
// for a value that cannot be decoded.
type StateRepository interface {
	LoadEntitlement(ctx context.Context) (model.EntitlementState, error)
	SaveEntitlement(ctx context.Context, st model.EntitlementState) error
	LoadBooks(ctx context.Context) ([]model.SavedBook, error)
	SaveBooks(ctx context.Context, books []model.SavedBook) error
	LoadProfile(ctx context.Context) (model.Profile, error)
	SaveProfile(ctx context.Context, p model.Profile) error
	LoadCredential(ctx context.Context) ([]byte, error)
	SaveCredential(ctx context.Context, sealed []byte) error
}

// StateRepo implements StateRepository as JSON documents over a KV backend.
type StateRepo struct{ kv KV }

// NewStateRepo constructs a state repository over kv.
func NewStateRepo(kv KV) *StateRepo { return &StateRepo{kv: kv} }

var _ StateRepository = (*StateRepo)(nil)

func (r *StateRepo) load(ctx context.Context, key string, dst any) error {
	raw, err := r.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%s: %w: %v", key, errs.ErrCorrupt, err)
	}
	return nil
}

func (r *StateRepo) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return r.kv.Put(ctx, key, raw)
}

// LoadEntitlement reads the ledger snapshot. Negative balances are treated as corrupt.
func (r *StateRepo) LoadEntitlement(ctx context.Context) (model.EntitlementState, error) {
	var st model.EntitlementState
	if err := r.load(ctx, KeyEntitlement, &st); err != nil {
		return model.EntitlementState{}, err
	}
	if st.Credits < 0 {
		return model.EntitlementState{}, fmt.Errorf("%s: %w: negative credits", KeyEntitlement, errs.ErrCorrupt)
	}
	return st, nil
}

// SaveEntitlement overwrites the ledger snapshot.
func (r *StateRepo) SaveEntitlement(ctx context.Context, st model.EntitlementState) error {
	return r.save(ctx, KeyEntitlement, st)
}

// LoadBooks reads the full gallery list.
func (r *StateRepo) LoadBooks(ctx context.Context) ([]model.SavedBook, error) {
	var books []model.SavedBook
	if err := r.load(ctx, KeyBooks, &books); err != nil {
		return nil, err
	}
	return books, nil
}

// SaveBooks overwrites the full gallery list.
func (r *StateRepo) SaveBooks(ctx context.Context, books []model.SavedBook) error {
	if books == nil {
		books = []model.SavedBook{}
	}
	return r.save(ctx, KeyBooks, books)
}

// LoadProfile reads user preferences.
func (r *StateRepo) LoadProfile(ctx context.Context) (model.Profile, error) {
	var p model.Profile
	if err := r.load(ctx, KeyProfile, &p); err != nil {
		return model.Profile{}, err
	}
	return p, nil
}

// SaveProfile overwrites user preferences.
func (r *StateRepo) SaveProfile(ctx context.Context, p model.Profile) error {
	return r.save(ctx, KeyProfile, p)
}

// LoadCredential reads the sealed provider credential.
func (r *StateRepo) LoadCredential(ctx context.Context) ([]byte, error) {
	var sealed []byte
	if err := r.load(ctx, KeyCredential, &sealed); err != nil {
		return nil, err
	}
	if len(sealed) == 0 {
		return nil, errs.ErrNotFound
	}
	return sealed, nil
}

// SaveCredential overwrites the sealed provider credential.
func (r *StateRepo) SaveCredential(ctx context.Context, sealed []byte) error {
	return r.save(ctx, KeyCredential, sealed)
}

// IsMissingOrCorrupt reports whether err means "fall back to the zero state".
func IsMissingOrCorrupt(err error) bool {
	return errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrCorrupt)
}
