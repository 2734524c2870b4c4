package service

import (
	"context"
	"errors"

	"github.com/bekovrafik/DreamColor/internal/errs"
	"github.com/bekovrafik/DreamColor/internal/model"
	"github.com/bekovrafik/DreamColor/internal/repository"
)

type fakeStateRepo struct {
	ent     *model.EntitlementState
	entErr  error
	books   []model.SavedBook
	profile *model.Profile
	sealed  []byte

	saveErr   error
	entSaves  int
	bookSaves int
}

var _ repository.StateRepository = (*fakeStateRepo)(nil)

func (f *fakeStateRepo) LoadEntitlement(context.Context) (model.EntitlementState, error) {
	if f.entErr != nil {
		return model.EntitlementState{}, f.entErr
	}
	if f.ent == nil {
		return model.EntitlementState{}, errs.ErrNotFound
	}
	return *f.ent, nil
}

func (f *fakeStateRepo) SaveEntitlement(_ context.Context, st model.EntitlementState) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.ent = &st
	f.entSaves++
	return nil
}

func (f *fakeStateRepo) LoadBooks(context.Context) ([]model.SavedBook, error) {
	if f.books == nil {
		return nil, errs.ErrNotFound
	}
	return append([]model.SavedBook(nil), f.books...), nil
}

func (f *fakeStateRepo) SaveBooks(_ context.Context, books []model.SavedBook) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.books = append([]model.SavedBook{}, books...)
	f.bookSaves++
	return nil
}

func (f *fakeStateRepo) LoadProfile(context.Context) (model.Profile, error) {
	if f.profile == nil {
		return model.Profile{}, errs.ErrNotFound
	}
	return *f.profile, nil
}

func (f *fakeStateRepo) SaveProfile(_ context.Context, p model.Profile) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.profile = &p
	return nil
}

func (f *fakeStateRepo) LoadCredential(context.Context) ([]byte, error) {
	if f.sealed == nil {
		return nil, errs.ErrNotFound
	}
	return f.sealed, nil
}

func (f *fakeStateRepo) SaveCredential(_ context.Context, sealed []byte) error {
	f.sealed = sealed
	return nil
}

var errBoom = errors.New("boom")
