// Package service contains application services for entitlements, books and the adventure session.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bekovrafik/DreamColor/internal/errs"
	"github.com/bekovrafik/DreamColor/internal/metrics"
	"github.com/bekovrafik/DreamColor/internal/model"
	"github.com/bekovrafik/DreamColor/internal/repository"
)

// FreeCooldown is the wait between two free generations.
const FreeCooldown = 24 * time.Hour

// LedgerService owns the credit balance, paid flag and free-use cooldown.
type LedgerService interface {
	// Purchase adds the pack's credits and marks the user as paid.
	Purchase(ctx context.Context, pack model.Pack) (model.EntitlementState, error)
	// Deduct removes amount credits iff the balance covers it and returns the new balance.
	Deduct(ctx context.Context, amount int) (int, error)
	// CheckFreeEligibility reports whether a free generation is allowed at now.
	CheckFreeEligibility(now time.Time) model.Eligibility
	// RecordFreeUse starts a new cooldown at now.
	RecordFreeUse(ctx context.Context, now time.Time) error
	// Snapshot returns a copy of the current state.
	Snapshot() model.EntitlementState
}

type LedgerServiceImpl struct {
	repo repository.StateRepository
	log  *zap.Logger

	mu sync.Mutex // serializes RPC callers; the pipeline itself is a single writer
	st model.EntitlementState
}

var _ LedgerService = (*LedgerServiceImpl)(nil)

// NewLedgerService rehydrates the ledger. Missing or corrupt state falls back to zero values;
// only backend failures are returned.
func NewLedgerService(ctx context.Context, repo repository.StateRepository, log *zap.Logger) (*LedgerServiceImpl, error) {
	st, err := repo.LoadEntitlement(ctx)
	switch {
	case err == nil:
	case repository.IsMissingOrCorrupt(err):
		if !isNotFound(err) {
			log.Warn("entitlement state unreadable, starting from defaults", zap.Error(err))
		}
		st = model.EntitlementState{LastFreeGeneration: time.Unix(0, 0).UTC()}
	default:
		return nil, fmt.Errorf("load entitlement: %w", err)
	}
	metrics.SetCredits(st.Credits)
	return &LedgerServiceImpl{repo: repo, log: log, st: st}, nil
}

// Purchase adds credits and sets the sticky paid flag, persisting before committing.
func (s *LedgerServiceImpl) Purchase(ctx context.Context, pack model.Pack) (model.EntitlementState, error) {
	add := pack.Credits()
	if add == 0 {
		return model.EntitlementState{}, fmt.Errorf("%w: unknown pack %q", errs.ErrValidation, pack)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.st
	next.Credits += add
	next.IsPaidUser = true
	if err := s.commit(ctx, next); err != nil {
		return model.EntitlementState{}, err
	}
	metrics.RecordPurchase(string(pack))
	s.log.Info("credits purchased", zap.String("pack", string(pack)), zap.Int("credits", next.Credits))
	return next, nil
}

// Deduct is all-or-nothing: on any failure the balance is unchanged.
func (s *LedgerServiceImpl) Deduct(ctx context.Context, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: deduct amount must be positive", errs.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.Credits < amount {
		return s.st.Credits, fmt.Errorf("%w: have %d, need %d", errs.ErrInsufficientCredits, s.st.Credits, amount)
	}
	next := s.st
	next.Credits -= amount
	if err := s.commit(ctx, next); err != nil {
		return s.st.Credits, err
	}
	return next.Credits, nil
}

// CheckFreeEligibility allows a free run once at least FreeCooldown has passed.
func (s *LedgerServiceImpl) CheckFreeEligibility(now time.Time) model.Eligibility {
	s.mu.Lock()
	last := s.st.LastFreeGeneration
	s.mu.Unlock()
	return Eligibility(last, now)
}

// Eligibility computes the cooldown state for a free run last used at last.
func Eligibility(last, now time.Time) model.Eligibility {
	elapsed := now.Sub(last)
	if elapsed >= FreeCooldown {
		return model.Eligibility{Allowed: true}
	}
	wait := FreeCooldown - elapsed
	if wait > FreeCooldown {
		// clock moved backwards past the recorded use
		wait = FreeCooldown
	}
	return model.Eligibility{
		Wait:    wait,
		Hours:   int(wait / time.Hour),
		Minutes: int((wait % time.Hour) / time.Minute),
	}
}

// RecordFreeUse stores now as the last free generation.
func (s *LedgerServiceImpl) RecordFreeUse(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.st
	next.LastFreeGeneration = now.UTC()
	return s.commit(ctx, next)
}

// Snapshot returns a copy of the current state.
func (s *LedgerServiceImpl) Snapshot() model.EntitlementState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// commit persists next and then swaps it in. Caller holds mu.
func (s *LedgerServiceImpl) commit(ctx context.Context, next model.EntitlementState) error {
	if err := s.repo.SaveEntitlement(ctx, next); err != nil {
		return fmt.Errorf("save entitlement: %w", err)
	}
	s.st = next
	metrics.SetCredits(next.Credits)
	return nil
}

func isNotFound(err error) bool { return errors.Is(err, errs.ErrNotFound) }
