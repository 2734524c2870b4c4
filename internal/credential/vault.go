// Package credential keeps the generation provider's API key, sealed at rest.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	pkgcrypto "github.com/bekovrafik/DreamColor/internal/crypto"
	"github.com/bekovrafik/DreamColor/internal/errs"
	"github.com/bekovrafik/DreamColor/internal/repository"
	"github.com/bekovrafik/DreamColor/internal/service"
)

var aad = []byte(repository.KeyCredential)

// Vault stores the API key sealed with a key derived from the daemon secret and
// lets a running job wait for the user to supply a new one.
type Vault struct {
	repo     repository.StateRepository
	sealKey  []byte
	fallback string
	log      *zap.Logger

	mu      sync.Mutex
	key     string
	loaded  bool
	pending int
	changed chan struct{} // closed and replaced on every Set
}

var _ service.CredentialProvider = (*Vault)(nil)

// NewVault builds a vault. fallback is used when nothing is stored, e.g. a key
// from the environment.
func NewVault(repo repository.StateRepository, secret []byte, fallback string, log *zap.Logger) (*Vault, error) {
	sealKey, err := pkgcrypto.Subkey(secret, "credential")
	if err != nil {
		return nil, fmt.Errorf("derive credential key: %w", err)
	}
	return &Vault{
		repo:     repo,
		sealKey:  sealKey,
		fallback: strings.TrimSpace(fallback),
		log:      log,
		changed:  make(chan struct{}),
	}, nil
}

// APIKey returns the current key or errs.ErrNoCredential.
func (v *Vault) APIKey(ctx context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.loaded {
		if err := v.loadLocked(ctx); err != nil {
			return "", err
		}
	}
	if v.key == "" {
		return "", errs.ErrNoCredential
	}
	return v.key, nil
}

func (v *Vault) loadLocked(ctx context.Context) error {
	sealed, err := v.repo.LoadCredential(ctx)
	switch {
	case err == nil:
		pt, oerr := pkgcrypto.Open(v.sealKey, sealed, aad)
		if oerr != nil {
			v.log.Warn("stored credential cannot be opened, ignoring", zap.Error(oerr))
			v.key = v.fallback
		} else {
			v.key = string(pt)
		}
	case repository.IsMissingOrCorrupt(err):
		v.key = v.fallback
	default:
		return fmt.Errorf("load credential: %w", err)
	}
	v.loaded = true
	return nil
}

// HasValidCredential reports whether a key is configured.
func (v *Vault) HasValidCredential(ctx context.Context) bool {
	_, err := v.APIKey(ctx)
	return err == nil
}

// Set seals and stores key, then releases every pending prompt.
func (v *Vault) Set(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: empty api key", errs.ErrValidation)
	}
	sealed, err := pkgcrypto.Seal(v.sealKey, []byte(key), aad)
	if err != nil {
		return fmt.Errorf("seal credential: %w", err)
	}
	if err := v.repo.SaveCredential(ctx, sealed); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.key, v.loaded = key, true
	close(v.changed)
	v.changed = make(chan struct{})
	v.log.Info("provider credential updated", zap.Int("released_prompts", v.pending))
	return nil
}

// PromptForCredential blocks until Set is called or ctx ends.
func (v *Vault) PromptForCredential(ctx context.Context) error {
	v.mu.Lock()
	ch := v.changed
	v.pending++
	v.mu.Unlock()
	v.log.Warn("provider credential required, waiting for a new api key")

	defer func() {
		v.mu.Lock()
		v.pending--
		v.mu.Unlock()
	}()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("credential prompt: %w", ctx.Err())
	}
}

// Pending reports whether a job is waiting for a new key.
func (v *Vault) Pending() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pending > 0
}

// IsMissing reports whether err means no credential is configured.
func IsMissing(err error) bool { return errors.Is(err, errs.ErrNoCredential) }
