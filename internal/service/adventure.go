package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/bekovrafik/DreamColor/internal/errs"
	"github.com/bekovrafik/DreamColor/internal/model"
	"github.com/bekovrafik/DreamColor/internal/repository"
)

// AdventureState is a copy of the current adventure.
type AdventureState struct {
	ChildName  string
	Theme      string
	Transcript []model.ConversationTurn
	Reference  *model.Image
	Pages      []model.Image
	// SavedBookID is set when the pages are already in the gallery.
	SavedBookID uuid.UUID
}

// Adventure holds the in-progress book: child name, theme, transcript,
// reference image and current pages. One instance lives for the process.
type Adventure struct {
	repo repository.StateRepository
	log  *zap.Logger

	mu  sync.Mutex
	cur AdventureState
}

// NewAdventure restores the persisted child name; everything else starts empty.
func NewAdventure(ctx context.Context, repo repository.StateRepository, log *zap.Logger) (*Adventure, error) {
	p, err := repo.LoadProfile(ctx)
	switch {
	case err == nil:
	case repository.IsMissingOrCorrupt(err):
		if !isNotFound(err) {
			log.Warn("profile unreadable, ignoring", zap.Error(err))
		}
	default:
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return &Adventure{repo: repo, log: log, cur: AdventureState{ChildName: p.ChildName}}, nil
}

// State returns a deep-enough copy for callers to read without holding the lock.
func (a *Adventure) State() AdventureState {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.cur
	st.Transcript = append([]model.ConversationTurn(nil), a.cur.Transcript...)
	st.Pages = append([]model.Image(nil), a.cur.Pages...)
	if a.cur.Reference != nil {
		ref := *a.cur.Reference
		st.Reference = &ref
	}
	return st
}

// SetChildName persists the name before applying it.
func (a *Adventure) SetChildName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if err := a.repo.SaveProfile(ctx, model.Profile{ChildName: name}); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	a.mu.Lock()
	a.cur.ChildName = name
	a.mu.Unlock()
	return nil
}

// SetTheme sets the book theme.
func (a *Adventure) SetTheme(theme string) {
	a.mu.Lock()
	a.cur.Theme = strings.TrimSpace(theme)
	a.mu.Unlock()
}

// SetReference sets or clears (nil) the reference photo.
func (a *Adventure) SetReference(img *model.Image) error {
	if img != nil && img.Empty() {
		return fmt.Errorf("%w: empty reference image", errs.ErrValidation)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if img == nil {
		a.cur.Reference = nil
		return nil
	}
	ref := *img
	a.cur.Reference = &ref
	return nil
}

// AddTurn appends to the transcript.
func (a *Adventure) AddTurn(turn model.ConversationTurn) {
	a.mu.Lock()
	a.cur.Transcript = append(a.cur.Transcript, turn)
	a.mu.Unlock()
}

// ClearChat drops the transcript only.
func (a *Adventure) ClearChat() {
	a.mu.Lock()
	a.cur.Transcript = nil
	a.mu.Unlock()
}

// Reset clears theme, reference, pages and transcript. The child name is kept.
func (a *Adventure) Reset() {
	a.mu.Lock()
	a.cur = AdventureState{ChildName: a.cur.ChildName}
	a.mu.Unlock()
}

// SetPages publishes a freshly generated page set. The set is no longer a saved book.
func (a *Adventure) SetPages(pages []model.Image) {
	a.mu.Lock()
	a.cur.Pages = append([]model.Image(nil), pages...)
	a.cur.SavedBookID = uuid.Nil
	a.mu.Unlock()
}

// ReplacePage swaps page i, e.g. after an edit or a regeneration.
func (a *Adventure) ReplacePage(i int, img model.Image) error {
	if img.Empty() {
		return fmt.Errorf("%w: empty page image", errs.ErrValidation)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.cur.Pages) {
		return fmt.Errorf("%w: page %d out of range [0,%d)", errs.ErrValidation, i, len(a.cur.Pages))
	}
	pages := append([]model.Image(nil), a.cur.Pages...)
	pages[i] = img
	a.cur.Pages = pages
	a.cur.SavedBookID = uuid.Nil
	return nil
}

// Load hydrates the adventure from a saved book: theme and pages are taken,
// transcript and reference image are cleared. The gallery is not touched.
func (a *Adventure) Load(book model.SavedBook) {
	a.mu.Lock()
	a.cur = AdventureState{
		ChildName:   a.cur.ChildName,
		Theme:       book.Theme,
		Pages:       append([]model.Image(nil), book.Pages...),
		SavedBookID: book.ID,
	}
	a.mu.Unlock()
}

// MarkSaved records that the current pages were stored as book id.
func (a *Adventure) MarkSaved(id uuid.UUID) {
	a.mu.Lock()
	a.cur.SavedBookID = id
	a.mu.Unlock()
}

// BookTitle is the gallery title for a theme.
func BookTitle(theme string) string {
	if theme == "" {
		theme = "My"
	}
	return theme + " Adventure"
}
