package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/bekovrafik/DreamColor/internal/errs"
	"github.com/bekovrafik/DreamColor/internal/model"
	"github.com/bekovrafik/DreamColor/internal/repository"
)

// CreatedDateLayout formats SavedBook.CreatedDate, e.g. "Oct 17".
const CreatedDateLayout = "Jan 2"

// BookService is the durable gallery of saved books, most recent first.
type BookService interface {
	// Save stores a new book built from draft and returns it.
	Save(ctx context.Context, draft model.BookDraft) (model.SavedBook, error)
	// Delete removes a book; an unknown id is a no-op.
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns all books, most recent first.
	List() []model.SavedBook
	// Get returns one book or errs.ErrNotFound.
	Get(id uuid.UUID) (model.SavedBook, error)
}

type BookServiceImpl struct {
	repo repository.StateRepository
	log  *zap.Logger
	now  func() time.Time

	mu    sync.Mutex
	books []model.SavedBook
}

var _ BookService = (*BookServiceImpl)(nil)

// NewBookService loads the gallery. Missing or corrupt data yields an empty gallery.
func NewBookService(ctx context.Context, repo repository.StateRepository, log *zap.Logger) (*BookServiceImpl, error) {
	books, err := repo.LoadBooks(ctx)
	switch {
	case err == nil:
	case repository.IsMissingOrCorrupt(err):
		if !isNotFound(err) {
			log.Warn("saved books unreadable, starting with an empty gallery", zap.Error(err))
		}
		books = nil
	default:
		return nil, fmt.Errorf("load books: %w", err)
	}
	return &BookServiceImpl{repo: repo, log: log, now: time.Now, books: books}, nil
}

// Save assigns a fresh id and creation date, prepends and persists the full list.
func (s *BookServiceImpl) Save(ctx context.Context, draft model.BookDraft) (model.SavedBook, error) {
	if len(draft.Pages) == 0 {
		return model.SavedBook{}, fmt.Errorf("%w: book has no pages", errs.ErrValidation)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.SavedBook{}, err
	}
	now := s.now()
	cover := draft.CoverImage
	if cover.Empty() {
		cover = draft.Pages[0]
	}
	book := model.SavedBook{
		ID:          id,
		Title:       draft.Title,
		Theme:       draft.Theme,
		CreatedDate: now.Format(CreatedDateLayout),
		CreatedAt:   now.UTC(),
		CoverImage:  cover,
		Pages:       append([]model.Image(nil), draft.Pages...),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]model.SavedBook, 0, len(s.books)+1)
	next = append(next, book)
	next = append(next, s.books...)
	if err := s.repo.SaveBooks(ctx, next); err != nil {
		return model.SavedBook{}, fmt.Errorf("save books: %w", err)
	}
	s.books = next
	s.log.Info("book saved", zap.String("id", id.String()), zap.Int("pages", len(book.Pages)))
	return book, nil
}

// Delete removes the book with id and persists the remaining list.
func (s *BookServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return nil
	}
	next := make([]model.SavedBook, 0, len(s.books)-1)
	next = append(next, s.books[:idx]...)
	next = append(next, s.books[idx+1:]...)
	if err := s.repo.SaveBooks(ctx, next); err != nil {
		return fmt.Errorf("save books: %w", err)
	}
	s.books = next
	s.log.Info("book deleted", zap.String("id", id.String()))
	return nil
}

// List returns a copy of the gallery.
func (s *BookServiceImpl) List() []model.SavedBook {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SavedBook(nil), s.books...)
}

// Get looks a book up by id.
func (s *BookServiceImpl) Get(id uuid.UUID) (model.SavedBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.books[i], nil
	}
	return model.SavedBook{}, fmt.Errorf("book %s: %w", id, errs.ErrNotFound)
}

func (s *BookServiceImpl) indexOf(id uuid.UUID) int {
	for i := range s.books {
		if s.books[i].ID == id {
			return i
		}
	}
	return -1
}
