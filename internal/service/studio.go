package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/bekovrafik/DreamColor/internal/errs"
	"github.com/bekovrafik/DreamColor/internal/imageedit"
	"github.com/bekovrafik/DreamColor/internal/metrics"
	"github.com/bekovrafik/DreamColor/internal/model"
)

// DocumentAssembler renders a page set into a printable document.
type DocumentAssembler interface {
	Assemble(ctx context.Context, pages []model.Image, cfg model.LayoutConfig, meta model.DocumentMeta) ([]byte, error)
}

// Export is a written document.
type Export struct {
	ID     uuid.UUID
	BookID uuid.UUID
	Path   string
	Size   int
	Pages  int
}

// Studio ties the adventure to the gallery and the document assembler.
type Studio struct {
	ledger    LedgerService
	books     BookService
	adv       *Adventure
	assembler DocumentAssembler
	exportDir string
	log       *zap.Logger
	now       func() time.Time
}

// NewStudio constructs a Studio writing documents into exportDir.
func NewStudio(ledger LedgerService, books BookService, adv *Adventure, assembler DocumentAssembler, exportDir string, log *zap.Logger) *Studio {
	return &Studio{ledger: ledger, books: books, adv: adv, assembler: assembler, exportDir: exportDir, log: log, now: time.Now}
}

// SaveAdventure stores the current pages in the gallery once. Saving again
// without changes returns the stored book.
func (s *Studio) SaveAdventure(ctx context.Context) (model.SavedBook, error) {
	if !s.ledger.Snapshot().IsPaidUser {
		return model.SavedBook{}, errs.ErrNotPaid
	}
	return s.saveIfNeeded(ctx)
}

func (s *Studio) saveIfNeeded(ctx context.Context) (model.SavedBook, error) {
	st := s.adv.State()
	if st.SavedBookID != uuid.Nil {
		if b, err := s.books.Get(st.SavedBookID); err == nil {
			return b, nil
		}
	}
	if len(st.Pages) == 0 {
		return model.SavedBook{}, fmt.Errorf("%w: no pages to save", errs.ErrValidation)
	}
	book, err := s.books.Save(ctx, model.BookDraft{
		Title: BookTitle(st.Theme),
		Theme: st.Theme,
		Pages: st.Pages,
	})
	if err != nil {
		return model.SavedBook{}, err
	}
	s.adv.MarkSaved(book.ID)
	return book, nil
}

// LoadBook hydrates the adventure from a saved book.
func (s *Studio) LoadBook(id uuid.UUID) (model.SavedBook, error) {
	book, err := s.books.Get(id)
	if err != nil {
		return model.SavedBook{}, err
	}
	s.adv.Load(book)
	return book, nil
}

// Export auto-saves the adventure, assembles it and writes the document to the
// exports directory. A failed assembly leaves no file behind; the auto-saved
// book stays in the gallery.
func (s *Studio) Export(ctx context.Context, cfg model.LayoutConfig) (Export, error) {
	if !s.ledger.Snapshot().IsPaidUser {
		return Export{}, errs.ErrNotPaid
	}
	book, err := s.saveIfNeeded(ctx)
	if err != nil {
		metrics.RecordExport("failed")
		return Export{}, err
	}
	st := s.adv.State()
	meta := model.DocumentMeta{Theme: st.Theme, ChildName: st.ChildName, Date: s.now()}
	doc, err := s.assembler.Assemble(ctx, st.Pages, cfg, meta)
	if err != nil {
		metrics.RecordExport("failed")
		s.log.Warn("export failed", zap.Error(err))
		return Export{}, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return Export{}, err
	}
	path, err := s.write(id, doc)
	if err != nil {
		metrics.RecordExport("failed")
		return Export{}, fmt.Errorf("%w: %w", errs.ErrExport, err)
	}
	metrics.RecordExport("ok")
	s.log.Info("export written", zap.String("export", id.String()), zap.String("book", book.ID.String()), zap.Int("bytes", len(doc)))
	return Export{ID: id, BookID: book.ID, Path: path, Size: len(doc), Pages: len(st.Pages)}, nil
}

// ExportPath returns the file of a written export.
func (s *Studio) ExportPath(id uuid.UUID) (string, error) {
	path := filepath.Join(s.exportDir, id.String()+".pdf")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("export %s: %w", id, errs.ErrNotFound)
		}
		return "", err
	}
	return path, nil
}

func (s *Studio) write(id uuid.UUID, doc []byte) (string, error) {
	if err := os.MkdirAll(s.exportDir, 0o750); err != nil {
		return "", err
	}
	path := filepath.Join(s.exportDir, id.String()+".pdf")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, doc, 0o640); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return path, nil
}

// ApplyEdit bakes the edit into page i of the adventure.
func (s *Studio) ApplyEdit(i int, p imageedit.Params) (model.Image, error) {
	st := s.adv.State()
	if i < 0 || i >= len(st.Pages) {
		return model.Image{}, fmt.Errorf("%w: page %d out of range [0,%d)", errs.ErrValidation, i, len(st.Pages))
	}
	out, err := imageedit.Apply(st.Pages[i].Data, p)
	if err != nil {
		return model.Image{}, err
	}
	img := model.Image{Data: out, MIMEType: "image/png"}
	if err := s.adv.ReplacePage(i, img); err != nil {
		return model.Image{}, err
	}
	return img, nil
}
