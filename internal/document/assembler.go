package document

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bekovrafik/DreamColor/internal/errs"
	"github.com/bekovrafik/DreamColor/internal/model"
)

// Assembler turns a finished page set into a PDF.
type Assembler struct {
	log *zap.Logger
}

// NewAssembler constructs an Assembler.
func NewAssembler(log *zap.Logger) *Assembler { return &Assembler{log: log} }

// Assemble returns the PDF for pages. Every failure wraps errs.ErrExport.
func (a *Assembler) Assemble(ctx context.Context, pages []model.Image, cfg model.LayoutConfig, meta model.DocumentMeta) ([]byte, error) {
	decoded := make([]Decoded, 0, len(pages))
	dims := make([]Dim, 0, len(pages))
	for i, p := range pages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrExport, err)
		}
		d, err := Decode(p)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %w", errs.ErrExport, i+1, err)
		}
		decoded = append(decoded, d)
		dims = append(dims, d.Dim)
	}

	plan, err := Layout(dims, cfg, meta)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrExport, err)
	}
	out, err := Render(plan, decoded, meta)
	if err != nil {
		return nil, fmt.Errorf("%w: render: %w", errs.ErrExport, err)
	}
	a.log.Info("document assembled",
		zap.Int("pages", len(plan.Pages)),
		zap.String("size", string(cfg.PageSize)),
		zap.String("orientation", string(cfg.Orientation)),
		zap.Int("bytes", len(out)))
	return out, nil
}
