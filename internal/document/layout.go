// Package document lays out page images onto a printable grid and renders it as PDF.
package document

import (
	"fmt"
	"math"

	"github.com/bekovrafik/DreamColor/internal/errs"
	"github.com/bekovrafik/DreamColor/internal/model"
)

// Product is printed in the header and on the title page.
const Product = "DreamColor"

// Layout constants in millimetres.
const (
	bandReserve   = 30 // header + footer bands, only when margins are present
	headerOffset  = 5  // pushes images below the header band
	headerMinY    = 12
	footerMinDist = 10
	dateFromEnd   = 20
)

// DateLayout formats the title page date.
const DateLayout = "Jan 2, 2006"

// RGB is a text color.
type RGB struct{ R, G, B int }

var (
	brandColor = RGB{70, 13, 242}
	black      = RGB{0, 0, 0}
	gray       = RGB{100, 100, 100}
)

// Dim is an image's pixel size.
type Dim struct{ W, H int }

// Text is a line of text centered horizontally on X with its baseline at Y.
type Text struct {
	Value string
	X, Y  float64
	Size  float64
	Bold  bool
	Color RGB
}

// Placement positions input image Index at X,Y with size W×H (top-left origin).
type Placement struct {
	Index      int
	X, Y, W, H float64
}

// Page is one output page.
type Page struct {
	Title bool
	Texts []Text
	Image *Placement
}

// Plan is the full paginated document.
type Plan struct {
	Size        model.PageSize
	Orientation model.Orientation
	Width       float64
	Height      float64
	Pages       []Page
}

// PageBox returns the page width and height in mm.
func PageBox(size model.PageSize, o model.Orientation) (float64, float64, error) {
	var w, h float64
	switch size {
	case model.PageA4:
		w, h = 210, 297
	case model.PageLetter:
		w, h = 215.9, 279.4
	default:
		return 0, 0, fmt.Errorf("%w: unknown page size %q", errs.ErrValidation, size)
	}
	switch o {
	case model.Portrait:
	case model.Landscape:
		w, h = h, w
	default:
		return 0, 0, fmt.Errorf("%w: unknown orientation %q", errs.ErrValidation, o)
	}
	return w, h, nil
}

// Fit returns the largest size with the aspect ratio of d that fits maxW×maxH.
func Fit(d Dim, maxW, maxH float64) (float64, float64) {
	ratio := float64(d.W) / float64(d.H)
	w, h := maxW, maxW/ratio
	if h > maxH {
		h = maxH
		w = h * ratio
	}
	return w, h
}

// Layout plans one page per image, preceded by an optional title page.
func Layout(images []Dim, cfg model.LayoutConfig, meta model.DocumentMeta) (Plan, error) {
	if len(images) == 0 {
		return Plan{}, fmt.Errorf("%w: no pages to export", errs.ErrValidation)
	}
	w, h, err := PageBox(cfg.PageSize, cfg.Orientation)
	if err != nil {
		return Plan{}, err
	}
	switch cfg.Margin {
	case model.MarginNone, model.MarginSmall, model.MarginNormal:
	default:
		return Plan{}, fmt.Errorf("%w: unknown margin %q", errs.ErrValidation, cfg.Margin)
	}

	plan := Plan{Size: cfg.PageSize, Orientation: cfg.Orientation, Width: w, Height: h}
	if cfg.IncludeTitlePage {
		plan.Pages = append(plan.Pages, titlePage(w, h, meta))
	}

	margin := cfg.Margin.Millimeters()
	bands := cfg.Margin != model.MarginNone
	availW := w - 2*margin
	availH := h - 2*margin
	offset := 0.0
	if bands {
		availH -= bandReserve
		offset = headerOffset
	}

	for i, d := range images {
		if d.W <= 0 || d.H <= 0 {
			return Plan{}, fmt.Errorf("%w: image %d has no size", errs.ErrValidation, i)
		}
		pw, ph := Fit(d, availW, availH)
		p := Page{Image: &Placement{
			Index: i,
			X:     (w - pw) / 2,
			Y:     (h-ph)/2 + offset,
			W:     pw,
			H:     ph,
		}}
		if bands {
			p.Texts = append(p.Texts, Text{Value: Product, X: w / 2, Y: math.Max(headerMinY, margin), Size: 16, Bold: true, Color: brandColor})
			if cfg.ShowPageNumbers {
				p.Texts = append(p.Texts, Text{
					Value: fmt.Sprintf("Page %d", i+1),
					X:     w / 2,
					Y:     h - math.Max(footerMinDist, margin/2),
					Size:  10,
					Color: gray,
				})
			}
		}
		plan.Pages = append(plan.Pages, p)
	}
	return plan, nil
}

func titlePage(w, h float64, meta model.DocumentMeta) Page {
	name := meta.ChildName
	if name == "" {
		name = "You"
	}
	return Page{
		Title: true,
		Texts: []Text{
			{Value: Product, X: w / 2, Y: h / 3, Size: 32, Bold: true, Color: brandColor},
			{Value: meta.Theme + " Adventure", X: w / 2, Y: h/3 + 15, Size: 18, Bold: true, Color: black},
			{Value: "Created for " + name, X: w / 2, Y: h/3 + 25, Size: 12, Color: gray},
			{Value: meta.Date.Format(DateLayout), X: w / 2, Y: h - dateFromEnd, Size: 12, Color: gray},
		},
	}
}
