// Package convert maps domain values to and from API messages.
package convert

import (
	"fmt"

	u "github.com/gofrs/uuid/v5"

	"github.com/bekovrafik/DreamColor/internal/api"
	"github.com/bekovrafik/DreamColor/internal/errs"
	"github.com/bekovrafik/DreamColor/internal/imageedit"
	model "github.com/bekovrafik/DreamColor/internal/model"
	"github.com/bekovrafik/DreamColor/internal/pipeline"
	"github.com/bekovrafik/DreamColor/internal/service"
)

// --- images ---

// ToAPIImage wraps a domain image.
func ToAPIImage(img model.Image) api.Image {
	return api.Image{Data: img.Data, MIMEType: img.MIMEType}
}

// FromAPIImage unwraps an API image; a missing MIME type defaults to PNG.
func FromAPIImage(in api.Image) model.Image {
	mt := in.MIMEType
	if mt == "" {
		mt = "image/png"
	}
	return model.Image{Data: in.Data, MIMEType: mt}
}

func toAPIImages(in []model.Image) []api.Image {
	if len(in) == 0 {
		return nil
	}
	out := make([]api.Image, len(in))
	for i, img := range in {
		out[i] = ToAPIImage(img)
	}
	return out
}

// --- ledger ---

// ToAPIEntitlement merges the ledger state with the current free-run eligibility.
func ToAPIEntitlement(st model.EntitlementState, el model.Eligibility) *api.Entitlement {
	return &api.Entitlement{
		Credits:            st.Credits,
		IsPaidUser:         st.IsPaidUser,
		LastFreeGeneration: st.LastFreeGeneration,
		FreeAllowed:        el.Allowed,
		FreeWait:           el.WaitString(),
	}
}

// --- adventure ---

// ToAPIAdventure converts the adventure state. Page images are included only when withPages is set.
func ToAPIAdventure(st service.AdventureState, withPages bool) *api.Adventure {
	out := &api.Adventure{
		ChildName:    st.ChildName,
		Theme:        st.Theme,
		Title:        service.BookTitle(st.Theme),
		Transcript:   make([]api.Turn, 0, len(st.Transcript)),
		HasReference: st.Reference != nil,
	}
	for _, t := range st.Transcript {
		out.Transcript = append(out.Transcript, api.Turn{Role: string(t.Role), Text: t.Text})
	}
	if withPages {
		out.Pages = toAPIImages(st.Pages)
	}
	if st.SavedBookID != u.Nil {
		out.SavedBookID = st.SavedBookID.String()
	}
	return out
}

// --- jobs ---

// ToAPIJob converts a job snapshot.
func ToAPIJob(j pipeline.Job) *api.Job {
	return &api.Job{
		ID:            j.ID.String(),
		Kind:          string(j.Kind),
		Status:        string(j.Status),
		Progress:      j.Progress,
		Scene:         j.Scene,
		Total:         j.Total,
		Scenes:        j.Scenes,
		PageCount:     len(j.Pages),
		MissingScenes: j.MissingScenes,
		RetryCount:    j.RetryCount,
		Error:         j.Error,
		Refill:        j.Refill,
		Canceled:      j.Canceled,
		StartedAt:     j.StartedAt,
		FinishedAt:    j.FinishedAt,
	}
}

// --- books ---

// ToAPIBook converts a gallery entry. Summaries carry the page count only.
func ToAPIBook(b model.SavedBook, summary bool) *api.Book {
	out := &api.Book{
		ID:          b.ID.String(),
		Title:       b.Title,
		Theme:       b.Theme,
		CreatedDate: b.CreatedDate,
		CreatedAt:   b.CreatedAt,
		PageCount:   len(b.Pages),
	}
	if !summary {
		cover := ToAPIImage(b.CoverImage)
		out.Cover = &cover
		out.Pages = toAPIImages(b.Pages)
	}
	return out
}

// ToAPIBookList converts the gallery into summaries.
func ToAPIBookList(books []model.SavedBook) *api.BookList {
	out := &api.BookList{Books: make([]api.Book, 0, len(books))}
	for _, b := range books {
		out.Books = append(out.Books, *ToAPIBook(b, true))
	}
	return out
}

// ParseID parses a book or export id.
func ParseID(s string) (u.UUID, error) {
	id, err := u.FromString(s)
	if err != nil {
		return u.Nil, fmt.Errorf("%w: invalid id %q", errs.ErrValidation, s)
	}
	return id, nil
}

// --- export ---

// FromAPIExport fills the layout from the request over the export defaults.
func FromAPIExport(in *api.ExportRequest) (model.LayoutConfig, error) {
	cfg := model.DefaultLayout()
	if in == nil {
		return cfg, nil
	}
	switch ps := model.PageSize(in.PageSize); ps {
	case "":
	case model.PageA4, model.PageLetter:
		cfg.PageSize = ps
	default:
		return cfg, fmt.Errorf("%w: page size %q", errs.ErrValidation, in.PageSize)
	}
	switch o := model.Orientation(in.Orientation); o {
	case "":
	case model.Portrait, model.Landscape:
		cfg.Orientation = o
	default:
		return cfg, fmt.Errorf("%w: orientation %q", errs.ErrValidation, in.Orientation)
	}
	switch m := model.MarginPreset(in.Margin); m {
	case "":
	case model.MarginNone, model.MarginSmall, model.MarginNormal:
		cfg.Margin = m
	default:
		return cfg, fmt.Errorf("%w: margin %q", errs.ErrValidation, in.Margin)
	}
	if in.IncludeTitlePage != nil {
		cfg.IncludeTitlePage = *in.IncludeTitlePage
	}
	if in.ShowPageNumbers != nil {
		cfg.ShowPageNumbers = *in.ShowPageNumbers
	}
	return cfg, nil
}

// ToAPIExport converts a written document; path is its download location.
func ToAPIExport(e service.Export, path string) *api.ExportResponse {
	return &api.ExportResponse{
		ID:     e.ID.String(),
		BookID: e.BookID.String(),
		Size:   e.Size,
		Pages:  e.Pages,
		Path:   path,
	}
}

// FromAPIEdit converts edit controls. Zero brightness and contrast mean unchanged.
func FromAPIEdit(in *api.EditRequest) imageedit.Params {
	p := imageedit.Params{Rotation: in.Rotation, Brightness: in.Brightness, Contrast: in.Contrast}
	if p.Brightness == 0 {
		p.Brightness = imageedit.Identity.Brightness
	}
	if p.Contrast == 0 {
		p.Contrast = imageedit.Identity.Contrast
	}
	return p
}
