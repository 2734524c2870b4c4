package document

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/go-pdf/fpdf"

	"github.com/bekovrafik/DreamColor/internal/model"
)

// Decoded is an image ready for the PDF writer.
type Decoded struct {
	Dim  Dim
	Type string // fpdf image type: PNG, JPG or GIF
	Data []byte
}

// Decode reads the image size and normalizes formats fpdf cannot embed to PNG.
func Decode(img model.Image) (Decoded, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return Decoded{}, fmt.Errorf("decode image: %w", err)
	}
	d := Decoded{Dim: Dim{W: cfg.Width, H: cfg.Height}, Data: img.Data}
	switch format {
	case "png":
		d.Type = "PNG"
	case "jpeg":
		d.Type = "JPG"
	case "gif":
		d.Type = "GIF"
	default:
		src, err := imaging.Decode(bytes.NewReader(img.Data))
		if err != nil {
			return Decoded{}, fmt.Errorf("decode %s image: %w", format, err)
		}
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, src, imaging.PNG); err != nil {
			return Decoded{}, fmt.Errorf("re-encode %s image: %w", format, err)
		}
		d.Type, d.Data = "PNG", buf.Bytes()
	}
	return d, nil
}

// Render draws plan with the decoded images into a PDF document.
func Render(plan Plan, images []Decoded, meta model.DocumentMeta) ([]byte, error) {
	orientation := "P"
	if plan.Orientation == model.Landscape {
		orientation = "L"
	}
	size := "A4"
	if plan.Size == model.PageLetter {
		size = "Letter"
	}

	pdf := fpdf.New(orientation, "mm", size, "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetCreator(Product, true)
	pdf.SetTitle(meta.Theme+" Adventure", true)
	if !meta.Date.IsZero() {
		pdf.SetCreationDate(meta.Date)
		pdf.SetModificationDate(meta.Date)
	}

	for _, page := range plan.Pages {
		pdf.AddPage()
		if page.Image != nil {
			img := images[page.Image.Index]
			name := fmt.Sprintf("page-%d", page.Image.Index)
			pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: img.Type}, bytes.NewReader(img.Data))
			pdf.ImageOptions(name, page.Image.X, page.Image.Y, page.Image.W, page.Image.H, false, fpdf.ImageOptions{ImageType: img.Type}, 0, "")
		}
		for _, t := range page.Texts {
			style := ""
			if t.Bold {
				style = "B"
			}
			pdf.SetFont("Helvetica", style, t.Size)
			pdf.SetTextColor(t.Color.R, t.Color.G, t.Color.B)
			pdf.Text(t.X-pdf.GetStringWidth(t.Value)/2, t.Y, t.Value)
		}
		if pdf.Err() {
			break
		}
	}
	if err := pdf.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
