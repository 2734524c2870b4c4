// Package imageedit bakes rotation, brightness and contrast into a page image.
package imageedit

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/bekovrafik/DreamColor/internal/errs"
)

// Params are the edit controls. Brightness and Contrast are percentages where
// 100 leaves the image unchanged; Rotation is clockwise in degrees.
type Params struct {
	Rotation   float64
	Brightness float64
	Contrast   float64
}

// Identity leaves an image unchanged.
var Identity = Params{Brightness: 100, Contrast: 100}

// Apply decodes data, applies p and returns a PNG.
func Apply(data []byte, p Params) ([]byte, error) {
	if p.Brightness < 0 || p.Contrast < 0 || p.Contrast > 200 {
		return nil, fmt.Errorf("%w: brightness %.0f%% contrast %.0f%%", errs.ErrValidation, p.Brightness, p.Contrast)
	}
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", errs.ErrValidation, err)
	}

	var img image.Image = src
	if p.Brightness != 100 {
		f := p.Brightness / 100
		img = imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
			return color.NRGBA{R: scale(c.R, f), G: scale(c.G, f), B: scale(c.B, f), A: c.A}
		})
	}
	if p.Contrast != 100 {
		img = imaging.AdjustContrast(img, p.Contrast-100)
	}
	img = rotate(img, p.Rotation)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// rotate turns img clockwise. Right angles are exact; other angles grow the
// canvas and fill the corners with white.
func rotate(img image.Image, deg float64) image.Image {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	switch deg {
	case 0:
		return img
	case 90:
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	}
	return imaging.Rotate(img, -deg, color.White)
}

func scale(v uint8, f float64) uint8 {
	x := math.Round(float64(v) * f)
	if x > 255 {
		return 255
	}
	return uint8(x)
}
