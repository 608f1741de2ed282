package assets

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"math"

	"golang.org/x/image/draw"
)

// MinGenerationSide is the smallest edge FitWithinLimit will return.
const MinGenerationSide = 64

// CropRect describes a uniform scale of the source followed by a centered
// crop. Width and Height always equal the requested target.
type CropRect struct {
	ScaledWidth  int
	ScaledHeight int
	Left         int
	Top          int
	Width        int
	Height       int
}

// FitCover computes the cover geometry for placing a source frame on a target
// canvas without letterboxing.
func FitCover(srcW, srcH, dstW, dstH int) (CropRect, error) {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return CropRect{}, fmt.Errorf("fit cover: dimensions must be positive (src %dx%d, dst %dx%d)", srcW, srcH, dstW, dstH)
	}
	srcRatio := float64(srcW) / float64(srcH)
	dstRatio := float64(dstW) / float64(dstH)

	r := CropRect{Width: dstW, Height: dstH}
	if srcRatio > dstRatio {
		r.ScaledHeight = dstH
		r.ScaledWidth = max(dstW, int(math.Round(float64(dstH)*srcRatio)))
	} else {
		r.ScaledWidth = dstW
		r.ScaledHeight = max(dstH, int(math.Round(float64(dstW)/srcRatio)))
	}
	r.Left = (r.ScaledWidth - dstW) / 2
	r.Top = (r.ScaledHeight - dstH) / 2
	return r, nil
}

// FitWithinLimit shrinks a requested size so it fits a generation API's
// maximum while keeping the aspect ratio. Sides are rounded down to even
// numbers and never drop below MinGenerationSide.
func FitWithinLimit(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	return evenFloor(float64(w) * scale), evenFloor(float64(h) * scale)
}

func evenFloor(v float64) int {
	n := int(math.Floor(v + 1e-9))
	n -= n % 2
	if n < MinGenerationSide {
		n = MinGenerationSide
	}
	return n
}

// CoverResize scales and center-crops img to exactly w x h.
func CoverResize(img image.Image, w, h int) (*image.RGBA, error) {
	b := img.Bounds()
	rect, err := FitCover(b.Dx(), b.Dy(), w, h)
	if err != nil {
		return nil, err
	}

	// Map the crop window back into source pixels so a single scale pass
	// produces the final frame.
	sx := float64(b.Dx()) / float64(rect.ScaledWidth)
	sy := float64(b.Dy()) / float64(rect.ScaledHeight)
	sr := image.Rect(
		b.Min.X+int(math.Round(float64(rect.Left)*sx)),
		b.Min.Y+int(math.Round(float64(rect.Top)*sy)),
		b.Min.X+int(math.Round(float64(rect.Left+w)*sx)),
		b.Min.Y+int(math.Round(float64(rect.Top+h)*sy)),
	).Intersect(b)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, sr, draw.Src, nil)
	return dst, nil
}

// CoverResizeBytes decodes a JPEG or PNG, cover-resizes it and encodes PNG.
func CoverResizeBytes(data []byte, w, h int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	out, err := CoverResize(img, w, h)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
