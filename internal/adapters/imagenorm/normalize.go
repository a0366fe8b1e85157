// Package imagenorm resizes arbitrary input images to the fixed JPEG
// shape the vision describer and the client front-end expect.
//
// No image-processing library appears anywhere in the retrieval pack;
// this is implemented on the standard library (image, image/jpeg) for
// that reason, with nearest-neighbour resampling written out by hand.
package imagenorm

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"
)

const unit = 28

// Normalize decodes an arbitrary image format and re-encodes it as a
// JPEG whose long edge is a multiple of unit and whose short edge is
// exactly 27 * unit pixels, per the turn orchestrator's image-turn step.
func Normalize(raw []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	w, h := targetSize(src.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	sb := src.Bounds()
	for y := 0; y < h; y++ {
		sy := sb.Min.Y + y*sb.Dy()/h
		for x := 0; x < w; x++ {
			dst.Set(x, y, src.At(sb.Min.X+x*sb.Dx()/w, sy))
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// targetSize computes the long/short edge rule, preserving orientation:
// the short edge is pinned to 27*unit, and the long edge is scaled
// proportionally then rounded up to the nearest multiple of unit.
func targetSize(b image.Rectangle) (int, int) {
	srcW, srcH := b.Dx(), b.Dy()
	if srcW <= 0 || srcH <= 0 {
		return 27 * unit, 27 * unit
	}

	shortEdge := 27 * unit
	if srcW <= srcH {
		longEdge := roundUpToUnit(srcH * shortEdge / srcW)
		return shortEdge, longEdge
	}
	longEdge := roundUpToUnit(srcW * shortEdge / srcH)
	return longEdge, shortEdge
}

func roundUpToUnit(n int) int {
	if n%unit == 0 {
		return n
	}
	return (n/unit + 1) * unit
}
