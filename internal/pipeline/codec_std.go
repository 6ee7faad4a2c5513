//go:build !govips || !cgo

package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// stdCodec is the pure-Go fallback used in builds without libvips. It can
// decode and downscale, which keeps tests and local development working,
// but it cannot export WebP or AVIF and it does not surface the EXIF
// orientation tag, so decoded images are treated as already oriented.
type stdCodec struct{}

func (stdCodec) Decode(source []byte) (Image, error) {
	img, _, err := image.Decode(bytes.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}
	return &stdImage{img: img}, nil
}

type stdImage struct {
	img image.Image
}

func (i *stdImage) Metadata() Metadata {
	bounds := i.img.Bounds()
	return Metadata{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Orientation: 1,
	}
}

func (i *stdImage) BakeOrientation() error {
	// orientation always reads as 1 here, so there is never anything to bake
	return nil
}

func (i *stdImage) StripOrientation() error {
	return nil
}

func (i *stdImage) ResizeToFit(maxWidth, maxHeight int) error {
	bounds := i.img.Bounds()
	scale := fitScale(bounds.Dx(), bounds.Dy(), maxWidth, maxHeight)
	if scale >= 1 {
		return nil
	}

	width := int(math.Round(float64(bounds.Dx()) * scale))
	height := int(math.Round(float64(bounds.Dy()) * scale))
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), i.img, bounds, xdraw.Over, nil)
	i.img = dst
	return nil
}

func (i *stdImage) Clone() (Image, error) {
	dst := image.NewRGBA(i.img.Bounds())
	draw.Draw(dst, dst.Bounds(), i.img, i.img.Bounds().Min, draw.Src)
	return &stdImage{img: dst}, nil
}

func (i *stdImage) Export(format Format, _ int, _ int) ([]byte, error) {
	return nil, fmt.Errorf("%s export requires the govips build tag", format)
}

func (i *stdImage) Close() {}
