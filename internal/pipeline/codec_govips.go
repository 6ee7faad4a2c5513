//go:build govips && cgo

package pipeline

import (
	"fmt"

	"github.com/davidbyttow/govips/v2/vips"
)

type govipsCodec struct{}

func (govipsCodec) Decode(source []byte) (Image, error) {
	ref, err := vips.NewImageFromBuffer(source)
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}
	return &govipsImage{ref: ref}, nil
}

type govipsImage struct {
	ref *vips.ImageRef
}

func (i *govipsImage) Metadata() Metadata {
	return Metadata{
		Width:       i.ref.Width(),
		Height:      i.ref.Height(),
		Orientation: i.ref.Orientation(),
	}
}

func (i *govipsImage) BakeOrientation() error {
	if err := i.ref.AutoRotate(); err != nil {
		return fmt.Errorf("bake orientation: %w", err)
	}
	return nil
}

func (i *govipsImage) StripOrientation() error {
	if err := i.ref.RemoveOrientation(); err != nil {
		return fmt.Errorf("strip orientation: %w", err)
	}
	return nil
}

func (i *govipsImage) ResizeToFit(maxWidth, maxHeight int) error {
	scale := fitScale(i.ref.Width(), i.ref.Height(), maxWidth, maxHeight)
	if scale >= 1 {
		return nil
	}
	if err := i.ref.Resize(scale, vips.KernelLanczos3); err != nil {
		return fmt.Errorf("resize image: %w", err)
	}
	return nil
}

func (i *govipsImage) Clone() (Image, error) {
	copied, err := i.ref.Copy()
	if err != nil {
		return nil, fmt.Errorf("copy working image: %w", err)
	}
	return &govipsImage{ref: copied}, nil
}

func (i *govipsImage) Export(format Format, quality, effort int) ([]byte, error) {
	switch format {
	case FormatWebP:
		params := vips.NewWebpExportParams()
		if quality > 0 && quality <= 100 {
			params.Quality = quality
		}
		if effort >= 0 {
			params.ReductionEffort = effort
		}
		params.StripMetadata = true
		data, _, err := i.ref.ExportWebp(params)
		if err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
		return data, nil
	case FormatAVIF:
		params := vips.NewAvifExportParams()
		if quality > 0 && quality <= 100 {
			params.Quality = quality
		}
		if effort >= 0 {
			params.Effort = effort
		}
		params.StripMetadata = true
		data, _, err := i.ref.ExportAvif(params)
		if err != nil {
			return nil, fmt.Errorf("encode avif: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

func (i *govipsImage) Close() {
	i.ref.Close()
}
