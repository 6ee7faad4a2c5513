package pipeline

import "errors"

var (
	// ErrDecodeFailed marks input the codec cannot parse. The input is
	// untrusted, so this is a client error.
	ErrDecodeFailed = errors.New("image decode failed")
	// ErrConversionFailed marks an encode-stage failure on input that
	// already decoded, so it is a server error.
	ErrConversionFailed = errors.New("image conversion failed")
)

// Format tags one of the two encode targets.
type Format string

const (
	FormatWebP Format = "webp"
	FormatAVIF Format = "avif"
)

func (f Format) Ext() string {
	return string(f)
}

func (f Format) ContentType() string {
	switch f {
	case FormatAVIF:
		return "image/avif"
	default:
		return "image/webp"
	}
}

// Metadata is what the codec reports about a decoded source before any
// transform runs. Orientation follows the standard EXIF convention (1-8);
// codecs that cannot read it report 1.
type Metadata struct {
	Width       int
	Height      int
	Orientation int
}

// Image is a decoded working image owned by the pipeline. Implementations
// are not safe for concurrent mutation; the converter clones before each
// encode so formats can be produced in any order with identical results.
type Image interface {
	Metadata() Metadata
	// BakeOrientation physically rotates/mirrors pixels to the intended
	// display orientation and clears the orientation tag.
	BakeOrientation() error
	// StripOrientation discards the orientation tag without touching pixels.
	StripOrientation() error
	// ResizeToFit shrinks the image to fit within the box, preserving
	// aspect ratio and never enlarging beyond the source resolution.
	ResizeToFit(maxWidth, maxHeight int) error
	Clone() (Image, error)
	Export(format Format, quality, effort int) ([]byte, error)
	Close()
}

// Codec is the external image-codec collaborator.
type Codec interface {
	Decode(source []byte) (Image, error)
}

// fitScale returns the shrink-only scale factor that fits width x height
// inside the bounding box. A non-positive box dimension means unbounded on
// that axis. Values >= 1 mean the source already fits.
func fitScale(width, height, maxWidth, maxHeight int) float64 {
	if width <= 0 || height <= 0 {
		return 1
	}
	scale := 1.0
	if maxWidth > 0 && width > maxWidth {
		scale = float64(maxWidth) / float64(width)
	}
	if maxHeight > 0 && height > maxHeight {
		if s := float64(maxHeight) / float64(height); s < scale {
			scale = s
		}
	}
	return scale
}
