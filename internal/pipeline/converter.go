package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/mvoss/imgpress/internal/plan"
)

// Target is one requested output encoding.
type Target struct {
	Format  Format
	Quality int
	Effort  int
}

// Artifact is one encoded output variant of an upload.
type Artifact struct {
	Format   Format
	Data     []byte
	Filename string
}

// Result carries everything the packaging stage needs.
type Result struct {
	Artifacts   []Artifact
	Plan        plan.Plan
	SourceBytes int
}

// Converter runs the orientation-aware transcode pipeline. Decode and encode
// are CPU-bound libvips calls, so in-flight conversions are bounded by a
// semaphore channel; everything else is per-request state.
type Converter struct {
	codec    Codec
	profiles plan.Profiles
	targets  []Target
	sem      chan struct{}
}

func NewConverter(codec Codec, profiles plan.Profiles, targets []Target, maxActive int) (*Converter, error) {
	if codec == nil {
		return nil, errors.New("codec is required")
	}
	if len(targets) == 0 {
		return nil, errors.New("at least one encode target is required")
	}
	if maxActive < 1 {
		maxActive = 1
	}
	return &Converter{
		codec:    codec,
		profiles: profiles,
		targets:  targets,
		sem:      make(chan struct{}, maxActive),
	}, nil
}

// Convert decodes the source, applies the transcode plan once, then encodes
// one artifact per target from an independent clone of the working image.
// An encode failure aborts the remaining targets for this request.
func (c *Converter) Convert(ctx context.Context, source []byte, baseName string) (Result, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	defer func() { <-c.sem }()

	img, err := c.codec.Decode(source)
	if err != nil {
		return Result{}, fmt.Errorf("decode stage: %w: %v", ErrDecodeFailed, err)
	}
	defer img.Close()

	meta := img.Metadata()
	p := plan.Build(meta.Orientation, meta.Width, meta.Height, c.profiles)

	if p.BakeRotation {
		err = img.BakeOrientation()
	} else {
		err = img.StripOrientation()
	}
	if err != nil {
		return Result{}, fmt.Errorf("orientation stage: %w: %v", ErrConversionFailed, err)
	}

	if err := img.ResizeToFit(p.MaxWidth, p.MaxHeight); err != nil {
		return Result{}, fmt.Errorf("resize stage: %w: %v", ErrConversionFailed, err)
	}

	out := Result{
		Artifacts:   make([]Artifact, 0, len(c.targets)),
		Plan:        p,
		SourceBytes: len(source),
	}
	for _, target := range c.targets {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		data, err := encodeClone(img, target)
		if err != nil {
			return Result{}, fmt.Errorf("encode stage format=%s: %w: %v", target.Format, ErrConversionFailed, err)
		}
		out.Artifacts = append(out.Artifacts, Artifact{
			Format:   target.Format,
			Data:     data,
			Filename: baseName + "." + target.Format.Ext(),
		})
	}

	return out, nil
}

// encodeClone exports one target from its own copy of the working image so
// encoding never mutates state another format depends on.
func encodeClone(img Image, target Target) ([]byte, error) {
	clone, err := img.Clone()
	if err != nil {
		return nil, err
	}
	defer clone.Close()
	return clone.Export(target.Format, target.Quality, target.Effort)
}
