// Package plan decides how an uploaded image is normalized before encoding.
// The decision is a pure function of the source metadata so the whole
// heuristic can be tested over every orientation tag without decoding real
// image bytes.
package plan

// Profile is a bounding box for one display orientation class.
type Profile struct {
	MaxWidth  int
	MaxHeight int
}

// Profiles carries the two configured size profiles.
type Profiles struct {
	Portrait  Profile
	Landscape Profile
}

// Plan is the per-upload transcode plan. The orientation tag is always
// stripped on output regardless of BakeRotation, so downstream consumers
// never have to re-interpret embedded orientation.
type Plan struct {
	BakeRotation bool
	Portrait     bool
	MaxWidth     int
	MaxHeight    int
}

// Build computes the plan from the source's pixel dimensions and its
// embedded orientation tag (1-8).
//
// The bake rules are a deliberate, empirically-tuned heuristic:
//
//   - tag 1 (or anything outside 1-8): never bake, classify by raw pixels.
//   - tags 5-8 swap axes on display. Bake only when the stored pixel grid is
//     wider than tall; a grid that is already taller than wide was almost
//     certainly pre-rotated by an upstream tool, and rotating again would
//     flip it sideways. In that case only the stale tag is discarded.
//   - tags 2-4 correct without swapping axes and are baked unconditionally.
//
// The 5-8 rule is conditional while the 2-4 rule is not; keep it that way.
func Build(orientation, width, height int, profiles Profiles) Plan {
	p := Plan{}

	switch {
	case orientation >= 5 && orientation <= 8:
		p.BakeRotation = width > height
		p.Portrait = p.BakeRotation || height > width
	case orientation >= 2 && orientation <= 4:
		p.BakeRotation = true
		// this family keeps axes, so post-bake dimensions equal raw ones
		p.Portrait = height > width
	default:
		p.Portrait = height > width
	}

	profile := profiles.Landscape
	if p.Portrait {
		profile = profiles.Portrait
	}
	p.MaxWidth = profile.MaxWidth
	p.MaxHeight = profile.MaxHeight
	return p
}
