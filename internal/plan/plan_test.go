package plan

import "testing"

var testProfiles = Profiles{
	Portrait:  Profile{MaxWidth: 1080, MaxHeight: 1920},
	Landscape: Profile{MaxWidth: 1920, MaxHeight: 1080},
}

func TestBuildUprightLandscape(t *testing.T) {
	p := Build(1, 800, 600, testProfiles)
	if p.BakeRotation {
		t.Fatal("orientation 1 must never bake")
	}
	if p.Portrait {
		t.Fatal("800x600 with orientation 1 is landscape")
	}
	if p.MaxWidth != 1920 || p.MaxHeight != 1080 {
		t.Fatalf("expected landscape profile, got %dx%d", p.MaxWidth, p.MaxHeight)
	}
}

func TestBuildUprightPortrait(t *testing.T) {
	p := Build(1, 600, 800, testProfiles)
	if p.BakeRotation {
		t.Fatal("orientation 1 must never bake")
	}
	if !p.Portrait {
		t.Fatal("600x800 with orientation 1 is portrait")
	}
	if p.MaxWidth != 1080 || p.MaxHeight != 1920 {
		t.Fatalf("expected portrait profile, got %dx%d", p.MaxWidth, p.MaxHeight)
	}
}

func TestBuildAxisSwappingTags(t *testing.T) {
	for _, orientation := range []int{5, 6, 7, 8} {
		// wider than tall: the tag is trusted, bake and classify portrait
		p := Build(orientation, 800, 600, testProfiles)
		if !p.BakeRotation {
			t.Fatalf("orientation %d on 800x600 must bake", orientation)
		}
		if !p.Portrait {
			t.Fatalf("orientation %d on 800x600 must classify portrait", orientation)
		}

		// taller than wide: pre-rotated upstream, drop the stale tag
		p = Build(orientation, 600, 800, testProfiles)
		if p.BakeRotation {
			t.Fatalf("orientation %d on 600x800 must not bake again", orientation)
		}
		if !p.Portrait {
			t.Fatalf("orientation %d on 600x800 is still portrait by pixels", orientation)
		}

		// square: no bake, square counts as landscape
		p = Build(orientation, 700, 700, testProfiles)
		if p.BakeRotation {
			t.Fatalf("orientation %d on a square must not bake", orientation)
		}
		if p.Portrait {
			t.Fatalf("orientation %d on a square is not portrait", orientation)
		}
	}
}

func TestBuildSameAxisTags(t *testing.T) {
	for _, orientation := range []int{2, 3, 4} {
		p := Build(orientation, 800, 600, testProfiles)
		if !p.BakeRotation {
			t.Fatalf("orientation %d must always bake", orientation)
		}
		if p.Portrait {
			t.Fatalf("orientation %d keeps axes; 800x600 stays landscape", orientation)
		}

		p = Build(orientation, 600, 800, testProfiles)
		if !p.BakeRotation {
			t.Fatalf("orientation %d must always bake", orientation)
		}
		if !p.Portrait {
			t.Fatalf("orientation %d keeps axes; 600x800 stays portrait", orientation)
		}
	}
}

func TestBuildOutOfRangeTagBehavesLikeUpright(t *testing.T) {
	for _, orientation := range []int{0, -1, 9, 42} {
		p := Build(orientation, 800, 600, testProfiles)
		if p.BakeRotation {
			t.Fatalf("orientation %d must not bake", orientation)
		}
		if p.Portrait {
			t.Fatalf("orientation %d on 800x600 is landscape", orientation)
		}
	}
}

func TestBuildProfileFollowsClassification(t *testing.T) {
	// axis-swapping bake selects the portrait profile even though the raw
	// pixel grid is landscape
	p := Build(6, 4000, 3000, testProfiles)
	if p.MaxWidth != 1080 || p.MaxHeight != 1920 {
		t.Fatalf("baked portrait must use the portrait profile, got %dx%d", p.MaxWidth, p.MaxHeight)
	}
}
