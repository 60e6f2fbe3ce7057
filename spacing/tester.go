package spacing

import (
	"fmt"

	"github.com/boxesandglue/textshape/fontio"
	"github.com/boxesandglue/textshape/ot"
)

// FeatureTester shapes probe strings through a rebuilt face to confirm the
// synthesized chws/vchw and halt/vhal lookups actually fire the way
// GPOSBuilder intended, the same closing sanity check the upstream tool
// runs (its test_font.py shapes every configured pair and asserts the
// resulting advance) before calling a font's spacing data trustworthy.
type FeatureTester struct {
	Config           Config
	Vertical         bool
	FullwidthAdvance int
	// Level mirrors Config.TestLevel: 1 checks a representative sample of
	// each class combination, 2 checks the full L x R cartesian product.
	Level int
}

// Mismatch describes one probe pair whose shaped advance didn't match
// what the class matrix promises.
type Mismatch struct {
	Left, Right    rune
	WantAdvance    int
	GotAdvance     int
	FeatureApplied bool
}

func (m Mismatch) String() string {
	return fmt.Sprintf("U+%04X U+%04X: want advance %d, got %d (feature applied: %v)",
		m.Left, m.Right, m.WantAdvance, m.GotAdvance, m.FeatureApplied)
}

// probePair is one two-glyph string to shape, plus the reduction the class
// matrix promises for that L/R combination (subtracted from the sum of the
// two glyphs' unadjusted advances to get the expected shaped advance).
type probePair struct {
	leftGID, rightGID   ot.GlyphID
	leftRune, rightRune rune
	reduction           int
}

// Verify reserializes face (which must already have had GPOSBuilder's
// output installed via Face.SetGPOS), reloads it as an independent font,
// and shapes probe strings built from rg's classes, returning every pair
// whose shaped advance disagrees with the class matrix. A non-empty result
// means the font was built incorrectly; it does not mean the source font
// is unusable.
func (t FeatureTester) Verify(face *fontio.Face, rg ResolvedGlyphs) ([]Mismatch, error) {
	data, err := fontio.BuildFace(face)
	if err != nil {
		return nil, err
	}
	col, err := fontio.LoadData(data)
	if err != nil {
		return nil, err
	}
	reloaded, err := col.Face(0)
	if err != nil {
		return nil, err
	}
	shaper, err := ot.NewShaperFromFace(reloaded.Metrics)
	if err != nil {
		return nil, err
	}

	contextualTag := TagCHWS
	if t.Vertical {
		contextualTag = TagVCHW
	}
	if t.FullwidthAdvance <= 0 {
		t.FullwidthAdvance = int(reloaded.Upem())
	}

	var mismatches []Mismatch
	for _, p := range t.probePairs(rg) {
		baseAdvance := t.glyphAdvance(reloaded, p.leftGID) + t.glyphAdvance(reloaded, p.rightGID)
		want := baseAdvance - p.reduction

		got, applied, err := t.shapePair(shaper, p.leftRune, p.rightRune, contextualTag)
		if err != nil {
			continue
		}
		if got != want {
			mismatches = append(mismatches, Mismatch{
				Left: p.leftRune, Right: p.rightRune,
				WantAdvance: want, GotAdvance: got, FeatureApplied: applied,
			})
		}
	}

	staticTag := TagHALT
	if t.Vertical {
		staticTag = TagVHAL
	}
	for _, m := range t.staticProbes(rg, t.FullwidthAdvance) {
		base := t.glyphAdvance(reloaded, m.gid)
		want := base - m.advanceReduction

		got, offset, applied, err := t.shapeSingle(shaper, m.r, staticTag)
		if err != nil {
			continue
		}
		if got != want || offset != m.wantOffset {
			mismatches = append(mismatches, Mismatch{
				Left: m.r, Right: 0,
				WantAdvance: want, GotAdvance: got, FeatureApplied: applied,
			})
		}
	}
	return mismatches, nil
}

func (t FeatureTester) glyphAdvance(face *fontio.Face, gid ot.GlyphID) int {
	if t.Vertical {
		// Vertical advance metrics (vhea/vmtx) aren't modeled by ot.Face;
		// East Asian fullwidth glyphs are conventionally as tall as they
		// are wide, so the horizontal advance stands in for the untouched
		// vertical advance too.
		return int(face.Metrics.HorizontalAdvance(gid))
	}
	return int(face.Metrics.HorizontalAdvance(gid))
}

// probePairs builds the set of two-glyph strings to shape, and the
// reduction the class matrix in gposbuild.go promises for each: L,R loses
// a full half-em; L,M and M,M lose half of that; M,R is the same
// half-of-half amount, just moved onto the right glyph instead of the
// left. Level 1 samples a handful of pairs per combination; level 2 is
// exhaustive.
func (t FeatureTester) probePairs(rg ResolvedGlyphs) []probePair {
	halfEm := t.FullwidthAdvance / 2
	quarterEm := halfEm / 2

	type sampled struct {
		gid ot.GlyphID
		r   rune
	}
	sample := func(m map[ot.GlyphID]rune, n int) []sampled {
		var out []sampled
		for gid, r := range m {
			out = append(out, sampled{gid, r})
			if t.Level < 2 && len(out) >= n {
				break
			}
		}
		return out
	}

	left := sample(rg.Left, 4)
	right := sample(rg.Right, 4)
	middle := sample(rg.Middle, 4)

	var pairs []probePair
	for _, l := range left {
		for _, r := range right {
			pairs = append(pairs, probePair{l.gid, r.gid, l.r, r.r, halfEm})
		}
		for _, m := range middle {
			pairs = append(pairs, probePair{l.gid, m.gid, l.r, m.r, quarterEm})
		}
	}
	for _, m := range middle {
		for _, r := range right {
			pairs = append(pairs, probePair{m.gid, r.gid, m.r, r.r, quarterEm})
		}
		for _, m2 := range middle {
			pairs = append(pairs, probePair{m.gid, m2.gid, m.r, m2.r, quarterEm})
		}
	}
	return pairs
}

// staticProbe is one single-glyph string to shape with halt/vhal, plus the
// advance reduction and placement offset haltValueRecords promises for its
// class.
type staticProbe struct {
	gid              ot.GlyphID
	r                rune
	advanceReduction int
	wantOffset       int
}

// staticProbes builds one halt/vhal probe per sampled L/R/M glyph. Every
// class reduces its advance by the same half-em, but only R and M also
// carry a placement offset (see haltValueRecords): R shifts by a full
// half-em, M by a quarter-em, with the sign flipped between horizontal
// (negative, ink moves back) and vertical (positive, ink moves forward)
// text.
func (t FeatureTester) staticProbes(rg ResolvedGlyphs, fullwidthAdvance int) []staticProbe {
	halfEm := fullwidthAdvance / 2
	quarterEm := halfEm / 2
	sign := -1
	if t.Vertical {
		sign = 1
	}

	sample := func(m map[ot.GlyphID]rune, n int) []staticProbe {
		var out []staticProbe
		for gid, r := range m {
			out = append(out, staticProbe{gid: gid, r: r, advanceReduction: halfEm})
			if t.Level < 2 && len(out) >= n {
				break
			}
		}
		return out
	}

	probes := sample(rg.Left, 2)
	for _, p := range sample(rg.Right, 2) {
		p.wantOffset = sign * halfEm
		probes = append(probes, p)
	}
	for _, p := range sample(rg.Middle, 2) {
		p.wantOffset = sign * quarterEm
		probes = append(probes, p)
	}
	return probes
}

// shapeSingle shapes a single-codepoint string with the given feature
// enabled and returns its shaped advance, its placement offset (X for
// horizontal, Y for vertical), and whether the feature produced any
// non-default GlyphPos at all.
func (t FeatureTester) shapeSingle(shaper *ot.Shaper, r rune, tag ot.Tag) (advance, offset int, applied bool, err error) {
	buf := ot.NewBuffer()
	buf.AddCodepoints([]ot.Codepoint{ot.Codepoint(r)})
	buf.Script = scriptTagHani
	buf.Direction = ot.DirectionLTR

	features := []ot.Feature{
		ot.NewFeatureOn(featureFwid),
		ot.NewFeatureOn(tag),
	}
	if t.Vertical {
		features = append(features, ot.NewFeatureOn(featureVert))
	}

	shaper.Shape(buf, features)
	if buf.Len() != 1 {
		return 0, 0, false, fmt.Errorf("shaped to %d glyphs, want 1", buf.Len())
	}

	pos := buf.Pos[0]
	if t.Vertical {
		advance = int(pos.YAdvance)
		offset = int(pos.YOffset)
	} else {
		advance = int(pos.XAdvance)
		offset = int(pos.XOffset)
	}
	applied = pos.XOffset != 0 || pos.YOffset != 0
	return advance, offset, applied, nil
}

// shapePair shapes a two-codepoint string with the contextual feature
// enabled and returns its total horizontal (or vertical) advance and
// whether the feature actually produced a non-default GlyphPos.
func (t FeatureTester) shapePair(shaper *ot.Shaper, left, right rune, contextualTag ot.Tag) (int, bool, error) {
	buf := ot.NewBuffer()
	buf.AddCodepoints([]ot.Codepoint{ot.Codepoint(left), ot.Codepoint(right)})
	buf.Script = scriptTagHani
	buf.Direction = ot.DirectionLTR

	features := []ot.Feature{
		ot.NewFeatureOn(featureFwid),
		ot.NewFeatureOn(contextualTag),
	}
	if t.Vertical {
		features = append(features, ot.NewFeatureOn(featureVert))
	}

	shaper.Shape(buf, features)
	if buf.Len() != 2 {
		return 0, false, fmt.Errorf("shaped to %d glyphs, want 2", buf.Len())
	}

	applied := false
	total := 0
	for i := 0; i < buf.Len(); i++ {
		if t.Vertical {
			total += int(buf.Pos[i].YAdvance)
		} else {
			total += int(buf.Pos[i].XAdvance)
		}
		if buf.Pos[i].XOffset != 0 || buf.Pos[i].YOffset != 0 {
			applied = true
		}
	}
	return total, applied, nil
}
