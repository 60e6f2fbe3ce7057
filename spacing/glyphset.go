package spacing

import (
	"github.com/boxesandglue/textshape/fontio"
	"github.com/boxesandglue/textshape/ot"
	"github.com/boxesandglue/textshape/shaper"
)

// GlyphSetResolver turns candidate code points into the glyph IDs a font
// actually produces for them, by shaping each one through the font's own
// shaper — the only reliable way to find a glyph ID, since cmap alone
// cannot tell fullwidth ('fwid') or vertical ('vert') variants apart from
// the default mapping.
//
// Grounded on east_asian_spacing/spacing.py's GlyphSets._ShapeHelper.shape:
// script "hani", the "fwid" feature always on, "vert" added for vertical
// fonts, one glyph accepted per code point (ligated or unmapped results are
// discarded).
type GlyphSetResolver struct {
	Shaper   shaper.Interface
	Vertical bool
}

// featureFwid and featureVert are the GSUB features that select fullwidth
// and vertical glyph variants respectively.
var (
	featureFwid = ot.MakeTag('f', 'w', 'i', 'd')
	featureVert = ot.MakeTag('v', 'e', 'r', 't')
)

// Resolve shapes one code point in isolation under the given language and
// returns the glyph ID the font produced for it. ok is false if the code
// point maps to .notdef, the shaping result ligated into something other
// than one glyph, or the font has no shaper available.
func (r GlyphSetResolver) Resolve(cp rune, language Language) (ot.GlyphID, bool) {
	if r.Shaper == nil {
		return 0, false
	}

	buf := ot.NewBuffer()
	buf.AddCodepoints([]ot.Codepoint{ot.Codepoint(cp)})
	buf.Script = scriptTagHani
	buf.Direction = ot.DirectionLTR
	if tag := language.otLanguageTag(); tag != 0 {
		buf.Language = tag
	}

	features := []ot.Feature{ot.NewFeatureOn(featureFwid)}
	if r.Vertical {
		features = append(features, ot.NewFeatureOn(featureVert))
	}

	if err := r.Shaper.Shape(buf, features); err != nil {
		return 0, false
	}

	n := buf.Len()
	if n != 1 {
		return 0, false
	}
	gid := buf.Info[0].GlyphID
	if gid == 0 {
		return 0, false
	}
	return gid, true
}

// ResolveSet shapes every code point in a set under the given language,
// returning the glyphs actually produced (unresolved code points are
// silently dropped, matching GlyphDataList.ifilter_missing_glyphs).
func (r GlyphSetResolver) ResolveSet(codepoints CodepointSet, language Language) map[ot.GlyphID]rune {
	out := make(map[ot.GlyphID]rune, len(codepoints))
	for cp := range codepoints {
		if gid, ok := r.Resolve(cp, language); ok {
			out[gid] = cp
		}
	}
	return out
}

// NewGlyphSetResolver builds a resolver bound to a face's in-process
// shaper. Callers that need an external SHAPER binding instead can build
// a GlyphSetResolver literal with any shaper.Interface.
func NewGlyphSetResolver(face *fontio.Face, vertical bool) (GlyphSetResolver, error) {
	s, err := shaper.NewInProcess(face.Metrics)
	if err != nil {
		return GlyphSetResolver{}, err
	}
	return GlyphSetResolver{Shaper: s, Vertical: vertical}, nil
}
