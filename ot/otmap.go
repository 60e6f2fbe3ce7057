package ot

// VariationsNotFoundIndex marks the absence of a matching entry in a
// FeatureVariations table (HarfBuzz: HB_OT_LAYOUT_NO_VARIATIONS_INDEX).
const VariationsNotFoundIndex = ^uint32(0)

// FeatureVariations models the GSUB/GPOS FeatureVariations table, which lets
// a variable font substitute a different set of lookups for a feature at
// particular axis coordinates. Nothing in this tool's target corpus ships
// variable CJK fonts with FeatureVariations, so no parser populates one;
// GetFeatureVariations always returns nil and every caller guards on that.
type FeatureVariations struct{}

// GetSubstituteLookups returns the lookup indices a FeatureVariations record
// substitutes for featureIdx at the given variations index, or nil if there
// is no substitution. Unreachable in practice since GetFeatureVariations
// never returns a non-nil value.
func (fv *FeatureVariations) GetSubstituteLookups(variationsIndex uint32, featureIdx uint16) []uint16 {
	return nil
}

// GetFeatureVariations returns the table's FeatureVariations, if any.
func (g *GSUB) GetFeatureVariations() *FeatureVariations {
	return nil
}

// FindVariationsIndex resolves a variable font's normalized axis coordinates
// to a FeatureVariations entry. No variable-font axis coordinates ever reach
// this shaper, so it always reports no match.
func (g *GSUB) FindVariationsIndex(coordsI []int) uint32 {
	return VariationsNotFoundIndex
}

// FindChosenScriptTag resolves a Unicode script tag to the script tag
// actually present in the font's GSUB ScriptList, falling back to "DFLT"
// when the script isn't registered. HarfBuzz additionally juggles old/new
// tag pairs for a handful of scripts (Indic v2 vs v3, "mym2" vs "mymr", and
// so on); none of those scripts are in scope here, so this only needs the
// plain lookup-or-fallback behavior.
func (g *GSUB) FindChosenScriptTag(scriptTag Tag) Tag {
	dfltTag := MakeTag('D', 'F', 'L', 'T')
	scriptList, err := g.ParseScriptList()
	if err != nil {
		return dfltTag
	}
	for _, s := range scriptList.Scripts {
		if s.Tag == scriptTag {
			return scriptTag
		}
	}
	return dfltTag
}

// ApplyLookupToBuffer applies one GSUB lookup to a buffer's glyphs in place,
// rebuilding buf.Info/buf.Pos if the lookup changed the glyph count.
func (g *GSUB) ApplyLookupToBuffer(lookupIndex int, buf *Buffer, gdef *GDEF, font *Font) {
	glyphs := buf.GlyphIDs()
	newGlyphs := g.ApplyLookupWithGDEF(lookupIndex, glyphs, gdef)
	updateBufferGlyphs(buf, newGlyphs, gdef)
}

// ApplyFeatureToBufferWithMaskAndVariations applies every lookup registered
// for tag to buf, in lookup-index order. Features are resolved the same
// script/language-oblivious way ApplyFeatureWithGDEF resolves them for the
// plain glyph-slice GSUB API: every FeatureRecord matching tag anywhere in
// the FeatureList contributes its lookups, deduplicated and sorted. mask
// filtering is a no-op: every glyph in this shaper carries MaskGlobal, so
// there is never a subset of glyphs a feature should skip. variationsIndex
// is accepted for signature compatibility with the FeatureVariations path
// and has no effect since GetFeatureVariations never returns a table.
func (g *GSUB) ApplyFeatureToBufferWithMaskAndVariations(tag Tag, buf *Buffer, gdef *GDEF, mask uint32, font *Font, variationsIndex uint32) {
	featureList, err := g.ParseFeatureList()
	if err != nil {
		return
	}
	lookups := sortedUniqueLookups(featureList.FindFeature(tag))
	for _, idx := range lookups {
		g.ApplyLookupToBuffer(int(idx), buf, gdef, font)
	}
}

func sortedUniqueLookups(indices []uint16) []uint16 {
	seen := make(map[uint16]bool, len(indices))
	out := make([]uint16, 0, len(indices))
	for _, idx := range indices {
		if !seen[idx] {
			seen[idx] = true
			out = append(out, idx)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// updateBufferGlyphs rewrites buf.Info/buf.Pos to hold newGlyphs, mirroring
// Shaper.updateBufferFromGlyphsWithCodepoints' buffer-length-change handling
// but without the per-codepoint bookkeeping that method does (GSUB lookups
// applied one at a time via ApplyLookupToBuffer don't carry a parallel
// codepoints slice).
func updateBufferGlyphs(buf *Buffer, newGlyphs []GlyphID, gdef *GDEF) {
	if len(newGlyphs) == len(buf.Info) {
		for i, glyph := range newGlyphs {
			buf.Info[i].GlyphID = glyph
			if gdef != nil && gdef.HasGlyphClasses() {
				buf.Info[i].GlyphClass = gdef.GetGlyphClass(glyph)
			}
		}
		return
	}

	oldLen := len(buf.Info)
	newInfo := make([]GlyphInfo, len(newGlyphs))
	for i, glyph := range newGlyphs {
		newInfo[i].GlyphID = glyph
		switch {
		case i < oldLen:
			newInfo[i].Cluster = buf.Info[i].Cluster
			newInfo[i].Codepoint = buf.Info[i].Codepoint
		case oldLen > 0:
			newInfo[i].Cluster = buf.Info[oldLen-1].Cluster
		}
		if gdef != nil && gdef.HasGlyphClasses() {
			newInfo[i].GlyphClass = gdef.GetGlyphClass(glyph)
		}
	}
	buf.Info = newInfo
	buf.Pos = make([]GlyphPos, len(newGlyphs))
}

// OTMap is a compiled, ready-to-apply set of GPOS lookups for one script,
// language and feature list. HarfBuzz's hb_ot_map_t additionally tracks
// per-feature masks and stages so GSUB and GPOS lookups can interleave
// precisely; this shaper only ever runs GPOS through a map (GSUB lookups are
// applied feature-by-feature directly, see applyGSUB), so OTMap only needs
// to remember which lookups are active.
type OTMap struct {
	lookups []uint16
}

// CompileMap resolves every enabled feature in features to its GPOS lookup
// indices. Lookup resolution is script/language-oblivious, the same
// simplification ApplyFeature makes on the GSUB side: a feature tag is
// assumed to mean the same lookups everywhere it appears in the font's
// FeatureList, which holds for the synthesized chws/vchw/halt/vhal features
// since GPOSBuilder never writes script-specific variants of them.
func CompileMap(font *Font, gpos *GPOS, features []Feature, script, language Tag) *OTMap {
	m := &OTMap{}
	if gpos == nil {
		return m
	}
	featureList, err := gpos.ParseFeatureList()
	if err != nil {
		return m
	}
	var lookups []uint16
	for _, f := range features {
		if f.Value == 0 {
			continue
		}
		lookups = append(lookups, featureList.FindFeature(f.Tag)...)
	}
	m.lookups = sortedUniqueLookups(lookups)
	return m
}

// ApplyGPOS applies every lookup in the map to buf, in lookup-index order.
// Positions are seeded from buf.Pos' existing advances (set by
// Shaper.setBaseAdvances before GPOS runs) so that ValueRecords, which are
// additive deltas, land on top of the base metrics rather than replacing
// them. XPlacement/YPlacement are folded into buf.Pos' XOffset/YOffset,
// matching real OpenType rendering semantics where placement shifts where a
// glyph is drawn without affecting pen advancement.
func (m *OTMap) ApplyGPOS(gpos *GPOS, buf *Buffer, font *Font, gdef *GDEF) {
	if gpos == nil || len(m.lookups) == 0 {
		return
	}

	glyphs := buf.GlyphIDs()
	positions := make([]GlyphPosition, len(glyphs))
	for i := range positions {
		positions[i].XAdvance = buf.Pos[i].XAdvance
		positions[i].YAdvance = buf.Pos[i].YAdvance
	}

	for _, idx := range m.lookups {
		gpos.ApplyLookupWithGDEF(int(idx), glyphs, positions, buf.Direction, gdef)
	}

	for i := range positions {
		buf.Pos[i].XAdvance = positions[i].XAdvance
		buf.Pos[i].YAdvance = positions[i].YAdvance
		buf.Pos[i].XOffset += positions[i].XPlacement
		buf.Pos[i].YOffset += positions[i].YPlacement
	}
}
