package spacing

import (
	"github.com/boxesandglue/textshape/fontio"
	"github.com/boxesandglue/textshape/ot"
)

// Feature tags this system ever writes.
var (
	TagCHWS = ot.MakeTag('c', 'h', 'w', 's')
	TagVCHW = ot.MakeTag('v', 'c', 'h', 'w')
	TagHALT = ot.MakeTag('h', 'a', 'l', 't')
	TagVHAL = ot.MakeTag('v', 'h', 'a', 'l')

	tagDFLTScript = ot.MakeTag('D', 'F', 'L', 'T')
)

// pair-position classes used by chws/vchw's class matrix. Class1 (the
// first, "left", glyph of a pair) distinguishes L from M; class2 (the
// second, "right", glyph) distinguishes R from M. The two ClassDefs are
// independent, so index 1 means something different in each.
const (
	class1Other = 0
	class1Left  = 1
	class1Middle = 2

	class2Other  = 0
	class2Right  = 1
	class2Middle = 2
)

// GPOSBuilder synthesizes the chws/vchw pair-positioning lookup and the
// halt/vhal single-positioning lookup for one face's resolved glyph
// classes, and merges them into the face's existing GPOS table (or builds
// a fresh minimal one if the face had none), grounded in the teacher's
// subset.gposBuilder write-side routines (see gposencode.go) generalized
// from a subsetting remap to a from-scratch class-matrix synthesis, and in
// spec section 4.5's ValueRecord table:
//
//	L,R:  left.XAdvance  = -halfEm
//	L,M:  left.XAdvance  = -halfEm/2
//	M,R:  right.XAdvance = -halfEm/2, right.XPlacement = -halfEm/2
//	M,M:  left.XAdvance  = -halfEm/2
//
// R-class glyphs are only ever the second half of a pair; a reduction
// applied to an R glyph shifts it left (XPlacement) and shrinks its own
// advance by the same amount (XAdvance) so the following glyph is not
// pulled along. L/M-class reductions only shrink the advance, since the
// glyph being shortened is the first of the pair and nothing needs to move
// to compensate.
type GPOSBuilder struct {
	Config   Config
	Face     *fontio.Face
	Vertical bool
	// FullwidthAdvance is the em-box advance, in design units, that a
	// spaced glyph is measured against; the same value PairClassifier used
	// to decide which glyphs are fullwidth in the first place.
	FullwidthAdvance int
}

// halfEmValueRecord returns the ValueRecord for a reduction of magnitude
// halfEm, expressed on the advance axis (X for horizontal, Y for vertical)
// and, when withPlacement is true, also on the placement axis (used for
// R-class glyphs). Vertical placement is positive (matching
// haltValueRecords and the teacher's PosValues.right_value/middle_value):
// downward-flowing vertical text moves a shortened glyph forward along Y,
// the opposite sign from horizontal's backward shift along X.
func (b GPOSBuilder) halfEmValueRecord(halfEm int, withPlacement bool) ot.ValueRecord {
	if b.Vertical {
		vr := ot.ValueRecord{YAdvance: int16(-halfEm)}
		if withPlacement {
			vr.YPlacement = int16(halfEm)
		}
		return vr
	}
	vr := ot.ValueRecord{XAdvance: int16(-halfEm)}
	if withPlacement {
		vr.XPlacement = int16(-halfEm)
	}
	return vr
}

func (b GPOSBuilder) valueFormat(withPlacement bool) uint16 {
	if b.Vertical {
		if withPlacement {
			return ot.ValueFormatYPlacement | ot.ValueFormatYAdvance
		}
		return ot.ValueFormatYAdvance
	}
	if withPlacement {
		return ot.ValueFormatXPlacement | ot.ValueFormatXAdvance
	}
	return ot.ValueFormatXAdvance
}

// buildContextualLookup encodes the chws/vchw PairPos lookup: an optional
// leading format-1 subtable for Config.SkipPairs's explicit exceptions,
// followed by the format-2 class matrix.
func (b GPOSBuilder) buildContextualLookup(rg ResolvedGlyphs, halfEm int) *lookupBuilder {
	vfLeft := b.valueFormat(false)
	vfRight := b.valueFormat(true)
	halfVR := b.halfEmValueRecord(halfEm, false)
	halfVRRight := b.halfEmValueRecord(halfEm/2, true)
	halfVRHalf := b.halfEmValueRecord(halfEm/2, false)

	matrix := map[[2]uint16][2]ot.ValueRecord{
		{class1Left, class2Right}:    {halfVR, ot.ValueRecord{}},
		{class1Left, class2Middle}:   {halfVRHalf, ot.ValueRecord{}},
		{class1Middle, class2Right}:  {ot.ValueRecord{}, halfVRRight},
		{class1Middle, class2Middle}: {halfVRHalf, ot.ValueRecord{}},
	}

	var class1, class2 []classEntry
	var covGlyphs []ot.GlyphID
	for g := range rg.Left {
		class1 = append(class1, classEntry{g, class1Left})
		covGlyphs = append(covGlyphs, g)
	}
	for g := range rg.Middle {
		class1 = append(class1, classEntry{g, class1Middle})
		covGlyphs = append(covGlyphs, g)
	}
	for g := range rg.Right {
		class2 = append(class2, classEntry{g, class2Right})
	}
	for g := range rg.Middle {
		class2 = append(class2, classEntry{g, class2Middle})
	}

	lb := &lookupBuilder{lookupType: 2, flag: 0}

	if exceptions := b.buildSkipPairExceptions(rg, vfLeft, vfRight); exceptions != nil {
		lb.subtables = append(lb.subtables, exceptions)
	}

	pairPos := buildPairPosFormat2(covGlyphs, class1, class2, matrix, 3, 3, vfLeft, vfRight)
	lb.subtables = append(lb.subtables, pairPos)
	return lb
}

// buildSkipPairExceptions encodes Config.SkipPairs as zero-value PairPos
// format 1 exceptions, so the class matrix's would-be adjustment for that
// exact pair is pre-empted (see gposencode.go's buildPairPosFormat1 doc).
func (b GPOSBuilder) buildSkipPairExceptions(rg ResolvedGlyphs, vf1, vf2 uint16) []byte {
	if len(rg.SkipPairs) == 0 {
		return nil
	}
	byFirst := map[ot.GlyphID][]pairValueEntry{}
	for pair := range rg.SkipPairs {
		byFirst[pair.Left] = append(byFirst[pair.Left], pairValueEntry{
			secondGlyph: pair.Right,
		})
	}
	var sets []pairSetEntry
	for first, pairs := range byFirst {
		sets = append(sets, pairSetEntry{firstGlyph: first, pairs: pairs})
	}
	return buildPairPosFormat1(sets, vf1, vf2)
}

// haltValueRecords returns the class-specific ValueRecords buildHaltLookup
// applies to L, R and M glyphs respectively, mirroring the teacher's
// PosValues.left_value/right_value/middle_value: L only shrinks its own
// advance, R additionally shifts its placement back by the same amount it
// shrinks (so the following glyph isn't pulled along), and M shifts half as
// far as R since a middle-class glyph (e.g. a middle dot) is only ever
// half-reduced from either side. Vertical fonts flip the placement sign:
// downward flow moves a shortened glyph forward along Y rather than back.
func (b GPOSBuilder) haltValueRecords(halfEm int) (left, right, middle ot.ValueRecord) {
	quadEm := halfEm / 2
	if b.Vertical {
		left = ot.ValueRecord{YAdvance: int16(-halfEm)}
		right = ot.ValueRecord{YPlacement: int16(halfEm), YAdvance: int16(-halfEm)}
		middle = ot.ValueRecord{YPlacement: int16(quadEm), YAdvance: int16(-halfEm)}
		return
	}
	left = ot.ValueRecord{XAdvance: int16(-halfEm)}
	right = ot.ValueRecord{XPlacement: int16(-halfEm), XAdvance: int16(-halfEm)}
	middle = ot.ValueRecord{XPlacement: int16(-quadEm), XAdvance: int16(-halfEm)}
	return
}

func glyphIDsOf(m map[ot.GlyphID]rune) []ot.GlyphID {
	glyphs := make([]ot.GlyphID, 0, len(m))
	for g := range m {
		glyphs = append(glyphs, g)
	}
	return glyphs
}

// buildHaltLookup encodes the halt/vhal SinglePos lookup: L, R and M glyphs
// each get their own class-specific ValueRecord (see haltValueRecords)
// rather than one uniform advance-only reduction, so a right-class closing
// bracket or a middle-class dot moves its ink to compensate, not just its
// advance.
func (b GPOSBuilder) buildHaltLookup(rg ResolvedGlyphs, halfEm int) *lookupBuilder {
	leftVR, rightVR, middleVR := b.haltValueRecords(halfEm)
	vfLeft := b.valueFormat(false)
	vfWithPlacement := b.valueFormat(true)

	lb := &lookupBuilder{lookupType: 1, flag: 0}
	if glyphs := glyphIDsOf(rg.Left); len(glyphs) > 0 {
		lb.subtables = append(lb.subtables, buildSinglePosFormat1(glyphs, leftVR, vfLeft))
	}
	if glyphs := glyphIDsOf(rg.Right); len(glyphs) > 0 {
		lb.subtables = append(lb.subtables, buildSinglePosFormat1(glyphs, rightVR, vfWithPlacement))
	}
	if glyphs := glyphIDsOf(rg.Middle); len(glyphs) > 0 {
		lb.subtables = append(lb.subtables, buildSinglePosFormat1(glyphs, middleVR, vfWithPlacement))
	}
	return lb
}

// existingGPOS holds what's already in a face's GPOS table,
// if any, so Build can append rather than replace.
type existingGPOS struct {
	rawLookups   [][]byte
	features     []featureEntry
	scripts      map[ot.Tag]*ot.ScriptRecord
	scriptOrder  []ot.Tag
}

func readExisting(g *ot.GPOS) existingGPOS {
	var ex existingGPOS
	ex.scripts = map[ot.Tag]*ot.ScriptRecord{}
	if g == nil {
		return ex
	}
	for i := 0; i < g.NumLookups(); i++ {
		if raw := g.RawLookupBytes(i); raw != nil {
			ex.rawLookups = append(ex.rawLookups, raw)
		} else {
			ex.rawLookups = append(ex.rawLookups, []byte{0, 0, 0, 0, 0, 0})
		}
	}
	if featList, err := g.ParseFeatureList(); err == nil {
		for i := 0; i < featList.Count(); i++ {
			if fr, err := featList.GetFeature(i); err == nil {
				ex.features = append(ex.features, featureEntry{tag: fr.Tag, lookups: fr.Lookups})
			}
		}
	}
	if scriptList, err := g.ParseScriptList(); err == nil {
		for _, sr := range scriptList.Scripts {
			ex.scripts[sr.Tag] = sr
			ex.scriptOrder = append(ex.scriptOrder, sr.Tag)
		}
	}
	return ex
}

// hasConflict reports whether the face already carries a chws/vchw/halt/
// vhal feature — building would produce a second, conflicting instance of
// a feature this system considers itself the sole owner of.
func hasConflict(ex existingGPOS, tags ...ot.Tag) bool {
	want := map[ot.Tag]bool{}
	for _, t := range tags {
		want[t] = true
	}
	for _, f := range ex.features {
		if want[f.tag] {
			return true
		}
	}
	return false
}

// Build synthesizes chws+halt (or vchw+vhal, when Vertical) for rg and
// merges them into the face's existing GPOS data, returning the new
// table's bytes and its parsed form. Returns ErrGPOSConflict if the face
// already has one of these features.
func (b GPOSBuilder) Build(rg ResolvedGlyphs) ([]byte, *ot.GPOS, error) {
	contextualTag, staticTag := TagCHWS, TagHALT
	if b.Vertical {
		contextualTag, staticTag = TagVCHW, TagVHAL
	}

	ex := readExisting(b.Face.GPOS)
	if hasConflict(ex, contextualTag, staticTag) {
		return nil, nil, ErrGPOSConflict
	}

	fullwidth := b.FullwidthAdvance
	if fullwidth <= 0 {
		fullwidth = int(b.Face.Upem())
	}
	halfEm := fullwidth / 2

	contextualLookup := b.buildContextualLookup(rg, halfEm)
	staticLookup := b.buildHaltLookup(rg, halfEm)

	lookups := append([][]byte(nil), ex.rawLookups...)
	contextualIdx := uint16(len(lookups))
	lookups = append(lookups, encodeLookup(contextualLookup))
	staticIdx := uint16(len(lookups))
	lookups = append(lookups, encodeLookup(staticLookup))

	features := append([]featureEntry(nil), ex.features...)
	contextualFeatureIdx := uint16(len(features))
	features = append(features, featureEntry{tag: contextualTag, lookups: []uint16{contextualIdx}})
	staticFeatureIdx := uint16(len(features))
	features = append(features, featureEntry{tag: staticTag, lookups: []uint16{staticIdx}})

	scripts := b.mergeScripts(ex, contextualFeatureIdx, staticFeatureIdx)

	lookupListBytes := buildLookupList(lookups)
	featureListBytes := buildFeatureList(features)
	scriptListBytes := buildScriptList(scripts)
	data := buildGPOS(scriptListBytes, featureListBytes, lookupListBytes)

	parsed, err := ot.ParseGPOS(data)
	if err != nil {
		return nil, nil, err
	}
	return data, parsed, nil
}

// mergeScripts adds the two new feature indices to every script's
// DefaultLangSys and every tagged LangSys already present (matching the
// upstream tool's _add_feature, which walks every ScriptRecord), and adds
// a DFLT script with one default LangSys if the font had no ScriptList at
// all.
func (b GPOSBuilder) mergeScripts(ex existingGPOS, newFeatureIdx ...uint16) []scriptEntry {
	if len(ex.scriptOrder) == 0 {
		return []scriptEntry{{
			tag:             tagDFLTScript,
			defaultFeatures: newFeatureIdx,
		}}
	}

	var out []scriptEntry
	for _, tag := range ex.scriptOrder {
		sr := ex.scripts[tag]
		se := scriptEntry{tag: tag}
		if sr.DefaultLangSys != nil {
			se.defaultFeatures = appendIndices(sr.DefaultLangSys.FeatureIndices, newFeatureIdx...)
		} else {
			se.defaultFeatures = newFeatureIdx
		}
		for i, lsTag := range sr.LangSysTags {
			se.langSysTags = append(se.langSysTags, lsTag)
			se.langSys = append(se.langSys, appendIndices(sr.LangSys[i].FeatureIndices, newFeatureIdx...))
		}
		out = append(out, se)
	}
	return out
}

func appendIndices(existing []uint16, add ...uint16) []uint16 {
	out := append([]uint16(nil), existing...)
	return append(out, add...)
}
