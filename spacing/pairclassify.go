package spacing

import "github.com/boxesandglue/textshape/ot"

// GlyphClass is the pair-positioning class a glyph belongs to: L (left half
// of a kerning pair, e.g. a closing bracket), R (right half, e.g. an
// opening bracket), or M (either half, e.g. a middle dot or centered
// punctuation). A glyph never belongs to more than one class; see
// PairClassifier's uniqueness pass.
type GlyphClass int

const (
	ClassNone GlyphClass = iota
	ClassL
	ClassR
	ClassM
)

// ResolvedGlyphs is the final, disjoint L/R/M/narrow glyph classification
// for one face, ready for GPOSBuilder. Every map is keyed by glyph ID; the
// rune values are kept for logging and the `-glyphs` sidecar file.
type ResolvedGlyphs struct {
	Left   map[ot.GlyphID]rune
	Right  map[ot.GlyphID]rune
	Middle map[ot.GlyphID]rune

	// NarrowLeft/NarrowRight are halfwidth opening/closing forms, kept
	// separately instead of being discarded. GPOSBuilder places them in no
	// class, so they receive no positioning adjustment and take part in no
	// adjusted pair.
	NarrowLeft  map[ot.GlyphID]rune
	NarrowRight map[ot.GlyphID]rune

	// SkipPairs is Config.SkipPairs resolved to glyph IDs for this face,
	// consulted by GPOSBuilder when it decides whether to emit a
	// positioning entry for a given pair. Config.CustomPairFilter is not
	// consulted.
	SkipPairs map[PairKey]bool
}

// PairKey identifies one (left, right) glyph-ID pair.
type PairKey struct {
	Left, Right ot.GlyphID
}

// PairClassifier assembles ResolvedGlyphs for one face: it shapes every
// configured code-point family through a GlyphSetResolver, classifies each
// resulting glyph by ink bounds (or by Config.Language when UseInkBounds is
// false), keeps only fullwidth glyphs, and resolves any glyph that would
// otherwise land in more than one class by L > R > M priority — mirroring
// east_asian_spacing/spacing.py's GlyphSets.add_glyphs pipeline
// (get_opening_closing / get_period_comma / get_colon_semicolon /
// get_exclam_question, ifilter_fullwidth, assert_glyphs_are_disjoint).
type PairClassifier struct {
	Config   Config
	Resolver GlyphSetResolver
	Ink      InkBoundsAnalyzer
	// Advance returns a glyph's advance in font design units, used for the
	// fullwidth filter and for ink-bounds classification's advance box.
	// ProcessFace supplies the horizontal advance, for vertical builds too.
	Advance func(glyph ot.GlyphID) int
	// FullwidthAdvance is the advance, in design units, that counts as
	// "fullwidth"; computed by the caller from Config.FullwidthAdvanceEms/
	// FullwidthAdvanceText or from UnitsPerEm.
	FullwidthAdvance int
	Upem             int
}

// Classify runs the full pipeline and returns the disjoint glyph classes,
// or ErrNoApplicableGlyphs if neither L nor R keeps a glyph (a Latin-only font, or a
// synthetic font whose fullwidth glyphs fill their entire cell).
func (c PairClassifier) Classify() (ResolvedGlyphs, error) {
	cfg := c.Config
	tolerance := cfg.fullwidthToleranceOrDefault()

	opening := cfg.CJKOpening.Union(cfg.QuotesOpening)
	closing := cfg.CJKClosing.Union(cfg.QuotesClosing)

	rg := ResolvedGlyphs{
		Left:        map[ot.GlyphID]rune{},
		Right:       map[ot.GlyphID]rune{},
		Middle:      map[ot.GlyphID]rune{},
		NarrowLeft:  map[ot.GlyphID]rune{},
		NarrowRight: map[ot.GlyphID]rune{},
	}

	// Opening brackets sit at the right of a pair (they open the following
	// run), closing brackets at the left, matching get_opening_closing's
	// (left=closing, right=opening) shaping order. These are the convention
	// fallbacks used when UseInkBounds is false.
	c.classifyByInkOrLanguage(opening, ClassR, tolerance, rg)
	c.classifyByInkOrLanguage(closing, ClassL, tolerance, rg)
	c.classifyByInkOrLanguage(cfg.CJKMiddle, ClassM, tolerance, rg)
	c.classifyByInkOrLanguage(cfg.FullwidthSpace, ClassM, tolerance, rg)

	// Period/comma, colon/semicolon, and exclamation/question have a class
	// that depends on the target language convention when UseInkBounds is
	// false, matching get_period_comma/get_colon_semicolon/
	// get_exclam_question's explicit JAN vs. ZHS/ZHT branching; with
	// UseInkBounds true, ink geometry decides as for brackets. Each family
	// maps languages to classes differently, so they are not interchangeable.
	c.classifyLanguageDependent(cfg.PeriodComma, familyPeriodComma, tolerance, rg)
	c.classifyLanguageDependent(cfg.ColonSemicolon, familyColonSemicolon, tolerance, rg)
	c.classifyLanguageDependent(cfg.ExclamQuestion, familyExclamQuestion, tolerance, rg)

	for gid, cp := range c.Resolver.ResolveSet(cfg.NarrowOpening, cfg.Language) {
		rg.NarrowLeft[gid] = cp
	}
	for gid, cp := range c.Resolver.ResolveSet(cfg.NarrowClosing, cfg.Language) {
		rg.NarrowRight[gid] = cp
	}

	c.resolveUniqueness(rg)
	rg.SkipPairs = skipPairSet(cfg, rg)

	if len(rg.Left) == 0 && len(rg.Right) == 0 {
		return rg, ErrNoApplicableGlyphs
	}
	return rg, nil
}

// classifyByInkOrLanguage resolves codepoints and files each resulting
// glyph into Left/Right/Middle. When UseInkBounds is true, ink-bounds
// geometry decides; when it's false, outline analysis is skipped entirely
// and every glyph in set is filed under conventionClass, matching
// get_opening_closing's use_ink_bounds-gated ifilter_ink_part calls (the
// unfiltered glyph set is convention: closing at left, opening at right,
// middle dot and fullwidth space at middle).
func (c PairClassifier) classifyByInkOrLanguage(set CodepointSet, conventionClass GlyphClass, tolerance float64, rg ResolvedGlyphs) {
	for gid, cp := range c.Resolver.ResolveSet(set, c.Config.Language) {
		c.fileByInkPart(gid, cp, conventionClass, tolerance, rg)
	}
}

func (c PairClassifier) fileByInkPart(gid ot.GlyphID, cp rune, conventionClass GlyphClass, tolerance float64, rg ResolvedGlyphs) {
	if class, ok := c.overrideClass(gid); ok {
		c.fileByClass(gid, cp, class, rg)
		return
	}
	adv := c.Advance(gid)
	if !IsFullwidth(adv, c.FullwidthAdvance, c.Upem, tolerance) {
		return
	}
	if !c.Config.UseInkBounds {
		c.fileByClass(gid, cp, conventionClass, rg)
		return
	}
	part, ok := c.Ink.Classify(gid, adv)
	if !ok {
		return
	}
	switch part {
	case InkPartLeft:
		rg.Left[gid] = cp
	case InkPartRight:
		rg.Right[gid] = cp
	case InkPartMiddle:
		rg.Middle[gid] = cp
	}
}

// punctuationFamily distinguishes the three language-dependent punctuation
// families classifyLanguageDependent handles, since JAN/ZHS/ZHT map to a
// different class (or to no class at all) in each one.
type punctuationFamily int

const (
	familyPeriodComma punctuationFamily = iota
	familyColonSemicolon
	familyExclamQuestion
)

// classifyLanguageDependent implements the JAN/ZHS/ZHT-specific placement
// of period, comma, colon, semicolon, exclamation and question marks,
// matching get_period_comma/get_colon_semicolon/get_exclam_question:
//   - Period/comma: centered (middle) in ZHT/ZHH, left-aligned otherwise.
//   - Colon/semicolon: centered in Japanese (and unset/default), left-aligned
//     in ZHS. In vertical text, centered for every language but ZHS, which
//     leaves them unplaced.
//   - Exclamation/question: left-aligned only in ZHS; every other language,
//     including Japanese, leaves them unplaced. Never placed in vertical
//     text at all.
//
// When UseInkBounds is true, ink geometry alone decides and this language
// table is not consulted; a glyph ink classifies as InkPartOther is left
// unplaced.
func (c PairClassifier) classifyLanguageDependent(set CodepointSet, family punctuationFamily, tolerance float64, rg ResolvedGlyphs) {
	if len(set) == 0 {
		return
	}
	if c.Config.Vertical && family == familyExclamQuestion {
		return
	}
	language := c.Config.Language
	for gid, cp := range c.Resolver.ResolveSet(set, language) {
		if c.Config.UseInkBounds {
			c.fileByInkPart(gid, cp, ClassNone, tolerance, rg)
			continue
		}
		adv := c.Advance(gid)
		if !IsFullwidth(adv, c.FullwidthAdvance, c.Upem, tolerance) {
			continue
		}
		switch family {
		case familyPeriodComma:
			switch language {
			case LanguageChineseTraditional, LanguageChineseHongKong:
				rg.Middle[gid] = cp
			default:
				rg.Left[gid] = cp
			}
		case familyColonSemicolon:
			if c.Config.Vertical {
				// The upstream tool disambiguates Japanese's vertical
				// colon/semicolon by comparing horizontally- and
				// vertically-shaped glyph sets for rotated alternates; this
				// classifier only shapes once, so approximate it: keep the
				// centered placement for every language but ZHS, which the
				// original never adds in vertical text at all.
				if language != LanguageChineseSimplified {
					rg.Middle[gid] = cp
				}
				continue
			}
			switch language {
			case LanguageChineseSimplified:
				rg.Left[gid] = cp
			default: // Japanese and unset center colon/semicolon.
				rg.Middle[gid] = cp
			}
		case familyExclamQuestion:
			if language == LanguageChineseSimplified {
				rg.Left[gid] = cp
			}
			// Every other language leaves exclamation/question unplaced.
		}
	}
}

func (c PairClassifier) overrideClass(gid ot.GlyphID) (GlyphClass, bool) {
	if c.Config.CustomClassOverride == nil {
		return ClassNone, false
	}
	return c.Config.CustomClassOverride(gid)
}

func (c PairClassifier) fileByClass(gid ot.GlyphID, cp rune, class GlyphClass, rg ResolvedGlyphs) {
	switch class {
	case ClassL:
		rg.Left[gid] = cp
	case ClassR:
		rg.Right[gid] = cp
	case ClassM:
		rg.Middle[gid] = cp
	}
}

// resolveUniqueness drops a glyph from lower-priority classes if it also
// landed in a higher one, with priority L > R > M (assert_glyphs_are_disjoint
// in the upstream tool is an invariant check; here duplicate membership is
// actively resolved rather than asserted against, since ink-bounds
// classification of composite or hinted glyphs can occasionally place the
// same glyph ID in two families, e.g. a bracket reused as a middle dot).
func (c PairClassifier) resolveUniqueness(rg ResolvedGlyphs) {
	for gid := range rg.Left {
		delete(rg.Right, gid)
		delete(rg.Middle, gid)
	}
	for gid := range rg.Right {
		delete(rg.Middle, gid)
	}
}

// skipPairSet resolves Config.SkipPairs (declared as code points) to glyph
// IDs for this face. SkipPairs is consulted per-pair at GPOS-build time
// (GPOSBuilder), not here: dropping a glyph from its class outright would
// also suppress pairs the filter meant to keep for other partners.
// CustomPairFilter is not consulted here or in GPOSBuilder.
func skipPairSet(cfg Config, rg ResolvedGlyphs) map[PairKey]bool {
	if len(cfg.SkipPairs) == 0 {
		return nil
	}
	byRune := func(m map[ot.GlyphID]rune, r rune) (ot.GlyphID, bool) {
		for gid, cp := range m {
			if cp == r {
				return gid, true
			}
		}
		return 0, false
	}
	out := make(map[PairKey]bool, len(cfg.SkipPairs))
	for _, pair := range cfg.SkipPairs {
		l, lok := byRune(rg.Left, pair[0])
		r, rok := byRune(rg.Right, pair[1])
		if lok && rok {
			out[PairKey{l, r}] = true
		}
	}
	return out
}
