package spacing

import "github.com/boxesandglue/textshape/ot"

// Language names the JLREQ/CLREQ typesetting convention that decides where
// period/comma/colon/semicolon/exclam/question glyphs sit relative to their
// advance width. It has no relation to OpenType language-system tags beyond
// sharing the same four-letter names.
type Language string

const (
	LanguageUnknown Language = ""
	LanguageJapanese Language = "JAN"
	LanguageKorean   Language = "KOR"
	LanguageChineseSimplified  Language = "ZHS"
	LanguageChineseTraditional Language = "ZHT"
	LanguageChineseHongKong    Language = "ZHH"
)

// otLanguageTag maps a Language to the OpenType LangSys tag used to select
// (and later to merge the built lookup into) the font's language systems.
// OpenType language tags are four bytes, space-padded.
func (l Language) otLanguageTag() ot.Tag {
	switch l {
	case LanguageJapanese:
		return ot.MakeTag('J', 'A', 'N', ' ')
	case LanguageKorean:
		return ot.MakeTag('K', 'O', 'R', ' ')
	case LanguageChineseSimplified:
		return ot.MakeTag('Z', 'H', 'S', ' ')
	case LanguageChineseTraditional:
		return ot.MakeTag('Z', 'H', 'T', ' ')
	case LanguageChineseHongKong:
		return ot.MakeTag('Z', 'H', 'H', ' ')
	default:
		return 0
	}
}

// scriptTagHani is the OpenType/ISO 15924 script tag for Han, used to select
// script-appropriate shaping and, when merging, the font's "hani" ScriptRecord
// (falling back to DFLT when the font has none).
var scriptTagHani = ot.MakeTag('h', 'a', 'n', 'i')

// CodepointSet is a small set of Unicode code points, expressed as a plain
// map so callers can build one with a slice literal without a constructor.
type CodepointSet map[rune]bool

// NewCodepointSet builds a CodepointSet from a list of runes.
func NewCodepointSet(runes ...rune) CodepointSet {
	s := make(CodepointSet, len(runes))
	for _, r := range runes {
		s[r] = true
	}
	return s
}

// Union returns a new set holding every member of s and other.
func (s CodepointSet) Union(other CodepointSet) CodepointSet {
	out := make(CodepointSet, len(s)+len(other))
	for r := range s {
		out[r] = true
	}
	for r := range other {
		out[r] = true
	}
	return out
}

// Remove deletes runes from the set in place.
func (s CodepointSet) Remove(runes ...rune) {
	for _, r := range runes {
		delete(s, r)
	}
}

// PairFilter decides whether a candidate (left, right) glyph pair should be
// kept, in addition to the fullwidth/ink-bounds tests the classifier already
// applies. Returning false drops the pair.
type PairFilter func(left, right ot.GlyphID) bool

// ClassOverride lets a caller pin a glyph's class ahead of ink-bounds
// analysis, overriding what InkBoundsAnalyzer would otherwise compute.
type ClassOverride func(glyph ot.GlyphID) (class GlyphClass, ok bool)

// Config controls every tunable of the spacing-feature build: which
// code points belong to which punctuation family, how "fullwidth" is
// measured, and which language convention resolves the ambiguous glyphs.
type Config struct {
	// Language pins the JLREQ/CLREQ convention directly, bypassing
	// ink-bounds analysis for glyphs whose class depends on it (period,
	// comma, colon, semicolon, exclamation, question). Ignored unless
	// UseInkBounds is false.
	Language Language
	// UseInkBounds classifies every candidate glyph by measuring its ink
	// box against the glyph cell instead of consulting Language. This is
	// the default: it works even when a font's name doesn't identify its
	// target language, and it is authoritative over Language when both
	// are usable (see DESIGN.md, "ink-bounds wins over declared language").
	UseInkBounds bool
	// Vertical builds vchw/vhal (vertical text) instead of chws/halt
	// (horizontal text). Vertical builds request the "vert" GSUB
	// feature when resolving glyphs, since vertical CJK punctuation is
	// frequently a distinct, rotated glyph.
	Vertical bool

	// FullwidthAdvanceText, when non-empty, computes the fullwidth advance
	// from these code points' shaped advance instead of UnitsPerEm. Noto
	// CJK's fullwidth cell is exactly one em, but not every font's is.
	FullwidthAdvanceText string
	// FullwidthAdvanceEms overrides the fullwidth advance directly, as a
	// fraction of UnitsPerEm. Takes precedence over FullwidthAdvanceText.
	// Zero means "not set".
	FullwidthAdvanceEms float64
	// FullwidthTolerance is the maximum deviation, as a fraction of
	// UnitsPerEm, a candidate's advance may have from the fullwidth
	// advance and still be treated as fullwidth. Defaults to 0.05 (5%).
	FullwidthTolerance float64

	// CJKOpening, CJKClosing, QuotesOpening, QuotesClosing, CJKMiddle,
	// FullwidthSpace, PeriodComma, ColonSemicolon, ExclamQuestion,
	// NarrowOpening, NarrowClosing are the JLREQ/CLREQ code-point
	// families DefaultConfig seeds; see that function for their members.
	CJKOpening     CodepointSet
	CJKClosing     CodepointSet
	QuotesOpening  CodepointSet
	QuotesClosing  CodepointSet
	CJKMiddle      CodepointSet
	FullwidthSpace CodepointSet
	PeriodComma    CodepointSet
	ColonSemicolon CodepointSet
	ExclamQuestion CodepointSet
	NarrowOpening  CodepointSet
	NarrowClosing  CodepointSet

	// SkipPairs lists (left, right) code-point pairs that must never
	// receive a positioning adjustment even if the classifier would
	// otherwise pair them, e.g. because a downstream layout engine
	// already handles them.
	SkipPairs [][2]rune

	// TestLevel controls how many probe strings FeatureTester shapes
	// after building the font: 0 skips testing, 1 samples up to four
	// glyphs of each class and shapes every combination of those, 2
	// exercises every resolved glyph pair.
	TestLevel int

	// SkipMonospaceASCII skips fonts whose ASCII glyphs are monospaced,
	// mirroring the upstream tool's treatment of Noto's "Mono" variants
	// (grid-layout fonts should not gain proportional CJK spacing).
	SkipMonospaceASCII bool

	// CustomPairFilter is carried on Config, but no stage of the pipeline
	// calls it: setting it does not change which pairs are adjusted.
	CustomPairFilter PairFilter
	// CustomClassOverride, if set, is consulted before ink-bounds
	// analysis for every candidate glyph.
	CustomClassOverride ClassOverride
}

// DefaultConfig returns the JLREQ/CLREQ code-point tables the upstream
// Python tool ships with (east_asian_spacing/config.py), translated
// directly rather than reinvented: opening/closing brackets, CJK/Latin
// quotation marks, the katakana middle dot, ideographic space, and the
// period/comma/colon/semicolon/exclamation/question fullwidth forms whose
// class depends on the target language.
func DefaultConfig() Config {
	return Config{
		UseInkBounds:       true,
		FullwidthTolerance: 0.05,
		FullwidthAdvanceText: "四水城「」（）",
		TestLevel:          1,

		CJKOpening: NewCodepointSet(
			0x3008, 0x300A, 0x300C, 0x300E, 0x3010, 0x3014, 0x3016, 0x3018,
			0x301A, 0x301D, 0xFF08, 0xFF3B, 0xFF5B, 0xFF5F,
		),
		CJKClosing: NewCodepointSet(
			0x3009, 0x300B, 0x300D, 0x300F, 0x3011, 0x3015, 0x3017, 0x3019,
			0x301B, 0x301E, 0x301F, 0xFF09, 0xFF3D, 0xFF5D, 0xFF60,
		),
		QuotesOpening:  NewCodepointSet(0x2018, 0x201C),
		QuotesClosing:  NewCodepointSet(0x2019, 0x201D),
		CJKMiddle:      NewCodepointSet(0x30FB),
		FullwidthSpace: NewCodepointSet(0x3000),
		PeriodComma:    NewCodepointSet(0x3001, 0x3002, 0xFF0C, 0xFF0E),
		ColonSemicolon: NewCodepointSet(0xFF1A, 0xFF1B),
		ExclamQuestion: NewCodepointSet(0xFF01, 0xFF1F),

		// Narrow/halfwidth forms have no internal spacing of their own.
		// PairClassifier resolves them into ResolvedGlyphs.NarrowLeft/
		// NarrowRight, but GPOSBuilder puts them in no class, so no pair
		// involving them is adjusted.
		NarrowOpening: NewCodepointSet(0x28, 0x5B, 0xFF62),
		NarrowClosing: NewCodepointSet(0x29, 0x5D, 0xFF63),
	}
}

// WithLanguage returns a copy of c pinned to language. UseInkBounds is left
// untouched: it and Language are independent settings, and PairClassifier
// already lets ink-bounds geometry win over the language convention table
// when both are set (classifyLanguageDependent checks UseInkBounds first).
func (c Config) WithLanguage(language Language) Config {
	c.Language = language
	return c
}

// fullwidthToleranceOrDefault returns c.FullwidthTolerance, or 0.05 if unset.
func (c Config) fullwidthToleranceOrDefault() float64 {
	if c.FullwidthTolerance > 0 {
		return c.FullwidthTolerance
	}
	return 0.05
}
