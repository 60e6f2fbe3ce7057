package spacing

import "github.com/boxesandglue/textshape/fontio"

// InkPart classifies where a glyph's ink sits within its advance width (or
// height, for vertical text), the geometric signal PairClassifier uses
// instead of a declared language when Config.UseInkBounds is true.
type InkPart int

const (
	InkPartOther InkPart = iota
	InkPartLeft
	InkPartRight
	InkPartMiddle
)

func (p InkPart) String() string {
	switch p {
	case InkPartLeft:
		return "left"
	case InkPartRight:
		return "right"
	case InkPartMiddle:
		return "middle"
	default:
		return "other"
	}
}

// InkBoundsAnalyzer classifies glyphs by where their ink sits relative to
// their advance box: flush left (the glyph is fullwidth-left, meaning the
// spacing to its right is real whitespace that can be trimmed), flush right,
// centered, or neither ("other" — not eligible for contextual spacing).
//
// The margin is a fraction of the advance, mirroring the upstream shaper's
// use of a caller-adjustable tolerance around the box's quarter-points
// (east_asian_spacing/shaper.py's InkPartMargin / _compute_ink_part).
type InkBoundsAnalyzer struct {
	Face     *fontio.Face
	Vertical bool
	// Margin is a fraction of the advance used as slack
	// around the left/right/middle boundaries. Zero uses an exact split.
	Margin float64
}

// Classify returns the InkPart of glyph within a box of size advance,
// starting at 0. ok is false if the glyph has no ink (e.g. space) or its
// outline could not be read.
func (a InkBoundsAnalyzer) Classify(glyph uint16, advance int) (InkPart, bool) {
	xMin, yMin, xMax, yMax, ok := a.Face.GlyphInkBounds(glyph)
	if !ok {
		return InkPartOther, false
	}
	if advance <= 0 {
		return InkPartOther, false
	}
	min, max := xMin, xMax
	if a.Vertical {
		min, max = yMin, yMax
	}
	return computeInkPart(min, max, 0, advance, a.Margin), true
}

// computeInkPart implements the quarter-point test from
// east_asian_spacing/shaper.py's _compute_ink_part: ink entirely in the
// left half is LEFT, entirely in the right half is RIGHT, ink confined to
// the box's middle half (the space between the two quarter-points) is
// MIDDLE, anything else is OTHER.
func computeInkPart(min, max, left, right int, marginFraction float64) InkPart {
	if min > max || left >= right {
		return InkPartOther
	}
	margin := int(marginFraction * float64(right-left))
	middle := (left + right) / 2
	if max <= middle+margin {
		return InkPartLeft
	}
	if min >= middle-margin {
		return InkPartRight
	}
	qLeft := (left + middle) / 2
	qRight := (right + middle) / 2
	if min >= qLeft-margin && max <= qRight+margin {
		return InkPartMiddle
	}
	return InkPartOther
}

// IsFullwidth reports whether advance is within tolerance (a fraction of
// upem) of the configured fullwidth advance.
func IsFullwidth(advance, fullwidthAdvance, upem int, tolerance float64) bool {
	if fullwidthAdvance <= 0 {
		return false
	}
	slack := int(tolerance * float64(upem))
	diff := advance - fullwidthAdvance
	if diff < 0 {
		diff = -diff
	}
	return diff <= slack
}
