package fontio

import "github.com/boxesandglue/textshape/ot"

// Face is one font face: its parsed sfnt tables, cached outline data, and
// (if present) parsed GPOS table. A TrueType Collection produces one Face
// per shared-glyf, per-metrics font it contains.
type Face struct {
	Font    *ot.Font
	Metrics *ot.Face
	Glyf    *ot.Glyf
	CFF     *ot.CFF
	GPOS    *ot.GPOS

	index    int
	gposData []byte
}

// Index returns the face's position within its source TTC (0 for a plain
// .ttf/.otf file).
func (f *Face) Index() int { return f.index }

// Upem returns units-per-em, defaulting to 1000 when head is missing or
// records 0.
func (f *Face) Upem() uint16 { return f.Metrics.Upem() }

// IsCFF reports whether outlines come from a CFF table rather than glyf.
func (f *Face) IsCFF() bool { return f.CFF != nil }

// NumGlyphs returns the glyph count from maxp.
func (f *Face) NumGlyphs() int { return f.Font.NumGlyphs() }

// Cmap returns the parsed cmap table, or nil if the font has none.
func (f *Face) Cmap() *ot.Cmap { return f.Metrics.Cmap() }

// GlyphForRune maps a single codepoint to a glyph ID via cmap. Returns
// (0, false) if unmapped, matching the .notdef convention.
func (f *Face) GlyphForRune(r rune) (ot.GlyphID, bool) {
	cmap := f.Cmap()
	if cmap == nil {
		return 0, false
	}
	return cmap.Lookup(ot.Codepoint(r))
}

// GlyphInkBounds returns a glyph's ink bounding box in font design units,
// dispatching to glyf or CFF depending on the face's outline format.
// ok is false for glyphs with no visible ink (e.g. space) or on failure.
func (f *Face) GlyphInkBounds(glyph ot.GlyphID) (xMin, yMin, xMax, yMax int, ok bool) {
	if f.CFF != nil {
		return f.CFF.GlyphInkBounds(glyph)
	}
	if f.Glyf != nil {
		return glyfInkBounds(f.Glyf, glyph, 0)
	}
	return 0, 0, 0, 0, false
}

// maxCompositeDepth bounds composite-glyph recursion against malformed
// fonts that reference themselves.
const maxCompositeDepth = 8

func glyfInkBounds(g *ot.Glyf, glyph ot.GlyphID, depth int) (xMin, yMin, xMax, yMax int, ok bool) {
	if depth > maxCompositeDepth {
		return 0, 0, 0, 0, false
	}
	gd := g.GetGlyph(glyph)
	if gd == nil || len(gd.Data) < 10 {
		return 0, 0, 0, 0, false
	}

	if !gd.IsComposite() {
		x0 := int(int16(uint16(gd.Data[2])<<8 | uint16(gd.Data[3])))
		y0 := int(int16(uint16(gd.Data[4])<<8 | uint16(gd.Data[5])))
		x1 := int(int16(uint16(gd.Data[6])<<8 | uint16(gd.Data[7])))
		y1 := int(int16(uint16(gd.Data[8])<<8 | uint16(gd.Data[9])))
		if x1 < x0 || y1 < y0 {
			return 0, 0, 0, 0, false
		}
		return x0, y0, x1, y1, true
	}

	components := g.GetCompositeComponents(glyph)
	if len(components) == 0 {
		return 0, 0, 0, 0, false
	}
	haveAny := false
	for _, comp := range components {
		cx0, cy0, cx1, cy1, cok := glyfInkBounds(g, comp.GlyphID, depth+1)
		if !cok {
			continue
		}
		// Only plain XY-offset placement is applied; 2x2/scale transforms
		// are rare for CJK punctuation composites and are left untranslated,
		// which the caller's ink-bounds tolerance absorbs.
		if comp.Flags&argsAreXYValuesFlag != 0 {
			cx0 += int(comp.Arg1)
			cx1 += int(comp.Arg1)
			cy0 += int(comp.Arg2)
			cy1 += int(comp.Arg2)
		}
		if !haveAny {
			xMin, yMin, xMax, yMax = cx0, cy0, cx1, cy1
			haveAny = true
			continue
		}
		if cx0 < xMin {
			xMin = cx0
		}
		if cy0 < yMin {
			yMin = cy0
		}
		if cx1 > xMax {
			xMax = cx1
		}
		if cy1 > yMax {
			yMax = cy1
		}
	}
	return xMin, yMin, xMax, yMax, haveAny
}

// argsAreXYValuesFlag mirrors ot's unexported composite-glyph flag bit
// (0x0002): component arguments are an XY offset rather than point indices.
const argsAreXYValuesFlag = 0x0002

// SetGPOS installs a newly built GPOS table on the face, replacing any
// table it had on load.
func (f *Face) SetGPOS(data []byte, parsed *ot.GPOS) {
	f.gposData = data
	f.GPOS = parsed
}

// TableData returns a table's raw bytes as loaded, or the freshly built
// GPOS bytes if SetGPOS has been called.
func (f *Face) TableData(tag ot.Tag) ([]byte, error) {
	if tag == ot.TagGPOS && f.gposData != nil {
		return f.gposData, nil
	}
	return f.Font.TableData(tag)
}

// Tags returns every table tag the face's font carries, including GPOS if
// SetGPOS added one that the source font lacked.
func (f *Face) Tags() []ot.Tag {
	tags := f.Font.Tags()
	if f.gposData != nil && !f.Font.HasTable(ot.TagGPOS) {
		tags = append(tags, ot.TagGPOS)
	}
	return tags
}
