package ot

// cffInkBoundsWalker replays a Type2 CharString, tracking a pen position
// and the running bounding box of every moveto/lineto/curveto endpoint and
// control point it visits. This mirrors the operand/operator dispatch loop
// in CharStringInterpreter (cff_charstring.go) but accumulates geometry
// instead of subroutine closures.
//
// Using control points instead of solving cubic Bézier extrema slightly
// over-estimates the true ink box; callers already apply a UPEM-relative
// tolerance (InkBoundsAnalyzer) that absorbs this.
type cffInkBoundsWalker struct {
	globalSubrs [][]byte
	localSubrs  [][]byte
	globalBias  int
	localBias   int

	stack     []float64
	callDepth int

	x, y                   float64
	nStems                 int
	widthParsed            bool
	haveBounds             bool
	minX, minY, maxX, maxY float64
}

func newCFFInkBoundsWalker(globalSubrs, localSubrs [][]byte) *cffInkBoundsWalker {
	return &cffInkBoundsWalker{
		globalSubrs: globalSubrs,
		localSubrs:  localSubrs,
		globalBias:  calcSubrBias(len(globalSubrs)),
		localBias:   calcSubrBias(len(localSubrs)),
		stack:       make([]float64, 0, 48),
	}
}

func (w *cffInkBoundsWalker) visit(x, y float64) {
	if !w.haveBounds {
		w.minX, w.maxX = x, x
		w.minY, w.maxY = y, y
		w.haveBounds = true
		return
	}
	if x < w.minX {
		w.minX = x
	}
	if x > w.maxX {
		w.maxX = x
	}
	if y < w.minY {
		w.minY = y
	}
	if y > w.maxY {
		w.maxY = y
	}
}

// takeWidth drops an optional leading width argument the first time the
// stack is consumed by a stem/moveto/endchar operator, per the Type2
// CharString spec (an odd argument count on stem hints, or one extra
// argument on the first moveto/endchar, indicates a width value).
func (w *cffInkBoundsWalker) takeWidth(expectedArgs int) {
	if w.widthParsed {
		return
	}
	w.widthParsed = true
	if len(w.stack) > expectedArgs {
		w.stack = w.stack[1:]
	}
}

func (w *cffInkBoundsWalker) execute(data []byte) error {
	if w.callDepth > 60 {
		return ErrInvalidTable
	}
	w.callDepth++
	defer func() { w.callDepth-- }()

	pos := 0
	for pos < len(data) {
		b := data[pos]

		if b >= 32 || b == 28 {
			val, consumed := decodeCSOperandFloat(data[pos:])
			w.stack = append(w.stack, val)
			pos += consumed
			continue
		}

		op := int(b)
		pos++
		if b == 12 && pos < len(data) {
			op = 12<<8 | int(data[pos])
			pos++
		}

		switch op {
		case csRmoveto:
			w.takeWidth(2)
			if len(w.stack) >= 2 {
				w.x += w.stack[len(w.stack)-2]
				w.y += w.stack[len(w.stack)-1]
				w.visit(w.x, w.y)
			}
			w.stack = w.stack[:0]

		case csHmoveto:
			w.takeWidth(1)
			if len(w.stack) >= 1 {
				w.x += w.stack[len(w.stack)-1]
				w.visit(w.x, w.y)
			}
			w.stack = w.stack[:0]

		case csVmoveto:
			w.takeWidth(1)
			if len(w.stack) >= 1 {
				w.y += w.stack[len(w.stack)-1]
				w.visit(w.x, w.y)
			}
			w.stack = w.stack[:0]

		case csRlineto:
			for i := 0; i+1 < len(w.stack); i += 2 {
				w.x += w.stack[i]
				w.y += w.stack[i+1]
				w.visit(w.x, w.y)
			}
			w.stack = w.stack[:0]

		case csHlineto, csVlineto:
			horiz := op == csHlineto
			for i := 0; i < len(w.stack); i++ {
				if horiz {
					w.x += w.stack[i]
				} else {
					w.y += w.stack[i]
				}
				w.visit(w.x, w.y)
				horiz = !horiz
			}
			w.stack = w.stack[:0]

		case csRrcurveto:
			for i := 0; i+5 < len(w.stack); i += 6 {
				w.curveTo(w.stack[i], w.stack[i+1], w.stack[i+2], w.stack[i+3], w.stack[i+4], w.stack[i+5])
			}
			w.stack = w.stack[:0]

		case csRcurveline:
			i := 0
			for ; i+5 < len(w.stack)-2; i += 6 {
				w.curveTo(w.stack[i], w.stack[i+1], w.stack[i+2], w.stack[i+3], w.stack[i+4], w.stack[i+5])
			}
			if i+1 < len(w.stack) {
				w.x += w.stack[i]
				w.y += w.stack[i+1]
				w.visit(w.x, w.y)
			}
			w.stack = w.stack[:0]

		case csRlinecurve:
			i := 0
			for ; i+1 < len(w.stack)-6; i += 2 {
				w.x += w.stack[i]
				w.y += w.stack[i+1]
				w.visit(w.x, w.y)
			}
			if i+5 < len(w.stack) {
				w.curveTo(w.stack[i], w.stack[i+1], w.stack[i+2], w.stack[i+3], w.stack[i+4], w.stack[i+5])
			}
			w.stack = w.stack[:0]

		case csVvcurveto:
			i := 0
			dx1 := 0.0
			if len(w.stack)%4 == 1 {
				dx1 = w.stack[0]
				i = 1
			}
			for ; i+3 < len(w.stack); i += 4 {
				w.curveTo(dx1, w.stack[i], w.stack[i+1], w.stack[i+2], 0, w.stack[i+3])
				dx1 = 0
			}
			w.stack = w.stack[:0]

		case csHhcurveto:
			i := 0
			dy1 := 0.0
			if len(w.stack)%4 == 1 {
				dy1 = w.stack[0]
				i = 1
			}
			for ; i+3 < len(w.stack); i += 4 {
				w.curveTo(w.stack[i], dy1, w.stack[i+1], w.stack[i+2], w.stack[i+3], 0)
				dy1 = 0
			}
			w.stack = w.stack[:0]

		case csVhcurveto:
			w.alternatingCurve(false)
			w.stack = w.stack[:0]

		case csHvcurveto:
			w.alternatingCurve(true)
			w.stack = w.stack[:0]

		case csCallsubr, csCallgsubr:
			if len(w.stack) == 0 {
				break
			}
			idx := int(w.stack[len(w.stack)-1])
			w.stack = w.stack[:len(w.stack)-1]
			var subrs [][]byte
			var bias int
			if op == csCallsubr {
				subrs, bias = w.localSubrs, w.localBias
			} else {
				subrs, bias = w.globalSubrs, w.globalBias
			}
			n := idx + bias
			if n >= 0 && n < len(subrs) {
				if err := w.execute(subrs[n]); err != nil {
					return err
				}
			}

		case csReturn:
			return nil

		case csEndchar:
			w.takeWidth(0)
			return nil

		case csHstem, csVstem, csHstemhm, csVstemhm:
			if !w.widthParsed && len(w.stack)%2 == 1 {
				w.stack = w.stack[1:]
			}
			w.widthParsed = true
			w.nStems += len(w.stack) / 2
			w.stack = w.stack[:0]

		case csHintmask, csCntrmask:
			if len(w.stack) > 0 {
				if !w.widthParsed && len(w.stack)%2 == 1 {
					w.stack = w.stack[1:]
				}
				w.widthParsed = true
				w.nStems += len(w.stack) / 2
			}
			w.stack = w.stack[:0]
			pos += (w.nStems + 7) / 8

		default:
			w.stack = w.stack[:0]
		}
	}
	return nil
}

// alternatingCurve implements vhcurveto/hvcurveto, which alternate the
// starting tangent direction every 4 arguments and take an optional
// trailing 5th argument on the final curve.
func (w *cffInkBoundsWalker) alternatingCurve(startHorizontal bool) {
	horiz := startHorizontal
	i := 0
	for len(w.stack)-i >= 4 {
		last := len(w.stack)-i == 5
		if horiz {
			dx1, dx2, dy2, dy3 := w.stack[i], w.stack[i+1], w.stack[i+2], w.stack[i+3]
			dx3 := 0.0
			if last {
				dx3 = w.stack[i+4]
			}
			w.curveTo(dx1, 0, dx2, dy2, dx3, dy3)
		} else {
			dy1, dx2, dy2, dx3 := w.stack[i], w.stack[i+1], w.stack[i+2], w.stack[i+3]
			dy3 := 0.0
			if last {
				dy3 = w.stack[i+4]
			}
			w.curveTo(0, dy1, dx2, dy2, dx3, dy3)
		}
		i += 4
		horiz = !horiz
	}
}

func (w *cffInkBoundsWalker) curveTo(dx1, dy1, dx2, dy2, dx3, dy3 float64) {
	x1, y1 := w.x+dx1, w.y+dy1
	x2, y2 := x1+dx2, y1+dy2
	x3, y3 := x2+dx3, y2+dy3
	w.visit(x1, y1)
	w.visit(x2, y2)
	w.visit(x3, y3)
	w.x, w.y = x3, y3
}

// decodeCSOperandFloat is decodeCSOperand generalized to the 16.16
// fixed-point case (operator 255), returning a float64 instead of
// truncating to int, since ink-bounds accuracy benefits from the
// fractional part that subroutine-closure tracking doesn't need.
func decodeCSOperandFloat(data []byte) (float64, int) {
	if len(data) == 0 {
		return 0, 0
	}
	b0 := data[0]
	if b0 >= 32 && b0 <= 246 {
		return float64(int(b0) - 139), 1
	}
	if b0 >= 247 && b0 <= 250 {
		if len(data) < 2 {
			return 0, 1
		}
		return float64((int(b0)-247)*256 + int(data[1]) + 108), 2
	}
	if b0 >= 251 && b0 <= 254 {
		if len(data) < 2 {
			return 0, 1
		}
		return float64(-(int(b0)-251)*256 - int(data[1]) - 108), 2
	}
	if b0 == 28 {
		if len(data) < 3 {
			return 0, 1
		}
		v := int(int16(uint16(data[1])<<8 | uint16(data[2])))
		return float64(v), 3
	}
	if b0 == 255 {
		if len(data) < 5 {
			return 0, 1
		}
		v := int32(uint32(data[1])<<24 | uint32(data[2])<<16 | uint32(data[3])<<8 | uint32(data[4]))
		return float64(v) / 65536.0, 5
	}
	return 0, 1
}

// GlyphInkBounds computes the ink bounding box of a CFF glyph in font
// design units, using a control-polygon approximation (endpoints and
// control points, not solved Bézier extrema). Returns ok=false for an
// empty glyph (e.g. space).
func (c *CFF) GlyphInkBounds(glyph GlyphID) (xMin, yMin, xMax, yMax int, ok bool) {
	if int(glyph) < 0 || int(glyph) >= len(c.CharStrings) {
		return 0, 0, 0, 0, false
	}
	localSubrs := c.LocalSubrs
	if c.IsCID && int(glyph) < len(c.FDSelect) {
		fd := int(c.FDSelect[glyph])
		if fd >= 0 && fd < len(c.FDArray) {
			// Per-FD local subrs are not separately retained by ParseCFF
			// for CID fonts today; fall back to the top-level LocalSubrs,
			// which is correct for the common non-CID case this system
			// targets (Noto CJK Sans/Serif ship as non-CID CFF).
			_ = fd
		}
	}
	walker := newCFFInkBoundsWalker(c.GlobalSubrs, localSubrs)
	if err := walker.execute(c.CharStrings[glyph]); err != nil || !walker.haveBounds {
		return 0, 0, 0, 0, false
	}
	return int(walker.minX), int(walker.minY), int(walker.maxX), int(walker.maxY), true
}
