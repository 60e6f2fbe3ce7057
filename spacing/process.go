package spacing

import (
	"github.com/boxesandglue/textshape/fontio"
	"github.com/boxesandglue/textshape/ot"
	"github.com/boxesandglue/textshape/shaper"
)

// Tracer is the minimal logging capability this package needs. It is
// satisfied by schuko/tracing.Trace's Infof/Errorf methods (the concrete
// tracer cmd/eastasianspacing injects) as well as by a trivial no-op
// implementation, so package tests don't need a logging dependency.
type Tracer interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type nopTracer struct{}

func (nopTracer) Infof(string, ...interface{})  {}
func (nopTracer) Errorf(string, ...interface{}) {}

// Result is what ProcessFace produced for one face.
type Result struct {
	// Modified is false when the face was skipped (monospace ASCII, or no
	// applicable glyphs) rather than processed.
	Modified   bool
	Glyphs     ResolvedGlyphs
	Mismatches []Mismatch
}

// ProcessFace runs the complete spacing pipeline against one face:
// determine its language (unless UseInkBounds or Language is already set),
// resolve its punctuation glyph sets by shaping, classify them into
// left/right/middle, synthesize chws/vchw and halt/vhal, install the
// result via Face.SetGPOS, and — unless Config.TestLevel is 0 — verify it
// by reshaping probe pairs. A face with no applicable glyphs or a
// monospace-ASCII face (when SkipMonospaceASCII is set) is reported as
// unmodified rather than as an error, matching the CLI's "log and skip,
// don't fail the batch" policy in SPEC_FULL.md §7.
//
// sh overrides the shaper used to resolve glyph sets; pass nil to shape
// in-process against face's own tables (the default for every caller that
// doesn't set the SHAPER environment variable).
func ProcessFace(face *fontio.Face, cfg Config, tracer Tracer, sh shaper.Interface) (Result, error) {
	if tracer == nil {
		tracer = nopTracer{}
	}

	if cfg.SkipMonospaceASCII && isMonospaceASCII(face) {
		tracer.Infof("skipping monospace-ASCII face")
		return Result{}, nil
	}

	if cfg.Language == LanguageUnknown && !cfg.UseInkBounds {
		lang := LanguageClassifier{}.Classify(face.Metrics)
		if lang == LanguageUnknown {
			return Result{}, ErrLanguageAmbiguous
		}
		cfg = cfg.WithLanguage(lang)
	}

	var resolver GlyphSetResolver
	if sh != nil {
		resolver = GlyphSetResolver{Shaper: sh, Vertical: cfg.Vertical}
	} else {
		var err error
		resolver, err = NewGlyphSetResolver(face, cfg.Vertical)
		if err != nil {
			return Result{}, err
		}
	}

	fullwidth := fullwidthAdvanceOf(face, resolver, cfg)

	classifier := PairClassifier{
		Config:   cfg,
		Resolver: resolver,
		Ink:      InkBoundsAnalyzer{Face: face, Vertical: cfg.Vertical},
		Advance: func(gid ot.GlyphID) int {
			return int(face.Metrics.HorizontalAdvance(gid))
		},
		FullwidthAdvance: fullwidth,
		Upem:             int(face.Upem()),
	}
	rg, err := classifier.Classify()
	if err != nil {
		tracer.Infof("no applicable glyphs: %v", err)
		return Result{}, nil
	}

	builder := GPOSBuilder{
		Config:           cfg,
		Face:             face,
		Vertical:         cfg.Vertical,
		FullwidthAdvance: fullwidth,
	}
	data, parsed, err := builder.Build(rg)
	if err == ErrGPOSConflict {
		tracer.Infof("face already carries a chws/vchw/halt/vhal feature, leaving it unchanged")
		return Result{}, nil
	}
	if err != nil {
		return Result{}, err
	}
	face.SetGPOS(data, parsed)
	tracer.Infof("installed spacing GPOS: %d left, %d right, %d middle glyphs",
		len(rg.Left), len(rg.Right), len(rg.Middle))

	result := Result{Modified: true, Glyphs: rg}
	if cfg.TestLevel > 0 {
		tester := FeatureTester{
			Config:           cfg,
			Vertical:         cfg.Vertical,
			FullwidthAdvance: fullwidth,
			Level:            cfg.TestLevel,
		}
		mismatches, err := tester.Verify(face, rg)
		if err != nil {
			tracer.Errorf("verification could not run: %v", err)
		} else if len(mismatches) > 0 {
			tracer.Errorf("%d probe pairs mismatched the class matrix", len(mismatches))
		}
		result.Mismatches = mismatches
	}
	return result, nil
}

// fullwidthAdvanceOf resolves the em-box advance a glyph must have to
// count as fullwidth, following Config.FullwidthAdvanceEms (a direct
// UnitsPerEm fraction) then Config.FullwidthAdvanceText (measured by
// shaping and averaging its glyphs' advances) then plain UnitsPerEm.
func fullwidthAdvanceOf(face *fontio.Face, resolver GlyphSetResolver, cfg Config) int {
	if cfg.FullwidthAdvanceEms > 0 {
		return int(cfg.FullwidthAdvanceEms * float64(face.Upem()))
	}
	if cfg.FullwidthAdvanceText != "" {
		var total, n int
		for _, r := range cfg.FullwidthAdvanceText {
			if gid, ok := resolver.Resolve(r, cfg.Language); ok {
				total += int(face.Metrics.HorizontalAdvance(gid))
				n++
			}
		}
		if n > 0 {
			return total / n
		}
	}
	return int(face.Upem())
}

// asciiProbeGlyphs are advance-varying-enough Latin glyphs to distinguish
// a proportional font from a monospace one reliably (a font that happens
// to size 'i' and 'W' the same is vanishingly unlikely).
var asciiProbeGlyphs = []rune("iWAm.")

// isMonospaceASCII reports whether the face's basic Latin glyphs all share
// one advance, the convention Noto's "Mono" CJK variants use to signal
// that they should keep grid-cell metrics rather than gain proportional
// contextual spacing.
func isMonospaceASCII(face *fontio.Face) bool {
	width := -1
	seen := 0
	for _, r := range asciiProbeGlyphs {
		gid, ok := face.GlyphForRune(r)
		if !ok {
			continue
		}
		w := int(face.Metrics.HorizontalAdvance(gid))
		if w == 0 {
			continue
		}
		if width == -1 {
			width = w
		} else if w != width {
			return false
		}
		seen++
	}
	return seen >= 2
}
