package main

import (
	"testing"

	"github.com/boxesandglue/textshape/fontio"
	"github.com/boxesandglue/textshape/internal/testutil"
	"github.com/boxesandglue/textshape/spacing"
)

func loadFirstFace(t *testing.T, fontName string) *fontio.Face {
	t.Helper()
	path := testutil.FindTestFont(fontName)
	if path == "" {
		t.Skipf("%s not found", fontName)
	}
	col, err := fontio.Load(path)
	if err != nil {
		t.Fatalf("Load(%s): %v", path, err)
	}
	face, err := col.Face(0)
	if err != nil {
		t.Fatalf("Face(0): %v", err)
	}
	return face
}

func TestNotoLanguageForFaceUnrecognizedNameIsUnknown(t *testing.T) {
	// A plain Latin font's family name carries no JP/KR/SC/TC/HK marker and
	// isn't a "Mono" grid variant, so it should defer to ink-bounds analysis
	// rather than being skipped or misclassified.
	face := loadFirstFace(t, "Roboto-Regular.ttf")
	lang, skip := notoLanguageForFace(face)
	if skip {
		t.Error("a non-Mono Latin font should not be skipped")
	}
	if lang != spacing.LanguageUnknown {
		t.Errorf("got %v, want LanguageUnknown", lang)
	}
}
