package main

import (
	"strings"

	"github.com/boxesandglue/textshape/fontio"
	"github.com/boxesandglue/textshape/spacing"
)

// notoLanguageForFace derives a face's spacing.Language from its own family
// name, generalizing original_source/make-noto-cjk.py's lang_from_ttfont:
// a family name containing "Mono" is a grid-layout variant that must be
// skipped outright (skip=true), otherwise the JP/KR/SC/TC/HK region marker
// in the name picks the language. Unlike the original, an unrecognized name
// falls back to LanguageUnknown (letting ink-bounds analysis take over)
// rather than failing the whole run.
func notoLanguageForFace(face *fontio.Face) (lang spacing.Language, skip bool) {
	name := face.Metrics.FamilyName()
	if strings.Contains(name, "Mono") {
		return spacing.LanguageUnknown, true
	}
	switch {
	case strings.Contains(name, "JP"):
		return spacing.LanguageJapanese, false
	case strings.Contains(name, "KR"):
		return spacing.LanguageKorean, false
	case strings.Contains(name, "HK"):
		return spacing.LanguageChineseHongKong, false
	case strings.Contains(name, "SC"):
		return spacing.LanguageChineseSimplified, false
	case strings.Contains(name, "TC"):
		return spacing.LanguageChineseTraditional, false
	default:
		return spacing.LanguageUnknown, false
	}
}
