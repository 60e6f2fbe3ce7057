package spacing

import (
	"strings"

	"github.com/boxesandglue/textshape/ot"
)

// LanguageClassifier derives a Language for a face when the caller hasn't
// pinned one via Config.Language; ProcessFace consults it only when
// UseInkBounds is false, so that the language-convention path still has a
// convention to classify an unlabeled font by. It never
// overrides Config.UseInkBounds — see PairClassifier for the resolution
// order between the two.
type LanguageClassifier struct{}

// Classify inspects the face's name table and OS/2 code-page bits and
// returns the language it believes the font targets, or LanguageUnknown.
func (LanguageClassifier) Classify(f *ot.Face) Language {
	if name := f.FamilyName(); name != "" {
		if lang, ok := languageFromFamilyName(name); ok {
			return lang
		}
	}
	return languageFromOS2(f)
}

// languageFromFamilyName applies the naming convention Noto CJK ships with
// ("Noto Sans JP", "Noto Serif CJK KR", ...): a two-letter region code
// appears as its own word in the family name. Families without such a word
// (Meiryo, Microsoft JhengHei, Microsoft YaHei, ...) are not recognized.
func languageFromFamilyName(name string) (Language, bool) {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	})
	for _, w := range words {
		switch w {
		case "JP", "JAN":
			return LanguageJapanese, true
		case "KR", "KOR":
			return LanguageKorean, true
		case "SC", "ZHS", "CN":
			return LanguageChineseSimplified, true
		case "TC", "ZHT", "TW":
			return LanguageChineseTraditional, true
		case "HK", "ZHH":
			return LanguageChineseHongKong, true
		}
	}
	return LanguageUnknown, false
}

// OS/2 ulCodePageRange1 bits, from the OpenType OS/2 table specification.
const (
	codePageJapanese          = 1 << 17
	codePageChineseSimplified = 1 << 18
	codePageKoreanWansung     = 1 << 19
	codePageChineseTraditional = 1 << 20
	codePageKoreanJohab       = 1 << 21
)

// languageFromOS2 is only reached once languageFromFamilyName has already
// failed to disambiguate the font from its name. A pan-CJK font commonly
// sets more than one of these code-page bits at once (e.g. a font shipping
// both Japanese and Simplified Chinese glyph coverage); picking the
// highest-priority bit in that case would silently mislabel the font, so
// more than one block bit set with nothing else to break the tie is
// reported as LanguageUnknown rather than guessed.
func languageFromOS2(f *ot.Face) Language {
	os2 := f.OS2()
	if os2 == nil {
		return LanguageUnknown
	}
	cp := os2.UlCodePageRange1
	blocksSet := 0
	if cp&codePageJapanese != 0 {
		blocksSet++
	}
	if cp&codePageKoreanWansung != 0 || cp&codePageKoreanJohab != 0 {
		blocksSet++
	}
	if cp&codePageChineseSimplified != 0 {
		blocksSet++
	}
	if cp&codePageChineseTraditional != 0 {
		blocksSet++
	}
	if blocksSet > 1 {
		return LanguageUnknown
	}
	switch {
	case cp&codePageJapanese != 0:
		return LanguageJapanese
	case cp&codePageKoreanWansung != 0, cp&codePageKoreanJohab != 0:
		return LanguageKorean
	case cp&codePageChineseSimplified != 0:
		return LanguageChineseSimplified
	case cp&codePageChineseTraditional != 0:
		return LanguageChineseTraditional
	default:
		return LanguageUnknown
	}
}
