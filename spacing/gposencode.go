package spacing

import (
	"encoding/binary"
	"sort"

	"github.com/boxesandglue/textshape/ot"
)

// This file is the binary GPOS encoder: the same byte-layout routines as
// the teacher's subset/gpos.go gposBuilder (buildSinglePosFormat1/2,
// buildPairPosFormat2, buildClassDefFormat2, buildCoverageFormat1,
// buildLookupList, valueRecordSize/writeValueRecord), re-purposed from
// "remap subsetted glyph IDs into one merged kern feature" to "encode L/R/M
// class matrices into independently-tagged chws/vchw/halt/vhal lookups,
// alongside every lookup already present in the font."

// classEntry pairs a glyph with the class ClassDef should report for it.
type classEntry struct {
	glyph ot.GlyphID
	class uint16
}

// lookupBuilder collects the subtables of one lookup to be encoded.
type lookupBuilder struct {
	lookupType uint16
	flag       uint16
	subtables  [][]byte
}

func encodeLookup(lb *lookupBuilder) []byte {
	headerSize := 6 + len(lb.subtables)*2
	var subtableData []byte
	offsets := make([]uint16, len(lb.subtables))
	for i, st := range lb.subtables {
		offsets[i] = uint16(headerSize + len(subtableData))
		subtableData = append(subtableData, st...)
	}

	data := make([]byte, headerSize+len(subtableData))
	binary.BigEndian.PutUint16(data[0:], lb.lookupType)
	binary.BigEndian.PutUint16(data[2:], lb.flag)
	binary.BigEndian.PutUint16(data[4:], uint16(len(lb.subtables)))
	for i, off := range offsets {
		binary.BigEndian.PutUint16(data[6+i*2:], off)
	}
	copy(data[headerSize:], subtableData)
	return data
}

// buildLookupList encodes a LookupList table from raw, pre-encoded lookup
// bytes (each already a complete Lookup table, produced either by
// encodeLookup or copied verbatim via ot.GPOS.RawLookupBytes).
func buildLookupList(lookups [][]byte) []byte {
	headerSize := 2 + len(lookups)*2
	var body []byte
	offsets := make([]uint16, len(lookups))
	for i, l := range lookups {
		offsets[i] = uint16(headerSize + len(body))
		body = append(body, l...)
	}
	data := make([]byte, headerSize+len(body))
	binary.BigEndian.PutUint16(data[0:], uint16(len(lookups)))
	for i, off := range offsets {
		binary.BigEndian.PutUint16(data[2+i*2:], off)
	}
	copy(data[headerSize:], body)
	return data
}

func buildCoverageFormat1(glyphs []ot.GlyphID) []byte {
	sorted := append([]ot.GlyphID(nil), glyphs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	data := make([]byte, 4+len(sorted)*2)
	binary.BigEndian.PutUint16(data[0:], 1)
	binary.BigEndian.PutUint16(data[2:], uint16(len(sorted)))
	for i, g := range sorted {
		binary.BigEndian.PutUint16(data[4+i*2:], uint16(g))
	}
	return data
}

// buildClassDefFormat2 range-compresses sorted (glyph, class) entries into a
// ClassDef format 2 table (contiguous glyph IDs with the same class collapse
// into one ClassRangeRecord).
func buildClassDefFormat2(entries []classEntry) []byte {
	if len(entries) == 0 {
		return []byte{0, 1, 0, 0, 0, 0} // empty format 1 ClassDef
	}
	sorted := append([]classEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].glyph < sorted[j].glyph })

	type classRange struct {
		start, end ot.GlyphID
		class      uint16
	}
	var ranges []classRange
	start, end, class := sorted[0].glyph, sorted[0].glyph, sorted[0].class
	for _, e := range sorted[1:] {
		if e.glyph == end+1 && e.class == class {
			end = e.glyph
			continue
		}
		ranges = append(ranges, classRange{start, end, class})
		start, end, class = e.glyph, e.glyph, e.class
	}
	ranges = append(ranges, classRange{start, end, class})

	data := make([]byte, 4+len(ranges)*6)
	binary.BigEndian.PutUint16(data[0:], 2)
	binary.BigEndian.PutUint16(data[2:], uint16(len(ranges)))
	for i, r := range ranges {
		off := 4 + i*6
		binary.BigEndian.PutUint16(data[off:], uint16(r.start))
		binary.BigEndian.PutUint16(data[off+2:], uint16(r.end))
		binary.BigEndian.PutUint16(data[off+4:], r.class)
	}
	return data
}

func valueRecordSize(format uint16) int {
	count := 0
	for f := format & 0xFF; f != 0; f >>= 1 {
		if f&1 != 0 {
			count++
		}
	}
	return count * 2
}

func writeValueRecord(data []byte, vr ot.ValueRecord, format uint16) {
	off := 0
	if format&ot.ValueFormatXPlacement != 0 {
		binary.BigEndian.PutUint16(data[off:], uint16(vr.XPlacement))
		off += 2
	}
	if format&ot.ValueFormatYPlacement != 0 {
		binary.BigEndian.PutUint16(data[off:], uint16(vr.YPlacement))
		off += 2
	}
	if format&ot.ValueFormatXAdvance != 0 {
		binary.BigEndian.PutUint16(data[off:], uint16(vr.XAdvance))
		off += 2
	}
	if format&ot.ValueFormatYAdvance != 0 {
		binary.BigEndian.PutUint16(data[off:], uint16(vr.YAdvance))
		off += 2
	}
	// Device tables are never written by this system's synthesized
	// lookups; the four device-offset slots, if present in format, are
	// left zeroed.
}

// buildSinglePosFormat1 encodes a SinglePos subtable applying one uniform
// value record to every glyph in glyphs (used for halt/vhal: every
// classified glyph's advance is halved unconditionally).
func buildSinglePosFormat1(glyphs []ot.GlyphID, vr ot.ValueRecord, format uint16) []byte {
	coverage := buildCoverageFormat1(glyphs)
	vrSize := valueRecordSize(format)
	headerSize := 6 + vrSize
	data := make([]byte, headerSize+len(coverage))
	binary.BigEndian.PutUint16(data[0:], 1)
	binary.BigEndian.PutUint16(data[2:], uint16(headerSize))
	binary.BigEndian.PutUint16(data[4:], format)
	writeValueRecord(data[6:], vr, format)
	copy(data[headerSize:], coverage)
	return data
}

// pairSetEntry/pairValueEntry back buildPairPosFormat1, used only to encode
// Config.SkipPairs as explicit zero-value exceptions ahead of the
// class-based matrix in the same lookup (format 1 subtables are tried
// first and, on an exact-pair match, pre-empt the format 2 subtable that
// follows — the only way to carve a single-pair exception out of a
// class-matrix design without one class per glyph).
type pairSetEntry struct {
	firstGlyph ot.GlyphID
	pairs      []pairValueEntry
}

type pairValueEntry struct {
	secondGlyph ot.GlyphID
	value1      ot.ValueRecord
	value2      ot.ValueRecord
}

func buildPairPosFormat1(sets []pairSetEntry, vf1, vf2 uint16) []byte {
	glyphs := make([]ot.GlyphID, len(sets))
	for i, s := range sets {
		glyphs[i] = s.firstGlyph
	}
	coverage := buildCoverageFormat1(glyphs)

	vr1Size := valueRecordSize(vf1)
	vr2Size := valueRecordSize(vf2)
	pairRecordSize := 2 + vr1Size + vr2Size
	headerSize := 10 + len(sets)*2

	var pairSetData []byte
	pairSetOffsets := make([]uint16, len(sets))
	for i, set := range sets {
		pairSetOffsets[i] = uint16(headerSize + len(pairSetData))
		pairSet := make([]byte, 2+len(set.pairs)*pairRecordSize)
		binary.BigEndian.PutUint16(pairSet[0:], uint16(len(set.pairs)))
		off := 2
		for _, p := range set.pairs {
			binary.BigEndian.PutUint16(pairSet[off:], uint16(p.secondGlyph))
			off += 2
			writeValueRecord(pairSet[off:], p.value1, vf1)
			off += vr1Size
			writeValueRecord(pairSet[off:], p.value2, vf2)
			off += vr2Size
		}
		pairSetData = append(pairSetData, pairSet...)
	}

	data := make([]byte, headerSize+len(pairSetData)+len(coverage))
	binary.BigEndian.PutUint16(data[0:], 1)
	binary.BigEndian.PutUint16(data[2:], uint16(headerSize+len(pairSetData)))
	binary.BigEndian.PutUint16(data[4:], vf1)
	binary.BigEndian.PutUint16(data[6:], vf2)
	binary.BigEndian.PutUint16(data[8:], uint16(len(sets)))
	for i, off := range pairSetOffsets {
		binary.BigEndian.PutUint16(data[10+i*2:], off)
	}
	copy(data[headerSize:], pairSetData)
	copy(data[headerSize+len(pairSetData):], coverage)
	return data
}

// buildPairPosFormat2 encodes a class-based PairPos subtable: covGlyphs is
// every glyph that can start a pair (class1 members), class1/class2 map
// glyphs to their class index in each ClassDef, and matrix[c1][c2] gives the
// ValueRecord pair applied when a class-c1 glyph is followed by a class-c2
// glyph.
func buildPairPosFormat2(covGlyphs []ot.GlyphID, class1, class2 []classEntry,
	matrix map[[2]uint16][2]ot.ValueRecord, class1Count, class2Count uint16,
	vf1, vf2 uint16) []byte {

	coverage := buildCoverageFormat1(covGlyphs)
	classDef1 := buildClassDefFormat2(class1)
	classDef2 := buildClassDefFormat2(class2)

	vr1Size := valueRecordSize(vf1)
	vr2Size := valueRecordSize(vf2)
	classRecordSize := vr1Size + vr2Size

	headerSize := 16
	matrixSize := int(class1Count) * int(class2Count) * classRecordSize
	classDef1Off := headerSize + matrixSize
	classDef2Off := classDef1Off + len(classDef1)
	coverageOff := classDef2Off + len(classDef2)

	data := make([]byte, coverageOff+len(coverage))
	binary.BigEndian.PutUint16(data[0:], 2)
	binary.BigEndian.PutUint16(data[2:], uint16(coverageOff))
	binary.BigEndian.PutUint16(data[4:], vf1)
	binary.BigEndian.PutUint16(data[6:], vf2)
	binary.BigEndian.PutUint16(data[8:], uint16(classDef1Off))
	binary.BigEndian.PutUint16(data[10:], uint16(classDef2Off))
	binary.BigEndian.PutUint16(data[12:], class1Count)
	binary.BigEndian.PutUint16(data[14:], class2Count)

	off := headerSize
	for c1 := uint16(0); c1 < class1Count; c1++ {
		for c2 := uint16(0); c2 < class2Count; c2++ {
			vrs := matrix[[2]uint16{c1, c2}]
			writeValueRecord(data[off:], vrs[0], vf1)
			off += vr1Size
			writeValueRecord(data[off:], vrs[1], vf2)
			off += vr2Size
		}
	}

	copy(data[classDef1Off:], classDef1)
	copy(data[classDef2Off:], classDef2)
	copy(data[coverageOff:], coverage)
	return data
}

// featureEntry is one FeatureRecord for buildFeatureList: a feature tag and
// its absolute lookup indices. buildFeatureList encodes the entries in the
// order given; pre-existing records keep their lookup-index lists
// unchanged, since lookup indices are never renumbered (new lookups are
// only ever appended).
type featureEntry struct {
	tag     ot.Tag
	lookups []uint16
}

func buildFeatureList(features []featureEntry) []byte {
	headerSize := 2 + len(features)*6
	var body []byte
	offsets := make([]uint16, len(features))
	for i, f := range features {
		offsets[i] = uint16(headerSize + len(body))
		featureSize := 4 + len(f.lookups)*2
		fdata := make([]byte, featureSize)
		binary.BigEndian.PutUint16(fdata[0:], 0) // featureParams: none
		binary.BigEndian.PutUint16(fdata[2:], uint16(len(f.lookups)))
		for j, idx := range f.lookups {
			binary.BigEndian.PutUint16(fdata[4+j*2:], idx)
		}
		body = append(body, fdata...)
	}
	data := make([]byte, headerSize+len(body))
	binary.BigEndian.PutUint16(data[0:], uint16(len(features)))
	for i, f := range features {
		off := 2 + i*6
		binary.BigEndian.PutUint32(data[off:], uint32(f.tag))
		binary.BigEndian.PutUint16(data[off+4:], offsets[i])
	}
	copy(data[headerSize:], body)
	return data
}

// scriptEntry is one ScriptRecord to encode: defaultFeatures/langSys give
// the (possibly newly extended) feature-index lists for the script's
// DefaultLangSys and each of its tagged LangSys records.
type scriptEntry struct {
	tag             ot.Tag
	defaultFeatures []uint16 // nil if the script has no DefaultLangSys
	langSysTags     []ot.Tag
	langSys         [][]uint16
}

func buildScriptList(scripts []scriptEntry) []byte {
	headerSize := 2 + len(scripts)*6
	var body []byte
	scriptOffsets := make([]uint16, len(scripts))

	encodeLangSys := func(features []uint16) []byte {
		data := make([]byte, 6+len(features)*2)
		binary.BigEndian.PutUint16(data[0:], 0)      // lookupOrder: reserved
		binary.BigEndian.PutUint16(data[2:], 0xFFFF) // requiredFeatureIndex: none
		binary.BigEndian.PutUint16(data[4:], uint16(len(features)))
		for i, idx := range features {
			binary.BigEndian.PutUint16(data[6+i*2:], idx)
		}
		return data
	}

	for i, s := range scripts {
		scriptOffsets[i] = uint16(headerSize + len(body))

		scriptHeaderSize := 4 + len(s.langSysTags)*6
		var scriptBody []byte
		defaultOff := uint16(0)
		if s.defaultFeatures != nil {
			defaultOff = uint16(scriptHeaderSize + len(scriptBody))
			scriptBody = append(scriptBody, encodeLangSys(s.defaultFeatures)...)
		}
		langSysOffsets := make([]uint16, len(s.langSysTags))
		for j, features := range s.langSys {
			langSysOffsets[j] = uint16(scriptHeaderSize + len(scriptBody))
			scriptBody = append(scriptBody, encodeLangSys(features)...)
		}

		scriptData := make([]byte, scriptHeaderSize+len(scriptBody))
		binary.BigEndian.PutUint16(scriptData[0:], defaultOff)
		binary.BigEndian.PutUint16(scriptData[2:], uint16(len(s.langSysTags)))
		for j, tag := range s.langSysTags {
			off := 4 + j*6
			binary.BigEndian.PutUint32(scriptData[off:], uint32(tag))
			binary.BigEndian.PutUint16(scriptData[off+4:], langSysOffsets[j])
		}
		copy(scriptData[scriptHeaderSize:], scriptBody)
		body = append(body, scriptData...)
	}

	data := make([]byte, headerSize+len(body))
	binary.BigEndian.PutUint16(data[0:], uint16(len(scripts)))
	for i, s := range scripts {
		off := 2 + i*6
		binary.BigEndian.PutUint32(data[off:], uint32(s.tag))
		binary.BigEndian.PutUint16(data[off+4:], scriptOffsets[i])
	}
	copy(data[headerSize:], body)
	return data
}

// buildGPOS assembles the full GPOS table from its three top-level pieces.
func buildGPOS(scriptList, featureList, lookupList []byte) []byte {
	headerSize := 10
	scriptOff := headerSize
	featureOff := scriptOff + len(scriptList)
	lookupOff := featureOff + len(featureList)

	data := make([]byte, lookupOff+len(lookupList))
	binary.BigEndian.PutUint16(data[0:], 1)
	binary.BigEndian.PutUint16(data[2:], 0)
	binary.BigEndian.PutUint16(data[4:], uint16(scriptOff))
	binary.BigEndian.PutUint16(data[6:], uint16(featureOff))
	binary.BigEndian.PutUint16(data[8:], uint16(lookupOff))
	copy(data[scriptOff:], scriptList)
	copy(data[featureOff:], featureList)
	copy(data[lookupOff:], lookupList)
	return data
}
