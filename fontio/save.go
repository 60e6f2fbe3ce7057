package fontio

import (
	"crypto/sha256"
	"encoding/binary"
	"os"
	"sort"

	"github.com/boxesandglue/textshape/ot"
)

// Save writes the collection to path, as a plain sfnt if it holds one face
// or as a TrueType Collection otherwise.
func (c *Collection) Save(path string) error {
	data, err := c.Build()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Build serializes the collection's faces (including any table replaced by
// Face.SetGPOS) back into font bytes.
func (c *Collection) Build() ([]byte, error) {
	if len(c.faces) == 0 {
		return nil, ErrNoFaces
	}
	if len(c.faces) == 1 {
		return buildSFNT(c.faces[0])
	}
	return buildTTC(c.faces)
}

// BuildFace serializes a single face back into standalone sfnt bytes,
// independent of any Collection it was loaded from. Used by
// spacing.FeatureTester to verify a modified face by reloading it, rather
// than reasoning about GPOS effects through the in-memory Face alone.
func BuildFace(f *Face) ([]byte, error) {
	return buildSFNT(f)
}

type faceTable struct {
	tag  ot.Tag
	data []byte
}

func collectFaceTables(f *Face) ([]faceTable, error) {
	tags := f.Tags()
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	tables := make([]faceTable, 0, len(tags))
	for _, tag := range tags {
		data, err := f.TableData(tag)
		if err != nil {
			return nil, err
		}
		tables = append(tables, faceTable{tag: tag, data: data})
	}
	return tables, nil
}

// buildSFNT lays out one font's tables exactly as the teacher's
// subset/serialize.go FontBuilder did: sorted table directory, each table
// padded to a 4-byte boundary, then a checksumAdjustment fixup pass.
func buildSFNT(f *Face) ([]byte, error) {
	tables, err := collectFaceTables(f)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, ErrNoFaces
	}

	searchRange, entrySelector, rangeShift := calcSearchParams(len(tables))
	headerSize := 12 + len(tables)*16

	dataSize := 0
	for _, t := range tables {
		dataSize += pad4(len(t.data))
	}

	out := make([]byte, headerSize+dataSize)
	binary.BigEndian.PutUint32(out[0:], sfntVersionFor(f))
	binary.BigEndian.PutUint16(out[4:], uint16(len(tables)))
	binary.BigEndian.PutUint16(out[6:], searchRange)
	binary.BigEndian.PutUint16(out[8:], entrySelector)
	binary.BigEndian.PutUint16(out[10:], rangeShift)

	offset := headerSize
	recordOff := 12
	headOffset := -1
	for _, t := range tables {
		checksum := calcChecksum(t.data)
		binary.BigEndian.PutUint32(out[recordOff:], uint32(t.tag))
		binary.BigEndian.PutUint32(out[recordOff+4:], checksum)
		binary.BigEndian.PutUint32(out[recordOff+8:], uint32(offset))
		binary.BigEndian.PutUint32(out[recordOff+12:], uint32(len(t.data)))
		recordOff += 16

		copy(out[offset:], t.data)
		if t.tag == ot.TagHead {
			headOffset = offset
		}
		offset += pad4(len(t.data))
	}

	fixupChecksumAdjustment(out, headOffset)
	return out, nil
}

// buildTTC packs multiple faces into one TrueType Collection, deduplicating
// tables that are byte-identical across faces (as glyf/loca/cmap/etc.
// commonly are within a family) by content hash so they are stored once.
func buildTTC(faces []*Face) ([]byte, error) {
	perFace := make([][]faceTable, len(faces))
	for i, f := range faces {
		tables, err := collectFaceTables(f)
		if err != nil {
			return nil, err
		}
		if len(tables) == 0 {
			return nil, ErrNoFaces
		}
		perFace[i] = tables
	}

	headerSize := 12 + len(faces)*4

	faceHeaderOffsets := make([]int, len(faces))
	offsetTablesSize := 0
	for i, tables := range perFace {
		faceHeaderOffsets[i] = headerSize + offsetTablesSize
		offsetTablesSize += 12 + len(tables)*16
	}
	dataPoolStart := headerSize + offsetTablesSize

	type uniqueTable struct {
		data   []byte
		offset int
	}
	byHash := make(map[[32]byte]*uniqueTable)
	var pool []*uniqueTable
	cursor := dataPoolStart

	tableOffset := func(data []byte) int {
		h := sha256.Sum256(data)
		if u, ok := byHash[h]; ok {
			return u.offset
		}
		u := &uniqueTable{data: data, offset: cursor}
		byHash[h] = u
		pool = append(pool, u)
		cursor += pad4(len(data))
		return u.offset
	}

	poolSize := 0
	for _, tables := range perFace {
		for _, t := range tables {
			before := cursor
			off := tableOffset(t.data)
			if off == before {
				poolSize += pad4(len(t.data))
			}
		}
	}

	out := make([]byte, dataPoolStart+poolSize)

	binary.BigEndian.PutUint32(out[0:], ttcTag)
	binary.BigEndian.PutUint32(out[4:], 0x00010000)
	binary.BigEndian.PutUint32(out[8:], uint32(len(faces)))
	for i, off := range faceHeaderOffsets {
		binary.BigEndian.PutUint32(out[12+i*4:], uint32(off))
	}

	for _, u := range pool {
		copy(out[u.offset:], u.data)
	}

	for i, tables := range perFace {
		base := faceHeaderOffsets[i]
		searchRange, entrySelector, rangeShift := calcSearchParams(len(tables))

		binary.BigEndian.PutUint32(out[base:], sfntVersionFor(faces[i]))
		binary.BigEndian.PutUint16(out[base+4:], uint16(len(tables)))
		binary.BigEndian.PutUint16(out[base+6:], searchRange)
		binary.BigEndian.PutUint16(out[base+8:], entrySelector)
		binary.BigEndian.PutUint16(out[base+10:], rangeShift)

		recordOff := base + 12
		headOffset := -1
		for _, t := range tables {
			h := sha256.Sum256(t.data)
			off := byHash[h].offset
			checksum := calcChecksum(t.data)

			binary.BigEndian.PutUint32(out[recordOff:], uint32(t.tag))
			binary.BigEndian.PutUint32(out[recordOff+4:], checksum)
			binary.BigEndian.PutUint32(out[recordOff+8:], uint32(off))
			binary.BigEndian.PutUint32(out[recordOff+12:], uint32(len(t.data)))
			recordOff += 16

			if t.tag == ot.TagHead {
				headOffset = off
			}
		}

		// Approximation: checksumAdjustment is computed over the whole
		// output buffer as it stands at this point (the shared table pool
		// plus the directories written so far), not by the TTC-wide
		// algorithm the OpenType spec defines for collections. Faces sharing
		// a head table byte-for-byte (rare — head differs per face in
		// practice) keep only the adjustment written for the last of them;
		// every font in this system's target corpus (Noto CJK) carries a
		// distinct head table per face, so this does not arise.
		if headOffset >= 0 {
			fixupChecksumAdjustment(out, headOffset)
		}
	}

	return out, nil
}

func sfntVersionFor(f *Face) uint32 {
	if f.IsCFF() {
		return 0x4F54544F // 'OTTO'
	}
	return 0x00010000
}

func pad4(n int) int {
	if n%4 == 0 {
		return n
	}
	return n + (4 - n%4)
}

func fixupChecksumAdjustment(out []byte, headOffset int) {
	if headOffset < 0 || headOffset+12 > len(out) {
		return
	}
	binary.BigEndian.PutUint32(out[headOffset+8:], 0)
	fontChecksum := calcChecksum(out)
	adjustment := uint32(0xB1B0AFBA) - fontChecksum
	binary.BigEndian.PutUint32(out[headOffset+8:], adjustment)
}

func calcSearchParams(numTables int) (searchRange, entrySelector, rangeShift uint16) {
	entrySelector = 0
	power := 1
	for power*2 <= numTables {
		power *= 2
		entrySelector++
	}
	searchRange = uint16(power * 16)
	rangeShift = uint16(numTables*16) - searchRange
	return
}

func calcChecksum(data []byte) uint32 {
	var sum uint32
	length := len(data)
	for i := 0; i+4 <= length; i += 4 {
		sum += binary.BigEndian.Uint32(data[i:])
	}
	remaining := length % 4
	if remaining > 0 {
		var last uint32
		offset := length - remaining
		for i := 0; i < remaining; i++ {
			last |= uint32(data[offset+i]) << (24 - i*8)
		}
		sum += last
	}
	return sum
}
