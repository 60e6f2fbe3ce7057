// Package fontio loads and re-serializes sfnt and TrueType Collection font
// files, wrapping ot.Font/ot.Face with the outline and GPOS accessors the
// spacing package needs and adapting the teacher's single-sfnt FontBuilder
// (subset/serialize.go) into a TTC-aware writer with shared-table dedup.
package fontio

import (
	"encoding/binary"
	"os"

	"github.com/boxesandglue/textshape/ot"
)

const ttcTag = 0x74746366 // 'ttcf'

// Collection holds every face parsed from one font file. A plain .ttf/.otf
// file is treated as a one-face collection.
type Collection struct {
	raw   []byte
	faces []*Face
}

// Load reads a font file from disk and parses every face it contains.
func Load(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadData(data)
}

// LoadData parses every face in an in-memory sfnt or TTC font file.
func LoadData(data []byte) (*Collection, error) {
	if len(data) < 12 {
		return nil, ErrNotSFNT
	}

	numFaces := 1
	if binary.BigEndian.Uint32(data[0:4]) == ttcTag {
		if len(data) < 16 {
			return nil, ErrNotSFNT
		}
		numFaces = int(binary.BigEndian.Uint32(data[12:16]))
	}
	if numFaces <= 0 {
		return nil, ErrNoFaces
	}

	c := &Collection{raw: data}
	for i := 0; i < numFaces; i++ {
		face, err := loadFace(data, i)
		if err != nil {
			return nil, err
		}
		c.faces = append(c.faces, face)
	}
	return c, nil
}

func loadFace(data []byte, index int) (*Face, error) {
	font, err := ot.ParseFont(data, index)
	if err != nil {
		return nil, err
	}

	metrics, err := ot.NewFace(font)
	if err != nil {
		return nil, err
	}

	face := &Face{
		Font:    font,
		Metrics: metrics,
		index:   index,
	}

	if font.HasTable(ot.TagCFF) {
		if cffData, err := font.TableData(ot.TagCFF); err == nil {
			face.CFF, _ = ot.ParseCFF(cffData)
		}
	} else if font.HasTable(ot.TagGlyf) && font.HasTable(ot.TagLoca) {
		face.Glyf, _ = ot.ParseGlyfFromFont(font)
	}

	if font.HasTable(ot.TagGPOS) {
		if gposData, err := font.TableData(ot.TagGPOS); err == nil {
			face.gposData = gposData
			face.GPOS, _ = ot.ParseGPOS(gposData)
		}
	}

	return face, nil
}

// Faces returns every face in the collection, in TTC face-index order.
func (c *Collection) Faces() []*Face { return c.faces }

// NumFaces returns the number of faces in the collection.
func (c *Collection) NumFaces() int { return len(c.faces) }

// Face returns the face at the given index.
func (c *Collection) Face(index int) (*Face, error) {
	if index < 0 || index >= len(c.faces) {
		return nil, ErrFaceIndex
	}
	return c.faces[index], nil
}
