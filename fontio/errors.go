package fontio

import "errors"

var (
	// ErrNoFaces is returned when a font file contains no usable faces.
	ErrNoFaces = errors.New("fontio: font contains no faces")
	// ErrFaceIndex is returned when a requested face index is out of range.
	ErrFaceIndex = errors.New("fontio: face index out of range")
	// ErrNotSFNT is returned when the input data is not a recognizable
	// sfnt or TTC font file.
	ErrNotSFNT = errors.New("fontio: not an sfnt or ttc font file")
)
