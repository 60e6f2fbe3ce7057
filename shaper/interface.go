// Package shaper defines the shaping capability spacing depends on and its
// two bindings: ot.Shaper run in-process, or an external binary driven over
// a line-oriented wire protocol. Consumers depend on Interface, never on a
// concrete binding, so tests can inject either one.
package shaper

import "github.com/boxesandglue/textshape/ot"

// Interface turns a buffer of codepoints, under the script/language/feature
// request already set on it, into positioned glyphs. Both InProcess and
// ExternalShaper satisfy it.
type Interface interface {
	Shape(buf *ot.Buffer, features []ot.Feature) error
}

// InProcess binds Interface directly to ot.Shaper, the default binding
// used unless the SHAPER environment variable names an external binary.
type InProcess struct {
	Shaper *ot.Shaper
}

// NewInProcess builds an in-process shaper bound to face.
func NewInProcess(face *ot.Face) (*InProcess, error) {
	s, err := ot.NewShaperFromFace(face)
	if err != nil {
		return nil, err
	}
	return &InProcess{Shaper: s}, nil
}

// Shape delegates directly to ot.Shaper.Shape. ot.Shaper never reports a
// shaping failure itself (a codepoint it can't handle just yields
// .notdef), so this always returns nil.
func (p *InProcess) Shape(buf *ot.Buffer, features []ot.Feature) error {
	p.Shaper.Shape(buf, features)
	return nil
}
