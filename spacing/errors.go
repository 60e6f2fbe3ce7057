package spacing

import "fmt"

// Sentinel errors returned by the spacing package's analysis and build steps.
var (
	ErrLanguageAmbiguous  = errInternal("language could not be determined and use_ink_bounds is false")
	ErrNoApplicableGlyphs = errInternal("no glyph in this font needs contextual spacing")
	ErrShaperUnavailable  = errInternal("no shaper is available for this font")
	ErrShaperTimeout      = errInternal("shaper did not respond in time")
	ErrOutlineMalformed   = errInternal("glyph outline could not be read")
	ErrGPOSConflict       = errInternal("font already carries a conflicting chws/vchw/halt/vhal lookup")
)

type sentinelError string

func errInternal(s string) error { return sentinelError(s) }

func (e sentinelError) Error() string { return string(e) }

// FaceError wraps an error with the face it occurred on, so a batch run over
// a collection can report which face failed without aborting the others.
type FaceError struct {
	FaceIndex int
	FaceName  string
	Err       error
}

func (e *FaceError) Error() string {
	if e.FaceName != "" {
		return fmt.Sprintf("face %d (%s): %v", e.FaceIndex, e.FaceName, e.Err)
	}
	return fmt.Sprintf("face %d: %v", e.FaceIndex, e.Err)
}

func (e *FaceError) Unwrap() error { return e.Err }
