package analyzer

import "errors"

var (
	// ErrHash reports that no identity could be derived for the input.
	// Practically unreachable for real files, since the digest is
	// computed from metadata alone.
	ErrHash = errors.New("could not derive video identity")

	// ErrExtraction reports that frame sampling produced no usable
	// frames. The external analysis call is never made in this case.
	ErrExtraction = errors.New("frame extraction failed")

	// ErrAnalysis reports that the external analysis call failed.
	ErrAnalysis = errors.New("analysis failed")
)
