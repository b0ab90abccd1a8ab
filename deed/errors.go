package deed

import "errors"

// Sentinel errors classifying per-document failures. Stage workers wrap
// these with fmt.Errorf("...: %w", ...) so callers match with errors.Is.
var (
	// ErrInsufficientText marks a stage-1 run that produced too little
	// text to be worth extracting.
	ErrInsufficientText = errors.New("insufficient text")
	// ErrStopped marks work abandoned at a cooperative stop checkpoint.
	ErrStopped = errors.New("processing stopped")
	// ErrRasterizerMissing marks an unavailable rasterizer binary.
	ErrRasterizerMissing = errors.New("rasterizer unavailable")
	// ErrModelInvocation marks a language or vision model failure,
	// including non-JSON responses.
	ErrModelInvocation = errors.New("model invocation failed")
	// ErrValidation marks a record missing required schema after
	// extraction.
	ErrValidation = errors.New("validation failed")
	// ErrPersistence marks a failed database commit, after rollback.
	ErrPersistence = errors.New("persistence failed")
)

// Category maps an error to its reporting category. Errors are isolated
// to their document and surfaced as category + message only.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStopped):
		return "Cancelled"
	case errors.Is(err, ErrInsufficientText):
		return "InsufficientText"
	case errors.Is(err, ErrRasterizerMissing):
		return "RasterizationMissing"
	case errors.Is(err, ErrModelInvocation):
		return "ModelInvocation"
	case errors.Is(err, ErrValidation):
		return "Validation"
	case errors.Is(err, ErrPersistence):
		return "Persistence"
	default:
		return "Unknown"
	}
}
