package ogcard

import "errors"

// Sentinel errors for library operations.
var (
	// Validation errors (detected before any engine resource is acquired).
	ErrMissingTitle   = errors.New("title is required")
	ErrMissingContent = errors.New("content is required")

	// Asset errors.
	ErrDisallowedImageType = errors.New("image type not allowed")
	ErrEmptyImage          = errors.New("image data cannot be empty")
	ErrInvalidUploadRef    = errors.New("invalid upload reference")
	ErrMissingBaseURL      = errors.New("public base URL not configured")

	// Engine errors.
	ErrEngineLaunch = errors.New("failed to launch render engine")
	ErrPageCreate   = errors.New("failed to create browser page")
	ErrPageLoad     = errors.New("failed to load card document")
	ErrScreenshot   = errors.New("screenshot capture failed")

	// Pool errors.
	ErrPoolBusy   = errors.New("all render slots are busy")
	ErrPoolClosed = errors.New("render pool is closed")
)

// Category classifies an error into the stable external taxonomy.
// Callers use it to pick a transport-level response (HTTP status,
// retry decision) without matching individual sentinels.
type Category string

// Error categories, ordered from caller fault to system fault.
const (
	CategoryValidation   Category = "validation"
	CategoryAsset        Category = "asset"
	CategoryBackpressure Category = "backpressure"
	CategoryEngineLaunch Category = "engine_launch"
	CategoryEngineRender Category = "engine_render"
	CategoryInternal     Category = "internal"
)

// Categorize maps an error to its Category. Unknown errors (including
// context cancellation surfaced by the engine) map to CategoryInternal.
func Categorize(err error) Category {
	switch {
	case errors.Is(err, ErrMissingTitle), errors.Is(err, ErrMissingContent):
		return CategoryValidation
	case errors.Is(err, ErrDisallowedImageType),
		errors.Is(err, ErrEmptyImage),
		errors.Is(err, ErrInvalidUploadRef),
		errors.Is(err, ErrMissingBaseURL):
		return CategoryAsset
	case errors.Is(err, ErrPoolBusy), errors.Is(err, ErrPoolClosed):
		return CategoryBackpressure
	case errors.Is(err, ErrEngineLaunch):
		return CategoryEngineLaunch
	case errors.Is(err, ErrPageCreate),
		errors.Is(err, ErrPageLoad),
		errors.Is(err, ErrScreenshot):
		return CategoryEngineRender
	default:
		return CategoryInternal
	}
}
