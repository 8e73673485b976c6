package ogcard

import (
	"regexp"
	"time"
)

// Card dimensions in CSS pixels. Open Graph preview images are a fixed
// 1200x630 raster regardless of input length.
const (
	CardWidth  = 1200
	CardHeight = 630
)

// JPEG quality bounds.
const (
	MinJPEGQuality     = 1
	MaxJPEGQuality     = 100
	DefaultJPEGQuality = 80
)

// defaultTimeout bounds a single render when no timeout is configured.
const defaultTimeout = 30 * time.Second

// DefaultUploadPath is the URL path prefix under which stored uploads
// are served. Joined with the public base URL by the asset resolver.
const DefaultUploadPath = "/uploads/"

// Request contains the inputs for one card render.
//
// Title and Content are pointers so that an absent field is
// distinguishable from an explicitly empty one: absence is a validation
// error, the empty string renders an empty text block.
type Request struct {
	Title   *string     // card headline (required, may be empty)
	Content *string     // card description (required, may be empty)
	Image   *ImageInput // optional image for the right-hand column
}

// String returns a pointer to s, for building Request literals.
func String(s string) *string {
	return &s
}

// ImageKind discriminates the ImageInput union.
type ImageKind int

// ImageInput variants.
const (
	ImageRaw    ImageKind = iota + 1 // in-memory bytes with declared MIME type
	ImageStored                      // reference to a previously stored upload
)

// ImageInput is the caller-supplied image in one of two forms: raw bytes
// (multipart upload held in memory) or a reference to a file already
// persisted by the upload collaborator. Use RawImage or StoredImage to
// construct; exactly one variant is populated.
type ImageInput struct {
	Kind        ImageKind
	Data        []byte // ImageRaw only
	ContentType string // ImageRaw only; empty means image/jpeg
	UploadRef   string // ImageStored only; file name under the upload path
}

// RawImage builds an ImageInput from in-memory bytes and a declared
// content type. An empty contentType defaults to image/jpeg at resolve
// time.
func RawImage(data []byte, contentType string) *ImageInput {
	return &ImageInput{Kind: ImageRaw, Data: data, ContentType: contentType}
}

// StoredImage builds an ImageInput referencing a stored upload by file
// name. The resolver turns it into a URL under the configured public
// base URL; no network fetch happens in this process.
func StoredImage(ref string) *ImageInput {
	return &ImageInput{Kind: ImageStored, UploadRef: ref}
}

// Output is the rendered card. Bytes holds a JPEG whose decoded
// dimensions are always CardWidth x CardHeight.
type Output struct {
	Bytes    []byte
	MimeType string // always "image/jpeg"
	Width    int
	Height   int
}

// Style parameterizes the fixed card layout. It is deployment
// configuration, never derived from request input.
type Style struct {
	BadgeText  string // small uppercase label above the title
	Accent     string // badge color and first background circle
	AccentAlt  string // second background circle
	Background string // page background behind the card
}

// DefaultStyle returns the stock card styling.
func DefaultStyle() Style {
	return Style{
		BadgeText:  "BLOGGER",
		Accent:     "#ff7e5f",
		AccentAlt:  "#feb47b",
		Background: "#f0f2f5",
	}
}

// cssColorPattern accepts hex colors only. Style values land inside a
// <style> block, so anything freer would let configuration break out of
// the CSS context.
var cssColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{3,8}$`)

// fillDefaults replaces zero values with the stock style and returns
// whether every color is a valid hex color.
func (s Style) fillDefaults() (Style, bool) {
	def := DefaultStyle()
	if s.BadgeText == "" {
		s.BadgeText = def.BadgeText
	}
	if s.Accent == "" {
		s.Accent = def.Accent
	}
	if s.AccentAlt == "" {
		s.AccentAlt = def.AccentAlt
	}
	if s.Background == "" {
		s.Background = def.Background
	}
	ok := cssColorPattern.MatchString(s.Accent) &&
		cssColorPattern.MatchString(s.AccentAlt) &&
		cssColorPattern.MatchString(s.Background)
	return s, ok
}

// Option configures a Service.
type Option func(*Service)

// serviceConfig holds internal configuration for Service.
type serviceConfig struct {
	timeout     time.Duration
	jpegQuality int
	browserBin  string
	noSandbox   bool
	baseURL     string
	uploadPath  string
	style       Style
	allowed     []string
}

// WithTimeout sets the per-render timeout. A render that exceeds it is
// torn down together with its browser session.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("ogcard: WithTimeout duration must be positive")
	}
	return func(s *Service) {
		s.cfg.timeout = d
	}
}

// WithJPEGQuality sets the screenshot JPEG quality (1-100).
// Panics on out-of-range values.
func WithJPEGQuality(q int) Option {
	if q < MinJPEGQuality || q > MaxJPEGQuality {
		panic("ogcard: WithJPEGQuality must be between 1 and 100")
	}
	return func(s *Service) {
		s.cfg.jpegQuality = q
	}
}

// WithBrowserBin overrides the Chrome/Chromium binary location. When
// unset, go-rod resolves (and if necessary downloads) a managed browser.
func WithBrowserBin(path string) Option {
	return func(s *Service) {
		s.cfg.browserBin = path
	}
}

// WithNoSandbox disables the Chrome sandbox. Required in most container
// and CI environments.
func WithNoSandbox() Option {
	return func(s *Service) {
		s.cfg.noSandbox = true
	}
}

// WithBaseURL sets the public base URL used to resolve stored uploads
// into URLs the render engine can fetch, e.g. "http://localhost:3001".
func WithBaseURL(u string) Option {
	return func(s *Service) {
		s.cfg.baseURL = u
	}
}

// WithUploadPath overrides the URL path prefix for stored uploads.
func WithUploadPath(p string) Option {
	return func(s *Service) {
		s.cfg.uploadPath = p
	}
}

// WithStyle overrides the card styling. Zero fields keep their
// defaults. Panics if a color is not a hex color (configuration is
// trusted but still must not escape the CSS context).
func WithStyle(style Style) Option {
	filled, ok := style.fillDefaults()
	if !ok {
		panic("ogcard: WithStyle colors must be hex colors like #ff7e5f")
	}
	return func(s *Service) {
		s.cfg.style = filled
	}
}

// WithAllowedImageTypes replaces the MIME type allowlist used by the
// asset resolver. Panics on an empty list.
func WithAllowedImageTypes(types ...string) Option {
	if len(types) == 0 {
		panic("ogcard: WithAllowedImageTypes requires at least one type")
	}
	return func(s *Service) {
		s.cfg.allowed = types
	}
}
