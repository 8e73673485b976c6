package ogcard

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"mime"
	"net/url"
	"strings"
)

// defaultAllowedImageTypes is the stock MIME allowlist for uploaded
// images. Anything else is rejected before it can reach the document.
var defaultAllowedImageTypes = []string{
	"image/png",
	"image/jpeg",
	"image/webp",
	"image/gif",
}

// fallbackImageType is assumed when an upload declares no content type.
const fallbackImageType = "image/jpeg"

// DefaultAllowedImageTypes returns a copy of the stock MIME allowlist,
// so collaborators that store uploads before resolution can enforce
// the same gate.
func DefaultAllowedImageTypes() []string {
	return append([]string(nil), defaultAllowedImageTypes...)
}

// ImageReference is the render-ready form of an image: either a
// self-contained data URI or a URL the engine can fetch. The src is
// unexported so the only way to obtain one is through the resolver,
// which enforces the MIME allowlist first.
type ImageReference struct {
	src     template.URL
	dataURI bool
}

// Src returns the src attribute value.
func (r *ImageReference) Src() string {
	return string(r.src)
}

// IsDataURI reports whether the image is embedded inline rather than
// referenced by URL.
func (r *ImageReference) IsDataURI() bool {
	return r.dataURI
}

// assetResolver turns an ImageInput into an ImageReference. It is a
// pure function of its input plus configuration: no network, no disk.
type assetResolver struct {
	baseURL    string
	uploadPath string
	allowed    map[string]bool
}

// newAssetResolver builds a resolver from service configuration.
func newAssetResolver(cfg serviceConfig) *assetResolver {
	types := cfg.allowed
	if len(types) == 0 {
		types = defaultAllowedImageTypes
	}
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &assetResolver{
		baseURL:    strings.TrimRight(cfg.baseURL, "/"),
		uploadPath: cfg.uploadPath,
		allowed:    allowed,
	}
}

// Resolve maps the image input to its render-ready reference.
// A nil input resolves to nil: the card simply has no image column.
func (a *assetResolver) Resolve(img *ImageInput) (*ImageReference, error) {
	if img == nil {
		return nil, nil
	}
	switch img.Kind {
	case ImageRaw:
		return a.resolveRaw(img)
	case ImageStored:
		return a.resolveStored(img)
	default:
		return nil, fmt.Errorf("%w: unknown image input kind %d", ErrInvalidUploadRef, img.Kind)
	}
}

// resolveRaw embeds the bytes as a base64 data URI after checking the
// declared MIME type against the allowlist.
func (a *assetResolver) resolveRaw(img *ImageInput) (*ImageReference, error) {
	if len(img.Data) == 0 {
		return nil, ErrEmptyImage
	}

	mt, err := normalizeImageType(img.ContentType)
	if err != nil {
		return nil, err
	}
	if !a.allowed[mt] {
		return nil, fmt.Errorf("%w: %q", ErrDisallowedImageType, mt)
	}

	src := "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
	return &ImageReference{src: template.URL(src), dataURI: true}, nil
}

// resolveStored builds the externally reachable URL for a stored
// upload. The upload collaborator owns the file; the reference here is
// just the file name.
func (a *assetResolver) resolveStored(img *ImageInput) (*ImageReference, error) {
	ref := img.UploadRef
	if ref == "" || strings.ContainsAny(ref, "/\\") || strings.Contains(ref, "..") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUploadRef, ref)
	}
	if a.baseURL == "" {
		return nil, ErrMissingBaseURL
	}

	path := a.uploadPath
	if path == "" {
		path = DefaultUploadPath
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}

	src := a.baseURL + path + url.PathEscape(ref)
	return &ImageReference{src: template.URL(src)}, nil
}

// normalizeImageType lowercases the declared content type and strips
// any parameters. An empty declaration falls back to image/jpeg.
func normalizeImageType(declared string) (string, error) {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return fallbackImageType, nil
	}
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrDisallowedImageType, declared)
	}
	return strings.ToLower(mt), nil
}
