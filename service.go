package ogcard

import (
	"context"
	"errors"
	"fmt"
)

// imageResolver abstracts asset resolution for testing.
type imageResolver interface {
	Resolve(img *ImageInput) (*ImageReference, error)
}

// Service orchestrates the card rendering pipeline: asset resolution,
// document construction, then screenshot capture. One Service owns one
// browser session; use a RenderPool to bound concurrent renders.
type Service struct {
	cfg      serviceConfig
	resolver imageResolver
	renderer cardRenderer
	capturer screenCapturer
}

// New creates a Service with default configuration.
// Use options to customize behavior (e.g., WithTimeout, WithStyle).
func New(opts ...Option) *Service {
	s := &Service{
		cfg: serviceConfig{
			timeout:     defaultTimeout,
			jpegQuality: DefaultJPEGQuality,
			uploadPath:  DefaultUploadPath,
			style:       DefaultStyle(),
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	// Create collaborators if not injected (e.g., by tests).
	if s.resolver == nil {
		s.resolver = newAssetResolver(s.cfg)
	}
	if s.renderer == nil {
		s.renderer = newCardTemplate(s.cfg.style)
	}
	if s.capturer == nil {
		s.capturer = newRodCapturer(s.cfg)
	}

	return s
}

// Generate runs the full pipeline and returns the rendered card.
// The context is used for cancellation; the configured timeout bounds
// the render regardless of the caller's deadline.
func (s *Service) Generate(ctx context.Context, req Request) (*Output, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	imageRef, err := s.resolver.Resolve(req.Image)
	if err != nil {
		return nil, fmt.Errorf("resolving image: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.timeout)
	defer cancel()

	document, err := s.renderer.RenderDocument(ctx, *req.Title, *req.Content, imageRef)
	if err != nil {
		return nil, fmt.Errorf("building card document: %w", err)
	}

	buf, err := s.capturer.Capture(ctx, document)
	if err != nil && retryable(err) && ctx.Err() == nil {
		// The faulted session was already discarded; a second capture
		// runs on a fresh one. One retry, then the error stands.
		buf, err = s.capturer.Capture(ctx, document)
	}
	if err != nil {
		return nil, fmt.Errorf("capturing card: %w", err)
	}

	return &Output{
		Bytes:    buf,
		MimeType: "image/jpeg",
		Width:    CardWidth,
		Height:   CardHeight,
	}, nil
}

// Close releases resources (headless Chrome browser).
func (s *Service) Close() error {
	if s.capturer != nil {
		return s.capturer.Close()
	}
	return nil
}

// validateRequest checks that required fields are present. Absent title
// or content is an error; the empty string is not.
func validateRequest(req Request) error {
	if req.Title == nil {
		return ErrMissingTitle
	}
	if req.Content == nil {
		return ErrMissingContent
	}
	return nil
}

// retryable reports whether the error is an engine failure worth one
// retry on a fresh session. Validation, asset, and backpressure errors
// never retry; neither does caller cancellation.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch Categorize(err) {
	case CategoryEngineLaunch, CategoryEngineRender:
		return true
	}
	return false
}
