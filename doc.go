// Package ogcard renders Open Graph social preview cards (1200x630
// JPEG) from a title, a body text, and an optional image, using
// headless Chrome.
//
// # Quick Start
//
// Create a service, generate a card, and close when done:
//
//	svc := ogcard.New()
//	defer svc.Close()
//
//	out, err := svc.Generate(ctx, ogcard.Request{
//	    Title:   ogcard.String("Hello"),
//	    Content: ogcard.String("World"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("card.jpg", out.Bytes, 0644)
//
// Title and Content are treated as untrusted text: they are escaped
// unconditionally before entering the document, so markup in the input
// renders as literal text.
//
// # Rendering Pipeline
//
// Each render runs three stages:
//
//  1. Asset resolution: the optional image becomes a base64 data URI
//     (raw uploads) or a public URL (stored uploads), gated by a MIME
//     type allowlist
//  2. Document construction: the fixed two-column card layout via
//     html/template
//  3. Capture: headless Chrome (go-rod) loads the document at exactly
//     1200x630 and screenshots it as JPEG
//
// # Configuration
//
// Use functional options to customize the service:
//
//	svc := ogcard.New(
//	    ogcard.WithTimeout(15 * time.Second),
//	    ogcard.WithJPEGQuality(90),
//	    ogcard.WithStyle(ogcard.Style{BadgeText: "NEWS", Accent: "#2255ee"}),
//	    ogcard.WithBaseURL("https://cards.example.com"),
//	)
//
// # Concurrency
//
// Browser sessions are expensive (~200MB each). RenderPool bounds how
// many run at once and keeps them warm between requests:
//
//	pool := ogcard.NewRenderPool(4, ogcard.WithTimeout(15*time.Second))
//	defer pool.Close()
//
//	out, err := pool.Generate(ctx, req) // ErrPoolBusy when saturated
//
// A render that fails or times out tears down its browser session; the
// next request on that slot launches a fresh one.
//
// # Browser Requirements
//
// Capture requires Chrome/Chromium. The go-rod library automatically
// downloads a managed Chromium instance on first run. For containers
// and CI environments, use WithNoSandbox and WithBrowserBin (or the
// ROD_BROWSER_BIN environment variable).
package ogcard
