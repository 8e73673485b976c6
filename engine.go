package ogcard

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// screenCapturer abstracts document-to-JPEG capture to enable testing
// without a browser.
type screenCapturer interface {
	Capture(ctx context.Context, document string) ([]byte, error)
	Close() error
}

// Compile-time interface check.
var _ screenCapturer = (*rodCapturer)(nil)

// engineState tracks the capturer lifecycle.
type engineState int

const (
	stateUninitialized engineState = iota
	stateStarting
	stateReady
	stateRendering
	stateClosed
)

// rodCapturer renders card documents to JPEG through headless Chrome
// via go-rod. The browser launches lazily on first capture and is kept
// warm between renders. A session that fails mid-render is discarded,
// never reused; the next capture launches a fresh one.
//
// Rod automatically downloads Chromium on first run if not found.
type rodCapturer struct {
	mu      sync.Mutex
	state   engineState
	browser *rod.Browser
	launch  *launcher.Launcher
	session uint64

	timeout time.Duration
	quality int
	bin     string
	sandbox bool
}

// newRodCapturer creates a capturer from service configuration.
func newRodCapturer(cfg serviceConfig) *rodCapturer {
	return &rodCapturer{
		timeout: cfg.timeout,
		quality: cfg.jpegQuality,
		bin:     cfg.browserBin,
		sandbox: !cfg.noSandbox,
	}
}

// ensureBrowser lazily launches and connects to the browser.
// Callers hold r.mu.
func (r *rodCapturer) ensureBrowser() error {
	if r.state == stateClosed {
		return fmt.Errorf("%w: capturer is closed", ErrEngineLaunch)
	}
	if r.browser != nil {
		return nil
	}

	r.state = stateStarting

	l := launcher.New()

	// Use a pre-installed browser if specified (Docker/containerized
	// environments).
	bin := r.bin
	if bin == "" {
		bin = os.Getenv("ROD_BROWSER_BIN")
	}
	if bin != "" {
		l = l.Bin(bin)
	}

	// NoSandbox required for CI and containerized environments.
	if !r.sandbox || os.Getenv("CI") == "true" || bin != "" {
		l = l.NoSandbox(true)
	}

	u, err := l.Launch()
	if err != nil {
		r.state = stateUninitialized
		return fmt.Errorf("%w: %v", ErrEngineLaunch, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		r.state = stateUninitialized
		return fmt.Errorf("%w: %v", ErrEngineLaunch, err)
	}

	r.browser = browser
	r.launch = l
	r.session++
	r.state = stateReady
	return nil
}

// discard tears down the current session after a failure so it cannot
// serve another render. Callers hold r.mu.
func (r *rodCapturer) discard() {
	if r.browser != nil {
		_ = r.browser.Close()
		r.browser = nil
	}
	if r.launch != nil {
		r.launch.Kill()
		r.launch = nil
	}
	if r.state != stateClosed {
		r.state = stateUninitialized
	}
}

// Capture loads the document into a fresh page and screenshots the
// fixed viewport as JPEG. Renders on one capturer are serialized; the
// pool provides cross-request parallelism.
func (r *rodCapturer) Capture(ctx context.Context, document string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := r.ensureBrowser(); err != nil {
		return nil, err
	}

	r.state = stateRendering

	buf, err := r.capturePage(ctx, document)
	if err != nil {
		// A faulted or timed-out session must not back another render.
		r.discard()
		return nil, err
	}

	r.state = stateReady
	return buf, nil
}

// capturePage does the per-render page work. Callers hold r.mu.
func (r *rodCapturer) capturePage(ctx context.Context, document string) ([]byte, error) {
	page, err := r.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	defer page.Close()

	// Bind the page to the caller's context so cancellation interrupts
	// the CDP calls below instead of waiting out the render timeout.
	page = page.Context(ctx)

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             CardWidth,
		Height:            CardHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("%w: setting viewport: %v", ErrPageCreate, err)
	}

	if err := page.SetDocumentContent(document); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	// Bound the wait by the configured timeout or the context deadline,
	// whichever is tighter.
	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
		if timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}

	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf, err := page.Timeout(timeout).Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: intPtr(r.quality),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScreenshot, err)
	}
	return buf, nil
}

// Close releases the browser session and marks the capturer unusable.
func (r *rodCapturer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == stateClosed {
		return nil
	}

	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	if r.launch != nil {
		r.launch.Kill()
		r.launch = nil
	}
	r.state = stateClosed
	return err
}

// intPtr returns a pointer to an int value.
func intPtr(v int) *int {
	return &v
}
