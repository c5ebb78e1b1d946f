package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

// Options configures the headless browser behind the Chrome probe.
type Options struct {
	Headless  bool
	UserAgent string
}

// Chrome implements Probe on a single chromedp browser tab. The tab is the
// exclusively owned document of the run; Chrome is not safe for concurrent
// use and the pipeline never shares it between goroutines.
type Chrome struct {
	ctx     context.Context
	cancels []context.CancelFunc
}

var _ Probe = (*Chrome)(nil)

// NewChrome launches a headless browser and opens the tab used for the
// whole run. Close must be called to release the browser.
func NewChrome(parent context.Context, opts Options) (*Chrome, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(opts.UserAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// Force the browser process to start now so failures surface here
	// instead of on the first navigation.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	slog.Debug("browser launched", slog.Bool("headless", opts.Headless))
	return &Chrome{
		ctx:     tabCtx,
		cancels: []context.CancelFunc{cancelTab, cancelAlloc},
	}, nil
}

// Close shuts the tab and the browser process down.
func (c *Chrome) Close() {
	for _, cancel := range c.cancels {
		cancel()
	}
}

func (c *Chrome) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx := c.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}
	err := chromedp.Run(runCtx, actions...)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return ErrWaitTimeout
	}
	return err
}

// Navigate loads a URL and waits for the document to load.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, 60*time.Second, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// WaitVisible suspends until the selector matches a visible element.
func (c *Chrome) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	err := c.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if err != nil {
		if errors.Is(err, ErrWaitTimeout) {
			return fmt.Errorf("%w: selector %q", ErrWaitTimeout, selector)
		}
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

// Text returns the text content of the first match.
func (c *Chrome) Text(ctx context.Context, selector string) (string, error) {
	var text string
	err := c.run(ctx, 5*time.Second, chromedp.Text(selector, &text, chromedp.ByQuery))
	if err != nil {
		return "", fmt.Errorf("text of %q: %w", selector, err)
	}
	return text, nil
}

// Attribute returns an attribute of the first match.
func (c *Chrome) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	var value string
	var ok bool
	err := c.run(ctx, 5*time.Second, chromedp.AttributeValue(selector, name, &value, &ok, chromedp.ByQuery))
	if err != nil {
		return "", false, fmt.Errorf("attribute %s of %q: %w", name, selector, err)
	}
	return value, ok, nil
}

// OuterHTML snapshots the subtree of the first match.
func (c *Chrome) OuterHTML(ctx context.Context, selector string) (string, error) {
	var html string
	err := c.run(ctx, 10*time.Second, chromedp.OuterHTML(selector, &html, chromedp.ByQuery))
	if err != nil {
		return "", fmt.Errorf("outer html of %q: %w", selector, err)
	}
	return html, nil
}

// Click clicks the first match.
func (c *Chrome) Click(ctx context.Context, selector string, timeout time.Duration) error {
	err := c.run(ctx, timeout, chromedp.Click(selector, chromedp.ByQuery))
	if err != nil {
		if errors.Is(err, ErrWaitTimeout) {
			return fmt.Errorf("%w: click %q", ErrWaitTimeout, selector)
		}
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

// Evaluate runs a script in the document.
func (c *Chrome) Evaluate(ctx context.Context, script string, out any) error {
	if err := c.run(ctx, 10*time.Second, chromedp.Evaluate(script, out)); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

// Location returns the current document URL.
func (c *Chrome) Location(ctx context.Context) (string, error) {
	var loc string
	if err := c.run(ctx, 5*time.Second, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("location: %w", err)
	}
	return loc, nil
}

// Screenshot captures the viewport for debug artifacts.
func (c *Chrome) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := c.run(ctx, 10*time.Second, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}
