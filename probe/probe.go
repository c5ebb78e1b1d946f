// Package probe is a thin query layer over the rendered document.
//
// Higher layers drive the page exclusively through the Probe interface and a
// pluggable selector table, so selector drift against the host service is
// isolated here and the rest of the pipeline can be tested against a fake
// document.
package probe

import (
	"context"
	"errors"
	"time"
)

// ErrWaitTimeout reports that a wait operation exceeded its bound. The
// condition is scoped to the operation; callers decide whether to retry.
var ErrWaitTimeout = errors.New("probe: wait timeout")

// Probe exposes the document primitives the pipeline needs. Selectors are
// opaque strings; the probe performs no interpretation of page semantics.
// The underlying document is not safe for concurrent use: only one
// interaction task may run at a time.
type Probe interface {
	// Navigate loads a URL and returns once the document has loaded.
	Navigate(ctx context.Context, url string) error

	// WaitVisible suspends until the selector matches a visible element,
	// failing with ErrWaitTimeout once the timeout elapses.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// Text returns the trimmed text content of the first match.
	Text(ctx context.Context, selector string) (string, error)

	// Attribute returns an attribute of the first match; ok reports whether
	// the attribute exists.
	Attribute(ctx context.Context, selector, name string) (value string, ok bool, err error)

	// OuterHTML snapshots the subtree of the first match.
	OuterHTML(ctx context.Context, selector string) (string, error)

	// Click clicks the first match, waiting up to timeout for it to appear.
	Click(ctx context.Context, selector string, timeout time.Duration) error

	// Evaluate runs a script in the document and unmarshals its result
	// into out (which may be nil for fire-and-forget scripts).
	Evaluate(ctx context.Context, script string, out any) error

	// Location returns the current document URL.
	Location(ctx context.Context) (string, error)

	// Screenshot captures the viewport; used only for debug artifacts.
	Screenshot(ctx context.Context) ([]byte, error)
}
