package scraper

import (
	"errors"
	"fmt"

	"github.com/aluiziolira/go-maps-images/probe"
)

// ErrTimeout indicates a document wait exceeded its bound even after the
// local retry.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrMissingTitle indicates the place detail surface rendered without a
// title. The place cannot be recorded meaningfully.
type ErrMissingTitle struct {
	URL string
}

func (e ErrMissingTitle) Error() string {
	return fmt.Sprintf("place at %s has no title", e.URL)
}

// ErrExtraction wraps a failure while parsing the detail panel snapshot.
type ErrExtraction struct {
	Err error
}

func (e ErrExtraction) Error() string {
	return fmt.Errorf("extraction: %w", e.Err).Error()
}

func (e ErrExtraction) Unwrap() error {
	return e.Err
}

// ErrStalled indicates the results feed stopped growing before the
// requested number of places was reached. The handles gathered so far are
// still usable; callers treat this as a partial-results warning.
type ErrStalled struct {
	Found int
}

func (e ErrStalled) Error() string {
	return fmt.Sprintf("results feed stalled after %d places", e.Found)
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) || errors.Is(err, probe.ErrWaitTimeout) {
		return "timeout"
	}
	var missing ErrMissingTitle
	if errors.As(err, &missing) {
		return "missing_title"
	}
	var stalled ErrStalled
	if errors.As(err, &stalled) {
		return "stalled"
	}
	var extraction ErrExtraction
	if errors.As(err, &extraction) {
		return "extraction"
	}
	return "other"
}
