package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aluiziolira/go-maps-images/probe"
)

// fakeProbe implements probe.Probe with pluggable behavior per method.
// Unset methods succeed with zero values.
type fakeProbe struct {
	navigateFn    func(url string) error
	waitVisibleFn func(selector string) error
	textFn        func(selector string) (string, error)
	attributeFn   func(selector, name string) (string, bool, error)
	outerHTMLFn   func(selector string) (string, error)
	clickFn       func(selector string) error
	evaluateFn    func(script string, out any) error
	locationFn    func() (string, error)
	screenshotFn  func() ([]byte, error)
}

var _ probe.Probe = (*fakeProbe)(nil)

func (f *fakeProbe) Navigate(_ context.Context, url string) error {
	if f.navigateFn == nil {
		return nil
	}
	return f.navigateFn(url)
}

func (f *fakeProbe) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	if f.waitVisibleFn == nil {
		return nil
	}
	return f.waitVisibleFn(selector)
}

func (f *fakeProbe) Text(_ context.Context, selector string) (string, error) {
	if f.textFn == nil {
		return "", nil
	}
	return f.textFn(selector)
}

func (f *fakeProbe) Attribute(_ context.Context, selector, name string) (string, bool, error) {
	if f.attributeFn == nil {
		return "", false, nil
	}
	return f.attributeFn(selector, name)
}

func (f *fakeProbe) OuterHTML(_ context.Context, selector string) (string, error) {
	if f.outerHTMLFn == nil {
		return "", nil
	}
	return f.outerHTMLFn(selector)
}

func (f *fakeProbe) Click(_ context.Context, selector string, _ time.Duration) error {
	if f.clickFn == nil {
		return nil
	}
	return f.clickFn(selector)
}

func (f *fakeProbe) Evaluate(_ context.Context, script string, out any) error {
	if f.evaluateFn == nil {
		return nil
	}
	return f.evaluateFn(script, out)
}

func (f *fakeProbe) Location(_ context.Context) (string, error) {
	if f.locationFn == nil {
		return "", nil
	}
	return f.locationFn()
}

func (f *fakeProbe) Screenshot(_ context.Context) ([]byte, error) {
	if f.screenshotFn == nil {
		return nil, errors.New("no screenshot")
	}
	return f.screenshotFn()
}

// fakeFeed serves scripted feed batches; each scroll advances one batch.
type fakeFeed struct {
	batches   [][]feedEntry
	endOnLast bool
	idx       int
}

func (f *fakeFeed) state() feedState {
	i := f.idx
	if i >= len(f.batches) {
		i = len(f.batches) - 1
	}
	return feedState{
		Entries: f.batches[i],
		End:     f.endOnLast && i == len(f.batches)-1,
	}
}

func (f *fakeFeed) scroll() {
	if f.idx < len(f.batches)-1 {
		f.idx++
	}
}

// feedEvaluate wires a fakeFeed into the probe's Evaluate hook.
func feedEvaluate(feed *fakeFeed) func(script string, out any) error {
	return func(script string, out any) error {
		switch script {
		case probe.ConsentScript:
			return nil
		case probe.FeedStateScript:
			raw, err := json.Marshal(feed.state())
			if err != nil {
				return err
			}
			if p, ok := out.(*string); ok {
				*p = string(raw)
			}
			return nil
		case probe.ScrollFeedScript:
			feed.scroll()
			return nil
		}
		return nil
	}
}
