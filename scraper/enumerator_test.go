package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aluiziolira/go-maps-images/config"
	"github.com/aluiziolira/go-maps-images/probe"
)

func enumTestConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.WaitTimeout = time.Second
	cfg.ScrollSettle = 0
	cfg.StallLimit = 3
	return cfg
}

func newEnumerator(p *fakeProbe, cfg *config.Config) *Enumerator {
	return NewEnumerator(p, probe.DefaultSelectors(), cfg, nil)
}

func entry(n string) feedEntry {
	return feedEntry{Title: n, URL: "https://www.google.com/maps/place/" + n}
}

func TestEnumerateRespectsLimit(t *testing.T) {
	feed := &fakeFeed{
		batches: [][]feedEntry{
			{entry("a"), entry("b"), entry("c"), entry("d"), entry("e")},
		},
		endOnLast: true,
	}
	p := &fakeProbe{evaluateFn: feedEvaluate(feed)}

	handles, err := newEnumerator(p, enumTestConfig()).Enumerate(context.Background(), "restaurants in Berkeley", 3)
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if len(handles) != 3 {
		t.Fatalf("handles=%d, want 3", len(handles))
	}
	for i, h := range handles {
		if h.Position != i {
			t.Fatalf("handle %d has position %d", i, h.Position)
		}
	}
}

func TestEnumerateDeduplicatesAcrossScrolls(t *testing.T) {
	feed := &fakeFeed{
		batches: [][]feedEntry{
			{entry("a"), entry("b")},
			{entry("a"), entry("b"), entry("c")},
			{entry("b"), entry("c"), entry("d")},
		},
		endOnLast: true,
	}
	p := &fakeProbe{evaluateFn: feedEvaluate(feed)}

	handles, err := newEnumerator(p, enumTestConfig()).Enumerate(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	want := []string{"a", "b", "c", "d"}
	if len(handles) != len(want) {
		t.Fatalf("handles=%d, want %d", len(handles), len(want))
	}
	for i, title := range want {
		if handles[i].Title != title || handles[i].Position != i {
			t.Fatalf("handle %d = %+v, want title %q position %d", i, handles[i], title, i)
		}
	}
}

func TestEnumerateDistinctPositionsSameTitle(t *testing.T) {
	// Two franchises share a title but are distinct places.
	feed := &fakeFeed{
		batches: [][]feedEntry{
			{
				{Title: "Peets Coffee", URL: "https://www.google.com/maps/place/peets-1"},
				{Title: "Peets Coffee", URL: "https://www.google.com/maps/place/peets-2"},
			},
		},
		endOnLast: true,
	}
	p := &fakeProbe{evaluateFn: feedEvaluate(feed)}

	handles, err := newEnumerator(p, enumTestConfig()).Enumerate(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if len(handles) != 2 {
		t.Fatalf("handles=%d, want 2", len(handles))
	}
}

func TestEnumerateStallReturnsPartial(t *testing.T) {
	feed := &fakeFeed{
		batches: [][]feedEntry{{entry("a"), entry("b")}},
	}
	p := &fakeProbe{evaluateFn: feedEvaluate(feed)}

	handles, err := newEnumerator(p, enumTestConfig()).Enumerate(context.Background(), "q", 10)
	var stalled ErrStalled
	if !errors.As(err, &stalled) {
		t.Fatalf("err = %v, want ErrStalled", err)
	}
	if stalled.Found != 2 || len(handles) != 2 {
		t.Fatalf("found=%d handles=%d, want 2/2", stalled.Found, len(handles))
	}
}

func TestEnumerateStopsAtEndSentinel(t *testing.T) {
	feed := &fakeFeed{
		batches:   [][]feedEntry{{entry("a"), entry("b")}},
		endOnLast: true,
	}
	p := &fakeProbe{evaluateFn: feedEvaluate(feed)}

	handles, err := newEnumerator(p, enumTestConfig()).Enumerate(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if len(handles) != 2 {
		t.Fatalf("handles=%d, want 2", len(handles))
	}
}

func TestEnumerateDirectPlaceHit(t *testing.T) {
	p := &fakeProbe{
		locationFn: func() (string, error) {
			return "https://www.google.com/maps/place/Chez+Panisse", nil
		},
		textFn: func(string) (string, error) {
			return "Chez Panisse", nil
		},
	}

	handles, err := newEnumerator(p, enumTestConfig()).Enumerate(context.Background(), "chez panisse berkeley", 5)
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if len(handles) != 1 {
		t.Fatalf("handles=%d, want 1", len(handles))
	}
	if handles[0].Title != "Chez Panisse" {
		t.Fatalf("title=%q", handles[0].Title)
	}
}

func TestEnumerateFeedTimeout(t *testing.T) {
	p := &fakeProbe{
		waitVisibleFn: func(string) error {
			return probe.ErrWaitTimeout
		},
	}

	_, err := newEnumerator(p, enumTestConfig()).Enumerate(context.Background(), "q", 5)
	var timeout ErrTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestEnumerateRejectsBadInput(t *testing.T) {
	p := &fakeProbe{}
	e := newEnumerator(p, enumTestConfig())

	if _, err := e.Enumerate(context.Background(), "q", 0); err == nil {
		t.Fatalf("zero limit should fail")
	}
	if _, err := e.Enumerate(context.Background(), "  ", 3); err == nil {
		t.Fatalf("blank query should fail")
	}
}
