package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/go-maps-images/config"
	"github.com/aluiziolira/go-maps-images/probe"
	"github.com/aluiziolira/go-maps-images/record"
)

const searchBaseURL = "https://www.google.com/maps/search/"

// Handle identifies one place in the result list. Position is part of the
// identity: two places with the same title at different positions are
// distinct.
type Handle struct {
	Position int
	Title    string
	URL      string
}

// Enumerator walks the search results feed and yields place handles in
// on-screen rendering order.
type Enumerator struct {
	probe probe.Probe
	sel   probe.Selectors
	cfg   *config.Config
	debug *record.DebugSink
}

// NewEnumerator builds an enumerator over the given document probe.
func NewEnumerator(p probe.Probe, sel probe.Selectors, cfg *config.Config, debug *record.DebugSink) *Enumerator {
	return &Enumerator{probe: p, sel: sel, cfg: cfg, debug: debug}
}

// feedState mirrors the JSON produced by probe.FeedStateScript.
type feedState struct {
	Entries []feedEntry `json:"entries"`
	End     bool        `json:"end"`
}

type feedEntry struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// SearchURL builds the Maps search URL for a free-text query.
func SearchURL(query string) string {
	return searchBaseURL + url.PathEscape(query)
}

// Enumerate gathers up to limit place handles for query. It stops early at
// the end-of-list sentinel, and returns the handles gathered so far wrapped
// in ErrStalled when the feed stops growing for cfg.StallLimit consecutive
// scrolls.
func (e *Enumerator) Enumerate(ctx context.Context, query string, limit int) ([]Handle, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	target := SearchURL(query)
	slog.Info("enumerating places", slog.String("query", query), slog.Int("limit", limit))

	if err := e.probe.Navigate(ctx, target); err != nil {
		return nil, fmt.Errorf("navigate to search: %w", err)
	}
	if err := e.probe.Evaluate(ctx, probe.ConsentScript, nil); err != nil {
		slog.Debug("consent script failed", slog.Any("error", err))
	}

	// A sufficiently specific query skips the result list entirely and
	// lands on the place page.
	if loc, err := e.probe.Location(ctx); err == nil && strings.Contains(loc, "/maps/place/") {
		title, err := e.probe.Text(ctx, e.sel.Title)
		if err != nil {
			title = ""
		}
		slog.Info("query resolved directly to a place", slog.String("url", loc))
		return []Handle{{Position: 0, Title: strings.TrimSpace(title), URL: loc}}, nil
	}

	if err := e.probe.WaitVisible(ctx, e.sel.Feed, e.cfg.WaitTimeout); err != nil {
		if errors.Is(err, probe.ErrWaitTimeout) {
			e.capture(ctx, "results feed missing")
			return nil, ErrTimeout{Err: err}
		}
		return nil, fmt.Errorf("wait for results feed: %w", err)
	}

	var handles []Handle
	seen := make(map[string]struct{})
	stalls := 0

	for {
		state, err := e.readFeed(ctx)
		if err != nil {
			return handles, err
		}

		grew := false
		for _, entry := range state.Entries {
			title := strings.TrimSpace(entry.Title)
			key := title + "\x00" + entry.URL
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			grew = true
			handles = append(handles, Handle{Position: len(handles), Title: title, URL: entry.URL})
			if len(handles) >= limit {
				return handles, nil
			}
		}

		if state.End {
			slog.Info("reached end of results",
				slog.Int("found", len(handles)),
				slog.Int("limit", limit),
			)
			return handles, nil
		}

		if grew {
			stalls = 0
		} else {
			stalls++
			if stalls >= e.cfg.StallLimit {
				e.capture(ctx, "feed stalled")
				slog.Warn("results feed stalled",
					slog.Int("found", len(handles)),
					slog.Int("stalls", stalls),
				)
				return handles, ErrStalled{Found: len(handles)}
			}
		}

		if err := e.probe.Evaluate(ctx, probe.ScrollFeedScript, nil); err != nil {
			return handles, fmt.Errorf("scroll results feed: %w", err)
		}
		if err := settle(ctx, e.cfg.ScrollSettle); err != nil {
			return handles, err
		}
	}
}

func (e *Enumerator) readFeed(ctx context.Context) (*feedState, error) {
	var raw string
	if err := e.probe.Evaluate(ctx, probe.FeedStateScript, &raw); err != nil {
		return nil, fmt.Errorf("read results feed: %w", err)
	}
	var state feedState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("decode feed state: %w", err)
	}
	return &state, nil
}

func (e *Enumerator) capture(ctx context.Context, label string) {
	if e.debug == nil {
		return
	}
	if png, err := e.probe.Screenshot(ctx); err == nil {
		e.debug.Screenshot(label, png)
	}
}

// settle pauses between document interactions so lazy content can render.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
