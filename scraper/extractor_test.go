package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aluiziolira/go-maps-images/config"
	"github.com/aluiziolira/go-maps-images/models"
	"github.com/aluiziolira/go-maps-images/probe"
)

const detailPanelHTML = `<div role="main">
  <button data-item-id="address" aria-label="Address: 1512 Shattuck Ave"></button>
  <button jsaction="pane.rating.category">Bakery</button>
  <button data-item-id="phone:tel:+15105496000" aria-label="Phone: +1 510-549-6000"></button>
  <a data-item-id="authority" href="https://cheeseboardcollective.coop"></a>
  <button jsaction="pane.heroHeaderImage"><img src="https://lh3.googleusercontent.com/p/cover=w408-h306-k-no"></button>
  <a data-photo-index="0" href="#"><img src="https://lh5.googleusercontent.com/p/g1=w203-h152-k-no"></a>
  <a data-photo-index="1" href="#"><img src="https://lh5.googleusercontent.com/p/icon=s48"></a>
  <a href="https://lh3.googleusercontent.com/p/linked=s1024">more photos</a>
  <a href="https://example.com/menu">menu</a>
</div>`

func extractTestConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.WaitTimeout = time.Second
	cfg.ScrollSettle = 0
	cfg.MaxScanDepth = 0
	return cfg
}

func newExtractor(p *fakeProbe, cfg *config.Config) *Extractor {
	return NewExtractor(p, probe.DefaultSelectors(), cfg, nil, nil)
}

func TestExtractReadsMetadataAndImages(t *testing.T) {
	p := &fakeProbe{
		textFn: func(string) (string, error) {
			return "Cheese Board Collective", nil
		},
		outerHTMLFn: func(string) (string, error) {
			return detailPanelHTML, nil
		},
	}

	rec, refs, err := newExtractor(p, extractTestConfig()).Extract(context.Background(), Handle{
		Title: "Cheese Board Collective",
		URL:   "https://www.google.com/maps/place/cheese-board",
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if rec.Title != "Cheese Board Collective" {
		t.Fatalf("title=%q", rec.Title)
	}
	if rec.Address == nil || *rec.Address != "1512 Shattuck Ave" {
		t.Fatalf("address=%v", rec.Address)
	}
	if rec.RawAttributes["category"] != "Bakery" {
		t.Fatalf("category=%q", rec.RawAttributes["category"])
	}
	if rec.RawAttributes["phone"] != "+1 510-549-6000" {
		t.Fatalf("phone=%q", rec.RawAttributes["phone"])
	}
	if rec.RawAttributes["website"] != "https://cheeseboardcollective.coop" {
		t.Fatalf("website=%q", rec.RawAttributes["website"])
	}

	// Cover, one gallery tile (the icon-sized one is filtered), one linked
	// photo page. The non-image anchor is ignored.
	if len(refs) != 3 {
		t.Fatalf("refs=%d, want 3: %+v", len(refs), refs)
	}
	wantProv := []models.Provenance{models.ProvenanceCover, models.ProvenanceGallery, models.ProvenanceLinked}
	for i, prov := range wantProv {
		if refs[i].Provenance != prov {
			t.Fatalf("ref %d provenance=%q, want %q", i, refs[i].Provenance, prov)
		}
	}
}

func TestExtractMissingFieldsAreNotErrors(t *testing.T) {
	p := &fakeProbe{
		textFn: func(string) (string, error) {
			return "Bare Place", nil
		},
		outerHTMLFn: func(string) (string, error) {
			return `<div role="main"><h1>Bare Place</h1></div>`, nil
		},
	}

	rec, refs, err := newExtractor(p, extractTestConfig()).Extract(context.Background(), Handle{URL: "https://www.google.com/maps/place/bare"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if rec.Address != nil {
		t.Fatalf("address=%v, want nil", rec.Address)
	}
	if len(rec.RawAttributes) != 0 {
		t.Fatalf("attributes=%v, want none", rec.RawAttributes)
	}
	if len(refs) != 0 {
		t.Fatalf("refs=%d, want 0", len(refs))
	}
}

func TestExtractMissingTitle(t *testing.T) {
	p := &fakeProbe{
		textFn: func(string) (string, error) {
			return "   ", nil
		},
	}

	_, _, err := newExtractor(p, extractTestConfig()).Extract(context.Background(), Handle{URL: "https://www.google.com/maps/place/x"})
	var missing ErrMissingTitle
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want ErrMissingTitle", err)
	}
}

func TestExtractRetriesOnceAfterWaitTimeout(t *testing.T) {
	waits := 0
	navigations := 0
	p := &fakeProbe{
		navigateFn: func(string) error {
			navigations++
			return nil
		},
		waitVisibleFn: func(string) error {
			waits++
			if waits == 1 {
				return probe.ErrWaitTimeout
			}
			return nil
		},
		textFn: func(string) (string, error) {
			return "Slow Place", nil
		},
		outerHTMLFn: func(string) (string, error) {
			return `<div role="main"></div>`, nil
		},
	}

	rec, _, err := newExtractor(p, extractTestConfig()).Extract(context.Background(), Handle{URL: "https://www.google.com/maps/place/slow"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if rec.Title != "Slow Place" {
		t.Fatalf("title=%q", rec.Title)
	}
	if navigations != 2 {
		t.Fatalf("navigations=%d, want 2", navigations)
	}
}

func TestExtractTimeoutAfterRetry(t *testing.T) {
	navigations := 0
	p := &fakeProbe{
		navigateFn: func(string) error {
			navigations++
			return nil
		},
		waitVisibleFn: func(string) error {
			return probe.ErrWaitTimeout
		},
	}

	_, _, err := newExtractor(p, extractTestConfig()).Extract(context.Background(), Handle{URL: "https://www.google.com/maps/place/x"})
	var timeout ErrTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if navigations != 2 {
		t.Fatalf("navigations=%d, want exactly one retry", navigations)
	}
}

func TestExtractDeepensGallery(t *testing.T) {
	snapshots := 0
	p := &fakeProbe{
		textFn: func(string) (string, error) {
			return "Gallery Place", nil
		},
		outerHTMLFn: func(string) (string, error) {
			snapshots++
			if snapshots == 1 {
				return `<div role="main"></div>`, nil
			}
			return `<div role="main"><a data-photo-index="0"><img src="https://lh3.googleusercontent.com/p/deep=w400-h300"></a></div>`, nil
		},
	}

	cfg := extractTestConfig()
	cfg.MaxScanDepth = 1
	_, refs, err := newExtractor(p, cfg).Extract(context.Background(), Handle{URL: "https://www.google.com/maps/place/gallery"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(refs) != 1 || refs[0].Provenance != models.ProvenanceGallery {
		t.Fatalf("refs=%+v, want one gallery ref from the deepened scan", refs)
	}
}

func TestImageFilters(t *testing.T) {
	tests := []struct {
		name string
		url  string
		keep bool
	}{
		{name: "lh3 host", url: "https://lh3.googleusercontent.com/p/a=s400", keep: true},
		{name: "ggpht host", url: "https://x.ggpht.com/photo", keep: true},
		{name: "protocol relative", url: "//lh4.googleusercontent.com/p/a", keep: true},
		{name: "foreign host", url: "https://example.com/a.jpg", keep: false},
		{name: "tiny s48", url: "https://lh3.googleusercontent.com/p/a=s48-c", keep: false},
		{name: "tiny boundary s16", url: "https://lh3.googleusercontent.com/p/a=s16", keep: false},
		{name: "large s1024", url: "https://lh3.googleusercontent.com/p/a=s1024", keep: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := imageHostRegex.MatchString(tt.url) && !tinyImageRegex.MatchString(tt.url)
			if got != tt.keep {
				t.Fatalf("keep(%q) = %v, want %v", tt.url, got, tt.keep)
			}
		})
	}
}
