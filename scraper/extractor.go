package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-maps-images/config"
	"github.com/aluiziolira/go-maps-images/models"
	"github.com/aluiziolira/go-maps-images/probe"
	"github.com/aluiziolira/go-maps-images/record"
)

var (
	// Photographic content is served from a small set of Google image
	// hosts; anything else (icons, sprites, map tiles) is ignored.
	imageHostRegex = regexp.MustCompile(`(?i)^(?:https?:)?//(?:lh[3-6]\.googleusercontent\.com|[^/]+\.ggpht\.com)/`)

	// Icon-sized variants (s16 through s69) are UI chrome, not photos.
	tinyImageRegex = regexp.MustCompile(`[=&?]s(?:1[6-9]|[2-6][0-9])(?:$|\W)`)
)

// Extractor reads one place detail surface into a PlaceRecord plus the raw
// image references discovered on it.
type Extractor struct {
	probe   probe.Probe
	sel     probe.Selectors
	cfg     *config.Config
	debug   *record.DebugSink
	metrics *Metrics
}

// NewExtractor builds an extractor over the given document probe.
func NewExtractor(p probe.Probe, sel probe.Selectors, cfg *config.Config, debug *record.DebugSink, metrics *Metrics) *Extractor {
	return &Extractor{probe: p, sel: sel, cfg: cfg, debug: debug, metrics: metrics}
}

// Extract navigates to the handle and reads its metadata and image
// references. A wait timeout retries the whole extraction once; any
// failure after that surfaces as a typed error and the caller decides how
// to degrade.
func (x *Extractor) Extract(ctx context.Context, h Handle) (*models.PlaceRecord, []models.ImageRef, error) {
	start := time.Now()
	rec, refs, err := x.extractOnce(ctx, h)
	if err != nil && errors.Is(err, probe.ErrWaitTimeout) && ctx.Err() == nil {
		slog.Warn("extraction timed out, retrying once",
			slog.String("title", h.Title),
			slog.String("url", h.URL),
		)
		x.metrics.IncRetries()
		rec, refs, err = x.extractOnce(ctx, h)
	}
	x.metrics.ObserveExtraction(time.Since(start))

	if err != nil {
		x.captureFailure(ctx, h)
		if errors.Is(err, probe.ErrWaitTimeout) {
			return nil, nil, ErrTimeout{Err: err}
		}
		return nil, nil, err
	}
	return rec, refs, nil
}

func (x *Extractor) extractOnce(ctx context.Context, h Handle) (*models.PlaceRecord, []models.ImageRef, error) {
	if err := x.probe.Navigate(ctx, h.URL); err != nil {
		return nil, nil, fmt.Errorf("navigate to place: %w", err)
	}
	if err := x.probe.WaitVisible(ctx, x.sel.Title, x.cfg.WaitTimeout); err != nil {
		return nil, nil, err
	}

	title, err := x.probe.Text(ctx, x.sel.Title)
	if err != nil {
		return nil, nil, fmt.Errorf("read place title: %w", err)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil, ErrMissingTitle{URL: h.URL}
	}

	html, err := x.probe.OuterHTML(ctx, x.sel.DetailPanel)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot detail panel: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, ErrExtraction{Err: err}
	}

	rec := &models.PlaceRecord{Title: title}
	if addr := labelledText(doc, x.sel.Address, "Address:"); addr != "" {
		rec.Address = &addr
	}
	rec.RawAttributes = x.readAttributes(doc)

	refs := x.discoverImages(doc, nil)
	refs = x.deepenGallery(ctx, refs)

	slog.Debug("extracted place",
		slog.String("title", title),
		slog.Int("image_refs", len(refs)),
	)
	return rec, refs, nil
}

// readAttributes collects the optional detail fields. Absence of any field
// is normal and leaves no entry.
func (x *Extractor) readAttributes(doc *goquery.Document) map[string]string {
	attrs := make(map[string]string)
	put := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			attrs[key] = value
		}
	}

	put("category", labelledText(doc, x.sel.Category, ""))
	put("rating", labelledText(doc, x.sel.Rating, ""))
	put("reviews", labelledText(doc, x.sel.Reviews, ""))
	put("phone", labelledText(doc, x.sel.Phone, "Phone:"))
	if href, ok := doc.Find(x.sel.Website).First().Attr("href"); ok {
		put("website", href)
	}

	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

// discoverImages scans the snapshot for image references on the three
// photo surfaces, in document order per surface.
func (x *Extractor) discoverImages(doc *goquery.Document, refs []models.ImageRef) []models.ImageRef {
	add := func(raw string, prov models.Provenance) {
		raw = strings.TrimSpace(raw)
		if raw == "" || !imageHostRegex.MatchString(raw) || tinyImageRegex.MatchString(raw) {
			return
		}
		refs = append(refs, models.ImageRef{URL: raw, Provenance: prov})
	}

	doc.Find(x.sel.CoverButton).Find("img").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			add(src, models.ProvenanceCover)
		}
	})
	doc.Find(x.sel.GalleryItem).Find("img").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			add(src, models.ProvenanceGallery)
		}
	})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			add(href, models.ProvenanceLinked)
		}
	})
	return refs
}

// deepenGallery opens the photo gallery behind the cover button and
// re-scans it up to MaxScanDepth rounds, scrolling between rounds to force
// more tiles to render. Every failure here is soft: the references found
// so far are returned as is.
func (x *Extractor) deepenGallery(ctx context.Context, refs []models.ImageRef) []models.ImageRef {
	if x.cfg.MaxScanDepth <= 0 {
		return refs
	}
	if err := x.probe.Click(ctx, x.sel.CoverButton, x.cfg.WaitTimeout); err != nil {
		slog.Debug("gallery not reachable", slog.Any("error", err))
		return refs
	}

	for round := 0; round < x.cfg.MaxScanDepth; round++ {
		if err := settle(ctx, x.cfg.ScrollSettle); err != nil {
			return refs
		}
		html, err := x.probe.OuterHTML(ctx, x.sel.DetailPanel)
		if err != nil {
			return refs
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return refs
		}
		refs = x.scanGallery(doc, refs)

		if err := x.probe.Evaluate(ctx, probe.ScrollGalleryScript, nil); err != nil {
			return refs
		}
	}
	return refs
}

func (x *Extractor) scanGallery(doc *goquery.Document, refs []models.ImageRef) []models.ImageRef {
	doc.Find(x.sel.GalleryItem).Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok {
			return
		}
		src = strings.TrimSpace(src)
		if src == "" || !imageHostRegex.MatchString(src) || tinyImageRegex.MatchString(src) {
			return
		}
		refs = append(refs, models.ImageRef{URL: src, Provenance: models.ProvenanceGallery})
	})
	return refs
}

func (x *Extractor) captureFailure(ctx context.Context, h Handle) {
	if x.debug == nil {
		return
	}
	label := "extract " + h.Title
	if png, err := x.probe.Screenshot(ctx); err == nil {
		x.debug.Screenshot(label, png)
	}
	if html, err := x.probe.OuterHTML(ctx, x.sel.DetailPanel); err == nil {
		x.debug.HTML(label, html)
	}
}

// labelledText reads an element's aria-label, stripping a known prefix,
// and falls back to its text content.
func labelledText(doc *goquery.Document, selector, prefix string) string {
	node := doc.Find(selector).First()
	if node.Length() == 0 {
		return ""
	}
	if label, ok := node.Attr("aria-label"); ok {
		label = strings.TrimSpace(label)
		if prefix != "" {
			label = strings.TrimSpace(strings.TrimPrefix(label, prefix))
		}
		if label != "" {
			return label
		}
	}
	return strings.TrimSpace(node.Text())
}
