// Package scraper orchestrates the place pipeline: enumerate search
// results, extract each place, resolve its image URLs, and hand downloads
// to the download manager while the next place is being extracted.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-maps-images/config"
	"github.com/aluiziolira/go-maps-images/download"
	"github.com/aluiziolira/go-maps-images/models"
	"github.com/aluiziolira/go-maps-images/probe"
	"github.com/aluiziolira/go-maps-images/record"
	"github.com/aluiziolira/go-maps-images/resolver"
)

// Scraper wires the pipeline stages together for one run.
//
// The rendered document is a serial resource: enumeration and extraction
// run strictly sequentially on it. Downloads touch only the network and
// the filesystem, so each place's downloads run in a goroutine concurrent
// with the next place's extraction. An appender drains results in yield
// order so the run record order matches the on-screen order.
type Scraper struct {
	cfg        *config.Config
	enumerator *Enumerator
	extractor  *Extractor
	resolver   *resolver.Resolver
	downloads  *download.Manager
	recorder   *record.Recorder
	Metrics    *Metrics
}

// New builds a scraper from its collaborators. The probe must be
// exclusively owned by this scraper for the duration of the run.
func New(cfg *config.Config, p probe.Probe, downloads *download.Manager, recorder *record.Recorder, debug *record.DebugSink) *Scraper {
	metrics := NewMetrics()
	sel := probe.DefaultSelectors()
	return &Scraper{
		cfg:        cfg,
		enumerator: NewEnumerator(p, sel, cfg, debug),
		extractor:  NewExtractor(p, sel, cfg, debug, metrics),
		resolver:   resolver.New(),
		downloads:  downloads,
		recorder:   recorder,
		Metrics:    metrics,
	}
}

// placeWork carries one place from the extraction loop to the appender.
// results is nil when the place has nothing to download.
type placeWork struct {
	record  *models.PlaceRecord
	results chan []models.DownloadResult
}

// Run executes the full pipeline and always finalizes the run record,
// even when enumeration fails or the context is canceled mid-run.
func (s *Scraper) Run(ctx context.Context) (*models.RunSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	summary := &models.RunSummary{
		Query:        s.cfg.Query,
		StartTime:    time.Now(),
		ErrorsByType: make(map[string]int),
		RecordFile:   s.recorder.Path(),
	}

	handles, err := s.enumerator.Enumerate(ctx, s.cfg.Query, s.cfg.MaxPlaces)
	var stalled ErrStalled
	switch {
	case errors.As(err, &stalled):
		summary.Partial = true
		summary.ErrorsByType["stalled"]++
		s.Metrics.IncError("stalled")
		slog.Warn("continuing with partial results", slog.Int("found", stalled.Found))
	case err != nil:
		summary.ErrorsByType[errorTypeLabel(err)]++
		s.Metrics.IncError(errorTypeLabel(err))
		if finErr := s.recorder.Finalize(); finErr != nil {
			slog.Error("finalize run record", slog.Any("error", finErr))
		}
		summary.EndTime = time.Now()
		return summary, fmt.Errorf("enumerate places: %w", err)
	}

	summary.PlacesFound = len(handles)
	s.Metrics.AddHandles(len(handles))

	queue := make(chan *placeWork, len(handles))
	appenderDone := make(chan struct{})
	var downloadedOK, downloadedFailed int

	go func() {
		defer close(appenderDone)
		for w := range queue {
			if w.results != nil {
				results := <-w.results
				w.record.DownloadResults = results
				for _, r := range results {
					if r.Status == models.StatusSuccess {
						downloadedOK++
					} else {
						downloadedFailed++
					}
				}
			}
			if err := s.recorder.Append(w.record); err != nil {
				slog.Error("append place record",
					slog.String("title", w.record.Title),
					slog.Any("error", err),
				)
			}
		}
	}()

	for _, h := range handles {
		if ctx.Err() != nil {
			summary.Partial = true
			slog.Warn("run canceled", slog.Int("processed", summary.PlacesExtracted+summary.PlacesFailed))
			break
		}
		queue <- s.processPlace(ctx, h, summary)
	}
	close(queue)
	<-appenderDone

	summary.ImagesDownloaded = downloadedOK
	summary.ImagesFailed = downloadedFailed
	if downloadedFailed > 0 {
		summary.ErrorsByType["download"] += downloadedFailed
	}

	if err := s.recorder.Finalize(); err != nil {
		summary.EndTime = time.Now()
		return summary, fmt.Errorf("finalize run record: %w", err)
	}
	summary.EndTime = time.Now()

	slog.Info("run complete",
		slog.Int("places_found", summary.PlacesFound),
		slog.Int("places_extracted", summary.PlacesExtracted),
		slog.Int("places_failed", summary.PlacesFailed),
		slog.Int("images_downloaded", summary.ImagesDownloaded),
		slog.Int("images_failed", summary.ImagesFailed),
		slog.Bool("partial", summary.Partial),
	)
	return summary, nil
}

// processPlace extracts one place and dispatches its downloads. Extraction
// failure degrades to a record with an error marker; it never aborts the
// run.
func (s *Scraper) processPlace(ctx context.Context, h Handle, summary *models.RunSummary) *placeWork {
	rec, refs, err := s.extractor.Extract(ctx, h)
	if err != nil {
		label := errorTypeLabel(err)
		summary.PlacesFailed++
		summary.ErrorsByType[label]++
		s.Metrics.IncPlace("failed")
		s.Metrics.IncError(label)
		slog.Error("place extraction failed",
			slog.String("title", h.Title),
			slog.String("url", h.URL),
			slog.Any("error", err),
		)
		return &placeWork{record: &models.PlaceRecord{
			Title:           h.Title,
			ExtractionError: err.Error(),
		}}
	}

	summary.PlacesExtracted++
	s.Metrics.IncPlace("extracted")

	resolved := s.resolver.Resolve(refs)
	summary.ImagesResolved += len(resolved)
	s.Metrics.AddResolved(len(resolved))

	rec.ImageURLs = make([]string, 0, len(resolved))
	for _, r := range resolved {
		rec.ImageURLs = append(rec.ImageURLs, r.URL)
	}

	w := &placeWork{record: rec}
	if len(resolved) > 0 {
		ch := make(chan []models.DownloadResult, 1)
		w.results = ch
		go func(title string, urls []resolver.Resolved) {
			ch <- s.downloads.DownloadAll(ctx, title, urls, s.cfg.OutputDir)
		}(rec.Title, resolved)
	}
	return w
}
