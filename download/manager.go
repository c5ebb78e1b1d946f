// Package download fetches resolved image URLs into per-place directories
// with bounded run-global concurrency, bounded retries, and content-type
// validation.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-maps-images/config"
	"github.com/aluiziolira/go-maps-images/models"
	"github.com/aluiziolira/go-maps-images/resolver"
)

const assetCacheSize = 4096

var errSealed = errors.New("download: place job sealed")

// Manager downloads images for every place in a run. One async colly
// collector is shared across the run, so the concurrency cap and the
// politeness delay are global, not per place. The output directory tree is
// exclusively owned by the manager; directory creation is serialized.
type Manager struct {
	cfg       *config.Config
	collector *colly.Collector
	cache     *lru.Cache[string, string]
	Metrics   *Metrics

	dirMu   sync.Mutex
	dirUsed map[string]struct{}
}

// placeJob tracks one DownloadAll call. Slot numbers are assigned only on
// a successful write, so failures never consume a file-number slot.
type placeJob struct {
	dir string

	mu       sync.Mutex
	nextSlot int
	sealed   bool
	recorded []bool
	results  []models.DownloadResult

	wg sync.WaitGroup
}

// fetchJob is the per-URL state threaded through colly's request context.
// Each fetch attempt owns the job exclusively until its handler finishes,
// so no locking is needed on the attempt counter.
type fetchJob struct {
	place    *placeJob
	index    int
	url      string
	key      string
	attempts int
}

// NewManager builds a download manager configured from cfg.
func NewManager(cfg *config.Config) (*Manager, error) {
	collector := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.DownloadTimeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DownloadTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Concurrency,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	cache, err := lru.New[string, string](assetCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create asset cache: %w", err)
	}

	m := &Manager{
		cfg:       cfg,
		collector: collector,
		cache:     cache,
		Metrics:   NewMetrics(),
		dirUsed:   make(map[string]struct{}),
	}
	collector.OnResponse(m.handleResponse)
	collector.OnError(m.handleError)
	return m, nil
}

// WithTransport swaps the HTTP transport; used by tests to inject mocks.
func (m *Manager) WithTransport(rt http.RoundTripper) {
	m.collector.WithTransport(rt)
}

// DownloadAll fetches every URL for one place into a sanitized
// subdirectory of outDir. The returned slice has exactly one entry per
// URL, in URL order regardless of completion order. DownloadAll blocks
// until every URL reached a terminal state or ctx is canceled.
func (m *Manager) DownloadAll(ctx context.Context, placeName string, urls []resolver.Resolved, outDir string) []models.DownloadResult {
	results := make([]models.DownloadResult, len(urls))
	for i, u := range urls {
		results[i] = models.DownloadResult{URL: u.URL, Status: models.StatusFailed, Attempts: 1}
	}
	if len(urls) == 0 {
		return results
	}

	dir, err := m.placeDir(placeName, outDir)
	if err != nil {
		reason := err.Error()
		for i := range results {
			results[i].ErrorReason = &reason
		}
		return results
	}

	job := &placeJob{
		dir:      dir,
		recorded: make([]bool, len(urls)),
		results:  results,
	}

	for i, u := range urls {
		if m.cfg.SkipDuplicateAssets {
			if path, ok := m.cache.Get(u.Key); ok {
				existing := path
				job.results[i] = models.DownloadResult{
					URL:      u.URL,
					FilePath: &existing,
					Status:   models.StatusSuccess,
					Attempts: 1,
				}
				job.recorded[i] = true
				m.Metrics.IncCacheHit()
				slog.Debug("asset already fetched this run, reusing file",
					slog.String("url", u.URL),
					slog.String("file", existing),
				)
				continue
			}
		}
		job.wg.Add(1)
		m.enqueue(&fetchJob{place: job, index: i, url: u.URL, key: u.Key})
	}

	done := make(chan struct{})
	go func() {
		job.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		job.seal(ctx.Err().Error())
	}
	return job.snapshot()
}

// Wait blocks until all in-flight collector requests have finished.
func (m *Manager) Wait() {
	m.collector.Wait()
}

// placeDir reserves a unique sanitized directory for a place and creates
// it. Reservation and creation run under one lock so two same-named places
// cannot race for the same path.
func (m *Manager) placeDir(placeName, outDir string) (string, error) {
	m.dirMu.Lock()
	defer m.dirMu.Unlock()

	base := Sanitize(placeName)
	name := base
	for i := 2; ; i++ {
		if _, taken := m.dirUsed[name]; !taken {
			break
		}
		name = fmt.Sprintf("%s_%d", base, i)
	}
	m.dirUsed[name] = struct{}{}

	dir := filepath.Join(outDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %q: %w", dir, err)
	}
	return dir, nil
}

// enqueue issues one fetch attempt for the job.
func (m *Manager) enqueue(f *fetchJob) {
	f.attempts++

	reqCtx := colly.NewContext()
	reqCtx.Put("job", f)
	reqCtx.Put("start", time.Now())

	if err := m.collector.Request(http.MethodGet, f.url, nil, reqCtx, nil); err != nil {
		m.failOrRetry(f, classifyError(err, 0))
	}
}

func (m *Manager) handleResponse(r *colly.Response) {
	f, ok := r.Ctx.GetAny("job").(*fetchJob)
	if !ok {
		return
	}
	if start, ok := r.Ctx.GetAny("start").(time.Time); ok {
		m.Metrics.ObserveDuration(time.Since(start))
	}

	contentType := strings.ToLower(strings.TrimSpace(r.Headers.Get("Content-Type")))
	if !strings.HasPrefix(contentType, "image/") {
		m.failOrRetry(f, ErrInvalidContentType{ContentType: contentType})
		return
	}

	ext := extensionFor(contentType, f.url)
	path, err := f.place.writeImage(f.index, f.url, r.Body, ext, f.attempts)
	if errors.Is(err, errSealed) {
		f.place.wg.Done()
		return
	}
	if err != nil {
		// Disk errors are terminal; retrying the fetch will not help.
		reason := err.Error()
		m.Metrics.IncError("disk")
		m.Metrics.IncDownload("failed")
		f.place.recordFailure(f.index, f.url, reason, f.attempts)
		f.place.wg.Done()
		return
	}

	m.Metrics.IncDownload("success")
	m.Metrics.AddBytes(len(r.Body))
	m.cache.Add(f.key, path)
	slog.Debug("downloaded image",
		slog.String("url", f.url),
		slog.String("file", path),
		slog.Int("attempts", f.attempts),
	)
	f.place.wg.Done()
}

func (m *Manager) handleError(r *colly.Response, err error) {
	f, ok := r.Ctx.GetAny("job").(*fetchJob)
	if !ok {
		return
	}
	statusCode := 0
	if r != nil {
		statusCode = r.StatusCode
	}
	m.failOrRetry(f, classifyError(err, statusCode))
}

// failOrRetry schedules another attempt with exponential backoff, or
// records the terminal failure once the retry budget is spent.
func (m *Manager) failOrRetry(f *fetchJob, cause error) {
	m.Metrics.IncError(errorTypeLabel(cause))

	if f.attempts <= m.cfg.MaxRetries {
		delay := m.backoff(f.attempts)
		m.Metrics.IncRetries()
		slog.Debug("scheduling download retry",
			slog.String("url", f.url),
			slog.Int("attempt", f.attempts),
			slog.Duration("delay", delay),
			slog.Any("error", cause),
		)
		time.AfterFunc(delay, func() {
			m.enqueue(f)
		})
		return
	}

	slog.Warn("download failed",
		slog.String("url", f.url),
		slog.Int("attempts", f.attempts),
		slog.Any("error", cause),
	)
	m.Metrics.IncDownload("failed")
	f.place.recordFailure(f.index, f.url, cause.Error(), f.attempts)
	f.place.wg.Done()
}

func (m *Manager) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := m.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := m.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

// writeImage assigns the next slot, writes the body, and records success.
// The slot advances only when the write succeeds.
func (j *placeJob) writeImage(index int, url string, body []byte, ext string, attempts int) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.sealed || j.recorded[index] {
		return "", errSealed
	}

	slot := j.nextSlot + 1
	path := filepath.Join(j.dir, fmt.Sprintf("image_%03d%s", slot, ext))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	j.nextSlot = slot
	j.recorded[index] = true
	j.results[index] = models.DownloadResult{
		URL:      url,
		FilePath: &path,
		Status:   models.StatusSuccess,
		Attempts: attempts,
	}
	return path, nil
}

func (j *placeJob) recordFailure(index int, url, reason string, attempts int) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.sealed || j.recorded[index] {
		return
	}
	j.recorded[index] = true
	j.results[index] = models.DownloadResult{
		URL:         url,
		Status:      models.StatusFailed,
		ErrorReason: &reason,
		Attempts:    attempts,
	}
}

// seal marks every pending URL as failed; late handler completions become
// no-ops so the caller can safely read the results.
func (j *placeJob) seal(reason string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.sealed = true
	for i, done := range j.recorded {
		if done {
			continue
		}
		r := reason
		j.recorded[i] = true
		j.results[i] = models.DownloadResult{
			URL:         j.results[i].URL,
			Status:      models.StatusFailed,
			ErrorReason: &r,
			Attempts:    1,
		}
	}
}

func (j *placeJob) snapshot() []models.DownloadResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]models.DownloadResult, len(j.results))
	copy(out, j.results)
	return out
}

var knownExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

// extensionFor picks a file extension from the content type, falling back
// to the URL path and finally to .jpg.
func extensionFor(contentType, url string) string {
	switch {
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		return ".jpg"
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "gif"):
		return ".gif"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	}

	pathPart := url
	if i := strings.IndexByte(pathPart, '?'); i >= 0 {
		pathPart = pathPart[:i]
	}
	if ext := strings.ToLower(filepath.Ext(pathPart)); ext != "" {
		if _, ok := knownExtensions[ext]; ok {
			if ext == ".jpeg" {
				return ".jpg"
			}
			return ext
		}
	}
	return ".jpg"
}
