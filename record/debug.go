package record

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
)

// DebugSink writes diagnostic artifacts (screenshots, HTML snapshots) for
// a run. Artifacts share a per-run ID prefix and a monotonically
// increasing sequence so they sort in capture order. A nil sink is valid
// and drops everything, so callers never branch on debug mode.
type DebugSink struct {
	dir   string
	runID string
	seq   atomic.Int64
}

// NewDebugSink creates the debug directory and returns a sink for it.
func NewDebugSink(dir string) (*DebugSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create debug directory %q: %w", dir, err)
	}
	return &DebugSink{
		dir:   dir,
		runID: uuid.NewString()[:8],
	}, nil
}

// Screenshot writes a PNG artifact labelled with the capture context.
func (d *DebugSink) Screenshot(label string, png []byte) {
	d.write(label, ".png", png)
}

// HTML writes an HTML snapshot artifact.
func (d *DebugSink) HTML(label string, html string) {
	d.write(label, ".html", []byte(html))
}

func (d *DebugSink) write(label, ext string, data []byte) {
	if d == nil || len(data) == 0 {
		return
	}

	name := fmt.Sprintf("%s_%03d_%s%s", d.runID, d.seq.Add(1), Slug(label), ext)
	path := filepath.Join(d.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		slog.Warn("write debug artifact", slog.String("file", path), slog.Any("error", err))
		return
	}
	slog.Debug("wrote debug artifact", slog.String("file", path))
}

// Slug reduces a label to a short filesystem-safe fragment.
func Slug(label string) string {
	out := make([]rune, 0, len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ', r == '/', r == ':':
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "capture"
	}
	if len(out) > 40 {
		out = out[:40]
	}
	return string(out)
}
