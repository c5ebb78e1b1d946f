// Package models defines data structures for the scraper.
package models

import "time"

// Provenance tags where an image reference was discovered on the place
// detail surface.
type Provenance string

const (
	ProvenanceCover   Provenance = "cover"
	ProvenanceGallery Provenance = "gallery"
	ProvenanceLinked  Provenance = "linked"
)

// Priority returns the dedup priority of the provenance; lower wins.
func (p Provenance) Priority() int {
	switch p {
	case ProvenanceCover:
		return 0
	case ProvenanceGallery:
		return 1
	case ProvenanceLinked:
		return 2
	default:
		return 3
	}
}

// ImageRef is a raw image URL candidate discovered during extraction,
// before resolution and de-duplication.
type ImageRef struct {
	URL        string
	Provenance Provenance
}

// DownloadStatus reports the terminal outcome of one image download.
type DownloadStatus string

const (
	StatusSuccess DownloadStatus = "success"
	StatusFailed  DownloadStatus = "failed"
)

// DownloadResult records the outcome of fetching one resolved URL.
// FilePath is set iff the download succeeded; Attempts counts every try.
type DownloadResult struct {
	URL         string         `json:"url"`
	FilePath    *string        `json:"file_path"`
	Status      DownloadStatus `json:"status"`
	ErrorReason *string        `json:"error_reason"`
	Attempts    int            `json:"attempts"`
}

// PlaceRecord holds everything extracted and downloaded for one place.
// DownloadResults are appended once downloads finish; the record is
// immutable after it is handed to the recorder.
type PlaceRecord struct {
	Title           string            `json:"title"`
	Address         *string           `json:"address"`
	RawAttributes   map[string]string `json:"raw_attributes,omitempty"`
	ImageURLs       []string          `json:"image_urls"`
	DownloadResults []DownloadResult  `json:"download_results"`
	ExtractionError string            `json:"extraction_error,omitempty"`
}

// RunRecord is the final output document for one run.
type RunRecord struct {
	Query       string         `json:"query"`
	GeneratedAt time.Time      `json:"generated_at"`
	Places      []*PlaceRecord `json:"places"`
}

// RunSummary holds the user-visible outcome of a scraping run.
type RunSummary struct {
	Query            string
	StartTime        time.Time
	EndTime          time.Time
	PlacesFound      int
	PlacesExtracted  int
	PlacesFailed     int
	ImagesResolved   int
	ImagesDownloaded int
	ImagesFailed     int
	Partial          bool
	ErrorsByType     map[string]int
	RecordFile       string
}
