package probe

// Selectors is the single configuration surface for the host service's
// document structure. Values target Google Maps as observed; when the host
// markup drifts, only this table needs updating.
type Selectors struct {
	// Search results panel.
	Feed      string // scrollable results list
	EndOfList string // "no more results" sentinel

	// Place detail surface.
	Title       string
	DetailPanel string
	Address     string
	Phone       string
	Website     string
	Category    string
	Rating      string
	Reviews     string

	// Photo surfaces.
	CoverButton string // hero image button, opens the gallery
	GalleryItem string // one tile in the photo gallery
}

// DefaultSelectors returns the selector table for Google Maps.
func DefaultSelectors() Selectors {
	return Selectors{
		Feed:        `div[role="feed"]`,
		EndOfList:   `span.HlvSq`,
		Title:       `h1`,
		DetailPanel: `div[role="main"]`,
		Address:     `button[data-item-id="address"]`,
		Phone:       `button[data-item-id^="phone:tel"]`,
		Website:     `a[data-item-id="authority"]`,
		Category:    `button[jsaction*="category"]`,
		Rating:      `div.F7nice span[aria-hidden="true"]`,
		Reviews:     `div.F7nice span[aria-label]`,
		CoverButton: `button[jsaction*="heroHeaderImage"]`,
		GalleryItem: `a[data-photo-index]`,
	}
}
