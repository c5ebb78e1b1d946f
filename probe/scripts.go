package probe

// Scripts executed via Evaluate. They return JSON strings so callers can
// unmarshal into typed structs instead of poking at DOM nodes one by one.

// ConsentScript clicks through the cookie consent dialog when present.
const ConsentScript = `(function () {
  const selectors = [
    'button[aria-label="Accept all"]',
    'button[aria-label="I agree"]',
    'button[aria-label="Alles akzeptieren"]',
    'button.VfPpkd-LgbsSe-OWXEXe-k8QpJ'
  ];
  for (const sel of selectors) {
    const btn = document.querySelector(sel);
    if (btn) {
      btn.click();
      return true;
    }
  }
  return false;
})();`

// FeedStateScript reads every place link currently rendered in the results
// feed plus the end-of-list sentinel state.
const FeedStateScript = `(function () {
  const feed = document.querySelector('div[role="feed"]');
  const links = feed ? Array.from(feed.querySelectorAll('a[href*="/maps/place/"]')) : [];
  const entries = links.map(a => ({
    title: (a.getAttribute('aria-label') || a.textContent || '').trim(),
    url: a.href || ''
  })).filter(e => e.url);
  const end = !!document.querySelector('span.HlvSq');
  return JSON.stringify({ entries: entries, end: end });
})();`

// ScrollFeedScript advances the results feed by one viewport to force the
// next batch of lazy-loaded entries to render.
const ScrollFeedScript = `(function () {
  const feed = document.querySelector('div[role="feed"]');
  if (feed) {
    feed.scrollBy(0, feed.offsetHeight);
  }
})();`

// ScrollGalleryScript advances the photo gallery grid by one viewport.
const ScrollGalleryScript = `(function () {
  const pane = document.querySelector('div[role="main"]');
  if (pane) {
    pane.scrollBy(0, pane.offsetHeight);
  }
})();`
