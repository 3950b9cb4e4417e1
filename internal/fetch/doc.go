// Package fetch retrieves listing pages. A Colly-based HTTP fetcher handles
// the common case; a heuristic detector promotes JS-heavy pages to a
// chromedp headless render.
package fetch
