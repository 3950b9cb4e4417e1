package crawler

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxBlockChars caps a single extracted block; anything longer is truncated
// before budgeting even sees it.
const maxBlockChars = 4000

// ParsePage extracts content blocks and candidate links from raw HTML.
// Blocks cover the visible article text plus the places listing sites bury
// data: JSON-LD and script-embedded JSON, meta/OG tags, address markup,
// tables, definition lists, tab panels, accordions, modals, carousels, and
// hidden or ARIA-described text.
func ParsePage(pageURL string, body []byte) ([]string, []Link, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}

	var blocks []string
	add := func(text string) {
		text = collapseSpace(text)
		if len(text) < 20 {
			return
		}
		if len(text) > maxBlockChars {
			text = text[:maxBlockChars]
		}
		blocks = append(blocks, text)
	}

	// Structured metadata first: JSON-LD carries the cleanest data a
	// listing page has.
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		add("structured data: " + s.Text())
	})
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, ok := s.Attr("src"); ok {
			return
		}
		if typ, _ := s.Attr("type"); typ == "application/ld+json" {
			return
		}
		text := s.Text()
		if looksLikeDataScript(text) {
			add("embedded data: " + text)
		}
	})

	var metaParts []string
	doc.Find(`meta[property^="og:"], meta[name="description"], meta[name="keywords"], meta[name^="geo."]`).Each(func(_ int, s *goquery.Selection) {
		content, _ := s.Attr("content")
		if content == "" {
			return
		}
		key, _ := s.Attr("property")
		if key == "" {
			key, _ = s.Attr("name")
		}
		metaParts = append(metaParts, key+": "+content)
	})
	if len(metaParts) > 0 {
		add("page metadata: " + strings.Join(metaParts, " | "))
	}

	doc.Find(`address, [itemprop="address"], [class*="address"]`).Each(func(_ int, s *goquery.Selection) {
		add("address: " + s.Text())
	})

	// Tables and definition lists hold configuration grids and fee
	// schedules.
	doc.Find("table").Each(func(_ int, s *goquery.Selection) {
		var rows []string
		s.Find("tr").Each(func(_ int, row *goquery.Selection) {
			var cells []string
			row.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, collapseSpace(cell.Text()))
			})
			if len(cells) > 0 {
				rows = append(rows, strings.Join(cells, " | "))
			}
		})
		add(strings.Join(rows, "\n"))
	})
	doc.Find("dl").Each(func(_ int, s *goquery.Selection) {
		var pairs []string
		s.Find("dt").Each(func(_ int, dt *goquery.Selection) {
			dd := dt.NextFiltered("dd")
			pairs = append(pairs, collapseSpace(dt.Text())+": "+collapseSpace(dd.Text()))
		})
		add(strings.Join(pairs, "\n"))
	})
	doc.Find("ul, ol").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("nav, header, footer").Length() > 0 {
			return
		}
		var items []string
		s.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
			items = append(items, collapseSpace(li.Text()))
		})
		add(strings.Join(items, "; "))
	})

	// Interactive widgets: their panels are same-page content, not new
	// pages.
	widgetSelectors := `[role="tabpanel"], .tab-content, .tab-pane, [class*="accordion"], [class*="modal"], [class*="carousel"], details`
	doc.Find(widgetSelectors).Each(func(_ int, s *goquery.Selection) {
		add("widget content: " + s.Text())
	})

	// Hidden and ARIA-described content is frequently where full pricing
	// tables live before a script reveals them.
	doc.Find(`[hidden], [aria-hidden="true"], [style*="display:none"], [style*="display: none"]`).Each(func(_ int, s *goquery.Selection) {
		if s.Is("script, style, nav, header") {
			return
		}
		add("hidden content: " + s.Text())
	})

	// Heading-led sections cover the visible prose.
	doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		section := collapseSpace(s.Text())
		var following []string
		for node := s.Next(); node.Length() > 0 && !node.Is("h1, h2, h3"); node = node.Next() {
			if node.Is("p, div, span, section") {
				following = append(following, collapseSpace(node.Text()))
			}
		}
		if len(following) > 0 {
			add(section + ": " + strings.Join(following, " "))
		}
	})

	doc.Find("footer").Each(func(_ int, s *goquery.Selection) {
		add("footer: " + s.Text())
	})

	var links []Link
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		links = append(links, Link{URL: href, AnchorText: collapseSpace(s.Text())})
	})

	return blocks, links, nil
}

// looksLikeDataScript is a cheap filter for inline scripts that embed JSON
// payloads worth feeding to extraction.
func looksLikeDataScript(text string) bool {
	if len(text) < 50 || len(text) > 20000 {
		return false
	}
	if !strings.Contains(text, "{") {
		return false
	}
	lower := strings.ToLower(text)
	for _, marker := range []string{"price", "room", "tenancy", "availab", "config"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
