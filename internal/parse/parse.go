// Package parse implements the Listing Parser: a pure function that turns
// a fetched listings page into domain.Listing records. It never performs
// I/O and never mutates its input.
package parse

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/rentwatch/rentwatch-api/internal/core/domain"
)

var (
	numericSegment = regexp.MustCompile(`/(\d{4,})(?:[/?]|$)`)
	slugNonWord    = regexp.MustCompile(`[^a-z0-9]+`)
)

// Parser implements port.Parser. SiteOrigin rewrites relative links found
// in the document into absolute form; empty disables rewriting.
type Parser struct {
	SiteOrigin string
}

func New(siteOrigin string) *Parser { return &Parser{SiteOrigin: siteOrigin} }

func (p *Parser) Parse(body []byte) ([]domain.Listing, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var listings []domain.Listing
	walk(doc, func(n *html.Node) {
		if !hasClass(n, "listing-item") {
			return
		}
		l, ok := p.parseListing(n)
		if ok {
			listings = append(listings, l)
		}
	})
	return listings, nil
}

// parseListing returns false when the listing's title is empty, per the
// "skip the item silently" rule.
func (p *Parser) parseListing(item *html.Node) (domain.Listing, bool) {
	link := firstAttr(findByClass(item, "listing-link"), "href")
	title := strings.TrimSpace(textOf(findByClass(item, "listing-title")))
	if title == "" {
		return domain.Listing{}, false
	}
	link = p.absolutize(link)
	houseType := strings.TrimSpace(textOf(findByClass(item, "house-type")))
	rooms := strings.TrimSpace(textOf(findByClass(item, "rooms")))
	priceText := strings.TrimSpace(textOf(findByClass(item, "price")))

	if houseType == "" {
		houseType = domain.UnknownHouseType
	}
	if rooms == "" {
		rooms = domain.UnknownRooms
	}

	var tags []string
	for _, tagNode := range findAllByClass(item, "tag") {
		if t := strings.TrimSpace(textOf(tagNode)); t != "" {
			tags = append(tags, t)
		}
	}

	var images []string
	for _, img := range findAllByTag(item, "img") {
		if src := firstAttr(img, "src"); src != "" {
			images = append(images, src)
		}
	}

	type rawFacet struct {
		stationID      string
		stationName    string
		metroValueText string
	}
	var rawFacets []rawFacet
	for _, node := range findAllByClass(item, "metro-distance") {
		rawFacets = append(rawFacets, rawFacet{
			stationID:      firstAttr(node, "data-station-id"),
			stationName:    strings.TrimSpace(textOf(findByClass(node, "station-name"))),
			metroValueText: strings.TrimSpace(textOf(findByClass(node, "metro-value"))),
		})
	}

	var primaryStationName string
	if len(rawFacets) > 0 {
		primaryStationName = rawFacets[0].stationName
	}
	id := derivePropertyID(link, title, primaryStationName)

	var facets []domain.MetroDistance
	for _, rf := range rawFacets {
		var stationIDPtr *string
		if rf.stationID != "" {
			stationIDPtr = &rf.stationID
		}
		facets = append(facets, domain.MetroDistance{
			ListingID:      id,
			StationID:      stationIDPtr,
			StationName:    rf.stationName,
			MetroValueText: rf.metroValueText,
		})
	}

	return domain.Listing{
		ID:             id,
		Title:          title,
		Link:           link,
		HouseType:      houseType,
		Rooms:          rooms,
		TagsList:       tags,
		ImageURLs:      images,
		PriceText:      priceText,
		MetroDistances: facets,
	}, true
}

// absolutize rewrites a relative link against SiteOrigin. Already-absolute
// links and a blank SiteOrigin pass through unchanged.
func (p *Parser) absolutize(link string) string {
	if link == "" || p.SiteOrigin == "" {
		return link
	}
	u, err := url.Parse(link)
	if err != nil || u.IsAbs() {
		return link
	}
	base, err := url.Parse(p.SiteOrigin)
	if err != nil {
		return link
	}
	return base.ResolveReference(u).String()
}

// derivePropertyID prefers the numeric segment in the listing's own URL;
// falls back to a title+stationName composite slug when the listing
// carries a parsed metro-distance station name, then a bare title slug.
func derivePropertyID(link, title, stationName string) string {
	if m := numericSegment.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	if stationName != "" {
		return slugify(title) + "-" + slugify(stationName)
	}
	return slugify(title)
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugNonWord.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func findByClass(n *html.Node, class string) *html.Node {
	all := findAllByClass(n, class)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

func findAllByClass(n *html.Node, class string) []*html.Node {
	var out []*html.Node
	if n == nil {
		return out
	}
	walk(n, func(node *html.Node) {
		if node != n && hasClass(node, class) {
			out = append(out, node)
		}
	})
	return out
}

func findAllByTag(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	if n == nil {
		return out
	}
	walk(n, func(node *html.Node) {
		if node != n && node.Type == html.ElementNode && node.Data == tag {
			out = append(out, node)
		}
	})
	return out
}

func firstAttr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	walk(n, func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
	})
	return b.String()
}
