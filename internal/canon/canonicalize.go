// Package canon normalizes a rental search URL into its canonical query
// identity: a deterministic QueryId, a human description, a canonical
// re-emission of the URL, and the set of URLs that are semantically
// equivalent to it.
package canon

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rentwatch/rentwatch-api/internal/core/domain"
	"github.com/rentwatch/rentwatch-api/internal/core/port"
)

// stationNames is a small lookup used only to render a friendlier
// single-station description; unknown IDs fall back to the raw ID.
var stationNames = map[string]string{
	"4232": "Central",
	"4233": "Riverside",
}

// Config holds the site-specific facts the canonicalizer needs: what a
// valid listings URL looks like on the target site.
type Config struct {
	ListPath   string // e.g. "/list"
	CacheSize  int    // LRU size, default 1024 when zero
}

// Canonicalizer implements port.Canonicalizer, memoizing results in an LRU
// keyed on the raw URL string since the same search URL is resubmitted on
// every poll interval.
type Canonicalizer struct {
	cfg   Config
	cache *lru.Cache[string, *port.CanonicalResult]
}

func New(cfg Config) *Canonicalizer {
	if cfg.ListPath == "" {
		cfg.ListPath = "/list"
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 1024
	}
	cache, _ := lru.New[string, *port.CanonicalResult](size)
	return &Canonicalizer{cfg: cfg, cache: cache}
}

func (c *Canonicalizer) Canonicalize(rawURL string) (*port.CanonicalResult, error) {
	if cached, ok := c.cache.Get(rawURL); ok {
		return cached, nil
	}

	result, err := c.canonicalize(rawURL)
	if err != nil {
		return nil, err
	}

	c.cache.Add(rawURL, result)
	return result, nil
}

func (c *Canonicalizer) canonicalize(rawURL string) (*port.CanonicalResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, domain.ErrInvalidURL
	}
	if u.Path != c.cfg.ListPath {
		return nil, domain.ErrInvalidURL
	}

	q := u.Query()

	region := firstValue(q, "region")
	if region == "" {
		return nil, domain.ErrInvalidQuery
	}

	kind := firstValue(q, "kind")
	if kind == "" {
		kind = "0"
	}

	stations := splitStations(q["station"])
	metro := firstValue(q, "metro")
	priceMin, priceMax := splitPrice(firstValue(q, "rentprice"))
	sections := splitCSV(q["section"])
	rooms := splitCSV(q["multiRoom"])
	floor := firstValue(q, "other")

	queryID := buildQueryID(region, kind, stations, metro, priceMin, priceMax, sections, rooms, floor)
	description := buildDescription(region, stations, metro, priceMin, priceMax)
	canonicalURL := buildCanonicalURL(u, region, kind, stations, metro, priceMin, priceMax, sections, rooms, floor)
	variants := buildEquivalentVariants(u, region, kind, stations, metro, priceMin, priceMax, sections, rooms, floor)

	return &port.CanonicalResult{
		QueryID:            queryID,
		Description:        description,
		CanonicalURL:       canonicalURL,
		EquivalentVariants: variants,
		Region:             region,
		Kind:               kind,
		Stations:           stations,
		MetroLine:          metro,
		PriceMin:           priceMin,
		PriceMax:           priceMax,
		Sections:           sections,
		Rooms:              rooms,
		Floor:              floor,
	}, nil
}

func firstValue(q url.Values, key string) string {
	vals := q[key]
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}

// splitStations merges repeated-key and comma-separated station values,
// then sorts ascending (string) and dedupes per the canonicalization rule.
func splitStations(raw []string) []string {
	set := make(map[string]struct{})
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			set[part] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func splitCSV(raw []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}

func splitPrice(raw string) (min, max *int) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.SplitN(raw, ",", 2)
	if len(parts) > 0 {
		if v, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
			min = &v
		}
	}
	if len(parts) > 1 {
		if v, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
			max = &v
		}
	}
	return min, max
}

func priceToken(min, max *int) string {
	minStr, maxStr := "", ""
	if min != nil {
		minStr = strconv.Itoa(*min)
	}
	if max != nil {
		maxStr = strconv.Itoa(*max)
	}
	return fmt.Sprintf("price%s,%s", minStr, maxStr)
}

func buildQueryID(region, kind string, stations []string, metro string, priceMin, priceMax *int, sections, rooms []string, floor string) string {
	var parts []string
	parts = append(parts, "region"+region)
	if kind != "0" {
		parts = append(parts, "kind"+kind)
	}
	if len(stations) > 0 {
		parts = append(parts, "stations"+strings.Join(stations, "-"))
	}
	if metro != "" {
		parts = append(parts, "metro"+metro)
	}
	if priceMin != nil || priceMax != nil {
		parts = append(parts, priceToken(priceMin, priceMax))
	}
	if len(sections) > 0 {
		parts = append(parts, "section"+strings.Join(sections, ","))
	}
	if len(rooms) > 0 {
		parts = append(parts, "rooms"+strings.Join(rooms, ","))
	}
	if floor != "" {
		parts = append(parts, "floor"+floor)
	}
	return strings.Join(parts, "_")
}

func buildDescription(region string, stations []string, metro string, priceMin, priceMax *int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "region %s", region)
	switch len(stations) {
	case 0:
	case 1:
		name := stations[0]
		if n, ok := stationNames[stations[0]]; ok {
			name = n
		}
		fmt.Fprintf(&b, ", near %s", name)
	default:
		fmt.Fprintf(&b, ", near %d stations", len(stations))
	}
	if metro != "" {
		fmt.Fprintf(&b, ", metro line %s", metro)
	}
	if priceMin != nil || priceMax != nil {
		b.WriteString(", price ")
		if priceMin != nil {
			fmt.Fprintf(&b, "%d", *priceMin)
		}
		b.WriteString("-")
		if priceMax != nil {
			fmt.Fprintf(&b, "%d", *priceMax)
		}
	}
	return b.String()
}

func buildCanonicalURL(u *url.URL, region, kind string, stations []string, metro string, priceMin, priceMax *int, sections, rooms []string, floor string) string {
	out := url.Values{}
	if floor != "" {
		out.Set("other", floor)
	}
	if kind != "0" {
		out.Set("kind", kind)
	}
	if metro != "" {
		out.Set("metro", metro)
	}
	out.Set("region", region)
	if priceMin != nil || priceMax != nil {
		out.Set("rentprice", priceToken(priceMin, priceMax)[len("price"):])
	}
	if len(sections) > 0 {
		out.Set("section", strings.Join(sections, ","))
	}
	if len(stations) > 0 {
		out.Set("station", strings.Join(stations, ","))
	}
	if len(rooms) > 0 {
		out.Set("multiRoom", strings.Join(rooms, ","))
	}

	result := *u
	result.RawQuery = encodeAlphabetical(out)
	return result.String()
}

// encodeAlphabetical relies on url.Values.Encode, which emits keys sorted
// alphabetically; kept as a named step since the canonical form's
// determinism is load-bearing here.
func encodeAlphabetical(v url.Values) string {
	return v.Encode()
}

// buildEquivalentVariants produces the combinatorial set limited to
// {stations as csv, stations as repeated keys} x {with/without default kind}.
func buildEquivalentVariants(u *url.URL, region, kind string, stations []string, metro string, priceMin, priceMax *int, sections, rooms []string, floor string) []string {
	kinds := []string{kind}
	if kind == "0" {
		kinds = []string{"0", ""}
	}

	var variants []string
	for _, k := range kinds {
		variants = append(variants, renderVariant(u, region, k, stations, metro, priceMin, priceMax, sections, rooms, floor, false))
		if len(stations) > 1 {
			variants = append(variants, renderVariant(u, region, k, stations, metro, priceMin, priceMax, sections, rooms, floor, true))
		}
	}
	return variants
}

func renderVariant(u *url.URL, region, kind string, stations []string, metro string, priceMin, priceMax *int, sections, rooms []string, floor string, stationsRepeated bool) string {
	out := url.Values{}
	out.Set("region", region)
	if kind != "" {
		out.Set("kind", kind)
	}
	if metro != "" {
		out.Set("metro", metro)
	}
	if priceMin != nil || priceMax != nil {
		out.Set("rentprice", priceToken(priceMin, priceMax)[len("price"):])
	}
	if len(sections) > 0 {
		out.Set("section", strings.Join(sections, ","))
	}
	if len(rooms) > 0 {
		out.Set("multiRoom", strings.Join(rooms, ","))
	}
	if floor != "" {
		out.Set("other", floor)
	}

	result := *u
	if stationsRepeated {
		for _, s := range stations {
			out.Add("station", s)
		}
		result.RawQuery = out.Encode()
	} else {
		if len(stations) > 0 {
			out.Set("station", strings.Join(stations, ","))
		}
		result.RawQuery = out.Encode()
	}
	return result.String()
}
