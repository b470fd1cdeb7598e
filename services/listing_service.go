package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"unicode"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/playwright-community/playwright-go"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"jobpilot/models"
)

// maxAncestorLevels bounds how far up the DOM a listing anchor is allowed to
// look for its company/location line.
const maxAncestorLevels = 5

// ListingService turns a search query into normalized job stubs.
type ListingService struct {
	sessions *SessionService
	resolver *ResolverService
	sentinel *SentinelService
}

func NewListingService(sessions *SessionService, resolver *ResolverService, sentinel *SentinelService) *ListingService {
	return &ListingService{
		sessions: sessions,
		resolver: resolver,
		sentinel: sentinel,
	}
}

// Search navigates to the platform's query URL and extracts job stubs. An
// empty slice with nil error is a valid outcome; a niche query matching
// nothing is not a scraping failure.
func (l *ListingService) Search(ctx context.Context, session *Session, platform *Platform, keywords, location string) ([]models.JobStub, error) {
	if platform.SearchURL == nil {
		return nil, fmt.Errorf("platform %s does not support search", platform.Name)
	}
	searchURL := platform.SearchURL(keywords, location)
	log.Printf("=== Searching %s for %q in %q ===", platform.Name, keywords, location)

	if err := l.sessions.NavigateChecked(ctx, session, l.sentinel, searchURL); err != nil {
		return nil, err
	}

	page := session.Page()
	if err := HumanScroll(page); err != nil {
		log.Printf("Warning: scroll on %s failed: %v", platform.Name, err)
	}

	anchors, err := l.resolver.Resolve(page, platform, JobLinks())
	if err != nil {
		if errors.Is(err, ErrResolverExhausted) {
			return []models.JobStub{}, nil
		}
		return nil, err
	}

	stubs := l.extractStubs(page, platform, anchors)
	log.Printf("✓ %s: %d unique listings", platform.Name, len(stubs))
	return stubs, nil
}

// extractStubs derives a stub per anchor, then deduplicates by normalized URL
// and by case-insensitive (title, company) pair.
func (l *ListingService) extractStubs(page playwright.Page, platform *Platform, anchors []playwright.Locator) []models.JobStub {
	var base *url.URL
	if parsed, err := url.Parse(page.URL()); err == nil {
		base = parsed
	}

	seenURLs := mapset.NewSet[string]()
	seenPairs := mapset.NewSet[string]()
	stubs := []models.JobStub{}

	for _, anchor := range anchors {
		stub, ok := stubFromAnchor(base, platform, anchor)
		if !ok {
			continue
		}
		if !seenURLs.Add(NormalizeJobURL(stub.URL)) {
			continue
		}
		if !seenPairs.Add(foldKey(stub.Title) + "|" + foldKey(stub.Company)) {
			continue
		}
		stubs = append(stubs, stub)
	}
	return stubs
}

func stubFromAnchor(base *url.URL, platform *Platform, anchor playwright.Locator) (models.JobStub, bool) {
	href, err := anchor.GetAttribute("href")
	if err != nil || href == "" {
		return models.JobStub{}, false
	}
	absolute := href
	if base != nil {
		if ref, err := url.Parse(href); err == nil {
			absolute = base.ResolveReference(ref).String()
		}
	}

	title := ""
	if text, err := anchor.InnerText(); err == nil {
		title = cleanLine(text)
	}
	company, location := walkAncestors(anchor, &title)
	if title == "" {
		return models.JobStub{}, false
	}

	return models.JobStub{
		Title:    title,
		Company:  company,
		Location: location,
		URL:      absolute,
		Source:   platform.Name,
	}, true
}

// walkAncestors climbs at most maxAncestorLevels looking for the sibling text
// platforms render beside a listing link: a company name and a location line.
func walkAncestors(anchor playwright.Locator, title *string) (company, location string) {
	node := anchor
	for depth := 0; depth < maxAncestorLevels; depth++ {
		node = node.Locator("xpath=..")
		count, err := node.Count()
		if err != nil || count == 0 {
			return
		}
		text, err := node.InnerText()
		if err != nil {
			continue
		}
		lines := splitLines(text)
		if *title == "" && len(lines) > 0 {
			*title = lines[0]
		}
		for _, line := range lines {
			if strings.EqualFold(line, *title) {
				continue
			}
			if location == "" && looksLikeLocation(line) {
				location = line
				continue
			}
			if company == "" && looksLikeCompany(line, *title) {
				company = line
			}
		}
		if company != "" && location != "" {
			return
		}
	}
	return
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = cleanLine(line)
		if line == "" || len(line) > 120 {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func cleanLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var locationMarkers = []string{"remote", "hybrid", "on-site", "onsite"}

func looksLikeLocation(line string) bool {
	if len(line) > 60 {
		return false
	}
	lower := strings.ToLower(line)
	for _, marker := range locationMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	// "City, ST" / "City, Country" shape
	parts := strings.Split(line, ",")
	return len(parts) >= 2 && len(parts) <= 3 && len(parts[0]) > 1
}

var companyNoise = []string{"easy apply", "actively hiring", "applicants", "$", "per hour", "/yr", "/hr", "sponsored", "promoted"}

func looksLikeCompany(line, title string) bool {
	if len(line) < 2 || len(line) > 80 {
		return false
	}
	if strings.EqualFold(line, title) || looksLikeLocation(line) {
		return false
	}
	lower := strings.ToLower(line)
	if strings.HasSuffix(lower, "ago") {
		return false
	}
	for _, noise := range companyNoise {
		if strings.Contains(lower, noise) {
			return false
		}
	}
	return true
}

// NormalizeJobURL canonicalizes a job link for deduplication: fragment and
// tracking parameters dropped, host lowercased, trailing slash trimmed.
// Identifying query parameters (e.g. Indeed's jk) survive.
func NormalizeJobURL(raw string) string {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}
	parsed.Fragment = ""
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)

	query := parsed.Query()
	for key := range query {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") || lower == "ref" || lower == "refid" ||
			lower == "trackingid" || lower == "from" || lower == "position" || lower == "pagenum" {
			query.Del(key)
		}
	}
	parsed.RawQuery = query.Encode()

	if parsed.Path != "/" {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}
	return parsed.String()
}

// foldKey lowercases and strips diacritics so "Zürich" and "Zurich" compare
// equal in dedup keys and keyword matching.
func foldKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
