package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"

	"jobpilot/models"
)

const (
	// maxDescriptionLength caps the body-text fallback so a cluttered page
	// cannot balloon a job record.
	maxDescriptionLength = 5000
	// minDescriptionLength is the smallest text a description block must
	// carry before the cascade accepts it.
	minDescriptionLength = 100
)

// DetailService visits a stub's URL and extracts the long-form description
// plus an apply-routing hint.
type DetailService struct {
	sessions *SessionService
	sentinel *SentinelService
}

func NewDetailService(sessions *SessionService, sentinel *SentinelService) *DetailService {
	return &DetailService{sessions: sessions, sentinel: sentinel}
}

// Fetch hydrates a stub into a JobDetail. A missing description is a
// recoverable condition, not an error: the detail comes back with an empty
// description flagged low-confidence.
func (d *DetailService) Fetch(ctx context.Context, session *Session, stub models.JobStub) (*models.JobDetail, error) {
	platform := DetectPlatform(stub.URL)

	if err := d.sessions.NavigateChecked(ctx, session, d.sentinel, stub.URL); err != nil {
		return nil, err
	}

	page := session.Page()
	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("could not read page content: %v", err)
	}

	description, fromBlock := ExtractDescription(html, platform)
	if description == "" {
		log.Printf("⚠️ No description found for %s (flagging low confidence)", stub.URL)
	}

	detail := &models.JobDetail{
		JobStub:           stub,
		Description:       description,
		LowConfidence:     !fromBlock,
		AppliesExternally: ClassifyExternalApply(page, platform),
	}
	return detail, nil
}

// ExtractDescription pulls the posting text out of raw HTML: the platform's
// description selectors first, then the generic cascade, then length-capped
// visible body text. The second return value reports whether a recognized
// description block matched. Pure function of the markup, so fetching the
// same page twice extracts identically.
func ExtractDescription(html string, platform *Platform) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}
	doc.Find("script, style, noscript, nav, header, footer, iframe, svg").Remove()

	selectors := append([]string{}, platform.DescriptionSelectors...)
	if platform.Name != genericPlatform.Name {
		selectors = append(selectors, genericPlatform.DescriptionSelectors...)
	}

	for _, selector := range selectors {
		block := doc.Find(selector).First()
		if block.Length() == 0 {
			continue
		}
		text := cleanDescription(block.Text())
		if len(text) >= minDescriptionLength {
			return truncateText(text, maxDescriptionLength), true
		}
	}

	body := cleanDescription(doc.Find("body").Text())
	if body == "" {
		return "", false
	}
	return truncateText(body, maxDescriptionLength), false
}

// ClassifyExternalApply decides best-effort whether applying happens in-page
// or routes out to another site. This is a hint for downstream routing, not a
// correctness-critical value, and it is explicitly allowed to be wrong.
func ClassifyExternalApply(page playwright.Page, platform *Platform) bool {
	for _, selector := range platform.InPageApplySelectors {
		affordance := page.Locator(selector).First()
		if n, err := affordance.Count(); err == nil && n > 0 {
			if visible, _ := affordance.IsVisible(); visible {
				return false
			}
		}
	}
	return true
}

func cleanDescription(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = cleanLine(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func truncateText(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
