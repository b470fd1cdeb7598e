package services

import (
	"fmt"
	"net/url"
	"strings"
)

// Platform describes one job board: how to build a search URL, the known
// structural selectors, and the URL shapes its job links follow. Selector
// values are data and expected to rot; the resolver's fallback cascade is
// what survives them.
type Platform struct {
	Name string
	// SearchURL is nil for boards we only apply on, never search.
	SearchURL func(keywords, location string) string
	// JobLinkSelectors are the versioned structural selectors for listing
	// anchors (resolution strategy 1).
	JobLinkSelectors []string
	// JobLinkXPaths describe relative position instead of class names
	// (strategy 2) and tend to outlive minor redesigns.
	JobLinkXPaths []string
	// JobPathFragments are the href shapes job links carry (strategy 3).
	// Platforms keep these stable for SEO, so they rot last.
	JobPathFragments []string
	// DescriptionSelectors feed the detail fetcher's cascade.
	DescriptionSelectors []string
	// InPageApplySelectors mark an apply affordance that stays on the page,
	// as opposed to routing out to an external site.
	InPageApplySelectors []string
}

var linkedinPlatform = &Platform{
	Name: "linkedin",
	SearchURL: func(keywords, location string) string {
		return fmt.Sprintf("https://www.linkedin.com/jobs/search/?keywords=%s&location=%s",
			url.QueryEscape(keywords), url.QueryEscape(location))
	},
	JobLinkSelectors: []string{
		"a.base-card__full-link",
		"div.base-card a.base-card__full-link",
		"div.job-search-card a",
	},
	JobLinkXPaths: []string{
		"//ul[contains(@class,'jobs-search__results-list')]//li//a[1]",
		"//main//ul//li//a[.//h3]",
	},
	JobPathFragments: []string{"/jobs/view/"},
	DescriptionSelectors: []string{
		"div.show-more-less-html__markup",
		"div.jobs-description__content",
		"section.description",
	},
	InPageApplySelectors: []string{
		"button.jobs-apply-button--easy-apply",
		"button:has-text('Easy Apply')",
	},
}

var indeedPlatform = &Platform{
	Name: "indeed",
	SearchURL: func(keywords, location string) string {
		return fmt.Sprintf("https://www.indeed.com/jobs?q=%s&l=%s",
			url.QueryEscape(keywords), url.QueryEscape(location))
	},
	JobLinkSelectors: []string{
		"h2.jobTitle a",
		"a[data-jk]",
		"div.job_seen_beacon h2 a",
		"td.resultContent h2 a",
	},
	JobLinkXPaths: []string{
		"//div[@id='mosaic-provider-jobcards']//li//h2/a",
		"//main//li//h2/a",
	},
	JobPathFragments: []string{"viewjob?jk=", "/rc/clk", "/pagead/clk"},
	DescriptionSelectors: []string{
		"div#jobDescriptionText",
		"div.jobsearch-jobDescriptionText",
		"div[data-testid='job-description']",
	},
	InPageApplySelectors: []string{
		"button#indeedApplyButton",
		"button[data-testid='indeedApplyButton']",
		"span[data-indeed-apply-joburl]",
	},
}

var glassdoorPlatform = &Platform{
	Name: "glassdoor",
	SearchURL: func(keywords, location string) string {
		return fmt.Sprintf("https://www.glassdoor.com/Job/jobs.htm?sc.keyword=%s&locT=C&locId=%s",
			url.QueryEscape(keywords), url.QueryEscape(location))
	},
	JobLinkSelectors: []string{
		"a[data-test='job-link']",
		"li[data-test='jobListing'] a[data-test='job-link']",
	},
	JobLinkXPaths: []string{
		"//ul[contains(@aria-label,'Jobs')]//li//a[1]",
		"//main//li//a[.//div]",
	},
	JobPathFragments: []string{"/job-listing/", "/partner/jobListing"},
	DescriptionSelectors: []string{
		"div[data-test='jobDescriptionContent']",
		"div.jobDescriptionContent",
		"section.jobDescriptionContent",
	},
	InPageApplySelectors: []string{
		"button[data-test='easyApply']",
		"button[data-test='applyButton']",
	},
}

var workdayPlatform = &Platform{
	Name:             "workday",
	JobPathFragments: []string{"/job/", "/jobs/"},
	DescriptionSelectors: []string{
		"div[data-automation-id='jobPostingDescription']",
		"div[data-automation-id='job-posting-details']",
	},
	InPageApplySelectors: []string{
		"button[data-automation-id='applyButton']",
		"a[data-automation-id='adventureButton']",
		"button[data-automation-id='apply']",
	},
}

var genericPlatform = &Platform{
	Name:             "generic",
	JobPathFragments: []string{"/job/", "/jobs/", "/careers/", "/position/", "/opening/"},
	DescriptionSelectors: []string{
		"div[class*='job-description']",
		"div[id*='job-description']",
		"section[class*='description']",
		"div[class*='description']",
		"article",
	},
	InPageApplySelectors: []string{
		"button:has-text('Apply')",
		"input[type='submit'][value*='Apply']",
	},
}

var platforms = map[string]*Platform{
	"linkedin":  linkedinPlatform,
	"indeed":    indeedPlatform,
	"glassdoor": glassdoorPlatform,
	"workday":   workdayPlatform,
	"generic":   genericPlatform,
}

// PlatformByName returns the registered platform, or the generic one when the
// name is unknown.
func PlatformByName(name string) *Platform {
	if p, ok := platforms[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p
	}
	return genericPlatform
}

// SearchablePlatforms lists the boards that support query-based discovery.
func SearchablePlatforms() []string {
	return []string{"linkedin", "indeed", "glassdoor"}
}

// DetectPlatform classifies a job URL by hostname and path shape.
func DetectPlatform(jobURL string) *Platform {
	parsed, err := url.Parse(jobURL)
	if err != nil {
		return genericPlatform
	}
	host := strings.ToLower(parsed.Hostname())

	switch {
	case strings.Contains(host, "linkedin.com"):
		return linkedinPlatform
	case strings.Contains(host, "indeed.com"):
		return indeedPlatform
	case strings.Contains(host, "glassdoor.com"):
		return glassdoorPlatform
	case strings.Contains(host, "myworkdayjobs.com"), strings.Contains(host, "workday.com"):
		return workdayPlatform
	}
	return genericPlatform
}
