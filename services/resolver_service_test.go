package services

import (
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobpilot/config"
)

func jobSearchStep(selector string, anchors ...*fakeElement) pageStep {
	return pageStep{
		body:     "search results",
		elements: map[string][]*fakeElement{selector: anchors},
	}
}

func TestResolverStructuralStrategyWins(t *testing.T) {
	resolver := NewResolverService(config.DefaultHeuristics(), nil)
	// Both the versioned selector and the generic anchor scan could match;
	// the cascade must stop at the structural hit.
	page := newScriptedPage("https://www.indeed.com/jobs", pageStep{
		elements: map[string][]*fakeElement{
			"h2.jobTitle a": {
				anchor("/viewjob?jk=a1", "Go Developer"),
				anchor("/viewjob?jk=a2", "Backend Engineer"),
				anchor("/viewjob?jk=a3", "Platform Engineer"),
			},
			"a[href]": {
				anchor("/viewjob?jk=a1", "Go Developer"),
				anchor("/viewjob?jk=a2", "Backend Engineer"),
				anchor("/viewjob?jk=a3", "Platform Engineer"),
				anchor("/viewjob?jk=a4", "SRE"),
				anchor("/viewjob?jk=a5", "Data Engineer"),
			},
		},
	})

	found, err := resolver.Resolve(page, PlatformByName("indeed"), JobLinks())
	require.NoError(t, err)
	assert.Len(t, found, 3)
}

func TestResolverFallsBackToSemanticLinks(t *testing.T) {
	resolver := NewResolverService(config.DefaultHeuristics(), nil)
	// No structural selector matches; anchors are found by their href shape.
	page := newScriptedPage("https://www.indeed.com/jobs", jobSearchStep("a[href]",
		anchor("https://www.indeed.com/viewjob?jk=b1", "Go Developer"),
		anchor("https://www.indeed.com/viewjob?jk=b2", "Backend Engineer"),
		anchor("https://www.indeed.com/about", "About Us"),
		anchor("https://www.indeed.com/viewjob?jk=b3", "Platform Engineer"),
	))

	found, err := resolver.Resolve(page, PlatformByName("indeed"), JobLinks())
	require.NoError(t, err)
	assert.Len(t, found, 3, "non-job anchors must be filtered out")
}

func TestResolverDedupesRepeatedHrefs(t *testing.T) {
	resolver := NewResolverService(config.DefaultHeuristics(), nil)
	page := newScriptedPage("https://www.indeed.com/jobs", jobSearchStep("h2.jobTitle a",
		anchor("/viewjob?jk=c1", "Go Developer"),
		anchor("/viewjob?jk=c1", "Go Developer"),
		anchor("/viewjob?jk=c2", "Backend Engineer"),
		anchor("/viewjob?jk=c2", "Backend Engineer"),
		anchor("/viewjob?jk=c3", "Platform Engineer"),
	))

	found, err := resolver.Resolve(page, PlatformByName("indeed"), JobLinks())
	require.NoError(t, err)
	assert.Len(t, found, 3)
}

func TestResolverRejectsImplausiblyFewListings(t *testing.T) {
	sink := &recordingSink{}
	resolver := NewResolverService(config.DefaultHeuristics(), sink)
	page := newScriptedPage("https://www.indeed.com/jobs", jobSearchStep("h2.jobTitle a",
		anchor("/viewjob?jk=d1", "Go Developer"),
		anchor("/viewjob?jk=d2", "Backend Engineer"),
	))

	found, err := resolver.Resolve(page, PlatformByName("indeed"), JobLinks())
	assert.ErrorIs(t, err, ErrResolverExhausted)
	assert.Nil(t, found)
	require.Len(t, sink.labels, 1, "total failure must leave a diagnostic snapshot")
	assert.Equal(t, "resolver_indeed_job-links", sink.labels[0])
}

func TestTryResolveStaysSilentOnFailure(t *testing.T) {
	sink := &recordingSink{}
	resolver := NewResolverService(config.DefaultHeuristics(), sink)
	page := newScriptedPage("https://example.com/apply", pageStep{body: "step 1 of 4"})

	found := resolver.TryResolve(page, PlatformByName("generic"), SubmitButton())
	assert.Nil(t, found)
	assert.Empty(t, sink.labels, "probing an absent control is not a diagnostic event")
}

func TestResolverFindsSubmitButtonStructurally(t *testing.T) {
	resolver := NewResolverService(config.DefaultHeuristics(), nil)
	page := newScriptedPage("https://example.com/apply", pageStep{
		elements: map[string][]*fakeElement{
			"button[type='submit']": {button("Submit application", nil)},
		},
	})

	found, err := resolver.Resolve(page, PlatformByName("generic"), SubmitButton())
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestResolverFindsNextButtonByVisibleText(t *testing.T) {
	resolver := NewResolverService(config.DefaultHeuristics(), nil)
	page := newScriptedPage("https://example.com/apply", pageStep{
		elements: map[string][]*fakeElement{
			"button, input[type='submit'], [role='button']": {
				button("Save and continue", nil),
				{visible: false, text: "Continue"}, // hidden controls never count
			},
		},
	})

	next, err := resolver.Resolve(page, PlatformByName("generic"), NextButton())
	require.NoError(t, err)
	assert.Len(t, next, 1)

	// The same text must not satisfy a submit probe.
	assert.Nil(t, resolver.TryResolve(page, PlatformByName("generic"), SubmitButton()))
}

func TestResolverFindsLabeledFieldByAccessibleSignals(t *testing.T) {
	resolver := NewResolverService(config.DefaultHeuristics(), nil)
	page := newScriptedPage("https://example.com/apply", pageStep{
		elements: map[string][]*fakeElement{
			"input, textarea, select": {
				input(map[string]string{"aria-label": "Email address"}),
				input(map[string]string{"aria-label": "Phone number"}),
			},
		},
	})

	found, err := resolver.Resolve(page, PlatformByName("generic"), LabeledField("email"))
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestResolverSelectorOverrideTakesPriority(t *testing.T) {
	heuristics := config.DefaultHeuristics()
	heuristics.Selectors = map[string]map[string][]string{
		"indeed": {"job-links": {"a.refreshed-card"}},
	}
	resolver := NewResolverService(heuristics, nil)

	page := newScriptedPage("https://www.indeed.com/jobs", pageStep{
		elements: map[string][]*fakeElement{
			"a.refreshed-card": {
				anchor("/viewjob?jk=e1", "Go Developer"),
				anchor("/viewjob?jk=e2", "Backend Engineer"),
				anchor("/viewjob?jk=e3", "Platform Engineer"),
			},
			"h2.jobTitle a": {
				anchor("/viewjob?jk=e1", "Go Developer"),
				anchor("/viewjob?jk=e2", "Backend Engineer"),
				anchor("/viewjob?jk=e3", "Platform Engineer"),
				anchor("/viewjob?jk=e4", "SRE"),
			},
		},
	})

	found, err := resolver.Resolve(page, PlatformByName("indeed"), JobLinks())
	require.NoError(t, err)
	assert.Len(t, found, 3, "the override replaces the built-in selector table")
}

func TestDedupeByHref(t *testing.T) {
	page := newScriptedPage("https://example.com")
	locators := []playwright.Locator{
		&fakeLocator{page: page, items: []*fakeElement{anchor("/a", "")}},
		&fakeLocator{page: page, items: []*fakeElement{anchor("/a", "")}},
		&fakeLocator{page: page, items: []*fakeElement{anchor("/b", "")}},
		&fakeLocator{page: page, items: []*fakeElement{{visible: true}}}, // no href
	}

	assert.Len(t, dedupeByHref(locators), 2)
}
