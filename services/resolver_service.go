package services

import (
	"errors"
	"fmt"
	"log"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/playwright-community/playwright-go"

	"jobpilot/config"
)

// IntentKind enumerates the closed set of things the resolver can locate.
type IntentKind string

const (
	IntentJobLinks     IntentKind = "job-links"
	IntentLabeledField IntentKind = "labeled-field"
	IntentNextButton   IntentKind = "next-step-button"
	IntentSubmitButton IntentKind = "submit-button"
	IntentFileInput    IntentKind = "file-input"
)

// Intent is a semantic description of what to find on a page.
type Intent struct {
	Kind  IntentKind
	Label string
}

func JobLinks() Intent                  { return Intent{Kind: IntentJobLinks} }
func LabeledField(label string) Intent  { return Intent{Kind: IntentLabeledField, Label: label} }
func NextButton() Intent                { return Intent{Kind: IntentNextButton} }
func SubmitButton() Intent              { return Intent{Kind: IntentSubmitButton} }
func FileInput() Intent                 { return Intent{Kind: IntentFileInput} }

func (i Intent) String() string {
	if i.Label != "" {
		return fmt.Sprintf("%s(%s)", i.Kind, i.Label)
	}
	return string(i.Kind)
}

// ErrResolverExhausted means every strategy failed to produce a plausible
// result. Callers decide whether that is fatal (a missing submit button) or
// benign (an empty search).
var ErrResolverExhausted = errors.New("all resolution strategies exhausted")

var nextButtonTexts = []string{"next", "continue", "save and continue"}
var submitButtonTexts = []string{"submit", "apply", "send", "finish"}
var uploadTexts = []string{"upload", "attach", "resume", "cv", "cover letter"}

// ResolverService locates elements by intent, trying strategies in fixed
// priority order: structural selectors rot first but are fastest; positional
// XPath survives minor redesigns; semantic signals (URL shapes, accessible
// labels) rot last because platforms keep them stable.
type ResolverService struct {
	heuristics *config.Heuristics
	artifacts  ArtifactSink
	// MinListings is the plausibility floor for job-links results.
	MinListings int
}

func NewResolverService(heuristics *config.Heuristics, artifacts ArtifactSink) *ResolverService {
	if heuristics == nil {
		heuristics = config.DefaultHeuristics()
	}
	return &ResolverService{
		heuristics:  heuristics,
		artifacts:   artifacts,
		MinListings: 3,
	}
}

// Resolve tries each strategy in order and short-circuits on the first that
// yields at least the minimum plausible count. On total failure it snapshots
// the page for diagnosis and returns ErrResolverExhausted, never a short
// result pretending to be complete.
func (r *ResolverService) Resolve(page playwright.Page, platform *Platform, intent Intent) ([]playwright.Locator, error) {
	results := r.TryResolve(page, platform, intent)
	if len(results) > 0 {
		return results, nil
	}

	log.Printf("⚠️ All strategies exhausted for %s on %s", intent, platform.Name)
	if r.artifacts != nil {
		r.artifacts.CapturePage(page, fmt.Sprintf("resolver_%s_%s", platform.Name, intent.Kind))
	}
	return nil, ErrResolverExhausted
}

// TryResolve runs the same cascade as Resolve but stays silent on failure.
// For probing controls that are legitimately absent most of the time, such as
// a submit button on a mid-form step.
func (r *ResolverService) TryResolve(page playwright.Page, platform *Platform, intent Intent) []playwright.Locator {
	min := r.minCount(intent)

	strategies := []struct {
		name string
		run  func() []playwright.Locator
	}{
		{"structural", func() []playwright.Locator { return r.structural(page, platform, intent, min) }},
		{"xpath", func() []playwright.Locator { return r.positional(page, platform, intent, min) }},
		{"semantic", func() []playwright.Locator { return r.semantic(page, platform, intent) }},
	}

	for _, strategy := range strategies {
		results := strategy.run()
		if intent.Kind == IntentJobLinks {
			results = dedupeByHref(results)
		}
		if len(results) >= min {
			log.Printf("Resolved %s via %s strategy (%d candidates)", intent, strategy.name, len(results))
			return results
		}
	}
	return nil
}

func (r *ResolverService) minCount(intent Intent) int {
	if intent.Kind == IntentJobLinks {
		if r.MinListings > 0 {
			return r.MinListings
		}
		return 3
	}
	return 1
}

// structural runs the versioned CSS selectors for the platform/intent pair.
// Selectors are tried in order; the first yielding enough results wins.
func (r *ResolverService) structural(page playwright.Page, platform *Platform, intent Intent, min int) []playwright.Locator {
	selectors := r.structuralSelectors(platform, intent)
	return collectFirstMatch(page, selectors, intent.Kind != IntentJobLinks, min)
}

func (r *ResolverService) structuralSelectors(platform *Platform, intent Intent) []string {
	if override := r.selectorOverride(platform.Name, intent.Kind); len(override) > 0 {
		return override
	}

	switch intent.Kind {
	case IntentJobLinks:
		return platform.JobLinkSelectors
	case IntentLabeledField:
		return fieldAttributeSelectors(intent.Label)
	case IntentNextButton:
		return []string{
			"button[data-automation-id*='next']",
			"button[data-automation-id*='continue']",
			"button[aria-label*='Next']",
			"button[name='next']",
		}
	case IntentSubmitButton:
		return []string{
			"button[data-automation-id*='submit']",
			"button[type='submit']",
			"input[type='submit']",
			"button[aria-label*='Submit']",
		}
	case IntentFileInput:
		return []string{
			"input[type='file']",
			"input[data-automation-id*='file']",
			"input[accept*='pdf']",
		}
	}
	return nil
}

func (r *ResolverService) selectorOverride(platform string, kind IntentKind) []string {
	if r.heuristics == nil || r.heuristics.Selectors == nil {
		return nil
	}
	byIntent, ok := r.heuristics.Selectors[platform]
	if !ok {
		return nil
	}
	return byIntent[string(kind)]
}

// positional runs XPath patterns that describe where things sit rather than
// what they are called.
func (r *ResolverService) positional(page playwright.Page, platform *Platform, intent Intent, min int) []playwright.Locator {
	var xpaths []string
	switch intent.Kind {
	case IntentJobLinks:
		xpaths = platform.JobLinkXPaths
	case IntentLabeledField:
		lower := strings.ToLower(intent.Label)
		xpaths = []string{
			fmt.Sprintf("//label[contains(translate(., 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), '%s')]/following::input[1]", lower),
			fmt.Sprintf("//label[contains(translate(., 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), '%s')]//input", lower),
		}
	case IntentNextButton:
		xpaths = []string{
			"//button[contains(., 'Next')]",
			"//button[contains(., 'Continue')]",
			"//button[contains(@aria-label, 'Next')]",
		}
	case IntentSubmitButton:
		xpaths = []string{
			"//button[contains(., 'Submit')]",
			"//button[contains(., 'Apply')]",
			"//input[@type='submit']",
		}
	case IntentFileInput:
		xpaths = []string{
			"//form//input[@type='file']",
			"//input[@type='file']",
		}
	}

	prefixed := make([]string, len(xpaths))
	for i, xp := range xpaths {
		prefixed[i] = "xpath=" + xp
	}
	return collectFirstMatch(page, prefixed, intent.Kind != IntentJobLinks, min)
}

// semantic pattern-matches stable content signals instead of markup.
func (r *ResolverService) semantic(page playwright.Page, platform *Platform, intent Intent) []playwright.Locator {
	switch intent.Kind {
	case IntentJobLinks:
		return semanticJobLinks(page, platform)
	case IntentLabeledField:
		return semanticLabeledFields(page, intent.Label)
	case IntentNextButton:
		return semanticButtons(page, nextButtonTexts)
	case IntentSubmitButton:
		return semanticButtons(page, submitButtonTexts)
	case IntentFileInput:
		return semanticFileInputs(page)
	}
	return nil
}

// semanticJobLinks keeps anchors whose href matches a known job-URL shape.
func semanticJobLinks(page playwright.Page, platform *Platform) []playwright.Locator {
	anchors, err := page.Locator("a[href]").All()
	if err != nil {
		return nil
	}
	var out []playwright.Locator
	for _, anchor := range anchors {
		href, err := anchor.GetAttribute("href")
		if err != nil || href == "" {
			continue
		}
		for _, fragment := range platform.JobPathFragments {
			if strings.Contains(href, fragment) {
				out = append(out, anchor)
				break
			}
		}
	}
	return out
}

// semanticLabeledFields matches inputs whose accessible signals (aria-label,
// placeholder, associated or enclosing <label>) contain the wanted label.
func semanticLabeledFields(page playwright.Page, label string) []playwright.Locator {
	want := strings.ToLower(strings.TrimSpace(label))
	if want == "" {
		return nil
	}
	inputs, err := page.Locator("input, textarea, select").All()
	if err != nil {
		return nil
	}
	var out []playwright.Locator
	for _, input := range inputs {
		if visible, _ := input.IsVisible(); !visible {
			continue
		}
		if signalsContain(fieldSignals(page, input), want) {
			out = append(out, input)
		}
	}
	return out
}

// fieldSignals gathers the accessible texts describing an input.
func fieldSignals(page playwright.Page, input playwright.Locator) []string {
	var signals []string

	if aria, err := input.GetAttribute("aria-label"); err == nil && aria != "" {
		signals = append(signals, aria)
	}
	if placeholder, err := input.GetAttribute("placeholder"); err == nil && placeholder != "" {
		signals = append(signals, placeholder)
	}
	if id, err := input.GetAttribute("id"); err == nil && id != "" {
		assoc := page.Locator(fmt.Sprintf("label[for=%q]", id)).First()
		if n, err := assoc.Count(); err == nil && n > 0 {
			if text, err := assoc.TextContent(); err == nil {
				signals = append(signals, text)
			}
		}
	}
	enclosing := input.Locator("xpath=ancestor::label")
	if n, err := enclosing.Count(); err == nil && n > 0 {
		if text, err := enclosing.First().TextContent(); err == nil {
			signals = append(signals, text)
		}
	}
	return signals
}

func signalsContain(signals []string, want string) bool {
	for _, signal := range signals {
		if strings.Contains(strings.ToLower(signal), want) {
			return true
		}
	}
	return false
}

// semanticButtons matches progression controls by their visible text.
func semanticButtons(page playwright.Page, texts []string) []playwright.Locator {
	candidates, err := page.Locator("button, input[type='submit'], [role='button']").All()
	if err != nil {
		return nil
	}
	var out []playwright.Locator
	for _, candidate := range candidates {
		if visible, _ := candidate.IsVisible(); !visible {
			continue
		}
		label := buttonText(candidate)
		if label == "" {
			continue
		}
		for _, text := range texts {
			if strings.Contains(label, text) {
				out = append(out, candidate)
				break
			}
		}
	}
	return out
}

func buttonText(button playwright.Locator) string {
	var parts []string
	if text, err := button.InnerText(); err == nil {
		parts = append(parts, text)
	}
	if aria, err := button.GetAttribute("aria-label"); err == nil && aria != "" {
		parts = append(parts, aria)
	}
	if value, err := button.GetAttribute("value"); err == nil && value != "" {
		parts = append(parts, value)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// semanticFileInputs finds file inputs hiding behind upload affordances.
func semanticFileInputs(page playwright.Page) []playwright.Locator {
	candidates, err := page.Locator("label, button, [role='button']").All()
	if err != nil {
		return nil
	}
	var out []playwright.Locator
	for _, candidate := range candidates {
		label := buttonText(candidate)
		if label == "" {
			continue
		}
		matched := false
		for _, text := range uploadTexts {
			if strings.Contains(label, text) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		nested := candidate.Locator("input[type='file']")
		if n, err := nested.Count(); err == nil && n > 0 {
			out = append(out, nested.First())
		}
	}
	return out
}

// collectFirstMatch tries selectors in order and returns the first batch that
// reaches min. Selector errors are structural drift, absorbed here.
func collectFirstMatch(page playwright.Page, selectors []string, requireVisible bool, min int) []playwright.Locator {
	for _, selector := range selectors {
		found, err := page.Locator(selector).All()
		if err != nil {
			continue
		}
		var usable []playwright.Locator
		for _, loc := range found {
			if requireVisible {
				if visible, _ := loc.IsVisible(); !visible {
					continue
				}
			}
			usable = append(usable, loc)
		}
		if len(usable) >= min {
			return usable
		}
	}
	return nil
}

// dedupeByHref drops anchors whose href was already seen; duplicate DOM nodes
// and overlapping strategies otherwise produce repeats.
func dedupeByHref(anchors []playwright.Locator) []playwright.Locator {
	if len(anchors) == 0 {
		return anchors
	}
	seen := mapset.NewSet[string]()
	var out []playwright.Locator
	for _, anchor := range anchors {
		href, err := anchor.GetAttribute("href")
		if err != nil || href == "" {
			continue
		}
		if seen.Add(href) {
			out = append(out, anchor)
		}
	}
	return out
}

// fieldAttributeSelectors derives structural selectors from a label the way
// platforms usually encode it in name/id attributes.
func fieldAttributeSelectors(label string) []string {
	lower := strings.ToLower(strings.TrimSpace(label))
	if lower == "" {
		return nil
	}

	var selectors []string
	switch {
	case strings.Contains(lower, "email"):
		selectors = append(selectors, "input[type='email']")
	case strings.Contains(lower, "phone"):
		selectors = append(selectors, "input[type='tel']")
	}

	words := strings.Fields(lower)
	keys := mapset.NewSet[string]()
	keys.Add(strings.Join(words, ""))
	keys.Add(strings.Join(words, "_"))
	keys.Add(strings.Join(words, "-"))
	if len(words) > 1 {
		camel := words[0]
		for _, word := range words[1:] {
			camel += strings.ToUpper(word[:1]) + word[1:]
		}
		keys.Add(camel)
	}

	for _, key := range keys.ToSlice() {
		selectors = append(selectors,
			fmt.Sprintf("input[name*='%s' i]", key),
			fmt.Sprintf("input[id*='%s' i]", key),
			fmt.Sprintf("textarea[name*='%s' i]", key),
		)
	}
	return selectors
}
