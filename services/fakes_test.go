package services

import (
	"context"
	"errors"
	"time"

	"github.com/playwright-community/playwright-go"

	"jobpilot/config"
)

// The tests in this package drive the engine against scripted pages instead
// of a live browser. A scripted page serves fake elements from a per-step
// selector table; element clicks can mutate which step is live, which is
// enough to model search pages, login walls, and multi-step forms.

var errNoElement = errors.New("locator resolved to no elements")

// fakeElement is one DOM node a scripted page serves.
type fakeElement struct {
	visible  bool
	text     string
	value    string
	attrs    map[string]string
	parent   *fakeElement
	children map[string][]*fakeElement
	onClick  func()
	clickErr error

	clicks   int
	selected []string
	uploaded []string
}

func (e *fakeElement) attr(name string) string {
	if e.attrs == nil {
		return ""
	}
	return e.attrs[name]
}

// locatorIface aliases playwright.Locator so embedding it below does not
// create a field named Locator, which would collide with fakeLocator's
// Locator method.
type locatorIface = playwright.Locator

// fakeLocator adapts a set of fake elements to playwright.Locator. Methods
// the engine never calls stay on the embedded interface and panic loudly if
// something starts calling them.
type fakeLocator struct {
	locatorIface
	page  *scriptedPage
	items []*fakeElement
}

func (l *fakeLocator) head() *fakeElement {
	if len(l.items) == 0 {
		return nil
	}
	return l.items[0]
}

func (l *fakeLocator) All() ([]playwright.Locator, error) {
	out := make([]playwright.Locator, len(l.items))
	for i, item := range l.items {
		out[i] = &fakeLocator{page: l.page, items: []*fakeElement{item}}
	}
	return out, nil
}

func (l *fakeLocator) Count() (int, error) {
	return len(l.items), nil
}

func (l *fakeLocator) First() playwright.Locator {
	if len(l.items) <= 1 {
		return l
	}
	return &fakeLocator{page: l.page, items: l.items[:1]}
}

func (l *fakeLocator) IsVisible(options ...playwright.LocatorIsVisibleOptions) (bool, error) {
	e := l.head()
	return e != nil && e.visible, nil
}

func (l *fakeLocator) InnerText(options ...playwright.LocatorInnerTextOptions) (string, error) {
	e := l.head()
	if e == nil {
		return "", errNoElement
	}
	return e.text, nil
}

func (l *fakeLocator) TextContent(options ...playwright.LocatorTextContentOptions) (string, error) {
	e := l.head()
	if e == nil {
		return "", errNoElement
	}
	return e.text, nil
}

func (l *fakeLocator) GetAttribute(name string, options ...playwright.LocatorGetAttributeOptions) (string, error) {
	e := l.head()
	if e == nil {
		return "", errNoElement
	}
	return e.attr(name), nil
}

func (l *fakeLocator) InputValue(options ...playwright.LocatorInputValueOptions) (string, error) {
	e := l.head()
	if e == nil {
		return "", errNoElement
	}
	return e.value, nil
}

func (l *fakeLocator) Click(options ...playwright.LocatorClickOptions) error {
	e := l.head()
	if e == nil {
		return errNoElement
	}
	if e.clickErr != nil {
		return e.clickErr
	}
	e.clicks++
	if e.onClick != nil {
		e.onClick()
	}
	return nil
}

func (l *fakeLocator) Type(text string, options ...playwright.LocatorTypeOptions) error {
	e := l.head()
	if e == nil {
		return errNoElement
	}
	e.value += text
	return nil
}

func (l *fakeLocator) SelectOption(values playwright.SelectOptionValues, options ...playwright.LocatorSelectOptionOptions) ([]string, error) {
	e := l.head()
	if e == nil {
		return nil, errNoElement
	}
	if values.Labels == nil {
		return nil, nil
	}
	e.selected = append(e.selected, *values.Labels...)
	return *values.Labels, nil
}

func (l *fakeLocator) SetInputFiles(files interface{}, options ...playwright.LocatorSetInputFilesOptions) error {
	e := l.head()
	if e == nil {
		return errNoElement
	}
	if path, ok := files.(string); ok {
		e.uploaded = append(e.uploaded, path)
	}
	return nil
}

func (l *fakeLocator) Locator(selectorOrLocator interface{}, options ...playwright.LocatorLocatorOptions) playwright.Locator {
	selector, _ := selectorOrLocator.(string)
	e := l.head()
	if e == nil {
		return &fakeLocator{page: l.page}
	}
	if selector == "xpath=.." {
		if e.parent == nil {
			return &fakeLocator{page: l.page}
		}
		return &fakeLocator{page: l.page, items: []*fakeElement{e.parent}}
	}
	if kids, ok := e.children[selector]; ok {
		return &fakeLocator{page: l.page, items: kids}
	}
	return &fakeLocator{page: l.page}
}

// pageStep is one state of a scripted page: the rendered body text plus the
// elements each selector resolves to. Selectors not in the table resolve to
// nothing, like any selector on a real page.
type pageStep struct {
	body     string
	elements map[string][]*fakeElement
}

// scriptedPage plays a sequence of page states.
type scriptedPage struct {
	playwright.Page
	url     string
	title   string
	steps   []pageStep
	cur     int
	gotos   []string
	onGoto  func(url string)
	bodyErr bool
	shots   int
}

func newScriptedPage(url string, steps ...pageStep) *scriptedPage {
	return &scriptedPage{url: url, steps: steps}
}

func (p *scriptedPage) step() pageStep {
	if p.cur < 0 || p.cur >= len(p.steps) {
		return pageStep{}
	}
	return p.steps[p.cur]
}

func (p *scriptedPage) Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error) {
	p.gotos = append(p.gotos, url)
	p.url = url
	if p.onGoto != nil {
		p.onGoto(url)
	}
	return nil, nil
}

func (p *scriptedPage) URL() string {
	return p.url
}

func (p *scriptedPage) Title() (string, error) {
	return p.title, nil
}

func (p *scriptedPage) Content() (string, error) {
	return "<html><body>" + p.step().body + "</body></html>", nil
}

func (p *scriptedPage) ViewportSize() *playwright.Size {
	return nil
}

func (p *scriptedPage) Screenshot(options ...playwright.PageScreenshotOptions) ([]byte, error) {
	p.shots++
	return []byte("fake-png"), nil
}

func (p *scriptedPage) Locator(selector string, options ...playwright.PageLocatorOptions) playwright.Locator {
	if selector == "body" {
		if p.bodyErr {
			return &fakeLocator{page: p}
		}
		return &fakeLocator{page: p, items: []*fakeElement{{visible: true, text: p.step().body}}}
	}
	if elems, ok := p.step().elements[selector]; ok {
		return &fakeLocator{page: p, items: elems}
	}
	return &fakeLocator{page: p}
}

// recordingSink captures artifact labels instead of writing files.
type recordingSink struct {
	labels []string
}

func (r *recordingSink) CapturePage(page playwright.Page, label string) {
	r.labels = append(r.labels, label)
}

func anchor(href, text string) *fakeElement {
	return &fakeElement{visible: true, text: text, attrs: map[string]string{"href": href}}
}

func button(text string, onClick func()) *fakeElement {
	return &fakeElement{visible: true, text: text, onClick: onClick}
}

func input(attrs map[string]string) *fakeElement {
	return &fakeElement{visible: true, attrs: attrs}
}

// testAutomationConfig keeps pacing and backoff near zero so walks finish in
// milliseconds.
func testAutomationConfig() config.AutomationConfig {
	return config.AutomationConfig{
		Headless:        true,
		MaxSteps:        8,
		MaxAttempts:     2,
		BaseDelay:       time.Millisecond,
		CooldownMinutes: 1,
		NavInterval:     time.Millisecond,
		MaxApplications: 5,
	}
}

// quietSentinel returns a sentinel whose cooldown records instead of sleeping.
func quietSentinel() (*SentinelService, *[]time.Duration) {
	slept := &[]time.Duration{}
	s := NewSentinelService(config.DefaultHeuristics().RateLimitPhrases, 1)
	s.sleep = func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return ctx.Err()
	}
	return s, slept
}
