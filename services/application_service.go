package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/playwright-community/playwright-go"

	"jobpilot/config"
	"jobpilot/models"
)

// ErrResumeFileMissing flags a configured resume path with no file behind it.
// Submitting without the resume would waste the listing, so this fails fast
// and is never retried.
var ErrResumeFileMissing = errors.New("resume file not found on disk")

// errUploadRequired is an internal signal that the form demands a file we do
// not have. It maps to RequiresManual and never leaves this package.
var errUploadRequired = errors.New("required upload missing")

// progress records which control, if any, advanced the form on a step.
type progress int

const (
	noControl progress = iota
	clickedNext
	clickedSubmit
)

// ApplicationService drives a multi-step application form to one of four
// terminal outcomes. Outcomes are values on the result, not errors: an error
// return means the machinery itself broke (navigation, canceled context),
// not that the application went nowhere.
type ApplicationService struct {
	cfg        config.AutomationConfig
	heuristics *config.Heuristics
	sessions   *SessionService
	resolver   *ResolverService
	sentinel   *SentinelService
	retry      *RetryPolicy
}

func NewApplicationService(cfg config.AutomationConfig, heuristics *config.Heuristics, sessions *SessionService, resolver *ResolverService, sentinel *SentinelService) *ApplicationService {
	if heuristics == nil {
		heuristics = config.DefaultHeuristics()
	}
	return &ApplicationService{
		cfg:        cfg,
		heuristics: heuristics,
		sessions:   sessions,
		resolver:   resolver,
		sentinel:   sentinel,
		retry:      NewRetryPolicy(cfg.MaxAttempts, cfg.BaseDelay),
	}
}

// Apply walks the application form for one job. Each step collects fields
// fresh, fills what it confidently recognizes, then advances via submit
// (preferred) or next. The loop ends on a confirmation, a dead end, a login
// wall, or the step cap. Cancellation is honored at step boundaries only;
// the browser is never abandoned mid-mutation.
func (s *ApplicationService) Apply(ctx context.Context, session *Session, job models.JobStub, applicant models.ApplicantProfile, materials models.Materials) (models.ApplicationResult, error) {
	var result models.ApplicationResult

	if strings.TrimSpace(applicant.Email) == "" {
		result.Outcome = models.OutcomeRequiresManual
		result.Reason = "profile has no email address"
		return result, nil
	}
	if materials.ResumePath != "" {
		if _, err := os.Stat(materials.ResumePath); err != nil {
			return result, fmt.Errorf("%w: %s", ErrResumeFileMissing, materials.ResumePath)
		}
	}

	platform := DetectPlatform(job.URL)
	if err := s.sessions.NavigateChecked(ctx, session, s.sentinel, job.URL); err != nil {
		return result, err
	}
	page := session.Page()

	if s.loginWall(page) {
		result.Outcome = models.OutcomeRequiresManual
		result.Reason = "page demands a login before applying"
		return result, nil
	}

	if !s.enterForm(ctx, page, platform) {
		result.Outcome = models.OutcomeRequiresManual
		result.Reason = "no in-page apply affordance"
		return result, nil
	}

	applyURL := page.URL()
	log.Printf("=== Applying: %s at %s (cap %d steps) ===", job.Title, job.Company, s.cfg.MaxSteps)

	for step := 1; step <= s.cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Steps = step

		if s.sentinel.CheckRateLimited(page) {
			if err := s.sentinel.Cooldown(ctx); err != nil {
				return result, err
			}
		}
		if s.loginWall(page) {
			result.Outcome = models.OutcomeRequiresManual
			result.Reason = fmt.Sprintf("login wall appeared on step %d", step)
			return result, nil
		}

		filled, err := s.fillStep(ctx, page, applicant, materials)
		if errors.Is(err, errUploadRequired) {
			result.Outcome = models.OutcomeRequiresManual
			result.Reason = "form requires an upload no file was provided for"
			return result, nil
		}
		if err != nil {
			return result, err
		}
		result.FieldsFilled += filled
		log.Printf("Step %d: filled %d fields", step, filled)

		MouseJiggle(page)

		moved := s.advance(ctx, page, platform)
		if err := ctx.Err(); err != nil {
			return result, err
		}
		RandomDelay(s.cfg.MinActionDelay, s.cfg.MaxActionDelay)

		switch moved {
		case noControl:
			// Silence is not success: only an explicit confirmation turns a
			// dead end into Submitted.
			if s.successVisible(page, applyURL) {
				result.Outcome = models.OutcomeSubmitted
				return result, nil
			}
			result.Outcome = models.OutcomeBlocked
			result.Reason = fmt.Sprintf("no progression control on step %d and no confirmation", step)
			return result, nil

		case clickedSubmit:
			s.sessions.Pause()
			if s.successVisible(page, applyURL) {
				result.Outcome = models.OutcomeSubmitted
				return result, nil
			}
			if reason := s.errorVisible(page); reason != "" {
				result.Outcome = models.OutcomeBlocked
				result.Reason = fmt.Sprintf("after submit on step %d: %s", step, reason)
				return result, nil
			}
			// A mislabeled submit can be just another step; keep walking
			// under the cap.

		case clickedNext:
			s.sessions.Pause()
			if s.successVisible(page, applyURL) {
				result.Outcome = models.OutcomeSubmitted
				return result, nil
			}
		}
	}

	result.Outcome = models.OutcomeExhausted
	result.Reason = fmt.Sprintf("no terminal state within %d steps", s.cfg.MaxSteps)
	return result, nil
}

// enterForm clicks the apply affordance when the form is not already open.
// Returns false when there is nothing in-page to apply with, which the
// caller reports as RequiresManual.
func (s *ApplicationService) enterForm(ctx context.Context, page playwright.Page, platform *Platform) bool {
	selectors := append([]string{}, platform.InPageApplySelectors...)
	if platform.Name != genericPlatform.Name {
		selectors = append(selectors, genericPlatform.InPageApplySelectors...)
	}

	for _, selector := range selectors {
		affordance := page.Locator(selector).First()
		if n, err := affordance.Count(); err != nil || n == 0 {
			continue
		}
		if visible, _ := affordance.IsVisible(); !visible {
			continue
		}
		if !s.click(ctx, affordance, "apply") {
			continue
		}
		s.sessions.Pause()
		return true
	}

	// Direct ATS links land on the form itself with no apply button.
	return s.applicationFormOpen(page)
}

// applicationFormOpen distinguishes a real application form from incidental
// page furniture like a navbar search box.
func (s *ApplicationService) applicationFormOpen(page playwright.Page) bool {
	if n, err := page.Locator("input[type='file']").Count(); err == nil && n > 0 {
		return true
	}
	controls := page.Locator("form input:visible, form select:visible, form textarea:visible")
	n, err := controls.Count()
	return err == nil && n >= 3
}

// fillStep collects the current step's fields and fills every one it can
// answer confidently. Per-field failures are logged and skipped; the only
// error that escapes is a missing required upload or a dead context.
func (s *ApplicationService) fillStep(ctx context.Context, page playwright.Page, applicant models.ApplicantProfile, materials models.Materials) (int, error) {
	fields, err := CollectFields(page)
	if err != nil {
		return 0, err
	}

	filled := 0
	for _, field := range fields {
		if err := ctx.Err(); err != nil {
			return filled, err
		}
		ok, err := s.fillField(ctx, field, applicant, materials)
		if err != nil {
			return filled, err
		}
		if ok {
			filled++
			RandomDelay(s.cfg.MinActionDelay, s.cfg.MaxActionDelay)
		}
	}
	return filled, nil
}

func (s *ApplicationService) fillField(ctx context.Context, field FormField, applicant models.ApplicantProfile, materials models.Materials) (bool, error) {
	switch field.Kind {
	case FieldEmail:
		return s.typeInto(ctx, field, applicant.Email), nil
	case FieldPhone:
		return s.typeInto(ctx, field, applicant.Phone), nil
	case FieldFirstName:
		return s.typeInto(ctx, field, applicant.FirstName), nil
	case FieldLastName:
		return s.typeInto(ctx, field, applicant.LastName), nil
	case FieldFullName:
		return s.typeInto(ctx, field, applicant.FullName()), nil
	case FieldLocation:
		return s.typeInto(ctx, field, applicant.Location), nil
	case FieldResume:
		if materials.ResumePath == "" {
			return false, errUploadRequired
		}
		return s.upload(ctx, field, materials.ResumePath), nil
	case FieldCoverLetter:
		if materials.CoverLetterPath == "" {
			return false, nil
		}
		return s.upload(ctx, field, materials.CoverLetterPath), nil
	case FieldSelect:
		answer, ok := AnswerFor(field.Label, s.heuristics.DefaultAnswers)
		if !ok {
			log.Printf("Skipping dropdown %q (no confident answer)", field.Label)
			return false, nil
		}
		choice, ok := PickOption(field.Options, answer)
		if !ok {
			log.Printf("Skipping dropdown %q (answer %q not among choices)", field.Label, answer)
			return false, nil
		}
		return s.selectChoice(ctx, field, choice), nil
	case FieldFreeText:
		answer, ok := AnswerFor(field.Label, s.heuristics.DefaultAnswers)
		if !ok {
			return false, nil
		}
		return s.typeInto(ctx, field, answer), nil
	}
	return false, nil
}

// advance clicks the step's progression control. Submit is probed first and
// wins when both are plausible; a step with neither control reports
// noControl so the caller can decide what the silence means.
func (s *ApplicationService) advance(ctx context.Context, page playwright.Page, platform *Platform) progress {
	if submits := s.resolver.TryResolve(page, platform, SubmitButton()); len(submits) > 0 {
		if s.click(ctx, submits[0], "submit") {
			return clickedSubmit
		}
	}
	nexts, err := s.resolver.Resolve(page, platform, NextButton())
	if err == nil && len(nexts) > 0 {
		if s.click(ctx, nexts[0], "next") {
			return clickedNext
		}
	}
	return noControl
}

func (s *ApplicationService) click(ctx context.Context, control playwright.Locator, label string) bool {
	err := s.retry.Do(ctx, "click "+label+" button", func() error {
		return control.Click()
	})
	if err != nil {
		log.Printf("⚠️ Could not click %s button: %v", label, err)
		return false
	}
	return true
}

func (s *ApplicationService) typeInto(ctx context.Context, field FormField, value string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	err := s.retry.Do(ctx, fmt.Sprintf("fill %q", field.Label), func() error {
		return s.sessions.HumanType(field.locator, value)
	})
	if err != nil {
		log.Printf("⚠️ Could not fill %q: %v", field.Label, err)
		return false
	}
	return true
}

func (s *ApplicationService) upload(ctx context.Context, field FormField, path string) bool {
	err := s.retry.Do(ctx, fmt.Sprintf("upload for %q", field.Label), func() error {
		return field.locator.SetInputFiles(path)
	})
	if err != nil {
		log.Printf("⚠️ Could not upload %s for %q: %v", path, field.Label, err)
		return false
	}
	log.Printf("✓ Uploaded %s for %q", path, field.Label)
	return true
}

func (s *ApplicationService) selectChoice(ctx context.Context, field FormField, choice string) bool {
	err := s.retry.Do(ctx, fmt.Sprintf("select %q", field.Label), func() error {
		_, err := field.locator.SelectOption(playwright.SelectOptionValues{Labels: &[]string{choice}})
		return err
	})
	if err != nil {
		log.Printf("⚠️ Could not select %q for %q: %v", choice, field.Label, err)
		return false
	}
	log.Printf("✓ Answered %q with %q", field.Label, choice)
	return true
}

// loginWall reports whether the page is asking for credentials instead of
// showing the job.
func (s *ApplicationService) loginWall(page playwright.Page) bool {
	password := page.Locator("input[type='password']").First()
	if n, err := password.Count(); err == nil && n > 0 {
		if visible, _ := password.IsVisible(); visible {
			return true
		}
	}
	text := pageText(page)
	for _, phrase := range s.heuristics.LoginPhrases {
		if strings.Contains(text, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

// successVisible checks for an explicit confirmation: a known phrase, or the
// URL having left the apply path for a confirmation-looking one.
func (s *ApplicationService) successVisible(page playwright.Page, applyURL string) bool {
	text := pageText(page)
	for _, phrase := range s.heuristics.SuccessPhrases {
		if strings.Contains(text, strings.ToLower(phrase)) {
			return true
		}
	}
	current := page.URL()
	if current != applyURL {
		lowered := strings.ToLower(current)
		for _, marker := range []string{"confirmation", "thank", "success"} {
			if strings.Contains(lowered, marker) {
				return true
			}
		}
	}
	return false
}

// errorVisible returns the first validation phrase found on the page, empty
// when the page shows no errors.
func (s *ApplicationService) errorVisible(page playwright.Page) string {
	text := pageText(page)
	for _, phrase := range s.heuristics.ErrorPhrases {
		if strings.Contains(text, strings.ToLower(phrase)) {
			return phrase
		}
	}
	return ""
}

// pageText flattens the title and visible body into one lowered haystack.
func pageText(page playwright.Page) string {
	var parts []string
	if title, err := page.Title(); err == nil && title != "" {
		parts = append(parts, title)
	}
	if body, err := page.Locator("body").InnerText(); err == nil && body != "" {
		parts = append(parts, body)
	}
	return strings.ToLower(strings.Join(parts, "\n"))
}
