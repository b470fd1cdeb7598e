package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobpilot/config"
	"jobpilot/models"
)

// progressionQuery is the selector semanticButtons scans for progression
// controls.
const progressionQuery = "button, input[type='submit'], [role='button']"

var testApplicant = models.ApplicantProfile{
	FirstName: "Dana",
	LastName:  "Reyes",
	Email:     "dana@example.com",
	Phone:     "+1 555 0100",
	Location:  "Austin, TX",
}

var testJob = models.JobStub{
	Title:   "Backend Engineer",
	Company: "Initech",
	URL:     "https://boards.example.com/careers/123",
	Source:  "generic",
}

func newApplyService(cfg config.AutomationConfig) *ApplicationService {
	retry := NewRetryPolicy(cfg.MaxAttempts, cfg.BaseDelay)
	sentinel, _ := quietSentinel()
	return NewApplicationService(cfg, nil, NewSessionService(cfg, retry), NewResolverService(nil, nil), sentinel)
}

// jobPage is the landing step: a posting with one Apply button that opens the
// form when clicked.
func jobPage(onApply func()) pageStep {
	return pageStep{
		body: "Backend Engineer at Initech. A few guided steps to apply.",
		elements: map[string][]*fakeElement{
			"button:has-text('Apply')": {button("Apply", onApply)},
		},
	}
}

func TestApplyWalksMultiStepFormToConfirmation(t *testing.T) {
	page := newScriptedPage("about:blank")

	email := input(map[string]string{"type": "email", "aria-label": "Email address"})
	phone := input(map[string]string{"type": "tel", "aria-label": "Phone number"})
	prefilled := input(map[string]string{"aria-label": "First name"})
	prefilled.value = "Dana"
	checkbox := input(map[string]string{"type": "checkbox", "aria-label": "Subscribe to updates"})

	sponsorship := &fakeElement{
		visible: true,
		attrs:   map[string]string{"aria-label": "Do you require visa sponsorship?"},
		children: map[string][]*fakeElement{
			"option": {
				{text: "Select an option"},
				{text: "Yes"},
				{text: "No"},
			},
		},
	}

	next := button("Next", func() { page.cur = 2 })
	submit := button("Submit application", func() { page.cur = 3 })

	page.steps = []pageStep{
		jobPage(func() { page.cur = 1 }),
		{
			body: "Step 1 of 2. Tell us about yourself.",
			elements: map[string][]*fakeElement{
				"input:visible":  {email, phone, prefilled, checkbox},
				progressionQuery: {next},
			},
		},
		{
			body: "Step 2 of 2. A few screening questions.",
			elements: map[string][]*fakeElement{
				"select:visible":        {sponsorship},
				"button[type='submit']": {submit},
			},
		},
		{
			body: "Thank you for applying! We will be in touch.",
		},
	}

	svc := newApplyService(testAutomationConfig())
	result, err := svc.Apply(context.Background(), &Session{page: page}, testJob, testApplicant, models.Materials{})

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSubmitted, result.Outcome)
	assert.Equal(t, 2, result.Steps)
	assert.Equal(t, 3, result.FieldsFilled, "email, phone and the sponsorship dropdown")

	assert.Equal(t, "dana@example.com", email.value)
	assert.Equal(t, "+1 555 0100", phone.value)
	assert.Equal(t, "Dana", prefilled.value, "already-filled inputs must not be typed into")
	assert.Empty(t, checkbox.value, "checkboxes are out of scope for automated answers")
	assert.Equal(t, []string{"No"}, sponsorship.selected)
}

func TestApplyReportsBlockedWhenFormDeadEnds(t *testing.T) {
	page := newScriptedPage("about:blank")
	page.steps = []pageStep{
		jobPage(func() { page.cur = 1 }),
		{body: "Something went wrong loading this application."},
	}

	svc := newApplyService(testAutomationConfig())
	result, err := svc.Apply(context.Background(), &Session{page: page}, testJob, testApplicant, models.Materials{})

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeBlocked, result.Outcome)
	assert.Equal(t, 1, result.Steps)
	assert.Contains(t, result.Reason, "no progression control on step 1")
}

func TestApplyExhaustsStepCap(t *testing.T) {
	page := newScriptedPage("about:blank")
	next := button("Next", nil) // advances nowhere: the form is stuck in a loop
	page.steps = []pageStep{
		{
			body: "Step 1 of many.",
			elements: map[string][]*fakeElement{
				"button:has-text('Apply')": {button("Apply", nil)},
				progressionQuery:           {next},
			},
		},
	}

	cfg := testAutomationConfig()
	cfg.MaxSteps = 3
	svc := newApplyService(cfg)
	result, err := svc.Apply(context.Background(), &Session{page: page}, testJob, testApplicant, models.Materials{})

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeExhausted, result.Outcome)
	assert.Equal(t, 3, result.Steps)
	assert.Equal(t, 3, next.clicks)
	assert.Contains(t, result.Reason, "no terminal state within 3 steps")
}

func TestApplyRequiresManualWithoutEmail(t *testing.T) {
	svc := newApplyService(testAutomationConfig())

	applicant := testApplicant
	applicant.Email = "   "
	result, err := svc.Apply(context.Background(), &Session{}, testJob, applicant, models.Materials{})

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeRequiresManual, result.Outcome)
	assert.Equal(t, "profile has no email address", result.Reason)
	assert.Zero(t, result.Steps)
}

func TestApplyFailsFastWhenResumeFileMissing(t *testing.T) {
	svc := newApplyService(testAutomationConfig())

	materials := models.Materials{ResumePath: filepath.Join(t.TempDir(), "nope.pdf")}
	_, err := svc.Apply(context.Background(), &Session{}, testJob, testApplicant, materials)

	assert.ErrorIs(t, err, ErrResumeFileMissing)
}

func TestApplyDetectsLoginWall(t *testing.T) {
	page := newScriptedPage("about:blank", pageStep{
		body: "Welcome back.",
		elements: map[string][]*fakeElement{
			"input[type='password']": {input(map[string]string{"type": "password"})},
		},
	})

	svc := newApplyService(testAutomationConfig())
	result, err := svc.Apply(context.Background(), &Session{page: page}, testJob, testApplicant, models.Materials{})

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeRequiresManual, result.Outcome)
	assert.Equal(t, "page demands a login before applying", result.Reason)
}

func TestApplyDetectsLoginWallByPhrase(t *testing.T) {
	page := newScriptedPage("about:blank", pageStep{
		body: "Sign in to continue to your saved jobs.",
	})

	svc := newApplyService(testAutomationConfig())
	result, err := svc.Apply(context.Background(), &Session{page: page}, testJob, testApplicant, models.Materials{})

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeRequiresManual, result.Outcome)
}

func TestApplyRequiresManualWithoutApplyAffordance(t *testing.T) {
	page := newScriptedPage("about:blank", pageStep{
		body: "This role is posted externally. Visit the company site to proceed.",
	})

	svc := newApplyService(testAutomationConfig())
	result, err := svc.Apply(context.Background(), &Session{page: page}, testJob, testApplicant, models.Materials{})

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeRequiresManual, result.Outcome)
	assert.Equal(t, "no in-page apply affordance", result.Reason)
}

func TestApplyTreatsConfirmationURLAsSuccess(t *testing.T) {
	page := newScriptedPage("about:blank")
	submit := button("Submit", func() {
		page.cur = 2
		page.url = "https://boards.example.com/careers/123/confirmation"
	})
	page.steps = []pageStep{
		jobPage(func() { page.cur = 1 }),
		{
			body: "Review your application.",
			elements: map[string][]*fakeElement{
				"button[type='submit']": {submit},
			},
		},
		{body: "We appreciate your interest in Initech."},
	}

	svc := newApplyService(testAutomationConfig())
	result, err := svc.Apply(context.Background(), &Session{page: page}, testJob, testApplicant, models.Materials{})

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSubmitted, result.Outcome, "leaving the apply path for a confirmation URL counts")
}

func TestApplyReportsBlockedAfterSubmitError(t *testing.T) {
	page := newScriptedPage("about:blank")
	submit := button("Submit", func() { page.cur = 2 })
	page.steps = []pageStep{
		jobPage(func() { page.cur = 1 }),
		{
			body: "Almost done.",
			elements: map[string][]*fakeElement{
				"button[type='submit']": {submit},
			},
		},
		{body: "Phone number is required."},
	}

	svc := newApplyService(testAutomationConfig())
	result, err := svc.Apply(context.Background(), &Session{page: page}, testJob, testApplicant, models.Materials{})

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeBlocked, result.Outcome)
	assert.Contains(t, result.Reason, "after submit on step 1")
	assert.Contains(t, result.Reason, "is required")
}

func TestApplyUploadsResume(t *testing.T) {
	resumePath := filepath.Join(t.TempDir(), "resume.pdf")
	require.NoError(t, os.WriteFile(resumePath, []byte("%PDF-1.4"), 0o644))

	page := newScriptedPage("about:blank")
	resume := input(map[string]string{"type": "file", "aria-label": "Upload resume"})
	cover := input(map[string]string{"type": "file", "aria-label": "Cover letter (optional)"})
	submit := button("Submit", func() { page.cur = 2 })
	page.steps = []pageStep{
		jobPage(func() { page.cur = 1 }),
		{
			body: "Attach your documents.",
			elements: map[string][]*fakeElement{
				"input[type='file']":    {resume, cover},
				"button[type='submit']": {submit},
			},
		},
		{body: "Thanks for applying!"},
	}

	svc := newApplyService(testAutomationConfig())
	result, err := svc.Apply(context.Background(), &Session{page: page}, testJob, testApplicant, models.Materials{ResumePath: resumePath})

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSubmitted, result.Outcome)
	assert.Equal(t, 1, result.FieldsFilled)
	assert.Equal(t, []string{resumePath}, resume.uploaded)
	assert.Empty(t, cover.uploaded, "no cover letter was provided, so none is uploaded")
}

func TestApplyRequiresManualForMissingUpload(t *testing.T) {
	page := newScriptedPage("about:blank")
	page.steps = []pageStep{
		jobPage(func() { page.cur = 1 }),
		{
			body: "Attach your documents.",
			elements: map[string][]*fakeElement{
				"input[type='file']": {input(map[string]string{"type": "file", "aria-label": "Upload resume"})},
			},
		},
	}

	svc := newApplyService(testAutomationConfig())
	result, err := svc.Apply(context.Background(), &Session{page: page}, testJob, testApplicant, models.Materials{})

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeRequiresManual, result.Outcome)
	assert.Equal(t, "form requires an upload no file was provided for", result.Reason)
}

func TestApplyHonorsCancellationUpFront(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newApplyService(testAutomationConfig())
	_, err := svc.Apply(ctx, &Session{page: newScriptedPage("about:blank")}, testJob, testApplicant, models.Materials{})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestApplyStopsAtStepBoundaryOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	page := newScriptedPage("about:blank")
	next := button("Next", func() { cancel() })
	page.steps = []pageStep{
		jobPage(func() { page.cur = 1 }),
		{
			body: "Step 1.",
			elements: map[string][]*fakeElement{
				progressionQuery: {next},
			},
		},
	}

	svc := newApplyService(testAutomationConfig())
	result, err := svc.Apply(ctx, &Session{page: page}, testJob, testApplicant, models.Materials{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, result.Steps)
	assert.Equal(t, 1, next.clicks, "the in-flight click finishes before the walk stops")
}
