package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"jobpilot/config"
	"jobpilot/models"
)

// ErrRunActive means the user already has a run in flight. One run owns the
// browser profile exclusively, so a second cannot start until it ends.
var ErrRunActive = errors.New("a run is already active for this user")

// ErrRunNotFound means no run with that ID exists in the registry.
var ErrRunNotFound = errors.New("run not found")

const (
	RunStatusRunning  = "running"
	RunStatusFinished = "finished"
	RunStatusCanceled = "canceled"
	RunStatusFailed   = "failed"
)

// RunRequest describes one discovery-and-apply run.
type RunRequest struct {
	UserID          int      `json:"-"`
	Keywords        string   `json:"keywords" binding:"required"`
	Location        string   `json:"location"`
	Platforms       []string `json:"platforms"`
	MaxApplications int      `json:"maxApplications"`
}

// RunSummary is the live tally for a run. It is copied out under the run's
// lock, never handed to callers by reference.
type RunSummary struct {
	RunID          string     `json:"runId"`
	Status         string     `json:"status"`
	Keywords       string     `json:"keywords"`
	Location       string     `json:"location"`
	Discovered     int        `json:"discovered"`
	Applied        int        `json:"applied"`
	Submitted      int        `json:"submitted"`
	RequiresManual int        `json:"requiresManual"`
	Blocked        int        `json:"blocked"`
	Exhausted      int        `json:"exhausted"`
	Failed         int        `json:"failed"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"startedAt"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
}

// Run is one tracked run: its cancel handle plus the summary it mutates.
type Run struct {
	ID     string
	UserID int

	cancel  context.CancelFunc
	mu      sync.Mutex
	summary RunSummary
}

// Snapshot copies the summary out under the lock.
func (r *Run) Snapshot() RunSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

func (r *Run) update(change func(*RunSummary)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	change(&r.summary)
}

// RunnerService owns the end-to-end run: session, discovery, scoring,
// applications, persistence, notifications. Runs execute on their own
// goroutine with a background context so they outlive the HTTP request that
// started them.
type RunnerService struct {
	cfg          config.AutomationConfig
	sessions     *SessionService
	listings     *ListingService
	details      *DetailService
	matcher      *MatcherService
	applications *ApplicationService
	notifier     *NotifierService

	users    *models.UserModel
	profiles *models.ProfileModel
	jobs     *models.JobModel
	outcomes *models.ApplicationModel

	mu     sync.Mutex
	runs   map[string]*Run
	active map[int]string
}

func NewRunnerService(
	cfg config.AutomationConfig,
	sessions *SessionService,
	listings *ListingService,
	details *DetailService,
	matcher *MatcherService,
	applications *ApplicationService,
	notifier *NotifierService,
	users *models.UserModel,
	profiles *models.ProfileModel,
	jobs *models.JobModel,
	outcomes *models.ApplicationModel,
) *RunnerService {
	return &RunnerService{
		cfg:          cfg,
		sessions:     sessions,
		listings:     listings,
		details:      details,
		matcher:      matcher,
		applications: applications,
		notifier:     notifier,
		users:        users,
		profiles:     profiles,
		jobs:         jobs,
		outcomes:     outcomes,
		runs:         make(map[string]*Run),
		active:       make(map[int]string),
	}
}

// Start registers and launches a run for the user. Only one run per user may
// be active; the browser profile cannot be shared anyway.
func (s *RunnerService) Start(req RunRequest) (*Run, error) {
	if req.MaxApplications <= 0 {
		req.MaxApplications = s.cfg.MaxApplications
	}
	if len(req.Platforms) == 0 {
		req.Platforms = SearchablePlatforms()
	}

	s.mu.Lock()
	if _, busy := s.active[req.UserID]; busy {
		s.mu.Unlock()
		return nil, ErrRunActive
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &Run{
		ID:     newRunID(),
		UserID: req.UserID,
		cancel: cancel,
		summary: RunSummary{
			Status:    RunStatusRunning,
			Keywords:  req.Keywords,
			Location:  req.Location,
			StartedAt: time.Now(),
		},
	}
	run.summary.RunID = run.ID
	s.runs[run.ID] = run
	s.active[req.UserID] = run.ID
	s.mu.Unlock()

	go s.execute(ctx, run, req)
	return run, nil
}

// Get returns a copy of the run's summary, including finished runs. Another
// user's run is indistinguishable from a missing one.
func (s *RunnerService) Get(runID string, userID int) (RunSummary, error) {
	run, err := s.owned(runID, userID)
	if err != nil {
		return RunSummary{}, err
	}
	return run.Snapshot(), nil
}

// Cancel interrupts a run. The run winds down at its next step boundary; the
// session teardown still runs.
func (s *RunnerService) Cancel(runID string, userID int) error {
	run, err := s.owned(runID, userID)
	if err != nil {
		return err
	}
	run.update(func(sum *RunSummary) {
		if sum.Status == RunStatusRunning {
			sum.Status = RunStatusCanceled
		}
	})
	run.cancel()
	return nil
}

func (s *RunnerService) owned(runID string, userID int) (*Run, error) {
	s.mu.Lock()
	run, ok := s.runs[runID]
	s.mu.Unlock()
	if !ok || run.UserID != userID {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// CancelAll interrupts every active run; used on process shutdown.
func (s *RunnerService) CancelAll() {
	s.mu.Lock()
	runs := make([]*Run, 0, len(s.active))
	for _, runID := range s.active {
		if run, ok := s.runs[runID]; ok {
			runs = append(runs, run)
		}
	}
	s.mu.Unlock()

	for _, run := range runs {
		run.update(func(sum *RunSummary) {
			if sum.Status == RunStatusRunning {
				sum.Status = RunStatusCanceled
			}
		})
		run.cancel()
	}
}

func (s *RunnerService) execute(ctx context.Context, run *Run, req RunRequest) {
	defer s.finish(run)

	applicant, materials := s.loadApplicant(req.UserID)

	session, err := s.sessions.Open(ctx)
	if err != nil {
		s.fail(run, fmt.Errorf("could not open session: %v", err))
		return
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Printf("⚠️ Session close: %v", err)
		}
	}()

	if !session.Authenticated && s.cfg.LoginWait > 0 {
		if err := s.sessions.WaitForManualLogin(ctx, session, s.cfg.LoginWait); err != nil {
			s.fail(run, err)
			return
		}
	}

	stubs := s.discover(ctx, run, session, req)
	if ctx.Err() != nil {
		return
	}
	log.Printf("=== Discovery done: %d unique jobs across %d platforms ===", len(stubs), len(req.Platforms))

	s.applyLoop(ctx, run, session, req, stubs, applicant, materials)
}

// discover searches every requested platform and persists the stubs. A
// platform that yields nothing or breaks is logged and skipped; discovery is
// best-effort across sources.
func (s *RunnerService) discover(ctx context.Context, run *Run, session *Session, req RunRequest) []models.Job {
	var saved []models.Job

	for _, name := range req.Platforms {
		if ctx.Err() != nil {
			return saved
		}
		platform := PlatformByName(name)
		stubs, err := s.listings.Search(ctx, session, platform, req.Keywords, req.Location)
		if err != nil {
			log.Printf("⚠️ Search on %s failed: %v", name, err)
			continue
		}
		for _, stub := range stubs {
			job, err := s.jobs.SaveStub(stub)
			if err != nil {
				log.Printf("⚠️ Could not save job %s: %v", stub.URL, err)
				continue
			}
			saved = append(saved, *job)
		}
		run.update(func(sum *RunSummary) { sum.Discovered = len(saved) })
	}
	return saved
}

// applyLoop hydrates the most promising stubs and walks their forms, best
// match first, until the application budget or the job list runs out.
func (s *RunnerService) applyLoop(ctx context.Context, run *Run, session *Session, req RunRequest, jobs []models.Job, applicant models.ApplicantProfile, materials models.Materials) {
	keywords := splitKeywords(req.Keywords)

	// Pre-rank on stub titles so detail fetches go to likely matches first.
	sort.SliceStable(jobs, func(i, j int) bool {
		si := s.matcher.Score(&models.JobDetail{JobStub: jobs[i].Stub()}, keywords, req.Location)
		sj := s.matcher.Score(&models.JobDetail{JobStub: jobs[j].Stub()}, keywords, req.Location)
		return si > sj
	})

	applied := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		if applied >= req.MaxApplications {
			log.Printf("Application budget of %d spent", req.MaxApplications)
			return
		}

		if existing, err := s.outcomes.GetByJobID(run.UserID, job.ID); err == nil && existing != nil {
			log.Printf("Skipping %s (already has outcome %s)", job.URL, existing.Outcome)
			continue
		}

		detail, err := s.details.Fetch(ctx, session, job.Stub())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("⚠️ Detail fetch for %s failed: %v", job.URL, err)
			run.update(func(sum *RunSummary) { sum.Failed++ })
			continue
		}
		if err := s.jobs.UpdateDetail(job.ID, detail); err != nil {
			log.Printf("⚠️ Could not persist detail for %s: %v", job.URL, err)
		}

		score := s.matcher.Score(detail, keywords, req.Location)
		if err := s.jobs.UpdateMatchScore(job.ID, score); err != nil {
			log.Printf("⚠️ Could not persist score for %s: %v", job.URL, err)
		}
		if !s.matcher.ShouldApply(score) {
			log.Printf("Skipping %s (score %d below threshold)", job.URL, score)
			continue
		}

		var result models.ApplicationResult
		if detail.AppliesExternally {
			// Off-platform applications are surfaced, not attempted.
			result = models.ApplicationResult{
				Outcome: models.OutcomeRequiresManual,
				Reason:  "application hosted off-platform",
			}
		} else {
			result, err = s.applications.Apply(ctx, session, detail.JobStub, applicant, materials)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if errors.Is(err, ErrResumeFileMissing) {
					s.fail(run, err)
					return
				}
				log.Printf("⚠️ Application to %s failed: %v", job.URL, err)
				run.update(func(sum *RunSummary) { sum.Failed++ })
				continue
			}
			applied++
		}

		s.recordOutcome(run, job, detail.JobStub, result)
		RandomDelay(s.cfg.MinActionDelay*4, s.cfg.MaxActionDelay*4)
	}
}

func (s *RunnerService) recordOutcome(run *Run, job models.Job, stub models.JobStub, result models.ApplicationResult) {
	if _, err := s.outcomes.SaveOutcome(run.UserID, job.ID, &result); err != nil {
		log.Printf("⚠️ Could not save outcome for %s: %v", job.URL, err)
	}
	s.notifier.NotifyOutcome(stub, result)

	run.update(func(sum *RunSummary) {
		sum.Applied++
		switch result.Outcome {
		case models.OutcomeSubmitted:
			sum.Submitted++
		case models.OutcomeRequiresManual:
			sum.RequiresManual++
		case models.OutcomeBlocked:
			sum.Blocked++
		case models.OutcomeExhausted:
			sum.Exhausted++
		}
	})
	log.Printf("✓ %s at %s -> %s", stub.Title, stub.Company, result.Outcome)
}

// loadApplicant assembles contact fields and material paths for form
// filling. A thin or absent profile is not fatal here; the form walker
// reports RequiresManual when a hard precondition like the email is missing.
func (s *RunnerService) loadApplicant(userID int) (models.ApplicantProfile, models.Materials) {
	email := ""
	if user, err := s.users.GetByID(userID); err == nil && user != nil {
		email = user.Email
	}

	profile, err := s.profiles.GetByUserID(userID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("⚠️ Could not load profile for user %d: %v", userID, err)
		}
		return models.ApplicantProfile{Email: email}, models.Materials{}
	}
	return profile.Applicant(email), profile.MaterialPaths()
}

func (s *RunnerService) fail(run *Run, err error) {
	log.Printf("❌ Run %s failed: %v", run.ID, err)
	run.update(func(sum *RunSummary) {
		sum.Status = RunStatusFailed
		sum.Error = err.Error()
	})
	s.notifier.NotifyError("run "+run.ID, err)
}

// finish closes out the registry entry and sends the summary. Finished runs
// stay queryable; only the per-user active slot is released.
func (s *RunnerService) finish(run *Run) {
	run.update(func(sum *RunSummary) {
		now := time.Now()
		sum.FinishedAt = &now
		if sum.Status == RunStatusRunning {
			sum.Status = RunStatusFinished
		}
	})

	s.mu.Lock()
	if s.active[run.UserID] == run.ID {
		delete(s.active, run.UserID)
	}
	s.mu.Unlock()

	summary := run.Snapshot()
	s.notifier.NotifySummary(summary)
	log.Printf("=== Run %s %s: %d discovered, %d submitted, %d manual, %d blocked, %d exhausted ===",
		summary.RunID, summary.Status, summary.Discovered, summary.Submitted,
		summary.RequiresManual, summary.Blocked, summary.Exhausted)
}

func newRunID() string {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%X", bytes)
}

func splitKeywords(raw string) []string {
	var keywords []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			keywords = append(keywords, part)
		}
	}
	if len(keywords) > 0 {
		return keywords
	}
	return strings.Fields(raw)
}
