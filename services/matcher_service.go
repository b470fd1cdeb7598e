package services

import (
	"strings"

	"jobpilot/config"
	"jobpilot/models"
)

// MatcherService rates hydrated jobs against the run's keywords so the
// application loop can spend its budget on the best matches first.
type MatcherService struct {
	redFlags []string
	// Threshold is the minimum score worth applying to.
	Threshold int
}

func NewMatcherService(heuristics *config.Heuristics) *MatcherService {
	if heuristics == nil {
		heuristics = config.DefaultHeuristics()
	}
	return &MatcherService{
		redFlags:  heuristics.RedFlagWords,
		Threshold: 1,
	}
}

// Score rates a job on a 0-10 scale. Title hits dominate because titles are
// short and deliberate; a description is long enough to mention almost
// anything once.
func (m *MatcherService) Score(job *models.JobDetail, keywords []string, location string) int {
	score := 0
	title := foldKey(job.Title)
	description := strings.ToLower(job.Description)

	// keyword hits: +3 in the title, +1 in the description
	for _, keyword := range keywords {
		folded := foldKey(keyword)
		if folded == "" {
			continue
		}
		if strings.Contains(title, folded) {
			score += 3
		} else if strings.Contains(description, folded) {
			score++
		}
	}

	// location match +2; remote roles match any location
	jobLocation := foldKey(job.Location)
	if jobLocation != "" {
		if strings.Contains(jobLocation, "remote") {
			score += 2
		} else if location != "" && strings.Contains(jobLocation, foldKey(location)) {
			score += 2
		}
	}

	// red flag penalty -5
	haystack := strings.ToLower(job.Title + " " + job.Description)
	for _, flag := range m.redFlags {
		if strings.Contains(haystack, strings.ToLower(flag)) {
			score -= 5
			break
		}
	}

	// a low-confidence description weakens every signal above
	if job.LowConfidence && score > 0 {
		score--
	}

	if score > 10 {
		return 10
	}
	if score < 0 {
		return 0
	}
	return score
}

// ShouldApply gates the application loop; anything under the threshold is
// noise the run should not spend a form walk on.
func (m *MatcherService) ShouldApply(score int) bool {
	return score >= m.Threshold
}
