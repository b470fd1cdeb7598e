package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// AnswerRule maps question-text patterns to a conservative default answer.
// A rule fires only when the question text contains one of its patterns;
// unmatched questions are left untouched.
type AnswerRule struct {
	Match  []string `yaml:"match"`
	Answer string   `yaml:"answer"`
}

// Heuristics are the literal lookup tables the engine consults: block-page
// phrases, success/error indicators, default answers, and per-platform
// selector overrides. They are data, expected to rot and be replaced, so
// they live in an optional YAML file rather than in code.
type Heuristics struct {
	RateLimitPhrases []string     `yaml:"rate_limit_phrases"`
	LoginPhrases     []string     `yaml:"login_phrases"`
	SuccessPhrases   []string     `yaml:"success_phrases"`
	ErrorPhrases     []string     `yaml:"error_phrases"`
	RedFlagWords     []string     `yaml:"red_flag_words"`
	DefaultAnswers   []AnswerRule `yaml:"default_answers"`
	// Selectors maps platform -> intent -> ordered structural selectors.
	// Entries here replace the built-in table for that platform/intent pair.
	Selectors map[string]map[string][]string `yaml:"selectors"`
}

// DefaultHeuristics returns the built-in tables.
func DefaultHeuristics() *Heuristics {
	return &Heuristics{
		RateLimitPhrases: []string{
			"rate limit",
			"too many requests",
			"please slow down",
			"unusual activity",
			"temporarily blocked",
			"security check",
			"prove you're not a robot",
			"verify you are human",
			"captcha",
		},
		LoginPhrases: []string{
			"sign in to continue",
			"log in to apply",
			"sign in to apply",
			"create an account to apply",
			"join now to apply",
		},
		SuccessPhrases: []string{
			"application submitted",
			"application received",
			"thank you for applying",
			"thanks for applying",
			"successfully submitted",
			"your application has been",
			"we have received your application",
		},
		ErrorPhrases: []string{
			"is required",
			"this field is required",
			"please fill",
			"please complete",
			"fix the errors",
			"invalid email",
		},
		RedFlagWords: []string{
			"senior",
			"sr.",
			"staff",
			"principal",
			"director",
			"10+ years",
			"security clearance",
			"unpaid",
		},
		DefaultAnswers: []AnswerRule{
			{Match: []string{"require sponsorship", "visa sponsorship", "need sponsorship", "sponsorship now or in the future"}, Answer: "No"},
			{Match: []string{"legally authorized", "authorized to work", "eligible to work"}, Answer: "Yes"},
			{Match: []string{"at least 18", "18 years of age", "over 18"}, Answer: "Yes"},
			{Match: []string{"previously been employed", "worked for this company before", "former employee"}, Answer: "No"},
			{Match: []string{"background check"}, Answer: "Yes"},
			{Match: []string{"non-compete", "noncompete"}, Answer: "No"},
			{Match: []string{"veteran status", "protected veteran"}, Answer: "I am not a protected veteran"},
			{Match: []string{"disability"}, Answer: "I do not want to answer"},
			{Match: []string{"gender", "race", "ethnicity"}, Answer: "Decline to self identify"},
		},
	}
}

// LoadHeuristics returns the defaults overlaid with whatever the YAML file at
// path provides. A missing file is fine; a malformed one is not.
func LoadHeuristics(path string) *Heuristics {
	h := DefaultHeuristics()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: could not read heuristics file %s: %v", path, err)
		}
		return h
	}

	overlay := &Heuristics{}
	if err := yaml.Unmarshal(data, overlay); err != nil {
		log.Fatalf("Error parsing heuristics file %s: %v", path, err)
	}

	if len(overlay.RateLimitPhrases) > 0 {
		h.RateLimitPhrases = overlay.RateLimitPhrases
	}
	if len(overlay.LoginPhrases) > 0 {
		h.LoginPhrases = overlay.LoginPhrases
	}
	if len(overlay.SuccessPhrases) > 0 {
		h.SuccessPhrases = overlay.SuccessPhrases
	}
	if len(overlay.ErrorPhrases) > 0 {
		h.ErrorPhrases = overlay.ErrorPhrases
	}
	if len(overlay.RedFlagWords) > 0 {
		h.RedFlagWords = overlay.RedFlagWords
	}
	if len(overlay.DefaultAnswers) > 0 {
		h.DefaultAnswers = overlay.DefaultAnswers
	}
	if len(overlay.Selectors) > 0 {
		h.Selectors = overlay.Selectors
	}
	return h
}
