package services

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// SentinelService detects rate-limit and challenge pages after navigation and
// forces a cooldown before further action. Detection is a plain phrase scan:
// false negatives are expected and acceptable, while a false positive only
// costs one cheap wait.
type SentinelService struct {
	phrases  []string
	duration time.Duration

	mu    sync.Mutex
	calls int

	// sleep is replaced in tests.
	sleep func(context.Context, time.Duration) error
}

func NewSentinelService(phrases []string, cooldownMinutes int) *SentinelService {
	if cooldownMinutes <= 0 {
		cooldownMinutes = 10
	}
	return &SentinelService{
		phrases:  lowerAll(phrases),
		duration: time.Duration(cooldownMinutes) * time.Minute,
		sleep:    sleepContext,
	}
}

// CheckRateLimited scans the page title and rendered text for block phrases.
func (s *SentinelService) CheckRateLimited(page playwright.Page) bool {
	if title, err := page.Title(); err == nil {
		if phrase := s.match(title); phrase != "" {
			log.Printf("⚠️ Rate-limit signal in page title: %q", phrase)
			return true
		}
	}

	text, err := page.Locator("body").InnerText()
	if err != nil {
		// Rendered text unavailable; fall back to raw markup.
		content, cerr := page.Content()
		if cerr != nil {
			return false
		}
		text = content
	}
	if phrase := s.match(text); phrase != "" {
		log.Printf("⚠️ Rate-limit signal detected: %q", phrase)
		return true
	}
	return false
}

// Cooldown blocks for the configured duration. It is the only intentionally
// long wait in the system and must stay interruptible by cancellation.
func (s *SentinelService) Cooldown(ctx context.Context) error {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()

	log.Printf("Rate limited, cooling down for %v (cooldown #%d)", s.duration, call)
	return s.sleep(ctx, s.duration)
}

// CooldownCalls reports how many cooldowns this sentinel has triggered.
func (s *SentinelService) CooldownCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *SentinelService) match(text string) string {
	lower := strings.ToLower(text)
	for _, phrase := range s.phrases {
		if strings.Contains(lower, phrase) {
			return phrase
		}
	}
	return ""
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, value := range values {
		out[i] = strings.ToLower(value)
	}
	return out
}
