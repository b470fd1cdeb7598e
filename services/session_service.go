package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/time/rate"

	"jobpilot/config"
)

// ErrProfileLocked means the persistent profile directory is owned by another
// running browser. Retrying a locked profile is never productive, so this is
// a fail-fast precondition error.
var ErrProfileLocked = errors.New("browser profile is locked by another instance")

// userAgents is the rotation pool used when no fingerprint override is
// configured.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36 Edg/119.0.0.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// stealthScript runs on every new document and hides the signals naive
// bot-detection checks first: navigator.webdriver, an empty plugin list, and
// a missing window.chrome object.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3] });
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
window.chrome = window.chrome || { runtime: {} };
`

var launchArgs = []string{
	"--no-sandbox",
	"--disable-blink-features=AutomationControlled",
	"--disable-extensions",
	"--disable-plugins-discovery",
	"--disable-infobars",
	"--disable-dev-shm-usage",
	"--no-first-run",
	"--no-default-browser-check",
}

// Session owns one browser process for the lifetime of one run. Never shared
// across concurrent runs.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser // nil when a persistent profile context is used
	context playwright.BrowserContext
	page    playwright.Page

	UserAgent     string
	Authenticated bool

	closeOnce sync.Once
}

// Page returns the single live page the run drives.
func (s *Session) Page() playwright.Page {
	return s.page
}

// Close tears the session down: page, context, browser, driver, in order.
// It must run on every exit path so no browser process outlives the run, and
// it is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.page != nil {
			if err := s.page.Close(); err != nil {
				log.Printf("Error closing page: %v", err)
			}
		}
		if s.context != nil {
			if err := s.context.Close(); err != nil {
				log.Printf("Error closing browser context: %v", err)
			}
		}
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				log.Printf("Error closing browser: %v", err)
			}
		}
		if s.pw != nil {
			if err := s.pw.Stop(); err != nil {
				log.Printf("Error stopping playwright: %v", err)
			}
		}
		log.Println("✓ Browser session closed")
	})
	return nil
}

// SessionService launches and paces anti-detection browser sessions.
type SessionService struct {
	cfg   config.AutomationConfig
	retry *RetryPolicy
	// pacer bounds how often the session may load a new page.
	pacer *rate.Limiter
}

func NewSessionService(cfg config.AutomationConfig, retry *RetryPolicy) *SessionService {
	interval := cfg.NavInterval
	if interval <= 0 {
		interval = 4 * time.Second
	}
	return &SessionService{
		cfg:   cfg,
		retry: retry,
		pacer: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Open launches one browser session per the configured fingerprint, proxy and
// profile. The caller owns the returned session and must Close it on every
// exit path.
func (s *SessionService) Open(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ua := s.cfg.UserAgent
	if ua == "" {
		ua = userAgents[rand.Intn(len(userAgents))]
	}

	if s.cfg.ProfileDir != "" && profileLocked(s.cfg.ProfileDir) {
		return nil, fmt.Errorf("profile dir %s: %w", s.cfg.ProfileDir, ErrProfileLocked)
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %v", err)
	}
	session := &Session{pw: pw, UserAgent: ua}

	var proxy *playwright.Proxy
	if s.cfg.ProxyURL != "" {
		proxy = &playwright.Proxy{Server: s.cfg.ProxyURL}
	}

	if s.cfg.ProfileDir != "" {
		browserCtx, err := pw.Chromium.LaunchPersistentContext(s.cfg.ProfileDir, playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless:  playwright.Bool(s.cfg.Headless),
			Args:      launchArgs,
			UserAgent: playwright.String(ua),
			Viewport:  &playwright.Size{Width: 1920, Height: 1080},
			Proxy:     proxy,
		})
		if err != nil {
			_ = pw.Stop()
			if isProfileLockError(err) {
				return nil, fmt.Errorf("profile dir %s: %w", s.cfg.ProfileDir, ErrProfileLocked)
			}
			return nil, fmt.Errorf("could not launch persistent context: %v", err)
		}
		session.context = browserCtx
		// A persistent profile carries cookies from prior runs.
		session.Authenticated = true
	} else {
		browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(s.cfg.Headless),
			Args:     launchArgs,
			Proxy:    proxy,
		})
		if err != nil {
			_ = pw.Stop()
			return nil, fmt.Errorf("could not launch browser: %v", err)
		}
		session.browser = browser

		browserCtx, err := browser.NewContext(playwright.BrowserNewContextOptions{
			Viewport: &playwright.Size{
				Width:  1920,
				Height: 1080,
			},
			UserAgent: playwright.String(ua),
		})
		if err != nil {
			session.Close()
			return nil, fmt.Errorf("could not create context: %v", err)
		}
		session.context = browserCtx
	}

	if err := session.context.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
		log.Printf("Warning: could not install stealth script: %v", err)
	}

	// Persistent contexts come up with a page already open.
	if pages := session.context.Pages(); len(pages) > 0 {
		session.page = pages[0]
	} else {
		page, err := session.context.NewPage()
		if err != nil {
			session.Close()
			return nil, fmt.Errorf("could not create page: %v", err)
		}
		session.page = page
	}

	log.Printf("✓ Browser session opened (headless=%v)", s.cfg.Headless)
	return session, nil
}

// Navigate loads url on the session's page: waits on the pacer, goes through
// the retry executor, then settles with a human-like pause.
func (s *SessionService) Navigate(ctx context.Context, session *Session, url string) error {
	if err := s.pacer.Wait(ctx); err != nil {
		return err
	}
	err := s.retry.Do(ctx, fmt.Sprintf("navigate to %s", url), func() error {
		_, err := session.page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateNetworkidle,
			Timeout:   playwright.Float(30000),
		})
		return err
	})
	if err != nil {
		return err
	}
	RandomDelay(s.cfg.MinActionDelay, s.cfg.MaxActionDelay)
	return nil
}

// NavigateChecked navigates and gives the sentinel one cooldown-and-retry
// round before giving up. Bounded so a hard block cannot wait forever.
func (s *SessionService) NavigateChecked(ctx context.Context, session *Session, sentinel *SentinelService, url string) error {
	if err := s.Navigate(ctx, session, url); err != nil {
		return err
	}
	if !sentinel.CheckRateLimited(session.Page()) {
		return nil
	}
	if err := sentinel.Cooldown(ctx); err != nil {
		return err
	}
	if err := s.Navigate(ctx, session, url); err != nil {
		return err
	}
	if sentinel.CheckRateLimited(session.Page()) {
		return fmt.Errorf("still rate limited after cooldown at %s", url)
	}
	return nil
}

// HumanType clicks into an input and types one keystroke at a time with
// randomized spacing, the way a person would.
func (s *SessionService) HumanType(locator playwright.Locator, text string) error {
	if err := locator.Click(); err != nil {
		return err
	}
	delay := 50 + rand.Intn(100)
	return locator.Type(text, playwright.LocatorTypeOptions{
		Delay: playwright.Float(float64(delay)),
	})
}

// Pause sleeps one randomized action delay from the configured range.
func (s *SessionService) Pause() {
	RandomDelay(s.cfg.MinActionDelay, s.cfg.MaxActionDelay)
}

// WaitForManualLogin parks the run so an operator can log in by hand. Used
// when the credential collaborator selects manual-wait login mode.
func (s *SessionService) WaitForManualLogin(ctx context.Context, session *Session, wait time.Duration) error {
	if wait <= 0 {
		return nil
	}
	log.Printf("Waiting %v for manual login...", wait)
	if err := sleepContext(ctx, wait); err != nil {
		return err
	}
	session.Authenticated = true
	return nil
}

// RandomDelay waits for a random duration between min and max.
func RandomDelay(min, max time.Duration) {
	if min < 0 {
		min = 0
	}
	if max <= min {
		time.Sleep(min)
		return
	}
	time.Sleep(min + time.Duration(rand.Int63n(int64(max-min))))
}

// HumanScroll simulates human-like scrolling so lazily loaded listings
// render before extraction.
func HumanScroll(page playwright.Page) error {
	for i := 0; i < 5; i++ {
		if _, err := page.Evaluate("window.scrollBy(0, window.innerHeight / 2)"); err != nil {
			return err
		}
		RandomDelay(300*time.Millisecond, 900*time.Millisecond)
	}
	// Scroll back up a bit (random behavior)
	_, err := page.Evaluate("window.scrollBy(0, -200)")
	return err
}

// MouseJiggle moves the cursor to a few random points to avoid idle
// detection during long form fills.
func MouseJiggle(page playwright.Page) error {
	viewport := page.ViewportSize()
	if viewport == nil {
		return nil
	}
	for i := 0; i < 3; i++ {
		x := rand.Intn(viewport.Width)
		y := rand.Intn(viewport.Height)
		if err := page.Mouse().Move(float64(x), float64(y)); err != nil {
			return err
		}
		RandomDelay(100*time.Millisecond, 300*time.Millisecond)
	}
	return nil
}

// profileLocked checks for Chromium's singleton markers in the profile dir.
// Lstat because SingletonLock is usually a dangling symlink.
func profileLocked(dir string) bool {
	for _, marker := range []string{"SingletonLock", "SingletonSocket", "SingletonCookie"} {
		if _, err := os.Lstat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

func isProfileLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user data directory is already in use") ||
		strings.Contains(msg, "processsingleton") ||
		strings.Contains(msg, "singletonlock")
}
