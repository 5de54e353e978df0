package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"golang.org/x/sync/semaphore"

	"github.com/use-agent/upnext/config"
	"github.com/use-agent/upnext/engine"
	"github.com/use-agent/upnext/models"
)

// ErrManagerClosed is returned by AcquirePage after Close.
var ErrManagerClosed = errors.New("session manager closed")

// session is one live browser with its isolated context.
type session interface {
	NewPage() (*rod.Page, error)
	ClosePage(page *rod.Page)
	Close() error
}

// launchFunc starts a new session.
type launchFunc func(cfg config.BrowserConfig) (session, error)

// Manager owns the process-wide browsing session. The browser is launched
// lazily by the first AcquirePage and shared by every later request; each
// request gets its own page inside one isolated context.
//
// It is safe for concurrent use.
type Manager struct {
	cfg    config.BrowserConfig
	launch launchFunc
	pages  *semaphore.Weighted // nil when unbounded

	// launchMu serializes launches; mu guards the fields below and is
	// never held while Chromium starts.
	launchMu sync.Mutex
	mu       sync.Mutex
	sess     session
	closed   bool

	launches    atomic.Int64
	activePages atomic.Int32
}

// NewManager creates a Manager. No browser is started until the first
// AcquirePage.
func NewManager(cfg config.BrowserConfig) *Manager {
	return newManager(cfg, launchRod)
}

func newManager(cfg config.BrowserConfig, launch launchFunc) *Manager {
	m := &Manager{cfg: cfg, launch: launch}
	if cfg.MaxPages > 0 {
		m.pages = semaphore.NewWeighted(int64(cfg.MaxPages))
	}
	return m
}

// AcquirePage returns a fresh page in the shared context, launching the
// session first if needed. The caller must hand the page back with
// ReleasePage on every path.
func (m *Manager) AcquirePage(ctx context.Context) (*rod.Page, error) {
	if m.pages != nil {
		if err := m.pages.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("wait for page slot: %w", err)
		}
	}

	page, err := m.newPage()
	if err != nil {
		if m.pages != nil {
			m.pages.Release(1)
		}
		return nil, err
	}
	m.activePages.Add(1)
	return page, nil
}

func (m *Manager) newPage() (*rod.Page, error) {
	sess, err := m.current()
	if err != nil {
		return nil, err
	}

	page, err := sess.NewPage()
	if err != nil {
		// The browser is probably gone. Drop this generation so the next
		// caller relaunches.
		m.discard(sess)
		return nil, fmt.Errorf("create page: %w", err)
	}
	return page, nil
}

// current returns the live session. Concurrent first callers queue on
// launchMu so exactly one browser starts; Stats, ReleasePage and Close
// stay responsive meanwhile.
func (m *Manager) current() (session, error) {
	if sess, err := m.loaded(); sess != nil || err != nil {
		return sess, err
	}

	m.launchMu.Lock()
	defer m.launchMu.Unlock()

	if sess, err := m.loaded(); sess != nil || err != nil {
		return sess, err
	}

	sess, err := m.launch(m.cfg)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	m.launches.Add(1)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if err := sess.Close(); err != nil {
			slog.Debug("closing session launched after shutdown failed", "error", err)
		}
		return nil, ErrManagerClosed
	}
	m.sess = sess
	m.mu.Unlock()
	return sess, nil
}

// loaded returns the live session, or ErrManagerClosed, or neither.
func (m *Manager) loaded() (session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	return m.sess, nil
}

// discard forgets sess if it is still the current generation and closes it.
func (m *Manager) discard(sess session) {
	m.mu.Lock()
	if m.sess != sess {
		m.mu.Unlock()
		return
	}
	m.sess = nil
	m.mu.Unlock()

	slog.Warn("discarding browser session after page failure")
	if err := sess.Close(); err != nil {
		slog.Debug("closing discarded session failed", "error", err)
	}
}

// ReleasePage closes a page obtained from AcquirePage. Errors are logged.
func (m *Manager) ReleasePage(page *rod.Page) {
	if page == nil {
		return
	}
	m.mu.Lock()
	sess := m.sess
	m.mu.Unlock()
	if sess != nil {
		sess.ClosePage(page)
	}
	m.activePages.Add(-1)
	if m.pages != nil {
		m.pages.Release(1)
	}
}

// Close tears the session down. It is idempotent and safe to call when no
// page was ever acquired. Errors are logged, never returned.
func (m *Manager) Close() {
	m.mu.Lock()
	sess := m.sess
	m.sess = nil
	m.closed = true
	m.mu.Unlock()

	if sess == nil {
		return
	}
	slog.Info("session manager shutting down: closing browser")
	if err := sess.Close(); err != nil {
		slog.Warn("closing browser failed", "error", err)
	}
}

// Stats reports the session state.
func (m *Manager) Stats() models.SessionStats {
	m.mu.Lock()
	launched := m.sess != nil
	m.mu.Unlock()
	return models.SessionStats{
		Launched:    launched,
		Launches:    m.launches.Load(),
		ActivePages: int(m.activePages.Load()),
		MaxPages:    m.cfg.MaxPages,
	}
}

// rodSession is the real browser-backed session.
type rodSession struct {
	cfg       config.BrowserConfig
	launcher  *launcher.Launcher
	browser   *rod.Browser
	incognito *rod.Browser
}

// launchRod starts Chromium, connects to it and prepares one incognito
// context seeded with the consent and preference cookies.
func launchRod(cfg config.BrowserConfig) (session, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("mute-audio"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("lang"), localeTag(cfg))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	incognito, err := browser.Incognito()
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	if err := incognito.SetCookies(consentCookieParams(cfg)); err != nil {
		// Consent shaping is best effort.
		slog.Warn("seeding consent cookies failed", "error", err)
	}

	return &rodSession{cfg: cfg, launcher: l, browser: browser, incognito: incognito}, nil
}

// NewPage opens a page in the incognito context with the desktop identity
// applied before any navigation.
func (s *rodSession) NewPage() (*rod.Page, error) {
	page, err := s.incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}

	ua := s.cfg.UserAgent
	if ua == "" {
		ua = engine.DefaultUserAgent
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      ua,
		AcceptLanguage: engine.AcceptLanguage(s.cfg.Locale, s.cfg.Region),
	}); err != nil {
		slog.Warn("user agent override failed", "error", err)
	}

	if s.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}
	return page, nil
}

func (s *rodSession) ClosePage(page *rod.Page) {
	if err := page.Close(); err != nil {
		slog.Debug("closing page failed", "error", err)
	}
}

func (s *rodSession) Close() error {
	err := s.browser.Close()
	s.launcher.Kill()
	s.launcher.Cleanup()
	return err
}

// localeTag returns e.g. "en-US" for the --lang flag.
func localeTag(cfg config.BrowserConfig) string {
	hl, gl := cfg.Locale, cfg.Region
	if hl == "" {
		hl = engine.DefaultLocale
	}
	if gl == "" {
		gl = engine.DefaultRegion
	}
	return hl + "-" + gl
}

// consentCookieParams converts the shared consent cookies to CDP params.
func consentCookieParams(cfg config.BrowserConfig) []*proto.NetworkCookieParam {
	cookies := engine.ConsentCookies(cfg.Locale, cfg.Region)
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
			Secure: true,
		})
	}
	return params
}
