package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html"

	"github.com/use-agent/upnext/extract"
	"github.com/use-agent/upnext/models"
)

// DefaultUserAgent is the desktop browser identity presented upstream.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"

// ConsentCookies returns the preference cookies that skip the consent
// interstitial and pin language and region.
func ConsentCookies(hl, gl string) []*http.Cookie {
	if hl == "" {
		hl = DefaultLocale
	}
	if gl == "" {
		gl = DefaultRegion
	}
	return []*http.Cookie{
		{Name: "CONSENT", Value: "YES+cb", Domain: ".youtube.com", Path: "/"},
		{Name: "SOCS", Value: "CAI", Domain: ".youtube.com", Path: "/"},
		{Name: "PREF", Value: "hl=" + hl + "&gl=" + gl, Domain: ".youtube.com", Path: "/"},
	}
}

// HTTPEngine fetches the initial markup without rendering. It never sees a
// render tree, so extraction runs the structured tiers against the inline
// data object and then the raw-document tiers.
type HTTPEngine struct {
	client    *http.Client
	base      string
	userAgent string
	hl, gl    string
}

// HTTPEngineConfig configures an HTTPEngine. Zero values select defaults.
type HTTPEngineConfig struct {
	Timeout   time.Duration
	UserAgent string
	Locale    string
	Region    string

	// BaseURL replaces the upstream watch endpoint. Used by tests.
	BaseURL string
}

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Go's http.Transport cannot speak h2 over a utls connection, so only
	// offer http/1.1.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// NewHTTPEngine creates an HTTPEngine with a Chrome-like TLS fingerprint.
func NewHTTPEngine(cfg HTTPEngineConfig) *HTTPEngine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("http_engine: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
	return newHTTPEngine(&http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}, cfg)
}

func newHTTPEngine(client *http.Client, cfg HTTPEngineConfig) *HTTPEngine {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = watchBase
	}
	return &HTTPEngine{client: client, base: cfg.BaseURL, userAgent: cfg.UserAgent, hl: cfg.Locale, gl: cfg.Region}
}

func (e *HTTPEngine) Name() string { return "http" }

// Fetch downloads the watch page for videoID. Every failure is reported
// as an internal error: this path has no rendering stage to blame.
func (e *HTTPEngine) Fetch(ctx context.Context, videoID string) (*extract.Snapshot, error) {
	body, err := e.fetch(ctx, watchURLAt(e.base, videoID, e.hl, e.gl))
	if err != nil {
		return nil, models.NewRecsError(models.ErrCodeInternal, "raw fetch failed", err)
	}

	if title := extractTitle(body); title != "" {
		slog.Debug("http_engine: fetched", "video_id", videoID, "title", title, "bytes", len(body))
	}

	return &extract.Snapshot{
		VideoID:     videoID,
		InitialData: extract.ParseInitialData(body),
		RawHTML:     body,
	}, nil
}

func (e *HTTPEngine) fetch(ctx context.Context, url string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("http_engine: build request: %w", err)
	}

	// Simulate browser-like headers.
	httpReq.Header.Set("User-Agent", e.userAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", AcceptLanguage(e.hl, e.gl))
	httpReq.Header.Set("Accept-Encoding", "identity")
	for _, c := range ConsentCookies(e.hl, e.gl) {
		httpReq.AddCookie(c)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("http_engine: do request: %w", err)
	}
	defer resp.Body.Close()

	// Read body with a 10 MB limit to prevent unbounded memory use.
	const maxBody = 10 << 20
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", fmt.Errorf("http_engine: read body: %w", err)
	}

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode >= 400 || !isHTMLContentType(ct) {
		return "", fmt.Errorf("http_engine: non-html or error status %d (content-type: %s)", resp.StatusCode, ct)
	}
	return string(body), nil
}

// AcceptLanguage builds the Accept-Language value for a locale and region,
// e.g. "en-US,en;q=0.9".
func AcceptLanguage(hl, gl string) string {
	if hl == "" {
		hl = DefaultLocale
	}
	if gl == "" {
		gl = DefaultRegion
	}
	return hl + "-" + gl + "," + hl + ";q=0.9"
}

// isHTMLContentType returns true if the content-type header looks like HTML.
func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// extractTitle uses the Go HTML tokenizer to find the first <title> element.
func extractTitle(htmlStr string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	inTitle := false
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		}
	}
}
