// Package driver implements the action driver on go-rod: a shared headless
// browser from which each execution borrows an ephemeral page context.
// go-rod gives us auto-wait on elements and proper cleanup without zombie
// browser processes.
package driver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/mfriesen/actionreplay/internal/domain"
)

const (
	loginURL  = "https://www.facebook.com/login"
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	loginTimeout = 30 * time.Second
)

// Browser owns one browser process shared by all contexts. Launch is lazy:
// the process starts on the first context request.
type Browser struct {
	mu       sync.Mutex
	headless bool
	browser  *rod.Browser
}

func New(headless bool) *Browser {
	return &Browser{headless: headless}
}

func (b *Browser) ensureBrowser() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return b.browser, nil
	}

	path, _ := launcher.LookPath()
	l := launcher.New().Bin(path).Headless(b.headless).NoSandbox(true)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	b.browser = browser
	return browser, nil
}

// NewContext opens a fresh page. The caller releases it on every exit path.
func (b *Browser) NewContext(ctx context.Context) (domain.DriverContext, error) {
	browser, err := b.ensureBrowser()
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	page = page.Context(ctx)

	_ = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent})

	return &pageContext{page: page}, nil
}

// Login drives the login form and harvests the resulting cookie set.
func (b *Browser) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	dc, err := b.NewContext(ctx)
	if err != nil {
		return nil, err
	}
	defer dc.Release()
	pc := dc.(*pageContext)

	page := pc.page.Timeout(loginTimeout)
	if err := page.Navigate(loginURL); err != nil {
		return nil, fmt.Errorf("failed to open login page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("login page did not load: %w", err)
	}

	if err := fillField(page, "#email", email); err != nil {
		return nil, err
	}
	if err := fillField(page, "#pass", password); err != nil {
		return nil, err
	}

	submit, err := page.Element(`[name="login"]`)
	if err != nil {
		return nil, fmt.Errorf("login button not found: %w", err)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, fmt.Errorf("failed to submit login: %w", err)
	}
	_ = page.WaitStable(time.Second)

	info, err := page.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to read page state: %w", err)
	}
	if strings.Contains(info.URL, "login") || strings.Contains(info.URL, "checkpoint") {
		return nil, fmt.Errorf("%w: credentials rejected or checkpoint required", domain.ErrSessionInvalid)
	}

	cookies, err := page.Cookies(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	material := cookieString(cookies)
	cred := domain.NewCredential(material)

	identity, ok := IdentityFromCredential(cred)
	if !ok {
		identity = fmt.Sprintf("temp_%d", time.Now().UnixMilli())
	}

	return &domain.LoginResult{Identity: identity, Credential: cred}, nil
}

// Close shuts the browser process down.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		_ = b.browser.Close()
		b.browser = nil
	}
}

func fillField(page *rod.Page, selector, value string) error {
	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("field %s not found: %w", selector, err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("failed to fill %s: %w", selector, err)
	}
	return nil
}

func cookieString(cookies []*proto.NetworkCookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// IdentityFromCredential extracts the platform user id from the c_user
// cookie inside the credential material.
func IdentityFromCredential(cred domain.Credential) (string, bool) {
	for _, part := range strings.Split(cred.Reveal(), ";") {
		name, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if found && name == "c_user" && value != "" {
			return value, true
		}
	}
	return "", false
}

var (
	_ domain.ActionDriver = (*Browser)(nil)
	_ domain.LoginDriver  = (*Browser)(nil)
)
