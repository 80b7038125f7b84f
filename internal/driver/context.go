package driver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/mfriesen/actionreplay/internal/domain"
)

const (
	cookieDomain = ".facebook.com"

	authMarkerSelector   = `[data-testid="fb-logo"], [aria-label="Facebook"]`
	likeButtonSelector   = `[data-testid="like"], [aria-label*="Like"], [aria-label*="React"]`
	followButtonSelector = `[data-testid="follow"], [aria-label*="Follow"]`
	commentBoxSelector   = `[data-testid="comment"], [aria-label*="comment" i], [placeholder*="comment" i]`

	hoverSettle = 500 * time.Millisecond
)

// pageContext is one ephemeral automation context backed by a browser page.
type pageContext struct {
	page    *rod.Page
	release sync.Once
}

func (p *pageContext) ApplyCredential(_ context.Context, cred domain.Credential) error {
	params := cookieParams(cred.Reveal())
	if len(params) == 0 {
		return fmt.Errorf("credential material holds no cookies")
	}
	if err := p.page.SetCookies(params); err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	return nil
}

func (p *pageContext) Navigate(_ context.Context, uri string, timeout time.Duration) error {
	page := p.page.Timeout(timeout)
	if err := page.Navigate(uri); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", uri, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("page did not finish loading: %w", err)
	}
	// Stability is best-effort; a busy page is still usable.
	_ = page.WaitStable(time.Second)
	return nil
}

func (p *pageContext) ProbeAuthenticated(ctx context.Context, timeout time.Duration) (bool, error) {
	_, err := p.page.Timeout(timeout).Element(authMarkerSelector)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		// Marker absent within the timeout: not authenticated.
		return false, nil
	}
	return true, nil
}

func (p *pageContext) DispatchAction(_ context.Context, kind domain.ActionKind, comment string, timeout time.Duration) error {
	// A silent redirect to the login surface mid-action is the explicit
	// session-invalid signal.
	if info, err := p.page.Info(); err == nil {
		if strings.Contains(info.URL, "/login") || strings.Contains(info.URL, "checkpoint") {
			return domain.ErrSessionInvalid
		}
	}

	page := p.page.Timeout(timeout)
	switch {
	case kind.IsReaction():
		return p.react(page, kind)
	case kind == domain.KindFollow:
		return p.follow(page)
	case kind == domain.KindComment:
		return p.comment(page, comment)
	default:
		return fmt.Errorf("unknown action kind %q", string(kind))
	}
}

func (p *pageContext) react(page *rod.Page, kind domain.ActionKind) error {
	likeButton, err := page.Element(likeButtonSelector)
	if err != nil {
		return fmt.Errorf("like button not found: %w", err)
	}

	if kind == domain.KindLike {
		if err := likeButton.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("failed to click like: %w", err)
		}
		return nil
	}

	// Other reactions sit in the flyout behind a hover on the like button.
	if err := likeButton.Hover(); err != nil {
		return fmt.Errorf("failed to open reaction flyout: %w", err)
	}
	time.Sleep(hoverSettle)

	selector := fmt.Sprintf(`[data-testid=%q], [aria-label*=%q]`, string(kind), string(kind))
	reaction, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("reaction %s not found: %w", kind, err)
	}
	if err := reaction.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click reaction %s: %w", kind, err)
	}
	return nil
}

func (p *pageContext) follow(page *rod.Page) error {
	followButton, err := page.Element(followButtonSelector)
	if err != nil {
		return fmt.Errorf("follow button not found: %w", err)
	}
	if err := followButton.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click follow: %w", err)
	}
	return nil
}

func (p *pageContext) comment(page *rod.Page, text string) error {
	box, err := page.Element(commentBoxSelector)
	if err != nil {
		return fmt.Errorf("comment box not found: %w", err)
	}
	if err := box.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to focus comment box: %w", err)
	}
	if err := box.Input(text); err != nil {
		return fmt.Errorf("failed to type comment: %w", err)
	}
	if err := page.Keyboard.Type(input.Enter); err != nil {
		return fmt.Errorf("failed to submit comment: %w", err)
	}
	return nil
}

func (p *pageContext) Release() {
	p.release.Do(func() {
		_ = p.page.Close()
	})
}

func cookieParams(material string) []*proto.NetworkCookieParam {
	var params []*proto.NetworkCookieParam
	for _, part := range strings.Split(material, ";") {
		name, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found || name == "" {
			continue
		}
		params = append(params, &proto.NetworkCookieParam{
			Name:   name,
			Value:  value,
			Domain: cookieDomain,
		})
	}
	return params
}

var _ domain.DriverContext = (*pageContext)(nil)
