// Package browser wraps playwright-go with the narrow surface the harness
// needs: session lifecycle, navigation, screenshots, and DOM capture.
package browser

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// Session owns one running Playwright instance and browser. Each parallel
// test worker opens its own pages off a shared session.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
}

// Launch starts Playwright and a Chromium browser.
func Launch(headless bool) (*Session, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	return &Session{pw: pw, browser: browser}, nil
}

// NewPage opens a page in a fresh, isolated browser context.
func (s *Session) NewPage() (*Page, error) {
	ctx, err := s.browser.NewContext()
	if err != nil {
		return nil, fmt.Errorf("could not create browser context: %w", err)
	}
	page, err := ctx.NewPage()
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	return &Page{page: page, ctx: ctx}, nil
}

// Close shuts down the browser and Playwright.
func (s *Session) Close() error {
	if err := s.browser.Close(); err != nil {
		s.pw.Stop()
		return fmt.Errorf("could not close browser: %w", err)
	}
	return s.pw.Stop()
}

// Page wraps a playwright page. It satisfies the healing pipeline's Page
// interface.
type Page struct {
	page playwright.Page
	ctx  playwright.BrowserContext
}

// URL returns the page's current URL.
func (p *Page) URL() string {
	return p.page.URL()
}

// Title returns the document title.
func (p *Page) Title() (string, error) {
	return p.page.Title()
}

// Goto navigates and waits for network idle.
func (p *Page) Goto(url string) error {
	if _, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	}); err != nil {
		return fmt.Errorf("could not navigate to %s: %w", url, err)
	}
	return nil
}

// Screenshot writes a full-page screenshot to path.
func (p *Page) Screenshot(path string) error {
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("could not capture screenshot: %w", err)
	}
	return nil
}

// ScreenshotBytes returns a full-page PNG capture, for the visual
// comparator.
func (p *Page) ScreenshotBytes() ([]byte, error) {
	data, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("could not capture screenshot: %w", err)
	}
	return data, nil
}

// ElementScreenshotBytes captures just the element matching selector.
func (p *Page) ElementScreenshotBytes(selector string) ([]byte, error) {
	data, err := p.page.Locator(selector).Screenshot()
	if err != nil {
		return nil, fmt.Errorf("could not capture element screenshot: %w", err)
	}
	return data, nil
}

// Content returns the page's full HTML.
func (p *Page) Content() (string, error) {
	return p.page.Content()
}

// Raw exposes the underlying playwright page for test bodies.
func (p *Page) Raw() playwright.Page {
	return p.page
}

// Close closes the page and its browser context.
func (p *Page) Close() error {
	if err := p.page.Close(); err != nil {
		return err
	}
	return p.ctx.Close()
}

// Install installs playwright browsers.
func Install() error {
	return playwright.Install()
}

// IsAvailable checks if playwright browsers are installed.
func IsAvailable() bool {
	pw, err := playwright.Run()
	if err != nil {
		return false
	}
	pw.Stop()
	return true
}
