// Package browser provides shared chromedp configuration for pages that only
// render their tables client-side.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// DefaultUserAgent is a realistic Chrome user agent, also sent by plain HTTP fetches
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// AcceptLanguage keeps trend names in their original script regardless of
// the host locale
const AcceptLanguage = "en-US,en;q=0.9"

// Options returns chromedp allocator options for an unattended browser.
func Options(headless bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),

		// Hide navigator.webdriver
		chromedp.Flag("disable-blink-features", "AutomationControlled"),

		chromedp.UserAgent(DefaultUserAgent),
		chromedp.WindowSize(1366, 900),

		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	if headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}

	return opts
}

// RenderHTML loads url in a headless browser, waits for selector to be ready
// and returns the rendered document.
func RenderHTML(ctx context.Context, url, selector string, timeout time.Duration) (string, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, Options(true)...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	browserCtx, timeoutCancel := context.WithTimeout(browserCtx, timeout)
	defer timeoutCancel()

	var html string
	if err := chromedp.Run(browserCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": AcceptLanguage}),
		chromedp.Navigate(url),
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", url, err)
	}

	return html, nil
}
