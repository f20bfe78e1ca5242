// Package smokecheck runs a headless-browser visual check against a
// running frontend preview, the only consumer of chromedp in this
// repo: it loads the page, waits for the app root to render, and
// captures a screenshot plus any uncaught JavaScript exceptions. The
// API server's POST /smoke-check endpoint is its caller.
package smokecheck

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/cdproto/runtime"
)

// Result is the outcome of a single smoke check.
type Result struct {
	URL           string
	Screenshot    []byte
	ConsoleErrors []string
	Passed        bool
}

// Checker drives a headless Chrome instance to load a page and report
// whether it rendered cleanly.
type Checker struct {
	// WaitSelector is a CSS selector the page must render before the
	// check is considered successful. Empty means only navigation is
	// awaited.
	WaitSelector string

	// Timeout bounds the whole check, including browser startup.
	Timeout time.Duration
}

// NewChecker builds a Checker with the defaults used for the generated
// React frontend: wait for the app's root mount node, bounded by a
// generous timeout since cold container starts are slow.
func NewChecker() *Checker {
	return &Checker{
		WaitSelector: "#root",
		Timeout:      60 * time.Second,
	}
}

// Check navigates to url, captures a screenshot of the 1280x800
// viewport, and records every uncaught JavaScript exception thrown
// during load in ConsoleErrors. Passed is true only if the wait
// selector rendered and no exception was recorded.
func (c *Checker) Check(ctx context.Context, url string) (*Result, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1280, 800),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	result := &Result{URL: url}

	chromedp.ListenTarget(browserCtx, func(ev any) {
		if e, ok := ev.(*runtime.EventExceptionThrown); ok && e.ExceptionDetails != nil {
			result.ConsoleErrors = append(result.ConsoleErrors, e.ExceptionDetails.Text)
		}
	})

	tasks := chromedp.Tasks{chromedp.Navigate(url)}
	if c.WaitSelector != "" {
		tasks = append(tasks, chromedp.WaitVisible(c.WaitSelector, chromedp.ByQuery))
	}
	tasks = append(tasks, chromedp.CaptureScreenshot(&result.Screenshot))

	if err := chromedp.Run(browserCtx, tasks); err != nil {
		return nil, fmt.Errorf("smoke check %s: %w", url, err)
	}

	result.Passed = len(result.ConsoleErrors) == 0
	return result, nil
}
