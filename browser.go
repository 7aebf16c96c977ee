package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

const (
	loginTimeout        = 60 * time.Second
	urlWaitTimeout      = 15 * time.Second
	selectorWaitTimeout = 15 * time.Second
	fetchTimeout        = 30 * time.Second
	containerTimeout    = 5 * time.Second
)

// BrowserMonitor drives a headless Chrome session against the
// virtual-number site: one login, then repeated snapshot reads of the
// messages page.
type BrowserMonitor struct {
	cfg    *Config
	logger zerolog.Logger

	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// NewBrowserMonitor creates a monitor; Start must be called before use.
func NewBrowserMonitor(cfg *Config, logger zerolog.Logger) *BrowserMonitor {
	return &BrowserMonitor{cfg: cfg, logger: logger}
}

// Start launches the headless browser. The session is torn down when
// Stop is called or when parent is canceled.
func (m *BrowserMonitor) Start(parent context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		// Required on container platforms where Chrome cannot sandbox.
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// Run with no actions to launch the process eagerly, so startup
	// failures surface here instead of on the first login attempt.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return fmt.Errorf("failed to start browser: %w", err)
	}

	m.ctx = browserCtx
	m.cancel = cancel
	m.allocCancel = allocCancel
	m.logger.Info().Msg("headless browser started")
	return nil
}

// Stop tears the browser session down.
func (m *BrowserMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.allocCancel != nil {
		m.allocCancel()
	}
	m.logger.Info().Msg("headless browser stopped")
}

// Login navigates to the login page, submits the configured credentials
// and waits until the messages page is reachable. Success is detected by
// landing on the OTP page URL, or failing that, by the messages
// container rendering.
func (m *BrowserMonitor) Login(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sel := m.cfg.Selectors

	tctx, cancel := context.WithTimeout(m.ctx, loginTimeout)
	defer cancel()

	m.logger.Info().Str("url", m.cfg.WebsiteURL).Msg("navigating to login page")
	err := chromedp.Run(tctx,
		chromedp.Navigate(m.cfg.WebsiteURL),
		chromedp.WaitVisible(sel.UsernameInput),
		chromedp.SendKeys(sel.UsernameInput, m.cfg.WebsiteUsername),
		chromedp.SendKeys(sel.PasswordInput, m.cfg.WebsitePassword),
		chromedp.Click(sel.SubmitButton),
	)
	if err != nil {
		return fmt.Errorf("failed to submit login form: %w", err)
	}

	if m.cfg.OTPPageURL != "" {
		if err := m.waitForURL(tctx, m.cfg.OTPPageURL, urlWaitTimeout); err == nil {
			m.logger.Info().Msg("login confirmed by messages page URL")
			return nil
		}
		m.logger.Warn().Msg("timed out waiting for messages page URL")
	}

	wctx, wcancel := context.WithTimeout(m.ctx, selectorWaitTimeout)
	defer wcancel()
	if err := chromedp.Run(wctx, chromedp.WaitVisible(sel.MessagesContainer)); err == nil {
		m.logger.Info().Msg("login confirmed by messages container")
		return nil
	}

	var loc string
	if err := chromedp.Run(tctx, chromedp.Location(&loc)); err == nil &&
		m.cfg.OTPPageURL != "" && strings.Contains(loc, m.cfg.OTPPageURL) {
		return nil
	}
	return fmt.Errorf("login not confirmed, current page is %q", loc)
}

// waitForURL polls the page location until it starts with url.
func (m *BrowserMonitor) waitForURL(ctx context.Context, url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		var loc string
		if err := chromedp.Run(ctx, chromedp.Location(&loc)); err != nil {
			return err
		}
		if strings.HasPrefix(loc, url) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for %s", url)
		}
		if err := chromedp.Run(ctx, chromedp.Sleep(500*time.Millisecond)); err != nil {
			return err
		}
	}
}

// scrapeParams carries the configured selectors into the page script.
type scrapeParams struct {
	Item    string `json:"item"`
	IDAttr  string `json:"idAttr"`
	Number  string `json:"number"`
	Service string `json:"service"`
	Text    string `json:"text"`
	Time    string `json:"time"`
}

// scrapedMessage is the raw per-element result of the page script.
type scrapedMessage struct {
	ID      string `json:"id"`
	Number  string `json:"number"`
	Service string `json:"service"`
	Text    string `json:"text"`
	Time    string `json:"time"`
}

// The script runs inside the page and extracts one record per message
// element. Missing sub-selectors yield empty strings rather than errors,
// so a single malformed row never fails the whole snapshot.
const scrapeScript = `(() => {
	const sel = %s;
	const out = [];
	for (const el of document.querySelectorAll(sel.item)) {
		const pick = (s) => {
			if (!s) return "";
			const child = el.querySelector(s);
			return child ? child.textContent.trim() : "";
		};
		out.push({
			id: sel.idAttr ? (el.getAttribute(sel.idAttr) || "") : "",
			number: pick(sel.number),
			service: pick(sel.service),
			text: pick(sel.text) || (el.textContent || "").trim(),
			time: pick(sel.time),
		});
	}
	return out;
})()`

// FetchMessages reloads the messages page and scrapes the visible
// messages. The site renders newest first; the returned slice is
// reversed into oldest-to-newest order.
func (m *BrowserMonitor) FetchMessages(ctx context.Context) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel := m.cfg.Selectors

	tctx, cancel := context.WithTimeout(m.ctx, fetchTimeout)
	defer cancel()

	var nav chromedp.Action
	if m.cfg.OTPPageURL != "" {
		nav = chromedp.Navigate(m.cfg.OTPPageURL)
	} else {
		nav = chromedp.Reload()
	}
	if err := chromedp.Run(tctx, nav); err != nil {
		return nil, fmt.Errorf("failed to load messages page: %w", err)
	}

	// Best effort: the list may already be in the DOM even if the
	// container never becomes visible within the window.
	wctx, wcancel := context.WithTimeout(tctx, containerTimeout)
	if err := chromedp.Run(wctx, chromedp.WaitVisible(sel.MessagesContainer)); err != nil {
		m.logger.Debug().Err(err).Msg("messages container not visible, scraping anyway")
	}
	wcancel()

	params, err := json.Marshal(scrapeParams{
		Item:    sel.MessageItem,
		IDAttr:  sel.MessageIDAttr,
		Number:  sel.Number,
		Service: sel.Service,
		Text:    sel.MessageText,
		Time:    sel.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode selectors: %w", err)
	}

	var scraped []scrapedMessage
	script := fmt.Sprintf(scrapeScript, params)
	if err := chromedp.Run(tctx, chromedp.Evaluate(script, &scraped)); err != nil {
		return nil, fmt.Errorf("failed to scrape messages: %w", err)
	}
	m.logger.Debug().Int("count", len(scraped)).Msg("scraped message elements")

	messages := make([]Message, 0, len(scraped))
	for i := len(scraped) - 1; i >= 0; i-- {
		raw := scraped[i]
		if raw.ID == "" && raw.Text == "" {
			continue
		}
		msg := Message{
			ID:      raw.ID,
			Number:  raw.Number,
			Service: raw.Service,
			Text:    raw.Text,
			Time:    raw.Time,
		}
		if msg.ID == "" {
			msg.ID = syntheticID(raw.Text)
		}
		if msg.Number == "" {
			msg.Number = "N/A"
		}
		if msg.Service == "" {
			msg.Service = "N/A"
		}
		msg.OTP = extractOTP(msg.Text)
		messages = append(messages, msg)
	}
	return messages, nil
}
