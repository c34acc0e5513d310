package submit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// ChromedpConfig controls the chromedp-backed automator.
type ChromedpConfig struct {
	UserAgent         string
	NavigationTimeout time.Duration
}

// ChromedpAutomator drives submissions through headless Chrome.
type ChromedpAutomator struct {
	cfg         ChromedpConfig
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates an automator backed by a shared exec allocator.
// Chrome itself is only launched on the first Open; a missing binary
// surfaces there as ErrUnavailable.
func NewChromedp(cfg ChromedpConfig) *ChromedpAutomator {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 25 * time.Second
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &ChromedpAutomator{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}
}

// Close cancels the allocator context.
func (a *ChromedpAutomator) Close() {
	a.allocCancel()
}

// Open navigates a fresh tab to the URL and waits for the body.
func (a *ChromedpAutomator) Open(ctx context.Context, url string) (Session, error) {
	taskCtx, taskCancel := chromedp.NewContext(a.allocator)

	session := &chromedpSession{ctx: taskCtx, cancel: taskCancel, timeout: a.cfg.NavigationTimeout}
	err := session.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
	)
	if err != nil {
		taskCancel()
		if backendMissing(err) {
			return nil, fmt.Errorf("open %s: %w", url, ErrUnavailable)
		}
		return nil, fmt.Errorf("open %s: %w", url, err)
	}
	return session, nil
}

// backendMissing recognizes errors caused by an absent Chrome binary.
func backendMissing(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "executable file not found") ||
		strings.Contains(msg, "exec: no command") ||
		strings.Contains(msg, "chrome failed to start")
}

type chromedpSession struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// run executes actions on the tab, bounded by the caller's deadline
// when one is set and the navigation timeout otherwise.
func (s *chromedpSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := s.ctx
	var cancel context.CancelFunc
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(runCtx, deadline)
	} else {
		runCtx, cancel = context.WithTimeout(runCtx, s.timeout)
	}
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Text returns the rendered body text.
func (s *chromedpSession) Text(ctx context.Context) (string, error) {
	var text string
	if err := s.run(ctx, chromedp.Text("body", &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("page text: %w", err)
	}
	return text, nil
}

// HasForm reports whether the page contains a form element.
func (s *chromedpSession) HasForm(ctx context.Context) (bool, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, chromedp.Nodes("form", &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return false, fmt.Errorf("query forms: %w", err)
	}
	return len(nodes) > 0, nil
}

// Fields enumerates fillable controls inside forms.
func (s *chromedpSession) Fields(ctx context.Context) ([]Field, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, chromedp.Nodes(
		"form input, form textarea, form select",
		&nodes, chromedp.ByQueryAll, chromedp.AtLeast(0),
	))
	if err != nil {
		return nil, fmt.Errorf("query fields: %w", err)
	}
	fields := make([]Field, 0, len(nodes))
	for _, node := range nodes {
		fields = append(fields, Field{
			Name: node.AttributeValue("name"),
			ID:   node.AttributeValue("id"),
			Kind: strings.ToLower(node.NodeName),
		})
	}
	return fields, nil
}

// Fill types the value into the matched control.
func (s *chromedpSession) Fill(ctx context.Context, field Field, value string) error {
	sel := fieldSelector(field)
	if sel == "" {
		return fmt.Errorf("field has no usable selector")
	}
	if err := s.run(ctx, chromedp.SendKeys(sel, value, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("fill %s: %w", sel, err)
	}
	return nil
}

func fieldSelector(field Field) string {
	if field.ID != "" {
		return "#" + field.ID
	}
	if field.Name != "" {
		return fmt.Sprintf(`[name=%q]`, field.Name)
	}
	return ""
}

const submitSelector = `form [type="submit"], form button`

// HasSubmit reports whether a submit control is present.
func (s *chromedpSession) HasSubmit(ctx context.Context) (bool, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, chromedp.Nodes(submitSelector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return false, fmt.Errorf("query submit control: %w", err)
	}
	return len(nodes) > 0, nil
}

// ClickSubmit clicks the first submit control.
func (s *chromedpSession) ClickSubmit(ctx context.Context) error {
	if err := s.run(ctx, chromedp.Click(submitSelector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click submit: %w", err)
	}
	return nil
}

// Screenshot captures the current viewport.
func (s *chromedpSession) Screenshot(ctx context.Context) ([]byte, error) {
	var shot []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&shot)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return shot, nil
}

// Close releases the tab.
func (s *chromedpSession) Close() {
	s.cancel()
}
