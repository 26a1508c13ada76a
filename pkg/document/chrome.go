package document

import (
	"context"
	"errors"
	"time"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ChromeConverter prints HTML through a headless Chrome instance.
// Each conversion runs in its own tab of a shared browser.
type ChromeConverter struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	timeout     time.Duration
}

// NewChromeConverter connects to cfg.ChromeURL or starts a local browser.
// The browser itself is launched lazily on the first conversion.
func NewChromeConverter(cfg Config) *ChromeConverter {
	var (
		allocCtx context.Context
		cancel   context.CancelFunc
	)

	if cfg.ChromeURL != "" {
		allocCtx, cancel = chromedp.NewRemoteAllocator(context.Background(), cfg.ChromeURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.DisableGPU,
			chromedp.NoSandbox,
		)
		if cfg.ChromePath != "" {
			opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
		}
		allocCtx, cancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &ChromeConverter{allocCtx: allocCtx, cancelAlloc: cancel, timeout: timeout}
}

// Convert loads html into a blank tab and prints it.
func (c *ChromeConverter) Convert(ctx context.Context, html []byte, opts PageOptions) ([]byte, error) {
	tabCtx, cancelTab := chromedp.NewContext(c.allocCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, c.timeout)
	defer cancelTimeout()

	// Abort the tab when the caller gives up.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var pdf []byte
	err := chromedp.Run(tabCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := cdppage.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return cdppage.SetDocumentContent(tree.Frame.ID, string(html)).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := cdppage.PrintToPDF().
				WithPaperWidth(opts.Width).
				WithPaperHeight(opts.Height).
				WithMarginTop(opts.MarginTop).
				WithMarginRight(opts.MarginRight).
				WithMarginBottom(opts.MarginBottom).
				WithMarginLeft(opts.MarginLeft).
				WithPrintBackground(opts.PrintBackground).
				WithPreferCSSPageSize(false).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		return nil, errors.Join(ErrConvertFailed, err)
	}
	if len(pdf) == 0 {
		return nil, ErrEmptyOutput
	}

	return pdf, nil
}

// Close shuts the browser down.
func (c *ChromeConverter) Close() {
	c.cancelAlloc()
}
