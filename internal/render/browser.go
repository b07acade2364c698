package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"lootwatch/internal/config"
)

// Browser captures a page element as PNG bytes.
type Browser interface {
	Capture(ctx context.Context, url, selector string) ([]byte, error)
	Close() error
}

// Launcher starts a fresh browser session.
type Launcher func(ctx context.Context, cfg config.Renderer) (Browser, error)

type chromeBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	cfg         config.Renderer
}

// LaunchChrome starts a headless Chrome through chromedp.
func LaunchChrome(ctx context.Context, cfg config.Renderer) (Browser, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight))
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}

	// The browser outlives individual captures but must die with the caller.
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return &chromeBrowser{ctx: browserCtx, cancel: cancel, allocCancel: allocCancel, cfg: cfg}, nil
}

func (b *chromeBrowser) Capture(ctx context.Context, url, selector string) ([]byte, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.ctx)
	defer cancelTab()

	timeout := b.cfg.NavigationTimeoutDuration()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	scale := b.cfg.DeviceScale
	if scale <= 0 {
		scale = 1
	}
	var png []byte
	err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(int64(b.cfg.ViewportWidth), int64(b.cfg.ViewportHeight), chromedp.EmulateScale(scale)),
		chromedp.Navigate(url),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Screenshot(selector, &png, chromedp.NodeVisible, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("capture %s: no %q element within %s: %w", url, selector, timeout, err)
		}
		return nil, fmt.Errorf("capture %s: %w", url, err)
	}
	return png, nil
}

func (b *chromeBrowser) Close() error {
	if err := chromedp.Cancel(b.ctx); err != nil && !errors.Is(err, context.Canceled) {
		b.cancel()
		b.allocCancel()
		return err
	}
	b.cancel()
	b.allocCancel()
	return nil
}
