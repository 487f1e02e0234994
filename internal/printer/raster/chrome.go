package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Rasterizer turns an HTML page into a bitmap of the given pixel width.
type Rasterizer interface {
	Rasterize(ctx context.Context, html string, width int) (image.Image, error)
}

// ChromeRasterizer renders pages in a headless Chrome.
type ChromeRasterizer struct {
	ExecPath string
	Timeout  time.Duration
}

func (c ChromeRasterizer) Rasterize(ctx context.Context, html string, width int) (image.Image, error) {
	pngBytes, err := c.Screenshot(ctx, html, width)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode PNG: %w", err)
	}
	return img, nil
}

// Screenshot captures the full page as PNG.
func (c ChromeRasterizer) Screenshot(ctx context.Context, html string, width int) ([]byte, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(width, 200),
	)
	if c.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	cdpCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	cdpCtx, cancelTimeout := context.WithTimeout(cdpCtx, timeout)
	defer cancelTimeout()

	var pngBytes []byte
	err := chromedp.Run(cdpCtx,
		chromedp.EmulateViewport(int64(width), 200),
		chromedp.Navigate("data:text/html,"+urlEncode(html)),
		chromedp.Sleep(300*time.Millisecond),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, err := page.CaptureScreenshot().
				WithCaptureBeyondViewport(true).
				Do(ctx)
			if err != nil {
				return err
			}
			pngBytes = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed generating image: %w", err)
	}
	return pngBytes, nil
}

func urlEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
