package raster_test

import (
	"bytes"
	"context"
	"os/exec"
	"testing"

	"github.com/sheetshot/sheetshot/pkg/raster"
)

func chromeAvailable() bool {
	for _, name := range []string{
		"chromium-browser", "chromium", "google-chrome",
		"google-chrome-stable", "chrome",
	} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

func newTestChrome(t *testing.T) *raster.Chrome {
	t.Helper()
	if !chromeAvailable() {
		t.Skip("skipping: Chrome/Chromium not found in PATH")
	}
	c, err := raster.NewChrome(raster.WithNoSandbox())
	if err != nil {
		t.Fatalf("NewChrome: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestScreenshotPNG(t *testing.T) {
	c := newTestChrome(t)

	data, err := c.Screenshot(context.Background(), "<h1>Hello</h1>", raster.ShotOptions{})
	if err != nil {
		t.Fatalf("Screenshot: %v", err)
	}
	if !bytes.HasPrefix(data, pngMagic) {
		t.Fatal("output is not a PNG")
	}
}

func TestScreenshotJPEG(t *testing.T) {
	c := newTestChrome(t)

	data, err := c.Screenshot(context.Background(), "<h1>Hello</h1>", raster.ShotOptions{Format: "jpg", Quality: 70})
	if err != nil {
		t.Fatalf("Screenshot: %v", err)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Fatal("output is not a JPEG")
	}
}

func TestScreenshotAfterClose(t *testing.T) {
	c := newTestChrome(t)
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := c.Screenshot(context.Background(), "<p>late</p>", raster.ShotOptions{}); err == nil {
		t.Fatal("Screenshot on a closed instance succeeded, want error")
	}
}
