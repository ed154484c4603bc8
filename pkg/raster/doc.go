// Package raster captures rendered HTML documents as PNG or JPEG bytes
// using a headless Chrome instance driven over the DevTools protocol.
//
// A [Chrome] starts one browser process and reuses it across captures,
// opening a fresh tab per call; it is safe for concurrent use. The
// [Screenshotter] interface is what the conversion pipeline depends on,
// so tests can substitute a fake without a browser.
//
//	chrome, err := raster.NewChrome(raster.WithNoSandbox())
//	if err != nil { ... }
//	defer chrome.Close()
//
//	png, err := chrome.Screenshot(ctx, doc, raster.ShotOptions{
//		Width:  1024,
//		Height: 768,
//	})
package raster
