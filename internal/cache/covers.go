package cache

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"

	"github.com/nfnt/resize"
)

// DeriveCoverQualifier produces a resized JPEG variant of pk's canonical
// cover image at the given pixel width, writing it as a new qualifier
// payload file (e.g. "256") next to the original. Idempotent: re-derives
// only if the qualifier file does not already exist.
func (c *Cache) DeriveCoverQualifier(pk string, size uint) (string, error) {
	qualifier := fmt.Sprintf("%d", size)
	derivedPath := c.payloadPath(pk, qualifier, "jpg")
	if _, err := os.Stat(derivedPath); err == nil {
		return derivedPath, nil
	}

	origPath := c.payloadPath(pk, "orig", "jpg")
	src, err := os.Open(origPath)
	if err != nil {
		return "", fmt.Errorf("cache: open cover original %q: %w", origPath, err)
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		return "", fmt.Errorf("cache: decode cover image: %w", err)
	}

	resized := resize.Resize(size, 0, img, resize.Lanczos3)

	out, err := os.Create(derivedPath)
	if err != nil {
		return "", fmt.Errorf("cache: create derived cover %q: %w", derivedPath, err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, resized, &jpeg.Options{Quality: 85}); err != nil {
		os.Remove(derivedPath)
		return "", fmt.Errorf("cache: encode derived cover: %w", err)
	}
	return derivedPath, nil
}
