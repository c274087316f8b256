package helper

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

const (
	StickerDimension      = 512
	StickerMaxBytes       = 100 * 1024
	MaxDecompressedSizeMB = 50
	MaxDecompressedSize   = MaxDecompressedSizeMB * 1024 * 1024
)

// ToSticker converts an image into a 512x512 webp sticker, letterboxed on a
// transparent canvas.
func ToSticker(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if err := ValidateDecompressedSize(img); err != nil {
		return nil, err
	}

	fitted := imaging.Fit(img, StickerDimension, StickerDimension, imaging.Lanczos)
	canvas := imaging.New(StickerDimension, StickerDimension, color.NRGBA{})
	canvas = imaging.PasteCenter(canvas, fitted)

	return convertToWebPWithSizeLimit(canvas, StickerMaxBytes)
}

// ValidateDecompressedSize prevents decompression bomb attacks
func ValidateDecompressedSize(img image.Image) error {
	bounds := img.Bounds()
	pixels := bounds.Dx() * bounds.Dy()

	// RGBA = 4 bytes per pixel
	decompressedSize := pixels * 4

	if decompressedSize > MaxDecompressedSize {
		return fmt.Errorf("decompression bomb detected: image too large when decompressed (%d MB)", decompressedSize/(1024*1024))
	}

	return nil
}

// convertToWebPWithSizeLimit converts image to WebP with iterative quality reduction
func convertToWebPWithSizeLimit(img image.Image, limit int) ([]byte, error) {
	qualities := []float32{85, 75, 60, 50, 40}

	for _, quality := range qualities {
		var buf bytes.Buffer
		if err := webp.Encode(&buf, img, &webp.Options{
			Lossless: false,
			Quality:  quality,
		}); err != nil {
			return nil, fmt.Errorf("failed to encode WebP: %w", err)
		}
		if buf.Len() <= limit {
			return buf.Bytes(), nil
		}
	}

	return nil, fmt.Errorf("unable to compress sticker to %dKB", limit/1024)
}
