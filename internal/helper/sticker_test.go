package helper

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestToStickerProducesSquareWebP(t *testing.T) {
	t.Parallel()

	out, err := ToSticker(pngBytes(t, 300, 120))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out), StickerMaxBytes)

	cfg, err := webp.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, StickerDimension, cfg.Width)
	assert.Equal(t, StickerDimension, cfg.Height)
}

func TestToStickerRejectsNonImage(t *testing.T) {
	t.Parallel()

	_, err := ToSticker([]byte("definitely not an image"))
	assert.Error(t, err)
}
