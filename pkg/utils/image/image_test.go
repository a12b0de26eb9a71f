package image

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vladimirvivien/go4vl/v4l2"
)

func TestDecodeYUYV(t *testing.T) {
	// 2x2: Y0 U Y1 V per row
	data := []byte{
		10, 128, 20, 128,
		30, 128, 40, 128,
	}
	img, err := DecodeYUYV(data, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint8{10, 20, 30, 40}, img.Pix)

	_, err = DecodeYUYV(data[:7], 2, 2)
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestDecodeRGB(t *testing.T) {
	data := []byte{
		255, 255, 255, 0, 0, 0,
		255, 0, 0, 0, 0, 255,
	}
	img, err := DecodeRGB(data, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint8{255, 0, 76, 29}, img.Pix)

	_, err = DecodeRGB(data, 3, 2)
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestDecodeJPEG(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 32, 16))
	for i := range src.Pix {
		src.Pix[i] = 128
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, &jpeg.Options{Quality: 95}))

	img, err := DecodeJPEG(buf.Bytes(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), img.Bounds())
	assert.InDelta(t, 128, float64(img.GrayAt(5, 5).Y), 2)

	_, err = DecodeJPEG(nil, 0, 0)
	assert.Error(t, err)
}

func TestDecoderFor(t *testing.T) {
	for _, f := range []v4l2.FourCCType{v4l2.PixelFmtYUYV, v4l2.PixelFmtRGB24, v4l2.PixelFmtMJPEG} {
		d, err := DecoderFor(f)
		require.NoError(t, err)
		assert.NotNil(t, d)
	}
	_, err := DecoderFor(v4l2.PixelFmtH264)
	assert.Error(t, err)
}
